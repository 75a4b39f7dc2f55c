// Command pppd is the bundled PPP network-interface daemon: it brings up
// the fixed unit pool, a loopback line driver per unit (no hardware
// attached, matching the no-real-device default the teacher's bundled
// server runs under when XDP isn't wired to a NIC), a gVisor netstack
// bridge per unit, the deferred dispatcher, the mTLS control RPC server,
// and a Prometheus metrics endpoint.
//
// Grounded on the teacher's cmd/server/main.go: memlock removal, NUMA/CPU
// affinity logging before the hot loop starts, one goroutine per
// long-running subsystem, and signal-driven graceful shutdown.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/anphsw/ppp/internal/buffer"
	"github.com/anphsw/ppp/internal/ccp"
	"github.com/anphsw/ppp/internal/cfg"
	"github.com/anphsw/ppp/internal/control"
	"github.com/anphsw/ppp/internal/dispatch"
	"github.com/anphsw/ppp/internal/linedriver"
	"github.com/anphsw/ppp/internal/logx"
	"github.com/anphsw/ppp/internal/netstack"
	"github.com/anphsw/ppp/internal/recv"
	"github.com/anphsw/ppp/internal/unit"
	"github.com/anphsw/ppp/internal/xmit"

	"github.com/cilium/ebpf/rlimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	certsDir := flag.String("certs", "certs", "directory holding ca.crt, server.crt, server.key (see cmd/gen_certs)")
	controlAddr := flag.String("control-addr", "127.0.0.1:7443", "mTLS control RPC listen address")
	metricsAddr := flag.String("metrics-addr", "127.0.0.1:9273", "Prometheus /metrics listen address")
	flag.Parse()

	if err := rlimit.RemoveMemlock(); err != nil {
		log.Fatalf("failed to remove memlock: %v", err)
	}

	logx.System("starting pppd with %d units, %d CPUs detected", cfg.NumUnits, runtime.NumCPU())

	pool := unit.NewPool()
	bridges := make([]*netstack.Bridge, cfg.NumUnits)
	pipelines := make([]dispatch.UnitPipelines, 0, cfg.NumUnits)

	for range pool.All() {
		u, err := pool.Allocate(os.Getpid())
		if err != nil {
			log.Fatalf("allocate unit: %v", err)
		}
		u.SetUp(true)
		u.SetMRU(cfg.DefaultMTU)

		bridge, err := netstack.New(u.Index, cfg.DefaultMTU)
		if err != nil {
			log.Fatalf("unit %d: netstack bridge: %v", u.Index, err)
		}
		bridges[u.Index] = bridge

		observer := newCCPObserver(u)

		driver := linedriver.NewLoopback()
		u.LineCtlNotify = func(u *unit.Unit) {
			logx.Control(u.Index, "non-IP frame available on user-read queue (%d bytes pending)", u.ReadableBytes())
		}

		tx := &xmit.Pipeline{Unit: u, CCP: observer}
		rx := &recv.Pipeline{Unit: u, CCP: observer, IPInput: bridge.DeliverIP}

		u.LineStart = func(u *unit.Unit) {
			for {
				c := tx.Dequeue()
				if c == nil {
					return
				}
				if !driver.Send(c.Bytes()) {
					u.AddOutErrors(1)
					return
				}
			}
		}
		driver.Attach(func(frame []byte, lost bool) {
			rx.PktIn(buffer.NewFromBytes(frame, 0), lost)
		})

		pipelines = append(pipelines, dispatch.UnitPipelines{Unit: u, Tx: tx, Rx: rx})

		go pumpOutbound(u.Index, bridge, tx)
	}

	disp := dispatch.New(pipelines, 30*time.Second)
	go func() {
		if err := dispatch.PinCurrentGoroutine(cfg.DispatchCPUCore); err != nil {
			logx.Warn(-1, "CPU affinity pin failed: %v", err)
		}
		disp.Run()
	}()

	certPEM, err := os.ReadFile(*certsDir + "/server.crt")
	if err != nil {
		log.Fatalf("read server cert: %v", err)
	}
	keyPEM, err := os.ReadFile(*certsDir + "/server.key")
	if err != nil {
		log.Fatalf("read server key: %v", err)
	}
	caPEM, err := os.ReadFile(*certsDir + "/ca.crt")
	if err != nil {
		log.Fatalf("read CA cert: %v", err)
	}

	rpcServer := &control.RPCServer{
		Server: control.New(pool),
		StartFor: func(unitIndex int) {
			if u := pool.Get(unitIndex); u != nil && u.LineStart != nil {
				u.LineStart(u)
			}
		},
	}
	lis, err := net.Listen("tcp", *controlAddr)
	if err != nil {
		log.Fatalf("control listen %s: %v", *controlAddr, err)
	}
	grpcServer, err := control.Listen(lis, rpcServer, certPEM, keyPEM, caPEM)
	if err != nil {
		log.Fatalf("control mTLS setup: %v", err)
	}
	logx.System("control RPC listening on %s", *controlAddr)

	registry := prometheus.NewRegistry()
	registry.MustRegister(unit.NewPoolCollector(pool))
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{Addr: *metricsAddr, Handler: mux}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Warn(-1, "metrics server: %v", err)
		}
	}()
	logx.System("metrics listening on %s/metrics", *metricsAddr)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	<-sigc

	logx.System("shutting down")
	disp.Stop()
	grpcServer.GracefulStop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(ctx)
	for _, b := range bridges {
		b.Close()
	}
}

// pumpOutbound reads packets the netstack wants to send out this unit's
// NIC and hands them to the transmit pipeline as raw IP frames (spec
// §4.2's Output entry, FamilyIP).
func pumpOutbound(unitIndex int, bridge *netstack.Bridge, tx *xmit.Pipeline) {
	for {
		pkt := bridge.LinkEP.ReadContext(context.Background())
		if pkt == nil {
			return
		}
		payload := pkt.ToView().AsSlice()
		pkt.DecRef()
		chain := buffer.NewFromBytes(payload, cfg.HeaderLen)
		if err := tx.Output(xmit.Dest{Family: xmit.FamilyIP}, chain); err != nil {
			logx.Warn(unitIndex, "outbound drop: %v", err)
		}
	}
}

// newCCPObserver wires an Observer's closures onto u, keeping
// internal/ccp free of any import on internal/unit (see Observer's doc
// comment).
func newCCPObserver(u *unit.Unit) *ccp.Observer {
	return &ccp.Observer{
		IsCCPOpen:          func() bool { return u.Has(unit.FlagCCPOpen) },
		IsCCPUp:            func() bool { return u.Has(unit.FlagCCPUp) },
		IsCompRun:          func() bool { return u.Has(unit.FlagCompRun) },
		IsDecompRun:        func() bool { return u.Has(unit.FlagDecompRun) },
		ClearUpAndRunFlags: func() { u.ClearFlagBits(unit.FlagCCPUp | unit.FlagCompRun | unit.FlagDecompRun) },
		SetCompRun: func(v bool) {
			if v {
				u.SetFlagBits(unit.FlagCompRun | unit.FlagCCPUp)
			} else {
				u.ClearFlagBits(unit.FlagCompRun)
			}
		},
		SetDecompRun: func(v bool) {
			if v {
				u.SetFlagBits(unit.FlagDecompRun | unit.FlagCCPUp)
			} else {
				u.ClearFlagBits(unit.FlagDecompRun)
			}
		},
		ClearDCErrors:  func() { u.ClearFlagBits(unit.FlagDCError | unit.FlagDCFError) },
		TxCompressor:   func() ccp.Compressor { return u.TxCompressor() },
		RxDecompressor: func() ccp.Decompressor { return u.RxDecompressor() },
	}
}
