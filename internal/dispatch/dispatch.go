// Package dispatch implements the single deferred soft-interrupt handler
// (spec §2 item 9, §5): for every unit, in index order, it drains the
// raw-receive queue through the receive pipeline and, if the line driver
// is idle and a packet is pending, runs one transmit-pipeline step.
//
// Directly ported from the teacher's StartPacketProcessing
// (internal/core/xdp_rb.go): a stats ticker, an adaptive sleep that
// shrinks to the floor on work and grows geometrically toward a cap on
// idle, and runtime.Gosched() rather than sleeping once at the floor.
// CPU pinning is ported from the teacher's setCPUAffinity/
// detectNUMATopology (root utils.go).
package dispatch

import (
	"runtime"
	"time"

	"github.com/anphsw/ppp/internal/cfg"
	"github.com/anphsw/ppp/internal/logx"
	"github.com/anphsw/ppp/internal/recv"
	"github.com/anphsw/ppp/internal/unit"
	"github.com/anphsw/ppp/internal/xmit"
	"golang.org/x/sys/unix"
)

// UnitPipelines bundles a unit with its transmit and receive pipelines,
// as registered with a Dispatcher.
type UnitPipelines struct {
	Unit *unit.Unit
	Tx   *xmit.Pipeline
	Rx   *recv.Pipeline
}

// Dispatcher walks a fixed set of units, single-threaded, draining
// raw-receive and driving out_pkt when idle (spec §5: "Single-threaded
// across all units — the dispatcher walks units in index order").
type Dispatcher struct {
	units       []UnitPipelines
	statsPeriod time.Duration
	stop        chan struct{}
}

// New creates a Dispatcher over units, reporting stats every statsPeriod.
func New(units []UnitPipelines, statsPeriod time.Duration) *Dispatcher {
	return &Dispatcher{units: units, statsPeriod: statsPeriod, stop: make(chan struct{})}
}

// Stop terminates the dispatch loop started by Run.
func (d *Dispatcher) Stop() { close(d.stop) }

// Run executes the dispatch loop until Stop is called. Intended to be
// run in its own goroutine, optionally pinned to a dedicated core via
// PinCurrentGoroutine.
func (d *Dispatcher) Run() {
	ticker := time.NewTicker(d.statsPeriod)
	defer ticker.Stop()

	sleepDuration := time.Duration(cfg.DispatchMinSleepNanos)
	const maxSleep = time.Duration(cfg.DispatchMaxSleepNanos)
	const minSleep = time.Duration(cfg.DispatchMinSleepNanos)

	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			d.logStats()
		default:
			workDone := d.sweep()
			if workDone {
				sleepDuration = minSleep
			} else if sleepDuration < maxSleep {
				sleepDuration *= 2
				if sleepDuration > maxSleep {
					sleepDuration = maxSleep
				}
			}
			if sleepDuration > time.Microsecond {
				time.Sleep(sleepDuration)
			} else {
				runtime.Gosched()
			}
		}
	}
}

// sweep performs one pass over every unit: drain raw-receive through
// InProc, then run one OutPkt step if the line is idle and work is
// pending.
func (d *Dispatcher) sweep() bool {
	workDone := false
	for _, up := range d.units {
		for {
			c := up.Unit.RawReceive.Pop()
			if c == nil {
				break
			}
			up.Rx.InProc(c)
			workDone = true
		}
		if !up.Unit.HasStaged() {
			up.Tx.OutPkt()
			if up.Unit.HasStaged() {
				workDone = true
			}
		}
	}
	return workDone
}

func (d *Dispatcher) logStats() {
	for _, up := range d.units {
		c := up.Unit.Counters()
		logx.Stat(up.Unit.Index, "in=%d/%d out=%d/%d errs=%d/%d",
			c.InPackets, c.InBytes, c.OutPackets, c.OutBytes, c.InErrors, c.OutErrors)
	}
}

// PinCurrentGoroutine locks the calling goroutine to its OS thread and
// pins that thread to cpuCore, skipping the attempt entirely below
// cfg.MinCoresForAffinity cores (teacher: detectNUMATopology's "single
// core detected, affinity disabled" branch).
func PinCurrentGoroutine(cpuCore int) error {
	numCPU := runtime.NumCPU()
	if numCPU < cfg.MinCoresForAffinity {
		logx.System("CPU affinity optimization: limited cores (%d), skipping pin", numCPU)
		return nil
	}
	runtime.LockOSThread()
	if cpuCore >= numCPU {
		cpuCore = 0
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(cpuCore)
	tid := unix.Gettid()
	if err := unix.SchedSetaffinity(tid, &set); err != nil {
		return err
	}
	logx.System("pinned dispatcher goroutine to CPU core %d (tid %d)", cpuCore, tid)
	return nil
}
