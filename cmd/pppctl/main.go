// Command pppctl is the control-plane client for pppd: one-shot
// subcommands for scripting, and a bubbletea dashboard (RunDashboard in
// interactive.go) when invoked with no subcommand. Grounded on the
// teacher's cmd/cli/main.go: mTLS dial, certs loaded from files instead
// of embedded at build time (this environment never generates the certs
// cmd/gen_certs writes, so go:embed would fail the build — see
// DESIGN.md).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/anphsw/ppp/internal/control"
	"github.com/anphsw/ppp/internal/controlpb"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:7443", "pppd control RPC address")
	certsDir := flag.String("certs", "certs", "directory holding client.crt, client.key, ca.crt")
	privileged := flag.Bool("privileged", true, "send privileged=true on control calls that require it")
	flag.Parse()
	args := flag.Args()

	certPEM, err := os.ReadFile(*certsDir + "/client.crt")
	if err != nil {
		fmt.Fprintf(os.Stderr, "pppctl: %v\n", err)
		os.Exit(1)
	}
	keyPEM, err := os.ReadFile(*certsDir + "/client.key")
	if err != nil {
		fmt.Fprintf(os.Stderr, "pppctl: %v\n", err)
		os.Exit(1)
	}
	caPEM, err := os.ReadFile(*certsDir + "/ca.crt")
	if err != nil {
		fmt.Fprintf(os.Stderr, "pppctl: %v\n", err)
		os.Exit(1)
	}

	client, err := control.Dial(*addr, certPEM, keyPEM, caPEM)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pppctl: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	if len(args) == 0 {
		if err := RunDashboard(client); err != nil {
			fmt.Fprintf(os.Stderr, "pppctl: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := runCommand(client, *privileged, args); err != nil {
		fmt.Fprintf(os.Stderr, "pppctl: %v\n", err)
		os.Exit(1)
	}
}

func runCommand(client *control.Client, privileged bool, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := args[0]
	rest := args[1:]

	req, err := buildRequest(cmd, privileged, rest)
	if err != nil {
		return err
	}
	resp, err := client.Call(ctx, req)
	if err != nil {
		return err
	}
	printResp(cmd, resp)
	return nil
}

func buildRequest(cmd string, privileged bool, args []string) (*controlpb.Req, error) {
	unitIndex := 0
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, fmt.Errorf("bad unit index %q: %w", args[0], err)
		}
		unitIndex = n
	}
	req := &controlpb.Req{UnitIndex: unitIndex, Privileged: privileged}

	switch cmd {
	case "get-flags":
		req.Op = control.OpGetFlags
	case "set-flags":
		req.Op = control.OpSetFlags
		req.Flags = uint32(parseFlagArg(args, 1))
	case "get-mru":
		req.Op = control.OpGetMRU
	case "set-mru":
		req.Op = control.OpSetMRU
		req.MRU = int(parseFlagArg(args, 1))
	case "set-max-cid":
		req.Op = control.OpSetMaxCID
		req.MaxCID = int(parseFlagArg(args, 1))
	case "transfer-unit":
		req.Op = control.OpTransferUnit
		req.CallerPID = int(parseFlagArg(args, 1))
	case "get-np-mode":
		req.Op = control.OpGetNPMode
		req.NPProto = 0
	case "set-np-mode":
		req.Op = control.OpSetNPMode
		req.NPProto = 0
		req.NPMode = npModeFromName(argAt(args, 1))
	case "stats":
		req.Op = control.OpGetPPPStats
	case "comp-stats":
		req.Op = control.OpGetCompStats
	case "get-mtu":
		req.Op = control.OpGetMTU
	case "set-mtu":
		req.Op = control.OpSetMTU
		req.MTU = int(parseFlagArg(args, 1))
	case "if-up":
		req.Op = control.OpSetIfFlags
		req.IfUp = true
	case "if-down":
		req.Op = control.OpSetIfFlags
		req.IfUp = false
	case "readable-count":
		req.Op = control.OpGetReadableCount
	default:
		return nil, fmt.Errorf("unknown command %q", cmd)
	}
	return req, nil
}

func argAt(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func parseFlagArg(args []string, i int) int64 {
	if i >= len(args) {
		return 0
	}
	n, _ := strconv.ParseInt(args[i], 0, 64)
	return n
}

func npModeFromName(name string) int {
	switch name {
	case "pass":
		return 0
	case "drop":
		return 1
	case "error":
		return 2
	case "queue":
		return 3
	}
	return 2
}

func printResp(cmd string, r *controlpb.Resp) {
	if !r.Ok {
		fmt.Printf("error: %s\n", r.Error)
		return
	}
	switch cmd {
	case "get-flags":
		fmt.Printf("flags: %#x\n", r.Flags)
	case "get-mru", "get-mtu":
		fmt.Printf("%d\n", r.MRU)
	case "get-np-mode":
		fmt.Printf("mode: %d\n", r.NPMode)
	case "readable-count":
		fmt.Printf("%d\n", r.ReadableCount)
	case "stats":
		if r.Stats != nil {
			fmt.Printf("in=%d/%d out=%d/%d errs=%d/%d vj: searches=%d misses=%d compressed=%d errors=%d\n",
				r.Stats.InPackets, r.Stats.InBytes, r.Stats.OutPackets, r.Stats.OutBytes,
				r.Stats.InErrors, r.Stats.OutErrors,
				r.Stats.VJSearches, r.Stats.VJMisses, r.Stats.VJCompressed, r.Stats.VJErrors)
		}
	case "comp-stats":
		if r.CompStats != nil {
			fmt.Printf("tx: in=%d out=%d pkts=%d errs=%d uncompressible=%d  rx: in=%d out=%d pkts=%d errs=%d\n",
				r.CompStats.TxInBytes, r.CompStats.TxOutBytes, r.CompStats.TxPackets, r.CompStats.TxErrors, r.CompStats.TxUncompressible,
				r.CompStats.RxInBytes, r.CompStats.RxOutBytes, r.CompStats.RxPackets, r.CompStats.RxErrors)
		}
	default:
		fmt.Println("ok")
	}
}
