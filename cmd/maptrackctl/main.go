// maptrackctl - control client for the maptrack daemon
//
//	maptrackctl status        Show session, monitor and flow state
//	maptrackctl pre           Trigger the PRE flow (snapshot, arm the run)
//	maptrackctl post          Trigger the POST flow (close the run)
//	maptrackctl reset         Clear per-map records and monitor state
//	maptrackctl new-session   Rotate to a fresh session id
//	maptrackctl stop          Stop the daemon
//	maptrackctl ping          Check the daemon is reachable
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"maptrack/internal/ipc"
)

func main() {
	socket := flag.String("socket", "", "control socket path (default: per-user runtime dir)")
	timeout := flag.Duration("timeout", 30*time.Second, "request timeout")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}
	op := flag.Arg(0)
	switch op {
	case ipc.OpPing, ipc.OpStatus, ipc.OpPre, ipc.OpPost, ipc.OpReset, ipc.OpNewSession, ipc.OpStop:
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", op)
		usage()
		os.Exit(1)
	}

	path := *socket
	if path == "" {
		path = ipc.DefaultSocketPath()
	}
	if v := os.Getenv("MAPTRACK_SOCKET"); *socket == "" && v != "" {
		path = v
	}

	client := ipc.NewClient(path, *timeout)
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	resp, err := client.Call(ctx, ipc.Request{Op: op})
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	if !resp.OK {
		fmt.Fprintln(os.Stderr, "Error:", resp.Error)
		os.Exit(1)
	}
	if len(resp.Data) > 0 {
		var pretty map[string]any
		if err := json.Unmarshal(resp.Data, &pretty); err == nil {
			out, _ := json.MarshalIndent(pretty, "", "  ")
			fmt.Println(string(out))
			return
		}
		fmt.Println(string(resp.Data))
		return
	}
	fmt.Println("ok")
}

func usage() {
	fmt.Fprintln(os.Stderr, `maptrackctl - control client for the maptrack daemon

USAGE:
    maptrackctl [options] <command>

COMMANDS:
    status        Show session, monitor and flow state
    pre           Trigger the PRE flow (snapshot, arm the run)
    post          Trigger the POST flow (close the run)
    reset         Clear per-map records and monitor state
    new-session   Rotate to a fresh session id
    stop          Stop the daemon
    ping          Check the daemon is reachable

OPTIONS:`)
	flag.PrintDefaults()
}
