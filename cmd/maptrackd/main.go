// maptrackd - map-run tracking daemon
//
// Tails the game client log, detects when a map run begins and ends, and
// drives the snapshot/diff/value/aggregate pipeline around each run.
//
//	maptrackd init             Write a starter config file
//	maptrackd daemon           Run the tracking daemon
//	maptrackd runs             List recent runs from the history store
//	maptrackd version          Print the version
package main

import (
	"flag"
	"fmt"
	"os"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		cmdInit(os.Args[2:])
	case "daemon":
		cmdDaemon(os.Args[2:])
	case "runs":
		cmdRuns(os.Args[2:])
	case "version":
		fmt.Println("maptrackd", version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`maptrackd - map-run tracking daemon

USAGE:
    maptrackd <command> [options]

COMMANDS:
    init       Write a starter config file
    daemon     Run the tracking daemon
    runs       List recent runs from the history store
    version    Print the version
    help       Show this help message

The daemon tails the client log for area transitions. Entering a map
takes a PRE inventory snapshot; returning to a hideout or town takes the
POST snapshot, diffs the two, valuates the drops and records the run.
Use maptrackctl to trigger flows manually and to query status.`)
}

// configFlag registers the shared -config flag on a flag set.
func configFlag(fs *flag.FlagSet) *string {
	return fs.String("config", "", "config file path (default: platform config dir)")
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}
