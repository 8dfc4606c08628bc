package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"maptrack/internal/config"
	"maptrack/internal/store"
)

func cmdInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	cfgPath := configFlag(fs)
	fs.Parse(args)

	path := *cfgPath
	if path == "" {
		path = config.DefaultPath()
	}
	if err := config.WriteDefault(path); err != nil {
		fatal(err)
	}
	fmt.Println("Wrote starter config to", path)
	fmt.Println("Set log.path and snapshot.subject_id before running the daemon.")
	fmt.Println("Put the session credential in MAPTRACK_CREDENTIAL.")
}

func cmdRuns(args []string) {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	cfgPath := configFlag(fs)
	limit := fs.Int("n", 20, "number of runs to list")
	fs.Parse(args)

	path := *cfgPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		fatal(err)
	}
	if cfg.Storage.Type != "sqlite" {
		fatal(fmt.Errorf("runs listing needs storage.type = sqlite"))
	}

	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		fatal(err)
	}
	defer st.Close()

	runs, err := st.RecentRuns(*limit)
	if err != nil {
		fatal(err)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tMAP\tLEVEL\tVALUE\tRUNTIME\tDROPS")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\t%s\t%d\n",
			r.Timestamp.Format("2006-01-02 15:04"),
			r.MapName, r.MapLevel, r.MapValue,
			(time.Duration(r.RuntimeSeconds) * time.Second).String(),
			r.AddedCount,
		)
	}
	w.Flush()
}
