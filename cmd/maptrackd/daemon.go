package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"maptrack/internal/areawatch"
	"maptrack/internal/config"
	"maptrack/internal/fetch"
	"maptrack/internal/flow"
	"maptrack/internal/ipc"
	"maptrack/internal/journal"
	"maptrack/internal/logging"
	"maptrack/internal/notify"
	"maptrack/internal/session"
	"maptrack/internal/snapshot"
	"maptrack/internal/store"
	"maptrack/internal/valuation"
)

// trigger is one queued flow request from a monitor callback. Running
// flows off the queue keeps the monitor's polling goroutine free while
// the rate limiter blocks.
type trigger struct {
	kind string // "pre", "post", "waystone"
}

func cmdDaemon(args []string) {
	fs := flag.NewFlagSet("daemon", flag.ExitOnError)
	cfgPath := configFlag(fs)
	fs.Parse(args)

	path := *cfgPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		fatal(err)
	}

	logger, closeLogs, err := logging.Setup(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Output:    cfg.Logging.Output,
		FilePath:  cfg.Logging.FilePath,
		Component: "maptrackd",
	})
	if err != nil {
		fatal(err)
	}
	defer closeLogs()

	// Persistence.
	jw := journal.NewWriter(cfg.Journal.RunsPath, cfg.Journal.SessionsPath, cfg.Journal.Sync, logger)
	var st *store.Store
	if cfg.Storage.Type == "sqlite" {
		st, err = store.Open(cfg.Storage.Path)
		if err != nil {
			fatal(err)
		}
		defer st.Close()
	}

	// Notifications are best-effort; a missing session bus downgrades to
	// the no-op notifier.
	var notifier notify.Notifier = notify.Nop{}
	if cfg.Notify.Enabled {
		if d, err := notify.NewDesktop(cfg.Notify.AppName, logger); err != nil {
			logger.Warn("desktop notifications unavailable", "error", err)
		} else {
			notifier = d
		}
	}

	// Snapshot service over the remote inventory source.
	fetcher := fetch.NewClient(cfg.Snapshot.Endpoint, cfg.Snapshot.League, cfg.Snapshot.Timeout())
	snaps := snapshot.NewService(fetcher, cfg.Snapshot.MinGap(), cfg.Snapshot.Credential, logger)

	// Valuation; without an endpoint runs are recorded at zero value.
	var valuer valuation.Valuer = valuation.Offline{}
	if cfg.Valuation.Endpoint != "" {
		valuer = valuation.NewClient(cfg.Valuation.Endpoint, cfg.Valuation.League, cfg.Valuation.Timeout(), logger)
	}

	agg := session.New()

	// Flow triggers from the monitor run on a dedicated worker so the
	// polling loop never blocks on the rate limiter.
	triggers := make(chan trigger, 8)
	enqueue := func(kind string) {
		select {
		case triggers <- trigger{kind: kind}:
		default:
			logger.Warn("trigger queue full, dropping", "kind", kind)
		}
	}

	class := areawatch.NewClassifier(classifierConfig(cfg.Zones))
	monitor := areawatch.New(areawatch.Options{
		Path:         cfg.Log.Path,
		PollInterval: cfg.Log.PollInterval(),
		ScanWindow:   cfg.Log.ScanWindowBytes,
		FromStart:    cfg.Log.FromStart,
	}, class, areawatch.Callbacks{
		OnMapEnter:         func(areawatch.Event) { enqueue("pre") },
		OnMapExit:          func(areawatch.Event) { enqueue("post") },
		OnTriggerZoneEnter: func(areawatch.Event) { enqueue("waystone") },
	}, logger)

	orch := flow.New(snaps, valuer, agg, notifier, jw, st,
		monitorResolver{monitor}, cfg.Snapshot.SubjectID, logger)

	stop := make(chan struct{})
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		flowWorker(triggers, stop, orch)
	}()

	if err := orch.StartSession(); err != nil {
		logger.Warn("session start record failed", "error", err)
	}
	if err := monitor.Start(); err != nil {
		fatal(err)
	}

	srv := ipc.NewServer(cfg.IPC.SocketPath, newControlHandler(orch, monitor, agg, stop), logger)
	if err := srv.Start(); err != nil {
		monitor.Stop()
		fatal(err)
	}

	logger.Info("daemon running",
		"log", cfg.Log.Path,
		"subject", cfg.Snapshot.SubjectID,
		"socket", cfg.IPC.SocketPath,
	)

	// Wait for a signal or an IPC stop.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		logger.Info("signal received", "signal", s.String())
	case <-stop:
		logger.Info("stop requested over control socket")
	}

	// Shutdown: monitor first so no new triggers arrive, then the control
	// socket, then drain the flow worker before the final session flush —
	// an in-flight run must land in the journal ahead of the session-end
	// record.
	monitor.Stop()
	srv.Stop()
	close(triggers)
	<-workerDone
	if err := orch.EndSession(); err != nil {
		logger.Warn("session end record failed", "error", err)
	}
	logger.Info("daemon stopped")
}

// flowWorker drains monitor-originated triggers until the channel closes.
func flowWorker(triggers <-chan trigger, stop <-chan struct{}, orch *flow.Orchestrator) {
	for t := range triggers {
		select {
		case <-stop:
			return
		default:
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		switch t.kind {
		case "pre":
			orch.ExecutePreFlow(ctx)
		case "post":
			orch.ExecutePostFlow(ctx, nil)
		case "waystone":
			orch.AnalyzeWaystone(ctx)
		}
		cancel()
	}
}

// monitorResolver adapts the monitor's status into the flow's map
// identity. The area code is prettified for display; the raw code stays
// in the Source field.
type monitorResolver struct {
	m *areawatch.Monitor
}

func (r monitorResolver) CurrentMap() (flow.MapInfo, bool) {
	st := r.m.Status()
	if st.CurrentMap == nil {
		return flow.MapInfo{}, false
	}
	return flow.MapInfo{
		Name:   prettyMapName(st.CurrentMap.AreaCode),
		Level:  st.CurrentMap.Level,
		Seed:   st.CurrentMap.Seed,
		Source: "client_log",
	}, true
}

// prettyMapName turns an area code like "MapSteppe" into "Steppe".
func prettyMapName(code string) string {
	name := strings.TrimPrefix(code, "Map")
	name = strings.TrimLeft(name, "_")
	if name == "" {
		return code
	}
	return name
}

func classifierConfig(z config.ZonesConfig) areawatch.ClassifierConfig {
	cc := areawatch.DefaultClassifierConfig()
	if len(z.SafeCodes) > 0 {
		cc.SafeCodes = z.SafeCodes
	}
	if len(z.SafePrefixes) > 0 {
		cc.SafePrefixes = z.SafePrefixes
	}
	if len(z.TriggerCodes) > 0 {
		cc.TriggerCodes = z.TriggerCodes
	}
	if len(z.SafeTargets) > 0 {
		cc.SafeTargets = z.SafeTargets
	}
	if len(z.SubMarkers) > 0 {
		cc.SubMarkers = z.SubMarkers
	}
	if len(z.MapPrefixes) > 0 {
		cc.MapPrefixes = z.MapPrefixes
	}
	if len(z.IgnoreMarkers) > 0 {
		cc.IgnoreMarkers = z.IgnoreMarkers
	}
	return cc
}
