// Package flow orchestrates the capture/diff/value/aggregate pipeline
// around each map run.
//
// A PRE flow snapshots the inventory when a run starts; the matching POST
// flow snapshots again when the run ends, diffs the two, valuates the
// drops, updates the session aggregator exactly once, notifies and
// persists. Flows run to completion or to their first error; there is no
// mid-flow cancellation and no retry inside a flow.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"maptrack/internal/diff"
	"maptrack/internal/journal"
	"maptrack/internal/notify"
	"maptrack/internal/session"
	"maptrack/internal/snapshot"
	"maptrack/internal/store"
	"maptrack/internal/valuation"
)

// MapInfo identifies the run's map as resolved from the log.
type MapInfo struct {
	Name   string
	Level  int
	Seed   int
	Source string
}

// Waystone holds attributes cached from the last analyzed waystone. They
// survive across runs on purpose: the waystone is read in the hideout,
// before the run it opens.
type Waystone struct {
	Tier      int
	Modifiers []string
}

// Resolver supplies the identity of the map currently being run.
type Resolver interface {
	CurrentMap() (MapInfo, bool)
}

// Orchestrator drives the PRE and POST flows. All collaborators are
// constructor-injected; the orchestrator is the only owner of the held
// PRE snapshot and the only caller of the aggregator's CompleteMap.
type Orchestrator struct {
	snaps    *snapshot.Service
	valuer   valuation.Valuer
	agg      *session.Aggregator
	notifier notify.Notifier
	journal  *journal.Writer
	store    *store.Store // optional; nil disables the mirror
	resolver Resolver
	logger   *slog.Logger

	subjectID string
	now       func() time.Time

	mu         sync.Mutex
	preSnap    *snapshot.Snapshot
	mapStart   time.Time
	currentMap MapInfo
	waystone   *Waystone
}

// New creates an orchestrator. The store may be nil.
func New(
	snaps *snapshot.Service,
	valuer valuation.Valuer,
	agg *session.Aggregator,
	notifier notify.Notifier,
	jw *journal.Writer,
	st *store.Store,
	resolver Resolver,
	subjectID string,
	logger *slog.Logger,
) *Orchestrator {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		snaps:     snaps,
		valuer:    valuer,
		agg:       agg,
		notifier:  notifier,
		journal:   jw,
		store:     st,
		resolver:  resolver,
		subjectID: subjectID,
		logger:    logger.With("component", "flow"),
		now:       time.Now,
	}
}

// State is a copy of the orchestrator's run-local state.
type State struct {
	HoldingPre bool
	CurrentMap MapInfo
	MapStart   time.Time
	Waystone   *Waystone
}

// State returns a copy of the current run-local state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := State{
		HoldingPre: o.preSnap != nil,
		CurrentMap: o.currentMap,
		MapStart:   o.mapStart,
	}
	if o.waystone != nil {
		ws := *o.waystone
		st.Waystone = &ws
	}
	return st
}

// Progress exposes the aggregator's session totals.
func (o *Orchestrator) Progress() session.Progress {
	return o.agg.Progress()
}

// ExecutePreFlow snapshots the inventory and arms the run. A failed PRE
// flow leaves no held snapshot; running PRE twice before POST silently
// replaces the held snapshot.
func (o *Orchestrator) ExecutePreFlow(ctx context.Context) bool {
	snap, err := o.snaps.Take(ctx, o.subjectID, snapshot.KindPre)
	if err != nil {
		o.logger.Error("pre flow: snapshot failed", "error", err)
		return false
	}

	info := o.resolveMap()

	o.mu.Lock()
	o.preSnap = snap
	o.mapStart = o.now()
	o.currentMap = info
	o.mu.Unlock()

	o.logger.Info("map started",
		"map", info.Name,
		"level", info.Level,
		"items", len(snap.Items),
	)
	o.notifier.Notify("Map started", fmt.Sprintf("%s (level %d)", info.Name, info.Level))
	return true
}

// ExecutePostFlow closes the run. When simulated is non-nil it stands in
// for the POST snapshot (testing hook); otherwise a fresh snapshot is
// taken. Returns false with a user-visible message when no PRE snapshot
// is held.
func (o *Orchestrator) ExecutePostFlow(ctx context.Context, simulated *snapshot.Snapshot) bool {
	// Consume the held snapshot under the lock: of two racing POST flows
	// exactly one takes it, the other fails the precondition. CompleteMap
	// below therefore fires at most once per held PRE.
	o.mu.Lock()
	pre := o.preSnap
	o.preSnap = nil
	mapStart := o.mapStart
	info := o.currentMap
	ws := o.waystone
	o.mu.Unlock()

	// Phase 1: precondition. No side effects on failure.
	if pre == nil {
		o.logger.Warn("post flow without pre snapshot")
		o.notifier.Notify("Map tracking", "No PRE snapshot held; start a map first.")
		return false
	}

	// The snapshot is already spent; a later failure must not leave the
	// rest of the per-map state behind for the next attempt either.
	defer o.clearRun()

	// Phase 2: POST snapshot.
	post := simulated
	if post == nil {
		var err error
		post, err = o.snaps.Take(ctx, o.subjectID, snapshot.KindPost)
		if err != nil {
			o.logger.Error("post flow: snapshot failed", "error", err)
			return false
		}
	}

	// Phase 3: diff.
	d := diff.Diff(pre.Items, post.Items)

	// Phase 4: valuation of the added items.
	val, err := o.valuer.Value(ctx, d.Added)
	if err != nil {
		o.logger.Error("post flow: valuation failed", "error", err)
		return false
	}

	// Phase 5: read session metrics before the mutation.
	before := o.agg.Progress()

	// Phase 6: the single mutation point for completed-map accounting.
	o.agg.CompleteMap(val.TotalExalted)

	runtime := o.now().Sub(mapStart)
	drops := dropRecords(val.Items)
	o.agg.UpdateMapCompletion(session.MapRecord{
		Name:        info.Name,
		Value:       val.TotalExalted,
		Runtime:     runtime,
		CompletedAt: o.now(),
	}, drops)
	after := o.agg.Progress()

	// Phase 7: notification with both pre- and post-update metrics.
	o.notifier.Notify("Map completed", fmt.Sprintf(
		"%s: %.2f ex in %s (session avg %.2f → %.2f, %d maps)",
		info.Name, val.TotalExalted, runtime.Round(time.Second),
		before.AvgValue, after.AvgValue, after.MapsCompleted,
	))

	// Phase 8: persist the run record.
	rec := o.runRecord(info, ws, val, d, runtime)
	if err := o.journal.AppendRun(rec); err != nil {
		o.logger.Error("post flow: journal append failed", "error", err)
		return false
	}
	if o.store != nil {
		if err := o.store.InsertRun(rec); err != nil {
			// The journal is the source of truth; a mirror failure does
			// not fail the flow.
			o.logger.Warn("post flow: store mirror failed", "error", err)
		}
	}

	o.logger.Info("map completed",
		"map", info.Name,
		"value_exalted", val.TotalExalted,
		"runtime", runtime.Round(time.Second),
		"added", len(d.Added),
		"removed", len(d.Removed),
	)

	// Phase 9 (clearRun, deferred): reset per-map state; the cached
	// waystone attributes survive deliberately.
	return true
}

// clearRun resets the per-map state. Cached waystone attributes are kept.
func (o *Orchestrator) clearRun() {
	o.mu.Lock()
	o.preSnap = nil
	o.mapStart = time.Time{}
	o.currentMap = MapInfo{}
	o.mu.Unlock()
}

// resolveMap asks the resolver for the current map, degrading to an
// "Unknown" placeholder instead of aborting the flow.
func (o *Orchestrator) resolveMap() MapInfo {
	if o.resolver != nil {
		if info, ok := o.resolver.CurrentMap(); ok {
			return info
		}
	}
	return MapInfo{Name: "Unknown", Source: "unresolved"}
}

// waystoneTier matches the tier out of a waystone type line, e.g.
// "Waystone (Tier 12)".
var waystoneTier = regexp.MustCompile(`Waystone \(Tier (\d+)\)`)

// AnalyzeWaystone takes a WAYSTONE-tagged snapshot and caches the first
// waystone's attributes for the next run record. Triggered when the
// player returns to a safe target from a trigger zone.
func (o *Orchestrator) AnalyzeWaystone(ctx context.Context) bool {
	snap, err := o.snaps.Take(ctx, o.subjectID, snapshot.KindWaystone)
	if err != nil {
		o.logger.Warn("waystone analysis: snapshot failed", "error", err)
		return false
	}
	for _, it := range snap.Items {
		m := waystoneTier.FindStringSubmatch(it.TypeLine)
		if m == nil {
			continue
		}
		tier, _ := strconv.Atoi(m[1])
		o.mu.Lock()
		o.waystone = &Waystone{Tier: tier}
		o.mu.Unlock()
		o.logger.Info("waystone cached", "tier", tier)
		return true
	}
	return false
}

// CacheWaystone stores waystone attributes directly (overlay/UI path).
func (o *Orchestrator) CacheWaystone(ws Waystone) {
	o.mu.Lock()
	o.waystone = &ws
	o.mu.Unlock()
}

// StartSession writes the session-start record for the aggregator's
// current session.
func (o *Orchestrator) StartSession() error {
	id := o.agg.ID()
	at := o.agg.StartedAt()
	if o.store != nil {
		if err := o.store.InsertSessionStart(id, o.subjectID, at); err != nil {
			o.logger.Warn("session start mirror failed", "error", err)
		}
	}
	return o.journal.AppendSessionStart(id, o.subjectID, at)
}

// EndSession writes the session-end record with final totals. Called on
// shutdown and before starting a new session.
func (o *Orchestrator) EndSession() error {
	p := o.agg.Progress()
	at := o.now()
	if o.store != nil {
		if err := o.store.CloseSession(p.SessionID, at, p.Elapsed, p.TotalValue, p.MapsCompleted); err != nil {
			o.logger.Warn("session end mirror failed", "error", err)
		}
	}
	return o.journal.AppendSessionEnd(p.SessionID, o.subjectID, at, p.Elapsed, p.TotalValue, p.MapsCompleted)
}

// NewSession ends the current session, rotates the aggregator to a fresh
// session id and records the new start.
func (o *Orchestrator) NewSession() error {
	if err := o.EndSession(); err != nil {
		o.logger.Warn("ending previous session failed", "error", err)
	}
	o.agg.NewSession()
	o.clearRun()
	return o.StartSession()
}

// ResetRecords clears the aggregator's map records and drop ranking
// without rotating the session id.
func (o *Orchestrator) ResetRecords() {
	o.agg.Reset()
}

// runRecord assembles the persisted record for a completed run.
func (o *Orchestrator) runRecord(info MapInfo, ws *Waystone, val *valuation.Result, d diff.Result, runtime time.Duration) journal.RunRecord {
	rec := journal.RunRecord{
		RunID:             uuid.NewString(),
		SessionID:         o.agg.ID(),
		Timestamp:         o.now(),
		SubjectID:         o.subjectID,
		Map: journal.MapInfo{
			Name:   info.Name,
			Level:  info.Level,
			Seed:   info.Seed,
			Source: info.Source,
		},
		MapValue:          val.TotalExalted,
		MapRuntimeSeconds: runtime.Seconds(),
		AddedCount:        len(d.Added),
		RemovedCount:      len(d.Removed),
		Added:             itemLines(d.Added),
		Removed:           itemLines(d.Removed),
	}
	if ws != nil {
		rec.Map.WaystoneTier = ws.Tier
		rec.Map.AreaModifiers = ws.Modifiers
	}
	return rec
}

func itemLines(items []snapshot.ItemRecord) []journal.ItemLine {
	out := make([]journal.ItemLine, len(items))
	for i, it := range items {
		stack := it.StackSize
		if stack < 1 {
			stack = 1
		}
		out[i] = journal.ItemLine{Name: it.DisplayName(), Stack: stack}
	}
	return out
}

func dropRecords(items []valuation.ItemValue) []session.DropRecord {
	out := make([]session.DropRecord, len(items))
	for i, iv := range items {
		stack := iv.Item.StackSize
		if stack < 1 {
			stack = 1
		}
		out[i] = session.DropRecord{
			Name:        iv.Item.DisplayName(),
			Stack:       stack,
			ExaltedEach: iv.ExaltedEach,
			Value:       iv.ExaltedTotal,
			Category:    string(iv.Category),
		}
	}
	return out
}
