// Package session accumulates completed-run statistics for one tracking
// session: cumulative value, running averages and a bounded top-K ranking
// of the most valuable drops.
//
// The Aggregator is constructor-injected into its single owner (the flow
// orchestrator); it is never reachable as a shared global. CompleteMap is
// called exactly once per finished run, from exactly one call site.
package session

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TopDropLimit bounds the per-map and per-session drop rankings.
const TopDropLimit = 3

// DropRecord is one valued drop, kept for ranking and display.
type DropRecord struct {
	Name        string  `json:"name"`
	Stack       int     `json:"stack"`
	ExaltedEach float64 `json:"exaltedEach"`
	Value       float64 `json:"value"`
	Category    string  `json:"category,omitempty"`
}

// MapRecord summarizes one completed run.
type MapRecord struct {
	Name        string        `json:"name"`
	Value       float64       `json:"value"`
	Runtime     time.Duration `json:"runtime"`
	CompletedAt time.Time     `json:"completedAt"`
	TopDrops    []DropRecord  `json:"topDrops,omitempty"`
}

// Progress is a point-in-time view of session totals. Averages are
// computed on demand, never stored.
type Progress struct {
	SessionID      string
	StartedAt      time.Time
	Elapsed        time.Duration
	MapsCompleted  int
	TotalValue     float64
	AvgValue       float64
	AvgTimeMinutes float64
}

// Aggregator owns the mutable session state.
type Aggregator struct {
	mu            sync.Mutex
	id            string
	startedAt     time.Time
	mapsCompleted int
	totalValue    float64
	lastMap       *MapRecord
	bestMap       *MapRecord
	topDrops      []DropRecord

	now func() time.Time
}

// New creates an aggregator with a fresh session id.
func New() *Aggregator {
	return newWithClock(time.Now)
}

// newWithClock is New with an injectable clock for tests.
func newWithClock(now func() time.Time) *Aggregator {
	a := &Aggregator{now: now}
	a.id = uuid.NewString()
	a.startedAt = now()
	return a
}

// ID returns the current session id.
func (a *Aggregator) ID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.id
}

// StartedAt returns the session start time.
func (a *Aggregator) StartedAt() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.startedAt
}

// CompleteMap counts one finished run. MapsCompleted always increments;
// the value is added to the total only when positive, so zero, negative
// and NaN-adjacent garbage can never corrupt the cumulative totals.
//
// Called only from the orchestrator's POST flow.
func (a *Aggregator) CompleteMap(value float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.mapsCompleted++
	if value > 0 {
		a.totalValue += value
	}
}

// Progress computes the current totals and derived averages.
func (a *Aggregator) Progress() Progress {
	a.mu.Lock()
	defer a.mu.Unlock()

	p := Progress{
		SessionID:     a.id,
		StartedAt:     a.startedAt,
		Elapsed:       a.now().Sub(a.startedAt),
		MapsCompleted: a.mapsCompleted,
		TotalValue:    a.totalValue,
	}
	if a.mapsCompleted > 0 {
		p.AvgValue = a.totalValue / float64(a.mapsCompleted)
		p.AvgTimeMinutes = p.Elapsed.Minutes() / float64(a.mapsCompleted)
	}
	return p
}

// UpdateMapCompletion records the finished run's summary: it replaces the
// last-map record, promotes it to best-map when its value is strictly
// greater, and merges its drops into the bounded session ranking.
func (a *Aggregator) UpdateMapCompletion(rec MapRecord, drops []DropRecord) {
	rec.TopDrops = topDrops(drops, TopDropLimit)

	a.mu.Lock()
	defer a.mu.Unlock()

	a.lastMap = &rec
	if a.bestMap == nil || rec.Value > a.bestMap.Value {
		best := rec
		a.bestMap = &best
	}
	merged := append(append([]DropRecord{}, a.topDrops...), rec.TopDrops...)
	a.topDrops = topDrops(merged, TopDropLimit)
}

// LastMap returns a copy of the most recent run record, if any.
func (a *Aggregator) LastMap() (MapRecord, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lastMap == nil {
		return MapRecord{}, false
	}
	return *a.lastMap, true
}

// BestMap returns a copy of the highest-value run record, if any.
func (a *Aggregator) BestMap() (MapRecord, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bestMap == nil {
		return MapRecord{}, false
	}
	return *a.bestMap, true
}

// TopDrops returns a copy of the session's bounded drop ranking.
func (a *Aggregator) TopDrops() []DropRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]DropRecord, len(a.topDrops))
	copy(out, a.topDrops)
	return out
}

// Reset clears the per-map records and the drop ranking but keeps the
// session id and counters. Starting a brand-new session is NewSession.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastMap = nil
	a.bestMap = nil
	a.topDrops = nil
}

// NewSession discards all state and starts over under a fresh session id.
func (a *Aggregator) NewSession() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.id = uuid.NewString()
	a.startedAt = a.now()
	a.mapsCompleted = 0
	a.totalValue = 0
	a.lastMap = nil
	a.bestMap = nil
	a.topDrops = nil
}

// topDrops filters to positive values, sorts descending (stable, so ties
// keep first-seen order) and truncates to limit.
func topDrops(drops []DropRecord, limit int) []DropRecord {
	ranked := make([]DropRecord, 0, len(drops))
	for _, d := range drops {
		if d.Value > 0 {
			ranked = append(ranked, d)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Value > ranked[j].Value
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
