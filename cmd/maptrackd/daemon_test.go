package main

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maptrack/internal/flow"
	"maptrack/internal/journal"
	"maptrack/internal/session"
	"maptrack/internal/snapshot"
	"maptrack/internal/valuation"
)

// scriptedFetcher serves a fixed sequence of inventories.
type scriptedFetcher struct {
	mu    sync.Mutex
	calls int
	items [][]snapshot.ItemRecord
}

func (f *scriptedFetcher) FetchInventory(context.Context, string, string) ([]snapshot.ItemRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i < len(f.items) {
		return f.items[i], nil
	}
	return nil, nil
}

// slowValuer keeps the flow in progress long enough for shutdown to race
// it.
type slowValuer struct{ delay time.Duration }

func (v slowValuer) Value(_ context.Context, items []snapshot.ItemRecord) (*valuation.Result, error) {
	time.Sleep(v.delay)
	values := make([]valuation.ItemValue, len(items))
	for i, it := range items {
		values[i] = valuation.ItemValue{Item: it, ExaltedEach: 1}
	}
	return valuation.Finalize(values), nil
}

func TestShutdownDrainsQueuedTriggers(t *testing.T) {
	dir := t.TempDir()
	runsPath := filepath.Join(dir, "runs.jsonl")
	sessionsPath := filepath.Join(dir, "sessions.jsonl")
	jw := journal.NewWriter(runsPath, sessionsPath, false, nil)

	fetcher := &scriptedFetcher{items: [][]snapshot.ItemRecord{
		{},
		{{ID: "b", TypeLine: "Exalted Orb"}},
	}}
	svc := snapshot.NewService(fetcher, 0, "token", nil)
	orch := flow.New(svc, slowValuer{delay: 50 * time.Millisecond}, session.New(),
		nil, jw, nil, nil, "subject", nil)

	triggers := make(chan trigger, 8)
	stop := make(chan struct{})
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		flowWorker(triggers, stop, orch)
	}()

	// Shutdown with a full run still queued: close the channel and wait
	// for the worker, the way the daemon does.
	triggers <- trigger{kind: "pre"}
	triggers <- trigger{kind: "post"}
	close(triggers)

	select {
	case <-workerDone:
	case <-time.After(5 * time.Second):
		t.Fatal("flow worker did not drain queued triggers")
	}

	// The queued run completed before the worker exited, so the session
	// end record written next carries its totals.
	p := orch.Progress()
	require.Equal(t, 1, p.MapsCompleted)
	require.NoError(t, orch.EndSession())

	f, err := os.Open(sessionsPath)
	require.NoError(t, err)
	defer f.Close()

	var last journal.SessionRecord
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		require.NoError(t, json.Unmarshal(sc.Bytes(), &last))
	}
	require.NoError(t, sc.Err())
	assert.Equal(t, journal.TypeSessionEnd, last.Type)
	assert.Equal(t, 1, last.TotalMaps)
}
