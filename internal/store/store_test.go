package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maptrack/internal/journal"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "maptrack.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func run(id string, ts time.Time, value float64) journal.RunRecord {
	return journal.RunRecord{
		RunID:             id,
		SessionID:         "sess-1",
		Timestamp:         ts,
		SubjectID:         "subject",
		Map:               journal.MapInfo{Name: "Steppe", Level: 65, Seed: 7, WaystoneTier: 10},
		MapValue:          value,
		MapRuntimeSeconds: 300,
		AddedCount:        2,
	}
}

func TestInsertAndListRuns(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.InsertSessionStart("sess-1", "subject", time.Now()))

	base := time.Now().Truncate(time.Second)
	require.NoError(t, s.InsertRun(run("r1", base, 1.5)))
	require.NoError(t, s.InsertRun(run("r2", base.Add(time.Minute), 4.0)))
	require.NoError(t, s.InsertRun(run("r3", base.Add(2*time.Minute), 0)))

	runs, err := s.RecentRuns(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	// Newest first.
	assert.Equal(t, "r3", runs[0].RunID)
	assert.Equal(t, "r2", runs[1].RunID)
	assert.Equal(t, "Steppe", runs[0].MapName)
	assert.InDelta(t, 4.0, runs[1].MapValue, 1e-9)
}

func TestInsertRunIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.InsertSessionStart("sess-1", "subject", time.Now()))

	rec := run("r1", time.Now(), 2)
	require.NoError(t, s.InsertRun(rec))
	rec.MapValue = 5
	require.NoError(t, s.InsertRun(rec))

	runs, err := s.RecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.InDelta(t, 5.0, runs[0].MapValue, 1e-9)
}

func TestSessionTotals(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.InsertSessionStart("sess-1", "subject", time.Now()))

	base := time.Now()
	require.NoError(t, s.InsertRun(run("r1", base, 1.5)))
	require.NoError(t, s.InsertRun(run("r2", base.Add(time.Minute), 2.5)))

	total, maps, err := s.SessionTotals("sess-1")
	require.NoError(t, err)
	assert.InDelta(t, 4.0, total, 1e-9)
	assert.Equal(t, 2, maps)

	total, maps, err = s.SessionTotals("missing")
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Zero(t, maps)
}

func TestSessionStartIdempotentAndClose(t *testing.T) {
	s := openTestStore(t)
	at := time.Now()
	require.NoError(t, s.InsertSessionStart("sess-1", "subject", at))
	require.NoError(t, s.InsertSessionStart("sess-1", "subject", at.Add(time.Hour)))
	require.NoError(t, s.CloseSession("sess-1", at.Add(2*time.Hour), 2*time.Hour, 10, 3))
}
