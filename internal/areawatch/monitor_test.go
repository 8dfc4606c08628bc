package areawatch

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects fired callbacks.
type recorder struct {
	enters   []Event
	exits    []Event
	triggers []Event
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnMapEnter:         func(ev Event) { r.enters = append(r.enters, ev) },
		OnMapExit:          func(ev Event) { r.exits = append(r.exits, ev) },
		OnTriggerZoneEnter: func(ev Event) { r.triggers = append(r.triggers, ev) },
	}
}

func newTestMonitor(t *testing.T, rec *recorder) *Monitor {
	t.Helper()
	return New(Options{Path: "unused.log"}, nil, rec.callbacks(), nil)
}

func feed(m *Monitor, codes ...string) {
	for i, code := range codes {
		m.handleEvent(Event{
			Time:     time.Now(),
			Level:    65,
			AreaCode: code,
			Seed:     i + 1,
		})
	}
}

func TestRunWithSubZoneDetour(t *testing.T) {
	rec := &recorder{}
	m := newTestMonitor(t, rec)

	// Enter a map, dip into a pocket, come back, return to town:
	// exactly one enter and one exit, nothing for the detour.
	feed(m, "G1_town", "MapSteppe", "MapAbyss_Pocket", "MapSteppe", "G1_town")

	require.Len(t, rec.enters, 1)
	assert.Equal(t, "MapSteppe", rec.enters[0].AreaCode)
	require.Len(t, rec.exits, 1)
	assert.Equal(t, "MapSteppe", rec.exits[0].AreaCode)
	assert.Empty(t, rec.triggers)

	st := m.Status()
	assert.False(t, st.InMap)
	assert.Equal(t, "G1_town", st.CurrentArea)
}

func TestDistinctMapWhileInMap(t *testing.T) {
	rec := &recorder{}
	m := newTestMonitor(t, rec)

	// A second map not preceded by a sub-zone is a new run.
	feed(m, "G1_town", "MapSteppe", "MapVaalCity")

	require.Len(t, rec.enters, 2)
	assert.Equal(t, "MapSteppe", rec.enters[0].AreaCode)
	assert.Equal(t, "MapVaalCity", rec.enters[1].AreaCode)
	assert.Empty(t, rec.exits)

	st := m.Status()
	assert.True(t, st.InMap)
	require.NotNil(t, st.CurrentMap)
	assert.Equal(t, "MapVaalCity", st.CurrentMap.AreaCode)
}

func TestSubZoneDoesNotEndRun(t *testing.T) {
	rec := &recorder{}
	m := newTestMonitor(t, rec)

	feed(m, "MapSteppe", "BreachDomain")

	st := m.Status()
	assert.True(t, st.InMap)
	assert.Equal(t, "BreachDomain", st.CurrentArea)
	require.NotNil(t, st.CurrentMap)
	assert.Equal(t, "MapSteppe", st.CurrentMap.AreaCode)
	assert.Len(t, rec.enters, 1)
	assert.Empty(t, rec.exits)
}

func TestExitReportsEntryMapInfo(t *testing.T) {
	rec := &recorder{}
	m := newTestMonitor(t, rec)

	feed(m, "MapSteppe", "MapAbyss_Pocket", "HideoutFelled")

	require.Len(t, rec.exits, 1)
	// The exit callback carries the map captured at entry, not the
	// hideout and not the pocket.
	assert.Equal(t, "MapSteppe", rec.exits[0].AreaCode)
	assert.Equal(t, 1, rec.exits[0].Seed)
}

func TestTriggerZoneIntoSafeTarget(t *testing.T) {
	rec := &recorder{}
	m := newTestMonitor(t, rec)

	// Landing in a safe target directly from the trigger zone fires the
	// trigger callback instead of a map enter/exit pair.
	feed(m, "MapMonolith", "G1_town")

	require.Len(t, rec.triggers, 1)
	assert.Equal(t, "G1_town", rec.triggers[0].AreaCode)
	assert.Empty(t, rec.enters)
	assert.Empty(t, rec.exits)
}

func TestTriggerRequiresDesignatedTarget(t *testing.T) {
	rec := &recorder{}
	class := NewClassifier(func() ClassifierConfig {
		cfg := DefaultClassifierConfig()
		cfg.SafeTargets = []string{"G1_town"}
		return cfg
	}())
	m := New(Options{Path: "unused.log"}, class, rec.callbacks(), nil)

	feed(m, "MapMonolith", "HideoutFelled")
	assert.Empty(t, rec.triggers)

	feed(m, "MapMonolith", "G1_town")
	assert.Len(t, rec.triggers, 1)
}

func TestHistoryBounded(t *testing.T) {
	m := newTestMonitor(t, &recorder{})
	for i := 0; i < historyCap+10; i++ {
		feed(m, fmt.Sprintf("MapSteppe%d", i))
	}
	st := m.Status()
	assert.Len(t, st.History, historyCap)
	assert.Equal(t, fmt.Sprintf("MapSteppe%d", historyCap+9), st.History[len(st.History)-1].AreaCode)
}

func TestResetStateClearsRun(t *testing.T) {
	m := newTestMonitor(t, &recorder{})
	feed(m, "MapSteppe")

	m.ResetState()

	st := m.Status()
	assert.False(t, st.InMap)
	assert.Nil(t, st.CurrentMap)
	assert.Empty(t, st.History)
	assert.Empty(t, st.CurrentArea)
}

func logLine(code string, seed int) string {
	return fmt.Sprintf("2025/07/03 22:13:55 1 [INFO Client 7712] Generating level 65 area %q with seed %d\n", code, seed)
}

func appendLog(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	defer f.Close()
	_, err = f.WriteString(content)
	require.NoError(t, err)
}

func TestMonitorTailsAppendedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Client.txt")
	appendLog(t, path, "preexisting noise line\n")

	rec := &recorder{}
	m := New(Options{Path: path, PollInterval: 10 * time.Millisecond}, nil, rec.callbacks(), nil)
	require.NoError(t, m.Start())
	defer m.Stop()

	// Give the first scan a chance to latch onto the end of the file.
	require.Eventually(t, func() bool { return m.Status().Offset >= 0 },
		time.Second, 5*time.Millisecond)

	appendLog(t, path, logLine("MapSteppe", 7))
	require.Eventually(t, func() bool { return len(rec.enters) == 1 },
		2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "MapSteppe", rec.enters[0].AreaCode)

	appendLog(t, path, logLine("G1_town", 8))
	require.Eventually(t, func() bool { return len(rec.exits) == 1 },
		2*time.Second, 5*time.Millisecond)
}

func TestMonitorHandlesRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Client.txt")
	appendLog(t, path, "padding padding padding padding padding\n")

	rec := &recorder{}
	m := New(Options{Path: path, PollInterval: 10 * time.Millisecond}, nil, rec.callbacks(), nil)
	require.NoError(t, m.Start())
	defer m.Stop()

	require.Eventually(t, func() bool { return m.Status().Offset > 0 },
		time.Second, 5*time.Millisecond)

	// Rotate: replace with a shorter file, then append an event.
	require.NoError(t, os.WriteFile(path, []byte{}, 0o644))
	appendLog(t, path, logLine("MapSteppe", 9))

	require.Eventually(t, func() bool { return len(rec.enters) == 1 },
		2*time.Second, 5*time.Millisecond)
}

func TestMonitorWaitsForMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Client.txt")

	rec := &recorder{}
	m := New(Options{Path: path, PollInterval: 10 * time.Millisecond, FromStart: true}, nil, rec.callbacks(), nil)
	require.NoError(t, m.Start())
	defer m.Stop()

	time.Sleep(50 * time.Millisecond)
	appendLog(t, path, logLine("MapSteppe", 3))

	require.Eventually(t, func() bool { return len(rec.enters) == 1 },
		2*time.Second, 5*time.Millisecond)
}

func TestStopReturnsPromptly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Client.txt")
	appendLog(t, path, "x\n")

	m := New(Options{Path: path, PollInterval: 50 * time.Millisecond}, nil, Callbacks{}, nil)
	require.NoError(t, m.Start())

	start := time.Now()
	m.Stop()
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, m.Status().Running)
}
