package journal

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())
	return lines
}

func TestAppendRunIsOneLinePerRecord(t *testing.T) {
	dir := t.TempDir()
	runsPath := filepath.Join(dir, "runs.jsonl")
	w := NewWriter(runsPath, filepath.Join(dir, "sessions.jsonl"), false, nil)

	for i := 0; i < 3; i++ {
		require.NoError(t, w.AppendRun(RunRecord{
			RunID:     "run-" + string(rune('a'+i)),
			SessionID: "sess",
			Timestamp: time.Now(),
			Map:       MapInfo{Name: "Steppe", Level: 65},
		}))
	}

	lines := readLines(t, runsPath)
	require.Len(t, lines, 3)
	for _, line := range lines {
		var rec RunRecord
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		assert.Equal(t, "Steppe", rec.Map.Name)
	}
}

func TestAppendRunNormalizesNilSlices(t *testing.T) {
	dir := t.TempDir()
	runsPath := filepath.Join(dir, "runs.jsonl")
	w := NewWriter(runsPath, filepath.Join(dir, "sessions.jsonl"), false, nil)

	require.NoError(t, w.AppendRun(RunRecord{RunID: "r1"}))

	line := readLines(t, runsPath)[0]
	// Nil slices serialize as [], never null.
	assert.Contains(t, line, `"added":[]`)
	assert.Contains(t, line, `"removed":[]`)
}

func TestAppendRunCreatesParentDirectories(t *testing.T) {
	dir := t.TempDir()
	runsPath := filepath.Join(dir, "nested", "deeper", "runs.jsonl")
	w := NewWriter(runsPath, filepath.Join(dir, "sessions.jsonl"), false, nil)

	require.NoError(t, w.AppendRun(RunRecord{RunID: "r1"}))
	_, err := os.Stat(runsPath)
	assert.NoError(t, err)
}

func TestSessionRecordsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	sessionsPath := filepath.Join(dir, "sessions.jsonl")
	w := NewWriter(filepath.Join(dir, "runs.jsonl"), sessionsPath, true, nil)

	start := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	require.NoError(t, w.AppendSessionStart("sess-1", "subject", start))
	require.NoError(t, w.AppendSessionEnd("sess-1", "subject", start.Add(time.Hour), time.Hour, 42.5, 9))

	lines := readLines(t, sessionsPath)
	require.Len(t, lines, 2)

	var first, second SessionRecord
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))

	assert.Equal(t, TypeSessionStart, first.Type)
	assert.Equal(t, "sess-1", first.SessionID)
	assert.True(t, first.Timestamp.Equal(start))

	assert.Equal(t, TypeSessionEnd, second.Type)
	assert.InDelta(t, 3600, second.SessionRuntimeSeconds, 1e-9)
	assert.InDelta(t, 42.5, second.TotalValue, 1e-9)
	assert.Equal(t, 9, second.TotalMaps)
}

func TestAppendSurvivesConcurrentWriters(t *testing.T) {
	dir := t.TempDir()
	runsPath := filepath.Join(dir, "runs.jsonl")
	w := NewWriter(runsPath, filepath.Join(dir, "sessions.jsonl"), false, nil)

	done := make(chan struct{})
	for g := 0; g < 4; g++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 25; i++ {
				_ = w.AppendRun(RunRecord{RunID: "r", SessionID: "s", Timestamp: time.Now()})
			}
		}()
	}
	for g := 0; g < 4; g++ {
		<-done
	}

	lines := readLines(t, runsPath)
	assert.Len(t, lines, 100)
	for _, line := range lines {
		assert.True(t, json.Valid([]byte(line)), "interleaved write produced invalid JSON: %s", line)
	}
}
