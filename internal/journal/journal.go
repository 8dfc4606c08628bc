// Package journal persists run and session records as append-only JSON
// Lines files. One object per line; the files are never rewritten.
package journal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ItemLine is one added or removed item in a run record.
type ItemLine struct {
	Name  string `json:"name"`
	Stack int    `json:"stack"`
}

// MapInfo identifies the map a run happened in.
type MapInfo struct {
	Name          string   `json:"name"`
	Level         int      `json:"level"`
	Seed          int      `json:"seed"`
	Source        string   `json:"source"`
	WaystoneTier  int      `json:"waystoneTier,omitempty"`
	AreaModifiers []string `json:"areaModifiers,omitempty"`
}

// RunRecord is the persisted summary of one completed run.
type RunRecord struct {
	RunID             string     `json:"runId"`
	SessionID         string     `json:"sessionId"`
	Timestamp         time.Time  `json:"timestamp"`
	SubjectID         string     `json:"subjectId"`
	Map               MapInfo    `json:"map"`
	MapValue          float64    `json:"mapValue"`
	MapRuntimeSeconds float64    `json:"mapRuntimeSeconds"`
	AddedCount        int        `json:"addedCount"`
	RemovedCount      int        `json:"removedCount"`
	Added             []ItemLine `json:"added"`
	Removed           []ItemLine `json:"removed"`
}

// SessionRecord marks a session boundary in the session journal. Type is
// "session_start" or "session_end"; the runtime and totals are only set
// on end records.
type SessionRecord struct {
	Type                  string    `json:"type"`
	SessionID             string    `json:"sessionId"`
	Timestamp             time.Time `json:"timestamp"`
	SubjectID             string    `json:"subjectId"`
	SessionRuntimeSeconds float64   `json:"sessionRuntimeSeconds,omitempty"`
	TotalValue            float64   `json:"totalValue,omitempty"`
	TotalMaps             int       `json:"totalMaps,omitempty"`
}

// Session record types.
const (
	TypeSessionStart = "session_start"
	TypeSessionEnd   = "session_end"
)

// Writer appends records to the two journal files. Appends are
// serialized; each record is written and optionally synced before the
// call returns.
type Writer struct {
	mu           sync.Mutex
	runsPath     string
	sessionsPath string
	sync         bool
	logger       *slog.Logger
}

// NewWriter creates a journal writer. Parent directories are created on
// first append.
func NewWriter(runsPath, sessionsPath string, syncWrites bool, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		runsPath:     runsPath,
		sessionsPath: sessionsPath,
		sync:         syncWrites,
		logger:       logger.With("component", "journal"),
	}
}

// AppendRun appends one run record to the run journal.
func (w *Writer) AppendRun(rec RunRecord) error {
	if rec.Added == nil {
		rec.Added = []ItemLine{}
	}
	if rec.Removed == nil {
		rec.Removed = []ItemLine{}
	}
	return w.append(w.runsPath, rec)
}

// AppendSessionStart marks a session start in the session journal.
func (w *Writer) AppendSessionStart(sessionID, subjectID string, at time.Time) error {
	return w.append(w.sessionsPath, SessionRecord{
		Type:      TypeSessionStart,
		SessionID: sessionID,
		Timestamp: at,
		SubjectID: subjectID,
	})
}

// AppendSessionEnd marks a session end with its final totals.
func (w *Writer) AppendSessionEnd(sessionID, subjectID string, at time.Time, runtime time.Duration, totalValue float64, totalMaps int) error {
	return w.append(w.sessionsPath, SessionRecord{
		Type:                  TypeSessionEnd,
		SessionID:             sessionID,
		Timestamp:             at,
		SubjectID:             subjectID,
		SessionRuntimeSeconds: runtime.Seconds(),
		TotalValue:            totalValue,
		TotalMaps:             totalMaps,
	})
}

func (w *Writer) append(path string, rec any) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("journal: marshal record: %w", err)
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("journal: create directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("journal: open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("journal: append to %s: %w", path, err)
	}
	if w.sync {
		if err := f.Sync(); err != nil {
			return fmt.Errorf("journal: sync %s: %w", path, err)
		}
	}
	return nil
}
