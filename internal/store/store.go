// Package store mirrors the journal into a SQLite database so run history
// can be queried without replaying JSONL files.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"maptrack/internal/journal"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    session_id      TEXT PRIMARY KEY,
    subject_id      TEXT NOT NULL,
    started_at      INTEGER NOT NULL,
    ended_at        INTEGER,
    runtime_seconds REAL,
    total_value     REAL,
    total_maps      INTEGER
);

CREATE TABLE IF NOT EXISTS runs (
    run_id          TEXT PRIMARY KEY,
    session_id      TEXT NOT NULL REFERENCES sessions(session_id),
    timestamp       INTEGER NOT NULL,
    subject_id      TEXT NOT NULL,
    map_name        TEXT NOT NULL,
    map_level       INTEGER NOT NULL,
    map_seed        INTEGER NOT NULL,
    waystone_tier   INTEGER,
    map_value       REAL NOT NULL,
    runtime_seconds REAL NOT NULL,
    added_count     INTEGER NOT NULL,
    removed_count   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_session ON runs(session_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON runs(timestamp);
`

// Store is the SQLite run-history mirror.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertSessionStart records a new session.
func (s *Store) InsertSessionStart(sessionID, subjectID string, at time.Time) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO sessions (session_id, subject_id, started_at) VALUES (?, ?, ?)`,
		sessionID, subjectID, at.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert session start: %w", err)
	}
	return nil
}

// CloseSession records a session's end time and final totals.
func (s *Store) CloseSession(sessionID string, at time.Time, runtime time.Duration, totalValue float64, totalMaps int) error {
	_, err := s.db.Exec(
		`UPDATE sessions SET ended_at = ?, runtime_seconds = ?, total_value = ?, total_maps = ? WHERE session_id = ?`,
		at.Unix(), runtime.Seconds(), totalValue, totalMaps, sessionID,
	)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}

// InsertRun mirrors one run record.
func (s *Store) InsertRun(rec journal.RunRecord) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO runs
		 (run_id, session_id, timestamp, subject_id, map_name, map_level, map_seed,
		  waystone_tier, map_value, runtime_seconds, added_count, removed_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.SessionID, rec.Timestamp.Unix(), rec.SubjectID,
		rec.Map.Name, rec.Map.Level, rec.Map.Seed,
		rec.Map.WaystoneTier, rec.MapValue, rec.MapRuntimeSeconds,
		rec.AddedCount, rec.RemovedCount,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RunSummary is one row of the recent-run listing.
type RunSummary struct {
	RunID          string
	SessionID      string
	Timestamp      time.Time
	MapName        string
	MapLevel       int
	MapValue       float64
	RuntimeSeconds float64
	AddedCount     int
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(limit int) ([]RunSummary, error) {
	rows, err := s.db.Query(
		`SELECT run_id, session_id, timestamp, map_name, map_level, map_value, runtime_seconds, added_count
		 FROM runs ORDER BY timestamp DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var ts int64
		if err := rows.Scan(&r.RunID, &r.SessionID, &ts, &r.MapName, &r.MapLevel, &r.MapValue, &r.RuntimeSeconds, &r.AddedCount); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Timestamp = time.Unix(ts, 0)
		out = append(out, r)
	}
	return out, rows.Err()
}

// SessionTotals aggregates the stored runs of one session.
func (s *Store) SessionTotals(sessionID string) (totalValue float64, totalMaps int, err error) {
	row := s.db.QueryRow(
		`SELECT COALESCE(SUM(map_value), 0), COUNT(*) FROM runs WHERE session_id = ?`, sessionID,
	)
	if err := row.Scan(&totalValue, &totalMaps); err != nil {
		return 0, 0, fmt.Errorf("session totals: %w", err)
	}
	return totalValue, totalMaps, nil
}
