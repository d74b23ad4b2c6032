package eventstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT    NOT NULL,
	event_type TEXT    NOT NULL,
	subject    TEXT    NOT NULL DEFAULT '',
	at_ms      INTEGER NOT NULL,
	payload    BLOB    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id, seq);
CREATE INDEX IF NOT EXISTS idx_events_at ON events(at_ms);
`

const selectEvents = `SELECT seq, run_id, event_type, subject, at_ms, payload FROM events`

const selectRuns = `
SELECT run_id,
       COALESCE(MAX(CASE WHEN event_type = ? THEN subject END), ''),
       MIN(at_ms),
       MAX(at_ms),
       COUNT(*)
FROM events
GROUP BY run_id
ORDER BY MIN(seq) DESC
LIMIT ?`

// SQLiteStore is a Store backed by a SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the journal at path. ":memory:" gives a
// throwaway in-memory journal.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// one connection keeps ":memory:" shared and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Append stores e. A zero timestamp is replaced with the current time.
func (s *SQLiteStore) Append(ctx context.Context, e Event) error {
	at := e.Timestamp()
	if at.IsZero() {
		at = time.Now()
	}
	payload := e.Payload()
	if payload == nil {
		payload = []byte("{}")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (run_id, event_type, subject, at_ms, payload) VALUES (?, ?, ?, ?, ?)`,
		e.RunID(), e.Type(), e.Subject(), at.UnixMilli(), payload,
	)
	if err != nil {
		return fmt.Errorf("insert %s event: %w", e.Type(), err)
	}
	return nil
}

// GetByRunID returns the events of one run in append order.
func (s *SQLiteStore) GetByRunID(ctx context.Context, runID string) ([]Event, error) {
	return s.query(ctx, selectEvents+` WHERE run_id = ? ORDER BY seq`, runID)
}

// GetRange returns events recorded between start and end, inclusive.
func (s *SQLiteStore) GetRange(ctx context.Context, start, end time.Time) ([]Event, error) {
	return s.query(ctx, selectEvents+` WHERE at_ms BETWEEN ? AND ? ORDER BY seq`,
		start.UnixMilli(), end.UnixMilli())
}

// Runs summarizes the journaled runs, newest first.
func (s *SQLiteStore) Runs(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, selectRuns, TypeRunStarted, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var first, last int64
		if err := rows.Scan(&r.RunID, &r.Mode, &first, &last, &r.Events); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Started = time.UnixMilli(first)
		r.Last = time.UnixMilli(last)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []Event
	for rows.Next() {
		var r Record
		var at int64
		if err := rows.Scan(&r.Seq, &r.Run, &r.Kind, &r.About, &at, &r.Body); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		r.At = time.UnixMilli(at)
		events = append(events, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
