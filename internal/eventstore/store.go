package eventstore

import (
	"context"
	"time"
)

// RunSummary describes one journaled run.
type RunSummary struct {
	RunID   string
	Mode    string
	Started time.Time
	Last    time.Time
	Events  int
}

// Store persists journal events.
type Store interface {
	Append(ctx context.Context, e Event) error
	GetByRunID(ctx context.Context, runID string) ([]Event, error)
	// GetRange returns events with start <= timestamp <= end.
	GetRange(ctx context.Context, start, end time.Time) ([]Event, error)
	// Runs returns the most recent runs first. limit <= 0 means all.
	Runs(ctx context.Context, limit int) ([]RunSummary, error)
	Close() error
}
