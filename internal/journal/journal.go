// Package journal records the outcome of streamed agent runs so the CLI
// can list them later.
package journal

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned by Get for an unknown entry id.
	ErrNotFound = errors.New("journal: entry not found")

	// ErrClosed is returned by every method after Close.
	ErrClosed = errors.New("journal: store is closed")
)

// Entry is one finished run stream.
type Entry struct {
	// ID is a time-ordered (version 7) UUID; stores list entries in ID order.
	ID         uuid.UUID     `json:"id"`
	AgentID    string        `json:"agent_id"`
	RunID      string        `json:"run_id,omitempty"`
	Input      string        `json:"input,omitempty"`
	Status     string        `json:"status,omitempty"`
	Output     string        `json:"output,omitempty"`
	Error      string        `json:"error,omitempty"`
	Outcome    string        `json:"outcome"`
	RecordedAt time.Time     `json:"recorded_at"`
	Duration   time.Duration `json:"duration"`
}

// Store persists entries.
type Store interface {
	// Put stores e, assigning an ID and RecordedAt when they are zero,
	// and returns the stored entry.
	Put(e Entry) (Entry, error)

	// Get returns the entry with the given id.
	Get(id uuid.UUID) (Entry, error)

	// List returns up to limit entries, newest first. limit <= 0 means all.
	List(limit int) ([]Entry, error)

	Close() error
}

// prepare fills in the ID and RecordedAt of a new entry.
func prepare(e Entry) (Entry, error) {
	if e.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return e, err
		}
		e.ID = id
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}
	return e, nil
}
