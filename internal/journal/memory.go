package journal

import (
	"bytes"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and for running without a
// journal file.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]Entry
	closed  bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[uuid.UUID]Entry)}
}

// Put implements Store.
func (s *MemoryStore) Put(e Entry) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return e, ErrClosed
	}
	e, err := prepare(e)
	if err != nil {
		return e, err
	}
	s.entries[e.ID] = e
	return e, nil
}

// Get implements Store.
func (s *MemoryStore) Get(id uuid.UUID) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Entry{}, ErrClosed
	}
	e, ok := s.entries[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

// List implements Store.
func (s *MemoryStore) List(limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	entries := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	// Same order as BoltStore: descending id bytes.
	slices.SortFunc(entries, func(a, b Entry) int {
		return bytes.Compare(b.ID[:], a.ID[:])
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
