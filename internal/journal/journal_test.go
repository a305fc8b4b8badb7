package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	bolt, err := OpenBolt(filepath.Join(t.TempDir(), "nested", "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { bolt.Close() })

	return map[string]Store{
		"bolt":   bolt,
		"memory": NewMemoryStore(),
	}
}

func TestStorePutAndGet(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			put, err := store.Put(Entry{
				AgentID:  "agent-1",
				RunID:    "run-1",
				Status:   "completed",
				Output:   "ok",
				Outcome:  "completed",
				Duration: 1500 * time.Millisecond,
			})
			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, put.ID)
			assert.Equal(t, uuid.Version(7), put.ID.Version())
			assert.False(t, put.RecordedAt.IsZero())

			got, err := store.Get(put.ID)
			require.NoError(t, err)
			assert.Equal(t, "run-1", got.RunID)
			assert.Equal(t, "ok", got.Output)
			assert.Equal(t, 1500*time.Millisecond, got.Duration)
			assert.True(t, put.RecordedAt.Equal(got.RecordedAt))

			_, err = store.Get(uuid.New())
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreListNewestFirst(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			var ids []uuid.UUID
			for _, run := range []string{"r1", "r2", "r3", "r4"} {
				e, err := store.Put(Entry{AgentID: "a", RunID: run})
				require.NoError(t, err)
				ids = append(ids, e.ID)
			}

			all, err := store.List(0)
			require.NoError(t, err)
			require.Len(t, all, 4)
			assert.Equal(t, []string{"r4", "r3", "r2", "r1"},
				[]string{all[0].RunID, all[1].RunID, all[2].RunID, all[3].RunID})

			two, err := store.List(2)
			require.NoError(t, err)
			require.Len(t, two, 2)
			assert.Equal(t, ids[3], two[0].ID)
		})
	}
}

func TestStoreClosed(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Close())
			require.NoError(t, store.Close())

			_, err := store.Put(Entry{AgentID: "a"})
			assert.ErrorIs(t, err, ErrClosed)
			_, err = store.List(0)
			assert.ErrorIs(t, err, ErrClosed)
			_, err = store.Get(uuid.New())
			assert.ErrorIs(t, err, ErrClosed)
		})
	}
}

func TestBoltStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	store, err := OpenBolt(path)
	require.NoError(t, err)
	e, err := store.Put(Entry{AgentID: "a", RunID: "persisted"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = OpenBolt(path)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Get(e.ID)
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.RunID)
	assert.Equal(t, path, store.Path())
}
