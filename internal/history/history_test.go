package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/caracaldl/caracal/internal/scheduler"
)

func openTestStore(t *testing.T) *Store {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsertThenGet(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()

	r := Record{
		TaskID: 1, URI: "http://example.test/file.bin", OutputPath: "/tmp/file.bin",
		State: scheduler.Downloading, Priority: 5, TotalLength: 1000, Received: 250,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.Upsert(r))

	got, ok, err := s.Get(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, r.URI, got.URI)
	require.Equal(t, scheduler.Downloading, got.State)
	require.Equal(t, uint64(250), got.Received)
}

func TestUpsertOverwritesProgress(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()

	require.NoError(t, s.Upsert(Record{TaskID: 1, URI: "http://example.test/a", OutputPath: "/tmp/a",
		State: scheduler.Downloading, TotalLength: 1000, Received: 100, CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, s.Upsert(Record{TaskID: 1, URI: "http://example.test/a", OutputPath: "/tmp/a",
		State: scheduler.Completed, TotalLength: 1000, Received: 1000, CreatedAt: now, UpdatedAt: now}))

	got, ok, err := s.Get(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, scheduler.Completed, got.State)
	require.Equal(t, uint64(1000), got.Received)
}

func TestGetMissingReturnsFalse(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.Get(999)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestListOrdersByUpdatedAtDesc(t *testing.T) {
	s := openTestStore(t)
	older := time.Now().Add(-time.Hour)
	newer := time.Now()

	require.NoError(t, s.Upsert(Record{TaskID: 1, URI: "a", OutputPath: "/tmp/a", State: scheduler.Completed,
		CreatedAt: older, UpdatedAt: older}))
	require.NoError(t, s.Upsert(Record{TaskID: 2, URI: "b", OutputPath: "/tmp/b", State: scheduler.Completed,
		CreatedAt: newer, UpdatedAt: newer}))

	all, err := s.List()
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, int64(2), all[0].TaskID)
}

func TestRemoveDeletesRow(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	require.NoError(t, s.Upsert(Record{TaskID: 1, URI: "a", OutputPath: "/tmp/a", State: scheduler.Paused,
		CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, s.Remove(1))

	_, ok, err := s.Get(1)
	require.NoError(t, err)
	require.False(t, ok)
}
