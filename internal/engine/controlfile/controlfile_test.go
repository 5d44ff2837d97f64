package controlfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/caracaldl/caracal/internal/engine/transfer"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	sink := filepath.Join(dir, "file.bin")

	status, err := transfer.New(1000, 300)
	require.NoError(t, err)
	status.UpdateProgress(0, 150)
	status.UpdateProgress(300, 300)
	status.MarkChunkCompleted(300)

	cf, prior := New(sink, []string{"https://example.com/file.bin"})
	require.Nil(t, prior)
	require.NoError(t, cf.WriteStatus(status))
	require.FileExists(t, cf.Path())

	cf2, loaded := New(sink, []string{"https://example.com/file.bin"})
	require.NotNil(t, loaded)
	require.Equal(t, status.ContentLength, loaded.ContentLength)
	require.Equal(t, len(status.Chunks), len(loaded.Chunks))
	for start, c := range status.Chunks {
		got, ok := loaded.Chunks[start]
		require.True(t, ok)
		require.Equal(t, c.Received, got.Received)
		require.Equal(t, c.End, got.End)
	}
	_ = cf2
}

func TestCorruptFileIsLossy(t *testing.T) {
	dir := t.TempDir()
	sink := filepath.Join(dir, "file.bin")
	require.NoError(t, os.WriteFile(PathFor(sink), []byte("not json"), 0o644))

	_, loaded := New(sink, nil)
	require.Nil(t, loaded)
}

func TestMissingFileHasNoPrior(t *testing.T) {
	dir := t.TempDir()
	sink := filepath.Join(dir, "file.bin")
	_, loaded := New(sink, nil)
	require.Nil(t, loaded)
}

func TestRemoveIsBestEffort(t *testing.T) {
	dir := t.TempDir()
	sink := filepath.Join(dir, "file.bin")
	cf, _ := New(sink, nil)
	// Removing a sidecar that was never written must not panic.
	cf.Remove()
	require.False(t, Exists(sink))
}
