package downloader

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/caracaldl/caracal/internal/engine/fetcher"
	"github.com/caracaldl/caracal/internal/engine/transfer"
)

// memFetcher serves FetchBytes/FetchAll from an in-memory buffer, grounded
// on the same contract fetcher.HTTPFetcher honors.
type memFetcher struct {
	data []byte
}

func (f *memFetcher) FetchMetadata() fetcher.Metadata {
	return fetcher.Metadata{Length: uint64(len(f.data)), Filename: "test.bin"}
}
func (f *memFetcher) SupportsRangeRequest() bool { return true }
func (f *memFetcher) Close() error               { return nil }

func (f *memFetcher) FetchBytes(ctx context.Context, start, end uint64) (fetcher.ByteStream, error) {
	return &memStream{data: f.data[start : end+1]}, nil
}

func (f *memFetcher) FetchAll(ctx context.Context) (fetcher.ByteStream, error) {
	return &memStream{data: f.data}, nil
}

type memStream struct {
	data []byte
	sent bool
}

func (s *memStream) Next(ctx context.Context) ([]byte, bool, error) {
	if s.sent {
		return nil, false, nil
	}
	s.sent = true
	if len(s.data) == 0 {
		return nil, false, nil
	}
	return s.data, true, nil
}
func (s *memStream) Close() error { return nil }

func TestServeCompletesWholeTransfer(t *testing.T) {
	dir := t.TempDir()
	sinkPath := dir + "/out.bin"
	sink, err := os.OpenFile(sinkPath, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	defer sink.Close()

	payload := make([]byte, 300)
	for i := range payload {
		payload[i] = byte(i)
	}
	status, err := transfer.New(uint64(len(payload)), 100)
	require.NoError(t, err)

	d := New(sinkPath, []string{"http://example.test/file"}, sink, &memFetcher{data: payload}, status, 3, false)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, d.Start(ctx))
	summary := d.Join(ctx)
	require.True(t, summary.Completed)
	require.True(t, summary.Status.IsCompleted())
	require.Equal(t, uint64(len(payload)), summary.Status.TotalReceived())

	got, err := os.ReadFile(sinkPath)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestPauseThenResumeFinishes(t *testing.T) {
	dir := t.TempDir()
	sinkPath := dir + "/out.bin"
	sink, err := os.OpenFile(sinkPath, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	defer sink.Close()

	payload := make([]byte, 500)
	status, err := transfer.New(uint64(len(payload)), 50)
	require.NoError(t, err)

	d := New(sinkPath, []string{"http://example.test/file"}, sink, &memFetcher{data: payload}, status, 2, false)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, d.Start(ctx))
	time.Sleep(5 * time.Millisecond)
	summary := d.Pause(ctx)

	require.NoError(t, d.Resume(ctx))
	final := d.Join(ctx)
	require.True(t, final.Completed || summary.Completed)
}

func TestStartTwiceIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	sinkPath := dir + "/out.bin"
	sink, err := os.OpenFile(sinkPath, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	defer sink.Close()

	payload := make([]byte, 10)
	status, err := transfer.New(uint64(len(payload)), 100)
	require.NoError(t, err)

	d := New(sinkPath, []string{"http://example.test/file"}, sink, &memFetcher{data: payload}, status, 1, false)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, d.Start(ctx))
	require.NoError(t, d.Start(ctx))
	summary := d.Join(ctx)
	require.True(t, summary.Completed)
}

func TestSimpleModeStreamsSequentially(t *testing.T) {
	dir := t.TempDir()
	sinkPath := dir + "/out.bin"
	sink, err := os.OpenFile(sinkPath, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	defer sink.Close()

	payload := []byte("no-range-support-payload")
	status := transfer.Unknown()

	d := New(sinkPath, []string{"http://example.test/file"}, sink, &memFetcher{data: payload}, status, 1, true)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, d.Start(ctx))
	summary := d.Join(ctx)
	require.True(t, summary.Completed)

	got, err := os.ReadFile(sinkPath)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}
