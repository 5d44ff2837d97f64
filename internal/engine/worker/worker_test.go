package worker

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/caracaldl/caracal/internal/engine/chunk"
	"github.com/caracaldl/caracal/internal/engine/fetcher"
)

// oneShotQueue hands out a fixed list of chunks then reports closed.
type oneShotQueue struct {
	mu     sync.Mutex
	chunks []chunk.Chunk
}

func (q *oneShotQueue) Pop(ctx context.Context) (chunk.Chunk, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.chunks) == 0 {
		return chunk.Chunk{}, false
	}
	c := q.chunks[0]
	q.chunks = q.chunks[1:]
	return c, true
}

type memFetcher struct{ data []byte }

func (f *memFetcher) FetchMetadata() fetcher.Metadata {
	return fetcher.Metadata{Length: uint64(len(f.data))}
}
func (f *memFetcher) SupportsRangeRequest() bool { return true }
func (f *memFetcher) FetchBytes(ctx context.Context, start, end uint64) (fetcher.ByteStream, error) {
	return &memStream{data: f.data[start : end+1]}, nil
}
func (f *memFetcher) FetchAll(ctx context.Context) (fetcher.ByteStream, error) {
	return &memStream{data: f.data}, nil
}
func (f *memFetcher) Close() error { return nil }

type memStream struct {
	data []byte
	sent bool
}

func (s *memStream) Next(ctx context.Context) ([]byte, bool, error) {
	if s.sent {
		return nil, false, nil
	}
	s.sent = true
	return s.data, true, nil
}
func (s *memStream) Close() error { return nil }

type sinkBuf struct {
	mu  sync.Mutex
	buf []byte
}

func newSinkBuf(size int) *sinkBuf { return &sinkBuf{buf: make([]byte, size)} }

func (s *sinkBuf) WriteAt(p []byte, off int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy(s.buf[off:], p)
	return len(p), nil
}

func TestServeDrainsQueueAndEmitsLifecycleEvents(t *testing.T) {
	payload := []byte("hello world, this is a chunk of data")
	q := &oneShotQueue{chunks: []chunk.Chunk{{Start: 0, End: uint64(len(payload) - 1)}}}
	sink := newSinkBuf(len(payload))
	var sinkMu sync.Mutex
	events := make(chan Event, 16)

	w, _ := NewWorker(1, sink, &sinkMu, &memFetcher{data: payload}, q, events)
	w.Serve(context.Background())
	close(events)

	var gotStart, gotCompleted bool
	var lastReceived uint64
	for ev := range events {
		switch e := ev.(type) {
		case ChunkTransferStarted:
			gotStart = true
		case UpdateChunkTransferProgress:
			lastReceived = e.Received
		case ChunkTransferCompleted:
			gotCompleted = true
		}
	}

	require.True(t, gotStart)
	require.True(t, gotCompleted)
	require.Equal(t, uint64(len(payload)), lastReceived)
	require.True(t, bytes.Equal(payload, sink.buf))
}

func TestServeChunkAlreadyCompleteSkipsFetch(t *testing.T) {
	c := chunk.Chunk{Start: 0, End: 9, Received: 10}
	q := &oneShotQueue{chunks: []chunk.Chunk{c}}
	sink := newSinkBuf(10)
	var sinkMu sync.Mutex
	events := make(chan Event, 4)

	w, _ := NewWorker(2, sink, &sinkMu, &memFetcher{data: make([]byte, 10)}, q, events)
	removed := w.serveChunk(context.Background(), c)
	close(events)

	require.False(t, removed)
	var sawCompleted bool
	for ev := range events {
		if _, ok := ev.(ChunkTransferCompleted); ok {
			sawCompleted = true
		}
	}
	require.True(t, sawCompleted)
}

// blockingFetcher hands out a ByteStream whose first Next call blocks until
// released, so a test can deterministically interrupt a worker mid-chunk.
type blockingFetcher struct {
	gate chan struct{}
	size uint64
}

func (f *blockingFetcher) FetchMetadata() fetcher.Metadata { return fetcher.Metadata{Length: f.size} }
func (f *blockingFetcher) SupportsRangeRequest() bool      { return true }
func (f *blockingFetcher) Close() error                    { return nil }
func (f *blockingFetcher) FetchAll(ctx context.Context) (fetcher.ByteStream, error) {
	return &blockingStream{gate: f.gate}, nil
}
func (f *blockingFetcher) FetchBytes(ctx context.Context, start, end uint64) (fetcher.ByteStream, error) {
	return &blockingStream{gate: f.gate}, nil
}

type blockingStream struct{ gate chan struct{} }

func (s *blockingStream) Next(ctx context.Context) ([]byte, bool, error) {
	select {
	case <-s.gate:
		return nil, false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}
func (s *blockingStream) Close() error { return nil }

func TestSendControlRemoveStopsServeChunkMidStream(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)

	sink := newSinkBuf(100)
	var sinkMu sync.Mutex
	events := make(chan Event, 16)

	w, control := NewWorker(3, sink, &sinkMu, &blockingFetcher{gate: gate, size: 100}, &oneShotQueue{}, events)

	done := make(chan bool, 1)
	go func() {
		done <- w.serveChunk(context.Background(), chunk.Chunk{Start: 0, End: 99})
	}()

	SendControl(control, Remove)
	removed := <-done
	require.True(t, removed)
}
