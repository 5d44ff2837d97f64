package downloader

import (
	"context"
	"sync"

	"github.com/caracaldl/caracal/internal/engine/chunk"
)

// chunkQueue is the unbounded MPMC queue workers pull chunks from. Grounded
// on the teacher's concurrent.TaskQueue: a mutex-guarded slice with a
// condition variable, rather than a fixed-capacity Go channel, so Push never
// blocks regardless of how many chunks AddWorker-driven splits produce.
type chunkQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	chunks []chunk.Chunk
	head   int
	closed bool
}

func newChunkQueue() *chunkQueue {
	q := &chunkQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues c and wakes one waiting worker.
func (q *chunkQueue) Push(c chunk.Chunk) {
	q.mu.Lock()
	q.chunks = append(q.chunks, c)
	q.cond.Signal()
	q.mu.Unlock()
}

// Pop blocks until a chunk is available, the queue is closed, or ctx is
// cancelled. A chunk still queued is returned with ok true even after Close;
// ok is false only when Pop returns without a chunk.
func (q *chunkQueue) Pop(ctx context.Context) (chunk.Chunk, bool) {
	done := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		close(done)
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.chunks)-q.head == 0 && !q.closed {
		select {
		case <-done:
			return chunk.Chunk{}, false
		default:
		}
		q.cond.Wait()
	}

	if len(q.chunks)-q.head == 0 {
		return chunk.Chunk{}, false
	}

	c := q.chunks[q.head]
	q.head++
	if q.head > len(q.chunks)/2 {
		q.chunks = append([]chunk.Chunk(nil), q.chunks[q.head:]...)
		q.head = 0
	}
	return c, true
}

// Close unblocks every pending and future Pop.
func (q *chunkQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
}

// Len reports the number of chunks not yet popped.
func (q *chunkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.chunks) - q.head
}
