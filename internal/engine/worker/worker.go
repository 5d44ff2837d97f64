// Package worker implements the long-lived per-chunk transfer loop: drain
// one chunk from a queue, stream bytes from a Fetcher into the shared sink,
// emit progress events, repeat until told to stop or removed.
package worker

import (
	"context"
	"io"
	"sync"

	"github.com/caracaldl/caracal/internal/engine/chunk"
	"github.com/caracaldl/caracal/internal/engine/fetcher"
	"github.com/caracaldl/caracal/internal/utils"
)

// Event is emitted by a Worker to the owning Downloader's serve loop.
type Event interface{ isWorkerEvent() }

type ChunkTransferStarted struct {
	WorkerID   int
	ChunkStart uint64
}

type ChunkTransferCompleted struct {
	WorkerID   int
	ChunkStart uint64
}

type UpdateChunkTransferProgress struct {
	WorkerID   int
	ChunkStart uint64
	ChunkEnd   uint64
	Received   uint64
}

func (ChunkTransferStarted) isWorkerEvent()           {}
func (ChunkTransferCompleted) isWorkerEvent()         {}
func (UpdateChunkTransferProgress) isWorkerEvent()    {}

// ControlEvent tells a running Worker to interrupt its current chunk.
type ControlEvent int

const (
	// Stop interrupts the byte loop but leaves the worker alive for its next chunk.
	Stop ControlEvent = iota
	// Remove interrupts the byte loop and terminates the worker entirely.
	Remove
)

// ControlMsg carries a ControlEvent plus an acknowledgement channel, so the
// serve loop can await the worker leaving its current chunk before reusing
// that chunk elsewhere.
type ControlMsg struct {
	event ControlEvent
	ack   chan struct{}
}

// Queue is the chunk intake a Worker pulls from: an unbounded MPMC queue
// whose Pop blocks until a chunk is available or the queue is closed.
type Queue interface {
	Pop(ctx context.Context) (chunk.Chunk, bool)
}

// Worker drains chunks from Intake, streams them via Source into Sink
// (guarded by SinkMu), and reports progress on Events.
type Worker struct {
	ID     int
	Sink   io.WriterAt
	SinkMu *sync.Mutex
	Source fetcher.Fetcher
	Intake Queue
	Events chan<- Event

	control chan ControlMsg
}

// NewWorker constructs a Worker. The caller owns Intake and Events; the
// control channel is created internally and returned so the serve loop can
// send Stop/Remove.
func NewWorker(id int, sink io.WriterAt, sinkMu *sync.Mutex, source fetcher.Fetcher, intake Queue, events chan<- Event) (*Worker, chan<- ControlMsg) {
	w := &Worker{ID: id, Sink: sink, SinkMu: sinkMu, Source: source, Intake: intake, Events: events, control: make(chan ControlMsg, 1)}
	return w, w.control
}

// SendControl sends ev on ch and blocks until the worker acknowledges it.
func SendControl(ch chan<- ControlMsg, ev ControlEvent) {
	ack := make(chan struct{})
	ch <- ControlMsg{event: ev, ack: ack}
	<-ack
}

// Serve runs the worker's outer chunk loop until Intake is closed or a
// Remove control event terminates it early.
func (w *Worker) Serve(ctx context.Context) {
	for {
		c, ok := w.Intake.Pop(ctx)
		if !ok {
			return // queue closed
		}
		if w.serveChunk(ctx, c) {
			return // removed
		}
	}
}

// serveChunk streams one chunk; returns true if the worker was told to
// terminate (Remove) while serving it.
func (w *Worker) serveChunk(ctx context.Context, c chunk.Chunk) bool {
	w.Events <- ChunkTransferStarted{WorkerID: w.ID, ChunkStart: c.Start}

	if c.Received >= c.Len() {
		w.Events <- ChunkTransferCompleted{WorkerID: w.ID, ChunkStart: c.Start}
		return false
	}

	stream, err := w.Source.FetchBytes(ctx, c.Start+c.Received, c.End)
	if err != nil {
		utils.Debug("worker %d: fetch bytes failed for chunk %d: %v", w.ID, c.Start, err)
		return false
	}
	defer stream.Close()

	received := c.Received
	bytesCh := make(chan readResult, 1)

	requestNext := func() {
		go func() {
			data, ok, err := stream.Next(ctx)
			bytesCh <- readResult{data: data, ok: ok, err: err}
		}()
	}
	requestNext()

	for {
		// Control wins ties with bytes readiness, bounding teardown latency
		// to one in-flight read regardless of scheduler fairness.
		select {
		case ctl := <-w.control:
			close(ctl.ack)
			return ctl.event == Remove
		default:
		}

		select {
		case ctl := <-w.control:
			close(ctl.ack)
			switch ctl.event {
			case Remove:
				return true
			case Stop:
				return false
			}
		case res := <-bytesCh:
			if res.err != nil {
				utils.Debug("worker %d: stream error on chunk %d: %v", w.ID, c.Start, res.err)
				return false
			}
			if !res.ok {
				w.Events <- ChunkTransferCompleted{WorkerID: w.ID, ChunkStart: c.Start}
				return false
			}
			data := res.data
			// Clip tail over-delivery so received never exceeds Len().
			if remaining := c.Len() - received; uint64(len(data)) > remaining {
				data = data[:remaining]
			}
			w.SinkMu.Lock()
			_, werr := w.Sink.WriteAt(data, int64(c.Start+received))
			w.SinkMu.Unlock()
			if werr != nil {
				utils.Debug("worker %d: write failed on chunk %d: %v", w.ID, c.Start, werr)
				return false
			}
			received += uint64(len(data))
			w.Events <- UpdateChunkTransferProgress{WorkerID: w.ID, ChunkStart: c.Start, ChunkEnd: c.End, Received: received}
			if received >= c.Len() {
				w.Events <- ChunkTransferCompleted{WorkerID: w.ID, ChunkStart: c.Start}
				return false
			}
			requestNext()
		}
	}
}

type readResult struct {
	data []byte
	ok   bool
	err  error
}
