// Package downloader implements the per-download actor (spec §4.6): an
// event loop that owns one sink file and a pool of worker.Worker goroutines,
// driven by a buffered (capacity 16) mailbox of control events and a shared channel of
// worker progress events.
package downloader

import (
	"context"
	"os"
	"sync"

	"github.com/caracaldl/caracal/internal/engine/controlfile"
	"github.com/caracaldl/caracal/internal/engine/fetcher"
	"github.com/caracaldl/caracal/internal/engine/transfer"
	"github.com/caracaldl/caracal/internal/engine/worker"
	"github.com/caracaldl/caracal/internal/utils"
)

// Downloader owns one download: a sink file, a Fetcher, and the
// TransferStatus describing its chunk partition. It is not safe to share
// across Start/Pause/Resume calls from multiple goroutines without the
// caller serializing them (the TaskScheduler does, per spec §4.7).
type Downloader struct {
	filePath     string
	uris         []string
	sink         *os.File
	sinkMu       sync.Mutex
	source       fetcher.Fetcher
	useSimple    bool
	workerNumber int

	mu       sync.Mutex
	status   *transfer.Status
	control  chan interface{}
	running  bool
	resultCh chan Summary
}

// New constructs a Downloader around an already-opened sink and an initial
// TransferStatus (built by the Factory). useSimple selects the single-stream
// loop used for sources that can't be chunked (spec §4.3's SupportsRangeRequest
// == false).
func New(filePath string, uris []string, sink *os.File, source fetcher.Fetcher, status *transfer.Status, workerNumber int, useSimple bool) *Downloader {
	return &Downloader{
		filePath:     filePath,
		uris:         uris,
		sink:         sink,
		source:       source,
		status:       status,
		workerNumber: workerNumber,
		useSimple:    useSimple,
	}
}

// Start spawns the serve loop if it isn't already running. It is a no-op
// when the transfer is already complete or already running.
func (d *Downloader) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running || d.status.IsCompleted() {
		return nil
	}

	control := make(chan interface{}, 16)
	resultCh := make(chan Summary, 1)
	d.control = control
	d.resultCh = resultCh
	d.running = true

	if d.useSimple {
		go d.serveSimple(ctx, d.status.Clone(), control, resultCh)
		return nil
	}

	cf, loaded := controlfile.New(d.filePath, d.uris)
	if loaded != nil {
		d.status = loaded
	}
	events := make(chan worker.Event, d.workerNumber*4+4)
	go d.serve(ctx, cf, d.status.Clone(), control, events, resultCh)
	return nil
}

// Resume behaves exactly like Start; a paused Downloader reloads its
// control file from disk, same as a first start against a leftover sidecar.
func (d *Downloader) Resume(ctx context.Context) error { return d.Start(ctx) }

// Pause asks a running serve loop to stop after flushing its control file,
// and waits for it to exit. It is a no-op if not running.
func (d *Downloader) Pause(ctx context.Context) Summary {
	d.mu.Lock()
	if !d.running {
		s := Summary{Completed: d.status.IsCompleted(), Status: d.status.Clone()}
		d.mu.Unlock()
		return s
	}
	control, resultCh := d.control, d.resultCh
	d.mu.Unlock()

	select {
	case control <- stopEvent{}:
	case <-ctx.Done():
		return Summary{Completed: false, Status: d.status.Clone()}
	}

	summary := <-resultCh
	d.mu.Lock()
	d.running = false
	if !summary.Completed {
		d.status = summary.Status
	}
	d.mu.Unlock()
	return summary
}

// Join blocks until the current serve loop exits (completed or paused
// elsewhere) and returns its outcome. If nothing is running, it returns the
// last known status immediately.
func (d *Downloader) Join(ctx context.Context) Summary {
	d.mu.Lock()
	running, resultCh := d.running, d.resultCh
	d.mu.Unlock()

	if !running {
		return Summary{Completed: d.status.IsCompleted(), Status: d.status.Clone()}
	}

	select {
	case summary := <-resultCh:
		d.mu.Lock()
		d.running = false
		d.status = summary.Status
		d.mu.Unlock()
		return summary
	case <-ctx.Done():
		return Summary{Completed: false, Status: d.status.Clone()}
	}
}

// ScrapeStatus returns a live snapshot while running, or the last known
// status otherwise.
func (d *Downloader) ScrapeStatus(ctx context.Context) *transfer.Status {
	d.mu.Lock()
	running, control, resultCh := d.running, d.control, d.resultCh
	if !running {
		s := d.status.Clone()
		d.mu.Unlock()
		return s
	}
	d.mu.Unlock()

	reply := make(chan *transfer.Status, 1)
	select {
	case control <- getStatusEvent{reply: reply}:
	case <-ctx.Done():
		d.mu.Lock()
		s := d.status.Clone()
		d.mu.Unlock()
		return s
	}
	select {
	case s := <-reply:
		return s
	case summary := <-resultCh:
		// The serve loop has already exited and will not answer.
		d.mu.Lock()
		d.running = false
		d.status = summary.Status
		s := d.status.Clone()
		d.mu.Unlock()
		return s
	case <-ctx.Done():
		d.mu.Lock()
		s := d.status.Clone()
		d.mu.Unlock()
		return s
	}
}

// Status returns the status-surface snapshot (spec §6) derived from the
// live or last-known TransferStatus.
func (d *Downloader) Status(ctx context.Context) Status {
	return statusFromTransfer(d.filePath, d.ScrapeStatus(ctx))
}

// AddWorker requests the serve loop split its largest remaining chunk and
// spawn a new worker for it. A no-op if not running or already simple-mode.
func (d *Downloader) AddWorker() {
	d.mu.Lock()
	running, control := d.running, d.control
	d.mu.Unlock()
	if !running {
		return
	}
	select {
	case control <- addWorkerEvent{}:
	default:
		utils.Debug("downloader: AddWorker dropped, mailbox full for %s", d.filePath)
	}
}

// RemoveWorker requests the serve loop freeze one worker's chunk and retire
// that worker. A no-op if not running.
func (d *Downloader) RemoveWorker() {
	d.mu.Lock()
	running, control := d.running, d.control
	d.mu.Unlock()
	if !running {
		return
	}
	select {
	case control <- removeWorkerEvent{}:
	default:
		utils.Debug("downloader: RemoveWorker dropped, mailbox full for %s", d.filePath)
	}
}

// serveSimple streams the whole object sequentially into a single chunk,
// for sources that can't be range-requested (spec §4.6's simple loop).
func (d *Downloader) serveSimple(ctx context.Context, status *transfer.Status, control <-chan interface{}, resultCh chan<- Summary) {
	summary := Summary{Completed: false, Status: status}

	stream, err := d.source.FetchAll(ctx)
	if err != nil {
		utils.Debug("downloader: FetchAll failed for %s: %v", d.filePath, err)
		resultCh <- summary
		return
	}
	defer stream.Close()

	var received uint64
	bytesCh := make(chan readResult, 1)
	requestNext := func() {
		go func() {
			data, ok, err := stream.Next(ctx)
			bytesCh <- readResult{data: data, ok: ok, err: err}
		}()
	}
	requestNext()

	for {
		select {
		case ev := <-control:
			switch ev.(type) {
			case stopEvent:
				if err := d.sink.Sync(); err != nil {
					utils.Debug("downloader: sync failed for %s: %v", d.filePath, err)
				}
				resultCh <- Summary{Completed: false, Status: status}
				return
			case getStatusEvent:
				ev.(getStatusEvent).reply <- status.Clone()
			}
		case res := <-bytesCh:
			if res.err != nil {
				utils.Debug("downloader: stream error for %s: %v", d.filePath, res.err)
				resultCh <- Summary{Completed: false, Status: status}
				return
			}
			if !res.ok {
				if err := d.sink.Sync(); err != nil {
					utils.Debug("downloader: sync failed for %s: %v", d.filePath, err)
				}
				status.MarkChunkCompleted(0)
				resultCh <- Summary{Completed: true, Status: status}
				return
			}
			if _, err := d.sink.WriteAt(res.data, int64(received)); err != nil {
				utils.Debug("downloader: write failed for %s: %v", d.filePath, err)
				resultCh <- Summary{Completed: false, Status: status}
				return
			}
			received += uint64(len(res.data))
			status.UpdateProgress(0, received)
			requestNext()
		}
	}
}

// serve runs the multi-worker loop: it owns chunk assignment, rebalances on
// AddWorker/RemoveWorker by splitting or freezing the largest remaining
// chunk, and persists progress to the control file on pause.
func (d *Downloader) serve(ctx context.Context, cf *controlfile.ControlFile, status *transfer.Status, control <-chan interface{}, events chan worker.Event, resultCh chan<- Summary) {
	utils.Debug("downloader: starting %d worker(s) for %s", d.workerNumber, d.filePath)

	queue := newChunkQueue()
	controls := make(map[int]chan<- worker.ControlMsg)
	var wg sync.WaitGroup
	nextWorkerID := d.workerNumber

	spawn := func(id int) {
		w, ctl := worker.NewWorker(id, d.sink, &d.sinkMu, d.source, queue, events)
		controls[id] = ctl
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Serve(ctx)
		}()
	}

	for id := 0; id < d.workerNumber; id++ {
		spawn(id)
	}
	for _, c := range status.SortedChunks() {
		queue.Push(c)
	}

	chunkToWorker := make(map[uint64]int)
	summary := Summary{Completed: false, Status: status}

loop:
	for {
		select {
		case ev := <-events:
			switch e := ev.(type) {
			case worker.ChunkTransferStarted:
				chunkToWorker[e.ChunkStart] = e.WorkerID
			case worker.ChunkTransferCompleted:
				delete(chunkToWorker, e.ChunkStart)
				status.MarkChunkCompleted(e.ChunkStart)
				if status.IsCompleted() {
					summary = Summary{Completed: true, Status: status}
					cf.Remove()
					break loop
				}
			case worker.UpdateChunkTransferProgress:
				status.UpdateProgress(e.ChunkStart, e.Received)
			}

		case ev := <-control:
			switch e := ev.(type) {
			case stopEvent:
				status.UpdateConcurrentNumber(len(controls))
				if err := cf.WriteStatus(status); err != nil {
					utils.Debug("downloader: persisting control file failed for %s: %v", d.filePath, err)
				}
				summary = Summary{Completed: false, Status: status}
				break loop

			case getStatusEvent:
				e.reply <- status.Clone()

			case addWorkerEvent:
				id := nextWorkerID
				nextWorkerID++
				spawn(id)

				if origin, created, ok := status.Split(); ok {
					if workerID, tracked := chunkToWorker[origin.Start]; tracked {
						if ctl, found := controls[workerID]; found {
							worker.SendControl(ctl, worker.Stop)
						}
					}
					queue.Push(created)
					queue.Push(origin)
				}

			case removeWorkerEvent:
				if origin, created, ok := status.Freeze(); ok {
					if workerID, tracked := chunkToWorker[origin.Start]; tracked {
						if ctl, found := controls[workerID]; found {
							worker.SendControl(ctl, worker.Remove)
							delete(controls, workerID)
						}
					}
					queue.Push(created)
				}
			}
		}
	}

	queue.Close()
	for id, ctl := range controls {
		utils.Debug("downloader: shutting down worker %d for %s", id, d.filePath)
		worker.SendControl(ctl, worker.Remove)
	}
	wg.Wait()

	if err := d.sink.Sync(); err != nil {
		utils.Debug("downloader: sync failed for %s: %v", d.filePath, err)
	}

	resultCh <- summary
}

type readResult struct {
	data []byte
	ok   bool
	err  error
}
