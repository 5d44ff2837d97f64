package scheduler

import (
	"container/heap"
	"context"
	"time"

	"github.com/caracaldl/caracal/internal/engine/downloader"
	"github.com/caracaldl/caracal/internal/engine/factory"
	"github.com/caracaldl/caracal/internal/utils"
)

// tickInterval is the admission loop's progress-check cadence (spec §4.7).
const tickInterval = 200 * time.Millisecond

// schedWorker is the scheduler's single actor goroutine: owns every task id,
// the pending priority heap, and the set of live Downloaders.
type schedWorker struct {
	factory                 *factory.Factory
	events                  chan Event
	maxConcurrentTaskNumber int

	nextTaskID  int64
	tasks       map[int64]factory.CreateTask
	pending     pendingHeap
	downloading map[int64]*downloader.Downloader
	statuses    map[int64]downloader.Status
	paused      map[int64]bool
	canceled    map[int64]bool
	completed   map[int64]bool
	failed      map[int64]bool
}

func newSchedWorker(f *factory.Factory, events chan Event, maxConcurrentTaskNumber int) *schedWorker {
	return &schedWorker{
		factory:                 f,
		events:                  events,
		maxConcurrentTaskNumber: maxConcurrentTaskNumber,
		tasks:                   make(map[int64]factory.CreateTask),
		downloading:             make(map[int64]*downloader.Downloader),
		statuses:                make(map[int64]downloader.Status),
		paused:                  make(map[int64]bool),
		canceled:                make(map[int64]bool),
		completed:               make(map[int64]bool),
		failed:                  make(map[int64]bool),
	}
}

// serve runs until a shutdownEvent arrives or ctx is canceled, whichever
// comes first. closed is closed on exit so Scheduler callers can detect a
// dead actor instead of blocking forever.
func (w *schedWorker) serve(ctx context.Context, closed chan<- struct{}) {
	defer close(closed)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.doShutdown(ctx)
			return

		case <-ticker.C:
			w.checkProgress(ctx)

		case ev := <-w.events:
			switch e := ev.(type) {
			case checkProgressEvent:
				w.checkProgress(ctx)
			case tryStartTaskEvent:
				w.tryStartTask(ctx)
			case addURIEvent:
				id := w.addURI(e)
				if e.reply != nil {
					e.reply <- id
				}
				w.tryStartTask(ctx)
			case pauseTaskEvent:
				w.pauseTask(ctx, e.taskID)
			case resumeTaskEvent:
				w.resumeTask(e.taskID)
				w.tryStartTask(ctx)
			case removeTaskEvent:
				w.removeTask(ctx, e.taskID)
			case pauseAllTasksEvent:
				w.pauseAllTasks(ctx)
			case resumeAllTasksEvent:
				w.resumeAllTasks()
				w.tryStartTask(ctx)
			case getTaskStatusEvent:
				e.reply <- w.taskStatus(e.taskID)
			case getAllTaskStatusesEvent:
				e.reply <- w.allTaskStatuses()
			case getTasksByStateEvent:
				e.reply <- w.tasksByState(e.state)
			case increaseWorkerEvent:
				if d, ok := w.downloading[e.taskID]; ok {
					d.AddWorker()
				}
			case decreaseWorkerEvent:
				if d, ok := w.downloading[e.taskID]; ok {
					d.RemoveWorker()
				}
			case taskCompletedEvent:
				w.taskCompleted(ctx, e.taskID)
			case shutdownEvent:
				w.doShutdown(ctx)
				close(e.done)
				return
			}
		}
	}
}

func (w *schedWorker) addURI(e addURIEvent) int64 {
	w.nextTaskID++
	id := w.nextTaskID
	task := e.task
	if task.CreationTimestamp.IsZero() {
		task.CreationTimestamp = time.Now()
	}
	w.tasks[id] = task
	if e.startImmediately {
		heap.Push(&w.pending, pendingTask{taskID: id, priority: task.Priority, creationTimestamp: task.CreationTimestamp})
	} else {
		w.paused[id] = true
	}
	return id
}

// popNextPending pops the highest-priority, earliest-created task id that
// hasn't been canceled out from under it while it waited in the heap.
func (w *schedWorker) popNextPending() (int64, bool) {
	for w.pending.Len() > 0 {
		t := heap.Pop(&w.pending).(pendingTask)
		if w.canceled[t.taskID] {
			continue
		}
		return t.taskID, true
	}
	return 0, false
}

func (w *schedWorker) tryStartTask(ctx context.Context) {
	if len(w.downloading) >= w.maxConcurrentTaskNumber {
		return
	}
	id, ok := w.popNextPending()
	if !ok {
		return
	}

	task := w.tasks[id]
	d, err := w.factory.CreateNewTask(ctx, task)
	if err != nil {
		utils.Debug("scheduler: task %d failed to build: %v", id, err)
		w.failed[id] = true
		return
	}
	if err := d.Start(ctx); err != nil {
		utils.Debug("scheduler: task %d failed to start: %v", id, err)
		w.failed[id] = true
		w.statuses[id] = d.Status(ctx)
		return
	}
	w.downloading[id] = d
}

func (w *schedWorker) checkProgress(ctx context.Context) {
	for id, d := range w.downloading {
		status := d.Status(ctx)
		w.statuses[id] = status
		if status.IsCompleted {
			w.taskCompleted(ctx, id)
		}
	}
}

func (w *schedWorker) taskCompleted(ctx context.Context, id int64) {
	d, ok := w.downloading[id]
	if !ok {
		return
	}
	delete(w.downloading, id)
	summary := d.Join(ctx)
	w.statuses[id] = d.Status(ctx)
	if summary.Completed {
		w.completed[id] = true
	} else {
		w.failed[id] = true
	}
	w.tryStartTask(ctx)
}

func (w *schedWorker) pauseTask(ctx context.Context, id int64) {
	d, ok := w.downloading[id]
	if !ok {
		return
	}
	delete(w.downloading, id)
	summary := d.Pause(ctx)
	w.statuses[id] = d.Status(ctx)
	if summary.Completed {
		w.completed[id] = true
		return
	}
	w.paused[id] = true
}

func (w *schedWorker) resumeTask(id int64) {
	if !w.paused[id] {
		return
	}
	delete(w.paused, id)
	task := w.tasks[id]
	heap.Push(&w.pending, pendingTask{taskID: id, priority: task.Priority, creationTimestamp: task.CreationTimestamp})
}

func (w *schedWorker) removeTask(ctx context.Context, id int64) {
	if d, ok := w.downloading[id]; ok {
		delete(w.downloading, id)
		d.Pause(ctx)
		d.Join(ctx)
	}
	delete(w.paused, id)
	w.canceled[id] = true
}

// pauseAllTasks pauses every currently downloading task (original_source's
// server-layer pause_all_tasks). Best-effort, like pauseTask.
func (w *schedWorker) pauseAllTasks(ctx context.Context) {
	ids := make([]int64, 0, len(w.downloading))
	for id := range w.downloading {
		ids = append(ids, id)
	}
	for _, id := range ids {
		w.pauseTask(ctx, id)
	}
}

// resumeAllTasks pushes every currently paused task back onto the pending
// heap (original_source's server-layer resume_all_tasks).
func (w *schedWorker) resumeAllTasks() {
	ids := make([]int64, 0, len(w.paused))
	for id := range w.paused {
		ids = append(ids, id)
	}
	for _, id := range ids {
		w.resumeTask(id)
	}
}

func (w *schedWorker) tasksByState(state TaskState) []TaskStatus {
	out := make([]TaskStatus, 0)
	for id := range w.tasks {
		if ts := w.taskStatus(id); ts.State == state {
			out = append(out, ts)
		}
	}
	return out
}

func (w *schedWorker) taskStatus(id int64) TaskStatus {
	state := Pending
	switch {
	case w.canceled[id]:
		state = Canceled
	case w.failed[id]:
		state = Failed
	case w.downloading[id] != nil:
		state = Downloading
	case w.completed[id]:
		state = Completed
	case w.paused[id]:
		state = Paused
	}
	return TaskStatus{TaskID: id, URI: w.tasks[id].URI, Status: w.statuses[id], State: state, Priority: w.tasks[id].Priority}
}

func (w *schedWorker) allTaskStatuses() []TaskStatus {
	out := make([]TaskStatus, 0, len(w.tasks))
	for id := range w.tasks {
		out = append(out, w.taskStatus(id))
	}
	return out
}

func (w *schedWorker) doShutdown(ctx context.Context) {
	w.pending = nil
	for id, d := range w.downloading {
		d.Pause(ctx)
		d.Join(ctx)
		delete(w.downloading, id)
		w.paused[id] = true
	}
}
