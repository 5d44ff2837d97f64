// Package scheduler implements the TaskScheduler (spec §4.7): a priority
// admission queue multiplexing many Downloaders under a global concurrency
// cap, exposed as a thin event-sending API over a single actor goroutine.
package scheduler

import (
	"context"

	"github.com/caracaldl/caracal/internal/caracalerr"
	"github.com/caracaldl/caracal/internal/engine/factory"
)

// Scheduler is safe for concurrent use; every method is a non-blocking (or
// reply-awaiting) send to the actor goroutine's mailbox.
type Scheduler struct {
	events chan Event
	closed chan struct{}
	cancel context.CancelFunc
}

// New starts the actor goroutine and returns a handle to it. Call Shutdown
// to stop it; the returned Scheduler is otherwise unusable once Shutdown or
// ctx is canceled.
func New(ctx context.Context, f *factory.Factory, maxConcurrentTaskNumber int) *Scheduler {
	if maxConcurrentTaskNumber <= 0 {
		maxConcurrentTaskNumber = 1
	}
	workerCtx, cancel := context.WithCancel(ctx)
	s := &Scheduler{
		events: make(chan Event, 64),
		closed: make(chan struct{}),
		cancel: cancel,
	}
	w := newSchedWorker(f, s.events, maxConcurrentTaskNumber)
	go w.serve(workerCtx, s.closed)
	return s
}

func (s *Scheduler) send(ev Event) error {
	select {
	case s.events <- ev:
		return nil
	case <-s.closed:
		return caracalerr.Wrap(caracalerr.KindLifecycle, "scheduler.send", caracalerr.ErrTaskSchedulerClosed)
	}
}

// AddURI submits a new CreateTask. When startImmediately is false the task
// is admitted straight into the Paused state, matching the CLI's
// `get --paused` affordance.
func (s *Scheduler) AddURI(task factory.CreateTask, startImmediately bool) (int64, error) {
	reply := make(chan int64, 1)
	if err := s.send(addURIEvent{task: task, startImmediately: startImmediately, reply: reply}); err != nil {
		return 0, err
	}
	select {
	case id := <-reply:
		return id, nil
	case <-s.closed:
		return 0, caracalerr.Wrap(caracalerr.KindLifecycle, "scheduler.AddURI", caracalerr.ErrTaskSchedulerClosed)
	}
}

// PauseTask is a no-op if taskID isn't currently downloading.
func (s *Scheduler) PauseTask(taskID int64) error {
	return s.send(pauseTaskEvent{taskID: taskID})
}

// ResumeTask is a no-op if taskID isn't currently paused.
func (s *Scheduler) ResumeTask(taskID int64) error {
	return s.send(resumeTaskEvent{taskID: taskID})
}

// RemoveTask cancels taskID, pausing and joining it first if it's running.
func (s *Scheduler) RemoveTask(taskID int64) error {
	return s.send(removeTaskEvent{taskID: taskID})
}

// GetTaskStatus composes the last cached DownloaderStatus with the derived
// lifecycle state.
func (s *Scheduler) GetTaskStatus(ctx context.Context, taskID int64) (TaskStatus, error) {
	reply := make(chan TaskStatus, 1)
	if err := s.send(getTaskStatusEvent{taskID: taskID, reply: reply}); err != nil {
		return TaskStatus{}, err
	}
	select {
	case status := <-reply:
		return status, nil
	case <-ctx.Done():
		return TaskStatus{}, ctx.Err()
	case <-s.closed:
		return TaskStatus{}, caracalerr.Wrap(caracalerr.KindLifecycle, "scheduler.GetTaskStatus", caracalerr.ErrTaskSchedulerClosed)
	}
}

// GetAllTaskStatuses returns every known task's status, regardless of state.
func (s *Scheduler) GetAllTaskStatuses(ctx context.Context) ([]TaskStatus, error) {
	reply := make(chan []TaskStatus, 1)
	if err := s.send(getAllTaskStatusesEvent{reply: reply}); err != nil {
		return nil, err
	}
	select {
	case statuses := <-reply:
		return statuses, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.closed:
		return nil, caracalerr.Wrap(caracalerr.KindLifecycle, "scheduler.GetAllTaskStatuses", caracalerr.ErrTaskSchedulerClosed)
	}
}

// GetAllTasks is an alias for GetAllTaskStatuses, matching the original's
// server-layer naming (task_scheduler.get_all_tasks).
func (s *Scheduler) GetAllTasks(ctx context.Context) ([]TaskStatus, error) {
	return s.GetAllTaskStatuses(ctx)
}

// GetTasksByState returns every task currently in the given state.
func (s *Scheduler) GetTasksByState(ctx context.Context, state TaskState) ([]TaskStatus, error) {
	reply := make(chan []TaskStatus, 1)
	if err := s.send(getTasksByStateEvent{state: state, reply: reply}); err != nil {
		return nil, err
	}
	select {
	case statuses := <-reply:
		return statuses, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.closed:
		return nil, caracalerr.Wrap(caracalerr.KindLifecycle, "scheduler.GetTasksByState", caracalerr.ErrTaskSchedulerClosed)
	}
}

// GetPendingTasks, GetDownloadingTasks, GetPausedTasks, GetCanceledTasks,
// GetCompletedTasks and GetFailedTasks are named conveniences over
// GetTasksByState, mirroring the original's per-state enumeration API.
func (s *Scheduler) GetPendingTasks(ctx context.Context) ([]TaskStatus, error) {
	return s.GetTasksByState(ctx, Pending)
}

func (s *Scheduler) GetDownloadingTasks(ctx context.Context) ([]TaskStatus, error) {
	return s.GetTasksByState(ctx, Downloading)
}

func (s *Scheduler) GetPausedTasks(ctx context.Context) ([]TaskStatus, error) {
	return s.GetTasksByState(ctx, Paused)
}

func (s *Scheduler) GetCanceledTasks(ctx context.Context) ([]TaskStatus, error) {
	return s.GetTasksByState(ctx, Canceled)
}

func (s *Scheduler) GetCompletedTasks(ctx context.Context) ([]TaskStatus, error) {
	return s.GetTasksByState(ctx, Completed)
}

func (s *Scheduler) GetFailedTasks(ctx context.Context) ([]TaskStatus, error) {
	return s.GetTasksByState(ctx, Failed)
}

// PauseAllTasks pauses every currently downloading task.
func (s *Scheduler) PauseAllTasks() error {
	return s.send(pauseAllTasksEvent{})
}

// ResumeAllTasks pushes every currently paused task back onto the pending
// heap.
func (s *Scheduler) ResumeAllTasks() error {
	return s.send(resumeAllTasksEvent{})
}

// IncreaseConcurrentNumber requests one more worker for taskID (spec §5's
// AddWorker). Best-effort: a no-op if taskID isn't currently downloading.
func (s *Scheduler) IncreaseConcurrentNumber(taskID int64) error {
	return s.send(increaseWorkerEvent{taskID: taskID})
}

// DecreaseConcurrentNumber requests one fewer worker for taskID (spec §5's
// RemoveWorker). Best-effort, per the "Treat this as best-effort" guidance.
func (s *Scheduler) DecreaseConcurrentNumber(taskID int64) error {
	return s.send(decreaseWorkerEvent{taskID: taskID})
}

// Shutdown pauses and joins every downloading task, then stops the actor.
// It blocks until the actor has fully drained.
func (s *Scheduler) Shutdown() error {
	done := make(chan struct{})
	if err := s.send(shutdownEvent{done: done}); err != nil {
		s.cancel()
		return err
	}
	<-done
	s.cancel()
	return nil
}
