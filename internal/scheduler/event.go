package scheduler

import "github.com/caracaldl/caracal/internal/engine/factory"

// Event is the scheduler actor's mailbox message type. All scheduler state
// is owned by the single goroutine running worker.serve; every mutation
// arrives as one of these.
type Event interface{ isSchedulerEvent() }

type addURIEvent struct {
	task             factory.CreateTask
	startImmediately bool
	reply            chan int64
}

type pauseTaskEvent struct{ taskID int64 }

type resumeTaskEvent struct{ taskID int64 }

type removeTaskEvent struct{ taskID int64 }

type pauseAllTasksEvent struct{}

type resumeAllTasksEvent struct{}

type getTaskStatusEvent struct {
	taskID int64
	reply  chan TaskStatus
}

type getAllTaskStatusesEvent struct {
	reply chan []TaskStatus
}

type getTasksByStateEvent struct {
	state TaskState
	reply chan []TaskStatus
}

type increaseWorkerEvent struct{ taskID int64 }

type decreaseWorkerEvent struct{ taskID int64 }

type checkProgressEvent struct{}

type tryStartTaskEvent struct{}

type taskCompletedEvent struct{ taskID int64 }

type shutdownEvent struct{ done chan struct{} }

func (addURIEvent) isSchedulerEvent()             {}
func (pauseTaskEvent) isSchedulerEvent()          {}
func (resumeTaskEvent) isSchedulerEvent()         {}
func (removeTaskEvent) isSchedulerEvent()         {}
func (pauseAllTasksEvent) isSchedulerEvent()      {}
func (resumeAllTasksEvent) isSchedulerEvent()     {}
func (getTaskStatusEvent) isSchedulerEvent()      {}
func (getAllTaskStatusesEvent) isSchedulerEvent() {}
func (getTasksByStateEvent) isSchedulerEvent()    {}
func (increaseWorkerEvent) isSchedulerEvent()     {}
func (decreaseWorkerEvent) isSchedulerEvent()     {}
func (checkProgressEvent) isSchedulerEvent()      {}
func (tryStartTaskEvent) isSchedulerEvent()       {}
func (taskCompletedEvent) isSchedulerEvent()      {}
func (shutdownEvent) isSchedulerEvent()           {}
