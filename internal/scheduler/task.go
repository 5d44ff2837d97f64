package scheduler

import (
	"github.com/caracaldl/caracal/internal/engine/downloader"
	"github.com/caracaldl/caracal/internal/engine/factory"
)

// TaskState mirrors the states a submitted CreateTask can occupy. Failed
// covers both factory/build-time fatal errors and a terminal mid-run
// serve-loop error (write/seek failure on the sink); original_source's
// TaskState has no such variant, but the distilled spec added one
// deliberately and this module follows it (see DESIGN.md).
type TaskState int

const (
	Pending TaskState = iota
	Downloading
	Paused
	Canceled
	Completed
	Failed
)

func (s TaskState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Downloading:
		return "downloading"
	case Paused:
		return "paused"
	case Canceled:
		return "canceled"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// TaskStatus composes the last-known DownloaderStatus with the scheduler's
// own view of the task's lifecycle state.
type TaskStatus struct {
	TaskID   int64
	URI      string
	Status   downloader.Status
	State    TaskState
	Priority factory.Priority
}
