package downloader

import "github.com/caracaldl/caracal/internal/engine/transfer"

// Summary is the outcome of a serve loop exiting.
type Summary struct {
	Completed bool
	Status    *transfer.Status
}

// Control events accepted by the serve loop's mailbox, alongside the
// worker.Event variants workers themselves post. All are funneled through
// one channel (mailbox) and dispatched by type switch — the actor's only
// queue.
type stopEvent struct{}

type getStatusEvent struct {
	reply chan *transfer.Status
}

type addWorkerEvent struct{}

type removeWorkerEvent struct{}
