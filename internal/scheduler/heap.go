package scheduler

import (
	"container/heap"
	"time"

	"github.com/caracaldl/caracal/internal/engine/factory"
)

// pendingTask is one admission candidate: higher Priority pops first;
// ties break toward the earlier CreationTimestamp, matching
// original_source's `(priority, Reverse(creation_timestamp))` ordering.
type pendingTask struct {
	taskID            int64
	priority          factory.Priority
	creationTimestamp time.Time
}

// pendingHeap is a container/heap.Interface max-heap over pendingTask.
type pendingHeap []pendingTask

func (h pendingHeap) Len() int { return len(h) }

func (h pendingHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].creationTimestamp.Before(h[j].creationTimestamp)
}

func (h pendingHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *pendingHeap) Push(x any) { *h = append(*h, x.(pendingTask)) }

func (h *pendingHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

var _ heap.Interface = (*pendingHeap)(nil)
