package cmd

import (
	"context"
	"time"

	"github.com/caracaldl/caracal/internal/history"
	"github.com/caracaldl/caracal/internal/scheduler"
)

const historySyncInterval = 2 * time.Second

// syncHistoryLoop mirrors the scheduler's live task statuses into the
// durable history store every historySyncInterval, so `caracal ls` still
// shows a task's last-known state after this process restarts. It stops
// when ctx is canceled.
func syncHistoryLoop(ctx context.Context, sched *scheduler.Scheduler, hist *history.Store) {
	ticker := time.NewTicker(historySyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			statuses, err := sched.GetAllTaskStatuses(ctx)
			if err != nil {
				return
			}
			now := time.Now()
			for _, ts := range statuses {
				createdAt := now
				if existing, ok, err := hist.Get(ts.TaskID); err == nil && ok {
					createdAt = existing.CreatedAt
				}
				_ = hist.Upsert(history.Record{
					TaskID:      ts.TaskID,
					URI:         ts.URI,
					OutputPath:  ts.Status.FilePath,
					State:       ts.State,
					Priority:    ts.Priority,
					TotalLength: ts.Status.ContentLength,
					Received:    ts.Status.TotalReceived,
					CreatedAt:   createdAt,
					UpdatedAt:   now,
				})
			}
		}
	}
}
