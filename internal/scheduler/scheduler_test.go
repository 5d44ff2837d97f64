package scheduler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/caracaldl/caracal/internal/config"
	"github.com/caracaldl/caracal/internal/engine/factory"
)

func testScheduler(t *testing.T, maxConcurrent int) (*Scheduler, *httptest.Server) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "", time.Time{}, bytes.NewReader(make([]byte, 256)))
	}))
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.DefaultOutputDirectory = t.TempDir()
	cfg.ConnectionTimeout = 5 * time.Second
	cfg.MinimumChunkSize = 16

	s := New(context.Background(), factory.New(cfg), maxConcurrent)
	t.Cleanup(func() { _ = s.Shutdown() })
	return s, srv
}

func TestAddURIAssignsMonotonicIDs(t *testing.T) {
	s, srv := testScheduler(t, 2)

	id1, err := s.AddURI(factory.CreateTask{URI: srv.URL + "/a.bin"}, true)
	require.NoError(t, err)
	id2, err := s.AddURI(factory.CreateTask{URI: srv.URL + "/b.bin"}, true)
	require.NoError(t, err)
	require.Equal(t, int64(1), id1)
	require.Equal(t, int64(2), id2)
}

func TestTaskReachesCompleted(t *testing.T) {
	s, srv := testScheduler(t, 2)

	id, err := s.AddURI(factory.CreateTask{URI: srv.URL + "/a.bin"}, true)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.Eventually(t, func() bool {
		status, err := s.GetTaskStatus(ctx, id)
		return err == nil && status.State == Completed
	}, 3*time.Second, 20*time.Millisecond)
}

func TestMaxConcurrentTaskNumberThrottlesAdmission(t *testing.T) {
	s, srv := testScheduler(t, 1)

	id1, err := s.AddURI(factory.CreateTask{URI: srv.URL + "/a.bin"}, true)
	require.NoError(t, err)
	id2, err := s.AddURI(factory.CreateTask{URI: srv.URL + "/b.bin"}, true)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.Eventually(t, func() bool {
		s1, err1 := s.GetTaskStatus(ctx, id1)
		s2, err2 := s.GetTaskStatus(ctx, id2)
		return err1 == nil && err2 == nil && s1.State == Completed && s2.State == Completed
	}, 3*time.Second, 20*time.Millisecond)
}

func TestRemoveTaskMarksCanceled(t *testing.T) {
	s, srv := testScheduler(t, 2)

	id, err := s.AddURI(factory.CreateTask{URI: srv.URL + "/a.bin"}, true)
	require.NoError(t, err)
	require.NoError(t, s.RemoveTask(id))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.Eventually(t, func() bool {
		status, err := s.GetTaskStatus(ctx, id)
		return err == nil && status.State == Canceled
	}, time.Second, 10*time.Millisecond)
}

func TestPauseAllAndResumeAllTasks(t *testing.T) {
	s, srv := testScheduler(t, 2)

	id1, err := s.AddURI(factory.CreateTask{URI: srv.URL + "/a.bin"}, true)
	require.NoError(t, err)
	id2, err := s.AddURI(factory.CreateTask{URI: srv.URL + "/b.bin"}, true)
	require.NoError(t, err)

	require.NoError(t, s.PauseAllTasks())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.Eventually(t, func() bool {
		paused, err := s.GetPausedTasks(ctx)
		return err == nil && len(paused) >= 1
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, s.ResumeAllTasks())

	require.Eventually(t, func() bool {
		s1, err1 := s.GetTaskStatus(ctx, id1)
		s2, err2 := s.GetTaskStatus(ctx, id2)
		return err1 == nil && err2 == nil && s1.State == Completed && s2.State == Completed
	}, 3*time.Second, 20*time.Millisecond)
}

func TestGetTasksByStateDefaultsToNormalPriority(t *testing.T) {
	s, srv := testScheduler(t, 2)

	id, err := s.AddURI(factory.CreateTask{URI: srv.URL + "/a.bin"}, true)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.Eventually(t, func() bool {
		status, err := s.GetTaskStatus(ctx, id)
		return err == nil && status.State == Completed
	}, 3*time.Second, 20*time.Millisecond)

	completed, err := s.GetCompletedTasks(ctx)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	require.Equal(t, factory.PriorityNormal, completed[0].Priority)
}

func TestShutdownDrainsActor(t *testing.T) {
	cfg := config.Default()
	cfg.DefaultOutputDirectory = t.TempDir()
	s := New(context.Background(), factory.New(cfg), 2)
	require.NoError(t, s.Shutdown())

	_, err := s.GetTaskStatus(context.Background(), 1)
	require.Error(t, err)
}
