package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caracaldl/caracal/internal/config"
	"github.com/caracaldl/caracal/internal/engine/factory"
	"github.com/caracaldl/caracal/internal/history"
	"github.com/caracaldl/caracal/internal/scheduler"
	"github.com/caracaldl/caracal/internal/utils"
)

// findAvailablePort tries ports starting from start until one is available.
func findAvailablePort(start int) (int, net.Listener) {
	for port := start; port < start+100; port++ {
		ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err == nil {
			return port, ln
		}
	}
	return 0, nil
}

func portFilePath() string {
	return filepath.Join(config.CaracalDir(), "port")
}

func saveActivePort(port int) {
	_ = os.WriteFile(portFilePath(), []byte(strconv.Itoa(port)), 0o644)
	utils.Debug("control API listening on port %d", port)
}

func removeActivePort() {
	_ = os.Remove(portFilePath())
}

// readActivePort returns the port a running master instance saved, if any.
func readActivePort() (int, bool) {
	data, err := os.ReadFile(portFilePath())
	if err != nil {
		return 0, false
	}
	port, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}
	return port, true
}

// taskRequest is the wire shape of a POST /tasks body.
type taskRequest struct {
	URL               string `json:"url"`
	Filename          string `json:"filename,omitempty"`
	OutputDirectory   string `json:"output_directory,omitempty"`
	ConcurrentNumber  int    `json:"concurrent_number,omitempty"`
	ConnectionTimeout int64  `json:"connection_timeout_ms,omitempty"`
	Priority          string `json:"priority,omitempty"`
	Paused            bool   `json:"paused,omitempty"`
}

// taskStatusDTO is the wire shape of a task's status, shared by GET /tasks
// and GET /tasks/{id}. Historical is true for rows resurrected from
// internal/history because the scheduler no longer holds them in memory
// (it restarted since the task last ran).
type taskStatusDTO struct {
	TaskID          int64  `json:"task_id"`
	URI             string `json:"uri"`
	State           string `json:"state"`
	Priority        string `json:"priority"`
	FilePath        string `json:"file_path"`
	ContentLength   uint64 `json:"content_length"`
	TotalReceived   uint64 `json:"total_received"`
	CompletedChunks int    `json:"completed_chunks"`
	TotalChunks     int    `json:"total_chunks"`
	Remaining       uint64 `json:"remaining"`
	IsCompleted     bool   `json:"is_completed"`
	Historical      bool   `json:"historical,omitempty"`
}

func toDTO(ts scheduler.TaskStatus) taskStatusDTO {
	return taskStatusDTO{
		TaskID:          ts.TaskID,
		URI:             ts.URI,
		State:           ts.State.String(),
		Priority:        ts.Priority.String(),
		FilePath:        ts.Status.FilePath,
		ContentLength:   ts.Status.ContentLength,
		TotalReceived:   ts.Status.TotalReceived,
		CompletedChunks: ts.Status.CompletedChunkCount,
		TotalChunks:     ts.Status.TotalChunkCount,
		Remaining:       ts.Status.Remaining,
		IsCompleted:     ts.Status.IsCompleted,
	}
}

// historyDTO converts a durable history row into the same wire shape, for
// tasks the live scheduler no longer holds (it restarted since).
func historyDTO(r history.Record) taskStatusDTO {
	return taskStatusDTO{
		TaskID:        r.TaskID,
		URI:           r.URI,
		State:         r.State.String(),
		Priority:      r.Priority.String(),
		FilePath:      r.OutputPath,
		ContentLength: r.TotalLength,
		TotalReceived: r.Received,
		IsCompleted:   r.State == scheduler.Completed,
		Historical:    true,
	}
}

// activeStates lists the states shown by a bare `caracal ls` with no filter:
// tasks still worth watching. Terminal states (completed/canceled/failed)
// are hidden unless explicitly asked for via ?state=.
var activeStates = map[string]bool{"pending": true, "downloading": true, "paused": true}

// filterTasksByState applies the ?state= query value: "" is the default
// active-only view, "all" disables filtering entirely, and anything else
// (completed/paused/downloading/pending/canceled/failed) is an exact match.
func filterTasksByState(dtos []taskStatusDTO, state string) []taskStatusDTO {
	if state == "all" {
		return dtos
	}
	out := make([]taskStatusDTO, 0, len(dtos))
	for _, d := range dtos {
		if state == "" {
			if activeStates[d.State] {
				out = append(out, d)
			}
			continue
		}
		if d.State == state {
			out = append(out, d)
		}
	}
	return out
}

// controlServer wires the TaskScheduler to the local HTTP control API: the
// same master/client split as the teacher's startHTTPServer/handleDownload,
// retargeted from a one-shot /download endpoint to the scheduler's full
// AddURI/Pause/Resume/Remove/GetStatus operation set.
type controlServer struct {
	sched *scheduler.Scheduler
	hist  *history.Store
	cfg   *config.Config
}

func newControlServer(sched *scheduler.Scheduler, hist *history.Store, cfg *config.Config) *controlServer {
	return &controlServer{sched: sched, hist: hist, cfg: cfg}
}

func (c *controlServer) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", c.handleHealth)
	mux.HandleFunc("/tasks", c.handleTasks)
	mux.HandleFunc("/tasks/pause-all", c.handlePauseAll)
	mux.HandleFunc("/tasks/resume-all", c.handleResumeAll)
	mux.HandleFunc("/tasks/", c.handleTaskByID)
	return mux
}

func (c *controlServer) serve(ln net.Listener) {
	server := &http.Server{Handler: c.mux()}
	if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
		utils.Debug("control API error: %v", err)
	}
}

func (c *controlServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (c *controlServer) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		c.createTask(w, r)
	case http.MethodGet:
		c.listTasks(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (c *controlServer) createTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()
	if req.URL == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}

	task := factory.CreateTask{
		URI:               req.URL,
		Filename:          req.Filename,
		OutputDirectory:   req.OutputDirectory,
		ConcurrentNumber:  req.ConcurrentNumber,
		Priority:          factory.ParsePriority(req.Priority),
		CreationTimestamp: time.Now(),
	}
	if req.ConnectionTimeout > 0 {
		task.ConnectionTimeout = time.Duration(req.ConnectionTimeout) * time.Millisecond
	}

	id, err := c.sched.AddURI(task, !req.Paused)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"task_id": id})
}

// listTasks merges the scheduler's live statuses with the durable history
// store (for tasks the scheduler no longer holds because it restarted since
// they last ran), then applies the ?state= filter. This is what makes
// `caracal ls --all/--completed/--paused` see past this process's lifetime.
func (c *controlServer) listTasks(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	statuses, err := c.sched.GetAllTaskStatuses(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	seen := make(map[int64]bool, len(statuses))
	dtos := make([]taskStatusDTO, 0, len(statuses))
	for _, s := range statuses {
		dtos = append(dtos, toDTO(s))
		seen[s.TaskID] = true
	}

	if c.hist != nil {
		records, err := c.hist.List()
		if err != nil {
			utils.Debug("listTasks: history.List failed: %v", err)
		}
		for _, rec := range records {
			if seen[rec.TaskID] {
				continue
			}
			dtos = append(dtos, historyDTO(rec))
		}
	}

	dtos = filterTasksByState(dtos, r.URL.Query().Get("state"))
	writeJSON(w, http.StatusOK, dtos)
}

func (c *controlServer) handleTaskByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/tasks/")
	parts := strings.SplitN(path, "/", 2)
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		http.Error(w, "invalid task id", http.StatusBadRequest)
		return
	}

	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		c.getTask(w, r, id)
	case action == "" && r.Method == http.MethodDelete:
		c.removeTask(w, id)
	case action == "pause" && r.Method == http.MethodPost:
		c.simpleAction(w, id, c.sched.PauseTask)
	case action == "resume" && r.Method == http.MethodPost:
		c.simpleAction(w, id, c.sched.ResumeTask)
	case action == "workers/inc" && r.Method == http.MethodPost:
		c.simpleAction(w, id, c.sched.IncreaseConcurrentNumber)
	case action == "workers/dec" && r.Method == http.MethodPost:
		c.simpleAction(w, id, c.sched.DecreaseConcurrentNumber)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (c *controlServer) handlePauseAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := c.sched.PauseAllTasks(); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (c *controlServer) handleResumeAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := c.sched.ResumeAllTasks(); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (c *controlServer) getTask(w http.ResponseWriter, r *http.Request, id int64) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	status, err := c.sched.GetTaskStatus(ctx, id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toDTO(status))
}

func (c *controlServer) removeTask(w http.ResponseWriter, id int64) {
	if err := c.sched.RemoveTask(id); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "removed"})
}

func (c *controlServer) simpleAction(w http.ResponseWriter, id int64, action func(int64) error) {
	if err := action(id); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
