package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

var httpClient = &http.Client{Timeout: 10 * time.Second}

func controlURL(port int, path string) string {
	return fmt.Sprintf("http://127.0.0.1:%d%s", port, path)
}

func postJSON(port int, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}
	resp, err := httpClient.Post(controlURL(port, path), "application/json", reader)
	if err != nil {
		return nil, fmt.Errorf("failed to reach caracal instance on port %d: %w", port, err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server error: %s - %s", resp.Status, string(respBody))
	}
	return respBody, nil
}

func getJSON(port int, path string) ([]byte, error) {
	resp, err := httpClient.Get(controlURL(port, path))
	if err != nil {
		return nil, fmt.Errorf("failed to reach caracal instance on port %d: %w", port, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server error: %s - %s", resp.Status, string(body))
	}
	return body, nil
}

func deleteRequest(port int, path string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodDelete, controlURL(port, path), nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach caracal instance on port %d: %w", port, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server error: %s - %s", resp.Status, string(body))
	}
	return body, nil
}

// submitTask posts a new download request to the instance at port, returning
// its assigned task ID.
func submitTask(port int, req taskRequest) (int64, error) {
	body, err := postJSON(port, "/tasks", req)
	if err != nil {
		return 0, err
	}
	var out struct {
		TaskID int64 `json:"task_id"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("malformed server response: %w", err)
	}
	return out.TaskID, nil
}

func fetchTask(port int, taskID int64) (taskStatusDTO, error) {
	body, err := getJSON(port, fmt.Sprintf("/tasks/%d", taskID))
	if err != nil {
		return taskStatusDTO{}, err
	}
	var dto taskStatusDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		return taskStatusDTO{}, fmt.Errorf("malformed server response: %w", err)
	}
	return dto, nil
}

func fetchAllTasks(port int) ([]taskStatusDTO, error) {
	return fetchTasksByState(port, "")
}

// fetchTasksByState lists tasks filtered by state: "" for the default
// active-only view, "all" for everything (including history-only rows),
// or an exact state name ("completed", "paused", ...).
func fetchTasksByState(port int, state string) ([]taskStatusDTO, error) {
	path := "/tasks"
	if state != "" {
		path += "?state=" + url.QueryEscape(state)
	}
	body, err := getJSON(port, path)
	if err != nil {
		return nil, err
	}
	var dtos []taskStatusDTO
	if err := json.Unmarshal(body, &dtos); err != nil {
		return nil, fmt.Errorf("malformed server response: %w", err)
	}
	return dtos, nil
}

func pauseTaskRemote(port int, taskID int64) error {
	_, err := postJSON(port, fmt.Sprintf("/tasks/%d/pause", taskID), nil)
	return err
}

func resumeTaskRemote(port int, taskID int64) error {
	_, err := postJSON(port, fmt.Sprintf("/tasks/%d/resume", taskID), nil)
	return err
}

func removeTaskRemote(port int, taskID int64) error {
	_, err := deleteRequest(port, fmt.Sprintf("/tasks/%d", taskID))
	return err
}

func pauseAllTasksRemote(port int) error {
	_, err := postJSON(port, "/tasks/pause-all", nil)
	return err
}

func resumeAllTasksRemote(port int) error {
	_, err := postJSON(port, "/tasks/resume-all", nil)
	return err
}

// requireRunningInstance returns the port of an already-running master, or
// an error telling the user none is running.
func requireRunningInstance() (int, error) {
	port, ok := readActivePort()
	if !ok {
		return 0, fmt.Errorf("no running caracal instance found; start one with `caracal` first")
	}
	return port, nil
}
