// Package history persists a durable record of every submitted task across
// process restarts, independent of the per-download `.caracal` control file
// (which only carries resumable chunk state, not task-level bookkeeping like
// priority or completion time). Grounded on the teacher's SQLite-backed
// internal/engine/state package: a single `*sql.DB`, a `withTx` helper, and
// `ON CONFLICT ... DO UPDATE` upserts.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/caracaldl/caracal/internal/engine/factory"
	"github.com/caracaldl/caracal/internal/scheduler"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	task_id      INTEGER PRIMARY KEY,
	uri          TEXT NOT NULL,
	output_path  TEXT NOT NULL,
	state        TEXT NOT NULL,
	priority     INTEGER NOT NULL,
	total_length INTEGER NOT NULL DEFAULT 0,
	received     INTEGER NOT NULL DEFAULT 0,
	created_at   INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL
);
`

// Store wraps the SQLite-backed task history database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the history database at path and ensures
// its schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("history: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Record is one row of task history.
type Record struct {
	TaskID      int64
	URI         string
	OutputPath  string
	State       scheduler.TaskState
	Priority    factory.Priority
	TotalLength uint64
	Received    uint64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Upsert inserts or updates one task's history row.
func (s *Store) Upsert(r Record) error {
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO tasks (task_id, uri, output_path, state, priority, total_length, received, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(task_id) DO UPDATE SET
				state=excluded.state,
				total_length=excluded.total_length,
				received=excluded.received,
				updated_at=excluded.updated_at
		`, r.TaskID, r.URI, r.OutputPath, r.State.String(), r.Priority, r.TotalLength, r.Received,
			r.CreatedAt.Unix(), r.UpdatedAt.Unix())
		return err
	})
}

// Get returns the history row for taskID, or (Record{}, false) if absent.
func (s *Store) Get(taskID int64) (Record, bool, error) {
	row := s.db.QueryRow(`
		SELECT task_id, uri, output_path, state, priority, total_length, received, created_at, updated_at
		FROM tasks WHERE task_id = ?
	`, taskID)
	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("history: get %d: %w", taskID, err)
	}
	return r, true, nil
}

// List returns every history row, most recently updated first.
func (s *Store) List() ([]Record, error) {
	rows, err := s.db.Query(`
		SELECT task_id, uri, output_path, state, priority, total_length, received, created_at, updated_at
		FROM tasks ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Remove deletes taskID's history row, if present.
func (s *Store) Remove(taskID int64) error {
	_, err := s.db.Exec("DELETE FROM tasks WHERE task_id = ?", taskID)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var r Record
	var state string
	var createdAt, updatedAt int64
	if err := row.Scan(&r.TaskID, &r.URI, &r.OutputPath, &state, &r.Priority,
		&r.TotalLength, &r.Received, &createdAt, &updatedAt); err != nil {
		return Record{}, err
	}
	r.State = stateFromString(state)
	r.CreatedAt = time.Unix(createdAt, 0)
	r.UpdatedAt = time.Unix(updatedAt, 0)
	return r, nil
}

func stateFromString(s string) scheduler.TaskState {
	switch s {
	case "downloading":
		return scheduler.Downloading
	case "paused":
		return scheduler.Paused
	case "canceled":
		return scheduler.Canceled
	case "completed":
		return scheduler.Completed
	case "failed":
		return scheduler.Failed
	default:
		return scheduler.Pending
	}
}
