// Package task is the keyed task-status store backing long-running work
// (crawls, matching runs): create-on-start, update-on-progress,
// terminal-on-completion-or-error. State lives in SQLite so it survives
// restarts and is visible to every transport.
package task

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hazyhaar/pkg/idgen"
	_ "modernc.org/sqlite"
)

const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	task_id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	status TEXT NOT NULL,
	message TEXT NOT NULL DEFAULT '',
	progress INTEGER NOT NULL DEFAULT 0,
	result TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_created ON tasks(created_at);
`

// Task is one tracked unit of background work.
type Task struct {
	ID        string          `json:"task_id"`
	Kind      string          `json:"kind"`
	Status    string          `json:"status"`
	Message   string          `json:"message"`
	Progress  int             `json:"progress"`
	Result    json.RawMessage `json:"result,omitempty"`
	CreatedAt int64           `json:"created_at"`
	UpdatedAt int64           `json:"updated_at"`
}

// Store persists task state.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating task dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening task store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging task store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating task store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying handle so the audit logger can share it.
func (s *Store) DB() *sql.DB { return s.db }

// Create registers a new task in the in_progress state and returns its
// id.
func (s *Store) Create(kind, message string) (string, error) {
	id := "task_" + idgen.New()
	now := time.Now().Unix()
	_, err := s.db.Exec(
		`INSERT INTO tasks (task_id, kind, status, message, progress, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?)`,
		id, kind, StatusInProgress, message, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("creating task: %w", err)
	}
	return id, nil
}

// Progress updates a running task's progress percentage and message.
func (s *Store) Progress(id string, progress int, message string) error {
	_, err := s.db.Exec(
		`UPDATE tasks SET progress = ?, message = ?, updated_at = ? WHERE task_id = ?`,
		progress, message, time.Now().Unix(), id,
	)
	return err
}

// Complete moves a task to its terminal success state with an optional
// result payload.
func (s *Store) Complete(id, message string, result any) error {
	var payload []byte
	if result != nil {
		payload, _ = json.Marshal(result)
	}
	_, err := s.db.Exec(
		`UPDATE tasks SET status = ?, progress = 100, message = ?, result = ?, updated_at = ? WHERE task_id = ?`,
		StatusCompleted, message, nullable(payload), time.Now().Unix(), id,
	)
	return err
}

// Fail moves a task to its terminal error state.
func (s *Store) Fail(id, message string) error {
	_, err := s.db.Exec(
		`UPDATE tasks SET status = ?, message = ?, updated_at = ? WHERE task_id = ?`,
		StatusError, message, time.Now().Unix(), id,
	)
	return err
}

// Get returns one task; sql.ErrNoRows surfaces for an unknown id.
func (s *Store) Get(id string) (*Task, error) {
	row := s.db.QueryRow(
		`SELECT task_id, kind, status, message, progress, result, created_at, updated_at
		 FROM tasks WHERE task_id = ?`, id,
	)
	return scanTask(row)
}

// List returns recent tasks, newest first.
func (s *Store) List(limit int) ([]*Task, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT task_id, kind, status, message, progress, result, created_at, updated_at
		 FROM tasks ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*Task, error) {
	var t Task
	var result sql.NullString
	err := row.Scan(&t.ID, &t.Kind, &t.Status, &t.Message, &t.Progress, &result, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if result.Valid {
		t.Result = json.RawMessage(result.String)
	}
	return &t, nil
}

func nullable(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
