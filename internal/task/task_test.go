package task

import (
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTaskLifecycle(t *testing.T) {
	s := openStore(t)

	id, err := s.Create("crawl", "starting")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !strings.HasPrefix(id, "task_") {
		t.Errorf("id = %q, want task_ prefix", id)
	}

	got, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusInProgress || got.Progress != 0 || got.Kind != "crawl" {
		t.Errorf("fresh task: %+v", got)
	}

	if err := s.Progress(id, 50, "halfway"); err != nil {
		t.Fatalf("Progress: %v", err)
	}
	got, _ = s.Get(id)
	if got.Progress != 50 || got.Message != "halfway" {
		t.Errorf("after progress: %+v", got)
	}

	if err := s.Complete(id, "done", map[string]int{"users": 3}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	got, _ = s.Get(id)
	if got.Status != StatusCompleted || got.Progress != 100 {
		t.Errorf("after complete: %+v", got)
	}
	var result map[string]int
	if err := json.Unmarshal(got.Result, &result); err != nil || result["users"] != 3 {
		t.Errorf("result payload: %s (%v)", got.Result, err)
	}
}

func TestTaskFail(t *testing.T) {
	s := openStore(t)

	id, err := s.Create("crawl", "starting")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Fail(id, "scraper unreachable"); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	got, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusError || got.Message != "scraper unreachable" {
		t.Errorf("failed task: %+v", got)
	}
	if got.Result != nil {
		t.Errorf("failed task carries no result, got %s", got.Result)
	}
}

func TestGetUnknownTask(t *testing.T) {
	s := openStore(t)
	if _, err := s.Get("task_missing"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("got %v, want sql.ErrNoRows", err)
	}
}

func TestList(t *testing.T) {
	s := openStore(t)
	for i := 0; i < 3; i++ {
		if _, err := s.Create("match", "run"); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	tasks, err := s.List(0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(tasks) != 3 {
		t.Errorf("got %d tasks, want 3", len(tasks))
	}

	tasks, err = s.List(2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(tasks) != 2 {
		t.Errorf("got %d tasks with limit 2", len(tasks))
	}
}
