package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Posts mutates the canonical post table. Every operation reads the full
// table, mutates in memory, and rewrites the file atomically. At most one
// mutator call may be in flight at a time; concurrent callers must
// serialize externally.
type Posts struct {
	path string
}

func NewPosts(path string) *Posts {
	return &Posts{path: path}
}

func (s *Posts) Path() string { return s.path }

// Load reads the table at the mutator's path.
func (s *Posts) Load() (*Table, error) {
	return LoadPosts(s.path)
}

// UpdateFields carries the fields an update may replace. Nil means keep
// the current value.
type UpdateFields struct {
	Text         *string
	SymptomGroup *string
}

// Append assigns id = max(existing ids) + 1 (1 for an empty or absent
// table) and writes the new row. Existing ids are never reassigned.
func (s *Posts) Append(p Post) (Post, error) {
	t, err := s.Load()
	if errors.Is(err, ErrNotFound) {
		t = &Table{Columns: defaultColumns}
	} else if err != nil {
		return Post{}, err
	}

	maxID := 0
	for _, existing := range t.Posts {
		if existing.ID > maxID {
			maxID = existing.ID
		}
	}
	p.ID = maxID + 1
	if p.Timestamp == "" {
		p.Timestamp = time.Now().Format("2006-01-02 15:04:05")
	}
	t.EnsureColumn("id")
	t.Posts = append(t.Posts, p)

	if err := s.write(t); err != nil {
		return Post{}, err
	}
	return p, nil
}

// Update locates the row by exact id and replaces only the supplied
// fields. ErrNotFound if no row matches; ErrMultipleMatches if more than
// one row shares the id.
func (s *Posts) Update(id int, fields UpdateFields) (Post, error) {
	t, err := s.Load()
	if err != nil {
		return Post{}, err
	}

	match := -1
	for i, p := range t.Posts {
		if p.ID != id {
			continue
		}
		if match >= 0 {
			return Post{}, fmt.Errorf("post id %d: %w", id, ErrMultipleMatches)
		}
		match = i
	}
	if match < 0 {
		return Post{}, fmt.Errorf("post id %d: %w", id, ErrNotFound)
	}

	if fields.Text != nil {
		t.Posts[match].Text = *fields.Text
	}
	if fields.SymptomGroup != nil {
		t.Posts[match].SymptomGroup = *fields.SymptomGroup
	}

	if err := s.write(t); err != nil {
		return Post{}, err
	}
	return t.Posts[match], nil
}

// Delete removes all rows matching the id and reports how many were
// removed. ErrNotFound if none matched.
func (s *Posts) Delete(id int) (int, error) {
	t, err := s.Load()
	if err != nil {
		return 0, err
	}

	kept := t.Posts[:0]
	removed := 0
	for _, p := range t.Posts {
		if p.ID == id {
			removed++
			continue
		}
		kept = append(kept, p)
	}
	if removed == 0 {
		return 0, fmt.Errorf("post id %d: %w", id, ErrNotFound)
	}
	t.Posts = kept

	if err := s.write(t); err != nil {
		return 0, err
	}
	return removed, nil
}

// Get returns the single row with the given id. ErrNotFound /
// ErrMultipleMatches mirror Update's preconditions.
func (s *Posts) Get(id int) (Post, error) {
	t, err := s.Load()
	if err != nil {
		return Post{}, err
	}
	match := -1
	for i, p := range t.Posts {
		if p.ID != id {
			continue
		}
		if match >= 0 {
			return Post{}, fmt.Errorf("post id %d: %w", id, ErrMultipleMatches)
		}
		match = i
	}
	if match < 0 {
		return Post{}, fmt.Errorf("post id %d: %w", id, ErrNotFound)
	}
	return t.Posts[match], nil
}

func (s *Posts) write(t *Table) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}
	return WritePosts(s.path, t)
}
