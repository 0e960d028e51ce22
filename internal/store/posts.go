// Package store provides typed accessors for the flat-file stores: the
// canonical post table and filtered subset (CSV), the label table (CSV),
// and the per-user history store (line-delimited JSON).
package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Post is one canonical social-media post row.
type Post struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	Text         string `json:"text"`
	SymptomGroup string `json:"symptom_group"`
	Timestamp    string `json:"timestamp"`
	URL          string `json:"url,omitempty"`
	Keyword      string `json:"keyword,omitempty"`
	Label        int    `json:"label"`
}

// Table is a loaded post table. Columns preserves the source header so a
// rewrite round-trips the file shape; scraped tables have no id column
// until the mutator assigns one.
type Table struct {
	Columns []string
	Posts   []Post
}

// bodyColumn returns the header name used for the post body, defaulting
// to "content" (the shape the mutator writes for fresh tables).
func (t *Table) bodyColumn() string {
	for _, c := range t.Columns {
		if c == "text" || c == "content" {
			return c
		}
	}
	return "content"
}

// HasColumn reports whether the source header carried the named column.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// EnsureColumn appends a column to the header if absent.
func (t *Table) EnsureColumn(name string) {
	if !t.HasColumn(name) {
		t.Columns = append(t.Columns, name)
	}
}

// defaultColumns is the header the mutator writes when creating a table.
var defaultColumns = []string{"id", "content", "symptom_group", "username", "timestamp"}

// LoadPosts reads a post table. A missing file is ErrNotFound; a header
// lacking a username or body column is ErrMalformed; a header-only file
// yields an empty table, not an error.
func LoadPosts(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: empty file: %w", path, ErrMalformed)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s header: %w", path, err)
	}

	cols := make([]string, len(header))
	idx := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		cols[i] = name
		idx[name] = i
	}

	if _, ok := idx["username"]; !ok {
		return nil, fmt.Errorf("%s: missing column %q: %w", path, "username", ErrMalformed)
	}
	bodyIdx, ok := idx["content"]
	if !ok {
		if bodyIdx, ok = idx["text"]; !ok {
			return nil, fmt.Errorf("%s: missing content/text column: %w", path, ErrMalformed)
		}
	}

	t := &Table{Columns: cols}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		field := func(name string) string {
			i, ok := idx[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return rec[i]
		}
		var p Post
		if bodyIdx < len(rec) {
			p.Text = rec[bodyIdx]
		}
		p.Username = field("username")
		p.SymptomGroup = field("symptom_group")
		p.Timestamp = field("timestamp")
		p.URL = field("url")
		if p.URL == "" {
			p.URL = field("link")
		}
		p.Keyword = field("keyword")
		p.ID, _ = strconv.Atoi(strings.TrimSpace(field("id")))
		p.Label, _ = strconv.Atoi(strings.TrimSpace(field("label")))
		t.Posts = append(t.Posts, p)
	}
	return t, nil
}

// WritePosts rewrites a post table atomically: the full table is written
// to a temp file in the same directory and renamed over the target.
func WritePosts(path string, t *Table) error {
	cols := t.Columns
	if len(cols) == 0 {
		cols = defaultColumns
	}

	tmp, err := os.CreateTemp(dirOf(path), ".posts-*.csv")
	if err != nil {
		return fmt.Errorf("creating temp table: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(cols); err != nil {
		tmp.Close()
		return fmt.Errorf("writing header: %w", err)
	}
	body := (&Table{Columns: cols}).bodyColumn()
	for _, p := range t.Posts {
		rec := make([]string, len(cols))
		for i, c := range cols {
			switch c {
			case "id":
				if p.ID != 0 {
					rec[i] = strconv.Itoa(p.ID)
				}
			case body:
				rec[i] = p.Text
			case "username":
				rec[i] = p.Username
			case "symptom_group":
				rec[i] = p.SymptomGroup
			case "timestamp":
				rec[i] = p.Timestamp
			case "url", "link":
				rec[i] = p.URL
			case "keyword":
				rec[i] = p.Keyword
			case "label":
				rec[i] = strconv.Itoa(p.Label)
			}
		}
		if err := w.Write(rec); err != nil {
			tmp.Close()
			return fmt.Errorf("writing row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flushing table: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp table: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

func dirOf(path string) string {
	return filepath.Dir(path)
}

// SymptomGroups returns the distinct non-empty symptom groups in
// first-seen order.
func (t *Table) SymptomGroups() []string {
	seen := make(map[string]bool)
	var groups []string
	for _, p := range t.Posts {
		g := strings.TrimSpace(p.SymptomGroup)
		if g == "" || seen[g] {
			continue
		}
		seen[g] = true
		groups = append(groups, g)
	}
	return groups
}

// Usernames returns the distinct non-empty usernames in first-seen order.
func (t *Table) Usernames() []string {
	seen := make(map[string]bool)
	var users []string
	for _, p := range t.Posts {
		u := strings.TrimSpace(p.Username)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		users = append(users, u)
	}
	return users
}

// FilterBySymptomGroup returns the rows matching a symptom group exactly.
func (t *Table) FilterBySymptomGroup(group string) *Table {
	out := &Table{Columns: t.Columns}
	for _, p := range t.Posts {
		if p.SymptomGroup == group {
			out.Posts = append(out.Posts, p)
		}
	}
	return out
}
