package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Candidate keys for each logical field of a history record, evaluated in
// priority order: the first non-empty value wins.
var (
	identifierKeys = []string{"username", "user_id", "name"}
	postListKeys   = []string{"threads", "posts", "data"}
	textKeys       = []string{"text", "content"}
	timestampKeys  = []string{"timestamp", "published_on"}
	urlKeys        = []string{"url", "link"}
)

// HistoryPost is one post inside a user's scraped history.
type HistoryPost struct {
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
	URL       string `json:"url"`
}

// HistoryRecord is one user's full scraped history. The store is
// read-only to this package; records are produced by the external
// scraper.
type HistoryRecord struct {
	Identifier string        `json:"identifier"`
	Posts      []HistoryPost `json:"posts"`
}

// History maps resolved identifiers to records. Duplicate identifiers in
// the store resolve last-record-wins.
type History map[string]HistoryRecord

// LoadHistory reads the line-delimited history store. Each line is parsed
// independently: a line that fails to parse, or that lacks a resolvable
// identifier, is skipped with a debug note — a single bad line never
// aborts the load. A missing file is ErrNotFound.
func LoadHistory(path string) (History, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := make(History)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)

	lineNum := 0
	skipped := 0
	for sc.Scan() {
		lineNum++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		// UseNumber keeps numeric identifiers and timestamps exact
		// instead of rounding them through float64.
		dec := json.NewDecoder(strings.NewReader(line))
		dec.UseNumber()
		var raw map[string]any
		if err := dec.Decode(&raw); err != nil {
			skipped++
			slog.Debug("skipping malformed history line", "path", path, "line", lineNum, "error", err)
			continue
		}
		id := firstString(raw, identifierKeys)
		if id == "" {
			skipped++
			slog.Debug("skipping history line without identifier", "path", path, "line", lineNum)
			continue
		}
		h[id] = HistoryRecord{
			Identifier: id,
			Posts:      resolvePosts(raw),
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if skipped > 0 {
		slog.Debug("history load finished with skipped lines", "path", path, "skipped", skipped, "loaded", len(h))
	}
	return h, nil
}

// AppendHistory appends one record to the store as a single JSON line.
// Used by the crawl path; the matcher never writes here.
func AppendHistory(path string, rec HistoryRecord) error {
	obj := map[string]any{"username": rec.Identifier}
	threads := make([]map[string]string, 0, len(rec.Posts))
	for _, p := range rec.Posts {
		threads = append(threads, map[string]string{
			"text":      p.Text,
			"timestamp": p.Timestamp,
			"url":       p.URL,
		})
	}
	obj["threads"] = threads

	line, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("encoding history record: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("appending to %s: %w", path, err)
	}
	return nil
}

// resolvePosts extracts the post list from a raw record using the
// candidate keys. An inner element that is a bare string becomes a
// text-only post.
func resolvePosts(raw map[string]any) []HistoryPost {
	var list []any
	for _, key := range postListKeys {
		if v, ok := raw[key].([]any); ok && len(v) > 0 {
			list = v
			break
		}
	}
	posts := make([]HistoryPost, 0, len(list))
	for _, item := range list {
		switch v := item.(type) {
		case map[string]any:
			posts = append(posts, HistoryPost{
				Text:      firstString(v, textKeys),
				Timestamp: firstString(v, timestampKeys),
				URL:       firstString(v, urlKeys),
			})
		case string:
			posts = append(posts, HistoryPost{Text: v})
		}
	}
	return posts
}

// firstString returns the first non-empty string value among the
// candidate keys. Numeric JSON values are stringified so numeric
// timestamps survive.
func firstString(m map[string]any, keys []string) string {
	for _, key := range keys {
		switch v := m[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}
