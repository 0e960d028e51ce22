// Package export writes the tabular side artifacts: the normalized
// user-history table produced by matching runs and the per-user post
// projection the dashboard downloads.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ngxthien/riskrecon/internal/recon"
	"github.com/ngxthien/riskrecon/internal/store"
)

// userHistoryHeader is the schema of the normalized history export.
var userHistoryHeader = []string{"username", "post_text", "timestamp", "url", "crawl_date"}

// WriteUserHistory fully rewrites the normalized history export. The
// matching path always rewrites; only the single-user crawl path
// appends (AppendUserHistory).
func WriteUserHistory(path string, rows []recon.FlatPost) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating export dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".user_his-*.csv")
	if err != nil {
		return fmt.Errorf("creating temp export: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(userHistoryHeader); err != nil {
		tmp.Close()
		return fmt.Errorf("writing header: %w", err)
	}
	if err := writeFlatRows(w, rows); err != nil {
		tmp.Close()
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flushing export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp export: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// AppendUserHistory appends rows to the normalized export, writing the
// header first when the file does not exist yet.
func AppendUserHistory(path string, rows []recon.FlatPost) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating export dir: %w", err)
	}
	_, statErr := os.Stat(path)
	needHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if needHeader {
		if err := w.Write(userHistoryHeader); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	if err := writeFlatRows(w, rows); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing export: %w", err)
	}
	return nil
}

func writeFlatRows(w *csv.Writer, rows []recon.FlatPost) error {
	for _, r := range rows {
		rec := []string{r.Username, r.PostText, r.Timestamp, r.URL, r.CrawlDate}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}
	return nil
}

// LoadUserHistory reads the normalized export back, for the dashboard
// view. A missing file is store.ErrNotFound.
func LoadUserHistory(path string) ([]recon.FlatPost, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, store.ErrNotFound)
		}
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	recs, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var rows []recon.FlatPost
	for i, rec := range recs {
		if i == 0 || len(rec) < 5 {
			continue
		}
		rows = append(rows, recon.FlatPost{
			Username:  rec[0],
			PostText:  rec[1],
			Timestamp: rec[2],
			URL:       rec[3],
			CrawlDate: rec[4],
		})
	}
	return rows, nil
}

// WriteUsersExport writes the per-user post projection
// (username, post_content, symptom_group), one row per reference post,
// grouped by username in first-seen order.
func WriteUsersExport(path string, reference *store.Table) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("creating export dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"username", "post_content", "symptom_group"}); err != nil {
		return 0, fmt.Errorf("writing header: %w", err)
	}
	count := 0
	for _, u := range reference.Usernames() {
		for _, p := range reference.Posts {
			if p.Username != u {
				continue
			}
			if err := w.Write([]string{u, p.Text, p.SymptomGroup}); err != nil {
				return 0, fmt.Errorf("writing row: %w", err)
			}
			count++
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return 0, fmt.Errorf("flushing export: %w", err)
	}
	return count, nil
}
