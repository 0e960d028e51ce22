// Package crawl runs single-user scrape tasks in the background. The
// actual scraping is an external collaborator behind the Scraper
// interface; this package owns the task lifecycle and the append paths
// into the history store and the normalized export.
package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ngxthien/riskrecon/internal/export"
	"github.com/ngxthien/riskrecon/internal/recon"
	"github.com/ngxthien/riskrecon/internal/store"
	"github.com/ngxthien/riskrecon/internal/task"
)

// Scraper fetches one user's full post history. Implemented outside the
// core (browser automation is out of scope here).
type Scraper interface {
	FetchUserHistory(ctx context.Context, username string) (store.HistoryRecord, error)
}

// Runner executes crawl tasks: one goroutine per run, progress reported
// to the task store, results appended to the history store (JSONL) and
// the normalized export (CSV, append path).
type Runner struct {
	scraper     Scraper
	tasks       *task.Store
	historyPath string
	exportPath  string
}

func NewRunner(scraper Scraper, tasks *task.Store, historyPath, exportPath string) *Runner {
	return &Runner{
		scraper:     scraper,
		tasks:       tasks,
		historyPath: historyPath,
		exportPath:  exportPath,
	}
}

// Configured reports whether a scraper collaborator was injected.
func (r *Runner) Configured() bool {
	return r.scraper != nil
}

// Start launches a background crawl over the requested usernames and
// returns the task id immediately. Identifiers are normalized the same
// way the matcher normalizes them.
func (r *Runner) Start(usernames []string) (string, error) {
	ids := recon.NormalizeIdentifiers(usernames)
	if len(ids) == 0 {
		return "", fmt.Errorf("no usernames provided")
	}
	if r.scraper == nil {
		return "", fmt.Errorf("no scraper configured")
	}

	taskID, err := r.tasks.Create("crawl", fmt.Sprintf("crawling %d users", len(ids)))
	if err != nil {
		return "", err
	}

	go r.run(taskID, ids)
	return taskID, nil
}

func (r *Runner) run(taskID string, ids []string) {
	ctx := context.Background()
	var done, failed int
	for i, username := range ids {
		rec, err := r.scraper.FetchUserHistory(ctx, username)
		if err != nil {
			failed++
			slog.Warn("crawl failed for user", "username", username, "error", err)
		} else {
			if err := r.persist(rec); err != nil {
				failed++
				slog.Error("persisting crawl result", "username", username, "error", err)
			} else {
				done++
			}
		}
		progress := (i + 1) * 100 / len(ids)
		msg := fmt.Sprintf("crawled %d/%d users", i+1, len(ids))
		if err := r.tasks.Progress(taskID, progress, msg); err != nil {
			slog.Error("updating task progress", "task_id", taskID, "error", err)
		}
	}

	summary := fmt.Sprintf("crawl finished: %d succeeded, %d failed", done, failed)
	result := map[string]any{
		"total_users":       len(ids),
		"successful_crawls": done,
		"failed_crawls":     failed,
		"usernames":         ids,
	}
	if done == 0 {
		if err := r.tasks.Fail(taskID, summary); err != nil {
			slog.Error("failing task", "task_id", taskID, "error", err)
		}
		return
	}
	if err := r.tasks.Complete(taskID, summary, result); err != nil {
		slog.Error("completing task", "task_id", taskID, "error", err)
	}
}

// persist appends one crawled record to the history store and its
// flattened rows to the normalized export.
func (r *Runner) persist(rec store.HistoryRecord) error {
	if strings.TrimSpace(rec.Identifier) == "" {
		return fmt.Errorf("scraper returned record without identifier")
	}
	if err := store.AppendHistory(r.historyPath, rec); err != nil {
		return err
	}
	now := time.Now().Format("2006-01-02 15:04:05")
	rows := recon.FlattenRecord(rec, now)
	if len(rows) == 0 {
		return nil
	}
	return export.AppendUserHistory(r.exportPath, rows)
}
