package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ngxthien/riskrecon/internal/export"
	"github.com/ngxthien/riskrecon/internal/recon"
	"github.com/ngxthien/riskrecon/internal/store"
)

// handleMatch resolves usernames against the history store and rewrites
// the normalized export with the flattened matches. Without an explicit
// username list it takes the first max_users distinct usernames of the
// reference table.
func (a *API) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Usernames []string `json:"usernames"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOutcome(w, http.StatusBadRequest, recon.Error("invalid request body"))
		return
	}

	usernames := req.Usernames
	if len(usernames) == 0 {
		table, _, err := a.referenceTable()
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeOutcome(w, http.StatusOK, recon.Warning("post table not found; nothing to match"))
				return
			}
			writeOutcome(w, http.StatusInternalServerError, recon.Error("reading posts: %v", err))
			return
		}
		usernames = table.Usernames()
		if max := a.cfg.Crawl.MaxUsers; max > 0 && len(usernames) > max {
			usernames = usernames[:max]
		}
	}

	history, err := store.LoadHistory(a.cfg.Data.HistoryPath())
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		writeOutcome(w, http.StatusInternalServerError, recon.Error("reading history store: %v", err))
		return
	}

	result, outcome := recon.MatchHistories(usernames, history)
	if outcome.Status != recon.StatusSuccess {
		writeOutcome(w, http.StatusOK, outcome)
		return
	}

	a.mu.Lock()
	err = export.WriteUserHistory(a.cfg.Data.UserHistoryPath(), result.Flattened)
	a.mu.Unlock()
	if err != nil {
		writeOutcome(w, http.StatusInternalServerError, recon.Error("writing user history export: %v", err))
		return
	}
	slog.Info("matched histories", "found", len(result.FoundIDs), "not_found", len(result.NotFound), "rows", len(result.Flattened))

	outcome.Data = map[string]any{
		"found_usernames": result.FoundIDs,
		"not_found":       result.NotFound,
		"rows_written":    len(result.Flattened),
	}
	writeOutcome(w, http.StatusOK, outcome)
}

// handleAggregates returns per-user risk aggregates over the reference
// table joined with the history store.
func (a *API) handleAggregates(w http.ResponseWriter, r *http.Request) {
	table, filtered, err := a.referenceTable()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeOutcome(w, http.StatusOK, recon.Warning("post table not found"))
			return
		}
		writeOutcome(w, http.StatusInternalServerError, recon.Error("reading posts: %v", err))
		return
	}

	history, err := store.LoadHistory(a.cfg.Data.HistoryPath())
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		writeOutcome(w, http.StatusInternalServerError, recon.Error("reading history store: %v", err))
		return
	}

	aggregates := recon.AggregateUsers(table, history)
	writeOutcome(w, http.StatusOK, recon.Successf(map[string]any{
		"users":    aggregates,
		"filtered": filtered,
	}, "aggregated %d users", len(aggregates)))
}

// handleHistory returns a per-user summary of the raw history store.
func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := store.LoadHistory(a.cfg.Data.HistoryPath())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeOutcome(w, http.StatusOK, recon.Warning("history store not found"))
			return
		}
		writeOutcome(w, http.StatusInternalServerError, recon.Error("reading history store: %v", err))
		return
	}

	type userSummary struct {
		Username  string `json:"username"`
		PostCount int    `json:"post_count"`
	}
	summaries := make([]userSummary, 0, len(history))
	for id, rec := range history {
		summaries = append(summaries, userSummary{Username: id, PostCount: len(rec.Posts)})
	}
	writeOutcome(w, http.StatusOK, recon.Successf(map[string]any{
		"users": summaries,
	}, "%d users in history store", len(summaries)))
}

// --- Crawl tasks ---

func (a *API) handleCrawl(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Usernames []string `json:"usernames"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOutcome(w, http.StatusBadRequest, recon.Error("invalid request body"))
		return
	}
	if !a.cfg.Crawl.Enabled {
		writeOutcome(w, http.StatusServiceUnavailable, recon.Error("crawling is disabled"))
		return
	}
	if a.crawler == nil || !a.crawler.Configured() {
		writeOutcome(w, http.StatusServiceUnavailable, recon.Error("no scraper configured"))
		return
	}
	if max := a.cfg.Crawl.MaxUsers; max > 0 && len(req.Usernames) > max {
		req.Usernames = req.Usernames[:max]
	}

	taskID, err := a.crawler.Start(req.Usernames)
	if err != nil {
		writeOutcome(w, http.StatusBadRequest, recon.Error("starting crawl: %v", err))
		return
	}
	writeOutcome(w, http.StatusAccepted, recon.Successf(map[string]string{
		"task_id": taskID,
	}, "crawl started for %d users", len(req.Usernames)))
}

func (a *API) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := a.tasks.List(0)
	if err != nil {
		writeOutcome(w, http.StatusInternalServerError, recon.Error("listing tasks: %v", err))
		return
	}
	writeOutcome(w, http.StatusOK, recon.Successf(map[string]any{
		"tasks": tasks,
	}, "%d tasks", len(tasks)))
}

func (a *API) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	t, err := a.tasks.Get(id)
	if err != nil {
		writeOutcome(w, http.StatusNotFound, recon.Error("task %s not found", id))
		return
	}
	writeOutcome(w, http.StatusOK, recon.Success("task status", t))
}
