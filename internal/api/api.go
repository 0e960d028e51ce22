// Package api exposes the reconciliation engine over HTTP. Every
// handler answers with a status/message/data envelope so clients can
// distinguish soft warnings (empty filters, unmatched users) from hard
// errors.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/ngxthien/riskrecon/internal/auth"
	"github.com/ngxthien/riskrecon/internal/config"
	"github.com/ngxthien/riskrecon/internal/crawl"
	"github.com/ngxthien/riskrecon/internal/export"
	"github.com/ngxthien/riskrecon/internal/recon"
	"github.com/ngxthien/riskrecon/internal/store"
	"github.com/ngxthien/riskrecon/internal/task"
	"github.com/ngxthien/riskrecon/pkg/audit"
)

// MatchRateLimiter is the rate limiter for POST /api/match (10 req/60s).
var MatchRateLimiter = NewRateLimiter(10, 60*time.Second)

type API struct {
	cfg     *config.Config
	auth    *auth.Auth
	tasks   *task.Store
	crawler *crawl.Runner
	audit   audit.Logger

	// mu serializes flat-file mutations. Reads go through the loaders
	// unlocked; the atomic rename keeps them from seeing torn files.
	mu sync.Mutex
}

func New(cfg *config.Config, a *auth.Auth, tasks *task.Store, crawler *crawl.Runner, auditLog audit.Logger) *API {
	return &API{cfg: cfg, auth: a, tasks: tasks, crawler: crawler, audit: auditLog}
}

func (a *API) RegisterRoutes(mux *http.ServeMux) {
	// Auth
	mux.HandleFunc("POST /api/login", a.handleLogin)

	// Overview
	mux.HandleFunc("GET /api/summary", a.handleSummary)
	mux.HandleFunc("GET /api/symptom_groups", a.handleSymptomGroups)

	// Posts
	mux.HandleFunc("GET /api/posts", a.handleGetPosts)
	mux.HandleFunc("POST /api/posts/filter", a.audited("filter_posts", a.requireAuth(a.handleFilterPosts)))
	mux.HandleFunc("POST /api/posts/clear_filter", a.audited("clear_filter", a.requireAuth(a.handleClearFilter)))
	mux.HandleFunc("POST /api/posts/content", a.handlePostContent)
	mux.HandleFunc("POST /api/posts", a.audited("save_post", a.requireAuth(a.handleSavePost)))
	mux.HandleFunc("PUT /api/posts", a.audited("update_post", a.requireAuth(a.handleUpdatePost)))
	mux.HandleFunc("DELETE /api/posts", a.audited("delete_post", a.requireAuth(a.handleDeletePost)))

	// Matching & aggregation
	mux.HandleFunc("POST /api/match", RateLimitMiddleware(MatchRateLimiter, a.audited("match_history", a.requireAuth(a.handleMatch))))
	mux.HandleFunc("GET /api/aggregates", a.handleAggregates)
	mux.HandleFunc("GET /api/history", a.handleHistory)

	// Crawl tasks
	mux.HandleFunc("POST /api/crawl", a.audited("start_crawl", a.requireAuth(a.handleCrawl)))
	mux.HandleFunc("GET /api/tasks", a.handleListTasks)
	mux.HandleFunc("GET /api/tasks/{id}", a.handleGetTask)

	// Exports
	mux.HandleFunc("GET /api/export/users", a.handleExportUsers)
	mux.HandleFunc("GET /api/download/{file}", a.handleDownload)

	// Health
	mux.HandleFunc("GET /health", a.handleHealth)
}

// requireAuth rejects mutating requests without a valid operator token.
// When no operator password hash is configured, auth is disabled and
// everything is open (development mode).
func (a *API) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.auth.Authorized(r) {
			writeOutcome(w, http.StatusUnauthorized, recon.Error("authentication required"))
			return
		}
		next(w, r)
	}
}

// statusRecorder captures the status code a handler writes so the
// audit trail records the real outcome, not just that a request came in.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// audited records mutating requests in the audit trail. Rejections are
// logged too, so the wrapper sits outside requireAuth.
func (a *API) audited(action string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.audit == nil {
			next(w, r)
			return
		}
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		start := time.Now()
		next(rec, r)

		entry := &audit.Entry{
			Action:     action,
			Transport:  "http",
			DurationMs: time.Since(start).Milliseconds(),
		}
		if claims := a.auth.ExtractClaims(r); claims != nil {
			entry.UserID = claims.Operator
		}
		if params, err := json.Marshal(map[string]string{
			"method": r.Method,
			"path":   r.URL.Path,
		}); err == nil {
			entry.Parameters = string(params)
		}
		entry.Result = `{"http_status":` + strconv.Itoa(rec.code) + `}`
		if rec.code >= 400 {
			entry.Error = http.StatusText(rec.code)
		}
		a.audit.LogAsync(entry)
	}
}

// --- Auth ---

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Handle   string `json:"handle"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOutcome(w, http.StatusBadRequest, recon.Error("invalid request body"))
		return
	}
	if !a.auth.Enabled() {
		writeOutcome(w, http.StatusOK, recon.Info("authentication is disabled"))
		return
	}
	token, err := a.auth.Login(req.Handle, req.Password)
	if err != nil {
		writeOutcome(w, http.StatusUnauthorized, recon.Error("invalid credentials"))
		return
	}
	writeOutcome(w, http.StatusOK, recon.Success("logged in", map[string]any{"token": token}))
}

// --- Overview ---

type fileSummary struct {
	Exists   bool   `json:"exists"`
	Rows     int    `json:"rows"`
	Modified string `json:"modified,omitempty"`
}

func (a *API) handleSummary(w http.ResponseWriter, r *http.Request) {
	data := a.cfg.Data
	summary := map[string]any{}

	summary["main_posts"] = summarizeCSV(data.MainPostsPath())
	summary["filtered_posts"] = summarizeCSV(data.FilteredPostsPath())

	// The per-user export has its own column layout, so it is not
	// readable as a post table.
	rows, err := export.LoadUserHistory(data.UserHistoryPath())
	summary["user_history"] = fileSummary{
		Exists:   err == nil,
		Rows:     len(rows),
		Modified: modTime(data.UserHistoryPath()),
	}

	history, err := store.LoadHistory(data.HistoryPath())
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		writeOutcome(w, http.StatusInternalServerError, recon.Error("reading history store: %v", err))
		return
	}
	summary["history"] = fileSummary{
		Exists:   err == nil,
		Rows:     len(history),
		Modified: modTime(data.HistoryPath()),
	}

	if table, err := store.LoadPosts(data.MainPostsPath()); err == nil {
		summary["symptom_groups"] = table.SymptomGroups()
	}

	writeOutcome(w, http.StatusOK, recon.Success("data summary", summary))
}

func summarizeCSV(path string) fileSummary {
	table, err := store.LoadPosts(path)
	if err != nil {
		return fileSummary{Exists: false}
	}
	return fileSummary{Exists: true, Rows: len(table.Posts), Modified: modTime(path)}
}

func modTime(path string) string {
	fi, err := os.Stat(path)
	if err != nil {
		return ""
	}
	return fi.ModTime().Format("2006-01-02 15:04:05")
}

func (a *API) handleSymptomGroups(w http.ResponseWriter, r *http.Request) {
	table, err := store.LoadPosts(a.cfg.Data.MainPostsPath())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeOutcome(w, http.StatusOK, recon.Warning("post table not found"))
			return
		}
		writeOutcome(w, http.StatusInternalServerError, recon.Error("reading posts: %v", err))
		return
	}
	groups := table.SymptomGroups()
	writeOutcome(w, http.StatusOK, recon.Successf(map[string]any{
		"symptom_groups": groups,
	}, "%d symptom groups", len(groups)))
}

// --- Health ---

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Helpers ---

// referenceTable loads the filtered subset when one exists, otherwise
// the canonical post table. The returned bool reports whether the
// filtered subset was used.
func (a *API) referenceTable() (*store.Table, bool, error) {
	if table, err := store.LoadPosts(a.cfg.Data.FilteredPostsPath()); err == nil {
		return table, true, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}
	table, err := store.LoadPosts(a.cfg.Data.MainPostsPath())
	return table, false, err
}

func writeOutcome(w http.ResponseWriter, status int, out recon.Outcome) {
	writeJSON(w, status, out)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
