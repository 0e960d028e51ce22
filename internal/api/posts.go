package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/ngxthien/riskrecon/internal/recon"
	"github.com/ngxthien/riskrecon/internal/store"
)

func (a *API) handleGetPosts(w http.ResponseWriter, r *http.Request) {
	table, filtered, err := a.referenceTable()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeOutcome(w, http.StatusOK, recon.Warning("post table not found"))
			return
		}
		writeOutcome(w, http.StatusInternalServerError, recon.Error("reading posts: %v", err))
		return
	}
	writeOutcome(w, http.StatusOK, recon.Successf(map[string]any{
		"posts":    table.Posts,
		"filtered": filtered,
	}, "%d posts", len(table.Posts)))
}

// handleFilterPosts selects posts by symptom group, persists the subset
// as the filtered table and returns the rows. Until cleared, the subset
// is the reference table for matching and aggregation.
func (a *API) handleFilterPosts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SymptomGroup string `json:"symptom_group"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOutcome(w, http.StatusBadRequest, recon.Error("invalid request body"))
		return
	}
	req.SymptomGroup = strings.TrimSpace(req.SymptomGroup)
	if req.SymptomGroup == "" {
		writeOutcome(w, http.StatusBadRequest, recon.Error("symptom_group is required"))
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	table, err := store.LoadPosts(a.cfg.Data.MainPostsPath())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeOutcome(w, http.StatusOK, recon.Warning("post table not found"))
			return
		}
		writeOutcome(w, http.StatusInternalServerError, recon.Error("reading posts: %v", err))
		return
	}

	subset := table.FilterBySymptomGroup(req.SymptomGroup)
	if len(subset.Posts) == 0 {
		writeOutcome(w, http.StatusOK, recon.Warning(
			"no posts match symptom group %q; available groups: %s",
			req.SymptomGroup, strings.Join(table.SymptomGroups(), ", ")))
		return
	}

	if err := store.WritePosts(a.cfg.Data.FilteredPostsPath(), subset); err != nil {
		writeOutcome(w, http.StatusInternalServerError, recon.Error("writing filtered subset: %v", err))
		return
	}
	slog.Info("filtered posts", "symptom_group", req.SymptomGroup, "rows", len(subset.Posts))

	writeOutcome(w, http.StatusOK, recon.Successf(map[string]any{
		"posts":         subset.Posts,
		"symptom_group": req.SymptomGroup,
	}, "filtered %d posts for %q", len(subset.Posts), req.SymptomGroup))
}

func (a *API) handleClearFilter(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	path := a.cfg.Data.FilteredPostsPath()
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			writeOutcome(w, http.StatusOK, recon.Info("no filter is active"))
			return
		}
		writeOutcome(w, http.StatusInternalServerError, recon.Error("removing filtered subset: %v", err))
		return
	}
	writeOutcome(w, http.StatusOK, recon.Success("filter cleared", nil))
}

func (a *API) handlePostContent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID int `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOutcome(w, http.StatusBadRequest, recon.Error("invalid request body"))
		return
	}

	post, err := store.NewPosts(a.cfg.Data.MainPostsPath()).Get(req.ID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeOutcome(w, http.StatusNotFound, recon.Error("post id %d not found", req.ID))
		case errors.Is(err, store.ErrMultipleMatches):
			writeOutcome(w, http.StatusConflict, recon.Error("post id %d matches multiple rows", req.ID))
		default:
			writeOutcome(w, http.StatusInternalServerError, recon.Error("reading post: %v", err))
		}
		return
	}
	writeOutcome(w, http.StatusOK, recon.Success("post content", post))
}

func (a *API) handleSavePost(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content      string `json:"content"`
		SymptomGroup string `json:"symptom_group"`
		Username     string `json:"username"`
		Timestamp    string `json:"timestamp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOutcome(w, http.StatusBadRequest, recon.Error("invalid request body"))
		return
	}
	if strings.TrimSpace(req.Content) == "" || strings.TrimSpace(req.Username) == "" {
		writeOutcome(w, http.StatusBadRequest, recon.Error("content and username are required"))
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	saved, err := store.NewPosts(a.cfg.Data.MainPostsPath()).Append(store.Post{
		Text:         req.Content,
		SymptomGroup: req.SymptomGroup,
		Username:     req.Username,
		Timestamp:    req.Timestamp,
	})
	if err != nil {
		slog.Error("appending post", "error", err)
		writeOutcome(w, http.StatusInternalServerError, recon.Error("saving post: %v", err))
		return
	}
	writeOutcome(w, http.StatusCreated, recon.Successf(saved, "post %d saved", saved.ID))
}

func (a *API) handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID           int     `json:"id"`
		Content      *string `json:"content"`
		SymptomGroup *string `json:"symptom_group"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOutcome(w, http.StatusBadRequest, recon.Error("invalid request body"))
		return
	}
	if req.Content == nil && req.SymptomGroup == nil {
		writeOutcome(w, http.StatusBadRequest, recon.Error("nothing to update"))
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	updated, err := store.NewPosts(a.cfg.Data.MainPostsPath()).Update(req.ID, store.UpdateFields{
		Text:         req.Content,
		SymptomGroup: req.SymptomGroup,
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeOutcome(w, http.StatusNotFound, recon.Error("post id %d not found", req.ID))
		case errors.Is(err, store.ErrMultipleMatches):
			writeOutcome(w, http.StatusConflict, recon.Error("post id %d matches multiple rows", req.ID))
		default:
			writeOutcome(w, http.StatusInternalServerError, recon.Error("updating post: %v", err))
		}
		return
	}
	writeOutcome(w, http.StatusOK, recon.Successf(updated, "post %d updated", updated.ID))
}

func (a *API) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID int `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOutcome(w, http.StatusBadRequest, recon.Error("invalid request body"))
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	n, err := store.NewPosts(a.cfg.Data.MainPostsPath()).Delete(req.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeOutcome(w, http.StatusNotFound, recon.Error("post id %d not found", req.ID))
			return
		}
		writeOutcome(w, http.StatusInternalServerError, recon.Error("deleting post: %v", err))
		return
	}
	writeOutcome(w, http.StatusOK, recon.Successf(map[string]int{"deleted": n}, "deleted %d post(s) with id %d", n, req.ID))
}
