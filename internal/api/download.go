package api

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ngxthien/riskrecon/internal/export"
	"github.com/ngxthien/riskrecon/internal/recon"
	"github.com/ngxthien/riskrecon/internal/store"
)

// handleExportUsers materializes the users export (username,
// post_content, symptom_group over the reference table) and streams it.
func (a *API) handleExportUsers(w http.ResponseWriter, r *http.Request) {
	table, _, err := a.referenceTable()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeOutcome(w, http.StatusOK, recon.Warning("post table not found; nothing to export"))
			return
		}
		writeOutcome(w, http.StatusInternalServerError, recon.Error("reading posts: %v", err))
		return
	}

	a.mu.Lock()
	path := a.cfg.Data.UsersExportPath()
	_, err = export.WriteUsersExport(path, table)
	a.mu.Unlock()
	if err != nil {
		writeOutcome(w, http.StatusInternalServerError, recon.Error("writing users export: %v", err))
		return
	}
	serveCSV(w, r, path)
}

// downloadable maps the public download names onto configured files.
func (a *API) downloadable(name string) (string, bool) {
	d := a.cfg.Data
	switch name {
	case "main_posts":
		return d.MainPostsPath(), true
	case "filtered_posts":
		return d.FilteredPostsPath(), true
	case "user_history":
		return d.UserHistoryPath(), true
	}
	return "", false
}

func (a *API) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("file")
	path, ok := a.downloadable(name)
	if !ok {
		writeOutcome(w, http.StatusNotFound, recon.Error("unknown download %q", name))
		return
	}
	if _, err := os.Stat(path); err != nil {
		writeOutcome(w, http.StatusNotFound, recon.Error("%s does not exist yet", name))
		return
	}
	serveCSV(w, r, path)
}

func serveCSV(w http.ResponseWriter, r *http.Request, path string) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(path)+`"`)
	http.ServeFile(w, r, path)
}
