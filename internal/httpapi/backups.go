package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/calvinalkan/promptkit/internal/backup"
	"github.com/calvinalkan/promptkit/internal/prompt"
)

// backupSummary describes a ring entry without its data.
type backupSummary struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
	Count     int    `json:"count"`
}

func summarize(b backup.Backup) backupSummary {
	return backupSummary{ID: b.ID, Timestamp: b.Timestamp, Count: b.Count()}
}

func (h *handler) listBackups(w http.ResponseWriter, r *http.Request) {
	ring, err := h.app.Backups.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	out := make([]backupSummary, 0, len(ring))
	for _, b := range ring {
		out = append(out, summarize(b))
	}

	writeJSON(w, http.StatusOK, out)
}

func (h *handler) saveBackup(w http.ResponseWriter, r *http.Request) {
	b, err := h.app.Backups.SaveLocal(r.Context())
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusCreated, summarize(b))
}

func (h *handler) downloadBackup(w http.ResponseWriter, r *http.Request) {
	path, err := h.app.Backups.Download(r.Context())
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"path": path})
}

func (h *handler) restoreBackup(w http.ResponseWriter, r *http.Request) {
	mode, err := prompt.ParseMergeMode(r.URL.Query().Get("mode"))
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	res, err := h.app.Backups.Restore(r.Context(), chi.URLParam(r, "id"), mode)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, res)
}

type preferencesRequest struct {
	AutoBackupEnabled   *bool `json:"autoBackupEnabled"`
	AutoBackupThreshold *int  `json:"autoBackupThreshold"`
}

func (h *handler) getPreferences(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.Prefs.Get(r.Context())
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *handler) putPreferences(w http.ResponseWriter, r *http.Request) {
	var req preferencesRequest

	err := decodeJSON(r, &req)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	p, err := h.app.Prefs.SetAutoBackup(r.Context(), req.AutoBackupEnabled, req.AutoBackupThreshold)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, p)
}
