package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/calvinalkan/promptkit/internal/prompt"
	"github.com/calvinalkan/promptkit/internal/transfer"
)

func (h *handler) listPrompts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	records, err := h.app.Query(r.Context(), q.Get("q"), q["tag"])
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, records)
}

func (h *handler) createPrompt(w http.ResponseWriter, r *http.Request) {
	var d prompt.Draft

	err := decodeJSON(r, &d)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	// Only imports may backdate records.
	d.CreatedAt = 0

	rec, err := h.app.Engine.Create(r.Context(), d)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusCreated, rec)
}

func (h *handler) getPrompt(w http.ResponseWriter, r *http.Request) {
	rec, err := h.app.Engine.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (h *handler) updatePrompt(w http.ResponseWriter, r *http.Request) {
	var p prompt.Patch

	err := decodeJSON(r, &p)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	rec, err := h.app.Engine.Update(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (h *handler) deletePrompt(w http.ResponseWriter, r *http.Request) {
	err := h.app.Engine.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// varsResponse carries the values a render would start from.
type varsResponse struct {
	Cached    map[string]string `json:"cached"`
	Effective map[string]string `json:"effective"`
}

func (h *handler) getVars(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	_, effective, err := h.app.Suggestions(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	cached, err := h.app.Vars.Load(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, varsResponse{Cached: cached, Effective: effective})
}

func (h *handler) forgetVars(w http.ResponseWriter, r *http.Request) {
	err := h.app.Vars.Forget(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type renderRequest struct {
	Values   map[string]string `json:"values"`
	Remember *bool             `json:"remember"`
}

func (h *handler) renderPrompt(w http.ResponseWriter, r *http.Request) {
	var req renderRequest

	if r.ContentLength != 0 {
		err := decodeJSON(r, &req)
		if err != nil {
			h.writeError(w, r, err)

			return
		}
	}

	remember := req.Remember == nil || *req.Remember

	out, err := h.app.Render(r.Context(), chi.URLParam(r, "id"), req.Values, remember)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, out)
}

func (h *handler) listTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.app.Engine.Tags(r.Context())
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, tags)
}

func (h *handler) importPrompts(w http.ResponseWriter, r *http.Request) {
	mode, err := prompt.ParseMergeMode(r.URL.Query().Get("mode"))
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	data, err := readBody(r)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	res, err := h.app.Import(r.Context(), data, mode)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (h *handler) exportPrompts(w http.ResponseWriter, r *http.Request) {
	format, err := transfer.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	data, name, err := h.app.Export(r.Context(), format)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	contentType := "application/json"
	if format == transfer.FormatMarkdown {
		contentType = "text/markdown; charset=utf-8"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
