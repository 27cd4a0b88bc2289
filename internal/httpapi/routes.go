// Package httpapi serves the prompt library over a local JSON API.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/calvinalkan/promptkit/internal/app"
)

// MaxBodyBytes caps request bodies. Imports are the largest payloads.
const MaxBodyBytes = 16 << 20

// New returns the API handler for a.
func New(a *app.App, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	h := &handler{app: a, log: log}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RequestSize(MaxBodyBytes))

		r.Get("/prompts", h.listPrompts)
		r.Post("/prompts", h.createPrompt)
		r.Get("/prompts/{id}", h.getPrompt)
		r.Patch("/prompts/{id}", h.updatePrompt)
		r.Delete("/prompts/{id}", h.deletePrompt)
		r.Get("/prompts/{id}/vars", h.getVars)
		r.Delete("/prompts/{id}/vars", h.forgetVars)
		r.Post("/prompts/{id}/render", h.renderPrompt)

		r.Get("/tags", h.listTags)

		r.Post("/import", h.importPrompts)
		r.Get("/export", h.exportPrompts)

		r.Get("/backups", h.listBackups)
		r.Post("/backups", h.saveBackup)
		r.Post("/backups/download", h.downloadBackup)
		r.Post("/backups/{id}/restore", h.restoreBackup)

		r.Get("/preferences", h.getPreferences)
		r.Put("/preferences", h.putPreferences)
	})

	r.Method(http.MethodGet, "/metrics", a.Metrics.Handler())

	return r
}

type handler struct {
	app *app.App
	log zerolog.Logger
}
