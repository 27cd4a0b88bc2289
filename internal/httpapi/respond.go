package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/calvinalkan/promptkit/internal/backup"
	"github.com/calvinalkan/promptkit/internal/kv"
	"github.com/calvinalkan/promptkit/internal/prefs"
	"github.com/calvinalkan/promptkit/internal/prompt"
	"github.com/calvinalkan/promptkit/internal/store"
	"github.com/calvinalkan/promptkit/internal/transfer"
)

var errBadBody = errors.New("invalid request body")

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error    string   `json:"error"`
	Problems []string `json:"problems,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError

	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, prompt.ErrNotFound), errors.Is(err, backup.ErrBackupNotFound):
		return http.StatusNotFound
	case errors.Is(err, prompt.ErrValidation),
		errors.Is(err, prompt.ErrInvalidMode),
		errors.Is(err, prefs.ErrInvalidThreshold),
		errors.Is(err, transfer.ErrInvalidJSON),
		errors.Is(err, transfer.ErrNoPrompts),
		errors.Is(err, transfer.ErrInvalidFormat),
		errors.Is(err, backup.ErrInvalidBackup),
		errors.Is(err, errBadBody):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrPersist), errors.Is(err, kv.ErrFull):
		return http.StatusInsufficientStorage
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	body := errorBody{Error: err.Error()}

	var verr *prompt.ValidationError
	if errors.As(err, &verr) {
		body.Problems = verr.Problems
	}

	if status >= http.StatusInternalServerError {
		h.log.Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")

		if status == http.StatusInternalServerError {
			body.Error = "internal error"
		}
	}

	writeJSON(w, status, body)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(v)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}

		return fmt.Errorf("%w: %w", errBadBody, err)
	}

	return nil
}

// requestLogger logs one line per request at debug level, or warn for
// server errors.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			ev := log.Debug()
			if ww.Status() >= http.StatusInternalServerError {
				ev = log.Warn()
			}

			ev.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("took", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}

func readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}

		return nil, fmt.Errorf("%w: %w", errBadBody, err)
	}

	return data, nil
}
