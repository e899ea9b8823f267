package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/kiranshivaraju/marketpulse/internal/api/middleware"
	"github.com/kiranshivaraju/marketpulse/internal/api/response"
)

// Dependencies holds the handlers and logger for the ops router.
type Dependencies struct {
	Logger *slog.Logger

	HealthHandler    http.HandlerFunc
	GetUploadHandler http.HandlerFunc
	GetStatusHandler http.HandlerFunc
	GetResultHandler http.HandlerFunc
}

// NewRouter builds the Chi router for the worker's ops surface. Every route is read-only.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(mw.Logger(logger))
	r.Use(mw.Recovery(logger))

	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	r.Route("/api/v1/uploads/{jobID}", func(r chi.Router) {
		r.Get("/", orNotImplemented(deps.GetUploadHandler))
		r.Get("/status", orNotImplemented(deps.GetStatusHandler))
		r.Get("/result", orNotImplemented(deps.GetResultHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
