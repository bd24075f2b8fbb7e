// Package handler exposes the polling service over HTTP: JSON request
// and response bodies for the control and submission routes, and
// text/event-stream for the live views.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eldridgejm/classroom-qa/internal/auth"
	"github.com/eldridgejm/classroom-qa/internal/classroom"
	"github.com/eldridgejm/classroom-qa/internal/config"
	"github.com/eldridgejm/classroom-qa/internal/events"
	"github.com/eldridgejm/classroom-qa/internal/kv"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	svc       *classroom.Service
	auth      *auth.Manager
	bus       *events.Bus
	store     kv.Store
	config    config.Config
	keepalive time.Duration
}

// New creates a new Handler.
func New(svc *classroom.Service, am *auth.Manager, bus *events.Bus, store kv.Store, cfg config.Config) *Handler {
	return &Handler{
		svc:       svc,
		auth:      am,
		bus:       bus,
		store:     store,
		config:    cfg,
		keepalive: 15 * time.Second,
	}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.handleRoot)
	r.Get("/health", h.handleHealth)

	r.Route("/c/{course}", func(r chi.Router) {
		r.Use(h.requireCourse)
		r.Post("/enter-pid", h.handleEnterPID)
		r.Post("/logout", h.handleStudentLogout)

		r.Group(func(r chi.Router) {
			r.Use(h.requireStudent)
			r.Get("/session", h.handleSessionState)
			r.Post("/answer", h.handleAnswer)
			r.Get("/results/{questionID}", h.handleResults)
			r.Post("/ask", h.handleAsk)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", h.handleAdminLogin)
			r.Post("/logout", h.handleAdminLogout)

			r.Group(func(r chi.Router) {
				r.Use(h.requireAdmin)
				r.Post("/session/start", h.handleStartSession)
				r.Post("/session/stop", h.handleStopSession)
				r.Post("/question", h.handleStartQuestion)
				r.Post("/question/{questionID}/stop", h.handleCloseQuestion)
				r.Post("/question/{questionID}/share-results", h.handleShareResults)
				r.Get("/distribution", h.handleDistribution)
				r.Get("/export", h.handleExport)
				r.Get("/archives", h.handleListArchives)
				r.Get("/archives/{sessionID}", h.handleGetArchive)
				r.Get("/questions", h.handlePendingQuestions)
				r.Delete("/questions/{questionID}", h.handleDismissQuestion)
				r.Post("/escalate", h.handleEscalate)
			})
		})
	})

	r.With(h.requireCourse, h.requireAdmin).Get("/sse/admin/{course}", h.handleAdminStream)
	r.With(h.requireCourse, h.requireStudent).Get("/sse/student/{course}", h.handleStudentStream)
}

func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Classroom Q&A API"})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		slog.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// parseJSONBody parses the request body into the given struct.
func parseJSONBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var (
		validation   *classroom.ValidationError
		precondition *classroom.PreconditionError
		notFound     *classroom.NotFoundError
		rateLimited  *classroom.RateLimitedError
		store        *classroom.StoreError
	)
	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Reason)
	case errors.As(err, &precondition):
		writeError(w, http.StatusBadRequest, precondition.Reason)
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, notFound.Error())
	case errors.As(err, &rateLimited):
		retry := retryAfterSeconds(rateLimited.RetryAfter)
		w.Header().Set("Retry-After", strconv.Itoa(retry))
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":       "rate limited, slow down",
			"retry_after": retry,
		})
	case errors.As(err, &store):
		slog.Error("store unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
	case errors.Is(err, classroom.ErrNoSummarizer):
		writeError(w, http.StatusServiceUnavailable, "no summarizer configured")
	default:
		slog.Error("unhandled service error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// retryAfterSeconds rounds up so a client that waits the advertised
// interval is never still inside the window.
func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}
