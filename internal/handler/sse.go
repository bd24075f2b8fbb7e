package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eldridgejm/classroom-qa/internal/events"
)

func (h *Handler) handleAdminStream(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, events.AudienceInstructor)
}

func (h *Handler) handleStudentStream(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, events.AudienceStudent)
}

// stream pumps course events to one client as text/event-stream frames.
// Each event is an "event:" line, a "data:" line, and a blank line.
// Keepalive comments are transport traffic only and never carry an
// event name.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request, audience events.Audience) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	course := chi.URLParam(r, "course")
	sub := h.bus.Subscribe(course, audience)
	// The subscription must be released on every exit path, including
	// mid-stream write failures, or the broker leaks channels.
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	// Proxies must not buffer the stream.
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
		return
	}
	flusher.Flush()

	keepalive := time.NewTicker(h.keepalive)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-sub.Events():
			if !open {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Event, ev.Data); err != nil {
				return
			}
			flusher.Flush()
		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
