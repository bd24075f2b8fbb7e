package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eldridgejm/classroom-qa/internal/model"
)

func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	course := chi.URLParam(r, "course")
	if err := h.svc.StartSession(r.Context(), course); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func (h *Handler) handleStopSession(w http.ResponseWriter, r *http.Request) {
	course := chi.URLParam(r, "course")
	sessionID, err := h.svc.StopSession(r.Context(), course)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped", "session_id": sessionID})
}

func (h *Handler) handleStartQuestion(w http.ResponseWriter, r *http.Request) {
	course := chi.URLParam(r, "course")
	var req struct {
		Type    model.QuestionType `json:"type"`
		Options []string           `json:"options"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	meta, err := h.svc.StartQuestion(r.Context(), course, req.Type, req.Options)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"question_id": meta.ID})
}

func (h *Handler) handleCloseQuestion(w http.ResponseWriter, r *http.Request) {
	course := chi.URLParam(r, "course")
	questionID := chi.URLParam(r, "questionID")
	if err := h.svc.CloseQuestion(r.Context(), course, questionID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped", "question_id": questionID})
}

func (h *Handler) handleShareResults(w http.ResponseWriter, r *http.Request) {
	course := chi.URLParam(r, "course")
	questionID := chi.URLParam(r, "questionID")
	status, _, err := h.svc.ShareResults(r.Context(), course, questionID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":      string(status),
		"question_id": questionID,
	})
}

// handleDistribution serves the live tally view the admin page polls.
// Without a question_id parameter it reports on the current question.
func (h *Handler) handleDistribution(w http.ResponseWriter, r *http.Request) {
	course := chi.URLParam(r, "course")
	questionID := r.URL.Query().Get("question_id")
	if questionID == "" {
		current, err := h.svc.CurrentQuestion(r.Context(), course)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		if current == nil {
			writeError(w, http.StatusNotFound, "no current question")
			return
		}
		questionID = current.ID
	}
	dist, err := h.svc.Distribution(r.Context(), course, questionID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dist)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	course := chi.URLParam(r, "course")
	export, err := h.svc.ExportLive(r.Context(), course)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+course+`-session.json"`)
	writeJSON(w, http.StatusOK, export)
}

func (h *Handler) handleListArchives(w http.ResponseWriter, r *http.Request) {
	course := chi.URLParam(r, "course")
	archives, err := h.svc.ListArchives(r.Context(), course)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"archives": archives})
}

func (h *Handler) handleGetArchive(w http.ResponseWriter, r *http.Request) {
	course := chi.URLParam(r, "course")
	sessionID := chi.URLParam(r, "sessionID")
	arch, err := h.svc.Archive(r.Context(), course, sessionID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, arch)
}

func (h *Handler) handlePendingQuestions(w http.ResponseWriter, r *http.Request) {
	course := chi.URLParam(r, "course")
	questions, err := h.svc.PendingQuestions(r.Context(), course)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *Handler) handleDismissQuestion(w http.ResponseWriter, r *http.Request) {
	course := chi.URLParam(r, "course")
	questionID := chi.URLParam(r, "questionID")
	removed, err := h.svc.Dismiss(r.Context(), course, questionID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "question not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "dismissed", "question_id": questionID})
}

func (h *Handler) handleEscalate(w http.ResponseWriter, r *http.Request) {
	course := chi.URLParam(r, "course")
	ev, err := h.svc.Escalate(r.Context(), course)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}
