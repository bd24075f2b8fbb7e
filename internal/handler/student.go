package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eldridgejm/classroom-qa/internal/model"
)

type sessionStateResponse struct {
	Live            bool                `json:"is_live"`
	CurrentQuestion *model.QuestionMeta `json:"current_question"`
}

func (h *Handler) handleSessionState(w http.ResponseWriter, r *http.Request) {
	course := chi.URLParam(r, "course")
	state, err := h.svc.SessionState(r.Context(), course)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	resp := sessionStateResponse{Live: state.Live}
	if state.CurrentQuestionID != "" {
		meta, err := h.svc.Question(r.Context(), course, state.CurrentQuestionID)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		resp.CurrentQuestion = &meta
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	course := chi.URLParam(r, "course")
	pid := model.PIDFromContext(r.Context())

	var req struct {
		QuestionID string             `json:"question_id"`
		Response   *model.AnswerValue `json:"response"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.QuestionID == "" {
		writeError(w, http.StatusBadRequest, "question_id is required")
		return
	}
	if req.Response == nil {
		writeError(w, http.StatusBadRequest, "response is required")
		return
	}

	counts, err := h.svc.SubmitAnswer(r.Context(), course, req.QuestionID, pid, *req.Response)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "submitted",
		"counts": counts,
	})
}

// handleResults shows a question's distribution to a student, but only
// after the instructor explicitly shared it.
func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	course := chi.URLParam(r, "course")
	questionID := chi.URLParam(r, "questionID")
	pid := model.PIDFromContext(r.Context())

	meta, err := h.svc.Question(r.Context(), course, questionID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if !meta.ResultsShared {
		writeError(w, http.StatusNotFound, "results not available")
		return
	}
	dist, err := h.svc.Distribution(r.Context(), course, questionID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	own, err := h.svc.Response(r.Context(), course, questionID, pid)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	resp := struct {
		model.Distribution
		YourAnswer *model.AnswerValue `json:"your_answer"`
	}{Distribution: dist}
	if own != nil {
		resp.YourAnswer = &own.Response
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	course := chi.URLParam(r, "course")
	pid := model.PIDFromContext(r.Context())

	var req struct {
		Question string `json:"question"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	sq, err := h.svc.Ask(r.Context(), course, pid, req.Question)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":      "success",
		"question_id": sq.QuestionID,
	})
}
