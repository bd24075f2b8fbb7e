package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eldridgejm/classroom-qa/internal/auth"
	"github.com/eldridgejm/classroom-qa/internal/model"
)

const (
	studentCookieName = "student_session"
	adminCookieName   = "admin_session"
)

// requireCourse rejects unknown course slugs before any auth check, so
// probing with a stolen cookie cannot distinguish "wrong course" from
// "no course."
func (h *Handler) requireCourse(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "course")
		if _, ok := h.config.Course(slug); !ok {
			writeError(w, http.StatusNotFound, "course not found")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireStudent is middleware that resolves the student session cookie
// and stashes the PID in the request context.
func (h *Handler) requireStudent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(studentCookieName)
		if err != nil || cookie.Value == "" {
			writeError(w, http.StatusUnauthorized, "PID entry required")
			return
		}
		pid, err := h.auth.StudentPID(r.Context(), cookie.Value)
		if err != nil {
			slog.Error("failed to resolve student token", "error", err)
			writeError(w, http.StatusServiceUnavailable, "storage unavailable")
			return
		}
		if pid == "" {
			writeError(w, http.StatusUnauthorized, "PID entry required")
			return
		}
		ctx := model.ContextWithPID(r.Context(), pid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin is middleware that checks the instructor cookie grants
// the course in the URL. A token for one course does not open another.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(adminCookieName)
		if err != nil || cookie.Value == "" {
			writeError(w, http.StatusForbidden, "instructor login required")
			return
		}
		granted, err := h.auth.AdminCourse(r.Context(), cookie.Value)
		if err != nil {
			slog.Error("failed to resolve admin token", "error", err)
			writeError(w, http.StatusServiceUnavailable, "storage unavailable")
			return
		}
		if granted == "" || granted != chi.URLParam(r, "course") {
			writeError(w, http.StatusForbidden, "instructor login required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) handleEnterPID(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PID string `json:"pid"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	token, err := h.auth.IssueStudentToken(r.Context(), req.PID)
	if errors.Is(err, auth.ErrInvalidPID) {
		writeError(w, http.StatusBadRequest, "PID must be the letter A followed by 8 digits")
		return
	}
	if err != nil {
		slog.Error("failed to issue student token", "error", err)
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	h.setSessionCookie(w, studentCookieName, token)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "pid": req.PID})
}

func (h *Handler) handleStudentLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(studentCookieName); err == nil && cookie.Value != "" {
		if err := h.auth.RevokeStudent(r.Context(), cookie.Value); err != nil {
			slog.Error("failed to revoke student token", "error", err)
		}
	}
	h.clearSessionCookie(w, studentCookieName)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	course := chi.URLParam(r, "course")
	var req struct {
		Secret string `json:"secret"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	entry, _ := h.config.Course(course)
	if !entry.VerifySecret(req.Secret) {
		writeError(w, http.StatusForbidden, "wrong course secret")
		return
	}
	token, err := h.auth.IssueAdminToken(r.Context(), course)
	if err != nil {
		slog.Error("failed to issue admin token", "error", err)
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	h.setSessionCookie(w, adminCookieName, token)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "course": course})
}

func (h *Handler) handleAdminLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(adminCookieName); err == nil && cookie.Value != "" {
		if err := h.auth.RevokeAdmin(r.Context(), cookie.Value); err != nil {
			slog.Error("failed to revoke admin token", "error", err)
		}
	}
	h.clearSessionCookie(w, adminCookieName)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, name, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.config.SecureCookies,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
	})
}
