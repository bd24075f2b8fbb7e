package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eldridgejm/classroom-qa/internal/auth"
	"github.com/eldridgejm/classroom-qa/internal/classroom"
	"github.com/eldridgejm/classroom-qa/internal/config"
	"github.com/eldridgejm/classroom-qa/internal/events"
	"github.com/eldridgejm/classroom-qa/internal/kv"
	"github.com/eldridgejm/classroom-qa/internal/model"
)

func newTestHandler(t *testing.T) (*Handler, *chi.Mux) {
	t.Helper()
	cfg := config.Config{
		Courses: map[string]config.Course{
			"cse101": {Name: "Intro", Secret: "adminkey"},
			"cse102": {Name: "Systems", Secret: "otherkey"},
		},
		AuthTTL:        time.Hour,
		AskWindow:      40 * time.Millisecond,
		AskTTL:         time.Hour,
		MaxQuestionLen: 1000,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := kv.NewMemory()
	bus := events.NewBus(logger)
	svc := classroom.New(cfg, store, bus, nil, logger)
	h := New(svc, auth.New(store, cfg.AuthTTL), bus, store, cfg)
	r := chi.NewRouter()
	h.Routes(r)
	return h, r
}

func doJSON(t *testing.T, r http.Handler, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func findCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name && c.Value != "" {
			return c
		}
	}
	t.Fatalf("cookie %s not set", name)
	return nil
}

func loginAdmin(t *testing.T, r http.Handler, course, secret string) *http.Cookie {
	t.Helper()
	rec := doJSON(t, r, "POST", "/c/"+course+"/admin/login", `{"secret":"`+secret+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin login: status %d: %s", rec.Code, rec.Body)
	}
	return findCookie(t, rec, adminCookieName)
}

func enterPID(t *testing.T, r http.Handler, pid string) *http.Cookie {
	t.Helper()
	rec := doJSON(t, r, "POST", "/c/cse101/enter-pid", `{"pid":"`+pid+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("enter-pid: status %d: %s", rec.Code, rec.Body)
	}
	return findCookie(t, rec, studentCookieName)
}

func TestEnterPID(t *testing.T) {
	_, r := newTestHandler(t)

	rec := doJSON(t, r, "POST", "/c/cse101/enter-pid", `{"pid":"A12345678"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	cookie := findCookie(t, rec, studentCookieName)
	if !cookie.HttpOnly {
		t.Error("expected HttpOnly student cookie")
	}

	rec = doJSON(t, r, "POST", "/c/cse101/enter-pid", `{"pid":"12345678"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad pid: expected 400, got %d", rec.Code)
	}

	rec = doJSON(t, r, "POST", "/c/nosuch/enter-pid", `{"pid":"A12345678"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown course: expected 404, got %d", rec.Code)
	}
}

func TestAdminLogin(t *testing.T) {
	_, r := newTestHandler(t)

	cookie := loginAdmin(t, r, "cse101", "adminkey")
	if !cookie.HttpOnly {
		t.Error("expected HttpOnly admin cookie")
	}

	rec := doJSON(t, r, "POST", "/c/cse101/admin/login", `{"secret":"wrong"}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("wrong secret: expected 403, got %d", rec.Code)
	}

	rec = doJSON(t, r, "POST", "/c/nosuch/admin/login", `{"secret":"adminkey"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown course: expected 404, got %d", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	_, r := newTestHandler(t)

	rec := doJSON(t, r, "GET", "/c/cse101/session", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("student route without cookie: expected 401, got %d", rec.Code)
	}

	rec = doJSON(t, r, "POST", "/c/cse101/admin/session/start", "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("admin route without cookie: expected 403, got %d", rec.Code)
	}

	// An admin token is scoped to the course that issued it.
	admin := loginAdmin(t, r, "cse101", "adminkey")
	rec = doJSON(t, r, "POST", "/c/cse102/admin/session/start", "", admin)
	if rec.Code != http.StatusForbidden {
		t.Errorf("cross-course admin token: expected 403, got %d", rec.Code)
	}

	// Logout revokes the token server-side.
	rec = doJSON(t, r, "POST", "/c/cse101/admin/logout", "", admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", rec.Code)
	}
	rec = doJSON(t, r, "POST", "/c/cse101/admin/session/start", "", admin)
	if rec.Code != http.StatusForbidden {
		t.Errorf("revoked admin token: expected 403, got %d", rec.Code)
	}
}

func TestPollingFlow(t *testing.T) {
	_, r := newTestHandler(t)
	admin := loginAdmin(t, r, "cse101", "adminkey")
	student := enterPID(t, r, "A12345678")

	rec := doJSON(t, r, "POST", "/c/cse101/admin/session/start", "", admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("start session: %d: %s", rec.Code, rec.Body)
	}

	var state sessionStateResponse
	rec = doJSON(t, r, "GET", "/c/cse101/session", "", student)
	decodeBody(t, rec, &state)
	if !state.Live || state.CurrentQuestion != nil {
		t.Errorf("expected live session with no question, got %+v", state)
	}

	rec = doJSON(t, r, "POST", "/c/cse101/admin/question", `{"type":"mcq","options":["A","B","C","D"]}`, admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("start question: %d: %s", rec.Code, rec.Body)
	}
	var created struct {
		QuestionID string `json:"question_id"`
	}
	decodeBody(t, rec, &created)
	if created.QuestionID == "" {
		t.Fatal("expected question id in response")
	}
	qid := created.QuestionID

	rec = doJSON(t, r, "GET", "/c/cse101/session", "", student)
	decodeBody(t, rec, &state)
	if state.CurrentQuestion == nil || state.CurrentQuestion.ID != qid {
		t.Errorf("expected current question %s, got %+v", qid, state.CurrentQuestion)
	}

	rec = doJSON(t, r, "POST", "/c/cse101/answer", `{"question_id":"`+qid+`","response":"A"}`, student)
	if rec.Code != http.StatusOK {
		t.Fatalf("answer: %d: %s", rec.Code, rec.Body)
	}
	var answerResp struct {
		Status string         `json:"status"`
		Counts map[string]int `json:"counts"`
	}
	decodeBody(t, rec, &answerResp)
	if answerResp.Status != "submitted" {
		t.Errorf("expected status submitted, got %q", answerResp.Status)
	}
	if answerResp.Counts["A"] != 1 {
		t.Errorf("expected counts {A:1}, got %v", answerResp.Counts)
	}

	// Results are unavailable until shared.
	rec = doJSON(t, r, "GET", "/c/cse101/results/"+qid, "", student)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unshared results: expected 404, got %d", rec.Code)
	}

	rec = doJSON(t, r, "POST", "/c/cse101/admin/question/"+qid+"/stop", "", admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("stop question: %d: %s", rec.Code, rec.Body)
	}

	var share struct {
		Status string `json:"status"`
	}
	rec = doJSON(t, r, "POST", "/c/cse101/admin/question/"+qid+"/share-results", "", admin)
	decodeBody(t, rec, &share)
	if share.Status != "shared" {
		t.Errorf("expected shared, got %q", share.Status)
	}
	rec = doJSON(t, r, "POST", "/c/cse101/admin/question/"+qid+"/share-results", "", admin)
	decodeBody(t, rec, &share)
	if share.Status != "already_shared" {
		t.Errorf("expected already_shared, got %q", share.Status)
	}

	var results struct {
		model.Distribution
		YourAnswer any `json:"your_answer"`
	}
	rec = doJSON(t, r, "GET", "/c/cse101/results/"+qid, "", student)
	if rec.Code != http.StatusOK {
		t.Fatalf("results: %d: %s", rec.Code, rec.Body)
	}
	decodeBody(t, rec, &results)
	if results.Counts["A"] != 1 || results.Counts["D"] != 0 {
		t.Errorf("unexpected distribution counts: %v", results.Counts)
	}
	if results.Percentages["A"] != 100.0 {
		t.Errorf("expected A at 100%%, got %v", results.Percentages["A"])
	}
	if results.YourAnswer != "A" {
		t.Errorf("expected your_answer A, got %v", results.YourAnswer)
	}

	var stop struct {
		SessionID string `json:"session_id"`
	}
	rec = doJSON(t, r, "POST", "/c/cse101/admin/session/stop", "", admin)
	decodeBody(t, rec, &stop)
	if stop.SessionID == "" {
		t.Fatal("expected session_id from stop")
	}

	var listing struct {
		Archives []model.ArchiveSummary `json:"archives"`
	}
	rec = doJSON(t, r, "GET", "/c/cse101/admin/archives", "", admin)
	decodeBody(t, rec, &listing)
	if len(listing.Archives) != 1 || listing.Archives[0].QuestionCount != 1 {
		t.Fatalf("unexpected archive listing: %+v", listing.Archives)
	}

	var arch model.ArchivedSession
	rec = doJSON(t, r, "GET", "/c/cse101/admin/archives/"+stop.SessionID, "", admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("get archive: %d: %s", rec.Code, rec.Body)
	}
	decodeBody(t, rec, &arch)
	if len(arch.Questions) != 1 {
		t.Fatalf("expected 1 archived question, got %d", len(arch.Questions))
	}
	if _, ok := arch.Questions[0].Responses["A12345678"]; !ok {
		t.Error("expected archived response for the student")
	}
}

func TestAnswerErrorMapping(t *testing.T) {
	_, r := newTestHandler(t)
	admin := loginAdmin(t, r, "cse101", "adminkey")
	student := enterPID(t, r, "A12345678")

	// No live session: opening a question or answering one is a
	// precondition failure.
	rec := doJSON(t, r, "POST", "/c/cse101/admin/question", `{"type":"tf"}`, admin)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("question without session: expected 400, got %d", rec.Code)
	}
	rec = doJSON(t, r, "POST", "/c/cse101/answer", `{"question_id":"q-x","response":"A"}`, student)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("answer without session: expected 400, got %d", rec.Code)
	}

	doJSON(t, r, "POST", "/c/cse101/admin/session/start", "", admin)

	rec = doJSON(t, r, "POST", "/c/cse101/answer", `{"question_id":"q-missing","response":"A"}`, student)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown question: expected 404, got %d", rec.Code)
	}

	rec = doJSON(t, r, "POST", "/c/cse101/answer", `{"question_id":"q-x"}`, student)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing answer: expected 400, got %d", rec.Code)
	}

	rec = doJSON(t, r, "POST", "/c/cse101/admin/question", `{"type":"mcq"}`, admin)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("mcq without options: expected 400, got %d", rec.Code)
	}
}

func TestAskFlow(t *testing.T) {
	_, r := newTestHandler(t)
	admin := loginAdmin(t, r, "cse101", "adminkey")
	student := enterPID(t, r, "A12345678")

	doJSON(t, r, "POST", "/c/cse101/admin/session/start", "", admin)

	rec := doJSON(t, r, "POST", "/c/cse101/ask", `{"question":"what about A99999999's claim?"}`, student)
	if rec.Code != http.StatusOK {
		t.Fatalf("ask: %d: %s", rec.Code, rec.Body)
	}
	var asked struct {
		Status     string `json:"status"`
		QuestionID string `json:"question_id"`
	}
	decodeBody(t, rec, &asked)
	if asked.Status != "success" || asked.QuestionID == "" {
		t.Fatalf("unexpected ask response: %+v", asked)
	}

	// Second ask within the window is rate limited with a usable
	// Retry-After header and a retry_after body field.
	rec = doJSON(t, r, "POST", "/c/cse101/ask", `{"question":"another one"}`, student)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d: %s", rec.Code, rec.Body)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	var limited struct {
		RetryAfter int `json:"retry_after"`
	}
	decodeBody(t, rec, &limited)
	if limited.RetryAfter < 1 {
		t.Errorf("expected positive retry_after, got %d", limited.RetryAfter)
	}

	var pending []model.StudentQuestion
	rec = doJSON(t, r, "GET", "/c/cse101/admin/questions", "", admin)
	decodeBody(t, rec, &pending)
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending question, got %d", len(pending))
	}
	if strings.Contains(pending[0].Question, "A99999999") {
		t.Errorf("stored question leaks a PID: %q", pending[0].Question)
	}

	var dismissed struct {
		Status string `json:"status"`
	}
	rec = doJSON(t, r, "DELETE", "/c/cse101/admin/questions/"+asked.QuestionID, "", admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("dismiss: %d: %s", rec.Code, rec.Body)
	}
	decodeBody(t, rec, &dismissed)
	if dismissed.Status != "dismissed" {
		t.Errorf("expected status dismissed, got %q", dismissed.Status)
	}
	rec = doJSON(t, r, "DELETE", "/c/cse101/admin/questions/"+asked.QuestionID, "", admin)
	if rec.Code != http.StatusNotFound {
		t.Errorf("repeat dismissal: expected 404, got %d", rec.Code)
	}
}

func TestEscalateWithoutSummarizer(t *testing.T) {
	_, r := newTestHandler(t)
	admin := loginAdmin(t, r, "cse101", "adminkey")

	rec := doJSON(t, r, "POST", "/c/cse101/admin/escalate", "", admin)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d: %s", rec.Code, rec.Body)
	}
}

func TestExportEndpoint(t *testing.T) {
	_, r := newTestHandler(t)
	admin := loginAdmin(t, r, "cse101", "adminkey")

	doJSON(t, r, "POST", "/c/cse101/admin/session/start", "", admin)
	doJSON(t, r, "POST", "/c/cse101/admin/question", `{"type":"tf"}`, admin)

	rec := doJSON(t, r, "GET", "/c/cse101/admin/export", "", admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("export: %d: %s", rec.Code, rec.Body)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "cse101") {
		t.Errorf("expected download disposition, got %q", cd)
	}
	var export []model.ArchivedQuestion
	decodeBody(t, rec, &export)
	if len(export) != 1 {
		t.Errorf("expected 1 exported question, got %d", len(export))
	}
}

func TestHealth(t *testing.T) {
	_, r := newTestHandler(t)
	rec := doJSON(t, r, "GET", "/health", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["status"] != "healthy" {
		t.Errorf("expected healthy status, got %v", body)
	}
}
