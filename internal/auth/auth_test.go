package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eldridgejm/classroom-qa/internal/kv"
)

func newTestManager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()
	return New(kv.NewMemory(), ttl)
}

func TestStudentTokenRoundTrip(t *testing.T) {
	m := newTestManager(t, time.Hour)
	ctx := context.Background()

	token, err := m.IssueStudentToken(ctx, "A12345678")
	if err != nil {
		t.Fatalf("IssueStudentToken: %v", err)
	}
	if len(token) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(token))
	}

	pid, err := m.StudentPID(ctx, token)
	if err != nil {
		t.Fatalf("StudentPID: %v", err)
	}
	if pid != "A12345678" {
		t.Errorf("expected A12345678, got %q", pid)
	}

	// Tokens must not repeat.
	other, err := m.IssueStudentToken(ctx, "A12345678")
	if err != nil {
		t.Fatalf("IssueStudentToken: %v", err)
	}
	if other == token {
		t.Error("expected distinct tokens for repeated sign-ins")
	}
}

func TestIssueStudentTokenRejectsBadPID(t *testing.T) {
	m := newTestManager(t, time.Hour)
	for _, pid := range []string{"", "12345678", "A1234567", "A123456789", "B12345678", "a12345678"} {
		if _, err := m.IssueStudentToken(context.Background(), pid); !errors.Is(err, ErrInvalidPID) {
			t.Errorf("pid %q: expected ErrInvalidPID, got %v", pid, err)
		}
	}
}

func TestAdminTokenRoundTrip(t *testing.T) {
	m := newTestManager(t, time.Hour)
	ctx := context.Background()

	token, err := m.IssueAdminToken(ctx, "cse101")
	if err != nil {
		t.Fatalf("IssueAdminToken: %v", err)
	}
	course, err := m.AdminCourse(ctx, token)
	if err != nil {
		t.Fatalf("AdminCourse: %v", err)
	}
	if course != "cse101" {
		t.Errorf("expected cse101, got %q", course)
	}

	// Admin tokens do not double as student tokens.
	pid, err := m.StudentPID(ctx, token)
	if err != nil {
		t.Fatalf("StudentPID: %v", err)
	}
	if pid != "" {
		t.Errorf("expected empty PID for admin token, got %q", pid)
	}
}

func TestUnknownTokenResolvesEmpty(t *testing.T) {
	m := newTestManager(t, time.Hour)
	ctx := context.Background()

	pid, err := m.StudentPID(ctx, "deadbeef")
	if err != nil {
		t.Fatalf("StudentPID: %v", err)
	}
	if pid != "" {
		t.Errorf("expected empty PID, got %q", pid)
	}
	course, err := m.AdminCourse(ctx, "deadbeef")
	if err != nil {
		t.Fatalf("AdminCourse: %v", err)
	}
	if course != "" {
		t.Errorf("expected empty course, got %q", course)
	}
}

func TestRevoke(t *testing.T) {
	m := newTestManager(t, time.Hour)
	ctx := context.Background()

	st, _ := m.IssueStudentToken(ctx, "A12345678")
	at, _ := m.IssueAdminToken(ctx, "cse101")

	if err := m.RevokeStudent(ctx, st); err != nil {
		t.Fatalf("RevokeStudent: %v", err)
	}
	if err := m.RevokeAdmin(ctx, at); err != nil {
		t.Fatalf("RevokeAdmin: %v", err)
	}

	if pid, _ := m.StudentPID(ctx, st); pid != "" {
		t.Errorf("expected revoked student token to resolve empty, got %q", pid)
	}
	if course, _ := m.AdminCourse(ctx, at); course != "" {
		t.Errorf("expected revoked admin token to resolve empty, got %q", course)
	}
}

func TestTokenExpiry(t *testing.T) {
	m := newTestManager(t, 30*time.Millisecond)
	ctx := context.Background()

	token, err := m.IssueStudentToken(ctx, "A12345678")
	if err != nil {
		t.Fatalf("IssueStudentToken: %v", err)
	}
	time.Sleep(60 * time.Millisecond)

	pid, err := m.StudentPID(ctx, token)
	if err != nil {
		t.Fatalf("StudentPID: %v", err)
	}
	if pid != "" {
		t.Errorf("expected expired token to resolve empty, got %q", pid)
	}
}
