// Package auth issues and resolves the opaque bearer tokens behind the
// student and instructor cookies. Tokens live in the key-value store
// with a TTL, so restarting the server or expiring the key signs the
// holder out.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/eldridgejm/classroom-qa/internal/kv"
	"github.com/eldridgejm/classroom-qa/internal/model"
)

// ErrInvalidPID is returned when a student identifier fails format
// validation at sign-in.
var ErrInvalidPID = errors.New("invalid PID format")

func studentTokenKey(token string) string { return "auth:student:" + token }
func adminTokenKey(token string) string   { return "auth:admin:" + token }

// Manager mints tokens and maps them back to their principal.
type Manager struct {
	store kv.Store
	ttl   time.Duration
}

func New(store kv.Store, ttl time.Duration) *Manager {
	return &Manager{store: store, ttl: ttl}
}

// IssueStudentToken validates the PID and returns a fresh token bound
// to it.
func (m *Manager) IssueStudentToken(ctx context.Context, pid string) (string, error) {
	if !model.ValidPID(pid) {
		return "", ErrInvalidPID
	}
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	if err := kv.Set(ctx, m.store, studentTokenKey(token), pid, m.ttl); err != nil {
		return "", err
	}
	return token, nil
}

// IssueAdminToken returns a fresh token bound to a course. The caller
// is responsible for having verified the course secret first.
func (m *Manager) IssueAdminToken(ctx context.Context, course string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	if err := kv.Set(ctx, m.store, adminTokenKey(token), course, m.ttl); err != nil {
		return "", err
	}
	return token, nil
}

// StudentPID resolves a student token. An unknown or expired token
// yields an empty PID and no error.
func (m *Manager) StudentPID(ctx context.Context, token string) (string, error) {
	return m.resolve(ctx, studentTokenKey(token))
}

// AdminCourse resolves an instructor token to the course it grants.
// An unknown or expired token yields an empty course and no error.
func (m *Manager) AdminCourse(ctx context.Context, token string) (string, error) {
	return m.resolve(ctx, adminTokenKey(token))
}

func (m *Manager) resolve(ctx context.Context, key string) (string, error) {
	val, err := kv.Get(ctx, m.store, key)
	if err == kv.ErrNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// RevokeStudent invalidates a student token at sign-out.
func (m *Manager) RevokeStudent(ctx context.Context, token string) error {
	return kv.Delete(ctx, m.store, studentTokenKey(token))
}

// RevokeAdmin invalidates an instructor token at sign-out.
func (m *Manager) RevokeAdmin(ctx context.Context, token string) error {
	return kv.Delete(ctx, m.store, adminTokenKey(token))
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
