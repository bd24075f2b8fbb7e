// Package classroom implements the live polling core for each course:
// session lifecycle, atomic vote tallies, the free-text ask channel,
// result distributions, and session archival.
package classroom

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/eldridgejm/classroom-qa/internal/config"
	"github.com/eldridgejm/classroom-qa/internal/events"
	"github.com/eldridgejm/classroom-qa/internal/kv"
)

// Summarizer condenses pending student questions into a short summary
// an instructor can glance at mid-lecture.
type Summarizer interface {
	SummarizeQuestions(ctx context.Context, questions []string) (string, error)
}

// Service coordinates all live-session state for the configured
// courses. It is stateless between calls: every piece of durable state
// lives in the key-value store, and cross-request consistency goes
// through store transactions.
type Service struct {
	cfg        config.Config
	store      kv.Store
	bus        *events.Bus
	summarizer Summarizer
	logger     *slog.Logger
	now        func() time.Time
}

// New creates the service. summarizer may be nil, which disables
// escalation summaries.
func New(cfg config.Config, store kv.Store, bus *events.Bus, summarizer Summarizer, logger *slog.Logger) *Service {
	return &Service{
		cfg:        cfg,
		store:      store,
		bus:        bus,
		summarizer: summarizer,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// requireCourse rejects slugs that are not in the course table.
func (s *Service) requireCourse(course string) error {
	if _, ok := s.cfg.Course(course); !ok {
		return &NotFoundError{What: "course " + course}
	}
	return nil
}

func newPollQuestionID() string {
	return "q-" + uuid.NewString()
}

// newArchiveID sorts by stop time so listings need no secondary index.
func newArchiveID(now time.Time) string {
	return fmt.Sprintf("arch-%d-%s", now.Unix(), uuid.NewString()[:8])
}

// newAskID sorts by submission time.
func newAskID(now time.Time) string {
	return fmt.Sprintf("q-%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}

// getJSON decodes the value at key into out, reporting whether the key
// existed.
func getJSON(tx kv.ReadTx, key string, out any) (bool, error) {
	raw, err := tx.Get(key)
	if err == kv.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func putJSON(tx kv.Tx, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return tx.Set(key, string(data), ttl)
}
