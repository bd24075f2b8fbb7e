package classroom

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/eldridgejm/classroom-qa/internal/kv"
	"github.com/eldridgejm/classroom-qa/internal/model"
)

// ErrNoSummarizer is returned by Escalate when the server runs without
// an LLM endpoint.
var ErrNoSummarizer = errors.New("no summarizer configured")

// Ask submits a free-text student question, subject to a fixed-window
// rate limit per student. The text is scrubbed of institutional IDs
// before storage so quoting a PID cannot de-anonymize anyone.
func (s *Service) Ask(ctx context.Context, course, studentID, text string) (model.StudentQuestion, error) {
	if err := s.requireCourse(course); err != nil {
		return model.StudentQuestion{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return model.StudentQuestion{}, &ValidationError{Reason: "question must not be empty"}
	}
	if utf8.RuneCountInString(text) > s.cfg.MaxQuestionLen {
		return model.StudentQuestion{}, &ValidationError{Reason: fmt.Sprintf("question exceeds %d characters", s.cfg.MaxQuestionLen)}
	}

	now := s.now()
	sq := model.StudentQuestion{
		QuestionID: newAskID(now),
		PID:        studentID,
		Question:   model.RedactPIDs(text),
		Timestamp:  now,
	}
	err := s.store.Update(ctx, func(tx kv.Tx) error {
		live, err := sessionLive(tx, course)
		if err != nil {
			return err
		}
		if !live {
			return &PreconditionError{Reason: "questions can only be submitted during a live session"}
		}
		// Check-and-set in one step: a bare exists-then-set would let
		// two near-simultaneous asks both through.
		set, err := tx.SetNX(askRateKey(course, studentID), "1", s.cfg.AskWindow)
		if err != nil {
			return err
		}
		if !set {
			retry, err := tx.TTL(askRateKey(course, studentID))
			if err != nil {
				retry = s.cfg.AskWindow
			}
			return &RateLimitedError{RetryAfter: retry}
		}
		return putJSON(tx, studentQuestionKey(course, sq.QuestionID), sq, s.cfg.AskTTL)
	})
	if err != nil {
		return model.StudentQuestion{}, classify(err)
	}
	s.bus.Publish(course, model.EventNewQuestion, model.NewQuestionEvent{
		QuestionID: sq.QuestionID,
		PID:        sq.PID,
		Question:   sq.Question,
	})
	s.logger.Info("student question submitted", "course", course, "question_id", sq.QuestionID)
	return sq, nil
}

// PendingQuestions lists undismissed student questions, newest first.
func (s *Service) PendingQuestions(ctx context.Context, course string) ([]model.StudentQuestion, error) {
	if err := s.requireCourse(course); err != nil {
		return nil, err
	}
	var questions []model.StudentQuestion
	err := s.store.View(ctx, func(tx kv.ReadTx) error {
		keys, err := tx.Keys(studentQuestionPrefix(course))
		if err != nil {
			return err
		}
		questions = make([]model.StudentQuestion, 0, len(keys))
		for _, k := range keys {
			var sq model.StudentQuestion
			ok, err := getJSON(tx, k, &sq)
			if err != nil {
				return err
			}
			if ok {
				questions = append(questions, sq)
			}
		}
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	// Ask ids embed a millisecond timestamp, so id order is time order.
	sort.Slice(questions, func(i, j int) bool {
		return questions[i].QuestionID > questions[j].QuestionID
	})
	return questions, nil
}

// Dismiss removes a student question, reporting whether it existed.
func (s *Service) Dismiss(ctx context.Context, course, questionID string) (bool, error) {
	if err := s.requireCourse(course); err != nil {
		return false, err
	}
	removed := false
	err := s.store.Update(ctx, func(tx kv.Tx) error {
		_, err := tx.Get(studentQuestionKey(course, questionID))
		if err == kv.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		removed = true
		return tx.Delete(studentQuestionKey(course, questionID))
	})
	if err != nil {
		return false, classify(err)
	}
	return removed, nil
}

// Escalate condenses the pending student questions into a short summary
// and broadcasts it to the course channel.
func (s *Service) Escalate(ctx context.Context, course string) (model.EscalationEvent, error) {
	if err := s.requireCourse(course); err != nil {
		return model.EscalationEvent{}, err
	}
	if s.summarizer == nil {
		return model.EscalationEvent{}, ErrNoSummarizer
	}
	pending, err := s.PendingQuestions(ctx, course)
	if err != nil {
		return model.EscalationEvent{}, err
	}
	if len(pending) == 0 {
		return model.EscalationEvent{}, &PreconditionError{Reason: "no pending student questions"}
	}
	texts := make([]string, len(pending))
	for i, q := range pending {
		texts[i] = q.Question
	}
	summary, err := s.summarizer.SummarizeQuestions(ctx, texts)
	if err != nil {
		return model.EscalationEvent{}, fmt.Errorf("summarize questions: %w", err)
	}
	ev := model.EscalationEvent{Summary: summary, Count: len(pending)}
	s.bus.Publish(course, model.EventEscalation, ev)
	s.logger.Info("escalation summary published", "course", course, "count", ev.Count)
	return ev, nil
}
