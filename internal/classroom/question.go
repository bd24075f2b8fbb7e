package classroom

import (
	"context"
	"fmt"

	"github.com/eldridgejm/classroom-qa/internal/kv"
	"github.com/eldridgejm/classroom-qa/internal/model"
)

// StartQuestion opens a new poll question and makes it current. A prior
// current question is superseded but deliberately left open; it stays
// answerable by id until closed.
func (s *Service) StartQuestion(ctx context.Context, course string, qtype model.QuestionType, options []string) (model.QuestionMeta, error) {
	if err := s.requireCourse(course); err != nil {
		return model.QuestionMeta{}, err
	}
	if !qtype.Valid() {
		return model.QuestionMeta{}, &ValidationError{Reason: fmt.Sprintf("unknown question type %q", qtype)}
	}
	if qtype == model.QuestionMCQ && len(options) == 0 {
		return model.QuestionMeta{}, &ValidationError{Reason: "multiple-choice questions require a non-empty options list"}
	}
	if qtype != model.QuestionMCQ && len(options) > 0 {
		return model.QuestionMeta{}, &ValidationError{Reason: fmt.Sprintf("%s questions do not take options", qtype)}
	}

	meta := model.QuestionMeta{
		ID:        newPollQuestionID(),
		Type:      qtype,
		Options:   options,
		StartedAt: s.now(),
	}
	err := s.store.Update(ctx, func(tx kv.Tx) error {
		live, err := sessionLive(tx, course)
		if err != nil {
			return err
		}
		if !live {
			return &PreconditionError{Reason: "no live session"}
		}
		if err := putJSON(tx, questionMetaKey(course, meta.ID), meta, 0); err != nil {
			return err
		}
		if err := putJSON(tx, questionResponsesKey(course, meta.ID), map[string]model.StoredResponse{}, 0); err != nil {
			return err
		}
		if err := putJSON(tx, questionCountsKey(course, meta.ID), map[string]int{}, 0); err != nil {
			return err
		}
		return tx.Set(currentQIDKey(course), meta.ID, 0)
	})
	if err != nil {
		return model.QuestionMeta{}, classify(err)
	}
	s.bus.Publish(course, model.EventQuestionStarted, model.QuestionStartedEvent{
		QuestionID: meta.ID,
		Type:       meta.Type,
		Options:    meta.Options,
	})
	s.logger.Info("question started", "course", course, "question_id", meta.ID, "type", meta.Type)
	return meta, nil
}

// CloseQuestion stops accepting answers for a question, keeping the
// first ended timestamp on repeat calls, and clears the current pointer
// if it points here. Closing an unknown id is a no-op, but the stop
// event is still broadcast so stale clients converge.
func (s *Service) CloseQuestion(ctx context.Context, course, questionID string) error {
	if err := s.requireCourse(course); err != nil {
		return err
	}
	err := s.store.Update(ctx, func(tx kv.Tx) error {
		var meta model.QuestionMeta
		ok, err := getJSON(tx, questionMetaKey(course, questionID), &meta)
		if err != nil {
			return err
		}
		if ok && meta.EndedAt == nil {
			ended := s.now()
			meta.EndedAt = &ended
			if err := putJSON(tx, questionMetaKey(course, questionID), meta, 0); err != nil {
				return err
			}
		}
		cur, err := tx.Get(currentQIDKey(course))
		if err == kv.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		if cur == questionID {
			return tx.Delete(currentQIDKey(course))
		}
		return nil
	})
	if err != nil {
		return classify(err)
	}
	s.bus.Publish(course, model.EventQuestionStopped, model.QuestionStoppedEvent{QuestionID: questionID})
	s.logger.Info("question closed", "course", course, "question_id", questionID)
	return nil
}

// Question returns the stored metadata for a poll question.
func (s *Service) Question(ctx context.Context, course, questionID string) (model.QuestionMeta, error) {
	var meta model.QuestionMeta
	if err := s.requireCourse(course); err != nil {
		return meta, err
	}
	err := s.store.View(ctx, func(tx kv.ReadTx) error {
		ok, err := getJSON(tx, questionMetaKey(course, questionID), &meta)
		if err != nil {
			return err
		}
		if !ok {
			return &NotFoundError{What: "question " + questionID}
		}
		return nil
	})
	if err != nil {
		return model.QuestionMeta{}, classify(err)
	}
	return meta, nil
}

// CurrentQuestion returns the current poll question, or nil when none
// is active.
func (s *Service) CurrentQuestion(ctx context.Context, course string) (*model.QuestionMeta, error) {
	if err := s.requireCourse(course); err != nil {
		return nil, err
	}
	var meta *model.QuestionMeta
	err := s.store.View(ctx, func(tx kv.ReadTx) error {
		qid, err := tx.Get(currentQIDKey(course))
		if err == kv.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		var m model.QuestionMeta
		ok, err := getJSON(tx, questionMetaKey(course, qid), &m)
		if err != nil {
			return err
		}
		if ok {
			meta = &m
		}
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return meta, nil
}
