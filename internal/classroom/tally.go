package classroom

import (
	"context"
	"slices"

	"github.com/eldridgejm/classroom-qa/internal/kv"
	"github.com/eldridgejm/classroom-qa/internal/model"
)

// SubmitAnswer records a student's answer to an open question and
// returns the updated tally. A resubmission replaces the prior answer:
// its bucket is decremented (and dropped at zero) before the new bucket
// is incremented, all within one transaction, so the sum of counts
// always equals the number of distinct students who answered.
func (s *Service) SubmitAnswer(ctx context.Context, course, questionID, studentID string, value model.AnswerValue) (map[string]int, error) {
	if err := s.requireCourse(course); err != nil {
		return nil, err
	}
	var counts map[string]int
	now := s.now()
	err := s.store.Update(ctx, func(tx kv.Tx) error {
		live, err := sessionLive(tx, course)
		if err != nil {
			return err
		}
		if !live {
			return &PreconditionError{Reason: "no live session"}
		}
		var meta model.QuestionMeta
		ok, err := getJSON(tx, questionMetaKey(course, questionID), &meta)
		if err != nil {
			return err
		}
		if !ok {
			return &NotFoundError{What: "question " + questionID}
		}
		if meta.EndedAt != nil {
			return &PreconditionError{Reason: "question is closed"}
		}
		if err := validateAnswer(meta, value); err != nil {
			return err
		}

		responses := map[string]model.StoredResponse{}
		if _, err := getJSON(tx, questionResponsesKey(course, questionID), &responses); err != nil {
			return err
		}
		counts = map[string]int{}
		if _, err := getJSON(tx, questionCountsKey(course, questionID), &counts); err != nil {
			return err
		}

		if prev, answered := responses[studentID]; answered {
			bucket := prev.Response.CountKey()
			if counts[bucket] <= 1 {
				delete(counts, bucket)
			} else {
				counts[bucket]--
			}
		}
		responses[studentID] = model.StoredResponse{Timestamp: now, Response: value}
		counts[value.CountKey()]++

		if err := putJSON(tx, questionResponsesKey(course, questionID), responses, 0); err != nil {
			return err
		}
		return putJSON(tx, questionCountsKey(course, questionID), counts, 0)
	})
	if err != nil {
		return nil, classify(err)
	}
	s.bus.Publish(course, model.EventCountsUpdated, model.CountsUpdatedEvent{
		QuestionID: questionID,
		Counts:     counts,
	})
	return counts, nil
}

// validateAnswer checks the value's kind against the question type.
// Numeric questions also take strings so answers like "1/2" survive;
// the tally then buckets them by their literal text.
func validateAnswer(meta model.QuestionMeta, value model.AnswerValue) error {
	switch meta.Type {
	case model.QuestionMCQ:
		if value.Kind() != model.AnswerText {
			return &ValidationError{Reason: "multiple-choice answers must be a string"}
		}
		if !slices.Contains(meta.Options, value.Text()) {
			return &ValidationError{Reason: "answer is not one of the options"}
		}
	case model.QuestionTF:
		if value.Kind() != model.AnswerBool {
			return &ValidationError{Reason: "true/false answers must be a boolean"}
		}
	case model.QuestionNumeric:
		if value.Kind() == model.AnswerBool {
			return &ValidationError{Reason: "numeric answers must be a number or a string"}
		}
	}
	return nil
}

// Counts returns the live tally for a question.
func (s *Service) Counts(ctx context.Context, course, questionID string) (map[string]int, error) {
	if err := s.requireCourse(course); err != nil {
		return nil, err
	}
	var counts map[string]int
	err := s.store.View(ctx, func(tx kv.ReadTx) error {
		counts = map[string]int{}
		ok, err := getJSON(tx, questionCountsKey(course, questionID), &counts)
		if err != nil {
			return err
		}
		if !ok {
			return &NotFoundError{What: "question " + questionID}
		}
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return counts, nil
}

// Response returns one student's stored answer, or nil if the student
// has not answered.
func (s *Service) Response(ctx context.Context, course, questionID, studentID string) (*model.StoredResponse, error) {
	responses, err := s.Responses(ctx, course, questionID)
	if err != nil {
		return nil, err
	}
	if r, ok := responses[studentID]; ok {
		return &r, nil
	}
	return nil, nil
}

// Responses returns every stored answer for a question keyed by student.
func (s *Service) Responses(ctx context.Context, course, questionID string) (map[string]model.StoredResponse, error) {
	if err := s.requireCourse(course); err != nil {
		return nil, err
	}
	var responses map[string]model.StoredResponse
	err := s.store.View(ctx, func(tx kv.ReadTx) error {
		responses = map[string]model.StoredResponse{}
		ok, err := getJSON(tx, questionResponsesKey(course, questionID), &responses)
		if err != nil {
			return err
		}
		if !ok {
			return &NotFoundError{What: "question " + questionID}
		}
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return responses, nil
}
