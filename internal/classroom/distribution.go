package classroom

import (
	"context"
	"math"

	"github.com/eldridgejm/classroom-qa/internal/kv"
	"github.com/eldridgejm/classroom-qa/internal/model"
)

// Distribution projects the display-ready result view for a question.
func (s *Service) Distribution(ctx context.Context, course, questionID string) (model.Distribution, error) {
	if err := s.requireCourse(course); err != nil {
		return model.Distribution{}, err
	}
	var dist model.Distribution
	err := s.store.View(ctx, func(tx kv.ReadTx) error {
		var err error
		dist, err = readDistribution(tx, course, questionID)
		return err
	})
	if err != nil {
		return model.Distribution{}, classify(err)
	}
	return dist, nil
}

func readDistribution(tx kv.ReadTx, course, questionID string) (model.Distribution, error) {
	var meta model.QuestionMeta
	ok, err := getJSON(tx, questionMetaKey(course, questionID), &meta)
	if err != nil {
		return model.Distribution{}, err
	}
	if !ok {
		return model.Distribution{}, &NotFoundError{What: "question " + questionID}
	}
	counts := map[string]int{}
	if _, err := getJSON(tx, questionCountsKey(course, questionID), &counts); err != nil {
		return model.Distribution{}, err
	}
	return project(meta, counts), nil
}

// project zero-fills the bucket set for the question type and computes
// percentages rounded to two decimals. MCQ enumerates every declared
// option, true/false always lists both buckets, numeric lists only what
// was actually submitted. A zero total yields 0.0 everywhere.
func project(meta model.QuestionMeta, counts map[string]int) model.Distribution {
	filled := make(map[string]int, len(counts)+2)
	switch meta.Type {
	case model.QuestionMCQ:
		for _, opt := range meta.Options {
			filled[opt] = 0
		}
	case model.QuestionTF:
		filled["true"] = 0
		filled["false"] = 0
	}
	for bucket, n := range counts {
		filled[bucket] = n
	}

	total := 0
	for _, n := range filled {
		total += n
	}
	percentages := make(map[string]float64, len(filled))
	for bucket, n := range filled {
		if total == 0 {
			percentages[bucket] = 0.0
			continue
		}
		percentages[bucket] = math.Round(float64(n)/float64(total)*100*100) / 100
	}

	return model.Distribution{
		QuestionID:  meta.ID,
		Type:        meta.Type,
		Counts:      filled,
		Total:       total,
		Percentages: percentages,
		Options:     meta.Options,
	}
}

// ShareStatus distinguishes a first share from a repeat.
type ShareStatus string

const (
	ShareStatusShared        ShareStatus = "shared"
	ShareStatusAlreadyShared ShareStatus = "already_shared"
)

// ShareResults publishes the final distribution of a closed question to
// students. Sharing is one-way and happens once: repeat calls report
// already_shared without re-broadcasting.
func (s *Service) ShareResults(ctx context.Context, course, questionID string) (ShareStatus, model.Distribution, error) {
	if err := s.requireCourse(course); err != nil {
		return "", model.Distribution{}, err
	}
	var (
		status ShareStatus
		dist   model.Distribution
	)
	err := s.store.Update(ctx, func(tx kv.Tx) error {
		var meta model.QuestionMeta
		ok, err := getJSON(tx, questionMetaKey(course, questionID), &meta)
		if err != nil {
			return err
		}
		if !ok {
			return &NotFoundError{What: "question " + questionID}
		}
		if meta.EndedAt == nil {
			return &PreconditionError{Reason: "question must be closed before sharing results"}
		}
		counts := map[string]int{}
		if _, err := getJSON(tx, questionCountsKey(course, questionID), &counts); err != nil {
			return err
		}
		dist = project(meta, counts)

		if meta.ResultsShared {
			status = ShareStatusAlreadyShared
			return nil
		}
		sharedAt := s.now()
		meta.ResultsShared = true
		meta.ResultsSharedAt = &sharedAt
		status = ShareStatusShared
		return putJSON(tx, questionMetaKey(course, questionID), meta, 0)
	})
	if err != nil {
		return "", model.Distribution{}, classify(err)
	}
	if status == ShareStatusShared {
		s.bus.Publish(course, model.EventResultsPublished, model.ResultsPublishedEvent{
			QuestionID:   questionID,
			Distribution: &dist,
		})
		s.logger.Info("results shared", "course", course, "question_id", questionID)
	}
	return status, dist, nil
}
