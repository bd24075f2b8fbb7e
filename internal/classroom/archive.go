package classroom

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/eldridgejm/classroom-qa/internal/kv"
	"github.com/eldridgejm/classroom-qa/internal/model"
)

// buildArchive snapshots every poll question in the live namespace,
// open or closed, with its full response map. The session's started_at
// is the earliest question start; an empty session has none.
func buildArchive(tx kv.ReadTx, course, sessionID string, stoppedAt time.Time) (model.ArchivedSession, error) {
	arch := model.ArchivedSession{
		SessionID: sessionID,
		StoppedAt: stoppedAt,
		Questions: []model.ArchivedQuestion{},
	}
	keys, err := tx.Keys(pollPrefix(course))
	if err != nil {
		return arch, err
	}
	for _, k := range keys {
		if !strings.HasSuffix(k, ":meta") {
			continue
		}
		var meta model.QuestionMeta
		ok, err := getJSON(tx, k, &meta)
		if err != nil {
			return arch, err
		}
		if !ok {
			continue
		}
		responses := map[string]model.StoredResponse{}
		if _, err := getJSON(tx, questionResponsesKey(course, meta.ID), &responses); err != nil {
			return arch, err
		}
		archived := make(map[string]model.ArchivedResponse, len(responses))
		for studentID, r := range responses {
			archived[studentID] = model.ArchivedResponse{
				Timestamp: r.Timestamp,
				Response:  r.Response,
			}
		}
		arch.Questions = append(arch.Questions, model.ArchivedQuestion{
			QuestionID: meta.ID,
			Type:       meta.Type,
			Options:    meta.Options,
			StartedAt:  meta.StartedAt,
			EndedAt:    meta.EndedAt,
			Responses:  archived,
		})
	}
	sort.Slice(arch.Questions, func(i, j int) bool {
		return arch.Questions[i].StartedAt.Before(arch.Questions[j].StartedAt)
	})
	if len(arch.Questions) > 0 {
		first := arch.Questions[0].StartedAt
		arch.StartedAt = &first
	}
	return arch, nil
}

// ListArchives summarizes the stored session archives, newest first.
// An archive without a stop time sorts last.
func (s *Service) ListArchives(ctx context.Context, course string) ([]model.ArchiveSummary, error) {
	if err := s.requireCourse(course); err != nil {
		return nil, err
	}
	var summaries []model.ArchiveSummary
	err := s.store.View(ctx, func(tx kv.ReadTx) error {
		keys, err := tx.Keys(archivePrefix(course))
		if err != nil {
			return err
		}
		summaries = make([]model.ArchiveSummary, 0, len(keys))
		for _, k := range keys {
			var arch model.ArchivedSession
			ok, err := getJSON(tx, k, &arch)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			summaries = append(summaries, model.ArchiveSummary{
				SessionID:     arch.SessionID,
				StartedAt:     arch.StartedAt,
				StoppedAt:     arch.StoppedAt,
				QuestionCount: len(arch.Questions),
			})
		}
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].StoppedAt.Equal(summaries[j].StoppedAt) {
			return summaries[i].StoppedAt.After(summaries[j].StoppedAt)
		}
		return summaries[i].SessionID > summaries[j].SessionID
	})
	return summaries, nil
}

// ExportLive snapshots the in-progress session's questions without
// stopping it.
func (s *Service) ExportLive(ctx context.Context, course string) ([]model.ArchivedQuestion, error) {
	if err := s.requireCourse(course); err != nil {
		return nil, err
	}
	var questions []model.ArchivedQuestion
	now := s.now()
	err := s.store.View(ctx, func(tx kv.ReadTx) error {
		arch, err := buildArchive(tx, course, "", now)
		if err != nil {
			return err
		}
		questions = arch.Questions
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return questions, nil
}

// Archive returns one full session snapshot.
func (s *Service) Archive(ctx context.Context, course, sessionID string) (model.ArchivedSession, error) {
	var arch model.ArchivedSession
	if err := s.requireCourse(course); err != nil {
		return arch, err
	}
	err := s.store.View(ctx, func(tx kv.ReadTx) error {
		ok, err := getJSON(tx, archiveKey(course, sessionID), &arch)
		if err != nil {
			return err
		}
		if !ok {
			return &NotFoundError{What: "archive " + sessionID}
		}
		return nil
	})
	if err != nil {
		return model.ArchivedSession{}, classify(err)
	}
	return arch, nil
}
