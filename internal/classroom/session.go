package classroom

import (
	"context"
	"strings"

	"github.com/eldridgejm/classroom-qa/internal/kv"
	"github.com/eldridgejm/classroom-qa/internal/model"
)

// sessionLive is the one place that interprets the live-session
// sentinel key.
func sessionLive(tx kv.ReadTx, course string) (bool, error) {
	_, err := tx.Get(sessionKey(course))
	if err == kv.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// clearLiveData removes everything in the course namespace except
// archives: questions, responses, counts, the current pointer, pending
// student questions, and rate-limit markers.
func clearLiveData(tx kv.Tx, course string) error {
	keys, err := tx.Keys(coursePrefix(course))
	if err != nil {
		return err
	}
	for _, k := range keys {
		if strings.HasPrefix(k, archivePrefix(course)) {
			continue
		}
		if err := tx.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// StartSession wipes the course's live data and marks it live. Starting
// while already live is legal and acts as a reset; existing archives
// are never touched.
func (s *Service) StartSession(ctx context.Context, course string) error {
	if err := s.requireCourse(course); err != nil {
		return err
	}
	err := s.store.Update(ctx, func(tx kv.Tx) error {
		if err := clearLiveData(tx, course); err != nil {
			return err
		}
		return tx.Set(sessionKey(course), "1", 0)
	})
	if err != nil {
		return classify(err)
	}
	s.bus.Publish(course, model.EventSessionStarted, struct{}{})
	s.logger.Info("session started", "course", course)
	return nil
}

// StopSession archives all current data, clears the live namespace, and
// marks the course not live. Stopping while not live is legal and
// produces an empty archive. Returns the new archive's session id.
func (s *Service) StopSession(ctx context.Context, course string) (string, error) {
	if err := s.requireCourse(course); err != nil {
		return "", err
	}
	now := s.now()
	sessionID := newArchiveID(now)
	err := s.store.Update(ctx, func(tx kv.Tx) error {
		snapshot, err := buildArchive(tx, course, sessionID, now)
		if err != nil {
			return err
		}
		if err := clearLiveData(tx, course); err != nil {
			return err
		}
		return putJSON(tx, archiveKey(course, sessionID), snapshot, s.cfg.ArchiveTTL)
	})
	if err != nil {
		return "", classify(err)
	}
	s.bus.Publish(course, model.EventSessionStopped, struct{}{})
	s.logger.Info("session stopped", "course", course, "session_id", sessionID)
	return sessionID, nil
}

// SessionState reports whether the course is live and which poll
// question is current.
func (s *Service) SessionState(ctx context.Context, course string) (model.SessionState, error) {
	state := model.SessionState{Course: course}
	if err := s.requireCourse(course); err != nil {
		return state, err
	}
	err := s.store.View(ctx, func(tx kv.ReadTx) error {
		live, err := sessionLive(tx, course)
		if err != nil {
			return err
		}
		state.Live = live
		qid, err := tx.Get(currentQIDKey(course))
		if err == kv.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		state.CurrentQuestionID = qid
		return nil
	})
	if err != nil {
		return model.SessionState{}, classify(err)
	}
	return state, nil
}
