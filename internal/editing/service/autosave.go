package service

import (
	"context"
	"errors"
	"time"

	"github.com/prosessportal/editing/internal/editing/domain"
	"github.com/prosessportal/editing/internal/editing/storage"
	apperrors "github.com/prosessportal/editing/internal/platform/errors"
)

// AutoSave snapshots the given content as an append-only recovery record and
// updates the session's draft. Auto-save does not push undo history: the
// periodic snapshot is not a user edit.
func (s *Service) AutoSave(ctx context.Context, sessionID, userID string, content domain.DocumentContent) (storage.AutoSaveRecord, error) {
	session, err := s.loadOwnedSession(ctx, sessionID, userID)
	if err != nil {
		return storage.AutoSaveRecord{}, err
	}

	now := s.now().UTC()
	record, err := s.newAutoSaveRecord(session, content, now)
	if err != nil {
		return storage.AutoSaveRecord{}, err
	}
	if err := s.store.AppendAutoSave(ctx, record); err != nil {
		s.metrics.AutoSaveFailures.Inc()
		return storage.AutoSaveRecord{}, err
	}
	s.metrics.AutoSaves.Inc()

	if err := s.store.PutDraft(ctx, storage.Draft{
		SessionID: sessionID,
		ProcessID: session.ProcessID,
		Content:   content.Clone(),
		UpdatedAt: now,
	}); err != nil {
		return storage.AutoSaveRecord{}, err
	}
	if _, err := s.touch(ctx, session); err != nil {
		return storage.AutoSaveRecord{}, err
	}
	return record, nil
}

func (s *Service) newAutoSaveRecord(session domain.Session, content domain.DocumentContent, at time.Time) (storage.AutoSaveRecord, error) {
	recordID, err := s.newID()
	if err != nil {
		return storage.AutoSaveRecord{}, err
	}
	return storage.AutoSaveRecord{
		ID:        recordID,
		SessionID: session.ID,
		ProcessID: session.ProcessID,
		UserID:    session.UserID,
		Content:   content.Clone(),
		SavedAt:   at,
	}, nil
}

func (s *Service) appendAutoSave(ctx context.Context, session domain.Session, content domain.DocumentContent, at time.Time) error {
	record, err := s.newAutoSaveRecord(session, content, at)
	if err != nil {
		return err
	}
	if err := s.store.AppendAutoSave(ctx, record); err != nil {
		return err
	}
	s.metrics.AutoSaves.Inc()
	return nil
}

// AutoSaveHistory returns the session's auto-save records oldest to newest.
func (s *Service) AutoSaveHistory(ctx context.Context, sessionID, userID string) ([]storage.AutoSaveRecord, error) {
	if _, err := s.loadOwnedSession(ctx, sessionID, userID); err != nil {
		return nil, err
	}
	return s.store.ListAutoSaves(ctx, sessionID)
}

// RestoreAutoSave replaces the session's draft with a prior auto-save
// snapshot. The record is marked restored but never altered; the replaced
// draft goes onto the undo stack.
func (s *Service) RestoreAutoSave(ctx context.Context, sessionID, userID, recordID string) (storage.Draft, error) {
	session, err := s.loadOwnedSession(ctx, sessionID, userID)
	if err != nil {
		return storage.Draft{}, err
	}

	record, err := s.store.GetAutoSave(ctx, recordID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Draft{}, apperrors.WithMetadata(apperrors.CodeAutoSaveNotFound,
				"auto-save record not found", map[string]string{"recordId": recordID})
		}
		return storage.Draft{}, err
	}
	if record.SessionID != sessionID {
		return storage.Draft{}, apperrors.WithMetadata(apperrors.CodeAutoSaveNotFound,
			"auto-save record belongs to another session", map[string]string{"recordId": recordID})
	}

	if prior, err := s.store.GetDraft(ctx, sessionID); err == nil {
		s.historyFor(sessionID).Record(prior.Content)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return storage.Draft{}, err
	}

	now := s.now().UTC()
	draft := storage.Draft{
		SessionID: sessionID,
		ProcessID: session.ProcessID,
		Content:   record.Content.Clone(),
		UpdatedAt: now,
	}
	if err := s.store.PutDraft(ctx, draft); err != nil {
		return storage.Draft{}, err
	}
	if err := s.store.MarkAutoSaveRestored(ctx, recordID); err != nil {
		return storage.Draft{}, err
	}
	if _, err := s.touch(ctx, session); err != nil {
		return storage.Draft{}, err
	}

	s.log.Info().
		Str("session_id", sessionID).
		Str("record_id", recordID).
		Msg("auto-save snapshot restored")
	return draft, nil
}
