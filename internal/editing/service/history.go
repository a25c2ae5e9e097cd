package service

import (
	"context"

	"github.com/prosessportal/editing/internal/editing/storage"
	apperrors "github.com/prosessportal/editing/internal/platform/errors"
)

// UndoState reports the depth of a session's undo and redo stacks.
type UndoState struct {
	UndoDepth int
	RedoDepth int
}

// Undo restores the draft snapshot taken before the last edit. The replaced
// draft becomes redoable.
func (s *Service) Undo(ctx context.Context, sessionID, userID string) (storage.Draft, error) {
	return s.stepHistory(ctx, sessionID, userID, false)
}

// Redo re-applies the last undone edit.
func (s *Service) Redo(ctx context.Context, sessionID, userID string) (storage.Draft, error) {
	return s.stepHistory(ctx, sessionID, userID, true)
}

func (s *Service) stepHistory(ctx context.Context, sessionID, userID string, redo bool) (storage.Draft, error) {
	session, err := s.loadOwnedSession(ctx, sessionID, userID)
	if err != nil {
		return storage.Draft{}, err
	}
	draft, err := s.store.GetDraft(ctx, sessionID)
	if err != nil {
		return storage.Draft{}, err
	}

	history := s.historyFor(sessionID)
	var restored = draft.Content
	var ok bool
	if redo {
		restored, ok = history.Redo(draft.Content)
		if !ok {
			return storage.Draft{}, apperrors.WithMetadata(apperrors.CodeNothingToRedo,
				"nothing to redo", map[string]string{"sessionId": sessionID})
		}
	} else {
		restored, ok = history.Undo(draft.Content)
		if !ok {
			return storage.Draft{}, apperrors.WithMetadata(apperrors.CodeNothingToUndo,
				"nothing to undo", map[string]string{"sessionId": sessionID})
		}
	}

	draft.Content = restored
	draft.UpdatedAt = s.now().UTC()
	if err := s.store.PutDraft(ctx, draft); err != nil {
		return storage.Draft{}, err
	}
	if _, err := s.touch(ctx, session); err != nil {
		return storage.Draft{}, err
	}
	return draft, nil
}

// UndoHistory reports the session's undo and redo stack depths.
func (s *Service) UndoHistory(ctx context.Context, sessionID, userID string) (UndoState, error) {
	if _, err := s.loadOwnedSession(ctx, sessionID, userID); err != nil {
		return UndoState{}, err
	}
	undoDepth, redoDepth := s.historyFor(sessionID).Depths()
	return UndoState{UndoDepth: undoDepth, RedoDepth: redoDepth}, nil
}
