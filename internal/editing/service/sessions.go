package service

import (
	"context"
	"errors"
	"strconv"

	"github.com/prosessportal/editing/internal/editing/domain"
	"github.com/prosessportal/editing/internal/editing/storage"
	apperrors "github.com/prosessportal/editing/internal/platform/errors"
)

// StartResult is everything a client needs after opening a session: the
// session, its seeded draft, the other live sessions on the process, and any
// open conflicts.
type StartResult struct {
	Session       domain.Session
	Draft         storage.Draft
	Reentrant     bool
	OtherSessions []domain.Session
	Conflicts     []domain.Conflict
}

// StartSession opens an edit session on a process. Starting is re-entrant:
// when the user already has a live session on the process it is touched and
// returned instead of a second one being created.
func (s *Service) StartSession(ctx context.Context, processID, userID, comment string) (StartResult, error) {
	live, err := s.sweepProcess(ctx, processID)
	if err != nil {
		return StartResult{}, err
	}

	for _, existing := range live {
		if existing.UserID != userID {
			continue
		}
		session, err := s.touch(ctx, existing)
		if err != nil {
			return StartResult{}, err
		}
		return s.startResult(ctx, session, true)
	}

	content := domain.DocumentContent{}
	baselineID := ""
	current, err := s.store.GetCurrentVersion(ctx, processID)
	switch {
	case err == nil:
		content = current.Content.Clone()
		baselineID = current.ID
	case errors.Is(err, storage.ErrNotFound):
		// First edit of an unversioned process starts from empty content.
	default:
		return StartResult{}, err
	}

	session, err := domain.StartSession(domain.StartSessionInput{
		ProcessID:         processID,
		UserID:            userID,
		Comment:           comment,
		BaselineVersionID: baselineID,
	}, s.now, s.newID)
	if err != nil {
		return StartResult{}, err
	}

	// The live-session count and the insert run in one store transaction so
	// racing starts cannot both slip past the limit.
	if err := s.store.InsertSessionWithinLimit(ctx, session, s.cfg.MaxConcurrentSessions); err != nil {
		if errors.Is(err, storage.ErrSessionLimit) {
			return StartResult{}, apperrors.WithMetadata(apperrors.CodeTooManyConcurrentSessions,
				"process has too many concurrent edit sessions", map[string]string{
					"processId": processID,
					"limit":     strconv.Itoa(s.cfg.MaxConcurrentSessions),
				})
		}
		return StartResult{}, err
	}
	if err := s.store.PutDraft(ctx, storage.Draft{
		SessionID: session.ID,
		ProcessID: processID,
		Content:   content,
		UpdatedAt: session.StartedAt,
		Seeded:    true,
	}); err != nil {
		return StartResult{}, err
	}

	s.metrics.SessionsStarted.Inc()
	s.log.Info().
		Str("session_id", session.ID).
		Str("process_id", processID).
		Str("user_id", userID).
		Msg("edit session started")

	return s.startResult(ctx, session, false)
}

func (s *Service) startResult(ctx context.Context, session domain.Session, reentrant bool) (StartResult, error) {
	draft, err := s.store.GetDraft(ctx, session.ID)
	if err != nil {
		return StartResult{}, err
	}

	live, err := s.store.ListProcessSessions(ctx, session.ProcessID,
		domain.SessionStatusActive, domain.SessionStatusIdle, domain.SessionStatusConflictDetected)
	if err != nil {
		return StartResult{}, err
	}
	others := make([]domain.Session, 0, len(live))
	for _, other := range live {
		if other.ID != session.ID {
			others = append(others, other)
		}
	}

	conflicts, err := s.store.ListProcessConflicts(ctx, session.ProcessID, true)
	if err != nil {
		return StartResult{}, err
	}

	return StartResult{
		Session:       session,
		Draft:         draft,
		Reentrant:     reentrant,
		OtherSessions: others,
		Conflicts:     conflicts,
	}, nil
}

// sweepProcess expires lapsed sessions on a process and returns the
// surviving live ones.
func (s *Service) sweepProcess(ctx context.Context, processID string) ([]domain.Session, error) {
	sessions, err := s.store.ListProcessSessions(ctx, processID,
		domain.SessionStatusActive, domain.SessionStatusIdle, domain.SessionStatusConflictDetected)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	live := sessions[:0]
	for i := range sessions {
		if sessions[i].ExpiredBy(now, s.cfg.SessionTimeout) {
			if err := s.expireSession(ctx, &sessions[i], now); err != nil {
				return nil, err
			}
			continue
		}
		live = append(live, sessions[i])
	}
	return live, nil
}

// touch stamps activity on a live session, waking Idle sessions back to
// Active.
func (s *Service) touch(ctx context.Context, session domain.Session) (domain.Session, error) {
	now := s.now().UTC()
	if session.Status == domain.SessionStatusIdle {
		if err := session.Transition(domain.SessionStatusActive, now); err != nil {
			return domain.Session{}, err
		}
	}
	session.LastActivity = now
	if err := s.store.PutSession(ctx, session); err != nil {
		return domain.Session{}, err
	}
	return session, nil
}

// GetSession returns a session by id, after the lazy expiry check. Terminal
// sessions are still readable.
func (s *Service) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Session{}, apperrors.WithMetadata(apperrors.CodeSessionNotFound,
				"edit session not found", map[string]string{"sessionId": sessionID})
		}
		return domain.Session{}, err
	}
	now := s.now().UTC()
	if session.ExpiredBy(now, s.cfg.SessionTimeout) {
		if err := s.expireSession(ctx, &session, now); err != nil {
			return domain.Session{}, err
		}
	}
	return session, nil
}

// ListActiveSessions returns the live sessions on a process after an expiry
// sweep.
func (s *Service) ListActiveSessions(ctx context.Context, processID string) ([]domain.Session, error) {
	return s.sweepProcess(ctx, processID)
}

// IsUserEditing reports whether the user holds a live session on the process.
func (s *Service) IsUserEditing(ctx context.Context, processID, userID string) (*domain.Session, error) {
	live, err := s.sweepProcess(ctx, processID)
	if err != nil {
		return nil, err
	}
	for i := range live {
		if live[i].UserID == userID {
			return &live[i], nil
		}
	}
	return nil, nil
}

// Touch records activity on a session without changing its draft.
func (s *Service) Touch(ctx context.Context, sessionID, userID string) (domain.Session, error) {
	session, err := s.loadOwnedSession(ctx, sessionID, userID)
	if err != nil {
		return domain.Session{}, err
	}
	return s.touch(ctx, session)
}

// SaveDraft replaces the session's draft. The prior draft is pushed onto the
// undo stack and an auto-save record is written as a side effect.
func (s *Service) SaveDraft(ctx context.Context, sessionID, userID string, content domain.DocumentContent) (storage.Draft, error) {
	session, err := s.loadOwnedSession(ctx, sessionID, userID)
	if err != nil {
		return storage.Draft{}, err
	}

	prior, err := s.store.GetDraft(ctx, sessionID)
	if err != nil {
		return storage.Draft{}, err
	}
	s.historyFor(sessionID).Record(prior.Content)

	now := s.now().UTC()
	draft := storage.Draft{
		SessionID: sessionID,
		ProcessID: session.ProcessID,
		Content:   content.Clone(),
		UpdatedAt: now,
	}
	if err := s.store.PutDraft(ctx, draft); err != nil {
		return storage.Draft{}, err
	}

	// Persist a recovery snapshot. A failed snapshot never fails the save.
	if err := s.appendAutoSave(ctx, session, draft.Content, now); err != nil {
		s.metrics.AutoSaveFailures.Inc()
		s.log.Error().Err(err).
			Str("session_id", sessionID).
			Msg("auto-save record failed")
	}

	if _, err := s.touch(ctx, session); err != nil {
		return storage.Draft{}, err
	}
	return draft, nil
}

// GetDraft returns the session's working copy, falling back to the baseline
// content only while the draft still holds its untouched seed. A draft the
// user deliberately cleared stays empty.
func (s *Service) GetDraft(ctx context.Context, sessionID, userID string) (storage.Draft, error) {
	session, err := s.loadOwnedSession(ctx, sessionID, userID)
	if err != nil {
		return storage.Draft{}, err
	}
	draft, err := s.store.GetDraft(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Draft{}, apperrors.WithMetadata(apperrors.CodeDraftNotFound,
				"session has no draft", map[string]string{"sessionId": sessionID})
		}
		return storage.Draft{}, err
	}
	if draft.Seeded && draft.Content.Empty() {
		baseline, err := s.baselineContent(ctx, session)
		if err != nil {
			return storage.Draft{}, err
		}
		draft.Content = baseline
	}
	return draft, nil
}

// EndSession completes a session, or cancels it when discard is set. The
// lock, draft, and undo history are torn down either way.
func (s *Service) EndSession(ctx context.Context, sessionID, userID, comment string, discard bool) (domain.Session, error) {
	session, err := s.loadOwnedSession(ctx, sessionID, userID)
	if err != nil {
		return domain.Session{}, err
	}

	next := domain.SessionStatusCompleted
	if discard {
		next = domain.SessionStatusCancelled
	}
	now := s.now().UTC()
	if err := session.Transition(next, now); err != nil {
		return domain.Session{}, err
	}
	session.CompletionComment = comment
	session.LastActivity = now
	if err := s.store.PutSession(ctx, session); err != nil {
		return domain.Session{}, err
	}
	if err := s.teardownSession(ctx, session); err != nil {
		return domain.Session{}, err
	}

	if discard {
		s.metrics.SessionsCancelled.Inc()
	} else {
		s.metrics.SessionsCompleted.Inc()
	}
	s.log.Info().
		Str("session_id", sessionID).
		Str("process_id", session.ProcessID).
		Bool("discarded", discard).
		Msg("edit session ended")
	return session, nil
}

// CleanupExpiredSessions expires every lapsed live session and returns how
// many were expired. It backs the periodic maintenance sweep.
func (s *Service) CleanupExpiredSessions(ctx context.Context) (int, error) {
	sessions, err := s.store.ListLiveSessions(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now().UTC()
	expired := 0
	for i := range sessions {
		if !sessions[i].ExpiredBy(now, s.cfg.SessionTimeout) {
			continue
		}
		if err := s.expireSession(ctx, &sessions[i], now); err != nil {
			return expired, err
		}
		expired++
	}
	return expired, nil
}

// Statistics aggregates a user's editing activity.
func (s *Service) Statistics(ctx context.Context, userID string) (storage.Statistics, error) {
	if userID == "" {
		return storage.Statistics{}, apperrors.New(apperrors.CodeUserRequired, "user id is required")
	}
	return s.store.UserStatistics(ctx, userID)
}
