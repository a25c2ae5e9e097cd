package service

import (
	"context"
	"errors"
	"time"

	"github.com/prosessportal/editing/internal/editing/domain"
	"github.com/prosessportal/editing/internal/editing/storage"
	apperrors "github.com/prosessportal/editing/internal/platform/errors"
)

// LockStatus describes the commit lock on a process. Lock is nil when no
// live lock exists.
type LockStatus struct {
	Locked bool
	Lock   *domain.Lock
}

// AcquireLock grants the session the exclusive commit lock on its process.
// Acquisition is idempotent for the holder and refreshes the expiry.
func (s *Service) AcquireLock(ctx context.Context, sessionID, userID string) (domain.Lock, error) {
	session, err := s.loadOwnedSession(ctx, sessionID, userID)
	if err != nil {
		return domain.Lock{}, err
	}

	now := s.now().UTC()
	lock := domain.Lock{
		ProcessID:  session.ProcessID,
		SessionID:  session.ID,
		UserID:     session.UserID,
		AcquiredAt: now,
		ExpiresAt:  now.Add(s.cfg.LockTimeout),
	}
	if err := s.store.AcquireLock(ctx, lock); err != nil {
		if errors.Is(err, storage.ErrLockHeld) {
			s.metrics.LockContention.Inc()
			return domain.Lock{}, s.lockHeldError(ctx, session.ProcessID)
		}
		return domain.Lock{}, err
	}

	s.metrics.LocksAcquired.Inc()
	s.log.Info().
		Str("session_id", sessionID).
		Str("process_id", session.ProcessID).
		Time("expires_at", lock.ExpiresAt).
		Msg("commit lock acquired")
	return lock, nil
}

func (s *Service) lockHeldError(ctx context.Context, processID string) error {
	meta := map[string]string{"processId": processID}
	if holder, err := s.store.GetLock(ctx, processID); err == nil {
		meta["heldBy"] = holder.UserID
		meta["sessionId"] = holder.SessionID
		meta["expiresAt"] = holder.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return apperrors.WithMetadata(apperrors.CodeLockHeld,
		"another session holds the commit lock", meta)
}

// ExtendLock pushes the expiry of the session's live lock.
func (s *Service) ExtendLock(ctx context.Context, sessionID, userID string) (domain.Lock, error) {
	session, err := s.loadOwnedSession(ctx, sessionID, userID)
	if err != nil {
		return domain.Lock{}, err
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.cfg.LockTimeout)
	if err := s.store.ExtendLock(ctx, sessionID, expiresAt, now); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Lock{}, apperrors.WithMetadata(apperrors.CodeLockNotOwned,
				"session holds no live commit lock", map[string]string{"sessionId": sessionID})
		}
		return domain.Lock{}, err
	}
	return domain.Lock{
		ProcessID:  session.ProcessID,
		SessionID:  session.ID,
		UserID:     session.UserID,
		AcquiredAt: now,
		ExpiresAt:  expiresAt,
	}, nil
}

// ReleaseLock releases the session's lock. Releasing a lock the session does
// not hold is a no-op.
func (s *Service) ReleaseLock(ctx context.Context, sessionID, userID string) error {
	session, err := s.loadOwnedSession(ctx, sessionID, userID)
	if err != nil {
		return err
	}
	return s.store.ReleaseLock(ctx, session.ProcessID, session.ID)
}

// GetLockStatus reports the commit lock on a process. Expired locks read as
// absent.
func (s *Service) GetLockStatus(ctx context.Context, processID string) (LockStatus, error) {
	lock, err := s.store.GetLock(ctx, processID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return LockStatus{}, nil
		}
		return LockStatus{}, err
	}
	if lock.ExpiredBy(s.now().UTC()) {
		return LockStatus{}, nil
	}
	return LockStatus{Locked: true, Lock: &lock}, nil
}
