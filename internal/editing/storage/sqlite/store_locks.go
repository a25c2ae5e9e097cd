package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/prosessportal/editing/internal/editing/domain"
	"github.com/prosessportal/editing/internal/editing/storage"
)

// AcquireLock grants the commit lock for a process. Expired rows are cleared
// first so a lapsed lock never blocks acquisition. The upsert only overwrites
// a surviving row when the caller's session already owns it, so contention
// surfaces as zero rows affected.
func (s *Store) AcquireLock(ctx context.Context, lock domain.Lock) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin acquire lock: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM locks WHERE process_id = ? AND expires_at <= ?`,
		lock.ProcessID, toMillis(lock.AcquiredAt))
	if err != nil {
		return fmt.Errorf("clear expired lock: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO locks (process_id, session_id, user_id, acquired_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(process_id) DO UPDATE SET
			acquired_at = excluded.acquired_at,
			expires_at = excluded.expires_at
		WHERE locks.session_id = excluded.session_id`,
		lock.ProcessID,
		lock.SessionID,
		lock.UserID,
		toMillis(lock.AcquiredAt),
		toMillis(lock.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("acquire lock result: %w", err)
	}
	if affected == 0 {
		return storage.ErrLockHeld
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit acquire lock: %w", err)
	}
	return nil
}

// ExtendLock pushes the expiry of a live lock held by the session.
func (s *Store) ExtendLock(ctx context.Context, sessionID string, expiresAt, now time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(ctx, `
		UPDATE locks SET expires_at = ?
		WHERE session_id = ? AND expires_at > ?`,
		toMillis(expiresAt), sessionID, toMillis(now))
	if err != nil {
		return fmt.Errorf("extend lock: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("extend lock result: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ReleaseLock removes the lock if the session holds it. Releasing a lock the
// session does not hold is a no-op.
func (s *Store) ReleaseLock(ctx context.Context, processID, sessionID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM locks WHERE process_id = ? AND session_id = ?`,
		processID, sessionID); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// GetLock returns the lock row for a process regardless of expiry.
func (s *Store) GetLock(ctx context.Context, processID string) (domain.Lock, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Lock{}, err
	}

	var (
		lock       domain.Lock
		acquiredAt int64
		expiresAt  int64
	)
	err := s.sqlDB.QueryRowContext(ctx, `
		SELECT process_id, session_id, user_id, acquired_at, expires_at
		FROM locks WHERE process_id = ?`, processID).
		Scan(&lock.ProcessID, &lock.SessionID, &lock.UserID, &acquiredAt, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Lock{}, storage.ErrNotFound
		}
		return domain.Lock{}, fmt.Errorf("get lock: %w", err)
	}
	lock.AcquiredAt = fromMillis(acquiredAt)
	lock.ExpiresAt = fromMillis(expiresAt)
	return lock, nil
}
