package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/prosessportal/editing/internal/editing/domain"
	"github.com/prosessportal/editing/internal/editing/storage"
)

const sessionColumns = `session_id, process_id, user_id, status, started_at,
	last_activity, completed_at, start_comment, completion_comment,
	baseline_version_id, created_version_id`

// PutSession inserts or updates a session record.
func (s *Store) PutSession(ctx context.Context, session domain.Session) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(session.ID) == "" {
		return fmt.Errorf("session id is required")
	}

	createdVersionID := sql.NullString{}
	if session.CreatedVersionID != nil {
		createdVersionID = sql.NullString{String: *session.CreatedVersionID, Valid: true}
	}

	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO edit_sessions (
			session_id, process_id, user_id, status, started_at, last_activity,
			completed_at, start_comment, completion_comment,
			baseline_version_id, created_version_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			status = excluded.status,
			last_activity = excluded.last_activity,
			completed_at = excluded.completed_at,
			completion_comment = excluded.completion_comment,
			created_version_id = excluded.created_version_id`,
		session.ID,
		session.ProcessID,
		session.UserID,
		session.Status.String(),
		toMillis(session.StartedAt),
		toMillis(session.LastActivity),
		toNullMillis(session.CompletedAt),
		session.StartComment,
		session.CompletionComment,
		session.BaselineVersionID,
		createdVersionID,
	)
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// InsertSessionWithinLimit creates a session, counting the process's live
// sessions inside the same transaction so racing starts cannot both slip
// past the limit.
func (s *Store) InsertSessionWithinLimit(ctx context.Context, session domain.Session, maxLive int) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(session.ID) == "" {
		return fmt.Errorf("session id is required")
	}

	createdVersionID := sql.NullString{}
	if session.CreatedVersionID != nil {
		createdVersionID = sql.NullString{String: *session.CreatedVersionID, Valid: true}
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin session insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var live int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM edit_sessions
		WHERE process_id = ? AND status IN (?, ?, ?)`,
		session.ProcessID,
		domain.SessionStatusActive.String(),
		domain.SessionStatusIdle.String(),
		domain.SessionStatusConflictDetected.String(),
	).Scan(&live)
	if err != nil {
		return fmt.Errorf("count live sessions: %w", err)
	}
	if live >= maxLive {
		return storage.ErrSessionLimit
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO edit_sessions (
			session_id, process_id, user_id, status, started_at, last_activity,
			completed_at, start_comment, completion_comment,
			baseline_version_id, created_version_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.ProcessID,
		session.UserID,
		session.Status.String(),
		toMillis(session.StartedAt),
		toMillis(session.LastActivity),
		toNullMillis(session.CompletedAt),
		session.StartComment,
		session.CompletionComment,
		session.BaselineVersionID,
		createdVersionID,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session insert: %w", err)
	}
	return nil
}

// GetSession fetches a session by id.
func (s *Store) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Session{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM edit_sessions WHERE session_id = ?`, sessionID)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Session{}, storage.ErrNotFound
		}
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// ListProcessSessions returns sessions on a process, optionally restricted to
// the given statuses, ordered by start time.
func (s *Store) ListProcessSessions(ctx context.Context, processID string, statuses ...domain.SessionStatus) ([]domain.Session, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + sessionColumns + ` FROM edit_sessions WHERE process_id = ?`
	args := []any{processID}
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, status.String())
		}
		query += ` AND status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY started_at, session_id`

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list process sessions: %w", err)
	}
	defer rows.Close()

	return collectSessions(rows)
}

// ListLiveSessions returns every live session across processes.
func (s *Store) ListLiveSessions(ctx context.Context) ([]domain.Session, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM edit_sessions
		WHERE status IN (?, ?, ?)
		ORDER BY started_at, session_id`,
		domain.SessionStatusActive.String(),
		domain.SessionStatusIdle.String(),
		domain.SessionStatusConflictDetected.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list live sessions: %w", err)
	}
	defer rows.Close()

	return collectSessions(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (domain.Session, error) {
	var (
		session          domain.Session
		status           string
		startedAt        int64
		lastActivity     int64
		completedAt      sql.NullInt64
		createdVersionID sql.NullString
	)
	err := row.Scan(
		&session.ID,
		&session.ProcessID,
		&session.UserID,
		&status,
		&startedAt,
		&lastActivity,
		&completedAt,
		&session.StartComment,
		&session.CompletionComment,
		&session.BaselineVersionID,
		&createdVersionID,
	)
	if err != nil {
		return domain.Session{}, err
	}

	session.Status, err = domain.ParseSessionStatus(status)
	if err != nil {
		return domain.Session{}, err
	}
	session.StartedAt = fromMillis(startedAt)
	session.LastActivity = fromMillis(lastActivity)
	session.CompletedAt = fromNullMillis(completedAt)
	if createdVersionID.Valid {
		session.CreatedVersionID = &createdVersionID.String
	}
	return session, nil
}

func collectSessions(rows *sql.Rows) ([]domain.Session, error) {
	var sessions []domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}
