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

const conflictColumns = `conflict_id, process_id, session_id_1, user_id_1,
	session_id_2, user_id_2, detected_at, fields,
	resolution_type, resolved_by, resolved_at, resolution_comment`

// PutConflict inserts or updates a conflict record.
func (s *Store) PutConflict(ctx context.Context, conflict domain.Conflict) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(conflict.ID) == "" {
		return fmt.Errorf("conflict id is required")
	}

	fields, err := encodeFields(conflict.Fields)
	if err != nil {
		return err
	}

	resolutionType := sql.NullString{}
	resolvedBy := sql.NullString{}
	resolvedAt := sql.NullInt64{}
	resolutionComment := sql.NullString{}
	if conflict.Resolution != nil {
		resolutionType = sql.NullString{String: string(conflict.Resolution.Type), Valid: true}
		resolvedBy = sql.NullString{String: conflict.Resolution.ResolvedBy, Valid: true}
		resolvedAt = sql.NullInt64{Int64: toMillis(conflict.Resolution.ResolvedAt), Valid: true}
		resolutionComment = sql.NullString{String: conflict.Resolution.Comment, Valid: true}
	}

	_, err = s.sqlDB.ExecContext(ctx, `
		INSERT INTO conflicts (
			conflict_id, process_id, session_id_1, user_id_1,
			session_id_2, user_id_2, detected_at, fields,
			resolution_type, resolved_by, resolved_at, resolution_comment
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conflict_id) DO UPDATE SET
			fields = excluded.fields,
			resolution_type = excluded.resolution_type,
			resolved_by = excluded.resolved_by,
			resolved_at = excluded.resolved_at,
			resolution_comment = excluded.resolution_comment`,
		conflict.ID,
		conflict.ProcessID,
		conflict.SessionID1,
		conflict.UserID1,
		conflict.SessionID2,
		conflict.UserID2,
		toMillis(conflict.DetectedAt),
		fields,
		resolutionType,
		resolvedBy,
		resolvedAt,
		resolutionComment,
	)
	if err != nil {
		return fmt.Errorf("put conflict: %w", err)
	}
	return nil
}

// GetConflict fetches a conflict by id.
func (s *Store) GetConflict(ctx context.Context, conflictID string) (domain.Conflict, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Conflict{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+conflictColumns+` FROM conflicts WHERE conflict_id = ?`, conflictID)
	conflict, err := scanConflict(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Conflict{}, storage.ErrNotFound
		}
		return domain.Conflict{}, fmt.Errorf("get conflict: %w", err)
	}
	return conflict, nil
}

// ListProcessConflicts returns conflicts on a process ordered by detection
// time, unresolved only when openOnly is set.
func (s *Store) ListProcessConflicts(ctx context.Context, processID string, openOnly bool) ([]domain.Conflict, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + conflictColumns + ` FROM conflicts WHERE process_id = ?`
	if openOnly {
		query += ` AND resolution_type IS NULL`
	}
	query += ` ORDER BY detected_at, conflict_id`

	rows, err := s.sqlDB.QueryContext(ctx, query, processID)
	if err != nil {
		return nil, fmt.Errorf("list process conflicts: %w", err)
	}
	defer rows.Close()

	return collectConflicts(rows)
}

// ListSessionConflicts returns conflicts involving a session, either side.
func (s *Store) ListSessionConflicts(ctx context.Context, sessionID string, openOnly bool) ([]domain.Conflict, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + conflictColumns + ` FROM conflicts
		WHERE (session_id_1 = ? OR session_id_2 = ?)`
	if openOnly {
		query += ` AND resolution_type IS NULL`
	}
	query += ` ORDER BY detected_at, conflict_id`

	rows, err := s.sqlDB.QueryContext(ctx, query, sessionID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session conflicts: %w", err)
	}
	defer rows.Close()

	return collectConflicts(rows)
}

func scanConflict(row rowScanner) (domain.Conflict, error) {
	var (
		conflict          domain.Conflict
		detectedAt        int64
		fields            string
		resolutionType    sql.NullString
		resolvedBy        sql.NullString
		resolvedAt        sql.NullInt64
		resolutionComment sql.NullString
	)
	err := row.Scan(
		&conflict.ID,
		&conflict.ProcessID,
		&conflict.SessionID1,
		&conflict.UserID1,
		&conflict.SessionID2,
		&conflict.UserID2,
		&detectedAt,
		&fields,
		&resolutionType,
		&resolvedBy,
		&resolvedAt,
		&resolutionComment,
	)
	if err != nil {
		return domain.Conflict{}, err
	}

	conflict.DetectedAt = fromMillis(detectedAt)
	conflict.Fields, err = decodeFields(fields)
	if err != nil {
		return domain.Conflict{}, err
	}
	if resolutionType.Valid {
		parsed, err := domain.ParseResolutionType(resolutionType.String)
		if err != nil {
			return domain.Conflict{}, err
		}
		conflict.Resolution = &domain.Resolution{
			Type:       parsed,
			ResolvedBy: resolvedBy.String,
			ResolvedAt: fromMillis(resolvedAt.Int64),
			Comment:    resolutionComment.String,
		}
	}
	return conflict, nil
}

func collectConflicts(rows *sql.Rows) ([]domain.Conflict, error) {
	var conflicts []domain.Conflict
	for rows.Next() {
		conflict, err := scanConflict(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conflict: %w", err)
		}
		conflicts = append(conflicts, conflict)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conflicts: %w", err)
	}
	return conflicts, nil
}
