package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prosessportal/editing/internal/editing/domain"
	"github.com/prosessportal/editing/internal/editing/storage"
)

const versionColumns = `version_id, process_id, number, content, change_log,
	created_by, created_at, is_current, is_published, published_at, published_by`

// GetCurrentVersion returns the single current version of a process.
func (s *Store) GetCurrentVersion(ctx context.Context, processID string) (domain.Version, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Version{}, err
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+versionColumns+` FROM versions WHERE process_id = ? AND is_current = 1`,
		processID)
	if err != nil {
		return domain.Version{}, fmt.Errorf("get current version: %w", err)
	}
	defer rows.Close()

	versions, err := collectVersions(rows)
	if err != nil {
		return domain.Version{}, err
	}
	switch len(versions) {
	case 0:
		return domain.Version{}, storage.ErrNotFound
	case 1:
		return versions[0], nil
	}
	panic(fmt.Sprintf("process %s has %d current versions", processID, len(versions)))
}

// InsertVersionAndFlipCurrent atomically inserts the version as current and
// clears the previous current flag, guarded by a compare-and-swap on the
// previous current version id.
func (s *Store) InsertVersionAndFlipCurrent(ctx context.Context, version domain.Version, previousCurrentID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(version.ID) == "" {
		return fmt.Errorf("version id is required")
	}

	content, err := encodeContent(version.Content)
	if err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert version: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var currentID string
	err = tx.QueryRowContext(ctx,
		`SELECT version_id FROM versions WHERE process_id = ? AND is_current = 1`,
		version.ProcessID).Scan(&currentID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		currentID = ""
	case err != nil:
		return fmt.Errorf("read current version: %w", err)
	}
	if currentID != previousCurrentID {
		return storage.ErrStaleBaseline
	}

	if currentID != "" {
		if _, err := tx.ExecContext(ctx,
			`UPDATE versions SET is_current = 0 WHERE version_id = ?`, currentID); err != nil {
			return fmt.Errorf("clear current flag: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO versions (
			version_id, process_id, number, content, change_log,
			created_by, created_at, is_current, is_published, published_at, published_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, 1, 0, NULL, NULL)`,
		version.ID,
		version.ProcessID,
		version.Number,
		content,
		version.ChangeLog,
		version.CreatedBy,
		toMillis(version.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert version: %w", err)
	}
	return nil
}

// GetVersion fetches a version by id within a process.
func (s *Store) GetVersion(ctx context.Context, processID, versionID string) (domain.Version, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Version{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM versions WHERE process_id = ? AND version_id = ?`,
		processID, versionID)
	version, err := scanVersion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Version{}, storage.ErrNotFound
		}
		return domain.Version{}, fmt.Errorf("get version: %w", err)
	}
	return version, nil
}

// ListVersions returns a process's versions newest first.
func (s *Store) ListVersions(ctx context.Context, processID string) ([]domain.Version, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT `+versionColumns+` FROM versions WHERE process_id = ?
		ORDER BY created_at DESC, version_id DESC`, processID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	return collectVersions(rows)
}

// PublishVersion sets the published flag. The flag only moves forward;
// publishing an already published version is a no-op.
func (s *Store) PublishVersion(ctx context.Context, processID, versionID, userID string, at time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(ctx, `
		UPDATE versions SET is_published = 1, published_at = ?, published_by = ?
		WHERE process_id = ? AND version_id = ? AND is_published = 0`,
		toMillis(at), userID, processID, versionID)
	if err != nil {
		return fmt.Errorf("publish version: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("publish version result: %w", err)
	}
	if affected == 0 {
		// Distinguish a missing version from an already published one.
		var published int
		err := s.sqlDB.QueryRowContext(ctx,
			`SELECT is_published FROM versions WHERE process_id = ? AND version_id = ?`,
			processID, versionID).Scan(&published)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("publish version check: %w", err)
		}
	}
	return nil
}

func scanVersion(row rowScanner) (domain.Version, error) {
	var (
		version     domain.Version
		content     string
		createdAt   int64
		isCurrent   int
		isPublished int
		publishedAt sql.NullInt64
		publishedBy sql.NullString
	)
	err := row.Scan(
		&version.ID,
		&version.ProcessID,
		&version.Number,
		&content,
		&version.ChangeLog,
		&version.CreatedBy,
		&createdAt,
		&isCurrent,
		&isPublished,
		&publishedAt,
		&publishedBy,
	)
	if err != nil {
		return domain.Version{}, err
	}

	version.Content, err = decodeContent(content)
	if err != nil {
		return domain.Version{}, err
	}
	version.CreatedAt = fromMillis(createdAt)
	version.IsCurrent = isCurrent != 0
	version.IsPublished = isPublished != 0
	version.PublishedAt = fromNullMillis(publishedAt)
	if publishedBy.Valid {
		version.PublishedBy = &publishedBy.String
	}
	return version, nil
}

func collectVersions(rows *sql.Rows) ([]domain.Version, error) {
	var versions []domain.Version
	for rows.Next() {
		version, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions: %w", err)
	}
	return versions, nil
}
