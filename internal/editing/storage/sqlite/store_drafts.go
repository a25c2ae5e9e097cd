package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/prosessportal/editing/internal/editing/storage"
)

// PutDraft inserts or replaces the draft for a session.
func (s *Store) PutDraft(ctx context.Context, draft storage.Draft) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(draft.SessionID) == "" {
		return fmt.Errorf("session id is required")
	}

	content, err := encodeContent(draft.Content)
	if err != nil {
		return err
	}

	seeded := 0
	if draft.Seeded {
		seeded = 1
	}

	_, err = s.sqlDB.ExecContext(ctx, `
		INSERT INTO drafts (session_id, process_id, content, updated_at, seeded)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			content = excluded.content,
			updated_at = excluded.updated_at,
			seeded = excluded.seeded`,
		draft.SessionID,
		draft.ProcessID,
		content,
		toMillis(draft.UpdatedAt),
		seeded,
	)
	if err != nil {
		return fmt.Errorf("put draft: %w", err)
	}
	return nil
}

// GetDraft fetches the draft for a session.
func (s *Store) GetDraft(ctx context.Context, sessionID string) (storage.Draft, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Draft{}, err
	}

	var (
		draft     storage.Draft
		content   string
		updatedAt int64
		seeded    int
	)
	err := s.sqlDB.QueryRowContext(ctx, `
		SELECT session_id, process_id, content, updated_at, seeded
		FROM drafts WHERE session_id = ?`, sessionID).
		Scan(&draft.SessionID, &draft.ProcessID, &content, &updatedAt, &seeded)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Draft{}, storage.ErrNotFound
		}
		return storage.Draft{}, fmt.Errorf("get draft: %w", err)
	}

	draft.Content, err = decodeContent(content)
	if err != nil {
		return storage.Draft{}, err
	}
	draft.UpdatedAt = fromMillis(updatedAt)
	draft.Seeded = seeded != 0
	return draft, nil
}

// DeleteDraft removes the draft for a session. Deleting a missing draft is
// a no-op.
func (s *Store) DeleteDraft(ctx context.Context, sessionID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM drafts WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}
