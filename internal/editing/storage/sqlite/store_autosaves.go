package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/prosessportal/editing/internal/editing/storage"
)

// AppendAutoSave inserts an auto-save record. Records are append-only; an id
// collision yields ErrAlreadyExists and never overwrites the existing record.
func (s *Store) AppendAutoSave(ctx context.Context, record storage.AutoSaveRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("record id is required")
	}

	content, err := encodeContent(record.Content)
	if err != nil {
		return err
	}

	restored := 0
	if record.Restored {
		restored = 1
	}

	result, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO autosaves (record_id, session_id, process_id, user_id, content, saved_at, restored)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(record_id) DO NOTHING`,
		record.ID,
		record.SessionID,
		record.ProcessID,
		record.UserID,
		content,
		toMillis(record.SavedAt),
		restored,
	)
	if err != nil {
		return fmt.Errorf("append autosave: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("append autosave result: %w", err)
	}
	if affected == 0 {
		return storage.ErrAlreadyExists
	}
	return nil
}

// GetAutoSave fetches an auto-save record by id.
func (s *Store) GetAutoSave(ctx context.Context, recordID string) (storage.AutoSaveRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.AutoSaveRecord{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx, `
		SELECT record_id, session_id, process_id, user_id, content, saved_at, restored
		FROM autosaves WHERE record_id = ?`, recordID)
	record, err := scanAutoSave(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.AutoSaveRecord{}, storage.ErrNotFound
		}
		return storage.AutoSaveRecord{}, fmt.Errorf("get autosave: %w", err)
	}
	return record, nil
}

// ListAutoSaves returns a session's records oldest to newest.
func (s *Store) ListAutoSaves(ctx context.Context, sessionID string) ([]storage.AutoSaveRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT record_id, session_id, process_id, user_id, content, saved_at, restored
		FROM autosaves WHERE session_id = ?
		ORDER BY saved_at, record_id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list autosaves: %w", err)
	}
	defer rows.Close()

	var records []storage.AutoSaveRecord
	for rows.Next() {
		record, err := scanAutoSave(rows)
		if err != nil {
			return nil, fmt.Errorf("scan autosave: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate autosaves: %w", err)
	}
	return records, nil
}

// MarkAutoSaveRestored flips the restored flag on a record.
func (s *Store) MarkAutoSaveRestored(ctx context.Context, recordID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE autosaves SET restored = 1 WHERE record_id = ?`, recordID)
	if err != nil {
		return fmt.Errorf("mark autosave restored: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark autosave restored result: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanAutoSave(row rowScanner) (storage.AutoSaveRecord, error) {
	var (
		record   storage.AutoSaveRecord
		content  string
		savedAt  int64
		restored int
	)
	err := row.Scan(
		&record.ID,
		&record.SessionID,
		&record.ProcessID,
		&record.UserID,
		&content,
		&savedAt,
		&restored,
	)
	if err != nil {
		return storage.AutoSaveRecord{}, err
	}

	record.Content, err = decodeContent(content)
	if err != nil {
		return storage.AutoSaveRecord{}, err
	}
	record.SavedAt = fromMillis(savedAt)
	record.Restored = restored != 0
	return record, nil
}
