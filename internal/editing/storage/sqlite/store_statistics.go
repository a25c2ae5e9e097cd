package sqlite

import (
	"context"
	"fmt"

	"github.com/prosessportal/editing/internal/editing/domain"
	"github.com/prosessportal/editing/internal/editing/storage"
)

// UserStatistics aggregates one user's editing activity across tables.
func (s *Store) UserStatistics(ctx context.Context, userID string) (storage.Statistics, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Statistics{}, err
	}

	var stats storage.Statistics

	err := s.sqlDB.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(status = ?), 0)
		FROM edit_sessions WHERE user_id = ?`,
		domain.SessionStatusCompleted.String(), userID).
		Scan(&stats.SessionsStarted, &stats.SessionsCompleted)
	if err != nil {
		return storage.Statistics{}, fmt.Errorf("session statistics: %w", err)
	}

	err = s.sqlDB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM versions WHERE created_by = ?`, userID).
		Scan(&stats.VersionsCreated)
	if err != nil {
		return storage.Statistics{}, fmt.Errorf("version statistics: %w", err)
	}

	err = s.sqlDB.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(user_id_1 = ? OR user_id_2 = ?), 0),
			COALESCE(SUM(resolved_by = ?), 0)
		FROM conflicts`,
		userID, userID, userID).
		Scan(&stats.ConflictsInvolved, &stats.ConflictsResolved)
	if err != nil {
		return storage.Statistics{}, fmt.Errorf("conflict statistics: %w", err)
	}

	return stats, nil
}
