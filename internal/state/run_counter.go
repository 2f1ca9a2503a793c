/*

This file manages the persistent run counter. Every saved scenario run takes the next
number, so numbering continues across restarts.

*/

package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GetCurrentRunNumber retrieves the number of the last saved run; zero before the first.
func (s *Store) GetCurrentRunNumber(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, ErrDatabaseNotInitialized
	}

	var currentRun int
	err := s.db.QueryRowContext(ctx, `SELECT current_run FROM run_counter WHERE id = 1;`).Scan(&currentRun)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// EnsureSchema seeds the row; only a hand-edited table lands here.
			s.logger.Warn().Msg("No run counter row found, reporting 0")
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get current run number: %w", err)
	}

	s.logger.Debug().Int("currentRun", currentRun).Msg("Retrieved current run number")
	return currentRun, nil
}

// IncrementRunNumber increments the run counter and returns the new value.
func (s *Store) IncrementRunNumber(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, ErrDatabaseNotInitialized
	}
	return s.incrementRunNumber(ctx, s.db)
}

func (s *Store) incrementRunNumber(ctx context.Context, q queryRower) (int, error) {
	updateQuery := `
		UPDATE run_counter
		SET current_run = current_run + 1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
		RETURNING current_run;`

	var newRun int
	if err := q.QueryRowContext(ctx, updateQuery).Scan(&newRun); err != nil {
		return 0, fmt.Errorf("failed to increment run number: %w", err)
	}

	s.logger.Debug().Int("newRun", newRun).Msg("Incremented run counter")
	return newRun, nil
}

// ResetRunNumber resets the run counter to a specific value (for testing/maintenance).
func (s *Store) ResetRunNumber(ctx context.Context, runNumber int) error {
	if s == nil || s.db == nil {
		return ErrDatabaseNotInitialized
	}
	if runNumber < 0 {
		return fmt.Errorf("run number cannot be negative: %d", runNumber)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE run_counter
		SET current_run = $1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = 1;`, runNumber)
	if err != nil {
		return fmt.Errorf("failed to reset run number to %d: %w", runNumber, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no rows updated when resetting run number")
	}

	s.logger.Warn().Int("runNumber", runNumber).Msg("Reset run counter")
	return nil
}
