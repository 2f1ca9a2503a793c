package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/commonprotocol/vault/internal/types"
)

// SaveRun numbers run from the run counter and stores it. Both happen in one transaction,
// so a failed insert does not consume a number. Returns the assigned run number.
func (s *Store) SaveRun(ctx context.Context, run types.ScenarioRun) (runNumber int, err error) {
	if s == nil || s.db == nil {
		return 0, ErrDatabaseNotInitialized
	}

	paramsJSON, err := json.Marshal(run.Parameters)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal scenario parameters: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = errors.Join(err, fmt.Errorf("rollback failed: %w", rbErr))
			}
		}
	}()

	runNumber, err = s.incrementRunNumber(ctx, tx)
	if err != nil {
		return 0, err
	}

	stmt := `
		INSERT INTO scenario_runs (
			run_id, run_number, started_at, finished_at,
			asset_address, gate_address, vault_address, user_address, parameters
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = tx.ExecContext(ctx, stmt,
		run.RunID, runNumber, run.StartedAt.UTC(), run.FinishedAt.UTC(),
		run.AssetAddress.String(), run.GateAddress.String(), run.VaultAddress.String(), run.UserAddress.String(),
		jsonText(paramsJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert scenario run %s: %w", run.RunID, err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit scenario run %s: %w", run.RunID, err)
	}

	s.logger.Info().Str("run_id", run.RunID).Int("run_number", runNumber).Msg("Scenario run saved")
	return runNumber, nil
}

// GetRun retrieves a run by its ID.
func (s *Store) GetRun(ctx context.Context, runID string) (*types.ScenarioRun, error) {
	if s == nil || s.db == nil {
		return nil, ErrDatabaseNotInitialized
	}

	query := `
		SELECT run_id, run_number, started_at, finished_at,
			asset_address, gate_address, vault_address, user_address, parameters
		FROM scenario_runs
		WHERE run_id = $1
	`
	run, err := scanRun(s.db.QueryRowContext(ctx, query, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return run, err
}

// GetRecentRuns retrieves the latest runs, highest run number first.
func (s *Store) GetRecentRuns(ctx context.Context, limit int) ([]types.ScenarioRun, error) {
	if s == nil || s.db == nil {
		return nil, ErrDatabaseNotInitialized
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, run_number, started_at, finished_at,
			asset_address, gate_address, vault_address, user_address, parameters
		FROM scenario_runs
		ORDER BY run_number DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent runs: %w", err)
	}
	defer rows.Close()

	var runs []types.ScenarioRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return runs, nil
}

func scanRun(row rowScanner) (*types.ScenarioRun, error) {
	var (
		run                        types.ScenarioRun
		asset, gate, vault, userID string
	)
	err := row.Scan(
		&run.RunID, &run.RunNumber, &run.StartedAt, &run.FinishedAt,
		&asset, &gate, &vault, &userID, &jsonScanner{dst: &run.Parameters},
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run row: %w", err)
	}
	run.StartedAt = run.StartedAt.UTC()
	run.FinishedAt = run.FinishedAt.UTC()
	run.AssetAddress = types.Participant(asset)
	run.GateAddress = types.Participant(gate)
	run.VaultAddress = types.Participant(vault)
	run.UserAddress = types.Participant(userID)
	return &run, nil
}
