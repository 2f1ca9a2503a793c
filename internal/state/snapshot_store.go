package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/commonprotocol/vault/internal/types"
)

const snapshotColumns = `
	snapshot_id, run_id, snapshot_timestamp, vault_name, vault_symbol,
	total_shares, total_assets, idle_assets, allocated_assets, exchange_rate,
	holders, strategy_names, strategies
`

// SaveSnapshot saves a vault snapshot and returns its database ID.
func (s *Store) SaveSnapshot(ctx context.Context, snapshot types.Snapshot) (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrDatabaseNotInitialized
	}

	strategiesJSON, err := json.Marshal(snapshot.Strategies)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal strategies: %w", err)
	}
	names, err := s.stringArray(snapshot.StrategyNames())
	if err != nil {
		return 0, err
	}

	rate := snapshot.ExchangeRate
	if rate.IsNil() {
		rate = sdkmath.LegacyZeroDec()
	}

	query := `
		INSERT INTO vault_snapshots (
			run_id, snapshot_timestamp, vault_name, vault_symbol,
			total_shares, total_assets, idle_assets, allocated_assets, exchange_rate,
			holders, strategy_names, strategies
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING snapshot_id;
	`

	var snapshotID int64
	err = s.db.QueryRowContext(ctx, query,
		snapshot.RunID, snapshot.Timestamp.UTC(), snapshot.Name, snapshot.Symbol,
		intString(snapshot.TotalShares), intString(snapshot.TotalAssets),
		intString(snapshot.IdleAssets), intString(snapshot.Allocated), rate.String(),
		snapshot.Holders, names, jsonText(strategiesJSON),
	).Scan(&snapshotID)
	if err != nil {
		return 0, fmt.Errorf("failed to save vault snapshot: %w", err)
	}

	s.logger.Info().
		Int64("snapshot_id", snapshotID).
		Str("run_id", snapshot.RunID).
		Stringer("total_assets", snapshot.TotalAssets).
		Stringer("exchange_rate", rate).
		Msg("Vault snapshot saved to database")

	return snapshotID, nil
}

// GetLatestSnapshot retrieves the most recently saved snapshot.
func (s *Store) GetLatestSnapshot(ctx context.Context) (*types.Snapshot, error) {
	if s == nil || s.db == nil {
		return nil, ErrDatabaseNotInitialized
	}

	query := `SELECT ` + snapshotColumns + `
		FROM vault_snapshots
		ORDER BY snapshot_timestamp DESC, snapshot_id DESC
		LIMIT 1
	`
	return s.querySnapshot(ctx, query)
}

// GetSnapshotByID retrieves a specific snapshot by its ID.
func (s *Store) GetSnapshotByID(ctx context.Context, snapshotID int64) (*types.Snapshot, error) {
	if s == nil || s.db == nil {
		return nil, ErrDatabaseNotInitialized
	}

	query := `SELECT ` + snapshotColumns + `
		FROM vault_snapshots
		WHERE snapshot_id = $1
	`
	snap, err := s.querySnapshot(ctx, query, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("snapshot %d: %w", snapshotID, err)
	}
	return snap, nil
}

// GetSnapshotsWithStrategy retrieves the snapshots, newest first, in which strategy had
// an allocation record.
func (s *Store) GetSnapshotsWithStrategy(ctx context.Context, strategy string, limit int) ([]types.Snapshot, error) {
	if s == nil || s.db == nil {
		return nil, ErrDatabaseNotInitialized
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	filter := `$1 = ANY(strategy_names)`
	if s.driver == DriverSQLite {
		filter = `EXISTS (SELECT 1 FROM json_each(vault_snapshots.strategy_names) WHERE json_each.value = $1)`
	}
	query := `SELECT ` + snapshotColumns + `
		FROM vault_snapshots
		WHERE ` + filter + `
		ORDER BY snapshot_timestamp DESC, snapshot_id DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, strategy, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots for strategy %q: %w", strategy, err)
	}
	defer rows.Close()

	var snapshots []types.Snapshot
	for rows.Next() {
		snap, err := s.scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, *snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return snapshots, nil
}

func (s *Store) querySnapshot(ctx context.Context, query string, args ...any) (*types.Snapshot, error) {
	snap, err := s.scanSnapshot(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return snap, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanSnapshot(row rowScanner) (*types.Snapshot, error) {
	var (
		snap                                            types.Snapshot
		totalShares, totalAssets, idle, allocated, rate string
		names                                           []string
	)

	err := row.Scan(
		&snap.SnapshotID, &snap.RunID, &snap.Timestamp, &snap.Name, &snap.Symbol,
		&totalShares, &totalAssets, &idle, &allocated, &rate,
		&snap.Holders, s.stringArrayScanner(&names), &jsonScanner{dst: &snap.Strategies},
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
	}
	snap.Timestamp = snap.Timestamp.UTC()

	if snap.TotalShares, err = parseInt("total_shares", totalShares); err != nil {
		return nil, err
	}
	if snap.TotalAssets, err = parseInt("total_assets", totalAssets); err != nil {
		return nil, err
	}
	if snap.IdleAssets, err = parseInt("idle_assets", idle); err != nil {
		return nil, err
	}
	if snap.Allocated, err = parseInt("allocated_assets", allocated); err != nil {
		return nil, err
	}
	if snap.ExchangeRate, err = sdkmath.LegacyNewDecFromStr(rate); err != nil {
		return nil, fmt.Errorf("failed to decode exchange_rate %q: %w", rate, err)
	}
	if snap.Strategies == nil {
		snap.Strategies = []types.StrategyAllocation{}
	}

	return &snap, nil
}
