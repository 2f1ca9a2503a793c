/*

This file contains the event journal: an EventSink that appends every committed vault
event to the vault_events table, tagged with the scenario run that produced it.

*/

package state

import (
	"context"
	"fmt"

	"github.com/commonprotocol/vault/internal/types"
)

// Journal records the events of one run. It satisfies vault.EventSink.
type Journal struct {
	store *Store
	runID string
}

// Journal returns a sink that tags events with runID.
func (s *Store) Journal(runID string) *Journal {
	return &Journal{store: s, runID: runID}
}

// RunID returns the run the journal writes under.
func (j *Journal) RunID() string { return j.runID }

// Record appends ev to the journal.
func (j *Journal) Record(ctx context.Context, ev types.Event) error {
	s := j.store
	if s == nil || s.db == nil {
		return ErrDatabaseNotInitialized
	}

	query := `
		INSERT INTO vault_events (
			event_id, run_id, sequence, event_type, event_timestamp,
			caller, account, strategy, rationale,
			assets, shares, total_shares, total_assets
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := s.db.ExecContext(ctx, query,
		ev.ID, j.runID, int64(ev.Sequence), string(ev.Type), ev.Timestamp.UTC(),
		ev.Caller.String(), ev.Account.String(), ev.Strategy, ev.Rationale,
		intString(ev.Assets), intString(ev.Shares), intString(ev.TotalShares), intString(ev.TotalAssets),
	)
	if err != nil {
		return fmt.Errorf("failed to journal event %d (%s): %w", ev.Sequence, ev.Type, err)
	}

	s.logger.Debug().
		Str("run_id", j.runID).
		Uint64("sequence", ev.Sequence).
		Str("type", string(ev.Type)).
		Msg("Event journaled")
	return nil
}
