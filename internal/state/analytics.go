package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/commonprotocol/vault/internal/types"
)

// JournalEntry is a journaled event with the run that produced it.
type JournalEntry struct {
	RunID string `json:"run_id"`
	types.Event
}

// JournalSummary represents high-level journal statistics.
type JournalSummary struct {
	TotalEvents    int                     `json:"total_events"`
	TotalSnapshots int                     `json:"total_snapshots"`
	TotalRuns      int                     `json:"total_runs"`
	EventCounts    map[types.EventType]int `json:"event_counts"`
	LastEventAt    *time.Time              `json:"last_event_at,omitempty"`
}

const eventColumns = `
	run_id, event_id, sequence, event_type, event_timestamp,
	caller, account, strategy, rationale,
	assets, shares, total_shares, total_assets
`

// GetRecentEvents retrieves the most recent journaled events across all runs, newest first.
func (s *Store) GetRecentEvents(ctx context.Context, limit int) ([]JournalEntry, error) {
	if s == nil || s.db == nil {
		return nil, ErrDatabaseNotInitialized
	}

	if limit <= 0 || limit > 500 {
		limit = 50 // Default limit
	}

	query := `SELECT ` + eventColumns + `
		FROM vault_events
		ORDER BY event_timestamp DESC, sequence DESC
		LIMIT $1
	`
	entries, err := s.queryEvents(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent events: %w", err)
	}

	s.logger.Debug().Int("count", len(entries)).Int("limit", limit).Msg("Retrieved recent events")
	return entries, nil
}

// GetRunEvents retrieves every event of one run in sequence order.
func (s *Store) GetRunEvents(ctx context.Context, runID string) ([]JournalEntry, error) {
	if s == nil || s.db == nil {
		return nil, ErrDatabaseNotInitialized
	}

	query := `SELECT ` + eventColumns + `
		FROM vault_events
		WHERE run_id = $1
		ORDER BY sequence ASC
	`
	entries, err := s.queryEvents(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events for run %s: %w", runID, err)
	}
	return entries, nil
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]JournalEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var (
			e                                        JournalEntry
			sequence                                 int64
			eventType, caller, account               string
			assets, shares, totalShares, totalAssets string
		)
		err := rows.Scan(
			&e.RunID, &e.ID, &sequence, &eventType, &e.Timestamp,
			&caller, &account, &e.Strategy, &e.Rationale,
			&assets, &shares, &totalShares, &totalAssets,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}

		e.Sequence = uint64(sequence)
		e.Type = types.EventType(eventType)
		e.Caller = types.Participant(caller)
		e.Account = types.Participant(account)
		e.Timestamp = e.Timestamp.UTC()

		if e.Assets, err = parseInt("assets", assets); err != nil {
			return nil, err
		}
		if e.Shares, err = parseInt("shares", shares); err != nil {
			return nil, err
		}
		if e.TotalShares, err = parseInt("total_shares", totalShares); err != nil {
			return nil, err
		}
		if e.TotalAssets, err = parseInt("total_assets", totalAssets); err != nil {
			return nil, err
		}

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return entries, nil
}

// GetEventCounts returns the number of journaled events per event type.
func (s *Store) GetEventCounts(ctx context.Context) (map[types.EventType]int, error) {
	if s == nil || s.db == nil {
		return nil, ErrDatabaseNotInitialized
	}

	rows, err := s.db.QueryContext(ctx, `SELECT event_type, COUNT(*) FROM vault_events GROUP BY event_type`)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[types.EventType]int)
	for rows.Next() {
		var (
			eventType string
			n         int
		)
		if err := rows.Scan(&eventType, &n); err != nil {
			return nil, fmt.Errorf("failed to scan event count: %w", err)
		}
		counts[types.EventType(eventType)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return counts, nil
}

// GetJournalSummary retrieves high-level journal statistics.
func (s *Store) GetJournalSummary(ctx context.Context) (*JournalSummary, error) {
	if s == nil || s.db == nil {
		return nil, ErrDatabaseNotInitialized
	}

	summary := &JournalSummary{}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vault_events").Scan(&summary.TotalEvents); err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vault_snapshots").Scan(&summary.TotalSnapshots); err != nil {
		return nil, fmt.Errorf("failed to count snapshots: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM scenario_runs").Scan(&summary.TotalRuns); err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}

	var last time.Time
	err := s.db.QueryRowContext(ctx, `SELECT event_timestamp FROM vault_events ORDER BY event_timestamp DESC LIMIT 1`).Scan(&last)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("failed to get latest event time: %w", err)
	default:
		last = last.UTC()
		summary.LastEventAt = &last
	}

	counts, err := s.GetEventCounts(ctx)
	if err != nil {
		return nil, err
	}
	summary.EventCounts = counts

	s.logger.Debug().Int("totalEvents", summary.TotalEvents).Int("totalRuns", summary.TotalRuns).Msg("Retrieved journal summary")
	return summary, nil
}
