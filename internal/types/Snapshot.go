package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// Snapshot is a consistent point-in-time view of the vault ledger.
type Snapshot struct {
	SnapshotID   int64                `json:"snapshot_id,omitempty"` // Auto-incremented by DB
	RunID        string               `json:"run_id,omitempty"`
	Timestamp    time.Time            `json:"timestamp"`
	Name         string               `json:"name"`
	Symbol       string               `json:"symbol"`
	TotalShares  sdkmath.Int          `json:"total_shares"`
	TotalAssets  sdkmath.Int          `json:"total_assets"`
	IdleAssets   sdkmath.Int          `json:"idle_assets"`
	Allocated    sdkmath.Int          `json:"allocated_assets"`
	ExchangeRate sdkmath.LegacyDec    `json:"exchange_rate"`
	Holders      int                  `json:"holders"`
	Strategies   []StrategyAllocation `json:"strategies"`
}

// StrategyNames lists the strategy names in snapshot order.
func (s Snapshot) StrategyNames() []string {
	names := make([]string, 0, len(s.Strategies))
	for _, st := range s.Strategies {
		names = append(names, st.Name)
	}
	return names
}
