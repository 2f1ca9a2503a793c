/*

This is a custom type for strategy allocations which contains the state needed for
tracking where vault capital is deployed and why.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// StrategyAllocation is the vault's record of capital reclassified to a named strategy.
// Records are never deleted. An unwound strategy keeps its entry with a zero Amount.
type StrategyAllocation struct {
	Name           string      `json:"name"`            // e.g., "Aave"
	Amount         sdkmath.Int `json:"amount"`          // Currently allocated principal
	TotalAllocated sdkmath.Int `json:"total_allocated"` // Cumulative principal ever allocated
	Rationale      string      `json:"rationale"`       // Latest stated reason, overwritten on each change
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}
