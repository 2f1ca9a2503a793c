/*

This file contains the audit events emitted by the vault on every committed state change.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// EventType names the accounting operation that produced an event.
type EventType string

const (
	EventDeposit            EventType = "DEPOSIT"
	EventWithdraw           EventType = "WITHDRAW"
	EventStrategyRebalanced EventType = "STRATEGY_REBALANCED"
	EventStrategyUnwound    EventType = "STRATEGY_UNWOUND"
	EventHarvest            EventType = "HARVEST"
	EventShareTransfer      EventType = "SHARE_TRANSFER"
	EventOperatorChanged    EventType = "OPERATOR_CHANGED"
)

// Event is a single committed change to the vault ledger. Fields that do not apply to
// the event type are left zero. TotalShares and TotalAssets are the post-change values.
type Event struct {
	ID          string      `json:"id"`
	Sequence    uint64      `json:"sequence"`
	Type        EventType   `json:"type"`
	Timestamp   time.Time   `json:"timestamp"`
	Caller      Participant `json:"caller"`
	Account     Participant `json:"account,omitempty"` // beneficiary, recipient or share receiver
	Strategy    string      `json:"strategy,omitempty"`
	Rationale   string      `json:"rationale,omitempty"`
	Assets      sdkmath.Int `json:"assets"`
	Shares      sdkmath.Int `json:"shares"`
	TotalShares sdkmath.Int `json:"total_shares"`
	TotalAssets sdkmath.Int `json:"total_assets"`
}
