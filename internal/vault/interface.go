package vault

import (
	"context"

	sdkmath "cosmossdk.io/math"

	"github.com/commonprotocol/vault/internal/types"
)

// AssetLedger is the custody boundary for the vault's underlying asset. Transfers may fail
// but must not block indefinitely; the vault checks every result.
type AssetLedger interface {
	// TransferIn pulls amount from from into vault custody.
	TransferIn(ctx context.Context, from types.Participant, amount sdkmath.Int) error

	// TransferOut pays amount from vault custody to to.
	TransferOut(ctx context.Context, to types.Participant, amount sdkmath.Int) error

	// BalanceOf returns the asset balance held by holder.
	BalanceOf(holder types.Participant) sdkmath.Int
}

// Verifier is the admission-control boundary consulted before accepting deposits.
type Verifier interface {
	IsVerified(participant types.Participant) bool
}

// EventSink receives every committed ledger event, in sequence order, after the
// accounting change is visible. Errors are logged and never undo the change.
type EventSink interface {
	Record(ctx context.Context, event types.Event) error
}
