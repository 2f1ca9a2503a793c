package token

import (
	"context"

	sdkmath "cosmossdk.io/math"

	"github.com/commonprotocol/vault/internal/types"
)

// Custody binds a Ledger to the account that holds custody of it, exposing the
// pull / push / balance boundary a vault consumes. Pulls spend the allowance the
// depositor granted to the custodian.
type Custody struct {
	ledger    *Ledger
	custodian types.Participant
}

// NewCustody returns the custody boundary for custodian.
func NewCustody(ledger *Ledger, custodian types.Participant) *Custody {
	return &Custody{ledger: ledger, custodian: custodian}
}

// TransferIn pulls amount from from into custody.
func (c *Custody) TransferIn(ctx context.Context, from types.Participant, amount sdkmath.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.ledger.TransferFrom(c.custodian, from, c.custodian, amount)
}

// TransferOut pays amount from custody to to.
func (c *Custody) TransferOut(ctx context.Context, to types.Participant, amount sdkmath.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.ledger.Transfer(c.custodian, to, amount)
}

// BalanceOf returns holder's balance on the underlying ledger.
func (c *Custody) BalanceOf(holder types.Participant) sdkmath.Int {
	return c.ledger.BalanceOf(holder)
}
