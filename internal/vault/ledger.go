package vault

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/commonprotocol/vault/internal/types"
)

// Deposit pulls amount of the underlying asset from caller and mints shares to beneficiary
// at the exchange rate in force before the deposit. Share amounts are floored, so any
// fractional share stays with existing holders. Returns the number of shares minted.
func (v *Vault) Deposit(ctx context.Context, caller types.Participant, amount sdkmath.Int, beneficiary types.Participant) (sdkmath.Int, error) {
	v.mu.Lock()
	shares, ev, err := v.depositLocked(ctx, caller, amount, beneficiary)
	v.unlockAndPublish(ctx, ev)

	if err != nil {
		v.logger.Warn().Err(err).Stringer("caller", caller).Stringer("amount", amount).Msg("Deposit rejected")
		return sdkmath.ZeroInt(), err
	}
	v.logger.Info().
		Stringer("caller", caller).
		Stringer("beneficiary", beneficiary).
		Stringer("assets", amount).
		Stringer("shares", shares).
		Msg("Deposit accepted")
	return shares, nil
}

func (v *Vault) depositLocked(ctx context.Context, caller types.Participant, amount sdkmath.Int, beneficiary types.Participant) (sdkmath.Int, *types.Event, error) {
	if err := validateAmount(amount); err != nil {
		return sdkmath.Int{}, nil, err
	}
	if beneficiary.IsZero() {
		return sdkmath.Int{}, nil, fmt.Errorf("%w: empty beneficiary", ErrInvalidAccount)
	}
	if !v.gate.IsVerified(caller) {
		return sdkmath.Int{}, nil, fmt.Errorf("%w: %s", ErrNotVerified, caller)
	}

	shares := v.convertToSharesLocked(amount)
	if !shares.IsPositive() {
		return sdkmath.Int{}, nil, fmt.Errorf("%w: depositing %s mints no shares", ErrInvalidAmount, amount)
	}

	if err := v.asset.TransferIn(ctx, caller, amount); err != nil {
		return sdkmath.Int{}, nil, fmt.Errorf("%w: pull %s from %s: %w", ErrTransferFailed, amount, caller, err)
	}

	v.balances[beneficiary] = v.balanceLocked(beneficiary).Add(shares)
	v.totalShares = v.totalShares.Add(shares)
	v.idle = v.idle.Add(amount)

	ev := v.appendEventLocked(types.Event{
		Type:    types.EventDeposit,
		Caller:  caller,
		Account: beneficiary,
		Assets:  amount,
		Shares:  shares,
	})
	return shares, ev, nil
}

// Withdraw burns shares from caller and pays the floored asset value to recipient. Only
// idle custody can be paid out; capital allocated to strategies is locked until unwound,
// which is reported as ErrInsufficientIdleLiquidity. Returns the assets paid.
func (v *Vault) Withdraw(ctx context.Context, caller types.Participant, shares sdkmath.Int, recipient types.Participant) (sdkmath.Int, error) {
	v.mu.Lock()
	assets, ev, err := v.withdrawLocked(ctx, caller, shares, recipient)
	v.unlockAndPublish(ctx, ev)

	if err != nil {
		v.logger.Warn().Err(err).Stringer("caller", caller).Stringer("shares", shares).Msg("Withdrawal rejected")
		return sdkmath.ZeroInt(), err
	}
	v.logger.Info().
		Stringer("caller", caller).
		Stringer("recipient", recipient).
		Stringer("shares", shares).
		Stringer("assets", assets).
		Msg("Withdrawal paid")
	return assets, nil
}

func (v *Vault) withdrawLocked(ctx context.Context, caller types.Participant, shares sdkmath.Int, recipient types.Participant) (sdkmath.Int, *types.Event, error) {
	if err := validateAmount(shares); err != nil {
		return sdkmath.Int{}, nil, err
	}
	if recipient.IsZero() {
		return sdkmath.Int{}, nil, fmt.Errorf("%w: empty recipient", ErrInvalidAccount)
	}
	balance := v.balanceLocked(caller)
	if balance.LT(shares) {
		return sdkmath.Int{}, nil, fmt.Errorf("%w: %s holds %s shares, requested %s", ErrInsufficientShares, caller, balance, shares)
	}

	assets := v.convertToAssetsLocked(shares)
	if !assets.IsPositive() {
		return sdkmath.Int{}, nil, fmt.Errorf("%w: %s shares redeem for nothing", ErrInvalidAmount, shares)
	}
	if v.idle.LT(assets) {
		return sdkmath.Int{}, nil, fmt.Errorf("%w: need %s, idle %s, allocated %s", ErrInsufficientIdleLiquidity, assets, v.idle, v.allocated)
	}

	if err := v.asset.TransferOut(ctx, recipient, assets); err != nil {
		return sdkmath.Int{}, nil, fmt.Errorf("%w: pay %s to %s: %w", ErrTransferFailed, assets, recipient, err)
	}

	v.balances[caller] = balance.Sub(shares)
	v.totalShares = v.totalShares.Sub(shares)
	v.idle = v.idle.Sub(assets)

	ev := v.appendEventLocked(types.Event{
		Type:    types.EventWithdraw,
		Caller:  caller,
		Account: recipient,
		Assets:  assets,
		Shares:  shares,
	})
	return assets, ev, nil
}

// Harvest recognises yieldAmount of externally realised yield that has already been
// transferred into vault custody. Total assets rise and the share supply does not, so
// every holder's claim appreciates pro rata. The vault's actual balance must exceed the
// assets it already accounts for by at least yieldAmount.
func (v *Vault) Harvest(ctx context.Context, caller types.Participant, yieldAmount sdkmath.Int) error {
	v.mu.Lock()
	ev, err := v.harvestLocked(caller, yieldAmount)
	v.unlockAndPublish(ctx, ev)

	if err != nil {
		v.logger.Warn().Err(err).Stringer("caller", caller).Stringer("yield", yieldAmount).Msg("Harvest rejected")
		return err
	}
	v.logger.Info().
		Stringer("caller", caller).
		Stringer("yield", yieldAmount).
		Stringer("total_assets", ev.TotalAssets).
		Msg("Yield harvested")
	return nil
}

func (v *Vault) harvestLocked(caller types.Participant, yieldAmount sdkmath.Int) (*types.Event, error) {
	if err := v.requireOperatorLocked(caller); err != nil {
		return nil, err
	}
	if err := validateAmount(yieldAmount); err != nil {
		return nil, err
	}

	// Strategy allocations are bookkeeping; their principal stays in custody, so the
	// recognised custody balance is the whole of total assets.
	accounted := v.totalAssetsLocked()
	actual := v.asset.BalanceOf(v.address)
	if actual.IsNil() {
		actual = sdkmath.ZeroInt()
	}
	unaccounted := actual.Sub(accounted)
	if unaccounted.LT(yieldAmount) {
		return nil, fmt.Errorf("%w: claimed %s, custody holds %s against %s accounted", ErrInsufficientFundsReceived, yieldAmount, actual, accounted)
	}

	v.idle = v.idle.Add(yieldAmount)

	return v.appendEventLocked(types.Event{
		Type:   types.EventHarvest,
		Caller: caller,
		Assets: yieldAmount,
	}), nil
}

// TransferShares moves shares between holders. Total supply is unchanged.
func (v *Vault) TransferShares(ctx context.Context, from, to types.Participant, shares sdkmath.Int) error {
	v.mu.Lock()
	ev, err := v.transferSharesLocked(from, to, shares)
	v.unlockAndPublish(ctx, ev)

	if err != nil {
		return err
	}
	v.logger.Debug().Stringer("from", from).Stringer("to", to).Stringer("shares", shares).Msg("Shares transferred")
	return nil
}

func (v *Vault) transferSharesLocked(from, to types.Participant, shares sdkmath.Int) (*types.Event, error) {
	if err := validateAmount(shares); err != nil {
		return nil, err
	}
	if to.IsZero() {
		return nil, fmt.Errorf("%w: empty receiver", ErrInvalidAccount)
	}
	balance := v.balanceLocked(from)
	if balance.LT(shares) {
		return nil, fmt.Errorf("%w: %s holds %s shares, requested %s", ErrInsufficientShares, from, balance, shares)
	}

	v.balances[from] = balance.Sub(shares)
	v.balances[to] = v.balanceLocked(to).Add(shares)

	return v.appendEventLocked(types.Event{
		Type:    types.EventShareTransfer,
		Caller:  from,
		Account: to,
		Shares:  shares,
	}), nil
}
