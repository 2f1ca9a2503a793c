package vault

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/commonprotocol/vault/internal/types"
)

// TotalShares returns the number of shares outstanding.
func (v *Vault) TotalShares() sdkmath.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.totalShares
}

// TotalAssets returns assets under management: idle custody plus all strategy allocations.
func (v *Vault) TotalAssets() sdkmath.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.totalAssetsLocked()
}

// IdleAssets returns the assets held in custody and not allocated to any strategy.
func (v *Vault) IdleAssets() sdkmath.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.idle
}

// AllocatedAssets returns the sum of all strategy allocations.
func (v *Vault) AllocatedAssets() sdkmath.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.allocated
}

// ShareBalanceOf returns the shares held by p.
func (v *Vault) ShareBalanceOf(p types.Participant) sdkmath.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.balanceLocked(p)
}

// ExchangeRate returns the asset value of one share: total assets over total shares, or
// exactly one while no shares exist. The quotient is truncated at 18 decimals.
func (v *Vault) ExchangeRate() sdkmath.LegacyDec {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.exchangeRateLocked()
}

func (v *Vault) exchangeRateLocked() sdkmath.LegacyDec {
	if v.totalShares.IsZero() {
		return sdkmath.LegacyOneDec()
	}
	return sdkmath.LegacyNewDecFromInt(v.totalAssetsLocked()).
		QuoTruncate(sdkmath.LegacyNewDecFromInt(v.totalShares))
}

// ConvertToShares returns the shares a deposit of assets would mint right now.
func (v *Vault) ConvertToShares(assets sdkmath.Int) sdkmath.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.convertToSharesLocked(assets)
}

// ConvertToAssets returns the assets shares would redeem for right now, ignoring liquidity.
func (v *Vault) ConvertToAssets(shares sdkmath.Int) sdkmath.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.convertToAssetsLocked(shares)
}

// MaxWithdraw returns the assets owner could withdraw now: the value of their shares,
// capped by idle custody.
func (v *Vault) MaxWithdraw(owner types.Participant) sdkmath.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	assets := v.convertToAssetsLocked(v.balanceLocked(owner))
	return sdkmath.MinInt(assets, v.idle)
}

// convertToSharesLocked floors assets × totalShares / totalAssets; bootstrap is 1:1.
func (v *Vault) convertToSharesLocked(assets sdkmath.Int) sdkmath.Int {
	if assets.IsNil() || !assets.IsPositive() {
		return sdkmath.ZeroInt()
	}
	if v.totalShares.IsZero() {
		return assets
	}
	aum := v.totalAssetsLocked()
	if aum.IsZero() {
		// Unreachable while shares exist; CheckInvariants reports it.
		return sdkmath.ZeroInt()
	}
	return assets.Mul(v.totalShares).Quo(aum)
}

// convertToAssetsLocked floors shares × totalAssets / totalShares.
func (v *Vault) convertToAssetsLocked(shares sdkmath.Int) sdkmath.Int {
	if shares.IsNil() || !shares.IsPositive() || v.totalShares.IsZero() {
		return sdkmath.ZeroInt()
	}
	return shares.Mul(v.totalAssetsLocked()).Quo(v.totalShares)
}

// Snapshot returns a consistent view of the whole ledger.
func (v *Vault) Snapshot() types.Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	holders := 0
	for _, b := range v.balances {
		if b.IsPositive() {
			holders++
		}
	}

	return types.Snapshot{
		Timestamp:    v.clock().UTC(),
		Name:         v.name,
		Symbol:       v.symbol,
		TotalShares:  v.totalShares,
		TotalAssets:  v.totalAssetsLocked(),
		IdleAssets:   v.idle,
		Allocated:    v.allocated,
		ExchangeRate: v.exchangeRateLocked(),
		Holders:      holders,
		Strategies:   v.strategiesLocked(),
	}
}

// CheckInvariants verifies the solvency invariants of the ledger:
//   - idle + Σ strategy allocations == total assets
//   - Σ share balances == total shares
//   - no balance or allocation is negative
//   - shares outstanding imply assets under management
//   - Σ floor(balance × rate) ≤ total assets
func (v *Vault) CheckInvariants() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.idle.IsNegative() || v.allocated.IsNegative() || v.totalShares.IsNegative() {
		return fmt.Errorf("%w: negative total (idle %s, allocated %s, shares %s)", ErrInvariantViolated, v.idle, v.allocated, v.totalShares)
	}

	sumAllocations := sdkmath.ZeroInt()
	for name, st := range v.strategies {
		if st.Amount.IsNegative() {
			return fmt.Errorf("%w: strategy %q allocation %s is negative", ErrInvariantViolated, name, st.Amount)
		}
		sumAllocations = sumAllocations.Add(st.Amount)
	}
	if !sumAllocations.Equal(v.allocated) {
		return fmt.Errorf("%w: allocations sum to %s, ledger records %s", ErrInvariantViolated, sumAllocations, v.allocated)
	}

	sumShares := sdkmath.ZeroInt()
	sumClaims := sdkmath.ZeroInt()
	for p, b := range v.balances {
		if b.IsNegative() {
			return fmt.Errorf("%w: %s holds %s shares", ErrInvariantViolated, p, b)
		}
		sumShares = sumShares.Add(b)
		sumClaims = sumClaims.Add(v.convertToAssetsLocked(b))
	}
	if !sumShares.Equal(v.totalShares) {
		return fmt.Errorf("%w: balances sum to %s, total shares %s", ErrInvariantViolated, sumShares, v.totalShares)
	}

	aum := v.totalAssetsLocked()
	if v.totalShares.IsPositive() && !aum.IsPositive() {
		return fmt.Errorf("%w: %s shares outstanding with no assets", ErrInvariantViolated, v.totalShares)
	}
	if sumClaims.GT(aum) {
		return fmt.Errorf("%w: claims %s exceed assets %s", ErrInvariantViolated, sumClaims, aum)
	}
	return nil
}
