/*

This file contains the strategy allocator: per-strategy records of principal moved out of
idle custody, with the operator's rationale. Reallocation changes the composition of
total assets, never the total.

*/

package vault

import (
	"context"
	"fmt"
	"sort"
	"strings"

	sdkmath "cosmossdk.io/math"

	"github.com/commonprotocol/vault/internal/types"
)

// RebalanceStrategy moves amount from idle custody to the named strategy. Repeated
// allocations to one name accumulate; the rationale replaces the previous one.
func (v *Vault) RebalanceStrategy(ctx context.Context, caller types.Participant, strategy string, amount sdkmath.Int, rationale string) error {
	v.mu.Lock()
	ev, err := v.rebalanceLocked(caller, strategy, amount, rationale)
	v.unlockAndPublish(ctx, ev)

	if err != nil {
		v.logger.Warn().Err(err).Str("strategy", strategy).Stringer("amount", amount).Msg("Rebalance rejected")
		return err
	}
	v.logger.Info().
		Str("strategy", ev.Strategy).
		Stringer("amount", amount).
		Str("rationale", rationale).
		Time("timestamp", ev.Timestamp).
		Msg("Strategy rebalanced")
	return nil
}

func (v *Vault) rebalanceLocked(caller types.Participant, strategy string, amount sdkmath.Int, rationale string) (*types.Event, error) {
	if err := v.requireOperatorLocked(caller); err != nil {
		return nil, err
	}
	name, err := normalizeStrategyName(strategy)
	if err != nil {
		return nil, err
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	if v.idle.LT(amount) {
		return nil, fmt.Errorf("%w: requested %s, idle %s", ErrInsufficientIdleFunds, amount, v.idle)
	}

	now := v.clock().UTC()
	st, ok := v.strategies[name]
	if !ok {
		st = &types.StrategyAllocation{
			Name:           name,
			Amount:         sdkmath.ZeroInt(),
			TotalAllocated: sdkmath.ZeroInt(),
			CreatedAt:      now,
		}
		v.strategies[name] = st
	}
	st.Amount = st.Amount.Add(amount)
	st.TotalAllocated = st.TotalAllocated.Add(amount)
	st.Rationale = rationale
	st.UpdatedAt = now

	v.idle = v.idle.Sub(amount)
	v.allocated = v.allocated.Add(amount)

	return v.appendEventLocked(types.Event{
		Type:      types.EventStrategyRebalanced,
		Caller:    caller,
		Strategy:  name,
		Rationale: rationale,
		Assets:    amount,
	}), nil
}

// UnwindStrategy returns amount of a strategy's principal to idle custody. The record is
// kept even when its amount reaches zero. An empty rationale keeps the previous one.
func (v *Vault) UnwindStrategy(ctx context.Context, caller types.Participant, strategy string, amount sdkmath.Int, rationale string) error {
	v.mu.Lock()
	ev, err := v.unwindLocked(caller, strategy, amount, rationale)
	v.unlockAndPublish(ctx, ev)

	if err != nil {
		v.logger.Warn().Err(err).Str("strategy", strategy).Stringer("amount", amount).Msg("Unwind rejected")
		return err
	}
	v.logger.Info().Str("strategy", ev.Strategy).Stringer("amount", amount).Msg("Strategy unwound")
	return nil
}

func (v *Vault) unwindLocked(caller types.Participant, strategy string, amount sdkmath.Int, rationale string) (*types.Event, error) {
	if err := v.requireOperatorLocked(caller); err != nil {
		return nil, err
	}
	name, err := normalizeStrategyName(strategy)
	if err != nil {
		return nil, err
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	st, ok := v.strategies[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	if st.Amount.LT(amount) {
		return nil, fmt.Errorf("%w: %q holds %s, requested %s", ErrInsufficientAllocation, name, st.Amount, amount)
	}

	st.Amount = st.Amount.Sub(amount)
	if rationale != "" {
		st.Rationale = rationale
	}
	st.UpdatedAt = v.clock().UTC()

	v.allocated = v.allocated.Sub(amount)
	v.idle = v.idle.Add(amount)

	return v.appendEventLocked(types.Event{
		Type:      types.EventStrategyUnwound,
		Caller:    caller,
		Strategy:  name,
		Rationale: st.Rationale,
		Assets:    amount,
	}), nil
}

// StrategyAllocation returns the current amount and rationale recorded for strategy.
// ok is false when nothing was ever allocated to it.
func (v *Vault) StrategyAllocation(strategy string) (amount sdkmath.Int, rationale string, ok bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	st, found := v.strategies[strings.TrimSpace(strategy)]
	if !found {
		return sdkmath.ZeroInt(), "", false
	}
	return st.Amount, st.Rationale, true
}

// Strategies returns a copy of every allocation record, sorted by name.
func (v *Vault) Strategies() []types.StrategyAllocation {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.strategiesLocked()
}

func (v *Vault) strategiesLocked() []types.StrategyAllocation {
	out := make([]types.StrategyAllocation, 0, len(v.strategies))
	for _, st := range v.strategies {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// normalizeStrategyName trims surrounding space; the result must be non-empty.
func normalizeStrategyName(strategy string) (string, error) {
	name := strings.TrimSpace(strategy)
	if name == "" {
		return "", fmt.Errorf("%w: empty name", ErrInvalidStrategy)
	}
	return name, nil
}
