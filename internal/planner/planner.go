package planner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	sdkmath "cosmossdk.io/math"

	"github.com/commonprotocol/vault/internal/logger"
	"github.com/commonprotocol/vault/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidTotals            = errors.New("vault totals are invalid")
	ErrInvalidTargetAllocations = errors.New("target allocations contain invalid values")
	ErrInvalidLimits            = errors.New("rebalancing limits are invalid")
	ErrExecutionFailed          = errors.New("plan execution failed")
)

// ActionKind distinguishes capital leaving a strategy from capital entering one.
type ActionKind string

const (
	ActionUnwind    ActionKind = "unwind"
	ActionRebalance ActionKind = "rebalance"
)

// Action is one allocator call of a plan.
type Action struct {
	Kind     ActionKind  `json:"kind"`
	Strategy string      `json:"strategy"`
	Amount   sdkmath.Int `json:"amount"`
	Current  sdkmath.Int `json:"current"` // Allocation before the plan
	Target   sdkmath.Int `json:"target"`  // Allocation the weights ask for
}

// Plan lists unwinds, executed first, then rebalances funded from the freed idle custody.
type Plan struct {
	TotalAssets sdkmath.Int `json:"total_assets"`
	IdleBefore  sdkmath.Int `json:"idle_before"`
	IdleAfter   sdkmath.Int `json:"idle_after"`
	Unwinds     []Action    `json:"unwinds"`
	Rebalances  []Action    `json:"rebalances"`
}

// Empty reports whether the plan moves nothing.
func (p *Plan) Empty() bool {
	return len(p.Unwinds) == 0 && len(p.Rebalances) == 0
}

// Limits bound a single plan.
type Limits struct {
	// ThresholdPercent skips strategies whose deviation from target, in percent of the
	// target, is at most this value. Full exits are never skipped.
	ThresholdPercent sdkmath.LegacyDec
	// MaxUnwindPercent caps the sum of unwinds, in percent of total assets. Unwinds are
	// scaled down pro rata when exceeded; rebalances are not limited. Zero disables the cap.
	MaxUnwindPercent sdkmath.LegacyDec
}

// DefaultLimits act on any deviation and never cap unwinds.
func DefaultLimits() Limits {
	return Limits{
		ThresholdPercent: sdkmath.LegacyZeroDec(),
		MaxUnwindPercent: sdkmath.LegacyZeroDec(),
	}
}

// GeneratePlan computes the unwinds and rebalances that move the allocations in snapshot
// toward targets, given as fractions of total assets. Weights may sum to less than one;
// the remainder stays idle. Strategies absent from targets are unwound completely.
func GeneratePlan(snapshot types.Snapshot, targets map[string]sdkmath.LegacyDec, limits Limits) (*Plan, error) {
	planLogger := logger.GetForComponent("strategy_planner")

	if err := validateInputs(snapshot, targets, limits); err != nil {
		planLogger.Error().Err(err).Msg("Input validation failed")
		return nil, err
	}

	plan := &Plan{
		TotalAssets: snapshot.TotalAssets,
		IdleBefore:  snapshot.IdleAssets,
		IdleAfter:   snapshot.IdleAssets,
		Unwinds:     []Action{},
		Rebalances:  []Action{},
	}
	if snapshot.TotalAssets.IsZero() {
		planLogger.Info().Msg("Total assets are zero, no actions to plan")
		return plan, nil
	}

	unwinds, rebalances := analyzeRequiredChanges(snapshot, targets, limits)
	unwinds = applyUnwindLimit(unwinds, snapshot.TotalAssets, limits)

	freed := sdkmath.ZeroInt()
	for _, a := range unwinds {
		freed = freed.Add(a.Amount)
	}
	available := snapshot.IdleAssets.Add(freed)

	// Rebalances are funded in name order until idle custody runs out.
	funded := make([]Action, 0, len(rebalances))
	for _, a := range rebalances {
		if !available.IsPositive() {
			planLogger.Warn().Str("strategy", a.Strategy).Stringer("wanted", a.Amount).Msg("No idle custody left for rebalance")
			continue
		}
		if a.Amount.GT(available) {
			planLogger.Warn().
				Str("strategy", a.Strategy).
				Stringer("wanted", a.Amount).
				Stringer("available", available).
				Msg("Rebalance capped by idle custody")
			a.Amount = available
		}
		available = available.Sub(a.Amount)
		funded = append(funded, a)
	}

	plan.Unwinds = unwinds
	plan.Rebalances = funded
	plan.IdleAfter = available

	planLogger.Info().
		Int("unwinds", len(plan.Unwinds)).
		Int("rebalances", len(plan.Rebalances)).
		Stringer("idle_after", plan.IdleAfter).
		Msg("Action plan generation completed successfully")
	return plan, nil
}

// validateInputs performs comprehensive validation of all input parameters
func validateInputs(snapshot types.Snapshot, targets map[string]sdkmath.LegacyDec, limits Limits) error {
	if snapshot.TotalAssets.IsNil() || snapshot.IdleAssets.IsNil() {
		return fmt.Errorf("%w: totals are unset", ErrInvalidTotals)
	}
	if snapshot.TotalAssets.IsNegative() || snapshot.IdleAssets.IsNegative() {
		return fmt.Errorf("%w: negative totals", ErrInvalidTotals)
	}
	if snapshot.IdleAssets.GT(snapshot.TotalAssets) {
		return fmt.Errorf("%w: idle %s exceeds total %s", ErrInvalidTotals, snapshot.IdleAssets, snapshot.TotalAssets)
	}

	if targets == nil {
		return fmt.Errorf("%w: target allocations map is nil", ErrInvalidTargetAllocations)
	}
	sum := sdkmath.LegacyZeroDec()
	for name, weight := range targets {
		if strings.TrimSpace(name) == "" || name != strings.TrimSpace(name) {
			return fmt.Errorf("%w: invalid strategy name %q", ErrInvalidTargetAllocations, name)
		}
		if weight.IsNil() || weight.IsNegative() {
			return fmt.Errorf("%w: weight for %q is negative or unset", ErrInvalidTargetAllocations, name)
		}
		if weight.GT(sdkmath.LegacyOneDec()) {
			return fmt.Errorf("%w: weight for %q exceeds 100%%: %s", ErrInvalidTargetAllocations, name, weight)
		}
		sum = sum.Add(weight)
	}
	if sum.GT(sdkmath.LegacyOneDec()) {
		return fmt.Errorf("%w: weights sum to %s", ErrInvalidTargetAllocations, sum)
	}

	if limits.ThresholdPercent.IsNil() || limits.ThresholdPercent.IsNegative() {
		return fmt.Errorf("%w: threshold must be non-negative", ErrInvalidLimits)
	}
	if limits.MaxUnwindPercent.IsNil() || limits.MaxUnwindPercent.IsNegative() ||
		limits.MaxUnwindPercent.GT(sdkmath.LegacyNewDec(100)) {
		return fmt.Errorf("%w: max unwind must be within [0, 100]", ErrInvalidLimits)
	}
	return nil
}

// analyzeRequiredChanges compares every strategy, current or targeted, with its target.
func analyzeRequiredChanges(snapshot types.Snapshot, targets map[string]sdkmath.LegacyDec, limits Limits) ([]Action, []Action) {
	planLogger := logger.GetForComponent("strategy_planner")

	current := make(map[string]sdkmath.Int, len(snapshot.Strategies))
	for _, st := range snapshot.Strategies {
		current[st.Name] = st.Amount
	}

	names := make([]string, 0, len(current)+len(targets))
	for name := range current {
		names = append(names, name)
	}
	for name := range targets {
		if _, ok := current[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	total := sdkmath.LegacyNewDecFromInt(snapshot.TotalAssets)
	var unwinds, rebalances []Action

	for _, name := range names {
		cur, ok := current[name]
		if !ok {
			cur = sdkmath.ZeroInt()
		}
		weight, ok := targets[name]
		if !ok {
			weight = sdkmath.LegacyZeroDec()
		}
		target := total.Mul(weight).TruncateInt()
		delta := target.Sub(cur)

		planLogger.Debug().
			Str("strategy", name).
			Stringer("current", cur).
			Stringer("target", target).
			Stringer("delta", delta).
			Msg("Strategy rebalancing analysis")

		if delta.IsZero() || !exceedsThreshold(delta, target, limits.ThresholdPercent) {
			continue
		}

		action := Action{Strategy: name, Current: cur, Target: target}
		if delta.IsNegative() {
			action.Kind = ActionUnwind
			action.Amount = delta.Neg()
			unwinds = append(unwinds, action)
		} else {
			action.Kind = ActionRebalance
			action.Amount = delta
			rebalances = append(rebalances, action)
		}
	}
	return unwinds, rebalances
}

// exceedsThreshold reports whether |delta| is more than threshold percent of target.
func exceedsThreshold(delta, target sdkmath.Int, threshold sdkmath.LegacyDec) bool {
	if target.IsZero() {
		return true
	}
	deviation := sdkmath.LegacyNewDecFromInt(delta.Abs()).MulInt64(100)
	return deviation.GT(threshold.MulInt(target))
}

// applyUnwindLimit scales unwinds down pro rata when their sum exceeds the cap.
func applyUnwindLimit(unwinds []Action, totalAssets sdkmath.Int, limits Limits) []Action {
	planLogger := logger.GetForComponent("strategy_planner")

	if limits.MaxUnwindPercent.IsZero() || len(unwinds) == 0 {
		return unwinds
	}
	maxUnwind := sdkmath.LegacyNewDecFromInt(totalAssets).Mul(limits.MaxUnwindPercent).QuoInt64(100).TruncateInt()

	sum := sdkmath.ZeroInt()
	for _, a := range unwinds {
		sum = sum.Add(a.Amount)
	}
	if sum.LTE(maxUnwind) {
		return unwinds
	}

	planLogger.Warn().
		Stringer("total_unwind", sum).
		Stringer("max_unwind", maxUnwind).
		Msg("Unwind amount exceeds limit, scaling down unwind actions only")

	capped := make([]Action, 0, len(unwinds))
	for _, a := range unwinds {
		a.Amount = a.Amount.Mul(maxUnwind).Quo(sum)
		if a.Amount.IsPositive() {
			capped = append(capped, a)
		}
	}
	return capped
}

// Allocator is the part of the vault a plan drives.
type Allocator interface {
	UnwindStrategy(ctx context.Context, caller types.Participant, strategy string, amount sdkmath.Int, rationale string) error
	RebalanceStrategy(ctx context.Context, caller types.Participant, strategy string, amount sdkmath.Int, rationale string) error
}

// Execute applies plan as operator, unwinds first. It stops at the first failed action;
// actions already applied stay applied.
func Execute(ctx context.Context, allocator Allocator, operator types.Participant, plan *Plan, rationale string) error {
	planLogger := logger.GetForComponent("strategy_planner")

	for i, a := range plan.Unwinds {
		if err := allocator.UnwindStrategy(ctx, operator, a.Strategy, a.Amount, rationale); err != nil {
			return fmt.Errorf("%w: unwind %d (%s): %w", ErrExecutionFailed, i, a.Strategy, err)
		}
	}
	for i, a := range plan.Rebalances {
		if err := allocator.RebalanceStrategy(ctx, operator, a.Strategy, a.Amount, rationale); err != nil {
			return fmt.Errorf("%w: rebalance %d (%s): %w", ErrExecutionFailed, i, a.Strategy, err)
		}
	}

	planLogger.Info().
		Int("unwinds", len(plan.Unwinds)).
		Int("rebalances", len(plan.Rebalances)).
		Msg("Action plan executed")
	return nil
}

// ParseTargets parses "name=weight" pairs, e.g. "Aave=0.3".
func ParseTargets(pairs []string) (map[string]sdkmath.LegacyDec, error) {
	targets := make(map[string]sdkmath.LegacyDec, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: expected name=weight, got %q", ErrInvalidTargetAllocations, pair)
		}
		weight, err := sdkmath.LegacyNewDecFromStr(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: weight for %q: %w", ErrInvalidTargetAllocations, name, err)
		}
		if _, dup := targets[name]; dup {
			return nil, fmt.Errorf("%w: duplicate strategy %q", ErrInvalidTargetAllocations, name)
		}
		targets[name] = weight
	}
	return targets, nil
}
