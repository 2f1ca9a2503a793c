package planner

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commonprotocol/vault/internal/scenario"
	"github.com/commonprotocol/vault/internal/types"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

func snapshot(total, idle int64, allocations map[string]int64) types.Snapshot {
	s := types.Snapshot{
		TotalAssets: sdkmath.NewInt(total),
		IdleAssets:  sdkmath.NewInt(idle),
		Allocated:   sdkmath.NewInt(total - idle),
	}
	for name, amount := range allocations {
		s.Strategies = append(s.Strategies, types.StrategyAllocation{Name: name, Amount: sdkmath.NewInt(amount)})
	}
	return s
}

func weights(t *testing.T, pairs ...string) map[string]sdkmath.LegacyDec {
	t.Helper()
	targets, err := ParseTargets(pairs)
	require.NoError(t, err)
	return targets
}

func TestGeneratePlan_MovesTowardTargets(t *testing.T) {
	snap := snapshot(5050, 2550, map[string]int64{"Aave": 2500})

	plan, err := GeneratePlan(snap, weights(t, "Aave=0.3", "Compound=0.2"), DefaultLimits())
	require.NoError(t, err)

	require.Len(t, plan.Unwinds, 1)
	assert.Equal(t, ActionUnwind, plan.Unwinds[0].Kind)
	assert.Equal(t, "Aave", plan.Unwinds[0].Strategy)
	assert.Equal(t, "985", plan.Unwinds[0].Amount.String())
	assert.Equal(t, "1515", plan.Unwinds[0].Target.String())

	require.Len(t, plan.Rebalances, 1)
	assert.Equal(t, "Compound", plan.Rebalances[0].Strategy)
	assert.Equal(t, "1010", plan.Rebalances[0].Amount.String())

	assert.Equal(t, "2525", plan.IdleAfter.String())
	assert.False(t, plan.Empty())
}

func TestGeneratePlan_UntargetedStrategyExitsFully(t *testing.T) {
	snap := snapshot(5050, 2550, map[string]int64{"Aave": 2500})

	plan, err := GeneratePlan(snap, map[string]sdkmath.LegacyDec{}, DefaultLimits())
	require.NoError(t, err)

	require.Len(t, plan.Unwinds, 1)
	assert.Equal(t, "2500", plan.Unwinds[0].Amount.String())
	assert.Empty(t, plan.Rebalances)
	assert.Equal(t, "5050", plan.IdleAfter.String())
}

func TestGeneratePlan_ThresholdSkipsSmallMoves(t *testing.T) {
	snap := snapshot(5050, 2550, map[string]int64{"Aave": 2500})

	limits := DefaultLimits()
	limits.ThresholdPercent = sdkmath.LegacyNewDec(50)

	plan, err := GeneratePlan(snap, weights(t, "Aave=0.45"), limits)
	require.NoError(t, err)
	assert.True(t, plan.Empty())
	assert.Equal(t, "2550", plan.IdleAfter.String())
}

func TestGeneratePlan_UnwindLimitScalesProRata(t *testing.T) {
	snap := snapshot(5050, 2550, map[string]int64{"Aave": 2500})

	limits := DefaultLimits()
	limits.MaxUnwindPercent = sdkmath.LegacyNewDec(10)

	plan, err := GeneratePlan(snap, map[string]sdkmath.LegacyDec{}, limits)
	require.NoError(t, err)
	require.Len(t, plan.Unwinds, 1)
	assert.Equal(t, "505", plan.Unwinds[0].Amount.String())
}

func TestGeneratePlan_RebalanceCappedByIdle(t *testing.T) {
	snap := snapshot(1000, 50, map[string]int64{"Aave": 950})

	limits := DefaultLimits()
	limits.ThresholdPercent = sdkmath.LegacyNewDec(10)

	plan, err := GeneratePlan(snap, weights(t, "Aave=0.9", "Compound=0.1"), limits)
	require.NoError(t, err)
	assert.Empty(t, plan.Unwinds)
	require.Len(t, plan.Rebalances, 1)
	assert.Equal(t, "50", plan.Rebalances[0].Amount.String())
	assert.Equal(t, "100", plan.Rebalances[0].Target.String())
	assert.True(t, plan.IdleAfter.IsZero())
}

func TestGeneratePlan_EmptyVault(t *testing.T) {
	plan, err := GeneratePlan(snapshot(0, 0, nil), weights(t, "Aave=1"), DefaultLimits())
	require.NoError(t, err)
	assert.True(t, plan.Empty())
}

func TestGeneratePlan_Validation(t *testing.T) {
	valid := snapshot(100, 100, nil)

	tests := []struct {
		name    string
		snap    types.Snapshot
		targets map[string]sdkmath.LegacyDec
		limits  Limits
		wantErr error
	}{
		{"unset totals", types.Snapshot{}, map[string]sdkmath.LegacyDec{}, DefaultLimits(), ErrInvalidTotals},
		{"idle above total", snapshot(10, 20, nil), map[string]sdkmath.LegacyDec{}, DefaultLimits(), ErrInvalidTotals},
		{"nil targets", valid, nil, DefaultLimits(), ErrInvalidTargetAllocations},
		{"negative weight", valid, map[string]sdkmath.LegacyDec{"Aave": sdkmath.LegacyNewDec(-1)}, DefaultLimits(), ErrInvalidTargetAllocations},
		{"weight above one", valid, map[string]sdkmath.LegacyDec{"Aave": sdkmath.LegacyNewDec(2)}, DefaultLimits(), ErrInvalidTargetAllocations},
		{"sum above one", valid, weights(t, "Aave=0.6", "Compound=0.6"), DefaultLimits(), ErrInvalidTargetAllocations},
		{"blank name", valid, map[string]sdkmath.LegacyDec{" ": sdkmath.LegacyZeroDec()}, DefaultLimits(), ErrInvalidTargetAllocations},
		{"negative threshold", valid, map[string]sdkmath.LegacyDec{}, Limits{ThresholdPercent: sdkmath.LegacyNewDec(-1), MaxUnwindPercent: sdkmath.LegacyZeroDec()}, ErrInvalidLimits},
		{"unwind cap above 100", valid, map[string]sdkmath.LegacyDec{}, Limits{ThresholdPercent: sdkmath.LegacyZeroDec(), MaxUnwindPercent: sdkmath.LegacyNewDec(101)}, ErrInvalidLimits},
		{"unset limits", valid, map[string]sdkmath.LegacyDec{}, Limits{}, ErrInvalidLimits},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GeneratePlan(tt.snap, tt.targets, tt.limits)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseTargets(t *testing.T) {
	targets, err := ParseTargets([]string{"Aave=0.3", " Compound = 0.2 "})
	require.NoError(t, err)
	assert.Equal(t, "0.300000000000000000", targets["Aave"].String())
	assert.Equal(t, "0.200000000000000000", targets["Compound"].String())

	for _, bad := range [][]string{{"Aave"}, {"=0.1"}, {"Aave=abc"}, {"Aave=0.1", "Aave=0.2"}} {
		_, err := ParseTargets(bad)
		assert.ErrorIs(t, err, ErrInvalidTargetAllocations, "%v", bad)
	}
}

type call struct {
	kind     ActionKind
	strategy string
	amount   string
}

type recordingAllocator struct {
	calls  []call
	failOn string
}

func (r *recordingAllocator) record(kind ActionKind, strategy string, amount sdkmath.Int) error {
	if strategy == r.failOn {
		return errors.New("boom")
	}
	r.calls = append(r.calls, call{kind, strategy, amount.String()})
	return nil
}

func (r *recordingAllocator) UnwindStrategy(_ context.Context, _ types.Participant, strategy string, amount sdkmath.Int, _ string) error {
	return r.record(ActionUnwind, strategy, amount)
}

func (r *recordingAllocator) RebalanceStrategy(_ context.Context, _ types.Participant, strategy string, amount sdkmath.Int, _ string) error {
	return r.record(ActionRebalance, strategy, amount)
}

func TestExecute_UnwindsBeforeRebalances(t *testing.T) {
	plan, err := GeneratePlan(snapshot(5050, 2550, map[string]int64{"Aave": 2500}), weights(t, "Aave=0.3", "Compound=0.2"), DefaultLimits())
	require.NoError(t, err)

	alloc := &recordingAllocator{}
	require.NoError(t, Execute(context.Background(), alloc, "operator", plan, "target weights"))
	assert.Equal(t, []call{
		{ActionUnwind, "Aave", "985"},
		{ActionRebalance, "Compound", "1010"},
	}, alloc.calls)

	failing := &recordingAllocator{failOn: "Compound"}
	err = Execute(context.Background(), failing, "operator", plan, "target weights")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExecutionFailed)
	assert.Len(t, failing.calls, 1)
}

func TestExecute_AgainstScenarioVault(t *testing.T) {
	runner, err := scenario.NewRunner(scenario.Config{
		VaultName:     "Common Share",
		VaultSymbol:   "cmUSDC",
		AssetDenom:    "usdc",
		AssetDecimals: 0,
		Bech32Prefix:  "common",
		Parameters: types.ScenarioParameters{
			MintAmount:      "10000",
			DepositAmount:   "5000",
			StrategyName:    "Aave",
			RebalanceAmount: "2500",
			Rationale:       "Optimizing for higher variable rate",
			YieldAmount:     "50",
		},
		Clock: func() time.Time { return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	res, err := runner.Run(context.Background())
	require.NoError(t, err)

	plan, err := GeneratePlan(res.Vault.Snapshot(), weights(t, "Aave=0.3", "Compound=0.2"), DefaultLimits())
	require.NoError(t, err)

	operator := res.Book.MustDerive(scenario.LabelDeployer)
	require.NoError(t, Execute(context.Background(), res.Vault, operator, plan, "target weights"))

	after := res.Vault.Snapshot()
	assert.Equal(t, "5050", after.TotalAssets.String())
	assert.Equal(t, "2525", after.IdleAssets.String())
	aave, _, ok := res.Vault.StrategyAllocation("Aave")
	require.True(t, ok)
	assert.Equal(t, "1515", aave.String())
	compound, rationale, ok := res.Vault.StrategyAllocation("Compound")
	require.True(t, ok)
	assert.Equal(t, "1010", compound.String())
	assert.Equal(t, "target weights", rationale)
	require.NoError(t, res.Vault.CheckInvariants())
}
