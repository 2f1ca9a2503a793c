package scenario

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commonprotocol/vault/internal/metrics"
	"github.com/commonprotocol/vault/internal/state"
	"github.com/commonprotocol/vault/internal/types"
	"github.com/commonprotocol/vault/internal/utils"
	"github.com/commonprotocol/vault/internal/vault"
)

var defaultParameters = types.ScenarioParameters{
	MintAmount:      "10000",
	DepositAmount:   "5000",
	StrategyName:    "Aave",
	RebalanceAmount: "2500",
	Rationale:       "Optimizing for higher variable rate",
	YieldAmount:     "50",
}

func testConfig() Config {
	return Config{
		VaultName:     "Common Share",
		VaultSymbol:   "cmUSDC",
		AssetDenom:    "usdc",
		AssetDecimals: 18,
		Bech32Prefix:  "common",
		Parameters:    defaultParameters,
		Clock:         func() time.Time { return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC) },
	}
}

func units(t *testing.T, amount string) string {
	t.Helper()
	v, err := utils.ParseUnits(amount, 18)
	require.NoError(t, err)
	return v.String()
}

func TestRun_ReferenceDeployment(t *testing.T) {
	runner, err := NewRunner(testConfig())
	require.NoError(t, err)

	res, err := runner.Run(context.Background())
	require.NoError(t, err)

	// 5,000 deposited at the bootstrap rate mints 5,000 shares.
	assert.Equal(t, units(t, "5000"), res.Shares.String())

	snap := res.Snapshot
	assert.Equal(t, "Common Share", snap.Name)
	assert.Equal(t, "cmUSDC", snap.Symbol)
	assert.Equal(t, units(t, "5000"), snap.TotalShares.String())
	assert.Equal(t, units(t, "5050"), snap.TotalAssets.String())
	assert.Equal(t, units(t, "2550"), snap.IdleAssets.String())
	assert.Equal(t, units(t, "2500"), snap.Allocated.String())
	assert.Equal(t, "1.010000000000000000", snap.ExchangeRate.String())
	assert.Equal(t, 1, snap.Holders)
	assert.Equal(t, res.Run.RunID, snap.RunID)

	amount, rationale, ok := res.Vault.StrategyAllocation("Aave")
	require.True(t, ok)
	assert.Equal(t, units(t, "2500"), amount.String())
	assert.Equal(t, "Optimizing for higher variable rate", rationale)

	// Tokens never leave custody for a strategy; the user kept the undeposited half.
	assert.Equal(t, units(t, "5050"), res.Asset.BalanceOf(res.Run.VaultAddress).String())
	assert.Equal(t, units(t, "5000"), res.Asset.BalanceOf(res.Run.UserAddress).String())
	assert.True(t, res.Gate.IsVerified(res.Run.UserAddress))

	addrs := []types.Participant{res.Run.AssetAddress, res.Run.GateAddress, res.Run.VaultAddress, res.Run.UserAddress}
	seen := map[types.Participant]bool{}
	for _, a := range addrs {
		assert.True(t, strings.HasPrefix(a.String(), "common1"), a)
		assert.NoError(t, res.Book.Validate(a))
		assert.False(t, seen[a], "addresses are distinct")
		seen[a] = true
	}

	events := res.Vault.Events()
	require.Len(t, events, 3)
	assert.Equal(t, types.EventDeposit, events[0].Type)
	assert.Equal(t, types.EventStrategyRebalanced, events[1].Type)
	assert.Equal(t, types.EventHarvest, events[2].Type)

	assert.Zero(t, res.SnapshotID)
	assert.Zero(t, res.Run.RunNumber)
	require.NoError(t, res.Vault.CheckInvariants())
}

func TestRun_UserCanExitAtAppreciatedRate(t *testing.T) {
	runner, err := NewRunner(testConfig())
	require.NoError(t, err)
	res, err := runner.Run(context.Background())
	require.NoError(t, err)

	shares, err := utils.ParseUnits("1000", 18)
	require.NoError(t, err)
	assets, err := res.Vault.Withdraw(context.Background(), res.Run.UserAddress, shares, res.Run.UserAddress)
	require.NoError(t, err)
	assert.Equal(t, units(t, "1010"), assets.String())

	// The remaining 4,000 shares are worth 4,040 but only 1,540 is idle.
	_, err = res.Vault.Withdraw(context.Background(), res.Run.UserAddress, res.Vault.ShareBalanceOf(res.Run.UserAddress), res.Run.UserAddress)
	assert.ErrorIs(t, err, vault.ErrInsufficientIdleLiquidity)
}

func TestRun_DeterministicAddresses(t *testing.T) {
	runner, err := NewRunner(testConfig())
	require.NoError(t, err)

	first, err := runner.Run(context.Background())
	require.NoError(t, err)
	second, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first.Run.RunID, second.Run.RunID)
	assert.Equal(t, first.Run.VaultAddress, second.Run.VaultAddress)
	assert.Equal(t, first.Run.UserAddress, second.Run.UserAddress)
}

func TestRun_WithStoreAndMetrics(t *testing.T) {
	ctx := context.Background()
	store, err := state.Open(state.DBConfig{Driver: state.DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "scenario.db")})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.EnsureSchema(ctx))

	collector, err := metrics.New(18, nil)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Store = store
	cfg.Sinks = []vault.EventSink{collector}
	runner, err := NewRunner(cfg)
	require.NoError(t, err)

	res, err := runner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Run.RunNumber)
	assert.NotZero(t, res.SnapshotID)
	assert.Equal(t, res.SnapshotID, res.Snapshot.SnapshotID)

	journaled, err := store.GetRunEvents(ctx, res.Run.RunID)
	require.NoError(t, err)
	require.Len(t, journaled, 3)
	for i, e := range journaled {
		assert.Equal(t, uint64(i+1), e.Sequence)
	}
	assert.Equal(t, units(t, "5050"), journaled[2].TotalAssets.String())

	latest, err := store.GetLatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.Snapshot.TotalAssets.String(), latest.TotalAssets.String())
	assert.Equal(t, []string{"Aave"}, latest.StrategyNames())

	saved, err := store.GetRun(ctx, res.Run.RunID)
	require.NoError(t, err)
	assert.Equal(t, defaultParameters, saved.Parameters)
	assert.Equal(t, res.Run.VaultAddress, saved.VaultAddress)

	second, err := runner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Run.RunNumber)

	families, err := collector.Registry().Gather()
	require.NoError(t, err)
	found := false
	for _, mf := range families {
		if mf.GetName() == "vault_total_assets" {
			found = true
			// The collector is shared by both runs; the last event wins.
			assert.InDelta(t, 5050.0, mf.GetMetric()[0].GetGauge().GetValue(), 1e-9)
		}
	}
	assert.True(t, found)
}

func TestRun_SkipsZeroOptionalSteps(t *testing.T) {
	cfg := testConfig()
	cfg.Parameters.RebalanceAmount = "0"
	cfg.Parameters.YieldAmount = "0"
	runner, err := NewRunner(cfg)
	require.NoError(t, err)

	res, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Vault.Events(), 1)
	assert.Equal(t, "1.000000000000000000", res.Snapshot.ExchangeRate.String())
	assert.Empty(t, res.Snapshot.Strategies)
}

func TestRun_SmallDecimals(t *testing.T) {
	cfg := testConfig()
	cfg.AssetDecimals = 6
	cfg.Parameters.YieldAmount = "0.5"
	runner, err := NewRunner(cfg)
	require.NoError(t, err)

	res, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "5000500000", res.Snapshot.TotalAssets.String())
	assert.Equal(t, sdkmath.NewInt(5_000_000_000).String(), res.Shares.String())
}

func TestNewRunner_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty vault name", func(c *Config) { c.VaultName = " " }},
		{"empty symbol", func(c *Config) { c.VaultSymbol = "" }},
		{"empty denom", func(c *Config) { c.AssetDenom = "" }},
		{"decimals too large", func(c *Config) { c.AssetDecimals = 19 }},
		{"empty prefix", func(c *Config) { c.Bech32Prefix = "" }},
		{"empty strategy", func(c *Config) { c.Parameters.StrategyName = "" }},
		{"nil sink", func(c *Config) { c.Sinks = []vault.EventSink{nil} }},
		{"malformed amount", func(c *Config) { c.Parameters.MintAmount = "ten" }},
		{"too many decimals", func(c *Config) { c.Parameters.YieldAmount = "0.1234567890123456789" }},
		{"zero deposit", func(c *Config) { c.Parameters.DepositAmount = "0" }},
		{"deposit exceeds mint", func(c *Config) { c.Parameters.DepositAmount = "20000" }},
		{"rebalance exceeds deposit", func(c *Config) { c.Parameters.RebalanceAmount = "6000" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			_, err := NewRunner(cfg)
			assert.Error(t, err)
		})
	}
}

func TestRun_InvalidDenomFailsDeployment(t *testing.T) {
	cfg := testConfig()
	cfg.AssetDenom = "1"
	runner, err := NewRunner(cfg)
	require.NoError(t, err)

	_, err = runner.Run(context.Background())
	assert.ErrorIs(t, err, ErrStepFailed)
}
