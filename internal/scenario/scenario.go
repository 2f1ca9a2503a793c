/*

This file contains the scenario runner: it deploys an asset ledger, an access gate and
a vault in process, drives them through the reference deployment and optionally
journals the run.

Steps:
 1. Derive the deployer, user and contract accounts
 2. Deploy asset, gate and vault
 3. Verify the user and mint their balance
 4. Approve and deposit
 5. Reallocate part of the idle custody to a strategy
 6. Mint yield into vault custody and harvest it
 7. Check invariants, snapshot, persist

*/

package scenario

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/commonprotocol/vault/internal/gate"
	"github.com/commonprotocol/vault/internal/logger"
	"github.com/commonprotocol/vault/internal/state"
	"github.com/commonprotocol/vault/internal/token"
	"github.com/commonprotocol/vault/internal/types"
	"github.com/commonprotocol/vault/internal/utils"
	"github.com/commonprotocol/vault/internal/vault"
	"github.com/commonprotocol/vault/internal/wallet"
)

// Account labels. Addresses derive from these and the bech32 prefix.
const (
	LabelDeployer = "deployer"
	LabelUser     = "user1"
	LabelAsset    = "asset"
	LabelGate     = "gate"
	LabelVault    = "vault"
)

var ErrStepFailed = errors.New("scenario step failed")

// RunStore persists a run. *state.Store satisfies it.
type RunStore interface {
	Journal(runID string) *state.Journal
	SaveSnapshot(ctx context.Context, snapshot types.Snapshot) (int64, error)
	SaveRun(ctx context.Context, run types.ScenarioRun) (int, error)
}

// Config holds the configuration for creating a new Runner
type Config struct {
	VaultName     string
	VaultSymbol   string
	AssetDenom    string
	AssetDecimals int
	Bech32Prefix  string
	Parameters    types.ScenarioParameters

	Store RunStore          // Optional
	Sinks []vault.EventSink // Optional, e.g. a metrics collector
	Clock func() time.Time  // Defaults to time.Now
}

// Result is everything a run deployed, plus the final state.
type Result struct {
	Run        types.ScenarioRun
	Snapshot   types.Snapshot
	SnapshotID int64 // Zero when no store is configured
	Shares     sdkmath.Int

	Book  *wallet.Book
	Asset *token.Ledger
	Gate  *gate.Gate
	Vault *vault.Vault
}

// amounts are the scenario parameters in base units.
type amounts struct {
	mint, deposit, rebalance, yield sdkmath.Int
}

// Runner executes the deployment-and-simulation sequence.
type Runner struct {
	cfg     Config
	amounts amounts
	logger  zerolog.Logger
}

// NewRunner validates cfg and parses its amounts.
func NewRunner(cfg Config) (*Runner, error) {
	if err := validateRunnerConfig(cfg); err != nil {
		return nil, fmt.Errorf("scenario configuration validation failed: %w", err)
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	amts, err := parseAmounts(cfg.Parameters, cfg.AssetDecimals)
	if err != nil {
		return nil, fmt.Errorf("scenario configuration validation failed: %w", err)
	}

	return &Runner{
		cfg:     cfg,
		amounts: amts,
		logger:  logger.GetForComponent("scenario"),
	}, nil
}

// validateRunnerConfig validates the runner configuration
func validateRunnerConfig(cfg Config) error {
	if strings.TrimSpace(cfg.VaultName) == "" {
		return fmt.Errorf("vault name cannot be empty")
	}
	if strings.TrimSpace(cfg.VaultSymbol) == "" {
		return fmt.Errorf("vault symbol cannot be empty")
	}
	if cfg.AssetDenom == "" {
		return fmt.Errorf("asset denom cannot be empty")
	}
	if cfg.AssetDecimals < 0 || cfg.AssetDecimals > utils.MaxPrecision {
		return fmt.Errorf("asset decimals must be between 0 and %d", utils.MaxPrecision)
	}
	if cfg.Bech32Prefix == "" {
		return fmt.Errorf("bech32 prefix cannot be empty")
	}
	if strings.TrimSpace(cfg.Parameters.StrategyName) == "" {
		return fmt.Errorf("strategy name cannot be empty")
	}
	for i, s := range cfg.Sinks {
		if s == nil {
			return fmt.Errorf("event sink %d is nil", i)
		}
	}
	return nil
}

func parseAmounts(p types.ScenarioParameters, decimals int) (amounts, error) {
	var (
		a   amounts
		err error
	)
	fields := []struct {
		name string
		raw  string
		dst  *sdkmath.Int
	}{
		{"mint amount", p.MintAmount, &a.mint},
		{"deposit amount", p.DepositAmount, &a.deposit},
		{"rebalance amount", p.RebalanceAmount, &a.rebalance},
		{"yield amount", p.YieldAmount, &a.yield},
	}
	for _, f := range fields {
		if *f.dst, err = utils.ParseUnits(f.raw, decimals); err != nil {
			return amounts{}, fmt.Errorf("%s: %w", f.name, err)
		}
	}

	if !a.deposit.IsPositive() {
		return amounts{}, fmt.Errorf("deposit amount must be positive")
	}
	if a.deposit.GT(a.mint) {
		return amounts{}, fmt.Errorf("deposit amount %s exceeds mint amount %s", p.DepositAmount, p.MintAmount)
	}
	if a.rebalance.GT(a.deposit) {
		return amounts{}, fmt.Errorf("rebalance amount %s exceeds deposit amount %s", p.RebalanceAmount, p.DepositAmount)
	}
	return a, nil
}

// Run executes the scenario once. Each run deploys fresh ledgers under a new run ID.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	runID := uuid.New().String()
	runLogger := r.logger.With().Str("run_id", runID).Logger()
	startedAt := r.cfg.Clock().UTC()

	runLogger.Info().Str("vault", r.cfg.VaultName).Msg("--- Starting scenario run ---")

	// --- Step 1: Accounts ---
	book, err := wallet.NewBook(r.cfg.Bech32Prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: accounts: %w", ErrStepFailed, err)
	}
	deployer := book.MustDerive(LabelDeployer)
	user := book.MustDerive(LabelUser)
	assetAddr := book.MustDerive(LabelAsset)
	gateAddr := book.MustDerive(LabelGate)
	vaultAddr := book.MustDerive(LabelVault)

	// --- Step 2: Deploy ---
	asset, err := token.NewLedger(token.Metadata{
		Symbol:    strings.ToUpper(r.cfg.AssetDenom),
		Denom:     r.cfg.AssetDenom,
		Precision: r.cfg.AssetDecimals,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: deploy asset: %w", ErrStepFailed, err)
	}
	accessGate, err := gate.New(deployer)
	if err != nil {
		return nil, fmt.Errorf("%w: deploy gate: %w", ErrStepFailed, err)
	}

	sinks := append([]vault.EventSink(nil), r.cfg.Sinks...)
	if r.cfg.Store != nil {
		sinks = append(sinks, r.cfg.Store.Journal(runID))
	}
	v, err := vault.New(vault.Config{
		Name:    r.cfg.VaultName,
		Symbol:  r.cfg.VaultSymbol,
		Address: vaultAddr,
		Admin:   deployer,
		Asset:   token.NewCustody(asset, vaultAddr),
		Gate:    accessGate,
		Sinks:   sinks,
		Clock:   r.cfg.Clock,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: deploy vault: %w", ErrStepFailed, err)
	}
	runLogger.Info().Msg("Step 2: Contracts deployed.")

	// --- Step 3: Verify and fund the user ---
	runLogger.Info().Stringer("user", user).Msg("Step 3: Verifying user...")
	if err := accessGate.SetVerification(deployer, user, true); err != nil {
		return nil, fmt.Errorf("%w: verify user: %w", ErrStepFailed, err)
	}
	if err := asset.Mint(user, r.amounts.mint); err != nil {
		return nil, fmt.Errorf("%w: mint to user: %w", ErrStepFailed, err)
	}
	runLogger.Info().Stringer("balance", asset.Coin(user)).Msg("Minted to user")

	// --- Step 4: Deposit ---
	if err := asset.Approve(user, vaultAddr, r.amounts.deposit); err != nil {
		return nil, fmt.Errorf("%w: approve: %w", ErrStepFailed, err)
	}
	shares, err := v.Deposit(ctx, user, r.amounts.deposit, user)
	if err != nil {
		return nil, fmt.Errorf("%w: deposit: %w", ErrStepFailed, err)
	}
	runLogger.Info().
		Stringer("amount", asset.AsCoin(r.amounts.deposit)).
		Stringer("shares", shares).
		Msg("Step 4: User deposited.")

	// --- Step 5: Reallocate ---
	if r.amounts.rebalance.IsPositive() {
		err := v.RebalanceStrategy(ctx, deployer, r.cfg.Parameters.StrategyName, r.amounts.rebalance, r.cfg.Parameters.Rationale)
		if err != nil {
			return nil, fmt.Errorf("%w: rebalance: %w", ErrStepFailed, err)
		}
		runLogger.Info().
			Str("strategy", r.cfg.Parameters.StrategyName).
			Stringer("amount", asset.AsCoin(r.amounts.rebalance)).
			Msg("Step 5: Strategy rebalanced.")
	} else {
		runLogger.Info().Msg("Step 5: No reallocation configured, skipping.")
	}

	// --- Step 6: Yield ---
	if r.amounts.yield.IsPositive() {
		if err := asset.Mint(vaultAddr, r.amounts.yield); err != nil {
			return nil, fmt.Errorf("%w: mint yield: %w", ErrStepFailed, err)
		}
		if err := v.Harvest(ctx, deployer, r.amounts.yield); err != nil {
			return nil, fmt.Errorf("%w: harvest: %w", ErrStepFailed, err)
		}
		runLogger.Info().
			Stringer("yield", asset.AsCoin(r.amounts.yield)).
			Stringer("exchange_rate", v.ExchangeRate()).
			Msg("Step 6: Yield harvested.")
	} else {
		runLogger.Info().Msg("Step 6: No yield configured, skipping.")
	}

	// --- Step 7: Verify, snapshot, persist ---
	if err := v.CheckInvariants(); err != nil {
		return nil, fmt.Errorf("%w: invariants: %w", ErrStepFailed, err)
	}

	snap := v.Snapshot()
	snap.RunID = runID

	result := &Result{
		Run: types.ScenarioRun{
			RunID:        runID,
			StartedAt:    startedAt,
			FinishedAt:   r.cfg.Clock().UTC(),
			AssetAddress: assetAddr,
			GateAddress:  gateAddr,
			VaultAddress: vaultAddr,
			UserAddress:  user,
			Parameters:   r.cfg.Parameters,
		},
		Snapshot: snap,
		Shares:   shares,
		Book:     book,
		Asset:    asset,
		Gate:     accessGate,
		Vault:    v,
	}

	if r.cfg.Store != nil {
		snapshotID, err := r.cfg.Store.SaveSnapshot(ctx, snap)
		if err != nil {
			return nil, fmt.Errorf("%w: save snapshot: %w", ErrStepFailed, err)
		}
		result.SnapshotID = snapshotID
		result.Snapshot.SnapshotID = snapshotID

		runNumber, err := r.cfg.Store.SaveRun(ctx, result.Run)
		if err != nil {
			return nil, fmt.Errorf("%w: save run: %w", ErrStepFailed, err)
		}
		result.Run.RunNumber = runNumber
	}

	runLogger.Info().
		Stringer("vault", vaultAddr).
		Stringer("gate", gateAddr).
		Stringer("asset", assetAddr).
		Stringer("total_assets", snap.TotalAssets).
		Stringer("exchange_rate", snap.ExchangeRate).
		Dur("duration", result.Run.FinishedAt.Sub(startedAt)).
		Msg("--- Scenario run complete ---")

	return result, nil
}
