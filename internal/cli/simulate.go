package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/commonprotocol/vault/internal/config"
	"github.com/commonprotocol/vault/internal/scenario"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	Runs int
	JSON bool
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Deploy a vault and run the reference scenario",
		Long: `Deploy an asset ledger, an access gate and a vault, then verify a user,
mint and deposit, reallocate to a strategy and harvest yield.

Amounts and the strategy come from the SCENARIO_* environment variables. When
DB_DRIVER is set, every event, the final snapshot and the run are journaled.

Example:
  vaultsim simulate
  DB_DRIVER=sqlite3 SQLITE_PATH=./vault.db vaultsim simulate --runs 3 --json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Runs, "runs", 1, "number of independent scenario runs")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "print results as JSON")

	return cmd
}

func runSimulate(cmd *cobra.Command, opts *SimulateOptions) error {
	if opts.Runs < 1 {
		return fmt.Errorf("--runs must be at least 1, got %d", opts.Runs)
	}
	ctx := cmd.Context()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	cfg := scenarioConfig()
	if store != nil {
		cfg.Store = store
	}
	runner, err := scenario.NewRunner(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for i := 0; i < opts.Runs; i++ {
		res, err := runner.Run(ctx)
		if err != nil {
			return err
		}
		if err := printResult(out, res, opts.JSON); err != nil {
			return err
		}
	}
	return nil
}

// scenarioConfig builds the runner configuration from the loaded environment.
func scenarioConfig() scenario.Config {
	return scenario.Config{
		VaultName:     config.VaultName,
		VaultSymbol:   config.VaultSymbol,
		AssetDenom:    config.AssetDenom,
		AssetDecimals: config.AssetDecimals,
		Bech32Prefix:  config.Bech32Prefix,
		Parameters:    config.Scenario,
	}
}

type resultView struct {
	RunID        string `json:"run_id"`
	RunNumber    int    `json:"run_number,omitempty"`
	Vault        string `json:"vault"`
	Gate         string `json:"gate"`
	Asset        string `json:"asset"`
	User         string `json:"user"`
	TotalShares  string `json:"total_shares"`
	TotalAssets  string `json:"total_assets"`
	IdleAssets   string `json:"idle_assets"`
	Allocated    string `json:"allocated_assets"`
	ExchangeRate string `json:"exchange_rate"`
}

func printResult(out io.Writer, res *scenario.Result, asJSON bool) error {
	view := resultView{
		RunID:        res.Run.RunID,
		RunNumber:    res.Run.RunNumber,
		Vault:        res.Run.VaultAddress.String(),
		Gate:         res.Run.GateAddress.String(),
		Asset:        res.Run.AssetAddress.String(),
		User:         res.Run.UserAddress.String(),
		TotalShares:  res.Snapshot.TotalShares.String(),
		TotalAssets:  res.Snapshot.TotalAssets.String(),
		IdleAssets:   res.Snapshot.IdleAssets.String(),
		Allocated:    res.Snapshot.Allocated.String(),
		ExchangeRate: res.Snapshot.ExchangeRate.String(),
	}

	if asJSON {
		enc := json.NewEncoder(out)
		return enc.Encode(view)
	}

	symbol := res.Asset.Metadata().Symbol
	_, err := fmt.Fprintf(out, `Run %s
  Vault: %s
  Gate:  %s
  %s: %s
  Total assets: %s (idle %s, allocated %s)
  Exchange rate: %s
`, view.RunID, view.Vault, view.Gate, symbol, view.Asset,
		view.TotalAssets, view.IdleAssets, view.Allocated, view.ExchangeRate)
	return err
}
