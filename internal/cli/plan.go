package cli

import (
	"encoding/json"
	"fmt"
	"io"

	sdkmath "cosmossdk.io/math"
	"github.com/spf13/cobra"

	"github.com/commonprotocol/vault/internal/planner"
	"github.com/commonprotocol/vault/internal/scenario"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RootOptions
	Targets   []string
	Threshold string
	MaxUnwind string
	Rationale string
	Execute   bool
	JSON      bool
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Plan strategy reallocations toward target weights",
		Long: `Run the reference scenario, then compute the unwinds and rebalances that move
its strategy allocations toward the given target weights of total assets.
Strategies without a target are unwound completely.

Example:
  vaultsim plan --target Aave=0.3 --target Compound=0.2
  vaultsim plan --target Aave=0.5 --threshold 5 --max-unwind 10 --execute`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd, opts)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Targets, "target", nil, "target weight as name=fraction (repeatable)")
	cmd.Flags().StringVar(&opts.Threshold, "threshold", "0", "skip deviations up to this percent of the target")
	cmd.Flags().StringVar(&opts.MaxUnwind, "max-unwind", "0", "cap unwinds at this percent of total assets (0 disables)")
	cmd.Flags().StringVar(&opts.Rationale, "rationale", "Target weight reallocation", "rationale recorded on executed actions")
	cmd.Flags().BoolVar(&opts.Execute, "execute", false, "apply the plan to the vault")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "print the plan as JSON")

	return cmd
}

func runPlan(cmd *cobra.Command, opts *PlanOptions) error {
	ctx := cmd.Context()

	targets, err := planner.ParseTargets(opts.Targets)
	if err != nil {
		return err
	}
	limits := planner.DefaultLimits()
	if limits.ThresholdPercent, err = sdkmath.LegacyNewDecFromStr(opts.Threshold); err != nil {
		return fmt.Errorf("invalid --threshold: %w", err)
	}
	if limits.MaxUnwindPercent, err = sdkmath.LegacyNewDecFromStr(opts.MaxUnwind); err != nil {
		return fmt.Errorf("invalid --max-unwind: %w", err)
	}

	runner, err := scenario.NewRunner(scenarioConfig())
	if err != nil {
		return err
	}
	res, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	plan, err := planner.GeneratePlan(res.Vault.Snapshot(), targets, limits)
	if err != nil {
		return err
	}

	if opts.Execute {
		operator := res.Book.MustDerive(scenario.LabelDeployer)
		if err := planner.Execute(ctx, res.Vault, operator, plan, opts.Rationale); err != nil {
			return err
		}
		if err := res.Vault.CheckInvariants(); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if opts.JSON {
		return json.NewEncoder(out).Encode(plan)
	}
	return printPlan(out, plan, opts.Execute)
}

func printPlan(out io.Writer, plan *planner.Plan, executed bool) error {
	if plan.Empty() {
		_, err := fmt.Fprintln(out, "Allocations already match the targets")
		return err
	}
	for _, a := range append(append([]planner.Action{}, plan.Unwinds...), plan.Rebalances...) {
		if _, err := fmt.Fprintf(out, "%-9s %-16s %s (current %s, target %s)\n",
			a.Kind, a.Strategy, a.Amount, a.Current, a.Target); err != nil {
			return err
		}
	}
	status := "planned"
	if executed {
		status = "executed"
	}
	_, err := fmt.Fprintf(out, "Idle custody %s -> %s (%s)\n", plan.IdleBefore, plan.IdleAfter, status)
	return err
}
