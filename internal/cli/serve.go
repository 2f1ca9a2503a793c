package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/commonprotocol/vault/internal/config"
	"github.com/commonprotocol/vault/internal/metrics"
	"github.com/commonprotocol/vault/internal/scenario"
	"github.com/commonprotocol/vault/internal/vault"
	"github.com/commonprotocol/vault/internal/web"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Port string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reference scenario and serve the vault API",
		Long: `Run the reference scenario once, then serve the resulting vault read-only
over HTTP together with Prometheus metrics and, when DB_DRIVER is set, the
event journal.

Example:
  vaultsim serve --port 9090`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Port, "port", "", "listen port, overrides WEB_PORT")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector, err := metrics.New(config.AssetDecimals, prometheus.Labels{
		"vault": config.VaultSymbol,
		"asset": config.AssetDenom,
	})
	if err != nil {
		return fmt.Errorf("failed to create metrics collector: %w", err)
	}

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	cfg := scenarioConfig()
	cfg.Sinks = []vault.EventSink{collector}
	if store != nil {
		cfg.Store = store
	}
	runner, err := scenario.NewRunner(cfg)
	if err != nil {
		return err
	}
	res, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	if err := printResult(cmd.OutOrStdout(), res, false); err != nil {
		return err
	}

	port := config.WebPort
	if opts.Port != "" {
		port = opts.Port
	}
	webOpts := web.Options{
		Port:      port,
		Vault:     res.Vault,
		Metrics:   collector.Handler(),
		Addresses: res.Book,
	}
	// A nil *state.Store must not become a non-nil interface.
	if store != nil {
		webOpts.Journal = store
	}

	server, err := web.NewWebServer(webOpts)
	if err != nil {
		return fmt.Errorf("failed to create web server: %w", err)
	}

	log.Info().Str("port", port).Str("run_id", res.Run.RunID).Msg("Serving vault")
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("web server failed: %w", err)
	}
	log.Info().Msg("Shutdown complete")
	return nil
}
