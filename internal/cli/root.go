package cli

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/commonprotocol/vault/internal/config"
	"github.com/commonprotocol/vault/internal/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	EnvFile  string
	LogLevel string // Overrides LOG_LEVEL when set
}

// NewRootCommand creates the root command for the vault simulator.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "vaultsim",
		Short: "Vault accounting engine simulator",
		Long: `Simulate a pooled-asset vault: verified participants deposit an underlying
asset for shares, an operator reallocates idle capital to named strategies,
and harvested yield appreciates every share.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initialize(opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file to load before reading the environment")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error|disabled), overrides LOG_LEVEL")

	cmd.AddCommand(NewSimulateCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewPlanCommand(opts))

	return cmd
}

// initialize loads the environment and configuration, then the logger.
func initialize(opts *RootOptions) error {
	if err := godotenv.Load(opts.EnvFile); err != nil {
		log.Debug().Str("file", opts.EnvFile).Msg("dotenv file not loaded. Relying on OS environment variables.")
	}

	if err := config.LoadConfig(); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	level := config.LogLevel
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	logger.Initialize(level, config.LogFormat)
	return nil
}
