package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// VaultName is the display name of the vault share token.
	VaultName string
	// VaultSymbol is the ticker of the vault share token.
	VaultSymbol string

	// AssetDenom is the denomination of the underlying asset.
	AssetDenom string
	// AssetDecimals is the number of decimals of the underlying asset.
	AssetDecimals int

	// Bech32Prefix is the account address prefix used for simulated participants.
	Bech32Prefix string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string
	// LogFormat is "console" or "json".
	LogFormat string
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// Variables that are unset fall back to the simulator defaults; malformed values are errors.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	VaultName = getEnvOrDefault("VAULT_NAME", "Common Share")
	VaultSymbol = getEnvOrDefault("VAULT_SYMBOL", "cmUSDC")
	AssetDenom = getEnvOrDefault("ASSET_DENOM", "usdc")

	AssetDecimals, err = getEnvAsIntOrDefault("ASSET_DECIMALS", 18)
	if err != nil {
		return err
	}
	if AssetDecimals < 0 || AssetDecimals > 18 {
		return errors.New("environment variable ASSET_DECIMALS must be between 0 and 18, got: " + strconv.Itoa(AssetDecimals))
	}

	Bech32Prefix = getEnvOrDefault("BECH32_PREFIX", "common")
	LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	LogFormat = getEnvOrDefault("LOG_FORMAT", "console")

	// Load storage and web endpoint configuration
	if err := loadEndpointConfig(); err != nil {
		return err
	}

	// Load simulation parameters
	if err := loadScenarioParameters(); err != nil {
		return err
	}

	log.Debug().
		Str("VaultName", VaultName).
		Str("VaultSymbol", VaultSymbol).
		Str("AssetDenom", AssetDenom).
		Int("AssetDecimals", AssetDecimals).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvOrDefault retrieves a string environment variable, or fallback when unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if value, err := getEnv(key); err == nil && value != "" {
		return value
	}
	return fallback
}

// getEnvAsIntOrDefault retrieves an environment variable as an int. Returns error if set but invalid.
func getEnvAsIntOrDefault(key string, fallback int) (int, error) {
	valueStr := getEnvOrDefault(key, "")
	if valueStr == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid integer, got: " + valueStr)
	}
	return value, nil
}
