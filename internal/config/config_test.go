package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"VAULT_NAME", "VAULT_SYMBOL", "ASSET_DENOM", "ASSET_DECIMALS", "BECH32_PREFIX",
		"LOG_LEVEL", "LOG_FORMAT", "DB_DRIVER", "DB_HOST", "DB_PORT", "DB_USER",
		"DB_PASSWORD", "DB_NAME", "DB_SSLMODE", "SQLITE_PATH", "WEB_PORT",
		"SCENARIO_MINT_AMOUNT", "SCENARIO_DEPOSIT_AMOUNT", "SCENARIO_STRATEGY",
		"SCENARIO_REBALANCE_AMOUNT", "SCENARIO_RATIONALE", "SCENARIO_YIELD_AMOUNT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	require.NoError(t, LoadConfig())

	assert.Equal(t, "Common Share", VaultName)
	assert.Equal(t, "cmUSDC", VaultSymbol)
	assert.Equal(t, 18, AssetDecimals)
	assert.Equal(t, "none", DBDriver)
	assert.Equal(t, 5432, DBPort)
	assert.Equal(t, "8080", WebPort)
	assert.Equal(t, DefaultScenarioParameters, Scenario)
}

func TestLoadConfig_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("VAULT_SYMBOL", "cvDAI")
	t.Setenv("ASSET_DECIMALS", "6")
	t.Setenv("DB_DRIVER", "sqlite3")
	t.Setenv("SQLITE_PATH", "/tmp/journal.db")
	t.Setenv("SCENARIO_STRATEGY", "Compound")

	require.NoError(t, LoadConfig())

	assert.Equal(t, "cvDAI", VaultSymbol)
	assert.Equal(t, 6, AssetDecimals)
	assert.Equal(t, "sqlite3", DBDriver)
	assert.Equal(t, "/tmp/journal.db", SQLitePath)
	assert.Equal(t, "Compound", Scenario.StrategyName)
	assert.Equal(t, DefaultScenarioParameters.DepositAmount, Scenario.DepositAmount)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "decimals not a number", env: map[string]string{"ASSET_DECIMALS": "six"}},
		{name: "decimals out of range", env: map[string]string{"ASSET_DECIMALS": "30"}},
		{name: "unknown driver", env: map[string]string{"DB_DRIVER": "mysql"}},
		{name: "postgres without user", env: map[string]string{"DB_DRIVER": "postgres", "DB_NAME": "vault"}},
		{name: "postgres without name", env: map[string]string{"DB_DRIVER": "postgres", "DB_USER": "vault"}},
		{name: "bad port", env: map[string]string{"DB_PORT": "http"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			assert.Error(t, LoadConfig())
		})
	}
}
