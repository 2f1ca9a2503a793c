/*

This file contains the default parameters for the deployment-and-simulation scenario.

Amounts are human-readable decimal strings in units of the underlying asset; they are
converted to base units with AssetDecimals when the scenario runs.

*/

package config

import (
	"github.com/rs/zerolog/log"

	"github.com/commonprotocol/vault/internal/types"
)

// DefaultScenarioParameters reproduce the reference deployment: a user with 10,000 units
// deposits 5,000, half of it is moved to "Aave", and 50 units of yield are harvested.
var DefaultScenarioParameters = types.ScenarioParameters{
	MintAmount:      "10000",
	DepositAmount:   "5000",
	StrategyName:    "Aave",
	RebalanceAmount: "2500",
	Rationale:       "Optimizing for higher variable rate",
	YieldAmount:     "50",
}

// Scenario holds the active scenario parameters after LoadConfig.
var Scenario = DefaultScenarioParameters

// loadScenarioParameters overrides scenario defaults from SCENARIO_* environment variables.
func loadScenarioParameters() error {
	d := DefaultScenarioParameters
	Scenario = types.ScenarioParameters{
		MintAmount:      getEnvOrDefault("SCENARIO_MINT_AMOUNT", d.MintAmount),
		DepositAmount:   getEnvOrDefault("SCENARIO_DEPOSIT_AMOUNT", d.DepositAmount),
		StrategyName:    getEnvOrDefault("SCENARIO_STRATEGY", d.StrategyName),
		RebalanceAmount: getEnvOrDefault("SCENARIO_REBALANCE_AMOUNT", d.RebalanceAmount),
		Rationale:       getEnvOrDefault("SCENARIO_RATIONALE", d.Rationale),
		YieldAmount:     getEnvOrDefault("SCENARIO_YIELD_AMOUNT", d.YieldAmount),
	}

	log.Debug().
		Str("strategy", Scenario.StrategyName).
		Str("deposit", Scenario.DepositAmount).
		Msg("Scenario parameters loaded.")
	return nil
}
