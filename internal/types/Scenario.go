/*

This file contains the parameters and the persisted record of a simulated deployment.

*/

package types

import "time"

// ScenarioParameters drive the simulated deployment. Amounts are human-readable decimal
// strings in units of the underlying asset.
type ScenarioParameters struct {
	MintAmount      string `json:"mint_amount"`      // Minted to the verified user
	DepositAmount   string `json:"deposit_amount"`   // Approved and deposited by the user
	StrategyName    string `json:"strategy_name"`    // Strategy receiving the reallocation
	RebalanceAmount string `json:"rebalance_amount"` // Reallocated from idle custody to the strategy
	Rationale       string `json:"rationale"`        // Reason recorded with the reallocation
	YieldAmount     string `json:"yield_amount"`     // Minted into vault custody and harvested
}

// ScenarioRun records one execution of the simulated deployment.
type ScenarioRun struct {
	RunID        string             `json:"run_id"`
	RunNumber    int                `json:"run_number"` // Assigned by the run counter when saved
	StartedAt    time.Time          `json:"started_at"`
	FinishedAt   time.Time          `json:"finished_at"`
	AssetAddress Participant        `json:"asset_address"`
	GateAddress  Participant        `json:"gate_address"`
	VaultAddress Participant        `json:"vault_address"`
	UserAddress  Participant        `json:"user_address"`
	Parameters   ScenarioParameters `json:"parameters"`
}
