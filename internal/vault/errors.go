package vault

import "errors"

// Error definitions for zero-tolerance error handling
var (
	ErrUnauthorized              = errors.New("caller lacks the required role")
	ErrNotVerified               = errors.New("caller is not verified by the access gate")
	ErrZeroAmount                = errors.New("amount is zero")
	ErrInvalidAmount             = errors.New("amount is invalid")
	ErrInvalidAccount            = errors.New("account is invalid")
	ErrTransferFailed            = errors.New("asset transfer failed")
	ErrInsufficientIdleFunds     = errors.New("insufficient idle funds for reallocation")
	ErrInsufficientIdleLiquidity = errors.New("insufficient idle liquidity for withdrawal")
	ErrInsufficientFundsReceived = errors.New("vault balance does not cover claimed yield")
	ErrInsufficientShares        = errors.New("insufficient share balance")
	ErrInvalidStrategy           = errors.New("strategy name is invalid")
	ErrUnknownStrategy           = errors.New("strategy has no allocation record")
	ErrInsufficientAllocation    = errors.New("strategy allocation is smaller than requested")
	ErrInvalidConfig             = errors.New("vault configuration is invalid")
	ErrInvariantViolated         = errors.New("ledger invariant violated")
)
