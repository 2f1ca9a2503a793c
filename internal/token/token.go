/*

This file implements a minimal fungible token ledger used as the vault's underlying asset
in simulations and tests. It mirrors the mint / transfer / approve / transferFrom surface of
a standard test stablecoin.

*/

package token

import (
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/commonprotocol/vault/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidDenom          = errors.New("token denom is invalid")
	ErrInvalidAmount         = errors.New("amount must be positive")
	ErrInvalidAccount        = errors.New("account is invalid")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)

// Metadata describes the token.
type Metadata struct {
	Symbol    string `json:"symbol"`    // e.g., "USDC"
	Denom     string `json:"denom"`     // e.g., "usdc"
	Precision int    `json:"precision"` // e.g., 18 decimals
}

type allowanceKey struct {
	owner   types.Participant
	spender types.Participant
}

// Ledger is an in-memory fungible balance and allowance ledger. Safe for concurrent use.
type Ledger struct {
	meta Metadata

	mu          sync.RWMutex
	balances    map[types.Participant]sdkmath.Int
	allowances  map[allowanceKey]sdkmath.Int
	totalSupply sdkmath.Int
}

// NewLedger creates an empty ledger. The denom must be a valid SDK coin denom.
func NewLedger(meta Metadata) (*Ledger, error) {
	if err := sdk.ValidateDenom(meta.Denom); err != nil {
		return nil, errors.Join(ErrInvalidDenom, err)
	}
	if meta.Precision < 0 || meta.Precision > 18 {
		return nil, fmt.Errorf("%w: precision %d", ErrInvalidDenom, meta.Precision)
	}
	return &Ledger{
		meta:        meta,
		balances:    make(map[types.Participant]sdkmath.Int),
		allowances:  make(map[allowanceKey]sdkmath.Int),
		totalSupply: sdkmath.ZeroInt(),
	}, nil
}

// Metadata returns the token description.
func (l *Ledger) Metadata() Metadata {
	return l.meta
}

// Mint creates amount new tokens for to. Test tokens mint freely.
func (l *Ledger) Mint(to types.Participant, amount sdkmath.Int) error {
	if err := validateTransfer(to, amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[to] = l.balanceLocked(to).Add(amount)
	l.totalSupply = l.totalSupply.Add(amount)
	return nil
}

// Transfer moves amount from from to to.
func (l *Ledger) Transfer(from, to types.Participant, amount sdkmath.Int) error {
	if err := validateTransfer(to, amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.moveLocked(from, to, amount)
}

// Approve sets the amount spender may move out of owner's balance.
func (l *Ledger) Approve(owner, spender types.Participant, amount sdkmath.Int) error {
	if owner.IsZero() || spender.IsZero() {
		return ErrInvalidAccount
	}
	if amount.IsNil() || amount.IsNegative() {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowances[allowanceKey{owner: owner, spender: spender}] = amount
	return nil
}

// TransferFrom moves amount from from to to on behalf of spender, consuming allowance.
// Nothing changes unless both allowance and balance are sufficient.
func (l *Ledger) TransferFrom(spender, from, to types.Participant, amount sdkmath.Int) error {
	if err := validateTransfer(to, amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	key := allowanceKey{owner: from, spender: spender}
	allowed, ok := l.allowances[key]
	if !ok || allowed.LT(amount) {
		return fmt.Errorf("%w: %s allowed %s to move %s", ErrInsufficientAllowance, from, spender, l.coinString(allowed))
	}
	if err := l.moveLocked(from, to, amount); err != nil {
		return err
	}
	l.allowances[key] = allowed.Sub(amount)
	return nil
}

// BalanceOf returns the balance of holder (zero if unknown).
func (l *Ledger) BalanceOf(holder types.Participant) sdkmath.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balanceLocked(holder)
}

// Allowance returns how much spender may still move from owner.
func (l *Ledger) Allowance(owner, spender types.Participant) sdkmath.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if a, ok := l.allowances[allowanceKey{owner: owner, spender: spender}]; ok {
		return a
	}
	return sdkmath.ZeroInt()
}

// TotalSupply returns the amount minted so far.
func (l *Ledger) TotalSupply() sdkmath.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totalSupply
}

// Coin returns holder's balance as an SDK coin, convenient for logging.
func (l *Ledger) Coin(holder types.Participant) sdk.Coin {
	return sdk.NewCoin(l.meta.Denom, l.BalanceOf(holder))
}

// AsCoin expresses a non-negative amount in the ledger's denomination.
func (l *Ledger) AsCoin(amount sdkmath.Int) sdk.Coin {
	return sdk.NewCoin(l.meta.Denom, amount)
}

func (l *Ledger) moveLocked(from, to types.Participant, amount sdkmath.Int) error {
	bal := l.balanceLocked(from)
	if bal.LT(amount) {
		return fmt.Errorf("%w: %s holds %s, needs %s", ErrInsufficientBalance, from, l.coinString(bal), l.coinString(amount))
	}
	l.balances[from] = bal.Sub(amount)
	l.balances[to] = l.balanceLocked(to).Add(amount)
	return nil
}

func (l *Ledger) balanceLocked(holder types.Participant) sdkmath.Int {
	if b, ok := l.balances[holder]; ok {
		return b
	}
	return sdkmath.ZeroInt()
}

func (l *Ledger) coinString(amount sdkmath.Int) string {
	if amount.IsNil() {
		amount = sdkmath.ZeroInt()
	}
	return sdk.NewCoin(l.meta.Denom, amount).String()
}

func validateTransfer(to types.Participant, amount sdkmath.Int) error {
	if to.IsZero() {
		return ErrInvalidAccount
	}
	if amount.IsNil() || !amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}
