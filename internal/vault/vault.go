/*

This file contains the vault ledger: share supply, idle custody, per-participant share
balances and the role assignments that restrict the administrative surface.

Every public operation runs under one mutex, so concurrent calls against the same vault
are linearised and the exchange rate is always computed from a consistent pair of
(total shares, total assets). Mutating operations validate every precondition and make
their single external transfer before touching any field; a failure commits nothing.

*/

package vault

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/commonprotocol/vault/internal/logger"
	"github.com/commonprotocol/vault/internal/types"
)

// Config holds the dependencies and identity of a new vault.
type Config struct {
	Name    string            // Share token name, e.g. "Common Share"
	Symbol  string            // Share token symbol, e.g. "cmUSDC"
	Address types.Participant // The vault's own account; holds custody of the asset
	Admin   types.Participant // Administrator; implicitly an operator
	Asset   AssetLedger
	Gate    Verifier
	Sinks   []EventSink
	Clock   func() time.Time // Defaults to time.Now
}

// Vault is the accounting engine. The zero value is not usable; call New.
type Vault struct {
	name    string
	symbol  string
	address types.Participant
	admin   types.Participant

	asset  AssetLedger
	gate   Verifier
	sinks  []EventSink
	clock  func() time.Time
	logger zerolog.Logger

	mu          sync.Mutex
	operators   map[types.Participant]bool
	balances    map[types.Participant]sdkmath.Int
	totalShares sdkmath.Int
	idle        sdkmath.Int
	allocated   sdkmath.Int
	strategies  map[string]*types.StrategyAllocation
	events      []types.Event
	sequence    uint64

	// publishMu is taken before mu is released so sinks see events in sequence order.
	publishMu sync.Mutex
}

// New creates an empty vault: no shares, no assets, no strategies.
func New(cfg Config) (*Vault, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("vault configuration validation failed: %w", err)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	v := &Vault{
		name:        cfg.Name,
		symbol:      cfg.Symbol,
		address:     cfg.Address,
		admin:       cfg.Admin,
		asset:       cfg.Asset,
		gate:        cfg.Gate,
		sinks:       append([]EventSink(nil), cfg.Sinks...),
		clock:       clock,
		logger:      logger.GetForComponent("vault"),
		operators:   make(map[types.Participant]bool),
		balances:    make(map[types.Participant]sdkmath.Int),
		totalShares: sdkmath.ZeroInt(),
		idle:        sdkmath.ZeroInt(),
		allocated:   sdkmath.ZeroInt(),
		strategies:  make(map[string]*types.StrategyAllocation),
	}

	v.logger.Info().
		Str("name", v.name).
		Str("symbol", v.symbol).
		Stringer("address", v.address).
		Stringer("admin", v.admin).
		Int("sinks", len(v.sinks)).
		Msg("Vault created")

	return v, nil
}

// validateConfig validates the vault configuration
func validateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.Symbol) == "" {
		return fmt.Errorf("%w: symbol cannot be empty", ErrInvalidConfig)
	}
	if cfg.Address.IsZero() {
		return fmt.Errorf("%w: vault address cannot be empty", ErrInvalidConfig)
	}
	if cfg.Admin.IsZero() {
		return fmt.Errorf("%w: admin cannot be empty", ErrInvalidConfig)
	}
	if cfg.Asset == nil {
		return fmt.Errorf("%w: asset ledger cannot be nil", ErrInvalidConfig)
	}
	if cfg.Gate == nil {
		return fmt.Errorf("%w: access gate cannot be nil", ErrInvalidConfig)
	}
	for i, s := range cfg.Sinks {
		if s == nil {
			return fmt.Errorf("%w: event sink %d is nil", ErrInvalidConfig, i)
		}
	}
	return nil
}

// Name returns the share token name.
func (v *Vault) Name() string { return v.name }

// Symbol returns the share token symbol.
func (v *Vault) Symbol() string { return v.symbol }

// Address returns the vault's custody account.
func (v *Vault) Address() types.Participant { return v.address }

// Admin returns the administrator identity.
func (v *Vault) Admin() types.Participant { return v.admin }

// GrantOperator gives who the operator role. Only the administrator may call it.
func (v *Vault) GrantOperator(caller, who types.Participant) error {
	return v.setOperator(caller, who, true)
}

// RevokeOperator removes the operator role from who. The administrator keeps it regardless.
func (v *Vault) RevokeOperator(caller, who types.Participant) error {
	return v.setOperator(caller, who, false)
}

// IsOperator reports whether who may call the administrative surface.
func (v *Vault) IsOperator(who types.Participant) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.isOperatorLocked(who)
}

func (v *Vault) setOperator(caller, who types.Participant, enabled bool) error {
	if caller != v.admin {
		return fmt.Errorf("%w: %s is not the administrator", ErrUnauthorized, caller)
	}
	if who.IsZero() {
		return ErrInvalidAccount
	}

	v.mu.Lock()
	if enabled {
		v.operators[who] = true
	} else {
		delete(v.operators, who)
	}
	ev := v.appendEventLocked(types.Event{
		Type:      types.EventOperatorChanged,
		Caller:    caller,
		Account:   who,
		Rationale: fmt.Sprintf("operator=%t", enabled),
	})
	v.unlockAndPublish(context.Background(), ev)

	v.logger.Info().Stringer("operator", who).Bool("enabled", enabled).Msg("Operator role updated")
	return nil
}

func (v *Vault) isOperatorLocked(who types.Participant) bool {
	return who == v.admin || v.operators[who]
}

func (v *Vault) requireOperatorLocked(caller types.Participant) error {
	if !v.isOperatorLocked(caller) {
		return fmt.Errorf("%w: %s is not an operator", ErrUnauthorized, caller)
	}
	return nil
}

func (v *Vault) balanceLocked(p types.Participant) sdkmath.Int {
	if b, ok := v.balances[p]; ok {
		return b
	}
	return sdkmath.ZeroInt()
}

func (v *Vault) totalAssetsLocked() sdkmath.Int {
	return v.idle.Add(v.allocated)
}

// validateAmount rejects nil, zero and negative quantities.
func validateAmount(amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsZero() {
		return ErrZeroAmount
	}
	if amount.IsNegative() {
		return fmt.Errorf("%w: %s is negative", ErrInvalidAmount, amount)
	}
	return nil
}
