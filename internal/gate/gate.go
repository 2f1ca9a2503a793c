/*

This file implements the access gate: an administrator-maintained whitelist that the
vault consults before accepting deposits.

*/

package gate

import (
	"errors"
	"fmt"
	"sync"

	"github.com/commonprotocol/vault/internal/logger"
	"github.com/commonprotocol/vault/internal/types"
	"github.com/rs/zerolog"
)

// Error definitions for zero-tolerance error handling
var (
	ErrUnauthorized   = errors.New("caller is not the gate administrator")
	ErrInvalidAdmin   = errors.New("gate administrator is invalid")
	ErrInvalidAccount = errors.New("participant is invalid")
)

// Gate maps participants to a verified flag. The zero state verifies nobody.
type Gate struct {
	mu       sync.RWMutex
	admin    types.Participant
	verified map[types.Participant]bool
	logger   zerolog.Logger
}

// New creates a gate administered by admin.
func New(admin types.Participant) (*Gate, error) {
	if admin.IsZero() {
		return nil, ErrInvalidAdmin
	}
	g := &Gate{
		admin:    admin,
		verified: make(map[types.Participant]bool),
		logger:   logger.GetForComponent("access_gate"),
	}
	g.logger.Info().Stringer("admin", admin).Msg("Access gate created")
	return g, nil
}

// Admin returns the administrator identity.
func (g *Gate) Admin() types.Participant {
	return g.admin
}

// SetVerification sets the verified flag for participant. Only the administrator may call it.
// Redundant calls are accepted.
func (g *Gate) SetVerification(caller, participant types.Participant, verified bool) error {
	if caller != g.admin {
		return fmt.Errorf("%w: %s", ErrUnauthorized, caller)
	}
	if participant.IsZero() {
		return ErrInvalidAccount
	}

	g.mu.Lock()
	if verified {
		g.verified[participant] = true
	} else {
		delete(g.verified, participant)
	}
	g.mu.Unlock()

	g.logger.Info().
		Stringer("participant", participant).
		Bool("verified", verified).
		Msg("Verification updated")
	return nil
}

// IsVerified reports whether participant has been verified. Unknown participants are not.
func (g *Gate) IsVerified(participant types.Participant) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.verified[participant]
}

// VerifiedCount returns the number of currently verified participants.
func (g *Gate) VerifiedCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.verified)
}
