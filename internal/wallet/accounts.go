/*

This file contains the address book used by the simulator. Every participant is a
deterministic 20-byte account derived from a label and rendered as a bech32 address
under the configured prefix, so runs with the same labels produce the same addresses.

The global SDK config is never sealed; encoding goes through the explicit-prefix
helpers so books with different prefixes can coexist in one process.

*/

package wallet

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cometbft/cometbft/crypto/tmhash"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/rs/zerolog"

	"github.com/commonprotocol/vault/internal/logger"
	"github.com/commonprotocol/vault/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidPrefix  = errors.New("bech32 prefix is invalid")
	ErrInvalidLabel   = errors.New("account label is invalid")
	ErrAddressInvalid = errors.New("address is invalid")
)

// Book derives and remembers labelled accounts.
type Book struct {
	prefix string
	logger zerolog.Logger

	mu      sync.Mutex
	byLabel map[string]types.Participant
	labels  map[types.Participant]string
}

// NewBook creates an address book for the given bech32 account prefix.
func NewBook(prefix string) (*Book, error) {
	if err := validatePrefix(prefix); err != nil {
		return nil, err
	}
	return &Book{
		prefix:  prefix,
		logger:  logger.GetForComponent("wallet"),
		byLabel: make(map[string]types.Participant),
		labels:  make(map[types.Participant]string),
	}, nil
}

// validatePrefix checks that prefix can encode an account address.
func validatePrefix(prefix string) error {
	if prefix == "" || strings.ToLower(prefix) != prefix {
		return fmt.Errorf("%w: %q must be non-empty lowercase", ErrInvalidPrefix, prefix)
	}
	if _, err := sdk.Bech32ifyAddressBytes(prefix, make([]byte, tmhash.TruncatedSize)); err != nil {
		return errors.Join(ErrInvalidPrefix, err)
	}
	return nil
}

// Prefix returns the bech32 account prefix.
func (b *Book) Prefix() string { return b.prefix }

// Derive returns the account for label, creating it on first use.
func (b *Book) Derive(label string) (types.Participant, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return "", fmt.Errorf("%w: empty label", ErrInvalidLabel)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if p, ok := b.byLabel[label]; ok {
		return p, nil
	}

	addr := sdk.AccAddress(tmhash.SumTruncated([]byte(b.prefix + "/" + label)))
	encoded, err := sdk.Bech32ifyAddressBytes(b.prefix, addr)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAddressInvalid, err)
	}

	p := types.Participant(encoded)
	b.byLabel[label] = p
	b.labels[p] = label

	b.logger.Debug().Str("label", label).Stringer("address", p).Msg("Derived account")
	return p, nil
}

// MustDerive is Derive for labels known to be valid. It panics on error.
func (b *Book) MustDerive(label string) types.Participant {
	p, err := b.Derive(label)
	if err != nil {
		panic(err)
	}
	return p
}

// Label returns the label p was derived from, if it came from this book.
func (b *Book) Label(p types.Participant) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	label, ok := b.labels[p]
	return label, ok
}

// Validate checks that p is a well-formed account address under the book's prefix.
func (b *Book) Validate(p types.Participant) error {
	bz, err := sdk.GetFromBech32(p.String(), b.prefix)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrAddressInvalid, p, err)
	}
	if err := sdk.VerifyAddressFormat(bz); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrAddressInvalid, p, err)
	}
	return nil
}
