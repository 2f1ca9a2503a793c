package token

import (
	"context"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commonprotocol/vault/internal/types"
)

const (
	alice = types.Participant("alice")
	bob   = types.Participant("bob")
	vault = types.Participant("vault")
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := NewLedger(Metadata{Symbol: "USDC", Denom: "usdc", Precision: 6})
	require.NoError(t, err)
	return l
}

func TestNewLedger_Validation(t *testing.T) {
	_, err := NewLedger(Metadata{Symbol: "USDC", Denom: "1x", Precision: 6})
	assert.ErrorIs(t, err, ErrInvalidDenom)

	_, err = NewLedger(Metadata{Symbol: "USDC", Denom: "usdc", Precision: 19})
	assert.ErrorIs(t, err, ErrInvalidDenom)
}

func TestMintAndTransfer(t *testing.T) {
	l := newTestLedger(t)

	require.NoError(t, l.Mint(alice, sdkmath.NewInt(1000)))
	require.NoError(t, l.Transfer(alice, bob, sdkmath.NewInt(400)))

	assert.Equal(t, "600", l.BalanceOf(alice).String())
	assert.Equal(t, "400", l.BalanceOf(bob).String())
	assert.Equal(t, "1000", l.TotalSupply().String())
	assert.Equal(t, "600usdc", l.Coin(alice).String())
}

func TestTransfer_Rejects(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.Mint(alice, sdkmath.NewInt(10)))

	assert.ErrorIs(t, l.Transfer(alice, bob, sdkmath.NewInt(11)), ErrInsufficientBalance)
	assert.ErrorIs(t, l.Transfer(alice, bob, sdkmath.ZeroInt()), ErrInvalidAmount)
	assert.ErrorIs(t, l.Transfer(alice, "", sdkmath.NewInt(1)), ErrInvalidAccount)
	assert.ErrorIs(t, l.Mint(alice, sdkmath.NewInt(-1)), ErrInvalidAmount)

	assert.Equal(t, "10", l.BalanceOf(alice).String())
	assert.True(t, l.BalanceOf(bob).IsZero())
}

func TestTransferFrom(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.Mint(alice, sdkmath.NewInt(100)))

	// No allowance yet.
	err := l.TransferFrom(vault, alice, vault, sdkmath.NewInt(50))
	assert.ErrorIs(t, err, ErrInsufficientAllowance)

	require.NoError(t, l.Approve(alice, vault, sdkmath.NewInt(60)))
	require.NoError(t, l.TransferFrom(vault, alice, vault, sdkmath.NewInt(50)))
	assert.Equal(t, "10", l.Allowance(alice, vault).String())
	assert.Equal(t, "50", l.BalanceOf(vault).String())

	// Allowance exceeded.
	err = l.TransferFrom(vault, alice, vault, sdkmath.NewInt(11))
	assert.ErrorIs(t, err, ErrInsufficientAllowance)

	// Allowance fine, balance short: allowance must not be consumed.
	require.NoError(t, l.Approve(alice, vault, sdkmath.NewInt(500)))
	err = l.TransferFrom(vault, alice, vault, sdkmath.NewInt(200))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, "500", l.Allowance(alice, vault).String())
	assert.Equal(t, "50", l.BalanceOf(alice).String())
}

func TestCustody(t *testing.T) {
	l := newTestLedger(t)
	c := NewCustody(l, vault)
	ctx := context.Background()

	require.NoError(t, l.Mint(alice, sdkmath.NewInt(100)))
	require.NoError(t, l.Approve(alice, vault, sdkmath.NewInt(100)))

	require.NoError(t, c.TransferIn(ctx, alice, sdkmath.NewInt(70)))
	assert.Equal(t, "70", c.BalanceOf(vault).String())

	require.NoError(t, c.TransferOut(ctx, bob, sdkmath.NewInt(20)))
	assert.Equal(t, "50", c.BalanceOf(vault).String())
	assert.Equal(t, "20", c.BalanceOf(bob).String())

	assert.ErrorIs(t, c.TransferOut(ctx, bob, sdkmath.NewInt(51)), ErrInsufficientBalance)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, c.TransferIn(cancelled, alice, sdkmath.NewInt(1)), context.Canceled)
}
