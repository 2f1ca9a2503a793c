package wallet

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commonprotocol/vault/internal/types"
)

func TestNewBook_ValidatesPrefix(t *testing.T) {
	tests := []struct {
		name    string
		prefix  string
		wantErr bool
	}{
		{"simple", "common", false},
		{"cosmos", "cosmos", false},
		{"empty", "", true},
		{"uppercase", "Common", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBook(tt.prefix)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPrefix)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDerive_DeterministicAndDistinct(t *testing.T) {
	a, err := NewBook("common")
	require.NoError(t, err)
	b, err := NewBook("common")
	require.NoError(t, err)

	user1, err := a.Derive("user")
	require.NoError(t, err)
	user2, err := b.Derive("user")
	require.NoError(t, err)
	assert.Equal(t, user1, user2, "same prefix and label give the same address")

	admin, err := a.Derive("admin")
	require.NoError(t, err)
	assert.NotEqual(t, user1, admin)

	assert.True(t, strings.HasPrefix(user1.String(), "common1"))
	assert.NoError(t, a.Validate(user1))

	label, ok := a.Label(user1)
	assert.True(t, ok)
	assert.Equal(t, "user", label)

	again, err := a.Derive("  user ")
	require.NoError(t, err)
	assert.Equal(t, user1, again, "labels are trimmed")
}

func TestDerive_PrefixChangesAddress(t *testing.T) {
	a, err := NewBook("common")
	require.NoError(t, err)
	b, err := NewBook("cosmos")
	require.NoError(t, err)

	pa := a.MustDerive("user")
	pb := b.MustDerive("user")
	assert.NotEqual(t, pa, pb)
	assert.ErrorIs(t, a.Validate(pb), ErrAddressInvalid)
}

func TestDerive_RejectsEmptyLabel(t *testing.T) {
	book, err := NewBook("common")
	require.NoError(t, err)

	_, err = book.Derive("   ")
	assert.ErrorIs(t, err, ErrInvalidLabel)
	assert.Panics(t, func() { book.MustDerive("") })
}

func TestValidate_RejectsGarbage(t *testing.T) {
	book, err := NewBook("common")
	require.NoError(t, err)

	for _, p := range []types.Participant{"", "alice", "common1notbech32"} {
		assert.ErrorIs(t, book.Validate(p), ErrAddressInvalid, "%q", p)
	}
}
