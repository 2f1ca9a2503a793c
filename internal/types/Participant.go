/*

This file contains the identity types shared by the gate, the token ledger and the vault.

*/

package types

// Participant is an opaque account identity. In the simulator these are bech32 account
// addresses, but nothing in the ledgers depends on the encoding.
type Participant string

// String returns the participant identity as plain text.
func (p Participant) String() string {
	return string(p)
}

// IsZero reports whether the identity is unset.
func (p Participant) IsZero() bool {
	return p == ""
}
