/*
This file contains common utility functions for converting between human-readable token
amounts and base-unit SDK integers, with explicit precision handling.
*/

package utils

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidPrecision = errors.New("precision is invalid")
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrConversionFailed = errors.New("conversion failed")
)

// MaxPrecision is the largest number of decimals a token may declare.
const MaxPrecision = 18

// pow10 returns 10^precision as an SDK Int.
func pow10(precision int) sdkmath.Int {
	factor := sdkmath.OneInt()
	ten := sdkmath.NewInt(10)
	for i := 0; i < precision; i++ {
		factor = factor.Mul(ten)
	}
	return factor
}

func validatePrecision(precision int) error {
	if precision < 0 || precision > MaxPrecision {
		return fmt.Errorf("%w: %d (must be between 0 and %d)", ErrInvalidPrecision, precision, MaxPrecision)
	}
	return nil
}

// ParseUnits converts a decimal string such as "5000" or "0.25" into base units with the
// given precision. Fractional digits beyond the precision are rejected rather than rounded.
func ParseUnits(amount string, precision int) (sdkmath.Int, error) {
	if err := validatePrecision(precision); err != nil {
		return sdkmath.ZeroInt(), err
	}
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: empty amount", ErrConversionFailed)
	}
	if strings.HasPrefix(amount, "-") {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}

	whole, frac, _ := strings.Cut(amount, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > precision {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %q has more than %d decimals", ErrConversionFailed, amount, precision)
	}
	frac += strings.Repeat("0", precision-len(frac))

	// Base 10 explicitly: the SDK string parser would read a leading zero as octal.
	bi, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %q is not a decimal number", ErrConversionFailed, amount)
	}
	if bi.BitLen() > sdkmath.MaxBitLen {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %q overflows", ErrConversionFailed, amount)
	}
	return sdkmath.NewIntFromBigInt(bi), nil
}

// MustParseUnits is ParseUnits for constants known to be valid. It panics on error.
func MustParseUnits(amount string, precision int) sdkmath.Int {
	v, err := ParseUnits(amount, precision)
	if err != nil {
		panic(err)
	}
	return v
}

// FormatUnits renders a base-unit amount as a decimal string, trimming trailing zeros.
func FormatUnits(amount sdkmath.Int, precision int) (string, error) {
	if err := validatePrecision(precision); err != nil {
		return "", err
	}
	if amount.IsNil() {
		return "", ErrAmountNil
	}
	if amount.IsNegative() {
		return "", ErrAmountNegative
	}
	if precision == 0 {
		return amount.String(), nil
	}

	factor := pow10(precision)
	whole := amount.Quo(factor)
	frac := amount.Mod(factor).String()
	frac = strings.Repeat("0", precision-len(frac)) + frac
	frac = strings.TrimRight(frac, "0")
	if frac == "" {
		return whole.String(), nil
	}
	return whole.String() + "." + frac, nil
}
