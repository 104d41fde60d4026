// Package fixedpoint converts between the raw integer fixed-point values
// stored on chain and arbitrary-precision decimals.
//
// Three on-chain conventions exist: 18 decimals for prices, rates and
// accumulator indices, 6 decimals for collateral/USD amounts, and 2
// decimals for leverage and percentages. All arithmetic downstream of a
// conversion uses shopspring/decimal — never float64 for money.
package fixedpoint

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional decimal digits of a raw fixed-point
// integer.
type Scale int32

const (
	// Scale18 covers prices, funding rates and accumulator indices.
	Scale18 Scale = 18
	// Scale6 covers collateral and other USD-denominated amounts.
	Scale6 Scale = 6
	// Scale2 covers leverage and percentage parameters.
	Scale2 Scale = 2
)

// FormatError reports a raw value that is not a valid on-chain integer.
// It indicates a data-integrity problem upstream and is never retried.
type FormatError struct {
	Raw string
	Err error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fixedpoint: malformed raw value %q: %v", e.Raw, e.Err)
	}
	return fmt.Sprintf("fixedpoint: malformed raw value %q: not an integer", e.Raw)
}

func (e *FormatError) Unwrap() error { return e.Err }

// FromRaw converts a raw integer string to its decimal value at the given
// scale. The conversion is a pure exponent shift, so it is exact for every
// valid on-chain integer.
func FromRaw(raw string, scale Scale) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &FormatError{Raw: raw, Err: err}
	}
	if !d.IsInteger() {
		return decimal.Zero, &FormatError{Raw: raw}
	}
	return d.Shift(-int32(scale)), nil
}

// ToRaw converts a decimal value back to its raw integer string at the
// given scale, truncating toward zero like the contract does.
func ToRaw(d decimal.Decimal, scale Scale) string {
	return d.Shift(int32(scale)).Truncate(0).String()
}
