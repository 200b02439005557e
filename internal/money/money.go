/**
 * @description
 * This package defines the Money value type used for every balance and amount
 * in the ledger. Values are fixed-point decimals with exactly two fractional
 * digits, backed by shopspring/decimal so that arithmetic is exact and never
 * routed through binary floating point.
 *
 * Money crosses every API and storage boundary as a base-10 string matching
 * `^\d+(\.\d{1,2})?$` (non-negative, at most two decimals). Anything else is
 * rejected at Parse time, before it can reach the ledger.
 *
 * @dependencies
 * - github.com/shopspring/decimal: Exact decimal arithmetic.
 */

package money

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

// ErrInvalidFormat is returned when a string does not satisfy the accepted
// money pattern: non-negative digits with at most two fractional digits.
var ErrInvalidFormat = errors.New("invalid money format")

// ErrNegativeResult is returned by Sub when the subtraction would produce a
// negative value. Callers must check sufficiency first; Money never clamps.
var ErrNegativeResult = errors.New("money subtraction yields negative result")

var amountPattern = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)

// Money is a non-negative fixed-point decimal amount with scale 2.
// The zero value is 0.00.
type Money struct {
	d decimal.Decimal
}

// Zero returns a Money of 0.00.
func Zero() Money {
	return Money{}
}

// Parse converts a decimal string into a Money value. Only strings matching
// `digits(.digits{1,2})?` are accepted; everything else fails with
// ErrInvalidFormat.
func Parse(s string) (Money, error) {
	if !amountPattern.MatchString(s) {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	return Money{d: d}, nil
}

// MustParse is a Parse that panics on malformed input. For constants and tests.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// String formats the amount with exactly two fractional digits.
func (m Money) String() string {
	return m.d.StringFixed(2)
}

// Add returns m + other.
func (m Money) Add(other Money) Money {
	return Money{d: m.d.Add(other.d)}
}

// Sub returns m - other, or ErrNegativeResult if other exceeds m.
func (m Money) Sub(other Money) (Money, error) {
	r := m.d.Sub(other.d)
	if r.IsNegative() {
		return Money{}, fmt.Errorf("%w: %s - %s", ErrNegativeResult, m, other)
	}
	return Money{d: r}, nil
}

// Cmp compares m to other: -1 if m < other, 0 if equal, 1 if m > other.
func (m Money) Cmp(other Money) int {
	return m.d.Cmp(other.d)
}

// LessThan reports whether m < other.
func (m Money) LessThan(other Money) bool {
	return m.d.Cmp(other.d) < 0
}

// IsZero reports whether m is 0.00.
func (m Money) IsZero() bool {
	return m.d.IsZero()
}

// MarshalJSON renders the amount as a JSON string with two fractional digits.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON parses a JSON string through the strict Parse rules.
func (m *Money) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("%w: expected a quoted decimal string", ErrInvalidFormat)
	}
	parsed, err := Parse(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
