// Package money holds the fixed-point amount type used by the ledger.
//
// Every Money value carries exactly two fractional digits. Division and
// percentage helpers round half-up (away from zero) back to two digits.
package money

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits kept by Money.
const Scale = 2

var hundred = decimal.NewFromInt(100)

// ErrTooPrecise is returned by ParseExact when the input has sub-cent digits.
var ErrTooPrecise = errors.New("money: more than 2 fractional digits")

// Money is a single-currency amount with two fractional digits.
// The zero value is 0.00.
type Money struct {
	d decimal.Decimal
}

// Zero is 0.00.
var Zero = Money{}

// New rounds d half-up to two fractional digits.
func New(d decimal.Decimal) Money { return Money{d: d.Round(Scale)} }

// FromCents builds an amount from an integer number of cents.
func FromCents(cents int64) Money { return Money{d: decimal.New(cents, -Scale)} }

// Parse reads a decimal string and rounds it half-up to two digits.
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("money: parse %q: %w", s, err)
	}
	return New(d), nil
}

// ParseExact is like Parse but rejects inputs that would need rounding.
func ParseExact(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("money: parse %q: %w", s, err)
	}
	if !d.Equal(d.Round(Scale)) {
		return Zero, ErrTooPrecise
	}
	return New(d), nil
}

// MustParse panics on malformed input. Intended for constants and tests.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Decimal returns the underlying decimal.
func (m Money) Decimal() decimal.Decimal { return m.d }

// Cents returns the amount in the smallest unit.
func (m Money) Cents() int64 { return m.d.Shift(Scale).IntPart() }

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }

func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }

// MulInt multiplies by an integer count. No rounding is needed.
func (m Money) MulInt(n int64) Money { return Money{d: m.d.Mul(decimal.NewFromInt(n))} }

// DivRound splits the amount into n equal shares rounded half-up.
// n must be positive.
func (m Money) DivRound(n int64) Money {
	if n <= 0 {
		panic("money: non-positive divisor")
	}
	return Money{d: m.d.DivRound(decimal.NewFromInt(n), Scale)}
}

// Percent returns round2(m * rate / 100).
func (m Money) Percent(rate decimal.Decimal) Money {
	return Money{d: m.d.Mul(rate).DivRound(hundred, Scale)}
}

func (m Money) IsZero() bool     { return m.d.IsZero() }
func (m Money) IsPositive() bool { return m.d.IsPositive() }
func (m Money) IsNegative() bool { return m.d.IsNegative() }

// Cmp compares two amounts exactly.
func (m Money) Cmp(o Money) int             { return m.d.Cmp(o.d) }
func (m Money) Equal(o Money) bool          { return m.d.Equal(o.d) }
func (m Money) LessThan(o Money) bool       { return m.d.LessThan(o.d) }
func (m Money) GreaterThan(o Money) bool    { return m.d.GreaterThan(o.d) }
func (m Money) LessOrEqual(o Money) bool    { return m.d.LessThanOrEqual(o.d) }
func (m Money) GreaterOrEqual(o Money) bool { return m.d.GreaterThanOrEqual(o.d) }

// Abs returns |m|.
func (m Money) Abs() Money { return Money{d: m.d.Abs()} }

// String always renders two fractional digits, e.g. "33.30".
func (m Money) String() string { return m.d.StringFixed(Scale) }

// MarshalJSON renders the amount as a JSON string to avoid float decoding downstream.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts both "12.34" and 12.34.
func (m *Money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return fmt.Errorf("money: %w", err)
	}
	*m = New(d)
	return nil
}

// Value implements driver.Valuer.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

// Scan implements sql.Scanner. Drivers that hand back floats (sqlite)
// are normalised to two digits.
func (m *Money) Scan(src interface{}) error {
	var d decimal.Decimal
	if err := d.Scan(src); err != nil {
		return fmt.Errorf("money: scan: %w", err)
	}
	*m = New(d)
	return nil
}

// Sum adds all values. Sum() is Zero.
func Sum(values ...Money) Money {
	total := Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
