package loandash

import (
	"fmt"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Currency is the ISO code of every amount the backend produces.
const Currency = "INR"

// Amount represents a monetary value in rupees, exactly as the backend sent it.
//
// The zero Amount is absent, which is not the same as a present zero.
type Amount struct {
	value decimal.Decimal
	valid bool
}

// A returns a present Amount.
func A[T int | int64 | float64 | decimal.Decimal](value T) Amount {
	return Amount{value: newDecimal(value), valid: true}
}

func newDecimal[T int | int64 | float64 | decimal.Decimal](value T) decimal.Decimal {
	switch v := any(value).(type) {
	case int:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	case float64:
		return decimal.NewFromFloat(v)
	case decimal.Decimal:
		return v
	}
	panic("unreachable")
}

// ParseAmount parses a decimal string. The empty string is an absent amount.
func ParseAmount(s string) (Amount, error) {
	if s == "" {
		return Amount{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Amount{value: d, valid: true}, nil
}

// Valid reports whether the amount is present.
func (a Amount) Valid() bool { return a.valid }

// Decimal returns the exact value, zero when absent.
func (a Amount) Decimal() decimal.Decimal { return a.value }

// IsZero reports whether the amount is absent or equal to zero.
func (a Amount) IsZero() bool { return !a.valid || a.value.IsZero() }

func (a Amount) Equal(b Amount) bool {
	return a.valid == b.valid && a.value.Equal(b.value)
}

// Add returns the sum, absent only if both terms are absent.
func (a Amount) Add(b Amount) Amount {
	return Amount{value: a.value.Add(b.value), valid: a.valid || b.valid}
}

// String returns the exact amount formatted in Indian rupees, or the empty
// string when absent.
func (a Amount) String() string {
	if !a.valid {
		return ""
	}
	// money.New never returns a nil currency, unlike money.GetCurrency.
	cur := money.New(0, Currency).Currency()
	minor := a.value.Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}

// UnmarshalJSON accepts a JSON number, a numeric string, or null.
func (a *Amount) UnmarshalJSON(data []byte) error {
	d, ok, err := optionalDecimal(data)
	if err != nil {
		return fmt.Errorf("invalid amount %s: %w", data, err)
	}
	*a = Amount{value: d, valid: ok}
	return nil
}

// MarshalJSON writes the exact value as a JSON number, or null when absent.
func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.valid {
		return []byte("null"), nil
	}
	return []byte(a.value.String()), nil
}
