package loandash

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
)

// Percent is an optional annual interest rate, in percent (10.5 means 10.5%).
type Percent struct {
	value decimal.Decimal
	valid bool
}

func P[T int | int64 | float64 | decimal.Decimal](value T) Percent {
	return Percent{value: newDecimal(value), valid: true}
}

func (p Percent) Valid() bool              { return p.valid }
func (p Percent) Decimal() decimal.Decimal { return p.value }

// String returns the rate as sent by the backend followed by "%", or the empty
// string when absent.
func (p Percent) String() string {
	if !p.valid {
		return ""
	}
	return p.value.String() + "%"
}

func (p *Percent) UnmarshalJSON(data []byte) error {
	d, ok, err := optionalDecimal(data)
	if err != nil {
		return fmt.Errorf("invalid rate: %w", err)
	}
	*p = Percent{value: d, valid: ok}
	return nil
}

func (p Percent) MarshalJSON() ([]byte, error) {
	if !p.valid {
		return []byte("null"), nil
	}
	return []byte(p.value.String()), nil
}

// Months is an optional count of monthly installments.
//
// The backend computes counts with a dataframe library and sometimes sends
// them as floats (36.0), they are truncated to an integer.
type Months struct {
	n     int
	valid bool
}

func N(n int) Months { return Months{n: n, valid: true} }

func (m Months) Valid() bool { return m.valid }
func (m Months) Int() int    { return m.n }

// String returns the count in decimal, or the empty string when absent.
func (m Months) String() string {
	if !m.valid {
		return ""
	}
	return fmt.Sprint(m.n)
}

func (m *Months) UnmarshalJSON(data []byte) error {
	d, ok, err := optionalDecimal(data)
	if err != nil {
		return fmt.Errorf("invalid month count: %w", err)
	}
	*m = Months{n: int(d.IntPart()), valid: ok}
	return nil
}

func (m Months) MarshalJSON() ([]byte, error) {
	if !m.valid {
		return []byte("null"), nil
	}
	return []byte(fmt.Sprint(m.n)), nil
}

// optionalDecimal decodes a JSON number or numeric string, null and "" are
// reported as not ok.
func optionalDecimal(data []byte) (d decimal.Decimal, ok bool, err error) {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) || bytes.Equal(data, []byte(`""`)) {
		return decimal.Zero, false, nil
	}
	if err := d.UnmarshalJSON(data); err != nil {
		return decimal.Zero, false, err
	}
	return d, true, nil
}
