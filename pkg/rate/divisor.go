package rate

import (
	"errors"
	"fmt"
)

// Table errors.
var (
	ErrEmptyTable      = errors.New("empty table")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrZeroDivisor     = errors.New("zero divisor")
)

// Divisor is one selectable divider setting.
type Divisor struct {
	// Code is the value programmed into the divider field.
	Code uint32 `json:"code" yaml:"code"`

	// Value is the division ratio the code selects.
	Value uint32 `json:"value" yaml:"value"`
}

// DivisorTable is an ordered set of selectable divisors. Values may be
// non-contiguous and are not required to be sorted.
type DivisorTable []Divisor

// Linear returns the table lo..hi where each code is value-1. This is the
// encoding used by PLL dividers, generated clock dividers and programmable
// clock prescalers.
func Linear(lo, hi uint32) DivisorTable {
	if lo == 0 {
		lo = 1
	}
	if hi < lo {
		return nil
	}
	t := make(DivisorTable, 0, hi-lo+1)
	for v := lo; v <= hi; v++ {
		t = append(t, Divisor{Code: v - 1, Value: v})
	}
	return t
}

// Indexed returns a table whose codes are the positions of values.
func Indexed(values ...uint32) DivisorTable {
	t := make(DivisorTable, len(values))
	for i, v := range values {
		t[i] = Divisor{Code: uint32(i), Value: v}
	}
	return t
}

// Div3Code is the prescaler code selecting divide-by-3 in the power-of-two
// family.
const Div3Code = 7

// PowerOfTwo returns the prescaler family 1, 2, 4 ... 2^(n-1), coded by the
// exponent. With div3 set the table also contains divide-by-3 at Div3Code.
func PowerOfTwo(n int, div3 bool) DivisorTable {
	t := make(DivisorTable, 0, n+1)
	for i := 0; i < n; i++ {
		t = append(t, Divisor{Code: uint32(i), Value: 1 << i})
	}
	if div3 {
		t = append(t, Divisor{Code: Div3Code, Value: 3})
	}
	return t
}

// Validate rejects empty tables and zero divisors.
func (t DivisorTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("divisor table: %w", ErrEmptyTable)
	}
	for _, d := range t {
		if d.Value == 0 {
			return fmt.Errorf("divisor table code %d: %w", d.Code, ErrZeroDivisor)
		}
	}
	return nil
}

// ByCode returns the divisor selected by a field code.
func (t DivisorTable) ByCode(code uint32) (Divisor, bool) {
	for _, d := range t {
		if d.Code == code {
			return d, true
		}
	}
	return Divisor{}, false
}

// ByValue returns the entry for a divisor value.
func (t DivisorTable) ByValue(value uint32) (Divisor, bool) {
	for _, d := range t {
		if d.Value == value {
			return d, true
		}
	}
	return Divisor{}, false
}

// Nearest returns the entry whose value is closest to target. Ties go to the
// smaller divisor so the higher output rate is preferred.
func (t DivisorTable) Nearest(target uint32) (Divisor, error) {
	if len(t) == 0 {
		return Divisor{}, ErrEmptyTable
	}
	best := t[0]
	for _, d := range t[1:] {
		dd, bd := Distance(uint64(d.Value), uint64(target)), Distance(uint64(best.Value), uint64(target))
		if dd < bd || (dd == bd && d.Value < best.Value) {
			best = d
		}
	}
	return best, nil
}

// Max returns the largest divisor value in the table.
func (t DivisorTable) Max() uint32 {
	var m uint32
	for _, d := range t {
		if d.Value > m {
			m = d.Value
		}
	}
	return m
}
