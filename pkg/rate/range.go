package rate

import (
	"errors"
	"fmt"
)

// Frequency units.
const (
	KHz uint64 = 1000
	MHz uint64 = 1000 * KHz
	GHz uint64 = 1000 * MHz
)

// ErrInvalidRange is returned when a range has Min greater than Max.
var ErrInvalidRange = errors.New("invalid frequency range")

// Range is a closed frequency interval in Hz.
type Range struct {
	Min uint64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max uint64 `json:"max,omitempty" yaml:"max,omitempty"`
}

// Validate checks the Min <= Max invariant.
func (r Range) Validate() error {
	if r.Min > r.Max {
		return fmt.Errorf("%w: min %d > max %d", ErrInvalidRange, r.Min, r.Max)
	}
	return nil
}

// IsZero reports whether the range is unset.
func (r Range) IsZero() bool {
	return r.Min == 0 && r.Max == 0
}

// Contains reports whether min <= hz <= max.
func (r Range) Contains(hz uint64) bool {
	return r.Min <= hz && hz <= r.Max
}

// Allows is Contains for ranges used as ceilings: a zero Max means the
// range has no upper bound.
func (r Range) Allows(hz uint64) bool {
	if hz < r.Min {
		return false
	}
	return r.Max == 0 || hz <= r.Max
}

// String formats the range for logs and error messages.
func (r Range) String() string {
	if r.Max == 0 {
		return fmt.Sprintf("[%s, unbounded]", FormatHz(r.Min))
	}
	return fmt.Sprintf("[%s, %s]", FormatHz(r.Min), FormatHz(r.Max))
}

// FormatHz renders a frequency with the largest unit that divides it exactly.
func FormatHz(hz uint64) string {
	switch {
	case hz >= GHz && hz%GHz == 0:
		return fmt.Sprintf("%dGHz", hz/GHz)
	case hz >= MHz && hz%MHz == 0:
		return fmt.Sprintf("%dMHz", hz/MHz)
	case hz >= KHz && hz%KHz == 0:
		return fmt.Sprintf("%dkHz", hz/KHz)
	default:
		return fmt.Sprintf("%dHz", hz)
	}
}

// Distance returns |a - b|.
func Distance(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}
