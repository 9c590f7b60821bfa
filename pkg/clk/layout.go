package clk

import (
	"fmt"

	"github.com/clkfabric/clktree/pkg/regio"
)

// Field locates a bit field inside a 32-bit register.
type Field struct {
	Offset uint32 `json:"offset" yaml:"offset"`
	Shift  uint8  `json:"shift" yaml:"shift"`
	Width  uint8  `json:"width" yaml:"width"`
}

// Present reports whether the field exists.
func (f Field) Present() bool {
	return f.Width > 0
}

// Max returns the largest value the field can hold.
func (f Field) Max() uint32 {
	if f.Width >= 32 {
		return ^uint32(0)
	}
	return 1<<f.Width - 1
}

// Mask returns the field's bits in register position.
func (f Field) Mask() uint32 {
	return f.Max() << f.Shift
}

// Extract returns the field value from a register value.
func (f Field) Extract(reg uint32) uint32 {
	return (reg >> f.Shift) & f.Max()
}

// Insert returns reg with the field replaced by v.
func (f Field) Insert(reg, v uint32) uint32 {
	return (reg &^ f.Mask()) | ((v << f.Shift) & f.Mask())
}

// Set returns the masked write that stores v in the field.
func (f Field) Set(v uint32) (regio.Write, error) {
	if v > f.Max() {
		return regio.Write{}, fmt.Errorf("value %d does not fit %d-bit field at %#x", v, f.Width, f.Offset)
	}
	return regio.Write{Offset: f.Offset, Mask: f.Mask(), Value: v << f.Shift}, nil
}

func (f Field) overlaps(o Field) bool {
	return f.Present() && o.Present() && f.Offset == o.Offset && f.Mask()&o.Mask() != 0
}

func (f Field) String() string {
	if !f.Present() {
		return "-"
	}
	return fmt.Sprintf("%#x[%d:%d]", f.Offset, int(f.Shift)+int(f.Width)-1, f.Shift)
}

// Layout is the register placement of a node's controls. Absent fields are
// kept in software only.
//
// Mul holds the PLL multiplier minus one. Frac holds the fractional part;
// its width is the PLL's fixed-point precision.
type Layout struct {
	Mux  Field `json:"mux,omitzero" yaml:"mux,omitempty"`
	Div  Field `json:"div,omitzero" yaml:"div,omitempty"`
	Mul  Field `json:"mul,omitzero" yaml:"mul,omitempty"`
	Frac Field `json:"frac,omitzero" yaml:"frac,omitempty"`
	Gate Field `json:"gate,omitzero" yaml:"gate,omitempty"`
}

func (l Layout) fields() []Field {
	return []Field{l.Mux, l.Div, l.Mul, l.Frac, l.Gate}
}

func (l Layout) validate() error {
	fs := l.fields()
	for i, f := range fs {
		if int(f.Shift)+int(f.Width) > 32 {
			return fmt.Errorf("%w: field %s exceeds 32 bits", ErrBadLayout, f)
		}
		for _, o := range fs[i+1:] {
			if f.overlaps(o) {
				return fmt.Errorf("%w: fields %s and %s overlap", ErrBadLayout, f, o)
			}
		}
	}
	return nil
}

// Setting is the concrete configuration of a node.
type Setting struct {
	// Parent is the logical mux input.
	Parent int `json:"parent"`

	// Mul and Frac are the PLL multiplier and fraction.
	Mul  uint32 `json:"mul,omitempty"`
	Frac uint32 `json:"frac,omitempty"`

	// Div is the divisor value (not its field code).
	Div uint32 `json:"div,omitempty"`
}

func (s Setting) String() string {
	switch {
	case s.Mul != 0:
		return fmt.Sprintf("parent=%d mul=%d frac=%d", s.Parent, s.Mul, s.Frac)
	default:
		return fmt.Sprintf("parent=%d div=%d", s.Parent, s.Div)
	}
}

// fracRate is in*(mul + frac/2^width).
func fracRate(in uint64, mul, frac uint32, width uint8) uint64 {
	return in*uint64(mul) + (in*uint64(frac))>>width
}
