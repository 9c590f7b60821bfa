package descriptor

import (
	"context"
	"errors"
	"fmt"

	"github.com/clkfabric/clktree/pkg/clk"
	"github.com/clkfabric/clktree/pkg/rate"
	"github.com/clkfabric/clktree/pkg/regio"
)

// Descriptors converts every clock entry.
func (f *File) Descriptors() ([]clk.Descriptor, error) {
	out := make([]clk.Descriptor, 0, len(f.Clocks))
	for _, c := range f.Clocks {
		d, err := c.Descriptor()
		if err != nil {
			return nil, &LoadError{Path: f.path, Line: c.Line, Clock: c.Name, Err: err}
		}
		out = append(out, d)
	}
	return out, nil
}

// Descriptor converts one clock entry.
func (c Clock) Descriptor() (clk.Descriptor, error) {
	kind, err := clk.ParseKind(c.Kind)
	if err != nil {
		return clk.Descriptor{}, err
	}
	d := clk.Descriptor{
		Name:             c.Name,
		Kind:             kind,
		Parents:          c.Parents,
		Mux:              rate.MuxTable(c.Mux),
		Rate:             uint64(c.Rate),
		ChangeableParent: c.ChangeableParent,
		SafeDivisor:      c.SafeDivisor,
		Enabled:          c.Enabled,
	}
	if c.Input != nil {
		d.Input = c.Input.Range()
	}
	if c.Output != nil {
		d.Output = c.Output.Range()
	}
	if c.Divisors != nil {
		if d.Divisors, err = c.Divisors.Table(); err != nil {
			return clk.Descriptor{}, err
		}
	}
	d.Layout = c.Layout.Layout()

	for _, name := range c.Flags {
		fl, err := clk.ParseFlag(name)
		if err != nil {
			return clk.Descriptor{}, err
		}
		d.Flags |= fl
	}
	if c.Export != nil {
		typ, err := clk.ParseExportType(c.Export.Type)
		if err != nil {
			return clk.Descriptor{}, err
		}
		d.Export = &clk.ExportSlot{Type: typ, Index: c.Export.Index}
	}
	if c.Initial != nil {
		d.Initial = clk.Setting{Parent: c.Initial.Parent, Div: c.Initial.Div, Mul: c.Initial.Mul, Frac: c.Initial.Frac}
	}
	return d, nil
}

// Range converts to a rate.Range.
func (r Range) Range() rate.Range {
	return rate.Range{Min: uint64(r.Min), Max: uint64(r.Max)}
}

// Table builds the divisor table.
func (d Divisors) Table() (rate.DivisorTable, error) {
	set := 0
	var t rate.DivisorTable
	if len(d.Linear) > 0 {
		set++
		if len(d.Linear) != 2 || d.Linear[0] == 0 || d.Linear[0] > d.Linear[1] {
			return nil, fmt.Errorf("linear divisors need [min, max] with 0 < min <= max, got %v", d.Linear)
		}
		t = rate.Linear(d.Linear[0], d.Linear[1])
	}
	if len(d.Indexed) > 0 {
		set++
		t = rate.Indexed(d.Indexed...)
	}
	if d.PowerOfTwo > 0 {
		set++
		t = rate.PowerOfTwo(d.PowerOfTwo, d.Div3)
	}
	if set != 1 {
		return nil, fmt.Errorf("divisors must use exactly one of linear, indexed, power_of_two")
	}
	return t, t.Validate()
}

// Layout converts to a clk.Layout.
func (l Layout) Layout() clk.Layout {
	conv := func(f *Field) clk.Field {
		if f == nil {
			return clk.Field{}
		}
		return clk.Field{Offset: f.Offset, Shift: f.Shift, Width: f.Width}
	}
	return clk.Layout{
		Mux:  conv(l.Mux),
		Div:  conv(l.Div),
		Mul:  conv(l.Mul),
		Frac: conv(l.Frac),
		Gate: conv(l.Gate),
	}
}

// Build registers every clock with c and validates the graph.
func (f *File) Build(c *clk.Controller) error {
	descs, err := f.Descriptors()
	if err != nil {
		return err
	}
	for i, d := range descs {
		if _, err := c.RegisterNode(d); err != nil {
			return &LoadError{Path: f.path, Line: f.Clocks[i].Line, Clock: d.Name, Err: err}
		}
	}
	if err := c.Validate(); err != nil {
		var ce *clk.ConfigError
		if errors.As(err, &ce) {
			return &LoadError{Path: f.path, Line: f.line(ce.Node), Clock: ce.Node, Err: err}
		}
		return &LoadError{Path: f.path, Err: err}
	}
	return nil
}

// Assign applies the boot-time rates in order.
func (f *File) Assign(ctx context.Context, c *clk.Controller) error {
	for _, ar := range f.AssignedRates {
		n, err := c.Lookup(ar.Clock)
		if err != nil {
			return &LoadError{Path: f.path, Clock: ar.Clock, Err: err}
		}
		if _, err := c.SetRate(ctx, n, uint64(ar.Rate)); err != nil {
			return fmt.Errorf("assigned rate %s for %s: %w", ar.Rate, ar.Clock, err)
		}
	}
	return nil
}

// SimBus returns an in-memory register file preloaded with the file's reset
// values.
func (f *File) SimBus() *regio.MemBus {
	return regio.NewMemBus(f.Registers)
}

// Boot builds the tree on bus and applies the assigned rates. A nil bus
// gets the simulated register file.
func (f *File) Boot(ctx context.Context, bus regio.Bus, cfg clk.Config) (*clk.Controller, error) {
	if bus == nil {
		bus = f.SimBus()
	}
	c := clk.NewController(bus, cfg)
	if err := f.Build(c); err != nil {
		return nil, err
	}
	if err := f.Assign(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (f *File) line(name string) int {
	for _, c := range f.Clocks {
		if c.Name == name {
			return c.Line
		}
	}
	return 0
}
