package clk

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clkfabric/clktree/pkg/rate"
)

func registerErr(t *testing.T, g *Graph, d Descriptor) error {
	t.Helper()
	_, err := g.Register(d)
	require.Error(t, err)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, d.Name, ce.Node)
	return err
}

func TestRegisterRejectsBadDescriptors(t *testing.T) {
	g := NewGraph()
	_, err := g.Register(Descriptor{Name: "osc", Kind: KindOscillator, Rate: 24 * rate.MHz})
	require.NoError(t, err)

	tests := []struct {
		name string
		desc Descriptor
		want error
	}{
		{"duplicate", Descriptor{Name: "osc", Kind: KindOscillator, Rate: 1}, ErrDuplicateID},
		{"unknown parent", Descriptor{Name: "p", Kind: KindPeripheralClock, Parents: []string{"nope"}}, ErrUnknownParent},
		{"no parent", Descriptor{Name: "p", Kind: KindPeripheralClock}, ErrOrphan},
		{"empty divisor table", Descriptor{Name: "d", Kind: KindDividerPLL, Parents: []string{"osc"}, Layout: divLayout}, ErrEmptyTable},
		{"inverted range", Descriptor{Name: "p", Kind: KindPeripheralClock, Parents: []string{"osc"},
			Output: rate.Range{Min: 10, Max: 5}}, ErrInvalidRange},
		{"changeable parent", Descriptor{Name: "g", Kind: KindGeneratedClock, Parents: []string{"osc"},
			Divisors: rate.Linear(1, 4), ChangeableParent: ptr(1)}, ErrBadChangeableParent},
		{"mux table length", Descriptor{Name: "m", Kind: KindMasterClock, Parents: []string{"osc"},
			Divisors: rate.Linear(1, 4), Mux: rate.MuxTable{0, 1}}, rate.ErrIndexOutOfRange},
		{"frac pll without multiplier", Descriptor{Name: "f", Kind: KindFractionalPLL, Parents: []string{"osc"}}, ErrBadLayout},
		{"overlapping fields", Descriptor{Name: "m", Kind: KindMasterClock, Parents: []string{"osc"}, Divisors: rate.Linear(1, 4),
			Layout: Layout{Mux: Field{Offset: 0, Shift: 0, Width: 4}, Div: Field{Offset: 0, Shift: 2, Width: 4}}}, ErrBadLayout},
		{"safe divisor not in table", Descriptor{Name: "d", Kind: KindDividerPLL, Parents: []string{"osc"},
			Divisors: rate.Linear(1, 4), Layout: divLayout, SafeDivisor: 8}, ErrBadSafeDivisor},
		{"safe divisor without field", Descriptor{Name: "d", Kind: KindDividerPLL, Parents: []string{"osc"},
			Divisors: rate.Linear(1, 4), SafeDivisor: 2}, ErrBadSafeDivisor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := registerErr(t, g, tt.desc)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Equal(t, 1, g.Len())
}

func TestRegisterDefaultsAndLookup(t *testing.T) {
	g := NewGraph()
	osc, err := g.Register(Descriptor{Name: "osc", Kind: KindOscillator, Rate: 32768,
		Export: &ExportSlot{Type: ExportCore, Index: 0}})
	require.NoError(t, err)
	p, err := g.Register(Descriptor{Name: "uart0", Kind: KindPeripheralClock, Parents: []string{"osc"},
		Export: &ExportSlot{Type: ExportPeripheral, Index: 24}})
	require.NoError(t, err)

	assert.Equal(t, 0, osc.ID())
	assert.Equal(t, 1, p.ID())
	assert.Equal(t, uint32(1), p.setting.Div, "pass-through clocks divide by one")
	assert.Equal(t, []*Node{p}, osc.consumers)

	got, ok := g.Lookup("uart0")
	require.True(t, ok)
	assert.Same(t, p, got)

	got, ok = g.ByExport(ExportSlot{Type: ExportPeripheral, Index: 24})
	require.True(t, ok)
	assert.Same(t, p, got)

	got, ok = g.ByID(0)
	require.True(t, ok)
	assert.Same(t, osc, got)

	_, ok = g.ByID(5)
	assert.False(t, ok)

	_, err = g.Register(Descriptor{Name: "uart1", Kind: KindPeripheralClock, Parents: []string{"osc"},
		Export: &ExportSlot{Type: ExportPeripheral, Index: 24}})
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestDescendantsFollowSelectedParents(t *testing.T) {
	g := NewGraph()
	mustRegister := func(d Descriptor) *Node {
		n, err := g.Register(d)
		require.NoError(t, err)
		return n
	}
	a := mustRegister(Descriptor{Name: "a", Kind: KindOscillator, Rate: 100})
	b := mustRegister(Descriptor{Name: "b", Kind: KindOscillator, Rate: 200})
	m := mustRegister(Descriptor{Name: "m", Kind: KindMasterClock, Parents: []string{"a", "b"}, Divisors: rate.Linear(1, 2)})
	x := mustRegister(Descriptor{Name: "x", Kind: KindPeripheralClock, Parents: []string{"m"}})
	y := mustRegister(Descriptor{Name: "y", Kind: KindPeripheralClock, Parents: []string{"a"}})
	z := mustRegister(Descriptor{Name: "z", Kind: KindSystemClock, Parents: []string{"x"}})

	assert.Equal(t, []*Node{m, y, x, z}, g.Descendants(a))
	assert.Empty(t, g.Descendants(b))

	m.setting.Parent = 1
	assert.Equal(t, []*Node{y}, g.Descendants(a))
	assert.Equal(t, []*Node{m, x, z}, g.Descendants(b))
}

func TestValidateDetectsSelfReference(t *testing.T) {
	g := NewGraph()
	_, err := g.Register(Descriptor{Name: "osc", Kind: KindOscillator, Rate: 1})
	require.NoError(t, err)
	_, err = g.Register(Descriptor{Name: "loop", Kind: KindPeripheralClock, Parents: []string{"loop"}})
	require.NoError(t, err)

	err = g.Validate()
	require.ErrorIs(t, err, ErrCycle)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "loop", ce.Node)
}

func TestValidateDetectsTransitiveCycle(t *testing.T) {
	g := NewGraph()
	mustRegister := func(d Descriptor) *Node {
		n, err := g.Register(d)
		require.NoError(t, err)
		return n
	}
	mustRegister(Descriptor{Name: "osc", Kind: KindOscillator, Rate: 1})
	b := mustRegister(Descriptor{Name: "b", Kind: KindPeripheralClock, Parents: []string{"osc"}})
	c := mustRegister(Descriptor{Name: "c", Kind: KindPeripheralClock, Parents: []string{"b"}})
	mustRegister(Descriptor{Name: "d", Kind: KindPeripheralClock, Parents: []string{"c"}})
	require.NoError(t, g.Validate())

	g.reparent(b, c)
	assert.ErrorIs(t, g.Validate(), ErrCycle)
}

func TestValidateDetectsOrphan(t *testing.T) {
	g := NewGraph()
	_, err := g.Register(Descriptor{Name: "osc", Kind: KindOscillator, Rate: 1})
	require.NoError(t, err)
	b, err := g.Register(Descriptor{Name: "b", Kind: KindPeripheralClock, Parents: []string{"osc"}})
	require.NoError(t, err)

	g.reparent(b)
	err = g.Validate()
	assert.ErrorIs(t, err, ErrOrphan)
	assert.False(t, errors.Is(err, ErrCycle))
}
