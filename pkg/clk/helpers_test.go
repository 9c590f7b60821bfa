package clk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clkfabric/clktree/pkg/log"
	"github.com/clkfabric/clktree/pkg/rate"
	"github.com/clkfabric/clktree/pkg/regio"
)

// Register map of the test tree.
const (
	regPLLCtrl0 = 0x100 // divider PLL: div 7:0, gate 29
	regPLLCtrl1 = 0x104 // fractional PLL: mul 31:24, frac 21:0
	regMCR      = 0x28  // master clock: css 1:0, div 10:8
	regGCK      = 0x400 // generated clock: css 12:8, div 27:20
)

var (
	fracLayout = Layout{
		Mul:  Field{Offset: regPLLCtrl1, Shift: 24, Width: 8},
		Frac: Field{Offset: regPLLCtrl1, Shift: 0, Width: 22},
	}
	divLayout = Layout{
		Div: Field{Offset: regPLLCtrl0, Shift: 0, Width: 8},
	}
	mcrLayout = Layout{
		Mux: Field{Offset: regMCR, Shift: 0, Width: 2},
		Div: Field{Offset: regMCR, Shift: 8, Width: 3},
	}
	gckLayout = Layout{
		Mux: Field{Offset: regGCK, Shift: 8, Width: 5},
		Div: Field{Offset: regGCK, Shift: 20, Width: 8},
	}
)

func ptr[T any](v T) *T { return &v }

type testTree struct {
	ctrl   *Controller
	bus    *regio.MemBus
	events *log.MemoryLogger
}

func newTestTree(t *testing.T, reset map[uint32]uint32) *testTree {
	t.Helper()
	bus := regio.NewMemBus(reset)
	events := log.NewMemoryLogger(0)
	return &testTree{
		ctrl:   NewController(bus, Config{EventLogger: events}),
		bus:    bus,
		events: events,
	}
}

func (tt *testTree) add(t *testing.T, d Descriptor) *Node {
	t.Helper()
	n, err := tt.ctrl.RegisterNode(d)
	require.NoError(t, err)
	return n
}

func (tt *testTree) rate(t *testing.T, n *Node) uint64 {
	t.Helper()
	r, err := tt.ctrl.GetRate(n)
	require.NoError(t, err)
	return r
}

// pllTree is osc24 -> pll (600 MHz) -> pll_div.
type pllTree struct {
	*testTree
	osc, pll, div *Node
}

func newPLLTree(t *testing.T, reset map[uint32]uint32, divDesc Descriptor) *pllTree {
	t.Helper()
	if reset == nil {
		reset = map[uint32]uint32{}
	}
	if _, ok := reset[regPLLCtrl1]; !ok {
		reset[regPLLCtrl1] = 24 << 24 // mul 25
	}
	tt := newTestTree(t, reset)
	pt := &pllTree{testTree: tt}
	pt.osc = tt.add(t, Descriptor{Name: "osc24", Kind: KindOscillator, Rate: 24 * rate.MHz})
	pt.pll = tt.add(t, Descriptor{
		Name:    "pll",
		Kind:    KindFractionalPLL,
		Parents: []string{"osc24"},
		Input:   rate.Range{Min: 12 * rate.MHz, Max: 50 * rate.MHz},
		Output:  rate.Range{Min: 400 * rate.MHz, Max: 1200 * rate.MHz},
		Layout:  fracLayout,
		Flags:   FlagRestoreOnResume,
	})
	divDesc.Name = "pll_div"
	divDesc.Kind = KindDividerPLL
	divDesc.Parents = []string{"pll"}
	divDesc.Layout = divLayout
	if divDesc.Divisors == nil {
		divDesc.Divisors = rate.Linear(1, 256)
	}
	pt.div = tt.add(t, divDesc)
	return pt
}

var bg = context.Background()
