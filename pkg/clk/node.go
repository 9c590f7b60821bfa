package clk

import (
	"github.com/clkfabric/clktree/pkg/rate"
)

// Descriptor is the static description of one clock, as produced by the
// descriptor loader.
type Descriptor struct {
	Name    string
	Kind    Kind
	Parents []string

	// Mux maps parent index to selector code; nil is the identity mapping.
	Mux rate.MuxTable

	Export *ExportSlot

	// Rate is the fixed output of an oscillator. An oscillator with a parent
	// and no rate passes the parent through.
	Rate uint64

	Input  rate.Range
	Output rate.Range

	Divisors rate.DivisorTable
	Layout   Layout
	Flags    Flags

	// ChangeableParent is the index of the one parent whose rate may be
	// retuned to reach a target on this node.
	ChangeableParent *int

	// SafeDivisor is applied while the upstream rate or the parent changes.
	// Zero means none.
	SafeDivisor uint32

	// Initial is the reset setting for controls without a register field.
	Initial Setting
	Enabled bool
}

// Node is a clock in the graph. Identity and constraints are immutable after
// registration; setting, rate and enable state belong to the Controller and
// are read through it.
type Node struct {
	id      int
	name    string
	kind    Kind
	export  *ExportSlot
	parents []*Node
	mux     rate.MuxTable

	fixed      uint64
	input      rate.Range
	output     rate.Range
	divisors   rate.DivisorTable
	layout     Layout
	flags      Flags
	changeable *int
	safeDiv    uint32

	// consumers lists every node that has this one as a possible parent.
	consumers []*Node

	setting Setting
	rate    uint64
	enabled bool
	stale   bool
}

// ID returns the registration index.
func (n *Node) ID() int { return n.id }

// Name returns the unique clock name.
func (n *Node) Name() string { return n.name }

// Kind returns the capability tag.
func (n *Node) Kind() Kind { return n.kind }

// Flags returns the node flags.
func (n *Node) Flags() Flags { return n.flags }

// Critical reports whether the node may never be gated.
func (n *Node) Critical() bool { return n.flags.Has(FlagCritical) }

// Export returns the export slot, if any.
func (n *Node) Export() (ExportSlot, bool) {
	if n.export == nil {
		return ExportSlot{}, false
	}
	return *n.export, true
}

// Parents returns the ordered list of possible parents.
func (n *Node) Parents() []*Node {
	out := make([]*Node, len(n.parents))
	copy(out, n.parents)
	return out
}

// Input returns the accepted input range.
func (n *Node) Input() rate.Range { return n.input }

// Output returns the output range or ceiling.
func (n *Node) Output() rate.Range { return n.output }

// Divisors returns the selectable divisors.
func (n *Node) Divisors() rate.DivisorTable { return n.divisors }

// Layout returns the register layout.
func (n *Node) Layout() Layout { return n.layout }

// ChangeableParent returns the parent index this node may retune.
func (n *Node) ChangeableParent() (int, bool) {
	if n.changeable == nil {
		return 0, false
	}
	return *n.changeable, true
}

// SafeDivisor returns the divisor used during risky transitions, or 0.
func (n *Node) SafeDivisor() uint32 { return n.safeDiv }

func (n *Node) String() string { return n.name }

func (n *Node) parentAt(i int) *Node {
	if i < 0 || i >= len(n.parents) {
		return nil
	}
	return n.parents[i]
}

func (n *Node) parent() *Node {
	return n.parentAt(n.setting.Parent)
}

// rateFor is the kind's exact output formula.
func (n *Node) rateFor(in uint64, s Setting) uint64 {
	switch n.kind {
	case KindOscillator:
		if n.fixed != 0 {
			return n.fixed
		}
		return in
	case KindFractionalPLL:
		return fracRate(in, s.Mul, s.Frac, n.layout.Frac.Width)
	default:
		if s.Div == 0 {
			return in
		}
		return in / uint64(s.Div)
	}
}

// inputFor returns the input rate a setting selects, using rateOf for parents.
func (n *Node) inputFor(s Setting, rateOf func(*Node) uint64) uint64 {
	p := n.parentAt(s.Parent)
	if p == nil {
		return 0
	}
	return rateOf(p)
}

func currentRate(n *Node) uint64 { return n.rate }

func (n *Node) recompute() {
	n.rate = n.rateFor(n.inputFor(n.setting, currentRate), n.setting)
}

// hasDivider reports whether the node divides its input.
func (n *Node) hasDivider() bool {
	switch n.kind {
	case KindOscillator, KindFractionalPLL:
		return false
	}
	return true
}
