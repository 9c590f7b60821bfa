package clk

import (
	"errors"
	"fmt"

	"github.com/clkfabric/clktree/pkg/rate"
)

// Graph owns the clock nodes and their parent edges. Nodes must be
// registered after all of their parents. Graph does no locking; the
// Controller serializes access.
type Graph struct {
	nodes    []*Node
	byName   map[string]*Node
	byExport map[ExportSlot]*Node
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		byName:   make(map[string]*Node),
		byExport: make(map[ExportSlot]*Node),
	}
}

// Register validates d and adds it to the graph. A node may name itself as a
// parent; Validate reports the resulting cycle.
func (g *Graph) Register(d Descriptor) (*Node, error) {
	if d.Name == "" {
		return nil, &ConfigError{Err: errors.New("empty clock name")}
	}
	if _, ok := g.byName[d.Name]; ok {
		return nil, &ConfigError{Node: d.Name, Err: ErrDuplicateID}
	}
	if d.Export != nil {
		if other, ok := g.byExport[*d.Export]; ok {
			return nil, &ConfigError{Node: d.Name, Err: fmt.Errorf("%w: export %s already used by %s", ErrDuplicateID, d.Export, other.name)}
		}
	}

	n := &Node{
		id:         len(g.nodes),
		name:       d.Name,
		kind:       d.Kind,
		mux:        d.Mux,
		fixed:      d.Rate,
		input:      d.Input,
		output:     d.Output,
		divisors:   d.Divisors,
		layout:     d.Layout,
		flags:      d.Flags,
		safeDiv:    d.SafeDivisor,
		setting:    d.Initial,
		enabled:    d.Enabled || d.Flags.Has(FlagCritical),
		changeable: d.ChangeableParent,
	}
	if d.Export != nil {
		slot := *d.Export
		n.export = &slot
	}

	for _, name := range d.Parents {
		if name == d.Name {
			n.parents = append(n.parents, n)
			continue
		}
		p, ok := g.byName[name]
		if !ok {
			return nil, &ConfigError{Node: d.Name, Err: fmt.Errorf("%w %q", ErrUnknownParent, name)}
		}
		n.parents = append(n.parents, p)
	}

	if err := checkDescriptor(n); err != nil {
		return nil, &ConfigError{Node: d.Name, Err: err}
	}

	g.nodes = append(g.nodes, n)
	g.byName[n.name] = n
	if n.export != nil {
		g.byExport[*n.export] = n
	}
	for _, p := range n.parents {
		if p != n {
			p.consumers = append(p.consumers, n)
		}
	}
	return n, nil
}

func checkDescriptor(n *Node) error {
	switch {
	case n.kind > KindSystemClock:
		return fmt.Errorf("unknown kind %d", n.kind)
	case n.kind == KindOscillator:
		if n.fixed == 0 && len(n.parents) == 0 {
			return fmt.Errorf("%w: oscillator has neither rate nor parent", ErrOrphan)
		}
	case len(n.parents) == 0:
		return ErrOrphan
	}
	if len(n.parents) > 1 && !n.kind.muxed() {
		return fmt.Errorf("%s clocks take one parent, got %d", n.kind, len(n.parents))
	}
	if err := n.mux.Validate(len(n.parents)); err != nil {
		return fmt.Errorf("mux: %w", err)
	}
	if n.setting.Parent < 0 || (len(n.parents) > 0 && n.setting.Parent >= len(n.parents)) {
		return fmt.Errorf("%w: initial parent %d", rate.ErrIndexOutOfRange, n.setting.Parent)
	}

	for _, r := range []rate.Range{n.input, n.output} {
		if r.Max != 0 {
			if err := r.Validate(); err != nil {
				return err
			}
		}
	}

	if err := n.layout.validate(); err != nil {
		return err
	}

	switch n.kind {
	case KindFractionalPLL:
		if !n.layout.Mul.Present() {
			return fmt.Errorf("%w: fractional PLL needs a multiplier field", ErrBadLayout)
		}
		if n.layout.Frac.Width > 32 {
			return fmt.Errorf("%w: fraction wider than 32 bits", ErrBadLayout)
		}
	case KindDividerPLL, KindMasterClock, KindGeneratedClock, KindProgrammableClock:
		if err := n.divisors.Validate(); err != nil {
			return err
		}
	default:
		if len(n.divisors) == 0 {
			n.divisors = rate.Indexed(1)
		} else if err := n.divisors.Validate(); err != nil {
			return err
		}
	}

	if n.hasDivider() {
		if n.setting.Div == 0 {
			n.setting.Div = n.divisors[0].Value
			if _, ok := n.divisors.ByValue(1); ok {
				n.setting.Div = 1
			}
		}
		if _, ok := n.divisors.ByValue(n.setting.Div); !ok {
			return fmt.Errorf("initial divisor %d not in table", n.setting.Div)
		}
	}

	if n.changeable != nil && (*n.changeable < 0 || *n.changeable >= len(n.parents)) {
		return fmt.Errorf("%w: %d of %d parents", ErrBadChangeableParent, *n.changeable, len(n.parents))
	}
	if n.safeDiv != 0 {
		if !n.hasDivider() || !n.layout.Div.Present() {
			return fmt.Errorf("%w: %s has no divider field", ErrBadSafeDivisor, n.name)
		}
		if _, ok := n.divisors.ByValue(n.safeDiv); !ok {
			return fmt.Errorf("%w: %d not in divisor table", ErrBadSafeDivisor, n.safeDiv)
		}
	}
	return nil
}

// Lookup finds a node by name.
func (g *Graph) Lookup(name string) (*Node, bool) {
	n, ok := g.byName[name]
	return n, ok
}

// ByID finds a node by registration index.
func (g *Graph) ByID(id int) (*Node, bool) {
	if id < 0 || id >= len(g.nodes) {
		return nil, false
	}
	return g.nodes[id], true
}

// ByExport finds the node exported at slot.
func (g *Graph) ByExport(slot ExportSlot) (*Node, bool) {
	n, ok := g.byExport[slot]
	return n, ok
}

// Nodes returns all nodes in registration order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Len returns the number of registered nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Children returns the nodes currently fed by n.
func (g *Graph) Children(n *Node) []*Node {
	var out []*Node
	for _, c := range n.consumers {
		if c.parent() == n {
			out = append(out, c)
		}
	}
	return out
}

// Descendants returns every node whose rate derives from n through the
// currently selected parents, breadth first. Each node is listed after all
// of its ancestors on the path from n.
func (g *Graph) Descendants(n *Node) []*Node {
	var out []*Node
	seen := map[*Node]bool{n: true}
	queue := []*Node{n}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, c := range g.Children(cur) {
			if seen[c] {
				continue
			}
			seen[c] = true
			out = append(out, c)
			queue = append(queue, c)
		}
	}
	return out
}

// Validate checks the whole graph once construction is complete: no node may
// reach itself through any possible parent, and every root must be an
// oscillator with a fixed rate.
func (g *Graph) Validate() error {
	const (
		white = iota
		grey
		black
	)
	colour := make(map[*Node]int, len(g.nodes))

	var visit func(n *Node) *Node
	visit = func(n *Node) *Node {
		colour[n] = grey
		for _, p := range n.parents {
			switch colour[p] {
			case grey:
				return p
			case white:
				if c := visit(p); c != nil {
					return c
				}
			}
		}
		colour[n] = black
		return nil
	}

	for _, n := range g.nodes {
		if colour[n] != white {
			continue
		}
		if c := visit(n); c != nil {
			return &ConfigError{Node: c.name, Err: ErrCycle}
		}
	}

	for _, n := range g.nodes {
		if len(n.parents) == 0 && (n.kind != KindOscillator || n.fixed == 0) {
			return &ConfigError{Node: n.name, Err: ErrOrphan}
		}
	}
	return nil
}

// reparent replaces the possible parents of n. It exists so tests can build
// graphs that Register would refuse.
func (g *Graph) reparent(n *Node, parents ...*Node) {
	n.parents = parents
	n.setting.Parent = 0
	for _, p := range parents {
		p.consumers = append(p.consumers, n)
	}
}
