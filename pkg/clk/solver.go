package clk

import (
	"fmt"
	"math"

	"github.com/clkfabric/clktree/pkg/rate"
)

// Proposal is a solver result: the setting that reaches Rate, and the
// parent retune it depends on, if any. Building a proposal never touches
// hardware.
type Proposal struct {
	Node    *Node
	Setting Setting
	Rate    uint64

	// ParentRate is the input rate the setting was computed against.
	ParentRate uint64

	// Retune asks the node's changeable parent to move to a new rate first.
	Retune *Proposal
}

func (p Proposal) String() string {
	s := fmt.Sprintf("%s -> %s (%s)", p.Node, rate.FormatHz(p.Rate), p.Setting)
	if p.Retune != nil {
		s += " after " + p.Retune.String()
	}
	return s
}

// solve dispatches to the node kind's solver. With retune false the
// changeable parent is left alone.
func (c *Controller) solve(n *Node, target uint64, retune bool) (Proposal, error) {
	var (
		p   Proposal
		err error
	)
	switch n.kind {
	case KindOscillator:
		return Proposal{}, fmt.Errorf("%w: %s", ErrUnsupported, n.kind)
	case KindFractionalPLL:
		p, err = solveFractional(n, target)
	default:
		p, err = c.solveDivided(n, target, retune)
	}
	if err != nil {
		return Proposal{}, err
	}

	// keep the current setting when it already gives the best rate
	if p.Retune == nil && p.Setting != n.setting && n.rate == p.Rate && n.checkSetting(n.setting, n.rate) == nil {
		p.Setting = n.setting
		p.ParentRate = n.inputFor(n.setting, currentRate)
	}
	return p, nil
}

func solveFractional(n *Node, target uint64) (Proposal, error) {
	in := n.inputFor(n.setting, currentRate)
	mul, frac, achieved, err := FractionalSearch(in, target, uint64(n.layout.Mul.Max())+1, n.layout.Frac.Width, n.input, n.output)
	if err != nil {
		return Proposal{}, err
	}
	s := n.setting
	s.Mul, s.Frac = mul, frac
	return Proposal{Node: n, Setting: s, Rate: achieved, ParentRate: in}, nil
}

// FractionalSearch finds mul and frac with in*(mul + frac/2^width) closest to
// target. It tries the two integer multipliers bracketing target/in, each
// with the floor and ceiling fraction of the remainder. Results must lie in
// output and in must lie in input; ties go to the lower rate.
func FractionalSearch(in, target, maxMul uint64, width uint8, input, output rate.Range) (mul, frac uint32, achieved uint64, err error) {
	if in == 0 || !input.Allows(in) {
		return 0, 0, 0, fmt.Errorf("%w: input %s outside %s", ErrOutOfRange, rate.FormatHz(in), input)
	}
	if !output.Allows(target) {
		return 0, 0, 0, fmt.Errorf("%w: target %s outside %s", ErrOutOfRange, rate.FormatHz(target), output)
	}

	// a setting holds the multiplier itself, not the register value
	maxMul = min(maxMul, math.MaxUint32)

	var (
		found  bool
		bestD  uint64
		fracLe = uint64(1) << width
	)
	consider := func(m, f uint64) {
		if m < 1 || m > maxMul || f >= fracLe {
			return
		}
		r := fracRate(in, uint32(m), uint32(f), width)
		if !output.Allows(r) {
			return
		}
		d := rate.Distance(r, target)
		if !found || d < bestD || (d == bestD && r < achieved) {
			found, bestD = true, d
			mul, frac, achieved = uint32(m), uint32(f), r
		}
	}

	q := target / in
	for _, m := range []uint64{q, q + 1} {
		if m*in >= target {
			consider(m, 0)
			continue
		}
		f := ((target - m*in) << width) / in
		consider(m, f)
		consider(m, f+1)
	}
	if !found {
		return 0, 0, 0, fmt.Errorf("%w: no multiplier reaches %s from %s", ErrOutOfRange, rate.FormatHz(target), rate.FormatHz(in))
	}
	return mul, frac, achieved, nil
}

// solveDivided searches parent x divisor for every kind that divides its
// input. Candidates keep the current parent rate; for the changeable parent
// the parent's own solver is also asked for target*div.
func (c *Controller) solveDivided(n *Node, target uint64, retune bool) (Proposal, error) {
	var (
		best  Proposal
		bestD uint64
		found bool
	)
	consider := func(p Proposal, strict bool) {
		d := rate.Distance(p.Rate, target)
		switch {
		case !found, d < bestD:
		case strict, d > bestD, p.Rate >= best.Rate:
			return
		}
		best, bestD, found = p, d, true
	}

	for idx, parent := range n.parents {
		pr := parent.rate
		if pr != 0 && n.input.Allows(pr) {
			for _, d := range n.divisors {
				r := pr / uint64(d.Value)
				if !n.output.Allows(r) {
					continue
				}
				s := n.setting
				s.Parent, s.Div = idx, d.Value
				consider(Proposal{Node: n, Setting: s, Rate: r, ParentRate: pr}, false)
			}
		}

		if !retune || n.changeable == nil || *n.changeable != idx {
			continue
		}
		for _, d := range n.divisors {
			if target > math.MaxUint64/uint64(d.Value) {
				continue
			}
			pp, err := c.solve(parent, target*uint64(d.Value), true)
			if err != nil || pp.Rate == parent.rate || !n.input.Allows(pp.Rate) {
				continue
			}
			r := pp.Rate / uint64(d.Value)
			if !n.output.Allows(r) {
				continue
			}
			s := n.setting
			s.Parent, s.Div = idx, d.Value
			consider(Proposal{Node: n, Setting: s, Rate: r, ParentRate: pp.Rate, Retune: &pp}, true)
		}
	}

	if !found {
		if n.kind == KindGeneratedClock {
			return Proposal{}, fmt.Errorf("%w: %s for %s under %s", ErrUnsatisfiable, n.name, rate.FormatHz(target), n.output)
		}
		return Proposal{}, fmt.Errorf("%w: %s cannot reach %s within %s", ErrOutOfRange, n.name, rate.FormatHz(target), n.output)
	}
	return best, nil
}

// checkSetting validates a setting and the rate it produces against the
// node's own constraints.
func (n *Node) checkSetting(s Setting, r uint64) error {
	p := n.parentAt(s.Parent)
	if len(n.parents) > 0 && p == nil {
		return fmt.Errorf("%w: parent index %d", rate.ErrIndexOutOfRange, s.Parent)
	}
	if p != nil && !n.input.Allows(p.rate) && n.kind != KindOscillator {
		return fmt.Errorf("%w: input %s outside %s", ErrOutOfRange, rate.FormatHz(p.rate), n.input)
	}
	if n.hasDivider() {
		if _, ok := n.divisors.ByValue(s.Div); !ok {
			return fmt.Errorf("%w: divisor %d not in table", ErrOutOfRange, s.Div)
		}
	}
	if n.kind == KindFractionalPLL {
		if s.Mul == 0 || s.Mul-1 > n.layout.Mul.Max() {
			return fmt.Errorf("%w: multiplier %d", ErrOutOfRange, s.Mul)
		}
		if n.layout.Frac.Width < 32 && s.Frac >= 1<<n.layout.Frac.Width {
			return fmt.Errorf("%w: fraction %d", ErrOutOfRange, s.Frac)
		}
	}
	if !n.output.Allows(r) {
		return fmt.Errorf("%w: %s outside %s", ErrOutOfRange, rate.FormatHz(r), n.output)
	}
	return nil
}
