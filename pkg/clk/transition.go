package clk

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/clkfabric/clktree/pkg/log"
	"github.com/clkfabric/clktree/pkg/rate"
	"github.com/clkfabric/clktree/pkg/regio"
)

// State is a transition state.
type State uint8

const (
	StateProposed State = iota
	StatePreNotified
	StateSafetyApplied
	StateCommitted
	StatePostNotified
	StateDone
	StateFailed
)

func (s State) String() string {
	return log.Phase(s).String()
}

// transition carries the event context of one request.
type transition struct {
	c    *Controller
	id   string
	op   log.Operation
	node *Node
}

func (c *Controller) newTransition(op log.Operation, n *Node) *transition {
	return &transition{c: c, id: uuid.NewString(), op: op, node: n}
}

func (t *transition) child(n *Node) *transition {
	return &transition{c: t.c, id: t.id, op: t.op, node: n}
}

func (t *transition) emit(e log.Event) {
	e.Timestamp = t.c.now()
	e.TransitionID = t.id
	e.Operation = t.op
	if t.node != nil {
		e.Node = t.node.name
	}
	t.c.events.Log(e)
}

func (t *transition) enter(s State, pe log.PhaseEvent) {
	pe.Phase = log.Phase(s)
	t.emit(log.Event{Category: log.CategoryPhase, Phase: &pe})
}

// fail records the failure and returns it wrapped in a TransitionError.
func (t *transition) fail(s State, err error) error {
	t.enter(StateFailed, log.PhaseEvent{Reason: err.Error()})
	t.emit(log.Event{
		Category: log.CategoryError,
		Error:    &log.ErrorEventData{Phase: log.Phase(s), Message: err.Error(), Context: t.op.String()},
	})
	t.c.logger.Debug("transition failed", "transition", t.id, "clock", nameOf(t.node), "phase", s.String(), "error", err)
	return &TransitionError{Node: nameOf(t.node), Phase: s, Err: err}
}

func (t *transition) write(stage log.WriteStage, writes []regio.Write) error {
	if len(writes) == 0 {
		return nil
	}
	err := regio.Apply(t.c.bus, writes)
	t.emit(log.Event{
		Category: log.CategoryWrite,
		Write:    &log.WriteEvent{Stage: stage, Writes: regio.Merge(writes), Failed: err != nil},
	})
	return err
}

// SetRate moves n as close to target as its constraints allow and returns
// the achieved rate. A zero target gates the clock.
func (c *Controller) SetRate(ctx context.Context, n *Node, target uint64) (uint64, error) {
	if target == 0 {
		if err := c.Disable(ctx, n); err != nil {
			return 0, err
		}
		return c.GetRate(n)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(ctx); err != nil {
		return 0, err
	}

	tr := c.newTransition(log.OpSetRate, n)
	p, err := c.solve(n, target, true)
	if err != nil {
		return 0, tr.fail(StateProposed, err)
	}

	err = c.apply(tr, p)
	if err != nil && p.Retune != nil && !errors.Is(err, ErrIO) {
		// the coupled parent refused; settle for what the current parents give
		c.logger.Info("parent retune refused, retrying without it",
			"clock", n.name, "parent", p.Retune.Node.name, "error", err)
		if p2, serr := c.solve(n, target, false); serr == nil {
			err = c.apply(c.newTransition(log.OpSetRate, n), p2)
		}
	}
	if err != nil {
		return 0, err
	}
	return n.rate, nil
}

// SetParent switches a multiplexed clock to the parent at index, keeping its
// divisor.
func (c *Controller) SetParent(ctx context.Context, n *Node, index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(ctx); err != nil {
		return err
	}

	tr := c.newTransition(log.OpSetParent, n)
	p := n.parentAt(index)
	if p == nil {
		return tr.fail(StateProposed, fmt.Errorf("%w: parent index %d of %d", rate.ErrIndexOutOfRange, index, len(n.parents)))
	}
	s := n.setting
	s.Parent = index
	return c.apply(tr, Proposal{Node: n, Setting: s, Rate: n.rateFor(p.rate, s), ParentRate: p.rate})
}

// step is a committed setting change a later failure may have to take back.
type step struct {
	tr   *transition
	node *Node
	prev Setting
}

// apply runs a proposal, including the parent retunes it depends on. When
// any part fails, every setting already committed along the retune chain is
// put back, most recent first.
func (c *Controller) apply(tr *transition, p Proposal) error {
	if p.Retune == nil {
		return c.run(tr, p)
	}
	var done []step
	if err := c.applyChain(tr, p, &done); err != nil {
		c.unwind(done)
		return err
	}
	return nil
}

func (c *Controller) applyChain(tr *transition, p Proposal, done *[]step) error {
	if p.Retune == nil {
		return c.commitStep(tr, p, done)
	}
	n := p.Node
	if err := n.admit(p.Setting, p.Rate); err != nil {
		return tr.fail(StateProposed, err)
	}

	parent := p.Retune.Node
	ptr := tr.child(parent)

	// A rising parent on an already-selected input gets the larger divisor
	// first, so the leaf never runs above both its old and new rate.
	if n.parent() == parent && p.Retune.Rate > parent.rate {
		if err := c.commitStep(tr, Proposal{Node: n, Setting: p.Setting, Rate: n.rateFor(parent.rate, p.Setting)}, done); err != nil {
			return err
		}
		return c.applyChain(ptr, *p.Retune, done)
	}

	if err := c.applyChain(ptr, *p.Retune, done); err != nil {
		return err
	}
	p.Rate = n.rateFor(parent.rate, p.Setting)
	return c.commitStep(tr, p, done)
}

// commitStep runs one node and records its previous setting if it moved.
// A node that fails mid-commit is left to the stale handling in run.
func (c *Controller) commitStep(tr *transition, p Proposal, done *[]step) error {
	prev := p.Node.setting
	if err := c.run(tr, p); err != nil {
		return err
	}
	if p.Node.setting != prev {
		*done = append(*done, step{tr: tr, node: p.Node, prev: prev})
	}
	return nil
}

func (c *Controller) unwind(done []step) {
	for i := len(done) - 1; i >= 0; i-- {
		c.revert(done[i].tr, done[i].node, done[i].prev)
	}
}

// revert puts n back on a setting after a later step of a coupled change
// failed. It is best effort: the original error is what the caller sees.
func (c *Controller) revert(tr *transition, n *Node, s Setting) {
	err := c.run(tr, Proposal{Node: n, Setting: s, Rate: n.rateFor(n.inputFor(s, currentRate), s)})
	if err != nil {
		c.logger.Warn("could not revert coupled change", "clock", n.name, "error", err)
	}
}

// propose records the Proposed state and admits the setting.
func (c *Controller) propose(tr *transition, s Setting, r uint64) error {
	n := tr.node
	tr.enter(StateProposed, log.PhaseEvent{
		OldRate:   n.rate,
		NewRate:   r,
		OldParent: nameOf(n.parent()),
		NewParent: nameOf(n.parentAt(s.Parent)),
	})
	return n.admit(s, r)
}

// admit checks a setting against the node's constraints and gate flags.
func (n *Node) admit(s Setting, r uint64) error {
	if err := n.checkSetting(s, r); err != nil {
		return err
	}
	if n.enabled {
		if n.flags.Has(FlagRateChangeGate) && r != n.rate {
			return fmt.Errorf("%w: rate change on %s", ErrGateRequired, n.name)
		}
		if n.flags.Has(FlagParentChangeGate) && s.Parent != n.setting.Parent {
			return fmt.Errorf("%w: parent change on %s", ErrGateRequired, n.name)
		}
	}
	return nil
}

// forecast is what one affected clock will see.
type forecast struct {
	node       *Node
	old        uint64
	transients []uint64
	final      uint64
}

// plan is the precomputed shape of a transition.
type plan struct {
	forecasts []forecast
	safe      map[*Node]uint32
	safety    []regio.Write
	commit    []regio.Write
	restore   []regio.Write
	rollback  []regio.Write
}

// run drives one node through the state machine.
func (c *Controller) run(tr *transition, p Proposal) error {
	n := p.Node
	from, to := n.setting, p.Setting
	newRate := n.rateFor(n.inputFor(to, currentRate), to)

	if err := c.propose(tr, to, newRate); err != nil {
		return tr.fail(StateProposed, err)
	}
	if from == to && newRate == n.rate {
		tr.enter(StateDone, log.PhaseEvent{OldRate: n.rate, NewRate: n.rate, Reason: "unchanged"})
		return nil
	}

	pl, err := c.plan(n, to)
	if err != nil {
		return tr.fail(StateProposed, err)
	}

	if err := c.preNotify(tr, pl); err != nil {
		return tr.fail(StatePreNotified, err)
	}
	tr.enter(StatePreNotified, log.PhaseEvent{OldRate: n.rate, NewRate: newRate})

	if err := tr.write(log.StageSafety, pl.safety); err != nil {
		c.staleAfter(err, keys(pl.safe)...)
		return tr.fail(StateSafetyApplied, fmt.Errorf("%w: %w", ErrIO, err))
	}
	tr.enter(StateSafetyApplied, log.PhaseEvent{})

	if err := tr.write(log.StageCommit, pl.commit); err != nil {
		if rerr := tr.write(log.StageRollback, pl.rollback); rerr != nil {
			c.logger.Error("rollback of safe divisors failed", "clock", n.name, "error", rerr)
		}
		c.markStale(append([]*Node{n}, c.graph.Descendants(n)...)...)
		return tr.fail(StateCommitted, fmt.Errorf("%w: %w", ErrIO, err))
	}

	oldRate := n.rate
	n.setting = to
	tr.enter(StateCommitted, log.PhaseEvent{
		OldRate:   oldRate,
		NewRate:   newRate,
		OldParent: nameOf(n.parentAt(from.Parent)),
		NewParent: nameOf(n.parent()),
	})

	restoreErr := tr.write(log.StageRestore, pl.restore)
	c.refreshFrom(n)
	if restoreErr != nil {
		// the new setting is in hardware but some dividers may still sit on
		// their safe value
		c.markStale(keys(pl.safe)...)
		c.markStale(c.graph.Descendants(n)...)
		err := fmt.Errorf("%w: %w", ErrIO, restoreErr)
		tr.emit(log.Event{
			Category: log.CategoryError,
			Error:    &log.ErrorEventData{Phase: log.PhaseCommitted, Message: err.Error(), Context: "restore safe divisors"},
		})
		return &TransitionError{Node: n.name, Phase: StatePostNotified, Err: err}
	}

	c.postNotify(pl)
	tr.enter(StatePostNotified, log.PhaseEvent{OldRate: oldRate, NewRate: n.rate})
	tr.enter(StateDone, log.PhaseEvent{OldRate: oldRate, NewRate: n.rate})

	c.logger.Debug("clock transition done",
		"transition", tr.id,
		"clock", n.name,
		"old_rate", oldRate,
		"new_rate", n.rate,
		"affected", len(pl.forecasts))
	return nil
}

// plan simulates the transition of n to setting to. Safe divisors go on the
// node itself when its parent changes, and on every descendant whose input
// rate changes. The forecast for each clock lists the rate after the safe
// divisors go in, after the commit, and after they are lifted.
func (c *Controller) plan(n *Node, to Setting) (*plan, error) {
	desc := c.graph.Descendants(n)
	final := c.simulate(n, to, desc, nil)

	pl := &plan{safe: make(map[*Node]uint32)}
	if n.safeDiv != 0 && to.Parent != n.setting.Parent {
		pl.safe[n] = n.safeDiv
	}
	for _, d := range desc {
		if d.safeDiv == 0 || d.safeDiv == d.setting.Div {
			continue
		}
		p := d.parent()
		if final[p] != p.rate {
			pl.safe[d] = d.safeDiv
		}
	}

	var phases [2]map[*Node]uint64
	if len(pl.safe) > 0 {
		phases[0] = c.simulate(n, n.setting, desc, pl.safe)
		phases[1] = c.simulate(n, to, desc, pl.safe)
	}

	for _, m := range append([]*Node{n}, desc...) {
		f := forecast{node: m, old: m.rate, final: final[m]}
		last := f.old
		for _, ph := range phases {
			if ph == nil {
				continue
			}
			if r := ph[m]; r != last {
				f.transients = append(f.transients, r)
				last = r
			}
		}
		if len(f.transients) > 0 && f.transients[len(f.transients)-1] == f.final {
			f.transients = f.transients[:len(f.transients)-1]
		}
		if f.final != f.old || len(f.transients) > 0 {
			pl.forecasts = append(pl.forecasts, f)
		}
	}

	// register groups
	for _, m := range sortedByID(keys(pl.safe)) {
		sd := pl.safe[m]
		cur := m.setting.Div
		if cur != sd {
			w, err := m.divWrite(sd)
			if err != nil {
				return nil, err
			}
			pl.safety = append(pl.safety, w)
			back, err := m.divWrite(cur)
			if err != nil {
				return nil, err
			}
			pl.rollback = append(pl.rollback, back)
		}
		want := m.setting.Div
		if m == n {
			want = to.Div
		}
		if want != sd {
			w, err := m.divWrite(want)
			if err != nil {
				return nil, err
			}
			pl.restore = append(pl.restore, w)
		}
	}

	from, target := n.setting, to
	if sd, ok := pl.safe[n]; ok {
		// the divider is handled by the safety and restore groups
		from.Div, target.Div = sd, sd
	}
	commit, err := n.settingWrites(from, target, false)
	if err != nil {
		return nil, err
	}
	pl.commit = commit
	slices.Reverse(pl.rollback)
	return pl, nil
}

// simulate computes the rates of n and its descendants for a setting of n,
// with optional divisor overrides.
func (c *Controller) simulate(n *Node, s Setting, desc []*Node, safe map[*Node]uint32) map[*Node]uint64 {
	rates := make(map[*Node]uint64, len(desc)+1)
	rateOf := func(m *Node) uint64 {
		if r, ok := rates[m]; ok {
			return r
		}
		return m.rate
	}
	eff := func(m *Node, s Setting) Setting {
		if d, ok := safe[m]; ok {
			s.Div = d
		}
		return s
	}

	s = eff(n, s)
	rates[n] = n.rateFor(n.inputFor(s, rateOf), s)
	for _, d := range desc {
		ds := eff(d, d.setting)
		rates[d] = d.rateFor(d.inputFor(ds, rateOf), ds)
	}
	return rates
}

// preNotify offers every forecast in order. Enabled clocks veto any rate
// outside their range; subscribers may veto for their own reasons.
func (c *Controller) preNotify(tr *transition, pl *plan) error {
	for _, f := range pl.forecasts {
		fe := &log.ForecastEvent{
			Descendant: f.node.name,
			OldRate:    f.old,
			NewRate:    f.final,
			Transients: f.transients,
		}
		rc := RateChange{Clock: f.node, OldRate: f.old, NewRate: f.final, Transients: f.transients}

		var veto error
		if f.node.enabled {
			for _, r := range rc.Rates() {
				if !f.node.output.Allows(r) {
					veto = &VetoError{Descendant: f.node.name, Rate: r, Reason: "outside " + f.node.output.String()}
					break
				}
			}
		}
		if veto == nil {
			for _, s := range c.subs[f.node] {
				if err := s.notifier.PreRateChange(rc); err != nil {
					veto = &VetoError{Descendant: f.node.name, Rate: f.final, Reason: err.Error()}
					break
				}
			}
		}

		if veto != nil {
			fe.Vetoed = true
			fe.Reason = veto.Error()
		}
		tr.emit(log.Event{Category: log.CategoryForecast, Forecast: fe})
		if veto != nil {
			return veto
		}
	}
	return nil
}

func (c *Controller) postNotify(pl *plan) {
	for _, f := range pl.forecasts {
		rc := RateChange{Clock: f.node, OldRate: f.old, NewRate: f.node.rate, Transients: f.transients}
		for _, s := range c.subs[f.node] {
			s.notifier.PostRateChange(rc)
		}
	}
}

// staleAfter marks nodes stale unless the bus restored every register.
func (c *Controller) staleAfter(err error, nodes ...*Node) {
	var ae *regio.ApplyError
	if errors.As(err, &ae) && ae.RolledBack {
		return
	}
	c.markStale(nodes...)
}

// settingWrites encodes the fields that differ between two settings, or all
// of them when full is set.
func (n *Node) settingWrites(from, to Setting, full bool) ([]regio.Write, error) {
	var out []regio.Write
	l := n.layout

	if l.Mux.Present() && (full || from.Parent != to.Parent) {
		code, err := n.mux.Selector(to.Parent)
		if err != nil {
			return nil, err
		}
		w, err := l.Mux.Set(code)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	if l.Div.Present() && (full || from.Div != to.Div) {
		w, err := n.divWrite(to.Div)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	if l.Mul.Present() && to.Mul != 0 && (full || from.Mul != to.Mul) {
		w, err := l.Mul.Set(to.Mul - 1)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	if l.Frac.Present() && (full || from.Frac != to.Frac) {
		w, err := l.Frac.Set(to.Frac)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

func (n *Node) divWrite(div uint32) (regio.Write, error) {
	if !n.layout.Div.Present() {
		return regio.Write{}, fmt.Errorf("%w: %s has no divider field", ErrBadLayout, n.name)
	}
	d, ok := n.divisors.ByValue(div)
	if !ok {
		return regio.Write{}, fmt.Errorf("%w: divisor %d not in table of %s", ErrOutOfRange, div, n.name)
	}
	return n.layout.Div.Set(d.Code)
}

func (n *Node) gateWrite(on bool) (regio.Write, bool) {
	if !n.layout.Gate.Present() {
		return regio.Write{}, false
	}
	var v uint32
	if on {
		v = 1
	}
	w, _ := n.layout.Gate.Set(v)
	return w, true
}

func nameOf(n *Node) string {
	if n == nil {
		return ""
	}
	return n.name
}

func keys(m map[*Node]uint32) []*Node {
	out := make([]*Node, 0, len(m))
	for n := range m {
		out = append(out, n)
	}
	return out
}

func sortedByID(nodes []*Node) []*Node {
	slices.SortFunc(nodes, func(a, b *Node) int { return a.id - b.id })
	return nodes
}
