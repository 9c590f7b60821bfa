package clk

import (
	"context"
	"fmt"
	"slices"

	"github.com/clkfabric/clktree/pkg/log"
	"github.com/clkfabric/clktree/pkg/rate"
	"github.com/clkfabric/clktree/pkg/regio"
)

// Enable ungates n, enabling disabled ancestors first. A clock whose rate is
// outside its range cannot be enabled.
func (c *Controller) Enable(ctx context.Context, n *Node) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(ctx); err != nil {
		return err
	}
	if n.enabled {
		return nil
	}

	tr := c.newTransition(log.OpEnable, n)
	var chain []*Node
	for m := n; m != nil && !m.enabled; m = m.parent() {
		if slices.Contains(chain, m) {
			break
		}
		chain = append(chain, m)
	}
	slices.Reverse(chain)

	tr.enter(StateProposed, log.PhaseEvent{NewRate: n.rate})
	for _, m := range chain {
		if !m.output.Allows(m.rate) {
			return tr.fail(StateProposed, fmt.Errorf("%w: %s runs at %s, outside %s", ErrOutOfRange, m.name, rate.FormatHz(m.rate), m.output))
		}
	}

	var writes []regio.Write
	for _, m := range chain {
		if w, ok := m.gateWrite(true); ok {
			writes = append(writes, w)
		}
	}
	if err := tr.write(log.StageGate, writes); err != nil {
		c.staleAfter(err, chain...)
		return tr.fail(StateCommitted, fmt.Errorf("%w: %w", ErrIO, err))
	}
	for _, m := range chain {
		m.enabled = true
	}
	tr.enter(StateDone, log.PhaseEvent{NewRate: n.rate})
	c.logger.Debug("clock enabled", "clock", n.name, "chain", len(chain))
	return nil
}

// Disable gates n. Critical clocks refuse with ErrCritical.
func (c *Controller) Disable(ctx context.Context, n *Node) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tr := c.newTransition(log.OpDisable, n)
	if n.Critical() {
		return tr.fail(StateProposed, fmt.Errorf("%w: %s", ErrCritical, n.name))
	}
	if err := c.begin(ctx); err != nil {
		return err
	}
	if !n.enabled {
		return nil
	}

	tr.enter(StateProposed, log.PhaseEvent{OldRate: n.rate})
	if w, ok := n.gateWrite(false); ok {
		if err := tr.write(log.StageGate, []regio.Write{w}); err != nil {
			c.staleAfter(err, n)
			return tr.fail(StateCommitted, fmt.Errorf("%w: %w", ErrIO, err))
		}
	}
	n.enabled = false
	tr.enter(StateDone, log.PhaseEvent{OldRate: n.rate})
	c.logger.Debug("clock disabled", "clock", n.name)
	return nil
}
