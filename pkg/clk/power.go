package clk

import (
	"context"
	"errors"
	"fmt"

	"github.com/clkfabric/clktree/pkg/log"
)

// Suspend records the committed setting of every clock flagged
// FlagRestoreOnResume before the platform enters a mode that loses it.
func (c *Controller) Suspend(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(ctx); err != nil {
		return err
	}

	tr := c.newTransition(log.OpSuspend, nil)
	saved := make(map[*Node]savedState)
	for _, n := range c.graph.nodes {
		if n.flags.Has(FlagRestoreOnResume) {
			saved[n] = savedState{setting: n.setting, enabled: n.enabled}
		}
	}
	c.suspended = saved
	tr.enter(StateDone, log.PhaseEvent{Reason: fmt.Sprintf("%d clocks saved", len(saved))})
	c.logger.Info("clock tree suspended", "saved", len(saved))
	return nil
}

// Resume re-programs the clocks saved by Suspend, parents first. Each clock
// is written as one register group; failures mark that clock stale and the
// remaining clocks are still restored.
func (c *Controller) Resume(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.suspended == nil {
		return nil
	}

	tr := c.newTransition(log.OpResume, nil)
	var errs []error
	for _, n := range c.graph.nodes {
		st, ok := c.suspended[n]
		if !ok {
			continue
		}
		if err := c.program(tr.child(n), n, st.setting, st.enabled); err != nil {
			errs = append(errs, err)
		}
	}
	c.suspended = nil
	c.refreshAll()

	if err := errors.Join(errs...); err != nil {
		return tr.fail(StateCommitted, fmt.Errorf("%w: %w", ErrIO, err))
	}
	tr.enter(StateDone, log.PhaseEvent{})
	c.logger.Info("clock tree resumed")
	return nil
}

// program writes a complete setting and gate state without negotiation.
// Used where the hardware is known to have lost its state.
func (c *Controller) program(tr *transition, n *Node, s Setting, enabled bool) error {
	writes, err := n.settingWrites(Setting{}, s, true)
	if err != nil {
		return fmt.Errorf("%s: %w", n.name, err)
	}
	if w, ok := n.gateWrite(enabled); ok {
		writes = append(writes, w)
	}
	if err := tr.write(log.StageCommit, writes); err != nil {
		n.stale = true
		return fmt.Errorf("%s: %w", n.name, err)
	}
	n.setting = s
	n.enabled = enabled
	n.stale = false
	return nil
}

// Suspended reports whether Suspend has saved state that Resume has not yet
// applied.
func (c *Controller) Suspended() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.suspended != nil
}
