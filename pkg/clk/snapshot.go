package clk

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/clkfabric/clktree/pkg/log"
)

// Snapshot is the committed state of a clock tree.
type Snapshot struct {
	// Fingerprint identifies the topology the snapshot was taken from.
	Fingerprint string       `json:"fingerprint"`
	Clocks      []ClockState `json:"clocks"`
}

// ClockState is the saved state of one clock.
type ClockState struct {
	Name    string  `json:"name"`
	Setting Setting `json:"setting"`
	Enabled bool    `json:"enabled"`
	Rate    uint64  `json:"rate"`
}

// Fingerprint hashes the names, kinds and possible parents of every clock in
// registration order.
func (c *Controller) Fingerprint() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fingerprint()
}

func (c *Controller) fingerprint() string {
	h, _ := blake2b.New256(nil)
	for _, n := range c.graph.nodes {
		names := make([]string, len(n.parents))
		for i, p := range n.parents {
			names[i] = p.name
		}
		fmt.Fprintf(h, "%s|%s|%s\n", n.name, n.kind, strings.Join(names, ","))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Snapshot captures the current state of every clock.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{Fingerprint: c.fingerprint()}
	for _, n := range c.graph.nodes {
		snap.Clocks = append(snap.Clocks, ClockState{
			Name:    n.name,
			Setting: n.setting,
			Enabled: n.enabled,
			Rate:    n.rate,
		})
	}
	return snap
}

// Restore programs a snapshot taken from the same topology. Clocks are
// written parents first without negotiation, so Restore is meant for boot
// before consumers are running.
func (c *Controller) Restore(ctx context.Context, snap Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	tr := c.newTransition(log.OpRestore, nil)
	if snap.Fingerprint != c.fingerprint() {
		return tr.fail(StateProposed, ErrTopology)
	}

	type pending struct {
		node    *Node
		setting Setting
		enabled bool
	}
	states := make(map[string]ClockState, len(snap.Clocks))
	for _, cs := range snap.Clocks {
		states[cs.Name] = cs
	}

	// validate everything before the first write
	var todo []pending
	for _, n := range c.graph.nodes {
		cs, ok := states[n.name]
		if !ok {
			continue
		}
		enabled := cs.Enabled || n.Critical()
		if cs.Setting == n.setting && enabled == n.enabled {
			continue
		}
		if err := n.checkStored(cs.Setting); err != nil {
			return tr.fail(StateProposed, err)
		}
		todo = append(todo, pending{node: n, setting: cs.Setting, enabled: enabled})
	}

	for _, p := range todo {
		if err := c.program(tr.child(p.node), p.node, p.setting, p.enabled); err != nil {
			c.refreshAll()
			return tr.fail(StateCommitted, fmt.Errorf("%w: %w", ErrIO, err))
		}
	}
	c.refreshAll()
	tr.enter(StateDone, log.PhaseEvent{Reason: fmt.Sprintf("%d clocks", len(snap.Clocks))})
	return nil
}

// checkStored verifies a stored setting is encodable for n.
func (n *Node) checkStored(s Setting) error {
	if len(n.parents) > 0 && n.parentAt(s.Parent) == nil {
		return &ConfigError{Node: n.name, Err: fmt.Errorf("%w: stored parent %d", ErrTopology, s.Parent)}
	}
	if n.hasDivider() {
		if _, ok := n.divisors.ByValue(s.Div); !ok {
			return &ConfigError{Node: n.name, Err: fmt.Errorf("%w: stored divisor %d", ErrTopology, s.Div)}
		}
	}
	if n.kind == KindFractionalPLL {
		if s.Mul == 0 || s.Mul-1 > n.layout.Mul.Max() || (n.layout.Frac.Width < 32 && s.Frac >= 1<<n.layout.Frac.Width) {
			return &ConfigError{Node: n.name, Err: fmt.Errorf("%w: stored multiplier %d+%d", ErrTopology, s.Mul, s.Frac)}
		}
	}
	return nil
}
