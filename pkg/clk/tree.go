package clk

import (
	"fmt"
	"io"
	"strings"

	"github.com/clkfabric/clktree/pkg/rate"
)

// Tree writes the clock tree as indented text, one clock per line, following
// the selected parents.
func (c *Controller) Tree(w io.Writer) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var walk func(n *Node, depth int) error
	walk = func(n *Node, depth int) error {
		state := "off"
		if n.enabled {
			state = "on"
		}
		line := fmt.Sprintf("%s%-*s %-14s %12s  %s", strings.Repeat("  ", depth), 28-2*depth, n.name, n.kind, rate.FormatHz(n.rate), state)
		if n.flags != 0 {
			line += " [" + n.flags.String() + "]"
		}
		if n.stale {
			line += " (stale)"
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
		for _, ch := range c.graph.Children(n) {
			if err := walk(ch, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	for _, n := range c.graph.nodes {
		if n.parent() != nil {
			continue
		}
		if err := walk(n, 0); err != nil {
			return err
		}
	}
	return nil
}
