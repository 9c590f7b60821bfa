package clk

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/clkfabric/clktree/pkg/log"
	"github.com/clkfabric/clktree/pkg/regio"
)

// Config configures a Controller.
type Config struct {
	// Logger is used for operational logging. Defaults to discarding output.
	Logger *slog.Logger

	// EventLogger receives transition events. Defaults to log.NoopLogger.
	EventLogger log.Logger
}

// Controller owns a clock graph and serializes every change to it. Reads take
// the shared lock; transitions, registration and power operations hold the
// exclusive lock from start to finish.
type Controller struct {
	mu    sync.RWMutex
	bus   regio.Bus
	graph *Graph

	logger *slog.Logger
	events log.Logger
	now    func() time.Time

	subs    map[*Node][]subscription
	nextSub uint64

	suspended map[*Node]savedState
}

type savedState struct {
	setting Setting
	enabled bool
}

// NewController creates a controller over bus. A nil bus gets an in-memory
// register file.
func NewController(bus regio.Bus, cfg Config) *Controller {
	if bus == nil {
		bus = regio.NewMemBus(nil)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	events := cfg.EventLogger
	if events == nil {
		events = log.NoopLogger{}
	}
	return &Controller{
		bus:    bus,
		graph:  NewGraph(),
		logger: logger,
		events: events,
		now:    time.Now,
		subs:   make(map[*Node][]subscription),
	}
}

// Bus returns the register bus the controller drives.
func (c *Controller) Bus() regio.Bus {
	return c.bus
}

// RegisterNode adds a clock, reads its current setting from hardware and
// computes its rate. Parents must already be registered.
func (c *Controller) RegisterNode(d Descriptor) (*Node, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, err := c.graph.Register(d)
	if err != nil {
		return nil, err
	}
	if err := c.syncNode(n); err != nil {
		n.stale = true
		c.logger.Warn("clock registered without hardware state", "clock", n.name, "error", err)
	}
	n.recompute()

	c.logger.Debug("clock registered",
		"clock", n.name,
		"kind", n.kind.String(),
		"rate", n.rate,
		"enabled", n.enabled)
	return n, nil
}

// Validate checks the graph once all nodes are registered.
func (c *Controller) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.graph.Validate()
}

// Lookup finds a clock by name.
func (c *Controller) Lookup(name string) (*Node, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n, ok := c.graph.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return n, nil
}

// ByID finds a clock by registration index.
func (c *Controller) ByID(id int) (*Node, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n, ok := c.graph.ByID(id)
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return n, nil
}

// ByExport finds the clock a consumer references as (type, index).
func (c *Controller) ByExport(typ ExportType, index uint32) (*Node, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	slot := ExportSlot{Type: typ, Index: index}
	n, ok := c.graph.ByExport(slot)
	if !ok {
		return nil, fmt.Errorf("%w: export %s", ErrNotFound, slot)
	}
	return n, nil
}

// Nodes returns every clock in registration order.
func (c *Controller) Nodes() []*Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.graph.Nodes()
}

// Descendants returns the clocks fed by n, breadth first.
func (c *Controller) Descendants(n *Node) []*Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.graph.Descendants(n)
}

// GetRate returns the clock's rate. After a failed register write the rate
// is re-read from hardware instead of trusting the cache.
func (c *Controller) GetRate(n *Node) (uint64, error) {
	c.mu.RLock()
	if !n.stale {
		r := n.rate
		c.mu.RUnlock()
		return r, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.resync(); err != nil {
		return 0, err
	}
	return n.rate, nil
}

// Parent returns the selected parent, or nil for a root.
func (c *Controller) Parent(n *Node) *Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return n.parent()
}

// Setting returns the clock's current setting.
func (c *Controller) Setting(n *Node) Setting {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return n.setting
}

// Enabled reports whether the clock is ungated.
func (c *Controller) Enabled(n *Node) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return n.enabled
}

// Stale reports whether the clock's cached state awaits a hardware re-read.
func (c *Controller) Stale(n *Node) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return n.stale
}

// RoundRate returns the proposal SetRate would apply, without applying it.
func (c *Controller) RoundRate(n *Node, target uint64) (Proposal, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.solve(n, target, true)
}

// syncNode reads the register fields of n into its setting.
func (c *Controller) syncNode(n *Node) error {
	l := n.layout
	s := n.setting

	if l.Mux.Present() {
		v, err := c.readField(l.Mux)
		if err != nil {
			return err
		}
		if idx, ok := n.mux.Index(v); ok && idx < len(n.parents) {
			s.Parent = idx
		} else {
			c.logger.Warn("unknown mux selector", "clock", n.name, "selector", v)
		}
	}
	if l.Div.Present() {
		v, err := c.readField(l.Div)
		if err != nil {
			return err
		}
		if d, ok := n.divisors.ByCode(v); ok {
			s.Div = d.Value
		} else {
			c.logger.Warn("unknown divisor code", "clock", n.name, "code", v)
		}
	}
	if l.Mul.Present() {
		v, err := c.readField(l.Mul)
		if err != nil {
			return err
		}
		s.Mul = v + 1
	}
	if l.Frac.Present() {
		v, err := c.readField(l.Frac)
		if err != nil {
			return err
		}
		s.Frac = v
	}
	enabled := n.enabled
	if l.Gate.Present() {
		v, err := c.readField(l.Gate)
		if err != nil {
			return err
		}
		enabled = v != 0
	}

	n.setting = s
	n.enabled = enabled
	n.stale = false
	return nil
}

func (c *Controller) readField(f Field) (uint32, error) {
	reg, err := c.bus.Read(f.Offset)
	if err != nil {
		return 0, fmt.Errorf("%w: read %#x: %w", ErrIO, f.Offset, err)
	}
	return f.Extract(reg), nil
}

// resync re-reads every stale node and recomputes all rates.
func (c *Controller) resync() error {
	dirty := false
	for _, n := range c.graph.nodes {
		if !n.stale {
			continue
		}
		if err := c.syncNode(n); err != nil {
			return err
		}
		c.logger.Info("clock resynchronised from hardware", "clock", n.name, "setting", n.setting.String())
		dirty = true
	}
	if dirty {
		c.refreshAll()
	}
	return nil
}

// refreshAll recomputes every rate in registration order, which lists
// parents before children.
func (c *Controller) refreshAll() {
	for _, n := range c.graph.nodes {
		n.recompute()
	}
}

// refreshFrom recomputes n and everything it feeds.
func (c *Controller) refreshFrom(n *Node) {
	n.recompute()
	for _, d := range c.graph.Descendants(n) {
		d.recompute()
	}
}

func (c *Controller) markStale(nodes ...*Node) {
	for _, n := range nodes {
		n.stale = true
	}
}

func (c *Controller) begin(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.resync()
}
