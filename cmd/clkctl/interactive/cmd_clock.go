package interactive

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/clkfabric/clktree/pkg/clk"
	"github.com/clkfabric/clktree/pkg/descriptor"
	"github.com/clkfabric/clktree/pkg/rate"
)

func (s *Shell) cmdTree() {
	if err := s.ctrl.Tree(s.out); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
	}
}

// cmdList handles the list command.
// Usage:
//   - list          - every clock in registration order
//   - list <kind>   - only clocks of one kind
func (s *Shell) cmdList(args []string) {
	var (
		filter clk.Kind
		only   bool
	)
	if len(args) > 0 {
		k, err := clk.ParseKind(args[0])
		if err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
			return
		}
		filter, only = k, true
	}

	fmt.Fprintf(s.out, "%-4s %-28s %-14s %12s  %-3s %s\n", "ID", "NAME", "KIND", "RATE", "EN", "PARENT")
	count := 0
	for _, n := range s.ctrl.Nodes() {
		if only && n.Kind() != filter {
			continue
		}
		r, err := s.ctrl.GetRate(n)
		rs := rate.FormatHz(r)
		if err != nil {
			rs = "?"
		}
		parent := "-"
		if p := s.ctrl.Parent(n); p != nil {
			parent = p.Name()
		}
		fmt.Fprintf(s.out, "%-4d %-28s %-14s %12s  %-3s %s\n", n.ID(), n.Name(), n.Kind(), rs, onOff(s.ctrl.Enabled(n)), parent)
		count++
	}
	fmt.Fprintf(s.out, "%d clocks\n", count)
}

func (s *Shell) cmdInfo(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.out, "Usage: info <clock>")
		return
	}
	n := s.lookup(args[0])
	if n == nil {
		return
	}

	r, err := s.ctrl.GetRate(n)
	if err != nil {
		fmt.Fprintf(s.out, "Warning: %v\n", err)
	}

	fmt.Fprintf(s.out, "%s (#%d, %s)\n", n.Name(), n.ID(), n.Kind())
	fmt.Fprintf(s.out, "  Rate:     %s (%d Hz)\n", rate.FormatHz(r), r)
	fmt.Fprintf(s.out, "  Enabled:  %s\n", onOff(s.ctrl.Enabled(n)))
	if s.ctrl.Stale(n) {
		fmt.Fprintln(s.out, "  Stale:    yes")
	}
	fmt.Fprintf(s.out, "  Setting:  %s\n", s.ctrl.Setting(n))
	if slot, ok := n.Export(); ok {
		fmt.Fprintf(s.out, "  Export:   %s\n", slot)
	}
	if n.Flags() != 0 {
		fmt.Fprintf(s.out, "  Flags:    %s\n", n.Flags())
	}
	if !n.Input().IsZero() {
		fmt.Fprintf(s.out, "  Input:    %s\n", n.Input())
	}
	if !n.Output().IsZero() {
		fmt.Fprintf(s.out, "  Output:   %s\n", n.Output())
	}
	if d := n.Divisors(); len(d) > 1 {
		fmt.Fprintf(s.out, "  Divisors: %d values, max %d\n", len(d), d.Max())
	}
	if sd := n.SafeDivisor(); sd != 0 {
		fmt.Fprintf(s.out, "  Safe div: %d\n", sd)
	}

	parents := n.Parents()
	if len(parents) == 0 {
		return
	}
	changeable, hasChangeable := n.ChangeableParent()
	current := s.ctrl.Setting(n).Parent
	fmt.Fprintln(s.out, "  Parents:")
	for i, p := range parents {
		marker := " "
		if i == current {
			marker = "*"
		}
		note := ""
		if hasChangeable && i == changeable {
			note = " (changeable)"
		}
		fmt.Fprintf(s.out, "   %s %d: %s%s\n", marker, i, p.Name(), note)
	}
}

func (s *Shell) cmdGet(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.out, "Usage: get <clock>")
		return
	}
	n := s.lookup(args[0])
	if n == nil {
		return
	}
	r, err := s.ctrl.GetRate(n)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "%s: %s (%d Hz)\n", n.Name(), rate.FormatHz(r), r)
}

func (s *Shell) cmdExport(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.out, "Usage: export <type> <index>")
		return
	}
	typ, err := clk.ParseExportType(strings.ToLower(args[0]))
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	idx, err := strconv.ParseUint(args[1], 0, 32)
	if err != nil {
		fmt.Fprintf(s.out, "Error: invalid index %q\n", args[1])
		return
	}
	n, err := s.ctrl.ByExport(typ, uint32(idx))
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "%s/%d -> %s\n", typ, idx, n.Name())
}

// parseTarget reads a clock and a rate argument.
func (s *Shell) parseTarget(cmd string, args []string) (*clk.Node, uint64, bool) {
	if len(args) < 2 {
		fmt.Fprintf(s.out, "Usage: %s <clock> <rate>\n", cmd)
		return nil, 0, false
	}
	n := s.lookup(args[0])
	if n == nil {
		return nil, 0, false
	}
	hz, err := descriptor.ParseHz(args[1])
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return nil, 0, false
	}
	return n, uint64(hz), true
}

func (s *Shell) cmdRound(args []string) {
	n, target, ok := s.parseTarget("round", args)
	if !ok {
		return
	}
	p, err := s.ctrl.RoundRate(n, target)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(s.out, p)
	if d := rate.Distance(p.Rate, target); d != 0 {
		fmt.Fprintf(s.out, "  off by %d Hz\n", d)
	}
}

func (s *Shell) cmdSet(ctx context.Context, args []string) {
	n, target, ok := s.parseTarget("set", args)
	if !ok {
		return
	}
	before, _ := s.ctrl.GetRate(n)
	got, err := s.ctrl.SetRate(ctx, n, target)
	if err != nil {
		s.printError(err)
		return
	}
	fmt.Fprintf(s.out, "%s: %s -> %s\n", n.Name(), rate.FormatHz(before), rate.FormatHz(got))
}

// cmdParent handles the parent command. The parent may be given by index or
// by name.
func (s *Shell) cmdParent(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.out, "Usage: parent <clock> <index|name>")
		return
	}
	n := s.lookup(args[0])
	if n == nil {
		return
	}

	idx := -1
	if i, err := strconv.Atoi(args[1]); err == nil {
		idx = i
	} else {
		for i, p := range n.Parents() {
			if p.Name() == args[1] {
				idx = i
				break
			}
		}
		if idx < 0 {
			fmt.Fprintf(s.out, "Error: %s is not a parent of %s\n", args[1], n.Name())
			return
		}
	}

	if err := s.ctrl.SetParent(ctx, n, idx); err != nil {
		s.printError(err)
		return
	}
	r, _ := s.ctrl.GetRate(n)
	fmt.Fprintf(s.out, "%s: parent %s, %s\n", n.Name(), s.ctrl.Parent(n).Name(), rate.FormatHz(r))
}

func (s *Shell) cmdEnable(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.out, "Usage: enable <clock>")
		return
	}
	n := s.lookup(args[0])
	if n == nil {
		return
	}
	if err := s.ctrl.Enable(ctx, n); err != nil {
		s.printError(err)
		return
	}
	fmt.Fprintf(s.out, "%s enabled\n", n.Name())
}

func (s *Shell) cmdDisable(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.out, "Usage: disable <clock>")
		return
	}
	n := s.lookup(args[0])
	if n == nil {
		return
	}
	if err := s.ctrl.Disable(ctx, n); err != nil {
		s.printError(err)
		return
	}
	fmt.Fprintf(s.out, "%s disabled\n", n.Name())
}

func (s *Shell) cmdPeek(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.out, "Usage: peek <offset>")
		return
	}
	off, err := strconv.ParseUint(args[0], 0, 32)
	if err != nil {
		fmt.Fprintf(s.out, "Error: invalid offset %q\n", args[0])
		return
	}
	v, err := s.ctrl.Bus().Read(uint32(off))
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "0x%03x: 0x%08x\n", off, v)
}

// printError explains the transition errors a user is likely to hit.
func (s *Shell) printError(err error) {
	var veto *clk.VetoError
	switch {
	case errors.As(err, &veto):
		fmt.Fprintf(s.out, "Vetoed: %v\n", err)
	case errors.Is(err, clk.ErrGateRequired):
		fmt.Fprintf(s.out, "Error: %v (disable it first)\n", err)
	case errors.Is(err, clk.ErrIO):
		fmt.Fprintf(s.out, "Error: %v (affected clocks are re-read on next access)\n", err)
	default:
		fmt.Fprintf(s.out, "Error: %v\n", err)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
