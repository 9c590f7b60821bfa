package interactive

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/clkfabric/clktree/pkg/clk"
	"github.com/clkfabric/clktree/pkg/log"
	"github.com/clkfabric/clktree/pkg/rate"
)

const defaultEventCount = 20

// cmdWatch prints committed rate changes of a clock as they happen.
func (s *Shell) cmdWatch(args []string) {
	if len(args) < 1 {
		if len(s.watches) == 0 {
			fmt.Fprintln(s.out, "Usage: watch <clock>")
			return
		}
		for name := range s.watches {
			fmt.Fprintf(s.out, "watching %s\n", name)
		}
		return
	}
	n := s.lookup(args[0])
	if n == nil {
		return
	}
	if _, ok := s.watches[n.Name()]; ok {
		fmt.Fprintf(s.out, "Already watching %s\n", n.Name())
		return
	}

	s.watches[n.Name()] = s.ctrl.Subscribe(n, clk.NotifierFuncs{
		Post: func(rc clk.RateChange) {
			fmt.Fprintf(s.out, "[WATCH] %s: %s -> %s%s\n", rc.Clock.Name(),
				rate.FormatHz(rc.OldRate), rate.FormatHz(rc.NewRate), formatTransients(rc.Transients))
		},
	})
	fmt.Fprintf(s.out, "Watching %s\n", n.Name())
}

func (s *Shell) cmdUnwatch(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.out, "Usage: unwatch <clock>")
		return
	}
	unsubscribe, ok := s.watches[args[0]]
	if !ok {
		fmt.Fprintf(s.out, "Not watching %s\n", args[0])
		return
	}
	unsubscribe()
	delete(s.watches, args[0])
	fmt.Fprintf(s.out, "Stopped watching %s\n", args[0])
}

// cmdEvents shows the most recent transition events, one line each.
func (s *Shell) cmdEvents(args []string) {
	if s.cfg.History == nil {
		fmt.Fprintln(s.out, "Event history disabled")
		return
	}
	count := defaultEventCount
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			fmt.Fprintf(s.out, "Error: invalid count %q\n", args[0])
			return
		}
		count = n
	}

	events := s.cfg.History.Events()
	if len(events) > count {
		events = events[len(events)-count:]
	}
	if len(events) == 0 {
		fmt.Fprintln(s.out, "No events")
		return
	}
	for _, e := range events {
		fmt.Fprintln(s.out, formatEventLine(e))
	}
}

func formatEventLine(e log.Event) string {
	id := e.TransitionID
	if len(id) > 8 {
		id = id[:8]
	}
	head := fmt.Sprintf("%s [%s] %-10s %-8s %s", e.Timestamp.Format("15:04:05.000000"), id, e.Operation, e.Category, e.Node)

	switch {
	case e.Phase != nil:
		line := head + " " + e.Phase.Phase.String()
		if e.Phase.NewRate != 0 && e.Phase.NewRate != e.Phase.OldRate {
			line += fmt.Sprintf(" %s -> %s", rate.FormatHz(e.Phase.OldRate), rate.FormatHz(e.Phase.NewRate))
		}
		if e.Phase.Reason != "" {
			line += " (" + e.Phase.Reason + ")"
		}
		return line
	case e.Forecast != nil:
		line := fmt.Sprintf("%s %s: %s -> %s%s", head, e.Forecast.Descendant,
			rate.FormatHz(e.Forecast.OldRate), rate.FormatHz(e.Forecast.NewRate), formatTransients(e.Forecast.Transients))
		if e.Forecast.Vetoed {
			line += " VETO: " + e.Forecast.Reason
		}
		return line
	case e.Write != nil:
		writes := make([]string, len(e.Write.Writes))
		for i, w := range e.Write.Writes {
			writes[i] = w.String()
		}
		line := fmt.Sprintf("%s %s %s", head, e.Write.Stage, strings.Join(writes, " "))
		if e.Write.Failed {
			line += " FAILED"
		}
		return line
	case e.Error != nil:
		return fmt.Sprintf("%s %s: %s", head, e.Error.Phase, e.Error.Message)
	}
	return head
}

func formatTransients(ts []uint64) string {
	if len(ts) == 0 {
		return ""
	}
	parts := make([]string, len(ts))
	for i, r := range ts {
		parts[i] = rate.FormatHz(r)
	}
	return " via " + strings.Join(parts, ", ")
}
