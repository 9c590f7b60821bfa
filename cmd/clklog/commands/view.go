// Package commands implements the clklog CLI commands.
package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/clkfabric/clktree/pkg/log"
	"github.com/clkfabric/clktree/pkg/rate"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Node      string
	Operation *log.Operation
	Category  *log.Category
}

func (f ViewFilter) logFilter() log.Filter {
	return log.Filter{
		Node:      f.Node,
		Operation: f.Operation,
		Category:  f.Category,
	}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [tx:id] OPERATION CATEGORY node
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	fmt.Fprintf(w, "%s [tx:%s] %s %s", ts, shortenID(event.TransitionID),
		event.Operation.String(), event.Category.String())
	if event.Node != "" {
		fmt.Fprintf(w, " %s", event.Node)
	}
	fmt.Fprintln(w)

	switch {
	case event.Phase != nil:
		formatPhaseDetails(w, event.Phase)
	case event.Forecast != nil:
		formatForecastDetails(w, event.Forecast)
	case event.Write != nil:
		formatWriteDetails(w, event.Write)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

// shortenID returns the first 8 characters of a transition ID.
func shortenID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatPhaseDetails(w io.Writer, p *log.PhaseEvent) {
	fmt.Fprintf(w, "  Phase: %s\n", p.Phase.String())
	if p.OldRate != 0 || p.NewRate != 0 {
		fmt.Fprintf(w, "  Rate: %s -> %s\n", rate.FormatHz(p.OldRate), rate.FormatHz(p.NewRate))
	}
	if p.NewParent != "" && p.NewParent != p.OldParent {
		fmt.Fprintf(w, "  Parent: %s -> %s\n", p.OldParent, p.NewParent)
	}
	if p.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", p.Reason)
	}
}

func formatForecastDetails(w io.Writer, f *log.ForecastEvent) {
	fmt.Fprintf(w, "  Descendant: %s\n", f.Descendant)
	fmt.Fprintf(w, "  Rate: %s -> %s\n", rate.FormatHz(f.OldRate), rate.FormatHz(f.NewRate))
	if len(f.Transients) > 0 {
		parts := make([]string, len(f.Transients))
		for i, r := range f.Transients {
			parts[i] = rate.FormatHz(r)
		}
		fmt.Fprintf(w, "  Transients: %s\n", strings.Join(parts, ", "))
	}
	if f.Vetoed {
		fmt.Fprintf(w, "  Vetoed: %s\n", f.Reason)
	}
}

func formatWriteDetails(w io.Writer, we *log.WriteEvent) {
	fmt.Fprintf(w, "  Stage: %s", we.Stage.String())
	if we.Failed {
		fmt.Fprint(w, " (failed)")
	}
	fmt.Fprintln(w)
	for _, wr := range we.Writes {
		fmt.Fprintf(w, "  %s\n", wr.String())
	}
}

func formatErrorDetails(w io.Writer, e *log.ErrorEventData) {
	fmt.Fprintf(w, "  Phase: %s\n", e.Phase.String())
	fmt.Fprintf(w, "  Message: %s\n", e.Message)
	if e.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", e.Context)
	}
}

// ParseOperationFlag parses an operation name (case-insensitive). Both the
// log spelling (SET_RATE) and the shell spelling (set-rate) are accepted.
func ParseOperationFlag(s string) (log.Operation, error) {
	switch strings.ReplaceAll(strings.ToLower(s), "-", "_") {
	case "set_rate", "rate":
		return log.OpSetRate, nil
	case "set_parent", "parent":
		return log.OpSetParent, nil
	case "enable":
		return log.OpEnable, nil
	case "disable":
		return log.OpDisable, nil
	case "suspend":
		return log.OpSuspend, nil
	case "resume":
		return log.OpResume, nil
	case "restore":
		return log.OpRestore, nil
	default:
		return 0, fmt.Errorf("invalid operation: %s (must be set-rate, set-parent, enable, disable, suspend, resume, or restore)", s)
	}
}

// ParseCategoryFlag parses a category name (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "phase":
		return log.CategoryPhase, nil
	case "forecast":
		return log.CategoryForecast, nil
	case "write":
		return log.CategoryWrite, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be phase, forecast, write, or error)", s)
	}
}

// ParsePhaseFlag parses a phase name (case-insensitive).
func ParsePhaseFlag(s string) (log.Phase, error) {
	switch strings.ReplaceAll(strings.ToLower(s), "-", "_") {
	case "proposed":
		return log.PhaseProposed, nil
	case "pre_notified":
		return log.PhasePreNotified, nil
	case "safety_applied":
		return log.PhaseSafetyApplied, nil
	case "committed":
		return log.PhaseCommitted, nil
	case "post_notified":
		return log.PhasePostNotified, nil
	case "done":
		return log.PhaseDone, nil
	case "failed":
		return log.PhaseFailed, nil
	default:
		return 0, fmt.Errorf("invalid phase: %s", s)
	}
}

// RunView executes the view command.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter.logFilter())
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}

	return nil
}
