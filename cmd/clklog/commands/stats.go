package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/clkfabric/clktree/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents        int
	EventsByOperation  map[log.Operation]int
	EventsByCategory   map[log.Category]int
	Transitions        map[string]*TransitionStats
	Completed          int
	Failed             int
	RegisterWrites     int
	FailedWriteGroups  int
	VetoesByDescendant map[string]int
	TimeRange          struct {
		Start time.Time
		End   time.Time
	}
}

// TransitionStats holds statistics for a single transition.
type TransitionStats struct {
	Operation log.Operation
	Node      string
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	Outcome   log.Phase
	Finished  bool
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByOperation:  make(map[log.Operation]int),
		EventsByCategory:   make(map[log.Category]int),
		Transitions:        make(map[string]*TransitionStats),
		VetoesByDescendant: make(map[string]int),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}

	printStats(w, stats)
	return nil
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByOperation[event.Operation]++
	s.EventsByCategory[event.Category]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	tx, ok := s.Transitions[event.TransitionID]
	if !ok {
		tx = &TransitionStats{
			Operation: event.Operation,
			Node:      event.Node,
			FirstSeen: event.Timestamp,
			LastSeen:  event.Timestamp,
		}
		s.Transitions[event.TransitionID] = tx
	}
	tx.Events++
	if event.Timestamp.After(tx.LastSeen) {
		tx.LastSeen = event.Timestamp
	}

	switch {
	case event.Phase != nil:
		switch event.Phase.Phase {
		case log.PhaseDone:
			s.Completed++
			tx.Outcome, tx.Finished = log.PhaseDone, true
		case log.PhaseFailed:
			s.Failed++
			tx.Outcome, tx.Finished = log.PhaseFailed, true
		}
	case event.Forecast != nil:
		if event.Forecast.Vetoed {
			s.VetoesByDescendant[event.Forecast.Descendant]++
		}
	case event.Write != nil:
		s.RegisterWrites += len(event.Write.Writes)
		if event.Write.Failed {
			s.FailedWriteGroups++
		}
	}
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Clock Transition Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Millisecond))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Operation:")
	for _, op := range []log.Operation{log.OpSetRate, log.OpSetParent, log.OpEnable, log.OpDisable, log.OpSuspend, log.OpResume, log.OpRestore} {
		if count := stats.EventsByOperation[op]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", op.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryPhase, log.CategoryForecast, log.CategoryWrite, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Transitions: %d (%d done, %d failed)\n", len(stats.Transitions), stats.Completed, stats.Failed)
	fmt.Fprintf(w, "Register Writes: %d\n", stats.RegisterWrites)
	if stats.FailedWriteGroups > 0 {
		fmt.Fprintf(w, "Failed Write Groups: %d\n", stats.FailedWriteGroups)
	}

	if len(stats.VetoesByDescendant) > 0 {
		names := make([]string, 0, len(stats.VetoesByDescendant))
		for name := range stats.VetoesByDescendant {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			ci, cj := stats.VetoesByDescendant[names[i]], stats.VetoesByDescendant[names[j]]
			if ci != cj {
				return ci > cj
			}
			return names[i] < names[j]
		})

		fmt.Fprintln(w)
		fmt.Fprintln(w, "Vetoes by Descendant:")
		for _, name := range names {
			fmt.Fprintf(w, "  %-20s %d\n", name+":", stats.VetoesByDescendant[name])
		}
	}

	if len(stats.Transitions) > 0 {
		type txInfo struct {
			id    string
			stats *TransitionStats
		}
		txs := make([]txInfo, 0, len(stats.Transitions))
		for id, ts := range stats.Transitions {
			txs = append(txs, txInfo{id, ts})
		}
		sort.Slice(txs, func(i, j int) bool {
			return txs[i].stats.FirstSeen.Before(txs[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, tx := range txs {
			outcome := "INCOMPLETE"
			if tx.stats.Finished {
				outcome = tx.stats.Outcome.String()
			}
			duration := tx.stats.LastSeen.Sub(tx.stats.FirstSeen).Round(time.Microsecond)
			fmt.Fprintf(w, "  [%s] %s %s: %d events, %s, %s\n",
				shortenID(tx.id), tx.stats.Operation.String(), tx.stats.Node,
				tx.stats.Events, outcome, duration)
		}
	}
}
