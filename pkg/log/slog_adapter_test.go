package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func newTestAdapter() (*SlogAdapter, *bytes.Buffer) {
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewSlogAdapter(slog.New(h)), &buf
}

func TestSlogAdapterPhase(t *testing.T) {
	a, buf := newTestAdapter()
	a.Log(Event{
		TransitionID: "t-9",
		Operation:    OpSetParent,
		Category:     CategoryPhase,
		Node:         "gmac0_gclk",
		Phase: &PhaseEvent{
			Phase:     PhaseCommitted,
			OldRate:   125_000_000,
			NewRate:   125_000_000,
			OldParent: "syspll_divpmcck",
			NewParent: "ethpll_divpmcck",
		},
	})

	out := buf.String()
	for _, want := range []string{"transition=t-9", "op=SET_PARENT", "phase=COMMITTED", "new_parent=ethpll_divpmcck", "node=gmac0_gclk"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}

func TestSlogAdapterForecastVeto(t *testing.T) {
	a, buf := newTestAdapter()
	a.Log(Event{
		Category: CategoryForecast,
		Forecast: &ForecastEvent{Descendant: "sdmmc0_gclk", Vetoed: true, Reason: "above ceiling"},
	})

	out := buf.String()
	if !strings.Contains(out, "descendant=sdmmc0_gclk") || !strings.Contains(out, `veto="above ceiling"`) {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestSlogAdapterWriteAndError(t *testing.T) {
	a, buf := newTestAdapter()
	a.Log(Event{Category: CategoryWrite, Write: &WriteEvent{Stage: StageRollback, Failed: true}})
	a.Log(Event{Category: CategoryError, Error: &ErrorEventData{Phase: PhaseFailed, Message: "io"}})

	out := buf.String()
	for _, want := range []string{"stage=ROLLBACK", "failed=true", "error_phase=FAILED", "error_msg=io"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}

func TestSlogAdapterRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	NewSlogAdapter(slog.New(h)).Log(Event{TransitionID: "hidden"})
	if buf.Len() != 0 {
		t.Errorf("debug event leaked at info level: %s", buf.String())
	}
}
