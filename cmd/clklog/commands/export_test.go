package commands

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/clkfabric/clktree/pkg/log"
	"github.com/clkfabric/clktree/pkg/regio"
)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test"+log.Extension)

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

func transitionEvents(ts time.Time) []log.Event {
	return []log.Event{
		{Timestamp: ts, TransitionID: "tx-1", Operation: log.OpSetRate, Category: log.CategoryPhase, Node: "cpupll_fracck",
			Phase: &log.PhaseEvent{Phase: log.PhaseProposed, OldRate: 792_000_000, NewRate: 600_000_000}},
		{Timestamp: ts.Add(time.Microsecond), TransitionID: "tx-1", Operation: log.OpSetRate, Category: log.CategoryForecast, Node: "cpupll_fracck",
			Forecast: &log.ForecastEvent{Descendant: "mck0", OldRate: 198_000_000, NewRate: 150_000_000}},
		{Timestamp: ts.Add(2 * time.Microsecond), TransitionID: "tx-1", Operation: log.OpSetRate, Category: log.CategoryWrite, Node: "cpupll_fracck",
			Write: &log.WriteEvent{Stage: log.StageCommit, Writes: []regio.Write{{Offset: 0x104, Mask: 0xff000000, Value: 24 << 24}}}},
		{Timestamp: ts.Add(3 * time.Microsecond), TransitionID: "tx-1", Operation: log.OpSetRate, Category: log.CategoryPhase, Node: "cpupll_fracck",
			Phase: &log.PhaseEvent{Phase: log.PhaseDone, OldRate: 792_000_000, NewRate: 600_000_000}},
	}
}

func TestExportToJSONL(t *testing.T) {
	ts := time.Date(2026, 10, 19, 10, 15, 32, 0, time.UTC)
	path := createTestLogFile(t, transitionEvents(ts))
	outPath := filepath.Join(t.TempDir(), "out.jsonl")

	if err := RunExport(path, "jsonl", outPath); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	defer f.Close()

	var lines []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var m map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			t.Fatalf("invalid JSON line %q: %v", scanner.Text(), err)
		}
		lines = append(lines, m)
	}

	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(lines))
	}
	if lines[0]["TransitionID"] != "tx-1" {
		t.Errorf("expected TransitionID tx-1, got %v", lines[0]["TransitionID"])
	}
	forecast, ok := lines[1]["Forecast"].(map[string]any)
	if !ok {
		t.Fatalf("expected Forecast object, got %v", lines[1]["Forecast"])
	}
	if forecast["Descendant"] != "mck0" {
		t.Errorf("expected descendant mck0, got %v", forecast["Descendant"])
	}
	write, ok := lines[2]["Write"].(map[string]any)
	if !ok {
		t.Fatalf("expected Write object, got %v", lines[2]["Write"])
	}
	writes, ok := write["Writes"].([]any)
	if !ok || len(writes) != 1 {
		t.Fatalf("expected one register write, got %v", write["Writes"])
	}
	if reg := writes[0].(map[string]any); reg["offset"] != float64(0x104) {
		t.Errorf("expected offset 0x104, got %v", reg["offset"])
	}
}

func TestExportToCSV(t *testing.T) {
	ts := time.Date(2026, 10, 19, 10, 15, 32, 0, time.UTC)
	path := createTestLogFile(t, transitionEvents(ts))
	outPath := filepath.Join(t.TempDir(), "out.csv")

	if err := RunExport(path, "csv", outPath); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("expected header + 4 rows, got %d", len(records))
	}
	if strings.Join(records[0], ",") != "timestamp,transition_id,operation,category,node,detail,old_rate,new_rate" {
		t.Errorf("unexpected header: %v", records[0])
	}

	row := records[1]
	if row[2] != "SET_RATE" || row[3] != "PHASE" || row[5] != "PROPOSED" {
		t.Errorf("unexpected phase row: %v", row)
	}
	if row[6] != "792000000" || row[7] != "600000000" {
		t.Errorf("expected raw Hz rates, got %v", row)
	}
	if records[2][5] != "mck0" {
		t.Errorf("expected forecast descendant, got %v", records[2])
	}
	if records[3][5] != "COMMIT x1" {
		t.Errorf("expected write summary, got %v", records[3])
	}
}

func TestExportUnknownFormat(t *testing.T) {
	path := createTestLogFile(t, nil)
	err := RunExport(path, "xml", filepath.Join(t.TempDir(), "out.xml"))
	if err == nil {
		t.Fatal("expected error for unknown format")
	}
	if !strings.Contains(err.Error(), "unknown format") {
		t.Errorf("unexpected error: %v", err)
	}
}
