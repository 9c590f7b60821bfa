package log

import (
	"bytes"
	"testing"
	"time"

	"github.com/clkfabric/clktree/pkg/regio"
)

func TestEventCBORRoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.UTC)
	original := Event{
		Timestamp:    ts,
		TransitionID: "6f1c2a4e-1d2b-4c3a-9e8f-0a1b2c3d4e5f",
		Operation:    OpSetRate,
		Category:     CategoryPhase,
		Node:         "ethpll_fracck",
		Phase: &PhaseEvent{
			Phase:   PhaseCommitted,
			OldRate: 600_000_000,
			NewRate: 624_999_999,
		},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if !decoded.Timestamp.Equal(original.Timestamp) {
		t.Errorf("Timestamp: got %v, want %v", decoded.Timestamp, original.Timestamp)
	}
	if decoded.TransitionID != original.TransitionID {
		t.Errorf("TransitionID: got %q, want %q", decoded.TransitionID, original.TransitionID)
	}
	if decoded.Operation != OpSetRate || decoded.Category != CategoryPhase {
		t.Errorf("got %v/%v, want SET_RATE/PHASE", decoded.Operation, decoded.Category)
	}
	if decoded.Node != "ethpll_fracck" {
		t.Errorf("Node: got %q", decoded.Node)
	}
	if decoded.Phase == nil {
		t.Fatal("Phase payload lost")
	}
	if *decoded.Phase != *original.Phase {
		t.Errorf("Phase: got %+v, want %+v", *decoded.Phase, *original.Phase)
	}
}

func TestForecastEventCBORRoundTrip(t *testing.T) {
	original := Event{
		Timestamp:    time.Now(),
		TransitionID: "t-1",
		Operation:    OpSetParent,
		Category:     CategoryForecast,
		Node:         "mck0",
		Forecast: &ForecastEvent{
			Descendant: "mck0_child",
			OldRate:    200_000_000,
			NewRate:    150_000_000,
			Transients: []uint64{100_000_000, 75_000_000},
			Vetoed:     true,
			Reason:     "below minimum",
		},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	f := decoded.Forecast
	if f == nil {
		t.Fatal("Forecast payload lost")
	}
	if f.Descendant != "mck0_child" || f.OldRate != 200_000_000 || f.NewRate != 150_000_000 {
		t.Errorf("Forecast: got %+v", *f)
	}
	if len(f.Transients) != 2 || f.Transients[0] != 100_000_000 || f.Transients[1] != 75_000_000 {
		t.Errorf("Transients: got %v", f.Transients)
	}
	if !f.Vetoed || f.Reason != "below minimum" {
		t.Errorf("veto lost: %+v", *f)
	}
}

func TestWriteEventCBORRoundTrip(t *testing.T) {
	original := Event{
		Timestamp: time.Now(),
		Category:  CategoryWrite,
		Write: &WriteEvent{
			Stage: StageCommit,
			Writes: []regio.Write{
				{Offset: 0x104, Mask: 0xff3fffff, Value: 0x3405_5555},
				{Offset: 0x100, Mask: 0x2000_00ff, Value: 0x2000_0000},
			},
			Failed: true,
		},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	w := decoded.Write
	if w == nil {
		t.Fatal("Write payload lost")
	}
	if w.Stage != StageCommit || !w.Failed {
		t.Errorf("Write: got stage %v failed %v", w.Stage, w.Failed)
	}
	if len(w.Writes) != 2 || w.Writes[0] != original.Write.Writes[0] || w.Writes[1] != original.Write.Writes[1] {
		t.Errorf("Writes: got %v", w.Writes)
	}
}

func TestErrorEventCBORRoundTrip(t *testing.T) {
	original := Event{
		Timestamp: time.Now(),
		Operation: OpDisable,
		Category:  CategoryError,
		Node:      "mck0",
		Error: &ErrorEventData{
			Phase:   PhaseFailed,
			Message: "critical clock",
			Context: "disable",
		},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}
	if decoded.Error == nil || *decoded.Error != *original.Error {
		t.Errorf("Error: got %+v, want %+v", decoded.Error, original.Error)
	}
}

func TestEventUsesIntegerKeys(t *testing.T) {
	data, err := EncodeEvent(Event{
		Timestamp:    time.Unix(0, 0).UTC(),
		TransitionID: "t",
		Node:         "n",
	})
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	var m map[uint64]any
	if err := logDecMode.Unmarshal(data, &m); err != nil {
		t.Fatalf("decode as integer-keyed map failed: %v", err)
	}
	for _, key := range []uint64{1, 2, 3, 4, 5} {
		if _, ok := m[key]; !ok {
			t.Errorf("key %d missing from %v", key, m)
		}
	}
	if _, ok := m[10]; ok {
		t.Error("nil payload should be omitted")
	}
}

func TestEncodingIsDeterministic(t *testing.T) {
	event := Event{
		Timestamp:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		TransitionID: "t",
		Category:     CategoryForecast,
		Forecast:     &ForecastEvent{Descendant: "a", OldRate: 1, NewRate: 2},
	}
	a, err := EncodeEvent(event)
	if err != nil {
		t.Fatal(err)
	}
	b, err := EncodeEvent(event)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("encoding is not deterministic")
	}
}

func TestStreamEncoderDecoder(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	for i := range 3 {
		if err := enc.Encode(Event{TransitionID: string(rune('a' + i))}); err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
	}

	dec := NewDecoder(&buf)
	for i := range 3 {
		var e Event
		if err := dec.Decode(&e); err != nil {
			t.Fatalf("Decode %d failed: %v", i, err)
		}
		if want := string(rune('a' + i)); e.TransitionID != want {
			t.Errorf("event %d: got %q, want %q", i, e.TransitionID, want)
		}
	}
}

func TestDecodeEventRejectsGarbage(t *testing.T) {
	if _, err := DecodeEvent([]byte{0xff, 0x00}); err == nil {
		t.Error("expected error for invalid CBOR")
	}
}
