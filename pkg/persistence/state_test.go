package persistence

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/clkfabric/clktree/pkg/clk"
	"github.com/clkfabric/clktree/pkg/rate"
	"github.com/clkfabric/clktree/pkg/regio"
)

func newTree(t *testing.T) (*clk.Controller, *clk.Node) {
	t.Helper()
	ctrl := clk.NewController(regio.NewMemBus(map[uint32]uint32{0x104: 24 << 24}), clk.Config{})
	if _, err := ctrl.RegisterNode(clk.Descriptor{Name: "osc24", Kind: clk.KindOscillator, Rate: 24 * rate.MHz}); err != nil {
		t.Fatalf("RegisterNode(osc24) error = %v", err)
	}
	pll, err := ctrl.RegisterNode(clk.Descriptor{
		Name:    "pll",
		Kind:    clk.KindFractionalPLL,
		Parents: []string{"osc24"},
		Output:  rate.Range{Min: 400 * rate.MHz, Max: 1200 * rate.MHz},
		Layout: clk.Layout{
			Mul:  clk.Field{Offset: 0x104, Shift: 24, Width: 8},
			Frac: clk.Field{Offset: 0x104, Shift: 0, Width: 22},
		},
	})
	if err != nil {
		t.Fatalf("RegisterNode(pll) error = %v", err)
	}
	return ctrl, pll
}

func TestSnapshotStore(t *testing.T) {
	t.Run("LoadNonExistent", func(t *testing.T) {
		store := NewSnapshotStore(filepath.Join(t.TempDir(), "nonexistent.json"))

		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got != nil {
			t.Errorf("Load() = %v, want nil for non-existent file", got)
		}
	})

	t.Run("SaveAndLoad", func(t *testing.T) {
		store := NewSnapshotStore(filepath.Join(t.TempDir(), "nested", "tree.json"))
		ctrl, pll := newTree(t)
		if _, err := ctrl.SetRate(context.Background(), pll, 792*rate.MHz); err != nil {
			t.Fatalf("SetRate() error = %v", err)
		}

		if err := store.Capture(ctrl, "sama7g5", "test"); err != nil {
			t.Fatalf("Capture() error = %v", err)
		}
		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if got.Version != StateVersion {
			t.Errorf("Version = %d, want %d", got.Version, StateVersion)
		}
		if got.SoC != "sama7g5" {
			t.Errorf("SoC = %q, want %q", got.SoC, "sama7g5")
		}
		if got.SavedAt.IsZero() {
			t.Error("SavedAt not set")
		}
		if got.Snapshot.Fingerprint != ctrl.Fingerprint() {
			t.Errorf("Fingerprint = %q, want %q", got.Snapshot.Fingerprint, ctrl.Fingerprint())
		}
		cs, ok := got.Clock("pll")
		if !ok {
			t.Fatal("pll missing from snapshot")
		}
		if cs.Rate != 792*rate.MHz || cs.Setting.Mul != 33 {
			t.Errorf("pll = %+v, want 792 MHz with mul 33", cs)
		}
		if _, err := os.Stat(store.Path() + ".tmp"); !os.IsNotExist(err) {
			t.Errorf("temporary file left behind: %v", err)
		}
	})

	t.Run("RestoreIntoFreshTree", func(t *testing.T) {
		store := NewSnapshotStore(filepath.Join(t.TempDir(), "tree.json"))
		src, pll := newTree(t)
		if _, err := src.SetRate(context.Background(), pll, 816*rate.MHz); err != nil {
			t.Fatalf("SetRate() error = %v", err)
		}
		if err := store.Capture(src, "", "suspend"); err != nil {
			t.Fatalf("Capture() error = %v", err)
		}

		state, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		dst, dstPLL := newTree(t)
		if err := dst.Restore(context.Background(), state.Snapshot); err != nil {
			t.Fatalf("Restore() error = %v", err)
		}
		r, err := dst.GetRate(dstPLL)
		if err != nil {
			t.Fatalf("GetRate() error = %v", err)
		}
		if r != 816*rate.MHz {
			t.Errorf("rate = %d, want %d", r, 816*rate.MHz)
		}
	})

	t.Run("KeepsExplicitSaveTime", func(t *testing.T) {
		store := NewSnapshotStore(filepath.Join(t.TempDir(), "tree.json"))
		at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		if err := store.Save(&TreeState{SavedAt: at}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if !got.SavedAt.Equal(at) {
			t.Errorf("SavedAt = %v, want %v", got.SavedAt, at)
		}
	})

	t.Run("RejectsNewerVersion", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tree.json")
		if err := os.WriteFile(path, []byte(`{"version": 99, "snapshot": {}}`), 0644); err != nil {
			t.Fatal(err)
		}
		_, err := NewSnapshotStore(path).Load()
		if !errors.Is(err, ErrVersion) {
			t.Errorf("Load() error = %v, want ErrVersion", err)
		}
	})

	t.Run("RejectsGarbage", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tree.json")
		if err := os.WriteFile(path, []byte("not json"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := NewSnapshotStore(path).Load(); err == nil {
			t.Error("Load() succeeded on garbage")
		}
	})

	t.Run("Clear", func(t *testing.T) {
		store := NewSnapshotStore(filepath.Join(t.TempDir(), "tree.json"))
		if err := store.Save(&TreeState{}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if err := store.Clear(); err != nil {
			t.Fatalf("Clear() error = %v", err)
		}
		got, err := store.Load()
		if err != nil || got != nil {
			t.Errorf("Load() after Clear = %v, %v", got, err)
		}
		if err := store.Clear(); err != nil {
			t.Errorf("second Clear() error = %v", err)
		}
	})
}
