package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/clkfabric/clktree/pkg/clk"
)

// StateVersion is the current version of the snapshot file format.
const StateVersion = 1

// ErrVersion is returned when a file was written by a newer format.
var ErrVersion = errors.New("unsupported snapshot version")

// TreeState is the on-disk form of a clock tree snapshot.
type TreeState struct {
	// Version is the file format version.
	Version int `json:"version"`

	// SavedAt is when the state was last saved.
	SavedAt time.Time `json:"saved_at"`

	// SoC names the descriptor the tree was built from.
	SoC string `json:"soc,omitempty"`

	// Reason records what triggered the save (suspend, shutdown, manual).
	Reason string `json:"reason,omitempty"`

	// Snapshot holds the fingerprint and the per-clock settings.
	Snapshot clk.Snapshot `json:"snapshot"`
}

// Clock returns the saved state of one clock.
func (s *TreeState) Clock(name string) (clk.ClockState, bool) {
	for _, cs := range s.Snapshot.Clocks {
		if cs.Name == name {
			return cs, true
		}
	}
	return clk.ClockState{}, false
}

// SnapshotStore manages persistence of a tree snapshot to a JSON file.
type SnapshotStore struct {
	mu   sync.Mutex
	path string
}

// NewSnapshotStore creates a new snapshot store.
func NewSnapshotStore(path string) *SnapshotStore {
	return &SnapshotStore{path: path}
}

// Path returns the file the store writes.
func (s *SnapshotStore) Path() string {
	return s.path
}

// Save persists the state to disk. The file is replaced atomically.
func (s *SnapshotStore) Save(state *TreeState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	state.Version = StateVersion
	if state.SavedAt.IsZero() {
		state.SavedAt = time.Now()
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Load reads the state from disk.
// Returns nil, nil if the file doesn't exist.
func (s *SnapshotStore) Load() (*TreeState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	state := &TreeState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	if state.Version > StateVersion {
		return nil, fmt.Errorf("%s: %w %d", s.path, ErrVersion, state.Version)
	}

	return state, nil
}

// Clear removes the state file.
func (s *SnapshotStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Capture saves the controller's current snapshot.
func (s *SnapshotStore) Capture(c *clk.Controller, soc, reason string) error {
	return s.Save(&TreeState{SoC: soc, Reason: reason, Snapshot: c.Snapshot()})
}
