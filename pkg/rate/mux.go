package rate

import "fmt"

// MuxTable maps logical parent indices to multiplexer selector codes.
// An empty table means the identity mapping.
type MuxTable []uint32

// Selector returns the hardware code for the parent at index.
func (t MuxTable) Selector(index int) (uint32, error) {
	if index < 0 {
		return 0, fmt.Errorf("mux index %d: %w", index, ErrIndexOutOfRange)
	}
	if len(t) == 0 {
		return uint32(index), nil
	}
	if index >= len(t) {
		return 0, fmt.Errorf("mux index %d of %d: %w", index, len(t), ErrIndexOutOfRange)
	}
	return t[index], nil
}

// Index returns the logical parent index selected by code.
func (t MuxTable) Index(code uint32) (int, bool) {
	if len(t) == 0 {
		return int(code), true
	}
	for i, c := range t {
		if c == code {
			return i, true
		}
	}
	return 0, false
}

// Validate checks the table covers n parents and has no duplicate codes.
func (t MuxTable) Validate(n int) error {
	if len(t) == 0 {
		return nil
	}
	if len(t) != n {
		return fmt.Errorf("mux table has %d entries for %d parents: %w", len(t), n, ErrIndexOutOfRange)
	}
	seen := make(map[uint32]bool, len(t))
	for _, c := range t {
		if seen[c] {
			return fmt.Errorf("duplicate mux selector %d", c)
		}
		seen[c] = true
	}
	return nil
}
