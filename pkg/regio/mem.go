package regio

import (
	"maps"
	"sync"
)

// MemBus is an in-memory register file. Unwritten registers read as zero.
// It is safe for concurrent use.
type MemBus struct {
	mu       sync.Mutex
	regs     map[uint32]uint32
	failures map[uint32]error
	journal  []Write
}

// NewMemBus creates a register file preloaded with reset values.
func NewMemBus(reset map[uint32]uint32) *MemBus {
	regs := make(map[uint32]uint32, len(reset))
	maps.Copy(regs, reset)
	return &MemBus{
		regs:     regs,
		failures: make(map[uint32]error),
	}
}

// Read returns the register value.
func (b *MemBus) Read(offset uint32) (uint32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.regs[offset], nil
}

// Write performs a read-modify-write of the register.
func (b *MemBus) Write(offset, mask, value uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.failures[offset]; err != nil {
		return err
	}
	b.writeLocked(Write{Offset: offset, Mask: mask, Value: value})
	return nil
}

// Apply writes the whole group or nothing.
func (b *MemBus) Apply(writes []Write) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, w := range writes {
		if err := b.failures[w.Offset]; err != nil {
			return &ApplyError{Failed: w, RolledBack: true, Err: err}
		}
	}
	for _, w := range writes {
		b.writeLocked(w)
	}
	return nil
}

func (b *MemBus) writeLocked(w Write) {
	b.regs[w.Offset] = (b.regs[w.Offset] &^ w.Mask) | (w.Value & w.Mask)
	b.journal = append(b.journal, w)
}

// FailWrites makes every write touching offset return err until cleared.
func (b *MemBus) FailWrites(offset uint32, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[offset] = err
}

// ClearFailures removes all injected failures.
func (b *MemBus) ClearFailures() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.failures)
}

// Journal returns the writes performed so far, in order.
func (b *MemBus) Journal() []Write {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Write, len(b.journal))
	copy(out, b.journal)
	return out
}

// ResetJournal discards the write journal.
func (b *MemBus) ResetJournal() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.journal = nil
}

// Dump returns a copy of every register that has been set.
func (b *MemBus) Dump() map[uint32]uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return maps.Clone(b.regs)
}

// Compile-time interface satisfaction checks.
var (
	_ Bus        = (*MemBus)(nil)
	_ Transactor = (*MemBus)(nil)
)
