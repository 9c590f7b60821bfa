package regio

import (
	"errors"
	"fmt"
)

// Bus errors.
var (
	ErrOutOfBounds = errors.New("register offset out of bounds")
	ErrClosed      = errors.New("bus closed")
)

// Bus reads and writes 32-bit registers addressed by byte offset.
type Bus interface {
	// Read returns the current register value.
	Read(offset uint32) (uint32, error)

	// Write replaces the bits selected by mask with value, leaving the other
	// bits untouched. value must already be shifted into position.
	Write(offset, mask, value uint32) error
}

// Transactor is implemented by buses that can apply several writes as one
// atomic operation.
type Transactor interface {
	Apply(writes []Write) error
}

// Write is one masked register update.
type Write struct {
	Offset uint32 `json:"offset" cbor:"1,keyasint"`
	Mask   uint32 `json:"mask" cbor:"2,keyasint"`
	Value  uint32 `json:"value" cbor:"3,keyasint"`
}

// String formats the write for logs.
func (w Write) String() string {
	return fmt.Sprintf("%#x&%#x=%#x", w.Offset, w.Mask, w.Value&w.Mask)
}

// Merge folds writes to the same register into one, keeping first-seen order.
// Later writes win where masks overlap.
func Merge(writes []Write) []Write {
	out := make([]Write, 0, len(writes))
	pos := make(map[uint32]int, len(writes))
	for _, w := range writes {
		if i, ok := pos[w.Offset]; ok {
			prev := out[i]
			out[i] = Write{
				Offset: w.Offset,
				Mask:   prev.Mask | w.Mask,
				Value:  (prev.Value &^ w.Mask) | (w.Value & w.Mask),
			}
			continue
		}
		pos[w.Offset] = len(out)
		out = append(out, Write{Offset: w.Offset, Mask: w.Mask, Value: w.Value & w.Mask})
	}
	return out
}

// ApplyError reports a failed group write.
type ApplyError struct {
	// Failed is the write that returned the error.
	Failed Write

	// RolledBack is false when restoring an already-written register failed
	// too, leaving hardware in a partially updated state.
	RolledBack bool

	Err error
}

func (e *ApplyError) Error() string {
	state := "rolled back"
	if !e.RolledBack {
		state = "rollback incomplete"
	}
	return fmt.Sprintf("register write %s failed (%s): %v", e.Failed, state, e.Err)
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}

// Apply writes a group of field updates as one operation from the caller's
// point of view. Writes to the same register are merged so each register is
// touched once. Transactor buses handle the group themselves; otherwise the
// original register values are read first and restored if any write fails.
func Apply(bus Bus, writes []Write) error {
	merged := Merge(writes)
	if len(merged) == 0 {
		return nil
	}
	if tx, ok := bus.(Transactor); ok {
		return tx.Apply(merged)
	}

	saved := make([]uint32, len(merged))
	for i, w := range merged {
		v, err := bus.Read(w.Offset)
		if err != nil {
			return &ApplyError{Failed: w, RolledBack: true, Err: err}
		}
		saved[i] = v
	}

	for i, w := range merged {
		if err := bus.Write(w.Offset, w.Mask, w.Value); err != nil {
			rolledBack := true
			for j := i - 1; j >= 0; j-- {
				if rerr := bus.Write(merged[j].Offset, merged[j].Mask, saved[j]); rerr != nil {
					rolledBack = false
				}
			}
			return &ApplyError{Failed: w, RolledBack: rolledBack, Err: err}
		}
	}
	return nil
}
