package clk

import (
	"errors"
	"fmt"

	"github.com/clkfabric/clktree/pkg/rate"
)

// Request errors. These are recoverable; no hardware was touched unless the
// error is ErrIO.
var (
	ErrOutOfRange    = errors.New("rate out of range")
	ErrUnsatisfiable = errors.New("no parent satisfies the ceiling")
	ErrUnsupported   = errors.New("operation not supported by clock kind")
	ErrVetoed        = errors.New("vetoed by descendant")
	ErrCritical      = errors.New("critical clock cannot be gated")
	ErrIO            = errors.New("register i/o failed")
	ErrGateRequired  = errors.New("clock must be disabled first")
	ErrNotFound      = errors.New("clock not found")
	ErrTopology      = errors.New("snapshot topology mismatch")
)

// Configuration errors, wrapped in *ConfigError.
var (
	ErrDuplicateID         = errors.New("duplicate clock name")
	ErrUnknownParent       = errors.New("unknown parent")
	ErrEmptyTable          = rate.ErrEmptyTable
	ErrInvalidRange        = rate.ErrInvalidRange
	ErrBadChangeableParent = errors.New("changeable parent index out of range")
	ErrCycle               = errors.New("parent cycle")
	ErrOrphan              = errors.New("parent chain does not end at an oscillator")
	ErrBadLayout           = errors.New("register layout does not fit clock kind")
	ErrBadSafeDivisor      = errors.New("invalid safe divisor")
)

// ConfigError reports a malformed descriptor or graph. It is fatal at load time.
type ConfigError struct {
	Node string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("clock %q: %v", e.Node, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// TransitionError reports the phase in which a transition stopped.
type TransitionError struct {
	Node  string
	Phase State
	Err   error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("clock %q: %s: %v", e.Node, e.Phase, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// VetoError carries the descendant that refused a forecast. It wraps
// ErrVetoed.
type VetoError struct {
	Descendant string
	Rate       uint64
	Reason     string
}

func (e *VetoError) Error() string {
	return fmt.Sprintf("%s refused %d Hz: %s", e.Descendant, e.Rate, e.Reason)
}

func (e *VetoError) Is(target error) bool {
	return target == ErrVetoed
}
