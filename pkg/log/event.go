package log

import (
	"time"

	"github.com/clkfabric/clktree/pkg/regio"
)

// Event is one step of a clock-tree transition.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// TransitionID groups the events of one request (UUID).
	TransitionID string `cbor:"2,keyasint"`

	// Operation is the request that started the transition.
	Operation Operation `cbor:"3,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"4,keyasint"`

	// Node is the clock the request targets.
	Node string `cbor:"5,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Phase    *PhaseEvent     `cbor:"10,keyasint,omitempty"`
	Forecast *ForecastEvent  `cbor:"11,keyasint,omitempty"`
	Write    *WriteEvent     `cbor:"12,keyasint,omitempty"`
	Error    *ErrorEventData `cbor:"13,keyasint,omitempty"`
}

// Operation identifies the request behind a transition.
type Operation uint8

const (
	// OpSetRate is a rate change.
	OpSetRate Operation = 0
	// OpSetParent is a multiplexer switch.
	OpSetParent Operation = 1
	// OpEnable ungates a clock.
	OpEnable Operation = 2
	// OpDisable gates a clock.
	OpDisable Operation = 3
	// OpSuspend saves settings before a power-mode entry.
	OpSuspend Operation = 4
	// OpResume re-applies saved settings.
	OpResume Operation = 5
	// OpRestore applies a persisted snapshot.
	OpRestore Operation = 6
)

// String returns the operation name.
func (o Operation) String() string {
	switch o {
	case OpSetRate:
		return "SET_RATE"
	case OpSetParent:
		return "SET_PARENT"
	case OpEnable:
		return "ENABLE"
	case OpDisable:
		return "DISABLE"
	case OpSuspend:
		return "SUSPEND"
	case OpResume:
		return "RESUME"
	case OpRestore:
		return "RESTORE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryPhase indicates a transition state change.
	CategoryPhase Category = 0
	// CategoryForecast indicates a forecast offered to a descendant.
	CategoryForecast Category = 1
	// CategoryWrite indicates register writes.
	CategoryWrite Category = 2
	// CategoryError indicates a failed transition.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryPhase:
		return "PHASE"
	case CategoryForecast:
		return "FORECAST"
	case CategoryWrite:
		return "WRITE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Phase is a transition state. The values match the controller's states.
type Phase uint8

const (
	PhaseProposed      Phase = 0
	PhasePreNotified   Phase = 1
	PhaseSafetyApplied Phase = 2
	PhaseCommitted     Phase = 3
	PhasePostNotified  Phase = 4
	PhaseDone          Phase = 5
	PhaseFailed        Phase = 6
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseProposed:
		return "PROPOSED"
	case PhasePreNotified:
		return "PRE_NOTIFIED"
	case PhaseSafetyApplied:
		return "SAFETY_APPLIED"
	case PhaseCommitted:
		return "COMMITTED"
	case PhasePostNotified:
		return "POST_NOTIFIED"
	case PhaseDone:
		return "DONE"
	case PhaseFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// PhaseEvent captures a transition entering a state.
type PhaseEvent struct {
	Phase Phase `cbor:"1,keyasint"`

	// OldRate and NewRate are the node's rate before and after (Hz).
	OldRate uint64 `cbor:"2,keyasint,omitempty"`
	NewRate uint64 `cbor:"3,keyasint,omitempty"`

	// OldParent and NewParent name the selected parent, if any.
	OldParent string `cbor:"4,keyasint,omitempty"`
	NewParent string `cbor:"5,keyasint,omitempty"`

	// Reason explains a failure or a no-op.
	Reason string `cbor:"6,keyasint,omitempty"`
}

// ForecastEvent captures the rates offered to one descendant before commit.
type ForecastEvent struct {
	// Descendant is the notified clock.
	Descendant string `cbor:"1,keyasint"`

	OldRate uint64 `cbor:"2,keyasint"`
	NewRate uint64 `cbor:"3,keyasint"`

	// Transients are the intermediate rates seen while safe divisors are
	// in place, in the order they occur.
	Transients []uint64 `cbor:"4,keyasint,omitempty"`

	// Vetoed is set when the descendant refused the change.
	Vetoed bool `cbor:"5,keyasint,omitempty"`

	// Reason is the veto reason.
	Reason string `cbor:"6,keyasint,omitempty"`
}

// WriteStage tells why a group of registers was written.
type WriteStage uint8

const (
	// StageSafety installs safe divisors ahead of the commit.
	StageSafety WriteStage = 0
	// StageCommit applies the new setting.
	StageCommit WriteStage = 1
	// StageRestore puts safe-divided clocks back on their divisor.
	StageRestore WriteStage = 2
	// StageRollback undoes writes after a failure.
	StageRollback WriteStage = 3
	// StageGate toggles enable bits.
	StageGate WriteStage = 4
)

// String returns the stage name.
func (s WriteStage) String() string {
	switch s {
	case StageSafety:
		return "SAFETY"
	case StageCommit:
		return "COMMIT"
	case StageRestore:
		return "RESTORE"
	case StageRollback:
		return "ROLLBACK"
	case StageGate:
		return "GATE"
	default:
		return "UNKNOWN"
	}
}

// WriteEvent captures one register group issued to the bus.
type WriteEvent struct {
	Stage WriteStage `cbor:"1,keyasint"`

	Writes []regio.Write `cbor:"2,keyasint"`

	// Failed is set when the bus rejected the group.
	Failed bool `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData captures why a transition failed.
type ErrorEventData struct {
	// Phase the transition was in when it failed.
	Phase Phase `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what was being attempted.
	Context string `cbor:"3,keyasint,omitempty"`
}
