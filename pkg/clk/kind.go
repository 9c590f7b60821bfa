package clk

import (
	"fmt"
	"strings"
)

// Kind is the capability tag of a clock node.
type Kind uint8

const (
	KindOscillator Kind = iota
	KindFractionalPLL
	KindDividerPLL
	KindMasterClock
	KindGeneratedClock
	KindPeripheralClock
	KindProgrammableClock
	KindSystemClock
)

var kindNames = [...]string{
	KindOscillator:        "oscillator",
	KindFractionalPLL:     "fractional-pll",
	KindDividerPLL:        "divider-pll",
	KindMasterClock:       "master",
	KindGeneratedClock:    "generated",
	KindPeripheralClock:   "peripheral",
	KindProgrammableClock: "programmable",
	KindSystemClock:       "system",
}

// String returns the kind name used in descriptor files.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// ParseKind is the inverse of String. It is case-insensitive.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown clock kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// muxed reports whether the kind may have several parents.
func (k Kind) muxed() bool {
	switch k {
	case KindMasterClock, KindGeneratedClock, KindProgrammableClock, KindSystemClock, KindPeripheralClock:
		return true
	}
	return false
}

// Flags are independent boolean properties of a node.
type Flags uint8

const (
	// FlagCritical nodes feed essential infrastructure and are never gated.
	FlagCritical Flags = 1 << iota

	// FlagRateChangeGate nodes must be disabled before their rate changes.
	FlagRateChangeGate

	// FlagParentChangeGate nodes must be disabled before switching parent.
	FlagParentChangeGate

	// FlagRestoreOnResume nodes lose their setting in low-power modes and are
	// re-programmed by Resume.
	FlagRestoreOnResume
)

var flagNames = []struct {
	f    Flags
	name string
}{
	{FlagCritical, "critical"},
	{FlagRateChangeGate, "rate-gate"},
	{FlagParentChangeGate, "parent-gate"},
	{FlagRestoreOnResume, "restore-on-resume"},
}

// Has reports whether every flag in f2 is set.
func (f Flags) Has(f2 Flags) bool {
	return f&f2 == f2
}

func (f Flags) String() string {
	var parts []string
	for _, fn := range flagNames {
		if f.Has(fn.f) {
			parts = append(parts, fn.name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseFlag returns the flag for a descriptor name.
func ParseFlag(s string) (Flags, error) {
	for _, fn := range flagNames {
		if fn.name == s {
			return fn.f, nil
		}
	}
	return 0, fmt.Errorf("unknown clock flag %q", s)
}

// ExportType groups exported clocks the way consumers reference them.
type ExportType uint8

const (
	ExportCore ExportType = iota
	ExportSystem
	ExportPeripheral
	ExportGCK
	ExportProgrammable
)

var exportNames = [...]string{"core", "system", "peripheral", "gck", "programmable"}

func (t ExportType) String() string {
	if int(t) < len(exportNames) {
		return exportNames[t]
	}
	return fmt.Sprintf("export(%d)", t)
}

// ParseExportType is the inverse of String.
func ParseExportType(s string) (ExportType, error) {
	for i, name := range exportNames {
		if name == s {
			return ExportType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown export type %q", s)
}

// ExportSlot is the (type, index) pair external consumers use to reference a
// clock.
type ExportSlot struct {
	Type  ExportType
	Index uint32
}

func (s ExportSlot) String() string {
	return fmt.Sprintf("%s/%d", s.Type, s.Index)
}
