package log

import "testing"

func TestOperationString(t *testing.T) {
	tests := []struct {
		op   Operation
		want string
	}{
		{OpSetRate, "SET_RATE"},
		{OpSetParent, "SET_PARENT"},
		{OpEnable, "ENABLE"},
		{OpDisable, "DISABLE"},
		{OpSuspend, "SUSPEND"},
		{OpResume, "RESUME"},
		{OpRestore, "RESTORE"},
		{Operation(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("Operation(%d).String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}

func TestCategoryString(t *testing.T) {
	tests := []struct {
		c    Category
		want string
	}{
		{CategoryPhase, "PHASE"},
		{CategoryForecast, "FORECAST"},
		{CategoryWrite, "WRITE"},
		{CategoryError, "ERROR"},
		{Category(42), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.c.String(); got != tt.want {
			t.Errorf("Category(%d).String() = %q, want %q", tt.c, got, tt.want)
		}
	}
}

func TestPhaseString(t *testing.T) {
	want := []string{"PROPOSED", "PRE_NOTIFIED", "SAFETY_APPLIED", "COMMITTED", "POST_NOTIFIED", "DONE", "FAILED"}
	for i, w := range want {
		if got := Phase(i).String(); got != w {
			t.Errorf("Phase(%d).String() = %q, want %q", i, got, w)
		}
	}
	if got := Phase(7).String(); got != "UNKNOWN" {
		t.Errorf("Phase(7).String() = %q", got)
	}
}

func TestWriteStageString(t *testing.T) {
	want := []string{"SAFETY", "COMMIT", "RESTORE", "ROLLBACK", "GATE"}
	for i, w := range want {
		if got := WriteStage(i).String(); got != w {
			t.Errorf("WriteStage(%d).String() = %q, want %q", i, got, w)
		}
	}
}
