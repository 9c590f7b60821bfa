package interactive

import (
	"context"
	"fmt"
	"strings"
	"time"
)

func (s *Shell) cmdSuspend(ctx context.Context) {
	if err := s.ctrl.Suspend(ctx); err != nil {
		s.printError(err)
		return
	}
	fmt.Fprintln(s.out, "Suspended: settings saved")
}

func (s *Shell) cmdResume(ctx context.Context) {
	if !s.ctrl.Suspended() {
		fmt.Fprintln(s.out, "Not suspended")
		return
	}
	if err := s.ctrl.Resume(ctx); err != nil {
		s.printError(err)
		return
	}
	fmt.Fprintln(s.out, "Resumed")
}

// cmdSave handles the save command.
// Usage:
//   - save            - persist with reason "manual"
//   - save <reason>   - persist with a free-form reason
func (s *Shell) cmdSave(args []string) {
	if s.cfg.Store == nil {
		fmt.Fprintln(s.out, "Persistence disabled (start with -state)")
		return
	}
	reason := "manual"
	if len(args) > 0 {
		reason = strings.Join(args, " ")
	}
	if err := s.cfg.Store.Capture(s.ctrl, s.cfg.SoC, reason); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Saved to %s\n", s.cfg.Store.Path())
}

func (s *Shell) cmdRestore(ctx context.Context) {
	if s.cfg.Store == nil {
		fmt.Fprintln(s.out, "Persistence disabled (start with -state)")
		return
	}
	state, err := s.cfg.Store.Load()
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	if state == nil {
		fmt.Fprintln(s.out, "Nothing saved yet")
		return
	}
	if state.SoC != "" && s.cfg.SoC != "" && state.SoC != s.cfg.SoC {
		fmt.Fprintf(s.out, "Error: snapshot is for %s, not %s\n", state.SoC, s.cfg.SoC)
		return
	}
	if err := s.ctrl.Restore(ctx, state.Snapshot); err != nil {
		s.printError(err)
		return
	}
	fmt.Fprintf(s.out, "Restored %d clocks saved %s (%s)\n",
		len(state.Snapshot.Clocks), state.SavedAt.Format(time.RFC3339), state.Reason)
}
