package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes transition events to an slog.Logger.
// Useful during bring-up when you want to watch transitions in the console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("transition", event.TransitionID),
		slog.String("op", event.Operation.String()),
		slog.String("category", event.Category.String()),
	}
	if event.Node != "" {
		attrs = append(attrs, slog.String("node", event.Node))
	}

	switch {
	case event.Phase != nil:
		attrs = append(attrs,
			slog.String("phase", event.Phase.Phase.String()),
			slog.Uint64("old_rate", event.Phase.OldRate),
			slog.Uint64("new_rate", event.Phase.NewRate),
		)
		if event.Phase.NewParent != "" {
			attrs = append(attrs,
				slog.String("old_parent", event.Phase.OldParent),
				slog.String("new_parent", event.Phase.NewParent),
			)
		}
		if event.Phase.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.Phase.Reason))
		}
	case event.Forecast != nil:
		attrs = append(attrs,
			slog.String("descendant", event.Forecast.Descendant),
			slog.Uint64("old_rate", event.Forecast.OldRate),
			slog.Uint64("new_rate", event.Forecast.NewRate),
			slog.Int("transients", len(event.Forecast.Transients)),
		)
		if event.Forecast.Vetoed {
			attrs = append(attrs, slog.String("veto", event.Forecast.Reason))
		}
	case event.Write != nil:
		attrs = append(attrs,
			slog.String("stage", event.Write.Stage.String()),
			slog.Int("writes", len(event.Write.Writes)),
			slog.Bool("failed", event.Write.Failed),
		)
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_phase", event.Error.Phase.String()),
			slog.String("error_msg", event.Error.Message),
		)
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("error_context", event.Error.Context))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "transition", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
