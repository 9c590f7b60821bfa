// Package log records clock-tree transitions as a machine-readable event
// trace.
//
// Every rate change, parent switch, gate operation and power transition the
// controller performs is captured as a sequence of events sharing one
// transition ID: the phases it passed through, the forecasts offered to
// descendants, the register writes it issued and the error that stopped it.
// This is separate from operational logging (slog).
//
// # Basic Usage
//
// Controllers take a Logger through their configuration:
//
//	// For development: log to console via slog
//	cfg.EventLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: append to a binary file
//	cfg.EventLogger, _ = log.NewFileLogger("/var/log/clktree/pmc.clog")
//
//	// Both: use MultiLogger
//	cfg.EventLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
//   - Phase: a transition entered a state (PhaseEvent)
//   - Forecast: a descendant was offered its pending rates (ForecastEvent)
//   - Write: a group of register writes was issued (WriteEvent)
//   - Error: the transition failed (ErrorEventData)
//
// # File Format
//
// Log files are a stream of CBOR-encoded events with the .clog extension.
// The clklog CLI tool provides viewing, filtering, statistics and export.
package log
