// Command clkctl loads an SoC clock tree and drives it from the command line.
//
// The tree runs on a simulated register file by default, so rate changes can
// be explored without hardware. With -bus mmio it drives the real PMC through
// /dev/mem; with -bus i2c it drives a byte-register clock generator.
//
// Usage:
//
//	clkctl [flags] [command [args...]]
//
// A command given on the command line is run once and clkctl exits. Without
// one, clkctl prints the tree, or starts a shell with -interactive.
//
// Flags:
//
//	-soc string        Embedded SoC name or descriptor path (default "sama7g5")
//	-list-socs         List the embedded SoC descriptors and exit
//	-bus string        Register bus: sim, mmio, i2c (default "sim")
//	-mmio-path string  Device to map for -bus mmio (default "/dev/mem")
//	-mmio-base uint    Physical base of the register window
//	-mmio-size uint    Size of the register window
//	-i2c-bus int       I2C adapter index for -bus i2c
//	-i2c-addr int      I2C device address for -bus i2c
//	-assign            Apply the descriptor's assigned rates at start (default true)
//	-log-level string  Log level: debug, info, warn, error (default "info")
//	-event-log string  Append transition events to this file
//	-state string      Snapshot file for save/restore
//	-restore           Apply the snapshot from -state at start
//	-reset             Delete the snapshot from -state before starting
//	-interactive       Start the interactive shell
//
// Examples:
//
//	# Explore the SAMA7G5 tree
//	clkctl -interactive
//
//	# One-shot rate change with a transition log
//	clkctl -event-log cpu.clog set cpupll_fracck 600MHz
//
//	# Bring the tree back to where it was before the last shutdown
//	clkctl -state /var/lib/clkctl/state.json -restore -interactive
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/clkfabric/clktree/cmd/clkctl/interactive"
	"github.com/clkfabric/clktree/pkg/clk"
	"github.com/clkfabric/clktree/pkg/descriptor"
	"github.com/clkfabric/clktree/pkg/log"
	"github.com/clkfabric/clktree/pkg/persistence"
	"github.com/clkfabric/clktree/pkg/regio"
)

// Config holds the command configuration.
type Config struct {
	SoC      string
	ListSoCs bool

	Bus      string
	MMIOPath string
	MMIOBase uint64
	MMIOSize uint64
	I2CBus   int
	I2CAddr  int

	Assign      bool
	LogLevel    string
	EventLog    string
	Interactive bool

	// Persistence settings
	StateFile string
	Restore   bool
	Reset     bool
}

// SAMA7G5 PMC register window.
const (
	defaultMMIOBase = 0xe0018000
	defaultMMIOSize = 0x1000
)

// historySize bounds the in-memory event history of the shell.
const historySize = 512

var config Config

func init() {
	flag.StringVar(&config.SoC, "soc", "sama7g5", "Embedded SoC name or descriptor path")
	flag.BoolVar(&config.ListSoCs, "list-socs", false, "List the embedded SoC descriptors and exit")

	flag.StringVar(&config.Bus, "bus", "sim", "Register bus: sim, mmio, i2c")
	flag.StringVar(&config.MMIOPath, "mmio-path", regio.DevMem, "Device to map for -bus mmio")
	flag.Uint64Var(&config.MMIOBase, "mmio-base", defaultMMIOBase, "Physical base of the register window")
	flag.Uint64Var(&config.MMIOSize, "mmio-size", defaultMMIOSize, "Size of the register window")
	flag.IntVar(&config.I2CBus, "i2c-bus", 0, "I2C adapter index for -bus i2c")
	flag.IntVar(&config.I2CAddr, "i2c-addr", 0x60, "I2C device address for -bus i2c")

	flag.BoolVar(&config.Assign, "assign", true, "Apply the descriptor's assigned rates at start")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&config.EventLog, "event-log", "", "Append transition events to this file")
	flag.BoolVar(&config.Interactive, "interactive", false, "Start the interactive shell")

	flag.StringVar(&config.StateFile, "state", "", "Snapshot file for save/restore")
	flag.BoolVar(&config.Restore, "restore", false, "Apply the snapshot from -state at start")
	flag.BoolVar(&config.Reset, "reset", false, "Delete the snapshot from -state before starting")
}

func main() {
	flag.Parse()

	if config.ListSoCs {
		names, err := descriptor.Available()
		if err != nil {
			fatal(err)
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return
	}

	level, err := parseLevel(config.LogLevel)
	if err != nil {
		fatal(err)
	}
	logOut := &switchWriter{w: os.Stderr}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))

	file, err := descriptor.Open(config.SoC)
	if err != nil {
		fatal(err)
	}
	logger.Info("descriptor loaded", "soc", file.SoC, "path", file.Path(), "clocks", len(file.Clocks))

	bus, closeBus, err := openBus(file, config)
	if err != nil {
		fatal(err)
	}
	defer closeBus()

	// Transition events go to the shell history, an optional file and, at
	// debug level, the console.
	history := log.NewMemoryLogger(historySize)
	var fileLog *log.FileLogger
	if config.EventLog != "" {
		if fileLog, err = log.NewFileLogger(config.EventLog); err != nil {
			fatal(fmt.Errorf("opening event log: %w", err))
		}
		defer fileLog.Close()
	}
	loggers := []log.Logger{history}
	if fileLog != nil {
		loggers = append(loggers, fileLog)
	}
	if level <= slog.LevelDebug {
		loggers = append(loggers, log.NewSlogAdapter(logger))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := clk.Config{Logger: logger, EventLogger: log.NewMultiLogger(loggers...)}
	ctrl, err := build(ctx, file, bus, cfg, config.Assign)
	if err != nil {
		fatal(err)
	}
	logger.Info("clock tree ready", "nodes", len(ctrl.Nodes()), "fingerprint", ctrl.Fingerprint()[:16])

	var store *persistence.SnapshotStore
	if config.StateFile != "" {
		store = persistence.NewSnapshotStore(config.StateFile)
		if config.Reset {
			logger.Info("resetting persisted state", "path", store.Path())
			if err := store.Clear(); err != nil {
				logger.Warn("failed to clear state", "error", err)
			}
		}
		if config.Restore {
			if err := restore(ctx, ctrl, store, file.SoC, logger); err != nil {
				fatal(err)
			}
		}
	}

	sh := interactive.New(ctrl, interactive.Config{
		SoC:         file.SoC,
		Store:       store,
		History:     history,
		HistoryFile: historyFile(),
		Out:         os.Stdout,
	})

	if args := flag.Args(); len(args) > 0 {
		sh.Exec(ctx, strings.Join(args, " "))
		sh.Close()
		return
	}

	if !config.Interactive {
		if err := ctrl.Tree(os.Stdout); err != nil {
			fatal(err)
		}
		return
	}

	if err := sh.Attach(); err != nil {
		fatal(err)
	}
	// Route log output through readline to avoid interfering with input
	logOut.set(sh.Stdout())
	go sh.Run(ctx, cancel)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal", "signal", sig)
	case <-ctx.Done():
	}

	if store != nil {
		if err := store.Capture(ctrl, file.SoC, "shutdown"); err != nil {
			logger.Warn("failed to save state", "error", err)
		} else {
			logger.Info("state saved", "path", store.Path())
		}
	}
	if fileLog != nil && fileLog.Dropped() > 0 {
		logger.Warn("events dropped from log", "count", fileLog.Dropped())
	}
}

// build registers the tree on bus and, when assign is set, applies the
// boot-time rates.
func build(ctx context.Context, file *descriptor.File, bus regio.Bus, cfg clk.Config, assign bool) (*clk.Controller, error) {
	if assign {
		return file.Boot(ctx, bus, cfg)
	}
	ctrl := clk.NewController(bus, cfg)
	if err := file.Build(ctrl); err != nil {
		return nil, err
	}
	return ctrl, nil
}

func restore(ctx context.Context, ctrl *clk.Controller, store *persistence.SnapshotStore, soc string, logger *slog.Logger) error {
	state, err := store.Load()
	if err != nil {
		return fmt.Errorf("loading state: %w", err)
	}
	if state == nil {
		logger.Info("no persisted state", "path", store.Path())
		return nil
	}
	if state.SoC != soc {
		return fmt.Errorf("state %s was saved for %s, not %s", store.Path(), state.SoC, soc)
	}
	if err := ctrl.Restore(ctx, state.Snapshot); err != nil {
		if errors.Is(err, clk.ErrTopology) {
			return fmt.Errorf("state %s does not match the loaded tree: %w", store.Path(), err)
		}
		return err
	}
	logger.Info("state restored", "saved_at", state.SavedAt, "reason", state.Reason)
	return nil
}

func openBus(file *descriptor.File, cfg Config) (regio.Bus, func(), error) {
	nop := func() {}
	switch strings.ToLower(cfg.Bus) {
	case "sim", "":
		return file.SimBus(), nop, nil
	case "mmio":
		b, err := regio.OpenMMIO(cfg.MMIOPath, cfg.MMIOBase, uint32(cfg.MMIOSize))
		if err != nil {
			return nil, nil, err
		}
		return b, func() { _ = b.Close() }, nil
	case "i2c":
		b, err := openI2C(cfg.I2CBus, cfg.I2CAddr)
		if err != nil {
			return nil, nil, err
		}
		return b, nop, nil
	default:
		return nil, nil, fmt.Errorf("unknown bus: %s (use: sim, mmio, i2c)", cfg.Bus)
	}
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level: %s (use: debug, info, warn, error)", s)
	}
}

func historyFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "clkctl_history")
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// switchWriter lets the log destination move to the readline terminal after
// the handler is built.
type switchWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *switchWriter) set(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w = w
}
