// Package interactive provides the interactive command-line interface
// for clkctl.
package interactive

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/clkfabric/clktree/pkg/clk"
	"github.com/clkfabric/clktree/pkg/log"
	"github.com/clkfabric/clktree/pkg/persistence"
)

// Config wires the shell to the rest of the program.
type Config struct {
	// SoC names the loaded descriptor; it is recorded in saved snapshots.
	SoC string

	// Store enables save and restore. Nil disables them.
	Store *persistence.SnapshotStore

	// History backs the events command. Nil disables it.
	History *log.MemoryLogger

	// HistoryFile keeps readline history across sessions.
	HistoryFile string

	// Out receives command output until Run attaches a terminal.
	Out io.Writer
}

// Shell handles interactive mode for clkctl.
type Shell struct {
	ctrl *clk.Controller
	cfg  Config
	out  io.Writer
	rl   *readline.Instance

	// watches maps a clock name to its unsubscribe function.
	watches map[string]func()
}

// New creates a shell over ctrl. Commands can be run with Exec right away;
// Attach adds the readline terminal for Run.
func New(ctrl *clk.Controller, cfg Config) *Shell {
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	return &Shell{
		ctrl:    ctrl,
		cfg:     cfg,
		out:     out,
		watches: make(map[string]func()),
	}
}

// Attach creates the readline terminal. Output written afterwards goes
// through it so that asynchronous notifications do not garble the prompt.
func (s *Shell) Attach() error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "clk> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		HistoryFile:     s.cfg.HistoryFile,
		AutoComplete:    s.completer(),
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	s.rl = rl
	s.out = rl.Stdout()
	return nil
}

// Stdout returns a writer that coordinates with the readline input.
// Use it for log output to avoid interfering with the prompt.
func (s *Shell) Stdout() io.Writer {
	return s.out
}

// Run starts the interactive command loop. Attach must be called first.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.out, "Exiting...")
			cancel()
			return
		}

		if !s.Exec(ctx, line) {
			fmt.Fprintln(s.out, "Exiting...")
			cancel()
			return
		}
	}
}

// Close drops every watch and releases the terminal.
func (s *Shell) Close() {
	for name, unsubscribe := range s.watches {
		unsubscribe()
		delete(s.watches, name)
	}
	if s.rl != nil {
		s.rl.Close()
	}
}

// Exec runs one command line. It returns false when the line asks to quit.
func (s *Shell) Exec(ctx context.Context, line string) bool {
	input := strings.TrimSpace(line)
	if input == "" || strings.HasPrefix(input, "#") {
		return true
	}

	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		s.printHelp()

	case "tree", "t":
		s.cmdTree()

	case "list", "ls":
		s.cmdList(args)

	case "info", "i":
		s.cmdInfo(args)

	case "get", "g":
		s.cmdGet(args)

	case "export", "x":
		s.cmdExport(args)

	case "round":
		s.cmdRound(args)

	case "set", "s":
		s.cmdSet(ctx, args)

	case "parent", "p":
		s.cmdParent(ctx, args)

	case "enable", "on":
		s.cmdEnable(ctx, args)

	case "disable", "off":
		s.cmdDisable(ctx, args)

	case "watch", "w":
		s.cmdWatch(args)

	case "unwatch":
		s.cmdUnwatch(args)

	case "events", "e":
		s.cmdEvents(args)

	case "peek":
		s.cmdPeek(args)

	case "suspend":
		s.cmdSuspend(ctx)

	case "resume":
		s.cmdResume(ctx)

	case "save":
		s.cmdSave(args)

	case "restore":
		s.cmdRestore(ctx)

	case "fingerprint", "fp":
		fmt.Fprintln(s.out, s.ctrl.Fingerprint())

	case "quit", "exit", "q":
		return false

	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return true
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.out, `
Clock Tree Commands:
  Inspection:
    tree                      - Show the tree along the selected parents
    list [kind]               - List clocks, optionally of one kind
    info <clock>              - Show constraints, parents and state of a clock
    get <clock>               - Read the current rate
    export <type> <index>     - Resolve an exported clock (core, system, peripheral, gck, programmable)
    round <clock> <rate>      - Show what set would do, without touching hardware
    peek <offset>             - Read a raw register

  Control:
    set <clock> <rate>        - Change a rate (e.g. 600MHz, 32768)
    parent <clock> <parent>   - Select a parent by index or name
    enable <clock>            - Ungate a clock and its ancestors
    disable <clock>           - Gate a clock

  Notifications:
    watch <clock>             - Print rate changes of a clock
    unwatch <clock>           - Stop printing them
    events [n]                - Show the last n transition events

  Power:
    suspend                   - Save settings before a low-power mode
    resume                    - Re-apply saved settings
    save [reason]             - Persist the committed settings
    restore                   - Re-apply the persisted settings
    fingerprint               - Show the topology fingerprint

  Other:
    help                      - Show this help
    quit                      - Exit`)
}

// lookup resolves a clock argument and reports failures to the user.
func (s *Shell) lookup(name string) *clk.Node {
	n, err := s.ctrl.Lookup(name)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return nil
	}
	return n
}

func (s *Shell) clockNames(prefix string) []string {
	var names []string
	for _, n := range s.ctrl.Nodes() {
		if strings.HasPrefix(n.Name(), prefix) {
			names = append(names, n.Name())
		}
	}
	return names
}

func (s *Shell) completer() *readline.PrefixCompleter {
	clock := func() readline.PrefixCompleterInterface {
		return readline.PcItemDynamic(s.clockNames)
	}
	return readline.NewPrefixCompleter(
		readline.PcItem("help"),
		readline.PcItem("tree"),
		readline.PcItem("list",
			readline.PcItem("oscillator"),
			readline.PcItem("fractional-pll"),
			readline.PcItem("divider-pll"),
			readline.PcItem("master"),
			readline.PcItem("system"),
			readline.PcItem("peripheral"),
			readline.PcItem("generated"),
			readline.PcItem("programmable"),
		),
		readline.PcItem("info", clock()),
		readline.PcItem("get", clock()),
		readline.PcItem("export",
			readline.PcItem("core"),
			readline.PcItem("system"),
			readline.PcItem("peripheral"),
			readline.PcItem("gck"),
			readline.PcItem("programmable"),
		),
		readline.PcItem("round", clock()),
		readline.PcItem("set", clock()),
		readline.PcItem("parent", clock()),
		readline.PcItem("enable", clock()),
		readline.PcItem("disable", clock()),
		readline.PcItem("watch", clock()),
		readline.PcItem("unwatch", clock()),
		readline.PcItem("events"),
		readline.PcItem("peek"),
		readline.PcItem("suspend"),
		readline.PcItem("resume"),
		readline.PcItem("save"),
		readline.PcItem("restore"),
		readline.PcItem("fingerprint"),
		readline.PcItem("quit"),
	)
}
