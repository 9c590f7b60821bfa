// Command clklog views and analyzes clock transition logs.
//
// Log files are written by clkctl when run with the -event-log flag.
//
// Usage:
//
//	clklog <command> [flags] <file.clog>
//
// Commands:
//
//	view     View log file in human-readable format
//	export   Export log file to JSONL or CSV format
//	filter   Filter log file and write to new file
//	stats    Show statistics about the log file
//
// Examples:
//
//	# View every transition touching mck0
//	clklog view --node mck0 boot.clog
//
//	# Only forecasts
//	clklog view --category forecast boot.clog
//
//	# Keep failed transitions for a bug report
//	clklog filter --phase failed -o failed.clog boot.clog
//
//	# Export to CSV
//	clklog export --format csv -o boot.csv boot.clog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/clkfabric/clktree/cmd/clklog/commands"
)

const usage = `clklog - Clock Transition Log Analyzer

Usage:
  clklog <command> [flags] <file.clog>

Commands:
  view     View log file in human-readable format
  export   Export log file to JSONL or CSV format
  filter   Filter log file and write to new file
  stats    Show statistics about the log file

Use "clklog <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func requirePath(fs *flag.FlagSet) string {
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `clklog view - View log file in human-readable format

Usage:
  clklog view [flags] <file.clog>

Flags:
`)
		fs.PrintDefaults()
	}

	node := fs.String("node", "", "Filter by clock name (target or notified descendant)")
	operation := fs.String("op", "", "Filter by operation (set-rate, set-parent, enable, disable, suspend, resume, restore)")
	category := fs.String("category", "", "Filter by category (phase, forecast, write, error)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := requirePath(fs)

	filter := commands.ViewFilter{Node: *node}

	if *operation != "" {
		op, err := commands.ParseOperationFlag(*operation)
		if err != nil {
			fail(err)
		}
		filter.Operation = &op
	}

	if *category != "" {
		c, err := commands.ParseCategoryFlag(*category)
		if err != nil {
			fail(err)
		}
		filter.Category = &c
	}

	if err := commands.RunView(path, filter, os.Stdout); err != nil {
		fail(err)
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `clklog export - Export log file to JSONL or CSV format

Usage:
  clklog export [flags] <file.clog>

Flags:
`)
		fs.PrintDefaults()
	}

	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := requirePath(fs)

	if err := commands.RunExport(path, *format, *output); err != nil {
		fail(err)
	}
}

func runFilter(args []string) {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `clklog filter - Filter log file and write to new file

Usage:
  clklog filter [flags] <file.clog>

Flags:
`)
		fs.PrintDefaults()
	}

	output := fs.String("o", "", "Output file (required)")
	txID := fs.String("tx", "", "Filter by transition ID")
	node := fs.String("node", "", "Filter by clock name")
	timeStart := fs.String("time-start", "", "Filter by start time (RFC3339)")
	timeEnd := fs.String("time-end", "", "Filter by end time (RFC3339)")
	operation := fs.String("op", "", "Filter by operation")
	category := fs.String("category", "", "Filter by category (phase, forecast, write, error)")
	phase := fs.String("phase", "", "Filter phase and error events by transition state")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := requirePath(fs)

	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	opts := commands.FilterOptions{
		Output:       *output,
		TransitionID: *txID,
		Node:         *node,
		TimeStart:    *timeStart,
		TimeEnd:      *timeEnd,
		Operation:    *operation,
		Category:     *category,
		Phase:        *phase,
	}

	n, err := commands.RunFilter(path, opts)
	if err != nil {
		fail(err)
	}
	fmt.Printf("Filtered %d events to %s\n", n, *output)
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `clklog stats - Show statistics about the log file

Usage:
  clklog stats <file.clog>

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := requirePath(fs)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fail(err)
	}
}
