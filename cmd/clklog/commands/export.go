package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/clkfabric/clktree/pkg/log"
)

// RunExport exports the log file to the specified format.
func RunExport(path, format, output string) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "jsonl":
		return exportJSONL(reader, w)
	case "csv":
		return exportCSV(reader, w)
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}
}

func exportJSONL(reader *log.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := encoder.Encode(event); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
	return nil
}

func exportCSV(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"timestamp", "transition_id", "operation", "category", "node", "detail", "old_rate", "new_rate"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		var detail, oldRate, newRate string
		switch {
		case event.Phase != nil:
			detail = event.Phase.Phase.String()
			oldRate = strconv.FormatUint(event.Phase.OldRate, 10)
			newRate = strconv.FormatUint(event.Phase.NewRate, 10)
		case event.Forecast != nil:
			detail = event.Forecast.Descendant
			if event.Forecast.Vetoed {
				detail += " (vetoed)"
			}
			oldRate = strconv.FormatUint(event.Forecast.OldRate, 10)
			newRate = strconv.FormatUint(event.Forecast.NewRate, 10)
		case event.Write != nil:
			detail = fmt.Sprintf("%s x%d", event.Write.Stage.String(), len(event.Write.Writes))
		case event.Error != nil:
			detail = event.Error.Message
		}

		row := []string{
			event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
			event.TransitionID,
			event.Operation.String(),
			event.Category.String(),
			event.Node,
			detail,
			oldRate,
			newRate,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return nil
}
