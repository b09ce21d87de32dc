package main

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"

	"github.com/persistorai/fluxtrace/client"
)

func formatJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func formatTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	printRow := func(cells []string) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			width := 0
			if i < len(widths) {
				width = widths[i]
			}
			parts[i] = fmt.Sprintf("%-*s", width, cell)
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
	}

	printRow(headers)
	seps := make([]string, len(headers))
	for i, width := range widths {
		seps[i] = strings.Repeat("-", width)
	}
	printRow(seps)
	for _, row := range rows {
		printRow(row)
	}
}

// output prints v as indented JSON, or quietVal alone in quiet mode.
func output(w io.Writer, v any, quietVal string) error {
	if flagFmt == "quiet" {
		fmt.Fprintln(w, quietVal)
		return nil
	}
	return formatJSON(w, v)
}

var traceHeaders = []string{"DEPTH", "KEY", "CONTRIBUTION", "INFLUX", "TERMINAL", "PATH"}

func traceRow(h client.TraceHit) []string {
	terminal := ""
	if h.Terminal {
		terminal = "yes"
	}
	return []string{
		strconv.Itoa(h.Depth),
		strings.Repeat("  ", h.Depth) + h.Node.Key,
		strconv.FormatFloat(h.Contribution, 'f', 6, 64),
		strconv.FormatFloat(h.Influx, 'g', -1, 64),
		terminal,
		strings.Join(h.Path, ">"),
	}
}

// printHits writes hits as they arrive: NDJSON for json, one key per line
// for quiet. The table format needs column widths, so it buffers. It
// returns the first error in the sequence.
func printHits(w io.Writer, format string, hits iter.Seq2[client.TraceHit, error]) error {
	var rows [][]string
	enc := json.NewEncoder(w)

	for hit, err := range hits {
		if err != nil {
			if rows != nil {
				formatTable(w, traceHeaders, rows)
			}
			return err
		}

		switch format {
		case "quiet":
			fmt.Fprintln(w, hit.Node.Key)
		case "table":
			rows = append(rows, traceRow(hit))
		default:
			if err := enc.Encode(hit); err != nil {
				return fmt.Errorf("encode json: %w", err)
			}
		}
	}

	if format == "table" {
		formatTable(w, traceHeaders, rows)
	}
	return nil
}
