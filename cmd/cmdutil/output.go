package cmdutil

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"firesync/internal/service/orchestrator"
)

const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// ValidateFormat rejects anything but table, json and yaml.
func ValidateFormat(format string) error {
	switch format {
	case FormatTable, FormatJSON, FormatYAML:
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (use 'table', 'json' or 'yaml')", format)
	}
}

// Render writes data as JSON or YAML, or calls table for the table format.
func Render(w io.Writer, format string, data any, table func(io.Writer)) error {
	switch format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(data)
	case FormatYAML:
		out, err := yaml.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		_, err = w.Write(out)
		return err
	case FormatTable:
		table(w)
		return nil
	default:
		return ValidateFormat(format)
	}
}

// NewTable returns a left-aligned borderless table.
func NewTable(w io.Writer, headers ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)
	table.SetBorder(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	return table
}

// KeyValueTable renders two-column rows in the given order.
func KeyValueTable(w io.Writer, rows [][2]string) {
	table := NewTable(w, "Key", "Value")
	for _, row := range rows {
		table.Append([]string{row[0], row[1]})
	}
	table.Render()
}

// PrintResult prints a sync result summary and returns an error when the
// operation did not succeed.
func PrintResult(w io.Writer, operation string, result *orchestrator.SyncResult) error {
	KeyValueTable(w, [][2]string{
		{"run", result.RunID},
		{"success", strconv.FormatBool(result.Success)},
		{"total", strconv.Itoa(result.Total)},
		{"succeeded", strconv.Itoa(result.Succeeded)},
		{"deleted", strconv.Itoa(result.Deleted)},
		{"skipped", strconv.Itoa(result.Skipped)},
		{"failed", strconv.Itoa(result.Failed)},
		{"degraded", strconv.Itoa(result.Degraded)},
		{"duration", result.Duration.Round(time.Millisecond).String()},
	})

	for _, p := range result.Pruned {
		fmt.Fprintf(w, "Removed %s target %s: type no longer exists\n", p.Kind, p.Slug)
	}

	if !result.Success {
		if result.Reason != "" {
			return fmt.Errorf("%s failed: %s", operation, result.Reason)
		}
		return fmt.Errorf("%s failed", operation)
	}
	if result.Reason != "" {
		fmt.Fprintf(w, "%s: %s\n", operation, result.Reason)
		return nil
	}
	fmt.Fprintf(w, "%s completed successfully\n", operation)
	return nil
}

// Dash renders empty values as "-".
func Dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
