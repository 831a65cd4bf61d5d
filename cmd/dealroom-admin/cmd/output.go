package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// Output format constants.
const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

// render writes v as JSON or YAML, or calls table for the default format.
func render(w io.Writer, v any, table func(io.Writer)) error {
	switch flagOutput {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("marshal YAML: %w", err)
		}
		return enc.Close()
	case outputTable, "":
		table(w)
		return nil
	default:
		return fmt.Errorf("unknown output format %q (table, json, yaml)", flagOutput)
	}
}

type tableWriter struct {
	w *tabwriter.Writer
}

func newTable(out io.Writer, headers ...string) *tableWriter {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(headers, "\t"))
	return &tableWriter{w: w}
}

func (t *tableWriter) AddRow(values ...string) {
	fmt.Fprintln(t.w, strings.Join(values, "\t"))
}

func (t *tableWriter) Flush() {
	_ = t.w.Flush()
}

func boolToStr(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
