package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/goccy/go-yaml"
	"github.com/itchyny/gojq"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	// FormatYAML outputs as YAML (default for terminal)
	FormatYAML OutputFormat = "yaml"
	// FormatJSON outputs as JSON
	FormatJSON OutputFormat = "json"
	// FormatTable outputs as formatted table
	FormatTable OutputFormat = "table"
	// FormatRaw outputs raw data
	FormatRaw OutputFormat = "raw"
)

// OutputOptions configures output behavior
type OutputOptions struct {
	// Format is the output format (yaml, json, table, raw)
	Format OutputFormat

	// File is the output file path (empty for stdout)
	File string

	// Indent is the indentation for JSON output
	Indent string

	// Query is a jq expression applied to the result before formatting.
	Query string

	// Writer is an optional custom writer (overrides File)
	Writer io.Writer
}

// Tabular is implemented by results with their own table layout.
type Tabular interface {
	TableHeader() []string
	TableRows() [][]any
}

// Output writes the result to the configured destination
func Output(result any, opts OutputOptions) error {
	if opts.Query != "" {
		var err error
		if result, err = Query(result, opts.Query); err != nil {
			return err
		}
	}

	var w io.Writer = os.Stdout

	if opts.Writer != nil {
		w = opts.Writer
	} else if opts.File != "" {
		f, err := os.Create(opts.File)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch opts.Format {
	case FormatJSON:
		return outputJSON(w, result, opts.Indent)
	case FormatYAML, "":
		return outputYAML(w, result)
	case FormatTable:
		return outputTable(w, result)
	case FormatRaw:
		return outputRaw(w, result)
	default:
		return fmt.Errorf("unsupported output format: %s", opts.Format)
	}
}

// Query runs the jq expression expr over result. The result is first
// converted to its JSON form. A single output is returned as is; several
// are returned as a slice.
func Query(result any, expr string) (any, error) {
	q, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid jq expression %q: %w", expr, err)
	}
	input, err := plain(result)
	if err != nil {
		return nil, err
	}
	var out []any
	iter := q.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			return nil, fmt.Errorf("jq %q: %w", expr, err)
		}
		out = append(out, v)
	}
	if len(out) == 1 {
		return out[0], nil
	}
	return out, nil
}

// plain converts v to maps, slices and scalars through its JSON encoding.
func plain(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to format output: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func outputJSON(w io.Writer, result any, indent string) error {
	enc := json.NewEncoder(w)
	if indent == "" {
		indent = "  "
	}
	enc.SetIndent("", indent)
	return enc.Encode(result)
}

func outputYAML(w io.Writer, result any) error {
	data, err := yaml.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func outputTable(w io.Writer, result any) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	if tab, ok := result.(Tabular); ok {
		t.AppendHeader(toRow(tab.TableHeader()))
		for _, r := range tab.TableRows() {
			t.AppendRow(table.Row(r))
		}
		t.Render()
		return nil
	}

	v, err := plain(result)
	if err != nil {
		return err
	}
	switch v := v.(type) {
	case []any:
		rows := lo.FilterMap(v, func(e any, _ int) (map[string]any, bool) {
			m, ok := e.(map[string]any)
			return m, ok
		})
		if len(rows) != len(v) {
			t.AppendHeader(table.Row{"VALUE"})
			for _, e := range v {
				t.AppendRow(table.Row{e})
			}
			break
		}
		cols := lo.Uniq(lo.FlatMap(rows, func(m map[string]any, _ int) []string { return lo.Keys(m) }))
		slices.Sort(cols)
		t.AppendHeader(toRow(cols))
		for _, m := range rows {
			t.AppendRow(lo.Map(cols, func(c string, _ int) any { return cell(m[c]) }))
		}
	case map[string]any:
		keys := lo.Keys(v)
		slices.Sort(keys)
		t.AppendHeader(table.Row{"KEY", "VALUE"})
		for _, k := range keys {
			t.AppendRow(table.Row{k, cell(v[k])})
		}
	default:
		t.AppendRow(table.Row{v})
	}
	t.Render()
	return nil
}

// cell renders nested values as compact JSON.
func cell(v any) any {
	switch v.(type) {
	case map[string]any, []any:
		data, _ := json.Marshal(v)
		return string(data)
	case nil:
		return ""
	}
	return v
}

func toRow(s []string) table.Row {
	return lo.Map(s, func(h string, _ int) any { return h })
}

func outputRaw(w io.Writer, result any) error {
	switch v := result.(type) {
	case []byte:
		_, err := w.Write(v)
		return err
	case string:
		_, err := w.Write([]byte(v))
		return err
	default:
		return outputYAML(w, result)
	}
}

// Print helpers for terminal output

// PrintSuccess prints a success message with checkmark
func PrintSuccess(format string, args ...any) {
	fmt.Printf("✓ "+format+"\n", args...)
}

// PrintError prints an error message to stderr
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
