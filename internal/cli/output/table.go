package output

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
)

// TableFormatter formats data as an aligned text table.
type TableFormatter struct {
	NoHeaders bool
}

// Format formats data as a table.
//
// A list of objects becomes one row per element with a column per key; a
// single object becomes FIELD/VALUE rows with nested objects flattened to
// dotted keys; anything else becomes VALUE rows.
func (f *TableFormatter) Format(w io.Writer, data any) error {
	if data == nil {
		return nil
	}
	switch t := data.(type) {
	case *Table:
		return t.RenderWithOptions(w, f.NoHeaders)
	case Table:
		return t.RenderWithOptions(w, f.NoHeaders)
	}

	v, err := generic(data)
	if err != nil {
		return err
	}
	return toTable(v).RenderWithOptions(w, f.NoHeaders)
}

func toTable(v any) *Table {
	switch v := v.(type) {
	case map[string]any:
		table := &Table{Headers: []string{"FIELD", "VALUE"}}
		flatten("", v, table)
		return table
	case []any:
		return listToTable(v)
	default:
		return &Table{Headers: []string{"VALUE"}, Rows: [][]string{{formatValue(v)}}}
	}
}

// flatten adds one row per leaf of m, keyed by its dotted path.
func flatten(prefix string, m map[string]any, table *Table) {
	for _, k := range sortedKeys(m) {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := m[k].(map[string]any); ok && len(nested) > 0 {
			flatten(key, nested, table)
			continue
		}
		table.AddRow(key, formatValue(m[k]))
	}
}

func listToTable(items []any) *Table {
	if len(items) == 0 {
		return &Table{}
	}

	var columns []string
	seen := make(map[string]bool)
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			columns = nil
			break
		}
		for _, k := range sortedKeys(m) {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}

	if columns == nil {
		table := &Table{Headers: []string{"VALUE"}}
		for _, item := range items {
			table.AddRow(formatValue(item))
		}
		return table
	}

	table := &Table{}
	for _, c := range columns {
		table.Headers = append(table.Headers, strings.ToUpper(c))
	}
	for _, item := range items {
		m := item.(map[string]any)
		row := make([]string, len(columns))
		for i, c := range columns {
			row[i] = formatValue(m[c])
		}
		table.AddRow(row...)
	}
	return table
}

// formatValue formats a JSON-shaped value for a single cell.
func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "-"
	case string:
		if v == "" {
			return "-"
		}
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case []any:
		if len(v) == 0 {
			return "-"
		}
		parts := make([]string, 0, len(v))
		for _, e := range v {
			switch e.(type) {
			case map[string]any, []any:
				return fmt.Sprintf("[%d items]", len(v))
			}
			parts = append(parts, formatValue(e))
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		if len(v) == 0 {
			return "-"
		}
		return fmt.Sprintf("{%d keys}", len(v))
	default:
		return fmt.Sprint(v)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Table represents tabular data.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Render renders the table to the writer.
func (t *Table) Render(w io.Writer) error {
	return t.RenderWithOptions(w, false)
}

// RenderWithOptions renders the table with options.
func (t *Table) RenderWithOptions(w io.Writer, noHeaders bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if !noHeaders && len(t.Headers) > 0 {
		fmt.Fprintln(tw, strings.Join(t.Headers, "\t"))
	}
	for _, row := range t.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	return tw.Flush()
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}
