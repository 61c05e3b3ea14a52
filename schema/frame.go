package schema

import (
	"fmt"
	"slices"
	"strconv"
)

// Column is a named, typed column of a Frame. A nil cell is a missing value.
type Column struct {
	Name   string
	Kind   ColumnKind
	Values []any
}

// IsNull reports whether row i is missing.
func (c *Column) IsNull(i int) bool {
	return c.Values[i] == nil
}

// NullCount returns the number of missing cells.
func (c *Column) NullCount() int {
	n := 0
	for _, v := range c.Values {
		if v == nil {
			n++
		}
	}
	return n
}

// Float returns row i as a float64. The second value is false for missing
// cells and for kinds that have no numeric reading.
func (c *Column) Float(i int) (float64, bool) {
	switch v := c.Values[i].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// String returns row i rendered as a string. Missing cells return false.
func (c *Column) String(i int) (string, bool) {
	switch v := c.Values[i].(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return fmt.Sprint(v), true
	}
}

// Frame is a small columnar table used by the feature pipeline.
// Operations never mutate their receiver unless the method says so.
type Frame struct {
	cols  []*Column
	index map[string]int
	rows  int
}

// NewFrame returns an empty frame.
func NewFrame() *Frame {
	return &Frame{index: make(map[string]int)}
}

// NewFrameFromColumns builds a frame from columns that must share a length.
func NewFrameFromColumns(cols ...*Column) (*Frame, error) {
	f := NewFrame()
	for _, c := range cols {
		if err := f.AddColumn(c.Name, c.Kind, c.Values); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Len returns the number of rows.
func (f *Frame) Len() int { return f.rows }

// Width returns the number of columns.
func (f *Frame) Width() int { return len(f.cols) }

// Columns returns the column names in order.
func (f *Frame) Columns() []string {
	names := make([]string, len(f.cols))
	for i, c := range f.cols {
		names[i] = c.Name
	}
	return names
}

// Has reports whether a column exists.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Column returns the named column.
func (f *Frame) Column(name string) (*Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.cols[i], true
}

// Kind returns the kind of the named column, or "" when absent.
func (f *Frame) Kind(name string) ColumnKind {
	if c, ok := f.Column(name); ok {
		return c.Kind
	}
	return ""
}

// AddColumn appends a column, or replaces an existing one in place.
// This mutates the frame; callers working on shared input Clone first.
func (f *Frame) AddColumn(name string, kind ColumnKind, values []any) error {
	if name == "" {
		return fmt.Errorf("column name cannot be empty")
	}
	if len(f.cols) > 0 && !(len(f.cols) == 1 && f.Has(name)) && len(values) != f.rows {
		return &SchemaError{Stage: "frame", Columns: []string{name}, Reason: fmt.Sprintf("column has %d rows, frame has %d", len(values), f.rows)}
	}
	normalized := make([]any, len(values))
	for i, v := range values {
		nv, err := normalizeCell(kind, v)
		if err != nil {
			return &SchemaError{Stage: "frame", Columns: []string{name}, Reason: fmt.Sprintf("row %d: %v", i, err)}
		}
		normalized[i] = nv
	}
	col := &Column{Name: name, Kind: kind, Values: normalized}
	if i, ok := f.index[name]; ok {
		f.cols[i] = col
	} else {
		f.index[name] = len(f.cols)
		f.cols = append(f.cols, col)
	}
	f.rows = len(values)
	return nil
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	out := NewFrame()
	for _, c := range f.cols {
		out.index[c.Name] = len(out.cols)
		out.cols = append(out.cols, &Column{Name: c.Name, Kind: c.Kind, Values: slices.Clone(c.Values)})
	}
	out.rows = f.rows
	return out
}

// Drop returns a copy without the named columns. Absent names are ignored.
func (f *Frame) Drop(names ...string) *Frame {
	out := NewFrame()
	for _, c := range f.cols {
		if slices.Contains(names, c.Name) {
			continue
		}
		out.index[c.Name] = len(out.cols)
		out.cols = append(out.cols, &Column{Name: c.Name, Kind: c.Kind, Values: slices.Clone(c.Values)})
	}
	out.rows = f.rows
	return out
}

// Select returns a copy holding only the named columns, in the given order.
func (f *Frame) Select(names ...string) (*Frame, error) {
	var missing []string
	for _, n := range names {
		if !f.Has(n) {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Stage: "frame", Columns: missing, Reason: "columns not found"}
	}
	out := NewFrame()
	for _, n := range names {
		if out.Has(n) {
			continue
		}
		c := f.cols[f.index[n]]
		out.index[n] = len(out.cols)
		out.cols = append(out.cols, &Column{Name: c.Name, Kind: c.Kind, Values: slices.Clone(c.Values)})
	}
	out.rows = f.rows
	return out, nil
}

// Filter returns a copy with the rows for which keep returns true.
func (f *Frame) Filter(keep func(row int) bool) *Frame {
	var rows []int
	for i := 0; i < f.rows; i++ {
		if keep(i) {
			rows = append(rows, i)
		}
	}
	return f.Take(rows)
}

// Take returns a copy with the given rows, in the given order. Rows may repeat.
func (f *Frame) Take(rows []int) *Frame {
	out := NewFrame()
	for _, c := range f.cols {
		vals := make([]any, len(rows))
		for j, r := range rows {
			vals[j] = c.Values[r]
		}
		out.index[c.Name] = len(out.cols)
		out.cols = append(out.cols, &Column{Name: c.Name, Kind: c.Kind, Values: vals})
	}
	out.rows = len(rows)
	return out
}

// Row returns row i as a name to value map.
func (f *Frame) Row(i int) map[string]any {
	row := make(map[string]any, len(f.cols))
	for _, c := range f.cols {
		row[c.Name] = c.Values[i]
	}
	return row
}

// Float64s returns a numeric column as floats. Missing cells or a
// non-numeric kind are schema errors.
func (f *Frame) Float64s(name string) ([]float64, error) {
	c, ok := f.Column(name)
	if !ok {
		return nil, &SchemaError{Stage: "frame", Columns: []string{name}, Reason: "column not found"}
	}
	if !c.Kind.IsNumeric() && c.Kind != BoolKind {
		return nil, &SchemaError{Stage: "frame", Columns: []string{name}, Reason: fmt.Sprintf("column kind %s is not numeric", c.Kind)}
	}
	out := make([]float64, f.rows)
	for i := range out {
		v, ok := c.Float(i)
		if !ok {
			return nil, &SchemaError{Stage: "frame", Columns: []string{name}, Reason: fmt.Sprintf("missing value at row %d", i)}
		}
		out[i] = v
	}
	return out, nil
}

// Strings returns a column rendered as strings. Missing cells are schema errors.
func (f *Frame) Strings(name string) ([]string, error) {
	c, ok := f.Column(name)
	if !ok {
		return nil, &SchemaError{Stage: "frame", Columns: []string{name}, Reason: "column not found"}
	}
	out := make([]string, f.rows)
	for i := range out {
		s, ok := c.String(i)
		if !ok {
			return nil, &SchemaError{Stage: "frame", Columns: []string{name}, Reason: fmt.Sprintf("missing value at row %d", i)}
		}
		out[i] = s
	}
	return out, nil
}

// NumericColumns lists numeric columns in order, skipping the excluded names.
func (f *Frame) NumericColumns(exclude ...string) []string {
	var names []string
	for _, c := range f.cols {
		if c.Kind.IsNumeric() && !slices.Contains(exclude, c.Name) {
			names = append(names, c.Name)
		}
	}
	return names
}

// RowsOf extracts the named numeric columns as a row-major matrix.
func (f *Frame) RowsOf(names []string) (Matrix, error) {
	m := Matrix{Columns: slices.Clone(names), Rows: make([][]float64, f.rows)}
	for i := range m.Rows {
		m.Rows[i] = make([]float64, len(names))
	}
	for j, n := range names {
		vals, err := f.Float64s(n)
		if err != nil {
			return Matrix{}, err
		}
		for i, v := range vals {
			m.Rows[i][j] = v
		}
	}
	return m, nil
}

// Matrix is a row-major numeric matrix with named columns.
type Matrix struct {
	Columns []string
	Rows    [][]float64
}

// StringValues converts strings to frame cells.
func StringValues(vals ...string) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}

// IntValues converts integers to frame cells.
func IntValues(vals ...int64) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}

// FloatValues converts floats to frame cells.
func FloatValues(vals ...float64) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}

// normalizeCell coerces v to the canonical Go type of kind.
func normalizeCell(kind ColumnKind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch kind {
	case StringKind:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case IntKind:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case bool:
			if n {
				return int64(1), nil
			}
			return int64(0), nil
		}
	case FloatKind:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case int:
			return float64(n), nil
		}
	case BoolKind:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	default:
		return nil, fmt.Errorf("unknown column kind %q", kind)
	}
	return nil, fmt.Errorf("value %v (%T) does not fit kind %s", v, v, kind)
}
