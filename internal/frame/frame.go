// Package frame provides the tabular values templates are evaluated against:
// the ResultSet wire type and a small column-oriented Frame with Series and
// GroupBy views modeled on the pandas operations answer templates use.
package frame

import (
	"fmt"
	"sort"
	"strings"
)

// Frame is an immutable column-oriented table.
type Frame struct {
	columns []string
	data    map[string][]any
	index   []any
}

// New builds a Frame from records; columns fixes the column order.
func New(columns []string, rows []map[string]any) *Frame {
	f := &Frame{
		columns: append([]string(nil), columns...),
		data:    make(map[string][]any, len(columns)),
		index:   RangeIndex(len(rows)),
	}
	for _, c := range columns {
		vals := make([]any, len(rows))
		for i, r := range rows {
			vals[i] = Normalize(r[c])
		}
		f.data[c] = vals
	}
	return f
}

// FromSeries builds a Frame whose columns are the given series; all series
// must share the first one's index.
func FromSeries(series ...*Series) *Frame {
	f := &Frame{data: make(map[string][]any, len(series))}
	for _, s := range series {
		f.columns = append(f.columns, s.Name)
		f.data[s.Name] = s.values
		if f.index == nil {
			f.index = s.index
		}
	}
	if f.index == nil {
		f.index = []any{}
	}
	return f
}

func (f *Frame) Len() int          { return len(f.index) }
func (f *Frame) Columns() []string { return append([]string(nil), f.columns...) }
func (f *Frame) Index() []any      { return f.index }

// HasColumn reports whether name is a column.
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.data[name]
	return ok
}

// Column returns one column as a Series.
func (f *Frame) Column(name string) (*Series, error) {
	vals, ok := f.data[name]
	if !ok {
		return nil, columnNotFound(name)
	}
	return &Series{Name: name, values: vals, index: f.index}, nil
}

// Select keeps the named columns in the given order.
func (f *Frame) Select(names []string) (*Frame, error) {
	out := &Frame{data: make(map[string][]any, len(names)), index: f.index}
	for _, n := range names {
		vals, ok := f.data[n]
		if !ok {
			return nil, columnNotFound(n)
		}
		out.columns = append(out.columns, n)
		out.data[n] = vals
	}
	return out, nil
}

// Take selects rows by position.
func (f *Frame) Take(pos []int) *Frame {
	out := &Frame{columns: f.columns, data: make(map[string][]any, len(f.columns)), index: make([]any, len(pos))}
	for i, p := range pos {
		out.index[i] = f.index[p]
	}
	for _, c := range f.columns {
		src := f.data[c]
		vals := make([]any, len(pos))
		for i, p := range pos {
			vals[i] = src[p]
		}
		out.data[c] = vals
	}
	return out
}

// Filter keeps the rows where mask is True.
func (f *Frame) Filter(mask *Series) (*Frame, error) {
	pos, err := maskPositions(mask, f.Len())
	if err != nil {
		return nil, err
	}
	return f.Take(pos), nil
}

// Slice selects a positional row range.
func (f *Frame) Slice(sl Slice) *Frame { return f.Take(sl.Positions(f.Len())) }

// Head returns the first n rows.
func (f *Frame) Head(n int) *Frame { return f.Take(headPositions(f.Len(), n)) }

// Tail returns the last n rows.
func (f *Frame) Tail(n int) *Frame { return f.Take(tailPositions(f.Len(), n)) }

// Row returns row i as a Series labeled by column name.
func (f *Frame) Row(i int) (*Series, error) {
	if i < 0 {
		i += f.Len()
	}
	if i < 0 || i >= f.Len() {
		return nil, fmt.Errorf("single positional indexer is out-of-bounds")
	}
	vals := make([]any, len(f.columns))
	labels := make([]any, len(f.columns))
	for j, c := range f.columns {
		vals[j] = f.data[c][i]
		labels[j] = c
	}
	return &Series{Name: Str(f.index[i]), values: vals, index: labels}, nil
}

// LabelPosition finds the position of an index label.
func (f *Frame) LabelPosition(label any) (int, error) {
	for i, l := range f.index {
		if Equal(l, label) {
			return i, nil
		}
	}
	return 0, &KeyError{Key: label}
}

// SortValues orders rows by one or more columns, nulls last, stable.
func (f *Frame) SortValues(by []string, ascending []bool) (*Frame, error) {
	cols := make([][]any, len(by))
	for i, b := range by {
		vals, ok := f.data[b]
		if !ok {
			return nil, columnNotFound(b)
		}
		cols[i] = vals
	}
	asc := func(i int) bool {
		if len(ascending) == 0 {
			return true
		}
		if i < len(ascending) {
			return ascending[i]
		}
		return ascending[len(ascending)-1]
	}
	pos := make([]int, f.Len())
	for i := range pos {
		pos[i] = i
	}
	sort.SliceStable(pos, func(a, b int) bool {
		for k, vals := range cols {
			x, y := vals[pos[a]], vals[pos[b]]
			c := compareNullsLast(x, y)
			if c == 0 {
				continue
			}
			if IsNull(x) || IsNull(y) || asc(k) {
				return c < 0
			}
			return c > 0
		}
		return false
	})
	return f.Take(pos), nil
}

// NLargest returns the n rows with the largest values in column.
func (f *Frame) NLargest(n int, column string) (*Frame, error) {
	sorted, err := f.SortValues([]string{column}, []bool{false})
	if err != nil {
		return nil, err
	}
	return sorted.Head(n), nil
}

// NSmallest returns the n rows with the smallest values in column.
func (f *Frame) NSmallest(n int, column string) (*Frame, error) {
	sorted, err := f.SortValues([]string{column}, []bool{true})
	if err != nil {
		return nil, err
	}
	return sorted.Head(n), nil
}

// DropDuplicates removes repeated rows, comparing only subset when given.
func (f *Frame) DropDuplicates(subset []string) (*Frame, error) {
	if len(subset) == 0 {
		subset = f.columns
	}
	for _, c := range subset {
		if !f.HasColumn(c) {
			return nil, columnNotFound(c)
		}
	}
	var keep []int
	var seen []Tuple
	for i := 0; i < f.Len(); i++ {
		key := f.rowKey(i, subset)
		dup := false
		for _, s := range seen {
			if Equal(s, key) {
				dup = true
				break
			}
		}
		if !dup {
			seen = append(seen, key)
			keep = append(keep, i)
		}
	}
	return f.Take(keep), nil
}

func (f *Frame) rowKey(i int, cols []string) Tuple {
	key := make(Tuple, len(cols))
	for j, c := range cols {
		key[j] = f.data[c][i]
	}
	return key
}

// DropNA removes rows holding any null.
func (f *Frame) DropNA() *Frame {
	var keep []int
	for i := 0; i < f.Len(); i++ {
		ok := true
		for _, c := range f.columns {
			if IsNull(f.data[c][i]) {
				ok = false
				break
			}
		}
		if ok {
			keep = append(keep, i)
		}
	}
	return f.Take(keep)
}

// FillNA replaces every null with fill.
func (f *Frame) FillNA(fill any) *Frame {
	out := &Frame{columns: f.columns, data: make(map[string][]any, len(f.columns)), index: f.index}
	for _, c := range f.columns {
		s, _ := f.Column(c)
		out.data[c] = s.FillNA(fill).values
	}
	return out
}

// Reduce applies fn to every column and returns the results labeled by
// column name. With numericOnly, columns holding non-numeric values are
// skipped.
func (f *Frame) Reduce(fn func(*Series) (any, error), numericOnly bool) (*Series, error) {
	var vals, labels []any
	for _, c := range f.columns {
		s, _ := f.Column(c)
		if numericOnly && !s.isNumeric() {
			continue
		}
		v, err := fn(s)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", QuoteString(c), err)
		}
		vals = append(vals, v)
		labels = append(labels, c)
	}
	return NewSeries("", vals, labels), nil
}

func (s *Series) isNumeric() bool {
	for _, v := range s.values {
		if IsNull(v) {
			continue
		}
		switch v.(type) {
		case int64, float64, bool:
		default:
			return false
		}
	}
	return true
}

// Transpose swaps rows and columns; index labels become column names.
func (f *Frame) Transpose() *Frame {
	out := &Frame{data: make(map[string][]any, f.Len())}
	for _, c := range f.columns {
		out.index = append(out.index, c)
	}
	if out.index == nil {
		out.index = []any{}
	}
	for i, label := range f.index {
		name := Str(label)
		vals := make([]any, len(f.columns))
		for j, c := range f.columns {
			vals[j] = f.data[c][i]
		}
		out.columns = append(out.columns, name)
		out.data[name] = vals
	}
	return out
}

// Shape is (rows, columns).
func (f *Frame) Shape() Tuple { return Tuple{int64(f.Len()), int64(len(f.columns))} }

// Size is rows * columns.
func (f *Frame) Size() int64 { return int64(f.Len() * len(f.columns)) }

// Empty reports whether the frame has no cells.
func (f *Frame) Empty() bool { return f.Len() == 0 || len(f.columns) == 0 }

// RowValues returns each row as a list.
func (f *Frame) RowValues() []any {
	out := make([]any, f.Len())
	for i := range out {
		row := make([]any, len(f.columns))
		for j, c := range f.columns {
			row[j] = f.data[c][i]
		}
		out[i] = row
	}
	return out
}

// Records returns each row as a column-ordered Dict.
func (f *Frame) Records() []any {
	out := make([]any, f.Len())
	for i := range out {
		d := NewDict()
		for _, c := range f.columns {
			d.Set(c, f.data[c][i])
		}
		out[i] = d
	}
	return out
}

// ToDict converts the frame like DataFrame.to_dict: "dict" maps column ->
// {label: value}, "list" maps column -> values, "records" is a list of rows.
func (f *Frame) ToDict(orient string) (any, error) {
	switch orient {
	case "", "dict":
		out := NewDict()
		for _, c := range f.columns {
			inner := NewDict()
			for i, label := range f.index {
				inner.Set(label, f.data[c][i])
			}
			out.Set(c, inner)
		}
		return out, nil
	case "list":
		out := NewDict()
		for _, c := range f.columns {
			out.Set(c, append([]any(nil), f.data[c]...))
		}
		return out, nil
	case "records":
		return f.Records(), nil
	}
	return nil, fmt.Errorf("orient %q not understood", orient)
}

// String renders a header line and one line per row.
func (f *Frame) String() string {
	var sb strings.Builder
	sb.WriteString(strings.Join(f.columns, "    "))
	for i := 0; i < f.Len(); i++ {
		sb.WriteByte('\n')
		for j, c := range f.columns {
			if j > 0 {
				sb.WriteString("    ")
			}
			sb.WriteString(Str(f.data[c][i]))
		}
	}
	return sb.String()
}
