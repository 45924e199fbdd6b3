package frame

import (
	"fmt"
	"sort"
)

// GroupBy partitions a frame's rows by the values of key columns. Groups are
// ordered by key; rows with a null key are dropped.
type GroupBy struct {
	frame  *Frame
	keys   []string
	labels []any
	groups [][]int
}

// GroupBy groups the rows by the given key columns.
func (f *Frame) GroupBy(keys []string) (*GroupBy, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("no group keys passed")
	}
	for _, k := range keys {
		if !f.HasColumn(k) {
			return nil, columnNotFound(k)
		}
	}
	g := &GroupBy{frame: f, keys: keys}
	for i := 0; i < f.Len(); i++ {
		var label any
		if len(keys) == 1 {
			label = f.data[keys[0]][i]
		} else {
			label = f.rowKey(i, keys)
		}
		if hasNull(label) {
			continue
		}
		found := false
		for j, l := range g.labels {
			if Equal(l, label) {
				g.groups[j] = append(g.groups[j], i)
				found = true
				break
			}
		}
		if !found {
			g.labels = append(g.labels, label)
			g.groups = append(g.groups, []int{i})
		}
	}

	order := make([]int, len(g.labels))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return compareNullsLast(g.labels[order[a]], g.labels[order[b]]) < 0
	})
	labels := make([]any, len(order))
	groups := make([][]int, len(order))
	for i, o := range order {
		labels[i] = g.labels[o]
		groups[i] = g.groups[o]
	}
	g.labels, g.groups = labels, groups
	return g, nil
}

func hasNull(label any) bool {
	if t, ok := label.(Tuple); ok {
		for _, v := range t {
			if IsNull(v) {
				return true
			}
		}
		return false
	}
	return IsNull(label)
}

// Keys returns the grouping columns.
func (g *GroupBy) Keys() []string { return g.keys }

// Column selects one column of every group.
func (g *GroupBy) Column(name string) (*GroupColumn, error) {
	if !g.frame.HasColumn(name) {
		return nil, columnNotFound(name)
	}
	return &GroupColumn{group: g, column: name}, nil
}

// Size counts the rows of every group.
func (g *GroupBy) Size() *Series {
	vals := make([]any, len(g.groups))
	for i, rows := range g.groups {
		vals[i] = int64(len(rows))
	}
	return NewSeries("size", vals, g.labels)
}

// Aggregate reduces every non-key column of every group. With numericOnly,
// non-numeric columns are skipped.
func (g *GroupBy) Aggregate(fn func(*Series) (any, error), numericOnly bool) (*Frame, error) {
	var series []*Series
	for _, c := range g.frame.columns {
		if isKey(c, g.keys) {
			continue
		}
		col, _ := g.frame.Column(c)
		if numericOnly && !col.isNumeric() {
			continue
		}
		s, err := (&GroupColumn{group: g, column: c}).Aggregate(fn)
		if err != nil {
			return nil, err
		}
		series = append(series, s)
	}
	out := FromSeries(series...)
	if len(series) == 0 {
		out.index = g.labels
	}
	return out, nil
}

func isKey(c string, keys []string) bool {
	for _, k := range keys {
		if k == c {
			return true
		}
	}
	return false
}

// GroupColumn is one column of a GroupBy.
type GroupColumn struct {
	group  *GroupBy
	column string
}

// Aggregate reduces the column within every group; the result is indexed
// by group label.
func (c *GroupColumn) Aggregate(fn func(*Series) (any, error)) (*Series, error) {
	col, err := c.group.frame.Column(c.column)
	if err != nil {
		return nil, err
	}
	vals := make([]any, len(c.group.groups))
	for i, rows := range c.group.groups {
		v, err := fn(col.Take(rows))
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", QuoteString(c.column), err)
		}
		vals[i] = v
	}
	return NewSeries(c.column, vals, c.group.labels), nil
}

// Size counts the rows of every group.
func (c *GroupColumn) Size() *Series {
	s := c.group.Size()
	s.Name = c.column
	return s
}
