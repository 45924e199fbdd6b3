package frame

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// ResultSet is the executed query's output: uniform records plus the column
// order they were produced in.
type ResultSet struct {
	Columns []string
	Rows    []map[string]any
}

// NewResultSet builds a ResultSet. When columns is empty the first row's keys
// are used in sorted order.
func NewResultSet(columns []string, rows []map[string]any) *ResultSet {
	rs := &ResultSet{Columns: columns, Rows: rows}
	if len(rs.Columns) == 0 && len(rows) > 0 {
		rs.Columns = sortedKeys(rows[0])
	}
	return rs
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (rs *ResultSet) Len() int { return len(rs.Rows) }

// Unwrap flattens the nested grouping shape: a single record whose only
// list value is a list of records becomes those records.
func (rs *ResultSet) Unwrap() *ResultSet {
	if len(rs.Rows) != 1 {
		return rs
	}
	var nested []map[string]any
	var cols []string
	found := 0
	for _, c := range rs.Columns {
		list, ok := rs.Rows[0][c].([]any)
		if !ok {
			continue
		}
		found++
		nested = nested[:0]
		cols = nil
		for _, item := range list {
			switch rec := item.(type) {
			case map[string]any:
				nested = append(nested, rec)
			case *Dict:
				m := make(map[string]any, rec.Len())
				for i, k := range rec.keys {
					key, ok := k.(string)
					if !ok {
						return rs
					}
					if len(nested) == 0 {
						cols = append(cols, key)
					}
					m[key] = rec.values[i]
				}
				nested = append(nested, m)
			default:
				return rs
			}
		}
	}
	if found != 1 || len(nested) == 0 {
		return rs
	}
	return NewResultSet(cols, nested)
}

// Frame builds the tabular view of the records.
func (rs *ResultSet) Frame() *Frame {
	return New(rs.Columns, rs.Rows)
}

// MarshalJSON writes the rows as a list of objects in column order.
func (rs *ResultSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, row := range rs.Rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for j, c := range rs.Columns {
			if j > 0 {
				buf.WriteByte(',')
			}
			k, err := json.Marshal(c)
			if err != nil {
				return nil, err
			}
			v, err := json.Marshal(jsonValue(row[c]))
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", c, err)
			}
			buf.Write(k)
			buf.WriteByte(':')
			buf.Write(v)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// jsonValue maps NaN floats to null; encoding/json rejects them.
func jsonValue(v any) any {
	n := Normalize(v)
	if IsNull(n) {
		return nil
	}
	return n
}

// UnmarshalJSON reads a list of objects, keeping the first object's key
// order and decoding numbers without loss.
func (rs *ResultSet) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeOrdered(dec)
	if err != nil {
		return fmt.Errorf("decode result set: %w", err)
	}
	list, ok := v.([]any)
	if !ok {
		return fmt.Errorf("decode result set: expected a list of records")
	}
	rs.Columns, rs.Rows = nil, make([]map[string]any, 0, len(list))
	for i, item := range list {
		rec, ok := item.(*orderedRecord)
		if !ok {
			return fmt.Errorf("decode result set: row %d is not an object", i)
		}
		if i == 0 {
			rs.Columns = rec.keys
		}
		row := make(map[string]any, len(rec.values))
		for k, v := range rec.values {
			row[k] = plain(v)
		}
		rs.Rows = append(rs.Rows, row)
	}
	return nil
}

// orderedRecord is a decoded JSON object with its key order.
type orderedRecord struct {
	keys   []string
	values map[string]any
}

func decodeOrdered(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '[':
			list := []any{}
			for dec.More() {
				v, err := decodeOrdered(dec)
				if err != nil {
					return nil, err
				}
				list = append(list, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return list, nil
		case '{':
			rec := &orderedRecord{values: map[string]any{}}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, _ := kt.(string)
				v, err := decodeOrdered(dec)
				if err != nil {
					return nil, err
				}
				if _, dup := rec.values[key]; !dup {
					rec.keys = append(rec.keys, key)
				}
				rec.values[key] = v
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return rec, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	case json.Number:
		return Normalize(t), nil
	}
	return tok, nil
}

// plain converts decoded nested objects into ordered Dicts.
func plain(v any) any {
	switch x := v.(type) {
	case *orderedRecord:
		d := NewDict()
		for _, k := range x.keys {
			d.Set(k, plain(x.values[k]))
		}
		return d
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = plain(item)
		}
		return out
	}
	return v
}
