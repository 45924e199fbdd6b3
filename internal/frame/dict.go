package frame

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Dict is an insertion-ordered mapping with cell-value keys.
type Dict struct {
	keys   []any
	values []any
}

// NewDict returns an empty Dict.
func NewDict() *Dict { return &Dict{} }

func (d *Dict) find(key any) int {
	for i, k := range d.keys {
		if Equal(k, key) {
			return i
		}
	}
	return -1
}

// Set inserts or replaces key.
func (d *Dict) Set(key, value any) {
	if i := d.find(key); i >= 0 {
		d.values[i] = value
		return
	}
	d.keys = append(d.keys, key)
	d.values = append(d.values, value)
}

// Get looks up key.
func (d *Dict) Get(key any) (any, bool) {
	if i := d.find(key); i >= 0 {
		return d.values[i], true
	}
	return nil, false
}

func (d *Dict) Len() int      { return len(d.keys) }
func (d *Dict) Keys() []any   { return append([]any(nil), d.keys...) }
func (d *Dict) Values() []any { return append([]any(nil), d.values...) }

// Items returns (key, value) tuples.
func (d *Dict) Items() []any {
	out := make([]any, len(d.keys))
	for i := range d.keys {
		out[i] = Tuple{d.keys[i], d.values[i]}
	}
	return out
}

func (d *Dict) String() string {
	parts := make([]string, len(d.keys))
	for i := range d.keys {
		parts[i] = fmt.Sprintf("%s: %s", Repr(d.keys[i]), Repr(d.values[i]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// MarshalJSON writes the entries in insertion order; keys render with str().
func (d *Dict) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i := range d.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(Str(d.keys[i]))
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(jsonValue(d.values[i]))
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
