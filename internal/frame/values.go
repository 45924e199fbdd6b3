package frame

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Cell values are normalized to nil, bool, int64, float64 or string. Lists
// and tuples are []any and Tuple.

// Tuple is an immutable sequence, used for multi-key group labels and shapes.
type Tuple []any

// Set holds distinct values in insertion order.
type Set []any

// NewSet deduplicates vals.
func NewSet(vals []any) Set { return Set(Distinct(vals)) }

// Normalize converts a scanned or decoded value into a cell value.
func Normalize(v any) any {
	switch x := v.(type) {
	case nil, bool, int64, float64, string, Tuple, Set, []any, *Dict, *Series, *Frame:
		return x
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		if x > math.MaxInt64 {
			return float64(x)
		}
		return int64(x)
	case float32:
		return float64(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case decimal.Decimal:
		return decimalValue(x)
	case *decimal.Decimal:
		if x == nil {
			return nil
		}
		return decimalValue(*x)
	case decimal.NullDecimal:
		if !x.Valid {
			return nil
		}
		return decimalValue(x.Decimal)
	case []byte:
		return string(x)
	case fmt.Stringer:
		return x.String()
	}
	return v
}

// decimalValue keeps whole numbers integral.
func decimalValue(d decimal.Decimal) any {
	if d.IsInteger() && d.Abs().LessThan(decimal.New(1, 18)) {
		return d.IntPart()
	}
	f, _ := d.Float64()
	return f
}

// IsNull reports whether v is a missing value (None or NaN).
func IsNull(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(x)
	}
	return false
}

// IsNumber reports whether v is an int64 or float64 (bools excluded).
func IsNumber(v any) bool {
	switch v.(type) {
	case int64, float64:
		return true
	}
	return false
}

// ToFloat converts numeric values (and bools) to float64.
func ToFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// ToInt converts integral values to int.
func ToInt(v any) (int, bool) {
	switch x := v.(type) {
	case int64:
		return int(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return int(x), true
		}
	}
	return 0, false
}

// Equal compares two cell values with numeric promotion.
func Equal(a, b any) bool {
	if IsNull(a) || IsNull(b) {
		return a == nil && b == nil
	}
	if af, ok := ToFloat(a); ok {
		if bf, ok := ToFloat(b); ok {
			return af == bf
		}
		return false
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return ok && x == y
	case Tuple:
		y, ok := b.(Tuple)
		return ok && equalSlices(x, y)
	case []any:
		y, ok := b.([]any)
		return ok && equalSlices(x, y)
	case Set:
		y, ok := b.(Set)
		if !ok || len(x) != len(y) {
			return false
		}
		for _, v := range x {
			if !containsValue(y, v) {
				return false
			}
		}
		return true
	}
	return a == b
}

func containsValue(vals []any, v any) bool {
	for _, o := range vals {
		if Equal(o, v) {
			return true
		}
	}
	return false
}

func equalSlices(x, y []any) bool {
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if !Equal(x[i], y[i]) {
			return false
		}
	}
	return true
}

// Compare orders two cell values. Numbers compare with numbers and strings
// with strings; anything else is an error.
func Compare(a, b any) (int, error) {
	if af, ok := ToFloat(a); ok {
		if bf, ok := ToFloat(b); ok {
			switch {
			case af < bf:
				return -1, nil
			case af > bf:
				return 1, nil
			}
			return 0, nil
		}
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return strings.Compare(as, bs), nil
		}
	}
	if at, ok := a.(Tuple); ok {
		if bt, ok := b.(Tuple); ok {
			for i := 0; i < len(at) && i < len(bt); i++ {
				c, err := Compare(at[i], bt[i])
				if err != nil || c != 0 {
					return c, err
				}
			}
			return len(at) - len(bt), nil
		}
	}
	return 0, fmt.Errorf("'<' not supported between instances of '%s' and '%s'", TypeName(a), TypeName(b))
}

// compareNullsLast orders nulls after every other value.
func compareNullsLast(a, b any) int {
	an, bn := IsNull(a), IsNull(b)
	switch {
	case an && bn:
		return 0
	case an:
		return 1
	case bn:
		return -1
	}
	c, err := Compare(a, b)
	if err != nil {
		return strings.Compare(Str(a), Str(b))
	}
	return c
}

// TypeName returns the Python-style type name used in error messages.
func TypeName(v any) string {
	switch v.(type) {
	case nil:
		return "NoneType"
	case bool:
		return "bool"
	case int64:
		return "int"
	case float64:
		return "float"
	case string:
		return "str"
	case []any:
		return "list"
	case Tuple:
		return "tuple"
	case Set:
		return "set"
	case *Dict:
		return "dict"
	case *Frame:
		return "DataFrame"
	case *Series:
		return "Series"
	case *GroupBy:
		return "DataFrameGroupBy"
	case *GroupColumn:
		return "SeriesGroupBy"
	}
	return fmt.Sprintf("%T", v)
}

// Str renders a value the way Python's str() does.
func Str(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return FormatFloat(x)
	case string:
		return x
	case []any:
		return "[" + joinRepr(x) + "]"
	case Tuple:
		if len(x) == 1 {
			return "(" + Repr(x[0]) + ",)"
		}
		return "(" + joinRepr(x) + ")"
	case Set:
		if len(x) == 0 {
			return "set()"
		}
		return "{" + joinRepr(x) + "}"
	case *Series:
		return x.String()
	case *Frame:
		return x.String()
	}
	return fmt.Sprint(v)
}

// Repr renders a value the way Python's repr() does.
func Repr(v any) string {
	if s, ok := v.(string); ok {
		return QuoteString(s)
	}
	return Str(v)
}

// QuoteString quotes s with single quotes unless it contains one and no
// double quote.
func QuoteString(s string) string {
	quote := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		quote = '"'
	}
	var sb strings.Builder
	sb.WriteByte(quote)
	for _, r := range s {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		default:
			if r == rune(quote) {
				sb.WriteByte('\\')
			}
			sb.WriteRune(r)
		}
	}
	sb.WriteByte(quote)
	return sb.String()
}

func joinRepr(items []any) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = Repr(it)
	}
	return strings.Join(parts, ", ")
}

// FormatFloat renders a float like Python's repr: shortest round-trip digits,
// always with a decimal point or exponent.
func FormatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	abs := math.Abs(f)
	if abs != 0 && (abs >= 1e16 || abs < 1e-4) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// Truthy applies Python truthiness to scalar values.
func Truthy(v any) (bool, error) {
	switch x := v.(type) {
	case nil:
		return false, nil
	case bool:
		return x, nil
	case int64:
		return x != 0, nil
	case float64:
		return x != 0, nil
	case string:
		return x != "", nil
	case []any:
		return len(x) > 0, nil
	case Tuple:
		return len(x) > 0, nil
	case Set:
		return len(x) > 0, nil
	case *Dict:
		return x.Len() > 0, nil
	case *Series, *Frame:
		return false, fmt.Errorf("the truth value of a %s is ambiguous, use .empty, .any() or .all()", TypeName(v))
	}
	return true, nil
}

// KeyError reports a missing column or index label.
type KeyError struct {
	Key    any
	Column bool
}

func (e *KeyError) Error() string {
	if e.Column {
		return fmt.Sprintf("column %s not found", Repr(e.Key))
	}
	return fmt.Sprintf("key %s not found in index", Repr(e.Key))
}

func columnNotFound(name string) error { return &KeyError{Key: name, Column: true} }
