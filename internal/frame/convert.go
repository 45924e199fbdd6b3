package frame

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Slice is a Python slice; nil bounds are open.
type Slice struct {
	Start, Stop, Step *int
}

// Positions resolves the slice against a sequence of length n.
func (sl Slice) Positions(n int) []int {
	step := 1
	if sl.Step != nil && *sl.Step != 0 {
		step = *sl.Step
	}
	clampBound := func(p *int, def int) int {
		if p == nil {
			return def
		}
		v := *p
		if v < 0 {
			v += n
		}
		if step > 0 {
			return min(max(v, 0), n)
		}
		return min(max(v, -1), n-1)
	}
	var pos []int
	if step > 0 {
		start, stop := clampBound(sl.Start, 0), clampBound(sl.Stop, n)
		for i := start; i < stop; i += step {
			pos = append(pos, i)
		}
		return pos
	}
	start, stop := clampBound(sl.Start, n-1), clampBound(sl.Stop, -1)
	for i := start; i > stop; i += step {
		pos = append(pos, i)
	}
	return pos
}

// SliceValues applies sl to a list.
func SliceValues(vals []any, sl Slice) []any {
	pos := sl.Positions(len(vals))
	out := make([]any, len(pos))
	for i, p := range pos {
		out[i] = vals[p]
	}
	return out
}

// Converter returns the element conversion for an astype / builtin type name.
func Converter(kind string) (func(any) (any, error), error) {
	switch kind {
	case "int", "int64", "int32":
		return ToIntValue, nil
	case "float", "float64", "float32":
		return ToFloatValue, nil
	case "str", "string", "object":
		return func(v any) (any, error) { return Str(v), nil }, nil
	case "bool":
		return func(v any) (any, error) { return Truthy(v) }, nil
	}
	return nil, fmt.Errorf("data type %q not understood", kind)
}

// ToIntValue implements int(v): floats truncate, strings parse.
func ToIntValue(v any) (any, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case bool:
		if x {
			return int64(1), nil
		}
		return int64(0), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("cannot convert float %s to integer", FormatFloat(x))
		}
		return int64(x), nil
	case string:
		n, err := strconv.ParseInt(strings.ReplaceAll(strings.TrimSpace(x), "_", ""), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid literal for int() with base 10: %s", QuoteString(x))
		}
		return n, nil
	}
	return nil, fmt.Errorf("int() argument must be a string or a number, not '%s'", TypeName(v))
}

// ToFloatValue implements float(v).
func ToFloatValue(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, fmt.Errorf("float() argument must be a string or a real number, not 'NoneType'")
	case string:
		s := strings.ToLower(strings.TrimSpace(x))
		switch s {
		case "nan":
			return math.NaN(), nil
		case "inf", "infinity":
			return math.Inf(1), nil
		case "-inf", "-infinity":
			return math.Inf(-1), nil
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(s, "_", ""), 64)
		if err != nil {
			return nil, fmt.Errorf("could not convert string to float: %s", QuoteString(x))
		}
		return f, nil
	}
	if f, ok := ToFloat(v); ok {
		return f, nil
	}
	return nil, fmt.Errorf("float() argument must be a string or a real number, not '%s'", TypeName(v))
}
