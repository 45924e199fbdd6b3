package expr

import (
	"math"
	"strings"

	"github.com/atlekbai/aicfo/internal/frame"
)

// binaryOps is the operator table; anything missing is rejected.
var binaryOps = map[string]func(a, b any) (any, error){
	"+":  add,
	"-":  arith("-"),
	"*":  mul,
	"/":  arith("/"),
	"//": arith("//"),
	"%":  arith("%"),
	"**": arith("**"),
	"&":  bitwise("&"),
	"|":  bitwise("|"),
	"^":  bitwise("^"),
}

var compareOps = map[string]func(a, b any) (any, error){
	"==": func(a, b any) (any, error) { return frame.Equal(a, b), nil },
	"!=": func(a, b any) (any, error) { return !frame.Equal(a, b), nil },
	"<":  ordered(func(c int) bool { return c < 0 }),
	"<=": ordered(func(c int) bool { return c <= 0 }),
	">":  ordered(func(c int) bool { return c > 0 }),
	">=": ordered(func(c int) bool { return c >= 0 }),
}

// binary applies op, broadcasting over Series operands.
func binary(op string, a, b any) (any, error) {
	fn, ok := binaryOps[op]
	if !ok {
		return nil, newError(KindOperator, op, "operator %q is not allowed", op)
	}
	return broadcast(a, b, fn, false)
}

// compare applies a comparison operator, broadcasting over Series operands.
func compare(op string, a, b any) (any, error) {
	fn, ok := compareOps[op]
	if !ok {
		return nil, newError(KindOperator, op, "operator %q is not allowed", op)
	}
	return broadcast(a, b, fn, true)
}

// broadcast applies fn element-wise when either side is a Series. Series
// operands line up by position. Nulls yield null for arithmetic; for
// comparisons only != holds against a null.
func broadcast(a, b any, fn func(a, b any) (any, error), comparison bool) (any, error) {
	sa, aok := a.(*frame.Series)
	sb, bok := b.(*frame.Series)
	elem := func(x, y any) (any, error) {
		if frame.IsNull(x) || frame.IsNull(y) {
			if comparison {
				r, err := fn(x, y)
				if err != nil {
					return false, nil
				}
				return r, nil
			}
			return nil, nil
		}
		r, err := fn(x, y)
		if err != nil {
			if ee, ok := err.(*EvalError); ok && ee.Kind == KindZeroDivision {
				return seriesDivByZero(x), nil
			}
		}
		return r, err
	}
	switch {
	case aok && bok:
		out, err := frame.Zip(sa, sb, elem)
		if err != nil {
			return nil, typeError(err)
		}
		return out, nil
	case aok:
		return sa.Map(func(x any) (any, error) { return elem(x, b) })
	case bok:
		return sb.Map(func(y any) (any, error) { return elem(a, y) })
	}
	if _, ok := a.(*frame.Frame); ok {
		return nil, newError(KindOperator, "", "operators on whole DataFrames are not supported")
	}
	if _, ok := b.(*frame.Frame); ok {
		return nil, newError(KindOperator, "", "operators on whole DataFrames are not supported")
	}
	return fn(a, b)
}

// seriesDivByZero follows numpy: x/0 is inf with x's sign, 0/0 is NaN.
func seriesDivByZero(x any) any {
	f, _ := frame.ToFloat(x)
	switch {
	case f > 0:
		return math.Inf(1)
	case f < 0:
		return math.Inf(-1)
	}
	return math.NaN()
}

func unsupported(op string, a, b any) error {
	return newError(KindOperator, op, "unsupported operand type(s) for %s: '%s' and '%s'", op, frame.TypeName(a), frame.TypeName(b))
}

func isIntegral(v any) bool {
	switch v.(type) {
	case int64, bool:
		return true
	}
	return false
}

func add(a, b any) (any, error) {
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return x + y, nil
		}
	case []any:
		if y, ok := b.([]any); ok {
			return append(append([]any{}, x...), y...), nil
		}
	case frame.Tuple:
		if y, ok := b.(frame.Tuple); ok {
			return append(append(frame.Tuple{}, x...), y...), nil
		}
	}
	return arith("+")(a, b)
}

func mul(a, b any) (any, error) {
	if n, ok := b.(int64); ok {
		n = max(n, 0)
		switch x := a.(type) {
		case string:
			if x == "" || n == 0 {
				return "", nil
			}
			if err := repeatBound(len(x), n); err != nil {
				return nil, err
			}
			return strings.Repeat(x, int(n)), nil
		case []any:
			if len(x) == 0 || n == 0 {
				return []any{}, nil
			}
			if err := repeatBound(len(x), n); err != nil {
				return nil, err
			}
			out := make([]any, 0, len(x)*int(n))
			for i := int64(0); i < n; i++ {
				out = append(out, x...)
			}
			return out, nil
		}
	}
	switch b.(type) {
	case string, []any:
		if _, ok := a.(int64); ok {
			return mul(b, a)
		}
	}
	return arith("*")(a, b)
}

// repeatBound rejects a repetition longer than maxItems elements or bytes.
func repeatBound(size int, n int64) error {
	if n > maxItems || int64(size)*n > maxItems {
		return newError(KindValue, "*", "repetition exceeds %d items", maxItems)
	}
	return nil
}

// powInt computes a**b for b >= 0 by squaring. It reports false when the
// result does not fit in an int64.
func powInt(a, b int64) (int64, bool) {
	out := int64(1)
	for b > 0 {
		var ok bool
		if b&1 == 1 {
			if out, ok = mulInt(out, a); !ok {
				return 0, false
			}
		}
		b >>= 1
		if b > 0 {
			if a, ok = mulInt(a, a); !ok {
				return 0, false
			}
		}
	}
	return out, true
}

func mulInt(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	r := a * b
	if r/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	return r, true
}

// arith implements numeric operators with Python's int/float rules.
func arith(op string) func(a, b any) (any, error) {
	return func(a, b any) (any, error) {
		af, aok := frame.ToFloat(a)
		bf, bok := frame.ToFloat(b)
		if !aok || !bok {
			return nil, unsupported(op, a, b)
		}
		if isIntegral(a) && isIntegral(b) {
			ai, _ := frame.ToInt(a)
			bi, _ := frame.ToInt(b)
			return intArith(op, int64(ai), int64(bi), af, bf)
		}
		return floatArith(op, af, bf)
	}
}

func intArith(op string, a, b int64, af, bf float64) (any, error) {
	switch op {
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	case "/":
		if b == 0 {
			return nil, zeroDivision("division by zero")
		}
		return af / bf, nil
	case "//":
		if b == 0 {
			return nil, zeroDivision("integer division or modulo by zero")
		}
		q := a / b
		if (a%b != 0) && ((a < 0) != (b < 0)) {
			q--
		}
		return q, nil
	case "%":
		if b == 0 {
			return nil, zeroDivision("integer modulo by zero")
		}
		m := a % b
		if m != 0 && ((m < 0) != (b < 0)) {
			m += b
		}
		return m, nil
	case "**":
		if b < 0 {
			if a == 0 {
				return nil, zeroDivision("0.0 cannot be raised to a negative power")
			}
			return math.Pow(af, bf), nil
		}
		if r, ok := powInt(a, b); ok {
			return r, nil
		}
		return math.Pow(af, bf), nil
	}
	return nil, newError(KindOperator, op, "operator %q is not allowed", op)
}

func floatArith(op string, a, b float64) (any, error) {
	switch op {
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	case "/":
		if b == 0 {
			return nil, zeroDivision("float division by zero")
		}
		return a / b, nil
	case "//":
		if b == 0 {
			return nil, zeroDivision("float floor division by zero")
		}
		return math.Floor(a / b), nil
	case "%":
		if b == 0 {
			return nil, zeroDivision("float modulo")
		}
		m := math.Mod(a, b)
		if m != 0 && ((m < 0) != (b < 0)) {
			m += b
		}
		return m, nil
	case "**":
		if a == 0 && b < 0 {
			return nil, zeroDivision("0.0 cannot be raised to a negative power")
		}
		return math.Pow(a, b), nil
	}
	return nil, newError(KindOperator, op, "operator %q is not allowed", op)
}

// bitwise covers boolean masks (and/or/xor) and integer bit operations.
func bitwise(op string) func(a, b any) (any, error) {
	return func(a, b any) (any, error) {
		x, xok := a.(bool)
		y, yok := b.(bool)
		if xok && yok {
			switch op {
			case "&":
				return x && y, nil
			case "|":
				return x || y, nil
			}
			return x != y, nil
		}
		if isIntegral(a) && isIntegral(b) {
			ai, _ := frame.ToInt(a)
			bi, _ := frame.ToInt(b)
			switch op {
			case "&":
				return int64(ai & bi), nil
			case "|":
				return int64(ai | bi), nil
			}
			return int64(ai ^ bi), nil
		}
		return nil, unsupported(op, a, b)
	}
}

func ordered(pred func(int) bool) func(a, b any) (any, error) {
	return func(a, b any) (any, error) {
		if frame.IsNull(a) || frame.IsNull(b) {
			return false, nil
		}
		c, err := frame.Compare(a, b)
		if err != nil {
			return nil, newError(KindType, "", "%s", err.Error())
		}
		return pred(c), nil
	}
}

// unary applies -, + or ~.
func unary(op string, v any) (any, error) {
	if s, ok := v.(*frame.Series); ok {
		return s.Map(func(x any) (any, error) {
			if frame.IsNull(x) {
				return x, nil
			}
			if b, ok := x.(bool); ok && op == "~" {
				return !b, nil
			}
			return unary(op, x)
		})
	}
	switch x := v.(type) {
	case int64:
		switch op {
		case "-":
			return -x, nil
		case "+":
			return x, nil
		case "~":
			return ^x, nil
		}
	case float64:
		switch op {
		case "-":
			return -x, nil
		case "+":
			return x, nil
		}
	case bool:
		n := int64(0)
		if x {
			n = 1
		}
		return unary(op, n)
	}
	return nil, newError(KindOperator, op, "bad operand type for unary %s: '%s'", op, frame.TypeName(v))
}

// contains implements "needle in haystack".
func contains(haystack, needle any) (bool, error) {
	switch h := haystack.(type) {
	case string:
		n, ok := needle.(string)
		if !ok {
			return false, newError(KindType, "", "'in <string>' requires string as left operand, not %s", frame.TypeName(needle))
		}
		return strings.Contains(h, n), nil
	case *frame.Dict:
		_, ok := h.Get(needle)
		return ok, nil
	case *frame.Frame:
		name, ok := needle.(string)
		return ok && h.HasColumn(name), nil
	}
	items, err := iterate(haystack)
	if err != nil {
		return false, newError(KindType, "", "argument of type '%s' is not iterable", frame.TypeName(haystack))
	}
	for _, it := range items {
		if frame.Equal(it, needle) {
			return true, nil
		}
	}
	return false, nil
}

// identical implements "is"; only None and booleans have identity here.
func identical(a, b any) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case *frame.Series:
		return x == b
	case *frame.Frame:
		return x == b
	}
	return false
}
