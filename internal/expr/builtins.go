package expr

import (
	"math"
	"sort"
	"unicode/utf8"

	"github.com/atlekbai/aicfo/internal/frame"
)

type builtinFunc = func(ev *Evaluator, args []any, kw map[string]any) (any, error)

// builtins is the global function allow-list. Aggregate aliases (count,
// average, unique) sit beside the Python builtins.
var builtins = map[string]builtinFunc{
	"len":       builtinLen,
	"sum":       builtinSum,
	"min":       extremum("min", -1),
	"max":       extremum("max", 1),
	"round":     builtinRound,
	"sorted":    builtinSorted,
	"abs":       builtinAbs,
	"int":       convert("int", frame.ToIntValue, int64(0)),
	"float":     convert("float", frame.ToFloatValue, 0.0),
	"str":       builtinStr,
	"bool":      builtinBool,
	"list":      collect("list", func(items []any) any { return append([]any{}, items...) }, []any{}),
	"tuple":     collect("tuple", func(items []any) any { return append(frame.Tuple{}, items...) }, frame.Tuple{}),
	"set":       collect("set", func(items []any) any { return frame.NewSet(items) }, frame.Set{}),
	"dict":      builtinDict,
	"zip":       builtinZip,
	"map":       builtinMap,
	"filter":    builtinFilter,
	"enumerate": builtinEnumerate,
	"all":       quantifier("all", true),
	"any":       quantifier("any", false),
	"count":     builtinCount,
	"average":   builtinAverage,
	"unique":    builtinUnique,
}

func arity(name string, args []any, kw map[string]any, min, max int, keywords ...string) error {
	d := methodDef{name: name, min: min, max: max, keywords: keywords}
	return d.check(args, kw)
}

func builtinLen(_ *Evaluator, args []any, kw map[string]any) (any, error) {
	if err := arity("len", args, kw, 1, 1); err != nil {
		return nil, err
	}
	switch x := args[0].(type) {
	case string:
		return int64(utf8.RuneCountInString(x)), nil
	case *frame.Frame:
		return int64(x.Len()), nil
	case *frame.Series:
		return int64(x.Len()), nil
	case *frame.Dict:
		return int64(x.Len()), nil
	case *frame.GroupBy:
		return int64(x.Size().Len()), nil
	}
	items, err := iterate(args[0])
	if err != nil {
		return nil, newError(KindType, "len", "object of type '%s' has no len()", frame.TypeName(args[0]))
	}
	return int64(len(items)), nil
}

func builtinSum(_ *Evaluator, args []any, kw map[string]any) (any, error) {
	if err := arity("sum", args, kw, 1, 2, "start"); err != nil {
		return nil, err
	}
	if s, ok := args[0].(*frame.Series); ok && len(args) == 1 && len(kw) == 0 {
		v, err := s.Sum()
		return v, typeError(err)
	}
	items, err := iterate(args[0])
	if err != nil {
		return nil, err
	}
	var acc any = argOr(args, kw, 1, "start", int64(0))
	for _, it := range items {
		if acc, err = binary("+", acc, it); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// extremum implements min and max over one iterable or several arguments.
func extremum(name string, want int) builtinFunc {
	return func(_ *Evaluator, args []any, kw map[string]any) (any, error) {
		if err := arity(name, args, kw, 1, maxItems, "default"); err != nil {
			return nil, err
		}
		items := args
		if len(args) == 1 {
			if s, ok := args[0].(*frame.Series); ok {
				var v any
				var err error
				if want > 0 {
					v, err = s.Max()
				} else {
					v, err = s.Min()
				}
				return v, typeError(err)
			}
			var err error
			if items, err = iterate(args[0]); err != nil {
				return nil, err
			}
		}
		if len(items) == 0 {
			if d, ok := kw["default"]; ok {
				return d, nil
			}
			return nil, newError(KindValue, name, "%s() arg is an empty sequence", name)
		}
		best := items[0]
		for _, it := range items[1:] {
			c, err := frame.Compare(it, best)
			if err != nil {
				return nil, newError(KindType, name, "%s", err.Error())
			}
			if c*want > 0 {
				best = it
			}
		}
		return best, nil
	}
}

func builtinRound(_ *Evaluator, args []any, kw map[string]any) (any, error) {
	if err := arity("round", args, kw, 1, 2, "ndigits"); err != nil {
		return nil, err
	}
	nd := argOr(args, kw, 1, "ndigits", nil)
	if s, ok := args[0].(*frame.Series); ok {
		d := 0
		if nd != nil {
			var err error
			if d, err = intArg(nd, "ndigits"); err != nil {
				return nil, err
			}
		}
		out, err := s.Round(d)
		return out, typeError(err)
	}
	switch x := args[0].(type) {
	case int64, bool:
		n, _ := frame.ToInt(x)
		if nd == nil {
			return int64(n), nil
		}
		d, err := intArg(nd, "ndigits")
		if err != nil {
			return nil, err
		}
		r, err := frame.RoundInt(int64(n), d)
		if err != nil {
			return nil, newError(KindValue, "round", "%s", err)
		}
		return r, nil
	case float64:
		if nd == nil {
			r, err := frame.RoundFloatToInt(x)
			if err != nil {
				return nil, newError(KindValue, "round", "%s", err)
			}
			return r, nil
		}
		d, err := intArg(nd, "ndigits")
		if err != nil {
			return nil, err
		}
		return frame.RoundHalfEven(x, d), nil
	}
	return nil, newError(KindType, "round", "type %s doesn't define __round__ method", frame.TypeName(args[0]))
}

func builtinSorted(_ *Evaluator, args []any, kw map[string]any) (any, error) {
	if err := arity("sorted", args, kw, 1, 1, "reverse"); err != nil {
		return nil, err
	}
	items, err := iterate(args[0])
	if err != nil {
		return nil, err
	}
	reverse, err := truthy(argOr(nil, kw, 0, "reverse", false))
	if err != nil {
		return nil, err
	}
	out := append([]any{}, items...)
	var cmpErr error
	sort.SliceStable(out, func(i, j int) bool {
		c, err := frame.Compare(out[i], out[j])
		if err != nil {
			cmpErr = err
			return false
		}
		if reverse {
			return c > 0
		}
		return c < 0
	})
	if cmpErr != nil {
		return nil, newError(KindType, "sorted", "%s", cmpErr.Error())
	}
	return out, nil
}

func builtinAbs(_ *Evaluator, args []any, kw map[string]any) (any, error) {
	if err := arity("abs", args, kw, 1, 1); err != nil {
		return nil, err
	}
	switch x := args[0].(type) {
	case *frame.Series:
		out, err := x.Abs()
		return out, typeError(err)
	case int64:
		if x < 0 {
			return -x, nil
		}
		return x, nil
	case float64:
		return math.Abs(x), nil
	case bool:
		n, _ := frame.ToInt(x)
		return int64(n), nil
	}
	return nil, newError(KindType, "abs", "bad operand type for abs(): '%s'", frame.TypeName(args[0]))
}

// convert builds int() and float(); a Series converts element-wise.
func convert(name string, fn func(any) (any, error), zero any) builtinFunc {
	return func(_ *Evaluator, args []any, kw map[string]any) (any, error) {
		if err := arity(name, args, kw, 0, 1); err != nil {
			return nil, err
		}
		if len(args) == 0 {
			return zero, nil
		}
		if s, ok := args[0].(*frame.Series); ok {
			out, err := s.AsType(name)
			return out, typeError(err)
		}
		v, err := fn(args[0])
		if err != nil {
			return nil, newError(KindValue, name, "%s", err.Error())
		}
		return v, nil
	}
}

func builtinStr(_ *Evaluator, args []any, kw map[string]any) (any, error) {
	if err := arity("str", args, kw, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return "", nil
	}
	return frame.Str(args[0]), nil
}

func builtinBool(_ *Evaluator, args []any, kw map[string]any) (any, error) {
	if err := arity("bool", args, kw, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return false, nil
	}
	return truthy(args[0])
}

// collect builds list(), tuple() and set().
func collect(name string, build func([]any) any, empty any) builtinFunc {
	return func(_ *Evaluator, args []any, kw map[string]any) (any, error) {
		if err := arity(name, args, kw, 0, 1); err != nil {
			return nil, err
		}
		if len(args) == 0 {
			return empty, nil
		}
		items, err := iterate(args[0])
		if err != nil {
			return nil, err
		}
		return build(items), nil
	}
}

func builtinDict(_ *Evaluator, args []any, kw map[string]any) (any, error) {
	if len(args) > 1 {
		return nil, newError(KindCall, "dict", "dict expected at most 1 argument, got %d", len(args))
	}
	out := frame.NewDict()
	if len(args) == 1 {
		if d, ok := args[0].(*frame.Dict); ok {
			for _, item := range d.Items() {
				pair := item.(frame.Tuple)
				out.Set(pair[0], pair[1])
			}
		} else {
			items, err := iterate(args[0])
			if err != nil {
				return nil, err
			}
			for i, it := range items {
				pair, err := iterate(it)
				if err != nil || len(pair) != 2 {
					return nil, newError(KindValue, "dict", "dictionary update sequence element #%d has wrong length", i)
				}
				out.Set(pair[0], pair[1])
			}
		}
	}
	keys := make([]string, 0, len(kw))
	for k := range kw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out.Set(k, kw[k])
	}
	return out, nil
}

func builtinZip(_ *Evaluator, args []any, kw map[string]any) (any, error) {
	if err := arity("zip", args, kw, 0, maxItems); err != nil {
		return nil, err
	}
	seqs := make([][]any, len(args))
	n := -1
	for i, a := range args {
		items, err := iterate(a)
		if err != nil {
			return nil, err
		}
		seqs[i] = items
		if n < 0 || len(items) < n {
			n = len(items)
		}
	}
	out := make([]any, 0, max(n, 0))
	for i := 0; i < n; i++ {
		row := make(frame.Tuple, len(seqs))
		for j := range seqs {
			row[j] = seqs[j][i]
		}
		out = append(out, row)
	}
	return out, nil
}

func asCallable(v any, name string) (callable, error) {
	fn, ok := v.(callable)
	if !ok {
		return nil, newError(KindCall, name, "'%s' object is not callable", frame.TypeName(v))
	}
	return fn, nil
}

func builtinMap(ev *Evaluator, args []any, kw map[string]any) (any, error) {
	if err := arity("map", args, kw, 2, 2); err != nil {
		return nil, err
	}
	fn, err := asCallable(args[0], "map")
	if err != nil {
		return nil, err
	}
	items, err := iterate(args[1])
	if err != nil {
		return nil, err
	}
	out := make([]any, len(items))
	for i, it := range items {
		if out[i], err = fn.call(ev, []any{it}, nil); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func builtinFilter(ev *Evaluator, args []any, kw map[string]any) (any, error) {
	if err := arity("filter", args, kw, 2, 2); err != nil {
		return nil, err
	}
	var fn callable
	if args[0] != nil {
		var err error
		if fn, err = asCallable(args[0], "filter"); err != nil {
			return nil, err
		}
	}
	items, err := iterate(args[1])
	if err != nil {
		return nil, err
	}
	out := []any{}
	for _, it := range items {
		v := it
		if fn != nil {
			if v, err = fn.call(ev, []any{it}, nil); err != nil {
				return nil, err
			}
		}
		ok, err := truthy(v)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, it)
		}
	}
	return out, nil
}

func builtinEnumerate(_ *Evaluator, args []any, kw map[string]any) (any, error) {
	if err := arity("enumerate", args, kw, 1, 2, "start"); err != nil {
		return nil, err
	}
	start, err := intArgOr(args, kw, 1, "start", 0)
	if err != nil {
		return nil, err
	}
	items, err := iterate(args[0])
	if err != nil {
		return nil, err
	}
	out := make([]any, len(items))
	for i, it := range items {
		out[i] = frame.Tuple{int64(start + i), it}
	}
	return out, nil
}

// quantifier builds all() (want=true) and any() (want=false).
func quantifier(name string, want bool) builtinFunc {
	return func(_ *Evaluator, args []any, kw map[string]any) (any, error) {
		if err := arity(name, args, kw, 1, 1); err != nil {
			return nil, err
		}
		items, err := iterate(args[0])
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			b, err := truthy(it)
			if err != nil {
				return nil, err
			}
			if b != want {
				return !want, nil
			}
		}
		return want, nil
	}
}

// seriesOf accepts a Series or any iterable for the aggregate aliases.
func seriesOf(name string, v any) (*frame.Series, error) {
	if s, ok := v.(*frame.Series); ok {
		return s, nil
	}
	items, err := iterate(v)
	if err != nil {
		return nil, newError(KindType, name, "%s() expects a column, not '%s'", name, frame.TypeName(v))
	}
	return frame.NewSeries("", items, nil), nil
}

func builtinCount(_ *Evaluator, args []any, kw map[string]any) (any, error) {
	if err := arity("count", args, kw, 1, 1); err != nil {
		return nil, err
	}
	if f, ok := args[0].(*frame.Frame); ok {
		return int64(f.Len()), nil
	}
	s, err := seriesOf("count", args[0])
	if err != nil {
		return nil, err
	}
	return s.Count(), nil
}

func builtinAverage(_ *Evaluator, args []any, kw map[string]any) (any, error) {
	if err := arity("average", args, kw, 1, 1); err != nil {
		return nil, err
	}
	s, err := seriesOf("average", args[0])
	if err != nil {
		return nil, err
	}
	v, err := s.Mean()
	return v, typeError(err)
}

func builtinUnique(_ *Evaluator, args []any, kw map[string]any) (any, error) {
	if err := arity("unique", args, kw, 1, 1); err != nil {
		return nil, err
	}
	s, err := seriesOf("unique", args[0])
	if err != nil {
		return nil, err
	}
	return s.Unique(), nil
}
