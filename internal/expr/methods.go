package expr

import (
	"strings"
	"unicode/utf8"

	"github.com/atlekbai/aicfo/internal/frame"
)

// methodDef describes an allow-listed method: positional arity bounds and
// the keyword arguments it accepts.
type methodDef struct {
	name     string
	min, max int
	keywords []string
	fn       func(ev *Evaluator, recv any, args []any, kw map[string]any) (any, error)
}

func (d *methodDef) check(args []any, kw map[string]any) error {
	if len(args) < d.min || len(args) > d.max {
		if d.min == d.max {
			return newError(KindCall, d.name, "%s() takes exactly %d argument(s), got %d", d.name, d.min, len(args))
		}
		return newError(KindCall, d.name, "%s() takes from %d to %d arguments, got %d", d.name, d.min, d.max, len(args))
	}
	for k := range kw {
		allowed := false
		for _, a := range d.keywords {
			if a == k {
				allowed = true
				break
			}
		}
		if !allowed {
			return newError(KindCall, d.name, "%s() got an unexpected keyword argument %q", d.name, k)
		}
	}
	return nil
}

type methodFunc = func(ev *Evaluator, recv any, args []any, kw map[string]any) (any, error)

func def(name string, min, max int, keywords []string, fn methodFunc) *methodDef {
	return &methodDef{name: name, min: min, max: max, keywords: keywords, fn: fn}
}

func registry(defs ...*methodDef) map[string]*methodDef {
	m := make(map[string]*methodDef, len(defs))
	for _, d := range defs {
		m[d.name] = d
	}
	return m
}

// argOr returns positional argument i, else keyword name, else def.
func argOr(args []any, kw map[string]any, i int, name string, def any) any {
	if i < len(args) {
		return args[i]
	}
	if v, ok := kw[name]; ok {
		return v
	}
	return def
}

func intArgOr(args []any, kw map[string]any, i int, name string, def int) (int, error) {
	return intArg(argOr(args, kw, i, name, int64(def)), name)
}

// --- DataFrame ---

func frameReduce(numericOnly bool, fn func(*frame.Series) (any, error)) methodFunc {
	return func(_ *Evaluator, recv any, _ []any, _ map[string]any) (any, error) {
		out, err := recv.(*frame.Frame).Reduce(fn, numericOnly)
		return out, typeError(err)
	}
}

var frameMethods = registry(
	def("sum", 0, 0, []string{"numeric_only"}, frameReduce(false, (*frame.Series).Sum)),
	def("mean", 0, 0, []string{"numeric_only"}, frameReduce(true, (*frame.Series).Mean)),
	def("median", 0, 0, []string{"numeric_only"}, frameReduce(true, (*frame.Series).Median)),
	def("min", 0, 0, []string{"numeric_only"}, frameReduce(false, (*frame.Series).Min)),
	def("max", 0, 0, []string{"numeric_only"}, frameReduce(false, (*frame.Series).Max)),
	def("count", 0, 0, nil, frameReduce(false, func(s *frame.Series) (any, error) { return s.Count(), nil })),
	def("nunique", 0, 0, nil, frameReduce(false, func(s *frame.Series) (any, error) { return s.NUnique(), nil })),
	def("head", 0, 1, []string{"n"}, func(_ *Evaluator, recv any, args []any, kw map[string]any) (any, error) {
		n, err := intArgOr(args, kw, 0, "n", 5)
		if err != nil {
			return nil, err
		}
		return recv.(*frame.Frame).Head(n), nil
	}),
	def("tail", 0, 1, []string{"n"}, func(_ *Evaluator, recv any, args []any, kw map[string]any) (any, error) {
		n, err := intArgOr(args, kw, 0, "n", 5)
		if err != nil {
			return nil, err
		}
		return recv.(*frame.Frame).Tail(n), nil
	}),
	def("sort_values", 0, 2, []string{"by", "ascending"}, func(_ *Evaluator, recv any, args []any, kw map[string]any) (any, error) {
		by := argOr(args, kw, 0, "by", nil)
		if by == nil {
			return nil, newError(KindCall, "sort_values", "sort_values() missing required argument 'by'")
		}
		cols, err := stringList(by)
		if err != nil {
			return nil, err
		}
		asc, err := boolList(argOr(args, kw, 1, "ascending", true), len(cols))
		if err != nil {
			return nil, err
		}
		out, err := recv.(*frame.Frame).SortValues(cols, asc)
		return out, typeError(err)
	}),
	def("nlargest", 2, 2, []string{"n", "columns"}, frameTop(true)),
	def("nsmallest", 2, 2, []string{"n", "columns"}, frameTop(false)),
	def("groupby", 0, 1, []string{"by"}, func(_ *Evaluator, recv any, args []any, kw map[string]any) (any, error) {
		by := argOr(args, kw, 0, "by", nil)
		if by == nil {
			return nil, newError(KindCall, "groupby", "groupby() missing required argument 'by'")
		}
		keys, err := stringList(by)
		if err != nil {
			return nil, err
		}
		out, err := recv.(*frame.Frame).GroupBy(keys)
		return out, typeError(err)
	}),
	def("drop_duplicates", 0, 1, []string{"subset"}, func(_ *Evaluator, recv any, args []any, kw map[string]any) (any, error) {
		var subset []string
		if v := argOr(args, kw, 0, "subset", nil); v != nil {
			var err error
			if subset, err = stringList(v); err != nil {
				return nil, err
			}
		}
		out, err := recv.(*frame.Frame).DropDuplicates(subset)
		return out, typeError(err)
	}),
	def("to_dict", 0, 1, []string{"orient"}, func(_ *Evaluator, recv any, args []any, kw map[string]any) (any, error) {
		orient, _ := argOr(args, kw, 0, "orient", "dict").(string)
		out, err := recv.(*frame.Frame).ToDict(orient)
		if err != nil {
			return nil, newError(KindValue, "", "%s", err.Error())
		}
		return out, nil
	}),
	def("transpose", 0, 0, nil, func(_ *Evaluator, recv any, _ []any, _ map[string]any) (any, error) {
		return recv.(*frame.Frame).Transpose(), nil
	}),
	def("dropna", 0, 0, nil, func(_ *Evaluator, recv any, _ []any, _ map[string]any) (any, error) {
		return recv.(*frame.Frame).DropNA(), nil
	}),
	def("fillna", 1, 1, []string{"value"}, func(_ *Evaluator, recv any, args []any, kw map[string]any) (any, error) {
		return recv.(*frame.Frame).FillNA(argOr(args, kw, 0, "value", nil)), nil
	}),
)

func frameTop(largest bool) methodFunc {
	return func(_ *Evaluator, recv any, args []any, kw map[string]any) (any, error) {
		n, err := intArgOr(args, kw, 0, "n", 5)
		if err != nil {
			return nil, err
		}
		col, ok := argOr(args, kw, 1, "columns", nil).(string)
		if !ok {
			return nil, newError(KindType, "", "columns must be a column name")
		}
		f := recv.(*frame.Frame)
		var out *frame.Frame
		if largest {
			out, err = f.NLargest(n, col)
		} else {
			out, err = f.NSmallest(n, col)
		}
		return out, typeError(err)
	}
}

var frameProperties = map[string]bool{
	"shape": true, "size": true, "index": true, "columns": true, "values": true,
	"T": true, "empty": true, "iloc": true, "loc": true,
}

// frameAttribute resolves DataFrame properties and column shorthand.
func frameAttribute(f *frame.Frame, attr string) (any, bool) {
	switch attr {
	case "shape":
		return f.Shape(), true
	case "size":
		return f.Size(), true
	case "index":
		return append([]any(nil), f.Index()...), true
	case "columns":
		cols := f.Columns()
		out := make([]any, len(cols))
		for i, c := range cols {
			out[i] = c
		}
		return out, true
	case "values":
		return f.RowValues(), true
	case "T":
		return f.Transpose(), true
	case "empty":
		return f.Empty(), true
	case "iloc":
		return &indexer{target: f, positional: true}, true
	case "loc":
		return &indexer{target: f}, true
	}
	if f.HasColumn(attr) {
		s, _ := f.Column(attr)
		return s, true
	}
	return nil, false
}

// --- Series ---

func seriesScalar(fn func(*frame.Series) (any, error)) methodFunc {
	return func(_ *Evaluator, recv any, _ []any, _ map[string]any) (any, error) {
		v, err := fn(recv.(*frame.Series))
		return v, typeError(err)
	}
}

func seriesUnary(fn func(*frame.Series) *frame.Series) methodFunc {
	return func(_ *Evaluator, recv any, _ []any, _ map[string]any) (any, error) {
		return fn(recv.(*frame.Series)), nil
	}
}

func seriesN(fn func(*frame.Series, int) *frame.Series) methodFunc {
	return func(_ *Evaluator, recv any, args []any, kw map[string]any) (any, error) {
		n, err := intArgOr(args, kw, 0, "n", 5)
		if err != nil {
			return nil, err
		}
		return fn(recv.(*frame.Series), n), nil
	}
}

func seriesDdof(fn func(*frame.Series, int) (any, error)) methodFunc {
	return func(_ *Evaluator, recv any, args []any, kw map[string]any) (any, error) {
		ddof, err := intArgOr(args, kw, 0, "ddof", 1)
		if err != nil {
			return nil, err
		}
		v, err := fn(recv.(*frame.Series), ddof)
		return v, typeError(err)
	}
}

func toList(_ *Evaluator, recv any, _ []any, _ map[string]any) (any, error) {
	return recv.(*frame.Series).ToList(), nil
}

var seriesMethods = registry(
	def("sum", 0, 0, nil, seriesScalar((*frame.Series).Sum)),
	def("mean", 0, 0, nil, seriesScalar((*frame.Series).Mean)),
	def("median", 0, 0, nil, seriesScalar((*frame.Series).Median)),
	def("min", 0, 0, nil, seriesScalar((*frame.Series).Min)),
	def("max", 0, 0, nil, seriesScalar((*frame.Series).Max)),
	def("count", 0, 0, nil, seriesScalar(func(s *frame.Series) (any, error) { return s.Count(), nil })),
	def("nunique", 0, 0, nil, seriesScalar(func(s *frame.Series) (any, error) { return s.NUnique(), nil })),
	def("unique", 0, 0, nil, seriesScalar(func(s *frame.Series) (any, error) { return s.Unique(), nil })),
	def("tolist", 0, 0, nil, toList),
	def("to_list", 0, 0, nil, toList),
	def("mode", 0, 0, nil, seriesUnary((*frame.Series).Mode)),
	def("std", 0, 1, []string{"ddof"}, seriesDdof((*frame.Series).Std)),
	def("var", 0, 1, []string{"ddof"}, seriesDdof((*frame.Series).Var)),
	def("abs", 0, 0, nil, seriesScalar(func(s *frame.Series) (any, error) { return s.Abs() })),
	def("round", 0, 1, []string{"decimals"}, func(_ *Evaluator, recv any, args []any, kw map[string]any) (any, error) {
		d, err := intArgOr(args, kw, 0, "decimals", 0)
		if err != nil {
			return nil, err
		}
		out, err := recv.(*frame.Series).Round(d)
		return out, typeError(err)
	}),
	def("head", 0, 1, []string{"n"}, seriesN((*frame.Series).Head)),
	def("tail", 0, 1, []string{"n"}, seriesN((*frame.Series).Tail)),
	def("sort_values", 0, 1, []string{"ascending"}, func(_ *Evaluator, recv any, args []any, kw map[string]any) (any, error) {
		asc, err := truthy(argOr(args, kw, 0, "ascending", true))
		if err != nil {
			return nil, err
		}
		return recv.(*frame.Series).SortValues(asc), nil
	}),
	def("idxmax", 0, 0, nil, seriesScalar((*frame.Series).IdxMax)),
	def("idxmin", 0, 0, nil, seriesScalar((*frame.Series).IdxMin)),
	def("value_counts", 0, 0, nil, seriesUnary((*frame.Series).ValueCounts)),
	def("cumsum", 0, 0, nil, seriesScalar(func(s *frame.Series) (any, error) { return s.CumSum() })),
	def("isin", 1, 1, []string{"values"}, func(_ *Evaluator, recv any, args []any, kw map[string]any) (any, error) {
		vals, err := iterate(argOr(args, kw, 0, "values", nil))
		if err != nil {
			return nil, err
		}
		return recv.(*frame.Series).IsIn(vals), nil
	}),
	def("isna", 0, 0, nil, seriesUnary((*frame.Series).IsNA)),
	def("isnull", 0, 0, nil, seriesUnary((*frame.Series).IsNA)),
	def("notna", 0, 0, nil, seriesUnary((*frame.Series).NotNA)),
	def("notnull", 0, 0, nil, seriesUnary((*frame.Series).NotNA)),
	def("fillna", 1, 1, []string{"value"}, func(_ *Evaluator, recv any, args []any, kw map[string]any) (any, error) {
		return recv.(*frame.Series).FillNA(argOr(args, kw, 0, "value", nil)), nil
	}),
	def("dropna", 0, 0, nil, seriesUnary((*frame.Series).DropNA)),
	def("astype", 1, 1, []string{"dtype"}, func(_ *Evaluator, recv any, args []any, kw map[string]any) (any, error) {
		kind, ok := argOr(args, kw, 0, "dtype", nil).(string)
		if !ok {
			if b, isBuiltin := argOr(args, kw, 0, "dtype", nil).(*builtin); isBuiltin {
				kind, ok = b.name, true
			}
		}
		if !ok {
			return nil, newError(KindType, "", "astype() expects a type name")
		}
		out, err := recv.(*frame.Series).AsType(kind)
		return out, typeError(err)
	}),
	def("drop_duplicates", 0, 0, nil, seriesUnary((*frame.Series).DropDuplicates)),
	def("between", 2, 3, []string{"left", "right", "inclusive"}, func(_ *Evaluator, recv any, args []any, kw map[string]any) (any, error) {
		inclusive, _ := argOr(args, kw, 2, "inclusive", "both").(string)
		out, err := recv.(*frame.Series).Between(argOr(args, kw, 0, "left", nil), argOr(args, kw, 1, "right", nil), inclusive)
		return out, typeError(err)
	}),
)

func seriesAttribute(s *frame.Series, attr string) (any, bool) {
	switch attr {
	case "shape":
		return frame.Tuple{int64(s.Len())}, true
	case "size":
		return int64(s.Len()), true
	case "index":
		return append([]any(nil), s.Index()...), true
	case "values":
		return s.ToList(), true
	case "empty":
		return s.Len() == 0, true
	case "iloc":
		return &indexer{target: s, positional: true}, true
	case "loc":
		return &indexer{target: s}, true
	case "str":
		return &strAccessor{series: s}, true
	case "dtype":
		return s.Dtype(), true
	case "name":
		return s.Name, true
	}
	return nil, false
}

// --- GroupBy ---

func groupAgg(fn func(*frame.Series) (any, error), numericOnly bool) methodFunc {
	return func(_ *Evaluator, recv any, _ []any, _ map[string]any) (any, error) {
		switch g := recv.(type) {
		case *frame.GroupColumn:
			out, err := g.Aggregate(fn)
			return out, typeError(err)
		case *frame.GroupBy:
			out, err := g.Aggregate(fn, numericOnly)
			return out, typeError(err)
		}
		return nil, newError(KindType, "", "not a groupby object")
	}
}

var groupByMethods = registry(
	def("sum", 0, 0, []string{"numeric_only"}, groupAgg((*frame.Series).Sum, false)),
	def("mean", 0, 0, []string{"numeric_only"}, groupAgg((*frame.Series).Mean, true)),
	def("count", 0, 0, nil, groupAgg(func(s *frame.Series) (any, error) { return s.Count(), nil }, false)),
	def("max", 0, 0, []string{"numeric_only"}, groupAgg((*frame.Series).Max, false)),
	def("min", 0, 0, []string{"numeric_only"}, groupAgg((*frame.Series).Min, false)),
	def("nunique", 0, 0, nil, groupAgg(func(s *frame.Series) (any, error) { return s.NUnique(), nil }, false)),
	def("size", 0, 0, nil, func(_ *Evaluator, recv any, _ []any, _ map[string]any) (any, error) {
		switch g := recv.(type) {
		case *frame.GroupColumn:
			return g.Size(), nil
		case *frame.GroupBy:
			return g.Size(), nil
		}
		return nil, newError(KindType, "", "not a groupby object")
	}),
)

// --- Series.str ---

func strMap(fn func(s string, args []any, kw map[string]any) (any, error)) methodFunc {
	return func(_ *Evaluator, recv any, args []any, kw map[string]any) (any, error) {
		out, err := recv.(*strAccessor).series.Map(func(v any) (any, error) {
			s, ok := v.(string)
			if !ok {
				return nil, nil
			}
			return fn(s, args, kw)
		})
		return out, typeError(err)
	}
}

func strPattern(args []any, kw map[string]any, name string) (string, error) {
	p, ok := argOr(args, kw, 0, name, nil).(string)
	if !ok {
		return "", newError(KindType, "", "first argument must be a string")
	}
	return p, nil
}

var strMethods = registry(
	def("contains", 1, 1, []string{"pat", "case", "na", "regex"}, strMap(func(s string, args []any, kw map[string]any) (any, error) {
		pat, err := strPattern(args, kw, "pat")
		if err != nil {
			return nil, err
		}
		if c, ok := kw["case"].(bool); ok && !c {
			return strings.Contains(strings.ToLower(s), strings.ToLower(pat)), nil
		}
		return strings.Contains(s, pat), nil
	})),
	def("startswith", 1, 1, []string{"pat"}, strMap(func(s string, args []any, kw map[string]any) (any, error) {
		pat, err := strPattern(args, kw, "pat")
		if err != nil {
			return nil, err
		}
		return strings.HasPrefix(s, pat), nil
	})),
	def("endswith", 1, 1, []string{"pat"}, strMap(func(s string, args []any, kw map[string]any) (any, error) {
		pat, err := strPattern(args, kw, "pat")
		if err != nil {
			return nil, err
		}
		return strings.HasSuffix(s, pat), nil
	})),
	def("upper", 0, 0, nil, strMap(func(s string, _ []any, _ map[string]any) (any, error) { return strings.ToUpper(s), nil })),
	def("lower", 0, 0, nil, strMap(func(s string, _ []any, _ map[string]any) (any, error) { return strings.ToLower(s), nil })),
	def("strip", 0, 0, nil, strMap(func(s string, _ []any, _ map[string]any) (any, error) { return strings.TrimSpace(s), nil })),
	def("len", 0, 0, nil, strMap(func(s string, _ []any, _ map[string]any) (any, error) {
		return int64(utf8.RuneCountInString(s)), nil
	})),
)

// --- Python str, list and dict ---

func stringArg(args []any, i int, name string) (string, error) {
	if i >= len(args) {
		return "", newError(KindCall, name, "%s() missing argument", name)
	}
	s, ok := args[i].(string)
	if !ok {
		return "", newError(KindType, name, "%s() argument must be str, not %s", name, frame.TypeName(args[i]))
	}
	return s, nil
}

var stringMethods = registry(
	def("upper", 0, 0, nil, func(_ *Evaluator, recv any, _ []any, _ map[string]any) (any, error) {
		return strings.ToUpper(recv.(string)), nil
	}),
	def("lower", 0, 0, nil, func(_ *Evaluator, recv any, _ []any, _ map[string]any) (any, error) {
		return strings.ToLower(recv.(string)), nil
	}),
	def("strip", 0, 1, nil, func(_ *Evaluator, recv any, args []any, _ map[string]any) (any, error) {
		if len(args) == 0 || args[0] == nil {
			return strings.TrimSpace(recv.(string)), nil
		}
		chars, err := stringArg(args, 0, "strip")
		if err != nil {
			return nil, err
		}
		return strings.Trim(recv.(string), chars), nil
	}),
	def("replace", 2, 3, nil, func(_ *Evaluator, recv any, args []any, _ map[string]any) (any, error) {
		old, err := stringArg(args, 0, "replace")
		if err != nil {
			return nil, err
		}
		repl, err := stringArg(args, 1, "replace")
		if err != nil {
			return nil, err
		}
		n := -1
		if len(args) == 3 {
			if n, err = intArg(args[2], "count"); err != nil {
				return nil, err
			}
		}
		return strings.Replace(recv.(string), old, repl, n), nil
	}),
	def("startswith", 1, 1, nil, func(_ *Evaluator, recv any, args []any, _ map[string]any) (any, error) {
		p, err := stringArg(args, 0, "startswith")
		if err != nil {
			return nil, err
		}
		return strings.HasPrefix(recv.(string), p), nil
	}),
	def("endswith", 1, 1, nil, func(_ *Evaluator, recv any, args []any, _ map[string]any) (any, error) {
		p, err := stringArg(args, 0, "endswith")
		if err != nil {
			return nil, err
		}
		return strings.HasSuffix(recv.(string), p), nil
	}),
	def("join", 1, 1, nil, func(_ *Evaluator, recv any, args []any, _ map[string]any) (any, error) {
		items, err := iterate(args[0])
		if err != nil {
			return nil, err
		}
		parts := make([]string, len(items))
		for i, it := range items {
			s, ok := it.(string)
			if !ok {
				return nil, newError(KindType, "join", "sequence item %d: expected str instance, %s found", i, frame.TypeName(it))
			}
			parts[i] = s
		}
		return strings.Join(parts, recv.(string)), nil
	}),
	def("split", 0, 1, []string{"sep"}, func(_ *Evaluator, recv any, args []any, kw map[string]any) (any, error) {
		s := recv.(string)
		var parts []string
		if sep, ok := argOr(args, kw, 0, "sep", nil).(string); ok {
			if sep == "" {
				return nil, newError(KindValue, "split", "empty separator")
			}
			parts = strings.Split(s, sep)
		} else {
			parts = strings.Fields(s)
		}
		out := make([]any, len(parts))
		for i, p := range parts {
			out[i] = p
		}
		return out, nil
	}),
)

var listMethods = registry(
	def("count", 1, 1, nil, func(_ *Evaluator, recv any, args []any, _ map[string]any) (any, error) {
		items, _ := iterate(recv)
		var n int64
		for _, it := range items {
			if frame.Equal(it, args[0]) {
				n++
			}
		}
		return n, nil
	}),
	def("index", 1, 1, nil, func(_ *Evaluator, recv any, args []any, _ map[string]any) (any, error) {
		items, _ := iterate(recv)
		for i, it := range items {
			if frame.Equal(it, args[0]) {
				return int64(i), nil
			}
		}
		return nil, newError(KindValue, "index", "%s is not in list", frame.Repr(args[0]))
	}),
)

var dictMethods = registry(
	def("keys", 0, 0, nil, func(_ *Evaluator, recv any, _ []any, _ map[string]any) (any, error) {
		return recv.(*frame.Dict).Keys(), nil
	}),
	def("values", 0, 0, nil, func(_ *Evaluator, recv any, _ []any, _ map[string]any) (any, error) {
		return recv.(*frame.Dict).Values(), nil
	}),
	def("items", 0, 0, nil, func(_ *Evaluator, recv any, _ []any, _ map[string]any) (any, error) {
		return recv.(*frame.Dict).Items(), nil
	}),
	def("get", 1, 2, nil, func(_ *Evaluator, recv any, args []any, _ map[string]any) (any, error) {
		if v, ok := recv.(*frame.Dict).Get(args[0]); ok {
			return v, nil
		}
		if len(args) == 2 {
			return args[1], nil
		}
		return nil, nil
	}),
)

// methodsFor returns the allow-list for a receiver.
func methodsFor(recv any) map[string]*methodDef {
	switch recv.(type) {
	case *frame.Frame:
		return frameMethods
	case *frame.Series:
		return seriesMethods
	case *frame.GroupBy, *frame.GroupColumn:
		return groupByMethods
	case *strAccessor:
		return strMethods
	case string:
		return stringMethods
	case []any, frame.Tuple:
		return listMethods
	case *frame.Dict:
		return dictMethods
	}
	return nil
}

// attribute resolves value.attr against the allow-lists.
func attribute(value any, attr string) (any, error) {
	if strings.HasPrefix(attr, "_") {
		return nil, newError(KindAttribute, attr, "access to attribute %q is not allowed", attr)
	}
	if d, ok := methodsFor(value)[attr]; ok {
		return &boundMethod{recv: value, def: d}, nil
	}
	switch v := value.(type) {
	case *frame.Frame:
		if out, ok := frameAttribute(v, attr); ok {
			return out, nil
		}
	case *frame.Series:
		if out, ok := seriesAttribute(v, attr); ok {
			return out, nil
		}
	}
	return nil, newError(KindAttribute, attr, "attribute %q is not allowed on %s", attr, frame.TypeName(value))
}
