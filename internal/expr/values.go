package expr

import (
	"github.com/atlekbai/aicfo/internal/frame"
)

// maxItems bounds every materialized sequence and comprehension.
const maxItems = 100000

// callable is anything a Call node may invoke.
type callable interface {
	call(ev *Evaluator, args []any, kw map[string]any) (any, error)
	callName() string
}

// builtin is an allow-listed global function.
type builtin struct {
	name string
	fn   func(ev *Evaluator, args []any, kw map[string]any) (any, error)
}

func (b *builtin) call(ev *Evaluator, args []any, kw map[string]any) (any, error) {
	return b.fn(ev, args, kw)
}

func (b *builtin) callName() string { return b.name }

// boundMethod is an allow-listed method already resolved on its receiver.
type boundMethod struct {
	recv any
	def  *methodDef
}

func (m *boundMethod) call(ev *Evaluator, args []any, kw map[string]any) (any, error) {
	if err := m.def.check(args, kw); err != nil {
		return nil, err
	}
	return m.def.fn(ev, m.recv, args, kw)
}

func (m *boundMethod) callName() string { return m.def.name }

// strAccessor is Series.str.
type strAccessor struct{ series *frame.Series }

// indexer is Series/DataFrame .iloc or .loc.
type indexer struct {
	target     any
	positional bool
}

// iterate materializes an iterable value.
func iterate(v any) ([]any, error) {
	switch x := v.(type) {
	case []any:
		return x, nil
	case frame.Tuple:
		return x, nil
	case frame.Set:
		return x, nil
	case string:
		out := make([]any, 0, len(x))
		for _, r := range x {
			out = append(out, string(r))
		}
		return out, nil
	case *frame.Dict:
		return x.Keys(), nil
	case *frame.Series:
		return x.Values(), nil
	case *frame.Frame:
		cols := x.Columns()
		out := make([]any, len(cols))
		for i, c := range cols {
			out[i] = c
		}
		return out, nil
	}
	return nil, newError(KindType, "", "'%s' object is not iterable", frame.TypeName(v))
}

// intArg converts an index or count argument.
func intArg(v any, what string) (int, error) {
	if _, ok := v.(float64); ok {
		return 0, newError(KindType, "", "%s must be an integer, not 'float'", what)
	}
	n, ok := frame.ToInt(v)
	if !ok {
		return 0, newError(KindType, "", "%s must be an integer, not '%s'", what, frame.TypeName(v))
	}
	return n, nil
}

func stringList(v any) ([]string, error) {
	if s, ok := v.(string); ok {
		return []string{s}, nil
	}
	items, err := iterate(v)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(items))
	for i, it := range items {
		s, ok := it.(string)
		if !ok {
			return nil, newError(KindType, "", "column names must be strings, not '%s'", frame.TypeName(it))
		}
		out[i] = s
	}
	return out, nil
}

func boolList(v any, n int) ([]bool, error) {
	if b, ok := v.(bool); ok {
		out := make([]bool, max(n, 1))
		for i := range out {
			out[i] = b
		}
		return out, nil
	}
	items, err := iterate(v)
	if err != nil {
		return nil, err
	}
	out := make([]bool, len(items))
	for i, it := range items {
		b, err := frame.Truthy(it)
		if err != nil {
			return nil, typeError(err)
		}
		out[i] = b
	}
	return out, nil
}

func truthy(v any) (bool, error) {
	b, err := frame.Truthy(v)
	if err != nil {
		return false, newError(KindValue, "", "%s", err.Error())
	}
	return b, nil
}

// toSlice resolves evaluated slice bounds.
func toSlice(lower, upper, step any) (frame.Slice, error) {
	var sl frame.Slice
	bound := func(v any) (*int, error) {
		if v == nil {
			return nil, nil
		}
		n, err := intArg(v, "slice indices")
		if err != nil {
			return nil, err
		}
		return &n, nil
	}
	var err error
	if sl.Start, err = bound(lower); err != nil {
		return sl, err
	}
	if sl.Stop, err = bound(upper); err != nil {
		return sl, err
	}
	if sl.Step, err = bound(step); err != nil {
		return sl, err
	}
	if sl.Step != nil && *sl.Step == 0 {
		return sl, newError(KindValue, "", "slice step cannot be zero")
	}
	return sl, nil
}
