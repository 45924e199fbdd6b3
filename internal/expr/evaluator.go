// Package expr evaluates answer-template expressions against a result set.
// Expressions use a restricted Python syntax; every name, attribute,
// operator and callable must be on an allow-list.
package expr

import (
	"strings"

	"go.uber.org/zap"

	"github.com/atlekbai/aicfo/internal/expr/parser"
	"github.com/atlekbai/aicfo/internal/frame"
)

// Evaluator holds the evaluation context for one result set. It is built
// once per template and reused for every field.
type Evaluator struct {
	frame   *frame.Frame
	globals map[string]any
	logger  *zap.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger used for failed expressions.
func WithLogger(l *zap.Logger) Option {
	return func(ev *Evaluator) { ev.logger = l }
}

// New builds an evaluator over rs. A single record wrapping a list of
// records is unwrapped first.
func New(rs *frame.ResultSet, opts ...Option) *Evaluator {
	if rs == nil {
		rs = frame.NewResultSet(nil, nil)
	}
	return NewFromFrame(rs.Unwrap().Frame(), opts...)
}

// NewFromFrame builds an evaluator over an existing frame.
func NewFromFrame(f *frame.Frame, opts ...Option) *Evaluator {
	ev := &Evaluator{frame: f, logger: zap.NewNop()}
	for _, o := range opts {
		o(ev)
	}
	ev.globals = make(map[string]any, len(f.Columns())+len(builtins)+1)
	for _, c := range f.Columns() {
		s, _ := f.Column(c)
		ev.globals[c] = s
	}
	for name, fn := range builtins {
		ev.globals[name] = &builtin{name: name, fn: fn}
	}
	ev.globals["df"] = f
	return ev
}

// Frame returns the table expressions run against.
func (ev *Evaluator) Frame() *frame.Frame { return ev.frame }

// Eval parses and evaluates one expression.
func (ev *Evaluator) Eval(src string) (any, error) {
	src = strings.TrimSpace(src)
	if v, ok, err := ev.fastFilter(src); ok {
		return v, err
	}
	src = ev.normalize(src)
	tree, err := parser.Parse(src)
	if err != nil {
		return nil, &EvalError{Kind: KindSyntax, Msg: err.Error()}
	}
	v, err := ev.eval(tree, nil)
	if err != nil {
		ev.logger.Debug("expression failed", zap.String("expr", src), zap.Error(err))
		return nil, err
	}
	return v, nil
}

// scope holds comprehension loop variables.
type scope struct {
	vars   map[string]any
	parent *scope
}

func (s *scope) lookup(name string) (any, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if v, ok := sc.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

func (ev *Evaluator) eval(node parser.Node, sc *scope) (any, error) {
	switch n := node.(type) {
	case *parser.Constant:
		return n.Value, nil
	case *parser.Name:
		return ev.evalName(n, sc)
	case *parser.Attribute:
		v, err := ev.eval(n.Value, sc)
		if err != nil {
			return nil, err
		}
		return attribute(v, n.Attr)
	case *parser.Subscript:
		return ev.evalSubscript(n, sc)
	case *parser.Call:
		return ev.evalCall(n, sc)
	case *parser.BinOp:
		left, err := ev.eval(n.Left, sc)
		if err != nil {
			return nil, err
		}
		right, err := ev.eval(n.Right, sc)
		if err != nil {
			return nil, err
		}
		return binary(n.Op, left, right)
	case *parser.BoolOp:
		return ev.evalBoolOp(n, sc)
	case *parser.UnaryOp:
		v, err := ev.eval(n.Operand, sc)
		if err != nil {
			return nil, err
		}
		if n.Op == "not" {
			b, err := truthy(v)
			return !b, err
		}
		return unary(n.Op, v)
	case *parser.Compare:
		return ev.evalCompare(n, sc)
	case *parser.IfExp:
		test, err := ev.eval(n.Test, sc)
		if err != nil {
			return nil, err
		}
		ok, err := truthy(test)
		if err != nil {
			return nil, err
		}
		if ok {
			return ev.eval(n.Body, sc)
		}
		return ev.eval(n.OrElse, sc)
	case *parser.List:
		return ev.evalElements(n.Elts, sc)
	case *parser.Tuple:
		items, err := ev.evalElements(n.Elts, sc)
		return frame.Tuple(items), err
	case *parser.Set:
		items, err := ev.evalElements(n.Elts, sc)
		return frame.NewSet(items), err
	case *parser.Dict:
		out := frame.NewDict()
		for i := range n.Keys {
			k, err := ev.eval(n.Keys[i], sc)
			if err != nil {
				return nil, err
			}
			v, err := ev.eval(n.Values[i], sc)
			if err != nil {
				return nil, err
			}
			out.Set(k, v)
		}
		return out, nil
	case *parser.Comp:
		return ev.evalComp(n, sc)
	case *parser.DictComp:
		out := frame.NewDict()
		err := ev.loop(n.Generators, sc, new(int), func(inner *scope) error {
			k, err := ev.eval(n.Key, inner)
			if err != nil {
				return err
			}
			v, err := ev.eval(n.Value, inner)
			if err != nil {
				return err
			}
			out.Set(k, v)
			return nil
		})
		return out, err
	case *parser.Slice:
		return nil, newError(KindSyntax, "", "slice outside of a subscript")
	}
	return nil, newError(KindSyntax, "", "unsupported expression %T", node)
}

func (ev *Evaluator) evalName(n *parser.Name, sc *scope) (any, error) {
	if strings.HasPrefix(n.ID, "__") {
		return nil, newError(KindName, n.ID, "name %q is not allowed", n.ID)
	}
	if v, ok := sc.lookup(n.ID); ok {
		return v, nil
	}
	if v, ok := ev.globals[n.ID]; ok {
		return v, nil
	}
	return nil, newError(KindName, n.ID, "name %q is not defined", n.ID)
}

func (ev *Evaluator) evalElements(elts []parser.Node, sc *scope) ([]any, error) {
	out := make([]any, len(elts))
	for i, e := range elts {
		v, err := ev.eval(e, sc)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// evalBoolOp short-circuits and returns the deciding operand.
func (ev *Evaluator) evalBoolOp(n *parser.BoolOp, sc *scope) (any, error) {
	var v any
	for _, operand := range n.Values {
		var err error
		if v, err = ev.eval(operand, sc); err != nil {
			return nil, err
		}
		ok, err := truthy(v)
		if err != nil {
			return nil, err
		}
		if (n.Op == "and") != ok {
			return v, nil
		}
	}
	return v, nil
}

// evalCompare evaluates a comparison chain. Scalar chains short-circuit;
// element-wise results are combined with &.
func (ev *Evaluator) evalCompare(n *parser.Compare, sc *scope) (any, error) {
	left, err := ev.eval(n.Left, sc)
	if err != nil {
		return nil, err
	}
	var acc any
	for i, op := range n.Ops {
		right, err := ev.eval(n.Comparators[i], sc)
		if err != nil {
			return nil, err
		}
		r, err := compareOne(op, left, right)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			acc = r
		} else if acc, err = binary("&", acc, r); err != nil {
			return nil, err
		}
		if b, ok := acc.(bool); ok && !b {
			return false, nil
		}
		left = right
	}
	return acc, nil
}

func compareOne(op string, left, right any) (any, error) {
	switch op {
	case "in", "not in":
		ok, err := contains(right, left)
		if err != nil {
			return nil, err
		}
		return ok == (op == "in"), nil
	case "is":
		return identical(left, right), nil
	case "is not":
		return !identical(left, right), nil
	}
	return compare(op, left, right)
}

func (ev *Evaluator) evalCall(n *parser.Call, sc *scope) (any, error) {
	fn, err := ev.eval(n.Func, sc)
	if err != nil {
		return nil, err
	}
	c, ok := fn.(callable)
	if !ok {
		name := ""
		if id, isName := n.Func.(*parser.Name); isName {
			name = id.ID
		}
		return nil, newError(KindCall, name, "'%s' object is not callable", frame.TypeName(fn))
	}
	args, err := ev.evalElements(n.Args, sc)
	if err != nil {
		return nil, err
	}
	var kw map[string]any
	if len(n.Keywords) > 0 {
		kw = make(map[string]any, len(n.Keywords))
		for _, k := range n.Keywords {
			if _, dup := kw[k.Name]; dup {
				return nil, newError(KindCall, c.callName(), "keyword argument repeated: %s", k.Name)
			}
			if kw[k.Name], err = ev.eval(k.Value, sc); err != nil {
				return nil, err
			}
		}
	}
	return c.call(ev, args, kw)
}

// --- Subscripts ---

func (ev *Evaluator) evalSubscript(n *parser.Subscript, sc *scope) (any, error) {
	target, err := ev.eval(n.Value, sc)
	if err != nil {
		return nil, err
	}
	key, err := ev.evalIndex(n.Index, sc)
	if err != nil {
		return nil, err
	}
	if ix, ok := target.(*indexer); ok {
		return ix.get(key)
	}
	return subscript(target, key)
}

// evalIndex evaluates a subscript key; slices become frame.Slice.
func (ev *Evaluator) evalIndex(node parser.Node, sc *scope) (any, error) {
	switch n := node.(type) {
	case *parser.Slice:
		bounds := make([]any, 3)
		for i, b := range []parser.Node{n.Lower, n.Upper, n.Step} {
			if b == nil {
				continue
			}
			v, err := ev.eval(b, sc)
			if err != nil {
				return nil, err
			}
			bounds[i] = v
		}
		return toSlice(bounds[0], bounds[1], bounds[2])
	case *parser.Tuple:
		out := make(frame.Tuple, len(n.Elts))
		for i, e := range n.Elts {
			v, err := ev.evalIndex(e, sc)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	return ev.eval(node, sc)
}

func indexError(err error) error {
	if err == nil {
		return nil
	}
	return newError(KindIndex, "", "%s", err.Error())
}

func subscript(target, key any) (any, error) {
	switch t := target.(type) {
	case *frame.Frame:
		return frameSubscript(t, key)
	case *frame.Series:
		return seriesSubscript(t, key)
	case *frame.GroupBy:
		name, ok := key.(string)
		if !ok {
			return nil, newError(KindType, "", "groupby column must be a column name")
		}
		out, err := t.Column(name)
		return out, typeError(err)
	case *frame.Dict:
		if v, ok := t.Get(key); ok {
			return v, nil
		}
		return nil, newError(KindKey, frame.Str(key), "%s", frame.Repr(key))
	case string:
		runes := make([]any, 0, len(t))
		for _, r := range t {
			runes = append(runes, string(r))
		}
		if sl, ok := key.(frame.Slice); ok {
			var b strings.Builder
			for _, r := range frame.SliceValues(runes, sl) {
				b.WriteString(r.(string))
			}
			return b.String(), nil
		}
		return sequenceItem(runes, key, "string")
	case []any:
		if sl, ok := key.(frame.Slice); ok {
			return frame.SliceValues(t, sl), nil
		}
		return sequenceItem(t, key, "list")
	case frame.Tuple:
		if sl, ok := key.(frame.Slice); ok {
			return frame.Tuple(frame.SliceValues(t, sl)), nil
		}
		return sequenceItem(t, key, "tuple")
	}
	return nil, newError(KindType, "", "'%s' object is not subscriptable", frame.TypeName(target))
}

func sequenceItem(items []any, key any, kind string) (any, error) {
	i, err := intArg(key, kind+" indices")
	if err != nil {
		return nil, err
	}
	if i < 0 {
		i += len(items)
	}
	if i < 0 || i >= len(items) {
		return nil, newError(KindIndex, "", "%s index out of range", kind)
	}
	return items[i], nil
}

func frameSubscript(f *frame.Frame, key any) (any, error) {
	switch k := key.(type) {
	case string:
		s, err := f.Column(k)
		return s, typeError(err)
	case *frame.Series:
		out, err := f.Filter(k)
		return out, indexError(err)
	case frame.Slice:
		return f.Slice(k), nil
	case []any:
		if mask, ok := boolMask(k); ok {
			out, err := f.Filter(mask)
			return out, indexError(err)
		}
		cols, err := stringList(k)
		if err != nil {
			return nil, err
		}
		out, err := f.Select(cols)
		return out, typeError(err)
	}
	return nil, newError(KindKey, frame.Str(key), "%s", frame.Repr(key))
}

func seriesSubscript(s *frame.Series, key any) (any, error) {
	switch k := key.(type) {
	case *frame.Series:
		out, err := s.Filter(k)
		return out, indexError(err)
	case frame.Slice:
		return s.Slice(k), nil
	case []any:
		if mask, ok := boolMask(k); ok {
			out, err := s.Filter(mask)
			return out, indexError(err)
		}
	case int64:
		if v, err := s.Label(k); err == nil {
			return v, nil
		}
		v, err := s.ILoc(int(k))
		if err != nil {
			return nil, newError(KindKey, frame.Str(k), "%s", frame.Repr(k))
		}
		return v, nil
	}
	v, err := s.Label(key)
	return v, typeError(err)
}

// boolMask treats a list of booleans as a row mask.
func boolMask(items []any) (*frame.Series, bool) {
	if len(items) == 0 {
		return nil, false
	}
	for _, it := range items {
		if _, ok := it.(bool); !ok {
			return nil, false
		}
	}
	return frame.NewSeries("", items, nil), true
}

// get implements .iloc[...] and .loc[...].
func (ix *indexer) get(key any) (any, error) {
	if t, ok := key.(frame.Tuple); ok {
		if len(t) != 2 {
			return nil, newError(KindIndex, "", "too many indexers")
		}
		f, ok := ix.target.(*frame.Frame)
		if !ok {
			return nil, newError(KindIndex, "", "too many indexers")
		}
		return ix.cell(f, t[0], t[1])
	}
	switch t := ix.target.(type) {
	case *frame.Frame:
		return ix.rows(t, key)
	case *frame.Series:
		switch k := key.(type) {
		case frame.Slice:
			return t.Slice(k), nil
		case *frame.Series:
			out, err := t.Filter(k)
			return out, indexError(err)
		}
		if ix.positional {
			i, err := intArg(key, "iloc index")
			if err != nil {
				return nil, err
			}
			v, err := t.ILoc(i)
			return v, indexError(err)
		}
		v, err := t.Label(key)
		return v, typeError(err)
	}
	return nil, newError(KindType, "", "'%s' object is not subscriptable", frame.TypeName(ix.target))
}

// rows selects rows of f; a scalar key yields one row as a Series.
func (ix *indexer) rows(f *frame.Frame, key any) (any, error) {
	switch k := key.(type) {
	case frame.Slice:
		return f.Slice(k), nil
	case *frame.Series:
		out, err := f.Filter(k)
		return out, indexError(err)
	case []any:
		if mask, ok := boolMask(k); ok {
			out, err := f.Filter(mask)
			return out, indexError(err)
		}
		pos := make([]int, len(k))
		for i, v := range k {
			p, err := ix.position(f, v)
			if err != nil {
				return nil, err
			}
			pos[i] = p
		}
		return f.Take(pos), nil
	}
	p, err := ix.position(f, key)
	if err != nil {
		return nil, err
	}
	row, err := f.Row(p)
	return row, indexError(err)
}

func (ix *indexer) position(f *frame.Frame, key any) (int, error) {
	if ix.positional {
		i, err := intArg(key, "iloc index")
		if err != nil {
			return 0, err
		}
		if i < 0 {
			i += f.Len()
		}
		if i < 0 || i >= f.Len() {
			return 0, newError(KindIndex, "", "single positional indexer is out-of-bounds")
		}
		return i, nil
	}
	p, err := f.LabelPosition(key)
	return p, typeError(err)
}

// cell handles [row, column] on a frame.
func (ix *indexer) cell(f *frame.Frame, rowKey, colKey any) (any, error) {
	var col any
	if ix.positional {
		cols := f.Columns()
		switch k := colKey.(type) {
		case frame.Slice:
			picked := frame.SliceValues(stringsToAny(cols), k)
			names, _ := stringList(picked)
			sel, err := f.Select(names)
			if err != nil {
				return nil, typeError(err)
			}
			return ix.rows(sel, rowKey)
		default:
			j, err := intArg(colKey, "iloc column")
			if err != nil {
				return nil, err
			}
			if j < 0 {
				j += len(cols)
			}
			if j < 0 || j >= len(cols) {
				return nil, newError(KindIndex, "", "single positional indexer is out-of-bounds")
			}
			col = cols[j]
		}
	} else {
		col = colKey
	}
	switch c := col.(type) {
	case string:
		s, err := f.Column(c)
		if err != nil {
			return nil, typeError(err)
		}
		return (&indexer{target: s, positional: ix.positional}).rowsOf(f, s, rowKey)
	case []any:
		names, err := stringList(c)
		if err != nil {
			return nil, err
		}
		sel, err := f.Select(names)
		if err != nil {
			return nil, typeError(err)
		}
		return ix.rows(sel, rowKey)
	case frame.Slice:
		if c.Start == nil && c.Stop == nil && c.Step == nil {
			return ix.rows(f, rowKey)
		}
	}
	return nil, newError(KindKey, frame.Str(col), "%s", frame.Repr(col))
}

// rowsOf resolves the row part of a [row, column] key against one column.
func (ix *indexer) rowsOf(f *frame.Frame, s *frame.Series, rowKey any) (any, error) {
	switch rowKey.(type) {
	case frame.Slice, *frame.Series, []any:
		return ix.get(rowKey)
	}
	p, err := (&indexer{target: f, positional: ix.positional}).position(f, rowKey)
	if err != nil {
		return nil, err
	}
	return s.At(p), nil
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// --- Comprehensions ---

func (ev *Evaluator) evalComp(n *parser.Comp, sc *scope) (any, error) {
	var out []any
	err := ev.loop(n.Generators, sc, new(int), func(inner *scope) error {
		v, err := ev.eval(n.Elt, inner)
		if err != nil {
			return err
		}
		out = append(out, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if n.Kind == parser.CompSet {
		return frame.NewSet(out), nil
	}
	if out == nil {
		out = []any{}
	}
	return out, nil
}

// loop runs nested generators without native iteration, calling emit for
// every binding that passes the if-clauses. steps counts iterations across
// all levels.
func (ev *Evaluator) loop(gens []parser.Comprehension, sc *scope, steps *int, emit func(*scope) error) error {
	if len(gens) == 0 {
		return emit(sc)
	}
	g := gens[0]
	iterable, err := ev.eval(g.Iter, sc)
	if err != nil {
		return err
	}
	items, err := iterate(iterable)
	if err != nil {
		return err
	}
	for _, item := range items {
		*steps++
		if *steps > maxItems {
			return newError(KindValue, "", "comprehension exceeds %d iterations", maxItems)
		}
		inner := &scope{vars: map[string]any{}, parent: sc}
		if err := bind(g.Target, item, inner); err != nil {
			return err
		}
		keep := true
		for _, cond := range g.Ifs {
			v, err := ev.eval(cond, inner)
			if err != nil {
				return err
			}
			if keep, err = truthy(v); err != nil {
				return err
			}
			if !keep {
				break
			}
		}
		if !keep {
			continue
		}
		if err := ev.loop(gens[1:], inner, steps, emit); err != nil {
			return err
		}
	}
	return nil
}

// bind assigns a loop item to a name or unpacks it into a tuple target.
func bind(target parser.Node, item any, sc *scope) error {
	switch t := target.(type) {
	case *parser.Name:
		if strings.HasPrefix(t.ID, "__") {
			return newError(KindName, t.ID, "name %q is not allowed", t.ID)
		}
		sc.vars[t.ID] = item
		return nil
	case *parser.Tuple:
		return bindAll(t.Elts, item, sc)
	case *parser.List:
		return bindAll(t.Elts, item, sc)
	}
	return newError(KindSyntax, "", "cannot assign to %T", target)
}

func bindAll(targets []parser.Node, item any, sc *scope) error {
	parts, err := iterate(item)
	if err != nil {
		return newError(KindType, "", "cannot unpack non-iterable %s object", frame.TypeName(item))
	}
	if len(parts) != len(targets) {
		return newError(KindValue, "", "expected %d values to unpack, got %d", len(targets), len(parts))
	}
	for i, t := range targets {
		if err := bind(t, parts[i], sc); err != nil {
			return err
		}
	}
	return nil
}
