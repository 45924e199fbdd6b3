package answer

import (
	"fmt"

	"github.com/atlekbai/aicfo/internal/expr/parser"
	"github.com/atlekbai/aicfo/internal/frame"
)

// AggregateError reports a bad aggregate call: wrong arity, an unknown
// column or an empty input.
type AggregateError struct {
	Func string
	Msg  string
}

func (e *AggregateError) Error() string { return fmt.Sprintf("%s(): %s", e.Func, e.Msg) }

// listingKind says how an aggregate's list result is joined.
type listingKind int

const (
	listingNone    listingKind = iota
	listingRaw                 // items rendered with str()
	listingNumeric             // items rendered with FormatNumber
)

type aggregateFunc struct {
	arity   int
	listing listingKind
	fn      func(args [][]any) (any, error)
}

// aggregates maps a function name to its handler. Arguments arrive as the
// non-null values of a column or the result of a nested call.
var aggregates = map[string]aggregateFunc{
	"sum":        {arity: 1, fn: aggSum},
	"average":    {arity: 1, fn: aggAverage},
	"count":      {arity: 1, fn: func(args [][]any) (any, error) { return int64(len(args[0])), nil }},
	"sumproduct": {arity: 2, fn: nil}, // row-aligned, see Aggregates.sumProduct
	"unique":     {arity: 1, listing: listingRaw, fn: func(args [][]any) (any, error) { return frame.Distinct(args[0]), nil }},
	"mode":       {arity: 1, listing: listingNumeric, fn: aggMode},
	"max":        {arity: 1, fn: aggExtreme("max", 1)},
	"min":        {arity: 1, fn: aggExtreme("min", -1)},
	"value":      {arity: 1, listing: listingRaw, fn: func(args [][]any) (any, error) { return args[0], nil }},
	"list":       {arity: 1, listing: listingNumeric, fn: func(args [][]any) (any, error) { return args[0], nil }},
}

// Aggregates evaluates aggregate calls over one frame.
type Aggregates struct {
	frame *frame.Frame
}

// NewAggregates binds the aggregate functions to f.
func NewAggregates(f *frame.Frame) *Aggregates {
	return &Aggregates{frame: f}
}

// AggregateResult is the outcome of an aggregate call.
type AggregateResult struct {
	Value   any
	Func    string
	Columns []string
	listing listingKind
}

// IsAggregateCall reports whether src is an aggregate call whose arguments
// are column names or nested aggregate calls.
func IsAggregateCall(src string) bool {
	tree, err := parser.Parse(src)
	if err != nil {
		return false
	}
	call, ok := tree.(*parser.Call)
	return ok && isAggregateNode(call)
}

func isAggregateNode(call *parser.Call) bool {
	name, ok := call.Func.(*parser.Name)
	if !ok || len(call.Keywords) > 0 {
		return false
	}
	if _, ok := aggregates[name.ID]; !ok {
		return false
	}
	for _, a := range call.Args {
		switch arg := a.(type) {
		case *parser.Name:
		case *parser.Constant:
			if _, isStr := arg.Value.(string); !isStr {
				return false
			}
		case *parser.Call:
			if !isAggregateNode(arg) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Eval runs an aggregate call such as sum(amt) or unique(list(bank_nm)).
// Nested calls run first.
func (a *Aggregates) Eval(src string) (*AggregateResult, error) {
	tree, err := parser.Parse(src)
	if err != nil {
		return nil, err
	}
	call, ok := tree.(*parser.Call)
	if !ok || !isAggregateNode(call) {
		return nil, fmt.Errorf("%q is not an aggregate call", src)
	}
	return a.call(call)
}

func (a *Aggregates) call(call *parser.Call) (*AggregateResult, error) {
	name := call.Func.(*parser.Name).ID
	agg := aggregates[name]
	if len(call.Args) != agg.arity {
		return nil, &AggregateError{Func: name, Msg: fmt.Sprintf("takes exactly %d argument(s) (%d given)", agg.arity, len(call.Args))}
	}
	res := &AggregateResult{Func: name, listing: agg.listing}
	if name == "sumproduct" {
		cols := make([]string, 2)
		for i, arg := range call.Args {
			col, err := a.columnName(name, arg)
			if err != nil {
				return nil, err
			}
			cols[i] = col
		}
		v, err := a.sumProduct(cols[0], cols[1])
		if err != nil {
			return nil, err
		}
		res.Value, res.Columns = v, cols
		return res, nil
	}
	args := make([][]any, len(call.Args))
	for i, arg := range call.Args {
		if inner, ok := arg.(*parser.Call); ok {
			r, err := a.call(inner)
			if err != nil {
				return nil, err
			}
			args[i] = asValues(r.Value)
			res.Columns = append(res.Columns, r.Columns...)
			continue
		}
		col, err := a.columnName(name, arg)
		if err != nil {
			return nil, err
		}
		vals, err := a.columnValues(name, col)
		if err != nil {
			return nil, err
		}
		args[i] = vals
		res.Columns = append(res.Columns, col)
	}
	v, err := agg.fn(args)
	if err != nil {
		if ae, ok := err.(*AggregateError); ok && ae.Func == "" {
			ae.Func = name
		}
		return nil, err
	}
	res.Value = v
	return res, nil
}

func (a *Aggregates) columnName(fn string, arg parser.Node) (string, error) {
	switch n := arg.(type) {
	case *parser.Name:
		return n.ID, nil
	case *parser.Constant:
		if s, ok := n.Value.(string); ok {
			return s, nil
		}
	}
	return "", &AggregateError{Func: fn, Msg: "arguments must be column names"}
}

// columnValues returns the non-null values of a column.
func (a *Aggregates) columnValues(fn, col string) ([]any, error) {
	s, err := a.frame.Column(col)
	if err != nil {
		return nil, &AggregateError{Func: fn, Msg: fmt.Sprintf("column %s not found", frame.QuoteString(col))}
	}
	var out []any
	for _, v := range s.Values() {
		if !frame.IsNull(v) {
			out = append(out, v)
		}
	}
	return out, nil
}

// sumProduct adds value*weight over rows where both are present.
func (a *Aggregates) sumProduct(valueCol, weightCol string) (any, error) {
	vs, err := a.frame.Column(valueCol)
	if err != nil {
		return nil, &AggregateError{Func: "sumproduct", Msg: fmt.Sprintf("column %s not found", frame.QuoteString(valueCol))}
	}
	ws, err := a.frame.Column(weightCol)
	if err != nil {
		return nil, &AggregateError{Func: "sumproduct", Msg: fmt.Sprintf("column %s not found", frame.QuoteString(weightCol))}
	}
	var isum int64
	var fsum float64
	integral := true
	for i := 0; i < vs.Len(); i++ {
		v, w := vs.At(i), ws.At(i)
		if frame.IsNull(v) || frame.IsNull(w) {
			continue
		}
		vi, vInt := v.(int64)
		wi, wInt := w.(int64)
		if vInt && wInt {
			isum += vi * wi
			continue
		}
		vf, ok1 := frame.ToFloat(v)
		wf, ok2 := frame.ToFloat(w)
		if !ok1 || !ok2 {
			return nil, &AggregateError{Func: "sumproduct", Msg: fmt.Sprintf("non-numeric value in row %d", i)}
		}
		integral = false
		fsum += vf * wf
	}
	if integral {
		return isum, nil
	}
	return fsum + float64(isum), nil
}

func asValues(v any) []any {
	switch x := v.(type) {
	case []any:
		return x
	case nil:
		return nil
	}
	return []any{v}
}

func aggSum(args [][]any) (any, error) {
	v, err := frame.SumValues(args[0])
	if err != nil {
		return nil, &AggregateError{Msg: err.Error()}
	}
	return v, nil
}

func aggAverage(args [][]any) (any, error) {
	if len(args[0]) == 0 {
		return nil, &AggregateError{Msg: "no values to average"}
	}
	var sum float64
	for _, v := range args[0] {
		f, ok := frame.ToFloat(v)
		if !ok {
			return nil, &AggregateError{Msg: fmt.Sprintf("cannot average %s values", frame.TypeName(v))}
		}
		sum += f
	}
	return sum / float64(len(args[0])), nil
}

// aggMode returns the most frequent value, or every tied value.
func aggMode(args [][]any) (any, error) {
	modes := frame.Modes(args[0])
	switch len(modes) {
	case 0:
		return nil, &AggregateError{Msg: "no values"}
	case 1:
		return modes[0], nil
	}
	return modes, nil
}

func aggExtreme(name string, want int) func(args [][]any) (any, error) {
	return func(args [][]any) (any, error) {
		vals := args[0]
		if len(vals) == 0 {
			return nil, &AggregateError{Msg: "arg is an empty sequence"}
		}
		best := vals[0]
		for _, v := range vals[1:] {
			c, err := frame.Compare(v, best)
			if err != nil {
				return nil, &AggregateError{Func: name, Msg: err.Error()}
			}
			if c*want > 0 {
				best = v
			}
		}
		return best, nil
	}
}
