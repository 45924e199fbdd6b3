package sqlast

import (
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// DateBounds collects the date-literal predicates found on one column in one
// WHERE clause. All values are 8-digit YYYYMMDD strings.
type DateBounds struct {
	Column    string
	Equals    []string // col = 'd', col IN (...)
	BetweenLo string   // col BETWEEN lo AND hi
	BetweenHi string
	Lower     string // col >= / > 'd'
	Upper     string // col <= / < 'd'
}

// Found reports whether any predicate was seen.
func (b DateBounds) Found() bool {
	return len(b.Equals) > 0 || b.BetweenLo != "" || b.Lower != "" || b.Upper != ""
}

// IsDate8 reports whether s is an 8-digit YYYYMMDD literal.
func IsDate8(s string) bool {
	if len(s) != 8 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ExtractDateBounds scans a WHERE clause for predicates on column. It follows
// AND / OR trees but never enters subqueries, which form their own scope.
// When several predicates of the same kind appear, the widest window wins.
func ExtractDateBounds(where *pg_query.Node, column string) DateBounds {
	b := DateBounds{Column: column}
	collectBounds(where, strings.ToLower(column), &b)
	return b
}

func collectBounds(n *pg_query.Node, column string, b *DateBounds) {
	if n == nil {
		return
	}
	switch v := n.Node.(type) {
	case *pg_query.Node_BoolExpr:
		if v.BoolExpr.Boolop == pg_query.BoolExprType_NOT_EXPR {
			return
		}
		for _, arg := range v.BoolExpr.Args {
			collectBounds(arg, column, b)
		}
	case *pg_query.Node_AExpr:
		collectAExpr(v.AExpr, column, b)
	}
}

func collectAExpr(e *pg_query.A_Expr, column string, b *DateBounds) {
	switch e.Kind {
	case pg_query.A_Expr_Kind_AEXPR_BETWEEN, pg_query.A_Expr_Kind_AEXPR_BETWEEN_SYM:
		if !isColumn(e.Lexpr, column) {
			return
		}
		items := e.Rexpr.GetList()
		if items == nil || len(items.Items) != 2 {
			return
		}
		lo, okLo := dateConst(items.Items[0])
		hi, okHi := dateConst(items.Items[1])
		if !okLo || !okHi {
			return
		}
		if e.Kind == pg_query.A_Expr_Kind_AEXPR_BETWEEN_SYM && lo > hi {
			lo, hi = hi, lo
		}
		b.BetweenLo = minDate(b.BetweenLo, lo)
		b.BetweenHi = maxDate(b.BetweenHi, hi)

	case pg_query.A_Expr_Kind_AEXPR_IN:
		if OperatorName(e) != "=" || !isColumn(e.Lexpr, column) {
			return
		}
		items := e.Rexpr.GetList()
		if items == nil {
			return
		}
		for _, it := range items.Items {
			if d, ok := dateConst(it); ok {
				b.Equals = append(b.Equals, d)
			}
		}

	case pg_query.A_Expr_Kind_AEXPR_OP:
		op := OperatorName(e)
		var d string
		switch {
		case isColumn(e.Lexpr, column):
			v, ok := dateConst(e.Rexpr)
			if !ok {
				return
			}
			d = v
		case isColumn(e.Rexpr, column):
			v, ok := dateConst(e.Lexpr)
			if !ok {
				return
			}
			d = v
			op = flipOperator(op)
		default:
			return
		}
		switch op {
		case "=":
			b.Equals = append(b.Equals, d)
		case ">=", ">":
			b.Lower = minDate(b.Lower, d)
		case "<=", "<":
			b.Upper = maxDate(b.Upper, d)
		}
	}
}

func isColumn(n *pg_query.Node, column string) bool {
	name, ok := ColumnName(n)
	return ok && strings.ToLower(name) == column
}

func dateConst(n *pg_query.Node) (string, bool) {
	s, ok := ConstString(n)
	if !ok || !IsDate8(s) {
		return "", false
	}
	return s, true
}

func flipOperator(op string) string {
	switch op {
	case ">":
		return "<"
	case ">=":
		return "<="
	case "<":
		return ">"
	case "<=":
		return ">="
	}
	return op
}

// YYYYMMDD strings order lexicographically like dates.
func minDate(cur, d string) string {
	if cur == "" || d < cur {
		return d
	}
	return cur
}

func maxDate(cur, d string) string {
	if cur == "" || d > cur {
		return d
	}
	return cur
}
