package sqlast

import (
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// Column is one SELECT-list output column.
type Column struct {
	Name     string // output name (alias, column or function name)
	Aliased  bool   // name came from an explicit AS alias
	Star     bool   // SELECT * or t.*
	Unnamed  bool   // expression without a derivable name
	Position int    // 1-based position in the SELECT list
}

// LeftmostSelect descends through set operations to the first branch, which
// determines the output column names of a UNION.
func LeftmostSelect(sel *pg_query.SelectStmt) *pg_query.SelectStmt {
	for sel != nil && sel.Op != pg_query.SetOperation_SETOP_NONE && sel.Larg != nil {
		sel = sel.Larg
	}
	return sel
}

// Columns extracts the output columns of a statement.
func Columns(sel *pg_query.SelectStmt) []Column {
	sel = LeftmostSelect(sel)
	if sel == nil {
		return nil
	}
	cols := make([]Column, 0, len(sel.TargetList))
	for i, t := range sel.TargetList {
		rt := t.GetResTarget()
		if rt == nil {
			continue
		}
		col := Column{Position: i + 1}
		switch {
		case rt.Name != "":
			col.Name = rt.Name
			col.Aliased = true
		case isStar(rt.Val):
			col.Star = true
			col.Name = "*"
		default:
			if name, ok := exprName(rt.Val); ok {
				col.Name = name
			} else {
				col.Name = "?column?"
				col.Unnamed = true
			}
		}
		cols = append(cols, col)
	}
	return cols
}

// SelectColumns parses sql and returns its output columns.
func SelectColumns(sql string) ([]Column, error) {
	stmt, err := Parse(sql)
	if err != nil {
		return nil, err
	}
	return Columns(stmt.Select), nil
}

// HasStar reports whether any output column is a star.
func HasStar(cols []Column) bool {
	for _, c := range cols {
		if c.Star {
			return true
		}
	}
	return false
}

func isStar(n *pg_query.Node) bool {
	if n.GetAStar() != nil {
		return true
	}
	ref := n.GetColumnRef()
	if ref == nil || len(ref.Fields) == 0 {
		return false
	}
	return ref.Fields[len(ref.Fields)-1].GetAStar() != nil
}

// exprName derives the implicit output name Postgres assigns to an
// expression: the column name, or the function name for calls.
func exprName(n *pg_query.Node) (string, bool) {
	n = UnwrapCast(n)
	if name, ok := ColumnName(n); ok {
		return name, true
	}
	if fc := n.GetFuncCall(); fc != nil && len(fc.Funcname) > 0 {
		if s := fc.Funcname[len(fc.Funcname)-1].GetString_(); s != nil {
			return strings.ToLower(s.Sval), true
		}
	}
	return "", false
}
