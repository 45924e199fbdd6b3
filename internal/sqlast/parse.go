// Package sqlast wraps the Postgres parser: parsing, deparsing, node walking,
// SELECT-list column extraction, date-predicate extraction and query shape
// classification.
package sqlast

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// Statement is a parsed single SELECT statement. The tree is mutated in place
// by rewrite passes and re-serialized with Deparse.
type Statement struct {
	tree   *pg_query.ParseResult
	Select *pg_query.SelectStmt
}

// Parse parses sql, which must hold exactly one SELECT statement.
func Parse(sql string) (*Statement, error) {
	tree, err := pg_query.Parse(sql)
	if err != nil {
		return nil, fmt.Errorf("parse SQL: %w", err)
	}
	if len(tree.Stmts) == 0 {
		return nil, fmt.Errorf("parse SQL: no statements found")
	}
	if len(tree.Stmts) > 1 {
		return nil, fmt.Errorf("parse SQL: expected a single statement, got %d", len(tree.Stmts))
	}
	sel := tree.Stmts[0].Stmt.GetSelectStmt()
	if sel == nil {
		return nil, fmt.Errorf("parse SQL: unsupported statement type, expected SELECT")
	}
	return &Statement{tree: tree, Select: sel}, nil
}

// Deparse re-serializes the (possibly rewritten) tree.
func (s *Statement) Deparse() (string, error) {
	out, err := pg_query.Deparse(s.tree)
	if err != nil {
		return "", fmt.Errorf("deparse SQL: %w", err)
	}
	return out, nil
}

// Terminate appends a single trailing semicolon.
func Terminate(sql string) string {
	return strings.TrimRight(strings.TrimSpace(sql), ";") + ";"
}

// --- Node constructors ---

// StringNode builds a String value node (identifiers, operator names).
func StringNode(s string) *pg_query.Node {
	return &pg_query.Node{Node: &pg_query.Node_String_{String_: &pg_query.String{Sval: s}}}
}

// StringConst builds a string literal constant.
func StringConst(s string) *pg_query.Node {
	return &pg_query.Node{Node: &pg_query.Node_AConst{AConst: &pg_query.A_Const{
		Val:      &pg_query.A_Const_Sval{Sval: &pg_query.String{Sval: s}},
		Location: -1,
	}}}
}

// IntConst builds an integer literal constant.
func IntConst(n int) *pg_query.Node {
	return &pg_query.Node{Node: &pg_query.Node_AConst{AConst: &pg_query.A_Const{
		Val:      &pg_query.A_Const_Ival{Ival: &pg_query.Integer{Ival: int32(n)}},
		Location: -1,
	}}}
}

// ColumnRef builds a bare column reference.
func ColumnRef(name string) *pg_query.Node {
	return &pg_query.Node{Node: &pg_query.Node_ColumnRef{ColumnRef: &pg_query.ColumnRef{
		Fields:   []*pg_query.Node{StringNode(name)},
		Location: -1,
	}}}
}

// SortDesc builds an ORDER BY item with DESC direction.
func SortDesc(expr *pg_query.Node) *pg_query.Node {
	return &pg_query.Node{Node: &pg_query.Node_SortBy{SortBy: &pg_query.SortBy{
		Node:        expr,
		SortbyDir:   pg_query.SortByDir_SORTBY_DESC,
		SortbyNulls: pg_query.SortByNulls_SORTBY_NULLS_DEFAULT,
		Location:    -1,
	}}}
}

// FunctionTable builds a FROM-clause function call: name(args...) [alias].
func FunctionTable(funcname []string, args []*pg_query.Node, alias *pg_query.Alias) *pg_query.Node {
	nameNodes := make([]*pg_query.Node, len(funcname))
	for i, part := range funcname {
		nameNodes[i] = StringNode(part)
	}
	call := &pg_query.Node{Node: &pg_query.Node_FuncCall{FuncCall: &pg_query.FuncCall{
		Funcname:   nameNodes,
		Args:       args,
		Funcformat: pg_query.CoercionForm_COERCE_EXPLICIT_CALL,
		Location:   -1,
	}}}
	// Each entry of RangeFunction.functions is a (funcexpr, coldeflist) pair;
	// the empty node stands for a NULL column definition list.
	pair := &pg_query.Node{Node: &pg_query.Node_List{List: &pg_query.List{
		Items: []*pg_query.Node{call, {}},
	}}}
	return &pg_query.Node{Node: &pg_query.Node_RangeFunction{RangeFunction: &pg_query.RangeFunction{
		Functions: []*pg_query.Node{pair},
		Alias:     alias,
	}}}
}

// --- Constant helpers ---

// ConstString returns the textual value of a string or integer constant,
// looking through type casts.
func ConstString(n *pg_query.Node) (string, bool) {
	n = UnwrapCast(n)
	c := n.GetAConst()
	if c == nil || c.Isnull {
		return "", false
	}
	if s := c.GetSval(); s != nil {
		return s.Sval, true
	}
	if i := c.GetIval(); i != nil {
		return fmt.Sprintf("%d", i.Ival), true
	}
	if f := c.GetFval(); f != nil {
		return f.Fval, true
	}
	return "", false
}

// ConstInt returns the value of an integer constant.
func ConstInt(n *pg_query.Node) (int, bool) {
	n = UnwrapCast(n)
	c := n.GetAConst()
	if c == nil || c.Isnull {
		return 0, false
	}
	if i := c.GetIval(); i != nil {
		return int(i.Ival), true
	}
	return 0, false
}

// UnwrapCast strips any number of nested type casts.
func UnwrapCast(n *pg_query.Node) *pg_query.Node {
	for n != nil {
		tc := n.GetTypeCast()
		if tc == nil {
			return n
		}
		n = tc.Arg
	}
	return n
}

// ColumnName returns the final field of a column reference.
func ColumnName(n *pg_query.Node) (string, bool) {
	n = UnwrapCast(n)
	ref := n.GetColumnRef()
	if ref == nil || len(ref.Fields) == 0 {
		return "", false
	}
	last := ref.Fields[len(ref.Fields)-1]
	if s := last.GetString_(); s != nil {
		return s.Sval, true
	}
	return "", false
}

// OperatorName returns the (unqualified) operator of an A_Expr.
func OperatorName(e *pg_query.A_Expr) string {
	if e == nil || len(e.Name) == 0 {
		return ""
	}
	if s := e.Name[len(e.Name)-1].GetString_(); s != nil {
		return s.Sval
	}
	return ""
}
