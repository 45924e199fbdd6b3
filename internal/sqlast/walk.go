package sqlast

import (
	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// SelectNode wraps a SelectStmt in a Node so it can flow through Walk.
func SelectNode(sel *pg_query.SelectStmt) *pg_query.Node {
	if sel == nil {
		return nil
	}
	return &pg_query.Node{Node: &pg_query.Node_SelectStmt{SelectStmt: sel}}
}

// Children returns the direct child nodes of n that can carry expressions,
// table references or nested queries. Nil children are omitted.
func Children(n *pg_query.Node) []*pg_query.Node {
	if n == nil {
		return nil
	}
	var out []*pg_query.Node
	add := func(nodes ...*pg_query.Node) {
		for _, c := range nodes {
			if c != nil && c.Node != nil {
				out = append(out, c)
			}
		}
	}

	switch v := n.Node.(type) {
	case *pg_query.Node_SelectStmt:
		s := v.SelectStmt
		if s.WithClause != nil {
			add(s.WithClause.Ctes...)
		}
		add(s.TargetList...)
		add(s.FromClause...)
		add(s.WhereClause)
		add(s.GroupClause...)
		add(s.HavingClause)
		add(s.ValuesLists...)
		add(s.SortClause...)
		add(s.LimitCount, s.LimitOffset)
		add(SelectNode(s.Larg), SelectNode(s.Rarg))
	case *pg_query.Node_CommonTableExpr:
		add(v.CommonTableExpr.Ctequery)
	case *pg_query.Node_ResTarget:
		add(v.ResTarget.Val)
	case *pg_query.Node_RangeSubselect:
		add(v.RangeSubselect.Subquery)
	case *pg_query.Node_RangeFunction:
		add(v.RangeFunction.Functions...)
	case *pg_query.Node_JoinExpr:
		add(v.JoinExpr.Larg, v.JoinExpr.Rarg, v.JoinExpr.Quals)
	case *pg_query.Node_SubLink:
		add(v.SubLink.Testexpr, v.SubLink.Subselect)
	case *pg_query.Node_AExpr:
		add(v.AExpr.Lexpr, v.AExpr.Rexpr)
	case *pg_query.Node_BoolExpr:
		add(v.BoolExpr.Args...)
	case *pg_query.Node_FuncCall:
		add(v.FuncCall.Args...)
		add(v.FuncCall.AggOrder...)
		add(v.FuncCall.AggFilter)
	case *pg_query.Node_TypeCast:
		add(v.TypeCast.Arg)
	case *pg_query.Node_List:
		add(v.List.Items...)
	case *pg_query.Node_CaseExpr:
		add(v.CaseExpr.Arg)
		add(v.CaseExpr.Args...)
		add(v.CaseExpr.Defresult)
	case *pg_query.Node_CaseWhen:
		add(v.CaseWhen.Expr, v.CaseWhen.Result)
	case *pg_query.Node_CoalesceExpr:
		add(v.CoalesceExpr.Args...)
	case *pg_query.Node_MinMaxExpr:
		add(v.MinMaxExpr.Args...)
	case *pg_query.Node_NullTest:
		add(v.NullTest.Arg)
	case *pg_query.Node_BooleanTest:
		add(v.BooleanTest.Arg)
	case *pg_query.Node_RowExpr:
		add(v.RowExpr.Args...)
	case *pg_query.Node_SortBy:
		add(v.SortBy.Node)
	case *pg_query.Node_GroupingSet:
		add(v.GroupingSet.Content...)
	case *pg_query.Node_AIndirection:
		add(v.AIndirection.Arg)
	case *pg_query.Node_AArrayExpr:
		add(v.AArrayExpr.Elements...)
	case *pg_query.Node_NamedArgExpr:
		add(v.NamedArgExpr.Arg)
	}
	return out
}

// Walk visits n and its descendants depth-first. When visit returns false
// the children of that node are skipped.
func Walk(n *pg_query.Node, visit func(*pg_query.Node) bool) {
	if n == nil || n.Node == nil {
		return
	}
	if !visit(n) {
		return
	}
	for _, c := range Children(n) {
		Walk(c, visit)
	}
}
