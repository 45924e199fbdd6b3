package sqlast

import (
	"fmt"
	"maps"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// CheckReadOnly rejects a SELECT that writes or locks: SELECT INTO, FOR
// UPDATE/SHARE and data-modifying WITH queries.
func CheckReadOnly(sel *pg_query.SelectStmt) error {
	var err error
	Walk(SelectNode(sel), func(n *pg_query.Node) bool {
		switch v := n.Node.(type) {
		case *pg_query.Node_SelectStmt:
			if v.SelectStmt.IntoClause != nil {
				err = fmt.Errorf("SELECT INTO is not allowed")
			} else if len(v.SelectStmt.LockingClause) > 0 {
				err = fmt.Errorf("row locking clauses are not allowed")
			}
		case *pg_query.Node_CommonTableExpr:
			if v.CommonTableExpr.Ctequery.GetSelectStmt() == nil {
				err = fmt.Errorf("WITH query %q must be a SELECT", v.CommonTableExpr.Ctename)
			}
		}
		return err == nil
	})
	return err
}

// Relations returns the plain table references that do not resolve to a
// WITH query in scope, in the order they appear.
func Relations(sel *pg_query.SelectStmt) []string {
	var out []string
	collectRelations(SelectNode(sel), nil, &out)
	return out
}

func collectRelations(n *pg_query.Node, ctes map[string]bool, out *[]string) {
	if n == nil || n.Node == nil {
		return
	}
	if sel := n.GetSelectStmt(); sel != nil && sel.WithClause != nil {
		inner := maps.Clone(ctes)
		if inner == nil {
			inner = map[string]bool{}
		}
		for _, c := range sel.WithClause.Ctes {
			if cte := c.GetCommonTableExpr(); cte != nil {
				inner[strings.ToLower(cte.Ctename)] = true
			}
		}
		ctes = inner
	}
	if rv := n.GetRangeVar(); rv != nil {
		if rv.Schemaname != "" || !ctes[strings.ToLower(rv.Relname)] {
			*out = append(*out, qualifiedName(rv))
		}
	}
	for _, c := range Children(n) {
		collectRelations(c, ctes, out)
	}
}

func qualifiedName(rv *pg_query.RangeVar) string {
	if rv.Schemaname != "" {
		return rv.Schemaname + "." + rv.Relname
	}
	return rv.Relname
}

// TableFunctions returns the names of the functions called in FROM clauses,
// e.g. aicfo_get_all_amt for a rewritten view reference.
func TableFunctions(sel *pg_query.SelectStmt) []string {
	var out []string
	Walk(SelectNode(sel), func(n *pg_query.Node) bool {
		rf := n.GetRangeFunction()
		if rf == nil {
			return true
		}
		for _, f := range rf.Functions {
			items := f.GetList().GetItems()
			if len(items) == 0 {
				continue
			}
			fc := items[0].GetFuncCall()
			if fc == nil {
				out = append(out, "?")
				continue
			}
			parts := make([]string, 0, len(fc.Funcname))
			for _, p := range fc.Funcname {
				parts = append(parts, p.GetString_().GetSval())
			}
			out = append(out, strings.Join(parts, "."))
		}
		return true
	})
	return out
}
