package query

import (
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
	"google.golang.org/protobuf/proto"

	"github.com/atlekbai/aicfo/internal/schema"
	"github.com/atlekbai/aicfo/internal/sqlast"
)

// AddOrderBy gives a query a deterministic ORDER BY. Queries that already
// order their rows, contain a subquery or do not parse are returned as is.
//
// The ordering key is chosen as follows:
//   - SELECT *: the table's default composite order
//   - GROUP BY: the first aliased output column, else the grouping keys
//   - a known timestamp column (trsc_dt, reg_dt, ...): that column alone
//   - otherwise every output column in SELECT order
//
// All keys sort DESC. The result is terminated with a semicolon.
func AddOrderBy(sql string, table *schema.TableDef) string {
	if sqlast.HasOrderBy(sql) {
		return sql
	}
	stmt, err := sqlast.Parse(sql)
	if err != nil {
		return sql
	}
	if sqlast.Classify(stmt.Select).Subquery {
		return sql
	}

	keys := orderKeys(stmt.Select, table)
	if len(keys) == 0 {
		return sql
	}
	stmt.Select.SortClause = keys

	out, err := stmt.Deparse()
	if err != nil {
		return sql
	}
	return sqlast.Terminate(out)
}

func orderKeys(sel *pg_query.SelectStmt, table *schema.TableDef) []*pg_query.Node {
	cols := sqlast.Columns(sel)
	first := sqlast.LeftmostSelect(sel)

	if sqlast.HasStar(cols) {
		if table == nil {
			return nil
		}
		return descByName(table.DefaultOrder)
	}

	dup := repeatedNames(cols)

	if len(first.GroupClause) > 0 {
		for _, c := range cols {
			if c.Aliased {
				return []*pg_query.Node{descByColumn(c, dup)}
			}
		}
		// A union orders by output names only; grouping expressions are not
		// visible there.
		if sel.Op != pg_query.SetOperation_SETOP_NONE {
			return descByColumns(cols, dup)
		}
		keys := make([]*pg_query.Node, 0, len(first.GroupClause))
		for _, g := range first.GroupClause {
			keys = append(keys, sqlast.SortDesc(proto.Clone(g).(*pg_query.Node)))
		}
		return keys
	}

	for _, ts := range schema.TimestampPriority {
		for _, c := range cols {
			if !c.Unnamed && strings.EqualFold(c.Name, ts) {
				return []*pg_query.Node{descByColumn(c, dup)}
			}
		}
	}
	return descByColumns(cols, dup)
}

func descByName(names []string) []*pg_query.Node {
	keys := make([]*pg_query.Node, 0, len(names))
	for _, n := range names {
		keys = append(keys, sqlast.SortDesc(sqlast.ColumnRef(n)))
	}
	return keys
}

// descByColumns orders by every output column in SELECT order.
func descByColumns(cols []sqlast.Column, dup map[string]bool) []*pg_query.Node {
	keys := make([]*pg_query.Node, 0, len(cols))
	for _, c := range cols {
		keys = append(keys, descByColumn(c, dup))
	}
	return keys
}

// descByColumn references a column by name, or by position when the name is
// not unique in the output (Postgres rejects such a key as ambiguous) or the
// expression has none.
func descByColumn(c sqlast.Column, dup map[string]bool) *pg_query.Node {
	if c.Unnamed || dup[c.Name] {
		return sqlast.SortDesc(sqlast.IntConst(c.Position))
	}
	return sqlast.SortDesc(sqlast.ColumnRef(c.Name))
}

func repeatedNames(cols []sqlast.Column) map[string]bool {
	seen := make(map[string]bool, len(cols))
	dup := map[string]bool{}
	for _, c := range cols {
		if c.Unnamed || c.Star {
			continue
		}
		if seen[c.Name] {
			dup[c.Name] = true
		}
		seen[c.Name] = true
	}
	return dup
}
