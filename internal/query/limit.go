package query

import (
	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/atlekbai/aicfo/internal/sqlast"
)

// AddLimit appends LIMIT limit OFFSET offset when the statement has no LIMIT.
// The check is made on the parse tree, so columns such as credit_limit never
// count as a LIMIT clause.
func AddLimit(sql string, limit, offset int) string {
	stmt, err := sqlast.Parse(sql)
	if err != nil {
		return sql
	}
	sel := stmt.Select
	if sel.LimitCount != nil {
		return sql
	}
	setLimit(sel, limit)
	sel.LimitOffset = sqlast.IntConst(offset)

	out, err := stmt.Deparse()
	if err != nil {
		return sql
	}
	return sqlast.Terminate(out)
}

// Pagination advances a query to its next page: an existing OFFSET grows by
// limit, otherwise OFFSET limit is added. For a set operation without a
// top-level OFFSET the rightmost branch is checked.
func Pagination(sql string, limit int) string {
	stmt, err := sqlast.Parse(sql)
	if err != nil {
		return sql
	}

	target := offsetHolder(stmt.Select)
	if target == nil {
		target = stmt.Select
		if target.LimitCount == nil {
			setLimit(target, limit)
		}
		target.LimitOffset = sqlast.IntConst(limit)
	} else {
		cur, ok := sqlast.ConstInt(target.LimitOffset)
		if !ok {
			return sql
		}
		target.LimitOffset = sqlast.IntConst(cur + limit)
	}

	out, err := stmt.Deparse()
	if err != nil {
		return sql
	}
	return sqlast.Terminate(out)
}

// offsetHolder returns the statement carrying the OFFSET, or nil.
func offsetHolder(sel *pg_query.SelectStmt) *pg_query.SelectStmt {
	if sel.LimitOffset != nil {
		return sel
	}
	if sel.Op != pg_query.SetOperation_SETOP_NONE && sel.Rarg != nil && sel.Rarg.LimitOffset != nil {
		return sel.Rarg
	}
	return nil
}

func setLimit(sel *pg_query.SelectStmt, limit int) {
	sel.LimitCount = sqlast.IntConst(limit)
	sel.LimitOption = pg_query.LimitOption_LIMIT_OPTION_COUNT
}
