package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/atlekbai/aicfo/internal/sqlast"
)

// Querier runs a single-row query. *pgxpool.Pool satisfies it.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CountRows counts the rows remaining from the query's current page on. A
// LIMIT equal to limit is dropped when paired with an OFFSET so the count
// spans every later page.
//
// An empty result counts as 0. When the count query fails the result is
// limit+1 together with the error, so callers still offer a next page.
func CountRows(ctx context.Context, q Querier, sql string, limit int) (int, error) {
	countSQL, _, err := sq.Select("COUNT(*)").From("(" + countSource(sql, limit) + ") subq").ToSql()
	if err != nil {
		return limit + 1, fmt.Errorf("build count query: %w", err)
	}

	var n int64
	if err := q.QueryRow(ctx, countSQL).Scan(&n); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return limit + 1, fmt.Errorf("count rows: %w", err)
	}
	return int(n), nil
}

// countSource strips the page LIMIT and the trailing semicolon.
func countSource(sql string, limit int) string {
	trimmed := strings.TrimRight(strings.TrimSpace(sql), ";")
	stmt, err := sqlast.Parse(trimmed)
	if err != nil {
		return trimmed
	}
	target := offsetHolder(stmt.Select)
	if target == nil || target.LimitCount == nil {
		return trimmed
	}
	if n, ok := sqlast.ConstInt(target.LimitCount); !ok || n != limit {
		return trimmed
	}
	target.LimitCount = nil
	target.LimitOption = pg_query.LimitOption_LIMIT_OPTION_DEFAULT

	out, err := stmt.Deparse()
	if err != nil {
		return trimmed
	}
	return out
}
