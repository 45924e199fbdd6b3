// Package db executes rewritten SQL against PostgreSQL and returns the rows
// as a frame.ResultSet.
package db

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlekbai/aicfo/internal/frame"
	"github.com/atlekbai/aicfo/internal/metrics"
)

// NewPool connects to the database and verifies the connection.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Conn is the subset of *pgxpool.Pool the executor needs.
type Conn interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// readOnly keeps generated SQL from writing even if it slips past parsing.
var readOnly = pgx.TxOptions{AccessMode: pgx.ReadOnly}

// Executor runs statements inside read-only transactions and collects their
// rows.
type Executor struct {
	conn   Conn
	logger *zap.Logger
}

// NewExecutor wraps conn. A nil logger discards output.
func NewExecutor(conn Conn, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{conn: conn, logger: logger}
}

// QueryRow runs sql in its own read-only transaction, which ends when the
// row is scanned. An Executor serves as a query.Querier.
func (e *Executor) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	tx, err := e.conn.BeginTx(ctx, readOnly)
	if err != nil {
		return errRow{fmt.Errorf("begin transaction: %w", err)}
	}
	return &txRow{ctx: ctx, tx: tx, row: tx.QueryRow(ctx, sql, args...)}
}

type txRow struct {
	ctx context.Context
	tx  pgx.Tx
	row pgx.Row
}

func (r *txRow) Scan(dest ...any) error {
	defer r.tx.Rollback(r.ctx)
	return r.row.Scan(dest...)
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

// Fetch runs sql and returns every row in column order.
func (e *Executor) Fetch(ctx context.Context, sql string) (*frame.ResultSet, error) {
	started := time.Now()
	defer metrics.ObserveQuery("fetch", started)

	tx, err := e.conn.BeginTx(ctx, readOnly)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	rs, err := Collect(rows)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("fetched rows",
		zap.Int("rows", rs.Len()),
		zap.Duration("elapsed", time.Since(started)),
	)
	return rs, nil
}

// Collect drains rows into a ResultSet. Duplicate column names keep the
// first occurrence, like a JSON object built from the row.
func Collect(rows pgx.Rows) (*frame.ResultSet, error) {
	fields := rows.FieldDescriptions()
	columns := make([]string, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if !seen[f.Name] {
			seen[f.Name] = true
			columns = append(columns, f.Name)
		}
	}

	out := []map[string]any{}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scan row %d: %w", len(out), err)
		}
		row := make(map[string]any, len(columns))
		for i, v := range vals {
			name := fields[i].Name
			if _, dup := row[name]; dup {
				continue
			}
			cv, err := Value(v)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", name, err)
			}
			row[name] = cv
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return frame.NewResultSet(columns, out), nil
}

// Value converts a decoded pgx value into the cell model used by frame.
func Value(v any) (any, error) {
	switch x := v.(type) {
	case pgtype.Numeric:
		return numericValue(x)
	case *pgtype.Numeric:
		if x == nil {
			return nil, nil
		}
		return numericValue(*x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02"), nil
		}
		return x.Format(time.RFC3339), nil
	case [16]byte:
		return uuid.UUID(x).String(), nil
	case pgtype.Time:
		if !x.Valid {
			return nil, nil
		}
		d := time.Duration(x.Microseconds) * time.Microsecond
		return fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60), nil
	case map[string]any, []any:
		return jsonCell(x)
	}
	return frame.Normalize(v), nil
}

func numericValue(n pgtype.Numeric) (any, error) {
	if !n.Valid {
		return nil, nil
	}
	if n.NaN || n.InfinityModifier != pgtype.Finite {
		f, err := n.Float64Value()
		if err != nil {
			return nil, err
		}
		return f.Float64, nil
	}
	return frame.Normalize(decimal.NewFromBigInt(n.Int, n.Exp)), nil
}

// jsonCell converts a decoded json/jsonb value. Object keys are sorted
// because pgx decodes objects into maps.
func jsonCell(v any) (any, error) {
	switch x := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		d := frame.NewDict()
		for _, k := range keys {
			item, err := jsonCell(x[k])
			if err != nil {
				return nil, err
			}
			d.Set(k, item)
		}
		return d, nil
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			cv, err := jsonCell(item)
			if err != nil {
				return nil, err
			}
			out[i] = cv
		}
		return out, nil
	}
	return Value(v)
}
