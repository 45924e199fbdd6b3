package db

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlekbai/aicfo/internal/frame"
)

type fakeRows struct {
	fields []pgconn.FieldDescription
	data   [][]any
	pos    int
	err    error
	closed bool
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return r.fields }
func (r *fakeRows) Scan(...any) error                            { return errors.New("not supported") }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Values() ([]any, error) { return r.data[r.pos-1], nil }

func newRows(cols []string, data ...[]any) *fakeRows {
	fields := make([]pgconn.FieldDescription, len(cols))
	for i, c := range cols {
		fields[i] = pgconn.FieldDescription{Name: c}
	}
	return &fakeRows{fields: fields, data: data}
}

type fakeConn struct {
	rows     *fakeRows
	row      pgx.Row
	err      error
	beginErr error
	sql      string
	opts     []pgx.TxOptions
	tx       *fakeTx
}

func (c *fakeConn) BeginTx(_ context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	if c.beginErr != nil {
		return nil, c.beginErr
	}
	c.opts = append(c.opts, opts)
	c.tx = &fakeTx{conn: c}
	return c.tx, nil
}

// fakeTx implements the pgx.Tx methods the executor calls; the rest panic
// through the nil embedded interface.
type fakeTx struct {
	pgx.Tx
	conn       *fakeConn
	rolledBack bool
}

func (tx *fakeTx) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	tx.conn.sql = sql
	if tx.conn.err != nil {
		return nil, tx.conn.err
	}
	return tx.conn.rows, nil
}

func (tx *fakeTx) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	tx.conn.sql = sql
	return tx.conn.row
}

func (tx *fakeTx) Rollback(context.Context) error {
	tx.rolledBack = true
	return nil
}

type intRow int64

func (r intRow) Scan(dest ...any) error {
	*dest[0].(*int64) = int64(r)
	return nil
}

func numeric(unscaled int64, exp int32) pgtype.Numeric {
	return pgtype.Numeric{Int: big.NewInt(unscaled), Exp: exp, Valid: true}
}

func TestValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"integral numeric", numeric(120000, -2), int64(1200)},
		{"fractional numeric", numeric(325, -2), 3.25},
		{"null numeric", pgtype.Numeric{}, nil},
		{"int32", int32(7), int64(7)},
		{"date", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), "2024-01-02"},
		{"timestamp", time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC), "2024-01-02T09:30:00Z"},
		{"time", pgtype.Time{Microseconds: int64((9*3600 + 5*60 + 7) * 1e6), Valid: true}, "09:05:07"},
		{"uuid", [16]byte{0x12, 0x34}, "12340000-0000-0000-0000-000000000000"},
		{"text", "KB", "KB"},
		{"null", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Value(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValueJSON(t *testing.T) {
	got, err := Value(map[string]any{"b": float64(2), "a": []any{"x", float64(1)}})
	require.NoError(t, err)
	d, ok := got.(*frame.Dict)
	require.True(t, ok)
	assert.Equal(t, []any{"a", "b"}, d.Keys())
	a, _ := d.Get("a")
	assert.Equal(t, []any{"x", 1.0}, a)
}

func TestFetch(t *testing.T) {
	rows := newRows([]string{"bank_nm", "acct_bal_amt", "bank_nm"},
		[]any{"KB", numeric(150000000, -2), "dup"},
		[]any{"Shinhan", pgtype.Numeric{}, "dup"},
	)
	conn := &fakeConn{rows: rows}
	rs, err := NewExecutor(conn, nil).Fetch(context.Background(), "SELECT 1;")
	require.NoError(t, err)

	assert.Equal(t, "SELECT 1;", conn.sql)
	assert.True(t, rows.closed)
	assert.Equal(t, []pgx.TxOptions{{AccessMode: pgx.ReadOnly}}, conn.opts)
	assert.True(t, conn.tx.rolledBack)
	assert.Equal(t, []string{"bank_nm", "acct_bal_amt"}, rs.Columns)
	require.Equal(t, 2, rs.Len())
	assert.Equal(t, map[string]any{"bank_nm": "KB", "acct_bal_amt": int64(1500000)}, rs.Rows[0])
	assert.Nil(t, rs.Rows[1]["acct_bal_amt"])
}

func TestFetchEmpty(t *testing.T) {
	rs, err := NewExecutor(&fakeConn{rows: newRows([]string{"a"})}, nil).Fetch(context.Background(), "SELECT a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, rs.Columns)
	assert.Equal(t, 0, rs.Len())
}

func TestFetchErrors(t *testing.T) {
	_, err := NewExecutor(&fakeConn{err: errors.New("boom")}, nil).Fetch(context.Background(), "SELECT")
	assert.ErrorContains(t, err, "query failed: boom")

	rows := newRows([]string{"a"}, []any{int64(1)})
	rows.err = errors.New("conn reset")
	_, err = NewExecutor(&fakeConn{rows: rows}, nil).Fetch(context.Background(), "SELECT a")
	assert.ErrorContains(t, err, "read rows: conn reset")
}

func TestFetchBeginError(t *testing.T) {
	_, err := NewExecutor(&fakeConn{beginErr: errors.New("pool closed")}, nil).Fetch(context.Background(), "SELECT 1")
	assert.ErrorContains(t, err, "begin transaction: pool closed")
}

func TestQueryRowReadOnly(t *testing.T) {
	conn := &fakeConn{row: intRow(42)}
	var n int64
	require.NoError(t, NewExecutor(conn, nil).QueryRow(context.Background(), "SELECT count(*) FROM t").Scan(&n))
	assert.Equal(t, int64(42), n)
	assert.Equal(t, "SELECT count(*) FROM t", conn.sql)
	assert.Equal(t, []pgx.TxOptions{{AccessMode: pgx.ReadOnly}}, conn.opts)
	assert.True(t, conn.tx.rolledBack)

	err := NewExecutor(&fakeConn{beginErr: errors.New("pool closed")}, nil).
		QueryRow(context.Background(), "SELECT 1").Scan(&n)
	assert.ErrorContains(t, err, "pool closed")
}
