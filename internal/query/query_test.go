package query

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlekbai/aicfo/internal/schema"
)

func tableDef(t *testing.T, key string) *schema.TableDef {
	t.Helper()
	def, err := schema.NewCache().Lookup(key)
	require.NoError(t, err)
	return def
}

func TestAddOrderBy(t *testing.T) {
	tests := []struct {
		name  string
		table string
		sql   string
		want  string
	}{
		{
			name:  "select star uses table default",
			table: "amt",
			sql:   "SELECT * FROM aicfo_get_all_amt WHERE reg_dt = '20240101'",
			want:  "SELECT * FROM aicfo_get_all_amt WHERE reg_dt = '20240101' ORDER BY com_nm DESC, bank_nm DESC, acct_no DESC, reg_dt DESC;",
		},
		{
			name:  "timestamp column preferred",
			table: "trsc",
			sql:   "SELECT bank_nm, trsc_amt, trsc_dt FROM aicfo_get_all_trsc",
			want:  "SELECT bank_nm, trsc_amt, trsc_dt FROM aicfo_get_all_trsc ORDER BY trsc_dt DESC;",
		},
		{
			name:  "priority order wins over select order",
			table: "amt",
			sql:   "SELECT due_dt, reg_dt FROM aicfo_get_all_amt",
			want:  "SELECT due_dt, reg_dt FROM aicfo_get_all_amt ORDER BY reg_dt DESC;",
		},
		{
			name:  "all columns in select order",
			table: "amt",
			sql:   "SELECT bank_nm, acct_bal_amt FROM aicfo_get_all_amt",
			want:  "SELECT bank_nm, acct_bal_amt FROM aicfo_get_all_amt ORDER BY bank_nm DESC, acct_bal_amt DESC;",
		},
		{
			name:  "group by alias",
			table: "amt",
			sql:   "SELECT bank_nm, sum(acct_bal_amt) AS total FROM aicfo_get_all_amt GROUP BY bank_nm",
			want:  "SELECT bank_nm, sum(acct_bal_amt) AS total FROM aicfo_get_all_amt GROUP BY bank_nm ORDER BY total DESC;",
		},
		{
			name:  "group by keys without alias",
			table: "amt",
			sql:   "SELECT bank_nm, count(*) FROM aicfo_get_all_amt GROUP BY bank_nm",
			want:  "SELECT bank_nm, count(*) FROM aicfo_get_all_amt GROUP BY bank_nm ORDER BY bank_nm DESC;",
		},
		{
			name:  "unnamed expression by position",
			table: "amt",
			sql:   "SELECT acct_no, acct_bal_amt * 2 FROM aicfo_get_all_amt",
			want:  "SELECT acct_no, acct_bal_amt * 2 FROM aicfo_get_all_amt ORDER BY acct_no DESC, 2 DESC;",
		},
		{
			name:  "repeated aggregate names by position",
			table: "amt",
			sql:   "SELECT sum(acct_bal_amt), sum(real_amt) FROM aicfo_get_all_amt",
			want:  "SELECT sum(acct_bal_amt), sum(real_amt) FROM aicfo_get_all_amt ORDER BY 1 DESC, 2 DESC;",
		},
		{
			name:  "repeated column names by position",
			table: "amt",
			sql:   "SELECT a.acct_no, b.acct_no, a.bank_nm FROM aicfo_get_all_amt a, aicfo_get_all_trsc b",
			want:  "SELECT a.acct_no, b.acct_no, a.bank_nm FROM aicfo_get_all_amt a, aicfo_get_all_trsc b ORDER BY 1 DESC, 2 DESC, bank_nm DESC;",
		},
		{
			name:  "repeated timestamp column by position",
			table: "trsc",
			sql:   "SELECT a.trsc_dt, b.trsc_dt FROM aicfo_get_all_trsc a, aicfo_get_all_trsc b",
			want:  "SELECT a.trsc_dt, b.trsc_dt FROM aicfo_get_all_trsc a, aicfo_get_all_trsc b ORDER BY 1 DESC;",
		},
		{
			name:  "ordered before limit",
			table: "amt",
			sql:   "SELECT reg_dt FROM aicfo_get_all_amt LIMIT 10",
			want:  "SELECT reg_dt FROM aicfo_get_all_amt ORDER BY reg_dt DESC LIMIT 10;",
		},
		{
			name:  "union ordered as a whole",
			table: "amt",
			sql:   "SELECT acct_no, reg_dt FROM aicfo_get_all_amt UNION SELECT acct_no, reg_dt FROM aicfo_get_all_amt",
			want:  "SELECT acct_no, reg_dt FROM aicfo_get_all_amt UNION SELECT acct_no, reg_dt FROM aicfo_get_all_amt ORDER BY reg_dt DESC;",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AddOrderBy(tt.sql, tableDef(t, tt.table)))
		})
	}
}

func TestAddOrderByNoOp(t *testing.T) {
	def := tableDef(t, "amt")
	for _, sql := range []string{
		"SELECT * FROM aicfo_get_all_amt ORDER BY acct_no",
		"SELECT * FROM aicfo_get_all_amt WHERE acct_no IN (SELECT acct_no FROM aicfo_get_all_trsc)",
		"SELECT * FROM (SELECT acct_no FROM aicfo_get_all_amt) s",
		"not a query",
	} {
		assert.Equal(t, sql, AddOrderBy(sql, def), sql)
	}
}

func TestAddOrderByIdempotent(t *testing.T) {
	def := tableDef(t, "trsc")
	for _, sql := range []string{
		"SELECT * FROM aicfo_get_all_trsc",
		"SELECT bank_nm, trsc_dt FROM aicfo_get_all_trsc -- order by nothing",
		"SELECT bank_nm, sum(trsc_amt) AS amt FROM aicfo_get_all_trsc GROUP BY bank_nm",
		"SELECT a FROM aicfo_get_all_trsc UNION SELECT a FROM aicfo_get_all_trsc",
	} {
		once := AddOrderBy(sql, def)
		assert.Equal(t, once, AddOrderBy(once, def), sql)
	}
}

func TestAddLimit(t *testing.T) {
	assert.Equal(t,
		"SELECT * FROM t LIMIT 100 OFFSET 0;",
		AddLimit("SELECT * FROM t", 100, 0))
	assert.Equal(t,
		"SELECT credit_limit FROM t LIMIT 50 OFFSET 0;",
		AddLimit("SELECT credit_limit FROM t", 50, 0))
	assert.Equal(t,
		"SELECT a FROM t UNION SELECT a FROM u LIMIT 10 OFFSET 20;",
		AddLimit("SELECT a FROM t UNION SELECT a FROM u", 10, 20))

	existing := "SELECT * FROM t LIMIT 5"
	assert.Equal(t, existing, AddLimit(existing, 100, 0))
}

func TestPagination(t *testing.T) {
	assert.Equal(t,
		"SELECT * FROM t LIMIT 100 OFFSET 200;",
		Pagination("SELECT * FROM t LIMIT 100 OFFSET 100;", 100))
	assert.Equal(t,
		"SELECT * FROM t ORDER BY a DESC LIMIT 100 OFFSET 100;",
		Pagination("SELECT * FROM t ORDER BY a DESC LIMIT 100", 100))
	assert.Equal(t,
		"SELECT * FROM t LIMIT 20 OFFSET 20;",
		Pagination("SELECT * FROM t", 20))
	assert.Equal(t,
		"SELECT a FROM t UNION SELECT a FROM u LIMIT 10 OFFSET 10;",
		Pagination("SELECT a FROM t UNION SELECT a FROM u LIMIT 10 OFFSET 0", 10))
}

type fakeRow struct {
	n   int64
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*int64) = r.n
	return nil
}

type fakeQuerier struct {
	row  fakeRow
	seen []string
}

func (f *fakeQuerier) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	f.seen = append(f.seen, sql)
	return f.row
}

func TestCountRows(t *testing.T) {
	ctx := context.Background()

	q := &fakeQuerier{row: fakeRow{n: 250}}
	n, err := CountRows(ctx, q, "SELECT * FROM t LIMIT 100 OFFSET 100;", 100)
	require.NoError(t, err)
	assert.Equal(t, 250, n)
	require.Len(t, q.seen, 1)
	assert.Equal(t, "SELECT COUNT(*) FROM (SELECT * FROM t OFFSET 100) subq", q.seen[0])

	q = &fakeQuerier{row: fakeRow{n: 3}}
	_, err = CountRows(ctx, q, "SELECT * FROM t LIMIT 5 OFFSET 0", 100)
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM (SELECT * FROM t LIMIT 5 OFFSET 0) subq", q.seen[0])

	q = &fakeQuerier{row: fakeRow{err: pgx.ErrNoRows}}
	n, err = CountRows(ctx, q, "SELECT * FROM t", 100)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	q = &fakeQuerier{row: fakeRow{err: errors.New("connection reset")}}
	n, err = CountRows(ctx, q, "SELECT * FROM t", 100)
	require.Error(t, err)
	assert.Equal(t, 101, n)
}

func TestParseLimit(t *testing.T) {
	n, err := ParseLimit("")
	require.NoError(t, err)
	assert.Equal(t, DefaultLimit, n)

	n, err = ParseLimit("5000")
	require.NoError(t, err)
	assert.Equal(t, MaxLimit, n)

	_, err = ParseLimit("-1")
	require.Error(t, err)
	_, err = ParseLimit("abc")
	require.Error(t, err)
}
