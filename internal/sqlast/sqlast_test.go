package sqlast

import (
	"strings"
	"testing"

	pg_query "github.com/pganalyze/pg_query_go/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRejectsNonSelect(t *testing.T) {
	_, err := Parse("DELETE FROM accounts")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected SELECT")

	_, err = Parse("SELECT 1; SELECT 2")
	require.Error(t, err)

	_, err = Parse("SELEC * FROM")
	require.Error(t, err)
}

func TestSelectColumns(t *testing.T) {
	tests := []struct {
		sql  string
		want []string
	}{
		{"SELECT acct_no, bank_nm FROM t", []string{"acct_no", "bank_nm"}},
		{"SELECT t.acct_no, SUM(acct_bal_amt) AS total FROM t GROUP BY t.acct_no", []string{"acct_no", "total"}},
		{"SELECT count(*) FROM t", []string{"count"}},
		{"SELECT reg_dt::text FROM t", []string{"reg_dt"}},
		{"SELECT 1 + 2 FROM t", []string{"?column?"}},
		{"SELECT * FROM t", []string{"*"}},
		{"SELECT a FROM t UNION SELECT b FROM u", []string{"a"}},
	}
	for _, tt := range tests {
		cols, err := SelectColumns(tt.sql)
		require.NoError(t, err, tt.sql)
		var got []string
		for _, c := range cols {
			got = append(got, c.Name)
		}
		assert.Equal(t, tt.want, got, tt.sql)
	}
}

func TestColumnFlags(t *testing.T) {
	cols, err := SelectColumns("SELECT t.*, SUM(x) AS s, 1 + 2 FROM t")
	require.NoError(t, err)
	require.Len(t, cols, 3)
	assert.True(t, cols[0].Star)
	assert.True(t, HasStar(cols))
	assert.True(t, cols[1].Aliased)
	assert.True(t, cols[2].Unnamed)
	assert.Equal(t, 3, cols[2].Position)
}

func extract(t *testing.T, sql, column string) DateBounds {
	t.Helper()
	stmt, err := Parse(sql)
	require.NoError(t, err)
	return ExtractDateBounds(stmt.Select.WhereClause, column)
}

func TestExtractDateBounds(t *testing.T) {
	b := extract(t, "SELECT * FROM t WHERE reg_dt = '20240101'", "reg_dt")
	assert.Equal(t, []string{"20240101"}, b.Equals)

	b = extract(t, "SELECT * FROM t WHERE reg_dt BETWEEN '20240101' AND '20240131' AND bank_nm = 'x'", "reg_dt")
	assert.Equal(t, "20240101", b.BetweenLo)
	assert.Equal(t, "20240131", b.BetweenHi)

	b = extract(t, "SELECT * FROM t WHERE trsc_dt >= '20240101' AND trsc_dt < '20240201'", "trsc_dt")
	assert.Equal(t, "20240101", b.Lower)
	assert.Equal(t, "20240201", b.Upper)

	b = extract(t, "SELECT * FROM t WHERE '20240301' <= t.reg_dt", "reg_dt")
	assert.Equal(t, "20240301", b.Lower)
	assert.Empty(t, b.Upper)

	b = extract(t, "SELECT * FROM t WHERE reg_dt = '20240105' OR reg_dt = '20240102'", "reg_dt")
	assert.ElementsMatch(t, []string{"20240105", "20240102"}, b.Equals)

	b = extract(t, "SELECT * FROM t WHERE reg_dt IN ('20240105', '20240102')", "reg_dt")
	assert.Len(t, b.Equals, 2)

	b = extract(t, "SELECT * FROM t WHERE reg_dt = '20240101'::text", "reg_dt")
	assert.Equal(t, []string{"20240101"}, b.Equals)
}

func TestExtractDateBoundsIgnoresNoise(t *testing.T) {
	// wrong format, other column, negation and subqueries do not count
	for _, sql := range []string{
		"SELECT * FROM t WHERE reg_dt = '2024-01-01'",
		"SELECT * FROM t WHERE due_dt = '20240101'",
		"SELECT * FROM t WHERE NOT reg_dt = '20240101'",
		"SELECT * FROM t WHERE acct_no IN (SELECT acct_no FROM u WHERE reg_dt = '20240101')",
		"SELECT * FROM t",
	} {
		b := extract(t, sql, "reg_dt")
		assert.False(t, b.Found(), sql)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		sql   string
		shape Shape
	}{
		{"SELECT * FROM t", Shape{}},
		{"SELECT a FROM t UNION SELECT a FROM u", Shape{Union: true}},
		{"SELECT a FROM t UNION ALL SELECT a FROM u", Shape{Union: true}},
		{"SELECT * FROM t WHERE a IN (SELECT a FROM u)", Shape{Subquery: true}},
		{"SELECT * FROM (SELECT a FROM u) s", Shape{Subquery: true}},
		{"WITH x AS (SELECT 1) SELECT * FROM x", Shape{Subquery: true}},
		{"SELECT a FROM t WHERE EXISTS (SELECT 1 FROM u) UNION SELECT a FROM v", Shape{Union: true, Subquery: true}},
	}
	for _, tt := range tests {
		got, err := ClassifySQL(tt.sql)
		require.NoError(t, err, tt.sql)
		assert.Equal(t, tt.shape, got, tt.sql)
	}
	assert.False(t, HasSubquery("not sql at all"))
	assert.True(t, HasUnion("SELECT 1 UNION SELECT 2"))
}

func TestHasOrderBy(t *testing.T) {
	assert.True(t, HasOrderBy("SELECT * FROM t ORDER BY a"))
	assert.True(t, HasOrderBy("select * from t order\n  by a"))
	assert.False(t, HasOrderBy("SELECT * FROM t -- order by a"))
	assert.False(t, HasOrderBy("SELECT * FROM t /* ORDER BY a */"))
	assert.False(t, HasOrderBy("SELECT 'order by' AS s FROM t"))
	assert.False(t, HasOrderBy("SELECT border_by FROM t"))
}

func TestStripComments(t *testing.T) {
	got := StripComments("SELECT a -- trailing\nFROM t /* block */ WHERE b = 'x--y'", false)
	assert.Equal(t, "SELECT a \nFROM t   WHERE b = 'x--y'", got)
}

func TestFunctionTableDeparse(t *testing.T) {
	stmt, err := Parse("SELECT * FROM aicfo_get_all_amt a")
	require.NoError(t, err)
	rv := stmt.Select.FromClause[0].GetRangeVar()
	require.NotNil(t, rv)

	stmt.Select.FromClause[0] = FunctionTable(
		[]string{rv.Relname},
		[]*pg_query.Node{StringConst("i"), StringConst("u"), StringConst("c"), StringConst("20240101"), StringConst("20240102")},
		rv.Alias,
	)
	out, err := stmt.Deparse()
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "aicfo_get_all_amt('i', 'u', 'c', '20240101', '20240102') a"), out)
}

func TestTerminate(t *testing.T) {
	assert.Equal(t, "SELECT 1;", Terminate("SELECT 1"))
	assert.Equal(t, "SELECT 1;", Terminate("SELECT 1;;  \n"))
}

func TestRelations(t *testing.T) {
	tests := []struct {
		sql  string
		want []string
	}{
		{"SELECT 1", nil},
		{"SELECT * FROM a JOIN b ON a.x = b.x WHERE y IN (SELECT y FROM c)", []string{"a", "b", "c"}},
		{"WITH r AS (SELECT * FROM f('x')) SELECT * FROM r", nil},
		{"SELECT * FROM (WITH r AS (SELECT 1) SELECT * FROM r) s, r", []string{"r"}},
		{"WITH r AS (SELECT 1) SELECT * FROM public.r", []string{"public.r"}},
		{"SELECT * FROM f('x') UNION SELECT * FROM g", []string{"g"}},
	}
	for _, tt := range tests {
		stmt, err := Parse(tt.sql)
		require.NoError(t, err, tt.sql)
		assert.Equal(t, tt.want, Relations(stmt.Select), tt.sql)
	}
}

func TestTableFunctions(t *testing.T) {
	stmt, err := Parse("SELECT * FROM aicfo_get_all_amt('a') x JOIN LATERAL generate_series(1, 3) g ON true, pg_catalog.pg_ls_dir('.')")
	require.NoError(t, err)
	assert.Equal(t, []string{"aicfo_get_all_amt", "generate_series", "pg_catalog.pg_ls_dir"}, TableFunctions(stmt.Select))
}

func TestCheckReadOnly(t *testing.T) {
	for sql, want := range map[string]string{
		"SELECT * INTO backup FROM t":                              "SELECT INTO",
		"SELECT * FROM t FOR SHARE":                                "locking",
		"SELECT * FROM (SELECT * FROM t FOR UPDATE) s":             "locking",
		"WITH d AS (DELETE FROM t RETURNING *) SELECT * FROM d":    "must be a SELECT",
		"WITH d AS (INSERT INTO t VALUES (1) RETURNING *) TABLE d": "must be a SELECT",
	} {
		stmt, err := Parse(sql)
		require.NoError(t, err, sql)
		assert.ErrorContains(t, CheckReadOnly(stmt.Select), want, sql)
	}

	stmt, err := Parse("WITH r AS (SELECT 1) SELECT * FROM r UNION SELECT 2")
	require.NoError(t, err)
	assert.NoError(t, CheckReadOnly(stmt.Select))
}
