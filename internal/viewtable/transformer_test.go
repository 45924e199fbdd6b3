package viewtable

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlekbai/aicfo/internal/schema"
)

var fixedToday = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

func newTestTransformer(opts ...Option) *Transformer {
	base := []Option{
		WithClock(func() time.Time { return fixedToday }),
		WithLocation(time.UTC),
	}
	return New(schema.NewCache(), append(base, opts...)...)
}

func transform(t *testing.T, tr *Transformer, sql, table string) *Result {
	t.Helper()
	res, err := tr.Transform(Request{
		Query:     sql,
		Table:     table,
		CompanyID: "테스트회사",
		User:      User{UserID: "test_user", UseInttID: "test_intt_id"},
	})
	require.NoError(t, err)
	return res
}

func call(table, from, to string) string {
	return "aicfo_get_all_" + table + "('test_intt_id', 'test_user', '테스트회사', '" + from + "', '" + to + "')"
}

func TestTransformSingleEquality(t *testing.T) {
	res := transform(t, newTestTransformer(),
		"SELECT * FROM aicfo_get_all_amt WHERE reg_dt = '20240101'", "amt")

	assert.Contains(t, res.Query, call("amt", "20240101", "20240101"))
	assert.Contains(t, res.Query, "reg_dt = '20240101'")
	assert.Equal(t, []string{ScopeMain}, res.Scopes)
	assert.Equal(t, DateRange{From: "20240101", To: "20240101"}, res.DateRanges[ScopeMain])
	assert.False(t, res.FutureDate)
}

func TestTransformResolution(t *testing.T) {
	tests := []struct {
		name  string
		table string
		where string
		want  DateRange
	}{
		{"between", "amt", "reg_dt BETWEEN '20240101' AND '20240131'", DateRange{"20240101", "20240131"}},
		{"paired inequality", "trsc", "trsc_dt >= '20240301' AND trsc_dt <= '20240331'", DateRange{"20240301", "20240331"}},
		{"open lower", "amt", "reg_dt >= '20240601'", DateRange{"20240601", "20240615"}},
		{"open upper", "amt", "reg_dt <= '20240310'", DateRange{"20240303", "20240310"}},
		{"flipped literal", "amt", "'20240310' >= reg_dt", DateRange{"20240303", "20240310"}},
		{"several equalities", "amt", "reg_dt = '20240105' OR reg_dt = '20240102'", DateRange{"20240102", "20240105"}},
		{"due column only", "amt", "due_dt BETWEEN '20240101' AND '20240110'", DateRange{"20240101", "20240110"}},
		{"due column wins", "amt", "reg_dt >= '20240101' AND due_dt <= '20240301'", DateRange{"20240223", "20240301"}},
		{"date column wins", "amt", "reg_dt = '20240101' AND due_dt = '20240301'", DateRange{"20240101", "20240101"}},
		{"nothing", "stock", "stock_nm = 'x'", DateRange{"20240615", "20240615"}},
		{"wrong format ignored", "amt", "reg_dt = '2024-01-01'", DateRange{"20240615", "20240615"}},
	}
	tr := newTestTransformer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := transform(t, tr, "SELECT * FROM aicfo_get_all_"+tt.table+" WHERE "+tt.where, tt.table)
			assert.Equal(t, tt.want, res.DateRanges[ScopeMain])
			assert.Contains(t, res.Query, call(tt.table, tt.want.From, tt.want.To))
		})
	}
}

func TestTransformFutureDateClamp(t *testing.T) {
	tr := newTestTransformer()
	flags := &Flags{}
	res, err := tr.Transform(Request{
		Query:     "SELECT * FROM aicfo_get_all_trsc WHERE trsc_dt BETWEEN '20240601' AND '20241231'",
		Table:     "trsc",
		CompanyID: "테스트회사",
		User:      User{UserID: "test_user", UseInttID: "test_intt_id"},
		Flags:     flags,
	})
	require.NoError(t, err)

	assert.True(t, res.FutureDate)
	assert.True(t, flags.FutureDate)
	assert.Equal(t, DateRange{"20240601", "20240615"}, res.DateRanges[ScopeMain])
	assert.Contains(t, res.Query, call("trsc", "20240601", "20240615"))
	// the original predicate is left as written
	assert.Contains(t, res.Query, "'20241231'")

	res = transform(t, tr, "SELECT * FROM aicfo_get_all_trsc WHERE trsc_dt = '20250101'", "trsc")
	assert.True(t, res.FutureDate)
	assert.Equal(t, DateRange{"20240615", "20240615"}, res.DateRanges[ScopeMain])
}

func TestTransformNeverEmitsFutureDates(t *testing.T) {
	tr := newTestTransformer()
	queries := []string{
		"SELECT * FROM aicfo_get_all_amt WHERE reg_dt >= '20300101'",
		"SELECT * FROM aicfo_get_all_amt WHERE reg_dt <= '20300101'",
		"SELECT a FROM aicfo_get_all_amt WHERE reg_dt = '20990101' UNION SELECT a FROM aicfo_get_all_amt WHERE reg_dt = '20240101'",
		"SELECT * FROM aicfo_get_all_amt WHERE acct_no IN (SELECT acct_no FROM aicfo_get_all_amt WHERE reg_dt > '20280101')",
	}
	today := tr.Today()
	for _, q := range queries {
		res := transform(t, tr, q, "amt")
		for scope, rng := range res.DateRanges {
			assert.LessOrEqual(t, rng.From, today, scope)
			assert.LessOrEqual(t, rng.To, today, scope)
		}
		assert.True(t, res.FutureDate, q)
	}
}

func TestTransformUnionIndependence(t *testing.T) {
	res := transform(t, newTestTransformer(),
		"SELECT acct_no FROM aicfo_get_all_amt WHERE reg_dt = '20240101' "+
			"UNION SELECT acct_no FROM aicfo_get_all_amt WHERE reg_dt = '20240115'", "amt")

	assert.Equal(t, []string{ScopeLeftUnion, ScopeRightUnion}, res.Scopes)
	assert.Equal(t, DateRange{"20240101", "20240101"}, res.DateRanges[ScopeLeftUnion])
	assert.Equal(t, DateRange{"20240115", "20240115"}, res.DateRanges[ScopeRightUnion])

	left := strings.Index(res.Query, call("amt", "20240101", "20240101"))
	right := strings.Index(res.Query, call("amt", "20240115", "20240115"))
	require.GreaterOrEqual(t, left, 0)
	require.GreaterOrEqual(t, right, 0)
	assert.Less(t, left, right)
}

func TestTransformChainedUnion(t *testing.T) {
	res := transform(t, newTestTransformer(),
		"SELECT a FROM aicfo_get_all_amt WHERE reg_dt = '20240101' "+
			"UNION ALL SELECT a FROM aicfo_get_all_amt WHERE reg_dt = '20240102' "+
			"UNION ALL SELECT a FROM aicfo_get_all_amt WHERE reg_dt = '20240103'", "amt")

	assert.Equal(t, []string{ScopeLeftUnion, "union_1", ScopeRightUnion}, res.Scopes)
	assert.Equal(t, DateRange{"20240102", "20240102"}, res.DateRanges["union_1"])
	assert.Equal(t, DateRange{"20240103", "20240103"}, res.DateRanges[ScopeRightUnion])
}

func TestTransformSubqueryInheritance(t *testing.T) {
	res := transform(t, newTestTransformer(),
		"SELECT * FROM aicfo_get_all_amt WHERE reg_dt = '20240201' "+
			"AND acct_no IN (SELECT acct_no FROM aicfo_get_all_trsc)", "amt")

	assert.Equal(t, []string{ScopeMain, "subquery_1"}, res.Scopes)
	assert.Equal(t, DateRange{"20240201", "20240201"}, res.DateRanges["subquery_1"])
	assert.Contains(t, res.Query, call("amt", "20240201", "20240201"))
	assert.Contains(t, res.Query, call("trsc", "20240201", "20240201"))
}

func TestTransformSubqueryOwnRange(t *testing.T) {
	res := transform(t, newTestTransformer(),
		"SELECT s.acct_no FROM (SELECT acct_no FROM aicfo_get_all_amt WHERE reg_dt = '20240301') s "+
			"JOIN aicfo_get_all_amt m ON m.acct_no = s.acct_no WHERE m.reg_dt = '20240201'", "amt")

	assert.Equal(t, DateRange{"20240201", "20240201"}, res.DateRanges[ScopeMain])
	assert.Equal(t, DateRange{"20240301", "20240301"}, res.DateRanges["subquery_1"])
	assert.Contains(t, res.Query, call("amt", "20240301", "20240301"))
	assert.Contains(t, res.Query, call("amt", "20240201", "20240201")+" m")
}

func TestTransformSubqueryWithSetOperation(t *testing.T) {
	res := transform(t, newTestTransformer(),
		"SELECT * FROM aicfo_get_all_amt WHERE reg_dt = '20240201' AND acct_no IN ("+
			"SELECT acct_no FROM aicfo_get_all_amt WHERE reg_dt = '20240101' "+
			"UNION SELECT acct_no FROM aicfo_get_all_amt)", "amt")

	assert.Equal(t, []string{ScopeMain, "subquery_1", "subquery_2"}, res.Scopes)
	assert.Equal(t, DateRange{"20240101", "20240101"}, res.DateRanges["subquery_1"])
	assert.Equal(t, DateRange{"20240201", "20240201"}, res.DateRanges["subquery_2"])
}

func TestTransformCTE(t *testing.T) {
	res := transform(t, newTestTransformer(),
		"WITH recent AS (SELECT acct_no FROM aicfo_get_all_trsc WHERE trsc_dt >= '20240610') "+
			"SELECT * FROM recent", "trsc")

	assert.Equal(t, DateRange{"20240615", "20240615"}, res.DateRanges[ScopeMain])
	assert.Equal(t, DateRange{"20240610", "20240615"}, res.DateRanges["subquery_1"])
	assert.Contains(t, res.Query, call("trsc", "20240610", "20240615"))
	assert.Contains(t, res.Query, "FROM recent")
}

func TestTransformPreservesAlias(t *testing.T) {
	res := transform(t, newTestTransformer(),
		"SELECT a.acct_no FROM aicfo_get_all_amt a WHERE a.reg_dt = '20240101'", "amt")
	assert.Contains(t, res.Query, call("amt", "20240101", "20240101")+" a")
}

func TestTransformLeavesOtherTables(t *testing.T) {
	res := transform(t, newTestTransformer(),
		"SELECT * FROM aicfo_get_all_amt x JOIN bank_codes b ON b.bank_nm = x.bank_nm", "amt")
	assert.Contains(t, res.Query, "bank_codes b")
	assert.NotContains(t, res.Query, "bank_codes(")
}

func TestTransformParseFailure(t *testing.T) {
	const bad = "SELEC * FORM aicfo_get_all_amt"
	res := transform(t, newTestTransformer(), bad, "amt")
	assert.Equal(t, bad, res.Query)
	assert.Equal(t, map[string]DateRange{ScopeMain: {"20240615", "20240615"}}, res.DateRanges)
}

func TestTransformUnknownTable(t *testing.T) {
	_, err := newTestTransformer().Transform(Request{Query: "SELECT 1", Table: "loans"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loans")
}

func TestTransformSubqueryFailureIsolated(t *testing.T) {
	tr := newTestTransformer()
	tr.beforeScope = func(scope string) error {
		if scope == "subquery_1" {
			return errors.New("boom")
		}
		return nil
	}
	res := transform(t, tr,
		"SELECT * FROM aicfo_get_all_amt WHERE reg_dt = '20240201' "+
			"AND acct_no IN (SELECT acct_no FROM aicfo_get_all_trsc)", "amt")

	assert.Contains(t, res.Query, call("amt", "20240201", "20240201"))
	assert.Contains(t, res.Query, "aicfo_get_all_trsc")
	assert.NotContains(t, res.Query, "aicfo_get_all_trsc(")
	assert.Equal(t, []string{ScopeMain}, res.Scopes)
	assert.NotContains(t, res.DateRanges, "subquery_1")
}
