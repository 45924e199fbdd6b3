package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/atlekbai/aicfo/internal/answer"
	"github.com/atlekbai/aicfo/internal/frame"
	"github.com/atlekbai/aicfo/internal/schema"
	"github.com/atlekbai/aicfo/internal/viewtable"
)

type countRow struct {
	n   int64
	err error
}

func (r countRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*int64) = r.n
	return nil
}

type fakeExecutor struct {
	mu       sync.Mutex
	rows     *frame.ResultSet
	fetchErr error
	count    countRow
	fetched  []string
	counted  []string
}

func (f *fakeExecutor) Fetch(_ context.Context, sql string) (*frame.ResultSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, sql)
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.rows, nil
}

func (f *fakeExecutor) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counted = append(f.counted, sql)
	return f.count
}

func sampleRows() *frame.ResultSet {
	return frame.NewResultSet([]string{"bank_nm", "x"}, []map[string]any{
		{"bank_nm": "KB", "x": int64(1)},
		{"bank_nm": "Shinhan", "x": int64(2)},
		{"bank_nm": "KB", "x": nil},
		{"bank_nm": "Woori", "x": int64(3)},
	})
}

func newTestService(exec Executor) *QueryService {
	cache := schema.NewCache()
	tr := viewtable.New(cache,
		viewtable.WithClock(func() time.Time { return time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC) }),
		viewtable.WithLocation(time.UTC),
	)
	return NewQueryService(cache, tr, exec, answer.NewRenderer())
}

// scoped is a query as Transform emits it, before ORDER BY and LIMIT.
const scoped = "SELECT * FROM aicfo_get_all_amt('i1', 'u1', 'c1', '20240101', '20240101')"

func input() TransformInput {
	return TransformInput{
		Query:     "SELECT * FROM aicfo_get_all_amt WHERE reg_dt = '20240101'",
		Table:     "amt",
		CompanyID: "테스트회사",
		User:      viewtable.User{UserID: "test_user", UseInttID: "test_intt_id"},
	}
}

func TestTransform(t *testing.T) {
	out, err := newTestService(nil).Transform(input())
	require.NoError(t, err)

	assert.Contains(t, out.Query, "aicfo_get_all_amt('test_intt_id', 'test_user', '테스트회사', '20240101', '20240101')")
	assert.Contains(t, out.Query, "ORDER BY com_nm DESC, bank_nm DESC, acct_no DESC, reg_dt DESC")
	assert.Contains(t, out.Query, "LIMIT 100 OFFSET 0;")
	assert.Equal(t, viewtable.DateRange{From: "20240101", To: "20240101"}, out.DateRanges[viewtable.ScopeMain])
	assert.False(t, out.FutureDate)

	in := input()
	in.Limit = 20
	out, err = newTestService(nil).Transform(in)
	require.NoError(t, err)
	assert.Contains(t, out.Query, "LIMIT 20 OFFSET 0;")

	in.Table = "loan"
	_, err = newTestService(nil).Transform(in)
	assert.ErrorContains(t, err, `unknown logical table "loan"`)
}

func TestExecute(t *testing.T) {
	ctx := context.Background()

	exec := &fakeExecutor{rows: sampleRows(), count: countRow{n: 150}}
	page, err := newTestService(exec).Execute(ctx, scoped+" LIMIT 100 OFFSET 0;", 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"bank_nm", "x"}, page.Columns)
	assert.Equal(t, 4, page.Rows.Len())
	assert.Equal(t, 150, page.Remaining)
	assert.True(t, page.HasNext)
	assert.Equal(t, []string{scoped + " LIMIT 100 OFFSET 0;"}, exec.fetched)
	require.Len(t, exec.counted, 1)

	exec = &fakeExecutor{rows: sampleRows(), count: countRow{n: 4}}
	page, err = newTestService(exec).Execute(ctx, scoped, 100)
	require.NoError(t, err)
	assert.False(t, page.HasNext)

	exec = &fakeExecutor{rows: sampleRows(), count: countRow{err: errors.New("timeout")}}
	page, err = newTestService(exec).Execute(ctx, scoped, 10)
	require.NoError(t, err)
	assert.Equal(t, 11, page.Remaining)
	assert.True(t, page.HasNext)

	exec = &fakeExecutor{fetchErr: errors.New("relation does not exist")}
	_, err = newTestService(exec).Execute(ctx, scoped, 10)
	assert.ErrorContains(t, err, "relation does not exist")

	_, err = newTestService(nil).Execute(ctx, "SELECT 1", 10)
	assert.Error(t, err)
}

func TestExecuteRejectsUnscoped(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{"delete", "DELETE FROM aicfo_get_all_amt", "expected SELECT"},
		{"update", "UPDATE accounts SET bal = 0", "expected SELECT"},
		{"multiple statements", scoped + "; SELECT 1", "single statement"},
		{"bare view table", "SELECT * FROM aicfo_get_all_amt", "aicfo_get_all_amt is not scoped to a tenant"},
		{"bare view in subquery", scoped + " WHERE acct_no IN (SELECT acct_no FROM aicfo_get_all_trsc)", "aicfo_get_all_trsc is not scoped"},
		{"bare view in join", scoped + " a JOIN aicfo_get_all_trsc b ON a.acct_no = b.acct_no", "aicfo_get_all_trsc is not scoped"},
		{"physical table", "SELECT * FROM accounts", "table accounts is not a logical table"},
		{"schema qualified", "SELECT * FROM public.aicfo_get_all_amt", "public.aicfo_get_all_amt"},
		{"other function", "SELECT * FROM pg_ls_dir('.')", "function pg_ls_dir is not a logical table"},
		{"select into", "SELECT * INTO backup FROM " + scoped[len("SELECT * FROM "):], "SELECT INTO"},
		{"for update", scoped + " FOR UPDATE", "locking"},
		{"writing cte", "WITH d AS (DELETE FROM accounts RETURNING *) SELECT * FROM d", "must be a SELECT"},
		{"not sql", "drop everything", "parse SQL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeExecutor{rows: sampleRows(), count: countRow{n: 1}}
			_, err := newTestService(exec).Execute(context.Background(), tt.sql, 10)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrRejected)
			assert.ErrorContains(t, err, tt.want)
			assert.Empty(t, exec.fetched)
			assert.Empty(t, exec.counted)
		})
	}

	exec := &fakeExecutor{rows: sampleRows(), count: countRow{n: 1}}
	_, err := newTestService(exec).NextPage(context.Background(), "SELECT * FROM aicfo_get_all_amt LIMIT 10 OFFSET 0", 10)
	assert.ErrorIs(t, err, ErrRejected)
	assert.Empty(t, exec.fetched)

	cte := "WITH recent AS (" + scoped + ") SELECT * FROM recent"
	_, err = newTestService(exec).Execute(context.Background(), cte, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{cte}, exec.fetched)
}

func TestNextPage(t *testing.T) {
	exec := &fakeExecutor{rows: sampleRows(), count: countRow{n: 5}}
	page, err := newTestService(exec).NextPage(context.Background(), scoped+" LIMIT 10 OFFSET 0;", 10)
	require.NoError(t, err)
	assert.Equal(t, scoped+" LIMIT 10 OFFSET 10;", page.Query)
	assert.Equal(t, []string{scoped + " LIMIT 10 OFFSET 10;"}, exec.fetched)
	assert.False(t, page.HasNext)
}

func TestAnswer(t *testing.T) {
	exec := &fakeExecutor{rows: sampleRows(), count: countRow{n: 4}}
	out, err := newTestService(exec).Answer(context.Background(), input(), "총 거래 건수: {count(x)}건")
	require.NoError(t, err)
	assert.Equal(t, "총 거래 건수: 3건", out.Answer.Text)
	assert.False(t, out.Answer.Fallback)
	require.Len(t, exec.fetched, 1)
	assert.Equal(t, out.Transform.Query, exec.fetched[0])

	out, err = newTestService(exec).Answer(context.Background(), input(), "{df['missing'].sum()}")
	require.NoError(t, err)
	assert.True(t, out.Answer.Fallback)
}

func newTestClient(t *testing.T, svc *QueryService, procedure string) *connect.Client[structpb.Struct, structpb.Struct] {
	t.Helper()
	mux := http.NewServeMux()
	path, h := svc.RegisterHandler()
	mux.Handle(path, h)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return connect.NewClient[structpb.Struct, structpb.Struct](srv.Client(), srv.URL+procedure)
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	st, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return st
}

func TestConnectTransform(t *testing.T) {
	client := newTestClient(t, newTestService(nil), TransformProcedure)
	resp, err := client.CallUnary(context.Background(), connect.NewRequest(mustStruct(t, map[string]any{
		"query":       "SELECT * FROM aicfo_get_all_amt WHERE reg_dt = '20240101'",
		"table":       "amt",
		"company_id":  "테스트회사",
		"user_id":     "test_user",
		"use_intt_id": "test_intt_id",
	})))
	require.NoError(t, err)
	assert.Contains(t, resp.Msg.GetFields()["query"].GetStringValue(), "'20240101', '20240101'")

	_, err = client.CallUnary(context.Background(), connect.NewRequest(mustStruct(t, map[string]any{
		"query": "SELECT 1",
	})))
	require.Error(t, err)
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestConnectRender(t *testing.T) {
	client := newTestClient(t, newTestService(nil), RenderProcedure)
	resp, err := client.CallUnary(context.Background(), connect.NewRequest(mustStruct(t, map[string]any{
		"template": "합계 {sum(x)}",
		"data": []any{
			map[string]any{"x": 1},
			map[string]any{"x": 2},
		},
	})))
	require.NoError(t, err)
	assert.Equal(t, "합계 3", resp.Msg.GetFields()["text"].GetStringValue())
	assert.False(t, resp.Msg.GetFields()["fallback"].GetBoolValue())

	_, err = client.CallUnary(context.Background(), connect.NewRequest(mustStruct(t, map[string]any{
		"template": "{x}",
		"data":     "not a list",
	})))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestConnectExecute(t *testing.T) {
	exec := &fakeExecutor{rows: sampleRows(), count: countRow{n: 150}}
	client := newTestClient(t, newTestService(exec), ExecuteProcedure)
	resp, err := client.CallUnary(context.Background(), connect.NewRequest(mustStruct(t, map[string]any{
		"query": scoped + " LIMIT 100 OFFSET 0;",
		"limit": 100,
	})))
	require.NoError(t, err)
	fields := resp.Msg.GetFields()
	assert.True(t, fields["has_next"].GetBoolValue())
	assert.Len(t, fields["rows"].GetListValue().GetValues(), 4)

	_, err = client.CallUnary(context.Background(), connect.NewRequest(mustStruct(t, map[string]any{
		"query": "DELETE FROM aicfo_get_all_amt",
	})))
	require.Error(t, err)
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}
