package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlekbai/aicfo/internal/answer"
	"github.com/atlekbai/aicfo/internal/schema"
	"github.com/atlekbai/aicfo/internal/service"
	"github.com/atlekbai/aicfo/internal/viewtable"
)

func newRouter() *mux.Router {
	cache := schema.NewCache()
	tr := viewtable.New(cache,
		viewtable.WithClock(func() time.Time { return time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC) }),
		viewtable.WithLocation(time.UTC),
	)
	svc := service.NewQueryService(cache, tr, nil, answer.NewRenderer())
	r := mux.NewRouter()
	New(svc, cache).Register(r)
	return r
}

func do(t *testing.T, r http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}

func TestTables(t *testing.T) {
	r := newRouter()

	rec, out := do(t, r, http.MethodGet, "/api/tables", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, out["tables"], 3)

	rec, out = do(t, r, http.MethodGet, "/api/tables/trsc", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "trsc_dt", out["date_column"])

	rec, out = do(t, r, http.MethodGet, "/api/tables/loan", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "TABLE_NOT_FOUND", out["code"])
}

func TestTransformRoute(t *testing.T) {
	r := newRouter()

	rec, out := do(t, r, http.MethodPost, "/api/transform", `{
		"query": "SELECT * FROM aicfo_get_all_amt WHERE reg_dt = '20240101'",
		"table": "amt", "company_id": "c1", "user_id": "u1", "use_intt_id": "i1", "limit": 10
	}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, out["query"], "aicfo_get_all_amt('i1', 'u1', 'c1', '20240101', '20240101')")
	assert.Contains(t, out["query"], "LIMIT 10 OFFSET 0;")

	rec, out = do(t, r, http.MethodPost, "/api/transform", `{"table": "amt"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "query is required", out["error"])

	rec, out = do(t, r, http.MethodPost, "/api/transform", `{"query": "SELECT 1", "table": "loan"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PARAM", out["code"])

	rec, out = do(t, r, http.MethodPost, "/api/transform", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_BODY", out["code"])
}

func TestRenderRoute(t *testing.T) {
	r := newRouter()

	rec, out := do(t, r, http.MethodPost, "/api/render", `{
		"template": "f\"합계 {sum(x)}, 평균 {average(x)}\"",
		"data": [{"x": 1}, {"x": 2}, {"x": null}, {"x": 3}]
	}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "합계 6, 평균 2", out["text"])
	assert.Equal(t, false, out["fallback"])
	assert.NotEmpty(t, out["trace_id"])

	rec, out = do(t, r, http.MethodPost, "/api/render", `{"template": "{1/0}", "data": []}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["zero_division"])

	rec, _ = do(t, r, http.MethodPost, "/api/render", `{"template": "{x}", "data": {"x": 1}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExecuteRoute(t *testing.T) {
	r := newRouter()

	rec, out := do(t, r, http.MethodPost, "/api/execute?limit=abc", `{"query": "SELECT 1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, `invalid limit "abc"`, out["error"])

	rec, out = do(t, r, http.MethodPost, "/api/execute", `{"query": "SELECT 1"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", out["code"])

	rec, _ = do(t, r, http.MethodPost, "/api/next-page", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, out = do(t, r, http.MethodPost, "/api/execute", `{"query": "DELETE FROM aicfo_get_all_amt"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "QUERY_REJECTED", out["code"])

	rec, out = do(t, r, http.MethodPost, "/api/next-page", `{"query": "SELECT * FROM aicfo_get_all_amt LIMIT 10"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "QUERY_REJECTED", out["code"])
	assert.Contains(t, out["details"], "not scoped to a tenant")
}
