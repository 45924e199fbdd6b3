package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"transform", "order", "limit", "paginate", "render"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
	assert.Equal(t, "text", cmd.PersistentFlags().Lookup("format").DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, err := run(t, "", "--format", "xml", "limit", "SELECT 1")
	assert.ErrorContains(t, err, `invalid format "xml"`)
}

func TestTransformCommand(t *testing.T) {
	out, err := run(t, "",
		"transform", "SELECT * FROM aicfo_get_all_amt WHERE reg_dt = '20240101'",
		"--table", "amt", "--company", "c1", "--user", "u1", "--intt", "i1", "--today", "20240615",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "aicfo_get_all_amt('i1', 'u1', 'c1', '20240101', '20240101')")

	out, err = run(t, "SELECT * FROM aicfo_get_all_amt WHERE reg_dt = '20250101'",
		"--format", "json", "transform", "-", "--table", "amt", "--today", "20240615",
	)
	require.NoError(t, err)
	var res struct {
		FutureDate bool                         `json:"future_date"`
		DateRanges map[string]map[string]string `json:"date_ranges"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.FutureDate)
	assert.Equal(t, "20240615", res.DateRanges["main"]["to_date"])

	_, err = run(t, "", "transform", "SELECT 1", "--table", "loan")
	assert.ErrorContains(t, err, "unknown logical table")

	_, err = run(t, "", "transform", "SELECT 1", "--table", "amt", "--today", "June")
	assert.ErrorContains(t, err, "invalid --today")
}

func TestAugmentCommands(t *testing.T) {
	out, err := run(t, "", "order", "SELECT bank_nm, trsc_amt, trsc_dt FROM aicfo_get_all_trsc", "-t", "trsc")
	require.NoError(t, err)
	assert.Equal(t, "SELECT bank_nm, trsc_amt, trsc_dt FROM aicfo_get_all_trsc ORDER BY trsc_dt DESC;\n", out)

	out, err = run(t, "", "paginate", "SELECT a FROM t LIMIT 10 OFFSET 0", "-l", "10")
	require.NoError(t, err)
	assert.Equal(t, "SELECT a FROM t LIMIT 10 OFFSET 10;\n", out)

	out, err = run(t, "", "limit", "SELECT a FROM t LIMIT 5")
	require.NoError(t, err)
	assert.Equal(t, "SELECT a FROM t LIMIT 5\n", out)

	_, err = run(t, "", "limit", "SELECT a FROM t", "--offset=-1")
	assert.Error(t, err)
}

func TestRenderCommand(t *testing.T) {
	data := filepath.Join(t.TempDir(), "rows.json")
	require.NoError(t, os.WriteFile(data, []byte(`[{"x": 1}, {"x": 2}, {"x": null}, {"x": 3}]`), 0o600))

	out, err := run(t, "", "render", "총 거래 건수: {count(x)}건", "--data", data)
	require.NoError(t, err)
	assert.Equal(t, "총 거래 건수: 3건\n", out)

	out, err = run(t, "", "--format", "json", "render", "{df['missing'].sum()}", "--data", data, "--locale", "en")
	require.NoError(t, err)
	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, true, res["fallback"])
	assert.Contains(t, res["text"], "Sorry")

	_, err = run(t, "", "render", "{x}", "--data", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
