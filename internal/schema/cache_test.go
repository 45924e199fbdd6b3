package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTables(t *testing.T) {
	c := NewCache()
	assert.Equal(t, []string{"amt", "stock", "trsc"}, c.Keys())
	assert.Equal(t, 3, c.TableCount())

	trsc, err := c.Lookup("trsc")
	require.NoError(t, err)
	assert.Equal(t, "trsc_dt", trsc.DateColumn)
	assert.Equal(t, DueColumn, trsc.DueColumn)
	assert.Equal(t, "aicfo_get_all_trsc", trsc.FunctionName())

	_, err = c.Lookup("loan")
	assert.EqualError(t, err, `unknown logical table "loan"`)
	assert.Nil(t, c.Get("loan"))
}

func TestMerge(t *testing.T) {
	c := NewCacheFromTables(&TableDef{Key: "amt", DateColumn: "reg_dt"})

	require.NoError(t, c.Merge([]*TableDef{
		{Key: "amt", DateColumn: "base_dt"},
		{Key: "loan", DateColumn: "reg_dt"},
	}))
	assert.Equal(t, "base_dt", c.Get("amt").DateColumn)
	assert.Equal(t, DueColumn, c.Get("loan").DueColumn)

	assert.Error(t, c.Merge([]*TableDef{{DateColumn: "reg_dt"}}))
	assert.ErrorContains(t, c.Merge([]*TableDef{{Key: "fx"}}), "date_column is required")
	assert.Nil(t, c.Get("fx"))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tables:
  - key: loan
    title: 대출
    date_column: reg_dt
    default_order: [bank_nm, reg_dt]
`), 0o600))

	c := NewCache()
	require.NoError(t, c.LoadFile(path))
	loan := c.Get("loan")
	require.NotNil(t, loan)
	assert.Equal(t, "대출", loan.Title)
	assert.Equal(t, []string{"bank_nm", "reg_dt"}, loan.DefaultOrder)
	assert.Equal(t, 4, c.TableCount())

	assert.ErrorContains(t, c.LoadFile(filepath.Join(t.TempDir(), "none.yaml")), "schema cache load")
}

func TestColumnRules(t *testing.T) {
	assert.True(t, IsForeignCurrencyColumn("USD_amt"))
	assert.False(t, IsForeignCurrencyColumn("KRW_amt"))
	assert.False(t, IsForeignCurrencyColumn("amt"))
	assert.True(t, IsStringColumn("bank_nm"))
	assert.False(t, IsStringColumn("acct_bal_amt"))
	assert.True(t, IsLogicalTable("AICFO_GET_ALL_amt"))
	assert.Equal(t, `"a""b"`, QuoteIdent(`a"b`))
}
