package schema

import (
	"strings"
)

// TablePrefix is the name prefix shared by every logical table exposed to generated SQL.
const TablePrefix = "aicfo_get_all_"

// DueColumn is the contractual maturity column checked alongside each table's date column.
const DueColumn = "due_dt"

// QuoteIdent quotes a SQL identifier, escaping embedded double quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// TableDef describes one logical financial table.
type TableDef struct {
	Key          string   `yaml:"key" json:"key"`                     // "amt", "trsc", "stock"
	Title        string   `yaml:"title" json:"title"`                 // human label
	DateColumn   string   `yaml:"date_column" json:"date_column"`     // YYYYMMDD column that scopes the view function
	DueColumn    string   `yaml:"due_column" json:"due_column"`       // optional maturity column
	DefaultOrder []string `yaml:"default_order" json:"default_order"` // composite key used for SELECT *, all DESC
}

// FunctionName returns the table-valued function name, e.g. aicfo_get_all_amt.
func (t *TableDef) FunctionName() string {
	return TablePrefix + t.Key
}

// IsLogicalTable reports whether a relation name refers to a logical table.
func IsLogicalTable(relname string) bool {
	return strings.HasPrefix(strings.ToLower(relname), TablePrefix)
}

// TimestampPriority lists the timestamp-like columns preferred as ordering keys,
// most preferred first.
var TimestampPriority = []string{"trsc_dt", "reg_dt", "due_dt", "trsc_tm", "reg_tm"}

// StringColumns are never numerically formatted.
var StringColumns = map[string]bool{
	"note1":     true,
	"trsc_dv":   true,
	"bank_nm":   true,
	"com_nm":    true,
	"acct_no":   true,
	"acct_dv":   true,
	"stock_nm":  true,
	"KRW_p_day": true,
	"p_day":     true,
}

// RateColumn is rendered with two decimals like foreign-currency amounts.
const RateColumn = "intr_rate"

// ForeignCurrencies are the ISO codes whose "{CODE}_" column prefix marks a
// non-KRW amount.
var ForeignCurrencies = []string{
	"USD", "EUR", "JPY", "CNY", "GBP", "AUD", "CAD", "CHF", "HKD", "SGD",
	"NZD", "SEK", "NOK", "DKK", "THB", "MYR", "IDR", "PHP", "VND", "INR",
	"TWD", "MXN", "BRL", "RUB", "ZAR", "TRY", "SAR", "AED", "KWD", "BHD",
	"QAR", "OMR", "JOD", "ILS", "EGP", "PKR", "BDT", "LKR", "NPR", "MNT",
	"KZT", "UZS", "PLN", "CZK", "HUF", "RON", "BGN", "HRK", "ISK", "CLP",
	"COP", "PEN", "ARS", "MOP", "BND", "KHR", "MMK", "LAK", "FJD",
}

var foreignCurrencySet = func() map[string]bool {
	m := make(map[string]bool, len(ForeignCurrencies))
	for _, c := range ForeignCurrencies {
		m[c] = true
	}
	return m
}()

// IsForeignCurrencyColumn reports whether a column carries a non-KRW amount.
func IsForeignCurrencyColumn(col string) bool {
	code, _, ok := strings.Cut(col, "_")
	if !ok {
		return false
	}
	return foreignCurrencySet[code]
}

// IsStringColumn reports whether a column must be rendered as-is.
func IsStringColumn(col string) bool {
	return StringColumns[col]
}
