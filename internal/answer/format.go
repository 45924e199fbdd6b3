package answer

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/atlekbai/aicfo/internal/frame"
	"github.com/atlekbai/aicfo/internal/schema"
)

var numberPrinter = message.NewPrinter(language.English)

// FormatNumber renders a value for an answer. An explicit spec wins.
// Otherwise values of string columns pass through, count results and
// integers get thousands separators, foreign-currency and interest-rate
// columns get two decimals, and every other number is rounded to an
// integer with thousands separators.
func FormatNumber(value any, spec, funcName string, columns []string) (string, error) {
	value = frame.Normalize(value)
	if spec != "" {
		return formatWithSpec(value, spec)
	}
	for _, c := range columns {
		if schema.IsStringColumn(c) {
			return frame.Str(value), nil
		}
	}
	switch x := value.(type) {
	case int64:
		return numberPrinter.Sprintf("%d", x), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return frame.Str(x), nil
		}
		if funcName != "count" && twoDecimals(columns) {
			return numberPrinter.Sprintf("%.2f", x), nil
		}
		return numberPrinter.Sprintf("%.0f", x), nil
	}
	return frame.Str(value), nil
}

func twoDecimals(columns []string) bool {
	for _, c := range columns {
		if c == schema.RateColumn || schema.IsForeignCurrencyColumn(c) {
			return true
		}
	}
	return false
}
