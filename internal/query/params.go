// Package query augments generated SQL so every statement sent to the
// database has a deterministic order and a bounded page: ORDER BY inference,
// LIMIT/OFFSET insertion, next-page offsets and remaining-row counts.
package query

import (
	"fmt"
	"strconv"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// ParseLimit validates a page size given as text. Empty means DefaultLimit;
// values above MaxLimit are capped.
func ParseLimit(raw string) (int, error) {
	if raw == "" {
		return DefaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	return NormalizeLimit(n), nil
}

// NormalizeLimit maps a non-positive limit to DefaultLimit and caps it at MaxLimit.
func NormalizeLimit(n int) int {
	if n < 1 {
		return DefaultLimit
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}
