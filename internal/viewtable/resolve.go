package viewtable

import (
	"time"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/atlekbai/aicfo/internal/sqlast"
)

// openUpperDays is how far back an upper-bound-only predicate reaches.
const openUpperDays = 7

// resolve picks the window for one scope from its WHERE clause:
//
//  1. BETWEEN on the date column
//  2. paired inequality, open ends defaulting to today / hi-7d
//  3. equality (several equalities span min..max)
//  4. the due column, preferred when the date column reaches past it
//  5. the parent scope's window, else (today, today)
//
// Both bounds are clamped to today.
func (r *rewriter) resolve(where *pg_query.Node, parent *DateRange) DateRange {
	primary, okPrimary := r.bounds(sqlast.ExtractDateBounds(where, r.def.DateColumn))
	due, okDue := r.bounds(sqlast.ExtractDateBounds(where, r.def.DueColumn))

	var rng DateRange
	switch {
	case okPrimary && okDue && primary.To > due.To:
		rng = due
	case okPrimary:
		rng = primary
	case okDue:
		rng = due
	case parent != nil:
		return *parent
	default:
		return DateRange{From: r.today, To: r.today}
	}
	return r.clamp(rng)
}

func (r *rewriter) bounds(b sqlast.DateBounds) (DateRange, bool) {
	switch {
	case b.BetweenLo != "":
		return DateRange{From: b.BetweenLo, To: b.BetweenHi}, true
	case b.Lower != "" && b.Upper != "":
		return DateRange{From: b.Lower, To: b.Upper}, true
	case b.Lower != "":
		return DateRange{From: b.Lower, To: r.today}, true
	case b.Upper != "":
		return DateRange{From: r.weekBefore(b.Upper), To: b.Upper}, true
	case len(b.Equals) > 0:
		lo, hi := b.Equals[0], b.Equals[0]
		for _, d := range b.Equals[1:] {
			if d < lo {
				lo = d
			}
			if d > hi {
				hi = d
			}
		}
		return DateRange{From: lo, To: hi}, true
	}
	return DateRange{}, false
}

func (r *rewriter) weekBefore(d string) string {
	day, err := time.ParseInLocation(DateLayout, d, r.t.loc)
	if err != nil {
		return d
	}
	return day.AddDate(0, 0, -openUpperDays).Format(DateLayout)
}

func (r *rewriter) clamp(rng DateRange) DateRange {
	if rng.From > r.today {
		rng.From = r.today
		r.clamped = true
	}
	if rng.To > r.today {
		rng.To = r.today
		r.clamped = true
	}
	return rng
}
