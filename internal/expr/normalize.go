package expr

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/atlekbai/aicfo/internal/frame"
)

var (
	// count(col), average(col), unique(col) and list(col) on a bare column.
	aliasCallRe = regexp.MustCompile(`(^|[^\w.])(count|average|unique|list)\(\s*([A-Za-z_]\w*)\s*\)`)
	// df.col shorthand.
	dotColumnRe = regexp.MustCompile(`(^|[^\w.])df\.([A-Za-z_]\w*)`)
	// df[df['col'] == literal]
	fastFilterRe = regexp.MustCompile(`^df\[\s*df\[\s*(?:'([^']*)'|"([^"]*)")\s*\]\s*==\s*(.+?)\s*\]$`)
)

var aliasMethods = map[string]string{
	"count":   "count",
	"average": "mean",
	"unique":  "unique",
	"list":    "tolist",
}

// normalize rewrites alias calls on columns and df.col shorthand into
// canonical subscript form.
func (ev *Evaluator) normalize(src string) string {
	src = aliasCallRe.ReplaceAllStringFunc(src, func(m string) string {
		sub := aliasCallRe.FindStringSubmatch(m)
		if !ev.frame.HasColumn(sub[3]) {
			return m
		}
		return sub[1] + "df[" + frame.QuoteString(sub[3]) + "]." + aliasMethods[sub[2]] + "()"
	})
	return dotColumnRe.ReplaceAllStringFunc(src, func(m string) string {
		sub := dotColumnRe.FindStringSubmatch(m)
		name := sub[2]
		if !ev.frame.HasColumn(name) || frameMethods[name] != nil || frameProperties[name] {
			return m
		}
		return sub[1] + "df[" + frame.QuoteString(name) + "]"
	})
}

// fastFilter evaluates df[df['col'] == literal] without the parser. ok is
// false when src does not have that shape.
func (ev *Evaluator) fastFilter(src string) (any, bool, error) {
	sub := fastFilterRe.FindStringSubmatch(src)
	if sub == nil {
		return nil, false, nil
	}
	col := sub[1]
	if col == "" {
		col = sub[2]
	}
	lit, ok := parseLiteral(sub[3])
	if !ok {
		return nil, false, nil
	}
	s, err := ev.frame.Column(col)
	if err != nil {
		return nil, true, typeError(err)
	}
	mask, err := compare("==", s, lit)
	if err != nil {
		return nil, true, err
	}
	out, err := ev.frame.Filter(mask.(*frame.Series))
	return out, true, indexError(err)
}

// parseLiteral accepts a quoted string, a number, True, False or None.
func parseLiteral(s string) (any, bool) {
	switch s {
	case "True":
		return true, true
	case "False":
		return false, true
	case "None":
		return nil, true
	}
	if len(s) >= 2 {
		q := s[0]
		if (q == '\'' || q == '"') && s[len(s)-1] == q && !strings.ContainsAny(s[1:len(s)-1], `\'"`) {
			return s[1 : len(s)-1], true
		}
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !strings.ContainsAny(s, "xXnN_") {
		return f, true
	}
	return nil, false
}
