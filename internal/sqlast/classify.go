package sqlast

import (
	"regexp"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// Shape classifies a query for the rewrite strategy.
type Shape struct {
	Union    bool // top-level set operation
	Subquery bool // any nested SELECT (FROM subselect, sublink or CTE)
}

// Classify inspects a parsed statement.
func Classify(sel *pg_query.SelectStmt) Shape {
	shape := Shape{Union: sel.Op != pg_query.SetOperation_SETOP_NONE}
	root := SelectNode(sel)
	Walk(root, func(n *pg_query.Node) bool {
		if shape.Subquery {
			return false
		}
		switch n.Node.(type) {
		case *pg_query.Node_SubLink, *pg_query.Node_RangeSubselect, *pg_query.Node_CommonTableExpr:
			shape.Subquery = true
			return false
		}
		return true
	})
	return shape
}

// ClassifySQL parses sql and classifies it.
func ClassifySQL(sql string) (Shape, error) {
	stmt, err := Parse(sql)
	if err != nil {
		return Shape{}, err
	}
	return Classify(stmt.Select), nil
}

// HasUnion reports whether sql is a top-level set operation.
func HasUnion(sql string) bool {
	shape, err := ClassifySQL(sql)
	return err == nil && shape.Union
}

// HasSubquery reports whether sql contains any nested query.
func HasSubquery(sql string) bool {
	shape, err := ClassifySQL(sql)
	return err == nil && shape.Subquery
}

var orderByRe = regexp.MustCompile(`(?i)\border\s+by\b`)

// HasOrderBy reports whether an ORDER BY keyword appears outside comments
// and string literals.
func HasOrderBy(sql string) bool {
	return orderByRe.MatchString(StripComments(sql, true))
}

// StripComments removes -- line comments and /* */ block comments. When
// blankStrings is set, the contents of quoted literals are blanked too so
// keyword searches cannot match inside them.
func StripComments(sql string, blankStrings bool) string {
	var sb strings.Builder
	sb.Grow(len(sql))
	rs := []rune(sql)
	for i := 0; i < len(rs); i++ {
		ch := rs[i]
		switch {
		case ch == '-' && i+1 < len(rs) && rs[i+1] == '-':
			for i < len(rs) && rs[i] != '\n' {
				i++
			}
			if i < len(rs) {
				sb.WriteRune('\n')
			}
		case ch == '/' && i+1 < len(rs) && rs[i+1] == '*':
			depth := 1
			i += 2
			for i < len(rs) && depth > 0 {
				switch {
				case rs[i] == '/' && i+1 < len(rs) && rs[i+1] == '*':
					depth++
					i += 2
				case rs[i] == '*' && i+1 < len(rs) && rs[i+1] == '/':
					depth--
					i += 2
				default:
					i++
				}
			}
			i--
			sb.WriteRune(' ')
		case ch == '\'' || ch == '"':
			quote := ch
			sb.WriteRune(quote)
			i++
			for i < len(rs) {
				if rs[i] == quote {
					if i+1 < len(rs) && rs[i+1] == quote {
						if !blankStrings {
							sb.WriteRune(quote)
							sb.WriteRune(quote)
						}
						i += 2
						continue
					}
					break
				}
				if !blankStrings {
					sb.WriteRune(rs[i])
				}
				i++
			}
			if i < len(rs) {
				sb.WriteRune(quote)
			}
		default:
			sb.WriteRune(ch)
		}
	}
	return sb.String()
}
