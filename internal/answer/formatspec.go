package answer

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/atlekbai/aicfo/internal/frame"
)

// formatSpec is a parsed [[fill]align][sign][#][0][width][grouping][.precision][type].
type formatSpec struct {
	fill      rune
	align     rune
	sign      rune
	alternate bool
	width     int
	grouping  rune
	precision int
	typ       rune
}

func parseSpec(spec string) (formatSpec, error) {
	fs := formatSpec{fill: ' ', precision: -1}
	r := []rune(spec)
	i := 0
	isAlign := func(c rune) bool { return strings.ContainsRune("<>=^", c) }
	switch {
	case len(r) >= 2 && isAlign(r[1]):
		fs.fill, fs.align = r[0], r[1]
		i = 2
	case len(r) >= 1 && isAlign(r[0]):
		fs.align = r[0]
		i = 1
	}
	if i < len(r) && strings.ContainsRune("+- ", r[i]) {
		fs.sign = r[i]
		i++
	}
	if i < len(r) && r[i] == 'z' {
		i++
	}
	if i < len(r) && r[i] == '#' {
		fs.alternate = true
		i++
	}
	if i < len(r) && r[i] == '0' {
		if fs.align == 0 {
			fs.fill, fs.align = '0', '='
		}
		i++
	}
	start := i
	for i < len(r) && r[i] >= '0' && r[i] <= '9' {
		i++
	}
	if i > start {
		fs.width, _ = strconv.Atoi(string(r[start:i]))
	}
	if i < len(r) && (r[i] == ',' || r[i] == '_') {
		fs.grouping = r[i]
		i++
	}
	if i < len(r) && r[i] == '.' {
		i++
		start = i
		for i < len(r) && r[i] >= '0' && r[i] <= '9' {
			i++
		}
		if i == start {
			return fs, fmt.Errorf("format specifier missing precision")
		}
		fs.precision, _ = strconv.Atoi(string(r[start:i]))
	}
	if i < len(r) {
		fs.typ = r[i]
		i++
	}
	if i != len(r) {
		return fs, fmt.Errorf("invalid format specifier %q", spec)
	}
	return fs, nil
}

// formatWithSpec applies a format spec the way Python's format() does.
func formatWithSpec(v any, spec string) (string, error) {
	if spec == "" {
		return frame.Str(v), nil
	}
	fs, err := parseSpec(spec)
	if err != nil {
		return "", err
	}
	switch x := v.(type) {
	case string:
		return fs.formatString(x)
	case bool:
		if fs.typ == 0 || fs.typ == 's' {
			return fs.formatString(frame.Str(x))
		}
		n := int64(0)
		if x {
			n = 1
		}
		return fs.formatInt(n)
	case int64:
		return fs.formatInt(x)
	case float64:
		return fs.formatFloat(x)
	}
	return "", fmt.Errorf("unsupported format string passed to %s.__format__", frame.TypeName(v))
}

func (fs formatSpec) formatString(s string) (string, error) {
	if fs.typ != 0 && fs.typ != 's' {
		return "", fmt.Errorf("unknown format code '%c' for object of type 'str'", fs.typ)
	}
	if fs.sign != 0 {
		return "", fmt.Errorf("sign not allowed in string format specifier")
	}
	if fs.precision >= 0 && utf8.RuneCountInString(s) > fs.precision {
		s = string([]rune(s)[:fs.precision])
	}
	return fs.pad("", s, '<'), nil
}

func (fs formatSpec) formatInt(n int64) (string, error) {
	switch fs.typ {
	case 'e', 'E', 'f', 'F', 'g', 'G', '%':
		return fs.formatFloat(float64(n))
	}
	if fs.precision >= 0 {
		return "", fmt.Errorf("precision not allowed in integer format specifier")
	}
	neg := n < 0
	abs := uint64(n)
	if neg {
		abs = uint64(-n)
	}
	var body, prefix string
	groupSize := 3
	switch fs.typ {
	case 0, 'd', 'n':
		body = strconv.FormatUint(abs, 10)
	case 'b':
		body, prefix, groupSize = strconv.FormatUint(abs, 2), "0b", 4
	case 'o':
		body, prefix, groupSize = strconv.FormatUint(abs, 8), "0o", 4
	case 'x':
		body, prefix, groupSize = strconv.FormatUint(abs, 16), "0x", 4
	case 'X':
		body, prefix, groupSize = strings.ToUpper(strconv.FormatUint(abs, 16)), "0X", 4
	case 'c':
		return fs.pad("", string(rune(n)), '<'), nil
	default:
		return "", fmt.Errorf("unknown format code '%c' for object of type 'int'", fs.typ)
	}
	if fs.grouping != 0 {
		body = groupDigits(body, string(fs.grouping), groupSize)
	}
	if !fs.alternate {
		prefix = ""
	}
	return fs.pad(fs.signOf(neg)+prefix, body, '>'), nil
}

func (fs formatSpec) formatFloat(f float64) (string, error) {
	neg := math.Signbit(f) && !math.IsNaN(f)
	abs := math.Abs(f)
	prec := fs.precision
	var body string
	switch fs.typ {
	case 'f', 'F', '%':
		if prec < 0 {
			prec = 6
		}
		suffix := ""
		if fs.typ == '%' {
			abs *= 100
			suffix = "%"
		}
		body = strconv.FormatFloat(abs, 'f', prec, 64) + suffix
	case 'e', 'E':
		if prec < 0 {
			prec = 6
		}
		body = strconv.FormatFloat(abs, 'e', prec, 64)
	case 'g', 'G', 'n':
		if prec < 0 {
			prec = 6
		}
		if prec == 0 {
			prec = 1
		}
		body = strconv.FormatFloat(abs, 'g', prec, 64)
	case 0:
		if prec < 0 {
			body = frame.FormatFloat(abs)
		} else {
			body = strconv.FormatFloat(abs, 'g', max(prec, 1), 64)
			if !strings.ContainsAny(body, ".e") {
				body += ".0"
			}
		}
	default:
		return "", fmt.Errorf("unknown format code '%c' for object of type 'float'", fs.typ)
	}
	switch {
	case math.IsNaN(f):
		body = "nan"
	case math.IsInf(f, 0):
		body = "inf"
	}
	if fs.typ == 'E' || fs.typ == 'G' || fs.typ == 'F' {
		body = strings.ToUpper(body)
	}
	if fs.grouping != 0 {
		body = groupNumber(body, string(fs.grouping))
	}
	return fs.pad(fs.signOf(neg), body, '>'), nil
}

func (fs formatSpec) signOf(neg bool) string {
	switch {
	case neg:
		return "-"
	case fs.sign == '+':
		return "+"
	case fs.sign == ' ':
		return " "
	}
	return ""
}

// pad applies width, fill and alignment. '=' pads between sign and digits.
func (fs formatSpec) pad(sign, body string, defaultAlign rune) string {
	n := utf8.RuneCountInString(sign) + utf8.RuneCountInString(body)
	if n >= fs.width {
		return sign + body
	}
	fill := strings.Repeat(string(fs.fill), fs.width-n)
	align := fs.align
	if align == 0 {
		align = defaultAlign
	}
	switch align {
	case '<':
		return sign + body + fill
	case '^':
		half := (fs.width - n) / 2
		return strings.Repeat(string(fs.fill), half) + sign + body + strings.Repeat(string(fs.fill), fs.width-n-half)
	case '=':
		return sign + fill + body
	}
	return fill + sign + body
}

// groupNumber groups the integer digits of a formatted number.
func groupNumber(body, sep string) string {
	end := strings.IndexFunc(body, func(r rune) bool { return r < '0' || r > '9' })
	if end < 0 {
		end = len(body)
	}
	return groupDigits(body[:end], sep, 3) + body[end:]
}

func groupDigits(digits, sep string, size int) string {
	if len(digits) <= size {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % size
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += size {
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(digits[i : i+size])
	}
	return b.String()
}
