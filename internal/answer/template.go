package answer

import (
	"fmt"
	"strings"
)

// Field is one {expr!conversion:spec} replacement field.
type Field struct {
	Expr       string
	Conversion rune // 0, 's', 'r' or 'a'
	Spec       string
}

// Segment is literal text or a replacement field.
type Segment struct {
	Literal string
	Field   *Field
}

// StripWrapper removes an f"..." / f'...' (or triple-quoted) wrapper.
func StripWrapper(tpl string) string {
	s := strings.TrimSpace(tpl)
	if len(s) < 3 || (s[0] != 'f' && s[0] != 'F') {
		return tpl
	}
	body := s[1:]
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(body) >= 2*len(q) && strings.HasPrefix(body, q) && strings.HasSuffix(body, q) {
			return body[len(q) : len(body)-len(q)]
		}
	}
	return tpl
}

// ParseTemplate splits a template into literal text and replacement fields.
// Doubled braces are literal braces. Field expressions may contain
// brackets, dict displays and string literals.
func ParseTemplate(tpl string) ([]Segment, error) {
	t := &templateScanner{src: []rune(tpl)}
	var segs []Segment
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			segs = append(segs, Segment{Literal: lit.String()})
			lit.Reset()
		}
	}
	for t.pos < len(t.src) {
		ch := t.src[t.pos]
		switch ch {
		case '{':
			if t.peek(1) == '{' {
				lit.WriteRune('{')
				t.pos += 2
				continue
			}
			t.pos++
			f, err := t.field()
			if err != nil {
				return nil, err
			}
			flush()
			segs = append(segs, Segment{Field: f})
		case '}':
			if t.peek(1) != '}' {
				return nil, fmt.Errorf("template error at position %d: single '}' is not allowed", t.pos)
			}
			lit.WriteRune('}')
			t.pos += 2
		default:
			lit.WriteRune(ch)
			t.pos++
		}
	}
	flush()
	return segs, nil
}

type templateScanner struct {
	src []rune
	pos int
}

func (t *templateScanner) peek(off int) rune {
	if t.pos+off < len(t.src) {
		return t.src[t.pos+off]
	}
	return 0
}

func (t *templateScanner) errorf(format string, args ...any) error {
	return fmt.Errorf("template error at position %d: %s", t.pos, fmt.Sprintf(format, args...))
}

// field scans past the opening brace up to and including the closing one.
func (t *templateScanner) field() (*Field, error) {
	start := t.pos
	depth := 0
	var quote rune
	for ; t.pos < len(t.src); t.pos++ {
		ch := t.src[t.pos]
		if quote != 0 {
			switch {
			case ch == '\\':
				t.pos++
			case ch == quote:
				quote = 0
			}
			continue
		}
		switch ch {
		case '\'', '"':
			quote = ch
		case '(', '[', '{':
			depth++
		case ')', ']':
			depth--
		case '}':
			if depth == 0 {
				return t.finish(start, t.pos, 0, "")
			}
			depth--
		case '!':
			if depth == 0 && t.peek(1) != '=' {
				end := t.pos
				conv := t.peek(1)
				if conv != 's' && conv != 'r' && conv != 'a' {
					return nil, t.errorf("invalid conversion character %q: expected 's', 'r', or 'a'", string(conv))
				}
				t.pos += 2
				switch t.peek(0) {
				case '}':
					return t.finish(start, end, conv, "")
				case ':':
					t.pos++
					spec, err := t.spec()
					if err != nil {
						return nil, err
					}
					return t.finish(start, end, conv, spec)
				}
				return nil, t.errorf("expected ':' or '}' after conversion")
			}
		case ':':
			if depth == 0 {
				end := t.pos
				t.pos++
				spec, err := t.spec()
				if err != nil {
					return nil, err
				}
				return t.finish(start, end, 0, spec)
			}
		}
	}
	return nil, t.errorf("expected '}' before end of string")
}

// spec scans a format spec; nested {fields} are kept for later expansion.
func (t *templateScanner) spec() (string, error) {
	start := t.pos
	depth := 0
	for ; t.pos < len(t.src); t.pos++ {
		switch t.src[t.pos] {
		case '{':
			depth++
		case '}':
			if depth == 0 {
				return string(t.src[start:t.pos]), nil
			}
			depth--
		}
	}
	return "", t.errorf("expected '}' before end of string")
}

func (t *templateScanner) finish(start, end int, conv rune, spec string) (*Field, error) {
	expr := strings.TrimSpace(string(t.src[start:end]))
	if expr == "" {
		return nil, t.errorf("empty expression not allowed")
	}
	t.pos++ // closing brace
	return &Field{Expr: expr, Conversion: conv, Spec: spec}, nil
}
