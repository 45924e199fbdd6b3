package parser

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Lexer tokenizes a Python expression.
type Lexer struct {
	input  []rune
	pos    int
	peeked *Token
}

// NewLexer creates a lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: []rune(input)}
}

// Peek returns the next token without consuming it.
func (l *Lexer) Peek() (Token, error) {
	if l.peeked != nil {
		return *l.peeked, nil
	}
	tok, err := l.next()
	if err != nil {
		return Token{}, err
	}
	l.peeked = &tok
	return tok, nil
}

// Next consumes and returns the next token.
func (l *Lexer) Next() (Token, error) {
	if l.peeked != nil {
		tok := *l.peeked
		l.peeked = nil
		return tok, nil
	}
	return l.next()
}

var singles = map[rune]TokenKind{
	'(': TokLParen,
	')': TokRParen,
	'[': TokLBracket,
	']': TokRBracket,
	'{': TokLBrace,
	'}': TokRBrace,
	',': TokComma,
	':': TokColon,
	'+': TokPlus,
	'-': TokMinus,
	'%': TokPercent,
	'~': TokTilde,
	'&': TokAmp,
	'|': TokPipe,
	'^': TokCaret,
}

func (l *Lexer) next() (Token, error) {
	l.skipWhitespace()
	if l.pos >= len(l.input) {
		return Token{Kind: TokEOF, Pos: l.pos}, nil
	}

	ch := l.input[l.pos]
	pos := l.pos

	if kind, ok := singles[ch]; ok {
		l.pos++
		return Token{Kind: kind, Lit: string(ch), Pos: pos}, nil
	}

	switch ch {
	case '.':
		if l.peekAt(1) >= '0' && l.peekAt(1) <= '9' {
			return l.readNumber(pos)
		}
		l.pos++
		return Token{Kind: TokDot, Lit: ".", Pos: pos}, nil
	case '*':
		return l.pair(pos, '*', TokDoubleStar, TokStar), nil
	case '/':
		return l.pair(pos, '/', TokDoubleSlash, TokSlash), nil
	case '=':
		return l.pair(pos, '=', TokEq, TokAssign), nil
	case '<':
		if l.peekAt(1) == '<' {
			return Token{}, l.errorf(pos, "shift operators are not supported")
		}
		return l.pair(pos, '=', TokLte, TokLt), nil
	case '>':
		if l.peekAt(1) == '>' {
			return Token{}, l.errorf(pos, "shift operators are not supported")
		}
		return l.pair(pos, '=', TokGte, TokGt), nil
	case '!':
		if l.peekAt(1) == '=' {
			l.pos += 2
			return Token{Kind: TokNeq, Lit: "!=", Pos: pos}, nil
		}
		return Token{}, l.errorf(pos, "unexpected '!', did you mean '!='?")
	case '\'', '"':
		return l.readString(pos, "")
	case '@':
		return Token{}, l.errorf(pos, "matrix multiplication is not supported")
	}

	if unicode.IsDigit(ch) {
		return l.readNumber(pos)
	}
	if isIdentStart(ch) {
		return l.readIdent(pos)
	}
	return Token{}, l.errorf(pos, "unexpected character %q", ch)
}

// pair emits double when the next rune is second, single otherwise.
func (l *Lexer) pair(pos int, second rune, double, single TokenKind) Token {
	if l.peekAt(1) == second {
		l.pos += 2
		return Token{Kind: double, Lit: string(l.input[pos:l.pos]), Pos: pos}
	}
	l.pos++
	return Token{Kind: single, Lit: string(l.input[pos]), Pos: pos}
}

func (l *Lexer) peekAt(offset int) rune {
	if l.pos+offset < len(l.input) {
		return l.input[l.pos+offset]
	}
	return 0
}

func (l *Lexer) readIdent(pos int) (Token, error) {
	start := l.pos
	for l.pos < len(l.input) && isIdentCont(l.input[l.pos]) {
		l.pos++
	}
	lit := string(l.input[start:l.pos])
	if l.pos < len(l.input) && (l.input[l.pos] == '\'' || l.input[l.pos] == '"') {
		switch prefix := strings.ToLower(lit); prefix {
		case "r", "u":
			return l.readString(pos, prefix)
		case "f", "fr", "rf":
			return Token{}, l.errorf(pos, "f-string literals are not allowed inside expressions")
		case "b", "br", "rb":
			return Token{}, l.errorf(pos, "bytes literals are not supported")
		}
	}
	if reserved[lit] {
		return Token{}, l.errorf(pos, "keyword %q is not allowed in expressions", lit)
	}
	kind := TokIdent
	if kw, ok := keywords[lit]; ok {
		kind = kw
	}
	return Token{Kind: kind, Lit: lit, Pos: pos}, nil
}

// readString reads a quoted literal at l.pos; Lit holds the decoded text.
func (l *Lexer) readString(pos int, prefix string) (Token, error) {
	quote := l.input[l.pos]
	triple := l.peekAt(1) == quote && l.peekAt(2) == quote
	if triple {
		l.pos += 3
	} else {
		l.pos++
	}
	raw := prefix == "r"

	var sb strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		switch {
		case ch == quote && (!triple || (l.peekAt(1) == quote && l.peekAt(2) == quote)):
			if triple {
				l.pos += 3
			} else {
				l.pos++
			}
			return Token{Kind: TokString, Lit: sb.String(), Pos: pos}, nil
		case ch == '\n' && !triple:
			return Token{}, l.errorf(pos, "unterminated string literal")
		case ch == '\\' && l.pos+1 < len(l.input):
			if raw {
				sb.WriteRune(ch)
				sb.WriteRune(l.input[l.pos+1])
				l.pos += 2
				continue
			}
			if err := l.readEscape(&sb); err != nil {
				return Token{}, err
			}
		default:
			sb.WriteRune(ch)
			l.pos++
		}
	}
	return Token{}, l.errorf(pos, "unterminated string literal")
}

func (l *Lexer) readEscape(sb *strings.Builder) error {
	pos := l.pos
	esc := l.input[l.pos+1]
	l.pos += 2
	switch esc {
	case 'n':
		sb.WriteByte('\n')
	case 't':
		sb.WriteByte('\t')
	case 'r':
		sb.WriteByte('\r')
	case '0':
		sb.WriteByte(0)
	case '\\', '\'', '"':
		sb.WriteRune(esc)
	case '\n':
		// line continuation
	case 'x', 'u', 'U':
		width := map[rune]int{'x': 2, 'u': 4, 'U': 8}[esc]
		if l.pos+width > len(l.input) {
			return l.errorf(pos, "truncated \\%c escape", esc)
		}
		code, err := strconv.ParseUint(string(l.input[l.pos:l.pos+width]), 16, 32)
		if err != nil {
			return l.errorf(pos, "invalid \\%c escape", esc)
		}
		sb.WriteRune(rune(code))
		l.pos += width
	default:
		sb.WriteByte('\\')
		sb.WriteRune(esc)
	}
	return nil
}

func (l *Lexer) readNumber(pos int) (Token, error) {
	start := l.pos
	if l.input[l.pos] == '0' && (l.peekAt(1) == 'x' || l.peekAt(1) == 'X') {
		l.pos += 2
		for l.pos < len(l.input) && (isHexDigit(l.input[l.pos]) || l.input[l.pos] == '_') {
			l.pos++
		}
		return l.finishNumber(pos, start)
	}
	l.digits()
	if l.pos < len(l.input) && l.input[l.pos] == '.' {
		l.pos++
		l.digits()
	}
	if l.pos < len(l.input) && (l.input[l.pos] == 'e' || l.input[l.pos] == 'E') {
		save := l.pos
		l.pos++
		if l.pos < len(l.input) && (l.input[l.pos] == '+' || l.input[l.pos] == '-') {
			l.pos++
		}
		if l.pos >= len(l.input) || !unicode.IsDigit(l.input[l.pos]) {
			l.pos = save
			return Token{}, l.errorf(pos, "invalid number literal")
		}
		l.digits()
	}
	return l.finishNumber(pos, start)
}

func (l *Lexer) finishNumber(pos, start int) (Token, error) {
	if l.pos < len(l.input) && isIdentStart(l.input[l.pos]) {
		return Token{}, l.errorf(pos, "invalid number literal %q", string(l.input[start:l.pos+1]))
	}
	return Token{Kind: TokNumber, Lit: string(l.input[start:l.pos]), Pos: pos}, nil
}

func (l *Lexer) digits() {
	for l.pos < len(l.input) && (unicode.IsDigit(l.input[l.pos]) || l.input[l.pos] == '_') {
		l.pos++
	}
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		switch {
		case unicode.IsSpace(ch):
			l.pos++
		case ch == '\\' && l.peekAt(1) == '\n':
			l.pos += 2
		case ch == '#':
			for l.pos < len(l.input) && l.input[l.pos] != '\n' {
				l.pos++
			}
		default:
			return
		}
	}
}

func (l *Lexer) errorf(pos int, format string, args ...any) error {
	return fmt.Errorf("lexer error at position %d: %s", pos, fmt.Sprintf(format, args...))
}

func isIdentStart(ch rune) bool {
	return unicode.IsLetter(ch) || ch == '_'
}

func isIdentCont(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_'
}

func isHexDigit(ch rune) bool {
	return unicode.IsDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}
