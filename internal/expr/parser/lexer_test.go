package parser

import (
	"strings"
	"testing"
)

func collectTokens(t *testing.T, input string) []Token {
	t.Helper()
	lex := NewLexer(input)
	var tokens []Token
	for {
		tok, err := lex.Next()
		if err != nil {
			t.Fatalf("lexer error on %q: %v", input, err)
		}
		tokens = append(tokens, tok)
		if tok.Kind == TokEOF {
			break
		}
	}
	return tokens
}

func TestLexerOperators(t *testing.T) {
	tests := []struct {
		input string
		kind  TokenKind
		lit   string
	}{
		{"+", TokPlus, "+"},
		{"**", TokDoubleStar, "**"},
		{"*", TokStar, "*"},
		{"//", TokDoubleSlash, "//"},
		{"/", TokSlash, "/"},
		{"%", TokPercent, "%"},
		{"==", TokEq, "=="},
		{"=", TokAssign, "="},
		{"!=", TokNeq, "!="},
		{"<=", TokLte, "<="},
		{"<", TokLt, "<"},
		{">=", TokGte, ">="},
		{">", TokGt, ">"},
		{"&", TokAmp, "&"},
		{"|", TokPipe, "|"},
		{"~", TokTilde, "~"},
		{":", TokColon, ":"},
	}
	for _, tt := range tests {
		toks := collectTokens(t, tt.input)
		if len(toks) != 2 {
			t.Errorf("input %q: expected 2 tokens, got %d", tt.input, len(toks))
			continue
		}
		if toks[0].Kind != tt.kind || toks[0].Lit != tt.lit {
			t.Errorf("input %q: expected %v(%q), got %v(%q)", tt.input, tt.kind, tt.lit, toks[0].Kind, toks[0].Lit)
		}
	}
}

func TestLexerKeywords(t *testing.T) {
	tests := []struct {
		input string
		kind  TokenKind
	}{
		{"and", TokAnd},
		{"or", TokOr},
		{"not", TokNot},
		{"in", TokIn},
		{"is", TokIs},
		{"if", TokIf},
		{"else", TokElse},
		{"for", TokFor},
		{"True", TokTrue},
		{"False", TokFalse},
		{"None", TokNone},
		{"true", TokIdent},
		{"acct_bal_amt", TokIdent},
		{"잔액", TokIdent},
	}
	for _, tt := range tests {
		toks := collectTokens(t, tt.input)
		if toks[0].Kind != tt.kind {
			t.Errorf("input %q: expected %v, got %v", tt.input, tt.kind, toks[0].Kind)
		}
	}
}

func TestLexerStrings(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`'abc'`, "abc"},
		{`"abc"`, "abc"},
		{`'it\'s'`, "it's"},
		{`"a\nb"`, "a\nb"},
		{`r'a\nb'`, `a\nb`},
		{`u'x'`, "x"},
		{`'''multi
line'''`, "multi\nline"},
		{`"é"`, "é"},
		{`'\d'`, `\d`},
		{`'한글'`, "한글"},
	}
	for _, tt := range tests {
		toks := collectTokens(t, tt.input)
		if toks[0].Kind != TokString {
			t.Errorf("input %q: expected string, got %v", tt.input, toks[0].Kind)
			continue
		}
		if toks[0].Lit != tt.want {
			t.Errorf("input %q: expected %q, got %q", tt.input, tt.want, toks[0].Lit)
		}
	}
}

func TestLexerNumbers(t *testing.T) {
	tests := []string{"42", "3.14", ".5", "1e6", "2.5E-3", "1_000", "0x1f"}
	for _, input := range tests {
		toks := collectTokens(t, input)
		if toks[0].Kind != TokNumber || toks[0].Lit != input {
			t.Errorf("input %q: expected number %q, got %v", input, input, toks[0])
		}
	}
}

func TestLexerAttributeAfterCall(t *testing.T) {
	toks := collectTokens(t, "df['a'].sum()")
	kinds := []TokenKind{TokIdent, TokLBracket, TokString, TokRBracket, TokDot, TokIdent, TokLParen, TokRParen, TokEOF}
	if len(toks) != len(kinds) {
		t.Fatalf("expected %d tokens, got %d: %v", len(kinds), len(toks), toks)
	}
	for i, k := range kinds {
		if toks[i].Kind != k {
			t.Errorf("token %d: expected %v, got %v", i, k, toks[i].Kind)
		}
	}
}

func TestLexerSkipsComments(t *testing.T) {
	toks := collectTokens(t, "a # trailing comment\n + b")
	if len(toks) != 4 {
		t.Fatalf("expected 4 tokens, got %d: %v", len(toks), toks)
	}
}

func TestLexerPositions(t *testing.T) {
	toks := collectTokens(t, "합계 + x")
	if toks[1].Pos != 3 || toks[2].Pos != 5 {
		t.Fatalf("expected rune positions 3 and 5, got %d and %d", toks[1].Pos, toks[2].Pos)
	}
}

func TestLexerErrors(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`'abc`, "unterminated string literal"},
		{`f'{x}'`, "f-string literals are not allowed"},
		{`b'x'`, "bytes literals are not supported"},
		{`import os`, `keyword "import" is not allowed`},
		{`a ! b`, "did you mean '!='"},
		{`a $ b`, "unexpected character"},
		{`1 << 2`, "shift operators are not supported"},
		{`12abc`, "invalid number literal"},
	}
	for _, tt := range tests {
		lex := NewLexer(tt.input)
		var err error
		for {
			var tok Token
			tok, err = lex.Next()
			if err != nil || tok.Kind == TokEOF {
				break
			}
		}
		if err == nil {
			t.Errorf("input %q: expected error containing %q, got nil", tt.input, tt.want)
			continue
		}
		if !strings.Contains(err.Error(), tt.want) {
			t.Errorf("input %q: expected error containing %q, got %q", tt.input, tt.want, err.Error())
		}
		if !strings.HasPrefix(err.Error(), "lexer error at position") {
			t.Errorf("input %q: expected lexer error prefix, got %q", tt.input, err.Error())
		}
	}
}
