package parser

import "fmt"

// TokenKind classifies a lexical token.
type TokenKind int

const (
	TokEOF         TokenKind = iota
	TokIdent                 // identifier
	TokNumber                // 42, 3.14, 1e6, 0x1f
	TokString                // 'text', "text", '''text'''
	TokLParen                // (
	TokRParen                // )
	TokLBracket              // [
	TokRBracket              // ]
	TokLBrace                // {
	TokRBrace                // }
	TokComma                 // ,
	TokColon                 // :
	TokDot                   // .
	TokAssign                // =
	TokPlus                  // +
	TokMinus                 // -
	TokStar                  // *
	TokDoubleStar            // **
	TokSlash                 // /
	TokDoubleSlash           // //
	TokPercent               // %
	TokTilde                 // ~
	TokAmp                   // &
	TokPipe                  // |
	TokCaret                 // ^
	TokEq                    // ==
	TokNeq                   // !=
	TokLt                    // <
	TokLte                   // <=
	TokGt                    // >
	TokGte                   // >=
	TokAnd                   // and
	TokOr                    // or
	TokNot                   // not
	TokIn                    // in
	TokIs                    // is
	TokIf                    // if
	TokElse                  // else
	TokFor                   // for
	TokTrue                  // True
	TokFalse                 // False
	TokNone                  // None
	TokLambda                // lambda
)

// Token is a single lexical token produced by the lexer.
type Token struct {
	Kind TokenKind
	Lit  string // raw text; decoded contents for strings
	Pos  int    // rune offset in input
}

func (t Token) String() string {
	if t.Lit != "" {
		return fmt.Sprintf("%s(%q)", t.Kind, t.Lit)
	}
	return t.Kind.String()
}

var kindNames = map[TokenKind]string{
	TokEOF:         "EOF",
	TokIdent:       "identifier",
	TokNumber:      "number",
	TokString:      "string",
	TokLParen:      "(",
	TokRParen:      ")",
	TokLBracket:    "[",
	TokRBracket:    "]",
	TokLBrace:      "{",
	TokRBrace:      "}",
	TokComma:       ",",
	TokColon:       ":",
	TokDot:         ".",
	TokAssign:      "=",
	TokPlus:        "+",
	TokMinus:       "-",
	TokStar:        "*",
	TokDoubleStar:  "**",
	TokSlash:       "/",
	TokDoubleSlash: "//",
	TokPercent:     "%",
	TokTilde:       "~",
	TokAmp:         "&",
	TokPipe:        "|",
	TokCaret:       "^",
	TokEq:          "==",
	TokNeq:         "!=",
	TokLt:          "<",
	TokLte:         "<=",
	TokGt:          ">",
	TokGte:         ">=",
	TokAnd:         "and",
	TokOr:          "or",
	TokNot:         "not",
	TokIn:          "in",
	TokIs:          "is",
	TokIf:          "if",
	TokElse:        "else",
	TokFor:         "for",
	TokTrue:        "True",
	TokFalse:       "False",
	TokNone:        "None",
	TokLambda:      "lambda",
}

func (k TokenKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

var keywords = map[string]TokenKind{
	"and":    TokAnd,
	"or":     TokOr,
	"not":    TokNot,
	"in":     TokIn,
	"is":     TokIs,
	"if":     TokIf,
	"else":   TokElse,
	"for":    TokFor,
	"True":   TokTrue,
	"False":  TokFalse,
	"None":   TokNone,
	"lambda": TokLambda,
}

// reserved are Python keywords that cannot start an expression here.
var reserved = map[string]bool{
	"import": true, "from": true, "def": true, "class": true, "return": true,
	"yield": true, "await": true, "async": true, "global": true, "nonlocal": true,
	"del": true, "pass": true, "raise": true, "try": true, "except": true,
	"finally": true, "while": true, "with": true, "assert": true, "elif": true,
	"break": true, "continue": true, "as": true,
}
