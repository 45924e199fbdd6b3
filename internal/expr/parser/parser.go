package parser

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse parses a single Python expression into an AST. A top-level comma
// list parses as a *Tuple.
func Parse(input string) (Node, error) {
	p := &parser{lexer: NewLexer(input)}
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind == TokEOF {
		return nil, p.errorf(tok.Pos, "empty expression")
	}
	node, err := p.parseTestList()
	if err != nil {
		return nil, err
	}
	tok, err = p.peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind != TokEOF {
		return nil, p.errorf(tok.Pos, "unexpected %s, expected end of expression", tok.Kind)
	}
	return node, nil
}

type parser struct {
	lexer *Lexer
}

// parseTestList: expression { "," expression } [","]
func (p *parser) parseTestList() (Node, error) {
	first, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind != TokComma {
		return first, nil
	}
	elts := []Node{first}
	for {
		ok, err := p.accept(TokComma)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if tok.Kind == TokEOF || tok.Kind == TokRParen {
			break
		}
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
	}
	return &Tuple{Elts: elts, Pos: first.Position()}, nil
}

// parseExpression: orTest [ "if" orTest "else" expression ]
func (p *parser) parseExpression() (Node, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind == TokLambda {
		return nil, p.errorf(tok.Pos, "lambda expressions are not allowed")
	}

	body, err := p.parseOrTest()
	if err != nil {
		return nil, err
	}
	tok, err = p.peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind != TokIf {
		return body, nil
	}
	p.advance()
	test, err := p.parseOrTest()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokElse); err != nil {
		return nil, err
	}
	orElse, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &IfExp{Test: test, Body: body, OrElse: orElse, Pos: body.Position()}, nil
}

// parseOrTest: andTest { "or" andTest }
func (p *parser) parseOrTest() (Node, error) {
	return p.parseBoolChain(TokOr, "or", p.parseAndTest)
}

// parseAndTest: notTest { "and" notTest }
func (p *parser) parseAndTest() (Node, error) {
	return p.parseBoolChain(TokAnd, "and", p.parseNotTest)
}

func (p *parser) parseBoolChain(kind TokenKind, op string, operand func() (Node, error)) (Node, error) {
	first, err := operand()
	if err != nil {
		return nil, err
	}
	values := []Node{first}
	for {
		ok, err := p.accept(kind)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		next, err := operand()
		if err != nil {
			return nil, err
		}
		values = append(values, next)
	}
	if len(values) == 1 {
		return first, nil
	}
	return &BoolOp{Op: op, Values: values, Pos: first.Position()}, nil
}

// parseNotTest: "not" notTest | comparison
func (p *parser) parseNotTest() (Node, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind == TokNot {
		p.advance()
		operand, err := p.parseNotTest()
		if err != nil {
			return nil, err
		}
		return &UnaryOp{Op: "not", Operand: operand, Pos: tok.Pos}, nil
	}
	return p.parseComparison()
}

// parseComparison: bitOr { compOp bitOr }
func (p *parser) parseComparison() (Node, error) {
	left, err := p.parseBitOr()
	if err != nil {
		return nil, err
	}
	var ops []string
	var comparators []Node
	for {
		op, err := p.compOp()
		if err != nil {
			return nil, err
		}
		if op == "" {
			break
		}
		right, err := p.parseBitOr()
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
		comparators = append(comparators, right)
	}
	if len(ops) == 0 {
		return left, nil
	}
	return &Compare{Left: left, Ops: ops, Comparators: comparators, Pos: left.Position()}, nil
}

// compOp consumes a comparison operator, returning "" when there is none.
func (p *parser) compOp() (string, error) {
	tok, err := p.peek()
	if err != nil {
		return "", err
	}
	switch tok.Kind {
	case TokEq, TokNeq, TokLt, TokLte, TokGt, TokGte, TokIn:
		p.advance()
		return tok.Lit, nil
	case TokNot:
		p.advance()
		if err := p.expect(TokIn); err != nil {
			return "", err
		}
		return "not in", nil
	case TokIs:
		p.advance()
		ok, err := p.accept(TokNot)
		if err != nil {
			return "", err
		}
		if ok {
			return "is not", nil
		}
		return "is", nil
	}
	return "", nil
}

var binaryLevels = [][]TokenKind{
	{TokPipe},
	{TokCaret},
	{TokAmp},
	{TokPlus, TokMinus},
	{TokStar, TokSlash, TokDoubleSlash, TokPercent},
}

func (p *parser) parseBitOr() (Node, error) { return p.parseBinaryLevel(0) }

// parseBinaryLevel parses a left-associative operator level; past the last
// level it descends into unary factors.
func (p *parser) parseBinaryLevel(level int) (Node, error) {
	if level == len(binaryLevels) {
		return p.parseFactor()
	}
	left, err := p.parseBinaryLevel(level + 1)
	if err != nil {
		return nil, err
	}
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if !hasKind(binaryLevels[level], tok.Kind) {
			break
		}
		p.advance()
		right, err := p.parseBinaryLevel(level + 1)
		if err != nil {
			return nil, err
		}
		left = &BinOp{Op: tok.Lit, Left: left, Right: right, Pos: tok.Pos}
	}
	return left, nil
}

func hasKind(kinds []TokenKind, k TokenKind) bool {
	for _, kk := range kinds {
		if kk == k {
			return true
		}
	}
	return false
}

// parseFactor: ("+" | "-" | "~") factor | power
func (p *parser) parseFactor() (Node, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	switch tok.Kind {
	case TokPlus, TokMinus, TokTilde:
		p.advance()
		operand, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return &UnaryOp{Op: tok.Lit, Operand: operand, Pos: tok.Pos}, nil
	}
	return p.parsePower()
}

// parsePower: primary [ "**" factor ]
func (p *parser) parsePower() (Node, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind != TokDoubleStar {
		return base, nil
	}
	p.advance()
	exp, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	return &BinOp{Op: "**", Left: base, Right: exp, Pos: tok.Pos}, nil
}

// parsePrimary: atom { "(" args ")" | "[" subscripts "]" | "." NAME }
func (p *parser) parsePrimary() (Node, error) {
	node, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		switch tok.Kind {
		case TokLParen:
			p.advance()
			node, err = p.parseCall(node, tok.Pos)
		case TokLBracket:
			p.advance()
			node, err = p.parseSubscript(node, tok.Pos)
		case TokDot:
			p.advance()
			name, nerr := p.lexer.Next()
			if nerr != nil {
				return nil, nerr
			}
			if name.Kind != TokIdent {
				return nil, p.errorf(name.Pos, "expected attribute name after '.', got %s", name.Kind)
			}
			node = &Attribute{Value: node, Attr: name.Lit, Pos: name.Pos}
		default:
			return node, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// parseCall parses the argument list after "(".
func (p *parser) parseCall(fn Node, pos int) (Node, error) {
	call := &Call{Func: fn, Pos: pos}
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if tok.Kind == TokRParen {
			p.advance()
			return call, nil
		}
		if tok.Kind == TokStar || tok.Kind == TokDoubleStar {
			return nil, p.errorf(tok.Pos, "argument unpacking is not allowed")
		}

		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		next, err := p.peek()
		if err != nil {
			return nil, err
		}
		switch {
		case next.Kind == TokAssign:
			name, ok := arg.(*Name)
			if !ok {
				return nil, p.errorf(next.Pos, "keyword argument name must be an identifier")
			}
			p.advance()
			value, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			call.Keywords = append(call.Keywords, Keyword{Name: name.ID, Value: value})
		case next.Kind == TokFor:
			gens, err := p.parseGenerators()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, &Comp{Kind: CompGenerator, Elt: arg, Generators: gens, Pos: arg.Position()})
		default:
			if len(call.Keywords) > 0 {
				return nil, p.errorf(arg.Position(), "positional argument follows keyword argument")
			}
			call.Args = append(call.Args, arg)
		}

		tok, err = p.peek()
		if err != nil {
			return nil, err
		}
		if tok.Kind == TokComma {
			p.advance()
			continue
		}
		if err := p.expect(TokRParen); err != nil {
			return nil, err
		}
		return call, nil
	}
}

// parseSubscript parses the index after "[".
func (p *parser) parseSubscript(value Node, pos int) (Node, error) {
	first, err := p.parseSubscriptItem()
	if err != nil {
		return nil, err
	}
	index := first
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind == TokComma {
		elts := []Node{first}
		for {
			ok, err := p.accept(TokComma)
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			tok, err := p.peek()
			if err != nil {
				return nil, err
			}
			if tok.Kind == TokRBracket {
				break
			}
			item, err := p.parseSubscriptItem()
			if err != nil {
				return nil, err
			}
			elts = append(elts, item)
		}
		index = &Tuple{Elts: elts, Pos: first.Position()}
	}
	if err := p.expect(TokRBracket); err != nil {
		return nil, err
	}
	return &Subscript{Value: value, Index: index, Pos: pos}, nil
}

// parseSubscriptItem: expression | [expression] ":" [expression] [":" [expression]]
func (p *parser) parseSubscriptItem() (Node, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	sl := &Slice{Pos: tok.Pos}
	if tok.Kind != TokColon {
		lower, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		next, err := p.peek()
		if err != nil {
			return nil, err
		}
		if next.Kind != TokColon {
			return lower, nil
		}
		sl.Lower = lower
	}
	p.advance() // :

	if sl.Upper, err = p.optionalSliceBound(); err != nil {
		return nil, err
	}
	ok, err := p.accept(TokColon)
	if err != nil {
		return nil, err
	}
	if ok {
		if sl.Step, err = p.optionalSliceBound(); err != nil {
			return nil, err
		}
	}
	return sl, nil
}

func (p *parser) optionalSliceBound() (Node, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	switch tok.Kind {
	case TokColon, TokRBracket, TokComma:
		return nil, nil
	}
	return p.parseExpression()
}

// parseAtom handles literals, names and bracketed displays.
func (p *parser) parseAtom() (Node, error) {
	tok, err := p.lexer.Next()
	if err != nil {
		return nil, err
	}

	switch tok.Kind {
	case TokIdent:
		return &Name{ID: tok.Lit, Pos: tok.Pos}, nil
	case TokNumber:
		v, err := parseNumber(tok.Lit)
		if err != nil {
			return nil, p.errorf(tok.Pos, "%v", err)
		}
		return &Constant{Value: v, Pos: tok.Pos}, nil
	case TokString:
		var sb strings.Builder
		sb.WriteString(tok.Lit)
		// implicit concatenation of adjacent literals
		for {
			next, err := p.peek()
			if err != nil {
				return nil, err
			}
			if next.Kind != TokString {
				break
			}
			p.advance()
			sb.WriteString(next.Lit)
		}
		return &Constant{Value: sb.String(), Pos: tok.Pos}, nil
	case TokTrue:
		return &Constant{Value: true, Pos: tok.Pos}, nil
	case TokFalse:
		return &Constant{Value: false, Pos: tok.Pos}, nil
	case TokNone:
		return &Constant{Value: nil, Pos: tok.Pos}, nil
	case TokLParen:
		return p.parseParen(tok.Pos)
	case TokLBracket:
		return p.parseListDisplay(tok.Pos)
	case TokLBrace:
		return p.parseBraceDisplay(tok.Pos)
	case TokLambda:
		return nil, p.errorf(tok.Pos, "lambda expressions are not allowed")
	case TokEOF:
		return nil, p.errorf(tok.Pos, "unexpected end of expression")
	}
	return nil, p.errorf(tok.Pos, "unexpected %s", tok.Kind)
}

// parseParen handles (), (expr), (a, b) and (x for x in y).
func (p *parser) parseParen(pos int) (Node, error) {
	ok, err := p.accept(TokRParen)
	if err != nil {
		return nil, err
	}
	if ok {
		return &Tuple{Pos: pos}, nil
	}
	first, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	switch tok.Kind {
	case TokRParen:
		p.advance()
		return first, nil
	case TokFor:
		gens, err := p.parseGenerators()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokRParen); err != nil {
			return nil, err
		}
		return &Comp{Kind: CompGenerator, Elt: first, Generators: gens, Pos: pos}, nil
	}
	elts, err := p.finishElements(first, TokRParen)
	if err != nil {
		return nil, err
	}
	return &Tuple{Elts: elts, Pos: pos}, nil
}

// parseListDisplay handles [...] and list comprehensions.
func (p *parser) parseListDisplay(pos int) (Node, error) {
	ok, err := p.accept(TokRBracket)
	if err != nil {
		return nil, err
	}
	if ok {
		return &List{Pos: pos}, nil
	}
	first, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind == TokFor {
		gens, err := p.parseGenerators()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokRBracket); err != nil {
			return nil, err
		}
		return &Comp{Kind: CompList, Elt: first, Generators: gens, Pos: pos}, nil
	}
	elts, err := p.finishElements(first, TokRBracket)
	if err != nil {
		return nil, err
	}
	return &List{Elts: elts, Pos: pos}, nil
}

// parseBraceDisplay handles dicts, sets and their comprehensions.
func (p *parser) parseBraceDisplay(pos int) (Node, error) {
	ok, err := p.accept(TokRBrace)
	if err != nil {
		return nil, err
	}
	if ok {
		return &Dict{Pos: pos}, nil
	}
	first, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}

	if tok.Kind != TokColon {
		if tok.Kind == TokFor {
			gens, err := p.parseGenerators()
			if err != nil {
				return nil, err
			}
			if err := p.expect(TokRBrace); err != nil {
				return nil, err
			}
			return &Comp{Kind: CompSet, Elt: first, Generators: gens, Pos: pos}, nil
		}
		elts, err := p.finishElements(first, TokRBrace)
		if err != nil {
			return nil, err
		}
		return &Set{Elts: elts, Pos: pos}, nil
	}

	p.advance() // :
	value, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	tok, err = p.peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind == TokFor {
		gens, err := p.parseGenerators()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokRBrace); err != nil {
			return nil, err
		}
		return &DictComp{Key: first, Value: value, Generators: gens, Pos: pos}, nil
	}

	d := &Dict{Keys: []Node{first}, Values: []Node{value}, Pos: pos}
	for {
		ok, err := p.accept(TokComma)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if tok.Kind == TokRBrace {
			break
		}
		k, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokColon); err != nil {
			return nil, err
		}
		v, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		d.Keys = append(d.Keys, k)
		d.Values = append(d.Values, v)
	}
	if err := p.expect(TokRBrace); err != nil {
		return nil, err
	}
	return d, nil
}

// finishElements parses the rest of a comma-separated display whose first
// element is already parsed, consuming the closing token.
func (p *parser) finishElements(first Node, closing TokenKind) ([]Node, error) {
	elts := []Node{first}
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if tok.Kind == closing {
			p.advance()
			return elts, nil
		}
		if tok.Kind != TokComma {
			return nil, p.errorf(tok.Pos, "expected %s or ',', got %s", closing, tok.Kind)
		}
		p.advance()
		tok, err = p.peek()
		if err != nil {
			return nil, err
		}
		if tok.Kind == closing {
			continue
		}
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
	}
}

// parseGenerators: { "for" target "in" orTest { "if" orTest } }
func (p *parser) parseGenerators() ([]Comprehension, error) {
	var gens []Comprehension
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if tok.Kind != TokFor {
			return gens, nil
		}
		p.advance()
		target, err := p.parseTarget()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokIn); err != nil {
			return nil, err
		}
		iter, err := p.parseOrTest()
		if err != nil {
			return nil, err
		}
		gen := Comprehension{Target: target, Iter: iter}
		for {
			ok, err := p.accept(TokIf)
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			cond, err := p.parseOrTest()
			if err != nil {
				return nil, err
			}
			gen.Ifs = append(gen.Ifs, cond)
		}
		gens = append(gens, gen)
	}
}

// parseTarget: NAME { "," NAME } | "(" NAME { "," NAME } ")"
func (p *parser) parseTarget() (Node, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	paren := tok.Kind == TokLParen
	if paren {
		p.advance()
	}
	var names []Node
	for {
		name, err := p.lexer.Next()
		if err != nil {
			return nil, err
		}
		if name.Kind != TokIdent {
			return nil, p.errorf(name.Pos, "expected loop variable name, got %s", name.Kind)
		}
		names = append(names, &Name{ID: name.Lit, Pos: name.Pos})
		ok, err := p.accept(TokComma)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
	}
	if paren {
		if err := p.expect(TokRParen); err != nil {
			return nil, err
		}
	}
	if len(names) == 1 && !paren {
		return names[0], nil
	}
	return &Tuple{Elts: names, Pos: tok.Pos}, nil
}

func parseNumber(lit string) (any, error) {
	clean := strings.ReplaceAll(lit, "_", "")
	if strings.HasPrefix(clean, "0x") || strings.HasPrefix(clean, "0X") {
		n, err := strconv.ParseInt(clean[2:], 16, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number literal %q", lit)
		}
		return n, nil
	}
	if strings.ContainsAny(clean, ".eE") {
		f, err := strconv.ParseFloat(clean, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number literal %q", lit)
		}
		return f, nil
	}
	if len(clean) > 1 && clean[0] == '0' && strings.Trim(clean, "0") != "" {
		return nil, fmt.Errorf("leading zeros in decimal integer literals are not permitted")
	}
	n, err := strconv.ParseInt(clean, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(clean, 64)
		if ferr != nil {
			return nil, fmt.Errorf("invalid number literal %q", lit)
		}
		return f, nil
	}
	return n, nil
}

// --- Helpers ---

func (p *parser) peek() (Token, error) {
	return p.lexer.Peek()
}

func (p *parser) advance() {
	p.lexer.Next() //nolint:errcheck
}

// accept consumes the next token when it has the given kind.
func (p *parser) accept(kind TokenKind) (bool, error) {
	tok, err := p.peek()
	if err != nil {
		return false, err
	}
	if tok.Kind != kind {
		return false, nil
	}
	p.advance()
	return true, nil
}

func (p *parser) expect(kind TokenKind) error {
	tok, err := p.lexer.Next()
	if err != nil {
		return err
	}
	if tok.Kind != kind {
		return p.errorf(tok.Pos, "expected %s, got %s", kind, tok.Kind)
	}
	return nil
}

func (p *parser) errorf(pos int, format string, args ...any) error {
	return fmt.Errorf("parse error at position %d: %s", pos, fmt.Sprintf(format, args...))
}
