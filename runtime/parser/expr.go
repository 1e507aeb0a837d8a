package parser

import (
	"strings"

	"github.com/brine-lang/brine/core/ast"
	"github.com/brine-lang/brine/core/token"
)

// parseTestList parses test (',' test)* with an optional trailing comma and
// builds a Tuple when a comma appears.
func (p *parser) parseTestList() (ast.Expr, error) {
	start := p.tok.Pos
	first, err := p.parseTest()
	if err != nil {
		return nil, err
	}
	if !p.at(token.COMMA) {
		return first, nil
	}
	elts := []ast.Expr{first}
	for p.accept(token.COMMA) {
		if !testFirst[p.tok.Kind] {
			break
		}
		e, err := p.parseTest()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
	}
	return &ast.Tuple{Span: p.spanFrom(start), Elts: elts}, nil
}

// parseTests parses a comma-separated list of tests up to stop, allowing a
// trailing comma.
func (p *parser) parseTests(stop token.Kind) ([]ast.Expr, error) {
	var elts []ast.Expr
	for {
		e, err := p.parseTest()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
		if !p.accept(token.COMMA) {
			break
		}
		if p.at(stop) {
			break
		}
	}
	return elts, nil
}

func (p *parser) parseTest() (ast.Expr, error) {
	if p.at(token.LAMBDA) {
		return p.parseLambda()
	}
	return p.parseOr()
}

func (p *parser) parseLambda() (ast.Expr, error) {
	start := p.tok.Pos
	p.next()
	var params ast.Params
	if !p.at(token.COLON) {
		var err error
		params, err = p.parseParams(token.COLON)
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.COLON); err != nil {
		return nil, err
	}
	body, err := p.parseTest()
	if err != nil {
		return nil, err
	}
	return &ast.Lambda{Span: p.spanFrom(start), Params: params, Body: body}, nil
}

func (p *parser) parseOr() (ast.Expr, error) {
	start := p.tok.Pos
	x, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	if !p.at(token.OR) {
		return x, nil
	}
	values := []ast.Expr{x}
	for p.accept(token.OR) {
		y, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		values = append(values, y)
	}
	return &ast.BoolOp{Span: p.spanFrom(start), Op: ast.BoolOr, Values: values}, nil
}

func (p *parser) parseAnd() (ast.Expr, error) {
	start := p.tok.Pos
	x, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	if !p.at(token.AND) {
		return x, nil
	}
	values := []ast.Expr{x}
	for p.accept(token.AND) {
		y, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		values = append(values, y)
	}
	return &ast.BoolOp{Span: p.spanFrom(start), Op: ast.BoolAnd, Values: values}, nil
}

func (p *parser) parseNot() (ast.Expr, error) {
	if !p.at(token.NOT) {
		return p.parseComparison()
	}
	start := p.tok.Pos
	p.next()
	x, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	return &ast.UnaryOp{Span: p.spanFrom(start), Op: ast.NotOp, Operand: x}, nil
}

// parseComparison parses chained comparisons: a < b <= c becomes one Compare
// with two operator/comparator pairs.
func (p *parser) parseComparison() (ast.Expr, error) {
	start := p.tok.Pos
	x, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	var ops []ast.CmpOpKind
	var comparators []ast.Expr
	for {
		op, ok := p.cmpOp()
		if !ok {
			break
		}
		y, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
		comparators = append(comparators, y)
	}
	if len(ops) == 0 {
		return x, nil
	}
	return &ast.Compare{
		Span:        p.spanFrom(start),
		Left:        x,
		Ops:         ops,
		Comparators: comparators,
	}, nil
}

// cmpOp consumes one comparison operator if the current token starts one.
// The two-word forms peek ahead: "not" continues a comparison only when
// followed by "in".
func (p *parser) cmpOp() (ast.CmpOpKind, bool) {
	if op, ok := cmpOps[p.tok.Kind]; ok {
		p.next()
		return op, true
	}
	switch p.tok.Kind {
	case token.IN:
		p.next()
		return ast.In, true
	case token.IS:
		p.next()
		if p.accept(token.NOT) {
			return ast.IsNot, true
		}
		return ast.Is, true
	case token.NOT:
		if p.lx.Peek().Kind == token.IN {
			p.next()
			p.next()
			return ast.NotIn, true
		}
	}
	return 0, false
}

// parseExpr parses the operator expression layer, everything below not/and/or.
func (p *parser) parseExpr() (ast.Expr, error) {
	return p.parseBinary(1)
}

// parseBinary is precedence climbing over the binPrec table. All operators
// in the table are left associative; ** is right associative and handled by
// parsePower below.
func (p *parser) parseBinary(minPrec int) (ast.Expr, error) {
	start := p.tok.Pos
	x, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		prec, ok := binPrec[p.tok.Kind]
		if !ok || prec < minPrec {
			return x, nil
		}
		op := binOps[p.tok.Kind]
		p.next()
		y, err := p.parseBinary(prec + 1)
		if err != nil {
			return nil, err
		}
		x = &ast.BinOp{Span: p.spanFrom(start), Left: x, Op: op, Right: y}
	}
}

func (p *parser) parseUnary() (ast.Expr, error) {
	var op ast.UnaryOpKind
	switch p.tok.Kind {
	case token.PLUS:
		op = ast.UAdd
	case token.MINUS:
		op = ast.USub
	case token.TILDE:
		op = ast.Invert
	default:
		return p.parsePower()
	}
	start := p.tok.Pos
	p.next()
	x, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &ast.UnaryOp{Span: p.spanFrom(start), Op: op, Operand: x}, nil
}

// parsePower parses the ** operator. It binds tighter than unary on the left
// and looser on the right: -2 ** -3 is -(2 ** (-3)).
func (p *parser) parsePower() (ast.Expr, error) {
	start := p.tok.Pos
	x, err := p.parseAtomExpr()
	if err != nil {
		return nil, err
	}
	if !p.accept(token.POW) {
		return x, nil
	}
	y, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &ast.BinOp{Span: p.spanFrom(start), Left: x, Op: ast.Pow, Right: y}, nil
}

// parseAtomExpr parses an atom and its trailers: calls, subscripts,
// attribute access, and the help operators ? and ??. Help is an ordinary
// trailer, so obj.attr? and obj?.attr both parse.
func (p *parser) parseAtomExpr() (ast.Expr, error) {
	start := p.tok.Pos
	x, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for {
		switch p.tok.Kind {
		case token.LPAREN:
			c, err := p.parseCallTrailer(x, start)
			if err != nil {
				return nil, err
			}
			x = c
		case token.LBRACKET:
			s, err := p.parseSubscriptTrailer(x, start)
			if err != nil {
				return nil, err
			}
			x = s
		case token.DOT:
			p.next()
			n, err := p.expect(token.NAME)
			if err != nil {
				return nil, err
			}
			x = &ast.Attribute{Span: p.spanFrom(start), Value: x, Attr: n.Text}
		case token.QUESTION:
			p.next()
			x = ast.HelpCall(x, false, p.spanFrom(start))
		case token.DOUBLE_QUESTION:
			p.next()
			x = ast.HelpCall(x, true, p.spanFrom(start))
		default:
			return x, nil
		}
	}
}

func (p *parser) parseCallTrailer(fn ast.Expr, start token.Position) (ast.Expr, error) {
	p.next()
	var args []ast.Expr
	var keywords []ast.Keyword
	for !p.at(token.RPAREN) {
		// name=value is a keyword argument; name==value stays positional
		// because == lexes as one token.
		if p.at(token.NAME) && p.lx.Peek().Kind == token.EQUALS {
			name := p.tok
			p.next()
			p.next()
			value, err := p.parseTest()
			if err != nil {
				return nil, err
			}
			keywords = append(keywords, ast.Keyword{Name: name.Text, Value: value})
		} else {
			argStart := p.tok.Pos
			arg, err := p.parseTest()
			if err != nil {
				return nil, err
			}
			if len(keywords) > 0 {
				return nil, p.errAt(argStart, "positional argument follows keyword argument")
			}
			args = append(args, arg)
		}
		if !p.accept(token.COMMA) {
			break
		}
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	return &ast.Call{
		Span:     p.spanFrom(start),
		Func:     fn,
		Args:     args,
		Keywords: keywords,
	}, nil
}

func (p *parser) parseSubscriptTrailer(value ast.Expr, start token.Position) (ast.Expr, error) {
	p.next()
	index, err := p.parseSubscriptIndex()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RBRACKET); err != nil {
		return nil, err
	}
	return &ast.Subscript{Span: p.spanFrom(start), Value: value, Index: index}, nil
}

// parseSubscriptIndex parses what sits between the brackets: a single test,
// a tuple index, or a slice with any of its three parts omitted.
func (p *parser) parseSubscriptIndex() (ast.Expr, error) {
	start := p.tok.Pos
	var lo ast.Expr
	if !p.at(token.COLON) {
		var err error
		lo, err = p.parseTest()
		if err != nil {
			return nil, err
		}
		if p.at(token.COMMA) {
			elts := []ast.Expr{lo}
			for p.accept(token.COMMA) {
				if p.at(token.RBRACKET) {
					break
				}
				e, err := p.parseTest()
				if err != nil {
					return nil, err
				}
				elts = append(elts, e)
			}
			return &ast.Tuple{Span: p.spanFrom(start), Elts: elts}, nil
		}
		if !p.at(token.COLON) {
			return lo, nil
		}
	}

	p.next()
	var hi, step ast.Expr
	if !p.at(token.COLON) && !p.at(token.RBRACKET) {
		var err error
		hi, err = p.parseTest()
		if err != nil {
			return nil, err
		}
	}
	if p.accept(token.COLON) && !p.at(token.RBRACKET) {
		var err error
		step, err = p.parseTest()
		if err != nil {
			return nil, err
		}
	}
	return &ast.Slice{Span: p.spanFrom(start), Lo: lo, Hi: hi, Step: step}, nil
}

//
// Atoms
//

func (p *parser) parseAtom() (ast.Expr, error) {
	switch p.tok.Kind {
	case token.NAME:
		x := &ast.Name{Span: p.tokSpan(), ID: p.tok.Text, Ctx: ast.Load}
		p.next()
		return x, nil
	case token.NUMBER:
		x := &ast.Num{Span: p.tokSpan(), Text: p.tok.Text}
		p.next()
		return x, nil
	case token.STRING:
		return p.parseStrings()
	case token.NONE, token.TRUE, token.FALSE:
		x := &ast.NameConst{Span: p.tokSpan(), Value: p.tok.Text}
		p.next()
		return x, nil
	case token.LPAREN:
		return p.parseParenAtom()
	case token.LBRACKET:
		return p.parseListAtom()
	case token.LBRACE:
		return p.parseDictSetAtom()
	case token.DOLLAR_NAME:
		x := ast.EnvLookup(strings.TrimPrefix(p.tok.Text, "$"), p.tokSpan())
		p.next()
		return x, nil
	case token.DOLLAR_LBRACE:
		return p.parseEnvExpr()
	case token.SEARCHPATH:
		x := ast.PathSearch(p.tok.Text, true, p.tokSpan())
		p.next()
		return x, nil
	case token.DOLLAR_LPAREN:
		return p.parseSubprocAtom(ast.CaptureStdout, token.RPAREN)
	case token.BANG_LPAREN:
		return p.parseSubprocAtom(ast.CaptureObject, token.RPAREN)
	case token.BANG_LBRACKET:
		return p.parseSubprocAtom(ast.HiddenObject, token.RBRACKET)
	case token.DOLLAR_LBRACKET:
		return p.parseSubprocAtom(ast.Uncaptured, token.RBRACKET)
	}
	return nil, p.unexpected()
}

func (p *parser) parseParenAtom() (ast.Expr, error) {
	start := p.tok.Pos
	p.next()
	if p.at(token.RPAREN) {
		sp := ast.Span{Start: start, End: p.tok.End()}
		p.next()
		return &ast.Tuple{Span: sp}, nil
	}
	x, err := p.parseTestList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	if t, ok := x.(*ast.Tuple); ok {
		t.Span = p.spanFrom(start)
	}
	return x, nil
}

func (p *parser) parseListAtom() (ast.Expr, error) {
	start := p.tok.Pos
	p.next()
	if p.at(token.RBRACKET) {
		sp := ast.Span{Start: start, End: p.tok.End()}
		p.next()
		return &ast.List{Span: sp}, nil
	}
	elts, err := p.parseTests(token.RBRACKET)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RBRACKET); err != nil {
		return nil, err
	}
	return &ast.List{Span: p.spanFrom(start), Elts: elts}, nil
}

// parseDictSetAtom parses a brace display. {} is an empty dict; the first
// element decides between dict and set.
func (p *parser) parseDictSetAtom() (ast.Expr, error) {
	start := p.tok.Pos
	p.next()
	if p.at(token.RBRACE) {
		sp := ast.Span{Start: start, End: p.tok.End()}
		p.next()
		return &ast.Dict{Span: sp}, nil
	}
	first, err := p.parseTest()
	if err != nil {
		return nil, err
	}

	if !p.at(token.COLON) {
		elts := []ast.Expr{first}
		for p.accept(token.COMMA) {
			if p.at(token.RBRACE) {
				break
			}
			e, err := p.parseTest()
			if err != nil {
				return nil, err
			}
			elts = append(elts, e)
		}
		if _, err := p.expect(token.RBRACE); err != nil {
			return nil, err
		}
		return &ast.Set{Span: p.spanFrom(start), Elts: elts}, nil
	}

	p.next()
	value, err := p.parseTest()
	if err != nil {
		return nil, err
	}
	keys := []ast.Expr{first}
	values := []ast.Expr{value}
	for p.accept(token.COMMA) {
		if p.at(token.RBRACE) {
			break
		}
		k, err := p.parseTest()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.COLON); err != nil {
			return nil, err
		}
		v, err := p.parseTest()
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
		values = append(values, v)
	}
	if _, err := p.expect(token.RBRACE); err != nil {
		return nil, err
	}
	return &ast.Dict{Span: p.spanFrom(start), Keys: keys, Values: values}, nil
}

// parseEnvExpr parses ${expr}, an environment lookup through a computed key.
func (p *parser) parseEnvExpr() (ast.Expr, error) {
	start := p.tok.Pos
	p.next()
	key, err := p.parseTest()
	if err != nil {
		return nil, err
	}
	closeTok, err := p.expect(token.RBRACE)
	if err != nil {
		return nil, err
	}
	return ast.EnvLookupExpr(key, ast.Span{Start: start, End: closeTok.End()}), nil
}

// parseStrings parses one string literal, joining adjacent literals the way
// the host language does: "a" 'b' is the single string "ab".
func (p *parser) parseStrings() (ast.Expr, error) {
	start := p.tok.Pos
	var sb strings.Builder
	for p.at(token.STRING) {
		sb.WriteString(decodeString(p.tok.Text))
		p.next()
	}
	return &ast.Str{Span: p.spanFrom(start), Value: sb.String()}, nil
}

// decodeString converts a string literal token, prefix and quotes included,
// into its value. Raw strings keep escapes verbatim; byte strings are
// treated as text. Unknown escapes keep the backslash, matching the host
// language. decodeString is total: malformed input comes back as-is rather
// than failing, since the lexer already validated the literal.
func decodeString(text string) string {
	raw := false
	i := 0
	for i < len(text) && text[i] != '\'' && text[i] != '"' {
		if text[i] == 'r' || text[i] == 'R' {
			raw = true
		}
		i++
	}
	if i >= len(text) {
		return text
	}
	quote := text[i]
	rest := text[i:]
	var body string
	if len(rest) >= 6 && (strings.HasPrefix(rest, `"""`) || strings.HasPrefix(rest, "'''")) {
		body = rest[3 : len(rest)-3]
	} else {
		body = rest[1:]
		if n := len(body); n > 0 && body[n-1] == quote {
			body = body[:n-1]
		}
	}
	if raw || !strings.Contains(body, `\`) {
		return body
	}

	var sb strings.Builder
	for j := 0; j < len(body); j++ {
		c := body[j]
		if c != '\\' || j+1 >= len(body) {
			sb.WriteByte(c)
			continue
		}
		j++
		switch body[j] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case '\\':
			sb.WriteByte('\\')
		case '\'':
			sb.WriteByte('\'')
		case '"':
			sb.WriteByte('"')
		case '0':
			sb.WriteByte(0)
		case 'a':
			sb.WriteByte('\a')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case 'v':
			sb.WriteByte('\v')
		case 'x':
			if j+2 < len(body) {
				hi, ok1 := hexVal(body[j+1])
				lo, ok2 := hexVal(body[j+2])
				if ok1 && ok2 {
					sb.WriteByte(hi<<4 | lo)
					j += 2
					continue
				}
			}
			sb.WriteString(`\x`)
		default:
			sb.WriteByte('\\')
			sb.WriteByte(body[j])
		}
	}
	return sb.String()
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
