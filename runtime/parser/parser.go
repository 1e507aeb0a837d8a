// Package parser turns source text into a host syntax tree.
//
// The grammar is the host expression language extended with command-language
// atoms: $(...), !(...), ![...] and $[...] open a sub-grammar in which
// whitespace separates words and bare text becomes argument lists (see
// subproc.go). The parser is a hand-written recursive descent over the token
// stream from runtime/lexer, pulled one token at a time with a single token
// of lookahead.
//
// A parse either returns a complete tree or fails on the first offending
// token with a *SyntaxError carrying that token's exact coordinates. The
// retry layer upstream depends on this: it reads the error location to decide
// which span of the failing line to wrap as a subprocess and try again. So
// the parser never recovers, never guesses, and never reports a position it
// inferred rather than saw. Structural indentation problems come back as
// *IndentationError and are never retried.
package parser

import (
	"fmt"
	"sync"

	"github.com/brine-lang/brine/core/ast"
	"github.com/brine-lang/brine/core/token"
	"github.com/brine-lang/brine/runtime/lexer"
)

// Grammar tables. Built once behind grammarOnce; Parse gates on the latch and
// reads them immutably afterwards, so concurrent parses never contend.
var (
	grammarOnce sync.Once

	binOps     map[token.Kind]ast.BinOpKind
	binPrec    map[token.Kind]int
	augOps     map[token.Kind]ast.BinOpKind
	cmpOps     map[token.Kind]ast.CmpOpKind
	testFirst  map[token.Kind]bool
	wordParts  map[token.Kind]bool
	cmdAtoms   map[token.Kind]bool
	kindLabels map[token.Kind]string
)

func buildGrammar() {
	binOps = map[token.Kind]ast.BinOpKind{
		token.PIPE:      ast.BitOr,
		token.XOR:       ast.BitXor,
		token.AMPERSAND: ast.BitAnd,
		token.LSHIFT:    ast.LShift,
		token.RSHIFT:    ast.RShift,
		token.PLUS:      ast.Add,
		token.MINUS:     ast.Sub,
		token.TIMES:     ast.Mult,
		token.DIVIDE:    ast.Div,
		token.FLOORDIV:  ast.FloorDiv,
		token.MOD:       ast.Mod,
		token.AT:        ast.MatMult,
	}
	binPrec = map[token.Kind]int{
		token.PIPE:      1,
		token.XOR:       2,
		token.AMPERSAND: 3,
		token.LSHIFT:    4,
		token.RSHIFT:    4,
		token.PLUS:      5,
		token.MINUS:     5,
		token.TIMES:     6,
		token.DIVIDE:    6,
		token.FLOORDIV:  6,
		token.MOD:       6,
		token.AT:        6,
	}
	augOps = map[token.Kind]ast.BinOpKind{
		token.PLUS_EQ:   ast.Add,
		token.MINUS_EQ:  ast.Sub,
		token.TIMES_EQ:  ast.Mult,
		token.DIV_EQ:    ast.Div,
		token.FLOOR_EQ:  ast.FloorDiv,
		token.MOD_EQ:    ast.Mod,
		token.POW_EQ:    ast.Pow,
		token.AMP_EQ:    ast.BitAnd,
		token.PIPE_EQ:   ast.BitOr,
		token.XOR_EQ:    ast.BitXor,
		token.LSHIFT_EQ: ast.LShift,
		token.RSHIFT_EQ: ast.RShift,
		token.AT_EQ:     ast.MatMult,
	}
	// in, is, is not and not in involve keyword tokens and are handled by
	// cmpOp directly.
	cmpOps = map[token.Kind]ast.CmpOpKind{
		token.LT:     ast.Lt,
		token.LE:     ast.Le,
		token.GT:     ast.Gt,
		token.GE:     ast.Ge,
		token.EQ_EQ:  ast.Eq,
		token.NOT_EQ: ast.NotEq,
	}
	testFirst = map[token.Kind]bool{
		token.NAME:            true,
		token.NUMBER:          true,
		token.STRING:          true,
		token.NONE:            true,
		token.TRUE:            true,
		token.FALSE:           true,
		token.NOT:             true,
		token.LAMBDA:          true,
		token.PLUS:            true,
		token.MINUS:           true,
		token.TILDE:           true,
		token.LPAREN:          true,
		token.LBRACKET:        true,
		token.LBRACE:          true,
		token.DOLLAR_NAME:     true,
		token.DOLLAR_LPAREN:   true,
		token.DOLLAR_LBRACKET: true,
		token.DOLLAR_LBRACE:   true,
		token.BANG_LPAREN:     true,
		token.BANG_LBRACKET:   true,
		token.SEARCHPATH:      true,
	}
	// Token kinds that glue into a single command word when adjacent. The
	// lexer separates words with WS tokens, so no gap arithmetic is needed
	// here.
	wordParts = map[token.Kind]bool{
		token.NAME:        true,
		token.NUMBER:      true,
		token.STRING:      true,
		token.TILDE:       true,
		token.DOT:         true,
		token.DIVIDE:      true,
		token.MINUS:       true,
		token.PLUS:        true,
		token.COLON:       true,
		token.AT:          true,
		token.EQUALS:      true,
		token.TIMES:       true,
		token.POW:         true,
		token.MOD:         true,
		token.XOR:         true,
		token.FLOORDIV:    true,
		token.COMMA:       true,
		token.QUESTION:    true,
		token.DOLLAR_NAME: true,
	}
	cmdAtoms = map[token.Kind]bool{
		token.GT:              true,
		token.LT:              true,
		token.RSHIFT:          true,
		token.IOREDIRECT:      true,
		token.SEARCHPATH:      true,
		token.AT_LPAREN:       true,
		token.ATDOLLAR_LPAREN: true,
		token.DOLLAR_LPAREN:   true,
		token.DOLLAR_LBRACKET: true,
		token.DOLLAR_LBRACE:   true,
	}
	for k := range wordParts {
		cmdAtoms[k] = true
	}
	kindLabels = map[token.Kind]string{
		token.NAME:     "a name",
		token.NEWLINE:  "a newline",
		token.INDENT:   "an indent",
		token.DEDENT:   "a dedent",
		token.COLON:    `":"`,
		token.COMMA:    `","`,
		token.LPAREN:   `"("`,
		token.RPAREN:   `")"`,
		token.RBRACKET: `"]"`,
		token.RBRACE:   `"}"`,
		token.IN:       `"in"`,
		token.IMPORT:   `"import"`,
	}
}

func kindLabel(k token.Kind) string {
	if s, ok := kindLabels[k]; ok {
		return s
	}
	return k.String()
}

func tokenLabel(t token.Token) string {
	switch t.Kind {
	case token.EOF:
		return "end of input"
	case token.NEWLINE:
		return "end of line"
	case token.INDENT:
		return "an indent"
	case token.DEDENT:
		return "a dedent"
	}
	return fmt.Sprintf("%q", t.Text)
}

// Parse parses src and returns the root node for the configured mode:
// *ast.Module for exec, *ast.Interactive for single, *ast.Expression for
// eval. Errors are *SyntaxError or *IndentationError and point at the first
// offending token.
func Parse(src string, opts ...Option) (ast.Node, error) {
	grammarOnce.Do(buildGrammar)
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	p := &parser{cfg: cfg, src: src, lx: lexer.New(src)}
	p.prevEnd = token.Position{Line: 1}
	p.next()
	switch cfg.mode {
	case ModeEval:
		return p.parseEvalInput()
	case ModeSingle:
		body, sp, err := p.parseProgram()
		if err != nil {
			return nil, err
		}
		return &ast.Interactive{Span: sp, Body: body}, nil
	default:
		body, sp, err := p.parseProgram()
		if err != nil {
			return nil, err
		}
		return &ast.Module{Span: sp, Body: body}, nil
	}
}

type parser struct {
	cfg Config
	src string
	lx  *lexer.Lexer

	tok     token.Token    // current token
	prevEnd token.Position // end of the last consumed token
}

// next advances the cursor. Synthetic tokens do not move prevEnd, so node
// spans end at the last token the reader can see in the source.
func (p *parser) next() {
	switch p.tok.Kind {
	case token.NEWLINE, token.INDENT, token.DEDENT, token.WS, token.EOF:
	default:
		p.prevEnd = p.tok.End()
	}
	p.tok = p.lx.Next()
}

func (p *parser) at(k token.Kind) bool { return p.tok.Kind == k }

func (p *parser) accept(k token.Kind) bool {
	if p.tok.Kind != k {
		return false
	}
	p.next()
	return true
}

func (p *parser) expect(k token.Kind) (token.Token, error) {
	if p.at(token.ERROR) {
		return token.Token{}, p.tokenError()
	}
	if !p.at(k) {
		return token.Token{}, p.errHere("expected %s, got %s", kindLabel(k), tokenLabel(p.tok))
	}
	t := p.tok
	p.next()
	return t, nil
}

// tokSpan is the span of the current token.
func (p *parser) tokSpan() ast.Span {
	return ast.Span{Start: p.tok.Pos, End: p.tok.End()}
}

// spanFrom covers everything consumed since start.
func (p *parser) spanFrom(start token.Position) ast.Span {
	end := p.prevEnd
	if end.Offset < start.Offset {
		end = start
	}
	return ast.Span{Start: start, End: end}
}

func (p *parser) errHere(format string, args ...interface{}) error {
	return p.errAt(p.tok.Pos, format, args...)
}

func (p *parser) errAt(pos token.Position, format string, args ...interface{}) error {
	return &SyntaxError{
		Message:  fmt.Sprintf(format, args...),
		Loc:      pos,
		Input:    p.src,
		Filename: p.cfg.filename,
	}
}

func (p *parser) errAtNode(n ast.Node, format string, args ...interface{}) error {
	return p.errAt(n.Bounds().Start, format, args...)
}

// tokenError converts an in-stream ERROR token into the parser's error type.
// The token text is already a complete message.
func (p *parser) tokenError() error {
	if p.lx.IndentError() {
		return p.indentErrHere(p.tok.Text)
	}
	return p.errAt(p.tok.Pos, "%s", p.tok.Text)
}

func (p *parser) indentErrHere(msg string) error {
	return &IndentationError{SyntaxError: SyntaxError{
		Message:  msg,
		Loc:      p.tok.Pos,
		Input:    p.src,
		Filename: p.cfg.filename,
	}}
}

func (p *parser) unexpected() error {
	switch p.tok.Kind {
	case token.ERROR:
		return p.tokenError()
	case token.EOF:
		return p.errHere("unexpected end of input")
	case token.NEWLINE:
		return p.errHere("unexpected end of line")
	case token.INDENT:
		return p.indentErrHere("unexpected indent")
	}
	return p.errHere("unexpected token %q", p.tok.Text)
}

//
// Program structure
//

func (p *parser) parseProgram() ([]ast.Stmt, ast.Span, error) {
	start := p.tok.Pos
	var body []ast.Stmt
	for !p.at(token.EOF) {
		if p.accept(token.NEWLINE) {
			continue
		}
		stmts, err := p.parseStatement()
		if err != nil {
			return nil, ast.Span{}, err
		}
		body = append(body, stmts...)
	}
	return body, p.spanFrom(start), nil
}

func (p *parser) parseEvalInput() (ast.Node, error) {
	start := p.tok.Pos
	body, err := p.parseTestList()
	if err != nil {
		return nil, err
	}
	sp := p.spanFrom(start)
	for p.accept(token.NEWLINE) {
	}
	if !p.at(token.EOF) {
		return nil, p.unexpected()
	}
	return &ast.Expression{Span: sp, Body: body}, nil
}

// parseStatement parses one logical line, or one compound statement. Simple
// statements may carry several small statements joined with semicolons, so
// the result is a slice.
func (p *parser) parseStatement() ([]ast.Stmt, error) {
	switch p.tok.Kind {
	case token.ERROR:
		return nil, p.tokenError()
	case token.INDENT:
		return nil, p.indentErrHere("unexpected indent")
	case token.IF, token.WHILE, token.FOR, token.TRY, token.WITH,
		token.DEF, token.CLASS, token.AT:
		st, err := p.parseCompound()
		if err != nil {
			return nil, err
		}
		return []ast.Stmt{st}, nil
	}
	return p.parseSimpleStmt()
}

func (p *parser) parseCompound() (ast.Stmt, error) {
	switch p.tok.Kind {
	case token.IF:
		return p.parseIf()
	case token.WHILE:
		return p.parseWhile()
	case token.FOR:
		return p.parseFor()
	case token.TRY:
		return p.parseTry()
	case token.WITH:
		return p.parseWith()
	case token.DEF:
		return p.parseFuncDef(nil)
	case token.CLASS:
		return p.parseClassDef(nil)
	}
	return p.parseDecorated()
}

// parseSuite parses the body of a compound statement: either an inline
// simple statement after the colon, or a newline-indented block.
func (p *parser) parseSuite() ([]ast.Stmt, error) {
	if !p.at(token.NEWLINE) {
		return p.parseSimpleStmt()
	}
	p.next()
	if p.at(token.ERROR) {
		return nil, p.tokenError()
	}
	if !p.at(token.INDENT) {
		return nil, p.indentErrHere("expected an indented block")
	}
	p.next()
	var body []ast.Stmt
	for !p.at(token.DEDENT) && !p.at(token.EOF) {
		if p.accept(token.NEWLINE) {
			continue
		}
		stmts, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		body = append(body, stmts...)
	}
	if _, err := p.expect(token.DEDENT); err != nil {
		return nil, err
	}
	return body, nil
}

//
// Simple statements
//

func (p *parser) parseSimpleStmt() ([]ast.Stmt, error) {
	var stmts []ast.Stmt
	for {
		st, err := p.parseSmallStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, st)
		if !p.accept(token.SEMI) {
			break
		}
		if p.atStmtEnd() {
			break
		}
	}
	if err := p.expectNewline(); err != nil {
		return nil, err
	}
	return stmts, nil
}

// expectNewline closes a simple statement. EOF is accepted so input without
// a trailing newline still parses.
func (p *parser) expectNewline() error {
	switch p.tok.Kind {
	case token.NEWLINE:
		p.next()
		return nil
	case token.EOF:
		return nil
	}
	return p.unexpected()
}

func (p *parser) atStmtEnd() bool {
	switch p.tok.Kind {
	case token.NEWLINE, token.SEMI, token.EOF:
		return true
	}
	return false
}

func (p *parser) parseSmallStmt() (ast.Stmt, error) {
	switch p.tok.Kind {
	case token.PASS:
		st := &ast.Pass{Span: p.tokSpan()}
		p.next()
		return st, nil
	case token.BREAK:
		st := &ast.Break{Span: p.tokSpan()}
		p.next()
		return st, nil
	case token.CONTINUE:
		st := &ast.Continue{Span: p.tokSpan()}
		p.next()
		return st, nil
	case token.RETURN:
		return p.parseReturn()
	case token.DEL:
		return p.parseDelete()
	case token.RAISE:
		return p.parseRaise()
	case token.ASSERT:
		return p.parseAssert()
	case token.GLOBAL, token.NONLOCAL:
		return p.parseScopeDecl()
	case token.IMPORT:
		return p.parseImport()
	case token.FROM:
		return p.parseImportFrom()
	}
	return p.parseExprStmt()
}

// parseExprStmt parses an expression statement and whatever assignment form
// follows it: chained targets, an augmented operator, or an annotation.
func (p *parser) parseExprStmt() (ast.Stmt, error) {
	start := p.tok.Pos
	first, err := p.parseTestList()
	if err != nil {
		return nil, err
	}

	switch {
	case p.tok.Kind.IsAugAssign():
		opTok := p.tok
		target, err := p.toStore(first)
		if err != nil {
			return nil, err
		}
		switch target.(type) {
		case *ast.Name, *ast.Attribute, *ast.Subscript:
		default:
			return nil, p.errAtNode(target, "illegal target for augmented assignment")
		}
		p.next()
		value, err := p.parseTestList()
		if err != nil {
			return nil, err
		}
		return &ast.AugAssign{
			Span:   p.spanFrom(start),
			Target: target,
			Op:     augOps[opTok.Kind],
			Value:  value,
		}, nil

	case p.at(token.COLON):
		target, err := p.toStore(first)
		if err != nil {
			return nil, err
		}
		switch target.(type) {
		case *ast.Name, *ast.Attribute, *ast.Subscript:
		default:
			return nil, p.errAtNode(target, "only single target (not tuple) can be annotated")
		}
		p.next()
		annotation, err := p.parseTest()
		if err != nil {
			return nil, err
		}
		var value ast.Expr
		if p.accept(token.EQUALS) {
			value, err = p.parseTestList()
			if err != nil {
				return nil, err
			}
		}
		return &ast.AnnAssign{
			Span:       p.spanFrom(start),
			Target:     target,
			Annotation: annotation,
			Value:      value,
		}, nil

	case p.at(token.EQUALS):
		var targets []ast.Expr
		value := first
		for p.accept(token.EQUALS) {
			target, err := p.toStore(value)
			if err != nil {
				return nil, err
			}
			targets = append(targets, target)
			value, err = p.parseTestList()
			if err != nil {
				return nil, err
			}
		}
		return &ast.Assign{Span: p.spanFrom(start), Targets: targets, Value: value}, nil
	}

	return &ast.ExprStmt{Span: p.spanFrom(start), Value: first}, nil
}

func (p *parser) parseReturn() (ast.Stmt, error) {
	start := p.tok.Pos
	p.next()
	var value ast.Expr
	if !p.atStmtEnd() {
		var err error
		value, err = p.parseTestList()
		if err != nil {
			return nil, err
		}
	}
	return &ast.Return{Span: p.spanFrom(start), Value: value}, nil
}

func (p *parser) parseDelete() (ast.Stmt, error) {
	start := p.tok.Pos
	p.next()
	var targets []ast.Expr
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		t, err := p.toDel(e)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
		if !p.accept(token.COMMA) {
			break
		}
		if p.atStmtEnd() {
			break
		}
	}
	return &ast.Delete{Span: p.spanFrom(start), Targets: targets}, nil
}

func (p *parser) parseRaise() (ast.Stmt, error) {
	start := p.tok.Pos
	p.next()
	var exc, cause ast.Expr
	if !p.atStmtEnd() {
		var err error
		exc, err = p.parseTest()
		if err != nil {
			return nil, err
		}
		if p.accept(token.FROM) {
			cause, err = p.parseTest()
			if err != nil {
				return nil, err
			}
		}
	}
	return &ast.Raise{Span: p.spanFrom(start), Exc: exc, Cause: cause}, nil
}

func (p *parser) parseAssert() (ast.Stmt, error) {
	start := p.tok.Pos
	p.next()
	test, err := p.parseTest()
	if err != nil {
		return nil, err
	}
	var msg ast.Expr
	if p.accept(token.COMMA) {
		msg, err = p.parseTest()
		if err != nil {
			return nil, err
		}
	}
	return &ast.Assert{Span: p.spanFrom(start), Test: test, Msg: msg}, nil
}

func (p *parser) parseScopeDecl() (ast.Stmt, error) {
	start := p.tok.Pos
	kind := p.tok.Kind
	p.next()
	var names []string
	for {
		n, err := p.expect(token.NAME)
		if err != nil {
			return nil, err
		}
		names = append(names, n.Text)
		if !p.accept(token.COMMA) {
			break
		}
	}
	if kind == token.GLOBAL {
		return &ast.Global{Span: p.spanFrom(start), Names: names}, nil
	}
	return &ast.Nonlocal{Span: p.spanFrom(start), Names: names}, nil
}

//
// Imports
//

func (p *parser) parseImport() (ast.Stmt, error) {
	start := p.tok.Pos
	p.next()
	var names []ast.Alias
	for {
		name, err := p.parseDottedName()
		if err != nil {
			return nil, err
		}
		alias := ast.Alias{Name: name}
		if p.accept(token.AS) {
			n, err := p.expect(token.NAME)
			if err != nil {
				return nil, err
			}
			alias.AsName = n.Text
		}
		names = append(names, alias)
		if !p.accept(token.COMMA) {
			break
		}
	}
	return &ast.Import{Span: p.spanFrom(start), Names: names}, nil
}

func (p *parser) parseImportFrom() (ast.Stmt, error) {
	start := p.tok.Pos
	p.next()
	level := 0
	for p.accept(token.DOT) {
		level++
	}
	module := ""
	if p.at(token.NAME) {
		var err error
		module, err = p.parseDottedName()
		if err != nil {
			return nil, err
		}
	} else if level == 0 {
		if _, err := p.expect(token.NAME); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.IMPORT); err != nil {
		return nil, err
	}

	var names []ast.Alias
	switch {
	case p.accept(token.TIMES):
		names = []ast.Alias{{Name: "*"}}
	case p.accept(token.LPAREN):
		var err error
		names, err = p.parseImportNames(token.RPAREN)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
	default:
		var err error
		names, err = p.parseImportNames(token.NEWLINE)
		if err != nil {
			return nil, err
		}
	}
	return &ast.ImportFrom{
		Span:   p.spanFrom(start),
		Module: module,
		Names:  names,
		Level:  level,
	}, nil
}

func (p *parser) parseImportNames(stop token.Kind) ([]ast.Alias, error) {
	var names []ast.Alias
	for {
		n, err := p.expect(token.NAME)
		if err != nil {
			return nil, err
		}
		alias := ast.Alias{Name: n.Text}
		if p.accept(token.AS) {
			a, err := p.expect(token.NAME)
			if err != nil {
				return nil, err
			}
			alias.AsName = a.Text
		}
		names = append(names, alias)
		if !p.accept(token.COMMA) {
			break
		}
		if p.at(stop) {
			break
		}
	}
	return names, nil
}

func (p *parser) parseDottedName() (string, error) {
	n, err := p.expect(token.NAME)
	if err != nil {
		return "", err
	}
	name := n.Text
	for p.accept(token.DOT) {
		part, err := p.expect(token.NAME)
		if err != nil {
			return "", err
		}
		name += "." + part.Text
	}
	return name, nil
}

//
// Compound statements
//

// parseIf handles both if and elif; an elif chain nests as a single-element
// Else holding the next If.
func (p *parser) parseIf() (ast.Stmt, error) {
	start := p.tok.Pos
	p.next()
	cond, err := p.parseTest()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.COLON); err != nil {
		return nil, err
	}
	body, err := p.parseSuite()
	if err != nil {
		return nil, err
	}
	var orelse []ast.Stmt
	switch p.tok.Kind {
	case token.ELIF:
		nested, err := p.parseIf()
		if err != nil {
			return nil, err
		}
		orelse = []ast.Stmt{nested}
	case token.ELSE:
		p.next()
		if _, err := p.expect(token.COLON); err != nil {
			return nil, err
		}
		orelse, err = p.parseSuite()
		if err != nil {
			return nil, err
		}
	}
	return &ast.If{Span: p.spanFrom(start), Cond: cond, Body: body, Else: orelse}, nil
}

func (p *parser) parseWhile() (ast.Stmt, error) {
	start := p.tok.Pos
	p.next()
	cond, err := p.parseTest()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.COLON); err != nil {
		return nil, err
	}
	body, err := p.parseSuite()
	if err != nil {
		return nil, err
	}
	orelse, err := p.parseElseSuite()
	if err != nil {
		return nil, err
	}
	return &ast.While{Span: p.spanFrom(start), Cond: cond, Body: body, Else: orelse}, nil
}

func (p *parser) parseFor() (ast.Stmt, error) {
	start := p.tok.Pos
	p.next()
	target, err := p.parseTargetList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.IN); err != nil {
		return nil, err
	}
	iter, err := p.parseTestList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.COLON); err != nil {
		return nil, err
	}
	body, err := p.parseSuite()
	if err != nil {
		return nil, err
	}
	orelse, err := p.parseElseSuite()
	if err != nil {
		return nil, err
	}
	return &ast.For{
		Span:   p.spanFrom(start),
		Target: target,
		Iter:   iter,
		Body:   body,
		Else:   orelse,
	}, nil
}

func (p *parser) parseElseSuite() ([]ast.Stmt, error) {
	if !p.accept(token.ELSE) {
		return nil, nil
	}
	if _, err := p.expect(token.COLON); err != nil {
		return nil, err
	}
	return p.parseSuite()
}

// parseTargetList parses the loop variable(s) of a for statement: one or
// more expressions at the operator level, converted to store targets.
func (p *parser) parseTargetList() (ast.Expr, error) {
	start := p.tok.Pos
	first, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if !p.at(token.COMMA) {
		return p.toStore(first)
	}
	elts := []ast.Expr{first}
	for p.accept(token.COMMA) {
		if p.at(token.IN) {
			break
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
	}
	return p.toStore(&ast.Tuple{Span: p.spanFrom(start), Elts: elts})
}

func (p *parser) parseTry() (ast.Stmt, error) {
	start := p.tok.Pos
	p.next()
	if _, err := p.expect(token.COLON); err != nil {
		return nil, err
	}
	body, err := p.parseSuite()
	if err != nil {
		return nil, err
	}

	var handlers []ast.ExceptHandler
	sawDefault := false
	for p.at(token.EXCEPT) {
		hstart := p.tok.Pos
		if sawDefault {
			return nil, p.errAt(hstart, "default except must be last")
		}
		p.next()
		var typ ast.Expr
		name := ""
		if !p.at(token.COLON) {
			typ, err = p.parseTest()
			if err != nil {
				return nil, err
			}
			if p.accept(token.AS) {
				n, err := p.expect(token.NAME)
				if err != nil {
					return nil, err
				}
				name = n.Text
			}
		} else {
			sawDefault = true
		}
		if _, err := p.expect(token.COLON); err != nil {
			return nil, err
		}
		hbody, err := p.parseSuite()
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, ast.ExceptHandler{
			Span: p.spanFrom(hstart),
			Type: typ,
			Name: name,
			Body: hbody,
		})
	}

	var orelse []ast.Stmt
	if len(handlers) > 0 {
		orelse, err = p.parseElseSuite()
		if err != nil {
			return nil, err
		}
	}
	var finally []ast.Stmt
	if p.accept(token.FINALLY) {
		if _, err := p.expect(token.COLON); err != nil {
			return nil, err
		}
		finally, err = p.parseSuite()
		if err != nil {
			return nil, err
		}
	}
	if len(handlers) == 0 && finally == nil {
		return nil, p.errHere("expected except or finally block")
	}
	return &ast.Try{
		Span:     p.spanFrom(start),
		Body:     body,
		Handlers: handlers,
		Else:     orelse,
		Finally:  finally,
	}, nil
}

func (p *parser) parseWith() (ast.Stmt, error) {
	start := p.tok.Pos
	p.next()
	var items []ast.WithItem
	for {
		ctx, err := p.parseTest()
		if err != nil {
			return nil, err
		}
		var vars ast.Expr
		if p.accept(token.AS) {
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			vars, err = p.toStore(v)
			if err != nil {
				return nil, err
			}
		}
		items = append(items, ast.WithItem{Context: ctx, Vars: vars})
		if !p.accept(token.COMMA) {
			break
		}
	}
	if _, err := p.expect(token.COLON); err != nil {
		return nil, err
	}
	body, err := p.parseSuite()
	if err != nil {
		return nil, err
	}
	return &ast.With{Span: p.spanFrom(start), Items: items, Body: body}, nil
}

func (p *parser) parseDecorated() (ast.Stmt, error) {
	var decorators []ast.Expr
	for p.at(token.AT) {
		p.next()
		d, err := p.parseTest()
		if err != nil {
			return nil, err
		}
		decorators = append(decorators, d)
		if err := p.expectNewline(); err != nil {
			return nil, err
		}
	}
	switch p.tok.Kind {
	case token.DEF:
		return p.parseFuncDef(decorators)
	case token.CLASS:
		return p.parseClassDef(decorators)
	}
	return nil, p.errHere("expected def or class after decorators")
}

func (p *parser) parseFuncDef(decorators []ast.Expr) (ast.Stmt, error) {
	start := p.tok.Pos
	p.next()
	name, err := p.expect(token.NAME)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	params, err := p.parseParams(token.RPAREN)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.COLON); err != nil {
		return nil, err
	}
	body, err := p.parseSuite()
	if err != nil {
		return nil, err
	}
	return &ast.FuncDef{
		Span:       p.spanFrom(start),
		Name:       name.Text,
		Params:     params,
		Body:       body,
		Decorators: decorators,
	}, nil
}

func (p *parser) parseClassDef(decorators []ast.Expr) (ast.Stmt, error) {
	start := p.tok.Pos
	p.next()
	name, err := p.expect(token.NAME)
	if err != nil {
		return nil, err
	}
	var bases []ast.Expr
	if p.accept(token.LPAREN) {
		if !p.at(token.RPAREN) {
			bases, err = p.parseTests(token.RPAREN)
			if err != nil {
				return nil, err
			}
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.COLON); err != nil {
		return nil, err
	}
	body, err := p.parseSuite()
	if err != nil {
		return nil, err
	}
	return &ast.ClassDef{
		Span:       p.spanFrom(start),
		Name:       name.Text,
		Bases:      bases,
		Body:       body,
		Decorators: decorators,
	}, nil
}

// parseParams parses a parameter list for def or lambda, up to stop. Extra
// positional and keyword catch-alls are recorded on the Params; after **kwargs
// nothing else may follow.
func (p *parser) parseParams(stop token.Kind) (ast.Params, error) {
	var ps ast.Params
	sawDefault := false
	for !p.at(stop) {
		if ps.Kwarg != "" {
			return ps, p.errHere("no parameters allowed after **%s", ps.Kwarg)
		}
		switch p.tok.Kind {
		case token.TIMES:
			starPos := p.tok.Pos
			p.next()
			n, err := p.expect(token.NAME)
			if err != nil {
				return ps, err
			}
			if ps.Vararg != "" {
				return ps, p.errAt(starPos, "duplicate *%s parameter", n.Text)
			}
			ps.Vararg = n.Text
		case token.POW:
			p.next()
			n, err := p.expect(token.NAME)
			if err != nil {
				return ps, err
			}
			ps.Kwarg = n.Text
		case token.NAME:
			n := p.tok
			p.next()
			param := ast.Param{Name: n.Text}
			if p.accept(token.EQUALS) {
				d, err := p.parseTest()
				if err != nil {
					return ps, err
				}
				param.Default = d
				sawDefault = true
			} else if sawDefault && ps.Vararg == "" {
				return ps, p.errAt(n.Pos, "non-default argument follows default argument")
			}
			ps.Args = append(ps.Args, param)
		default:
			return ps, p.errHere("expected parameter name, got %s", tokenLabel(p.tok))
		}
		if !p.accept(token.COMMA) {
			break
		}
	}
	return ps, nil
}

//
// Assignment target conversion
//

func (p *parser) toStore(e ast.Expr) (ast.Expr, error) {
	return p.toAssignable(e, ast.Store, "assign to")
}

func (p *parser) toDel(e ast.Expr) (ast.Expr, error) {
	return p.toAssignable(e, ast.Del, "delete")
}

// toAssignable rewrites an expression parsed in load position into a target.
// Names flip their context; tuples and lists recurse; attribute and
// subscript access pass through untouched. Operator expressions pass through
// too: a target like du -h is command-shaped, and rejecting it here would
// hide it from the reclassifier, which retries the whole statement as a
// subprocess line when it sees a BinOp target.
func (p *parser) toAssignable(e ast.Expr, ctx ast.NameCtx, verb string) (ast.Expr, error) {
	switch n := e.(type) {
	case *ast.Name:
		n.Ctx = ctx
		return n, nil
	case *ast.Tuple:
		for i, el := range n.Elts {
			conv, err := p.toAssignable(el, ctx, verb)
			if err != nil {
				return nil, err
			}
			n.Elts[i] = conv
		}
		return n, nil
	case *ast.List:
		for i, el := range n.Elts {
			conv, err := p.toAssignable(el, ctx, verb)
			if err != nil {
				return nil, err
			}
			n.Elts[i] = conv
		}
		return n, nil
	case *ast.Attribute, *ast.Subscript:
		return e, nil
	case *ast.BinOp, *ast.Compare:
		return e, nil
	case *ast.Call:
		return nil, p.errAtNode(e, "cannot %s function call", verb)
	case *ast.Str, *ast.Num, *ast.NameConst:
		return nil, p.errAtNode(e, "cannot %s literal", verb)
	}
	return nil, p.errAtNode(e, "cannot %s this expression", verb)
}
