package parser

import (
	"strings"

	"github.com/brine-lang/brine/core/ast"
	"github.com/brine-lang/brine/core/token"
)

// parseSubprocAtom parses a whole $(...)-style span as a host atom. The node
// is an ordinary call to the policy's runtime function; its first argument is
// the verbatim source between the markers so later passes can recover the
// command text.
func (p *parser) parseSubprocAtom(policy ast.CapturePolicy, closer token.Kind) (ast.Expr, error) {
	opener := p.tok
	p.next()
	stages, err := p.parseSubproc(closer)
	if err != nil {
		return nil, err
	}
	if p.at(token.BANG) {
		if err := p.parseMacroArg(stages, closer); err != nil {
			return nil, err
		}
	}
	closeTok, err := p.expect(closer)
	if err != nil {
		return nil, err
	}
	raw := p.src[opener.End().Offset:closeTok.Pos.Offset]
	sp := ast.Span{Start: opener.Pos, End: closeTok.End()}
	return ast.SubprocCall(policy, raw, stages, sp), nil
}

// parseNestedSubproc parses a capture nested inside another command span,
// like the inner $(ls) of $(echo $(ls)). Macro arguments are not allowed at
// nesting depth, so the closer must follow the pipeline directly.
func (p *parser) parseNestedSubproc(closer token.Kind) ([]ast.Expr, string, ast.Span, error) {
	opener := p.tok
	p.next()
	stages, err := p.parseSubproc(closer)
	if err != nil {
		return nil, "", ast.Span{}, err
	}
	closeTok, err := p.expect(closer)
	if err != nil {
		return nil, "", ast.Span{}, err
	}
	raw := p.src[opener.End().Offset:closeTok.Pos.Offset]
	return stages, raw, ast.Span{Start: opener.Pos, End: closeTok.End()}, nil
}

// parseSubproc parses a command pipeline up to, but not including, closer.
// The result holds one expression per pipeline stage with Str("|") and
// Str("&") separators between them, mirroring the argument shape the runtime
// receives.
func (p *parser) parseSubproc(closer token.Kind) ([]ast.Expr, error) {
	p.accept(token.WS)
	first, err := p.parseCliargs(closer)
	if err != nil {
		return nil, err
	}
	stages := []ast.Expr{first}
	afterAmp := false
	for {
		switch p.tok.Kind {
		case token.ERROR:
			return nil, p.tokenError()
		case closer:
			return stages, nil
		case token.BANG:
			// macro marker; the host-level atom decides whether it is legal
			return stages, nil
		case token.WS:
			if afterAmp && p.lx.Peek().Kind != token.PIPE {
				return nil, p.unexpected()
			}
			p.next()
		case token.AMPERSAND:
			stages = append(stages, &ast.Str{Span: p.tokSpan(), Value: "&"})
			p.next()
			afterAmp = true
		case token.PIPE:
			if len(stages) >= 2 {
				if s, ok := stages[len(stages)-2].(*ast.Str); ok && s.Value != "|" {
					return nil, p.errHere("additional redirect following non-pipe redirect")
				}
			}
			stages = append(stages, &ast.Str{Span: p.tokSpan(), Value: "|"})
			p.next()
			p.accept(token.WS)
			stage, err := p.parseCliargs(closer)
			if err != nil {
				return nil, err
			}
			stages = append(stages, stage)
			afterAmp = false
		default:
			return nil, p.unexpected()
		}
	}
}

// parseCliargs parses one pipeline stage: a run of atoms separated by
// whitespace.
func (p *parser) parseCliargs(closer token.Kind) (ast.Expr, error) {
	b := newStageBuilder(p.tok.Pos)
	if err := p.parseCliargAtom(b, closer); err != nil {
		return nil, err
	}
	for p.at(token.WS) && cmdAtoms[p.lx.Peek().Kind] {
		p.next()
		if err := p.parseCliargAtom(b, closer); err != nil {
			return nil, err
		}
	}
	return b.expr, nil
}

// parseCliargAtom parses a single command argument: a redirect, a search
// path, an escape back into the host language, a nested capture, or a glued
// word.
func (p *parser) parseCliargAtom(b *stageBuilder, closer token.Kind) error {
	switch p.tok.Kind {
	case token.ERROR:
		return p.tokenError()

	case token.GT, token.LT, token.RSHIFT, token.IOREDIRECT:
		b.append(&ast.Str{Span: p.tokSpan(), Value: p.tok.Text})
		p.next()
		return nil

	case token.SEARCHPATH:
		b.extend(ast.PathSearch(p.tok.Text, false, p.tokSpan()))
		p.next()
		return nil

	case token.AT_LPAREN:
		// @(expr) escapes back into the host language; the value is spliced
		// into the argument list at run time
		start := p.tok.Pos
		p.next()
		value, err := p.parseTest()
		if err != nil {
			return err
		}
		closeTok, err := p.expect(token.RPAREN)
		if err != nil {
			return err
		}
		b.extend(ast.SpliceCall(value, ast.Span{Start: start, End: closeTok.End()}))
		return nil

	case token.ATDOLLAR_LPAREN:
		stages, raw, sp, err := p.parseNestedSubproc(token.RPAREN)
		if err != nil {
			return err
		}
		b.extend(ast.InjectCall(raw, stages, sp))
		return nil

	case token.DOLLAR_LPAREN:
		stages, raw, sp, err := p.parseNestedSubproc(token.RPAREN)
		if err != nil {
			return err
		}
		b.append(ast.SubprocCall(ast.CaptureStdout, raw, stages, sp))
		return nil

	case token.DOLLAR_LBRACKET:
		stages, raw, sp, err := p.parseNestedSubproc(token.RBRACKET)
		if err != nil {
			return err
		}
		sub := ast.SubprocCall(ast.Uncaptured, raw, stages, sp)
		b.extend(ast.SplitLinesCall(sub, sp))
		return nil

	case token.DOLLAR_LBRACE:
		start := p.tok.Pos
		p.next()
		key, err := p.parseTest()
		if err != nil {
			return err
		}
		closeTok, err := p.expect(token.RBRACE)
		if err != nil {
			return err
		}
		b.append(ast.EnvGet(key, ast.Span{Start: start, End: closeTok.End()}))
		return nil
	}

	if wordParts[p.tok.Kind] {
		return p.parseCliargWord(b)
	}
	return p.unexpected()
}

// parseCliargWord glues a run of adjacent part tokens into one command word.
// A lone string literal keeps its decoded value and goes through path
// expansion; everything else keeps the raw source text, quotes included,
// concatenated in source order. Words containing * become glob calls.
func (p *parser) parseCliargWord(b *stageBuilder) error {
	first := p.tok
	sp := p.tokSpan()
	var sb strings.Builder
	sb.WriteString(first.Text)
	parts := 1
	p.next()
	for wordParts[p.tok.Kind] {
		sp.End = p.tok.End()
		sb.WriteString(p.tok.Text)
		parts++
		p.next()
	}

	if parts == 1 && first.Kind == token.STRING {
		lit := &ast.Str{Span: sp, Value: decodeString(first.Text)}
		b.append(ast.ExpandPathCall(lit, sp))
		return nil
	}
	word := sb.String()
	lit := &ast.Str{Span: sp, Value: word}
	if strings.Contains(word, "*") {
		b.extend(ast.GlobCall(lit, sp))
	} else {
		b.append(ast.ExpandPathCall(lit, sp))
	}
	return nil
}

// parseMacroArg handles the ! marker inside a subprocess span: everything
// between ! and the closer is one verbatim string argument, whitespace
// trimmed, appended to the final pipeline stage. Bracket pairs still nest,
// so ![echo ! f(x, y)] keeps its parentheses balanced inside the argument.
func (p *parser) parseMacroArg(stages []ast.Expr, closer token.Kind) error {
	bang := p.tok
	p.next()
	depth := 0
	for {
		switch p.tok.Kind {
		case token.ERROR:
			return p.tokenError()
		case token.EOF:
			return p.unexpected()
		case token.LPAREN, token.LBRACKET, token.LBRACE,
			token.AT_LPAREN, token.ATDOLLAR_LPAREN,
			token.DOLLAR_LPAREN, token.DOLLAR_LBRACKET, token.DOLLAR_LBRACE,
			token.BANG_LPAREN, token.BANG_LBRACKET:
			depth++
		case token.RPAREN, token.RBRACKET, token.RBRACE:
			if depth == 0 {
				if p.tok.Kind != closer {
					return p.unexpected()
				}
				text := strings.TrimSpace(p.src[bang.End().Offset:p.tok.Pos.Offset])
				arg := &ast.Str{
					Span:  ast.Span{Start: bang.End(), End: p.tok.Pos},
					Value: text,
				}
				appendToLastStage(stages, arg)
				return nil
			}
			depth--
		}
		p.next()
	}
}

// appendToLastStage adds the macro argument to the final pipeline stage,
// reaching into the trailing argument list when the stage ends in one. A
// stage that ends in a splice has no open list to append to, so the argument
// joins on as a fresh single-element list instead.
func appendToLastStage(stages []ast.Expr, arg ast.Expr) {
	last := len(stages) - 1
	if lst, ok := stages[last].(*ast.List); ok {
		lst.Elts = append(lst.Elts, arg)
		lst.Span.End = arg.Bounds().End
		return
	}
	if bin, ok := stages[last].(*ast.BinOp); ok {
		if lst, ok := bin.Right.(*ast.List); ok {
			lst.Elts = append(lst.Elts, arg)
			lst.Span.End = arg.Bounds().End
			bin.Span.End = arg.Bounds().End
			return
		}
	}
	stages[last] = &ast.BinOp{
		Span:  ast.Span{Start: stages[last].Bounds().Start, End: arg.Bounds().End},
		Left:  stages[last],
		Op:    ast.Add,
		Right: &ast.List{Span: arg.Bounds(), Elts: []ast.Expr{arg}},
	}
}

// stageBuilder assembles one pipeline stage in the shape the runtime
// receives: a list of argument expressions, with spliced parts joined on
// with +. A stage like `echo @(x) done` builds ["echo"] + splice(x) +
// ["done"].
type stageBuilder struct {
	expr ast.Expr  // the whole stage
	curr *ast.List // trailing list new words append to, nil right after a splice
}

func newStageBuilder(pos token.Position) *stageBuilder {
	lst := &ast.List{Span: ast.Span{Start: pos, End: pos}}
	return &stageBuilder{expr: lst, curr: lst}
}

// append adds one argument expression to the stage.
func (b *stageBuilder) append(e ast.Expr) {
	if b.curr == nil {
		b.curr = &ast.List{Span: e.Bounds()}
		b.expr = &ast.BinOp{
			Span:  ast.Span{Start: b.expr.Bounds().Start, End: e.Bounds().End},
			Left:  b.expr,
			Op:    ast.Add,
			Right: b.curr,
		}
	}
	b.curr.Elts = append(b.curr.Elts, e)
	b.curr.Span.End = e.Bounds().End
}

// extend joins an expression that evaluates to a whole argument list onto
// the stage.
func (b *stageBuilder) extend(e ast.Expr) {
	b.expr = &ast.BinOp{
		Span:  ast.Span{Start: b.expr.Bounds().Start, End: e.Bounds().End},
		Left:  b.expr,
		Op:    ast.Add,
		Right: e,
	}
	b.curr = nil
}
