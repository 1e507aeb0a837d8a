// Package lexer turns source text into the token stream consumed by the
// parser and the subprocess rewriting layer.
//
// Lexing happens in two layers. A base scanner produces host-language
// tokens: names, numbers, strings, operators, logical newlines, INDENT and
// DEDENT. Above it, a mode-aware layer reinterprets that feed through a
// stack of lexing modes. Openers like $(, ![ and @( push a mode frame;
// their closers pop it. In command mode the layer synthesizes WS tokens for
// the whitespace between tokens, merges IO redirects like 2>&1 into single
// tokens, and leaves keywords as plain names. The stack bottom is host mode
// and is never popped.
//
// The lexer never panics on malformed input. Everything it cannot place
// becomes an ERROR token whose Text is a human-readable message.
package lexer

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/brine-lang/brine/core/invariant"
	"github.com/brine-lang/brine/core/token"
)

// opKinds maps operator text from the base scanner to token kinds. Built
// once at init; read-only afterwards.
var opKinds = map[string]token.Kind{}

func init() {
	for text, kind := range map[string]token.Kind{
		"(": token.LPAREN, ")": token.RPAREN,
		"[": token.LBRACKET, "]": token.RBRACKET,
		"{": token.LBRACE, "}": token.RBRACE,
		",": token.COMMA, ":": token.COLON, ";": token.SEMI, ".": token.DOT,
		"=": token.EQUALS,
		"+=": token.PLUS_EQ, "-=": token.MINUS_EQ, "*=": token.TIMES_EQ,
		"/=": token.DIV_EQ, "//=": token.FLOOR_EQ, "%=": token.MOD_EQ,
		"**=": token.POW_EQ, "&=": token.AMP_EQ, "|=": token.PIPE_EQ,
		"^=": token.XOR_EQ, "<<=": token.LSHIFT_EQ, ">>=": token.RSHIFT_EQ,
		"@=": token.AT_EQ,
		"+":  token.PLUS, "-": token.MINUS, "*": token.TIMES, "/": token.DIVIDE,
		"//": token.FLOORDIV, "%": token.MOD, "**": token.POW, "@": token.AT,
		"|": token.PIPE, "^": token.XOR, "&": token.AMPERSAND,
		"<<": token.LSHIFT, ">>": token.RSHIFT, "~": token.TILDE,
		"<": token.LT, ">": token.GT, "<=": token.LE, ">=": token.GE,
		"==": token.EQ_EQ, "!=": token.NOT_EQ,
		"&&": token.AND, "||": token.OR,
	} {
		opKinds[text] = kind
	}
}

// redirectNames are the words that glue onto an adjacent redirect operator,
// as in err>out or all>.
var redirectNames = map[string]bool{
	"out": true, "err": true, "all": true,
	"o": true, "e": true, "a": true,
}

// modeFrame is one entry of the lexing mode stack.
type modeFrame struct {
	host   bool   // host-language interpretation when true, command mode when false
	opener string // token text that pushed the frame, e.g. "$("
	closer string // text expected to pop it, e.g. ")"
	pos    token.Position
}

// Lexer is the mode-aware token stream over a single source text.
type Lexer struct {
	src string
	sc  *scanner

	modes    []modeFrame
	pushback []rawToken
	queue    []token.Token
	peeked   *token.Token

	lastEnd    token.Position // end of the last raw token interpreted
	hasLast    bool
	lastKind   token.Kind // last emitted significant kind, for NEWLINE synthesis
	emitted    bool
	eofEmitted bool
	indentErr  bool

	logger *slog.Logger
}

// New builds a lexer over src. Debug logging of mode transitions is enabled
// when BRINE_DEBUG_LEXER is set.
func New(src string) *Lexer {
	logLevel := slog.LevelWarn
	if os.Getenv("BRINE_DEBUG_LEXER") != "" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		},
	}))

	return &Lexer{
		src:    src,
		sc:     newScanner(src),
		modes:  []modeFrame{{host: true}},
		logger: logger,
	}
}

// Scan tokenizes src completely. The returned slice holds every token up to
// but not including EOF, with synthesized NEWLINE, DEDENT and ERROR tokens
// in place.
func Scan(src string) []token.Token {
	lx := New(src)
	var toks []token.Token
	for {
		t := lx.Next()
		if t.Kind == token.EOF {
			return toks
		}
		toks = append(toks, t)
	}
}

// Next returns the next token. After the stream ends it keeps returning EOF.
func (l *Lexer) Next() token.Token {
	if l.peeked != nil {
		t := *l.peeked
		l.peeked = nil
		return t
	}
	return l.next()
}

// Peek returns the next token without consuming it.
func (l *Lexer) Peek() token.Token {
	if l.peeked == nil {
		t := l.next()
		l.peeked = &t
	}
	return *l.peeked
}

// IndentError reports whether the stream produced a structural indentation
// error. Such errors are never candidates for command-mode retry.
func (l *Lexer) IndentError() bool {
	return l.indentErr
}

func (l *Lexer) next() token.Token {
	for len(l.queue) == 0 {
		if l.eofEmitted {
			return token.Token{Kind: token.EOF, Pos: l.sc.position()}
		}
		l.step()
	}
	t := l.queue[0]
	l.queue = l.queue[1:]
	if t.Kind != token.WS {
		l.lastKind = t.Kind
		l.emitted = true
	}
	return t
}

func (l *Lexer) top() *modeFrame {
	return &l.modes[len(l.modes)-1]
}

func (l *Lexer) pushMode(host bool, opener, closer string, pos token.Position) {
	l.modes = append(l.modes, modeFrame{host: host, opener: opener, closer: closer, pos: pos})
	l.logger.Debug("push mode", "opener", opener, "host", host, "depth", len(l.modes))
}

func (l *Lexer) popMode() modeFrame {
	invariant.Precondition(len(l.modes) > 1, "mode stack bottom must never be popped")
	m := l.modes[len(l.modes)-1]
	l.modes = l.modes[:len(l.modes)-1]
	l.logger.Debug("pop mode", "opener", m.opener, "depth", len(l.modes))
	return m
}

// raw pulls the next base token, honoring pushback.
func (l *Lexer) raw() rawToken {
	if n := len(l.pushback); n > 0 {
		rt := l.pushback[n-1]
		l.pushback = l.pushback[:n-1]
		return rt
	}
	return l.sc.next()
}

func (l *Lexer) unraw(rt rawToken) {
	l.pushback = append(l.pushback, rt)
}

func (l *Lexer) emit(kind token.Kind, text string, pos token.Position) {
	l.queue = append(l.queue, token.Token{Kind: kind, Text: text, Pos: pos})
}

func (l *Lexer) emitError(pos token.Position, format string, args ...interface{}) {
	l.emit(token.ERROR, fmt.Sprintf(format, args...), pos)
}

// consumed records that the interpretation of rt is complete, so whitespace
// synthesis for the following token measures from rt's end.
func (l *Lexer) consumed(rt rawToken) {
	l.lastEnd = rt.end()
	l.hasLast = true
}

func adjacent(end token.Position, rt rawToken) bool {
	return rt.pos.Offset == end.Offset
}

// step interprets one raw token, appending at least one token to the queue.
func (l *Lexer) step() {
	rt := l.raw()

	// Command mode makes the whitespace between tokens significant: words
	// are glued by adjacency, so the gaps must appear in the stream. A gap
	// may span lines when a continuation or an open bracket carries a
	// command over a physical line break.
	switch rt.kind {
	case rawIndent, rawDedent, rawEOF, rawError:
	default:
		if !l.top().host && l.hasLast && rt.pos.Offset > l.lastEnd.Offset {
			l.emit(token.WS, l.src[l.lastEnd.Offset:rt.pos.Offset], l.lastEnd)
		}
	}

	switch rt.kind {
	case rawEOF:
		l.finishStream(rt)
	case rawError:
		if rt.structural {
			l.indentErr = true
		}
		l.emit(token.ERROR, rt.text, rt.pos)
		l.consumed(rt)
	case rawNewline:
		l.emit(token.NEWLINE, rt.text, rt.pos)
		l.consumed(rt)
	case rawIndent:
		l.emit(token.INDENT, rt.text, rt.pos)
	case rawDedent:
		if l.emitted && l.lastKind != token.NEWLINE && l.lastKind != token.INDENT &&
			l.lastKind != token.DEDENT && l.lastKind != token.ERROR {
			l.logger.Debug("synthesize newline before dedent", "line", rt.pos.Line)
			l.emit(token.NEWLINE, "", rt.pos)
		}
		l.emit(token.DEDENT, rt.text, rt.pos)
	case rawName:
		l.handleName(rt)
	case rawNumber:
		l.handleNumber(rt)
	case rawString:
		l.emit(token.STRING, rt.text, rt.pos)
		l.consumed(rt)
	case rawSearchPath:
		l.emit(token.SEARCHPATH, rt.text, rt.pos)
		l.consumed(rt)
	case rawOp:
		l.handleOp(rt)
	case rawSigil:
		l.handleSigil(rt)
	}
}

// finishStream closes out the token stream at end of input, reporting any
// opener left unclosed on the mode stack.
func (l *Lexer) finishStream(rt rawToken) {
	if len(l.modes) > 1 {
		m := l.top()
		l.emitError(m.pos, "Unmatched %q at line %d, column %d", m.opener, m.pos.Line, m.pos.Column)
		l.modes = l.modes[:1]
	}
	l.emit(token.EOF, "", rt.pos)
	l.eofEmitted = true
}

func (l *Lexer) handleName(rt rawToken) {
	if l.top().host {
		if kind, ok := token.Keywords[rt.text]; ok {
			l.emit(kind, rt.text, rt.pos)
		} else {
			l.emit(token.NAME, rt.text, rt.pos)
		}
		l.consumed(rt)
		return
	}
	// Command mode: keywords are ordinary words, and redirect names glue
	// onto an adjacent redirect operator.
	if redirectNames[rt.text] && l.mergeRedirect(rt) {
		return
	}
	l.emit(token.NAME, rt.text, rt.pos)
	l.consumed(rt)
}

func (l *Lexer) handleNumber(rt rawToken) {
	if !l.top().host && l.mergeRedirect(rt) {
		return
	}
	l.emit(token.NUMBER, rt.text, rt.pos)
	l.consumed(rt)
}

// mergeRedirect glues rt onto an adjacent <, > or >> plus optional targets,
// producing a single IOREDIRECT token like 2>&1, err>out or &>. Returns
// false, consuming nothing, when rt does not start a redirect.
func (l *Lexer) mergeRedirect(rt rawToken) bool {
	op := l.raw()
	if op.kind != rawOp || !adjacent(rt.end(), op) ||
		(op.text != "<" && op.text != ">" && op.text != ">>") {
		l.unraw(op)
		return false
	}
	merged := rt.text + op.text
	end := op.end()
	last := op

	n := l.raw()
	if n.kind == rawOp && n.text == "&" && adjacent(end, n) {
		merged += "&"
		end = n.end()
		last = n
		n = l.raw()
	}
	if adjacent(end, n) &&
		(n.kind == rawNumber || (n.kind == rawName && redirectNames[n.text])) {
		merged += n.text
		last = n
	} else {
		l.unraw(n)
	}

	l.emit(token.IOREDIRECT, merged, rt.pos)
	l.consumed(last)
	return true
}

func (l *Lexer) handleOp(rt rawToken) {
	switch rt.text {
	case "(", "[", "{":
		l.sc.openBracket()
		closer := map[string]string{"(": ")", "[": "]", "{": "}"}[rt.text]
		l.pushMode(l.top().host, rt.text, closer, rt.pos)
		l.emit(opKinds[rt.text], rt.text, rt.pos)
		l.consumed(rt)
	case ")", "]", "}":
		l.sc.closeBracket()
		l.handleCloser(rt)
	case "&":
		if !l.top().host && l.mergeRedirect(rt) {
			return
		}
		l.emit(token.AMPERSAND, rt.text, rt.pos)
		l.consumed(rt)
	case "@":
		l.handleAt(rt)
	default:
		kind, ok := opKinds[rt.text]
		invariant.Invariant(ok, "scanner operators must all map to token kinds")
		l.emit(kind, rt.text, rt.pos)
		l.consumed(rt)
	}
}

// handleCloser pops the mode frame for a closing bracket. The frame pops
// even when the closer does not match its opener, so lexing after the error
// resumes in the enclosing mode.
func (l *Lexer) handleCloser(rt rawToken) {
	l.consumed(rt)
	if len(l.modes) > 1 {
		m := l.popMode()
		if rt.text != m.closer {
			l.emitError(rt.pos, "%q at (%d, %d) ends %q at (%d, %d) (expected %q)",
				rt.text, rt.pos.Line, rt.pos.Column,
				m.opener, m.pos.Line, m.pos.Column, m.closer)
			return
		}
		l.emit(opKinds[rt.text], rt.text, rt.pos)
		return
	}
	l.emitError(rt.pos, "Unmatched %q at line %d, column %d",
		rt.text, rt.pos.Line, rt.pos.Column)
}

// handleAt recognizes @( for host expression injection and @$( for output
// token substitution. A plain @ stays an operator.
func (l *Lexer) handleAt(rt rawToken) {
	n := l.raw()
	switch {
	case n.kind == rawOp && n.text == "(" && adjacent(rt.end(), n):
		l.sc.openBracket()
		l.pushMode(true, "@(", ")", rt.pos)
		l.emit(token.AT_LPAREN, "@(", rt.pos)
		l.consumed(n)
	case n.kind == rawSigil && n.text == "$" && adjacent(rt.end(), n):
		l.handleAtDollar(rt, n)
	default:
		l.unraw(n)
		l.emit(token.AT, "@", rt.pos)
		l.consumed(rt)
	}
}

func (l *Lexer) handleAtDollar(at, dollar rawToken) {
	n := l.raw()
	switch {
	case n.kind == rawEOF:
		l.unraw(n)
		l.emitError(at.pos, "missing token after @$")
		l.consumed(dollar)
	case !adjacent(dollar.end(), n):
		// the offending token is dropped; parsing stops at the error anyway
		l.emitError(at.pos, "unexpected whitespace after @$")
		l.consumed(n)
	case n.kind == rawOp && n.text == "(":
		l.sc.openBracket()
		l.pushMode(false, "@$(", ")", at.pos)
		l.emit(token.ATDOLLAR_LPAREN, "@$(", at.pos)
		l.consumed(n)
	default:
		l.emitError(at.pos, "expected ( after @$, but got %q", n.text)
		l.consumed(n)
	}
}

func (l *Lexer) handleSigil(rt rawToken) {
	switch rt.text {
	case "$":
		l.handleDollar(rt)
	case "?":
		l.handleQuestion(rt)
	case "!":
		l.handleBang(rt)
	default:
		// Anything the scanner could not place is a word in command mode
		// and an error in host mode.
		if !l.top().host {
			l.emit(token.NAME, rt.text, rt.pos)
		} else {
			l.emitError(rt.pos, "unexpected token %q", rt.text)
		}
		l.consumed(rt)
	}
}

// handleDollar interprets $NAME, $(, $[ and ${. The next token must be
// adjacent; environment access never spans whitespace.
func (l *Lexer) handleDollar(rt rawToken) {
	n := l.raw()
	switch {
	case n.kind == rawEOF || (n.kind == rawNewline && n.text == ""):
		l.unraw(n)
		l.emitError(rt.pos, "missing token after $")
		l.consumed(rt)
	case !adjacent(rt.end(), n):
		// the offending token is dropped; parsing stops at the error anyway
		l.emitError(rt.pos, "unexpected whitespace after $")
		l.consumed(n)
	case n.kind == rawName:
		l.emit(token.DOLLAR_NAME, "$"+n.text, rt.pos)
		l.consumed(n)
	case n.kind == rawOp && n.text == "(":
		l.sc.openBracket()
		l.pushMode(false, "$(", ")", rt.pos)
		l.emit(token.DOLLAR_LPAREN, "$(", rt.pos)
		l.consumed(n)
	case n.kind == rawOp && n.text == "[":
		l.sc.openBracket()
		l.pushMode(false, "$[", "]", rt.pos)
		l.emit(token.DOLLAR_LBRACKET, "$[", rt.pos)
		l.consumed(n)
	case n.kind == rawOp && n.text == "{":
		l.sc.openBracket()
		l.pushMode(true, "${", "}", rt.pos)
		l.emit(token.DOLLAR_LBRACE, "${", rt.pos)
		l.consumed(n)
	default:
		l.emitError(rt.pos, "expected NAME, (, [, or { after $, but got %q", n.text)
		l.consumed(n)
	}
}

func (l *Lexer) handleQuestion(rt rawToken) {
	n := l.raw()
	if n.kind == rawSigil && n.text == "?" && adjacent(rt.end(), n) {
		l.emit(token.DOUBLE_QUESTION, "??", rt.pos)
		l.consumed(n)
		return
	}
	l.unraw(n)
	l.emit(token.QUESTION, "?", rt.pos)
	l.consumed(rt)
}

// handleBang recognizes !( and ![ captures. A lone ! stays a BANG token: in
// command mode it introduces a macro argument, in host mode the parser
// rejects it. It is never part of a command word.
func (l *Lexer) handleBang(rt rawToken) {
	n := l.raw()
	switch {
	case n.kind == rawOp && n.text == "(" && adjacent(rt.end(), n):
		l.sc.openBracket()
		l.pushMode(false, "!(", ")", rt.pos)
		l.emit(token.BANG_LPAREN, "!(", rt.pos)
		l.consumed(n)
	case n.kind == rawOp && n.text == "[" && adjacent(rt.end(), n):
		l.sc.openBracket()
		l.pushMode(false, "![", "]", rt.pos)
		l.emit(token.BANG_LBRACKET, "![", rt.pos)
		l.consumed(n)
	default:
		l.unraw(n)
		l.emit(token.BANG, "!", rt.pos)
		l.consumed(rt)
	}
}
