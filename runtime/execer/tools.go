package execer

import (
	"strings"

	"github.com/brine-lang/brine/core/token"
	"github.com/brine-lang/brine/runtime/lexer"
)

// Token classes steering the rewriter. endToks close a bare command,
// begSkipToks may precede one without belonging to it, and parenOpeners are
// the opener kinds whose RPAREN stays part of the command word stream.
var (
	endToks = map[token.Kind]bool{
		token.SEMI:   true,
		token.AND:    true,
		token.OR:     true,
		token.RPAREN: true,
	}
	begSkipToks = map[token.Kind]bool{
		token.WS:     true,
		token.INDENT: true,
		token.NOT:    true,
		token.LPAREN: true,
	}
	parenOpeners = map[token.Kind]bool{
		token.LPAREN:          true,
		token.AT_LPAREN:       true,
		token.BANG_LPAREN:     true,
		token.DOLLAR_LPAREN:   true,
		token.ATDOLLAR_LPAREN: true,
	}
)

// specialRParen reports whether last is an RPAREN closing one of the rich
// openers like $( rather than a plain parenthesis.
func specialRParen(lparens []token.Kind, last token.Token) bool {
	if last.Kind != token.RPAREN {
		return false
	}
	for _, k := range lparens {
		if k != token.LPAREN {
			return true
		}
	}
	return false
}

// realTok reports whether a token occupies actual source text, so that its
// end position may bound a rewritten span. Synthesized and error tokens
// carry text that is not a source slice.
func realTok(t token.Token) bool {
	switch t.Kind {
	case token.NEWLINE, token.WS, token.INDENT, token.DEDENT, token.ERROR, token.EOF:
		return false
	}
	return true
}

// subprocToks wraps the span of line that reads as a bare command in ![ and
// ], re-slicing the original text verbatim inside the wrapper. mincol bounds
// where the captured span may start; maxcol, when not negative, bounds where
// capture stops. With returnLine the whole line comes back with the wrap
// spliced in place; otherwise just the wrapped span is returned. Greedy mode
// keeps plain parentheses inside the wrap instead of restarting at them.
//
// The empty string means no capturable tokens were found, as on a blank or
// comment-only line.
func subprocToks(line string, mincol, maxcol int, returnLine, greedy bool) string {
	if maxcol < 0 {
		maxcol = len(line) + 1
	}
	lx := lexer.New(line)
	var toks []token.Token
	var lparens []token.Kind
	var lastReal token.Token
	haveReal := false
	sawMacro := false
	brokeEarly := false
	endOffset := 0

	for {
		tok := lx.Next()
		if tok.Kind == token.EOF {
			break
		}
		pos := tok.Pos.Column
		if !endToks[tok.Kind] && pos >= maxcol {
			brokeEarly = true
			break
		}
		if tok.Kind == token.BANG {
			sawMacro = true
		}
		if sawMacro && tok.Kind != token.NEWLINE && tok.Kind != token.DEDENT {
			toks = appendTok(toks, tok, &lastReal, &haveReal)
			continue
		}
		if parenOpeners[tok.Kind] {
			lparens = append(lparens, tok.Kind)
		}
		if greedy && containsKind(lparens, token.LPAREN) {
			toks = appendTok(toks, tok, &lastReal, &haveReal)
			if tok.Kind == token.RPAREN && len(lparens) > 0 {
				lparens = lparens[:len(lparens)-1]
			}
			continue
		}
		if len(toks) == 0 && begSkipToks[tok.Kind] {
			continue
		}
		if len(toks) > 0 && endToks[toks[len(toks)-1].Kind] {
			if specialRParen(lparens, toks[len(toks)-1]) {
				// the ) belongs to a rich opener inside the command
				if len(lparens) > 0 {
					lparens = lparens[:len(lparens)-1]
				}
			} else if pos < maxcol && tok.Kind != token.NEWLINE &&
				tok.Kind != token.DEDENT && tok.Kind != token.WS {
				// a command ended mid-line; restart capture after it
				if !greedy {
					toks = toks[:0]
					haveReal = false
				}
				if begSkipToks[tok.Kind] {
					continue
				}
			} else {
				brokeEarly = true
				break
			}
		}
		if pos < mincol {
			continue
		}
		toks = appendTok(toks, tok, &lastReal, &haveReal)
		if tok.Kind == token.NEWLINE {
			brokeEarly = true
			break
		}
		if tok.Kind == token.ERROR && strings.Contains(tok.Text, "string literal") {
			return ""
		}
	}

	if !brokeEarly {
		// ran off the stream: a trailing end token is not part of the span
		if len(toks) > 0 && endToks[toks[len(toks)-1].Kind] {
			switch {
			case specialRParen(lparens, toks[len(toks)-1]):
			case greedy && toks[len(toks)-1].Kind == token.RPAREN:
			default:
				toks = toks[:len(toks)-1]
			}
		}
		if len(toks) == 0 {
			return ""
		}
		endOffset = len(strings.TrimRight(toks[len(toks)-1].Text, " \t\r\n"))
	}
	if len(toks) == 0 {
		return ""
	}
	if sawMacro || greedy {
		endOffset = len(strings.TrimRight(toks[len(toks)-1].Text, " \t\r\n")) + 1
	}

	beg := toks[0].Pos.Column
	end := toks[len(toks)-1].Pos.Column + endOffset
	// synthesized line-end tokens sit past any trailing comment; the span
	// must stop at the last token that is real source text
	if haveReal && lastReal.End().Column < end {
		end = lastReal.End().Column
	}
	if end > len(line) {
		end = len(line)
	}
	end = len(strings.TrimRight(line[:end], " \t"))
	if beg > end {
		beg = end
	}

	rtn := "![" + line[beg:end] + "]"
	if returnLine {
		rtn = line[:beg] + rtn + line[end:]
	}
	return rtn
}

func appendTok(toks []token.Token, tok token.Token, lastReal *token.Token, haveReal *bool) []token.Token {
	if realTok(tok) {
		*lastReal = tok
		*haveReal = true
	}
	return append(toks, tok)
}

func containsKind(kinds []token.Kind, k token.Kind) bool {
	for _, have := range kinds {
		if have == k {
			return true
		}
	}
	return false
}

// findNextBreak scans line from mincol for the first token that ends a bare
// command: a semicolon, a boolean and/or, or a closing paren that matches
// nothing richer than a plain (. It returns the column just past that token,
// or -1 when the rest of the line holds no break.
func findNextBreak(line string, mincol int) int {
	if mincol >= 1 {
		if mincol >= len(line) {
			return -1
		}
		line = line[mincol:]
	} else {
		mincol = 0
	}
	lx := lexer.New(line)
	var lparens []token.Kind
	for {
		tok := lx.Next()
		switch {
		case tok.Kind == token.EOF:
			return -1
		case parenOpeners[tok.Kind]:
			lparens = append(lparens, tok.Kind)
		case endToks[tok.Kind]:
			if specialRParen(lparens, tok) {
				if len(lparens) > 0 {
					lparens = lparens[:len(lparens)-1]
				}
			} else {
				return tok.Pos.Column + mincol + 1
			}
		case tok.Kind == token.ERROR && strings.Contains(tok.Text, `")"`):
			return tok.Pos.Column + mincol + 1
		case tok.Kind == token.BANG:
			// macro arguments swallow the rest of the line
			return mincol + len(line) + 1
		}
	}
}

// ambiguousCloser reports whether the parse failed on a closing bracket that
// pairs with a rich opener like $( or with nothing at all, on a line whose
// brackets do not balance. A narrow wrap cannot rescue such a line, so the
// retry loop goes greedy instead.
func ambiguousCloser(line string, col int) bool {
	if col < 0 || col >= len(line) {
		return false
	}
	switch line[col] {
	case ')', ']', '}':
	default:
		return false
	}
	var stack []bool // whether each open bracket follows a $, ! or @
	unbalanced := false
	ambiguous := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '(', '[', '{':
			rich := i > 0 && (line[i-1] == '$' || line[i-1] == '!' || line[i-1] == '@')
			stack = append(stack, rich)
		case ')', ']', '}':
			if i == col {
				ambiguous = len(stack) == 0 || stack[len(stack)-1]
			}
			if len(stack) == 0 {
				unbalanced = true
			} else {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if len(stack) > 0 {
		unbalanced = true
	}
	return ambiguous && unbalanced
}

// getLogicalLine joins the backslash continuation lines around index idx
// into one logical line. It returns the joined line, the number of physical
// lines it spans, and the index of its first physical line. The input lines
// must not contain newlines.
func getLogicalLine(lines []string, idx int) (string, int, int) {
	for idx > 0 && strings.HasSuffix(lines[idx-1], "\\") {
		idx--
	}
	start := idx
	n := 1
	line := lines[idx]
	for strings.HasSuffix(line, "\\") && idx < len(lines)-1 {
		n++
		idx++
		line = line[:len(line)-1] + lines[idx]
	}
	return line, n, start
}

// replaceLogicalLine splices a rewritten logical line back over the n
// physical lines it came from, re-breaking it near the original line lengths
// and restoring the continuation backslashes.
func replaceLogicalLine(lines []string, logical string, idx, n int) {
	if n == 1 {
		lines[idx] = logical
		return
	}
	for i := idx; i < idx+n-1; i++ {
		from := len(lines[i]) - 1
		if from < 0 {
			from = 0
		}
		b := -1
		if from <= len(logical) {
			if at := strings.Index(logical[from:], " "); at >= 0 {
				b = from + at
			}
		}
		if b < 0 {
			lines[i] = logical
			logical = ""
		} else {
			lines[i] = logical[:b] + "\\"
			logical = logical[b+1:]
		}
	}
	lines[idx+n-1] = logical
}

// leadingWhitespace returns the run of spaces and tabs opening s.
func leadingWhitespace(s string) string {
	return s[:len(s)-len(strings.TrimLeft(s, " \t"))]
}
