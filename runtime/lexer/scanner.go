package lexer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/brine-lang/brine/core/token"
)

// ASCII character lookup tables for fast classification. Built once at
// process start; never mutated afterwards.
var (
	isSpace      [128]bool
	isDigitCh    [128]bool
	isIdentStart [128]bool
	isIdentPart  [128]bool
)

func init() {
	for i := 0; i < 128; i++ {
		ch := byte(i)
		isSpace[i] = ch == ' ' || ch == '\t' || ch == '\r' || ch == '\f'
		isDigitCh[i] = '0' <= ch && ch <= '9'
		isIdentStart[i] = ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z') || ch == '_'
		isIdentPart[i] = isIdentStart[i] || isDigitCh[i]
	}
}

// rawKind classifies tokens at the scanner layer, before any mode
// interpretation is applied.
type rawKind int

const (
	rawEOF rawKind = iota
	rawName
	rawNumber
	rawString
	rawSearchPath
	rawOp
	rawNewline
	rawIndent
	rawDedent
	rawSigil // $, !, ?, backslash, and anything else the scanner cannot place
	rawError
)

type rawToken struct {
	kind       rawKind
	text       string
	pos        token.Position
	structural bool // true for indentation errors, which are never retryable
}

func (r rawToken) end() token.Position {
	return token.Position{
		Line:   r.pos.Line,
		Column: r.pos.Column + len(r.text),
		Offset: r.pos.Offset + len(r.text),
	}
}

// scanner is the base lexical feed: names, numbers, strings, operators,
// logical newlines and indentation. It knows nothing about modes; dollar
// signs, bangs and question marks pass through as sigil tokens for the
// mode-aware layer above it.
type scanner struct {
	src  string
	pos  int // byte offset of the next unread character
	line int // 1-based
	col  int // 0-based byte column

	indents     []int // indentation width stack, always starts with 0
	depth       int   // open bracket depth, newlines are insignificant inside
	atLineStart bool
	lineHasTok  bool // current logical line produced at least one token

	pending []rawToken // dedents queued at a line start or at EOF
	done    bool
}

const tabSize = 8

func newScanner(src string) *scanner {
	return &scanner{
		src:         src,
		line:        1,
		indents:     []int{0},
		atLineStart: true,
	}
}

func (s *scanner) position() token.Position {
	return token.Position{Line: s.line, Column: s.col, Offset: s.pos}
}

func (s *scanner) peekByte() byte {
	if s.pos >= len(s.src) {
		return 0
	}
	return s.src[s.pos]
}

func (s *scanner) peekByteAt(n int) byte {
	if s.pos+n >= len(s.src) {
		return 0
	}
	return s.src[s.pos+n]
}

// advance moves past n bytes which must not contain a newline.
func (s *scanner) advance(n int) {
	s.pos += n
	s.col += n
}

func (s *scanner) newline() {
	s.pos++
	s.line++
	s.col = 0
}

func (s *scanner) tok(kind rawKind, start token.Position) rawToken {
	return rawToken{kind: kind, text: s.src[start.Offset:s.pos], pos: start}
}

func (s *scanner) errTok(start token.Position, structural bool, format string, args ...interface{}) rawToken {
	return rawToken{
		kind:       rawError,
		text:       fmt.Sprintf(format, args...),
		pos:        start,
		structural: structural,
	}
}

// next returns the next raw token. At EOF it keeps returning rawEOF.
func (s *scanner) next() rawToken {
	if len(s.pending) > 0 {
		t := s.pending[0]
		s.pending = s.pending[1:]
		return t
	}
	if s.done {
		return rawToken{kind: rawEOF, pos: s.position()}
	}

	if s.atLineStart && s.depth == 0 {
		if t, ok := s.scanIndentation(); ok {
			return t
		}
	}

	for s.pos < len(s.src) {
		ch := s.src[s.pos]
		switch {
		case ch == '\n':
			if s.depth > 0 || !s.lineHasTok {
				// insignificant newline: inside brackets, or a blank or
				// comment-only line
				s.newline()
				if s.depth == 0 {
					s.atLineStart = true
					if t, ok := s.scanIndentation(); ok {
						return t
					}
				}
				continue
			}
			start := s.position()
			s.newline()
			s.atLineStart = true
			s.lineHasTok = false
			return rawToken{kind: rawNewline, text: "\n", pos: start}
		case ch == '\\' && s.peekByteAt(1) == '\n':
			s.pos++
			s.newline()
		case ch == '\\' && s.peekByteAt(1) == '\r' && s.peekByteAt(2) == '\n':
			s.pos += 2
			s.newline()
		case ch < 128 && isSpace[ch]:
			s.advance(1)
		case ch == '#':
			for s.pos < len(s.src) && s.src[s.pos] != '\n' {
				s.advance(1)
			}
		default:
			s.lineHasTok = true
			return s.scanToken()
		}
	}

	return s.finish()
}

// finish emits the trailing NEWLINE for an unterminated last line, unwinds
// the indent stack, and ends the stream.
func (s *scanner) finish() rawToken {
	s.done = true
	end := s.position()
	if s.lineHasTok {
		s.lineHasTok = false
		s.pending = append(s.pending, rawToken{kind: rawNewline, text: "", pos: end})
	}
	for len(s.indents) > 1 {
		s.indents = s.indents[:len(s.indents)-1]
		s.pending = append(s.pending, rawToken{kind: rawDedent, pos: end})
	}
	s.pending = append(s.pending, rawToken{kind: rawEOF, pos: end})

	t := s.pending[0]
	s.pending = s.pending[1:]
	return t
}

// scanIndentation measures the leading whitespace of the current line and
// emits INDENT or queues DEDENTs. Blank and comment-only lines never affect
// the indent stack. Returns false when the line needs no indent token.
func (s *scanner) scanIndentation() (rawToken, bool) {
	s.atLineStart = false
	start := s.position()
	width := 0
	for s.pos < len(s.src) {
		switch s.src[s.pos] {
		case ' ':
			width++
			s.advance(1)
		case '\t':
			width = (width/tabSize + 1) * tabSize
			s.advance(1)
		case '\f':
			s.advance(1)
		default:
			goto measured
		}
	}
measured:
	if s.pos >= len(s.src) || s.src[s.pos] == '\n' || s.src[s.pos] == '#' ||
		(s.src[s.pos] == '\r' && s.peekByteAt(1) == '\n') {
		return rawToken{}, false
	}

	top := s.indents[len(s.indents)-1]
	switch {
	case width > top:
		s.indents = append(s.indents, width)
		return s.tok(rawIndent, start), true
	case width < top:
		for len(s.indents) > 1 && s.indents[len(s.indents)-1] > width {
			s.indents = s.indents[:len(s.indents)-1]
			s.pending = append(s.pending, rawToken{kind: rawDedent, pos: s.position()})
		}
		if s.indents[len(s.indents)-1] != width {
			return s.errTok(start, true,
				"unindent does not match any outer indentation level"), true
		}
		t := s.pending[0]
		s.pending = s.pending[1:]
		return t, true
	}
	return rawToken{}, false
}

// scanToken scans one token starting at a non-space character.
func (s *scanner) scanToken() rawToken {
	start := s.position()
	ch := s.src[s.pos]

	switch {
	case ch < 128 && isIdentStart[ch]:
		return s.scanNameish(start)
	case ch >= utf8.RuneSelf:
		r, _ := utf8.DecodeRuneInString(s.src[s.pos:])
		if unicode.IsLetter(r) {
			return s.scanNameish(start)
		}
		s.advance(utf8.RuneLen(r))
		return s.tok(rawSigil, start)
	case ch < 128 && isDigitCh[ch]:
		return s.scanNumber(start)
	case ch == '\'' || ch == '"':
		return s.scanString(start)
	case ch == '`':
		return s.scanSearchPath(start)
	case ch == '.' && isDigitCh[s.peekByteAt(1)]:
		return s.scanNumber(start)
	case ch == '@':
		if t, ok := s.scanAtSearchPath(start); ok {
			return t
		}
		return s.scanOperator(start)
	default:
		return s.scanOperator(start)
	}
}

// scanNameish scans an identifier, then checks whether it is really the
// prefix of a string literal (r"...", b'...') or of a search path (g`...`).
func (s *scanner) scanNameish(start token.Position) rawToken {
	for s.pos < len(s.src) {
		ch := s.src[s.pos]
		if ch < 128 {
			if !isIdentPart[ch] {
				break
			}
			s.advance(1)
			continue
		}
		r, size := utf8.DecodeRuneInString(s.src[s.pos:])
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		s.advance(size)
	}
	name := s.src[start.Offset:s.pos]

	if s.pos < len(s.src) {
		next := s.src[s.pos]
		if (next == '\'' || next == '"') && isStringPrefix(name) {
			return s.scanStringBody(start, next)
		}
		if next == '`' && isSearchPrefix(name) {
			return s.scanSearchPathBody(start)
		}
	}
	return s.tok(rawName, start)
}

func isStringPrefix(name string) bool {
	if len(name) == 0 || len(name) > 2 {
		return false
	}
	return strings.Trim(name, "rbRB") == ""
}

func isSearchPrefix(name string) bool {
	if len(name) == 0 {
		return false
	}
	return strings.Trim(name, "rgp") == ""
}

func (s *scanner) scanNumber(start token.Position) rawToken {
	if s.peekByte() == '0' && (s.peekByteAt(1) == 'x' || s.peekByteAt(1) == 'X' ||
		s.peekByteAt(1) == 'o' || s.peekByteAt(1) == 'O' ||
		s.peekByteAt(1) == 'b' || s.peekByteAt(1) == 'B') {
		s.advance(2)
		for s.pos < len(s.src) && isBaseDigit(s.src[s.pos]) {
			s.advance(1)
		}
		return s.tok(rawNumber, start)
	}

	s.scanDigits()
	if s.peekByte() == '.' && s.peekByteAt(1) != '.' {
		s.advance(1)
		s.scanDigits()
	}
	if ch := s.peekByte(); ch == 'e' || ch == 'E' {
		if next := s.peekByteAt(1); next == '+' || next == '-' || (next < 128 && isDigitCh[next]) {
			s.advance(1)
			if ch := s.peekByte(); ch == '+' || ch == '-' {
				s.advance(1)
			}
			s.scanDigits()
		}
	}
	if ch := s.peekByte(); ch == 'j' || ch == 'J' {
		s.advance(1)
	}
	return s.tok(rawNumber, start)
}

func (s *scanner) scanDigits() {
	for s.pos < len(s.src) {
		ch := s.src[s.pos]
		if ch < 128 && isDigitCh[ch] || ch == '_' {
			s.advance(1)
			continue
		}
		break
	}
}

func isBaseDigit(ch byte) bool {
	return ch == '_' || (ch < 128 && isDigitCh[ch]) ||
		('a' <= ch && ch <= 'f') || ('A' <= ch && ch <= 'F')
}

func (s *scanner) scanString(start token.Position) rawToken {
	return s.scanStringBody(start, s.src[s.pos])
}

// scanStringBody scans from the opening quote to the matching close quote.
// Strings do not span physical lines.
func (s *scanner) scanStringBody(start token.Position, quote byte) rawToken {
	s.advance(1) // opening quote
	for s.pos < len(s.src) {
		ch := s.src[s.pos]
		switch {
		case ch == quote:
			s.advance(1)
			return s.tok(rawString, start)
		case ch == '\\' && s.pos+1 < len(s.src) && s.src[s.pos+1] != '\n':
			s.advance(2)
		case ch == '\n':
			return s.errTok(start, false, "EOL while scanning string literal")
		default:
			s.advance(1)
		}
	}
	return s.errTok(start, false, "EOL while scanning string literal")
}

// scanSearchPath scans a backtick-delimited span into one token, whitespace
// and all. The span must close on the same line.
func (s *scanner) scanSearchPath(start token.Position) rawToken {
	return s.scanSearchPathBody(start)
}

func (s *scanner) scanSearchPathBody(start token.Position) rawToken {
	s.advance(1) // opening backtick
	for s.pos < len(s.src) {
		ch := s.src[s.pos]
		switch {
		case ch == '`':
			s.advance(1)
			return s.tok(rawSearchPath, start)
		case ch == '\\' && s.pos+1 < len(s.src) && s.src[s.pos+1] != '\n':
			s.advance(2)
		case ch == '\n':
			return s.errTok(start, false,
				"could not find matching backtick for search path on line %d", start.Line)
		default:
			s.advance(1)
		}
	}
	return s.errTok(start, false,
		"could not find matching backtick for search path on line %d", start.Line)
}

// scanAtSearchPath recognizes @name`pattern` without consuming anything when
// the lookahead does not match.
func (s *scanner) scanAtSearchPath(start token.Position) (rawToken, bool) {
	i := s.pos + 1
	for i < len(s.src) && s.src[i] < 128 && isIdentPart[s.src[i]] {
		i++
	}
	if i >= len(s.src) || s.src[i] != '`' {
		return rawToken{}, false
	}
	s.advance(i - s.pos)
	return s.scanSearchPathBody(start), true
}

// operator tokens the scanner recognizes, longest first within each leading
// byte group
var opTable = map[byte][]string{
	'*': {"**=", "**", "*=", "*"},
	'/': {"//=", "//", "/=", "/"},
	'<': {"<<=", "<<", "<=", "<"},
	'>': {">>=", ">>", ">=", ">"},
	'=': {"==", "="},
	'!': {"!="},
	'+': {"+=", "+"},
	'-': {"-=", "-"},
	'%': {"%=", "%"},
	'&': {"&&", "&=", "&"},
	'|': {"||", "|=", "|"},
	'^': {"^=", "^"},
	'@': {"@=", "@"},
	'~': {"~"},
	'(': {"("},
	')': {")"},
	'[': {"["},
	']': {"]"},
	'{': {"{"},
	'}': {"}"},
	',': {","},
	':': {":"},
	';': {";"},
	'.': {"."},
}

func (s *scanner) scanOperator(start token.Position) rawToken {
	rest := s.src[s.pos:]
	for _, op := range opTable[rest[0]] {
		if strings.HasPrefix(rest, op) {
			s.advance(len(op))
			return s.tok(rawOp, start)
		}
	}
	// $, !, ?, stray backslashes and anything else: one-byte sigil for the
	// mode layer to interpret
	s.advance(1)
	return s.tok(rawSigil, start)
}

// bracket depth bookkeeping is owned by the mode layer, which sees every
// bracket token and adjusts depth through these helpers.
func (s *scanner) openBracket()  { s.depth++ }
func (s *scanner) closeBracket() {
	if s.depth > 0 {
		s.depth--
	}
}
