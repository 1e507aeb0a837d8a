package parser

import (
	"fmt"
	"strings"

	"github.com/brine-lang/brine/core/token"
)

// SyntaxError is returned for any input the grammar rejects. Loc points at
// the offending token in the source that was handed to Parse; the retry loop
// upstream reads Loc to decide where a subprocess wrap might rescue the line,
// so Line is 1-based and Column is a 0-based byte offset, exactly as the
// lexer reports positions.
//
// Input and Filename are carried so Error can render the offending line with
// a caret. Suggestions, when present, list likely intended spellings for a
// misspelled leading word; they are filled in by the execer, not the parser.
type SyntaxError struct {
	Message     string
	Loc         token.Position
	Input       string
	Filename    string
	Suggestions []string
}

func (e *SyntaxError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s:%d:%d: %s", e.name(), e.Loc.Line, e.Loc.Column, e.Message))
	if snippet := e.codeSnippet(); snippet != "" {
		sb.WriteString("\n")
		sb.WriteString(snippet)
	}
	if len(e.Suggestions) > 0 {
		sb.WriteString(fmt.Sprintf("\ndid you mean %s?", strings.Join(e.Suggestions, " or ")))
	}
	return sb.String()
}

func (e *SyntaxError) name() string {
	if e.Filename != "" {
		return e.Filename
	}
	return "<input>"
}

// codeSnippet renders the offending line with a column marker:
//
//	  --> 2:4
//	   |
//	 2 | echo hi)
//	   |     ^
func (e *SyntaxError) codeSnippet() string {
	if e.Input == "" || e.Loc.Line <= 0 {
		return ""
	}
	lines := strings.Split(e.Input, "\n")
	if e.Loc.Line > len(lines) {
		return ""
	}
	line := strings.TrimRight(lines[e.Loc.Line-1], "\r")
	col := e.Loc.Column
	if col > len(line) {
		col = len(line)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("  --> %d:%d\n", e.Loc.Line, e.Loc.Column))
	sb.WriteString("   |\n")
	sb.WriteString(fmt.Sprintf("%2d | %s\n", e.Loc.Line, line))
	sb.WriteString(fmt.Sprintf("   | %s^", strings.Repeat(" ", col)))
	return sb.String()
}

// IndentationError is the structural subset of syntax errors: inconsistent
// dedents and blocks opened where none is allowed. The retry loop never
// rewrites these, so it distinguishes them by type. Unwrap exposes the
// embedded SyntaxError for errors.As; check for IndentationError first.
type IndentationError struct {
	SyntaxError
}

func (e *IndentationError) Unwrap() error { return &e.SyntaxError }
