package lexer

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/brine-lang/brine/core/token"
)

type tokenExpectation struct {
	Kind   token.Kind
	Text   string
	Line   int
	Column int
}

// assertTokens compares the full token stream against expected, giving a
// clean diff on mismatch. Columns are 0-based byte offsets within the line.
func assertTokens(t *testing.T, name string, input string, expected []tokenExpectation) {
	t.Helper()

	var actual []tokenExpectation
	for _, tok := range Scan(input) {
		actual = append(actual, tokenExpectation{
			Kind:   tok.Kind,
			Text:   tok.Text,
			Line:   tok.Pos.Line,
			Column: tok.Pos.Column,
		})
	}

	if diff := cmp.Diff(expected, actual); diff != "" {
		t.Errorf("%s: token mismatch (-expected +actual):\n%s", name, diff)
	}
}

func TestEmptyInput(t *testing.T) {
	assertTokens(t, "empty input", "", nil)
}

func TestNamesAndKeywords(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []tokenExpectation
	}{
		{
			name:  "plain name",
			input: "ls",
			expected: []tokenExpectation{
				{token.NAME, "ls", 1, 0},
				{token.NEWLINE, "", 1, 2},
			},
		},
		{
			name:  "keyword outside command mode",
			input: "if x:",
			expected: []tokenExpectation{
				{token.IF, "if", 1, 0},
				{token.NAME, "x", 1, 3},
				{token.COLON, ":", 1, 4},
				{token.NEWLINE, "", 1, 5},
			},
		},
		{
			name:  "assignment",
			input: "x = 1",
			expected: []tokenExpectation{
				{token.NAME, "x", 1, 0},
				{token.EQUALS, "=", 1, 2},
				{token.NUMBER, "1", 1, 4},
				{token.NEWLINE, "", 1, 5},
			},
		},
		{
			name:  "names keep digits and underscores",
			input: "file2_name",
			expected: []tokenExpectation{
				{token.NAME, "file2_name", 1, 0},
				{token.NEWLINE, "", 1, 10},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertTokens(t, tt.name, tt.input, tt.expected)
		})
	}
}

func TestNumbers(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []tokenExpectation
	}{
		{
			name:  "integer",
			input: "42",
			expected: []tokenExpectation{
				{token.NUMBER, "42", 1, 0},
				{token.NEWLINE, "", 1, 2},
			},
		},
		{
			name:  "float with exponent",
			input: "3.14e-2",
			expected: []tokenExpectation{
				{token.NUMBER, "3.14e-2", 1, 0},
				{token.NEWLINE, "", 1, 7},
			},
		},
		{
			name:  "hex literal",
			input: "0x1f",
			expected: []tokenExpectation{
				{token.NUMBER, "0x1f", 1, 0},
				{token.NEWLINE, "", 1, 4},
			},
		},
		{
			name:  "underscore separators",
			input: "1_000_000",
			expected: []tokenExpectation{
				{token.NUMBER, "1_000_000", 1, 0},
				{token.NEWLINE, "", 1, 9},
			},
		},
		{
			name:  "leading dot float",
			input: ".5",
			expected: []tokenExpectation{
				{token.NUMBER, ".5", 1, 0},
				{token.NEWLINE, "", 1, 2},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertTokens(t, tt.name, tt.input, tt.expected)
		})
	}
}

func TestStrings(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []tokenExpectation
	}{
		{
			name:  "single quoted",
			input: "'hi'",
			expected: []tokenExpectation{
				{token.STRING, "'hi'", 1, 0},
				{token.NEWLINE, "", 1, 4},
			},
		},
		{
			name:  "double quoted with escape",
			input: `"a\"b"`,
			expected: []tokenExpectation{
				{token.STRING, `"a\"b"`, 1, 0},
				{token.NEWLINE, "", 1, 6},
			},
		},
		{
			name:  "raw string prefix",
			input: `r'a\b'`,
			expected: []tokenExpectation{
				{token.STRING, `r'a\b'`, 1, 0},
				{token.NEWLINE, "", 1, 6},
			},
		},
		{
			name:  "unterminated string",
			input: "x = 'hi",
			expected: []tokenExpectation{
				{token.NAME, "x", 1, 0},
				{token.EQUALS, "=", 1, 2},
				{token.ERROR, "EOL while scanning string literal", 1, 4},
				{token.NEWLINE, "", 1, 7},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertTokens(t, tt.name, tt.input, tt.expected)
		})
	}
}

func TestOperators(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []tokenExpectation
	}{
		{
			name:  "arithmetic chain",
			input: "a + b * c ** d",
			expected: []tokenExpectation{
				{token.NAME, "a", 1, 0},
				{token.PLUS, "+", 1, 2},
				{token.NAME, "b", 1, 4},
				{token.TIMES, "*", 1, 6},
				{token.NAME, "c", 1, 8},
				{token.POW, "**", 1, 10},
				{token.NAME, "d", 1, 13},
				{token.NEWLINE, "", 1, 14},
			},
		},
		{
			name:  "augmented assignment",
			input: "x //= 2",
			expected: []tokenExpectation{
				{token.NAME, "x", 1, 0},
				{token.FLOOR_EQ, "//=", 1, 2},
				{token.NUMBER, "2", 1, 6},
				{token.NEWLINE, "", 1, 7},
			},
		},
		{
			name:  "comparisons",
			input: "a <= b != c",
			expected: []tokenExpectation{
				{token.NAME, "a", 1, 0},
				{token.LE, "<=", 1, 2},
				{token.NAME, "b", 1, 5},
				{token.NOT_EQ, "!=", 1, 7},
				{token.NAME, "c", 1, 10},
				{token.NEWLINE, "", 1, 11},
			},
		},
		{
			name:  "adjacent ampersands stay separate",
			input: "a && b",
			expected: []tokenExpectation{
				{token.NAME, "a", 1, 0},
				{token.AMPERSAND, "&", 1, 2},
				{token.AMPERSAND, "&", 1, 3},
				{token.NAME, "b", 1, 5},
				{token.NEWLINE, "", 1, 6},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertTokens(t, tt.name, tt.input, tt.expected)
		})
	}
}

func TestIndentation(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []tokenExpectation
	}{
		{
			name:  "simple block",
			input: "if x:\n    pass\n",
			expected: []tokenExpectation{
				{token.IF, "if", 1, 0},
				{token.NAME, "x", 1, 3},
				{token.COLON, ":", 1, 4},
				{token.NEWLINE, "\n", 1, 5},
				{token.INDENT, "    ", 2, 0},
				{token.PASS, "pass", 2, 4},
				{token.NEWLINE, "\n", 2, 8},
				{token.DEDENT, "", 3, 0},
			},
		},
		{
			name:  "dedent without trailing newline synthesizes the newline",
			input: "if x:\n    pass",
			expected: []tokenExpectation{
				{token.IF, "if", 1, 0},
				{token.NAME, "x", 1, 3},
				{token.COLON, ":", 1, 4},
				{token.NEWLINE, "\n", 1, 5},
				{token.INDENT, "    ", 2, 0},
				{token.PASS, "pass", 2, 4},
				{token.NEWLINE, "", 2, 8},
				{token.DEDENT, "", 2, 8},
			},
		},
		{
			name:  "inconsistent dedent is a structural error",
			input: "if x:\n        a\n    b\n",
			expected: []tokenExpectation{
				{token.IF, "if", 1, 0},
				{token.NAME, "x", 1, 3},
				{token.COLON, ":", 1, 4},
				{token.NEWLINE, "\n", 1, 5},
				{token.INDENT, "        ", 2, 0},
				{token.NAME, "a", 2, 8},
				{token.NEWLINE, "\n", 2, 9},
				{token.ERROR, "unindent does not match any outer indentation level", 3, 0},
				{token.DEDENT, "", 3, 4},
				{token.NAME, "b", 3, 4},
				{token.NEWLINE, "\n", 3, 5},
			},
		},
		{
			name:  "blank and comment lines do not close blocks",
			input: "if x:\n    a\n\n    # note\n    b\n",
			expected: []tokenExpectation{
				{token.IF, "if", 1, 0},
				{token.NAME, "x", 1, 3},
				{token.COLON, ":", 1, 4},
				{token.NEWLINE, "\n", 1, 5},
				{token.INDENT, "    ", 2, 0},
				{token.NAME, "a", 2, 4},
				{token.NEWLINE, "\n", 2, 5},
				{token.NAME, "b", 5, 4},
				{token.NEWLINE, "\n", 5, 5},
				{token.DEDENT, "", 6, 0},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertTokens(t, tt.name, tt.input, tt.expected)
		})
	}
}

func TestIndentErrorFlag(t *testing.T) {
	lx := New("if x:\n        a\n    b\n")
	for {
		tok := lx.Next()
		if tok.Kind == token.EOF {
			break
		}
	}
	if !lx.IndentError() {
		t.Error("expected IndentError to be set after inconsistent dedent")
	}

	lx = New("x = 'oops")
	for {
		tok := lx.Next()
		if tok.Kind == token.EOF {
			break
		}
	}
	if lx.IndentError() {
		t.Error("unterminated string must not count as an indentation error")
	}
}

func TestLineStructure(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []tokenExpectation
	}{
		{
			name:  "comment only line vanishes",
			input: "# hi\nx\n",
			expected: []tokenExpectation{
				{token.NAME, "x", 2, 0},
				{token.NEWLINE, "\n", 2, 1},
			},
		},
		{
			name:  "trailing comment",
			input: "x = 1  # note\n",
			expected: []tokenExpectation{
				{token.NAME, "x", 1, 0},
				{token.EQUALS, "=", 1, 2},
				{token.NUMBER, "1", 1, 4},
				{token.NEWLINE, "\n", 1, 13},
			},
		},
		{
			name:  "newlines inside brackets are insignificant",
			input: "f(a,\n  b)",
			expected: []tokenExpectation{
				{token.NAME, "f", 1, 0},
				{token.LPAREN, "(", 1, 1},
				{token.NAME, "a", 1, 2},
				{token.COMMA, ",", 1, 3},
				{token.NAME, "b", 2, 2},
				{token.RPAREN, ")", 2, 3},
				{token.NEWLINE, "", 2, 4},
			},
		},
		{
			name:  "backslash continuation",
			input: "x = \\\n    1\n",
			expected: []tokenExpectation{
				{token.NAME, "x", 1, 0},
				{token.EQUALS, "=", 1, 2},
				{token.NUMBER, "1", 2, 4},
				{token.NEWLINE, "\n", 2, 5},
			},
		},
		{
			name:  "blank lines between statements",
			input: "x\n\ny\n",
			expected: []tokenExpectation{
				{token.NAME, "x", 1, 0},
				{token.NEWLINE, "\n", 1, 1},
				{token.NAME, "y", 3, 0},
				{token.NEWLINE, "\n", 3, 1},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertTokens(t, tt.name, tt.input, tt.expected)
		})
	}
}

func TestSearchPathTokens(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []tokenExpectation
	}{
		{
			name:  "bare backticks",
			input: "`lib.*`",
			expected: []tokenExpectation{
				{token.SEARCHPATH, "`lib.*`", 1, 0},
				{token.NEWLINE, "", 1, 7},
			},
		},
		{
			name:  "glob prefix",
			input: "g`*.go`",
			expected: []tokenExpectation{
				{token.SEARCHPATH, "g`*.go`", 1, 0},
				{token.NEWLINE, "", 1, 7},
			},
		},
		{
			name:  "custom searcher prefix",
			input: "@paths`src`",
			expected: []tokenExpectation{
				{token.SEARCHPATH, "@paths`src`", 1, 0},
				{token.NEWLINE, "", 1, 11},
			},
		},
		{
			name:  "pattern keeps spaces verbatim",
			input: "g`a b`",
			expected: []tokenExpectation{
				{token.SEARCHPATH, "g`a b`", 1, 0},
				{token.NEWLINE, "", 1, 6},
			},
		},
		{
			name:  "missing closing backtick",
			input: "`abc",
			expected: []tokenExpectation{
				{token.ERROR, "could not find matching backtick for search path on line 1", 1, 0},
				{token.NEWLINE, "", 1, 4},
			},
		},
		{
			name:  "prefix name without backtick stays a name",
			input: "g = 1",
			expected: []tokenExpectation{
				{token.NAME, "g", 1, 0},
				{token.EQUALS, "=", 1, 2},
				{token.NUMBER, "1", 1, 4},
				{token.NEWLINE, "", 1, 5},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertTokens(t, tt.name, tt.input, tt.expected)
		})
	}
}
