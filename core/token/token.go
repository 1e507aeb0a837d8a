// Package token defines the lexical token model shared by the lexer, the
// parser, and the rewriting layer. Tokens are plain values; the lexer never
// panics on bad input, it emits ERROR tokens instead.
package token

// Kind identifies the lexical class of a token.
type Kind int

const (
	// Special tokens
	EOF Kind = iota
	ERROR
	NEWLINE // logical end of statement
	WS      // synthesized whitespace, command mode only
	INDENT
	DEDENT

	// Literals and names
	NAME
	NUMBER
	STRING

	// Keywords
	AND
	OR
	NOT
	IF
	ELIF
	ELSE
	FOR
	WHILE
	DEF
	CLASS
	RETURN
	PASS
	BREAK
	CONTINUE
	IMPORT
	FROM
	AS
	WITH
	TRY
	EXCEPT
	FINALLY
	RAISE
	ASSERT
	DEL
	GLOBAL
	NONLOCAL
	LAMBDA
	IN
	IS
	NONE
	TRUE
	FALSE

	// Brackets
	LPAREN   // (
	RPAREN   // )
	LBRACKET // [
	RBRACKET // ]
	LBRACE   // {
	RBRACE   // }

	// Punctuation
	COMMA // ,
	COLON // :
	SEMI  // ;
	DOT   // .

	// Assignment
	EQUALS    // =
	PLUS_EQ   // +=
	MINUS_EQ  // -=
	TIMES_EQ  // *=
	DIV_EQ    // /=
	FLOOR_EQ  // //=
	MOD_EQ    // %=
	POW_EQ    // **=
	AMP_EQ    // &=
	PIPE_EQ   // |=
	XOR_EQ    // ^=
	LSHIFT_EQ // <<=
	RSHIFT_EQ // >>=
	AT_EQ     // @=

	// Operators
	PLUS      // +
	MINUS     // -
	TIMES     // *
	DIVIDE    // /
	FLOORDIV  // //
	MOD       // %
	POW       // **
	AT        // @
	PIPE      // |
	XOR       // ^
	AMPERSAND // &
	LSHIFT    // <<
	RSHIFT    // >>
	TILDE     // ~
	LT        // <
	GT        // >
	LE        // <=
	GE        // >=
	EQ_EQ     // ==
	NOT_EQ    // !=

	// Command-language tokens
	DOLLAR_NAME     // $NAME
	DOLLAR_LPAREN   // $(
	DOLLAR_LBRACKET // $[
	DOLLAR_LBRACE   // ${
	BANG_LPAREN     // !(
	BANG_LBRACKET   // ![
	AT_LPAREN       // @(
	ATDOLLAR_LPAREN // @$(
	SEARCHPATH      // `pattern`
	QUESTION        // ?
	DOUBLE_QUESTION // ??
	BANG            // !
	IOREDIRECT      // 2>, err>out, >>, ...
)

var kindNames = [...]string{
	EOF:             "EOF",
	ERROR:           "ERROR",
	NEWLINE:         "NEWLINE",
	WS:              "WS",
	INDENT:          "INDENT",
	DEDENT:          "DEDENT",
	NAME:            "NAME",
	NUMBER:          "NUMBER",
	STRING:          "STRING",
	AND:             "AND",
	OR:              "OR",
	NOT:             "NOT",
	IF:              "IF",
	ELIF:            "ELIF",
	ELSE:            "ELSE",
	FOR:             "FOR",
	WHILE:           "WHILE",
	DEF:             "DEF",
	CLASS:           "CLASS",
	RETURN:          "RETURN",
	PASS:            "PASS",
	BREAK:           "BREAK",
	CONTINUE:        "CONTINUE",
	IMPORT:          "IMPORT",
	FROM:            "FROM",
	AS:              "AS",
	WITH:            "WITH",
	TRY:             "TRY",
	EXCEPT:          "EXCEPT",
	FINALLY:         "FINALLY",
	RAISE:           "RAISE",
	ASSERT:          "ASSERT",
	DEL:             "DEL",
	GLOBAL:          "GLOBAL",
	NONLOCAL:        "NONLOCAL",
	LAMBDA:          "LAMBDA",
	IN:              "IN",
	IS:              "IS",
	NONE:            "NONE",
	TRUE:            "TRUE",
	FALSE:           "FALSE",
	LPAREN:          "LPAREN",
	RPAREN:          "RPAREN",
	LBRACKET:        "LBRACKET",
	RBRACKET:        "RBRACKET",
	LBRACE:          "LBRACE",
	RBRACE:          "RBRACE",
	COMMA:           "COMMA",
	COLON:           "COLON",
	SEMI:            "SEMI",
	DOT:             "DOT",
	EQUALS:          "EQUALS",
	PLUS_EQ:         "PLUS_EQ",
	MINUS_EQ:        "MINUS_EQ",
	TIMES_EQ:        "TIMES_EQ",
	DIV_EQ:          "DIV_EQ",
	FLOOR_EQ:        "FLOOR_EQ",
	MOD_EQ:          "MOD_EQ",
	POW_EQ:          "POW_EQ",
	AMP_EQ:          "AMP_EQ",
	PIPE_EQ:         "PIPE_EQ",
	XOR_EQ:          "XOR_EQ",
	LSHIFT_EQ:       "LSHIFT_EQ",
	RSHIFT_EQ:       "RSHIFT_EQ",
	AT_EQ:           "AT_EQ",
	PLUS:            "PLUS",
	MINUS:           "MINUS",
	TIMES:           "TIMES",
	DIVIDE:          "DIVIDE",
	FLOORDIV:        "FLOORDIV",
	MOD:             "MOD",
	POW:             "POW",
	AT:              "AT",
	PIPE:            "PIPE",
	XOR:             "XOR",
	AMPERSAND:       "AMPERSAND",
	LSHIFT:          "LSHIFT",
	RSHIFT:          "RSHIFT",
	TILDE:           "TILDE",
	LT:              "LT",
	GT:              "GT",
	LE:              "LE",
	GE:              "GE",
	EQ_EQ:           "EQ_EQ",
	NOT_EQ:          "NOT_EQ",
	DOLLAR_NAME:     "DOLLAR_NAME",
	DOLLAR_LPAREN:   "DOLLAR_LPAREN",
	DOLLAR_LBRACKET: "DOLLAR_LBRACKET",
	DOLLAR_LBRACE:   "DOLLAR_LBRACE",
	BANG_LPAREN:     "BANG_LPAREN",
	BANG_LBRACKET:   "BANG_LBRACKET",
	AT_LPAREN:       "AT_LPAREN",
	ATDOLLAR_LPAREN: "ATDOLLAR_LPAREN",
	SEARCHPATH:      "SEARCHPATH",
	QUESTION:        "QUESTION",
	DOUBLE_QUESTION: "DOUBLE_QUESTION",
	BANG:            "BANG",
	IOREDIRECT:      "IOREDIRECT",
}

// String returns the name of the token kind.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "UNKNOWN"
	}
	return kindNames[k]
}

// Keywords maps reserved words to their token kinds.
var Keywords = map[string]Kind{
	"and":      AND,
	"or":       OR,
	"not":      NOT,
	"if":       IF,
	"elif":     ELIF,
	"else":     ELSE,
	"for":      FOR,
	"while":    WHILE,
	"def":      DEF,
	"class":    CLASS,
	"return":   RETURN,
	"pass":     PASS,
	"break":    BREAK,
	"continue": CONTINUE,
	"import":   IMPORT,
	"from":     FROM,
	"as":       AS,
	"with":     WITH,
	"try":      TRY,
	"except":   EXCEPT,
	"finally":  FINALLY,
	"raise":    RAISE,
	"assert":   ASSERT,
	"del":      DEL,
	"global":   GLOBAL,
	"nonlocal": NONLOCAL,
	"lambda":   LAMBDA,
	"in":       IN,
	"is":       IS,
	"None":     NONE,
	"True":     TRUE,
	"False":    FALSE,
}

// Position is a location in source text.
type Position struct {
	Line   int // 1-based line number
	Column int // 0-based byte column within the line
	Offset int // 0-based byte offset from the start of the source
}

// Token is a single lexical token. Text is always the exact source slice the
// token covers, except for synthesized tokens (NEWLINE at EOF, WS, ERROR)
// where it holds the synthesized text or the error message.
type Token struct {
	Kind Kind
	Text string
	Pos  Position
}

// End returns the position one past the last byte of the token. Tokens never
// span physical lines, so the end line equals the start line.
func (t Token) End() Position {
	return Position{
		Line:   t.Pos.Line,
		Column: t.Pos.Column + len(t.Text),
		Offset: t.Pos.Offset + len(t.Text),
	}
}

// String renders the token for debug output.
func (t Token) String() string {
	if t.Text == "" {
		return t.Kind.String()
	}
	return t.Kind.String() + "(" + t.Text + ")"
}

// IsAugAssign reports whether the kind is an augmented assignment operator.
func (k Kind) IsAugAssign() bool {
	return k >= PLUS_EQ && k <= AT_EQ
}

// IsKeyword reports whether the kind is a reserved word.
func (k Kind) IsKeyword() bool {
	return k >= AND && k <= FALSE
}
