// Package ast defines the syntax tree produced by the brine frontend.
//
// The tree is a closed set of node types: every statement implements Stmt and
// every expression implements Expr through unexported marker methods, so a
// type switch over either interface can be exhaustive. Subprocess invocations
// never get their own node types. They are synthesized as ordinary Call nodes
// to a fixed set of runtime function names (see subproc.go), which keeps them
// opaque to everything downstream of the frontend.
package ast

import "github.com/brine-lang/brine/core/token"

// Span is the source range a node covers, in original-source coordinates.
// End is exclusive. After a subtree is rebased into another source string the
// byte offsets are no longer meaningful; only Line and Column are maintained.
type Span struct {
	Start token.Position
	End   token.Position
}

// Bounds returns the span itself so that embedding Span satisfies Node.
func (s Span) Bounds() Span { return s }

// Node is implemented by every syntax tree node.
type Node interface {
	Bounds() Span
}

// Stmt is implemented by all statement nodes.
type Stmt interface {
	Node
	stmt()
}

// Expr is implemented by all expression nodes.
type Expr interface {
	Node
	expr()
}

//
// Roots, one per parse mode
//

// Module is the root for exec mode: a whole source file.
type Module struct {
	Span
	Body []Stmt
}

// Interactive is the root for single mode: one interactive input.
type Interactive struct {
	Span
	Body []Stmt
}

// Expression is the root for eval mode: a single expression.
type Expression struct {
	Span
	Body Expr
}

//
// Statements
//

// ExprStmt is an expression evaluated for effect at statement position. This
// is the node the reclassifier inspects for unresolved command-like names.
type ExprStmt struct {
	Span
	Value Expr
}

// Assign is one or more chained assignments: a = b = value.
type Assign struct {
	Span
	Targets []Expr
	Value   Expr
}

// AugAssign is an augmented assignment: target op= value.
type AugAssign struct {
	Span
	Target Expr
	Op     BinOpKind
	Value  Expr
}

// AnnAssign is an annotated assignment: target : annotation = value.
// Value may be nil.
type AnnAssign struct {
	Span
	Target     Expr
	Annotation Expr
	Value      Expr
}

// If covers if/elif/else chains; elif branches parse as a nested If in Else.
type If struct {
	Span
	Cond Expr
	Body []Stmt
	Else []Stmt
}

// While is a while loop with an optional else suite.
type While struct {
	Span
	Cond Expr
	Body []Stmt
	Else []Stmt
}

// For is a for loop with an optional else suite.
type For struct {
	Span
	Target Expr
	Iter   Expr
	Body   []Stmt
	Else   []Stmt
}

// FuncDef is a function definition.
type FuncDef struct {
	Span
	Name       string
	Params     Params
	Body       []Stmt
	Decorators []Expr
}

// ClassDef is a class definition.
type ClassDef struct {
	Span
	Name       string
	Bases      []Expr
	Body       []Stmt
	Decorators []Expr
}

// Return is a return statement. Value may be nil.
type Return struct {
	Span
	Value Expr
}

// Pass is a pass statement.
type Pass struct {
	Span
}

// Break is a break statement.
type Break struct {
	Span
}

// Continue is a continue statement.
type Continue struct {
	Span
}

// Delete is a del statement.
type Delete struct {
	Span
	Targets []Expr
}

// Raise is a raise statement: raise Exc from Cause. Both may be nil.
type Raise struct {
	Span
	Exc   Expr
	Cause Expr
}

// Assert is an assert statement. Msg may be nil.
type Assert struct {
	Span
	Test Expr
	Msg  Expr
}

// Alias is one name binding in an import statement.
type Alias struct {
	Name   string
	AsName string // empty when no as-clause
}

// Bound returns the name the alias binds in the current scope.
func (a Alias) Bound() string {
	if a.AsName != "" {
		return a.AsName
	}
	return a.Name
}

// Import is an import statement.
type Import struct {
	Span
	Names []Alias
}

// ImportFrom is a from ... import statement. Level counts leading dots.
type ImportFrom struct {
	Span
	Module string
	Names  []Alias
	Level  int
}

// Global is a global declaration.
type Global struct {
	Span
	Names []string
}

// Nonlocal is a nonlocal declaration.
type Nonlocal struct {
	Span
	Names []string
}

// WithItem is one context manager clause in a with statement. Vars may be nil.
type WithItem struct {
	Context Expr
	Vars    Expr
}

// With is a with statement.
type With struct {
	Span
	Items []WithItem
	Body  []Stmt
}

// ExceptHandler is one except clause. Type may be nil (bare except), Name may
// be empty (no as-clause).
type ExceptHandler struct {
	Span
	Type Expr
	Name string
	Body []Stmt
}

// Try is a try statement.
type Try struct {
	Span
	Body     []Stmt
	Handlers []ExceptHandler
	Else     []Stmt
	Finally  []Stmt
}

//
// Expressions
//

// NameCtx records how a Name is used.
type NameCtx int

const (
	Load NameCtx = iota
	Store
	Del
)

func (c NameCtx) String() string {
	switch c {
	case Load:
		return "Load"
	case Store:
		return "Store"
	case Del:
		return "Del"
	}
	return "NameCtx?"
}

// Name is an identifier reference.
type Name struct {
	Span
	ID  string
	Ctx NameCtx
}

// Num is a numeric literal, kept as source text.
type Num struct {
	Span
	Text string
}

// Str is a string literal with escapes decoded.
type Str struct {
	Span
	Value string
}

// NameConst is one of None, True, False.
type NameConst struct {
	Span
	Value string
}

// Tuple is a tuple display or tuple assignment target.
type Tuple struct {
	Span
	Elts []Expr
}

// List is a list display or list assignment target.
type List struct {
	Span
	Elts []Expr
}

// Set is a set display.
type Set struct {
	Span
	Elts []Expr
}

// Dict is a dict display. Keys and Values run in parallel.
type Dict struct {
	Span
	Keys   []Expr
	Values []Expr
}

// BoolOpKind is the operator of a BoolOp.
type BoolOpKind int

const (
	BoolAnd BoolOpKind = iota
	BoolOr
)

func (k BoolOpKind) String() string {
	if k == BoolAnd {
		return "and"
	}
	return "or"
}

// BoolOp is an and/or chain with two or more operands.
type BoolOp struct {
	Span
	Op     BoolOpKind
	Values []Expr
}

// UnaryOpKind is the operator of a UnaryOp.
type UnaryOpKind int

const (
	UAdd UnaryOpKind = iota
	USub
	Invert
	NotOp
)

func (k UnaryOpKind) String() string {
	switch k {
	case UAdd:
		return "+"
	case USub:
		return "-"
	case Invert:
		return "~"
	case NotOp:
		return "not"
	}
	return "UnaryOpKind?"
}

// UnaryOp is a unary operation.
type UnaryOp struct {
	Span
	Op      UnaryOpKind
	Operand Expr
}

// BinOpKind is the operator of a BinOp or AugAssign.
type BinOpKind int

const (
	Add BinOpKind = iota
	Sub
	Mult
	Div
	FloorDiv
	Mod
	Pow
	MatMult
	BitOr
	BitXor
	BitAnd
	LShift
	RShift
)

func (k BinOpKind) String() string {
	switch k {
	case Add:
		return "+"
	case Sub:
		return "-"
	case Mult:
		return "*"
	case Div:
		return "/"
	case FloorDiv:
		return "//"
	case Mod:
		return "%"
	case Pow:
		return "**"
	case MatMult:
		return "@"
	case BitOr:
		return "|"
	case BitXor:
		return "^"
	case BitAnd:
		return "&"
	case LShift:
		return "<<"
	case RShift:
		return ">>"
	}
	return "BinOpKind?"
}

// BinOp is a binary operation.
type BinOp struct {
	Span
	Left  Expr
	Op    BinOpKind
	Right Expr
}

// CmpOpKind is one comparison operator in a Compare chain.
type CmpOpKind int

const (
	Lt CmpOpKind = iota
	Le
	Gt
	Ge
	Eq
	NotEq
	In
	NotIn
	Is
	IsNot
)

func (k CmpOpKind) String() string {
	switch k {
	case Lt:
		return "<"
	case Le:
		return "<="
	case Gt:
		return ">"
	case Ge:
		return ">="
	case Eq:
		return "=="
	case NotEq:
		return "!="
	case In:
		return "in"
	case NotIn:
		return "not in"
	case Is:
		return "is"
	case IsNot:
		return "is not"
	}
	return "CmpOpKind?"
}

// Compare is a comparison chain: Left Ops[0] Comparators[0] Ops[1] ...
type Compare struct {
	Span
	Left        Expr
	Ops         []CmpOpKind
	Comparators []Expr
}

// Keyword is one name=value argument in a call.
type Keyword struct {
	Name  string
	Value Expr
}

// Call is a function call. Subprocess invocations are Calls whose Func is a
// Name holding one of the runtime function names in subproc.go.
type Call struct {
	Span
	Func     Expr
	Args     []Expr
	Keywords []Keyword
}

// Attribute is a dotted attribute access.
type Attribute struct {
	Span
	Value Expr
	Attr  string
}

// Subscript is an index or slice access.
type Subscript struct {
	Span
	Value Expr
	Index Expr
}

// Slice is the lo:hi:step form inside a Subscript. Any part may be nil.
type Slice struct {
	Span
	Lo   Expr
	Hi   Expr
	Step Expr
}

// Param is one formal parameter. Default may be nil.
type Param struct {
	Name    string
	Default Expr
}

// Params is a parameter list for def and lambda.
type Params struct {
	Args   []Param
	Vararg string // *name, empty when absent
	Kwarg  string // **name, empty when absent
}

// Names returns every name the parameter list binds.
func (p Params) Names() []string {
	names := make([]string, 0, len(p.Args)+2)
	for _, a := range p.Args {
		names = append(names, a.Name)
	}
	if p.Vararg != "" {
		names = append(names, p.Vararg)
	}
	if p.Kwarg != "" {
		names = append(names, p.Kwarg)
	}
	return names
}

// Lambda is a lambda expression.
type Lambda struct {
	Span
	Params Params
	Body   Expr
}

//
// Marker methods closing the unions
//

func (*ExprStmt) stmt()   {}
func (*Assign) stmt()     {}
func (*AugAssign) stmt()  {}
func (*AnnAssign) stmt()  {}
func (*If) stmt()         {}
func (*While) stmt()      {}
func (*For) stmt()        {}
func (*FuncDef) stmt()    {}
func (*ClassDef) stmt()   {}
func (*Return) stmt()     {}
func (*Pass) stmt()       {}
func (*Break) stmt()      {}
func (*Continue) stmt()   {}
func (*Delete) stmt()     {}
func (*Raise) stmt()      {}
func (*Assert) stmt()     {}
func (*Import) stmt()     {}
func (*ImportFrom) stmt() {}
func (*Global) stmt()     {}
func (*Nonlocal) stmt()   {}
func (*With) stmt()       {}
func (*Try) stmt()        {}

func (*Name) expr()      {}
func (*Num) expr()       {}
func (*Str) expr()       {}
func (*NameConst) expr() {}
func (*Tuple) expr()     {}
func (*List) expr()      {}
func (*Set) expr()       {}
func (*Dict) expr()      {}
func (*BoolOp) expr()    {}
func (*UnaryOp) expr()   {}
func (*BinOp) expr()     {}
func (*Compare) expr()   {}
func (*Call) expr()      {}
func (*Attribute) expr() {}
func (*Subscript) expr() {}
func (*Slice) expr()     {}
func (*Lambda) expr()    {}
