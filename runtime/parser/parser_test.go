package parser

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/brine-lang/brine/core/ast"
	"github.com/brine-lang/brine/core/token"
)

// ignoreSpans drops positions from tree comparisons. Span accuracy has its
// own tests below.
var ignoreSpans = cmpopts.IgnoreTypes(ast.Span{})

func mustParse(t *testing.T, src string) []ast.Stmt {
	t.Helper()
	node, err := Parse(src)
	require.NoError(t, err, "parse %q", src)
	mod, ok := node.(*ast.Module)
	require.True(t, ok, "Parse returned %T, want *ast.Module", node)
	return mod.Body
}

func mustParseExpr(t *testing.T, src string) ast.Expr {
	t.Helper()
	body := mustParse(t, src)
	require.Len(t, body, 1, "statement count for %q", src)
	es, ok := body[0].(*ast.ExprStmt)
	require.True(t, ok, "statement is %T, want *ast.ExprStmt", body[0])
	return es.Value
}

func wantTree(t *testing.T, src string, want ast.Expr) {
	t.Helper()
	got := mustParseExpr(t, src)
	if diff := cmp.Diff(want, got, ignoreSpans); diff != "" {
		t.Errorf("tree mismatch for %q (-want +got):\n%s", src, diff)
	}
}

func wantStmt(t *testing.T, src string, want ast.Stmt) {
	t.Helper()
	body := mustParse(t, src)
	require.Len(t, body, 1, "statement count for %q", src)
	if diff := cmp.Diff(want, body[0], ignoreSpans); diff != "" {
		t.Errorf("tree mismatch for %q (-want +got):\n%s", src, diff)
	}
}

func load(id string) *ast.Name  { return &ast.Name{ID: id, Ctx: ast.Load} }
func store(id string) *ast.Name { return &ast.Name{ID: id, Ctx: ast.Store} }
func num(text string) *ast.Num  { return &ast.Num{Text: text} }
func lit(v string) *ast.Str     { return &ast.Str{Value: v} }

func binop(l ast.Expr, op ast.BinOpKind, r ast.Expr) *ast.BinOp {
	return &ast.BinOp{Left: l, Op: op, Right: r}
}

func TestOperatorPrecedence(t *testing.T) {
	tests := []struct {
		src  string
		want ast.Expr
	}{
		{
			src:  "1 + 2 * 3",
			want: binop(num("1"), ast.Add, binop(num("2"), ast.Mult, num("3"))),
		},
		{
			src:  "(1 + 2) * 3",
			want: binop(binop(num("1"), ast.Add, num("2")), ast.Mult, num("3")),
		},
		{
			src:  "1 - 2 - 3",
			want: binop(binop(num("1"), ast.Sub, num("2")), ast.Sub, num("3")),
		},
		{
			src:  "2 ** 3 ** 2",
			want: binop(num("2"), ast.Pow, binop(num("3"), ast.Pow, num("2"))),
		},
		{
			src:  "-x ** 2",
			want: &ast.UnaryOp{Op: ast.USub, Operand: binop(load("x"), ast.Pow, num("2"))},
		},
		{
			src:  "2 ** -x",
			want: binop(num("2"), ast.Pow, &ast.UnaryOp{Op: ast.USub, Operand: load("x")}),
		},
		{
			src: "a | b ^ c & d",
			want: binop(load("a"), ast.BitOr,
				binop(load("b"), ast.BitXor,
					binop(load("c"), ast.BitAnd, load("d")))),
		},
		{
			src:  "a << 2 + b",
			want: binop(load("a"), ast.LShift, binop(num("2"), ast.Add, load("b"))),
		},
		{
			src:  "a // b % c",
			want: binop(binop(load("a"), ast.FloorDiv, load("b")), ast.Mod, load("c")),
		},
		{
			src:  "m @ v",
			want: binop(load("m"), ast.MatMult, load("v")),
		},
		{
			src:  "~x * -y",
			want: binop(&ast.UnaryOp{Op: ast.Invert, Operand: load("x")}, ast.Mult, &ast.UnaryOp{Op: ast.USub, Operand: load("y")}),
		},
		{
			src: "not a or b and c",
			want: &ast.BoolOp{Op: ast.BoolOr, Values: []ast.Expr{
				&ast.UnaryOp{Op: ast.NotOp, Operand: load("a")},
				&ast.BoolOp{Op: ast.BoolAnd, Values: []ast.Expr{load("b"), load("c")}},
			}},
		},
		{
			src: "a or b or c",
			want: &ast.BoolOp{Op: ast.BoolOr, Values: []ast.Expr{
				load("a"), load("b"), load("c"),
			}},
		},
		{
			src: "1 < 2 <= 3",
			want: &ast.Compare{
				Left:        num("1"),
				Ops:         []ast.CmpOpKind{ast.Lt, ast.Le},
				Comparators: []ast.Expr{num("2"), num("3")},
			},
		},
		{
			src: "a is not b",
			want: &ast.Compare{
				Left:        load("a"),
				Ops:         []ast.CmpOpKind{ast.IsNot},
				Comparators: []ast.Expr{load("b")},
			},
		},
		{
			src: "a not in b",
			want: &ast.Compare{
				Left:        load("a"),
				Ops:         []ast.CmpOpKind{ast.NotIn},
				Comparators: []ast.Expr{load("b")},
			},
		},
		{
			src: "x in y != z",
			want: &ast.Compare{
				Left:        load("x"),
				Ops:         []ast.CmpOpKind{ast.In, ast.NotEq},
				Comparators: []ast.Expr{load("y"), load("z")},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			wantTree(t, tt.src, tt.want)
		})
	}
}

func TestAssignments(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want ast.Stmt
	}{
		{
			name: "plain",
			src:  "x = 1",
			want: &ast.Assign{Targets: []ast.Expr{store("x")}, Value: num("1")},
		},
		{
			name: "chained",
			src:  "a = b = 1",
			want: &ast.Assign{Targets: []ast.Expr{store("a"), store("b")}, Value: num("1")},
		},
		{
			name: "tuple swap",
			src:  "a, b = b, a",
			want: &ast.Assign{
				Targets: []ast.Expr{&ast.Tuple{Elts: []ast.Expr{store("a"), store("b")}}},
				Value:   &ast.Tuple{Elts: []ast.Expr{load("b"), load("a")}},
			},
		},
		{
			name: "trailing comma tuple",
			src:  "x = 1,",
			want: &ast.Assign{
				Targets: []ast.Expr{store("x")},
				Value:   &ast.Tuple{Elts: []ast.Expr{num("1")}},
			},
		},
		{
			name: "augmented add",
			src:  "x += 1",
			want: &ast.AugAssign{Target: store("x"), Op: ast.Add, Value: num("1")},
		},
		{
			name: "augmented floordiv",
			src:  "x //= 2",
			want: &ast.AugAssign{Target: store("x"), Op: ast.FloorDiv, Value: num("2")},
		},
		{
			name: "annotated with value",
			src:  "x: int = 5",
			want: &ast.AnnAssign{Target: store("x"), Annotation: load("int"), Value: num("5")},
		},
		{
			name: "annotated without value",
			src:  "x: int",
			want: &ast.AnnAssign{Target: store("x"), Annotation: load("int")},
		},
		{
			name: "attribute target",
			src:  "a.b = 1",
			want: &ast.Assign{
				Targets: []ast.Expr{&ast.Attribute{Value: load("a"), Attr: "b"}},
				Value:   num("1"),
			},
		},
		{
			name: "subscript target",
			src:  "a[0] = 1",
			want: &ast.Assign{
				Targets: []ast.Expr{&ast.Subscript{Value: load("a"), Index: num("0")}},
				Value:   num("1"),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantStmt(t, tt.src, tt.want)
		})
	}
}

func TestSimpleStatements(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want ast.Stmt
	}{
		{name: "pass", src: "pass", want: &ast.Pass{}},
		{name: "break", src: "break", want: &ast.Break{}},
		{name: "continue", src: "continue", want: &ast.Continue{}},
		{name: "bare return", src: "return", want: &ast.Return{}},
		{
			name: "return tuple",
			src:  "return 1, 2",
			want: &ast.Return{Value: &ast.Tuple{Elts: []ast.Expr{num("1"), num("2")}}},
		},
		{
			name: "del names",
			src:  "del x, y",
			want: &ast.Delete{Targets: []ast.Expr{
				&ast.Name{ID: "x", Ctx: ast.Del},
				&ast.Name{ID: "y", Ctx: ast.Del},
			}},
		},
		{name: "bare raise", src: "raise", want: &ast.Raise{}},
		{name: "raise value", src: "raise E", want: &ast.Raise{Exc: load("E")}},
		{
			name: "raise from",
			src:  "raise E from cause",
			want: &ast.Raise{Exc: load("E"), Cause: load("cause")},
		},
		{name: "assert", src: "assert ok", want: &ast.Assert{Test: load("ok")}},
		{
			name: "assert with message",
			src:  "assert ok, 'broken'",
			want: &ast.Assert{Test: load("ok"), Msg: lit("broken")},
		},
		{name: "global", src: "global a, b", want: &ast.Global{Names: []string{"a", "b"}}},
		{name: "nonlocal", src: "nonlocal n", want: &ast.Nonlocal{Names: []string{"n"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantStmt(t, tt.src, tt.want)
		})
	}
}

func TestSemicolonChains(t *testing.T) {
	body := mustParse(t, "x = 1; y = 2; z\n")
	require.Len(t, body, 3)
	require.IsType(t, &ast.Assign{}, body[0])
	require.IsType(t, &ast.Assign{}, body[1])
	require.IsType(t, &ast.ExprStmt{}, body[2])

	body = mustParse(t, "x = 1;\n")
	require.Len(t, body, 1)
}

func TestImports(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want ast.Stmt
	}{
		{
			name: "plain",
			src:  "import os",
			want: &ast.Import{Names: []ast.Alias{{Name: "os"}}},
		},
		{
			name: "dotted with alias",
			src:  "import os.path as p",
			want: &ast.Import{Names: []ast.Alias{{Name: "os.path", AsName: "p"}}},
		},
		{
			name: "several modules",
			src:  "import json, re",
			want: &ast.Import{Names: []ast.Alias{{Name: "json"}, {Name: "re"}}},
		},
		{
			name: "from import",
			src:  "from os import path",
			want: &ast.ImportFrom{Module: "os", Names: []ast.Alias{{Name: "path"}}},
		},
		{
			name: "from import parenthesized",
			src:  "from os import (path, sep,)",
			want: &ast.ImportFrom{Module: "os", Names: []ast.Alias{{Name: "path"}, {Name: "sep"}}},
		},
		{
			name: "relative import",
			src:  "from . import x",
			want: &ast.ImportFrom{Names: []ast.Alias{{Name: "x"}}, Level: 1},
		},
		{
			name: "relative dotted import",
			src:  "from ..pkg import y as z",
			want: &ast.ImportFrom{Module: "pkg", Names: []ast.Alias{{Name: "y", AsName: "z"}}, Level: 2},
		},
		{
			name: "star import",
			src:  "from os import *",
			want: &ast.ImportFrom{Module: "os", Names: []ast.Alias{{Name: "*"}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantStmt(t, tt.src, tt.want)
		})
	}
}

func TestIfElifElse(t *testing.T) {
	src := "if a:\n    x = 1\nelif b:\n    y = 2\nelse:\n    z = 3\n"
	want := &ast.If{
		Cond: load("a"),
		Body: []ast.Stmt{&ast.Assign{Targets: []ast.Expr{store("x")}, Value: num("1")}},
		Else: []ast.Stmt{&ast.If{
			Cond: load("b"),
			Body: []ast.Stmt{&ast.Assign{Targets: []ast.Expr{store("y")}, Value: num("2")}},
			Else: []ast.Stmt{&ast.Assign{Targets: []ast.Expr{store("z")}, Value: num("3")}},
		}},
	}
	wantStmt(t, src, want)
}

func TestInlineSuite(t *testing.T) {
	wantStmt(t, "if x: pass\n", &ast.If{Cond: load("x"), Body: []ast.Stmt{&ast.Pass{}}})
	wantStmt(t, "while x: a; b\n", &ast.While{
		Cond: load("x"),
		Body: []ast.Stmt{
			&ast.ExprStmt{Value: load("a")},
			&ast.ExprStmt{Value: load("b")},
		},
	})
}

func TestForLoop(t *testing.T) {
	src := "for k, v in items:\n    use(k)\nelse:\n    done()\n"
	want := &ast.For{
		Target: &ast.Tuple{Elts: []ast.Expr{store("k"), store("v")}},
		Iter:   load("items"),
		Body: []ast.Stmt{&ast.ExprStmt{Value: &ast.Call{
			Func: load("use"),
			Args: []ast.Expr{load("k")},
		}}},
		Else: []ast.Stmt{&ast.ExprStmt{Value: &ast.Call{Func: load("done")}}},
	}
	wantStmt(t, src, want)
}

func TestWhileElse(t *testing.T) {
	src := "while more:\n    step()\nelse:\n    finish()\n"
	want := &ast.While{
		Cond: load("more"),
		Body: []ast.Stmt{&ast.ExprStmt{Value: &ast.Call{Func: load("step")}}},
		Else: []ast.Stmt{&ast.ExprStmt{Value: &ast.Call{Func: load("finish")}}},
	}
	wantStmt(t, src, want)
}

func TestTryStatement(t *testing.T) {
	src := "try:\n" +
		"    risky()\n" +
		"except ValueError as e:\n" +
		"    handle(e)\n" +
		"except:\n" +
		"    pass\n" +
		"else:\n" +
		"    ok()\n" +
		"finally:\n" +
		"    done()\n"
	want := &ast.Try{
		Body: []ast.Stmt{&ast.ExprStmt{Value: &ast.Call{Func: load("risky")}}},
		Handlers: []ast.ExceptHandler{
			{
				Type: load("ValueError"),
				Name: "e",
				Body: []ast.Stmt{&ast.ExprStmt{Value: &ast.Call{
					Func: load("handle"),
					Args: []ast.Expr{load("e")},
				}}},
			},
			{
				Body: []ast.Stmt{&ast.Pass{}},
			},
		},
		Else:    []ast.Stmt{&ast.ExprStmt{Value: &ast.Call{Func: load("ok")}}},
		Finally: []ast.Stmt{&ast.ExprStmt{Value: &ast.Call{Func: load("done")}}},
	}
	wantStmt(t, src, want)
}

func TestTryFinallyOnly(t *testing.T) {
	src := "try:\n    work()\nfinally:\n    cleanup()\n"
	want := &ast.Try{
		Body:    []ast.Stmt{&ast.ExprStmt{Value: &ast.Call{Func: load("work")}}},
		Finally: []ast.Stmt{&ast.ExprStmt{Value: &ast.Call{Func: load("cleanup")}}},
	}
	wantStmt(t, src, want)
}

func TestWithStatement(t *testing.T) {
	src := "with open(f) as fh, lock:\n    read(fh)\n"
	want := &ast.With{
		Items: []ast.WithItem{
			{
				Context: &ast.Call{Func: load("open"), Args: []ast.Expr{load("f")}},
				Vars:    store("fh"),
			},
			{Context: load("lock")},
		},
		Body: []ast.Stmt{&ast.ExprStmt{Value: &ast.Call{
			Func: load("read"),
			Args: []ast.Expr{load("fh")},
		}}},
	}
	wantStmt(t, src, want)
}

func TestFuncDef(t *testing.T) {
	src := "def f(a, b=1, *rest, **kw):\n    return a\n"
	want := &ast.FuncDef{
		Name: "f",
		Params: ast.Params{
			Args:   []ast.Param{{Name: "a"}, {Name: "b", Default: num("1")}},
			Vararg: "rest",
			Kwarg:  "kw",
		},
		Body: []ast.Stmt{&ast.Return{Value: load("a")}},
	}
	wantStmt(t, src, want)
}

func TestDecorated(t *testing.T) {
	src := "@register\n@task(retries=3)\ndef f():\n    pass\n"
	want := &ast.FuncDef{
		Name: "f",
		Body: []ast.Stmt{&ast.Pass{}},
		Decorators: []ast.Expr{
			load("register"),
			&ast.Call{
				Func:     load("task"),
				Keywords: []ast.Keyword{{Name: "retries", Value: num("3")}},
			},
		},
	}
	wantStmt(t, src, want)
}

func TestClassDef(t *testing.T) {
	src := "class C(Base):\n    def m(self):\n        pass\n"
	want := &ast.ClassDef{
		Name:  "C",
		Bases: []ast.Expr{load("Base")},
		Body: []ast.Stmt{&ast.FuncDef{
			Name:   "m",
			Params: ast.Params{Args: []ast.Param{{Name: "self"}}},
			Body:   []ast.Stmt{&ast.Pass{}},
		}},
	}
	wantStmt(t, src, want)
}

func TestLambda(t *testing.T) {
	wantTree(t, "lambda x, y=2: x + y", &ast.Lambda{
		Params: ast.Params{Args: []ast.Param{{Name: "x"}, {Name: "y", Default: num("2")}}},
		Body:   binop(load("x"), ast.Add, load("y")),
	})
	wantTree(t, "lambda: 42", &ast.Lambda{Body: num("42")})
}

func TestTrailers(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want ast.Expr
	}{
		{
			name: "empty call",
			src:  "f()",
			want: &ast.Call{Func: load("f")},
		},
		{
			name: "positional and keyword",
			src:  "f(1, x=2)",
			want: &ast.Call{
				Func:     load("f"),
				Args:     []ast.Expr{num("1")},
				Keywords: []ast.Keyword{{Name: "x", Value: num("2")}},
			},
		},
		{
			name: "comparison stays positional",
			src:  "f(x == 2)",
			want: &ast.Call{
				Func: load("f"),
				Args: []ast.Expr{&ast.Compare{
					Left:        load("x"),
					Ops:         []ast.CmpOpKind{ast.Eq},
					Comparators: []ast.Expr{num("2")},
				}},
			},
		},
		{
			name: "attribute chain",
			src:  "a.b.c",
			want: &ast.Attribute{Value: &ast.Attribute{Value: load("a"), Attr: "b"}, Attr: "c"},
		},
		{
			name: "index",
			src:  "a[0]",
			want: &ast.Subscript{Value: load("a"), Index: num("0")},
		},
		{
			name: "slice",
			src:  "a[1:2]",
			want: &ast.Subscript{Value: load("a"), Index: &ast.Slice{Lo: num("1"), Hi: num("2")}},
		},
		{
			name: "slice with step",
			src:  "a[1:2:3]",
			want: &ast.Subscript{Value: load("a"), Index: &ast.Slice{Lo: num("1"), Hi: num("2"), Step: num("3")}},
		},
		{
			name: "open slice",
			src:  "a[:]",
			want: &ast.Subscript{Value: load("a"), Index: &ast.Slice{}},
		},
		{
			name: "step only",
			src:  "a[::2]",
			want: &ast.Subscript{Value: load("a"), Index: &ast.Slice{Step: num("2")}},
		},
		{
			name: "tuple index",
			src:  "a[x, y]",
			want: &ast.Subscript{Value: load("a"), Index: &ast.Tuple{Elts: []ast.Expr{load("x"), load("y")}}},
		},
		{
			name: "mixed chain",
			src:  "a.b(c)[0]",
			want: &ast.Subscript{
				Value: &ast.Call{
					Func: &ast.Attribute{Value: load("a"), Attr: "b"},
					Args: []ast.Expr{load("c")},
				},
				Index: num("0"),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantTree(t, tt.src, tt.want)
		})
	}
}

func TestHelpTrailers(t *testing.T) {
	wantTree(t, "x?", &ast.Call{
		Func: load(ast.FnHelp),
		Args: []ast.Expr{load("x")},
	})
	wantTree(t, "x??", &ast.Call{
		Func: load(ast.FnSuperhelp),
		Args: []ast.Expr{load("x")},
	})
	wantTree(t, "a.b?", &ast.Call{
		Func: load(ast.FnHelp),
		Args: []ast.Expr{&ast.Attribute{Value: load("a"), Attr: "b"}},
	})
	// help mid-chain keeps trailing trailers
	wantTree(t, "x?.keys()", &ast.Call{
		Func: &ast.Attribute{
			Value: &ast.Call{Func: load(ast.FnHelp), Args: []ast.Expr{load("x")}},
			Attr:  "keys",
		},
	})
}

func TestDisplays(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want ast.Expr
	}{
		{name: "empty tuple", src: "()", want: &ast.Tuple{}},
		{name: "grouping is transparent", src: "(x)", want: load("x")},
		{
			name: "one element tuple",
			src:  "(1,)",
			want: &ast.Tuple{Elts: []ast.Expr{num("1")}},
		},
		{name: "empty list", src: "[]", want: &ast.List{}},
		{
			name: "list",
			src:  "[1, 2, 3]",
			want: &ast.List{Elts: []ast.Expr{num("1"), num("2"), num("3")}},
		},
		{
			name: "list trailing comma",
			src:  "[1, 2,]",
			want: &ast.List{Elts: []ast.Expr{num("1"), num("2")}},
		},
		{name: "empty dict", src: "{}", want: &ast.Dict{}},
		{
			name: "dict",
			src:  "{'a': 1, 'b': 2}",
			want: &ast.Dict{
				Keys:   []ast.Expr{lit("a"), lit("b")},
				Values: []ast.Expr{num("1"), num("2")},
			},
		},
		{
			name: "set",
			src:  "{1, 2}",
			want: &ast.Set{Elts: []ast.Expr{num("1"), num("2")}},
		},
		{
			name: "nested",
			src:  "[(1, 2), {3: [4]}]",
			want: &ast.List{Elts: []ast.Expr{
				&ast.Tuple{Elts: []ast.Expr{num("1"), num("2")}},
				&ast.Dict{Keys: []ast.Expr{num("3")}, Values: []ast.Expr{&ast.List{Elts: []ast.Expr{num("4")}}}},
			}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantTree(t, tt.src, tt.want)
		})
	}
}

func TestNameConstants(t *testing.T) {
	wantTree(t, "None", &ast.NameConst{Value: "None"})
	wantTree(t, "True", &ast.NameConst{Value: "True"})
	wantTree(t, "x is None", &ast.Compare{
		Left:        load("x"),
		Ops:         []ast.CmpOpKind{ast.Is},
		Comparators: []ast.Expr{&ast.NameConst{Value: "None"}},
	})
}

func TestStringLiterals(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{name: "plain", src: `"hello"`, want: "hello"},
		{name: "single quotes", src: `'hi'`, want: "hi"},
		{name: "implicit concat", src: `'a' "b"`, want: "ab"},
		{name: "escapes", src: `"a\tb\n"`, want: "a\tb\n"},
		{name: "escaped quote", src: `"say \"hi\""`, want: `say "hi"`},
		{name: "raw keeps backslashes", src: `r"a\nb"`, want: `a\nb`},
		{name: "unknown escape kept", src: `"a\qb"`, want: `a\qb`},
		{name: "hex escape", src: `"\x41"`, want: "A"},
		{name: "bytes treated as text", src: `b"raw"`, want: "raw"},
		{name: "triple quoted", src: "\"\"\"two\nlines\"\"\"", want: "two\nlines"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantTree(t, tt.src, lit(tt.want))
		})
	}
}

func TestDecodeString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`"abc"`, "abc"},
		{`'abc'`, "abc"},
		{`r'a\tb'`, `a\tb`},
		{`R"x\\y"`, `x\\y`},
		{`"a\\b"`, `a\b`},
		{`"'"`, "'"},
		{`''`, ""},
		{`"\x4z"`, `\x4z`},
		{"'''a'b'''", "a'b"},
	}
	for _, tt := range tests {
		if got := decodeString(tt.in); got != tt.want {
			t.Errorf("decodeString(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHostEnvAtoms(t *testing.T) {
	wantTree(t, "$HOME", &ast.Subscript{
		Value: load(ast.FnEnv),
		Index: lit("HOME"),
	})
	wantTree(t, "${'HO' + 'ME'}", &ast.Subscript{
		Value: load(ast.FnEnv),
		Index: binop(lit("HO"), ast.Add, lit("ME")),
	})
	wantStmt(t, "$DEBUG = 1", &ast.Assign{
		Targets: []ast.Expr{&ast.Subscript{Value: load(ast.FnEnv), Index: lit("DEBUG")}},
		Value:   num("1"),
	})
}

func TestHostSearchPath(t *testing.T) {
	wantTree(t, "`core.*`", &ast.Call{
		Func: load(ast.FnPathSearch),
		Args: []ast.Expr{
			load(ast.FnRegexSearch),
			lit("core.*"),
			&ast.NameConst{Value: "True"},
		},
	})
	wantTree(t, "g`*.go`", &ast.Call{
		Func: load(ast.FnPathSearch),
		Args: []ast.Expr{
			load(ast.FnGlobSearch),
			lit("*.go"),
			&ast.NameConst{Value: "True"},
		},
	})
}

func TestParseModes(t *testing.T) {
	node, err := Parse("x = 1\ny = 2\n", WithMode(ModeSingle))
	require.NoError(t, err)
	inter, ok := node.(*ast.Interactive)
	require.True(t, ok, "got %T", node)
	require.Len(t, inter.Body, 2)

	node, err = Parse("x + 1", WithMode(ModeEval))
	require.NoError(t, err)
	expr, ok := node.(*ast.Expression)
	require.True(t, ok, "got %T", node)
	if diff := cmp.Diff(binop(load("x"), ast.Add, num("1")), expr.Body, ignoreSpans); diff != "" {
		t.Errorf("eval tree mismatch (-want +got):\n%s", diff)
	}

	_, err = Parse("x = 1", WithMode(ModeEval))
	require.Error(t, err)

	_, err = Parse("1\n2\n", WithMode(ModeEval))
	require.Error(t, err)
}

func TestBlankAndCommentLines(t *testing.T) {
	src := "# header\n\nx = 1\n\n# trailing\n\ny = 2\n"
	body := mustParse(t, src)
	require.Len(t, body, 2)
}

func TestSpans(t *testing.T) {
	pos := func(line, col, off int) token.Position {
		return token.Position{Line: line, Column: col, Offset: off}
	}

	t.Run("binary expression", func(t *testing.T) {
		e := mustParseExpr(t, "x + y\n")
		b, ok := e.(*ast.BinOp)
		require.True(t, ok)
		require.Equal(t, ast.Span{Start: pos(1, 0, 0), End: pos(1, 5, 5)}, b.Span)
		require.Equal(t, ast.Span{Start: pos(1, 0, 0), End: pos(1, 1, 1)}, b.Left.(*ast.Name).Span)
		require.Equal(t, ast.Span{Start: pos(1, 4, 4), End: pos(1, 5, 5)}, b.Right.(*ast.Name).Span)
	})

	t.Run("multi line statement", func(t *testing.T) {
		body := mustParse(t, "if x:\n    pass\n")
		st := body[0].(*ast.If)
		require.Equal(t, pos(1, 0, 0), st.Span.Start)
		require.Equal(t, pos(2, 8, 14), st.Span.End)
	})

	t.Run("subprocess atom covers markers", func(t *testing.T) {
		e := mustParseExpr(t, "$(ls -l)\n")
		call, ok := e.(*ast.Call)
		require.True(t, ok)
		require.Equal(t, ast.Span{Start: pos(1, 0, 0), End: pos(1, 8, 8)}, call.Span)
	})
}

// TestTruncatedInputsFailCleanly feeds every prefix of a nested capture to
// the parser. Truncation may make the input invalid, but the failure must be
// an ordinary syntax error with a location, never a panic.
func TestTruncatedInputsFailCleanly(t *testing.T) {
	input := "$(ls $(ls) -l)\n"
	for i := 0; i <= len(input); i++ {
		prefix := input[:i]
		_, err := Parse(prefix)
		if err == nil {
			continue
		}
		var se *SyntaxError
		require.True(t, errors.As(err, &se), "Parse(%q) returned %T: %v", prefix, err, err)
		require.GreaterOrEqual(t, se.Loc.Line, 1, "Parse(%q) error without a line", prefix)
	}
}
