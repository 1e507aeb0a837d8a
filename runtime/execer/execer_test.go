package execer

import (
	"bytes"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/brine-lang/brine/core/ast"
	"github.com/brine-lang/brine/core/token"
	"github.com/brine-lang/brine/runtime/parser"
)

var ignoreSpans = cmpopts.IgnoreTypes(ast.Span{})

func load(id string) *ast.Name  { return &ast.Name{ID: id, Ctx: ast.Load} }
func store(id string) *ast.Name { return &ast.Name{ID: id, Ctx: ast.Store} }
func num(text string) *ast.Num  { return &ast.Num{Text: text} }
func lit(v string) *ast.Str     { return &ast.Str{Value: v} }

func expand(word string) *ast.Call {
	return &ast.Call{Func: load(ast.FnExpandPath), Args: []ast.Expr{lit(word)}}
}

func stage(words ...string) *ast.List {
	elts := make([]ast.Expr, len(words))
	for i, w := range words {
		elts[i] = expand(w)
	}
	return &ast.List{Elts: elts}
}

// runHidden builds the call a rewritten bare command parses to.
func runHidden(raw string, words ...string) *ast.Call {
	return &ast.Call{
		Func: load(ast.FnRunHidden),
		Args: []ast.Expr{lit(raw), stage(words...)},
	}
}

func parseBody(t *testing.T, e *Execer, src string, ctx map[string]bool) []ast.Stmt {
	t.Helper()
	node, err := e.Parse(src, ctx, parser.ModeExec)
	require.NoError(t, err, "parse %q", src)
	mod, ok := node.(*ast.Module)
	require.True(t, ok, "Parse returned %T, want *ast.Module", node)
	return mod.Body
}

func wantBody(t *testing.T, src string, ctx map[string]bool, want []ast.Stmt) {
	t.Helper()
	body := parseBody(t, New(), src, ctx)
	if diff := cmp.Diff(want, body, ignoreSpans); diff != "" {
		t.Errorf("tree mismatch for %q (-want +got):\n%s", src, diff)
	}
}

func TestParseHostOnly(t *testing.T) {
	src := "x = 1\ny = x + 1\n"
	e := New()

	_, rewritten, err := e.ParseCtxFree(src, parser.ModeExec)
	require.NoError(t, err)
	require.Equal(t, src, rewritten, "host code must come back untouched")

	wantBody(t, src, nil, []ast.Stmt{
		&ast.Assign{Targets: []ast.Expr{store("x")}, Value: num("1")},
		&ast.Assign{
			Targets: []ast.Expr{store("y")},
			Value:   &ast.BinOp{Left: load("x"), Op: ast.Add, Right: num("1")},
		},
	})
}

func TestParseRewritesBareCommand(t *testing.T) {
	e := New()
	_, rewritten, err := e.ParseCtxFree("echo hello\n", parser.ModeExec)
	require.NoError(t, err)
	require.Equal(t, "![echo hello]\n", rewritten)

	wantBody(t, "echo hello\n", nil, []ast.Stmt{
		&ast.ExprStmt{Value: runHidden("echo hello", "echo", "hello")},
	})
}

func TestParseCommandChain(t *testing.T) {
	wantBody(t, "ls && echo done\n", nil, []ast.Stmt{
		&ast.ExprStmt{Value: &ast.BoolOp{
			Op: ast.BoolAnd,
			Values: []ast.Expr{
				runHidden("ls", "ls"),
				runHidden("echo done", "echo", "done"),
			},
		}},
	})
}

func TestParseSemicolonChain(t *testing.T) {
	e := New()
	_, rewritten, err := e.ParseCtxFree("ls; echo hi\n", parser.ModeExec)
	require.NoError(t, err)
	require.Equal(t, "ls; ![echo hi]\n", rewritten)

	wantBody(t, "ls; echo hi\n", nil, []ast.Stmt{
		&ast.ExprStmt{Value: runHidden("ls", "ls")},
		&ast.ExprStmt{Value: runHidden("echo hi", "echo", "hi")},
	})
}

func TestParseParenthesizedCommand(t *testing.T) {
	e := New()
	_, rewritten, err := e.ParseCtxFree("(echo hi)\n", parser.ModeExec)
	require.NoError(t, err)
	require.Equal(t, "(![echo hi])\n", rewritten)

	wantBody(t, "(echo hi)\n", nil, []ast.Stmt{
		&ast.ExprStmt{Value: runHidden("echo hi", "echo", "hi")},
	})
}

func TestParseMultilineContinuation(t *testing.T) {
	src := "echo one \\\n two\n"
	e := New()
	_, rewritten, err := e.ParseCtxFree(src, parser.ModeExec)
	require.NoError(t, err)
	require.Equal(t, "![echo one\\\n two]\n", rewritten)

	wantBody(t, src, nil, []ast.Stmt{
		&ast.ExprStmt{Value: runHidden("echo one\\\n two", "echo", "one", "two")},
	})
}

func TestParseKeepsExplicitSubproc(t *testing.T) {
	e := New()
	_, rewritten, err := e.ParseCtxFree("![ls]\n", parser.ModeExec)
	require.NoError(t, err)
	require.Equal(t, "![ls]\n", rewritten)

	wantBody(t, "![ls]\n", nil, []ast.Stmt{
		&ast.ExprStmt{Value: runHidden("ls", "ls")},
	})
}

func TestParseOtherModes(t *testing.T) {
	t.Run("eval rewrites to an expression", func(t *testing.T) {
		node, err := New().Parse("echo hi", nil, parser.ModeEval)
		require.NoError(t, err)
		expr, ok := node.(*ast.Expression)
		require.True(t, ok, "got %T", node)
		if diff := cmp.Diff(ast.Expr(runHidden("echo hi", "echo", "hi")), expr.Body, ignoreSpans); diff != "" {
			t.Errorf("eval tree mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("single keeps the interactive root", func(t *testing.T) {
		node, err := New().Parse("echo hi\n", nil, parser.ModeSingle)
		require.NoError(t, err)
		inter, ok := node.(*ast.Interactive)
		require.True(t, ok, "got %T", node)
		require.Len(t, inter.Body, 1)
		want := []ast.Stmt{&ast.ExprStmt{Value: runHidden("echo hi", "echo", "hi")}}
		if diff := cmp.Diff(want, inter.Body, ignoreSpans); diff != "" {
			t.Errorf("single tree mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestUnmatchedOpenerSurfacesOriginal(t *testing.T) {
	e := New(WithFilename("repl"))
	_, err := e.Parse("x = (\n", nil, parser.ModeExec)
	require.Error(t, err)
	var se *parser.SyntaxError
	require.True(t, errors.As(err, &se), "error is %T", err)
	require.Equal(t, `Unmatched "(" at line 1, column 4`, se.Message)
	require.Equal(t, 1, se.Loc.Line)
	require.Equal(t, 4, se.Loc.Column)
	require.Equal(t, "repl", se.Filename)
}

func TestRetriesStopWithoutProgress(t *testing.T) {
	// every wrap fails at the same spot, so the loop must give up and
	// surface the first failure in the source's own coordinates
	_, err := New().Parse("invalid((((\n", nil, parser.ModeExec)
	require.Error(t, err)
	var se *parser.SyntaxError
	require.True(t, errors.As(err, &se), "error is %T", err)
	require.Equal(t, `Unmatched "(" at line 1, column 10`, se.Message)
	require.Equal(t, 1, se.Loc.Line)
	require.Equal(t, 10, se.Loc.Column)
}

func TestUnbalancedCloserGoesGreedy(t *testing.T) {
	_, err := New().Parse("improt)\n", nil, parser.ModeExec)
	require.Error(t, err)
	var se *parser.SyntaxError
	require.True(t, errors.As(err, &se), "error is %T", err)
	require.Equal(t, `Unmatched ")" at line 1, column 6`, se.Message)
	require.Equal(t, 6, se.Loc.Column)
}

// TestBlankEvalInputSurfacesError feeds eval mode inputs with nothing to
// evaluate: empty, whitespace-only, comment-only, and continuation-only
// sources. Deleting their blank lines can never make them parse, so the loop
// must give up with the original error instead of retrying the same empty
// input forever. The deadline catches a regression as a failure rather than
// a hung test run.
func TestBlankEvalInputSurfacesError(t *testing.T) {
	inputs := []string{"", "\n", "   \n", "# comment\n", "\\\n"}
	for _, src := range inputs {
		t.Run(strconv.Quote(src), func(t *testing.T) {
			ch := make(chan error, 1)
			go func() {
				_, err := New().Parse(src, nil, parser.ModeEval)
				ch <- err
			}()
			select {
			case err := <-ch:
				require.Error(t, err)
				var se *parser.SyntaxError
				require.True(t, errors.As(err, &se), "error is %T", err)
				require.GreaterOrEqual(t, se.Loc.Line, 1)
			case <-time.After(5 * time.Second):
				t.Fatalf("Parse(%q) did not terminate", src)
			}
		})
	}
}

func TestBlankInputOtherModes(t *testing.T) {
	// exec and single accept an empty program; only eval demands a value
	for _, mode := range []parser.Mode{parser.ModeExec, parser.ModeSingle} {
		for _, src := range []string{"", "\n", "# comment\n"} {
			_, err := New().Parse(src, nil, mode)
			require.NoError(t, err, "mode %s, src %q", mode, src)
		}
	}
}

func TestIndentationErrorPassesThrough(t *testing.T) {
	_, err := New().Parse("if x:\npass\n", map[string]bool{"x": true}, parser.ModeExec)
	require.Error(t, err)
	var ie *parser.IndentationError
	require.True(t, errors.As(err, &ie), "error is %T", err)
	require.Equal(t, "expected an indented block", ie.Message)
	require.Equal(t, 2, ie.Loc.Line)
}

func TestRewriteCache(t *testing.T) {
	t.Run("successful rewrites are memoized", func(t *testing.T) {
		e := New()
		_, rewritten, err := e.ParseCtxFree("echo hi\n", parser.ModeExec)
		require.NoError(t, err)
		require.Equal(t, "![echo hi]\n", rewritten)

		cached, ok := e.cache.lookup("echo hi\n", parser.ModeExec)
		require.True(t, ok)
		require.Equal(t, "![echo hi]\n", cached)

		_, again, err := e.ParseCtxFree("echo hi\n", parser.ModeExec)
		require.NoError(t, err)
		require.Equal(t, rewritten, again)
	})

	t.Run("modes are cached separately", func(t *testing.T) {
		e := New()
		_, _, err := e.ParseCtxFree("echo hi\n", parser.ModeExec)
		require.NoError(t, err)
		_, ok := e.cache.lookup("echo hi\n", parser.ModeSingle)
		require.False(t, ok)
	})

	t.Run("stale entries heal on reparse", func(t *testing.T) {
		e := New()
		e.cache.store("zz\n", parser.ModeExec, "((x\n")

		_, rewritten, err := e.ParseCtxFree("zz\n", parser.ModeExec)
		require.NoError(t, err)
		require.Equal(t, "zz\n", rewritten)

		cached, ok := e.cache.lookup("zz\n", parser.ModeExec)
		require.True(t, ok)
		require.Equal(t, "zz\n", cached)
	})
}

func TestFailingWord(t *testing.T) {
	pos := func(line, col int) token.Position { return token.Position{Line: line, Column: col} }
	require.Equal(t, "yy1_z", failingWord("x = yy1_z + 1\n", pos(1, 5)))
	require.Equal(t, "", failingWord("f(\n", pos(1, 1)), "punctuation is not a word")
	require.Equal(t, "", failingWord("x 123\n", pos(1, 2)), "numbers are not suggested")
	require.Equal(t, "", failingWord("x\n", pos(5, 0)), "location past the input")
}

func TestSuggestNames(t *testing.T) {
	t.Run("ranked by distance", func(t *testing.T) {
		got := suggestNames("prnt", []string{"print", "printf", "zebra"})
		require.Equal(t, []string{"print", "printf"}, got)
	})

	t.Run("at most three", func(t *testing.T) {
		got := suggestNames("a", []string{"aa", "ab", "ac", "ad"})
		require.Len(t, got, 3)
	})

	t.Run("transpositions fall back to edit distance", func(t *testing.T) {
		got := suggestNames("improt", []string{"import", "print", "zebra"})
		require.Equal(t, []string{"import"}, got)
	})
}

func TestAttachSuggestions(t *testing.T) {
	e := New()
	synErr := &parser.SyntaxError{
		Message: `unexpected token "os"`,
		Loc:     token.Position{Line: 1, Column: 0},
		Input:   "improt os\n",
	}
	e.attachSuggestions(synErr, map[string]bool{"osname": true})
	require.Equal(t, []string{"import"}, synErr.Suggestions)

	// a word already bound in the caller's scope needs no suggestion
	bound := &parser.SyntaxError{
		Message: `unexpected token "os"`,
		Loc:     token.Position{Line: 1, Column: 0},
		Input:   "improt os\n",
	}
	e.attachSuggestions(bound, map[string]bool{"improt": true})
	require.Empty(t, bound.Suggestions)
}

func TestDebugLogging(t *testing.T) {
	var buf bytes.Buffer
	e := New(WithDebugLevel(1), WithLogOutput(&buf), WithFilename("repl"))

	_, err := e.Parse("echo hi\n", nil, parser.ModeExec)
	require.NoError(t, err)
	require.Contains(t, buf.String(), "wrap line")

	buf.Reset()
	_, err = e.Parse("ls -l\n", nil, parser.ModeExec)
	require.NoError(t, err)
	require.Contains(t, buf.String(), "reclassify")

	var quiet bytes.Buffer
	silent := New(WithLogOutput(&quiet))
	_, err = silent.Parse("echo hi\n", nil, parser.ModeExec)
	require.NoError(t, err)
	require.Empty(t, quiet.String())
}
