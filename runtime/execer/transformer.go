package execer

import (
	"log/slog"
	"strings"

	"github.com/brine-lang/brine/core/ast"
	"github.com/brine-lang/brine/runtime/parser"
)

// ctxTransformer is the scope-aware reclassification pass. It walks a tree
// the strict grammar accepted and rewrites statements that reference no name
// bound in any visible scope into subprocess calls, reparsing their source
// spans through the command sub-grammar. Scope is a stack of name sets: the
// caller's bindings at the bottom, module-level bindings above them, then one
// frame per enclosing function or class body.
//
// The pass is deliberately forgiving. When a span fails to reparse as a
// command, the original node stays; when a name cannot be resolved to a
// binding statement, the statement is left alone rather than guessed at.
type ctxTransformer struct {
	filename   string
	debugLevel int
	logger     *slog.Logger

	lines    []string
	contexts []map[string]bool
	mode     parser.Mode
}

// ctxVisit runs the pass over tree, which must have been parsed from input.
// ctx is the base scope: every name bound in the caller's world.
func (t *ctxTransformer) ctxVisit(tree ast.Node, input string, ctx map[string]bool, mode parser.Mode) ast.Node {
	t.lines = strings.Split(input, "\n")
	t.contexts = []map[string]bool{ctx, make(map[string]bool)}
	t.mode = mode
	tree = t.visit(tree)
	t.lines = nil
	t.contexts = nil
	return tree
}

func (t *ctxTransformer) ctxAdd(name string) {
	if name == "" {
		return
	}
	t.contexts[len(t.contexts)-1][name] = true
}

func (t *ctxTransformer) ctxRemove(name string) {
	for i := len(t.contexts) - 1; i >= 0; i-- {
		if t.contexts[i][name] {
			delete(t.contexts[i], name)
			return
		}
	}
}

// isInScope reports whether every name the subtree loads, and does not itself
// store, resolves in some visible scope frame.
func (t *ctxTransformer) isInScope(n ast.Node) bool {
	load, store := ast.GatherLoadStoreNames(n)
	missing := make(map[string]bool, len(load))
	for name := range load {
		if !store[name] {
			missing[name] = true
		}
	}
	if len(missing) == 0 {
		return true
	}
	for i := len(t.contexts) - 1; i >= 0; i-- {
		for name := range t.contexts[i] {
			delete(missing, name)
		}
		if len(missing) == 0 {
			return true
		}
	}
	return false
}

// isDescendable reports whether reclassification recurses into an expression
// rather than treating it atomically. Only boolean chains and unary
// operations can hold a bare command in one operand while the rest of the
// expression stays host code.
func isDescendable(e ast.Expr) bool {
	switch e.(type) {
	case *ast.UnaryOp, *ast.BoolOp:
		return true
	}
	return false
}

func (t *ctxTransformer) visit(n ast.Node) ast.Node {
	switch x := n.(type) {
	case *ast.Expression:
		return t.visitExpression(x)
	case *ast.ExprStmt:
		return t.visitExprStmt(x)
	case *ast.UnaryOp:
		return t.visitUnaryOp(x)
	case *ast.BoolOp:
		return t.visitBoolOp(x)
	case *ast.Assign:
		return t.visitAssign(x)
	case *ast.AnnAssign:
		t.ctxAdd(ast.LeftmostName(x.Target))
		return x
	case *ast.Import:
		for _, a := range x.Names {
			if a.AsName != "" {
				t.ctxAdd(a.AsName)
			} else {
				root, _, _ := strings.Cut(a.Name, ".")
				t.ctxAdd(root)
			}
		}
		return x
	case *ast.ImportFrom:
		for _, a := range x.Names {
			if a.AsName != "" {
				t.ctxAdd(a.AsName)
			} else {
				t.ctxAdd(a.Name)
			}
		}
		return x
	case *ast.With:
		for _, item := range x.Items {
			if item.Vars != nil {
				for name := range ast.GatherNames(item.Vars) {
					t.ctxAdd(name)
				}
			}
		}
		return t.genericVisit(x)
	case *ast.For:
		for name := range ast.GatherNames(x.Target) {
			t.ctxAdd(name)
		}
		return t.genericVisit(x)
	case *ast.FuncDef:
		t.ctxAdd(x.Name)
		frame := make(map[string]bool)
		for _, name := range x.Params.Names() {
			frame[name] = true
		}
		t.contexts = append(t.contexts, frame)
		t.genericVisit(x)
		t.contexts = t.contexts[:len(t.contexts)-1]
		return x
	case *ast.ClassDef:
		t.ctxAdd(x.Name)
		t.contexts = append(t.contexts, make(map[string]bool))
		t.genericVisit(x)
		t.contexts = t.contexts[:len(t.contexts)-1]
		return x
	case *ast.Delete:
		for _, targ := range x.Targets {
			if name, ok := targ.(*ast.Name); ok {
				t.ctxRemove(name.ID)
			}
		}
		return t.genericVisit(x)
	case *ast.Try:
		for _, h := range x.Handlers {
			if h.Name != "" {
				t.ctxAdd(h.Name)
			}
		}
		return t.genericVisit(x)
	case *ast.Global:
		t.bindModuleGlobals(x.Names)
		return x
	case *ast.Nonlocal:
		t.bindModuleGlobals(x.Names)
		return x
	default:
		return t.genericVisit(n)
	}
}

// bindModuleGlobals records declared names in the module frame, which sits
// just above the caller's scope.
func (t *ctxTransformer) bindModuleGlobals(names []string) {
	for _, name := range names {
		t.contexts[1][name] = true
	}
}

// visitExpression handles the eval-mode root.
func (t *ctxTransformer) visitExpression(x *ast.Expression) ast.Node {
	if isDescendable(x.Body) {
		x.Body = t.visitExpr(x.Body)
	}
	if !t.isInScope(x.Body) {
		if e, ok := t.trySubprocToks(x.Body, false).(ast.Expr); ok {
			x.Body = e
		}
	}
	return x
}

func (t *ctxTransformer) visitExprStmt(x *ast.ExprStmt) ast.Node {
	if isDescendable(x.Value) {
		x.Value = t.visitExpr(x.Value)
	}
	if t.isInScope(x) {
		return x
	}
	if _, ok := x.Value.(*ast.Lambda); ok {
		// a bare lambda binds nothing the line could mean as a command
		return x
	}
	newnode := t.trySubprocToks(x, false)
	if st, ok := newnode.(ast.Stmt); ok {
		return st
	}
	if e, ok := newnode.(ast.Expr); ok {
		return &ast.ExprStmt{Span: x.Span, Value: e}
	}
	return x
}

func (t *ctxTransformer) visitUnaryOp(x *ast.UnaryOp) ast.Node {
	if isDescendable(x.Operand) {
		x.Operand = t.visitExpr(x.Operand)
	}
	if !t.isInScope(x.Operand) {
		x.Operand = t.reclassifyExpr(x.Operand)
	}
	return x
}

func (t *ctxTransformer) visitBoolOp(x *ast.BoolOp) ast.Node {
	for i, val := range x.Values {
		if isDescendable(val) {
			val = t.visitExpr(val)
			x.Values[i] = val
		}
		if !t.isInScope(val) {
			x.Values[i] = t.reclassifyExpr(val)
		}
	}
	return x
}

// visitAssign binds target names. A binary-operation target means the strict
// grammar parsed a command line as an assignment, as in du -h = 20, so the
// whole statement retries as a subprocess before any name is bound.
func (t *ctxTransformer) visitAssign(x *ast.Assign) ast.Node {
	var ups []string
	for _, targ := range x.Targets {
		switch tg := targ.(type) {
		case *ast.Tuple:
			for _, el := range tg.Elts {
				ups = append(ups, ast.LeftmostName(el))
			}
		case *ast.List:
			for _, el := range tg.Elts {
				ups = append(ups, ast.LeftmostName(el))
			}
		case *ast.BinOp:
			if newnode := t.trySubprocToks(x, false); newnode != ast.Node(x) {
				if st, ok := newnode.(ast.Stmt); ok {
					return st
				}
			}
			ups = append(ups, ast.LeftmostName(tg))
		default:
			ups = append(ups, ast.LeftmostName(targ))
		}
	}
	for _, name := range ups {
		t.ctxAdd(name)
	}
	return x
}

// reclassifyExpr rewrites one operand as a subprocess call, unwrapping the
// statement shell the reparse produces.
func (t *ctxTransformer) reclassifyExpr(e ast.Expr) ast.Expr {
	if replaced, ok := t.trySubprocToks(e, true).(ast.Expr); ok {
		return replaced
	}
	return e
}

// trySubprocToks wraps the source span of n in ![ and ], reparses the
// rewritten span, and returns the replacement node rebased to n's location.
// When no consistent wrap exists or the wrap fails to parse, n itself comes
// back unchanged. With stripExpr the replacement statement is unwrapped to
// its expression, for splicing into operand position.
func (t *ctxTransformer) trySubprocToks(n ast.Node, stripExpr bool) ast.Node {
	lineno := n.Bounds().Start.Line
	if lineno < 1 || lineno > len(t.lines) {
		return n
	}
	line, nlogical, _ := getLogicalLine(t.lines, lineno-1)

	var mincol, maxcol int
	if t.mode == parser.ModeEval {
		mincol = len(leadingWhitespace(line))
		maxcol = -1
	} else {
		mincol = ast.MinCol(n) - 1
		if mincol < 0 {
			mincol = 0
		}
		maxcol = ast.MaxCol(n)
		switch {
		case mincol == maxcol:
			maxcol = findNextBreak(line, mincol)
		case nlogical > 1:
			maxcol = -1
		case maxcol < len(line) && line[maxcol] == ';':
			// the span already stops at a separator
		default:
			maxcol++
		}
	}

	spline := subprocToks(line, mincol, maxcol, false, false)
	if want := "![" + strings.TrimSpace(sliceSpan(line, mincol, maxcol)) + "]"; spline != want {
		// narrow wrap did not cover the span; retry keeping parentheses
		spline = subprocToks(line, mincol, maxcol, false, true)
	}
	if spline == "" {
		return n
	}

	root, err := parser.Parse(spline, parser.WithMode(t.mode), parser.WithFilename(t.filename))
	if err != nil {
		return n
	}
	newnode := rootChild(root)
	if newnode == nil {
		return n
	}
	ast.RebaseLines(newnode, lineno-1)
	ast.SetStartColumn(newnode, n.Bounds().Start.Column)
	t.logReclassify(lineno, mincol, maxcol, line, spline)

	if stripExpr {
		if es, ok := newnode.(*ast.ExprStmt); ok {
			return es.Value
		}
	}
	return newnode
}

// rootChild unwraps a parse root to its single statement or expression.
func rootChild(root ast.Node) ast.Node {
	switch r := root.(type) {
	case *ast.Module:
		if len(r.Body) > 0 {
			return r.Body[0]
		}
	case *ast.Interactive:
		if len(r.Body) > 0 {
			return r.Body[0]
		}
	case *ast.Expression:
		return r.Body
	}
	return nil
}

func sliceSpan(line string, mincol, maxcol int) string {
	if mincol < 0 {
		mincol = 0
	}
	if mincol > len(line) {
		mincol = len(line)
	}
	if maxcol < 0 || maxcol > len(line) {
		maxcol = len(line)
	}
	if maxcol < mincol {
		maxcol = mincol
	}
	return line[mincol:maxcol]
}

func (t *ctxTransformer) logReclassify(line, mincol, maxcol int, from, to string) {
	if t.debugLevel < 1 || t.logger == nil {
		return
	}
	attrs := []any{"file", t.filename, "line", line, "mincol", mincol}
	if maxcol >= 0 {
		attrs = append(attrs, "maxcol", maxcol)
	}
	attrs = append(attrs, "from", from, "to", to)
	t.logger.Debug("reclassify", attrs...)
}

func (t *ctxTransformer) genericVisit(n ast.Node) ast.Node {
	switch x := n.(type) {
	case *ast.Module:
		t.visitBody(x.Body)
	case *ast.Interactive:
		t.visitBody(x.Body)
	case *ast.If:
		x.Cond = t.visitExpr(x.Cond)
		t.visitBody(x.Body)
		t.visitBody(x.Else)
	case *ast.While:
		x.Cond = t.visitExpr(x.Cond)
		t.visitBody(x.Body)
		t.visitBody(x.Else)
	case *ast.For:
		x.Target = t.visitExpr(x.Target)
		x.Iter = t.visitExpr(x.Iter)
		t.visitBody(x.Body)
		t.visitBody(x.Else)
	case *ast.FuncDef:
		t.visitElts(x.Decorators)
		for i := range x.Params.Args {
			x.Params.Args[i].Default = t.visitExpr(x.Params.Args[i].Default)
		}
		t.visitBody(x.Body)
	case *ast.ClassDef:
		t.visitElts(x.Decorators)
		t.visitElts(x.Bases)
		t.visitBody(x.Body)
	case *ast.Return:
		x.Value = t.visitExpr(x.Value)
	case *ast.Delete:
		t.visitElts(x.Targets)
	case *ast.AugAssign:
		x.Target = t.visitExpr(x.Target)
		x.Value = t.visitExpr(x.Value)
	case *ast.Raise:
		x.Exc = t.visitExpr(x.Exc)
		x.Cause = t.visitExpr(x.Cause)
	case *ast.Assert:
		x.Test = t.visitExpr(x.Test)
		x.Msg = t.visitExpr(x.Msg)
	case *ast.With:
		for i := range x.Items {
			x.Items[i].Context = t.visitExpr(x.Items[i].Context)
			x.Items[i].Vars = t.visitExpr(x.Items[i].Vars)
		}
		t.visitBody(x.Body)
	case *ast.Try:
		t.visitBody(x.Body)
		for i := range x.Handlers {
			x.Handlers[i].Type = t.visitExpr(x.Handlers[i].Type)
			t.visitBody(x.Handlers[i].Body)
		}
		t.visitBody(x.Else)
		t.visitBody(x.Finally)

	case *ast.Tuple:
		t.visitElts(x.Elts)
	case *ast.List:
		t.visitElts(x.Elts)
	case *ast.Set:
		t.visitElts(x.Elts)
	case *ast.Dict:
		t.visitElts(x.Keys)
		t.visitElts(x.Values)
	case *ast.BinOp:
		x.Left = t.visitExpr(x.Left)
		x.Right = t.visitExpr(x.Right)
	case *ast.Compare:
		x.Left = t.visitExpr(x.Left)
		t.visitElts(x.Comparators)
	case *ast.Call:
		x.Func = t.visitExpr(x.Func)
		t.visitElts(x.Args)
		for i := range x.Keywords {
			x.Keywords[i].Value = t.visitExpr(x.Keywords[i].Value)
		}
	case *ast.Attribute:
		x.Value = t.visitExpr(x.Value)
	case *ast.Subscript:
		x.Value = t.visitExpr(x.Value)
		x.Index = t.visitExpr(x.Index)
	case *ast.Slice:
		x.Lo = t.visitExpr(x.Lo)
		x.Hi = t.visitExpr(x.Hi)
		x.Step = t.visitExpr(x.Step)
	case *ast.Lambda:
		for i := range x.Params.Args {
			x.Params.Args[i].Default = t.visitExpr(x.Params.Args[i].Default)
		}
		x.Body = t.visitExpr(x.Body)
	}
	return n
}

func (t *ctxTransformer) visitBody(body []ast.Stmt) {
	for i, st := range body {
		if replaced, ok := t.visit(st).(ast.Stmt); ok {
			body[i] = replaced
		}
	}
}

func (t *ctxTransformer) visitElts(elts []ast.Expr) {
	for i, e := range elts {
		elts[i] = t.visitExpr(e)
	}
}

func (t *ctxTransformer) visitExpr(e ast.Expr) ast.Expr {
	if e == nil {
		return nil
	}
	if replaced, ok := t.visit(e).(ast.Expr); ok {
		return replaced
	}
	return e
}
