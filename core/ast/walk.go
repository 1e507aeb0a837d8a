package ast

// Walk traverses the tree depth first, calling fn for each node before its
// children. If fn returns false the node's children are skipped.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	switch x := n.(type) {
	case *Module:
		walkStmts(x.Body, fn)
	case *Interactive:
		walkStmts(x.Body, fn)
	case *Expression:
		walkExpr(x.Body, fn)

	case *ExprStmt:
		walkExpr(x.Value, fn)
	case *Assign:
		walkExprs(x.Targets, fn)
		walkExpr(x.Value, fn)
	case *AugAssign:
		walkExpr(x.Target, fn)
		walkExpr(x.Value, fn)
	case *AnnAssign:
		walkExpr(x.Target, fn)
		walkExpr(x.Annotation, fn)
		walkExpr(x.Value, fn)
	case *If:
		walkExpr(x.Cond, fn)
		walkStmts(x.Body, fn)
		walkStmts(x.Else, fn)
	case *While:
		walkExpr(x.Cond, fn)
		walkStmts(x.Body, fn)
		walkStmts(x.Else, fn)
	case *For:
		walkExpr(x.Target, fn)
		walkExpr(x.Iter, fn)
		walkStmts(x.Body, fn)
		walkStmts(x.Else, fn)
	case *FuncDef:
		walkExprs(x.Decorators, fn)
		walkParams(x.Params, fn)
		walkStmts(x.Body, fn)
	case *ClassDef:
		walkExprs(x.Decorators, fn)
		walkExprs(x.Bases, fn)
		walkStmts(x.Body, fn)
	case *Return:
		walkExpr(x.Value, fn)
	case *Pass, *Break, *Continue, *Global, *Nonlocal, *Import, *ImportFrom:
		// no child nodes
	case *Delete:
		walkExprs(x.Targets, fn)
	case *Raise:
		walkExpr(x.Exc, fn)
		walkExpr(x.Cause, fn)
	case *Assert:
		walkExpr(x.Test, fn)
		walkExpr(x.Msg, fn)
	case *With:
		for _, item := range x.Items {
			walkExpr(item.Context, fn)
			walkExpr(item.Vars, fn)
		}
		walkStmts(x.Body, fn)
	case *Try:
		walkStmts(x.Body, fn)
		for i := range x.Handlers {
			Walk(&x.Handlers[i], fn)
		}
		walkStmts(x.Else, fn)
		walkStmts(x.Finally, fn)
	case *ExceptHandler:
		walkExpr(x.Type, fn)
		walkStmts(x.Body, fn)

	case *Name, *Num, *Str, *NameConst:
		// leaves
	case *Tuple:
		walkExprs(x.Elts, fn)
	case *List:
		walkExprs(x.Elts, fn)
	case *Set:
		walkExprs(x.Elts, fn)
	case *Dict:
		walkExprs(x.Keys, fn)
		walkExprs(x.Values, fn)
	case *BoolOp:
		walkExprs(x.Values, fn)
	case *UnaryOp:
		walkExpr(x.Operand, fn)
	case *BinOp:
		walkExpr(x.Left, fn)
		walkExpr(x.Right, fn)
	case *Compare:
		walkExpr(x.Left, fn)
		walkExprs(x.Comparators, fn)
	case *Call:
		walkExpr(x.Func, fn)
		walkExprs(x.Args, fn)
		for _, kw := range x.Keywords {
			walkExpr(kw.Value, fn)
		}
	case *Attribute:
		walkExpr(x.Value, fn)
	case *Subscript:
		walkExpr(x.Value, fn)
		walkExpr(x.Index, fn)
	case *Slice:
		walkExpr(x.Lo, fn)
		walkExpr(x.Hi, fn)
		walkExpr(x.Step, fn)
	case *Lambda:
		walkParams(x.Params, fn)
		walkExpr(x.Body, fn)
	}
}

func walkStmts(stmts []Stmt, fn func(Node) bool) {
	for _, s := range stmts {
		Walk(s, fn)
	}
}

func walkExprs(exprs []Expr, fn func(Node) bool) {
	for _, e := range exprs {
		Walk(e, fn)
	}
}

func walkExpr(e Expr, fn func(Node) bool) {
	if e != nil {
		Walk(e, fn)
	}
}

func walkParams(p Params, fn func(Node) bool) {
	for _, a := range p.Args {
		walkExpr(a.Default, fn)
	}
}

func (s *Span) shiftLines(delta int) {
	s.Start.Line += delta
	s.End.Line += delta
}

type lineShifter interface {
	shiftLines(int)
}

// RebaseLines shifts the line numbers of every node in the subtree by delta.
// It is used when a tree parsed from an extracted logical line is spliced
// back into the tree of the full source. Byte offsets are not adjusted; after
// a rebase only Line and Column are meaningful.
func RebaseLines(n Node, delta int) {
	if delta == 0 {
		return
	}
	Walk(n, func(m Node) bool {
		if sh, ok := m.(lineShifter); ok {
			sh.shiftLines(delta)
		}
		return true
	})
}

// MinCol returns the smallest start column of any node in the subtree.
func MinCol(n Node) int {
	minc := n.Bounds().Start.Column
	Walk(n, func(m Node) bool {
		if c := m.Bounds().Start.Column; c < minc {
			minc = c
		}
		return true
	})
	return minc
}

// MaxCol returns the largest end column of any node in the subtree. End
// positions are exclusive, so the result is one past the last character.
func MaxCol(n Node) int {
	maxc := n.Bounds().End.Column
	Walk(n, func(m Node) bool {
		if c := m.Bounds().End.Column; c > maxc {
			maxc = c
		}
		return true
	})
	return maxc
}

func (s *Span) setStartColumn(col int) {
	s.Start.Column = col
}

type columnSetter interface {
	setStartColumn(int)
}

// SetStartColumn pins the start column of a single node, leaving its subtree
// untouched. Used when a node reparsed from an extracted span replaces an
// original node and should keep reporting the original's column.
func SetStartColumn(n Node, col int) {
	if cs, ok := n.(columnSetter); ok {
		cs.setStartColumn(col)
	}
}

// GatherNames returns every identifier mentioned anywhere in the subtree.
func GatherNames(n Node) map[string]bool {
	names := make(map[string]bool)
	Walk(n, func(m Node) bool {
		if name, ok := m.(*Name); ok {
			names[name.ID] = true
		}
		return true
	})
	return names
}

// GatherLoadStoreNames returns the identifiers read and the identifiers
// written in the subtree, as separate sets. Deletions count as writes.
func GatherLoadStoreNames(n Node) (load, store map[string]bool) {
	load = make(map[string]bool)
	store = make(map[string]bool)
	Walk(n, func(m Node) bool {
		if name, ok := m.(*Name); ok {
			if name.Ctx == Load {
				load[name.ID] = true
			} else {
				store[name.ID] = true
			}
		}
		return true
	})
	return load, store
}

// LeftmostName finds the first name in the tree, the one a reader would see
// at the start of the statement.
func LeftmostName(n Node) string {
	switch x := n.(type) {
	case *Name:
		return x.ID
	case *BinOp:
		return LeftmostName(x.Left)
	case *Compare:
		return LeftmostName(x.Left)
	case *Attribute:
		return LeftmostName(x.Value)
	case *Subscript:
		return LeftmostName(x.Value)
	case *ExprStmt:
		return LeftmostName(x.Value)
	case *Call:
		return LeftmostName(x.Func)
	case *UnaryOp:
		return LeftmostName(x.Operand)
	case *BoolOp:
		if len(x.Values) > 0 {
			return LeftmostName(x.Values[0])
		}
	case *Assign:
		if len(x.Targets) > 0 {
			return LeftmostName(x.Targets[0])
		}
	case *AugAssign:
		return LeftmostName(x.Target)
	case *Str:
		// a quoted leading word like "./my prog" still names a command
		return x.Value
	}
	return ""
}
