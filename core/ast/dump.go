package ast

import "github.com/davecgh/go-spew/spew"

var dumpConfig = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// Dump renders the tree in a stable, indented form. Operator kinds render
// through their String methods, so a BinOp prints its operator symbol rather
// than an enum ordinal. Used by the CLI at high verbosity.
func Dump(n Node) string {
	return dumpConfig.Sdump(n)
}
