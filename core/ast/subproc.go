package ast

import (
	"strings"

	"github.com/brine-lang/brine/core/invariant"
)

// CapturePolicy selects how a synthesized subprocess call treats the child
// process output.
type CapturePolicy int

const (
	// CaptureStdout substitutes the child's standard output, $(...).
	CaptureStdout CapturePolicy = iota
	// CaptureObject captures the full result object, !(...).
	CaptureObject
	// HiddenObject runs the command and suppresses the captured output, ![...].
	HiddenObject
	// Uncaptured runs the command attached to the terminal, $[...].
	Uncaptured
)

func (p CapturePolicy) String() string {
	switch p {
	case CaptureStdout:
		return "capture-stdout"
	case CaptureObject:
		return "capture-object"
	case HiddenObject:
		return "hidden-object"
	case Uncaptured:
		return "uncaptured"
	}
	return "CapturePolicy?"
}

// Runtime function names the frontend emits. The runtime that evaluates the
// tree injects these into the global scope; the frontend only names them.
const (
	FnCaptureStdout = "__brine_capture_stdout__"
	FnCaptureObject = "__brine_capture_object__"
	FnRunHidden     = "__brine_run_hidden__"
	FnRunUncaptured = "__brine_run_uncaptured__"
	FnInject        = "__brine_capture_inject__"
	FnEnv           = "__brine_env__"
	FnExpandPath    = "__brine_expand_path__"
	FnGlob          = "__brine_glob__"
	FnPathSearch    = "__brine_pathsearch__"
	FnRegexSearch   = "__brine_regexsearch__"
	FnGlobSearch    = "__brine_globsearch__"
	FnSpliceArgs    = "__brine_splice_args__"
	FnHelp          = "__brine_help__"
	FnSuperhelp     = "__brine_superhelp__"
)

// RuntimeFn returns the runtime function name for a capture policy.
func (p CapturePolicy) RuntimeFn() string {
	switch p {
	case CaptureStdout:
		return FnCaptureStdout
	case CaptureObject:
		return FnCaptureObject
	case HiddenObject:
		return FnRunHidden
	case Uncaptured:
		return FnRunUncaptured
	}
	invariant.Precondition(false, "unknown capture policy %d", int(p))
	return ""
}

// PolicyForOpener maps a subprocess opener token text to its capture policy.
// Returns false for text that does not open a subprocess span.
func PolicyForOpener(text string) (CapturePolicy, bool) {
	switch text {
	case "$(":
		return CaptureStdout, true
	case "!(":
		return CaptureObject, true
	case "![":
		return HiddenObject, true
	case "$[":
		return Uncaptured, true
	}
	return 0, false
}

// RuntimeCall builds a call to one of the fixed runtime function names.
func RuntimeCall(fn string, args []Expr, sp Span) *Call {
	return &Call{
		Span: sp,
		Func: &Name{Span: sp, ID: fn, Ctx: Load},
		Args: args,
	}
}

// SubprocCall synthesizes the call node for a subprocess span. The first
// argument is always a string literal holding the verbatim source text
// between the markers; the remaining arguments are the pipeline stages built
// by the shell sub-grammar (argument lists separated by "|" strings, with an
// optional trailing "&").
func SubprocCall(policy CapturePolicy, raw string, stages []Expr, sp Span) *Call {
	args := make([]Expr, 0, len(stages)+1)
	args = append(args, &Str{Span: sp, Value: raw})
	args = append(args, stages...)
	return RuntimeCall(policy.RuntimeFn(), args, sp)
}

// EnvLookup builds the expression for $NAME in host mode: a subscript into
// the runtime environment object.
func EnvLookup(name string, sp Span) *Subscript {
	return &Subscript{
		Span:  sp,
		Value: &Name{Span: sp, ID: FnEnv, Ctx: Load},
		Index: &Str{Span: sp, Value: name},
	}
}

// EnvLookupExpr builds the expression for ${expr} in host mode.
func EnvLookupExpr(key Expr, sp Span) *Subscript {
	return &Subscript{
		Span:  sp,
		Value: &Name{Span: sp, ID: FnEnv, Ctx: Load},
		Index: key,
	}
}

// EnvGet builds the expression for ${expr} in command position, where a
// missing variable must expand to the empty string rather than fail:
// __brine_env__.get(key, "").
func EnvGet(key Expr, sp Span) *Call {
	return &Call{
		Span: sp,
		Func: &Attribute{
			Span:  sp,
			Value: &Name{Span: sp, ID: FnEnv, Ctx: Load},
			Attr:  "get",
		},
		Args: []Expr{key, &Str{Span: sp, Value: ""}},
	}
}

// PathSearch builds the call for a backtick span. The token text includes the
// backticks and the optional search-function prefix: `...`, r`...`, g`...`,
// or @name`...`. hostMode tells the runtime whether the result feeds an
// expression or a command line.
func PathSearch(tokText string, hostMode bool, sp Span) *Call {
	prefix, pattern := splitSearchPath(tokText)
	var fn Expr
	switch {
	case prefix == "" || prefix == "r":
		fn = &Name{Span: sp, ID: FnRegexSearch, Ctx: Load}
	case prefix == "g":
		fn = &Name{Span: sp, ID: FnGlobSearch, Ctx: Load}
	default:
		// @name names a custom searcher in scope
		fn = &Name{Span: sp, ID: prefix[1:], Ctx: Load}
	}
	mode := "False"
	if hostMode {
		mode = "True"
	}
	return RuntimeCall(FnPathSearch, []Expr{
		fn,
		&Str{Span: sp, Value: pattern},
		&NameConst{Span: sp, Value: mode},
	}, sp)
}

func splitSearchPath(tokText string) (prefix, pattern string) {
	i := strings.IndexByte(tokText, '`')
	invariant.Precondition(i >= 0, "search path token %q has no backtick", tokText)
	prefix = tokText[:i]
	pattern = strings.TrimSuffix(tokText[i+1:], "`")
	return prefix, pattern
}

// ExpandPathCall wraps a word in the runtime path expansion call so tildes
// and embedded $NAME references expand when the command runs.
func ExpandPathCall(word Expr, sp Span) *Call {
	return RuntimeCall(FnExpandPath, []Expr{word}, sp)
}

// GlobCall wraps a word containing * in the runtime glob call.
func GlobCall(word Expr, sp Span) *Call {
	return RuntimeCall(FnGlob, []Expr{word}, sp)
}

// SpliceCall wraps an @(...) escape: the runtime coerces the value into a
// list of command words or callables and splices it into the argument list.
func SpliceCall(value Expr, sp Span) *Call {
	return RuntimeCall(FnSpliceArgs, []Expr{value}, sp)
}

// InjectCall wraps an @$(...) escape: run the command, capture stdout, and
// splice the whitespace-split result into the argument list.
func InjectCall(raw string, stages []Expr, sp Span) *Call {
	args := make([]Expr, 0, len(stages)+1)
	args = append(args, &Str{Span: sp, Value: raw})
	args = append(args, stages...)
	return RuntimeCall(FnInject, args, sp)
}

// HelpCall builds the introspection call for expr? and expr??.
func HelpCall(value Expr, superhelp bool, sp Span) *Call {
	fn := FnHelp
	if superhelp {
		fn = FnSuperhelp
	}
	return RuntimeCall(fn, []Expr{value}, sp)
}

// SplitLinesCall builds value.splitlines(), used when a nested $[...] result
// contributes lines to an argument list.
func SplitLinesCall(value Expr, sp Span) *Call {
	return &Call{
		Span: sp,
		Func: &Attribute{Span: sp, Value: value, Attr: "splitlines"},
	}
}
