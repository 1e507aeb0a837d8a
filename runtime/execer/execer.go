// Package execer drives context-aware parsing. It trial-parses source with
// the strict grammar and, when that fails, rewrites the offending logical
// line as an uncaptured subprocess and tries again, looping until the source
// parses or the original error proves real. A scope-aware pass then walks the
// tree and reclassifies statements that parsed as host expressions but
// reference no name bound in any visible scope.
//
// The two phases split the work: the retry loop fixes lines the strict
// grammar rejects outright, and the transformer fixes lines that parse but
// mean a command, like ls -l. Both re-slice the original source text
// verbatim, so quoting and spacing inside a rewritten span survive exactly.
package execer

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/brine-lang/brine/core/ast"
	"github.com/brine-lang/brine/core/token"
	"github.com/brine-lang/brine/runtime/parser"
)

// runtimeNames are the callables the frontend itself emits when it rewrites
// commands. They are always in scope for the reclassifier, so a synthesized
// call is never wrapped a second time.
var runtimeNames = []string{
	ast.FnCaptureStdout,
	ast.FnCaptureObject,
	ast.FnRunHidden,
	ast.FnRunUncaptured,
	ast.FnInject,
	ast.FnEnv,
	ast.FnExpandPath,
	ast.FnGlob,
	ast.FnPathSearch,
	ast.FnRegexSearch,
	ast.FnGlobSearch,
	ast.FnSpliceArgs,
	ast.FnHelp,
	ast.FnSuperhelp,
}

// Execer parses source in a context-aware fashion. One Execer may be shared
// across goroutines; the rewrite cache it carries is concurrency-safe.
type Execer struct {
	filename   string
	debugLevel int
	logOut     io.Writer
	logger     *slog.Logger
	cache      *rewriteCache
}

// Option configures an Execer.
type Option func(*Execer)

// WithFilename sets the name reported in error locations and debug output.
func WithFilename(name string) Option {
	return func(e *Execer) { e.filename = name }
}

// WithDebugLevel sets rewrite tracing: 0 is silent, 1 logs every rewrite
// decision, 2 also logs each trial parse.
func WithDebugLevel(level int) Option {
	return func(e *Execer) { e.debugLevel = level }
}

// WithLogOutput redirects debug logging, which goes to stderr by default.
func WithLogOutput(w io.Writer) Option {
	return func(e *Execer) { e.logOut = w }
}

// New builds an Execer.
func New(opts ...Option) *Execer {
	e := &Execer{logOut: os.Stderr}
	for _, opt := range opts {
		opt(e)
	}
	level := slog.LevelWarn
	if e.debugLevel >= 1 {
		level = slog.LevelDebug
	}
	e.logger = slog.New(slog.NewTextHandler(e.logOut, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		},
	}))
	e.cache = newRewriteCache()
	return e
}

// Parse parses src context-aware: the retry loop first, then scope
// reclassification against ctx, the set of names bound in the caller's
// scope. Errors carry locations in the coordinates of the source the user
// wrote, and misspelled words near a failure gain did-you-mean suggestions
// drawn from ctx and the keyword set.
func (e *Execer) Parse(src string, ctx map[string]bool, mode parser.Mode) (ast.Node, error) {
	tree, rewritten, err := e.ParseCtxFree(src, mode)
	if err != nil {
		e.attachSuggestions(err, ctx)
		return nil, err
	}

	names := make(map[string]bool, len(ctx)+len(runtimeNames))
	for name := range ctx {
		names[name] = true
	}
	for _, name := range runtimeNames {
		names[name] = true
	}
	tr := &ctxTransformer{
		filename:   e.filename,
		debugLevel: e.debugLevel,
		logger:     e.logger,
	}
	return tr.ctxVisit(tree, rewritten, names, mode), nil
}

// ParseCtxFree runs only the trial-parse-and-rewrite phase. It returns the
// tree and the rewritten source the tree was parsed from; callers that splice
// spans back out of the tree must slice the rewritten source, not the input.
func (e *Execer) ParseCtxFree(src string, mode parser.Mode) (ast.Node, string, error) {
	if rewritten, ok := e.cache.lookup(src, mode); ok {
		tree, err := e.strictParse(rewritten, mode)
		if err == nil {
			return tree, rewritten, nil
		}
		e.cache.drop(src, mode)
	}
	tree, rewritten, err := e.parseCtxFree(src, mode, false)
	if err != nil {
		return nil, "", err
	}
	e.cache.store(src, mode, rewritten)
	return tree, rewritten, nil
}

// parseCtxFree is the retry loop. Each iteration parses the current input;
// on a syntax error it rewrites the failing logical line as an uncaptured
// subprocess and loops, until the input parses or no rewrite can help, in
// which case the error from the first failure on the current line surfaces.
// logicalInput marks the recursive call that handles one extracted logical
// line; that recursion never nests further.
func (e *Execer) parseCtxFree(src string, mode parser.Mode, logicalInput bool) (ast.Node, string, error) {
	input := src
	begSpaces := ""
	if logicalInput {
		begSpaces = leadingWhitespace(input)
		input = input[len(begSpaces):]
	}

	lastErrorLine, lastErrorCol := -1, -1
	greedy := false
	var originalErr error

	for {
		tree, err := e.strictParse(input, mode)
		if err == nil {
			return tree, begSpaces + input, nil
		}

		// structural indentation errors are never rewritten
		var indentErr *parser.IndentationError
		if errors.As(err, &indentErr) {
			if originalErr != nil {
				return nil, "", originalErr
			}
			return nil, "", err
		}
		var synErr *parser.SyntaxError
		if !errors.As(err, &synErr) {
			return nil, "", err
		}

		loc := synErr.Loc
		switch {
		case originalErr == nil:
			originalErr = err
		case lastErrorLine == loc.Line &&
			(lastErrorCol == loc.Column+1 || lastErrorCol == loc.Column):
			// no movement since the last rewrite; more wrapping cannot help
			return nil, "", originalErr
		case lastErrorLine != loc.Line:
			// progress onto a new line; errors there are the fresh problem
			originalErr = err
		}
		lastErrorLine, lastErrorCol = loc.Line, loc.Column
		idx := lastErrorLine - 1

		lines := strings.Split(input, "\n")
		if idx < 0 || idx >= len(lines) {
			return nil, "", originalErr
		}
		line, nlogical, startIdx := getLogicalLine(lines, idx)
		idx = startIdx

		if nlogical > 1 && !logicalInput {
			_, sbpline, rerr := e.parseCtxFree(line, mode, true)
			if rerr != nil {
				return nil, "", originalErr
			}
			e.logWrap(lastErrorLine, lastErrorCol, -1, line, sbpline)
			replaceLogicalLine(lines, sbpline, idx, nlogical)
			lastErrorCol += 3
			input = strings.Join(lines, "\n")
			continue
		}

		if strings.TrimSpace(line) == "" {
			// whitespace-only lines are not valid in single mode; dropping
			// one can shift later line numbers, which interactive use accepts
			lines = append(lines[:idx], lines[idx+1:]...)
			next := strings.Join(lines, "\n")
			if next == input {
				// deleting the only, already empty line changes nothing;
				// eval mode rejects empty input no matter how often we retry
				return nil, "", originalErr
			}
			lastErrorLine, lastErrorCol = -1, -1
			input = next
			continue
		}

		if !greedy && ambiguousCloser(line, lastErrorCol) {
			greedy = true
		}
		maxcol := -1
		if !greedy {
			maxcol = findNextBreak(line, lastErrorCol)
			if maxcol == loc.Column || maxcol == loc.Column+1 {
				// the wrap would end exactly at the failure; go greedy
				greedy = true
				maxcol = -1
			}
		}

		sbpline := subprocToks(line, -1, maxcol, true, greedy)
		switch {
		case sbpline == "":
			if strings.TrimSpace(strings.SplitN(line, "#", 2)[0]) == "" {
				// only a comment here; the line itself is fine
				lines = append(lines[:idx], lines[idx+1:]...)
				lastErrorLine, lastErrorCol = -1, -1
				input = strings.Join(lines, "\n")
				continue
			}
			if !greedy {
				greedy = true
				lastErrorLine, lastErrorCol = -1, -1
				continue
			}
			return nil, "", originalErr
		case len(sbpline) <= len(line)+2:
			// the wrap lost text instead of adding the markers
			if !greedy {
				greedy = true
				lastErrorLine, lastErrorCol = -1, -1
				continue
			}
			return nil, "", originalErr
		case strings.HasPrefix(safeSlice(sbpline, lastErrorCol), "![![") ||
			strings.HasPrefix(strings.TrimLeft(sbpline, " \t"), "![!["):
			// already wrapped here once and it still fails
			return nil, "", originalErr
		}

		e.logWrap(lastErrorLine, lastErrorCol, maxcol, line, sbpline)
		replaceLogicalLine(lines, sbpline, idx, nlogical)
		lastErrorCol += 3
		input = strings.Join(lines, "\n")
	}
}

func (e *Execer) strictParse(input string, mode parser.Mode) (ast.Node, error) {
	if e.debugLevel >= 2 {
		e.logger.Debug("trial parse", "file", e.filename, "mode", mode.String(), "input", input)
	}
	return parser.Parse(input, parser.WithMode(mode), parser.WithFilename(e.filename))
}

func (e *Execer) logWrap(line, col, maxcol int, from, to string) {
	if e.debugLevel < 1 {
		return
	}
	attrs := []any{"file", e.filename, "line", line, "col", col}
	if maxcol >= 0 {
		attrs = append(attrs, "maxcol", maxcol)
	}
	attrs = append(attrs, "from", from, "to", to)
	e.logger.Debug("wrap line", attrs...)
}

func safeSlice(s string, from int) string {
	if from < 0 || from > len(s) {
		return ""
	}
	return s[from:]
}

// attachSuggestions fills in did-you-mean candidates on a surfaced syntax
// error when the failing token is a word resembling a bound name or keyword.
func (e *Execer) attachSuggestions(err error, ctx map[string]bool) {
	var indentErr *parser.IndentationError
	if errors.As(err, &indentErr) {
		return
	}
	var synErr *parser.SyntaxError
	if !errors.As(err, &synErr) {
		return
	}
	word := failingWord(synErr.Input, synErr.Loc)
	if word == "" || ctx[word] {
		return
	}
	if _, ok := token.Keywords[word]; ok {
		return
	}
	candidates := make([]string, 0, len(ctx)+len(token.Keywords))
	for name := range ctx {
		candidates = append(candidates, name)
	}
	for kw := range token.Keywords {
		candidates = append(candidates, kw)
	}
	sort.Strings(candidates)
	synErr.Suggestions = suggestNames(word, candidates)
}

// failingWord extracts the identifier under loc in input, if any.
func failingWord(input string, loc token.Position) string {
	lines := strings.Split(input, "\n")
	if loc.Line < 1 || loc.Line > len(lines) {
		return ""
	}
	line := lines[loc.Line-1]
	col := loc.Column
	if col < 0 || col >= len(line) || !isWordByte(line[col]) {
		return ""
	}
	start, end := col, col
	for start > 0 && isWordByte(line[start-1]) {
		start--
	}
	for end < len(line) && isWordByte(line[end]) {
		end++
	}
	word := line[start:end]
	if word == "" || word[0] >= '0' && word[0] <= '9' {
		return ""
	}
	return word
}

func isWordByte(c byte) bool {
	return c == '_' ||
		c >= 'a' && c <= 'z' ||
		c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9'
}

// suggestNames ranks candidates against a misspelled word, closest first,
// keeping at most three.
func suggestNames(word string, candidates []string) []string {
	ranks := fuzzy.RankFindFold(word, candidates)
	sort.Stable(ranks)
	var out []string
	for _, r := range ranks {
		if r.Target == word {
			continue
		}
		out = append(out, r.Target)
		if len(out) == 3 {
			return out
		}
	}
	if len(out) > 0 {
		return out
	}
	// rank-find needs the word's letters in order, which misses
	// transpositions like improt; fall back to edit distance
	type scored struct {
		name string
		dist int
	}
	var near []scored
	for _, c := range candidates {
		if c == word {
			continue
		}
		if d := fuzzy.LevenshteinDistance(word, c); d <= 2 {
			near = append(near, scored{c, d})
		}
	}
	sort.Slice(near, func(i, j int) bool {
		if near[i].dist != near[j].dist {
			return near[i].dist < near[j].dist
		}
		return near[i].name < near[j].name
	})
	for _, s := range near {
		out = append(out, s.name)
		if len(out) == 3 {
			break
		}
	}
	return out
}
