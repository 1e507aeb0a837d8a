package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/brine-lang/brine/core/ast"
	"github.com/brine-lang/brine/runtime/execer"
	"github.com/brine-lang/brine/runtime/parser"
)

// Exit code constants
const (
	ExitSuccess          = 0
	ExitInvalidArguments = 1
	ExitIOError          = 2
	ExitParseError       = 3
)

const stdinName = "<stdin>"

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// options carries the settings every input of one invocation is parsed with.
type options struct {
	mode   parser.Mode
	ctx    map[string]bool
	debug  int
	dump   bool
	logOut io.Writer
	ok     func(a ...interface{}) string
	fail   func(a ...interface{}) string
}

// result is the outcome for one input. out is rendered up front so concurrent
// parses never interleave their output.
type result struct {
	out  string
	err  error
	code int
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var (
		modeName string
		ctxNames []string
		debug    int
		dump     bool
		noColor  bool
	)
	code := ExitSuccess

	rootCmd := &cobra.Command{
		Use:           "brine-parse [files...]",
		Short:         "Parse brine sources and report how each input classified",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, files []string) error {
			mode, err := parseMode(modeName)
			if err != nil {
				return err
			}
			okText := color.New(color.FgGreen)
			failText := color.New(color.FgRed)
			if noColor {
				okText.DisableColor()
				failText.DisableColor()
			}
			opts := options{
				mode:   mode,
				ctx:    toSet(ctxNames),
				debug:  debug,
				dump:   dump,
				logOut: stderr,
				ok:     okText.SprintFunc(),
				fail:   failText.SprintFunc(),
			}

			var results []result
			switch {
			case len(files) > 0:
				results = make([]result, len(files))
				var g errgroup.Group
				for i, name := range files {
					g.Go(func() error {
						results[i] = parseFile(name, opts)
						return results[i].err
					})
				}
				if err := g.Wait(); err != nil {
					code = exitCode(results)
				}
			case terminal(stdin):
				return fmt.Errorf("no input files and stdin is a terminal")
			default:
				src, err := io.ReadAll(stdin)
				if err != nil {
					results = []result{readFailure(stdinName, err, opts)}
				} else {
					results = []result{parseSource(stdinName, string(src), opts)}
				}
				code = exitCode(results)
			}

			for i := range results {
				io.WriteString(stdout, results[i].out)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&modeName, "mode", "exec", `Grammar root: "exec", "eval", or "single"`)
	rootCmd.PersistentFlags().StringSliceVar(&ctxNames, "ctx", nil, "Names treated as already bound in the caller's scope")
	rootCmd.PersistentFlags().IntVar(&debug, "debug", 0, "Rewrite tracing: 1 logs rewrite decisions, 2 adds trial parses")
	rootCmd.PersistentFlags().BoolVar(&dump, "dump", false, "Print the parsed tree for each input")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitInvalidArguments
	}
	return code
}

func parseMode(name string) (parser.Mode, error) {
	switch name {
	case "exec":
		return parser.ModeExec, nil
	case "eval":
		return parser.ModeEval, nil
	case "single":
		return parser.ModeSingle, nil
	}
	return 0, fmt.Errorf("unknown mode %q: want exec, eval, or single", name)
}

func toSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

// terminal reports whether r is an interactive terminal rather than a pipe or
// a file. Readers that are not *os.File, as in tests, count as piped input.
func terminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// exitCode picks the status for a batch: the smallest nonzero code wins, so a
// read failure outranks a parse failure.
func exitCode(results []result) int {
	code := ExitSuccess
	for _, r := range results {
		if r.code != ExitSuccess && (code == ExitSuccess || r.code < code) {
			code = r.code
		}
	}
	return code
}

func parseFile(name string, opts options) result {
	src, err := os.ReadFile(name)
	if err != nil {
		return readFailure(name, err, opts)
	}
	return parseSource(name, string(src), opts)
}

func readFailure(name string, err error, opts options) result {
	return result{
		out:  fmt.Sprintf("%s %s: %v\n", opts.fail("error"), name, err),
		err:  err,
		code: ExitIOError,
	}
}

// parseSource runs the full pipeline over one input and renders its report.
func parseSource(name, src string, opts options) result {
	ex := execer.New(
		execer.WithFilename(name),
		execer.WithDebugLevel(opts.debug),
		execer.WithLogOutput(opts.logOut),
	)
	node, err := ex.Parse(src, opts.ctx, opts.mode)
	if err != nil {
		return result{
			out:  fmt.Sprintf("%s %s\n%v\n", opts.fail("error"), name, err),
			err:  err,
			code: ExitParseError,
		}
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n", opts.ok("ok"), name)
	if opts.dump {
		sb.WriteString(ast.Dump(node))
	}
	return result{out: sb.String()}
}
