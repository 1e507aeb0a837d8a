package parser

// Mode selects the grammar root.
type Mode int

const (
	// ModeExec parses a whole source file into an *ast.Module.
	ModeExec Mode = iota
	// ModeSingle parses one interactive input into an *ast.Interactive.
	ModeSingle
	// ModeEval parses a single expression into an *ast.Expression.
	ModeEval
)

func (m Mode) String() string {
	switch m {
	case ModeExec:
		return "exec"
	case ModeSingle:
		return "single"
	case ModeEval:
		return "eval"
	}
	return "Mode?"
}

// Config carries per-call parser settings. The zero value parses in exec
// mode with no filename.
type Config struct {
	mode     Mode
	filename string
}

// Option adjusts a Config.
type Option func(*Config)

// WithMode selects the grammar root for this parse.
func WithMode(m Mode) Option {
	return func(c *Config) { c.mode = m }
}

// WithFilename sets the name reported in error messages and snippets.
func WithFilename(name string) Option {
	return func(c *Config) { c.filename = name }
}
