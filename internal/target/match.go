package target

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Process is the environment a match expression is evaluated against.
type Process struct {
	PID         uint32
	Image       string
	CommandLine string
}

// Matcher evaluates a pre-compiled boolean expression against process-start data.
type Matcher struct {
	source  string
	program *vm.Program
}

// NewMatcher compiles a match expression such as
//
//	Image endsWith "firefox.exe" && CommandLine contains "-contentproc"
func NewMatcher(source string) (*Matcher, error) {
	program, err := expr.Compile(source, expr.Env(Process{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("failed to compile match expression %q: %w", source, err)
	}
	return &Matcher{source: source, program: program}, nil
}

// Match runs the expression for one process.
func (m *Matcher) Match(p Process) (bool, error) {
	out, err := expr.Run(m.program, p)
	if err != nil {
		return false, fmt.Errorf("evaluating match expression %q: %w", m.source, err)
	}
	matched, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("match expression %q returned %T, want bool", m.source, out)
	}
	return matched, nil
}
