package filter

import (
	"fmt"

	"github.com/antonmedv/expr"
	"github.com/antonmedv/expr/vm"
	"github.com/gardenhub/shoot-events/globals"
	"github.com/gardenhub/shoot-events/types"
)

// IssuesFilterName is the built-in filter selecting only shoots with issues.
// It is always defined, configuration may override its expression.
const IssuesFilterName = "issues"

const issuesFilterExpression = `HasIssues`

// Filter is a compiled named fleet filter. A fleet subscription naming a
// filter only receives shoots the filter program accepts, and the filter
// name qualifies the room name (shoots_{namespace}_{filter}).
type Filter struct {
	Name string
	prog *vm.Program
}

// Compile compiles the expression against the fixed Env.
func Compile(name, expression string) (*Filter, error) {
	prog, err := expr.Compile(expression, expr.Env(Env{}))
	if err != nil {
		return nil, fmt.Errorf("filter %q: %w", name, err)
	}
	return &Filter{Name: name, prog: prog}, nil
}

// Match evaluates the filter against one shoot. Evaluation errors reject the
// shoot and are logged.
func (f *Filter) Match(shoot types.Shoot) bool {
	env := Env{
		Name:      shoot.Metadata.Name,
		Namespace: shoot.Metadata.Namespace,
		Labels:    shoot.Metadata.Labels,
		State:     shoot.Status.State,
		Progress:  shoot.Status.Progress,
		LastError: shoot.Status.LastError,
		HasIssues: shoot.HasIssues(),
	}
	res, err := expr.Run(f.prog, env)
	if err != nil {
		globals.AppLogger.Error("could not run filter", "filter", f.Name, "error", err)
		return false
	}
	if bRes, ok := res.(bool); ok {
		return bRes
	}
	return false
}

// Filters is the set of named fleet filters known to the process.
type Filters map[string]*Filter

// Lookup returns the filter for name, or nil for the empty name or an
// unknown name. Rooms for unknown filter names are still joinable, they just
// never receive watch traffic.
func (fs Filters) Lookup(name string) *Filter {
	if name == "" {
		return nil
	}
	return fs[name]
}
