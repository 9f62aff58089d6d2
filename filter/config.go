package filter

import (
	"github.com/gardenhub/shoot-events/config"
)

// FromConfig compiles all configured filters and adds the built-in "issues"
// filter unless the configuration overrides it.
func FromConfig(cfgs []config.FilterConfig) (Filters, error) {
	fs := make(Filters, len(cfgs)+1)
	for _, c := range cfgs {
		f, err := Compile(c.Name, c.Expression)
		if err != nil {
			return nil, err
		}
		fs[c.Name] = f
	}
	if _, ok := fs[IssuesFilterName]; !ok {
		f, err := Compile(IssuesFilterName, issuesFilterExpression)
		if err != nil {
			return nil, err
		}
		fs[IssuesFilterName] = f
	}
	return fs, nil
}
