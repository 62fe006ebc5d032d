// Package cmdline expands command templates from language profiles into argv.
package cmdline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/shlex"
)

// ErrEmptyCommand is returned when a template expands to no arguments.
var ErrEmptyCommand = errors.New("command template is empty")

// Build replaces every {key} placeholder in tpl with vars[key] and splits the
// result with shell quoting rules. Unknown placeholders are left as they are.
func Build(tpl string, vars map[string]string) ([]string, error) {
	expanded := Expand(tpl, vars)
	args, err := shlex.Split(expanded)
	if err != nil {
		return nil, fmt.Errorf("split command %q: %w", expanded, err)
	}
	if len(args) == 0 {
		return nil, ErrEmptyCommand
	}
	return args, nil
}

// Expand performs placeholder substitution only.
func Expand(tpl string, vars map[string]string) string {
	if len(vars) == 0 {
		return tpl
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}
