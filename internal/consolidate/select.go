package consolidate

import (
	"fmt"
	"path/filepath"

	"github.com/google/cel-go/cel"
)

// filter decides which sources a selective consolidation includes: either an
// explicit identifier set, or a compiled CEL expression over the archive's
// attributes.
type filter struct {
	names   map[string]struct{}
	program cel.Program
}

func newFilter(selection []string, expr string) (*filter, error) {
	if len(selection) > 0 {
		names := make(map[string]struct{}, len(selection))
		for _, name := range selection {
			names[name] = struct{}{}
		}
		return &filter{names: names}, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("name", cel.StringType),
		cel.Variable("path", cel.StringType),
		cel.Variable("format", cel.StringType),
		cel.Variable("files", cel.IntType),
		cel.Variable("bytes", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("build selection environment: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile selection expression %q: %w", expr, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("selection expression %q must evaluate to bool, got %s", expr, ast.OutputType())
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build selection program: %w", err)
	}
	return &filter{program: program}, nil
}

func (f *filter) matches(source Source) (bool, error) {
	if f.names != nil {
		if _, ok := f.names[source.Entry.Path]; ok {
			return true, nil
		}
		_, ok := f.names[filepath.Base(source.Entry.Path)]
		return ok, nil
	}

	out, _, err := f.program.Eval(map[string]any{
		"name":   filepath.Base(source.Entry.Path),
		"path":   source.Entry.Path,
		"format": string(source.Entry.Format),
		"files":  source.Files,
		"bytes":  source.Bytes,
	})
	if err != nil {
		return false, err
	}
	keep, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("selection expression must evaluate to bool, got %T", out.Value())
	}
	return keep, nil
}
