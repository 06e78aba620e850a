package filter

import (
	"fmt"
	"strings"

	"github.com/asakaida/catalogattr/internal/entities"
	"github.com/google/cel-go/cel"
)

// Engine compiles CEL expressions over attributes.
// Expressions see a single variable, attribute, with the keys
// id, ref, label, rank and entity.
type Engine struct {
	env *cel.Env
}

// Filter is a compiled, reusable attribute predicate
type Filter struct {
	expression string
	program    cel.Program
}

// NewEngine creates a CEL engine for attribute filters
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("attribute", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{env: env}, nil
}

// Compile parses and checks expression. A blank expression yields a nil
// filter, which matches everything.
func (e *Engine) Compile(expression string) (*Filter, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, nil
	}

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: invalid filter expression: %w", entities.ErrInvalidArgument, issues.Err())
	}

	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("%w: filter expression must return boolean, got %s", entities.ErrInvalidArgument, out)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return &Filter{expression: expression, program: program}, nil
}

// String returns the source expression
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.expression
}

// Match reports whether attr satisfies the filter. A nil filter matches everything.
func (f *Filter) Match(attr *entities.Attribute) (bool, error) {
	if f == nil {
		return true, nil
	}

	result, _, err := f.program.Eval(map[string]any{
		"attribute": Activation(attr),
	})
	if err != nil {
		return false, fmt.Errorf("%w: failed to evaluate filter: %w", entities.ErrInvalidArgument, err)
	}

	matched, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w: filter did not evaluate to boolean, got %T", entities.ErrInvalidArgument, result.Value())
	}

	return matched, nil
}

// Apply returns the attributes that satisfy the filter, preserving order
func (f *Filter) Apply(attrs []*entities.Attribute) ([]*entities.Attribute, error) {
	if f == nil {
		return attrs, nil
	}

	matched := make([]*entities.Attribute, 0, len(attrs))
	for _, attr := range attrs {
		ok, err := f.Match(attr)
		if err != nil {
			return nil, fmt.Errorf("attribute %d: %w", attr.ID, err)
		}
		if ok {
			matched = append(matched, attr)
		}
	}
	return matched, nil
}

// Activation exposes attr to CEL expressions
func Activation(attr *entities.Attribute) map[string]any {
	return map[string]any{
		"id":     attr.ID,
		"ref":    attr.Ref,
		"label":  attr.Label,
		"rank":   int64(attr.Rank),
		"entity": attr.Entity,
	}
}
