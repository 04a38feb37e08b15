package analyzer

import (
	"fmt"

	"github.com/rowlang/rowan/internal/ast"
	"github.com/rowlang/rowan/internal/typesystem"
)

// EffectEscapeError reports a handler-local effect variable occurring
// free in the type of the value the handle expression evaluates to.
type EffectEscapeError struct {
	Var      string
	Type     typesystem.Type
	Position ast.Position
}

func (e *EffectEscapeError) Error() string {
	return fmt.Sprintf("%d:%d: handler-scoped effect %s escapes through the result type %s",
		e.Position.Line, e.Position.Column, e.Var, e.Type)
}

// AmbiguousInstantiationError reports a named, optional or implicit
// parameter that cannot be resolved from context at a call site.
type AmbiguousInstantiationError struct {
	Param    string
	Position ast.Position
}

func (e *AmbiguousInstantiationError) Error() string {
	return fmt.Sprintf("%d:%d: cannot resolve parameter %q from context",
		e.Position.Line, e.Position.Column, e.Param)
}

// inferErrorf builds a checking diagnostic carrying the node's position.
func inferErrorf(node ast.Node, format string, args ...interface{}) error {
	pos := ast.Position{}
	if node != nil {
		pos = node.Pos()
	}
	return fmt.Errorf("%d:%d: %s", pos.Line, pos.Column, fmt.Sprintf(format, args...))
}

// positionedErr wraps a unification error with the offending node's
// position, preserving the typed error for errors.As.
func positionedErr(node ast.Node, err error) error {
	pos := ast.Position{}
	if node != nil {
		pos = node.Pos()
	}
	return fmt.Errorf("%d:%d: %w", pos.Line, pos.Column, err)
}
