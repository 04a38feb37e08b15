// Package totality implements the syntactic totality checker. Totality is
// stronger than the empty effect row: a total function terminates and
// cannot fault. The check is conservative by construction; a function it
// cannot prove total is rejected, never the other way around.
package totality

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/rowlang/rowan/internal/analyzer"
	"github.com/rowlang/rowan/internal/ast"
	"github.com/rowlang/rowan/internal/symbols"
	"github.com/rowlang/rowan/internal/typesystem"
)

// Error reports one totality violation in a definition.
type Error struct {
	Def      string
	Reason   string
	Position ast.Position
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d:%d: %s is not total: %s", e.Position.Line, e.Position.Column, e.Def, e.Reason)
}

// Checker verifies that every definition claiming totality satisfies the
// syntactic rules: no effects, no recursion, only calls to total
// functions, and case analysis only over strictly positive datatypes.
type Checker struct {
	types     map[ast.Node]typesystem.Type
	globals   *symbols.SymbolTable
	datatypes map[string]*ast.DataDecl
	logger    *zap.Logger
}

// NewChecker builds a checker over the results of a completed inference
// pass.
func NewChecker(res *analyzer.AnalysisResult, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{
		types:     res.Context.TypeMap,
		globals:   res.Globals,
		datatypes: res.Context.Datatypes,
		logger:    logger,
	}
}

// CheckProgram checks every definition whose type claims totality and
// reports all violations at once.
func (c *Checker) CheckProgram(prog *ast.Program) error {
	total := map[string]*ast.Definition{}
	for _, def := range prog.Defs {
		if sym, ok := c.globals.Resolve(def.Name); ok && sym.Total {
			total[def.Name] = def
		}
	}

	var err error
	for name, def := range total {
		if cycle := c.findRecursion(name, total); cycle != "" {
			err = multierr.Append(err, &Error{
				Def:      name,
				Reason:   fmt.Sprintf("recursion through %s", cycle),
				Position: def.Pos(),
			})
			continue
		}
		err = multierr.Append(err, c.checkBody(name, def.Body))
	}
	return err
}

// findRecursion walks the call graph restricted to total definitions and
// returns the name closing a cycle back to root, or "" if none.
func (c *Checker) findRecursion(root string, total map[string]*ast.Definition) string {
	visited := map[string]bool{}
	var visit func(name string) string
	visit = func(name string) string {
		def, ok := total[name]
		if !ok {
			return ""
		}
		if visited[name] {
			return ""
		}
		visited[name] = true
		for _, ref := range referencedNames(def.Body) {
			if ref == root {
				return name
			}
			if closed := visit(ref); closed != "" {
				return closed
			}
		}
		return ""
	}
	return visit(root)
}

func referencedNames(e ast.Expr) []string {
	var names []string
	walk(e, func(n ast.Expr) {
		if id, ok := n.(*ast.Ident); ok {
			names = append(names, id.Name)
		}
	})
	return names
}

func (c *Checker) checkBody(defName string, body ast.Expr) error {
	var err error
	walk(body, func(n ast.Expr) {
		switch node := n.(type) {
		case *ast.OpCall:
			err = multierr.Append(err, &Error{
				Def:      defName,
				Reason:   fmt.Sprintf("performs operation %q", node.Op),
				Position: node.Pos(),
			})
		case *ast.Handle:
			err = multierr.Append(err, &Error{
				Def:      defName,
				Reason:   "installs a handler",
				Position: node.Pos(),
			})
		case *ast.HandlerLit:
			err = multierr.Append(err, &Error{
				Def:      defName,
				Reason:   "constructs a handler",
				Position: node.Pos(),
			})
		case *ast.Call:
			if reason := c.calleeViolation(node); reason != "" {
				err = multierr.Append(err, &Error{Def: defName, Reason: reason, Position: node.Pos()})
			}
		case *ast.Match:
			err = multierr.Append(err, c.checkMatch(defName, node))
		}
	})
	if err == nil {
		c.logger.Debug("definition verified total", zap.String("name", defName))
	}
	return err
}

// calleeViolation inspects the inferred type of the callee; only calls
// through total arrows are permitted inside a total body.
func (c *Checker) calleeViolation(call *ast.Call) string {
	if id, ok := call.Fn.(*ast.Ident); ok {
		if sym, found := c.globals.Resolve(id.Name); found && sym.Kind == symbols.ConstructorSymbol {
			return ""
		}
	}
	t, ok := c.types[call.Fn]
	if !ok {
		return "calls a function whose type is unknown"
	}
	fn, ok := schemeBody(t).(typesystem.TFunc)
	if !ok {
		return fmt.Sprintf("calls a value of non-arrow type %s", t)
	}
	if !fn.Total {
		return fmt.Sprintf("calls a function of type %s, which is not total", fn)
	}
	return ""
}

// checkMatch requires exhaustive case analysis over a strictly positive
// datatype. Matching on a non-positive datatype could hide a fixed point
// and with it non-termination.
func (c *Checker) checkMatch(defName string, m *ast.Match) error {
	dd, ok := c.datatypes[m.Datatype]
	if !ok {
		return &Error{Def: defName, Reason: fmt.Sprintf("matches on unknown datatype %q", m.Datatype), Position: m.Pos()}
	}

	var err error
	if !c.strictlyPositive(dd, map[string]bool{}) {
		err = multierr.Append(err, &Error{
			Def:      defName,
			Reason:   fmt.Sprintf("datatype %s is not strictly positive", dd.Name),
			Position: m.Pos(),
		})
	}

	covered := map[string]bool{}
	for _, cs := range m.Cases {
		covered[cs.Ctor] = true
	}
	for _, ctor := range dd.Ctors {
		if !covered[ctor.Name] {
			err = multierr.Append(err, &Error{
				Def:      defName,
				Reason:   fmt.Sprintf("match on %s misses constructor %q", dd.Name, ctor.Name),
				Position: m.Pos(),
			})
		}
	}
	return err
}

// strictlyPositive reports whether the datatype never occurs to the left
// of an arrow in its own constructors, directly or through another
// datatype.
func (c *Checker) strictlyPositive(dd *ast.DataDecl, checking map[string]bool) bool {
	if checking[dd.Name] {
		return true
	}
	checking[dd.Name] = true
	defer delete(checking, dd.Name)

	for _, ctor := range dd.Ctors {
		for _, field := range ctor.Fields {
			if !c.positiveIn(dd.Name, field, true, checking) {
				return false
			}
		}
	}
	return true
}

func (c *Checker) positiveIn(name string, t typesystem.Type, positive bool, checking map[string]bool) bool {
	switch tt := t.(type) {
	case typesystem.TCon:
		if tt.Name == name && !positive {
			return false
		}
		if other, ok := c.datatypes[tt.Name]; ok && tt.Name != name {
			return c.strictlyPositive(other, checking)
		}
		return true
	case typesystem.TApp:
		if !c.positiveIn(name, tt.Constructor, positive, checking) {
			return false
		}
		for _, a := range tt.Args {
			if !c.positiveIn(name, a, positive, checking) {
				return false
			}
		}
		return true
	case typesystem.TFunc:
		for _, p := range tt.Params {
			// Parameter positions flip the polarity.
			if !c.positiveIn(name, p.Type, !positive, checking) {
				return false
			}
		}
		return c.positiveIn(name, tt.Return, positive, checking)
	case typesystem.TForall:
		return c.positiveIn(name, tt.Type, positive, checking)
	}
	return true
}

func schemeBody(t typesystem.Type) typesystem.Type {
	for {
		forall, ok := t.(typesystem.TForall)
		if !ok {
			return t
		}
		t = forall.Type
	}
}
