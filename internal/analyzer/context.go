package analyzer

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/rowlang/rowan/internal/ast"
	"github.com/rowlang/rowan/internal/effects"
	"github.com/rowlang/rowan/internal/typesystem"
)

// InferenceContext holds the state for a type inference pass. Using a
// context instead of global state keeps type variable names predictable
// and lets tests run in isolation.
type InferenceContext struct {
	counter int

	// TypeMap records the inferred type of every visited node.
	TypeMap map[ast.Node]typesystem.Type
	// GlobalSubst accumulates the substitution for the entire pass.
	GlobalSubst typesystem.Subst
	// EffectSigs maps effect names to their declared operations
	// (builtins plus program declarations).
	EffectSigs map[string][]ast.OpSig
	// Datatypes maps datatype names to their declarations.
	Datatypes map[string]*ast.DataDecl

	// deferred tracks effect variables whose row membership is not yet
	// decided; they are finalized when the defining scope generalizes.
	deferred map[string]bool
	// scopedEffectVars names the rigid effect variables introduced by
	// enclosing handle constructs, for escape checking.
	scopedEffectVars []string

	logger *zap.Logger
}

// NewInferenceContext creates a fresh inference context.
func NewInferenceContext() *InferenceContext {
	return &InferenceContext{
		TypeMap:     make(map[ast.Node]typesystem.Type),
		GlobalSubst: typesystem.NewSubst(),
		EffectSigs:  make(map[string][]ast.OpSig),
		Datatypes:   make(map[string]*ast.DataDecl),
		deferred:    make(map[string]bool),
		logger:      zap.NewNop(),
	}
}

// WithLogger attaches a structured logger for inference tracing.
func (ctx *InferenceContext) WithLogger(l *zap.Logger) *InferenceContext {
	if l != nil {
		ctx.logger = l
	}
	return ctx
}

// FreshVar generates a fresh type variable.
func (ctx *InferenceContext) FreshVar() typesystem.TVar {
	ctx.counter++
	return typesystem.TVar{Name: fmt.Sprintf("t%d", ctx.counter)}
}

// FreshEffectVar generates a fresh effect variable. Implements
// effects.VarSource so unification can mint row tails.
func (ctx *InferenceContext) FreshEffectVar() effects.Var {
	ctx.counter++
	return effects.Var{Name: fmt.Sprintf("e%d", ctx.counter)}
}

// FreshDeferredEffectVar generates an effect variable whose membership
// is deferred until the surrounding scope closes.
func (ctx *InferenceContext) FreshDeferredEffectVar() effects.Var {
	v := ctx.FreshEffectVar()
	v.Deferred = true
	ctx.deferred[v.Name] = true
	return v
}

// IsDeferred reports whether the named effect variable is still deferred.
func (ctx *InferenceContext) IsDeferred(name string) bool {
	return ctx.deferred[name]
}

// pushScopedEffectVar registers a handler-scoped rigid effect variable.
func (ctx *InferenceContext) pushScopedEffectVar(name string) {
	ctx.scopedEffectVars = append(ctx.scopedEffectVars, name)
}

func (ctx *InferenceContext) popScopedEffectVar() {
	ctx.scopedEffectVars = ctx.scopedEffectVars[:len(ctx.scopedEffectVars)-1]
}

// isScoped reports whether name was introduced by an enclosing handle.
func (ctx *InferenceContext) isScoped(name string) bool {
	for _, s := range ctx.scopedEffectVars {
		if s == name {
			return true
		}
	}
	return false
}

// compose folds a substitution into the global one and returns the
// updated view of t.
func (ctx *InferenceContext) compose(s typesystem.Subst) {
	ctx.GlobalSubst = ctx.GlobalSubst.Compose(s)
}

// resolve applies the accumulated substitution to a type.
func (ctx *InferenceContext) resolve(t typesystem.Type) typesystem.Type {
	return t.Apply(ctx.GlobalSubst)
}

// resolveRow applies the accumulated substitution to a row.
func (ctx *InferenceContext) resolveRow(r effects.Row) effects.Row {
	return r.Apply(ctx.GlobalSubst.Effects)
}

// unify unifies two types, folding the result into the global
// substitution.
func (ctx *InferenceContext) unify(t1, t2 typesystem.Type, node ast.Node) error {
	s, err := typesystem.Unify(ctx.resolve(t1), ctx.resolve(t2), ctx)
	if err != nil {
		return positionedErr(node, err)
	}
	ctx.compose(s)
	return nil
}

// unifyRows unifies two effect rows, folding the result into the global
// substitution.
func (ctx *InferenceContext) unifyRows(r1, r2 effects.Row, node ast.Node) error {
	es, err := effects.Unify(ctx.resolveRow(r1), ctx.resolveRow(r2), ctx)
	if err != nil {
		return positionedErr(node, err)
	}
	ctx.compose(typesystem.FromEffects(es))
	return nil
}

// lookupOp finds the declared signature of op on the named effect.
func (ctx *InferenceContext) lookupOp(effect, op string) (ast.OpSig, bool) {
	for _, sig := range ctx.EffectSigs[effect] {
		if sig.Name == op {
			return sig, true
		}
	}
	return ast.OpSig{}, false
}
