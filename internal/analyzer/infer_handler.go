package analyzer

import (
	"go.uber.org/zap"

	"github.com/rowlang/rowan/internal/ast"
	"github.com/rowlang/rowan/internal/effects"
	"github.com/rowlang/rowan/internal/symbols"
	"github.com/rowlang/rowan/internal/typesystem"
)

func (ctx *InferenceContext) inferHandlerLit(n *ast.HandlerLit, table *symbols.SymbolTable) (typesystem.Type, effects.Row, error) {
	sigs, ok := ctx.EffectSigs[n.Effect]
	if !ok {
		return nil, effects.Empty, inferErrorf(n, "unknown effect %q", n.Effect)
	}

	in := typesystem.Type(ctx.FreshVar())
	out := typesystem.Type(ctx.FreshVar())

	// One shared row variable describes what resuming may perform; it is
	// tied back to the clause row below.
	resumeVar := ctx.FreshEffectVar()
	clauseRow := effects.Empty

	covered := map[string]bool{}
	for _, clause := range n.Ops {
		sig, ok := ctx.lookupOp(n.Effect, clause.Op)
		if !ok {
			return nil, effects.Empty, inferErrorf(n, "effect %s has no operation %q", n.Effect, clause.Op)
		}
		if covered[clause.Op] {
			return nil, effects.Empty, inferErrorf(n, "duplicate clause for operation %q", clause.Op)
		}
		covered[clause.Op] = true
		if len(clause.Params) != len(sig.Params) {
			return nil, effects.Empty, inferErrorf(n, "operation %s takes %d parameters, clause binds %d",
				clause.Op, len(sig.Params), len(clause.Params))
		}

		sigSubst := ctx.instantiateOpSig(sig)
		scope := symbols.NewEnclosedSymbolTable(table)
		for i, p := range clause.Params {
			scope.DefineVar(p, sig.Params[i].Apply(sigSubst))
		}
		// The resumption returns the handler's answer, not the operation's
		// result; invoking it may perform whatever the clauses perform.
		resumeType := typesystem.TFunc{
			Params:  []typesystem.Param{{Mode: typesystem.PositionalParam, Type: sig.Result.Apply(sigSubst)}},
			Return:  out,
			Effects: effects.Single(resumeVar),
		}
		scope.DefineVar(clause.Resume, resumeType)

		bt, brow, err := ctx.Infer(clause.Body, scope)
		if err != nil {
			return nil, effects.Empty, err
		}
		if err := ctx.unify(out, bt, clause.Body); err != nil {
			return nil, effects.Empty, err
		}
		clauseRow = effects.Union(clauseRow, brow)
	}

	for _, sig := range sigs {
		if !covered[sig.Name] {
			return nil, effects.Empty, inferErrorf(n, "handler for %s is missing a clause for operation %q", n.Effect, sig.Name)
		}
	}

	if n.Return != nil {
		scope := symbols.NewEnclosedSymbolTable(table)
		scope.DefineVar(n.Return.Param, in)
		rt, rrow, err := ctx.Infer(n.Return.Body, scope)
		if err != nil {
			return nil, effects.Empty, err
		}
		if err := ctx.unify(out, rt, n.Return.Body); err != nil {
			return nil, effects.Empty, err
		}
		clauseRow = effects.Union(clauseRow, rrow)
	} else {
		// Fallback return clause is the identity.
		if err := ctx.unify(in, out, n); err != nil {
			return nil, effects.Empty, err
		}
	}

	if n.Finally != nil {
		// The finally result is discarded; only its effects count.
		_, frow, err := ctx.Infer(n.Finally.Body, table)
		if err != nil {
			return nil, effects.Empty, err
		}
		clauseRow = effects.Union(clauseRow, frow)
	}

	// Resuming performs exactly what the clauses perform. Binding the
	// resume variable to the clause row with itself removed closes the
	// knot without an occurs cycle.
	clauseRow = ctx.resolveRow(clauseRow)
	ctx.compose(typesystem.BindEffectVar(resumeVar.Name, clauseRow.WithoutVar(resumeVar.Name)))
	clauseRow = ctx.resolveRow(clauseRow)

	h := typesystem.THandler{
		Effect:  n.Effect,
		In:      ctx.resolve(in),
		Out:     ctx.resolve(out),
		Clauses: clauseRow,
	}
	return h, effects.Empty, nil
}

// instantiateOpSig freshens the type variables of an operation signature
// for one use, so polymorphic operations do not leak constraints between
// call sites.
func (ctx *InferenceContext) instantiateOpSig(sig ast.OpSig) typesystem.Subst {
	s := typesystem.NewSubst()
	seen := map[string]bool{}
	freshen := func(t typesystem.Type) {
		for _, v := range t.FreeTypeVariables() {
			if !seen[v.Name] {
				seen[v.Name] = true
				s.Types[v.Name] = ctx.FreshVar()
			}
		}
	}
	for _, p := range sig.Params {
		freshen(p)
	}
	freshen(sig.Result)
	return s
}

func (ctx *InferenceContext) inferHandle(n *ast.Handle, table *symbols.SymbolTable) (typesystem.Type, effects.Row, error) {
	ht, hrow, err := ctx.Infer(n.Handler, table)
	if err != nil {
		return nil, effects.Empty, err
	}
	handler, ok := ctx.resolve(ht).(typesystem.THandler)
	if !ok {
		return nil, effects.Empty, inferErrorf(n, "handle requires a handler value, got %s", ctx.resolve(ht))
	}

	// The handler's effect is scoped to this activation: a fresh effect
	// variable names it, and nothing mentioning that variable may leave.
	scoped := ctx.FreshEffectVar()
	ctx.pushScopedEffectVar(scoped.Name)
	defer ctx.popScopedEffectVar()

	scope := symbols.NewEnclosedSymbolTable(table)
	scope.Define(&symbols.Symbol{
		Name: n.Capability,
		Type: typesystem.TCap{Effect: handler.Effect, Var: scoped},
		Kind: symbols.CapabilitySymbol,
	})

	bt, brow, err := ctx.Infer(n.Body, scope)
	if err != nil {
		return nil, effects.Empty, err
	}
	if err := ctx.unify(handler.In, bt, n.Body); err != nil {
		return nil, effects.Empty, err
	}

	result := ctx.resolve(handler.Out)
	if escaped, bad := effectVarEscapes(scoped.Name, result); escaped {
		return nil, effects.Empty, &EffectEscapeError{Var: scoped.Name, Type: bad, Position: n.Pos()}
	}

	// The activation discharges its own effect; what remains is the rest
	// of the body's row plus whatever the clauses themselves perform.
	row := ctx.resolveRow(brow).WithoutVar(scoped.Name)
	row = effects.Union(row, ctx.resolveRow(handler.Clauses))
	row = effects.Union(row, hrow)

	ctx.logger.Debug("handle inferred",
		zap.String("effect", handler.Effect),
		zap.String("result", result.String()),
		zap.String("row", row.String()))
	return result, row, nil
}

// effectVarEscapes reports whether the named handler-scoped effect
// variable occurs free in t. An occurrence under a scheme whose own
// quantifiers re-bind the name does not count: such a value re-abstracts
// the effect and cannot smuggle the activation out. A scheme quantifying
// only unrelated variables guards nothing.
func effectVarEscapes(name string, t typesystem.Type) (bool, typesystem.Type) {
	switch tt := t.(type) {
	case typesystem.TVar, typesystem.TCon:
		return false, nil
	case typesystem.TCap:
		if tt.Var.Name == name {
			return true, tt
		}
		return false, nil
	case typesystem.TApp:
		if ok, bad := effectVarEscapes(name, tt.Constructor); ok {
			return true, bad
		}
		for _, a := range tt.Args {
			if ok, bad := effectVarEscapes(name, a); ok {
				return true, bad
			}
		}
		return false, nil
	case typesystem.TFunc:
		if tt.Effects.HasVar(name) {
			return true, tt
		}
		for _, p := range tt.Params {
			if ok, bad := effectVarEscapes(name, p.Type); ok {
				return true, bad
			}
		}
		return effectVarEscapes(name, tt.Return)
	case typesystem.THandler:
		if tt.Clauses.HasVar(name) {
			return true, tt
		}
		if ok, bad := effectVarEscapes(name, tt.In); ok {
			return true, bad
		}
		return effectVarEscapes(name, tt.Out)
	case typesystem.TForall:
		for _, v := range tt.EffectVars {
			if v.Name == name {
				return false, nil
			}
		}
		return effectVarEscapes(name, tt.Type)
	}
	return false, nil
}

func (ctx *InferenceContext) inferOpCall(n *ast.OpCall, table *symbols.SymbolTable) (typesystem.Type, effects.Row, error) {
	ct, crow, err := ctx.Infer(n.Cap, table)
	if err != nil {
		return nil, effects.Empty, err
	}
	cap_, ok := ctx.resolve(ct).(typesystem.TCap)
	if !ok {
		return nil, effects.Empty, inferErrorf(n, "operation %q requires a capability, got %s", n.Op, ctx.resolve(ct))
	}

	sig, ok := ctx.lookupOp(cap_.Effect, n.Op)
	if !ok {
		return nil, effects.Empty, inferErrorf(n, "effect %s has no operation %q", cap_.Effect, n.Op)
	}
	if len(n.Args) != len(sig.Params) {
		return nil, effects.Empty, inferErrorf(n, "operation %s.%s takes %d arguments, got %d",
			cap_.Effect, n.Op, len(sig.Params), len(n.Args))
	}

	sigSubst := ctx.instantiateOpSig(sig)
	row := effects.Union(crow, effects.Single(cap_.Var))
	for i, arg := range n.Args {
		at, arow, err := ctx.Infer(arg, table)
		if err != nil {
			return nil, effects.Empty, err
		}
		if err := ctx.subsume(sig.Params[i].Apply(sigSubst), at, arg); err != nil {
			return nil, effects.Empty, err
		}
		row = effects.Union(row, arow)
	}
	return ctx.resolve(sig.Result.Apply(sigSubst)), row, nil
}
