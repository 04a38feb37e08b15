package analyzer

import (
	"github.com/rowlang/rowan/internal/effects"
	"github.com/rowlang/rowan/internal/symbols"
	"github.com/rowlang/rowan/internal/typesystem"
)

// Generalize closes a type over the variables the environment does not
// constrain, producing a scheme. Deferred effect tails that nothing
// pinned down are finalized to the pure row first: an effect nobody
// demanded is an effect the function does not have.
func (ctx *InferenceContext) Generalize(t typesystem.Type, table *symbols.SymbolTable) typesystem.Type {
	t = ctx.resolve(t)

	envT, envE := ctx.envFreeVars(table)
	scoped := map[string]bool{}
	for _, name := range ctx.scopedEffectVars {
		scoped[name] = true
	}

	finalized := false
	for _, name := range t.FreeEffectVariables() {
		if ctx.IsDeferred(name) && !envE[name] && !scoped[name] {
			ctx.compose(typesystem.BindEffectVar(name, effects.Empty))
			delete(ctx.deferred, name)
			finalized = true
		}
	}
	if finalized {
		t = ctx.resolve(t)
	}

	var typeVars []typesystem.TVar
	for _, v := range t.FreeTypeVariables() {
		if !envT[v.Name] && !v.Rigid {
			typeVars = append(typeVars, typesystem.TVar{Name: v.Name})
		}
	}
	var effectVars []effects.Var
	for _, name := range t.FreeEffectVariables() {
		if !envE[name] && !scoped[name] {
			effectVars = append(effectVars, effects.Var{Name: name})
		}
	}

	if len(typeVars) == 0 && len(effectVars) == 0 {
		return t
	}
	return typesystem.TForall{TypeVars: typeVars, EffectVars: effectVars, Type: t}
}

// envFreeVars collects the free type and effect variables of every
// binding reachable from table, under the current substitution.
func (ctx *InferenceContext) envFreeVars(table *symbols.SymbolTable) (map[string]bool, map[string]bool) {
	tvars := map[string]bool{}
	evars := map[string]bool{}
	for cur := table; cur != nil; cur = cur.Parent() {
		for _, sym := range cur.All() {
			if sym.Type == nil {
				continue
			}
			resolved := ctx.resolve(sym.Type)
			for _, v := range resolved.FreeTypeVariables() {
				tvars[v.Name] = true
			}
			for _, name := range resolved.FreeEffectVariables() {
				evars[name] = true
			}
		}
	}
	return tvars, evars
}
