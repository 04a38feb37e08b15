package typesystem

import (
	"fmt"

	"github.com/rowlang/rowan/internal/effects"
)

// TCap is the type of an effect capability: a bundle of operation
// closures tied to one handler activation. Var is the handler-scoped
// effect variable naming that activation's effect; it is what the
// escape check looks for in the handle expression's result type.
type TCap struct {
	Effect string
	Var    effects.Var
}

func (t TCap) String() string {
	return fmt.Sprintf("cap<%s|%s>", t.Effect, t.Var)
}

func (t TCap) Apply(s Subst) Type {
	rep, ok := s.Effects[t.Var.Name]
	if !ok {
		return t
	}
	// A capability is tied to exactly one activation, so the variable can
	// only be renamed, never widened to a larger row.
	if vars := rep.Vars(); len(vars) == 1 && len(rep.Atoms()) == 0 {
		return TCap{Effect: t.Effect, Var: vars[0]}
	}
	return t
}

func (t TCap) FreeTypeVariables() []TVar     { return nil }
func (t TCap) FreeEffectVariables() []string { return []string{t.Var.Name} }

// THandler is the type of a first-class handler value for one effect
// kind: it consumes a handled computation of result In and produces Out,
// and its clauses may themselves perform the effects in Clauses.
type THandler struct {
	Effect  string
	In      Type
	Out     Type
	Clauses effects.Row
}

func (t THandler) String() string {
	return fmt.Sprintf("handler<%s>(%s) ->%s %s", t.Effect, t.In, t.Clauses, t.Out)
}

func (t THandler) Apply(s Subst) Type {
	return THandler{
		Effect:  t.Effect,
		In:      t.In.Apply(s),
		Out:     t.Out.Apply(s),
		Clauses: t.Clauses.Apply(s.Effects),
	}
}

func (t THandler) FreeTypeVariables() []TVar {
	return uniqueTVars(append(t.In.FreeTypeVariables(), t.Out.FreeTypeVariables()...))
}

func (t THandler) FreeEffectVariables() []string {
	vars := t.In.FreeEffectVariables()
	for _, v := range t.Clauses.Vars() {
		vars = append(vars, v.Name)
	}
	vars = append(vars, t.Out.FreeEffectVariables()...)
	return uniqueStrings(vars)
}
