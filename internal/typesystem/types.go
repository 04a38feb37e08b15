package typesystem

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rowlang/rowan/internal/config"
	"github.com/rowlang/rowan/internal/effects"
)

// Type is the interface for all types in the system.
type Type interface {
	String() string
	Apply(Subst) Type
	// FreeTypeVariables returns free type variables in first-appearance
	// order. The order is load-bearing: generalization quantifies in this
	// order so pretty-printed schemes are stable.
	FreeTypeVariables() []TVar
	// FreeEffectVariables returns free effect variable names in
	// first-appearance order.
	FreeEffectVariables() []string
}

// TVar represents a type variable (e.g. 'a', 't1').
type TVar struct {
	Name string
	// Rigid variables stand for themselves and never unify with a
	// concrete type; they arise from explicit annotations and from the
	// handler construct's scoped effect variable's type-level twin.
	Rigid bool
}

func (t TVar) String() string {
	// Normalize auto-generated variables (t1, t2, ...) in test mode for
	// deterministic golden output.
	if config.IsTestMode && strings.HasPrefix(t.Name, "t") {
		if _, err := strconv.Atoi(t.Name[1:]); err == nil {
			return "t?"
		}
	}
	return t.Name
}

func (t TVar) Apply(s Subst) Type {
	if rep, ok := s.Types[t.Name]; ok {
		if tv, isVar := rep.(TVar); isVar && tv.Name == t.Name {
			return t
		}
		return rep.Apply(s)
	}
	return t
}

func (t TVar) FreeTypeVariables() []TVar     { return []TVar{t} }
func (t TVar) FreeEffectVariables() []string { return nil }

// TCon represents a type constant (e.g. Int, Bool, List).
type TCon struct {
	Name string
}

func (t TCon) String() string                { return t.Name }
func (t TCon) Apply(Subst) Type              { return t }
func (t TCon) FreeTypeVariables() []TVar     { return nil }
func (t TCon) FreeEffectVariables() []string { return nil }

// TApp represents a type application (e.g. List Int).
type TApp struct {
	Constructor Type
	Args        []Type
}

func (t TApp) String() string {
	args := make([]string, len(t.Args))
	for i, a := range t.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s<%s>", t.Constructor, strings.Join(args, ", "))
}

func (t TApp) Apply(s Subst) Type {
	args := make([]Type, len(t.Args))
	for i, a := range t.Args {
		args[i] = a.Apply(s)
	}
	return TApp{Constructor: t.Constructor.Apply(s), Args: args}
}

func (t TApp) FreeTypeVariables() []TVar {
	vars := t.Constructor.FreeTypeVariables()
	for _, a := range t.Args {
		vars = append(vars, a.FreeTypeVariables()...)
	}
	return uniqueTVars(vars)
}

func (t TApp) FreeEffectVariables() []string {
	vars := t.Constructor.FreeEffectVariables()
	for _, a := range t.Args {
		vars = append(vars, a.FreeEffectVariables()...)
	}
	return uniqueStrings(vars)
}

// ParamMode classifies a function parameter slot.
type ParamMode int

const (
	PositionalParam ParamMode = iota
	NamedParam
	OptionalParam
	ImplicitParam
)

// Param is one parameter slot of an arrow type. Named, optional and
// implicit parameters unify by name, order-independent.
type Param struct {
	Name string
	Mode ParamMode
	Type Type
}

func (p Param) String() string {
	suffix := ""
	switch p.Mode {
	case OptionalParam:
		suffix = "?"
	case ImplicitParam:
		suffix = "~"
	}
	if p.Name == "" || p.Mode == PositionalParam {
		return p.Type.String()
	}
	return fmt.Sprintf("%s%s: %s", p.Name, suffix, p.Type)
}

// TFunc represents a function type (x: A, y?: B) ->[R] C carrying an
// effect row. Total marks the unannotated arrow form, which is stronger
// than the empty row: termination and absence of runtime errors.
type TFunc struct {
	Params  []Param
	Return  Type
	Effects effects.Row
	Total   bool
}

func (t TFunc) String() string {
	params := make([]string, len(t.Params))
	for i, p := range t.Params {
		params[i] = p.String()
	}
	arrow := "->" + t.Effects.String()
	if t.Total {
		arrow = "->"
	}
	return fmt.Sprintf("(%s) %s %s", strings.Join(params, ", "), arrow, t.Return)
}

func (t TFunc) Apply(s Subst) Type {
	params := make([]Param, len(t.Params))
	for i, p := range t.Params {
		params[i] = Param{Name: p.Name, Mode: p.Mode, Type: p.Type.Apply(s)}
	}
	return TFunc{
		Params:  params,
		Return:  t.Return.Apply(s),
		Effects: t.Effects.Apply(s.Effects),
		Total:   t.Total,
	}
}

func (t TFunc) FreeTypeVariables() []TVar {
	var vars []TVar
	for _, p := range t.Params {
		vars = append(vars, p.Type.FreeTypeVariables()...)
	}
	vars = append(vars, t.Return.FreeTypeVariables()...)
	return uniqueTVars(vars)
}

func (t TFunc) FreeEffectVariables() []string {
	var vars []string
	for _, p := range t.Params {
		vars = append(vars, p.Type.FreeEffectVariables()...)
	}
	for _, v := range t.Effects.Vars() {
		vars = append(vars, v.Name)
	}
	vars = append(vars, t.Return.FreeEffectVariables()...)
	return uniqueStrings(vars)
}

// TForall is a type scheme: a type prefixed by quantified type and effect
// parameters. Value, optional and implicit parameter slots of the scheme
// live in the wrapped TFunc's Params. Quantified names are scoped to the
// scheme and may be alpha-renamed.
type TForall struct {
	TypeVars   []TVar
	EffectVars []effects.Var
	Type       Type
}

func (t TForall) String() string {
	var quant []string
	for _, v := range t.TypeVars {
		quant = append(quant, v.String())
	}
	for _, v := range t.EffectVars {
		quant = append(quant, v.String())
	}
	if len(quant) == 0 {
		return t.Type.String()
	}
	return fmt.Sprintf("forall %s. %s", strings.Join(quant, " "), t.Type)
}

func (t TForall) Apply(s Subst) Type {
	// Quantified names shadow the substitution.
	filtered := NewSubst()
	boundT := map[string]bool{}
	for _, v := range t.TypeVars {
		boundT[v.Name] = true
	}
	boundE := map[string]bool{}
	for _, v := range t.EffectVars {
		boundE[v.Name] = true
	}
	for k, v := range s.Types {
		if !boundT[k] {
			filtered.Types[k] = v
		}
	}
	for k, v := range s.Effects {
		if !boundE[k] {
			filtered.Effects[k] = v
		}
	}
	return TForall{TypeVars: t.TypeVars, EffectVars: t.EffectVars, Type: t.Type.Apply(filtered)}
}

func (t TForall) FreeTypeVariables() []TVar {
	bound := map[string]bool{}
	for _, v := range t.TypeVars {
		bound[v.Name] = true
	}
	var out []TVar
	for _, v := range t.Type.FreeTypeVariables() {
		if !bound[v.Name] {
			out = append(out, v)
		}
	}
	return uniqueTVars(out)
}

func (t TForall) FreeEffectVariables() []string {
	bound := map[string]bool{}
	for _, v := range t.EffectVars {
		bound[v.Name] = true
	}
	var out []string
	for _, v := range t.Type.FreeEffectVariables() {
		if !bound[v] {
			out = append(out, v)
		}
	}
	return uniqueStrings(out)
}

// QuantifiesEffects reports whether the scheme quantifies over any effect
// parameter. Such schemes can never be marked total.
func (t TForall) QuantifiesEffects() bool {
	return len(t.EffectVars) > 0
}

func uniqueTVars(vars []TVar) []TVar {
	var unique []TVar
	seen := map[string]bool{}
	for _, v := range vars {
		if !seen[v.Name] {
			seen[v.Name] = true
			unique = append(unique, v)
		}
	}
	return unique
}

func uniqueStrings(names []string) []string {
	var unique []string
	seen := map[string]bool{}
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			unique = append(unique, n)
		}
	}
	return unique
}
