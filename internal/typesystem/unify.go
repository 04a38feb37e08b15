package typesystem

import (
	"fmt"

	"github.com/rowlang/rowan/internal/effects"
)

// Unify attempts to find a substitution that makes t1 and t2 equal.
// Arrow types unify domains, codomains and effect rows independently;
// named/optional/implicit parameters match by name, order-independent.
// fresh supplies effect-variable tails for open-row unification and may
// be nil outside inference.
func Unify(t1, t2 Type, fresh effects.VarSource) (Subst, error) {
	switch t1 := t1.(type) {
	case TVar:
		return bindVar(t1, t2)

	case TCon:
		switch t2 := t2.(type) {
		case TVar:
			return bindVar(t2, t1)
		case TCon:
			if t1.Name == t2.Name {
				return NewSubst(), nil
			}
			return Subst{}, errUnifyMsg(t1, t2, "type constant mismatch")
		default:
			return Subst{}, errUnify(t1, t2)
		}

	case TApp:
		switch t2 := t2.(type) {
		case TVar:
			return bindVar(t2, t1)
		case TApp:
			s, err := Unify(t1.Constructor, t2.Constructor, fresh)
			if err != nil {
				return Subst{}, err
			}
			if len(t1.Args) != len(t2.Args) {
				return Subst{}, errUnifyMsg(t1, t2,
					fmt.Sprintf("type arguments length mismatch: %d vs %d", len(t1.Args), len(t2.Args)))
			}
			for i := range t1.Args {
				s2, err := Unify(t1.Args[i].Apply(s), t2.Args[i].Apply(s), fresh)
				if err != nil {
					return Subst{}, err
				}
				s = s.Compose(s2)
			}
			return s, nil
		default:
			return Subst{}, errUnify(t1, t2)
		}

	case TFunc:
		switch t2 := t2.(type) {
		case TVar:
			return bindVar(t2, t1)
		case TFunc:
			return unifyFuncs(t1, t2, fresh)
		default:
			return Subst{}, errUnify(t1, t2)
		}

	case TForall:
		switch t2 := t2.(type) {
		case TVar:
			return bindVar(t2, t1)
		case TForall:
			return unifySchemes(t1, t2, fresh)
		default:
			return Subst{}, errUnifyMsg(t1, t2, "cannot unify polytype with monotype")
		}

	case TCap:
		switch t2 := t2.(type) {
		case TVar:
			return bindVar(t2, t1)
		case TCap:
			if t1.Effect != t2.Effect {
				return Subst{}, errUnifyMsg(t1, t2, "capability effect mismatch")
			}
			es, err := effects.Unify(effects.Single(t1.Var), effects.Single(t2.Var), fresh)
			if err != nil {
				return Subst{}, errUnifyContext("capability label", err)
			}
			return FromEffects(es), nil
		default:
			return Subst{}, errUnify(t1, t2)
		}

	case THandler:
		switch t2 := t2.(type) {
		case TVar:
			return bindVar(t2, t1)
		case THandler:
			if t1.Effect != t2.Effect {
				return Subst{}, errUnifyMsg(t1, t2, "handler effect mismatch")
			}
			s, err := Unify(t1.In, t2.In, fresh)
			if err != nil {
				return Subst{}, err
			}
			s2, err := Unify(t1.Out.Apply(s), t2.Out.Apply(s), fresh)
			if err != nil {
				return Subst{}, err
			}
			s = s.Compose(s2)
			es, err := effects.Unify(t1.Clauses.Apply(s.Effects), t2.Clauses.Apply(s.Effects), fresh)
			if err != nil {
				return Subst{}, errUnifyContext("handler clause row", err)
			}
			return s.Compose(FromEffects(es)), nil
		default:
			return Subst{}, errUnify(t1, t2)
		}

	default:
		return Subst{}, errUnifyMsg(t1, t2, fmt.Sprintf("unknown type kind: %T", t1))
	}
}

func unifyFuncs(t1, t2 TFunc, fresh effects.VarSource) (Subst, error) {
	s := NewSubst()

	// Positional parameters pair up in order; named, optional and
	// implicit parameters pair up by name.
	pos1, named1 := splitParams(t1.Params)
	pos2, named2 := splitParams(t2.Params)

	if len(pos1) != len(pos2) {
		return Subst{}, errUnifyMsg(t1, t2,
			fmt.Sprintf("function parameter count mismatch: %d vs %d", len(pos1), len(pos2)))
	}
	for i := range pos1 {
		s2, err := Unify(pos1[i].Type.Apply(s), pos2[i].Type.Apply(s), fresh)
		if err != nil {
			return Subst{}, errUnifyContext(fmt.Sprintf("parameter %d", i+1), err)
		}
		s = s.Compose(s2)
	}

	matched := map[string]bool{}
	for name, p1 := range named1 {
		p2, ok := named2[name]
		if !ok {
			// An unmatched optional parameter defers: no constraint.
			if p1.Mode == OptionalParam {
				continue
			}
			return Subst{}, errUnifyMsg(t1, t2, fmt.Sprintf("no parameter named %q", name))
		}
		matched[name] = true
		s2, err := Unify(p1.Type.Apply(s), p2.Type.Apply(s), fresh)
		if err != nil {
			return Subst{}, errUnifyContext(fmt.Sprintf("parameter %q", name), err)
		}
		s = s.Compose(s2)
	}
	for name, p2 := range named2 {
		if matched[name] {
			continue
		}
		if p2.Mode == OptionalParam {
			continue
		}
		return Subst{}, errUnifyMsg(t1, t2, fmt.Sprintf("no parameter named %q", name))
	}

	s2, err := Unify(t1.Return.Apply(s), t2.Return.Apply(s), fresh)
	if err != nil {
		return Subst{}, err
	}
	s = s.Compose(s2)

	es, err := effects.Unify(t1.Effects.Apply(s.Effects), t2.Effects.Apply(s.Effects), fresh)
	if err != nil {
		return Subst{}, errUnifyContext("effect row of function type", err)
	}
	return s.Compose(FromEffects(es)), nil
}

func splitParams(params []Param) ([]Param, map[string]Param) {
	var pos []Param
	named := map[string]Param{}
	for _, p := range params {
		if p.Mode == PositionalParam || p.Name == "" {
			pos = append(pos, p)
		} else {
			named[p.Name] = p
		}
	}
	return pos, named
}

// unifySchemes checks alpha-equivalence of two schemes by skolemization:
// corresponding quantified variables map to the same rigid stand-in, so
// body unification matches structure without binding them.
func unifySchemes(t1, t2 TForall, fresh effects.VarSource) (Subst, error) {
	if len(t1.TypeVars) != len(t2.TypeVars) || len(t1.EffectVars) != len(t2.EffectVars) {
		return Subst{}, errUnifyMsg(t1, t2, "scheme parameter count mismatch")
	}

	s := NewSubst()
	for i, v1 := range t1.TypeVars {
		skolem := TCon{Name: fmt.Sprintf("$skolem_%s", v1.Name)}
		s.Types[v1.Name] = skolem
		s.Types[t2.TypeVars[i].Name] = skolem
	}
	for i, v1 := range t1.EffectVars {
		skolem := effects.New(fmt.Sprintf("$skolem_%s", v1.Name))
		s.Effects[v1.Name] = skolem
		s.Effects[t2.EffectVars[i].Name] = skolem
	}

	return Unify(t1.Type.Apply(s), t2.Type.Apply(s), fresh)
}

func bindVar(tv TVar, t Type) (Subst, error) {
	if other, ok := t.(TVar); ok && other.Name == tv.Name {
		return NewSubst(), nil
	}
	if tv.Rigid {
		// A rigid variable stands for itself; try binding the other side.
		if other, ok := t.(TVar); ok && !other.Rigid {
			return BindTypeVar(other.Name, tv), nil
		}
		return Subst{}, errUnifyMsg(tv, t, fmt.Sprintf("rigid type variable %s cannot be instantiated", tv.Name))
	}
	if occursCheck(tv, t) {
		return Subst{}, errUnifyMsg(tv, t, fmt.Sprintf("infinite type detected: %s in %s", tv, t))
	}
	return BindTypeVar(tv.Name, t), nil
}

func occursCheck(tv TVar, t Type) bool {
	for _, v := range t.FreeTypeVariables() {
		if v.Name == tv.Name {
			return true
		}
	}
	return false
}
