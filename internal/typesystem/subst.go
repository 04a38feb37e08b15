package typesystem

import "github.com/rowlang/rowan/internal/effects"

// Subst maps type variable names to types and effect variable names to
// rows. The two namespaces are disjoint.
type Subst struct {
	Types   map[string]Type
	Effects effects.Subst
}

func NewSubst() Subst {
	return Subst{Types: map[string]Type{}, Effects: effects.Subst{}}
}

// IsEmpty reports whether the substitution binds nothing.
func (s Subst) IsEmpty() bool {
	return len(s.Types) == 0 && len(s.Effects) == 0
}

// Compose combines two substitutions so that applying the result equals
// applying s1 first and then s2.
func (s1 Subst) Compose(s2 Subst) Subst {
	out := NewSubst()
	for k, v := range s2.Types {
		out.Types[k] = v
	}
	for k, v := range s1.Types {
		out.Types[k] = v.Apply(s2)
	}
	out.Effects = s1.Effects.Compose(s2.Effects)
	return out
}

// BindTypeVar binds a single type variable.
func BindTypeVar(name string, t Type) Subst {
	s := NewSubst()
	s.Types[name] = t
	return s
}

// BindEffectVar binds a single effect variable to a row.
func BindEffectVar(name string, r effects.Row) Subst {
	s := NewSubst()
	s.Effects[name] = r
	return s
}

// FromEffects lifts an effect substitution into a full substitution.
func FromEffects(es effects.Subst) Subst {
	s := NewSubst()
	for k, v := range es {
		s.Effects[k] = v
	}
	return s
}
