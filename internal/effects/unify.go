package effects

// VarSource supplies fresh effect variables for unification tails.
// A nil source is allowed; unification then refuses the (rare) case where
// both rows are open and both carry residual atoms.
type VarSource interface {
	FreshEffectVar() Var
}

// Unify finds a substitution making the two rows equal as sets, or fails
// with a *RowMismatchError. Unification is associative, commutative and
// idempotent: position and duplication are never meaningful.
func Unify(r1, r2 Row, fresh VarSource) (Subst, error) {
	// Fast path: a row that is exactly one variable unifies with anything
	// not containing it by direct binding. This keeps the common
	// instantiation case ({e} ~ {io,exn}) maximally simple: e binds to the
	// entire other row.
	if s, ok := bindWholeRow(r1, r2); ok {
		return s, nil
	}
	if s, ok := bindWholeRow(r2, r1); ok {
		return s, nil
	}

	// Cancel shared structure; only residuals matter for a set unifier.
	a1 := subtractAtoms(r1, r2)
	a2 := subtractAtoms(r2, r1)
	v1 := subtractVars(r1, r2)
	v2 := subtractVars(r2, r1)

	switch {
	case len(v1) == 0 && len(v2) == 0:
		if len(a1) > 0 || len(a2) > 0 {
			return nil, &RowMismatchError{Left: r1, Right: r2, Missing: append(a1, a2...)}
		}
		return Subst{}, nil

	case len(v1) == 0:
		// r1 is closed relative to r2's variables: r2's variables must
		// absorb r1's residual atoms, and r2's residual atoms have nowhere
		// to go.
		if len(a2) > 0 {
			return nil, &RowMismatchError{Left: r1, Right: r2, Missing: a2}
		}
		return absorb(v2, New(a1...)), nil

	case len(v2) == 0:
		if len(a1) > 0 {
			return nil, &RowMismatchError{Left: r1, Right: r2, Missing: a1}
		}
		return absorb(v1, New(a2...)), nil

	default:
		// Both sides open. Each side's variables absorb the other side's
		// residual atoms plus a shared fresh tail.
		if len(a1) == 0 && len(a2) == 0 {
			// Pure variable residuals: merge into the first variable of v2.
			s := absorb(v1, Row{vars: v2})
			return s, nil
		}
		if fresh == nil {
			return nil, &RowMismatchError{Left: r1, Right: r2, Missing: append(a1, a2...)}
		}
		tail := fresh.FreshEffectVar()
		s := absorb(v1, Open(a2, tail))
		for k, v := range absorb(v2, Open(a1, tail)) {
			s[k] = v
		}
		return s, nil
	}
}

// bindWholeRow binds r1 to r2 when r1 is a lone variable not occurring in r2.
func bindWholeRow(r1, r2 Row) (Subst, bool) {
	if len(r1.atoms) != 0 || len(r1.vars) != 1 {
		return nil, false
	}
	v := r1.vars[0]
	if r2.HasVar(v.Name) {
		if len(r2.atoms) == 0 && len(r2.vars) == 1 {
			// Same lone variable on both sides.
			return Subst{}, true
		}
		return nil, false // occurs; fall through to set unification
	}
	return Subst{v.Name: r2}, true
}

// absorb binds the first variable to the row and the rest to empty,
// producing a valid (if not maximally general) set unifier.
func absorb(vars []Var, row Row) Subst {
	s := Subst{}
	for i, v := range vars {
		if i == 0 {
			s[v.Name] = row
		} else {
			s[v.Name] = Empty
		}
	}
	return s
}

func subtractAtoms(r1, r2 Row) []string {
	var out []string
	for _, a := range r1.atoms {
		if !r2.Member(a) {
			out = append(out, a)
		}
	}
	return out
}

func subtractVars(r1, r2 Row) []Var {
	var out []Var
	for _, v := range r1.vars {
		if !r2.HasVar(v.Name) {
			out = append(out, v)
		}
	}
	return out
}
