package effects

// Subst maps effect variable names to rows. Substituting a row for a
// variable flattens: the replacement row's atoms and variables merge into
// the host row, nesting never occurs.
type Subst map[string]Row

// Apply substitutes into the row, flattening replacement rows.
func (r Row) Apply(s Subst) Row {
	if len(s) == 0 {
		return r
	}
	out := Row{atoms: r.Atoms()}
	var keep []Var
	for _, v := range r.vars {
		rep, ok := s[v.Name]
		if !ok {
			keep = append(keep, v)
			continue
		}
		// Guard against self-mapping to avoid useless churn.
		if len(rep.vars) == 1 && len(rep.atoms) == 0 && rep.vars[0].Name == v.Name {
			keep = append(keep, v)
			continue
		}
		rep = rep.Apply(s)
		out = Union(out, Row{atoms: rep.Atoms()})
		keep = append(keep, rep.vars...)
	}
	return make_(out.atoms, keep)
}

// Compose combines two substitutions so that applying the result is the
// same as applying s1 first and then s2.
func (s1 Subst) Compose(s2 Subst) Subst {
	out := Subst{}
	for k, v := range s2 {
		out[k] = v
	}
	for k, v := range s1 {
		out[k] = v.Apply(s2)
	}
	return out
}
