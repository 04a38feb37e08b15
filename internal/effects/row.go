package effects

import (
	"sort"
	"strings"
)

// Var is an effect variable occurring in a row.
// Deferred marks a variable whose membership in the row is not yet decided;
// it is finalized (kept or dropped) when the enclosing inference scope closes.
type Var struct {
	Name     string
	Deferred bool
}

func (v Var) String() string {
	if v.Deferred {
		return v.Name + "?"
	}
	return v.Name
}

// Row is a set of effect atoms: concrete effect constants plus effect
// variables. Rows are immutable values; all constructors normalize by
// sorting and deduplicating, so duplicates are impossible by construction
// and equality is set equality.
type Row struct {
	atoms []string
	vars  []Var
}

// Empty is the pure row.
var Empty = Row{}

// New builds a row from concrete effect constants.
func New(atoms ...string) Row {
	return make_(atoms, nil)
}

// Open builds a row from concrete atoms plus effect variables.
func Open(atoms []string, vars ...Var) Row {
	return make_(atoms, vars)
}

// Single builds a row containing exactly one effect variable.
func Single(v Var) Row {
	return Row{vars: []Var{v}}
}

func make_(atoms []string, vars []Var) Row {
	r := Row{}
	seen := map[string]bool{}
	for _, a := range atoms {
		if !seen[a] {
			seen[a] = true
			r.atoms = append(r.atoms, a)
		}
	}
	sort.Strings(r.atoms)

	seenV := map[string]bool{}
	for _, v := range vars {
		if !seenV[v.Name] {
			seenV[v.Name] = true
			r.vars = append(r.vars, v)
		}
	}
	sort.Slice(r.vars, func(i, j int) bool { return r.vars[i].Name < r.vars[j].Name })
	return r
}

// Atoms returns the concrete effect constants, sorted.
func (r Row) Atoms() []string {
	out := make([]string, len(r.atoms))
	copy(out, r.atoms)
	return out
}

// Vars returns the effect variables, sorted by name.
func (r Row) Vars() []Var {
	out := make([]Var, len(r.vars))
	copy(out, r.vars)
	return out
}

// IsEmpty reports whether the row is the pure row.
func (r Row) IsEmpty() bool {
	return len(r.atoms) == 0 && len(r.vars) == 0
}

// IsClosed reports whether the row contains no effect variables.
func (r Row) IsClosed() bool {
	return len(r.vars) == 0
}

// Member reports whether the concrete atom is in the row.
func (r Row) Member(atom string) bool {
	i := sort.SearchStrings(r.atoms, atom)
	return i < len(r.atoms) && r.atoms[i] == atom
}

// HasVar reports whether the effect variable named name is in the row.
func (r Row) HasVar(name string) bool {
	for _, v := range r.vars {
		if v.Name == name {
			return true
		}
	}
	return false
}

// Union merges two rows. Union is associative, commutative and idempotent.
func Union(r1, r2 Row) Row {
	return make_(append(r1.Atoms(), r2.atoms...), append(r1.Vars(), r2.vars...))
}

// IsSubset reports whether every atom and variable of r1 occurs in r2.
// Subeffecting: a value of declared row r1 is usable where r2 is expected
// iff IsSubset(r1, r2). The pure row is a subset of every row.
func IsSubset(r1, r2 Row) bool {
	for _, a := range r1.atoms {
		if !r2.Member(a) {
			return false
		}
	}
	for _, v := range r1.vars {
		if !r2.HasVar(v.Name) {
			return false
		}
	}
	return true
}

// Equal reports set equality of two rows. Variable deferral markers are
// ignored; they are a printing concern, not an identity.
func Equal(r1, r2 Row) bool {
	return IsSubset(r1, r2) && IsSubset(r2, r1)
}

// WithoutVar returns a copy of the row with the named variable removed.
func (r Row) WithoutVar(name string) Row {
	vars := make([]Var, 0, len(r.vars))
	for _, v := range r.vars {
		if v.Name != name {
			vars = append(vars, v)
		}
	}
	return Row{atoms: r.Atoms(), vars: vars}
}

// MarkDeferred returns a copy of the row with the named variable flagged
// as deferred for printing.
func (r Row) MarkDeferred(name string, deferred bool) Row {
	vars := r.Vars()
	for i := range vars {
		if vars[i].Name == name {
			vars[i].Deferred = deferred
		}
	}
	return Row{atoms: r.Atoms(), vars: vars}
}

func (r Row) String() string {
	parts := make([]string, 0, len(r.atoms)+len(r.vars))
	parts = append(parts, r.atoms...)
	for _, v := range r.vars {
		parts = append(parts, v.String())
	}
	return "[" + strings.Join(parts, ",") + "]"
}
