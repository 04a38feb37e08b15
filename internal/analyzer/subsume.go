package analyzer

import (
	"github.com/rowlang/rowan/internal/ast"
	"github.com/rowlang/rowan/internal/effects"
	"github.com/rowlang/rowan/internal/typesystem"
)

// subsume checks that a value of type actual is acceptable where expected
// is required. For function types whose rows are both closed this is
// subeffecting: the actual row may be any subset of the expected row, so a
// pure function flows anywhere. Everywhere else it falls back to
// unification.
func (ctx *InferenceContext) subsume(expected, actual typesystem.Type, node ast.Node) error {
	e := ctx.resolve(expected)
	a := ctx.resolve(actual)

	ef, eIsFn := e.(typesystem.TFunc)
	af, aIsFn := a.(typesystem.TFunc)
	if eIsFn && aIsFn && ef.Effects.IsClosed() && af.Effects.IsClosed() {
		if !effects.IsSubset(af.Effects, ef.Effects) {
			return positionedErr(node, &effects.RowMismatchError{
				Left:    af.Effects,
				Right:   ef.Effects,
				Missing: missingAtoms(af.Effects, ef.Effects),
			})
		}
		// Widen the actual row to the expected one so the remaining
		// structure unifies without the rows fighting each other.
		widened := typesystem.TFunc{
			Params:  af.Params,
			Return:  af.Return,
			Effects: ef.Effects,
			Total:   af.Total,
		}
		return ctx.unify(e, widened, node)
	}
	return ctx.unify(e, a, node)
}

// subsumeRow checks that every effect the expression may perform is
// accounted for by the declared row. Deferred tails on the actual side are
// dropped first: the declaration decides what the row is.
func (ctx *InferenceContext) subsumeRow(actual, declared effects.Row, node ast.Node) error {
	a := ctx.resolveRow(actual)
	d := ctx.resolveRow(declared)

	for _, v := range a.Vars() {
		if ctx.IsDeferred(v.Name) {
			ctx.compose(typesystem.BindEffectVar(v.Name, effects.Empty))
		}
	}
	a = ctx.resolveRow(a)

	if d.IsClosed() {
		// A handler-scoped effect cannot be declared away.
		for _, v := range a.Vars() {
			if ctx.isScoped(v.Name) {
				return positionedErr(node, &effects.RowMismatchError{
					Left:  a,
					Right: d,
				})
			}
		}
	}

	if a.IsClosed() && d.IsClosed() {
		if !effects.IsSubset(a, d) {
			return positionedErr(node, &effects.RowMismatchError{
				Left:    a,
				Right:   d,
				Missing: missingAtoms(a, d),
			})
		}
		return nil
	}
	return ctx.unifyRows(a, d, node)
}

func missingAtoms(have, want effects.Row) []string {
	var out []string
	for _, atom := range have.Atoms() {
		if !want.Member(atom) {
			out = append(out, atom)
		}
	}
	return out
}
