package analyzer

import (
	"go.uber.org/zap"

	"github.com/rowlang/rowan/internal/ast"
	"github.com/rowlang/rowan/internal/config"
	"github.com/rowlang/rowan/internal/effects"
	"github.com/rowlang/rowan/internal/symbols"
	"github.com/rowlang/rowan/internal/typesystem"
)

var (
	intType    = typesystem.TCon{Name: config.IntTypeName}
	boolType   = typesystem.TCon{Name: config.BoolTypeName}
	stringType = typesystem.TCon{Name: config.StringTypeName}
	unitType   = typesystem.TCon{Name: config.UnitTypeName}
)

func listType(elem typesystem.Type) typesystem.Type {
	return typesystem.TApp{Constructor: typesystem.TCon{Name: config.ListTypeName}, Args: []typesystem.Type{elem}}
}

// Infer computes the type of an expression together with the effect row
// describing the effects it may perform when evaluated. Most expressions
// are inferred bottom-up; annotated expressions check against the
// expected type.
func (ctx *InferenceContext) Infer(node ast.Expr, table *symbols.SymbolTable) (typesystem.Type, effects.Row, error) {
	var (
		t   typesystem.Type
		row effects.Row
		err error
	)

	switch n := node.(type) {
	case *ast.IntLit:
		t, row = intType, effects.Empty
	case *ast.BoolLit:
		t, row = boolType, effects.Empty
	case *ast.StringLit:
		t, row = stringType, effects.Empty
	case *ast.UnitLit:
		t, row = unitType, effects.Empty
	case *ast.ListLit:
		t, row, err = ctx.inferListLit(n, table)
	case *ast.Ident:
		t, row, err = ctx.inferIdent(n, table)
	case *ast.Lambda:
		t, row, err = ctx.inferLambda(n, table)
	case *ast.Call:
		t, row, err = ctx.inferCall(n, table)
	case *ast.Let:
		t, row, err = ctx.inferLet(n, table)
	case *ast.If:
		t, row, err = ctx.inferIf(n, table)
	case *ast.Annot:
		t, row, err = ctx.inferAnnot(n, table)
	case *ast.Match:
		t, row, err = ctx.inferMatch(n, table)
	case *ast.HandlerLit:
		t, row, err = ctx.inferHandlerLit(n, table)
	case *ast.Handle:
		t, row, err = ctx.inferHandle(n, table)
	case *ast.OpCall:
		t, row, err = ctx.inferOpCall(n, table)
	case nil:
		return nil, effects.Empty, inferErrorf(nil, "cannot infer nil expression")
	default:
		return nil, effects.Empty, inferErrorf(node, "unknown node type for inference: %T", node)
	}

	if err != nil {
		return nil, effects.Empty, err
	}
	ctx.TypeMap[node] = t
	return t, row, nil
}

func (ctx *InferenceContext) inferListLit(n *ast.ListLit, table *symbols.SymbolTable) (typesystem.Type, effects.Row, error) {
	elem := typesystem.Type(ctx.FreshVar())
	row := effects.Empty
	for _, e := range n.Elems {
		et, erow, err := ctx.Infer(e, table)
		if err != nil {
			return nil, row, err
		}
		if err := ctx.unify(elem, et, e); err != nil {
			return nil, row, err
		}
		row = effects.Union(row, erow)
	}
	return listType(ctx.resolve(elem)), row, nil
}

func (ctx *InferenceContext) inferIdent(n *ast.Ident, table *symbols.SymbolTable) (typesystem.Type, effects.Row, error) {
	sym, ok := table.Resolve(n.Name)
	if !ok {
		return nil, effects.Empty, inferErrorf(n, "unresolved identifier %q", n.Name)
	}
	if sym.Type == nil {
		return nil, effects.Empty, inferErrorf(n, "identifier %q has no type", n.Name)
	}
	// Referencing a variable performs no effects.
	return ctx.instantiate(sym.Type), effects.Empty, nil
}

// instantiate replaces a scheme's quantified type and effect parameters
// with fresh variables.
func (ctx *InferenceContext) instantiate(t typesystem.Type) typesystem.Type {
	forall, ok := t.(typesystem.TForall)
	if !ok {
		return t
	}
	s := typesystem.NewSubst()
	for _, v := range forall.TypeVars {
		s.Types[v.Name] = ctx.FreshVar()
	}
	for _, v := range forall.EffectVars {
		s.Effects[v.Name] = effects.Single(ctx.FreshEffectVar())
	}
	body := forall.Type.Apply(s)
	if nested, ok := body.(typesystem.TForall); ok {
		return ctx.instantiate(nested)
	}
	return body
}

func (ctx *InferenceContext) inferLambda(n *ast.Lambda, table *symbols.SymbolTable) (typesystem.Type, effects.Row, error) {
	scope := symbols.NewEnclosedSymbolTable(table)
	params := make([]typesystem.Param, len(n.Params))
	defaultRow := effects.Empty

	for i, p := range n.Params {
		var pt typesystem.Type
		if p.Annot != nil {
			pt = p.Annot
		} else {
			pt = ctx.FreshVar()
		}
		if p.Default != nil {
			// Defaults see the parameters bound before them.
			dt, drow, err := ctx.Infer(p.Default, scope)
			if err != nil {
				return nil, effects.Empty, err
			}
			if err := ctx.unify(pt, dt, p.Default); err != nil {
				return nil, effects.Empty, err
			}
			defaultRow = effects.Union(defaultRow, drow)
		}
		scope.DefineVar(p.Name, pt)
		params[i] = typesystem.Param{Name: p.Name, Mode: p.Mode, Type: pt}
	}

	bt, brow, err := ctx.Infer(n.Body, scope)
	if err != nil {
		return nil, effects.Empty, err
	}
	if n.ReturnAnnot != nil {
		if err := ctx.unify(n.ReturnAnnot, bt, n); err != nil {
			return nil, effects.Empty, err
		}
		bt = n.ReturnAnnot
	}
	brow = effects.Union(brow, defaultRow)

	var row effects.Row
	switch {
	case n.Total:
		// The unannotated arrow form claims totality; the body must not
		// perform anything, not even through a deferred tail.
		resolved := ctx.resolveRow(brow)
		for _, v := range resolved.Vars() {
			if ctx.IsDeferred(v.Name) {
				ctx.compose(typesystem.BindEffectVar(v.Name, effects.Empty))
			}
		}
		resolved = ctx.resolveRow(resolved)
		if !resolved.IsEmpty() {
			return nil, effects.Empty, inferErrorf(n, "total function performs effects %s", resolved)
		}
		row = effects.Empty
	case n.EffectAnnot != nil:
		if err := ctx.subsumeRow(brow, *n.EffectAnnot, n); err != nil {
			return nil, effects.Empty, err
		}
		row = *n.EffectAnnot
	default:
		// Leave the row open through a deferred tail; the surrounding
		// scope finalizes it to included or dropped.
		row = effects.Union(brow, effects.Single(ctx.FreshDeferredEffectVar()))
	}

	fn := typesystem.TFunc{Params: params, Return: bt, Effects: row, Total: n.Total}
	// Creating a closure performs no effects.
	return fn, effects.Empty, nil
}

func (ctx *InferenceContext) inferLet(n *ast.Let, table *symbols.SymbolTable) (typesystem.Type, effects.Row, error) {
	vt, vrow, err := ctx.Infer(n.Value, table)
	if err != nil {
		return nil, effects.Empty, err
	}

	bound := ctx.resolve(vt)
	if isSyntacticValue(n.Value) {
		bound = ctx.Generalize(bound, table)
	}

	scope := symbols.NewEnclosedSymbolTable(table)
	scope.DefineVar(n.Name, bound)

	bt, brow, err := ctx.Infer(n.Body, scope)
	if err != nil {
		return nil, effects.Empty, err
	}
	return bt, effects.Union(vrow, brow), nil
}

// isSyntacticValue implements the value restriction: only syntactic
// values may be bound polymorphically. Totality relaxes this elsewhere.
func isSyntacticValue(e ast.Expr) bool {
	switch e.(type) {
	case *ast.Lambda, *ast.HandlerLit, *ast.IntLit, *ast.BoolLit,
		*ast.StringLit, *ast.UnitLit, *ast.Ident:
		return true
	}
	return false
}

func (ctx *InferenceContext) inferIf(n *ast.If, table *symbols.SymbolTable) (typesystem.Type, effects.Row, error) {
	ct, crow, err := ctx.Infer(n.Cond, table)
	if err != nil {
		return nil, effects.Empty, err
	}
	if err := ctx.unify(boolType, ct, n.Cond); err != nil {
		return nil, effects.Empty, err
	}
	tt, trow, err := ctx.Infer(n.Then, table)
	if err != nil {
		return nil, effects.Empty, err
	}
	et, erow, err := ctx.Infer(n.Else, table)
	if err != nil {
		return nil, effects.Empty, err
	}
	if err := ctx.unify(tt, et, n); err != nil {
		return nil, effects.Empty, err
	}
	return ctx.resolve(tt), effects.Union(crow, effects.Union(trow, erow)), nil
}

func (ctx *InferenceContext) inferAnnot(n *ast.Annot, table *symbols.SymbolTable) (typesystem.Type, effects.Row, error) {
	t, row, err := ctx.Infer(n.Expr, table)
	if err != nil {
		return nil, effects.Empty, err
	}
	if err := ctx.unify(n.Type, t, n); err != nil {
		return nil, effects.Empty, err
	}
	if n.Row != nil {
		if err := ctx.subsumeRow(row, *n.Row, n); err != nil {
			return nil, effects.Empty, err
		}
		row = *n.Row
	}
	return ctx.resolve(n.Type), row, nil
}

func (ctx *InferenceContext) inferMatch(n *ast.Match, table *symbols.SymbolTable) (typesystem.Type, effects.Row, error) {
	dd, ok := ctx.Datatypes[n.Datatype]
	if !ok {
		return nil, effects.Empty, inferErrorf(n, "unknown datatype %q", n.Datatype)
	}

	st, srow, err := ctx.Infer(n.Subject, table)
	if err != nil {
		return nil, effects.Empty, err
	}

	// Instantiate the datatype's parameters for this match.
	inst := typesystem.NewSubst()
	var dtType typesystem.Type = typesystem.TCon{Name: dd.Name}
	if len(dd.Params) > 0 {
		args := make([]typesystem.Type, len(dd.Params))
		for i, p := range dd.Params {
			fv := ctx.FreshVar()
			inst.Types[p] = fv
			args[i] = fv
		}
		dtType = typesystem.TApp{Constructor: typesystem.TCon{Name: dd.Name}, Args: args}
	}
	if err := ctx.unify(dtType, st, n.Subject); err != nil {
		return nil, effects.Empty, err
	}

	result := typesystem.Type(ctx.FreshVar())
	row := srow
	for _, c := range n.Cases {
		ctor, ok := findCtor(dd, c.Ctor)
		if !ok {
			return nil, effects.Empty, inferErrorf(n, "datatype %s has no constructor %q", dd.Name, c.Ctor)
		}
		if len(c.Binders) != len(ctor.Fields) {
			return nil, effects.Empty, inferErrorf(n, "constructor %s expects %d fields, case binds %d",
				c.Ctor, len(ctor.Fields), len(c.Binders))
		}
		scope := symbols.NewEnclosedSymbolTable(table)
		for i, b := range c.Binders {
			scope.DefineVar(b, ctor.Fields[i].Apply(inst))
		}
		bt, brow, err := ctx.Infer(c.Body, scope)
		if err != nil {
			return nil, effects.Empty, err
		}
		if err := ctx.unify(result, bt, c.Body); err != nil {
			return nil, effects.Empty, err
		}
		row = effects.Union(row, brow)
	}
	return ctx.resolve(result), row, nil
}

func findCtor(dd *ast.DataDecl, name string) (ast.CtorDecl, bool) {
	for _, c := range dd.Ctors {
		if c.Name == name {
			return c, true
		}
	}
	return ast.CtorDecl{}, false
}

func (ctx *InferenceContext) inferCall(n *ast.Call, table *symbols.SymbolTable) (typesystem.Type, effects.Row, error) {
	ft, frow, err := ctx.Infer(n.Fn, table)
	if err != nil {
		return nil, effects.Empty, err
	}
	ft = ctx.resolve(ctx.instantiate(ft))

	// An unknown callee gets a fresh arrow expectation shaped by the
	// call's positional arguments.
	if _, isVar := ft.(typesystem.TVar); isVar {
		params := make([]typesystem.Param, 0, len(n.Args))
		for _, a := range n.Args {
			mode := typesystem.PositionalParam
			if a.Name != "" {
				mode = typesystem.NamedParam
			}
			params = append(params, typesystem.Param{Name: a.Name, Mode: mode, Type: ctx.FreshVar()})
		}
		expect := typesystem.TFunc{
			Params:  params,
			Return:  ctx.FreshVar(),
			Effects: effects.Single(ctx.FreshDeferredEffectVar()),
		}
		if err := ctx.unify(ft, expect, n); err != nil {
			return nil, effects.Empty, err
		}
		ft = expect
	}

	fn, ok := ft.(typesystem.TFunc)
	if !ok {
		return nil, effects.Empty, inferErrorf(n, "cannot call non-function type %s", ft)
	}

	row := effects.Union(frow, fn.Effects)

	// Pair arguments with parameter slots: positionals in order, the
	// rest by name.
	var positional []ast.Arg
	byName := map[string]ast.Arg{}
	for _, a := range n.Args {
		if a.Name == "" {
			positional = append(positional, a)
		} else {
			byName[a.Name] = a
		}
	}

	posIdx := 0
	for _, p := range fn.Params {
		var arg ast.Expr
		switch {
		case p.Mode == typesystem.PositionalParam || p.Name == "":
			if posIdx >= len(positional) {
				return nil, effects.Empty, inferErrorf(n, "missing argument for parameter %d of %s", posIdx+1, fn)
			}
			arg = positional[posIdx].Value
			posIdx++
		default:
			if a, ok := byName[p.Name]; ok {
				arg = a.Value
				delete(byName, p.Name)
				break
			}
			if p.Mode == typesystem.OptionalParam {
				// The callee evaluates its declared default.
				continue
			}
			if p.Mode == typesystem.ImplicitParam {
				// Implicit parameters resolve from the caller's scope by
				// name; this is how an effect capability is passed into
				// scope without being spelled at every call site.
				sym, found := table.Resolve(p.Name)
				if !found {
					return nil, effects.Empty, &AmbiguousInstantiationError{Param: p.Name, Position: n.Pos()}
				}
				if err := ctx.subsume(p.Type, ctx.instantiate(sym.Type), n); err != nil {
					return nil, effects.Empty, err
				}
				continue
			}
			return nil, effects.Empty, &AmbiguousInstantiationError{Param: p.Name, Position: n.Pos()}
		}

		at, arow, err := ctx.Infer(arg, table)
		if err != nil {
			return nil, effects.Empty, err
		}
		if err := ctx.subsume(p.Type, at, arg); err != nil {
			return nil, effects.Empty, err
		}
		row = effects.Union(row, arow)
	}

	if posIdx < len(positional) {
		return nil, effects.Empty, inferErrorf(n, "too many positional arguments: %d given", len(positional))
	}
	for name := range byName {
		return nil, effects.Empty, &AmbiguousInstantiationError{Param: name, Position: n.Pos()}
	}

	ctx.logger.Debug("call inferred",
		zap.String("type", ctx.resolve(fn.Return).String()),
		zap.String("row", ctx.resolveRow(row).String()))
	return ctx.resolve(fn.Return), ctx.resolveRow(row), nil
}
