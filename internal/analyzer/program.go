// Package analyzer implements effect-aware type inference: Hindley-Milner
// extended with effect rows, handler-scoped effect variables, and
// capability-typed operations.
package analyzer

import (
	"go.uber.org/zap"

	"github.com/rowlang/rowan/internal/ast"
	"github.com/rowlang/rowan/internal/builtins"
	"github.com/rowlang/rowan/internal/effects"
	"github.com/rowlang/rowan/internal/symbols"
	"github.com/rowlang/rowan/internal/typesystem"
)

// AnalysisResult is the outcome of a whole-program inference pass.
type AnalysisResult struct {
	Context *InferenceContext
	Globals *symbols.SymbolTable
	// MainType is the inferred type of the program body.
	MainType typesystem.Type
	// MainRow is the body's effect row after the root handlers have
	// discharged their effects.
	MainRow effects.Row
}

// RootCapability declares a capability installed by the host rather than
// by the program, such as a native console handler.
type RootCapability struct {
	Name   string
	Effect string
}

// AnalyzeProgram type-checks an elaborated program: builtin and declared
// effects are registered, datatype constructors are brought into scope,
// root handlers bind program-wide capabilities, and every definition is
// inferred and generalized in order before the body is checked.
func AnalyzeProgram(prog *ast.Program, logger *zap.Logger, hostCaps ...RootCapability) (*AnalysisResult, error) {
	ctx := NewInferenceContext().WithLogger(logger)
	globals := symbols.NewSymbolTable()

	builtinDecls, err := builtins.Table()
	if err != nil {
		return nil, err
	}
	for _, decl := range builtinDecls {
		ctx.EffectSigs[decl.Name] = decl.Ops
	}
	registerBuiltinFunctions(globals)
	for _, decl := range prog.Effects {
		if _, exists := ctx.EffectSigs[decl.Name]; exists {
			return nil, inferErrorf(decl, "effect %q is already declared", decl.Name)
		}
		ctx.EffectSigs[decl.Name] = decl.Ops
		globals.Define(&symbols.Symbol{Name: decl.Name, Kind: symbols.EffectSymbol, DefinitionNode: decl})
	}

	for _, dd := range prog.Datatypes {
		if err := ctx.registerDatatype(dd, globals); err != nil {
			return nil, err
		}
	}

	// Root handlers discharge their effect for the whole program, so the
	// capability's effect variable resolves to the concrete atom rather
	// than a scoped placeholder.
	rootEffects := effects.Empty
	for _, hc := range hostCaps {
		v := ctx.FreshEffectVar()
		ctx.compose(typesystem.BindEffectVar(v.Name, effects.New(hc.Effect)))
		globals.Define(&symbols.Symbol{
			Name: hc.Name,
			Type: typesystem.TCap{Effect: hc.Effect, Var: v},
			Kind: symbols.CapabilitySymbol,
		})
		rootEffects = effects.Union(rootEffects, effects.New(hc.Effect))
	}
	for _, rh := range prog.RootHandlers {
		ht, _, err := ctx.Infer(rh.Handler, globals)
		if err != nil {
			return nil, err
		}
		handler, ok := ctx.resolve(ht).(typesystem.THandler)
		if !ok {
			return nil, inferErrorf(rh, "root handler %q must be a handler value, got %s", rh.Capability, ctx.resolve(ht))
		}
		v := ctx.FreshEffectVar()
		ctx.compose(typesystem.BindEffectVar(v.Name, effects.New(handler.Effect)))
		globals.Define(&symbols.Symbol{
			Name:           rh.Capability,
			Type:           typesystem.TCap{Effect: handler.Effect, Var: v},
			Kind:           symbols.CapabilitySymbol,
			DefinitionNode: rh,
		})
		rootEffects = effects.Union(rootEffects, effects.New(handler.Effect))
	}

	// Pre-bind every definition to a fresh monotype so definitions may
	// reference each other regardless of order.
	for _, def := range prog.Defs {
		if _, exists := globals.ResolveLocal(def.Name); exists {
			return nil, inferErrorf(def, "definition %q is already bound", def.Name)
		}
		sym := globals.DefineVar(def.Name, ctx.FreshVar())
		sym.DefinitionNode = def
	}
	for _, def := range prog.Defs {
		if err := ctx.inferDefinition(def, globals); err != nil {
			return nil, err
		}
	}

	if prog.Main == nil {
		return &AnalysisResult{Context: ctx, Globals: globals, MainType: unitType, MainRow: effects.Empty}, nil
	}

	mt, mrow, err := ctx.Infer(prog.Main, globals)
	if err != nil {
		return nil, err
	}
	mrow = ctx.resolveRow(mrow)
	for _, v := range mrow.Vars() {
		if ctx.IsDeferred(v.Name) {
			ctx.compose(typesystem.BindEffectVar(v.Name, effects.Empty))
		}
	}
	mrow = ctx.resolveRow(mrow)

	var unhandled []string
	for _, atom := range mrow.Atoms() {
		if !rootEffects.Member(atom) {
			unhandled = append(unhandled, atom)
		}
	}
	if len(unhandled) > 0 {
		return nil, inferErrorf(prog.Main, "program performs unhandled effects %v; install root handlers for them", unhandled)
	}

	return &AnalysisResult{
		Context:  ctx,
		Globals:  globals,
		MainType: ctx.resolve(mt),
		MainRow:  mrow,
	}, nil
}

func (ctx *InferenceContext) registerDatatype(dd *ast.DataDecl, globals *symbols.SymbolTable) error {
	if _, exists := ctx.Datatypes[dd.Name]; exists {
		return inferErrorf(dd, "datatype %q is already declared", dd.Name)
	}
	ctx.Datatypes[dd.Name] = dd
	globals.Define(&symbols.Symbol{Name: dd.Name, Kind: symbols.TypeSymbol, DefinitionNode: dd})

	var params []typesystem.TVar
	var result typesystem.Type = typesystem.TCon{Name: dd.Name}
	if len(dd.Params) > 0 {
		args := make([]typesystem.Type, len(dd.Params))
		for i, p := range dd.Params {
			tv := typesystem.TVar{Name: p}
			params = append(params, tv)
			args[i] = tv
		}
		result = typesystem.TApp{Constructor: typesystem.TCon{Name: dd.Name}, Args: args}
	}

	for _, ctor := range dd.Ctors {
		var t typesystem.Type
		if len(ctor.Fields) == 0 {
			t = result
		} else {
			ps := make([]typesystem.Param, len(ctor.Fields))
			for i, f := range ctor.Fields {
				ps[i] = typesystem.Param{Mode: typesystem.PositionalParam, Type: f}
			}
			// Construction is total: it allocates and cannot diverge.
			t = typesystem.TFunc{Params: ps, Return: result, Effects: effects.Empty, Total: true}
		}
		if len(params) > 0 {
			t = typesystem.TForall{TypeVars: params, Type: t}
		}
		globals.Define(&symbols.Symbol{
			Name:           ctor.Name,
			Type:           t,
			Kind:           symbols.ConstructorSymbol,
			Total:          true,
			DefinitionNode: dd,
		})
	}
	return nil
}

// inferDefinition checks one pre-bound top-level binding and generalizes
// the result against the global scope.
func (ctx *InferenceContext) inferDefinition(def *ast.Definition, globals *symbols.SymbolTable) error {
	sym, _ := globals.ResolveLocal(def.Name)
	pre := sym.Type

	bt, brow, err := ctx.Infer(def.Body, globals)
	if err != nil {
		return err
	}
	if err := ctx.unify(pre, bt, def.Body); err != nil {
		return err
	}

	// Top-level definitions are values; any effects belong to the bodies
	// of the functions they define, not to the definition itself.
	brow = ctx.resolveRow(brow)
	if !isSyntacticValue(def.Body) && !brow.IsEmpty() {
		return inferErrorf(def, "definition %q performs effects %s at load time", def.Name, brow)
	}

	final := ctx.resolve(bt)
	if def.Annot != nil {
		if err := ctx.checkAgainstAnnotation(def, final); err != nil {
			return err
		}
		final = def.Annot
	} else {
		// The pre-binding must not count as part of the environment, or
		// its own free variables would block generalization.
		sym.Type = nil
		final = ctx.Generalize(final, globals)
	}
	sym.Type = final
	if fn, ok := schemeBody(final).(typesystem.TFunc); ok {
		sym.Total = fn.Total
		// A scheme quantifying an effect variable admits effectful
		// instantiations, so it is never total.
		if forall, ok := final.(typesystem.TForall); ok && forall.QuantifiesEffects() {
			sym.Total = false
		}
	}

	ctx.logger.Debug("definition inferred",
		zap.String("name", def.Name),
		zap.String("type", final.String()))
	return nil
}

// checkAgainstAnnotation verifies the inferred type against a declared
// scheme. The declared scheme wins: it may be less general than what was
// inferred, never more.
func (ctx *InferenceContext) checkAgainstAnnotation(def *ast.Definition, inferred typesystem.Type) error {
	declared := def.Annot
	if forall, ok := declared.(typesystem.TForall); ok {
		// Instantiate the declaration with rigid variables: the body must
		// work for every instantiation, so none of them may be refined.
		s := typesystem.NewSubst()
		for _, v := range forall.TypeVars {
			s.Types[v.Name] = typesystem.TVar{Name: v.Name, Rigid: true}
		}
		declared = forall.Type.Apply(s)
	}
	generalized := ctx.Generalize(inferred, symbols.NewSymbolTable())
	if forall, ok := generalized.(typesystem.TForall); ok {
		s := typesystem.NewSubst()
		for _, v := range forall.TypeVars {
			s.Types[v.Name] = ctx.FreshVar()
		}
		for _, v := range forall.EffectVars {
			s.Effects[v.Name] = effects.Single(ctx.FreshEffectVar())
		}
		generalized = forall.Type.Apply(s)
	}
	return ctx.subsume(declared, generalized, def)
}

func schemeBody(t typesystem.Type) typesystem.Type {
	for {
		forall, ok := t.(typesystem.TForall)
		if !ok {
			return t
		}
		t = forall.Type
	}
}
