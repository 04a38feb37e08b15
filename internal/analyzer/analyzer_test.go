package analyzer

import (
	"errors"
	"strings"
	"testing"

	"github.com/rowlang/rowan/internal/ast"
	"github.com/rowlang/rowan/internal/effects"
	"github.com/rowlang/rowan/internal/symbols"
	"github.com/rowlang/rowan/internal/typesystem"
)

func newTestContext(t *testing.T) (*InferenceContext, *symbols.SymbolTable) {
	t.Helper()
	ctx := NewInferenceContext()
	ctx.EffectSigs["io"] = []ast.OpSig{
		{Name: "println", Params: []typesystem.Type{stringType}, Result: unitType},
		{Name: "readln", Result: stringType},
	}
	ctx.EffectSigs["ndet"] = []ast.OpSig{
		{Name: "flip", Result: boolType},
	}
	return ctx, symbols.NewSymbolTable()
}

func ident(name string) *ast.Ident { return &ast.Ident{Name: name} }

func call(fn ast.Expr, args ...ast.Expr) *ast.Call {
	c := &ast.Call{Fn: fn}
	for _, a := range args {
		c.Args = append(c.Args, ast.Arg{Value: a})
	}
	return c
}

func TestLetGeneralizesAndClosesDeferredRow(t *testing.T) {
	ctx, table := newTestContext(t)

	expr := &ast.Let{
		Name:  "id",
		Value: &ast.Lambda{Params: []ast.ParamSpec{{Name: "x"}}, Body: ident("x")},
		Body:  call(ident("id"), &ast.IntLit{Value: 1}),
	}

	typ, row, err := ctx.Infer(expr, table)
	if err != nil {
		t.Fatalf("infer failed: %v", err)
	}
	if got := ctx.resolve(typ).String(); got != "Int" {
		t.Errorf("expected Int, got %s", got)
	}
	if got := ctx.resolveRow(row); !got.IsEmpty() {
		t.Errorf("expected pure row, got %s", got)
	}
}

func TestPureFunctionUsableWhereEffectfulExpected(t *testing.T) {
	ctx, table := newTestContext(t)

	ioFn := typesystem.TFunc{
		Params:  []typesystem.Param{{Mode: typesystem.PositionalParam, Type: intType}},
		Return:  intType,
		Effects: effects.New("io"),
	}
	table.DefineVar("apply", typesystem.TFunc{
		Params:  []typesystem.Param{{Name: "g", Mode: typesystem.PositionalParam, Type: ioFn}},
		Return:  intType,
		Effects: effects.New("io"),
	})

	pureRow := effects.Empty
	pure := &ast.Lambda{
		Params:      []ast.ParamSpec{{Name: "x", Annot: intType}},
		Body:        ident("x"),
		EffectAnnot: &pureRow,
	}

	typ, row, err := ctx.Infer(call(ident("apply"), pure), table)
	if err != nil {
		t.Fatalf("pure argument should subsume into effectful slot: %v", err)
	}
	if got := ctx.resolve(typ).String(); got != "Int" {
		t.Errorf("expected Int, got %s", got)
	}
	if got := ctx.resolveRow(row); !got.Member("io") {
		t.Errorf("call row should carry io, got %s", got)
	}
}

func flipHandler() *ast.HandlerLit {
	return &ast.HandlerLit{
		Effect: "ndet",
		Ops: []*ast.OpClause{{
			Op:     "flip",
			Resume: "resume",
			Body:   call(ident("resume"), &ast.BoolLit{Value: true}),
		}},
	}
}

func TestHandleDischargesEffect(t *testing.T) {
	ctx, table := newTestContext(t)

	expr := &ast.Handle{
		Capability: "nd",
		Handler:    flipHandler(),
		Body:       &ast.OpCall{Cap: ident("nd"), Op: "flip"},
	}

	typ, row, err := ctx.Infer(expr, table)
	if err != nil {
		t.Fatalf("infer failed: %v", err)
	}
	if got := ctx.resolve(typ).String(); got != "Bool" {
		t.Errorf("expected Bool, got %s", got)
	}
	if got := ctx.resolveRow(row); !got.IsEmpty() {
		t.Errorf("handled effect should not appear in the row, got %s", got)
	}
}

func TestHandleRejectsEscapingCapability(t *testing.T) {
	ctx, table := newTestContext(t)

	expr := &ast.Handle{
		Capability: "nd",
		Handler:    flipHandler(),
		Body: &ast.Lambda{
			Body: &ast.OpCall{Cap: ident("nd"), Op: "flip"},
		},
	}

	_, _, err := ctx.Infer(expr, table)
	if err == nil {
		t.Fatal("expected an escape error, got none")
	}
	var escape *EffectEscapeError
	if !errors.As(err, &escape) {
		t.Fatalf("expected EffectEscapeError, got %v", err)
	}
}

func TestEscapeCheckScopesQuantifiers(t *testing.T) {
	arrow := func(row effects.Row) typesystem.TFunc {
		return typesystem.TFunc{
			Params:  []typesystem.Param{{Mode: typesystem.PositionalParam, Type: intType}},
			Return:  intType,
			Effects: row,
		}
	}
	scopedRow := effects.Single(effects.Var{Name: "h1"})

	if escapes, _ := effectVarEscapes("h1", arrow(scopedRow)); !escapes {
		t.Error("a free occurrence in a row must escape")
	}

	// Re-bound by the scheme's own quantifier: the occurrence is the
	// scheme's, not the handler's.
	rebound := typesystem.TForall{
		EffectVars: []effects.Var{{Name: "h1"}},
		Type:       arrow(scopedRow),
	}
	if escapes, _ := effectVarEscapes("h1", rebound); escapes {
		t.Error("an occurrence re-bound by the scheme must not escape")
	}

	// A scheme quantifying an unrelated variable guards nothing.
	unrelated := typesystem.TForall{
		EffectVars: []effects.Var{{Name: "f"}},
		Type:       arrow(effects.Open(nil, effects.Var{Name: "h1"}, effects.Var{Name: "f"})),
	}
	if escapes, _ := effectVarEscapes("h1", unrelated); !escapes {
		t.Error("an unrelated quantifier must not guard a free occurrence")
	}
}

func TestScopedEffectCannotBeDeclaredAway(t *testing.T) {
	ctx, table := newTestContext(t)

	pureRow := effects.Empty
	expr := &ast.Handle{
		Capability: "nd",
		Handler:    flipHandler(),
		Body: call(&ast.Lambda{
			EffectAnnot: &pureRow,
			Body:        &ast.OpCall{Cap: ident("nd"), Op: "flip"},
		}),
	}

	_, _, err := ctx.Infer(expr, table)
	if err == nil {
		t.Fatal("expected a row mismatch, got none")
	}
	var mismatch *effects.RowMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected RowMismatchError, got %v", err)
	}
}

func TestTotalLambdaRejectsEffects(t *testing.T) {
	ctx, table := newTestContext(t)
	table.Define(&symbols.Symbol{
		Name: "console",
		Type: typesystem.TCap{Effect: "io", Var: effects.Var{Name: "eConsole"}},
		Kind: symbols.CapabilitySymbol,
	})

	expr := &ast.Lambda{
		Total: true,
		Body:  &ast.OpCall{Cap: ident("console"), Op: "println", Args: []ast.Expr{&ast.StringLit{Value: "hi"}}},
	}

	_, _, err := ctx.Infer(expr, table)
	if err == nil {
		t.Fatal("expected a totality violation, got none")
	}
	if !strings.Contains(err.Error(), "total function performs effects") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestEffectPolymorphicSchemeIsNeverTotal(t *testing.T) {
	fnAnnot := typesystem.TFunc{
		Params:  []typesystem.Param{{Mode: typesystem.PositionalParam, Type: intType}},
		Return:  intType,
		Effects: effects.Single(effects.Var{Name: "e"}),
	}
	prog := &ast.Program{
		Defs: []*ast.Definition{{
			Name: "discard",
			Body: &ast.Lambda{
				Total:  true,
				Params: []ast.ParamSpec{{Name: "f", Annot: fnAnnot}},
				Body:   &ast.IntLit{Value: 1},
			},
		}},
	}

	res, err := AnalyzeProgram(prog, nil)
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	sym, ok := res.Globals.Resolve("discard")
	if !ok {
		t.Fatal("definition not bound")
	}
	forall, isScheme := sym.Type.(typesystem.TForall)
	if !isScheme || !forall.QuantifiesEffects() {
		t.Fatalf("expected an effect-quantified scheme, got %s", sym.Type)
	}
	if sym.Total {
		t.Errorf("scheme %s quantifies an effect variable but is marked total", sym.Type)
	}
}

func TestImplicitParameterResolution(t *testing.T) {
	ctx, table := newTestContext(t)
	table.DefineVar("f", typesystem.TFunc{
		Params: []typesystem.Param{
			{Mode: typesystem.PositionalParam, Type: intType},
			{Name: "conf", Mode: typesystem.ImplicitParam, Type: intType},
		},
		Return:  intType,
		Effects: effects.Empty,
	})

	// Unresolvable from an empty scope.
	_, _, err := ctx.Infer(call(ident("f"), &ast.IntLit{Value: 1}), table)
	var ambiguous *AmbiguousInstantiationError
	if !errors.As(err, &ambiguous) {
		t.Fatalf("expected AmbiguousInstantiationError, got %v", err)
	}

	// Resolvable once a binding with the parameter's name is in scope.
	scope := symbols.NewEnclosedSymbolTable(table)
	scope.DefineVar("conf", intType)
	typ, _, err := ctx.Infer(call(ident("f"), &ast.IntLit{Value: 1}), scope)
	if err != nil {
		t.Fatalf("implicit parameter should resolve from scope: %v", err)
	}
	if got := ctx.resolve(typ).String(); got != "Int" {
		t.Errorf("expected Int, got %s", got)
	}
}

func TestMatchInference(t *testing.T) {
	ctx, table := newTestContext(t)
	opt := &ast.DataDecl{
		Name:   "Option",
		Params: []string{"a"},
		Ctors: []ast.CtorDecl{
			{Name: "None"},
			{Name: "Some", Fields: []typesystem.Type{typesystem.TVar{Name: "a"}}},
		},
	}
	if err := ctx.registerDatatype(opt, table); err != nil {
		t.Fatalf("registering datatype: %v", err)
	}

	expr := &ast.Match{
		Subject:  call(ident("Some"), &ast.IntLit{Value: 3}),
		Datatype: "Option",
		Cases: []*ast.Case{
			{Ctor: "Some", Binders: []string{"v"}, Body: ident("v")},
			{Ctor: "None", Body: &ast.IntLit{Value: 0}},
		},
	}

	typ, row, err := ctx.Infer(expr, table)
	if err != nil {
		t.Fatalf("infer failed: %v", err)
	}
	if got := ctx.resolve(typ).String(); got != "Int" {
		t.Errorf("expected Int, got %s", got)
	}
	if got := ctx.resolveRow(row); !got.IsEmpty() {
		t.Errorf("expected pure row, got %s", got)
	}
}

func ioHandler() *ast.HandlerLit {
	return &ast.HandlerLit{
		Effect: "io",
		Ops: []*ast.OpClause{
			{Op: "println", Params: []string{"s"}, Resume: "resume",
				Body: call(ident("resume"), &ast.UnitLit{})},
			{Op: "readln", Resume: "resume",
				Body: call(ident("resume"), &ast.StringLit{Value: ""})},
		},
	}
}

func TestAnalyzeProgramWithRootHandler(t *testing.T) {
	prog := &ast.Program{
		RootHandlers: []*ast.RootHandler{{Capability: "console", Handler: ioHandler()}},
		Main: &ast.OpCall{
			Cap:  ident("console"),
			Op:   "println",
			Args: []ast.Expr{&ast.StringLit{Value: "hello"}},
		},
	}

	res, err := AnalyzeProgram(prog, nil)
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	if got := res.MainType.String(); got != "Unit" {
		t.Errorf("expected Unit, got %s", got)
	}
	if !res.MainRow.Member("io") {
		t.Errorf("main row should carry io, got %s", res.MainRow)
	}
}

func TestAnalyzeProgramRejectsUnhandledEffects(t *testing.T) {
	ioRow := effects.New("io")
	prog := &ast.Program{
		Main: &ast.Annot{Expr: &ast.IntLit{Value: 1}, Type: intType, Row: &ioRow},
	}

	_, err := AnalyzeProgram(prog, nil)
	if err == nil {
		t.Fatal("expected an unhandled-effect error, got none")
	}
	if !strings.Contains(err.Error(), "unhandled effects") {
		t.Errorf("unexpected error: %v", err)
	}
}
