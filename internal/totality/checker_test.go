package totality

import (
	"strings"
	"testing"

	"github.com/rowlang/rowan/internal/analyzer"
	"github.com/rowlang/rowan/internal/ast"
	"github.com/rowlang/rowan/internal/typesystem"
)

var intType = typesystem.TCon{Name: "Int"}

func ident(name string) *ast.Ident { return &ast.Ident{Name: name} }

func call(fn ast.Expr, args ...ast.Expr) *ast.Call {
	c := &ast.Call{Fn: fn}
	for _, a := range args {
		c.Args = append(c.Args, ast.Arg{Value: a})
	}
	return c
}

func totalLambda(param string, body ast.Expr) *ast.Lambda {
	return &ast.Lambda{
		Total:  true,
		Params: []ast.ParamSpec{{Name: param, Annot: intType}},
		Body:   body,
	}
}

func check(t *testing.T, prog *ast.Program) error {
	t.Helper()
	res, err := analyzer.AnalyzeProgram(prog, nil)
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	return NewChecker(res, nil).CheckProgram(prog)
}

func TestTotalDefinitionAccepted(t *testing.T) {
	prog := &ast.Program{
		Defs: []*ast.Definition{{
			Name: "double",
			Body: totalLambda("x", call(ident("+"), ident("x"), ident("x"))),
		}},
	}
	if err := check(t, prog); err != nil {
		t.Errorf("expected double to verify, got %v", err)
	}
}

func TestSelfRecursionRejected(t *testing.T) {
	prog := &ast.Program{
		Defs: []*ast.Definition{{
			Name: "loop",
			Body: totalLambda("x", call(ident("loop"), ident("x"))),
		}},
	}
	err := check(t, prog)
	if err == nil {
		t.Fatal("expected recursion to be rejected")
	}
	if !strings.Contains(err.Error(), "recursion") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestMutualRecursionRejected(t *testing.T) {
	prog := &ast.Program{
		Defs: []*ast.Definition{
			{Name: "ping", Body: totalLambda("x", call(ident("pong"), ident("x")))},
			{Name: "pong", Body: totalLambda("x", call(ident("ping"), ident("x")))},
		},
	}
	err := check(t, prog)
	if err == nil {
		t.Fatal("expected mutual recursion to be rejected")
	}
	if !strings.Contains(err.Error(), "recursion") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCallToNonTotalRejected(t *testing.T) {
	prog := &ast.Program{
		Defs: []*ast.Definition{
			// Pure but not total: the plain lambda form claims nothing about
			// termination.
			{Name: "mystery", Body: &ast.Lambda{
				Params: []ast.ParamSpec{{Name: "x", Annot: intType}},
				Body:   ident("x"),
			}},
			{Name: "bad", Body: totalLambda("x", call(ident("mystery"), ident("x")))},
		},
	}
	err := check(t, prog)
	if err == nil {
		t.Fatal("expected the division call to be rejected")
	}
	if !strings.Contains(err.Error(), "not total") {
		t.Errorf("unexpected error: %v", err)
	}
}

func optionDecl() *ast.DataDecl {
	return &ast.DataDecl{
		Name:   "Option",
		Params: []string{"a"},
		Ctors: []ast.CtorDecl{
			{Name: "None"},
			{Name: "Some", Fields: []typesystem.Type{typesystem.TVar{Name: "a"}}},
		},
	}
}

func TestExhaustiveMatchAccepted(t *testing.T) {
	prog := &ast.Program{
		Datatypes: []*ast.DataDecl{optionDecl()},
		Defs: []*ast.Definition{{
			Name: "fromOption",
			Body: &ast.Lambda{
				Total: true,
				Params: []ast.ParamSpec{{
					Name: "o",
					Annot: typesystem.TApp{
						Constructor: typesystem.TCon{Name: "Option"},
						Args:        []typesystem.Type{intType},
					},
				}},
				Body: &ast.Match{
					Subject:  ident("o"),
					Datatype: "Option",
					Cases: []*ast.Case{
						{Ctor: "Some", Binders: []string{"v"}, Body: ident("v")},
						{Ctor: "None", Body: &ast.IntLit{Value: 0}},
					},
				},
			},
		}},
	}
	if err := check(t, prog); err != nil {
		t.Errorf("expected fromOption to verify, got %v", err)
	}
}

func TestNonExhaustiveMatchRejected(t *testing.T) {
	prog := &ast.Program{
		Datatypes: []*ast.DataDecl{optionDecl()},
		Defs: []*ast.Definition{{
			Name: "partial",
			Body: &ast.Lambda{
				Total: true,
				Params: []ast.ParamSpec{{
					Name: "o",
					Annot: typesystem.TApp{
						Constructor: typesystem.TCon{Name: "Option"},
						Args:        []typesystem.Type{intType},
					},
				}},
				Body: &ast.Match{
					Subject:  ident("o"),
					Datatype: "Option",
					Cases: []*ast.Case{
						{Ctor: "Some", Binders: []string{"v"}, Body: ident("v")},
					},
				},
			},
		}},
	}
	err := check(t, prog)
	if err == nil {
		t.Fatal("expected the partial match to be rejected")
	}
	if !strings.Contains(err.Error(), "misses constructor") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNegativeDatatypeRejected(t *testing.T) {
	bad := &ast.DataDecl{
		Name: "Rec",
		Ctors: []ast.CtorDecl{{
			Name: "MkRec",
			Fields: []typesystem.Type{typesystem.TFunc{
				Params: []typesystem.Param{{
					Mode: typesystem.PositionalParam,
					Type: typesystem.TCon{Name: "Rec"},
				}},
				Return: intType,
			}},
		}},
	}
	prog := &ast.Program{
		Datatypes: []*ast.DataDecl{bad},
		Defs: []*ast.Definition{{
			Name: "use",
			Body: &ast.Lambda{
				Total:  true,
				Params: []ast.ParamSpec{{Name: "r", Annot: typesystem.TCon{Name: "Rec"}}},
				Body: &ast.Match{
					Subject:  ident("r"),
					Datatype: "Rec",
					Cases: []*ast.Case{
						{Ctor: "MkRec", Binders: []string{"f"}, Body: &ast.IntLit{Value: 0}},
					},
				},
			},
		}},
	}
	err := check(t, prog)
	if err == nil {
		t.Fatal("expected the negative datatype to be rejected")
	}
	if !strings.Contains(err.Error(), "strictly positive") {
		t.Errorf("unexpected error: %v", err)
	}
}
