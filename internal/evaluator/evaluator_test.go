package evaluator

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowlang/rowan/internal/ast"
	"github.com/rowlang/rowan/internal/typesystem"
)

func ident(name string) *ast.Ident { return &ast.Ident{Name: name} }

func call(fn ast.Expr, args ...ast.Expr) *ast.Call {
	c := &ast.Call{Fn: fn}
	for _, a := range args {
		c.Args = append(c.Args, ast.Arg{Value: a})
	}
	return c
}

func intLit(v int64) *ast.IntLit { return &ast.IntLit{Value: v} }

func flip(capName string) *ast.OpCall {
	return &ast.OpCall{Cap: ident(capName), Op: "flip"}
}

// collectingFlipHandler resumes with true and false and appends both
// futures; its return clause wraps each completed run in a singleton
// list.
func collectingFlipHandler() *ast.HandlerLit {
	return &ast.HandlerLit{
		Effect: "ndet",
		Ops: []*ast.OpClause{{
			Op:     "flip",
			Resume: "resume",
			Body: call(ident("append"),
				call(ident("resume"), &ast.BoolLit{Value: true}),
				call(ident("resume"), &ast.BoolLit{Value: false})),
		}},
		Return: &ast.ReturnClause{
			Param: "x",
			Body:  call(ident("cons"), ident("x"), &ast.ListLit{}),
		},
	}
}

func run(t *testing.T, prog *ast.Program, opts ...Option) Value {
	t.Helper()
	v, err := New(opts...).Run(prog)
	require.NoError(t, err)
	return v
}

func TestMultiShotResumeExploresAllPaths(t *testing.T) {
	body := &ast.Let{
		Name:  "a",
		Value: flip("nd"),
		Body: &ast.Let{
			Name:  "b",
			Value: flip("nd"),
			Body:  &ast.ListLit{Elems: []ast.Expr{ident("a"), ident("b")}},
		},
	}
	prog := &ast.Program{Main: &ast.Handle{
		Capability: "nd",
		Handler:    collectingFlipHandler(),
		Body:       body,
	}}

	v := run(t, prog)
	assert.Equal(t, "[[true, true], [true, false], [false, true], [false, false]]", v.Inspect())
}

func TestClauseAbandonsComputation(t *testing.T) {
	handler := &ast.HandlerLit{
		Effect: "exn",
		Ops: []*ast.OpClause{{
			Op:     "throw",
			Params: []string{"msg"},
			Resume: "resume",
			Body:   intLit(-1),
		}},
	}
	body := &ast.Let{
		Name:  "x",
		Value: &ast.OpCall{Cap: ident("e"), Op: "throw", Args: []ast.Expr{&ast.StringLit{Value: "boom"}}},
		Body:  intLit(42),
	}
	prog := &ast.Program{Main: &ast.Handle{Capability: "e", Handler: handler, Body: body}}

	v := run(t, prog)
	assert.Equal(t, "-1", v.Inspect())
}

func TestFinallyRunsOnceDespiteMultiShot(t *testing.T) {
	var buf bytes.Buffer
	handler := collectingFlipHandler()
	handler.Finally = &ast.FinallyClause{
		Body: &ast.OpCall{
			Cap:  ident("console"),
			Op:   "println",
			Args: []ast.Expr{&ast.StringLit{Value: "cleanup"}},
		},
	}
	prog := &ast.Program{Main: &ast.Handle{
		Capability: "nd",
		Handler:    handler,
		Body:       flip("nd"),
	}}

	v, err := New(WithOut(&buf)).Run(prog, RootCapability{Name: "console", Handler: ConsoleHandler()})
	require.NoError(t, err)
	assert.Equal(t, "[true, false]", v.Inspect())
	assert.Equal(t, 1, strings.Count(buf.String(), "cleanup"))
}

func TestOperationsTargetTheCapabilityLabel(t *testing.T) {
	constFlip := func(result bool) *ast.HandlerLit {
		return &ast.HandlerLit{
			Effect: "ndet",
			Ops: []*ast.OpClause{{
				Op:     "flip",
				Resume: "resume",
				Body:   call(ident("resume"), &ast.BoolLit{Value: result}),
			}},
		}
	}
	// The outer capability must reach the outer activation even though an
	// activation for the same effect sits closer.
	prog := &ast.Program{Main: &ast.Handle{
		Capability: "outer",
		Handler:    constFlip(false),
		Body: &ast.Handle{
			Capability: "inner",
			Handler:    constFlip(true),
			Body:       flip("outer"),
		},
	}}

	v := run(t, prog)
	assert.Equal(t, "false", v.Inspect())
}

func TestParameterizedStateHandler(t *testing.T) {
	// Parameter-passing state: every clause returns a function of the
	// current state, and the handle result is applied to the initial value.
	stateFn := func(body ast.Expr) *ast.Lambda {
		return &ast.Lambda{Params: []ast.ParamSpec{{Name: "s"}}, Body: body}
	}
	handler := &ast.HandlerLit{
		Effect: "state",
		Ops: []*ast.OpClause{
			{
				Op:     "get",
				Resume: "resume",
				Body:   stateFn(call(call(ident("resume"), ident("s")), ident("s"))),
			},
			{
				Op:     "put",
				Params: []string{"v"},
				Resume: "resume",
				Body:   stateFn(call(call(ident("resume"), &ast.UnitLit{}), ident("v"))),
			},
		},
		Return: &ast.ReturnClause{Param: "x", Body: stateFn(ident("x"))},
	}

	get := func() *ast.OpCall { return &ast.OpCall{Cap: ident("st"), Op: "get"} }
	body := &ast.Let{
		Name:  "a",
		Value: get(),
		Body: &ast.Let{
			Name: "done",
			Value: &ast.OpCall{
				Cap:  ident("st"),
				Op:   "put",
				Args: []ast.Expr{call(ident("+"), ident("a"), intLit(1))},
			},
			Body: get(),
		},
	}

	prog := &ast.Program{Main: call(
		&ast.Handle{Capability: "st", Handler: handler, Body: body},
		intLit(10),
	)}
	assert.Equal(t, "11", run(t, prog).Inspect())
}

func TestHandlerNestingOrderIsObservable(t *testing.T) {
	stateFn := func(body ast.Expr) *ast.Lambda {
		return &ast.Lambda{Params: []ast.ParamSpec{{Name: "s"}}, Body: body}
	}
	counter := func() *ast.HandlerLit {
		return &ast.HandlerLit{
			Effect: "state",
			Ops: []*ast.OpClause{
				{
					Op:     "get",
					Resume: "resume",
					Body:   stateFn(call(call(ident("resume"), ident("s")), ident("s"))),
				},
				{
					Op:     "put",
					Params: []string{"v"},
					Resume: "resume",
					Body:   stateFn(call(call(ident("resume"), &ast.UnitLit{}), ident("v"))),
				},
			},
			Return: &ast.ReturnClause{Param: "x", Body: stateFn(ident("x"))},
		}
	}

	// Each branch of the search bumps the counter and yields its new value.
	body := func() ast.Expr {
		return &ast.Let{
			Name:  "c",
			Value: flip("nd"),
			Body: &ast.Let{
				Name:  "a",
				Value: call(ident("+"), &ast.OpCall{Cap: ident("st"), Op: "get"}, intLit(1)),
				Body: &ast.Let{
					Name:  "d",
					Value: &ast.OpCall{Cap: ident("st"), Op: "put", Args: []ast.Expr{ident("a")}},
					Body:  ident("a"),
				},
			},
		}
	}

	t.Run("counter outside the search persists across branches", func(t *testing.T) {
		prog := &ast.Program{Main: call(
			&ast.Handle{
				Capability: "st",
				Handler:    counter(),
				Body:       &ast.Handle{Capability: "nd", Handler: collectingFlipHandler(), Body: body()},
			},
			intLit(0),
		)}
		assert.Equal(t, "[1, 2]", run(t, prog).Inspect())
	})

	t.Run("counter inside the search restarts per branch", func(t *testing.T) {
		prog := &ast.Program{Main: &ast.Handle{
			Capability: "nd",
			Handler:    collectingFlipHandler(),
			Body: call(
				&ast.Handle{Capability: "st", Handler: counter(), Body: body()},
				intLit(0),
			),
		}}
		assert.Equal(t, "[1, 1]", run(t, prog).Inspect())
	})
}

func TestEscapedCapabilityFaults(t *testing.T) {
	handler := &ast.HandlerLit{
		Effect: "ndet",
		Ops: []*ast.OpClause{{
			Op:     "flip",
			Resume: "resume",
			Body:   call(ident("resume"), &ast.BoolLit{Value: true}),
		}},
	}
	// The handle returns a closure that raises through the capability
	// after the activation is gone.
	prog := &ast.Program{Main: &ast.Let{
		Name: "f",
		Value: &ast.Handle{
			Capability: "nd",
			Handler:    handler,
			Body:       &ast.Lambda{Body: flip("nd")},
		},
		Body: call(ident("f")),
	}}

	_, err := New().Run(prog)
	require.Error(t, err)
	var unhandled *UnhandledOperationFault
	assert.True(t, errors.As(err, &unhandled))
	assert.Equal(t, "flip", unhandled.Op)
}

func TestConsoleRootHandlerAndDefinitions(t *testing.T) {
	var buf bytes.Buffer
	prog := &ast.Program{
		Defs: []*ast.Definition{{
			Name: "greet",
			Body: &ast.Lambda{
				Params: []ast.ParamSpec{{Name: "name"}},
				Body: &ast.OpCall{
					Cap:  ident("console"),
					Op:   "println",
					Args: []ast.Expr{call(ident("++"), &ast.StringLit{Value: "Hello, "}, ident("name"))},
				},
			},
		}},
		Main: call(ident("greet"), &ast.StringLit{Value: "world"}),
	}

	v, err := New(WithOut(&buf)).Run(prog, RootCapability{Name: "console", Handler: ConsoleHandler()})
	require.NoError(t, err)
	assert.Equal(t, "()", v.Inspect())
	assert.Equal(t, "Hello, world\n", buf.String())
}

func TestReadlnFromConfiguredInput(t *testing.T) {
	var buf bytes.Buffer
	prog := &ast.Program{Main: &ast.OpCall{
		Cap: ident("console"), Op: "println",
		Args: []ast.Expr{&ast.OpCall{Cap: ident("console"), Op: "readln"}},
	}}

	_, err := New(WithOut(&buf), WithIn(strings.NewReader("echo\n"))).
		Run(prog, RootCapability{Name: "console", Handler: ConsoleHandler()})
	require.NoError(t, err)
	assert.Equal(t, "echo\n", buf.String())
}

func TestDivisionByZeroFaults(t *testing.T) {
	prog := &ast.Program{Main: call(ident("/"), intLit(1), intLit(0))}
	_, err := New().Run(prog)
	require.Error(t, err)
	var fault *Fault
	require.True(t, errors.As(err, &fault))
	assert.Equal(t, "div", fault.Effect)
}

func TestMatchAndConstructors(t *testing.T) {
	prog := &ast.Program{
		Datatypes: []*ast.DataDecl{{
			Name:   "Option",
			Params: []string{"a"},
			Ctors: []ast.CtorDecl{
				{Name: "None"},
				{Name: "Some", Fields: []typesystem.Type{typesystem.TVar{Name: "a"}}},
			},
		}},
		Main: &ast.Match{
			Subject:  call(ident("Some"), intLit(5)),
			Datatype: "Option",
			Cases: []*ast.Case{
				{Ctor: "Some", Binders: []string{"v"}, Body: ident("v")},
				{Ctor: "None", Body: intLit(0)},
			},
		},
	}
	assert.Equal(t, "5", run(t, prog).Inspect())
}

func TestOptionalAndNamedArguments(t *testing.T) {
	addWithDefault := &ast.Lambda{
		Params: []ast.ParamSpec{
			{Name: "x"},
			{Name: "y", Mode: typesystem.OptionalParam, Default: intLit(10)},
		},
		Body: call(ident("+"), ident("x"), ident("y")),
	}

	tests := []struct {
		name string
		args []ast.Arg
		want string
	}{
		{"default applies", []ast.Arg{{Value: intLit(5)}}, "15"},
		{"named overrides", []ast.Arg{{Value: intLit(5)}, {Name: "y", Value: intLit(1)}}, "6"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := &ast.Program{Main: &ast.Let{
				Name:  "f",
				Value: addWithDefault,
				Body:  &ast.Call{Fn: ident("f"), Args: tt.args},
			}}
			assert.Equal(t, tt.want, run(t, prog).Inspect())
		})
	}
}

func TestImplicitArgumentFromCallerScope(t *testing.T) {
	f := &ast.Lambda{
		Params: []ast.ParamSpec{
			{Name: "x"},
			{Name: "offset", Mode: typesystem.ImplicitParam},
		},
		Body: call(ident("+"), ident("x"), ident("offset")),
	}
	prog := &ast.Program{Main: &ast.Let{
		Name:  "f",
		Value: f,
		Body: &ast.Let{
			Name:  "offset",
			Value: intLit(2),
			Body:  call(ident("f"), intLit(1)),
		},
	}}
	assert.Equal(t, "3", run(t, prog).Inspect())
}
