// Command rowan checks and runs a demonstration program against the
// language core: effect-row inference, handler-scoped capabilities, and
// multi-shot resumable handlers.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/rowlang/rowan/internal/ast"
	"github.com/rowlang/rowan/internal/diag"
	"github.com/rowlang/rowan/pkg/rowan"
)

func main() {
	verbose := flag.Bool("verbose", false, "trace inference and evaluation")
	flag.Parse()

	var logger *zap.Logger
	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		logger = l
		defer logger.Sync()
	}

	printer := diag.NewPrinter(os.Stderr)
	prog := demoProgram()

	res, err := rowan.Check(prog, rowan.WithLogger(logger))
	if err != nil {
		printer.Error(err)
		os.Exit(1)
	}
	printer.Success("main : %s ->%s", res.MainType, res.MainRow)

	value, err := rowan.Run(prog, rowan.WithLogger(logger))
	if err != nil {
		printer.Error(err)
		os.Exit(1)
	}
	printer.Success("result: %s", value.Inspect())
}

func ident(name string) *ast.Ident { return &ast.Ident{Name: name} }

func call(fn ast.Expr, args ...ast.Expr) *ast.Call {
	c := &ast.Call{Fn: fn}
	for _, a := range args {
		c.Args = append(c.Args, ast.Arg{Value: a})
	}
	return c
}

// demoProgram collects every path of two coin flips and prints them: a
// multi-shot handler resumes each flip with both answers.
func demoProgram() *ast.Program {
	collect := &ast.HandlerLit{
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

	flips := &ast.Let{
		Name:  "a",
		Value: &ast.OpCall{Cap: ident("nd"), Op: "flip"},
		Body: &ast.Let{
			Name:  "b",
			Value: &ast.OpCall{Cap: ident("nd"), Op: "flip"},
			Body:  &ast.ListLit{Elems: []ast.Expr{ident("a"), ident("b")}},
		},
	}

	paths := &ast.Handle{Capability: "nd", Handler: collect, Body: flips}

	return &ast.Program{
		Main: &ast.OpCall{
			Cap:  ident("console"),
			Op:   "println",
			Args: []ast.Expr{call(ident("show"), paths)},
		},
	}
}
