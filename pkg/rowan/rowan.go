// Package rowan is the embedding surface of the language core: check an
// elaborated program and run it under the host's root handlers.
package rowan

import (
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/rowlang/rowan/internal/analyzer"
	"github.com/rowlang/rowan/internal/ast"
	"github.com/rowlang/rowan/internal/config"
	"github.com/rowlang/rowan/internal/evaluator"
	"github.com/rowlang/rowan/internal/totality"
)

type settings struct {
	logger  *zap.Logger
	out     io.Writer
	in      io.Reader
	console string
}

type Option func(*settings)

// WithLogger attaches a structured logger to checking and evaluation.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithOut redirects program output.
func WithOut(w io.Writer) Option {
	return func(s *settings) { s.out = w }
}

// WithIn redirects program input.
func WithIn(r io.Reader) Option {
	return func(s *settings) { s.in = r }
}

// WithConsole renames the capability the native io handler is bound to.
// The default is "console"; an empty name disables the handler entirely,
// leaving io to the program's own root handlers.
func WithConsole(name string) Option {
	return func(s *settings) { s.console = name }
}

func newSettings(opts []Option) *settings {
	s := &settings{
		out:     os.Stdout,
		in:      os.Stdin,
		console: "console",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Check runs type inference, the effect discipline, and the totality
// checker over an elaborated program.
func Check(prog *ast.Program, opts ...Option) (*analyzer.AnalysisResult, error) {
	s := newSettings(opts)
	var hostCaps []analyzer.RootCapability
	if s.console != "" {
		hostCaps = append(hostCaps, analyzer.RootCapability{Name: s.console, Effect: config.IOEffectName})
	}
	res, err := analyzer.AnalyzeProgram(prog, s.logger, hostCaps...)
	if err != nil {
		return nil, err
	}
	if err := totality.NewChecker(res, s.logger).CheckProgram(prog); err != nil {
		return nil, err
	}
	return res, nil
}

// Run checks prog and evaluates it. The native console handler is
// installed beneath the program's root handlers unless disabled.
func Run(prog *ast.Program, opts ...Option) (evaluator.Value, error) {
	s := newSettings(opts)
	if _, err := Check(prog, opts...); err != nil {
		return nil, err
	}
	ev := evaluator.New(
		evaluator.WithOut(s.out),
		evaluator.WithIn(s.in),
		evaluator.WithLogger(s.logger),
	)
	var roots []evaluator.RootCapability
	if s.console != "" {
		roots = append(roots, evaluator.RootCapability{Name: s.console, Handler: evaluator.ConsoleHandler()})
	}
	return ev.Run(prog, roots...)
}
