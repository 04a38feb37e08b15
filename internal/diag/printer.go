// Package diag renders checker and runtime errors for terminals,
// coloring output only when the destination is an interactive tty.
package diag

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/rowlang/rowan/internal/analyzer"
	"github.com/rowlang/rowan/internal/effects"
	"github.com/rowlang/rowan/internal/evaluator"
	"github.com/rowlang/rowan/internal/totality"
	"github.com/rowlang/rowan/internal/typesystem"
)

const (
	ansiRed    = "\033[31m"
	ansiYellow = "\033[33m"
	ansiGreen  = "\033[32m"
	ansiReset  = "\033[0m"
)

type Printer struct {
	w     io.Writer
	color bool
}

func NewPrinter(w io.Writer) *Printer {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Printer{w: w, color: color}
}

func (p *Printer) paint(code, s string) string {
	if !p.color {
		return s
	}
	return code + s + ansiReset
}

// Error prints err with a label identifying which stage rejected the
// program.
func (p *Printer) Error(err error) {
	label := "error"

	var escape *analyzer.EffectEscapeError
	var ambiguous *analyzer.AmbiguousInstantiationError
	var mismatch *effects.RowMismatchError
	var types *typesystem.TypeMismatchError
	var total *totality.Error
	var unhandled *evaluator.UnhandledOperationFault
	var fault *evaluator.Fault
	switch {
	case errors.As(err, &escape):
		label = "effect escape"
	case errors.As(err, &ambiguous):
		label = "ambiguous instantiation"
	case errors.As(err, &mismatch):
		label = "effect mismatch"
	case errors.As(err, &types):
		label = "type mismatch"
	case errors.As(err, &total):
		label = "totality"
	case errors.As(err, &unhandled):
		label = "unhandled operation"
	case errors.As(err, &fault):
		label = "runtime fault"
	}

	fmt.Fprintf(p.w, "%s: %v\n", p.paint(ansiRed, label), err)
}

// Warn prints an advisory message.
func (p *Printer) Warn(format string, args ...interface{}) {
	fmt.Fprintf(p.w, "%s: %s\n", p.paint(ansiYellow, "warning"), fmt.Sprintf(format, args...))
}

// Success prints a confirmation message.
func (p *Printer) Success(format string, args ...interface{}) {
	fmt.Fprintf(p.w, "%s: %s\n", p.paint(ansiGreen, "ok"), fmt.Sprintf(format, args...))
}
