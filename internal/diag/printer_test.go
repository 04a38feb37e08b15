package diag

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rowlang/rowan/internal/analyzer"
	"github.com/rowlang/rowan/internal/ast"
	"github.com/rowlang/rowan/internal/typesystem"
)

func TestErrorLabels(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.Error(&analyzer.EffectEscapeError{
		Var:      "e1",
		Type:     typesystem.TCon{Name: "Int"},
		Position: ast.Position{Line: 3, Column: 7},
	})

	out := buf.String()
	if !strings.HasPrefix(out, "effect escape:") {
		t.Errorf("expected the effect escape label, got %q", out)
	}
	if strings.Contains(out, "\033[") {
		t.Errorf("buffer output must not be colored: %q", out)
	}

	buf.Reset()
	p.Error(&typesystem.TypeMismatchError{
		Expected: typesystem.TCon{Name: "Int"},
		Actual:   typesystem.TCon{Name: "Bool"},
	})
	if out := buf.String(); !strings.HasPrefix(out, "type mismatch:") {
		t.Errorf("expected the type mismatch label, got %q", out)
	}
}

func TestSuccessAndWarn(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.Success("checked %d definitions", 2)
	p.Warn("no main expression")

	out := buf.String()
	if !strings.Contains(out, "ok: checked 2 definitions") {
		t.Errorf("unexpected output: %q", out)
	}
	if !strings.Contains(out, "warning: no main expression") {
		t.Errorf("unexpected output: %q", out)
	}
}
