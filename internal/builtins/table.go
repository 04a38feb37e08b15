// Package builtins provides the table of built-in effect constants and
// their operation signatures, declared in an embedded YAML document.
package builtins

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/rowlang/rowan/internal/ast"
	"github.com/rowlang/rowan/internal/typesystem"
)

//go:embed effects.yaml
var effectsYAML []byte

type tableYAML struct {
	Effects []effectYAML `yaml:"effects"`
}

type effectYAML struct {
	Name       string   `yaml:"name"`
	Operations []opYAML `yaml:"operations"`
}

type opYAML struct {
	Name   string   `yaml:"name"`
	Params []string `yaml:"params"`
	Result string   `yaml:"result"`
}

var (
	tableOnce sync.Once
	tableVal  []*ast.EffectDecl
	tableErr  error
)

// Table returns the built-in effect declarations. The result is shared;
// callers must not mutate it.
func Table() ([]*ast.EffectDecl, error) {
	tableOnce.Do(func() {
		tableVal, tableErr = parse(effectsYAML)
	})
	return tableVal, tableErr
}

func parse(data []byte) ([]*ast.EffectDecl, error) {
	var doc tableYAML
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing builtin effect table: %w", err)
	}

	var decls []*ast.EffectDecl
	for _, eff := range doc.Effects {
		if eff.Name == "" {
			return nil, fmt.Errorf("builtin effect with empty name")
		}
		decl := &ast.EffectDecl{Name: eff.Name}
		for _, op := range eff.Operations {
			sig := ast.OpSig{Name: op.Name}
			for _, p := range op.Params {
				t, err := parseType(p)
				if err != nil {
					return nil, fmt.Errorf("operation %s.%s: %w", eff.Name, op.Name, err)
				}
				sig.Params = append(sig.Params, t)
			}
			res, err := parseType(op.Result)
			if err != nil {
				return nil, fmt.Errorf("operation %s.%s: %w", eff.Name, op.Name, err)
			}
			sig.Result = res
			decl.Ops = append(decl.Ops, sig)
		}
		decls = append(decls, decl)
	}
	return decls, nil
}

// parseType reads the restricted type notation the table uses: base type
// constants, lowercase type variables, and List<T> applications.
func parseType(s string) (typesystem.Type, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty type")
	}
	if strings.HasSuffix(s, ">") {
		open := strings.Index(s, "<")
		if open <= 0 {
			return nil, fmt.Errorf("malformed type %q", s)
		}
		arg, err := parseType(s[open+1 : len(s)-1])
		if err != nil {
			return nil, err
		}
		return typesystem.TApp{
			Constructor: typesystem.TCon{Name: s[:open]},
			Args:        []typesystem.Type{arg},
		}, nil
	}
	if unicode.IsLower(rune(s[0])) {
		return typesystem.TVar{Name: s}, nil
	}
	return typesystem.TCon{Name: s}, nil
}
