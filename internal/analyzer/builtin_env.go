package analyzer

import (
	"github.com/rowlang/rowan/internal/config"
	"github.com/rowlang/rowan/internal/effects"
	"github.com/rowlang/rowan/internal/symbols"
	"github.com/rowlang/rowan/internal/typesystem"
)

func binOp(a, b, ret typesystem.Type, row effects.Row, total bool) typesystem.Type {
	return typesystem.TFunc{
		Params: []typesystem.Param{
			{Mode: typesystem.PositionalParam, Type: a},
			{Mode: typesystem.PositionalParam, Type: b},
		},
		Return:  ret,
		Effects: row,
		Total:   total,
	}
}

func unOp(a, ret typesystem.Type, row effects.Row, total bool) typesystem.Type {
	return typesystem.TFunc{
		Params:  []typesystem.Param{{Mode: typesystem.PositionalParam, Type: a}},
		Return:  ret,
		Effects: row,
		Total:   total,
	}
}

func forallA(body func(a typesystem.Type) typesystem.Type) typesystem.Type {
	a := typesystem.TVar{Name: "a"}
	return typesystem.TForall{TypeVars: []typesystem.TVar{a}, Type: body(a)}
}

// registerBuiltinFunctions binds the primitive value environment. Integer
// division and list head/tail carry the effect that names their fault
// mode, so partiality is visible in every row that reaches them.
func registerBuiltinFunctions(globals *symbols.SymbolTable) {
	div := effects.New(config.DivEffectName)
	exn := effects.New(config.ExnEffectName)

	prims := map[string]typesystem.Type{
		"+":  binOp(intType, intType, intType, effects.Empty, true),
		"-":  binOp(intType, intType, intType, effects.Empty, true),
		"*":  binOp(intType, intType, intType, effects.Empty, true),
		"/":  binOp(intType, intType, intType, div, false),
		"%":  binOp(intType, intType, intType, div, false),
		"<":  binOp(intType, intType, boolType, effects.Empty, true),
		"<=": binOp(intType, intType, boolType, effects.Empty, true),
		"==": forallA(func(a typesystem.Type) typesystem.Type {
			return binOp(a, a, boolType, effects.Empty, true)
		}),
		"not": unOp(boolType, boolType, effects.Empty, true),
		"++":  binOp(stringType, stringType, stringType, effects.Empty, true),
		"show": forallA(func(a typesystem.Type) typesystem.Type {
			return unOp(a, stringType, effects.Empty, true)
		}),
		"cons": forallA(func(a typesystem.Type) typesystem.Type {
			return binOp(a, listType(a), listType(a), effects.Empty, true)
		}),
		"append": forallA(func(a typesystem.Type) typesystem.Type {
			return binOp(listType(a), listType(a), listType(a), effects.Empty, true)
		}),
		"head": forallA(func(a typesystem.Type) typesystem.Type {
			return unOp(listType(a), a, exn, false)
		}),
		"tail": forallA(func(a typesystem.Type) typesystem.Type {
			return unOp(listType(a), listType(a), exn, false)
		}),
		"isEmpty": forallA(func(a typesystem.Type) typesystem.Type {
			return unOp(listType(a), boolType, effects.Empty, true)
		}),
		"length": forallA(func(a typesystem.Type) typesystem.Type {
			return unOp(listType(a), intType, effects.Empty, true)
		}),
	}

	for name, t := range prims {
		total := false
		if fn, ok := schemeBody(t).(typesystem.TFunc); ok {
			total = fn.Total
		}
		globals.Define(&symbols.Symbol{Name: name, Type: t, Kind: symbols.VariableSymbol, Total: total})
	}
}
