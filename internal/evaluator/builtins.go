package evaluator

import (
	"fmt"

	"github.com/rowlang/rowan/internal/config"
)

func intArgs(name string, args []Value) (int64, int64, Outcome) {
	if len(args) != 2 {
		return 0, 0, faultf("", "%s expects 2 arguments, got %d", name, len(args))
	}
	a, ok := args[0].(*Integer)
	if !ok {
		return 0, 0, faultf("", "%s expects integers, got %s", name, args[0].Inspect())
	}
	b, ok := args[1].(*Integer)
	if !ok {
		return 0, 0, faultf("", "%s expects integers, got %s", name, args[1].Inspect())
	}
	return a.Value, b.Value, nil
}

func listArg(name string, args []Value) (*List, Outcome) {
	if len(args) != 1 {
		return nil, faultf("", "%s expects 1 argument, got %d", name, len(args))
	}
	l, ok := args[0].(*List)
	if !ok {
		return nil, faultf("", "%s expects a list, got %s", name, args[0].Inspect())
	}
	return l, nil
}

func intBinOp(name string, f func(a, b int64) Outcome) *Builtin {
	return &Builtin{Name: name, Fn: func(ev *Evaluator, args []Value) Outcome {
		a, b, fault := intArgs(name, args)
		if fault != nil {
			return fault
		}
		return f(a, b)
	}}
}

func registerBuiltins(env *Environment) {
	env.Set("+", intBinOp("+", func(a, b int64) Outcome { return done(&Integer{Value: a + b}) }))
	env.Set("-", intBinOp("-", func(a, b int64) Outcome { return done(&Integer{Value: a - b}) }))
	env.Set("*", intBinOp("*", func(a, b int64) Outcome { return done(&Integer{Value: a * b}) }))
	env.Set("/", intBinOp("/", func(a, b int64) Outcome {
		if b == 0 {
			return faultf(config.DivEffectName, "division by zero")
		}
		return done(&Integer{Value: a / b})
	}))
	env.Set("%", intBinOp("%", func(a, b int64) Outcome {
		if b == 0 {
			return faultf(config.DivEffectName, "modulo by zero")
		}
		return done(&Integer{Value: a % b})
	}))
	env.Set("<", intBinOp("<", func(a, b int64) Outcome { return done(boolValue(a < b)) }))
	env.Set("<=", intBinOp("<=", func(a, b int64) Outcome { return done(boolValue(a <= b)) }))

	env.Set("==", &Builtin{Name: "==", Fn: func(ev *Evaluator, args []Value) Outcome {
		if len(args) != 2 {
			return faultf("", "== expects 2 arguments, got %d", len(args))
		}
		return done(boolValue(valuesEqual(args[0], args[1])))
	}})

	env.Set("not", &Builtin{Name: "not", Fn: func(ev *Evaluator, args []Value) Outcome {
		if len(args) != 1 {
			return faultf("", "not expects 1 argument, got %d", len(args))
		}
		b, ok := args[0].(*Boolean)
		if !ok {
			return faultf("", "not expects a boolean, got %s", args[0].Inspect())
		}
		return done(boolValue(!b.Value))
	}})

	env.Set("++", &Builtin{Name: "++", Fn: func(ev *Evaluator, args []Value) Outcome {
		if len(args) != 2 {
			return faultf("", "++ expects 2 arguments, got %d", len(args))
		}
		a, ok := args[0].(*String)
		if !ok {
			return faultf("", "++ expects strings, got %s", args[0].Inspect())
		}
		b, ok := args[1].(*String)
		if !ok {
			return faultf("", "++ expects strings, got %s", args[1].Inspect())
		}
		return done(&String{Value: a.Value + b.Value})
	}})

	env.Set("show", &Builtin{Name: "show", Fn: func(ev *Evaluator, args []Value) Outcome {
		if len(args) != 1 {
			return faultf("", "show expects 1 argument, got %d", len(args))
		}
		return done(&String{Value: args[0].Inspect()})
	}})

	env.Set("cons", &Builtin{Name: "cons", Fn: func(ev *Evaluator, args []Value) Outcome {
		if len(args) != 2 {
			return faultf("", "cons expects 2 arguments, got %d", len(args))
		}
		tail, ok := args[1].(*List)
		if !ok {
			return faultf("", "cons expects a list, got %s", args[1].Inspect())
		}
		elems := make([]Value, 0, len(tail.Elems)+1)
		elems = append(elems, args[0])
		elems = append(elems, tail.Elems...)
		return done(&List{Elems: elems})
	}})

	env.Set("append", &Builtin{Name: "append", Fn: func(ev *Evaluator, args []Value) Outcome {
		if len(args) != 2 {
			return faultf("", "append expects 2 arguments, got %d", len(args))
		}
		a, ok := args[0].(*List)
		if !ok {
			return faultf("", "append expects lists, got %s", args[0].Inspect())
		}
		b, ok := args[1].(*List)
		if !ok {
			return faultf("", "append expects lists, got %s", args[1].Inspect())
		}
		elems := make([]Value, 0, len(a.Elems)+len(b.Elems))
		elems = append(elems, a.Elems...)
		elems = append(elems, b.Elems...)
		return done(&List{Elems: elems})
	}})

	env.Set("head", &Builtin{Name: "head", Fn: func(ev *Evaluator, args []Value) Outcome {
		l, fault := listArg("head", args)
		if fault != nil {
			return fault
		}
		if len(l.Elems) == 0 {
			return faultf(config.ExnEffectName, "head of empty list")
		}
		return done(l.Elems[0])
	}})

	env.Set("tail", &Builtin{Name: "tail", Fn: func(ev *Evaluator, args []Value) Outcome {
		l, fault := listArg("tail", args)
		if fault != nil {
			return fault
		}
		if len(l.Elems) == 0 {
			return faultf(config.ExnEffectName, "tail of empty list")
		}
		return done(&List{Elems: l.Elems[1:]})
	}})

	env.Set("isEmpty", &Builtin{Name: "isEmpty", Fn: func(ev *Evaluator, args []Value) Outcome {
		l, fault := listArg("isEmpty", args)
		if fault != nil {
			return fault
		}
		return done(boolValue(len(l.Elems) == 0))
	}})

	env.Set("length", &Builtin{Name: "length", Fn: func(ev *Evaluator, args []Value) Outcome {
		l, fault := listArg("length", args)
		if fault != nil {
			return fault
		}
		return done(&Integer{Value: int64(len(l.Elems))})
	}})
}

// ConsoleHandler is a native io handler: println writes a line to the
// evaluator's writer, readln reads one.
func ConsoleHandler() *HandlerValue {
	return &HandlerValue{
		Effect: config.IOEffectName,
		Native: map[string]NativeClause{
			config.PrintlnOpName: func(ev *Evaluator, args []Value, resume func(Value) Outcome) Outcome {
				if len(args) != 1 {
					return faultf("", "println expects 1 argument, got %d", len(args))
				}
				fmt.Fprintln(ev.out, args[0].Inspect())
				return resume(Unit)
			},
			config.ReadlnOpName: func(ev *Evaluator, args []Value, resume func(Value) Outcome) Outcome {
				line := ""
				if ev.in.Scan() {
					line = ev.in.Text()
				}
				return resume(&String{Value: line})
			},
		},
	}
}
