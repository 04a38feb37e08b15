// Package evaluator implements the runtime: a tree walker whose
// evaluation results are explicit outcomes, so effect operations suspend
// the computation and travel to the handler activation their capability
// names. Continuations are ordinary closures over immutable frames,
// which makes resumptions resumable any number of times.
package evaluator

import (
	"bufio"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/rowlang/rowan/internal/ast"
	"github.com/rowlang/rowan/internal/typesystem"
)

type Evaluator struct {
	out    io.Writer
	in     *bufio.Scanner
	logger *zap.Logger
}

type Option func(*Evaluator)

// WithOut redirects println output.
func WithOut(w io.Writer) Option {
	return func(ev *Evaluator) { ev.out = w }
}

// WithIn redirects readln input.
func WithIn(r io.Reader) Option {
	return func(ev *Evaluator) { ev.in = bufio.NewScanner(r) }
}

// WithLogger attaches a structured logger for evaluation tracing.
func WithLogger(l *zap.Logger) Option {
	return func(ev *Evaluator) {
		if l != nil {
			ev.logger = l
		}
	}
}

func New(opts ...Option) *Evaluator {
	ev := &Evaluator{
		out:    os.Stdout,
		in:     bufio.NewScanner(os.Stdin),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(ev)
	}
	return ev
}

// RootCapability installs a native handler under a program-wide
// capability name, beneath the program's own root handlers.
type RootCapability struct {
	Name    string
	Handler *HandlerValue
}

// Run evaluates a program: constructors and primitives are bound, root
// handlers are installed bottom-up, definitions are evaluated in order,
// and the body runs under the root activations.
func (ev *Evaluator) Run(prog *ast.Program, roots ...RootCapability) (Value, error) {
	env := NewEnvironment()
	registerBuiltins(env)
	for _, dd := range prog.Datatypes {
		registerConstructors(env, dd)
	}

	var acts []*activation
	for _, root := range roots {
		act := ev.newActivation(root.Handler)
		env.Set(root.Name, &Capability{Effect: root.Handler.Effect, Label: act.label})
		acts = append(acts, act)
	}
	for _, rh := range prog.RootHandlers {
		o := ev.evalExpr(rh.Handler, env)
		d, ok := o.(*Done)
		if !ok {
			return nil, outcomeError(o, "root handler evaluation")
		}
		h, ok := d.Value.(*HandlerValue)
		if !ok {
			return nil, &Fault{Msg: "root handler is not a handler value"}
		}
		act := ev.newActivation(h)
		env.Set(rh.Capability, &Capability{Effect: h.Effect, Label: act.label})
		acts = append(acts, act)
	}

	for _, def := range prog.Defs {
		o := ev.evalExpr(def.Body, env)
		d, ok := o.(*Done)
		if !ok {
			return nil, outcomeError(o, "definition "+def.Name)
		}
		env.Set(def.Name, d.Value)
	}

	if prog.Main == nil {
		return Unit, nil
	}

	o := ev.evalExpr(prog.Main, env)
	for i := len(acts) - 1; i >= 0; i-- {
		o = ev.withFinally(acts[i], ev.runActivation(acts[i], o))
	}
	switch o := o.(type) {
	case *Done:
		return o.Value, nil
	case *Suspend:
		return nil, &UnhandledOperationFault{Op: o.Op, Label: o.Label}
	case *Fault:
		return nil, o
	}
	return nil, &Fault{Msg: "evaluation produced no outcome"}
}

func outcomeError(o Outcome, where string) error {
	switch o := o.(type) {
	case *Fault:
		return o
	case *Suspend:
		return &UnhandledOperationFault{Op: o.Op, Label: o.Label}
	}
	return &Fault{Msg: where + " produced no value"}
}

func registerConstructors(env *Environment, dd *ast.DataDecl) {
	for _, ctor := range dd.Ctors {
		if len(ctor.Fields) == 0 {
			env.Set(ctor.Name, &Ctor{Name: ctor.Name})
			continue
		}
		name := ctor.Name
		arity := len(ctor.Fields)
		env.Set(name, &Builtin{Name: name, Fn: func(ev *Evaluator, args []Value) Outcome {
			if len(args) != arity {
				return faultf("", "constructor %s expects %d arguments, got %d", name, arity, len(args))
			}
			return done(&Ctor{Name: name, Fields: args})
		}})
	}
}

func (ev *Evaluator) evalExpr(node ast.Expr, env *Environment) Outcome {
	switch n := node.(type) {
	case *ast.IntLit:
		return done(&Integer{Value: n.Value})
	case *ast.BoolLit:
		return done(boolValue(n.Value))
	case *ast.StringLit:
		return done(&String{Value: n.Value})
	case *ast.UnitLit:
		return done(Unit)
	case *ast.ListLit:
		return ev.evalSeq(n.Elems, env, func(vals []Value) Outcome {
			return done(&List{Elems: vals})
		})
	case *ast.Ident:
		if v, ok := env.Get(n.Name); ok {
			return done(v)
		}
		return faultf("", "unbound identifier %q", n.Name)
	case *ast.Lambda:
		return done(&Closure{Params: n.Params, Body: n.Body, Env: env})
	case *ast.Call:
		return ev.evalCall(n, env)
	case *ast.Let:
		return bind(ev.evalExpr(n.Value, env), func(v Value) Outcome {
			child := NewEnclosedEnvironment(env)
			child.Set(n.Name, v)
			return ev.evalExpr(n.Body, child)
		})
	case *ast.If:
		return bind(ev.evalExpr(n.Cond, env), func(c Value) Outcome {
			b, ok := c.(*Boolean)
			if !ok {
				return faultf("", "if condition is not a boolean: %s", c.Inspect())
			}
			if b.Value {
				return ev.evalExpr(n.Then, env)
			}
			return ev.evalExpr(n.Else, env)
		})
	case *ast.Annot:
		return ev.evalExpr(n.Expr, env)
	case *ast.Match:
		return ev.evalMatch(n, env)
	case *ast.HandlerLit:
		return done(ev.buildHandler(n, env))
	case *ast.Handle:
		return ev.evalHandle(n, env)
	case *ast.OpCall:
		return ev.evalOpCall(n, env)
	}
	return faultf("", "cannot evaluate node %T", node)
}

// evalSeq evaluates exprs left to right and hands the values to k. The
// accumulator is copied per step so a replayed continuation cannot
// observe a previous run's values.
func (ev *Evaluator) evalSeq(exprs []ast.Expr, env *Environment, k func([]Value) Outcome) Outcome {
	var step func(i int, acc []Value) Outcome
	step = func(i int, acc []Value) Outcome {
		if i == len(exprs) {
			return k(acc)
		}
		return bind(ev.evalExpr(exprs[i], env), func(v Value) Outcome {
			next := make([]Value, len(acc)+1)
			copy(next, acc)
			next[len(acc)] = v
			return step(i+1, next)
		})
	}
	return step(0, nil)
}

func (ev *Evaluator) evalMatch(n *ast.Match, env *Environment) Outcome {
	return bind(ev.evalExpr(n.Subject, env), func(subject Value) Outcome {
		ctor, ok := subject.(*Ctor)
		if !ok {
			return faultf("", "match subject is not a datatype value: %s", subject.Inspect())
		}
		for _, c := range n.Cases {
			if c.Ctor != ctor.Name {
				continue
			}
			if len(c.Binders) != len(ctor.Fields) {
				return faultf("", "case %s binds %d fields, value has %d", c.Ctor, len(c.Binders), len(ctor.Fields))
			}
			child := NewEnclosedEnvironment(env)
			for i, b := range c.Binders {
				child.Set(b, ctor.Fields[i])
			}
			return ev.evalExpr(c.Body, child)
		}
		return faultf("", "no case matches constructor %s", ctor.Name)
	})
}

func (ev *Evaluator) evalCall(n *ast.Call, env *Environment) Outcome {
	return bind(ev.evalExpr(n.Fn, env), func(fn Value) Outcome {
		var positional []ast.Expr
		named := map[string]ast.Expr{}
		var nameOrder []string
		for _, a := range n.Args {
			if a.Name == "" {
				positional = append(positional, a.Value)
			} else {
				named[a.Name] = a.Value
				nameOrder = append(nameOrder, a.Name)
			}
		}
		return ev.evalSeq(positional, env, func(posVals []Value) Outcome {
			namedExprs := make([]ast.Expr, len(nameOrder))
			for i, name := range nameOrder {
				namedExprs[i] = named[name]
			}
			return ev.evalSeq(namedExprs, env, func(namedVals []Value) Outcome {
				byName := make(map[string]Value, len(nameOrder))
				for i, name := range nameOrder {
					byName[name] = namedVals[i]
				}
				return ev.apply(fn, posVals, byName, env)
			})
		})
	})
}

// apply invokes a function value. callerEnv supplies implicit arguments:
// an implicit parameter not passed explicitly resolves by name from the
// call site's scope.
func (ev *Evaluator) apply(fn Value, positional []Value, byName map[string]Value, callerEnv *Environment) Outcome {
	switch fn := fn.(type) {
	case *Builtin:
		if len(byName) > 0 {
			return faultf("", "builtin %s takes no named arguments", fn.Name)
		}
		return fn.Fn(ev, positional)

	case *Resume:
		if len(positional) != 1 || len(byName) != 0 {
			return faultf("", "a resumption takes exactly one argument")
		}
		return fn.fn(positional[0])

	case *Closure:
		// Each binding gets its own frame, so a default expression that
		// suspends can be resumed more than once without the runs sharing
		// state.
		var fill func(i, posIdx int, scope *Environment) Outcome
		fill = func(i, posIdx int, scope *Environment) Outcome {
			if i == len(fn.Params) {
				if posIdx < len(positional) {
					return faultf("", "too many positional arguments: %d given", len(positional))
				}
				return ev.evalExpr(fn.Body, scope)
			}
			p := fn.Params[i]
			bindNext := func(v Value, nextPos int) Outcome {
				next := NewEnclosedEnvironment(scope)
				next.Set(p.Name, v)
				return fill(i+1, nextPos, next)
			}
			switch {
			case isPositionalSpec(p):
				if posIdx >= len(positional) {
					return faultf("", "missing argument for parameter %q", p.Name)
				}
				return bindNext(positional[posIdx], posIdx+1)
			default:
				if v, ok := byName[p.Name]; ok {
					return bindNext(v, posIdx)
				}
				if p.Default != nil {
					// Defaults see the parameters bound before them.
					return bind(ev.evalExpr(p.Default, scope), func(v Value) Outcome {
						return bindNext(v, posIdx)
					})
				}
				if v, ok := callerEnv.Get(p.Name); ok {
					return bindNext(v, posIdx)
				}
				return faultf("", "no argument for parameter %q", p.Name)
			}
		}
		return fill(0, 0, fn.Env)
	}
	return faultf("", "cannot call value of kind %s", fn.Kind())
}

func isPositionalSpec(p ast.ParamSpec) bool {
	return p.Mode == typesystem.PositionalParam
}

func (ev *Evaluator) evalOpCall(n *ast.OpCall, env *Environment) Outcome {
	return bind(ev.evalExpr(n.Cap, env), func(cv Value) Outcome {
		capability, ok := cv.(*Capability)
		if !ok {
			return faultf("", "operation %q requires a capability, got %s", n.Op, cv.Inspect())
		}
		return ev.evalSeq(n.Args, env, func(args []Value) Outcome {
			ev.logger.Debug("operation raised",
				zap.String("effect", capability.Effect),
				zap.String("op", n.Op),
				zap.String("label", capability.Label))
			return &Suspend{
				Label: capability.Label,
				Op:    n.Op,
				Args:  args,
				K:     done,
			}
		})
	})
}
