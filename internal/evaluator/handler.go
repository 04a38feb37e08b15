package evaluator

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rowlang/rowan/internal/ast"
)

// UnhandledOperationFault is fatal: an operation reached the top of the
// handler stack, or targeted an activation that is no longer installed.
type UnhandledOperationFault struct {
	Op    string
	Label string
}

func (f *UnhandledOperationFault) Error() string {
	return fmt.Sprintf("unhandled operation %q (activation %s)", f.Op, f.Label)
}

// activationState tracks where one handler activation is in its
// lifecycle.
type activationState int

const (
	actRunning activationState = iota
	actSuspended
	actReturned
	actAbandoned
	actFinalizing
	actDone
)

func (s activationState) String() string {
	switch s {
	case actRunning:
		return "running"
	case actSuspended:
		return "suspended"
	case actReturned:
		return "returned"
	case actAbandoned:
		return "abandoned"
	case actFinalizing:
		return "finalizing"
	case actDone:
		return "done"
	}
	return "unknown"
}

// activation is one installed handler: a handler value plus the fresh
// label that operations target.
type activation struct {
	label     string
	handler   *HandlerValue
	state     activationState
	finalized bool
}

// NativeClause handles an operation in Go rather than in the language.
type NativeClause func(ev *Evaluator, args []Value, resume func(Value) Outcome) Outcome

// HandlerValue is a first-class handler: clauses for one effect kind,
// closed over their defining environment.
type HandlerValue struct {
	Effect  string
	Clauses map[string]*ast.OpClause
	Native  map[string]NativeClause
	Return  *ast.ReturnClause
	Finally *ast.FinallyClause
	Env     *Environment
}

func (v *HandlerValue) Kind() Kind      { return HandlerKind }
func (v *HandlerValue) Inspect() string { return "<handler " + v.Effect + ">" }

func (ev *Evaluator) buildHandler(n *ast.HandlerLit, env *Environment) *HandlerValue {
	clauses := make(map[string]*ast.OpClause, len(n.Ops))
	for _, op := range n.Ops {
		clauses[op.Op] = op
	}
	return &HandlerValue{
		Effect:  n.Effect,
		Clauses: clauses,
		Return:  n.Return,
		Finally: n.Finally,
		Env:     env,
	}
}

func (ev *Evaluator) newActivation(h *HandlerValue) *activation {
	act := &activation{label: uuid.NewString(), handler: h, state: actRunning}
	ev.logger.Debug("activation installed",
		zap.String("effect", h.Effect),
		zap.String("label", act.label))
	return act
}

func (ev *Evaluator) evalHandle(n *ast.Handle, env *Environment) Outcome {
	return bind(ev.evalExpr(n.Handler, env), func(hv Value) Outcome {
		h, ok := hv.(*HandlerValue)
		if !ok {
			return faultf("", "handle requires a handler value, got %s", hv.Inspect())
		}
		act := ev.newActivation(h)
		child := NewEnclosedEnvironment(env)
		child.Set(n.Capability, &Capability{Effect: h.Effect, Label: act.label})
		return ev.withFinally(act, ev.runActivation(act, ev.evalExpr(n.Body, child)))
	})
}

// runActivation interprets the handled computation's outcome against one
// activation. The handler is deep: forwarded and resumed computations are
// re-wrapped, so later operations with this label land here too.
func (ev *Evaluator) runActivation(act *activation, o Outcome) Outcome {
	switch o := o.(type) {
	case *Done:
		act.state = actReturned
		if act.handler.Return == nil {
			return o
		}
		renv := NewEnclosedEnvironment(act.handler.Env)
		renv.Set(act.handler.Return.Param, o.Value)
		return ev.evalExpr(act.handler.Return.Body, renv)

	case *Suspend:
		if o.Label != act.label {
			// Someone else's operation: forward it outward but stay
			// installed around the resumed computation.
			return &Suspend{
				Label: o.Label,
				Op:    o.Op,
				Args:  o.Args,
				K: func(v Value) Outcome {
					return ev.runActivation(act, o.K(v))
				},
			}
		}
		act.state = actSuspended
		resume := &Resume{fn: func(v Value) Outcome {
			act.state = actRunning
			return ev.runActivation(act, o.K(v))
		}}
		if native, ok := act.handler.Native[o.Op]; ok {
			return native(ev, o.Args, resume.fn)
		}
		clause, ok := act.handler.Clauses[o.Op]
		if !ok {
			return faultf("", "%v", &UnhandledOperationFault{Op: o.Op, Label: act.label})
		}
		if len(clause.Params) != len(o.Args) {
			return faultf("", "operation %s got %d arguments, clause binds %d", o.Op, len(o.Args), len(clause.Params))
		}
		cenv := NewEnclosedEnvironment(act.handler.Env)
		for i, p := range clause.Params {
			cenv.Set(p, o.Args[i])
		}
		cenv.Set(clause.Resume, resume)
		return ev.evalExpr(clause.Body, cenv)

	default:
		return o
	}
}

// withFinally guarantees the finally clause runs exactly once per
// activation, after the activation's overall answer exists, whether the
// computation returned, was abandoned by a clause, or faulted. The
// clause's value is discarded.
func (ev *Evaluator) withFinally(act *activation, o Outcome) Outcome {
	if s, ok := o.(*Suspend); ok {
		return &Suspend{
			Label: s.Label,
			Op:    s.Op,
			Args:  s.Args,
			K: func(v Value) Outcome {
				return ev.withFinally(act, s.K(v))
			},
		}
	}

	if act.state == actSuspended {
		act.state = actAbandoned
	}
	if act.finalized || act.handler.Finally == nil {
		act.finalized = true
		if act.state != actAbandoned {
			act.state = actDone
		}
		return o
	}
	act.finalized = true
	prior := act.state
	act.state = actFinalizing
	fo := ev.evalExpr(act.handler.Finally.Body, NewEnclosedEnvironment(act.handler.Env))
	return bind(fo, func(Value) Outcome {
		act.state = actDone
		ev.logger.Debug("activation finalized",
			zap.String("label", act.label),
			zap.String("from", prior.String()))
		return o
	})
}
