package evaluator

import "fmt"

// Outcome is the result of evaluating an expression. Evaluation either
// produces a value, raises an operation toward a handler activation, or
// faults. Suspensions carry the rest of the computation as a pure
// closure, which is what makes resumptions multi-shot: invoking the
// continuation again simply re-runs it.
type Outcome interface {
	outcome()
}

// Done carries a finished value.
type Done struct {
	Value Value
}

// Suspend is an operation in flight toward the activation named by
// Label. K resumes the suspended computation with the operation's
// result.
type Suspend struct {
	Label string
	Op    string
	Args  []Value
	K     func(Value) Outcome
}

// Fault aborts evaluation. Effect names the fault's effect atom when one
// applies (div, exn); hard faults leave it empty.
type Fault struct {
	Effect string
	Msg    string
}

func (*Done) outcome()    {}
func (*Suspend) outcome() {}
func (*Fault) outcome()   {}

func (f *Fault) Error() string {
	if f.Effect == "" {
		return f.Msg
	}
	return fmt.Sprintf("%s: %s", f.Effect, f.Msg)
}

func done(v Value) Outcome { return &Done{Value: v} }

func faultf(effect, format string, args ...interface{}) Outcome {
	return &Fault{Effect: effect, Msg: fmt.Sprintf(format, args...)}
}

// bind sequences f after o. Suspensions thread through: the composed
// continuation runs f once the operation result arrives. Faults
// short-circuit.
func bind(o Outcome, f func(Value) Outcome) Outcome {
	switch o := o.(type) {
	case *Done:
		return f(o.Value)
	case *Suspend:
		return &Suspend{
			Label: o.Label,
			Op:    o.Op,
			Args:  o.Args,
			K: func(v Value) Outcome {
				return bind(o.K(v), f)
			},
		}
	default:
		return o
	}
}
