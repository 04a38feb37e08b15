package evaluator

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/rowlang/rowan/internal/ast"
)

// Kind discriminates runtime values.
type Kind string

const (
	IntKind        Kind = "Int"
	BoolKind       Kind = "Bool"
	StringKind     Kind = "String"
	UnitKind       Kind = "Unit"
	ListKind       Kind = "List"
	ClosureKind    Kind = "Closure"
	BuiltinKind    Kind = "Builtin"
	CtorKind       Kind = "Ctor"
	HandlerKind    Kind = "Handler"
	CapabilityKind Kind = "Capability"
	ResumeKind     Kind = "Resume"
)

// Value is a runtime value.
type Value interface {
	Kind() Kind
	Inspect() string
}

type Integer struct {
	Value int64
}

func (v *Integer) Kind() Kind      { return IntKind }
func (v *Integer) Inspect() string { return fmt.Sprintf("%d", v.Value) }

type Boolean struct {
	Value bool
}

func (v *Boolean) Kind() Kind      { return BoolKind }
func (v *Boolean) Inspect() string { return fmt.Sprintf("%t", v.Value) }

// Shared singletons for the values with no interesting identity.
var (
	True  = &Boolean{Value: true}
	False = &Boolean{Value: false}
	Unit  = &UnitValue{}
)

func boolValue(b bool) *Boolean {
	if b {
		return True
	}
	return False
}

type String struct {
	Value string
}

func (v *String) Kind() Kind      { return StringKind }
func (v *String) Inspect() string { return v.Value }

type UnitValue struct{}

func (v *UnitValue) Kind() Kind      { return UnitKind }
func (v *UnitValue) Inspect() string { return "()" }

type List struct {
	Elems []Value
}

func (v *List) Kind() Kind { return ListKind }
func (v *List) Inspect() string {
	parts := make([]string, len(v.Elems))
	for i, e := range v.Elems {
		parts[i] = e.Inspect()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Closure is a function value together with its defining environment.
type Closure struct {
	Params []ast.ParamSpec
	Body   ast.Expr
	Env    *Environment
}

func (v *Closure) Kind() Kind      { return ClosureKind }
func (v *Closure) Inspect() string { return "<closure>" }

// BuiltinFn is the signature of native primitives. Faults surface as
// Fault outcomes, never panics.
type BuiltinFn func(ev *Evaluator, args []Value) Outcome

type Builtin struct {
	Name string
	Fn   BuiltinFn
}

func (v *Builtin) Kind() Kind      { return BuiltinKind }
func (v *Builtin) Inspect() string { return "<builtin " + v.Name + ">" }

// Ctor is an instance of a datatype constructor.
type Ctor struct {
	Name   string
	Fields []Value
}

func (v *Ctor) Kind() Kind { return CtorKind }
func (v *Ctor) Inspect() string {
	if len(v.Fields) == 0 {
		return v.Name
	}
	parts := make([]string, len(v.Fields))
	for i, f := range v.Fields {
		parts[i] = f.Inspect()
	}
	return v.Name + "(" + strings.Join(parts, ", ") + ")"
}

// Capability identifies one handler activation. It is plain data: it can
// be stored, passed and returned, and an operation raised through it
// targets exactly the activation whose label it carries.
type Capability struct {
	Effect string
	Label  string
}

func (v *Capability) Kind() Kind      { return CapabilityKind }
func (v *Capability) Inspect() string { return "<cap " + v.Effect + ">" }

// Resume is a captured resumption bound inside an operation clause. It
// may be invoked any number of times; each invocation replays the rest
// of the handled computation.
type Resume struct {
	fn func(Value) Outcome
}

func (v *Resume) Kind() Kind      { return ResumeKind }
func (v *Resume) Inspect() string { return "<resume>" }

// hashValue produces a 64-bit digest of a first-order value, used as a
// cheap inequality witness before structural comparison. The second
// result is false for values with no meaningful hash.
func hashValue(v Value) (uint64, bool) {
	d := xxhash.New()
	if !writeHash(d, v) {
		return 0, false
	}
	return d.Sum64(), true
}

func writeHash(d *xxhash.Digest, v Value) bool {
	switch v := v.(type) {
	case *Integer:
		fmt.Fprintf(d, "i%d;", v.Value)
	case *Boolean:
		fmt.Fprintf(d, "b%t;", v.Value)
	case *String:
		fmt.Fprintf(d, "s%d:%s;", len(v.Value), v.Value)
	case *UnitValue:
		d.WriteString("u;")
	case *List:
		fmt.Fprintf(d, "l%d:", len(v.Elems))
		for _, e := range v.Elems {
			if !writeHash(d, e) {
				return false
			}
		}
	case *Ctor:
		fmt.Fprintf(d, "c%s/%d:", v.Name, len(v.Fields))
		for _, f := range v.Fields {
			if !writeHash(d, f) {
				return false
			}
		}
	default:
		return false
	}
	return true
}

// valuesEqual is structural equality over first-order values. Functions,
// handlers and resumptions have no equality.
func valuesEqual(a, b Value) bool {
	if ha, ok := hashValue(a); ok {
		if hb, ok := hashValue(b); ok && ha != hb {
			return false
		}
	}
	switch a := a.(type) {
	case *Integer:
		b, ok := b.(*Integer)
		return ok && a.Value == b.Value
	case *Boolean:
		b, ok := b.(*Boolean)
		return ok && a.Value == b.Value
	case *String:
		b, ok := b.(*String)
		return ok && a.Value == b.Value
	case *UnitValue:
		_, ok := b.(*UnitValue)
		return ok
	case *List:
		b, ok := b.(*List)
		if !ok || len(a.Elems) != len(b.Elems) {
			return false
		}
		for i := range a.Elems {
			if !valuesEqual(a.Elems[i], b.Elems[i]) {
				return false
			}
		}
		return true
	case *Ctor:
		b, ok := b.(*Ctor)
		if !ok || a.Name != b.Name || len(a.Fields) != len(b.Fields) {
			return false
		}
		for i := range a.Fields {
			if !valuesEqual(a.Fields[i], b.Fields[i]) {
				return false
			}
		}
		return true
	case *Capability:
		b, ok := b.(*Capability)
		return ok && a.Label == b.Label
	}
	return false
}
