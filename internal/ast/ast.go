package ast

import (
	"github.com/rowlang/rowan/internal/effects"
	"github.com/rowlang/rowan/internal/typesystem"
)

// The core consumes a fully elaborated tree: identifiers are resolved,
// imports flattened, and type annotations already lowered to typesystem
// values. No surface syntax survives to this point.

// Position locates a node in the original source for diagnostics.
type Position struct {
	Line   int
	Column int
}

// Node is the base interface for all tree nodes.
type Node interface {
	Pos() Position
}

// Expr is a Node that evaluates to a value.
type Expr interface {
	Node
	exprNode()
}

// Program is the root of an elaborated compilation unit.
type Program struct {
	// Effects declares user effect kinds and their operation signatures.
	// Builtin effects come from the builtins table, not from here.
	Effects []*EffectDecl
	// Datatypes declares the algebraic datatypes the program matches on.
	Datatypes []*DataDecl
	// Defs are top-level definitions in dependency order.
	Defs []*Definition
	// RootHandlers are handler installations performed once at program
	// initialization; they form long-lived activations at the bottom of
	// the handler stack.
	RootHandlers []*RootHandler
	// Main is the program body, evaluated under the root handlers.
	Main Expr
}

// EffectDecl declares an effect kind and its operations.
type EffectDecl struct {
	Name     string
	Ops      []OpSig
	Position Position
}

func (d *EffectDecl) Pos() Position { return d.Position }

// OpSig is the declared signature of one effect operation.
type OpSig struct {
	Name   string
	Params []typesystem.Type
	Result typesystem.Type
}

// DataDecl declares an algebraic datatype.
type DataDecl struct {
	Name     string
	Params   []string // type parameter names
	Ctors    []CtorDecl
	Position Position
}

func (d *DataDecl) Pos() Position { return d.Position }

// CtorDecl is one constructor of a datatype.
type CtorDecl struct {
	Name   string
	Fields []typesystem.Type
}

// Definition is a top-level binding.
type Definition struct {
	Name     string
	Annot    typesystem.Type // optional declared scheme; nil to infer
	Body     Expr
	Position Position
}

func (d *Definition) Pos() Position { return d.Position }

// RootHandler installs a handler once at program initialization.
type RootHandler struct {
	Capability string // name the capability is bound to, program-wide
	Handler    Expr
	Position   Position
}

func (r *RootHandler) Pos() Position { return r.Position }

// ParamSpec is one lambda parameter slot.
type ParamSpec struct {
	Name    string
	Mode    typesystem.ParamMode
	Annot   typesystem.Type // optional
	Default Expr            // optional parameters only
}

// Arg is one call argument, positional when Name is empty.
type Arg struct {
	Name  string
	Value Expr
}

// --- Literals ---

type IntLit struct {
	Value    int64
	Position Position
}

type BoolLit struct {
	Value    bool
	Position Position
}

type StringLit struct {
	Value    string
	Position Position
}

type UnitLit struct {
	Position Position
}

type ListLit struct {
	Elems    []Expr
	Position Position
}

// --- Core expressions ---

// Ident is a resolved identifier.
type Ident struct {
	Name     string
	Position Position
}

// Lambda is a function literal. A nil EffectAnnot means the row is
// inferred; Total marks the unannotated arrow form claiming totality.
type Lambda struct {
	Params      []ParamSpec
	Body        Expr
	ReturnAnnot typesystem.Type // optional
	EffectAnnot *effects.Row    // optional
	Total       bool
	Position    Position
}

// Call applies a function to arguments, positional and/or by name.
type Call struct {
	Fn       Expr
	Args     []Arg
	Position Position
}

// Let binds a name in a body.
type Let struct {
	Name     string
	Value    Expr
	Body     Expr
	Position Position
}

type If struct {
	Cond     Expr
	Then     Expr
	Else     Expr
	Position Position
}

// Annot checks an expression against an expected type (and optionally an
// expected row), switching inference into checking mode.
type Annot struct {
	Expr     Expr
	Type     typesystem.Type
	Row      *effects.Row
	Position Position
}

// Match performs case analysis on a datatype value.
type Match struct {
	Subject  Expr
	Datatype string
	Cases    []*Case
	Position Position
}

// Case is one arm of a Match; Binders bind constructor fields in order.
type Case struct {
	Ctor    string
	Binders []string
	Body    Expr
}

// --- Effects and handlers ---

// HandlerLit is a first-class handler value: operation clauses for one
// effect kind, plus optional return and finally clauses.
type HandlerLit struct {
	Effect   string
	Ops      []*OpClause
	Return   *ReturnClause
	Finally  *FinallyClause
	Position Position
}

// OpClause handles one operation. Resume is the name the captured
// resumption is bound to inside Body; it may be invoked zero, one or
// many times.
type OpClause struct {
	Op     string
	Params []string
	Resume string
	Body   Expr
}

// ReturnClause transforms the handled computation's normal result.
type ReturnClause struct {
	Param string
	Body  Expr
}

// FinallyClause runs exactly once per handler activation, after the
// return-clause (or fallback) result is produced. It is never part of a
// captured resumption.
type FinallyClause struct {
	Body Expr
}

// Handle installs a handler value as a fresh activation with a fresh
// label, binds the capability, and evaluates Body.
type Handle struct {
	Capability string
	Handler    Expr
	Body       Expr
	Position   Position
}

// OpCall raises an effect operation through a capability (or an explicit
// label value threaded as plain data).
type OpCall struct {
	Cap      Expr
	Op       string
	Args     []Expr
	Position Position
}

func (e *IntLit) Pos() Position     { return e.Position }
func (e *BoolLit) Pos() Position    { return e.Position }
func (e *StringLit) Pos() Position  { return e.Position }
func (e *UnitLit) Pos() Position    { return e.Position }
func (e *ListLit) Pos() Position    { return e.Position }
func (e *Ident) Pos() Position      { return e.Position }
func (e *Lambda) Pos() Position     { return e.Position }
func (e *Call) Pos() Position       { return e.Position }
func (e *Let) Pos() Position        { return e.Position }
func (e *If) Pos() Position         { return e.Position }
func (e *Annot) Pos() Position      { return e.Position }
func (e *Match) Pos() Position      { return e.Position }
func (e *HandlerLit) Pos() Position { return e.Position }
func (e *Handle) Pos() Position     { return e.Position }
func (e *OpCall) Pos() Position     { return e.Position }

func (e *IntLit) exprNode()     {}
func (e *BoolLit) exprNode()    {}
func (e *StringLit) exprNode()  {}
func (e *UnitLit) exprNode()    {}
func (e *ListLit) exprNode()    {}
func (e *Ident) exprNode()      {}
func (e *Lambda) exprNode()     {}
func (e *Call) exprNode()       {}
func (e *Let) exprNode()        {}
func (e *If) exprNode()         {}
func (e *Annot) exprNode()      {}
func (e *Match) exprNode()      {}
func (e *HandlerLit) exprNode() {}
func (e *Handle) exprNode()     {}
func (e *OpCall) exprNode()     {}
