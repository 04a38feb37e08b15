package symbols

import (
	"github.com/rowlang/rowan/internal/ast"
	"github.com/rowlang/rowan/internal/typesystem"
)

type SymbolKind int

const (
	VariableSymbol SymbolKind = iota
	CapabilitySymbol
	ConstructorSymbol
	EffectSymbol
	TypeSymbol
)

type Symbol struct {
	Name string
	Type typesystem.Type
	Kind SymbolKind
	// Total records the totality classification of a definition. It is a
	// best-effort flag consumed by the totality checker, never a blocker.
	Total bool
	// DefinitionNode is the tree node where this symbol was bound.
	DefinitionNode ast.Node
}

// SymbolTable is a lexically nested scope of resolved bindings.
type SymbolTable struct {
	store  map[string]*Symbol
	parent *SymbolTable
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{store: make(map[string]*Symbol)}
}

func NewEnclosedSymbolTable(parent *SymbolTable) *SymbolTable {
	t := NewSymbolTable()
	t.parent = parent
	return t
}

func (t *SymbolTable) Parent() *SymbolTable { return t.parent }

// Define binds a symbol in this scope, shadowing outer bindings.
func (t *SymbolTable) Define(sym *Symbol) *Symbol {
	t.store[sym.Name] = sym
	return sym
}

// DefineVar is shorthand for binding an ordinary variable.
func (t *SymbolTable) DefineVar(name string, typ typesystem.Type) *Symbol {
	return t.Define(&Symbol{Name: name, Type: typ, Kind: VariableSymbol})
}

// Resolve walks the scope chain looking for name.
func (t *SymbolTable) Resolve(name string) (*Symbol, bool) {
	for cur := t; cur != nil; cur = cur.parent {
		if sym, ok := cur.store[name]; ok {
			return sym, true
		}
	}
	return nil, false
}

// ResolveLocal looks up name in this scope only.
func (t *SymbolTable) ResolveLocal(name string) (*Symbol, bool) {
	sym, ok := t.store[name]
	return sym, ok
}

// All returns the symbols bound in this scope (not the chain).
func (t *SymbolTable) All() []*Symbol {
	out := make([]*Symbol, 0, len(t.store))
	for _, sym := range t.store {
		out = append(out, sym)
	}
	return out
}
