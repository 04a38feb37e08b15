package typesystem

import (
	"errors"
	"fmt"
	"testing"

	"github.com/rowlang/rowan/internal/effects"
)

type testVarSource struct{ n int }

func (s *testVarSource) FreshEffectVar() effects.Var {
	s.n++
	return effects.Var{Name: fmt.Sprintf("r%d", s.n)}
}

var (
	intType    = TCon{Name: "Int"}
	boolType   = TCon{Name: "Bool"}
	stringType = TCon{Name: "String"}
)

func TestUnifyBasics(t *testing.T) {
	tests := []struct {
		name    string
		t1, t2  Type
		wantErr bool
	}{
		{name: "same constant", t1: intType, t2: intType},
		{name: "constant mismatch", t1: intType, t2: boolType, wantErr: true},
		{name: "var binds constant", t1: TVar{Name: "a"}, t2: intType},
		{name: "constant binds var", t1: intType, t2: TVar{Name: "a"}},
		{
			name: "application",
			t1:   TApp{Constructor: TCon{Name: "List"}, Args: []Type{TVar{Name: "a"}}},
			t2:   TApp{Constructor: TCon{Name: "List"}, Args: []Type{intType}},
		},
		{
			name:    "application arity mismatch",
			t1:      TApp{Constructor: TCon{Name: "List"}, Args: []Type{intType}},
			t2:      TApp{Constructor: TCon{Name: "List"}, Args: []Type{intType, boolType}},
			wantErr: true,
		},
		{
			name:    "occurs check",
			t1:      TVar{Name: "a"},
			t2:      TApp{Constructor: TCon{Name: "List"}, Args: []Type{TVar{Name: "a"}}},
			wantErr: true,
		},
		{
			name:    "rigid variable refuses instantiation",
			t1:      TVar{Name: "a", Rigid: true},
			t2:      intType,
			wantErr: true,
		},
		{
			name: "rigid variable binds flexible twin",
			t1:   TVar{Name: "a", Rigid: true},
			t2:   TVar{Name: "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Unify(tt.t1, tt.t2, &testVarSource{})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unify(%s, %s) error = %v, wantErr %v", tt.t1, tt.t2, err, tt.wantErr)
			}
			if err == nil {
				got1 := tt.t1.Apply(s)
				got2 := tt.t2.Apply(s)
				if got1.String() != got2.String() {
					t.Errorf("substitution does not equate types: %s vs %s", got1, got2)
				}
			}
		})
	}
}

func TestUnifyFailureYieldsZeroSubst(t *testing.T) {
	s, err := Unify(intType, boolType, &testVarSource{})
	if err == nil {
		t.Fatal("expected constant mismatch error")
	}
	if !s.IsEmpty() {
		t.Errorf("failed unification returned bindings: %+v", s)
	}
	// The zero substitution must still be applicable.
	if got := intType.Apply(s); got.String() != "Int" {
		t.Errorf("Apply on zero subst = %s, want Int", got)
	}
}

func TestUnifyArrowRows(t *testing.T) {
	// (Int) ->[io,e] Bool ~ (Int) ->[io,exn] Bool binds e to [exn].
	f1 := TFunc{
		Params:  []Param{{Type: intType}},
		Return:  boolType,
		Effects: effects.Open([]string{"io"}, effects.Var{Name: "e"}),
	}
	f2 := TFunc{
		Params:  []Param{{Type: intType}},
		Return:  boolType,
		Effects: effects.New("io", "exn"),
	}

	s, err := Unify(f1, f2, &testVarSource{})
	if err != nil {
		t.Fatalf("Unify failed: %v", err)
	}
	bound, ok := s.Effects["e"]
	if !ok {
		t.Fatal("no binding for effect variable e")
	}
	if !effects.Equal(bound, effects.New("exn")) {
		t.Errorf("e bound to %s, want [exn]", bound)
	}
}

func TestUnifyArrowRowMismatch(t *testing.T) {
	f1 := TFunc{Params: []Param{{Type: intType}}, Return: boolType, Effects: effects.New("io")}
	f2 := TFunc{Params: []Param{{Type: intType}}, Return: boolType, Effects: effects.New("exn")}

	_, err := Unify(f1, f2, &testVarSource{})
	if err == nil {
		t.Fatal("expected row mismatch error")
	}
	var rme *effects.RowMismatchError
	if !errors.As(err, &rme) {
		t.Fatalf("error does not wrap *effects.RowMismatchError: %v", err)
	}
}

func TestUnifyNamedParams(t *testing.T) {
	// Named parameters match by name regardless of order.
	f1 := TFunc{
		Params: []Param{
			{Name: "x", Mode: NamedParam, Type: intType},
			{Name: "y", Mode: NamedParam, Type: boolType},
		},
		Return: stringType,
	}
	f2 := TFunc{
		Params: []Param{
			{Name: "y", Mode: NamedParam, Type: boolType},
			{Name: "x", Mode: NamedParam, Type: TVar{Name: "a"}},
		},
		Return: stringType,
	}

	s, err := Unify(f1, f2, &testVarSource{})
	if err != nil {
		t.Fatalf("Unify failed: %v", err)
	}
	if got := (TVar{Name: "a"}).Apply(s); got.String() != "Int" {
		t.Errorf("a resolved to %s, want Int", got)
	}
}

func TestUnifyOptionalParamDefers(t *testing.T) {
	// An unmatched optional parameter imposes no constraint.
	f1 := TFunc{
		Params: []Param{
			{Name: "x", Mode: NamedParam, Type: intType},
			{Name: "verbose", Mode: OptionalParam, Type: boolType},
		},
		Return: stringType,
	}
	f2 := TFunc{
		Params: []Param{{Name: "x", Mode: NamedParam, Type: intType}},
		Return: stringType,
	}

	if _, err := Unify(f1, f2, &testVarSource{}); err != nil {
		t.Fatalf("optional parameter should defer, got error: %v", err)
	}

	// A missing required named parameter is still an error.
	f3 := TFunc{
		Params: []Param{
			{Name: "x", Mode: NamedParam, Type: intType},
			{Name: "y", Mode: NamedParam, Type: boolType},
		},
		Return: stringType,
	}
	if _, err := Unify(f3, f2, &testVarSource{}); err == nil {
		t.Fatal("expected error for missing required parameter")
	}
}

func TestUnifySchemesAlphaEquivalence(t *testing.T) {
	// forall a e. (a) ->[e] a  ~  forall b f. (b) ->[f] b
	s1 := TForall{
		TypeVars:   []TVar{{Name: "a"}},
		EffectVars: []effects.Var{{Name: "e"}},
		Type: TFunc{
			Params:  []Param{{Type: TVar{Name: "a"}}},
			Return:  TVar{Name: "a"},
			Effects: effects.Single(effects.Var{Name: "e"}),
		},
	}
	s2 := TForall{
		TypeVars:   []TVar{{Name: "b"}},
		EffectVars: []effects.Var{{Name: "f"}},
		Type: TFunc{
			Params:  []Param{{Type: TVar{Name: "b"}}},
			Return:  TVar{Name: "b"},
			Effects: effects.Single(effects.Var{Name: "f"}),
		},
	}

	if _, err := Unify(s1, s2, &testVarSource{}); err != nil {
		t.Fatalf("alpha-equivalent schemes should unify: %v", err)
	}

	// forall a. (a) -> a is not the same scheme as forall a. (a) -> Int.
	s3 := TForall{
		TypeVars: []TVar{{Name: "a"}},
		Type:     TFunc{Params: []Param{{Type: TVar{Name: "a"}}}, Return: intType},
	}
	s4 := TForall{
		TypeVars: []TVar{{Name: "a"}},
		Type:     TFunc{Params: []Param{{Type: TVar{Name: "a"}}}, Return: TVar{Name: "a"}},
	}
	if _, err := Unify(s3, s4, &testVarSource{}); err == nil {
		t.Fatal("non-equivalent schemes must not unify")
	}
}
