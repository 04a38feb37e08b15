package evaluator

// Environment is a lexically nested binding frame. Frames are never
// mutated after their binding phase, so captured continuations can replay
// against them safely.
type Environment struct {
	store map[string]Value
	outer *Environment
}

func NewEnvironment() *Environment {
	return &Environment{store: make(map[string]Value)}
}

func NewEnclosedEnvironment(outer *Environment) *Environment {
	env := NewEnvironment()
	env.outer = outer
	return env
}

func (e *Environment) Get(name string) (Value, bool) {
	for cur := e; cur != nil; cur = cur.outer {
		if v, ok := cur.store[name]; ok {
			return v, true
		}
	}
	return nil, false
}

func (e *Environment) Set(name string, v Value) Value {
	e.store[name] = v
	return v
}
