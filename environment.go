package tinylang

// Environment is a stack of scopes. The global scope sits at index 0 and
// lives as long as the environment; function calls push and pop the scopes
// above it. Lookups search from the innermost scope outwards, writes always
// land in the innermost scope.
type Environment struct {
	scopes []map[string]Object
}

func NewEnvironment() *Environment {
	return &Environment{scopes: []map[string]Object{make(map[string]Object)}}
}

func (e *Environment) PushScope() {
	e.scopes = append(e.scopes, make(map[string]Object))
}

// PopScope discards the innermost scope. The global scope cannot be popped.
func (e *Environment) PopScope() error {
	if len(e.scopes) == 1 {
		return ErrGlobalScope
	}
	e.scopes[len(e.scopes)-1] = nil
	e.scopes = e.scopes[:len(e.scopes)-1]
	return nil
}

// Depth is the number of scopes on the stack, including the global one.
func (e *Environment) Depth() int {
	return len(e.scopes)
}

func (e *Environment) Get(name string) (Object, bool) {
	for i := len(e.scopes) - 1; i >= 0; i-- {
		if val, ok := e.scopes[i][name]; ok {
			return val, true
		}
	}
	return nil, false
}

// Put binds name in the innermost scope, shadowing any outer binding.
func (e *Environment) Put(name string, val Object) Object {
	e.scopes[len(e.scopes)-1][name] = val
	return val
}

// AllVariables returns a snapshot of every visible binding. When a name is
// bound in several scopes the innermost binding wins, matching Get.
func (e *Environment) AllVariables() map[string]Object {
	out := make(map[string]Object)
	for _, scope := range e.scopes {
		for k, v := range scope {
			out[k] = v
		}
	}
	return out
}
