package yasl

import (
	"github.com/yasl-lang/yaslapi-go/rt"
)

// Function is a host-defined callable the interpreter can invoke. Its
// declared arguments arrive on the stack in call order, the left-most
// directly above the function slot and the right-most on top. It must
// leave exactly as many values on the stack as it returns.
type Function func(*Ref) int

// VariadicArgs declares a Function as variadic at registration time.
const VariadicArgs = rt.VariadicArgs

// Ref is a non-owning view of an interpreter instance, constructed fresh
// for each foreign-function invocation. It exposes the full stack protocol
// but cannot close or reset the instance, so re-entrant callbacks cannot
// release a resource the owning State still holds.
type Ref struct {
	stackOps
}

// PushFunction registers fn with the runtime under the declared arity and
// pushes the resulting callable. numArgs is the fixed argument count, or
// VariadicArgs.
func (s *State) PushFunction(fn Function, numArgs int) {
	declared := s.declared
	s.rs.PushHostFn(func(inner rt.State) int {
		return fn(&Ref{stackOps{rs: inner, declared: declared}})
	}, numArgs)
}
