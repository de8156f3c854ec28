package yasl

import (
	"github.com/yasl-lang/yaslapi-go/errors"
	"github.com/yasl-lang/yaslapi-go/intern"
	"github.com/yasl-lang/yaslapi-go/rt"
)

// MetatableFunction names one callable in a metatable or method namespace.
type MetatableFunction struct {
	Name    string
	Fn      Function
	NumArgs int
}

// TableSetFunctions inserts a batch of named callables into the table on
// top of the stack, which stays there. Each name is validated and interned
// before registration.
func (s *State) TableSetFunctions(fns []MetatableFunction) error {
	for _, f := range fns {
		n, err := intern.Names().Intern(f.Name)
		if err != nil {
			return err
		}
		s.rs.PushText(n.String())
		s.PushFunction(f.Fn, f.NumArgs)
		if c := s.rs.TableSet(); c != rt.Success {
			return codeErr(errors.PhaseMetatable, c)
		}
	}
	return nil
}

// RegisterMetatable pops the table on top of the stack and registers it
// under name for later attachment to foreign data.
func (s *State) RegisterMetatable(name string) error {
	n, err := intern.Names().Intern(name)
	if err != nil {
		return err
	}
	return codeErr(errors.PhaseMetatable, s.rs.RegisterMT(n))
}

// LoadMetatable pushes the metatable previously registered under name.
func (s *stackOps) LoadMetatable(name string) error {
	n, err := intern.Names().Intern(name)
	if err != nil {
		return err
	}
	c := s.rs.LoadMT(n)
	if c == rt.Error {
		return errors.Undeclared(errors.PhaseMetatable, name)
	}
	return codeErr(errors.PhaseMetatable, c)
}

// SetMetatable pops a table (or undef, to detach) and attaches it to the
// foreign-data value that is then on top.
func (s *stackOps) SetMetatable() error {
	return codeErr(errors.PhaseMetatable, s.rs.SetMT())
}
