package yasl

import (
	"github.com/yasl-lang/yaslapi-go/errors"
	"github.com/yasl-lang/yaslapi-go/intern"
	"github.com/yasl-lang/yaslapi-go/rt"
)

// stackOps is the stack protocol against one interpreter instance. State
// embeds it with ownership of the instance; Ref embeds it as a non-owning
// view handed to foreign functions. The declared set is shared between an
// owning State and every Ref derived from it.
type stackOps struct {
	rs       rt.State
	declared map[string]bool
}

// Pushes. Each grows the stack by exactly one and always succeeds.

func (s *stackOps) PushUndef()          { s.rs.PushUndef() }
func (s *stackOps) PushBool(b bool)     { s.rs.PushBool(b) }
func (s *stackOps) PushInt(i int64)     { s.rs.PushInt(i) }
func (s *stackOps) PushFloat(f float64) { s.rs.PushFloat(f) }
func (s *stackOps) PushText(t string)   { s.rs.PushText(t) }
func (s *stackOps) PushBytes(b []byte)  { s.rs.PushText(string(b)) }
func (s *stackOps) PushList()           { s.rs.PushList() }
func (s *stackOps) PushTable()          { s.rs.PushTable() }

// PushZText pushes t up to its first NUL byte, mirroring the
// null-terminated push in the C API.
func (s *stackOps) PushZText(t string) { s.rs.PushZText(t) }

func (s *stackOps) PushUserPtr(addr uint64) { s.rs.PushUserPtr(addr) }

// PushForeignData transfers an opaque host value to the runtime. From this
// call on the runtime owns the value; dtor runs exactly once when the
// value becomes unreachable or the state is closed. An empty tag pushes
// untagged foreign data.
func (s *stackOps) PushForeignData(data any, tag string, dtor func(any)) error {
	var name *intern.Name
	if tag != "" {
		n, err := intern.Names().Intern(tag)
		if err != nil {
			return err
		}
		name = n
	}
	s.rs.PushUserData(data, name, dtor)
	return nil
}

// Type probes, non-consuming.

// PeekType returns the tag of the value on top of the stack.
func (s *stackOps) PeekType() rt.Tag { return s.rs.PeekTag(0) }

// PeekTypeAt returns the tag at offset from the top, 0 being the top.
func (s *stackOps) PeekTypeAt(offset int) rt.Tag { return s.rs.PeekTag(offset) }

func (s *stackOps) IsUndef() bool   { return s.rs.IsUndef() }
func (s *stackOps) IsBool() bool    { return s.rs.IsBool() }
func (s *stackOps) IsInt() bool     { return s.rs.IsInt() }
func (s *stackOps) IsFloat() bool   { return s.rs.IsFloat() }
func (s *stackOps) IsStr() bool     { return s.rs.IsStr() }
func (s *stackOps) IsList() bool    { return s.rs.IsList() }
func (s *stackOps) IsTable() bool   { return s.rs.IsTable() }
func (s *stackOps) IsUserPtr() bool { return s.rs.IsUserPtr() }

func (s *stackOps) IsUndefAt(offset int) bool   { return s.rs.PeekTag(offset) == rt.TagUndef }
func (s *stackOps) IsBoolAt(offset int) bool    { return s.rs.PeekTag(offset) == rt.TagBool }
func (s *stackOps) IsIntAt(offset int) bool     { return s.rs.PeekTag(offset) == rt.TagInt }
func (s *stackOps) IsFloatAt(offset int) bool   { return s.rs.PeekTag(offset) == rt.TagFloat }
func (s *stackOps) IsStrAt(offset int) bool     { return s.rs.PeekTag(offset) == rt.TagStr }
func (s *stackOps) IsListAt(offset int) bool    { return s.rs.PeekTag(offset) == rt.TagList }
func (s *stackOps) IsTableAt(offset int) bool   { return s.rs.PeekTag(offset) == rt.TagTable }
func (s *stackOps) IsUserPtrAt(offset int) bool { return s.rs.PeekTag(offset) == rt.TagUserPtr }

// IsForeignData reports whether the top holds foreign data carrying the
// given tag; an empty tag matches any foreign data.
func (s *stackOps) IsForeignData(tag string) bool {
	return s.IsForeignDataAt(tag, 0)
}

func (s *stackOps) IsForeignDataAt(tag string, offset int) bool {
	if tag == "" {
		return s.rs.IsNUserData(nil, offset)
	}
	n, err := intern.Names().Intern(tag)
	if err != nil {
		return false
	}
	return s.rs.IsNUserData(n, offset)
}

// Peeks and pops. On a type mismatch these return the zero value rather
// than an error, and a pop still shrinks the stack by one. This permissive
// contract is part of the public API; callers type-check first with the
// probes above.

func (s *stackOps) PeekBool() bool     { return s.rs.PeekBool() }
func (s *stackOps) PeekInt() int64     { return s.rs.PeekInt() }
func (s *stackOps) PeekFloat() float64 { return s.rs.PeekFloat() }
func (s *stackOps) PeekStr() string    { return s.rs.PeekStr() }

func (s *stackOps) PopBool() bool     { return s.rs.PopBool() }
func (s *stackOps) PopInt() int64     { return s.rs.PopInt() }
func (s *stackOps) PopFloat() float64 { return s.rs.PopFloat() }
func (s *stackOps) PopStr() string    { return s.rs.PopStr() }

func (s *stackOps) PopUserPtr() uint64 { return s.rs.PopUserPtr() }

// PopForeignData pops the top and returns its opaque payload and tag, or
// zero values if the top was not foreign data.
func (s *stackOps) PopForeignData() (any, string) { return s.rs.PopUserData() }

// Pop removes the top of the stack without interpreting it.
func (s *stackOps) Pop() { s.rs.Pop() }

// DupTop pushes a copy of the current top.
func (s *stackOps) DupTop() { s.rs.DupTop() }

// Len replaces the top of the stack with its length.
func (s *stackOps) Len() { s.rs.Len() }

// Composite accessors.

// ListGet pushes element idx of the list on top; negative indices count
// from the end. The list stays where it was.
func (s *stackOps) ListGet(idx int64) error {
	return codeErr(errors.PhaseStack, s.rs.ListGet(idx))
}

// ListAppend pops a value and appends it to the list that is then on top.
func (s *stackOps) ListAppend() error {
	return codeErr(errors.PhaseStack, s.rs.ListAppend())
}

// TableNext advances table iteration. With a key on top and the table
// below it, it pops the key and, when entries remain, pushes the next key
// then its value, reporting whether it did. Push undef first to request
// the first entry.
func (s *stackOps) TableNext() bool {
	return s.rs.TableNext()
}

// TableSet pops a value then a key and inserts the pair into the table
// that is then on top. The table stays on the stack.
func (s *stackOps) TableSet() error {
	return codeErr(errors.PhaseStack, s.rs.TableSet())
}

// Global scope.

// DeclareGlobal creates a binding under name initialized from the top of
// the stack, consuming it. Declaring a name twice on the same instance is
// an explicit error, never a silent overwrite.
func (s *stackOps) DeclareGlobal(name string) error {
	n, err := intern.Names().Intern(name)
	if err != nil {
		return err
	}
	if s.declared[name] {
		return errors.AlreadyDeclared(name)
	}
	if c := s.rs.DeclGlobal(n); c != rt.Success {
		return codeErr(errors.PhaseGlobal, c)
	}
	if c := s.rs.SetGlobal(n); c != rt.Success {
		return codeErr(errors.PhaseGlobal, c)
	}
	s.declared[name] = true
	return nil
}

// InitGlobal declares name bound to v, combining Push and DeclareGlobal.
func (s *stackOps) InitGlobal(name string, v Value) error {
	if err := s.Push(v); err != nil {
		return err
	}
	if err := s.DeclareGlobal(name); err != nil {
		// Keep the net stack effect zero on failure.
		s.rs.Pop()
		return err
	}
	return nil
}

// LoadGlobal pushes the current value of an existing binding.
func (s *stackOps) LoadGlobal(name string) error {
	n, err := intern.Names().Intern(name)
	if err != nil {
		return err
	}
	c := s.rs.LoadGlobal(n)
	if c == rt.Error {
		return errors.Undeclared(errors.PhaseGlobal, name)
	}
	return codeErr(errors.PhaseGlobal, c)
}

// SetGlobal pops the top of the stack into an existing binding.
func (s *stackOps) SetGlobal(name string) error {
	n, err := intern.Names().Intern(name)
	if err != nil {
		return err
	}
	c := s.rs.SetGlobal(n)
	if c == rt.Error {
		return errors.Undeclared(errors.PhaseGlobal, name)
	}
	return codeErr(errors.PhaseGlobal, c)
}
