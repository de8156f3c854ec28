package yasl

import (
	"github.com/yasl-lang/yaslapi-go/errors"
	"github.com/yasl-lang/yaslapi-go/rt"
)

// PopValue materializes the top of the stack into an owned Value,
// recursively copying lists and tables. When expected kinds are given and
// the top's tag matches none of them, PopValue fails before consuming
// anything; on success the net stack effect is always exactly one pop.
func (s *stackOps) PopValue(expected ...Kind) (Value, error) {
	tag := s.rs.PeekTag(0)
	if len(expected) > 0 {
		kind := kindOfTag(tag)
		ok := false
		for _, e := range expected {
			if e == kind {
				ok = true
				break
			}
		}
		if !ok {
			return Undef(), errors.New(errors.PhaseMarshal, errors.CodeType,
				"expected %v on top of stack, found %s", expected, tag)
		}
	}
	return s.materialize(tag)
}

// PopGlobal loads a binding and materializes its value in one step.
func (s *stackOps) PopGlobal(name string, expected ...Kind) (Value, error) {
	if err := s.LoadGlobal(name); err != nil {
		return Undef(), err
	}
	return s.PopValue(expected...)
}

func (s *stackOps) materialize(tag rt.Tag) (Value, error) {
	switch tag {
	case rt.TagBool:
		return Bool(s.rs.PopBool()), nil
	case rt.TagInt:
		return Int(s.rs.PopInt()), nil
	case rt.TagFloat:
		return Float(s.rs.PopFloat()), nil
	case rt.TagStr:
		return Str(s.rs.PopStr()), nil
	case rt.TagList:
		return s.materializeList()
	case rt.TagTable:
		return s.materializeTable()
	case rt.TagUserPtr:
		return UserPtr(s.rs.PopUserPtr()), nil
	case rt.TagUserData:
		data, udTag := s.rs.PopUserData()
		return ForeignData(data, udTag), nil
	}
	// Function kinds and anything unrecognized are consumed as undef.
	s.rs.Pop()
	return Undef(), nil
}

// materializeList copies the list on top of the stack out by index. The
// duplicate feeds the length operator; elements are fetched against the
// original, which is finally popped so the whole operation nets to one.
func (s *stackOps) materializeList() (Value, error) {
	s.rs.DupTop()
	s.rs.Len()
	n := s.rs.PopInt()

	items := make([]Value, 0, n)
	for i := int64(0); i < n; i++ {
		if c := s.rs.ListGet(i); c != rt.Success {
			s.rs.Pop()
			return Undef(), codeErr(errors.PhaseMarshal, c)
		}
		elem, err := s.materialize(s.rs.PeekTag(0))
		if err != nil {
			s.rs.Pop()
			return Undef(), err
		}
		items = append(items, elem)
	}
	s.rs.Pop()
	return ListOf(items...), nil
}

// materializeTable walks the table with the undef-cursor iteration
// protocol. Each produced entry is materialized value first, then the key;
// a copy of the key stays behind as the cursor for the next step.
func (s *stackOps) materializeTable() (Value, error) {
	entries := make(map[HashableValue]Value)

	s.rs.PushUndef()
	for s.rs.TableNext() {
		val, err := s.materialize(s.rs.PeekTag(0))
		if err != nil {
			s.rs.Pop() // abandon the key cursor
			s.rs.Pop() // and the table
			return Undef(), err
		}
		s.rs.DupTop()
		keyVal, err := s.materialize(s.rs.PeekTag(0))
		if err != nil {
			s.rs.Pop()
			s.rs.Pop()
			return Undef(), err
		}
		key, ok := keyVal.Hashable()
		if !ok {
			// A well-formed table never yields an unhashable key; this
			// is a contract violation, not a user error.
			s.rs.Pop()
			s.rs.Pop()
			return Undef(), errors.Internal(errors.PhaseMarshal,
				"table iteration produced unhashable %s key", keyVal.Kind())
		}
		entries[key] = val
	}
	// TableNext consumed the cursor; only the table remains.
	s.rs.Pop()
	return TableOf(entries), nil
}

// Push writes an owned Value back onto the stack, the inverse of PopValue.
// Lists and tables are rebuilt element by element.
func (s *stackOps) Push(v Value) error {
	switch v.Kind() {
	case KindUndef:
		s.rs.PushUndef()
	case KindBool:
		s.rs.PushBool(v.Bool())
	case KindInt:
		s.rs.PushInt(v.Int())
	case KindFloat:
		s.rs.PushFloat(v.Float())
	case KindStr:
		s.rs.PushText(v.Str())
	case KindUserPtr:
		s.rs.PushUserPtr(v.Ptr())
	case KindUserData:
		data, tag := v.Foreign()
		// Re-pushing materialized foreign data transfers no ownership
		// and attaches no destructor.
		return s.PushForeignData(data, tag, nil)
	case KindList:
		s.rs.PushList()
		for _, item := range v.List() {
			if err := s.Push(item); err != nil {
				return err
			}
			if c := s.rs.ListAppend(); c != rt.Success {
				return codeErr(errors.PhaseMarshal, c)
			}
		}
	case KindTable:
		s.rs.PushTable()
		for k, val := range v.Table() {
			if err := s.Push(k.Value()); err != nil {
				return err
			}
			if err := s.Push(val); err != nil {
				return err
			}
			if c := s.rs.TableSet(); c != rt.Success {
				return codeErr(errors.PhaseMarshal, c)
			}
		}
	default:
		return errors.Internal(errors.PhaseMarshal, "push of unknown kind %d", v.Kind())
	}
	return nil
}
