package yasl

import (
	goerrors "errors"
	"testing"

	"github.com/yasl-lang/yaslapi-go/errors"
	"github.com/yasl-lang/yaslapi-go/rt"
	"github.com/yasl-lang/yaslapi-go/rt/rttest"
)

// depth reaches through to the reference runtime's stack depth probe.
func depth(s *State) int {
	return s.rs.(*rttest.State).Depth()
}

func TestPushProbePopScalars(t *testing.T) {
	_, s := testState(t, "")
	defer s.Close()

	s.PushInt(42)
	if !s.IsInt() || s.IsStr() {
		t.Error("probes disagree with pushed int")
	}
	if s.PeekInt() != 42 {
		t.Errorf("PeekInt = %d, want 42", s.PeekInt())
	}
	if got := s.PopInt(); got != 42 {
		t.Errorf("PopInt = %d, want 42", got)
	}

	s.PushBool(true)
	if !s.PopBool() {
		t.Error("PopBool = false, want true")
	}

	s.PushFloat(2.5)
	if got := s.PopFloat(); got != 2.5 {
		t.Errorf("PopFloat = %v, want 2.5", got)
	}

	s.PushText("hello")
	if got := s.PopStr(); got != "hello" {
		t.Errorf("PopStr = %q, want %q", got, "hello")
	}

	if depth(s) != 0 {
		t.Errorf("stack depth = %d, want 0", depth(s))
	}
}

func TestPermissivePopShrinksStack(t *testing.T) {
	_, s := testState(t, "")
	defer s.Close()

	s.PushText("not an int")
	if got := s.PopInt(); got != 0 {
		t.Errorf("PopInt on a string = %d, want 0", got)
	}
	if depth(s) != 0 {
		t.Errorf("mismatched pop left depth %d, want 0", depth(s))
	}

	// Peeks do not consume even on mismatch.
	s.PushBool(true)
	if s.PeekInt() != 0 {
		t.Error("PeekInt on a bool != 0")
	}
	if depth(s) != 1 {
		t.Errorf("peek consumed the stack: depth %d, want 1", depth(s))
	}
	s.Pop()
}

func TestPushZTextTruncatesAtNUL(t *testing.T) {
	_, s := testState(t, "")
	defer s.Close()

	s.PushZText("abc\x00def")
	if got := s.PopStr(); got != "abc" {
		t.Errorf("PushZText kept %q, want %q", got, "abc")
	}

	s.PushText("abc\x00def")
	if got := s.PopStr(); got != "abc\x00def" {
		t.Errorf("PushText truncated to %q", got)
	}
}

func TestDupTopAndDrop(t *testing.T) {
	_, s := testState(t, "")
	defer s.Close()

	s.PushInt(9)
	s.DupTop()
	if depth(s) != 2 {
		t.Fatalf("depth after dup = %d, want 2", depth(s))
	}
	if s.PopInt() != 9 || s.PopInt() != 9 {
		t.Error("duplicated top does not match original")
	}

	s.PushInt(1)
	s.Pop()
	if depth(s) != 0 {
		t.Errorf("depth after drop = %d, want 0", depth(s))
	}
}

func TestLenOperator(t *testing.T) {
	_, s := testState(t, "")
	defer s.Close()

	s.PushText("four")
	s.Len()
	if got := s.PopInt(); got != 4 {
		t.Errorf("len of string = %d, want 4", got)
	}

	if err := s.Push(ListOf(Int(1), Int(2), Int(3))); err != nil {
		t.Fatalf("push list: %v", err)
	}
	s.Len()
	if got := s.PopInt(); got != 3 {
		t.Errorf("len of list = %d, want 3", got)
	}
}

func TestListAccessors(t *testing.T) {
	_, s := testState(t, "")
	defer s.Close()

	s.PushList()
	s.PushInt(10)
	if err := s.ListAppend(); err != nil {
		t.Fatalf("append: %v", err)
	}
	s.PushInt(20)
	if err := s.ListAppend(); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := s.ListGet(-1); err != nil {
		t.Fatalf("listget -1: %v", err)
	}
	if got := s.PopInt(); got != 20 {
		t.Errorf("list[-1] = %d, want 20", got)
	}

	if err := s.ListGet(5); !goerrors.Is(err, errors.ErrValue) {
		t.Errorf("out-of-range index = %v, want value error", err)
	}

	s.Pop() // the list

	s.PushInt(1)
	if err := s.ListGet(0); !goerrors.Is(err, errors.ErrType) {
		t.Errorf("listget on an int = %v, want type error", err)
	}
	s.Pop()
}

func TestTableAccessors(t *testing.T) {
	_, s := testState(t, "")
	defer s.Close()

	s.PushTable()
	s.PushText("k")
	s.PushInt(7)
	if err := s.TableSet(); err != nil {
		t.Fatalf("tableset: %v", err)
	}
	if !s.IsTable() {
		t.Error("table not left on top after insert")
	}

	// Unhashable keys are rejected.
	s.PushList()
	s.PushInt(0)
	if err := s.TableSet(); !goerrors.Is(err, errors.ErrType) {
		t.Errorf("tableset with list key = %v, want type error", err)
	}
	s.Pop() // the table
}

func TestGlobalsUndeclaredVsMalformed(t *testing.T) {
	_, s := testState(t, "")
	defer s.Close()

	if err := s.LoadGlobal("ghost"); !goerrors.Is(err, errors.ErrUndeclared) {
		t.Errorf("load of unknown binding = %v, want undeclared", err)
	}
	if err := s.LoadGlobal("not valid"); !goerrors.Is(err, errors.ErrBadIdentifier) {
		t.Errorf("load of malformed name = %v, want bad identifier", err)
	}

	s.PushInt(1)
	if err := s.SetGlobal("ghost"); !goerrors.Is(err, errors.ErrUndeclared) {
		t.Errorf("store to unknown binding = %v, want undeclared", err)
	}
}

func TestDeclareGlobalConsumesTop(t *testing.T) {
	_, s := testState(t, "")
	defer s.Close()

	s.PushInt(5)
	if err := s.DeclareGlobal("consumed"); err != nil {
		t.Fatalf("declare: %v", err)
	}
	if depth(s) != 0 {
		t.Errorf("declare left depth %d, want 0", depth(s))
	}

	if err := s.LoadGlobal("consumed"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := s.PopInt(); got != 5 {
		t.Errorf("declared value = %d, want 5", got)
	}
}

func TestForeignDataProbes(t *testing.T) {
	_, s := testState(t, "")
	defer s.Close()

	payload := &struct{ n int }{n: 1}
	if err := s.PushForeignData(payload, "Counter", nil); err != nil {
		t.Fatalf("push foreign data: %v", err)
	}

	if !s.IsForeignData("Counter") {
		t.Error("tagged probe missed matching foreign data")
	}
	if s.IsForeignData("Other") {
		t.Error("tagged probe matched a different tag")
	}
	if !s.IsForeignData("") {
		t.Error("untagged probe missed foreign data")
	}
	if s.PeekType() != rt.TagUserData {
		t.Errorf("PeekType = %v, want %v", s.PeekType(), rt.TagUserData)
	}

	data, tag := s.PopForeignData()
	if data != payload || tag != "Counter" {
		t.Errorf("PopForeignData = (%v, %q), want original payload and tag", data, tag)
	}
}

func TestPeekTypeAt(t *testing.T) {
	_, s := testState(t, "")
	defer s.Close()

	s.PushInt(1)
	s.PushText("top")
	if s.PeekTypeAt(0) != rt.TagStr || s.PeekTypeAt(1) != rt.TagInt {
		t.Errorf("PeekTypeAt = (%v, %v), want (str, int)",
			s.PeekTypeAt(0), s.PeekTypeAt(1))
	}
	if !s.IsStrAt(0) || !s.IsIntAt(1) {
		t.Error("offset probes disagree with stack contents")
	}
	s.Pop()
	s.Pop()
}
