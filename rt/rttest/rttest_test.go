package rttest

import (
	"bytes"
	"testing"

	"github.com/yasl-lang/yaslapi-go/intern"
	"github.com/yasl-lang/yaslapi-go/rt"
)

func newState(t *testing.T, src string) (*Engine, *State) {
	t.Helper()
	e := New()
	st, err := e.NewState(src)
	if err != nil {
		t.Fatalf("new state: %v", err)
	}
	return e, st.(*State)
}

func name(t *testing.T, text string) *intern.Name {
	t.Helper()
	n, err := intern.Names().Intern(text)
	if err != nil {
		t.Fatalf("intern %q: %v", text, err)
	}
	return n
}

func TestCompileSyntaxError(t *testing.T) {
	_, s := newState(t, "x = = 1;")
	defer s.Delete()

	if c := s.Compile(); c != rt.SyntaxError {
		t.Errorf("Compile = %v, want %v", c, rt.SyntaxError)
	}
	if c := s.Execute(); c != rt.SyntaxError {
		t.Errorf("Execute = %v, want %v", c, rt.SyntaxError)
	}
}

func TestDivideByZero(t *testing.T) {
	_, s := newState(t, "echo 1 / 0;")
	defer s.Delete()

	if c := s.Execute(); c != rt.DivideByZeroError {
		t.Errorf("Execute = %v, want %v", c, rt.DivideByZeroError)
	}
}

func TestAssert(t *testing.T) {
	_, s := newState(t, "assert true;")
	defer s.Delete()
	if c := s.Execute(); c != rt.Success {
		t.Fatalf("assert true: %v", c)
	}

	if c := s.Reset("assert false;"); c != rt.Success {
		t.Fatalf("reset: %v", c)
	}
	if c := s.Execute(); c != rt.AssertError {
		t.Errorf("assert false = %v, want %v", c, rt.AssertError)
	}
}

func TestTypeErrorOnMixedOperands(t *testing.T) {
	_, s := newState(t, `echo 1 + "a";`)
	defer s.Delete()

	if c := s.Execute(); c != rt.TypeError {
		t.Errorf("Execute = %v, want %v", c, rt.TypeError)
	}
}

func TestUndeclaredIdentifierIsSyntaxError(t *testing.T) {
	_, s := newState(t, "echo nope;")
	defer s.Delete()

	if c := s.Execute(); c != rt.SyntaxError {
		t.Errorf("Execute = %v, want %v", c, rt.SyntaxError)
	}
}

func TestEchoOutput(t *testing.T) {
	e, s := newState(t, "echo 1 + 2;")
	defer s.Delete()

	var out bytes.Buffer
	e.SetOutput(&out)

	if c := s.Execute(); c != rt.Success {
		t.Fatalf("execute: %v", c)
	}
	if out.String() != "3\n" {
		t.Errorf("echo output = %q, want %q", out.String(), "3\n")
	}
}

func TestTrailingExpressionOnlyUnderREPL(t *testing.T) {
	e, s := newState(t, "40 + 2")
	defer s.Delete()

	var out bytes.Buffer
	e.SetOutput(&out)

	if c := s.Execute(); c != rt.Success {
		t.Fatalf("execute: %v", c)
	}
	if out.Len() != 0 {
		t.Errorf("Execute printed %q, want nothing", out.String())
	}

	if c := s.Reset("40 + 2"); c != rt.Success {
		t.Fatalf("reset: %v", c)
	}
	if c := s.ExecuteREPL(); c != rt.Success {
		t.Fatalf("execute repl: %v", c)
	}
	if out.String() != "42\n" {
		t.Errorf("REPL output = %q, want %q", out.String(), "42\n")
	}
}

func TestResetKeepsGlobals(t *testing.T) {
	_, s := newState(t, "")
	defer s.Delete()

	n := name(t, "keepMe")
	if c := s.DeclGlobal(n); c != rt.Success {
		t.Fatalf("declglobal: %v", c)
	}
	s.PushInt(7)
	if c := s.SetGlobal(n); c != rt.Success {
		t.Fatalf("setglobal: %v", c)
	}

	if c := s.Reset("echo 1;"); c != rt.Success {
		t.Fatalf("reset: %v", c)
	}
	if c := s.LoadGlobal(n); c != rt.Success {
		t.Fatalf("loadglobal after reset: %v", c)
	}
	if got := s.PopInt(); got != 7 {
		t.Errorf("global after reset = %d, want 7", got)
	}
}

func TestDeleteRunsDestructorsOnce(t *testing.T) {
	_, s := newState(t, "")

	calls := 0
	s.PushUserData("payload", name(t, "blob"), func(any) { calls++ })
	s.Pop()

	if c := s.Reset(""); c != rt.Success {
		t.Fatalf("reset: %v", c)
	}
	if calls != 0 {
		t.Fatalf("destructor ran on reset: %d calls", calls)
	}

	if c := s.Delete(); c != rt.Success {
		t.Fatalf("delete: %v", c)
	}
	if calls != 1 {
		t.Errorf("destructor calls after delete = %d, want 1", calls)
	}

	if c := s.Delete(); c != rt.Error {
		t.Errorf("second delete = %v, want %v", c, rt.Error)
	}
	if calls != 1 {
		t.Errorf("destructor calls after double delete = %d, want 1", calls)
	}
}

func TestHostCallStackOrder(t *testing.T) {
	e, s := newState(t, "")
	defer s.Delete()

	var out bytes.Buffer
	e.SetOutput(&out)

	var gotRight, gotLeft int64
	add := func(st rt.State) int {
		gotRight = st.PopInt() // right-most argument is on top
		gotLeft = st.PopInt()
		st.PushInt(gotLeft + gotRight)
		return 1
	}

	n := name(t, "add")
	if c := s.DeclGlobal(n); c != rt.Success {
		t.Fatalf("declglobal: %v", c)
	}
	s.PushHostFn(add, 2)
	if c := s.SetGlobal(n); c != rt.Success {
		t.Fatalf("setglobal: %v", c)
	}

	if c := s.Reset("add(1, 2)"); c != rt.Success {
		t.Fatalf("reset: %v", c)
	}
	if c := s.ExecuteREPL(); c != rt.Success {
		t.Fatalf("execute: %v", c)
	}
	if gotLeft != 1 || gotRight != 2 {
		t.Errorf("argument order: left=%d right=%d, want 1 and 2", gotLeft, gotRight)
	}
	if out.String() != "3\n" {
		t.Errorf("call result = %q, want %q", out.String(), "3\n")
	}
	if s.Depth() != 0 {
		t.Errorf("stack depth after call = %d, want 0", s.Depth())
	}
}

func TestHostCallArityMismatch(t *testing.T) {
	_, s := newState(t, "")
	defer s.Delete()

	n := name(t, "two")
	if c := s.DeclGlobal(n); c != rt.Success {
		t.Fatalf("declglobal: %v", c)
	}
	s.PushHostFn(func(rt.State) int { return 0 }, 2)
	if c := s.SetGlobal(n); c != rt.Success {
		t.Fatalf("setglobal: %v", c)
	}

	if c := s.Reset("two(1);"); c != rt.Success {
		t.Fatalf("reset: %v", c)
	}
	if c := s.Execute(); c != rt.TypeError {
		t.Errorf("arity mismatch = %v, want %v", c, rt.TypeError)
	}
}

func TestCompoundAssignment(t *testing.T) {
	_, s := newState(t, "x += 1;")
	defer s.Delete()

	n := name(t, "x")
	if c := s.DeclGlobal(n); c != rt.Success {
		t.Fatalf("declglobal: %v", c)
	}
	s.PushInt(0)
	if c := s.SetGlobal(n); c != rt.Success {
		t.Fatalf("setglobal: %v", c)
	}

	for i := 0; i < 4; i++ {
		if c := s.Execute(); c != rt.Success {
			t.Fatalf("execute %d: %v", i, c)
		}
	}
	if c := s.LoadGlobal(n); c != rt.Success {
		t.Fatalf("loadglobal: %v", c)
	}
	if got := s.PopInt(); got != 4 {
		t.Errorf("x after four executes = %d, want 4", got)
	}
}
