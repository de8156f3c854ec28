package yasl

import (
	goerrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/yasl-lang/yaslapi-go/errors"
	"github.com/yasl-lang/yaslapi-go/rt/rttest"
)

func testState(t *testing.T, src string) (*rttest.Engine, *State) {
	t.Helper()
	eng := rttest.New()
	s, err := NewStateWithEngine(eng, src)
	if err != nil {
		t.Fatalf("new state: %v", err)
	}
	return eng, s
}

func TestGlobalPersistsAcrossExecutes(t *testing.T) {
	_, s := testState(t, "x += 1;")
	defer s.Close()

	if err := s.InitGlobal("x", Int(0)); err != nil {
		t.Fatalf("init global: %v", err)
	}

	for i := 0; i < 4; i++ {
		if err := s.Execute(); err != nil {
			t.Fatalf("execute %d: %v", i, err)
		}
	}

	v, err := s.PopGlobal("x", KindInt)
	if err != nil {
		t.Fatalf("pop global: %v", err)
	}
	if v.Int() != 4 {
		t.Errorf("x after four executes = %d, want 4", v.Int())
	}
}

func TestDuplicateDeclareFails(t *testing.T) {
	_, s := testState(t, "")
	defer s.Close()

	s.PushInt(1)
	if err := s.DeclareGlobal("once"); err != nil {
		t.Fatalf("first declare: %v", err)
	}

	s.PushInt(2)
	err := s.DeclareGlobal("once")
	if err == nil {
		t.Fatal("duplicate declare succeeded")
	}
	if !goerrors.Is(err, errors.ErrAlreadyDeclared) {
		t.Errorf("duplicate declare error = %v, want already declared", err)
	}
	s.Pop() // the undeclared value stays ours

	v, err := s.PopGlobal("once")
	if err != nil {
		t.Fatalf("pop global: %v", err)
	}
	if v.Int() != 1 {
		t.Errorf("binding overwritten by failed declare: %d, want 1", v.Int())
	}
}

func TestDeclareMalformedName(t *testing.T) {
	_, s := testState(t, "")
	defer s.Close()

	s.PushInt(1)
	if err := s.DeclareGlobal("1bad"); !goerrors.Is(err, errors.ErrBadIdentifier) {
		t.Errorf("DeclareGlobal(1bad) = %v, want bad identifier", err)
	}
	s.Pop()
}

func TestCloseExactlyOnce(t *testing.T) {
	_, s := testState(t, "")

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Close(); !goerrors.Is(err, errors.ErrClosed) {
		t.Errorf("second close = %v, want closed", err)
	}
	if err := s.Execute(); !goerrors.Is(err, errors.ErrClosed) {
		t.Errorf("execute after close = %v, want closed", err)
	}
	if err := s.ResetFromSource("x = 1;"); !goerrors.Is(err, errors.ErrClosed) {
		t.Errorf("reset after close = %v, want closed", err)
	}
}

func TestNoEngineInstalled(t *testing.T) {
	SetEngine(nil)
	if _, err := NewState(""); !goerrors.Is(err, errors.ErrNoEngine) {
		t.Errorf("NewState without engine = %v, want no engine", err)
	}
}

func TestDefaultEngine(t *testing.T) {
	eng := rttest.New()
	SetEngine(eng)
	defer SetEngine(nil)

	s, err := NewState("assert true;")
	if err != nil {
		t.Fatalf("new state: %v", err)
	}
	defer s.Close()
	if err := s.Execute(); err != nil {
		t.Errorf("execute: %v", err)
	}
}

func TestNewStateFromPath(t *testing.T) {
	eng := rttest.New()
	SetEngine(eng)
	defer SetEngine(nil)

	path := filepath.Join(t.TempDir(), "prog.yasl")
	if err := os.WriteFile(path, []byte("assert true;"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := NewStateFromPath(path)
	if err != nil {
		t.Fatalf("new state from path: %v", err)
	}
	defer s.Close()
	if err := s.Execute(); err != nil {
		t.Errorf("execute: %v", err)
	}

	if _, err := NewStateFromPath(filepath.Join(t.TempDir(), "missing.yasl")); !goerrors.Is(err, errors.ErrIO) {
		t.Errorf("missing file = %v, want io error", err)
	}
}

func TestResetFromPath(t *testing.T) {
	_, s := testState(t, "assert false;")
	defer s.Close()

	path := filepath.Join(t.TempDir(), "prog.yasl")
	if err := os.WriteFile(path, []byte("assert true;"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.ResetFromPath(path); err != nil {
		t.Fatalf("reset from path: %v", err)
	}
	if err := s.Execute(); err != nil {
		t.Errorf("execute after reset: %v", err)
	}
}

func TestErrorTaxonomySurfaced(t *testing.T) {
	cases := []struct {
		src  string
		want error
	}{
		{"x = = 1;", errors.ErrSyntax},
		{"echo 1 / 0;", errors.ErrDivideByZero},
		{"assert false;", errors.ErrAssert},
		{`echo 1 + "a";`, errors.ErrType},
	}
	for _, c := range cases {
		_, s := testState(t, c.src)
		err := s.Execute()
		if !goerrors.Is(err, c.want) {
			t.Errorf("Execute(%q) = %v, want %v", c.src, err, c.want)
		}
		s.Close()
	}
}

func TestCompileDoesNotExecute(t *testing.T) {
	_, s := testState(t, "assert false;")
	defer s.Close()

	if err := s.Compile(); err != nil {
		t.Errorf("compile of valid source = %v, want success", err)
	}

	if err := s.ResetFromSource("x = = 1;"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := s.Compile(); !goerrors.Is(err, errors.ErrSyntax) {
		t.Errorf("compile of malformed source = %v, want syntax error", err)
	}
}

func TestDeclareLibs(t *testing.T) {
	_, s := testState(t, "")
	defer s.Close()
	if err := s.DeclareLibs(); err != nil {
		t.Errorf("declare libs: %v", err)
	}
}
