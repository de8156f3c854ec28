package yasl

import (
	goerrors "errors"
	"testing"

	"github.com/yasl-lang/yaslapi-go/errors"
)

func TestRegisterAndLoadMetatable(t *testing.T) {
	_, s := testState(t, "")
	defer s.Close()

	s.PushTable()
	if err := s.TableSetFunctions([]MetatableFunction{
		{Name: "value", Fn: func(r *Ref) int { r.PushInt(1); return 1 }, NumArgs: 1},
		{Name: "bump", Fn: func(r *Ref) int { return 0 }, NumArgs: VariadicArgs},
	}); err != nil {
		t.Fatalf("table set functions: %v", err)
	}
	if err := s.RegisterMetatable("Counter"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if depth(s) != 0 {
		t.Errorf("register left depth %d, want 0", depth(s))
	}

	if err := s.LoadMetatable("Counter"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !s.IsTable() {
		t.Error("loaded metatable is not a table")
	}
	s.Pop()
}

func TestLoadUnknownMetatable(t *testing.T) {
	_, s := testState(t, "")
	defer s.Close()

	if err := s.LoadMetatable("Nobody"); !goerrors.Is(err, errors.ErrUndeclared) {
		t.Errorf("load of unknown metatable = %v, want undeclared", err)
	}
}

func TestMetatableNameValidated(t *testing.T) {
	_, s := testState(t, "")
	defer s.Close()

	s.PushTable()
	if err := s.RegisterMetatable("Bad Name"); !goerrors.Is(err, errors.ErrBadIdentifier) {
		t.Errorf("register with malformed name = %v, want bad identifier", err)
	}
	s.Pop()

	s.PushTable()
	err := s.TableSetFunctions([]MetatableFunction{
		{Name: "9nope", Fn: func(*Ref) int { return 0 }, NumArgs: 0},
	})
	if !goerrors.Is(err, errors.ErrBadIdentifier) {
		t.Errorf("batch with malformed name = %v, want bad identifier", err)
	}
	s.Pop()
}

func TestAttachMetatableToForeignData(t *testing.T) {
	_, s := testState(t, "")
	defer s.Close()

	s.PushTable()
	if err := s.RegisterMetatable("Blob"); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := s.PushForeignData(&struct{}{}, "Blob", nil); err != nil {
		t.Fatalf("push foreign data: %v", err)
	}
	if err := s.LoadMetatable("Blob"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := s.SetMetatable(); err != nil {
		t.Fatalf("set metatable: %v", err)
	}
	if !s.IsForeignData("Blob") {
		t.Error("foreign data not on top after metatable attach")
	}
	s.Pop()
}

func TestSetMetatableRequiresForeignData(t *testing.T) {
	_, s := testState(t, "")
	defer s.Close()

	s.PushTable()
	if err := s.RegisterMetatable("Strict"); err != nil {
		t.Fatalf("register: %v", err)
	}

	s.PushInt(3)
	if err := s.LoadMetatable("Strict"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := s.SetMetatable(); !goerrors.Is(err, errors.ErrType) {
		t.Errorf("attach to an int = %v, want type error", err)
	}
	s.Pop()
}

func TestDestructorRunsOnceUnderResetBeforeClose(t *testing.T) {
	_, s := testState(t, "")

	calls := 0
	if err := s.PushForeignData("payload", "Tracked", func(any) { calls++ }); err != nil {
		t.Fatalf("push foreign data: %v", err)
	}
	s.Pop()

	if err := s.ResetFromSource("assert true;"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := s.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if calls != 0 {
		t.Fatalf("destructor ran before close: %d calls", calls)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if calls != 1 {
		t.Errorf("destructor calls after close = %d, want 1", calls)
	}

	if err := s.Close(); !goerrors.Is(err, errors.ErrClosed) {
		t.Errorf("second close = %v, want closed", err)
	}
	if calls != 1 {
		t.Errorf("destructor calls after double close = %d, want 1", calls)
	}
}
