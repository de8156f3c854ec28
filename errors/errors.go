package errors

import (
	"fmt"
	"strings"
)

// Phase indicates which binding operation the error came out of
type Phase string

const (
	PhaseCreate    Phase = "create"    // state allocation
	PhaseReset     Phase = "reset"     // rebinding a state to new source
	PhaseCompile   Phase = "compile"   // syntax/semantic analysis
	PhaseExecute   Phase = "execute"   // running the program
	PhaseStack     Phase = "stack"     // stack protocol operations
	PhaseGlobal    Phase = "global"    // global declare/load/store
	PhaseMetatable Phase = "metatable" // metatable register/load/set
	PhaseMarshal   Phase = "marshal"   // materializing stack values
	PhaseHost      Phase = "host"      // foreign function machinery
	PhaseIO        Phase = "io"        // reading program text from disk
)

// Code categorizes the failure. The runtime-originated codes mirror the
// interpreter's own error enum one to one and are never collapsed.
type Code string

const (
	// Runtime-originated codes.
	CodeRuntime       Code = "runtime_error" // generic interpreter failure
	CodeInit          Code = "init_error"    // state allocation failed
	CodeSyntax        Code = "syntax_error"
	CodeType          Code = "type_error"
	CodeDivideByZero  Code = "divide_by_zero"
	CodeValue         Code = "value_error"
	CodeTooManyVars   Code = "too_many_vars"
	CodePlatform      Code = "platform_not_supported"
	CodeAssert        Code = "assert_error"
	CodeStackOverflow Code = "stack_overflow"

	// Binding-originated codes.
	CodeBadIdentifier   Code = "bad_identifier"   // name fails the identifier grammar
	CodeAlreadyDeclared Code = "already_declared" // duplicate global declaration
	CodeUndeclared      Code = "undeclared"       // binding does not exist
	CodeClosed          Code = "closed"           // state already released
	CodeIO              Code = "io_error"         // file unreadable
	CodeNoEngine        Code = "no_engine"        // no runtime engine configured
	CodeInternal        Code = "internal"         // contract violation inside the binding
)

// Error is the structured error type used throughout the binding
type Error struct {
	Cause  error
	Phase  Phase
	Code   Code
	Name   string // offending identifier, when one is involved
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Code))

	if e.Name != "" {
		b.WriteString(" for ")
		b.WriteString(fmt.Sprintf("%q", e.Name))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. A target with an empty
// Phase matches on Code alone, which is what the sentinel values below
// rely on.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase != "" && e.Phase != t.Phase {
		return false
	}
	return e.Code == t.Code
}

// Sentinels for errors.Is checks regardless of phase.
var (
	ErrRuntime         = &Error{Code: CodeRuntime}
	ErrInit            = &Error{Code: CodeInit}
	ErrSyntax          = &Error{Code: CodeSyntax}
	ErrType            = &Error{Code: CodeType}
	ErrDivideByZero    = &Error{Code: CodeDivideByZero}
	ErrValue           = &Error{Code: CodeValue}
	ErrTooManyVars     = &Error{Code: CodeTooManyVars}
	ErrPlatform        = &Error{Code: CodePlatform}
	ErrAssert          = &Error{Code: CodeAssert}
	ErrStackOverflow   = &Error{Code: CodeStackOverflow}
	ErrBadIdentifier   = &Error{Code: CodeBadIdentifier}
	ErrAlreadyDeclared = &Error{Code: CodeAlreadyDeclared}
	ErrUndeclared      = &Error{Code: CodeUndeclared}
	ErrClosed          = &Error{Code: CodeClosed}
	ErrIO              = &Error{Code: CodeIO}
	ErrNoEngine        = &Error{Code: CodeNoEngine}
	ErrInternal        = &Error{Code: CodeInternal}
)

// New creates a structured error
func New(phase Phase, code Code, detail string, args ...any) *Error {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &Error{Phase: phase, Code: code, Detail: detail}
}

// Wrap wraps an existing error with phase and code context
func Wrap(phase Phase, code Code, cause error, detail string) *Error {
	return &Error{Phase: phase, Code: code, Detail: detail, Cause: cause}
}

// Convenience constructors for common binding failures

// BadIdentifier reports a name that fails the identifier grammar
func BadIdentifier(phase Phase, name string) *Error {
	return &Error{
		Phase:  phase,
		Code:   CodeBadIdentifier,
		Name:   name,
		Detail: "not a well-formed identifier",
	}
}

// AlreadyDeclared reports a duplicate global declaration
func AlreadyDeclared(name string) *Error {
	return &Error{
		Phase:  PhaseGlobal,
		Code:   CodeAlreadyDeclared,
		Name:   name,
		Detail: "global already declared",
	}
}

// Undeclared reports a missing global binding
func Undeclared(phase Phase, name string) *Error {
	return &Error{
		Phase:  phase,
		Code:   CodeUndeclared,
		Name:   name,
		Detail: "no such binding",
	}
}

// Closed reports use of a released state
func Closed(phase Phase) *Error {
	return &Error{Phase: phase, Code: CodeClosed, Detail: "state already closed"}
}

// Internal reports a contract violation inside the binding itself.
// These indicate bugs, not user errors.
func Internal(phase Phase, detail string, args ...any) *Error {
	return New(phase, CodeInternal, detail, args...)
}

// IO reports a failure to read program text
func IO(path string, cause error) *Error {
	return &Error{
		Phase:  PhaseIO,
		Code:   CodeIO,
		Detail: fmt.Sprintf("read %s", path),
		Cause:  cause,
	}
}
