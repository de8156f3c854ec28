// Package rt defines the boundary to the embedded YASL runtime: the fixed
// function table the C core exposes on an opaque state pointer, expressed as
// Go interfaces, plus the status codes and stack type tags shared across it.
//
// The package contains no interpreter logic. Implementations live below it:
// wazerort drives the real C core compiled to a WebAssembly module, and
// rttest provides an in-memory stand-in for tests. Callers above this
// package must treat every returned Code through the full taxonomy and never
// assume success.
package rt

import "github.com/yasl-lang/yaslapi-go/intern"

// Code is a status code returned by the runtime. The numeric values match
// the C enum and must not be reordered.
type Code int32

const (
	Success           Code = iota // no error
	ModuleSuccess                 // module loaded successfully
	Error                         // generic interpreter failure
	InitError                     // state allocation failed
	SyntaxError                   // program text failed to parse
	TypeError                     // operator or argument type mismatch
	DivideByZeroError             // integer division or modulo by zero
	ValueError                    // bad value, e.g. index out of range
	TooManyVarError               // too many bindings declared
	PlatformNotSupp               // operation unsupported on this platform
	AssertError                   // script-level assert failed
	StackOverflowError            // VM stack exhausted
)

// String returns the C enum spelling for diagnostics.
func (c Code) String() string {
	switch c {
	case Success:
		return "YASL_SUCCESS"
	case ModuleSuccess:
		return "YASL_MODULE_SUCCESS"
	case Error:
		return "YASL_ERROR"
	case InitError:
		return "YASL_INIT_ERROR"
	case SyntaxError:
		return "YASL_SYNTAX_ERROR"
	case TypeError:
		return "YASL_TYPE_ERROR"
	case DivideByZeroError:
		return "YASL_DIVIDE_BY_ZERO_ERROR"
	case ValueError:
		return "YASL_VALUE_ERROR"
	case TooManyVarError:
		return "YASL_TOO_MANY_VAR_ERROR"
	case PlatformNotSupp:
		return "YASL_PLATFORM_NOT_SUPP"
	case AssertError:
		return "YASL_ASSERT_ERROR"
	case StackOverflowError:
		return "YASL_STACK_OVERFLOW_ERROR"
	}
	return "YASL_UNKNOWN"
}

// Tag identifies the runtime type of a stack value. Values match the C
// type enum.
type Tag int32

const (
	TagUndef Tag = iota
	TagFloat
	TagInt
	TagBool
	TagStr
	TagList
	TagTable
	TagFn
	TagClosure
	TagCFn
	TagUserPtr
	TagUserData
)

// String returns the script-visible type name.
func (t Tag) String() string {
	switch t {
	case TagUndef:
		return "undef"
	case TagFloat:
		return "float"
	case TagInt:
		return "int"
	case TagBool:
		return "bool"
	case TagStr:
		return "str"
	case TagList:
		return "list"
	case TagTable:
		return "table"
	case TagFn:
		return "fn"
	case TagClosure:
		return "closure"
	case TagCFn:
		return "cfn"
	case TagUserPtr:
		return "userptr"
	case TagUserData:
		return "userdata"
	}
	return "unknown"
}

// HostFn is the foreign-function ABI: it receives a non-owning view of the
// calling state and returns the number of result values it left on the
// stack. A negative declared arity at push time means variadic.
type HostFn func(State) int

// VariadicArgs is the arity sentinel for variadic host functions.
const VariadicArgs = -1

// Destructor is invoked by the runtime exactly once when a user-data value
// becomes unreachable or its owning state is deleted.
type Destructor func(data any)

// Engine owns the compiled runtime and creates interpreter states. An
// Engine may serve many states; states created from the same engine share
// nothing but the engine itself and the process-wide name registry.
type Engine interface {
	// NewState allocates a fresh interpreter state bound to the given
	// program text. A nil State is never returned alongside a nil error.
	NewState(source string) (State, error)

	// Close releases the engine. All states must be deleted first.
	Close() error
}

// State is the per-instance function table. It is not safe for concurrent
// use; the caller serializes all access to one State. Every method that can
// fail in the C API returns a Code; methods documented as infallible in the
// C API return nothing.
type State interface {
	// Lifecycle.

	// Reset discards compiled state and rebinds the instance to new
	// program text without reallocating the underlying resource.
	Reset(source string) Code
	// Compile performs syntax and semantic analysis only.
	Compile() Code
	// Execute compiles if needed and runs to completion or first error.
	Execute() Code
	// ExecuteREPL is Execute, plus the value of a trailing bare expression
	// statement is printed to the runtime's output.
	ExecuteREPL() Code
	// Delete releases the state. Must be called exactly once.
	Delete() Code

	// Pushes. Each grows the stack by exactly one.

	PushUndef()
	PushBool(b bool)
	PushInt(i int64)
	PushFloat(f float64)
	PushText(s string)
	PushZText(s string) // null-terminated variant, stops at the first NUL
	PushList()
	PushTable()
	PushHostFn(fn HostFn, numArgs int)
	PushUserPtr(addr uint64)
	PushUserData(data any, tag *intern.Name, dtor Destructor)

	// Type probes, non-consuming. Offset counts from the top, 0 = top.

	PeekTag(offset int) Tag
	IsUndef() bool
	IsBool() bool
	IsInt() bool
	IsFloat() bool
	IsStr() bool
	IsList() bool
	IsTable() bool
	IsUserPtr() bool
	IsUserData(tag *intern.Name) bool
	IsNUserData(tag *intern.Name, offset int) bool

	// Peeks and pops. On a type mismatch these return the zero value; a
	// pop still reduces the stack depth by one. Callers probe first.

	PeekBool() bool
	PeekInt() int64
	PeekFloat() float64
	PeekStr() string
	PeekUserData() (any, string)
	PopBool() bool
	PopInt() int64
	PopFloat() float64
	PopStr() string
	PopUserPtr() uint64
	PopUserData() (any, string)
	Pop()    // drop the top without interpreting it
	DupTop() // push a copy of the current top

	// Len replaces the top of the stack with its length as an int.
	Len()

	// Composite accessors.

	// ListGet pushes element idx of the list on top of the stack; negative
	// indices count from the end. The list stays on the stack.
	ListGet(idx int64) Code
	// ListAppend pops a value and appends it to the list then on top.
	ListAppend() Code
	// TableNext advances table iteration: with a key on top and the table
	// below it, pops the key and, if entries remain, pushes the next key
	// then its value. Pushing undef as the key requests the first entry.
	TableNext() bool
	// TableSet pops a value then a key and inserts the pair into the table
	// then on top, which stays on the stack.
	TableSet() Code

	// Global scope. Names arrive pre-interned; the state may hold the
	// pointer for its remaining lifetime.

	DeclGlobal(name *intern.Name) Code
	SetGlobal(name *intern.Name) Code
	LoadGlobal(name *intern.Name) Code

	// Metatables.

	RegisterMT(name *intern.Name) Code
	LoadMT(name *intern.Name) Code
	SetMT() Code

	// DeclLibs loads the standard library into global scope. One opaque
	// call; its contents are the runtime's business.
	DeclLibs() Code
}
