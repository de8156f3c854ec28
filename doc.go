// Package yasl provides safe Go bindings for the YASL scripting language.
//
// YASL is an embeddable, stack-based scripting language with a C API. This
// binding runs the interpreter core as a WebAssembly module through wazero,
// so no cgo is involved, and wraps the C API's opaque state pointer and
// implicit value stack in a lifecycle-safe State type.
//
// # Architecture Overview
//
// The module is organized into several packages with distinct
// responsibilities:
//
//	yasl/              Root package: State, Value, the stack protocol,
//	                   the value marshaler and foreign functions
//	├── errors/        Structured error taxonomy
//	├── intern/        Process-wide identifier registry with stable storage
//	├── rt/            Runtime boundary interfaces, status codes, type tags
//	│   ├── wazerort/  wazero-backed engine running yasl.wasm
//	│   └── rttest/    In-memory runtime used by the binding's tests
//	└── cmd/yasl/      Script runner and interactive REPL
//
// # Quick Start
//
// Install an engine once, then drive states through it:
//
//	eng, err := wazerort.NewFromFile(ctx, "yasl.wasm")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close()
//	yasl.SetEngine(eng)
//
//	s, err := yasl.NewState(`echo "hello";`)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	if err := s.DeclareLibs(); err != nil {
//	    log.Fatal(err)
//	}
//	if err := s.Execute(); err != nil {
//	    log.Fatal(err)
//	}
//
// # The Stack Protocol
//
// Host and script exchange data through the interpreter's implicit LIFO
// stack. Pushes always succeed; peeks and pops are permissive by the C
// API's contract, returning the zero value on a type mismatch, so callers
// type-check first:
//
//	if s.IsInt() {
//	    n := s.PopInt()
//	    ...
//	}
//
// PopValue materializes any stack value, including nested lists and
// tables, into an owned Value that no longer aliases the stack.
//
// # Foreign Functions
//
// Host callables receive a non-owning *Ref view of the calling state:
//
//	s.PushFunction(func(r *yasl.Ref) int {
//	    a := r.PopInt()
//	    b := r.PopInt()
//	    r.PushInt(a + b)
//	    return 1
//	}, 2)
//	s.DeclareGlobal("add")
//
// A State is single-threaded; distinct States are independent and may be
// used from different goroutines.
package yasl
