package yasl

import (
	"os"
	"sync"

	"github.com/yasl-lang/yaslapi-go/errors"
	"github.com/yasl-lang/yaslapi-go/rt"
)

var (
	engineMu      sync.Mutex
	defaultEngine rt.Engine
)

// SetEngine installs the process-wide default runtime engine used by
// NewState and NewStateFromPath. Typically a wazerort.Engine built once at
// startup.
func SetEngine(e rt.Engine) {
	engineMu.Lock()
	defer engineMu.Unlock()
	defaultEngine = e
}

func currentEngine() (rt.Engine, error) {
	engineMu.Lock()
	defer engineMu.Unlock()
	if defaultEngine == nil {
		return nil, errors.New(errors.PhaseCreate, errors.CodeNoEngine,
			"no runtime engine installed; call SetEngine first")
	}
	return defaultEngine, nil
}

// State owns exactly one interpreter instance. It is not safe for
// concurrent use; distinct States are independent and share only the
// process-wide name registry.
type State struct {
	stackOps
	closed bool
}

// NewState allocates an interpreter bound to the given program text using
// the default engine.
func NewState(source string) (*State, error) {
	eng, err := currentEngine()
	if err != nil {
		return nil, err
	}
	return NewStateWithEngine(eng, source)
}

// NewStateWithEngine allocates an interpreter from an explicit engine.
func NewStateWithEngine(eng rt.Engine, source string) (*State, error) {
	rs, err := eng.NewState(source)
	if err != nil {
		return nil, err
	}
	return &State{stackOps: stackOps{rs: rs, declared: make(map[string]bool)}}, nil
}

// NewStateFromPath reads program text from disk and allocates an
// interpreter bound to it.
func NewStateFromPath(path string) (*State, error) {
	eng, err := currentEngine()
	if err != nil {
		return nil, err
	}
	return NewStateFromPathWithEngine(eng, path)
}

// NewStateFromPathWithEngine is NewStateFromPath with an explicit engine.
func NewStateFromPathWithEngine(eng rt.Engine, path string) (*State, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.IO(path, err)
	}
	return NewStateWithEngine(eng, string(src))
}

// ResetFromSource rebinds the state to new program text, reusing the
// underlying interpreter resource. Globals and pending foreign-data
// destructors survive a reset.
func (s *State) ResetFromSource(source string) error {
	if s.closed {
		return errors.Closed(errors.PhaseReset)
	}
	return codeErr(errors.PhaseReset, s.rs.Reset(source))
}

// ResetFromPath is ResetFromSource with program text read from disk.
func (s *State) ResetFromPath(path string) error {
	if s.closed {
		return errors.Closed(errors.PhaseReset)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return errors.IO(path, err)
	}
	return codeErr(errors.PhaseReset, s.rs.Reset(string(src)))
}

// Compile performs syntax and semantic analysis without executing.
func (s *State) Compile() error {
	if s.closed {
		return errors.Closed(errors.PhaseCompile)
	}
	return codeErr(errors.PhaseCompile, s.rs.Compile())
}

// Execute compiles if needed and runs the program to completion or first
// fatal error. It may run for an unbounded, caller-controlled duration;
// this layer provides no cancellation.
func (s *State) Execute() error {
	if s.closed {
		return errors.Closed(errors.PhaseExecute)
	}
	return codeErr(errors.PhaseExecute, s.rs.Execute())
}

// ExecuteREPL is Execute, plus the value of a trailing bare expression
// statement is printed. It is the one behavioral difference the REPL
// front end relies on.
func (s *State) ExecuteREPL() error {
	if s.closed {
		return errors.Closed(errors.PhaseExecute)
	}
	return codeErr(errors.PhaseExecute, s.rs.ExecuteREPL())
}

// DeclareLibs loads the interpreter's standard library into global scope.
func (s *State) DeclareLibs() error {
	if s.closed {
		return errors.Closed(errors.PhaseExecute)
	}
	return codeErr(errors.PhaseExecute, s.rs.DeclLibs())
}

// Close releases the interpreter instance, running any pending
// foreign-data destructors exactly once. Further calls return an error.
func (s *State) Close() error {
	if s.closed {
		return errors.Closed(errors.PhaseCreate)
	}
	s.closed = true
	return codeErr(errors.PhaseCreate, s.rs.Delete())
}

// codeErr maps a runtime status code onto the error taxonomy. The mapping
// is total so no code is ever collapsed into a generic failure unless the
// runtime itself reported one.
func codeErr(phase errors.Phase, c rt.Code) error {
	switch c {
	case rt.Success, rt.ModuleSuccess:
		return nil
	case rt.InitError:
		return errors.New(phase, errors.CodeInit, "%s", c)
	case rt.SyntaxError:
		return errors.New(phase, errors.CodeSyntax, "%s", c)
	case rt.TypeError:
		return errors.New(phase, errors.CodeType, "%s", c)
	case rt.DivideByZeroError:
		return errors.New(phase, errors.CodeDivideByZero, "%s", c)
	case rt.ValueError:
		return errors.New(phase, errors.CodeValue, "%s", c)
	case rt.TooManyVarError:
		return errors.New(phase, errors.CodeTooManyVars, "%s", c)
	case rt.PlatformNotSupp:
		return errors.New(phase, errors.CodePlatform, "%s", c)
	case rt.AssertError:
		return errors.New(phase, errors.CodeAssert, "%s", c)
	case rt.StackOverflowError:
		return errors.New(phase, errors.CodeStackOverflow, "%s", c)
	}
	return errors.New(phase, errors.CodeRuntime, "%s", c)
}
