package wazerort

import (
	"context"
	goerrors "errors"
	"io"
	"os"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	"github.com/yasl-lang/yaslapi-go/errors"
	"github.com/yasl-lang/yaslapi-go/intern"
	"github.com/yasl-lang/yaslapi-go/rt"
)

// Engine implements rt.Engine over one instantiated copy of yasl.wasm. All
// states created from the engine share the instance's linear memory; the
// interpreter core keeps them isolated the same way it does when linked
// natively.
type Engine struct {
	ctx     context.Context
	runtime wazero.Runtime
	mod     api.Module
	mem     api.Memory
	fns     exports

	mu       sync.Mutex
	states   map[uint32]*State
	names    map[*intern.Name]uint32
	hostFns  map[uint32]rt.HostFn
	nextFnID uint32
	closed   bool

	userdata *handleTable
}

// exports holds the resolved guest function table. Every field is required;
// New fails naming the first missing export.
type exports struct {
	malloc  api.Function
	dealloc api.Function

	newstate    api.Function
	resetstate  api.Function
	compile     api.Function
	execute     api.Function
	executeREPL api.Function
	delstate    api.Function
	decllibs    api.Function

	pushundef        api.Function
	pushbool         api.Function
	pushint          api.Function
	pushfloat        api.Function
	pushlstr         api.Function
	pushzstr         api.Function
	pushlist         api.Function
	pushtable        api.Function
	pushhostfunction api.Function
	pushuserptr      api.Function
	pushhostuserdata api.Function

	peekntype   api.Function
	isnuserdata api.Function

	peekbool         api.Function
	peekint          api.Function
	peekfloat        api.Function
	peeklstr         api.Function
	peekuserptr      api.Function
	peekhostuserdata api.Function

	pop    api.Function
	duptop api.Function
	lenOp  api.Function

	listget   api.Function
	listpush  api.Function
	tablenext api.Function
	tableset  api.Function

	declglobal api.Function
	setglobal  api.Function
	loadglobal api.Function

	registermt api.Function
	loadmt     api.Function
	setmt      api.Function
}

// Option configures an Engine at construction time.
type Option func(*config)

type config struct {
	moduleConfig wazero.ModuleConfig
}

// WithStdout routes the interpreter's standard output, which is where echo
// and the REPL result line go.
func WithStdout(w io.Writer) Option {
	return func(c *config) {
		c.moduleConfig = c.moduleConfig.WithStdout(w)
	}
}

// WithStderr routes the interpreter's error output.
func WithStderr(w io.Writer) Option {
	return func(c *config) {
		c.moduleConfig = c.moduleConfig.WithStderr(w)
	}
}

// New compiles wasm (the yasl.wasm build of the interpreter core) and
// instantiates it once. The returned engine serves any number of states
// until Close.
func New(ctx context.Context, wasm []byte, opts ...Option) (*Engine, error) {
	r := wazero.NewRuntime(ctx)

	e := &Engine{
		ctx:      ctx,
		runtime:  r,
		states:   make(map[uint32]*State),
		names:    make(map[*intern.Name]uint32),
		hostFns:  make(map[uint32]rt.HostFn),
		nextFnID: 1,
		userdata: newHandleTable(),
	}

	wasi_snapshot_preview1.MustInstantiate(ctx, r)

	if err := e.instantiateHostModule(ctx); err != nil {
		r.Close(ctx)
		return nil, errors.Wrap(errors.PhaseCreate, errors.CodeInit, err, "instantiate host imports")
	}

	compiled, err := r.CompileModule(ctx, wasm)
	if err != nil {
		r.Close(ctx)
		return nil, errors.Wrap(errors.PhaseCreate, errors.CodeInit, err, "compile interpreter module")
	}

	cfg := config{
		moduleConfig: wazero.NewModuleConfig().WithName("yasl").WithStartFunctions(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	mod, err := r.InstantiateModule(ctx, compiled, cfg.moduleConfig)
	if err != nil {
		r.Close(ctx)
		return nil, errors.Wrap(errors.PhaseCreate, errors.CodeInit, err, "instantiate interpreter module")
	}
	e.mod = mod
	e.mem = mod.Memory()

	// Reactor-style builds export _initialize instead of _start.
	if init := mod.ExportedFunction("_initialize"); init != nil {
		if _, err := init.Call(ctx); err != nil {
			r.Close(ctx)
			return nil, errors.Wrap(errors.PhaseCreate, errors.CodeInit, err, "run module initializer")
		}
	}

	if err := e.resolveExports(); err != nil {
		r.Close(ctx)
		return nil, err
	}

	Logger().Debug("engine ready",
		zap.Int("wasm_bytes", len(wasm)),
		zap.Uint32("memory_bytes", e.mem.Size()))
	return e, nil
}

// NewFromFile reads a yasl.wasm build from disk and hands it to New.
func NewFromFile(ctx context.Context, path string, opts ...Option) (*Engine, error) {
	wasm, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.IO(path, err)
	}
	return New(ctx, wasm, opts...)
}

func (e *Engine) instantiateHostModule(ctx context.Context) error {
	builder := e.runtime.NewHostModuleBuilder("env")

	builder.NewFunctionBuilder().
		WithFunc(func(_ context.Context, _ api.Module, statePtr, id uint32) int32 {
			return e.hostcall(statePtr, id)
		}).
		Export("yaslx_hostcall")

	builder.NewFunctionBuilder().
		WithFunc(func(_ context.Context, handle uint32) {
			e.userdata.free(handle)
		}).
		Export("yaslx_userdata_free")

	_, err := builder.Instantiate(ctx)
	return err
}

func (e *Engine) resolveExports() error {
	var missing string
	resolve := func(name string) api.Function {
		fn := e.mod.ExportedFunction(name)
		if fn == nil && missing == "" {
			missing = name
		}
		return fn
	}

	e.fns = exports{
		malloc:  resolve("malloc"),
		dealloc: resolve("free"),

		newstate:    resolve("YASL_newstate_bb"),
		resetstate:  resolve("YASL_resetstate_bb"),
		compile:     resolve("YASL_compile"),
		execute:     resolve("YASL_execute"),
		executeREPL: resolve("YASL_execute_REPL"),
		delstate:    resolve("YASL_delstate"),
		decllibs:    resolve("YASLX_decllibs"),

		pushundef:        resolve("YASL_pushundef"),
		pushbool:         resolve("YASL_pushbool"),
		pushint:          resolve("YASL_pushint"),
		pushfloat:        resolve("YASL_pushfloat"),
		pushlstr:         resolve("YASL_pushlstr"),
		pushzstr:         resolve("YASL_pushzstr"),
		pushlist:         resolve("YASL_pushlist"),
		pushtable:        resolve("YASL_pushtable"),
		pushhostfunction: resolve("YASLX_pushhostfunction"),
		pushuserptr:      resolve("YASL_pushuserptr"),
		pushhostuserdata: resolve("YASLX_pushhostuserdata"),

		peekntype:   resolve("YASL_peekntype"),
		isnuserdata: resolve("YASLX_isnhostuserdata"),

		peekbool:         resolve("YASL_peekbool"),
		peekint:          resolve("YASL_peekint"),
		peekfloat:        resolve("YASL_peekfloat"),
		peeklstr:         resolve("YASLX_peeklstr"),
		peekuserptr:      resolve("YASL_peekuserptr"),
		peekhostuserdata: resolve("YASLX_peekhostuserdata"),

		pop:    resolve("YASL_pop"),
		duptop: resolve("YASL_duptop"),
		lenOp:  resolve("YASL_len"),

		listget:   resolve("YASL_listget"),
		listpush:  resolve("YASL_listpush"),
		tablenext: resolve("YASL_tablenext"),
		tableset:  resolve("YASL_tableset"),

		declglobal: resolve("YASL_declglobal"),
		setglobal:  resolve("YASL_setglobal"),
		loadglobal: resolve("YASL_loadglobal"),

		registermt: resolve("YASL_registermt"),
		loadmt:     resolve("YASL_loadmt"),
		setmt:      resolve("YASL_setmt"),
	}

	if missing != "" {
		return errors.New(errors.PhaseCreate, errors.CodeInit,
			"interpreter module does not export %s", missing)
	}
	return nil
}

// NewState implements rt.Engine.
func (e *Engine) NewState(source string) (rt.State, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, errors.Closed(errors.PhaseCreate)
	}
	e.mu.Unlock()

	srcPtr, err := e.writeBytes([]byte(source))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseCreate, errors.CodeInit, err, "copy program text")
	}

	res, err := e.fns.newstate.Call(e.ctx, uint64(srcPtr), uint64(uint32(len(source))))
	if err != nil {
		e.freeGuest(srcPtr)
		return nil, errors.Wrap(errors.PhaseCreate, errors.CodeInit, err, "YASL_newstate_bb")
	}
	ptr := uint32(res[0])
	if ptr == 0 {
		e.freeGuest(srcPtr)
		return nil, errors.New(errors.PhaseCreate, errors.CodeInit, "state allocation returned null")
	}

	s := &State{eng: e, ptr: ptr, srcPtr: srcPtr}
	e.mu.Lock()
	e.states[ptr] = s
	e.mu.Unlock()
	return s, nil
}

// Close implements rt.Engine. Remaining user-data destructors run here if
// any state skipped Delete.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.states = nil
	e.mu.Unlock()

	e.userdata.close()

	var errs []error
	if e.mod != nil {
		if err := e.mod.Close(e.ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.runtime.Close(e.ctx); err != nil {
		errs = append(errs, err)
	}
	return goerrors.Join(errs...)
}

// hostcall dispatches the guest's foreign-function trampoline to the
// registered Go closure. The state pointer always belongs to a live state
// created through NewState; the id was issued by registerHostFn.
func (e *Engine) hostcall(statePtr, id uint32) int32 {
	e.mu.Lock()
	fn := e.hostFns[id]
	s := e.states[statePtr]
	e.mu.Unlock()

	if fn == nil {
		Logger().Warn("guest invoked unknown host function", zap.Uint32("id", id))
		return 0
	}
	if s == nil {
		// The core handed us a state pointer we did not create, e.g. a
		// scratch state used during stdlib calls. Serve it with a
		// borrowed view over the same instance.
		s = &State{eng: e, ptr: statePtr}
	}
	return int32(fn(s))
}

func (e *Engine) registerHostFn(fn rt.HostFn) uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextFnID
	e.nextFnID++
	e.hostFns[id] = fn
	return id
}

// Guest memory helpers.

func (e *Engine) allocGuest(n uint32) (uint32, error) {
	if n == 0 {
		n = 1
	}
	res, err := e.fns.malloc.Call(e.ctx, uint64(n))
	if err != nil {
		return 0, err
	}
	ptr := uint32(res[0])
	if ptr == 0 {
		return 0, errors.Internal(errors.PhaseHost, "guest malloc(%d) returned null", n)
	}
	return ptr, nil
}

func (e *Engine) freeGuest(ptr uint32) {
	if ptr == 0 {
		return
	}
	if _, err := e.fns.dealloc.Call(e.ctx, uint64(ptr)); err != nil {
		Logger().Warn("guest free failed", zap.Uint32("ptr", ptr), zap.Error(err))
	}
}

func (e *Engine) writeBytes(b []byte) (uint32, error) {
	ptr, err := e.allocGuest(uint32(len(b)))
	if err != nil {
		return 0, err
	}
	if len(b) > 0 && !e.mem.Write(ptr, b) {
		e.freeGuest(ptr)
		return 0, errors.Internal(errors.PhaseHost, "write of %d bytes at 0x%x failed", len(b), ptr)
	}
	return ptr, nil
}

func (e *Engine) writeCString(s string) (uint32, error) {
	return e.writeBytes(append([]byte(s), 0))
}

// namePtr returns the guest address of an interned name, allocating it on
// first use. The allocation is never freed, which is what keeps the
// pointer the core received stable for the life of the engine.
func (e *Engine) namePtr(n *intern.Name) (uint32, error) {
	e.mu.Lock()
	if ptr, ok := e.names[n]; ok {
		e.mu.Unlock()
		return ptr, nil
	}
	e.mu.Unlock()

	ptr, err := e.writeCString(n.String())
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if prev, ok := e.names[n]; ok {
		// Lost the race; the duplicate allocation is abandoned rather
		// than freed so neither pointer can dangle.
		return prev, nil
	}
	e.names[n] = ptr
	return ptr, nil
}
