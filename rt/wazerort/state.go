package wazerort

import (
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/yasl-lang/yaslapi-go/intern"
	"github.com/yasl-lang/yaslapi-go/rt"
)

// State implements rt.State over one guest-side interpreter state. The
// ptr field is the opaque state pointer the core returned from
// YASL_newstate_bb; every call threads it back as the first argument.
type State struct {
	eng     *Engine
	ptr     uint32
	srcPtr  uint32 // program text buffer, owned until the next Reset
	scratch uint32 // 8-byte out-parameter slot, allocated on first use
	deleted bool
}

// call invokes a guest export with the state pointer prepended. A trap is
// an engine-level fault, not a script error; it is logged and surfaced as
// the generic failure code by the wrappers below.
func (s *State) call(fn api.Function, args ...uint64) (uint64, bool) {
	all := make([]uint64, 0, len(args)+1)
	all = append(all, uint64(s.ptr))
	all = append(all, args...)
	res, err := fn.Call(s.eng.ctx, all...)
	if err != nil {
		Logger().Error("guest call trapped", zap.Error(err))
		return 0, false
	}
	if len(res) == 0 {
		return 0, true
	}
	return res[0], true
}

func (s *State) code(fn api.Function, args ...uint64) rt.Code {
	if s.deleted {
		return rt.Error
	}
	res, ok := s.call(fn, args...)
	if !ok {
		return rt.Error
	}
	return rt.Code(int32(res))
}

// Lifecycle.

func (s *State) Reset(source string) rt.Code {
	if s.deleted {
		return rt.Error
	}
	srcPtr, err := s.eng.writeBytes([]byte(source))
	if err != nil {
		Logger().Error("reset: copy program text", zap.Error(err))
		return rt.Error
	}
	c := s.code(s.eng.fns.resetstate, uint64(srcPtr), uint64(uint32(len(source))))
	if c != rt.Success {
		s.eng.freeGuest(srcPtr)
		return c
	}
	s.eng.freeGuest(s.srcPtr)
	s.srcPtr = srcPtr
	return rt.Success
}

func (s *State) Compile() rt.Code     { return s.code(s.eng.fns.compile) }
func (s *State) Execute() rt.Code     { return s.code(s.eng.fns.execute) }
func (s *State) ExecuteREPL() rt.Code { return s.code(s.eng.fns.executeREPL) }
func (s *State) DeclLibs() rt.Code    { return s.code(s.eng.fns.decllibs) }

func (s *State) Delete() rt.Code {
	if s.deleted {
		return rt.Error
	}
	c := s.code(s.eng.fns.delstate)
	s.deleted = true
	s.eng.freeGuest(s.srcPtr)
	s.srcPtr = 0

	s.eng.mu.Lock()
	if s.eng.states != nil {
		delete(s.eng.states, s.ptr)
	}
	s.eng.mu.Unlock()
	return c
}

// Pushes.

func (s *State) PushUndef() { s.call(s.eng.fns.pushundef) }

func (s *State) PushBool(b bool) {
	v := uint64(0)
	if b {
		v = 1
	}
	s.call(s.eng.fns.pushbool, v)
}

func (s *State) PushInt(i int64)     { s.call(s.eng.fns.pushint, uint64(i)) }
func (s *State) PushFloat(f float64) { s.call(s.eng.fns.pushfloat, api.EncodeF64(f)) }

func (s *State) PushText(t string) {
	ptr, err := s.eng.writeBytes([]byte(t))
	if err != nil {
		Logger().Error("pushtext: copy string", zap.Error(err))
		s.call(s.eng.fns.pushundef)
		return
	}
	// The core copies the bytes into an owned string value.
	s.call(s.eng.fns.pushlstr, uint64(ptr), uint64(uint32(len(t))))
	s.eng.freeGuest(ptr)
}

func (s *State) PushZText(t string) {
	for i := 0; i < len(t); i++ {
		if t[i] == 0 {
			t = t[:i]
			break
		}
	}
	ptr, err := s.eng.writeCString(t)
	if err != nil {
		Logger().Error("pushztext: copy string", zap.Error(err))
		s.call(s.eng.fns.pushundef)
		return
	}
	s.call(s.eng.fns.pushzstr, uint64(ptr))
	s.eng.freeGuest(ptr)
}

func (s *State) PushList()  { s.call(s.eng.fns.pushlist) }
func (s *State) PushTable() { s.call(s.eng.fns.pushtable) }

func (s *State) PushHostFn(fn rt.HostFn, numArgs int) {
	id := s.eng.registerHostFn(fn)
	s.call(s.eng.fns.pushhostfunction, uint64(id), api.EncodeI32(int32(numArgs)))
}

func (s *State) PushUserPtr(addr uint64) {
	s.call(s.eng.fns.pushuserptr, addr)
}

func (s *State) PushUserData(data any, tag *intern.Name, dtor rt.Destructor) {
	var tagPtr uint32
	if tag != nil {
		p, err := s.eng.namePtr(tag)
		if err != nil {
			Logger().Error("pushuserdata: intern tag", zap.Error(err))
			s.call(s.eng.fns.pushundef)
			return
		}
		tagPtr = p
	}
	tagStr := ""
	if tag != nil {
		tagStr = tag.String()
	}
	handle := s.eng.userdata.insert(data, tagStr, dtor)
	s.call(s.eng.fns.pushhostuserdata, uint64(handle), uint64(tagPtr))
}

// Type probes.

func (s *State) PeekTag(offset int) rt.Tag {
	res, ok := s.call(s.eng.fns.peekntype, api.EncodeI32(int32(offset)))
	if !ok {
		return rt.TagUndef
	}
	return rt.Tag(int32(res))
}

func (s *State) IsUndef() bool   { return s.PeekTag(0) == rt.TagUndef }
func (s *State) IsBool() bool    { return s.PeekTag(0) == rt.TagBool }
func (s *State) IsInt() bool     { return s.PeekTag(0) == rt.TagInt }
func (s *State) IsFloat() bool   { return s.PeekTag(0) == rt.TagFloat }
func (s *State) IsStr() bool     { return s.PeekTag(0) == rt.TagStr }
func (s *State) IsList() bool    { return s.PeekTag(0) == rt.TagList }
func (s *State) IsTable() bool   { return s.PeekTag(0) == rt.TagTable }
func (s *State) IsUserPtr() bool { return s.PeekTag(0) == rt.TagUserPtr }

func (s *State) IsUserData(tag *intern.Name) bool {
	return s.IsNUserData(tag, 0)
}

func (s *State) IsNUserData(tag *intern.Name, offset int) bool {
	if tag == nil {
		return s.PeekTag(offset) == rt.TagUserData
	}
	tagPtr, err := s.eng.namePtr(tag)
	if err != nil {
		Logger().Error("isnuserdata: intern tag", zap.Error(err))
		return false
	}
	res, ok := s.call(s.eng.fns.isnuserdata, uint64(tagPtr), api.EncodeI32(int32(offset)))
	return ok && res != 0
}

// Peeks. The guest returns the zero value on a tag mismatch, which is the
// documented permissive contract.

func (s *State) PeekBool() bool {
	res, ok := s.call(s.eng.fns.peekbool)
	return ok && res != 0
}

func (s *State) PeekInt() int64 {
	res, _ := s.call(s.eng.fns.peekint)
	return int64(res)
}

func (s *State) PeekFloat() float64 {
	res, ok := s.call(s.eng.fns.peekfloat)
	if !ok {
		return 0
	}
	return api.DecodeF64(res)
}

func (s *State) PeekStr() string {
	lenPtr, err := s.scratchPtr()
	if err != nil {
		Logger().Error("peekstr: scratch slot", zap.Error(err))
		return ""
	}
	res, ok := s.call(s.eng.fns.peeklstr, uint64(lenPtr))
	if !ok || res == 0 {
		return ""
	}
	strPtr := uint32(res)
	n, ok := s.eng.mem.ReadUint64Le(lenPtr)
	if !ok {
		return ""
	}
	data, ok := s.eng.mem.Read(strPtr, uint32(n))
	if !ok {
		return ""
	}
	return string(data)
}

func (s *State) PeekUserData() (any, string) {
	res, ok := s.call(s.eng.fns.peekhostuserdata)
	if !ok || res == 0 {
		return nil, ""
	}
	data, tag, ok := s.eng.userdata.get(uint32(res))
	if !ok {
		return nil, ""
	}
	return data, tag
}

// Pops. Each is peek-then-drop so a mismatched pop still shrinks the
// stack by exactly one.

func (s *State) PopBool() bool {
	v := s.PeekBool()
	s.Pop()
	return v
}

func (s *State) PopInt() int64 {
	v := s.PeekInt()
	s.Pop()
	return v
}

func (s *State) PopFloat() float64 {
	v := s.PeekFloat()
	s.Pop()
	return v
}

func (s *State) PopStr() string {
	v := s.PeekStr()
	s.Pop()
	return v
}

func (s *State) PopUserPtr() uint64 {
	res, _ := s.call(s.eng.fns.peekuserptr)
	s.Pop()
	return res
}

func (s *State) PopUserData() (any, string) {
	data, tag := s.PeekUserData()
	s.Pop()
	return data, tag
}

func (s *State) Pop()    { s.call(s.eng.fns.pop) }
func (s *State) DupTop() { s.call(s.eng.fns.duptop) }
func (s *State) Len()    { s.call(s.eng.fns.lenOp) }

// Composite accessors.

func (s *State) ListGet(idx int64) rt.Code {
	return s.code(s.eng.fns.listget, uint64(idx))
}

func (s *State) ListAppend() rt.Code {
	return s.code(s.eng.fns.listpush)
}

func (s *State) TableNext() bool {
	res, ok := s.call(s.eng.fns.tablenext)
	return ok && res != 0
}

func (s *State) TableSet() rt.Code {
	return s.code(s.eng.fns.tableset)
}

// Globals.

func (s *State) DeclGlobal(name *intern.Name) rt.Code { return s.named(s.eng.fns.declglobal, name) }
func (s *State) SetGlobal(name *intern.Name) rt.Code  { return s.named(s.eng.fns.setglobal, name) }
func (s *State) LoadGlobal(name *intern.Name) rt.Code { return s.named(s.eng.fns.loadglobal, name) }

// Metatables.

func (s *State) RegisterMT(name *intern.Name) rt.Code { return s.named(s.eng.fns.registermt, name) }
func (s *State) LoadMT(name *intern.Name) rt.Code     { return s.named(s.eng.fns.loadmt, name) }
func (s *State) SetMT() rt.Code                       { return s.code(s.eng.fns.setmt) }

func (s *State) named(fn api.Function, name *intern.Name) rt.Code {
	ptr, err := s.eng.namePtr(name)
	if err != nil {
		Logger().Error("intern name in guest memory", zap.String("name", name.String()), zap.Error(err))
		return rt.Error
	}
	return s.code(fn, uint64(ptr))
}

func (s *State) scratchPtr() (uint32, error) {
	if s.scratch != 0 {
		return s.scratch, nil
	}
	ptr, err := s.eng.allocGuest(8)
	if err != nil {
		return 0, err
	}
	s.scratch = ptr
	return ptr, nil
}
