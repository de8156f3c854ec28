// Package rttest provides an in-memory implementation of the rt boundary
// for testing the binding without the compiled interpreter core. It keeps a
// real LIFO value stack, global scope, lists, tables, metatables and
// user-data destructors, and evaluates a deliberately tiny statement
// language that covers the binding's lifecycle tests: literals, assignment,
// compound assignment, integer arithmetic, assert, echo, host-function
// calls and a trailing bare expression. It is test scaffolding for the
// out-of-scope VM, not a language implementation.
package rttest

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/yasl-lang/yaslapi-go/intern"
	"github.com/yasl-lang/yaslapi-go/rt"
)

// val is one tagged stack slot.
type val struct {
	tag   rt.Tag
	b     bool
	i     int64
	f     float64
	s     string
	list  *listObj
	table *tableObj
	fn    *hostFn
	ud    *userData
	ptr   uint64
}

type listObj struct {
	items []val
}

type tableObj struct {
	entries []tableEntry
}

type tableEntry struct {
	key val
	v   val
}

type hostFn struct {
	fn      rt.HostFn
	numArgs int
}

type userData struct {
	data  any
	tag   string
	dtor  rt.Destructor
	mt    *tableObj
	freed bool
}

func undefVal() val           { return val{tag: rt.TagUndef} }
func boolVal(b bool) val      { return val{tag: rt.TagBool, b: b} }
func intVal(i int64) val      { return val{tag: rt.TagInt, i: i} }
func floatVal(f float64) val  { return val{tag: rt.TagFloat, f: f} }
func strVal(s string) val     { return val{tag: rt.TagStr, s: s} }
func tableVal(t *tableObj) val { return val{tag: rt.TagTable, table: t} }

// Engine implements rt.Engine over in-memory states.
type Engine struct {
	mu     sync.Mutex
	out    io.Writer
	closed bool
}

// New creates an engine writing interpreter output to os.Stdout.
func New() *Engine {
	return &Engine{out: os.Stdout}
}

// SetOutput redirects echo and REPL output, usually to a buffer in tests.
func (e *Engine) SetOutput(w io.Writer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.out = w
}

func (e *Engine) output() io.Writer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.out
}

// NewState implements rt.Engine.
func (e *Engine) NewState(source string) (rt.State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, fmt.Errorf("rttest: engine closed")
	}
	return &State{
		eng:     e,
		src:     source,
		globals: make(map[string]*val),
	}, nil
}

// Close implements rt.Engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// State implements rt.State. Not safe for concurrent use, matching the
// boundary contract.
type State struct {
	eng      *Engine
	src      string
	prog     []stmt
	compiled bool
	stack    []val
	globals  map[string]*val
	mts      map[string]*tableObj
	owned    []*userData
	deleted  bool
}

// Lifecycle.

func (s *State) Reset(source string) rt.Code {
	if s.deleted {
		return rt.Error
	}
	s.src = source
	s.prog = nil
	s.compiled = false
	s.stack = s.stack[:0]
	return rt.Success
}

func (s *State) Compile() rt.Code {
	if s.deleted {
		return rt.Error
	}
	prog, err := parse(s.src)
	if err != nil {
		return rt.SyntaxError
	}
	s.prog = prog
	s.compiled = true
	return rt.Success
}

func (s *State) Execute() rt.Code {
	return s.run(false)
}

func (s *State) ExecuteREPL() rt.Code {
	return s.run(true)
}

func (s *State) run(repl bool) rt.Code {
	if s.deleted {
		return rt.Error
	}
	if !s.compiled {
		if c := s.Compile(); c != rt.Success {
			return c
		}
	}
	last, code := s.eval(s.prog)
	if code != rt.Success {
		return code
	}
	if repl && last != nil {
		fmt.Fprintln(s.eng.output(), formatVal(*last))
	}
	return rt.Success
}

func (s *State) Delete() rt.Code {
	if s.deleted {
		return rt.Error
	}
	s.deleted = true
	for _, ud := range s.owned {
		if !ud.freed {
			ud.freed = true
			if ud.dtor != nil {
				ud.dtor(ud.data)
			}
		}
	}
	s.owned = nil
	s.stack = nil
	return rt.Success
}

// Stack primitives.

func (s *State) push(v val) {
	s.stack = append(s.stack, v)
}

func (s *State) top() (val, bool) {
	if len(s.stack) == 0 {
		return val{}, false
	}
	return s.stack[len(s.stack)-1], true
}

func (s *State) pop() (val, bool) {
	v, ok := s.top()
	if ok {
		s.stack = s.stack[:len(s.stack)-1]
	}
	return v, ok
}

func (s *State) at(offset int) (val, bool) {
	idx := len(s.stack) - 1 - offset
	if idx < 0 || idx >= len(s.stack) {
		return val{}, false
	}
	return s.stack[idx], true
}

// Pushes.

func (s *State) PushUndef()          { s.push(undefVal()) }
func (s *State) PushBool(b bool)     { s.push(boolVal(b)) }
func (s *State) PushInt(i int64)     { s.push(intVal(i)) }
func (s *State) PushFloat(f float64) { s.push(floatVal(f)) }
func (s *State) PushText(t string)   { s.push(strVal(t)) }

func (s *State) PushZText(t string) {
	for i := 0; i < len(t); i++ {
		if t[i] == 0 {
			t = t[:i]
			break
		}
	}
	s.push(strVal(t))
}

func (s *State) PushList()  { s.push(val{tag: rt.TagList, list: &listObj{}}) }
func (s *State) PushTable() { s.push(tableVal(&tableObj{})) }

func (s *State) PushHostFn(fn rt.HostFn, numArgs int) {
	s.push(val{tag: rt.TagCFn, fn: &hostFn{fn: fn, numArgs: numArgs}})
}

func (s *State) PushUserPtr(addr uint64) {
	s.push(val{tag: rt.TagUserPtr, ptr: addr})
}

func (s *State) PushUserData(data any, tag *intern.Name, dtor rt.Destructor) {
	ud := &userData{data: data, dtor: dtor}
	if tag != nil {
		ud.tag = tag.String()
	}
	s.owned = append(s.owned, ud)
	s.push(val{tag: rt.TagUserData, ud: ud})
}

// Probes.

func (s *State) PeekTag(offset int) rt.Tag {
	v, ok := s.at(offset)
	if !ok {
		return rt.TagUndef
	}
	return v.tag
}

func (s *State) isTag(t rt.Tag) bool {
	v, ok := s.top()
	return ok && v.tag == t
}

func (s *State) IsUndef() bool   { return s.isTag(rt.TagUndef) }
func (s *State) IsBool() bool    { return s.isTag(rt.TagBool) }
func (s *State) IsInt() bool     { return s.isTag(rt.TagInt) }
func (s *State) IsFloat() bool   { return s.isTag(rt.TagFloat) }
func (s *State) IsStr() bool     { return s.isTag(rt.TagStr) }
func (s *State) IsList() bool    { return s.isTag(rt.TagList) }
func (s *State) IsTable() bool   { return s.isTag(rt.TagTable) }
func (s *State) IsUserPtr() bool { return s.isTag(rt.TagUserPtr) }

func (s *State) IsUserData(tag *intern.Name) bool {
	return s.IsNUserData(tag, 0)
}

func (s *State) IsNUserData(tag *intern.Name, offset int) bool {
	v, ok := s.at(offset)
	if !ok || v.tag != rt.TagUserData {
		return false
	}
	return tag == nil || v.ud.tag == tag.String()
}

// Peeks and pops, permissive by contract.

func (s *State) PeekBool() bool {
	if v, ok := s.top(); ok && v.tag == rt.TagBool {
		return v.b
	}
	return false
}

func (s *State) PeekInt() int64 {
	if v, ok := s.top(); ok && v.tag == rt.TagInt {
		return v.i
	}
	return 0
}

func (s *State) PeekFloat() float64 {
	if v, ok := s.top(); ok && v.tag == rt.TagFloat {
		return v.f
	}
	return 0
}

func (s *State) PeekStr() string {
	if v, ok := s.top(); ok && v.tag == rt.TagStr {
		return v.s
	}
	return ""
}

func (s *State) PeekUserData() (any, string) {
	if v, ok := s.top(); ok && v.tag == rt.TagUserData {
		return v.ud.data, v.ud.tag
	}
	return nil, ""
}

func (s *State) PopBool() bool {
	if v, ok := s.pop(); ok && v.tag == rt.TagBool {
		return v.b
	}
	return false
}

func (s *State) PopInt() int64 {
	if v, ok := s.pop(); ok && v.tag == rt.TagInt {
		return v.i
	}
	return 0
}

func (s *State) PopFloat() float64 {
	if v, ok := s.pop(); ok && v.tag == rt.TagFloat {
		return v.f
	}
	return 0
}

func (s *State) PopStr() string {
	if v, ok := s.pop(); ok && v.tag == rt.TagStr {
		return v.s
	}
	return ""
}

func (s *State) PopUserPtr() uint64 {
	if v, ok := s.pop(); ok && v.tag == rt.TagUserPtr {
		return v.ptr
	}
	return 0
}

func (s *State) PopUserData() (any, string) {
	if v, ok := s.pop(); ok && v.tag == rt.TagUserData {
		return v.ud.data, v.ud.tag
	}
	return nil, ""
}

func (s *State) Pop() {
	s.pop()
}

func (s *State) DupTop() {
	if v, ok := s.top(); ok {
		s.push(v)
	}
}

func (s *State) Len() {
	v, ok := s.pop()
	if !ok {
		s.push(intVal(0))
		return
	}
	switch v.tag {
	case rt.TagStr:
		s.push(intVal(int64(len(v.s))))
	case rt.TagList:
		s.push(intVal(int64(len(v.list.items))))
	case rt.TagTable:
		s.push(intVal(int64(len(v.table.entries))))
	default:
		s.push(intVal(0))
	}
}

// Composite accessors.

func (s *State) ListGet(idx int64) rt.Code {
	v, ok := s.top()
	if !ok || v.tag != rt.TagList {
		return rt.TypeError
	}
	n := int64(len(v.list.items))
	if idx < 0 {
		idx += n
	}
	if idx < 0 || idx >= n {
		return rt.ValueError
	}
	s.push(v.list.items[idx])
	return rt.Success
}

func (s *State) ListAppend() rt.Code {
	elem, ok := s.pop()
	if !ok {
		return rt.Error
	}
	v, ok := s.top()
	if !ok || v.tag != rt.TagList {
		return rt.TypeError
	}
	v.list.items = append(v.list.items, elem)
	return rt.Success
}

func (s *State) TableNext() bool {
	key, ok := s.pop()
	if !ok {
		return false
	}
	v, ok := s.top()
	if !ok || v.tag != rt.TagTable {
		return false
	}
	entries := v.table.entries
	next := -1
	if key.tag == rt.TagUndef {
		if len(entries) > 0 {
			next = 0
		}
	} else {
		for i, e := range entries {
			if valEqual(e.key, key) {
				if i+1 < len(entries) {
					next = i + 1
				}
				break
			}
		}
	}
	if next < 0 {
		return false
	}
	s.push(entries[next].key)
	s.push(entries[next].v)
	return true
}

func (s *State) TableSet() rt.Code {
	v, okV := s.pop()
	key, okK := s.pop()
	if !okV || !okK {
		return rt.Error
	}
	t, ok := s.top()
	if !ok || t.tag != rt.TagTable {
		return rt.TypeError
	}
	if !hashableTag(key.tag) {
		return rt.TypeError
	}
	for i, e := range t.table.entries {
		if valEqual(e.key, key) {
			t.table.entries[i].v = v
			return rt.Success
		}
	}
	t.table.entries = append(t.table.entries, tableEntry{key: key, v: v})
	return rt.Success
}

func hashableTag(t rt.Tag) bool {
	switch t {
	case rt.TagUndef, rt.TagBool, rt.TagInt, rt.TagFloat, rt.TagStr, rt.TagUserPtr:
		return true
	}
	return false
}

func valEqual(a, b val) bool {
	if a.tag != b.tag {
		return false
	}
	switch a.tag {
	case rt.TagUndef:
		return true
	case rt.TagBool:
		return a.b == b.b
	case rt.TagInt:
		return a.i == b.i
	case rt.TagFloat:
		return a.f == b.f
	case rt.TagStr:
		return a.s == b.s
	case rt.TagUserPtr:
		return a.ptr == b.ptr
	case rt.TagList:
		return a.list == b.list
	case rt.TagTable:
		return a.table == b.table
	case rt.TagCFn:
		return a.fn == b.fn
	case rt.TagUserData:
		return a.ud == b.ud
	}
	return false
}

// Globals.

func (s *State) DeclGlobal(name *intern.Name) rt.Code {
	if _, ok := s.globals[name.String()]; !ok {
		v := undefVal()
		s.globals[name.String()] = &v
	}
	return rt.Success
}

func (s *State) SetGlobal(name *intern.Name) rt.Code {
	slot, ok := s.globals[name.String()]
	if !ok {
		return rt.Error
	}
	v, okPop := s.pop()
	if !okPop {
		return rt.Error
	}
	*slot = v
	return rt.Success
}

func (s *State) LoadGlobal(name *intern.Name) rt.Code {
	slot, ok := s.globals[name.String()]
	if !ok {
		return rt.Error
	}
	s.push(*slot)
	return rt.Success
}

// Metatables.

func (s *State) RegisterMT(name *intern.Name) rt.Code {
	v, ok := s.pop()
	if !ok || v.tag != rt.TagTable {
		return rt.TypeError
	}
	if s.mts == nil {
		s.mts = make(map[string]*tableObj)
	}
	s.mts[name.String()] = v.table
	return rt.Success
}

func (s *State) LoadMT(name *intern.Name) rt.Code {
	mt, ok := s.mts[name.String()]
	if !ok {
		return rt.Error
	}
	s.push(tableVal(mt))
	return rt.Success
}

func (s *State) SetMT() rt.Code {
	mt, ok := s.pop()
	if !ok {
		return rt.Error
	}
	if mt.tag != rt.TagTable && mt.tag != rt.TagUndef {
		return rt.TypeError
	}
	v, ok := s.top()
	if !ok || v.tag != rt.TagUserData {
		return rt.TypeError
	}
	if mt.tag == rt.TagUndef {
		v.ud.mt = nil
	} else {
		v.ud.mt = mt.table
	}
	return rt.Success
}

// Metatable returns the metatable registered under name, for assertions.
func (s *State) Metatable(name string) (any, bool) {
	mt, ok := s.mts[name]
	return mt, ok
}

func (s *State) DeclLibs() rt.Code {
	if s.deleted {
		return rt.Error
	}
	return rt.Success
}

// Depth reports the current stack depth, for assertions in tests.
func (s *State) Depth() int {
	return len(s.stack)
}

func formatVal(v val) string {
	switch v.tag {
	case rt.TagUndef:
		return "undef"
	case rt.TagBool:
		if v.b {
			return "true"
		}
		return "false"
	case rt.TagInt:
		return fmt.Sprintf("%d", v.i)
	case rt.TagFloat:
		return fmt.Sprintf("%g", v.f)
	case rt.TagStr:
		return v.s
	case rt.TagList:
		out := "["
		for i, it := range v.list.items {
			if i > 0 {
				out += ", "
			}
			out += formatVal(it)
		}
		return out + "]"
	case rt.TagTable:
		out := "{"
		for i, e := range v.table.entries {
			if i > 0 {
				out += ", "
			}
			out += formatVal(e.key) + ": " + formatVal(e.v)
		}
		return out + "}"
	case rt.TagCFn:
		return "<cfn>"
	case rt.TagUserPtr:
		return fmt.Sprintf("<userptr: 0x%x>", v.ptr)
	case rt.TagUserData:
		return fmt.Sprintf("<userdata: %s>", v.ud.tag)
	}
	return "<unknown>"
}
