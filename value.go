package yasl

import (
	"math"

	"github.com/yasl-lang/yaslapi-go/rt"
)

// Kind tags the host-owned Value union. It covers the stack tags a value
// can be materialized into; script function kinds have no host payload and
// materialize as Undef.
type Kind int

const (
	KindUndef Kind = iota
	KindBool
	KindInt
	KindFloat
	KindStr
	KindList
	KindTable
	KindUserPtr
	KindUserData
)

func (k Kind) String() string {
	switch k {
	case KindUndef:
		return "undef"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindStr:
		return "str"
	case KindList:
		return "list"
	case KindTable:
		return "table"
	case KindUserPtr:
		return "userptr"
	case KindUserData:
		return "userdata"
	}
	return "unknown"
}

// Value is an owned host-side copy of one stack value. Lists and tables
// are materialized by value, so a Value never aliases the live stack.
type Value struct {
	kind  Kind
	b     bool
	i     int64
	f     float64
	s     string
	list  []Value
	table map[HashableValue]Value
	data  any
	tag   string
	ptr   uint64
}

// Constructors.

func Undef() Value           { return Value{kind: KindUndef} }
func Bool(b bool) Value      { return Value{kind: KindBool, b: b} }
func Int(i int64) Value      { return Value{kind: KindInt, i: i} }
func Float(f float64) Value  { return Value{kind: KindFloat, f: f} }
func Str(s string) Value     { return Value{kind: KindStr, s: s} }
func UserPtr(a uint64) Value { return Value{kind: KindUserPtr, ptr: a} }

// ListOf builds a list value from items in order.
func ListOf(items ...Value) Value {
	return Value{kind: KindList, list: items}
}

// TableOf builds a table value. The map is used as given; insertion order
// carries no meaning.
func TableOf(entries map[HashableValue]Value) Value {
	if entries == nil {
		entries = make(map[HashableValue]Value)
	}
	return Value{kind: KindTable, table: entries}
}

// ForeignData wraps an opaque host value with an optional type tag. The
// marshaler captures these without interpreting the payload.
func ForeignData(data any, tag string) Value {
	return Value{kind: KindUserData, data: data, tag: tag}
}

// Accessors. Each returns the zero value when the Value holds a different
// kind, mirroring the stack protocol's permissive reads.

func (v Value) Kind() Kind     { return v.kind }
func (v Value) Bool() bool     { return v.b }
func (v Value) Int() int64     { return v.i }
func (v Value) Float() float64 { return v.f }
func (v Value) Str() string    { return v.s }
func (v Value) Ptr() uint64    { return v.ptr }

func (v Value) List() []Value {
	return v.list
}

func (v Value) Table() map[HashableValue]Value {
	return v.table
}

// Foreign returns the opaque payload and tag of a foreign-data value.
func (v Value) Foreign() (any, string) {
	return v.data, v.tag
}

// Equal reports deep equality. Foreign-data compares by payload identity
// and tag; floats compare by bit pattern so NaN equals itself.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindUndef:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return math.Float64bits(v.f) == math.Float64bits(o.f)
	case KindStr:
		return v.s == o.s
	case KindUserPtr:
		return v.ptr == o.ptr
	case KindUserData:
		return v.data == o.data && v.tag == o.tag
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindTable:
		if len(v.table) != len(o.table) {
			return false
		}
		for k, val := range v.table {
			other, ok := o.table[k]
			if !ok || !val.Equal(other) {
				return false
			}
		}
		return true
	}
	return false
}

// Hashable converts the value to a table key. It reports false for kinds
// that cannot be hashed: lists, tables and foreign-data.
func (v Value) Hashable() (HashableValue, bool) {
	switch v.kind {
	case KindUndef:
		return HashableValue{kind: KindUndef}, true
	case KindBool:
		var bits uint64
		if v.b {
			bits = 1
		}
		return HashableValue{kind: KindBool, bits: bits}, true
	case KindInt:
		return HashableValue{kind: KindInt, bits: uint64(v.i)}, true
	case KindFloat:
		// Hash the IEEE-754 bit pattern so NaN and -0 behave as stable,
		// distinct keys.
		return HashableValue{kind: KindFloat, bits: math.Float64bits(v.f)}, true
	case KindStr:
		return HashableValue{kind: KindStr, text: v.s}, true
	case KindUserPtr:
		return HashableValue{kind: KindUserPtr, bits: v.ptr}, true
	}
	return HashableValue{}, false
}

// HashableValue is the restriction of Value to kinds usable as table keys.
// It is comparable, so it satisfies Go's map key contract directly.
type HashableValue struct {
	kind Kind
	bits uint64
	text string
}

func (h HashableValue) Kind() Kind { return h.kind }

// Value converts the key back to a full Value.
func (h HashableValue) Value() Value {
	switch h.kind {
	case KindBool:
		return Bool(h.bits != 0)
	case KindInt:
		return Int(int64(h.bits))
	case KindFloat:
		return Float(math.Float64frombits(h.bits))
	case KindStr:
		return Str(h.text)
	case KindUserPtr:
		return UserPtr(h.bits)
	}
	return Undef()
}

// Key is shorthand for building a string table key.
func Key(s string) HashableValue {
	return HashableValue{kind: KindStr, text: s}
}

// IntKey is shorthand for building an integer table key.
func IntKey(i int64) HashableValue {
	return HashableValue{kind: KindInt, bits: uint64(i)}
}

// kindOfTag maps a stack tag to the Kind its materialized form carries.
// Function-like tags and anything unrecognized collapse to Undef.
func kindOfTag(t rt.Tag) Kind {
	switch t {
	case rt.TagBool:
		return KindBool
	case rt.TagInt:
		return KindInt
	case rt.TagFloat:
		return KindFloat
	case rt.TagStr:
		return KindStr
	case rt.TagList:
		return KindList
	case rt.TagTable:
		return KindTable
	case rt.TagUserPtr:
		return KindUserPtr
	case rt.TagUserData:
		return KindUserData
	}
	return KindUndef
}
