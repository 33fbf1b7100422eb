package engine

import (
	"github.com/wippyai/wasm-bridge/heap"
)

// Kind is the VM type of a value.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindUndefined
	KindNull
	KindBoolean
	KindNumber
	KindString
	KindObject
	KindArray
	KindBuffer
	KindFunction
	KindError
)

var kindNames = [...]string{
	KindEmpty:     "empty",
	KindUndefined: "undefined",
	KindNull:      "null",
	KindBoolean:   "boolean",
	KindNumber:    "number",
	KindString:    "string",
	KindObject:    "object",
	KindArray:     "array",
	KindBuffer:    "buffer",
	KindFunction:  "function",
	KindError:     "error",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsPrimitive reports whether values of this kind are stored inline
// rather than on the isolate heap.
func (k Kind) IsPrimitive() bool {
	return k >= KindUndefined && k <= KindNumber
}

// ObjectID identifies an object on an isolate heap.
type ObjectID = heap.Handle

// Value is an unrooted VM value. Primitives are stored inline; everything
// else references an object on the owning isolate's heap.
type Value struct {
	num  float64
	ref  ObjectID
	kind Kind
}

func Undefined() Value { return Value{kind: KindUndefined} }

func Null() Value { return Value{kind: KindNull} }

func Bool(b bool) Value {
	v := Value{kind: KindBoolean}
	if b {
		v.num = 1
	}
	return v
}

func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsEmpty() bool { return v.kind == KindEmpty }

// Float returns the numeric payload: the number itself, 1/0 for booleans,
// 0 for everything else.
func (v Value) Float() float64 { return v.num }

// Bool returns the boolean payload.
func (v Value) Bool() bool { return v.kind == KindBoolean && v.num != 0 }

// Ref returns the heap object id, or 0 for primitives.
func (v Value) Ref() ObjectID { return v.ref }

// VMConfined marks Value as usable only on the isolate loop.
func (Value) VMConfined() {}

// NativeFunc implements a VM function in Go.
// Returning a non-nil error other than errors.ErrThrow throws an Error
// object carrying the error message.
type NativeFunc func(*CallInfo) error

// Function is the payload of a function object.
type Function struct {
	Native NativeFunc
	Name   string
}

// Object is a heap-allocated VM value.
type Object struct {
	internal any
	fn       *Function
	props    map[string]Value
	str      string
	keys     []string
	elems    []Value
	buffer   heap.Handle
	kind     Kind
}

func (o *Object) set(key string, v Value) {
	if o.props == nil {
		o.props = make(map[string]Value)
	}
	if _, ok := o.props[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.props[key] = v
}

// CallInfo describes one invocation of a native function.
type CallInfo struct {
	iso       *Isolate
	callee    Value
	this      Value
	ret       Value
	args      []Value
	construct bool
}

func (c *CallInfo) Isolate() *Isolate { return c.iso }

func (c *CallInfo) Callee() Value { return c.callee }

func (c *CallInfo) This() Value { return c.this }

func (c *CallInfo) IsConstruct() bool { return c.construct }

func (c *CallInfo) Len() int { return len(c.args) }

// Arg returns argument i, or false if i is out of range.
func (c *CallInfo) Arg(i int) (Value, bool) {
	if i < 0 || i >= len(c.args) {
		return Value{}, false
	}
	return c.args[i], true
}

// SetReturn sets the call's return value.
func (c *CallInfo) SetReturn(v Value) { c.ret = v }

// VMConfined marks CallInfo as usable only on the isolate loop.
func (*CallInfo) VMConfined() {}
