package engine

import (
	stderrors "errors"
	"strconv"

	"github.com/wippyai/wasm-bridge/errors"
)

func (i *Isolate) alloc(o *Object) (Value, error) {
	if i.HasException() {
		return Value{}, errors.ErrThrow
	}
	id, err := i.objects.Insert(o)
	if err != nil {
		return Value{}, errors.Closed(errors.PhaseMemory, "isolate heap")
	}
	return Value{kind: o.kind, ref: id}, nil
}

func (i *Isolate) object(v Value, path string) (*Object, error) {
	if v.kind.IsPrimitive() || v.kind == KindEmpty {
		return nil, errors.TypeMismatch(errors.PhaseCall, []string{path}, "object", v.kind.String())
	}
	o, ok := i.objects.Get(v.ref)
	if !ok {
		return nil, errors.NotFound(errors.PhaseMemory, "object", strconv.FormatUint(uint64(v.ref), 10))
	}
	return o, nil
}

func (i *Isolate) objectOf(v Value, kind Kind, path string) (*Object, error) {
	if v.kind != kind {
		return nil, errors.TypeMismatch(errors.PhaseCall, []string{path}, kind.String(), v.kind.String())
	}
	return i.object(v, path)
}

// NewString allocates a string.
func (i *Isolate) NewString(s string) (Value, error) {
	return i.alloc(&Object{kind: KindString, str: s})
}

// NewObject allocates an empty plain object.
func (i *Isolate) NewObject() (Value, error) {
	return i.alloc(&Object{kind: KindObject})
}

// NewArray allocates an array of n undefined elements.
func (i *Isolate) NewArray(n int) (Value, error) {
	if n < 0 {
		return Value{}, errors.InvalidInput(errors.PhaseCall, "negative array length")
	}
	elems := make([]Value, n)
	for k := range elems {
		elems[k] = Undefined()
	}
	return i.alloc(&Object{kind: KindArray, elems: elems})
}

// NewError allocates an error object with name and message properties.
func (i *Isolate) NewError(name, message string) (Value, error) {
	nv, err := i.NewString(name)
	if err != nil {
		return Value{}, err
	}
	mv, err := i.NewString(message)
	if err != nil {
		return Value{}, err
	}
	o := &Object{kind: KindError}
	o.set("name", nv)
	o.set("message", mv)
	return i.alloc(o)
}

// NewFunction allocates a function backed by fn.
func (i *Isolate) NewFunction(name string, fn NativeFunc) (Value, error) {
	if fn == nil {
		return Value{}, errors.InvalidInput(errors.PhaseCall, "nil native function")
	}
	return i.alloc(&Object{kind: KindFunction, fn: &Function{Name: name, Native: fn}})
}

// StringOf returns the contents of a string value.
func (i *Isolate) StringOf(v Value) (string, error) {
	o, err := i.objectOf(v, KindString, "string")
	if err != nil {
		return "", err
	}
	return o.str, nil
}

// FunctionName returns the name a function was created with.
func (i *Isolate) FunctionName(v Value) (string, error) {
	o, err := i.objectOf(v, KindFunction, "function")
	if err != nil {
		return "", err
	}
	return o.fn.Name, nil
}

// Get reads a property. Missing properties read as undefined.
func (i *Isolate) Get(obj Value, key string) (Value, error) {
	o, err := i.object(obj, key)
	if err != nil {
		return Value{}, err
	}
	if o.kind == KindArray && key == "length" {
		return Number(float64(len(o.elems))), nil
	}
	if v, ok := o.props[key]; ok {
		return v, nil
	}
	return Undefined(), nil
}

// Set writes a property.
func (i *Isolate) Set(obj Value, key string, val Value) error {
	if i.HasException() {
		return errors.ErrThrow
	}
	o, err := i.object(obj, key)
	if err != nil {
		return err
	}
	if o.kind == KindString {
		return errors.TypeMismatch(errors.PhaseCall, []string{key}, "object", "string")
	}
	if val.IsEmpty() {
		val = Undefined()
	}
	o.set(key, val)
	return nil
}

// Keys returns own property names in insertion order.
func (i *Isolate) Keys(obj Value) ([]string, error) {
	o, err := i.object(obj, "keys")
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(o.keys))
	return append(keys, o.keys...), nil
}

// Len returns the length of an array, string, or buffer.
func (i *Isolate) Len(v Value) (int, error) {
	o, err := i.object(v, "length")
	if err != nil {
		return 0, err
	}
	switch o.kind {
	case KindArray:
		return len(o.elems), nil
	case KindString:
		return len(o.str), nil
	case KindBuffer:
		r, ok := i.buffers.Get(o.buffer)
		if !ok {
			return 0, errors.NotFound(errors.PhaseMemory, "buffer", strconv.FormatUint(uint64(o.buffer), 10))
		}
		return int(r.length), nil
	}
	return 0, errors.TypeMismatch(errors.PhaseCall, []string{"length"}, "array", o.kind.String())
}

// Index reads element n of an array.
func (i *Isolate) Index(arr Value, n int) (Value, error) {
	o, err := i.objectOf(arr, KindArray, "array")
	if err != nil {
		return Value{}, err
	}
	if n < 0 || n >= len(o.elems) {
		return Value{}, errors.OutOfBounds(errors.PhaseCall, []string{"[" + strconv.Itoa(n) + "]"}, n, len(o.elems))
	}
	return o.elems[n], nil
}

// SetIndex writes element n of an array. n may equal the length, which
// appends.
func (i *Isolate) SetIndex(arr Value, n int, val Value) error {
	if i.HasException() {
		return errors.ErrThrow
	}
	o, err := i.objectOf(arr, KindArray, "array")
	if err != nil {
		return err
	}
	if val.IsEmpty() {
		val = Undefined()
	}
	switch {
	case n >= 0 && n < len(o.elems):
		o.elems[n] = val
	case n == len(o.elems):
		o.elems = append(o.elems, val)
	default:
		return errors.OutOfBounds(errors.PhaseCall, []string{"[" + strconv.Itoa(n) + "]"}, n, len(o.elems))
	}
	return nil
}

// Push appends to an array.
func (i *Isolate) Push(arr Value, val Value) error {
	n, err := i.Len(arr)
	if err != nil {
		return err
	}
	return i.SetIndex(arr, n, val)
}

// Internal returns the Go value attached to an object.
func (i *Isolate) Internal(v Value) (any, error) {
	o, err := i.object(v, "internal")
	if err != nil {
		return nil, err
	}
	return o.internal, nil
}

// SetInternal attaches a Go value to an object. The value lives until the
// isolate closes; values implementing heap.Dropper are dropped then.
func (i *Isolate) SetInternal(v Value, x any) error {
	o, err := i.object(v, "internal")
	if err != nil {
		return err
	}
	o.internal = x
	return nil
}

// Drop runs the internal value's Drop method when the heap closes.
func (o *Object) Drop() {
	if d, ok := o.internal.(interface{ Drop() }); ok {
		d.Drop()
	}
}

// Throw makes v the pending exception and returns errors.ErrThrow.
func (i *Isolate) Throw(v Value) error {
	if v.IsEmpty() {
		v = Undefined()
	}
	i.exception = v
	return errors.ErrThrow
}

// ThrowError allocates an error object and throws it.
func (i *Isolate) ThrowError(name, message string) error {
	if i.HasException() {
		return errors.ErrThrow
	}
	ev, err := i.NewError(name, message)
	if err != nil {
		return err
	}
	return i.Throw(ev)
}

// HasException reports whether an exception is pending.
func (i *Isolate) HasException() bool { return !i.exception.IsEmpty() }

// TakeException clears and returns the pending exception.
func (i *Isolate) TakeException() (Value, bool) {
	v := i.exception
	i.exception = Value{}
	return v, !v.IsEmpty()
}

// Describe renders v for diagnostics: strings verbatim, errors as
// "name: message", primitives by value.
func (i *Isolate) Describe(v Value) string {
	switch v.kind {
	case KindEmpty, KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindBoolean:
		return strconv.FormatBool(v.Bool())
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindString:
		s, _ := i.StringOf(v)
		return s
	case KindError:
		name, _ := i.Get(v, "name")
		msg, _ := i.Get(v, "message")
		return i.Describe(name) + ": " + i.Describe(msg)
	case KindFunction:
		n, _ := i.FunctionName(v)
		return "function " + n
	}
	return "[" + v.kind.String() + "]"
}

// Call invokes fn with receiver this. On failure the exception is left
// pending and errors.ErrThrow is returned.
func (i *Isolate) Call(fn, this Value, args []Value) (Value, error) {
	return i.invoke(fn, this, args, false)
}

// Construct invokes fn as a constructor with a fresh object receiver.
func (i *Isolate) Construct(fn Value, args []Value) (Value, error) {
	this, err := i.NewObject()
	if err != nil {
		return Value{}, err
	}
	return i.invoke(fn, this, args, true)
}

func (i *Isolate) invoke(fn, this Value, args []Value, construct bool) (Value, error) {
	if i.HasException() {
		return Value{}, errors.ErrThrow
	}
	o, err := i.objectOf(fn, KindFunction, "callee")
	if err != nil {
		return Value{}, err
	}
	if i.depth >= i.maxDepth {
		return Value{}, i.ThrowError("RangeError", "Maximum call stack size exceeded")
	}
	if this.IsEmpty() {
		this = Undefined()
	}

	info := &CallInfo{iso: i, callee: fn, this: this, args: args, construct: construct, ret: Undefined()}
	i.depth++
	err = o.fn.Native(info)
	i.depth--

	if err != nil {
		if !stderrors.Is(err, errors.ErrThrow) && !i.HasException() {
			if terr := i.ThrowError("Error", err.Error()); !stderrors.Is(terr, errors.ErrThrow) {
				return Value{}, terr
			}
		}
		debugf("call %s threw: %s", o.fn.Name, i.Describe(i.exception))
		return Value{}, errors.ErrThrow
	}
	if i.HasException() {
		return Value{}, errors.ErrThrow
	}
	if construct && info.ret.kind.IsPrimitive() {
		return this, nil
	}
	return info.ret, nil
}
