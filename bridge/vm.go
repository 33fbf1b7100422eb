package bridge

import (
	stderrors "errors"

	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/errors"
)

// Context is implemented by every context that owns a scope: *VM,
// *ModuleContext, *CallContext and the task completion context.
type Context interface {
	Env() *VM
}

// VM exposes the capabilities available inside one scope. Every
// constructor returns (Handle, error) and fails with errors.ErrThrow while
// an exception is pending.
type VM struct {
	scope *Scope
}

// NewVM wraps an entered scope.
func NewVM(s *Scope) VM { return VM{scope: s} }

// Env returns vm itself.
func (vm *VM) Env() *VM { return vm }

// Scope returns the scope the VM is bound to.
func (vm *VM) Scope() *Scope { return vm.scope }

// Isolate returns the bound isolate.
func (vm *VM) Isolate() *engine.Isolate { return vm.scope.iso }

// VMConfined marks VM and the contexts embedding it as loop-only.
func (*VM) VMConfined() {}

func (vm *VM) ready() error {
	if err := vm.scope.check(); err != nil {
		return err
	}
	if vm.scope.iso.HasException() {
		return errors.ErrThrow
	}
	return nil
}

func (vm *VM) root(v engine.Value, err error) (engine.Handle, error) {
	if err != nil {
		return engine.Handle{}, err
	}
	return vm.scope.handle(v)
}

func (vm *VM) value(h engine.Handle) (engine.Value, error) {
	if err := vm.scope.check(); err != nil {
		return engine.Value{}, err
	}
	return vm.scope.iso.Resolve(h)
}

func (vm *VM) values(hs []engine.Handle) ([]engine.Value, error) {
	out := make([]engine.Value, len(hs))
	for k, h := range hs {
		v, err := vm.value(h)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func (vm *VM) primitive(v engine.Value) (engine.Handle, error) {
	if err := vm.ready(); err != nil {
		return engine.Handle{}, err
	}
	return vm.scope.handle(v)
}

func (vm *VM) Undefined() (engine.Handle, error) { return vm.primitive(engine.Undefined()) }

func (vm *VM) Null() (engine.Handle, error) { return vm.primitive(engine.Null()) }

func (vm *VM) Boolean(b bool) (engine.Handle, error) { return vm.primitive(engine.Bool(b)) }

func (vm *VM) Number(f float64) (engine.Handle, error) { return vm.primitive(engine.Number(f)) }

func (vm *VM) String(s string) (engine.Handle, error) {
	if err := vm.ready(); err != nil {
		return engine.Handle{}, err
	}
	return vm.root(vm.scope.iso.NewString(s))
}

func (vm *VM) EmptyObject() (engine.Handle, error) {
	if err := vm.ready(); err != nil {
		return engine.Handle{}, err
	}
	return vm.root(vm.scope.iso.NewObject())
}

func (vm *VM) EmptyArray() (engine.Handle, error) {
	if err := vm.ready(); err != nil {
		return engine.Handle{}, err
	}
	return vm.root(vm.scope.iso.NewArray(0))
}

// ArrayBuffer allocates a zeroed binary buffer of size bytes.
func (vm *VM) ArrayBuffer(size uint32) (engine.Handle, error) {
	if err := vm.ready(); err != nil {
		return engine.Handle{}, err
	}
	return vm.root(vm.scope.iso.NewBuffer(size))
}

// Error allocates an error object without throwing it.
func (vm *VM) Error(name, message string) (engine.Handle, error) {
	if err := vm.ready(); err != nil {
		return engine.Handle{}, err
	}
	return vm.root(vm.scope.iso.NewError(name, message))
}

// Function wraps f as a VM function.
func (vm *VM) Function(name string, f Function) (engine.Handle, error) {
	if err := vm.ready(); err != nil {
		return engine.Handle{}, err
	}
	if f == nil {
		return engine.Handle{}, errors.InvalidInput(errors.PhaseCall, "nil function")
	}
	return vm.root(vm.scope.iso.NewFunction(name, native(f)))
}

// Kind returns the kind of h, or KindEmpty if h cannot be resolved.
func (vm *VM) Kind(h engine.Handle) engine.Kind {
	v, err := vm.value(h)
	if err != nil {
		return engine.KindEmpty
	}
	return v.Kind()
}

func (vm *VM) typed(h engine.Handle, want engine.Kind) (engine.Value, error) {
	v, err := vm.value(h)
	if err != nil {
		return engine.Value{}, err
	}
	if v.Kind() != want {
		return engine.Value{}, errors.TypeMismatch(errors.PhaseCall, nil, want.String(), v.Kind().String())
	}
	return v, nil
}

func (vm *VM) NumberOf(h engine.Handle) (float64, error) {
	v, err := vm.typed(h, engine.KindNumber)
	return v.Float(), err
}

func (vm *VM) BoolOf(h engine.Handle) (bool, error) {
	v, err := vm.typed(h, engine.KindBoolean)
	return v.Bool(), err
}

func (vm *VM) StringOf(h engine.Handle) (string, error) {
	v, err := vm.typed(h, engine.KindString)
	if err != nil {
		return "", err
	}
	return vm.scope.iso.StringOf(v)
}

// Describe renders h for diagnostics.
func (vm *VM) Describe(h engine.Handle) string {
	v, err := vm.value(h)
	if err != nil {
		return err.Error()
	}
	return vm.scope.iso.Describe(v)
}

func (vm *VM) Get(obj engine.Handle, key string) (engine.Handle, error) {
	v, err := vm.value(obj)
	if err != nil {
		return engine.Handle{}, err
	}
	return vm.root(vm.scope.iso.Get(v, key))
}

func (vm *VM) Set(obj engine.Handle, key string, val engine.Handle) error {
	if err := vm.ready(); err != nil {
		return err
	}
	o, err := vm.value(obj)
	if err != nil {
		return err
	}
	v, err := vm.value(val)
	if err != nil {
		return err
	}
	return vm.scope.iso.Set(o, key, v)
}

func (vm *VM) Keys(obj engine.Handle) ([]string, error) {
	v, err := vm.value(obj)
	if err != nil {
		return nil, err
	}
	return vm.scope.iso.Keys(v)
}

// Length returns the length of an array, string, or buffer.
func (vm *VM) Length(h engine.Handle) (int, error) {
	v, err := vm.value(h)
	if err != nil {
		return 0, err
	}
	return vm.scope.iso.Len(v)
}

func (vm *VM) Index(arr engine.Handle, i int) (engine.Handle, error) {
	v, err := vm.value(arr)
	if err != nil {
		return engine.Handle{}, err
	}
	return vm.root(vm.scope.iso.Index(v, i))
}

func (vm *VM) Push(arr, val engine.Handle) error {
	if err := vm.ready(); err != nil {
		return err
	}
	a, err := vm.value(arr)
	if err != nil {
		return err
	}
	v, err := vm.value(val)
	if err != nil {
		return err
	}
	return vm.scope.iso.Push(a, v)
}

// Internal returns the Go value attached to an object.
func (vm *VM) Internal(h engine.Handle) (any, error) {
	v, err := vm.value(h)
	if err != nil {
		return nil, err
	}
	return vm.scope.iso.Internal(v)
}

// Call invokes fn. A thrown exception stays pending and errors.ErrThrow is
// returned.
func (vm *VM) Call(fn, this engine.Handle, args ...engine.Handle) (engine.Handle, error) {
	if err := vm.ready(); err != nil {
		return engine.Handle{}, err
	}
	f, err := vm.value(fn)
	if err != nil {
		return engine.Handle{}, err
	}
	t := engine.Undefined()
	if !this.IsEmpty() {
		if t, err = vm.value(this); err != nil {
			return engine.Handle{}, err
		}
	}
	av, err := vm.values(args)
	if err != nil {
		return engine.Handle{}, err
	}
	return vm.root(vm.scope.iso.Call(f, t, av))
}

// Construct invokes fn as a constructor.
func (vm *VM) Construct(fn engine.Handle, args ...engine.Handle) (engine.Handle, error) {
	if err := vm.ready(); err != nil {
		return engine.Handle{}, err
	}
	f, err := vm.value(fn)
	if err != nil {
		return engine.Handle{}, err
	}
	av, err := vm.values(args)
	if err != nil {
		return engine.Handle{}, err
	}
	return vm.root(vm.scope.iso.Construct(f, av))
}

// Throw makes h the pending exception and returns errors.ErrThrow.
func (vm *VM) Throw(h engine.Handle) error {
	v, err := vm.value(h)
	if err != nil {
		return err
	}
	return vm.scope.iso.Throw(v)
}

// ThrowError allocates an error object and throws it.
func (vm *VM) ThrowError(name, message string) error {
	if err := vm.scope.check(); err != nil {
		return err
	}
	return vm.scope.iso.ThrowError(name, message)
}

func (vm *VM) ThrowTypeError(message string) error {
	return vm.ThrowError("TypeError", message)
}

func (vm *VM) ThrowRangeError(message string) error {
	return vm.ThrowError("RangeError", message)
}

// ThrowGo throws err as a VM error unless it already signals a pending
// exception.
func (vm *VM) ThrowGo(err error) error {
	if stderrors.Is(err, errors.ErrThrow) || vm.scope.iso.HasException() {
		return errors.ErrThrow
	}
	return vm.ThrowError(errorName(err), err.Error())
}

// TakeException clears the pending exception and roots it in this scope.
func (vm *VM) TakeException() (engine.Handle, bool) {
	v, ok := vm.scope.iso.TakeException()
	if !ok {
		return engine.Handle{}, false
	}
	h, err := vm.scope.handle(v)
	if err != nil {
		vm.scope.iso.Throw(v)
		return engine.Handle{}, false
	}
	return h, true
}

// Reenter deactivates the scope while fn runs, for calls back into code
// that manages its own scopes.
func (vm *VM) Reenter(fn func() error) error {
	vm.scope.Deactivate()
	defer vm.scope.Activate()
	return fn()
}

func errorName(err error) string {
	var e *errors.Error
	if !stderrors.As(err, &e) {
		return "Error"
	}
	switch e.Kind {
	case errors.KindTypeMismatch, errors.KindNotTransferable:
		return "TypeError"
	case errors.KindOutOfBounds:
		return "RangeError"
	}
	return "Error"
}
