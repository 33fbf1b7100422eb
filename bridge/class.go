package bridge

import (
	stderrors "errors"
	"reflect"
	"sort"

	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/errors"
)

type classesKey struct{}

// Class describes a native class exported to the VM.
type Class struct {
	GoType      reflect.Type
	Name        string
	Methods     []string
	Constructor Root
}

// ClassRegistry records the classes defined on one isolate. It is created
// on first use and dropped with the isolate.
type ClassRegistry struct {
	byType map[reflect.Type]*Class
	byName map[string]*Class
}

// Classes returns the class registry of iso.
func Classes(iso *engine.Isolate) *ClassRegistry {
	return iso.Slot(classesKey{}, func() any {
		return &ClassRegistry{
			byType: make(map[reflect.Type]*Class),
			byName: make(map[string]*Class),
		}
	}).(*ClassRegistry)
}

// Lookup returns the class whose instances carry values of type t.
func (r *ClassRegistry) Lookup(t reflect.Type) (*Class, bool) {
	c, ok := r.byType[t]
	return c, ok
}

// ByName returns a class by its VM name.
func (r *ClassRegistry) ByName(name string) (*Class, bool) {
	c, ok := r.byName[name]
	return c, ok
}

// Names returns every class name, sorted.
func (r *ClassRegistry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of classes.
func (r *ClassRegistry) Len() int { return len(r.byName) }

// Method is a class method receiving the instance's Go value.
type Method[T any] func(cx *CallContext, self T) (engine.Handle, error)

// ExportClass defines a class named name whose instances carry a T built
// by ctor, exports its constructor from the module, and records it in the
// isolate's class registry. Calling the constructor without new throws a
// TypeError.
func ExportClass[T any](mc *ModuleContext, name string, ctor func(*CallContext) (T, error), methods map[string]Method[T]) error {
	reg := Classes(mc.Isolate())
	goType := reflect.TypeOf((*T)(nil)).Elem()
	if _, ok := reg.byName[name]; ok {
		return errors.Registration(errors.PhaseLoad, "class", name, stderrors.New("duplicate class"))
	}
	if _, ok := reg.byType[goType]; ok {
		return errors.Registration(errors.PhaseLoad, "class", name,
			stderrors.New("type "+goType.String()+" already bound to a class"))
	}

	names := make([]string, 0, len(methods))
	for n := range methods {
		names = append(names, n)
	}
	sort.Strings(names)

	roots := make([]Root, len(names))
	for k, n := range names {
		m := methods[n]
		h, err := mc.Function(n, func(cx *CallContext) (engine.Handle, error) {
			this, err := cx.This()
			if err != nil {
				return engine.Handle{}, err
			}
			self, err := Unwrap[T](cx, this)
			if err != nil {
				return engine.Handle{}, err
			}
			return m(cx, self)
		})
		if err != nil {
			return err
		}
		if roots[k], err = mc.Persist(h); err != nil {
			return err
		}
	}

	ctorH, err := mc.Function(name, func(cx *CallContext) (engine.Handle, error) {
		if cx.Kind() != CallKindConstruct {
			return engine.Handle{}, cx.ThrowTypeError("class constructor " + name + " cannot be invoked without 'new'")
		}
		val, err := ctor(cx)
		if err != nil {
			return engine.Handle{}, err
		}
		this, err := cx.This()
		if err != nil {
			return engine.Handle{}, err
		}
		tv, err := cx.value(this)
		if err != nil {
			return engine.Handle{}, err
		}
		if err := cx.Isolate().SetInternal(tv, val); err != nil {
			return engine.Handle{}, err
		}
		for k, n := range names {
			fn, err := cx.Local(roots[k])
			if err != nil {
				return engine.Handle{}, err
			}
			if err := cx.Set(this, n, fn); err != nil {
				return engine.Handle{}, err
			}
		}
		return this, nil
	})
	if err != nil {
		return err
	}
	if err := mc.ExportValue(name, ctorH); err != nil {
		return err
	}

	ctorRoot, _ := mc.module.Export(name)
	c := &Class{GoType: goType, Name: name, Methods: names, Constructor: ctorRoot}
	reg.byName[name] = c
	reg.byType[goType] = c
	return nil
}

// Unwrap returns the Go value carried by a class instance. It throws a
// TypeError if h is not an instance carrying a T.
func Unwrap[T any](cx Context, h engine.Handle) (T, error) {
	var zero T
	vm := cx.Env()
	internal, err := vm.Internal(h)
	if err != nil {
		return zero, vm.ThrowGo(err)
	}
	self, ok := internal.(T)
	if !ok {
		return zero, vm.ThrowTypeError("receiver is not an instance of " + reflect.TypeOf((*T)(nil)).Elem().String())
	}
	return self, nil
}
