package engine

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/errors"
)

type hostFunc struct {
	name  string
	fn    RootID
	arity int
}

// Trap is returned from guest calls when a native function imported by
// the guest threw.
type Trap struct {
	Function string
	Message  string
}

func (t *Trap) Error() string {
	return fmt.Sprintf("native %s threw: %s", t.Function, t.Message)
}

// Expose makes fn importable by guests as bridge.<name> with arity f64
// parameters and one f64 result. Functions must be exposed before the
// first guest is loaded.
func (i *Isolate) Expose(name string, arity int, fn Value) error {
	if i.hostMod != nil {
		return errors.Registration(errors.PhaseHost, HostModuleName, name,
			stderrors.New("host module already instantiated"))
	}
	if arity < 0 {
		return errors.InvalidInput(errors.PhaseHost, "negative arity")
	}
	if fn.kind != KindFunction {
		return errors.TypeMismatch(errors.PhaseHost, []string{name}, "function", fn.kind.String())
	}
	for _, hf := range i.hostFuncs {
		if hf.name == name {
			return errors.Registration(errors.PhaseHost, HostModuleName, name,
				stderrors.New("duplicate function"))
		}
	}
	root, err := i.Persist(fn)
	if err != nil {
		return err
	}
	i.hostFuncs = append(i.hostFuncs, hostFunc{name: name, arity: arity, fn: root})
	return nil
}

// Unexpose withdraws a function exposed by Expose and drops its root. It
// reports false when name is unknown or guests are already loaded.
func (i *Isolate) Unexpose(name string) bool {
	if i.hostMod != nil {
		return false
	}
	for k, hf := range i.hostFuncs {
		if hf.name == name {
			i.Unpersist(hf.fn)
			i.hostFuncs = append(i.hostFuncs[:k], i.hostFuncs[k+1:]...)
			return true
		}
	}
	return false
}

func (i *Isolate) instantiateHost(ctx context.Context) error {
	if i.hostMod != nil {
		return nil
	}
	b := i.runtime.NewHostModuleBuilder(HostModuleName)
	for _, hf := range i.hostFuncs {
		hf := hf
		params := make([]api.ValueType, hf.arity)
		for k := range params {
			params[k] = api.ValueTypeF64
		}
		b.NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(func(_ context.Context, _ api.Module, stack []uint64) {
				i.callFromGuest(hf, stack)
			}), params, []api.ValueType{api.ValueTypeF64}).
			WithName(hf.name).
			Export(hf.name)
	}
	mod, err := b.Instantiate(ctx)
	if err != nil {
		return errors.Registration(errors.PhaseHost, HostModuleName, "*", err)
	}
	i.hostMod = mod
	i.log.Debug("host module instantiated", zap.Int("functions", len(i.hostFuncs)))
	return nil
}

func (i *Isolate) callFromGuest(hf hostFunc, stack []uint64) {
	fn, ok := i.Root(hf.fn)
	if !ok {
		panic(i.setTrap(&Trap{Function: hf.name, Message: "function released"}))
	}

	tok := i.EnterScope()
	defer i.ExitScope(tok)

	args := make([]Value, hf.arity)
	for k := range args {
		args[k] = Number(api.DecodeF64(stack[k]))
	}
	ret, err := i.Call(fn, Undefined(), args)
	if err != nil {
		msg := err.Error()
		if exc, ok := i.TakeException(); ok {
			msg = i.Describe(exc)
		}
		panic(i.setTrap(&Trap{Function: hf.name, Message: msg}))
	}
	stack[0] = api.EncodeF64(ret.Float())
}

func (i *Isolate) setTrap(t *Trap) error {
	i.trap = t
	return t
}

// Guest is an instantiated wasm module that shares the isolate's linear
// memory and can import exposed native functions.
type Guest struct {
	iso  *Isolate
	mod  api.Module
	name string
}

// LoadGuest compiles and instantiates a guest module. The first load
// seals the set of exposed functions.
func (i *Isolate) LoadGuest(ctx context.Context, name string, wasm []byte) (*Guest, error) {
	var g *Guest
	err := i.Do(ctx, func() error {
		if _, ok := i.guests[name]; ok {
			return errors.Registration(errors.PhaseLoad, "guest", name, stderrors.New("already loaded"))
		}
		if err := i.instantiateHost(ctx); err != nil {
			return err
		}
		compiled, err := i.runtime.CompileModule(ctx, wasm)
		if err != nil {
			return errors.Load("compile guest "+name, err)
		}
		i.trap = nil
		mod, err := i.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(name))
		if err != nil {
			return errors.Load("instantiate guest "+name, i.guestErr(err))
		}
		g = &Guest{iso: i, mod: mod, name: name}
		i.guests[name] = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	i.log.Debug("guest loaded", zap.String("guest", name))
	return g, nil
}

// Guest returns a loaded guest by name.
func (i *Isolate) Guest(name string) (*Guest, bool) {
	g, ok := i.guests[name]
	return g, ok
}

func (i *Isolate) guestErr(err error) error {
	if t := i.trap; t != nil {
		i.trap = nil
		return t
	}
	return err
}

// Name returns the guest's module name.
func (g *Guest) Name() string { return g.name }

// Call invokes an exported guest function on the isolate loop.
func (g *Guest) Call(ctx context.Context, fn string, params ...uint64) ([]uint64, error) {
	var results []uint64
	err := g.iso.Do(ctx, func() error {
		f := g.mod.ExportedFunction(fn)
		if f == nil {
			return errors.NotFound(errors.PhaseCall, "guest export", g.name+"."+fn)
		}
		g.iso.trap = nil
		res, err := f.Call(ctx, params...)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", g.name, fn, g.iso.guestErr(err))
		}
		results = res
		return nil
	})
	return results, err
}

// Close closes the guest module.
func (g *Guest) Close(ctx context.Context) error {
	return g.iso.Do(ctx, func() error {
		delete(g.iso.guests, g.name)
		return g.mod.Close(ctx)
	})
}
