package bridge

import (
	"context"
	stderrors "errors"
	"sort"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/errors"
)

type modulesKey struct{}

// Module is an initialized native module: its exports are rooted for the
// life of the isolate.
type Module struct {
	exports map[string]Root
	name    string
	order   []string
	exposed []string
}

// Name returns the module name.
func (m *Module) Name() string { return m.name }

// Export returns the root of an exported value.
func (m *Module) Export(name string) (Root, bool) {
	r, ok := m.exports[name]
	return r, ok
}

// Exports returns export names in definition order.
func (m *Module) Exports() []string {
	return append([]string(nil), m.order...)
}

// Modules is the per-isolate registry of initialized modules.
type Modules struct {
	byName map[string]*Module
}

// ModulesOf returns the module registry of iso.
func ModulesOf(iso *engine.Isolate) *Modules {
	return iso.Slot(modulesKey{}, func() any {
		return &Modules{byName: make(map[string]*Module)}
	}).(*Modules)
}

// Lookup returns an initialized module.
func (r *Modules) Lookup(name string) (*Module, bool) {
	m, ok := r.byName[name]
	return m, ok
}

// Names returns every module name, sorted.
func (r *Modules) Names() []string {
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ModuleContext is the context of module initialization.
type ModuleContext struct {
	VM
	module *Module
}

// InitModule runs init on the isolate loop inside a fresh scope and
// registers the module's exports. A module name can be initialized once
// per isolate. If init throws, the exception is returned as *Exception.
func InitModule(ctx context.Context, iso *engine.Isolate, name string, init func(*ModuleContext) error) error {
	err := iso.Do(ctx, func() error {
		reg := ModulesOf(iso)
		if _, ok := reg.byName[name]; ok {
			return errors.Registration(errors.PhaseLoad, "module", name, stderrors.New("already initialized"))
		}
		m := &Module{name: name, exports: make(map[string]Root)}
		err := With(iso, func(s *Scope) error {
			mc := &ModuleContext{VM: NewVM(s), module: m}
			return exceptionOf(&mc.VM, init(mc))
		})
		if err != nil {
			m.discard(iso)
			return err
		}
		reg.byName[name] = m
		return nil
	})
	if err != nil {
		Logger().Debug("module init failed", zap.String("module", name), zap.Error(err))
		return err
	}
	Logger().Debug("module initialized", zap.String("module", name))
	return nil
}

// discard drops what a failed init registered, so the name can be
// initialized again.
func (m *Module) discard(iso *engine.Isolate) {
	for _, name := range m.exposed {
		iso.Unexpose(name)
	}
	for _, r := range m.exports {
		ReleaseRoot(iso, r)
	}
	m.exposed = nil
	m.exports = nil
	m.order = nil
}

// Name returns the module being initialized.
func (mc *ModuleContext) Name() string { return mc.module.name }

// ExportValue exports h under name.
func (mc *ModuleContext) ExportValue(name string, h engine.Handle) error {
	if _, ok := mc.module.exports[name]; ok {
		return errors.Registration(errors.PhaseLoad, mc.module.name, name, stderrors.New("duplicate export"))
	}
	r, err := mc.Persist(h)
	if err != nil {
		return err
	}
	mc.module.exports[name] = r
	mc.module.order = append(mc.module.order, name)
	return nil
}

// ExportFunction exports a native function.
func (mc *ModuleContext) ExportFunction(name string, f Function) error {
	h, err := mc.Function(name, f)
	if err != nil {
		return err
	}
	return mc.ExportValue(name, h)
}

// ExportGuestFunction exports a native function that guest wasm modules
// can also import as bridge.<name>. Guests pass arity numbers and receive
// the numeric result.
func (mc *ModuleContext) ExportGuestFunction(name string, arity int, f Function) error {
	h, err := mc.Function(name, f)
	if err != nil {
		return err
	}
	v, err := mc.value(h)
	if err != nil {
		return err
	}
	if err := mc.Isolate().Expose(name, arity, v); err != nil {
		return err
	}
	mc.module.exposed = append(mc.module.exposed, name)
	return mc.ExportValue(name, h)
}

// Exports returns the names exported so far.
func (mc *ModuleContext) Exports() []string { return mc.module.Exports() }
