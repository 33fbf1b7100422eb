package runtime

import (
	"context"
	stderrors "errors"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/bridge"
	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/task"
)

// Options configures a Runtime.
type Options struct {
	Engine engine.Config
	Tasks  task.Options
}

type moduleInit struct {
	init func(*bridge.ModuleContext) error
	name string
}

type Runtime struct {
	engine   *engine.Engine
	hosts    *HostRegistry
	isolates map[uint32]*Isolate
	modules  []moduleInit
	opts     Options
	mu       sync.Mutex
	closed   bool
}

func New(ctx context.Context, opts *Options) (*Runtime, error) {
	r := &Runtime{
		hosts:    NewHostRegistry(),
		isolates: make(map[uint32]*Isolate),
	}
	if opts != nil {
		r.opts = *opts
	}
	if r.opts.Tasks.MaxWorkers < 0 {
		return nil, errors.InvalidInput(errors.PhaseConfig, "task workers must not be negative")
	}

	eng, err := engine.NewEngine(&r.opts.Engine)
	if err != nil {
		return nil, errors.Load("create engine", err)
	}
	r.engine = eng
	r.opts.Engine = eng.Config()
	return r, nil
}

// Options returns the effective options.
func (r *Runtime) Options() Options { return r.opts }

// Close closes every open isolate and releases the engine.
func (r *Runtime) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	open := make([]*Isolate, 0, len(r.isolates))
	for _, iso := range r.isolates {
		open = append(open, iso)
	}
	r.mu.Unlock()

	var err error
	for _, iso := range open {
		err = multierr.Append(err, iso.Close(ctx))
	}
	return multierr.Append(err, r.engine.Close(ctx))
}

// RegisterHost registers all exported methods of h as functions of the
// module h.Namespace(). Must be called before NewIsolate.
// Method names are converted from PascalCase to kebab-case (GetValue -> get-value).
func (r *Runtime) RegisterHost(h Host) error {
	return r.hosts.RegisterHost(h)
}

func (r *Runtime) RegisterFunc(namespace, name string, fn any) error {
	return r.hosts.RegisterFunc(namespace, name, fn)
}

func (r *Runtime) RegisterGuestFunc(namespace, name string, fn any) error {
	return r.hosts.RegisterGuestFunc(namespace, name, fn)
}

func (r *Runtime) Hosts() *HostRegistry {
	return r.hosts
}

// RegisterModule adds a native module initialized on every new isolate,
// after the host namespaces, in registration order.
func (r *Runtime) RegisterModule(name string, init func(*bridge.ModuleContext) error) error {
	if name == "" {
		return errors.InvalidInput(errors.PhaseLoad, "module name cannot be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.modules {
		if m.name == name {
			return errors.Registration(errors.PhaseLoad, "module", name, stderrors.New("already registered"))
		}
	}
	r.modules = append(r.modules, moduleInit{name: name, init: init})
	return nil
}

// NewIsolate creates an isolate with a task scheduler, binds the host
// namespaces and initializes the registered modules.
func (r *Runtime) NewIsolate(ctx context.Context) (*Isolate, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, errors.Closed(errors.PhaseLoad, "runtime")
	}
	modules := append([]moduleInit(nil), r.modules...)
	r.mu.Unlock()

	eiso, err := r.engine.NewIsolate(ctx)
	if err != nil {
		return nil, err
	}
	sched, err := task.Install(eiso, r.opts.Tasks)
	if err != nil {
		return nil, multierr.Append(err, eiso.Close(ctx))
	}

	if err := r.hosts.Bind(ctx, eiso); err != nil {
		return nil, multierr.Append(errors.Load("bind hosts", err), eiso.Close(ctx))
	}
	for _, m := range modules {
		if err := bridge.InitModule(ctx, eiso, m.name, m.init); err != nil {
			return nil, multierr.Append(errors.Load("init module "+m.name, err), eiso.Close(ctx))
		}
	}

	iso := &Isolate{rt: r, iso: eiso, sched: sched}
	r.mu.Lock()
	r.isolates[eiso.ID()] = iso
	r.mu.Unlock()

	Logger().Debug("isolate ready",
		zap.Uint32("isolate", eiso.ID()),
		zap.Int("hosts", len(r.hosts.Namespaces())),
		zap.Int("modules", len(modules)))
	return iso, nil
}

func (r *Runtime) forget(id uint32) {
	r.mu.Lock()
	delete(r.isolates, id)
	r.mu.Unlock()
}
