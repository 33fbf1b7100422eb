package engine

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/heap"
	"github.com/wippyai/wasm-bridge/wasm"
)

const (
	// HeapModuleName is the module that exports isolate linear memory.
	HeapModuleName = "heap"
	// HeapMemoryName is the export name of that memory.
	HeapMemoryName = "memory"
	// HostModuleName is the module guests import native functions from.
	HostModuleName = "bridge"

	pageSize        = wasm.PageSize
	defaultMaxDepth = 512
)

// Config holds engine configuration options.
type Config struct {
	// CacheDir persists compiled modules between runs. Empty keeps the
	// cache in memory.
	CacheDir string
	// MemoryLimitPages caps isolate linear memory (64KiB pages) and
	// reserves that capacity up front, so growth never moves memory that
	// is loaned. 0 uses the wazero default of 65536 pages (4GiB) without
	// a reservation, and memory cannot grow while buffers are loaned.
	MemoryLimitPages uint32
	// HeapPages is the initial size of isolate linear memory.
	HeapPages uint32
	// MaxCallDepth bounds native call nesting. 0 uses 512.
	MaxCallDepth int
}

// Engine creates isolates that share a compilation cache.
type Engine struct {
	cache    wazero.CompilationCache
	isolates map[uint32]*Isolate
	cfg      Config
	nextID   atomic.Uint32
	mu       sync.Mutex
	closed   bool
}

// NewEngine creates an engine with the given configuration.
func NewEngine(cfg *Config) (*Engine, error) {
	e := &Engine{isolates: make(map[uint32]*Isolate)}
	if cfg != nil {
		e.cfg = *cfg
	}
	if e.cfg.HeapPages == 0 {
		e.cfg.HeapPages = 1
	}
	if e.cfg.MaxCallDepth == 0 {
		e.cfg.MaxCallDepth = defaultMaxDepth
	}
	if e.cfg.MemoryLimitPages > 0 && e.cfg.HeapPages > e.cfg.MemoryLimitPages {
		return nil, errors.InvalidInput(errors.PhaseConfig, "heap pages exceed memory limit")
	}

	if e.cfg.CacheDir != "" {
		cache, err := wazero.NewCompilationCacheWithDir(e.cfg.CacheDir)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "compilation cache")
		}
		e.cache = cache
	} else {
		e.cache = wazero.NewCompilationCache()
	}
	return e, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// NewIsolate creates an isolate with its own wazero runtime, heap memory,
// and loop goroutine.
func (e *Engine) NewIsolate(ctx context.Context) (*Isolate, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, errors.Closed(errors.PhaseLoad, "engine")
	}
	e.mu.Unlock()

	rc := wazero.NewRuntimeConfig().WithCompilationCache(e.cache)
	if e.cfg.MemoryLimitPages > 0 {
		rc = rc.WithMemoryLimitPages(e.cfg.MemoryLimitPages).WithMemoryCapacityFromMax(true)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, rc)

	mod, err := rt.InstantiateWithConfig(ctx, heapModule(e.cfg.HeapPages, e.cfg.MemoryLimitPages).Encode(),
		wazero.NewModuleConfig().WithName(HeapModuleName))
	if err != nil {
		_ = rt.Close(ctx)
		return nil, errors.Load("instantiate heap module", err)
	}

	id := e.nextID.Add(1)
	log := Logger().With(zap.Uint32("isolate", id))
	iso := &Isolate{
		id:       id,
		engine:   e,
		runtime:  rt,
		heapMod:  mod,
		memory:   mod.ExportedMemory(HeapMemoryName),
		objects:  heap.NewTable[*Object](),
		buffers:  heap.NewTable[bufferRegion](),
		roots:    heap.NewTable[Value](),
		guests:   make(map[string]*Guest),
		slots:    make(map[any]any),
		maxDepth: e.cfg.MaxCallDepth,
		brk:      bufferAlign,
		reserved: e.cfg.MemoryLimitPages > 0,
		log:      log,
	}
	iso.loop = newLoop(log)

	e.mu.Lock()
	e.isolates[id] = iso
	e.mu.Unlock()

	log.Debug("isolate created", zap.Uint32("heap_pages", e.cfg.HeapPages))
	return iso, nil
}

// heapModule is the module that owns an isolate's linear memory. A
// nonzero max bounds it, which lets wazero reserve the capacity.
func heapModule(pages, max uint32) *wasm.Module {
	limits := wasm.Limits{Min: uint64(pages)}
	if max > 0 {
		m := uint64(max)
		limits.Max = &m
	}
	return &wasm.Module{
		Memories: []wasm.MemoryType{{Limits: limits}},
		Exports:  []wasm.Export{{Name: HeapMemoryName, Kind: wasm.KindMemory}},
	}
}

// Close closes every isolate still open and the compilation cache.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	open := make([]*Isolate, 0, len(e.isolates))
	for _, iso := range e.isolates {
		open = append(open, iso)
	}
	e.mu.Unlock()

	var err error
	for _, iso := range open {
		err = multierr.Append(err, iso.Close(ctx))
	}
	return multierr.Append(err, e.cache.Close(ctx))
}

func (e *Engine) forget(id uint32) {
	e.mu.Lock()
	delete(e.isolates, id)
	e.mu.Unlock()
}

// Isolate is one VM instance. All methods except ID, Loop, Slot,
// LookupSlot, Stats and Close must run on the isolate's loop.
type Isolate struct {
	runtime   wazero.Runtime
	heapMod   api.Module
	memory    api.Memory
	engine    *Engine
	loop      *Loop
	log       *zap.Logger
	objects   *heap.Table[*Object]
	buffers   *heap.Table[bufferRegion]
	roots     *heap.Table[Value]
	guests    map[string]*Guest
	slots     map[any]any
	trap      error
	frames    []frame
	slotOrder []any
	hostFuncs []hostFunc
	exception Value
	serial    uint64
	hostMod   api.Module
	maxDepth  int
	depth     int
	pins      int
	brk       uint32
	id        uint32
	slotsMu   sync.Mutex
	reserved  bool
	closed    atomic.Bool
}

// ID identifies the isolate. It is also the arena of its buffer keys.
func (i *Isolate) ID() uint32 { return i.id }

// Loop returns the isolate's loop.
func (i *Isolate) Loop() *Loop { return i.loop }

// Logger returns the isolate-scoped logger.
func (i *Isolate) Logger() *zap.Logger { return i.log }

// Do runs fn on the isolate loop and waits for it.
func (i *Isolate) Do(ctx context.Context, fn func() error) error {
	if i.closed.Load() {
		return errors.Closed(errors.PhaseCall, "isolate")
	}
	return i.loop.Do(ctx, fn)
}

// Slot returns the per-isolate value stored under key, creating it with
// init on first use. Values implementing io.Closer are closed, in reverse
// creation order, when the isolate closes.
func (i *Isolate) Slot(key any, init func() any) any {
	i.slotsMu.Lock()
	defer i.slotsMu.Unlock()
	if v, ok := i.slots[key]; ok {
		return v
	}
	v := init()
	i.slots[key] = v
	i.slotOrder = append(i.slotOrder, key)
	return v
}

// LookupSlot returns the value stored under key without creating it.
func (i *Isolate) LookupSlot(key any) (any, bool) {
	i.slotsMu.Lock()
	defer i.slotsMu.Unlock()
	v, ok := i.slots[key]
	return v, ok
}

// Stats is a snapshot of isolate resource usage.
type Stats struct {
	Objects     int
	Buffers     int
	Roots       int
	ScopeDepth  int
	HeapBytes   uint32
	MemoryBytes uint32
}

// Stats reports resource usage. Scope depth is only exact when called on
// the loop.
func (i *Isolate) Stats() Stats {
	s := Stats{
		Objects: i.objects.Len(),
		Buffers: i.buffers.Len(),
		Roots:   i.roots.Len(),
	}
	if i.loop.OnLoop() {
		s.ScopeDepth = len(i.frames)
		s.HeapBytes = i.brk
	}
	if !i.closed.Load() {
		s.MemoryBytes = i.memory.Size()
	}
	return s
}

// Close stops the loop, closes slots and guests, and releases the wazero
// runtime. It is safe to call more than once.
func (i *Isolate) Close(ctx context.Context) error {
	if !i.closed.CompareAndSwap(false, true) {
		return nil
	}
	i.loop.Close()

	var err error
	i.slotsMu.Lock()
	for k := len(i.slotOrder) - 1; k >= 0; k-- {
		if c, ok := i.slots[i.slotOrder[k]].(io.Closer); ok {
			err = multierr.Append(err, c.Close())
		}
	}
	i.slots = nil
	i.slotOrder = nil
	i.slotsMu.Unlock()

	err = multierr.Append(err, i.objects.Close())
	err = multierr.Append(err, i.buffers.Close())
	err = multierr.Append(err, i.roots.Close())
	err = multierr.Append(err, i.runtime.Close(ctx))

	i.engine.forget(i.id)
	i.log.Debug("isolate closed")
	return err
}
