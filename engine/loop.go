package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/petermattis/goid"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/errors"
)

// Loop is the single goroutine that owns an isolate. Every VM operation
// runs on it; other goroutines hand work over with Post or Do.
type Loop struct {
	log    *zap.Logger
	wake   chan struct{}
	quit   chan struct{}
	done   chan struct{}
	idle   chan struct{}
	queue  []func()
	gid    atomic.Int64
	refs   int
	mu     sync.Mutex
	refMu  sync.Mutex
	once   sync.Once
	closed bool
}

func newLoop(log *zap.Logger) *Loop {
	l := &Loop{
		log:  log,
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	ready := make(chan struct{})
	go l.run(ready)
	<-ready
	return l
}

func (l *Loop) run(ready chan<- struct{}) {
	l.gid.Store(goid.Get())
	close(ready)
	defer close(l.done)

	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		if len(batch) == 0 {
			select {
			case <-l.wake:
				continue
			case <-l.quit:
				l.mu.Lock()
				n := len(l.queue)
				l.mu.Unlock()
				if n == 0 {
					return
				}
			}
			continue
		}

		for _, fn := range batch {
			l.execute(fn)
		}
	}
}

// execute runs a posted callback. Panics other than scope violations are
// logged and swallowed so one bad callback cannot kill the loop.
func (l *Loop) execute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if isFatal(r) {
				panic(r)
			}
			l.log.Error("panic in loop callback", zap.Any("panic", r))
		}
	}()
	fn()
}

// Post queues fn to run on the loop. It never blocks and fails only once
// the loop is closed.
func (l *Loop) Post(fn func()) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return errors.Closed(errors.PhaseCall, "isolate loop")
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// Do runs fn on the loop and waits for it. Called from the loop itself,
// fn runs inline.
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	if l.OnLoop() {
		return call(fn)
	}

	result := make(chan error, 1)
	if err := l.Post(func() { result <- call(fn) }); err != nil {
		return err
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		select {
		case err := <-result:
			return err
		default:
			return errors.Closed(errors.PhaseCall, "isolate loop")
		}
	}
}

func call(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if isFatal(r) {
				panic(r)
			}
			err = fmt.Errorf("panic on isolate loop: %v", r)
		}
	}()
	return fn()
}

func isFatal(r any) bool {
	err, ok := r.(error)
	if !ok {
		return false
	}
	var e *errors.Error
	return stderrors.As(err, &e) && e.Kind == errors.KindScopeViolation
}

// OnLoop reports whether the calling goroutine is the loop goroutine.
func (l *Loop) OnLoop() bool {
	return goid.Get() == l.gid.Load()
}

// Ref records outstanding work that keeps the loop busy.
func (l *Loop) Ref() {
	l.refMu.Lock()
	if l.refs == 0 {
		l.idle = make(chan struct{})
	}
	l.refs++
	l.refMu.Unlock()
}

// Unref releases one Ref.
func (l *Loop) Unref() {
	l.refMu.Lock()
	defer l.refMu.Unlock()
	if l.refs == 0 {
		return
	}
	l.refs--
	if l.refs == 0 {
		close(l.idle)
	}
}

// Pending returns the number of outstanding refs.
func (l *Loop) Pending() int {
	l.refMu.Lock()
	defer l.refMu.Unlock()
	return l.refs
}

// Idle blocks until every Ref has been released or ctx is done.
func (l *Loop) Idle(ctx context.Context) error {
	l.refMu.Lock()
	n, ch := l.refs, l.idle
	l.refMu.Unlock()
	if n == 0 {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting callbacks. Callbacks already queued still run.
// When called from a goroutine other than the loop, Close waits for the
// loop to drain and exit.
func (l *Loop) Close() {
	l.once.Do(func() {
		l.mu.Lock()
		l.closed = true
		pending := len(l.queue)
		l.mu.Unlock()
		if pending > 0 {
			l.log.Debug("draining loop callbacks", zap.Int("count", pending))
		}
		close(l.quit)
	})
	if !l.OnLoop() {
		<-l.done
	}
}
