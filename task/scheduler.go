package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/wippyai/wasm-bridge/bridge"
	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/errors"
)

// Options configures a scheduler.
type Options struct {
	// MaxWorkers bounds concurrent Perform calls. Zero means unbounded.
	MaxWorkers int
}

type schedulerKey struct{}

// Scheduler runs tasks for one isolate. Perform calls go to worker
// goroutines; completions are posted back to the isolate loop.
type Scheduler struct {
	iso    *engine.Isolate
	log    *zap.Logger
	sem    *semaphore.Weighted
	active map[string]*Job
	subs   map[int]func(Event)
	opts   Options
	wg     sync.WaitGroup
	nextID int
	mu     sync.Mutex
	closed bool
}

// Install creates the isolate's scheduler with opts. It fails if the
// isolate already has one.
func Install(iso *engine.Isolate, opts Options) (*Scheduler, error) {
	if opts.MaxWorkers < 0 {
		return nil, errors.InvalidInput(errors.PhaseTask, "MaxWorkers must not be negative")
	}
	created := false
	s := iso.Slot(schedulerKey{}, func() any {
		created = true
		return newScheduler(iso, opts)
	}).(*Scheduler)
	if !created {
		return nil, errors.New(errors.PhaseTask, errors.KindRegistration).
			Detail("isolate %d already has a scheduler", iso.ID()).Build()
	}
	return s, nil
}

// SchedulerOf returns the isolate's scheduler, creating an unbounded one
// on first use.
func SchedulerOf(iso *engine.Isolate) *Scheduler {
	return iso.Slot(schedulerKey{}, func() any {
		return newScheduler(iso, Options{})
	}).(*Scheduler)
}

func newScheduler(iso *engine.Isolate, opts Options) *Scheduler {
	s := &Scheduler{
		iso:    iso,
		log:    Logger().With(zap.Uint32("isolate", iso.ID())),
		active: make(map[string]*Job),
		subs:   make(map[int]func(Event)),
		opts:   opts,
	}
	if opts.MaxWorkers > 0 {
		s.sem = semaphore.NewWeighted(int64(opts.MaxWorkers))
	}
	return s
}

// Options returns the options the scheduler was created with.
func (s *Scheduler) Options() Options { return s.opts }

// Subscribe registers fn for job events and returns a function removing
// it. Events arrive on whichever goroutine moved the job: Scheduled,
// Completing and Done on the loop, Performing on a worker.
func (s *Scheduler) Subscribe(fn func(Event)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Scheduler) emit(ev Event) {
	s.mu.Lock()
	subs := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

// Active returns the jobs not yet done.
func (s *Scheduler) Active() []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := make([]*Job, 0, len(s.active))
	for _, j := range s.active {
		jobs = append(jobs, j)
	}
	return jobs
}

// Wait blocks until every job scheduled so far, and any scheduled by
// their completions, is done.
func (s *Scheduler) Wait(ctx context.Context) error {
	for {
		jobs := s.Active()
		if len(jobs) == 0 {
			return nil
		}
		for _, j := range jobs {
			select {
			case <-j.done:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Close rejects further schedules and waits for running Perform calls.
// Jobs whose completion can no longer reach the loop finish with a
// closed error.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	n := len(s.active)
	s.mu.Unlock()

	if n > 0 {
		s.log.Debug("waiting for workers", zap.Int("jobs", n))
	}
	s.wg.Wait()
	return nil
}

func (s *Scheduler) submit(name string, cb bridge.Root, w work) (*Job, error) {
	j := &Job{
		At:       time.Now(),
		ID:       uuid.NewString(),
		Name:     name,
		callback: cb,
		sched:    s,
		done:     make(chan struct{}),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errors.Closed(errors.PhaseTask, "scheduler")
	}
	s.active[j.ID] = j
	s.wg.Add(1)
	s.mu.Unlock()

	s.iso.Loop().Ref()
	j.move(Scheduled)
	s.log.Debug("task scheduled", zap.String("job", j.ID), zap.String("task", name))

	go s.worker(j, w)
	return j, nil
}

func (s *Scheduler) worker(j *Job, w work) {
	defer s.wg.Done()

	if s.sem != nil {
		// Background never cancels, so Acquire only returns once a slot frees.
		_ = s.sem.Acquire(context.Background(), 1)
	}
	j.move(Performing)
	perr := w.perform()
	if s.sem != nil {
		s.sem.Release(1)
	}
	if perr != nil {
		s.log.Debug("perform failed", zap.String("job", j.ID), zap.Error(perr))
	}

	if err := s.iso.Loop().Post(func() { s.complete(j, w) }); err != nil {
		s.log.Warn("completion dropped", zap.String("job", j.ID), zap.Error(err))
		bridge.ReleaseRoot(s.iso, j.callback)
		j.callback = bridge.Root{}
		s.done(j, err)
	}
}

// complete runs on the loop.
func (s *Scheduler) complete(j *Job, w work) {
	j.move(Completing)

	var jobErr error
	err := bridge.With(s.iso, func(sc *bridge.Scope) error {
		cx := &Context{VM: bridge.NewVM(sc), job: j}
		cb, err := cx.Local(j.callback)
		cx.Release(j.callback)
		j.callback = bridge.Root{}
		if err != nil {
			return err
		}

		args := make([]engine.Handle, 2)
		val, cerr := w.complete(cx)
		if cerr == nil && val.IsEmpty() {
			val, cerr = cx.Undefined()
		}
		if cerr == nil {
			if args[0], err = cx.Null(); err != nil {
				return err
			}
			args[1] = val
		} else {
			if args[0], jobErr = failure(cx, cerr); args[0].IsEmpty() {
				return jobErr
			}
			if args[1], err = cx.Undefined(); err != nil {
				return multierr.Append(jobErr, err)
			}
		}

		if _, err := cx.Call(cb, engine.Handle{}, args...); err != nil {
			if thrown(&cx.VM, err) {
				if h, ok := cx.TakeException(); ok {
					err = cx.Exception(h)
				}
			}
			s.log.Error("task callback threw", zap.String("job", j.ID), zap.Error(err))
			return multierr.Append(jobErr, fmt.Errorf("callback: %w", err))
		}
		return jobErr
	})
	s.done(j, err)
}

// failure turns a completion error into the value passed as the callback's
// first argument. A thrown value is passed as-is; a Go error becomes a VM
// error object. The returned error is what Job.Err reports.
func failure(cx *Context, cerr error) (engine.Handle, error) {
	wasThrown := thrown(&cx.VM, cerr)
	if !wasThrown {
		cx.ThrowGo(cerr)
	}
	h, ok := cx.TakeException()
	if !ok {
		e, err := cx.Error("Error", cerr.Error())
		if err != nil {
			return engine.Handle{}, multierr.Append(cerr, err)
		}
		return e, cerr
	}
	if wasThrown {
		return h, cx.Exception(h)
	}
	return h, cerr
}

func (s *Scheduler) done(j *Job, err error) {
	s.mu.Lock()
	delete(s.active, j.ID)
	s.mu.Unlock()
	s.iso.Loop().Unref()
	j.finish(err)

	if err != nil {
		s.log.Debug("task failed", zap.String("job", j.ID), zap.Error(err))
		return
	}
	s.log.Debug("task done", zap.String("job", j.ID), zap.Duration("elapsed", time.Since(j.At)))
}
