package task

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wippyai/wasm-bridge/bridge"
)

// State is a job's position in its lifecycle.
type State int32

const (
	Scheduled State = iota
	Performing
	Completing
	Done
)

func (s State) String() string {
	switch s {
	case Scheduled:
		return "scheduled"
	case Performing:
		return "performing"
	case Completing:
		return "completing"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Job tracks one scheduled task. Its methods are safe for concurrent use.
type Job struct {
	At       time.Time
	sched    *Scheduler
	err      error
	done     chan struct{}
	ID       string
	Name     string
	callback bridge.Root
	mu       sync.Mutex
	state    atomic.Int32
}

// State returns the current state.
func (j *Job) State() State { return State(j.state.Load()) }

// Done is closed once the job reaches Done.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the job is done or ctx ends. It returns the job error.
// Waiting on the isolate loop deadlocks, since completion needs the loop.
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return j.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns why the job failed: a perform or complete error, a thrown
// exception as *bridge.Exception, or a callback that threw. It is nil
// while the job runs and after success.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *Job) move(s State) {
	j.state.Store(int32(s))
	j.sched.emit(Event{Job: j, Name: j.Name, State: s, At: time.Now()})
}

func (j *Job) finish(err error) {
	j.mu.Lock()
	j.err = err
	j.mu.Unlock()
	j.state.Store(int32(Done))
	close(j.done)
	j.sched.emit(Event{Job: j, Name: j.Name, State: Done, Err: err, At: time.Now()})
}

// Event reports a job state change to subscribers.
type Event struct {
	At    time.Time
	Err   error
	Job   *Job
	Name  string
	State State
}
