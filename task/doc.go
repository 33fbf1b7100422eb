// Package task runs background work for an isolate.
//
// A Task has two phases. Perform runs exactly once on a worker goroutine
// and must not touch the VM. Its result is handed to the isolate loop,
// where Complete runs exactly once inside a fresh scope and produces a VM
// value. The callback given to Schedule is then called with
// (null, value), or with (error, undefined) if either phase failed.
//
// Task values and Perform results cross goroutines, so both are checked
// with engine.CheckTransferable; anything holding a handle, a VM value or
// a context is rejected with errors.ErrNotTransferable.
//
//	type sum struct{ xs []float64 }
//
//	func (s sum) Perform() (float64, error) { ... }
//
//	func (sum) Complete(cx *task.Context, n float64, err error) (engine.Handle, error) {
//		if err != nil {
//			return engine.Handle{}, err
//		}
//		return cx.Number(n)
//	}
//
//	job, err := task.Schedule[float64](cx, sum{xs}, callback)
package task
