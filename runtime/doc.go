// Package runtime is the high-level API over engine, bridge and task.
//
// # Quick Start
//
//	ctx := context.Background()
//	rt, err := runtime.New(ctx, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	// Register host functions before creating isolates
//	rt.RegisterFunc("math", "add", func(a, b float64) float64 { return a + b })
//
//	iso, err := rt.NewIsolate(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer iso.Close(ctx)
//
//	result, err := iso.Call(ctx, "math", "add", 2, 3)
//	fmt.Println(result) // 5
//
// # Host Functions
//
// A handler is either a bridge.Function, which sees VM handles directly,
// or a typed Go function. Typed handlers may take a leading
// *bridge.CallContext and return nothing, a value, an error, or a value
// and an error. Arguments and results are mapped like this:
//
//	Go Type              VM Type
//	───────────────────────────────
//	bool                 boolean
//	intN/uintN/floatN    number (integers must be integral and in range)
//	string               string
//	[]byte               ArrayBuffer (copied)
//	[]T                  array
//	map[string]T         object
//	error                Error object
//	engine.Handle        passed through
//
// Implement Host to register every exported method of a struct under one
// namespace; method names are converted to kebab-case. Functions listed
// by GuestHost.GuestFunctions are also importable by wasm guests from the
// "bridge" module and must take and return numbers.
//
// # Modules and Tasks
//
// RegisterModule adds a native module initialized on every isolate. Its
// functions may schedule background work with task.Schedule; each isolate
// gets a scheduler configured from Options.Tasks, and Isolate.Wait blocks
// until all scheduled tasks have completed.
//
// # Thread Safety
//
// Runtime and Isolate are safe for concurrent use. Every VM operation of
// an isolate runs on its loop goroutine, so calls into one isolate are
// serialized; use several isolates for parallelism.
//
// # Memory
//
// Isolate heap objects live until the isolate closes. Buffers are carved
// from wasm linear memory, which can only grow. For long-running
// services, recycle isolates periodically.
package runtime
