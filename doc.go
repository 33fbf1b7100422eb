// Package wasmbridge is a host-side bridge for a single-threaded VM built
// on wazero. It gives native Go code scoped access to VM values, a borrow
// ledger over VM-owned buffers, and background tasks whose results are
// handed back to the VM thread.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	wasmbridge/
//	├── runtime/   High-level API: isolates, host registration, modules
//	├── bridge/    Scopes, contexts, roots, borrow guards, marshaling
//	├── task/      Background tasks and the per-isolate scheduler
//	├── engine/    Isolates over wazero: heap memory, objects, loop
//	├── heap/      Index-handle slot tables backing VM objects
//	├── borrow/    Loan ledger for buffer regions
//	├── wasm/      Binary encoder for the heap module and test guests
//	├── config/    bridge.yaml loading and logger construction
//	├── errors/    Structured error types for debugging
//	└── cmd/run/   Command line runner with an interactive TUI
//
// # Quick Start
//
//	rt, err := runtime.New(ctx, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	rt.RegisterFunc("text", "shout", strings.ToUpper)
//
//	iso, err := rt.NewIsolate(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	out, err := iso.Call(ctx, "text", "shout", "hello")
//	fmt.Println(out) // "HELLO"
//
// # Thread Safety
//
// Runtime and runtime.Isolate are safe for concurrent use. VM values,
// scopes, contexts and guards are confined to the isolate loop and must
// never leave the callback they were handed to. Roots and task payloads
// are the only values that cross goroutines.
//
// # Memory Model
//
// Buffers live in the isolate's wasm linear memory, which can only grow.
// Buffer memory is bump allocated and not reclaimed until the isolate
// closes. Borrowed byte slices stay valid until the loan is released: with
// a memory limit the full capacity is reserved and grows in place,
// otherwise memory does not grow while any loan is outstanding.
package wasmbridge
