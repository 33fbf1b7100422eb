// Package engine implements the host VM that the bridge drives: isolates
// built on wazero.
//
// Each isolate owns a wazero runtime, a generated "heap" module whose
// exported memory backs every buffer, an object heap, a handle scope stack
// and a loop goroutine. All VM operations run on that goroutine:
//
//	eng, _ := engine.NewEngine(nil)
//	iso, _ := eng.NewIsolate(ctx)
//	defer iso.Close(ctx)
//
//	err := iso.Do(ctx, func() error {
//	    tok := iso.EnterScope()
//	    defer iso.ExitScope(tok)
//	    s, err := iso.NewString("hello")
//	    ...
//	})
//
// Primitive values (undefined, null, booleans, numbers) are stored inline.
// Strings, objects, arrays, buffers, functions and errors live on the
// isolate heap until the isolate closes.
//
// Guest wasm modules import the isolate memory as heap.memory and native
// functions exposed with Isolate.Expose as bridge.<name>.
package engine
