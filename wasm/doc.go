// Package wasm encodes the small WebAssembly modules an isolate builds for
// itself: the heap module that owns linear memory, and hand-assembled guests
// used by tools and tests.
//
// Only the sections those modules need are supported: type, import,
// function, memory, export and code. Function bodies are raw instruction
// bytes, so callers assemble code with the opcode constants directly.
//
//	m := &wasm.Module{
//	    Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}},
//	    Exports:  []wasm.Export{{Name: "memory", Kind: wasm.KindMemory}},
//	}
//	bin := m.Encode()
package wasm
