package wasm

import "fmt"

// ValType is a value type.
type ValType byte

func (v ValType) String() string {
	switch v {
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	case ValF32:
		return "f32"
	case ValF64:
		return "f64"
	default:
		return fmt.Sprintf("0x%02x", byte(v))
	}
}

// Module is a module under construction. Funcs holds the type index of each
// defined function and Code its body, in the same order.
type Module struct {
	Types    []FuncType
	Imports  []Import
	Funcs    []uint32
	Memories []MemoryType
	Exports  []Export
	Code     []FuncBody
}

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// Import names an imported function or memory.
type Import struct {
	Module string
	Name   string
	Desc   ImportDesc
}

// ImportDesc describes what is imported. TypeIdx applies to functions,
// Memory to memories.
type ImportDesc struct {
	Memory  *MemoryType
	TypeIdx uint32
	Kind    byte
}

// MemoryType describes a linear memory.
type MemoryType struct {
	Limits Limits
}

// Limits bounds a memory in pages. A nil Max leaves it unbounded.
type Limits struct {
	Max *uint64
	Min uint64
}

// Export names a function or memory. Function indices count imported
// functions first.
type Export struct {
	Name string
	Kind byte
	Idx  uint32
}

// FuncBody represents a function's local declarations and bytecode.
type FuncBody struct {
	Locals []LocalEntry
	Code   []byte // Raw code bytes including end opcode
}

// LocalEntry represents a group of local variables with the same type.
type LocalEntry struct {
	Count   uint32
	ValType ValType
}

// NumImportedFuncs returns the number of imported functions.
func (m *Module) NumImportedFuncs() int {
	count := 0
	for _, imp := range m.Imports {
		if imp.Desc.Kind == KindFunc {
			count++
		}
	}
	return count
}

// AddFunc appends a function with the given signature and body and returns
// its index in the function index space.
func (m *Module) AddFunc(ft FuncType, body FuncBody) uint32 {
	idx := uint32(m.NumImportedFuncs() + len(m.Funcs))
	m.Funcs = append(m.Funcs, m.typeIndex(ft))
	m.Code = append(m.Code, body)
	return idx
}

// ImportFunc appends a function import and returns its function index.
// Imports must be added before any defined function.
func (m *Module) ImportFunc(module, name string, ft FuncType) uint32 {
	idx := uint32(m.NumImportedFuncs())
	m.Imports = append(m.Imports, Import{
		Module: module,
		Name:   name,
		Desc:   ImportDesc{Kind: KindFunc, TypeIdx: m.typeIndex(ft)},
	})
	return idx
}

// typeIndex returns the index of ft, adding it when missing.
func (m *Module) typeIndex(ft FuncType) uint32 {
	for k, t := range m.Types {
		if sameTypes(t.Params, ft.Params) && sameTypes(t.Results, ft.Results) {
			return uint32(k)
		}
	}
	m.Types = append(m.Types, ft)
	return uint32(len(m.Types) - 1)
}

func sameTypes(a, b []ValType) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if a[k] != b[k] {
			return false
		}
	}
	return true
}
