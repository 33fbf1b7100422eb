package wasm

// WebAssembly binary format magic number and version.
const (
	// Magic is the WebAssembly binary magic number ("\0asm" in little-endian).
	Magic uint32 = 0x6D736100

	// Version is the supported WebAssembly binary format version.
	Version uint32 = 0x01
)

// Section IDs. Sections must appear in increasing order by ID.
const (
	SectionType     byte = 1  // Type section (function signatures)
	SectionImport   byte = 2  // Import section
	SectionFunction byte = 3  // Function section (type indices)
	SectionMemory   byte = 5  // Memory section
	SectionExport   byte = 7  // Export section
	SectionCode     byte = 10 // Code section (function bodies)
)

// Import/Export descriptor kinds.
const (
	KindFunc   byte = 0
	KindMemory byte = 2
)

// Value type encodings.
const (
	ValI32 ValType = 0x7F
	ValI64 ValType = 0x7E
	ValF32 ValType = 0x7D
	ValF64 ValType = 0x7C
)

const (
	FuncTypeByte byte = 0x60
	LimitsHasMax byte = 0x01
)

// Opcodes used by hand-assembled guests.
const (
	OpEnd        byte = 0x0B
	OpCall       byte = 0x10
	OpDrop       byte = 0x1A
	OpLocalGet   byte = 0x20
	OpI32Store8  byte = 0x3A
	OpMemorySize byte = 0x3F
	OpI32Const   byte = 0x41
	OpF64Add     byte = 0xA0
)

// PageSize is the size of a linear memory page.
const PageSize = 65536
