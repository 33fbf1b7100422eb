package wasm

import (
	"bytes"
	"encoding/binary"
)

// Encode encodes the module to WebAssembly binary format
func (m *Module) Encode() []byte {
	var w bytes.Buffer

	// Magic number and version
	_ = binary.Write(&w, binary.LittleEndian, Magic)
	_ = binary.Write(&w, binary.LittleEndian, Version)

	if len(m.Types) > 0 {
		var sec bytes.Buffer
		WriteLEB128u(&sec, uint32(len(m.Types)))
		for _, ft := range m.Types {
			sec.WriteByte(FuncTypeByte)
			writeValTypes(&sec, ft.Params)
			writeValTypes(&sec, ft.Results)
		}
		writeSection(&w, SectionType, sec.Bytes())
	}

	if len(m.Imports) > 0 {
		var sec bytes.Buffer
		WriteLEB128u(&sec, uint32(len(m.Imports)))
		for _, imp := range m.Imports {
			writeName(&sec, imp.Module)
			writeName(&sec, imp.Name)
			sec.WriteByte(imp.Desc.Kind)
			switch imp.Desc.Kind {
			case KindFunc:
				WriteLEB128u(&sec, imp.Desc.TypeIdx)
			case KindMemory:
				if imp.Desc.Memory != nil {
					writeLimits(&sec, imp.Desc.Memory.Limits)
				}
			}
		}
		writeSection(&w, SectionImport, sec.Bytes())
	}

	if len(m.Funcs) > 0 {
		var sec bytes.Buffer
		WriteLEB128u(&sec, uint32(len(m.Funcs)))
		for _, typeIdx := range m.Funcs {
			WriteLEB128u(&sec, typeIdx)
		}
		writeSection(&w, SectionFunction, sec.Bytes())
	}

	if len(m.Memories) > 0 {
		var sec bytes.Buffer
		WriteLEB128u(&sec, uint32(len(m.Memories)))
		for _, mem := range m.Memories {
			writeLimits(&sec, mem.Limits)
		}
		writeSection(&w, SectionMemory, sec.Bytes())
	}

	if len(m.Exports) > 0 {
		var sec bytes.Buffer
		WriteLEB128u(&sec, uint32(len(m.Exports)))
		for _, exp := range m.Exports {
			writeName(&sec, exp.Name)
			sec.WriteByte(exp.Kind)
			WriteLEB128u(&sec, exp.Idx)
		}
		writeSection(&w, SectionExport, sec.Bytes())
	}

	if len(m.Code) > 0 {
		var sec bytes.Buffer
		WriteLEB128u(&sec, uint32(len(m.Code)))
		for _, body := range m.Code {
			var fn bytes.Buffer
			WriteLEB128u(&fn, uint32(len(body.Locals)))
			for _, local := range body.Locals {
				WriteLEB128u(&fn, local.Count)
				fn.WriteByte(byte(local.ValType))
			}
			fn.Write(body.Code)
			WriteLEB128u(&sec, uint32(fn.Len()))
			sec.Write(fn.Bytes())
		}
		writeSection(&w, SectionCode, sec.Bytes())
	}

	return w.Bytes()
}

func writeSection(w *bytes.Buffer, id byte, data []byte) {
	w.WriteByte(id)
	WriteLEB128u(w, uint32(len(data)))
	w.Write(data)
}

func writeValTypes(w *bytes.Buffer, types []ValType) {
	WriteLEB128u(w, uint32(len(types)))
	for _, t := range types {
		w.WriteByte(byte(t))
	}
}

func writeName(w *bytes.Buffer, s string) {
	WriteLEB128u(w, uint32(len(s)))
	w.WriteString(s)
}

func writeLimits(w *bytes.Buffer, l Limits) {
	if l.Max == nil {
		w.WriteByte(0)
		WriteLEB128u(w, uint32(l.Min))
		return
	}
	w.WriteByte(LimitsHasMax)
	WriteLEB128u(w, uint32(l.Min))
	WriteLEB128u(w, uint32(*l.Max))
}
