package binary

import (
	"github.com/wasmcore/wasmcore/ast"
	"github.com/wasmcore/wasmcore/leb128"
	"github.com/wasmcore/wasmcore/wasm"
)

// Encode serialises a raw module to the binary format, writing the
// non-custom sections in canonical order. Custom sections and the
// data-count section are not written, and empty sections are omitted.
// LEB128 integers are written in their shortest form, runs of same-typed
// locals are merged into one entry, and element segments are written
// with flag 0, 5, 6 or 7 whatever flag they were read with, so the output
// need not match the bytes a module was decoded from.
func Encode(m *ast.RawModule) []byte {
	out := append([]byte{}, magic[:]...)
	out = append(out, version[:]...)

	out = appendSection(out, sectionType, encodeTypeSection(m))
	out = appendSection(out, sectionImport, encodeImportSection(m))
	out = appendSection(out, sectionFunction, encodeFunctionSection(m))
	out = appendSection(out, sectionTable, encodeTableSection(m))
	out = appendSection(out, sectionMemory, encodeMemorySection(m))
	out = appendSection(out, sectionGlobal, encodeGlobalSection(m))
	out = appendSection(out, sectionExport, encodeExportSection(m))
	if m.Start != nil {
		out = appendSection(out, sectionStart, leb128.EncodeUint32(m.Start.Index))
	}
	out = appendSection(out, sectionElement, encodeElementSection(m))
	out = appendSection(out, sectionCode, encodeCodeSection(m))
	out = appendSection(out, sectionData, encodeDataSection(m))
	return out
}

func appendSection(out []byte, id sectionID, body []byte) []byte {
	if body == nil {
		return out
	}
	out = append(out, byte(id))
	out = append(out, leb128.EncodeUint32(uint32(len(body)))...)
	return append(out, body...)
}

func encodeVec(n int) []byte { return leb128.EncodeUint32(uint32(n)) }

func encodeName(s string) []byte {
	return append(leb128.EncodeUint32(uint32(len(s))), []byte(s)...)
}

func encodeValueType(t wasm.ValueType) byte { return byte(t) }

func encodeFunctionType(ft *wasm.FunctionType) []byte {
	out := []byte{0x60}
	out = append(out, encodeVec(len(ft.Params))...)
	for _, p := range ft.Params {
		out = append(out, encodeValueType(p))
	}
	out = append(out, encodeVec(len(ft.Results))...)
	for _, rs := range ft.Results {
		out = append(out, encodeValueType(rs))
	}
	return out
}

func encodeTypeSection(m *ast.RawModule) []byte {
	if len(m.Types) == 0 {
		return nil
	}
	out := encodeVec(len(m.Types))
	for _, t := range m.Types {
		out = append(out, encodeFunctionType(&t.Type)...)
	}
	return out
}

func encodeLimits(l wasm.Limits) []byte {
	if l.Max == nil {
		return append([]byte{0x00}, leb128.EncodeUint32(l.Min)...)
	}
	out := append([]byte{0x01}, leb128.EncodeUint32(l.Min)...)
	return append(out, leb128.EncodeUint32(*l.Max)...)
}

func encodeImportSection(m *ast.RawModule) []byte {
	if len(m.Imports) == 0 {
		return nil
	}
	out := encodeVec(len(m.Imports))
	for _, imp := range m.Imports {
		out = append(out, encodeName(imp.Module)...)
		out = append(out, encodeName(imp.Name)...)
		out = append(out, byte(imp.Desc.Kind))
		switch imp.Desc.Kind {
		case wasm.ExternKindFunc:
			out = append(out, leb128.EncodeUint32(imp.Desc.TypeRef.Index)...)
		case wasm.ExternKindTable:
			out = append(out, encodeValueType(imp.Desc.Table.ElemType))
			out = append(out, encodeLimits(imp.Desc.Table.Limits)...)
		case wasm.ExternKindMemory:
			out = append(out, encodeLimits(imp.Desc.Memory.Limits)...)
		case wasm.ExternKindGlobal:
			out = append(out, encodeValueType(imp.Desc.Global.ValType))
			out = append(out, boolByte(imp.Desc.Global.Mutable))
		}
	}
	return out
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func encodeFunctionSection(m *ast.RawModule) []byte {
	if len(m.Funcs) == 0 {
		return nil
	}
	out := encodeVec(len(m.Funcs))
	for _, f := range m.Funcs {
		out = append(out, leb128.EncodeUint32(f.TypeRef.Index)...)
	}
	return out
}

func encodeTableSection(m *ast.RawModule) []byte {
	if len(m.Tables) == 0 {
		return nil
	}
	out := encodeVec(len(m.Tables))
	for _, t := range m.Tables {
		out = append(out, encodeValueType(t.Type.ElemType))
		out = append(out, encodeLimits(t.Type.Limits)...)
	}
	return out
}

func encodeMemorySection(m *ast.RawModule) []byte {
	if len(m.Memories) == 0 {
		return nil
	}
	out := encodeVec(len(m.Memories))
	for _, mem := range m.Memories {
		out = append(out, encodeLimits(mem.Type.Limits)...)
	}
	return out
}

func encodeExpr(instrs []ast.Instr) []byte {
	var out []byte
	for _, in := range instrs {
		out = append(out, encodeInstr(in)...)
	}
	return out
}

func encodeGlobalSection(m *ast.RawModule) []byte {
	if len(m.Globals) == 0 {
		return nil
	}
	out := encodeVec(len(m.Globals))
	for _, g := range m.Globals {
		out = append(out, encodeValueType(g.Type.ValType))
		out = append(out, boolByte(g.Type.Mutable))
		out = append(out, encodeExpr(g.Init)...)
	}
	return out
}

func encodeExportSection(m *ast.RawModule) []byte {
	if len(m.Exports) == 0 {
		return nil
	}
	out := encodeVec(len(m.Exports))
	for _, e := range m.Exports {
		out = append(out, encodeName(e.Name)...)
		out = append(out, byte(e.Kind))
		out = append(out, leb128.EncodeUint32(e.Ref.Index)...)
	}
	return out
}

func encodeElementSection(m *ast.RawModule) []byte {
	if len(m.Elems) == 0 {
		return nil
	}
	out := encodeVec(len(m.Elems))
	for _, e := range m.Elems {
		switch e.Mode {
		case ast.ElemModeActive:
			indexForm := e.TableRef.Index == 0 && e.Type == wasm.ValueTypeFuncRef
			for _, init := range e.Init {
				if len(init) == 0 || init[0].Op != wasm.OpcodeRefFunc {
					indexForm = false
				}
			}
			if indexForm {
				out = append(out, leb128.EncodeUint32(0)...)
				out = append(out, encodeExpr(e.Offset)...)
				out = append(out, encodeVec(len(e.Init))...)
				for _, init := range e.Init {
					out = append(out, leb128.EncodeUint32(refFuncIndex(init))...)
				}
			} else {
				out = append(out, leb128.EncodeUint32(6)...)
				out = append(out, leb128.EncodeUint32(e.TableRef.Index)...)
				out = append(out, encodeExpr(e.Offset)...)
				out = append(out, encodeValueType(e.Type))
				out = append(out, encodeVec(len(e.Init))...)
				for _, init := range e.Init {
					out = append(out, encodeExpr(init)...)
				}
			}
		case ast.ElemModePassive:
			out = append(out, leb128.EncodeUint32(5)...)
			out = append(out, encodeValueType(e.Type))
			out = append(out, encodeVec(len(e.Init))...)
			for _, init := range e.Init {
				out = append(out, encodeExpr(init)...)
			}
		case ast.ElemModeDeclarative:
			out = append(out, leb128.EncodeUint32(7)...)
			out = append(out, encodeValueType(e.Type))
			out = append(out, encodeVec(len(e.Init))...)
			for _, init := range e.Init {
				out = append(out, encodeExpr(init)...)
			}
		}
	}
	return out
}

// refFuncIndex extracts the function index from a desugared `ref.func i`
// const-expression, as produced by readFuncIndexInits.
func refFuncIndex(expr []ast.Instr) uint32 {
	if len(expr) > 0 && expr[0].Op == wasm.OpcodeRefFunc {
		return expr[0].Ref.Index
	}
	return 0
}

func encodeCodeSection(m *ast.RawModule) []byte {
	if len(m.Funcs) == 0 {
		return nil
	}
	out := encodeVec(len(m.Funcs))
	for _, f := range m.Funcs {
		body := encodeLocalDecls(f.Locals)
		body = append(body, encodeExpr(f.Body)...)
		out = append(out, leb128.EncodeUint32(uint32(len(body)))...)
		out = append(out, body...)
	}
	return out
}

func encodeLocalDecls(locals []ast.Local) []byte {
	// Re-group consecutive same-typed locals back into run-length decls.
	type run struct {
		t wasm.ValueType
		n uint32
	}
	var runs []run
	for _, l := range locals {
		if len(runs) > 0 && runs[len(runs)-1].t == l.Type {
			runs[len(runs)-1].n++
		} else {
			runs = append(runs, run{t: l.Type, n: 1})
		}
	}
	out := encodeVec(len(runs))
	for _, rn := range runs {
		out = append(out, leb128.EncodeUint32(rn.n)...)
		out = append(out, encodeValueType(rn.t))
	}
	return out
}

func encodeDataSection(m *ast.RawModule) []byte {
	if len(m.Datas) == 0 {
		return nil
	}
	out := encodeVec(len(m.Datas))
	for _, d := range m.Datas {
		switch d.Mode {
		case ast.DataModeActive:
			if d.MemRef.Index == 0 {
				out = append(out, leb128.EncodeUint32(0)...)
			} else {
				out = append(out, leb128.EncodeUint32(2)...)
				out = append(out, leb128.EncodeUint32(d.MemRef.Index)...)
			}
			out = append(out, encodeExpr(d.Offset)...)
		case ast.DataModePassive:
			out = append(out, leb128.EncodeUint32(1)...)
		}
		out = append(out, leb128.EncodeUint32(uint32(len(d.Bytes)))...)
		out = append(out, d.Bytes...)
	}
	return out
}
