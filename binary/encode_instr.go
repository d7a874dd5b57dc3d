package binary

import (
	"github.com/wasmcore/wasmcore/ast"
	"github.com/wasmcore/wasmcore/leb128"
	"github.com/wasmcore/wasmcore/wasm"
)

// encodeInstr encodes a single flat Instr. Because readInstrSeq already
// flattens block/loop/if/else/end into ordinary entries of the same slice
// (see instr.go), encoding the slice in order and encoding each entry by
// its own Op alone reconstructs the original nested byte stream — no
// lookahead into ElseAt/EndAt is needed here; those fields exist for the
// rewrite/interp stages, not for round-tripping.
func encodeInstr(i ast.Instr) []byte {
	switch i.Op {
	case wasm.OpcodeBlock, wasm.OpcodeLoop, wasm.OpcodeIf:
		return append([]byte{byte(i.Op)}, encodeBlockType(i.BlockType)...)
	case wasm.OpcodeElse:
		return []byte{byte(wasm.OpcodeElse)}
	case wasm.OpcodeEnd:
		return []byte{byte(wasm.OpcodeEnd)}

	case wasm.OpcodeBr, wasm.OpcodeBrIf, wasm.OpcodeCall,
		wasm.OpcodeLocalGet, wasm.OpcodeLocalSet, wasm.OpcodeLocalTee,
		wasm.OpcodeGlobalGet, wasm.OpcodeGlobalSet,
		wasm.OpcodeTableGet, wasm.OpcodeTableSet, wasm.OpcodeRefFunc:
		return append([]byte{byte(i.Op)}, leb128.EncodeUint32(i.Ref.Index)...)

	case wasm.OpcodeRefNull:
		return []byte{byte(i.Op), byte(i.I32)}

	case wasm.OpcodeCallIndirect:
		out := []byte{byte(i.Op)}
		out = append(out, leb128.EncodeUint32(i.Ref.Index)...)
		return append(out, leb128.EncodeUint32(i.Ref2.Index)...)

	case wasm.OpcodeBrTable:
		out := []byte{byte(i.Op)}
		out = append(out, leb128.EncodeUint32(uint32(len(i.Targets)))...)
		for _, t := range i.Targets {
			out = append(out, leb128.EncodeUint32(t.Index)...)
		}
		return append(out, leb128.EncodeUint32(i.Default.Index)...)

	case wasm.OpcodeSelectT:
		out := []byte{byte(i.Op)}
		out = append(out, leb128.EncodeUint32(uint32(len(i.SelectTypes)))...)
		for _, t := range i.SelectTypes {
			out = append(out, byte(t))
		}
		return out

	case wasm.OpcodeI32Const:
		return append([]byte{byte(i.Op)}, leb128.EncodeInt32(i.I32)...)
	case wasm.OpcodeI64Const:
		return append([]byte{byte(i.Op)}, leb128.EncodeInt64(i.I64)...)
	case wasm.OpcodeF32Const:
		bits := float32ToBits(i.F32)
		return append([]byte{byte(i.Op)}, bits[:]...)
	case wasm.OpcodeF64Const:
		bits := float64ToBits(i.F64)
		return append([]byte{byte(i.Op)}, bits[:]...)

	case wasm.OpcodeI32Load, wasm.OpcodeI64Load, wasm.OpcodeF32Load, wasm.OpcodeF64Load,
		wasm.OpcodeI32Load8S, wasm.OpcodeI32Load8U, wasm.OpcodeI32Load16S, wasm.OpcodeI32Load16U,
		wasm.OpcodeI64Load8S, wasm.OpcodeI64Load8U, wasm.OpcodeI64Load16S, wasm.OpcodeI64Load16U,
		wasm.OpcodeI64Load32S, wasm.OpcodeI64Load32U,
		wasm.OpcodeI32Store, wasm.OpcodeI64Store, wasm.OpcodeF32Store, wasm.OpcodeF64Store,
		wasm.OpcodeI32Store8, wasm.OpcodeI32Store16, wasm.OpcodeI64Store8, wasm.OpcodeI64Store16, wasm.OpcodeI64Store32:
		out := []byte{byte(i.Op)}
		out = append(out, leb128.EncodeUint32(i.Memarg.Align)...)
		return append(out, leb128.EncodeUint32(i.Memarg.Offset)...)

	case wasm.OpcodeMemorySize, wasm.OpcodeMemoryGrow:
		return []byte{byte(i.Op), 0x00}

	case wasm.OpcodeMisc:
		return encodeMiscInstr(i)

	default:
		return []byte{byte(i.Op)}
	}
}

func encodeBlockType(bt ast.BlockType) []byte {
	switch bt.Kind {
	case ast.BlockTypeVoid:
		return leb128.EncodeInt64(-64)
	case ast.BlockTypeSingle:
		return []byte{byte(bt.ValType)}
	default:
		return leb128.EncodeInt64(int64(bt.TypeRef.Index))
	}
}

func encodeMiscInstr(i ast.Instr) []byte {
	out := []byte{byte(wasm.OpcodeMisc)}
	out = append(out, leb128.EncodeUint32(uint32(i.Misc))...)
	switch i.Misc {
	case wasm.MiscOpcodeMemoryInit:
		out = append(out, leb128.EncodeUint32(i.Ref.Index)...)
		out = append(out, 0x00)
	case wasm.MiscOpcodeDataDrop, wasm.MiscOpcodeTableGrow, wasm.MiscOpcodeTableSize, wasm.MiscOpcodeTableFill, wasm.MiscOpcodeElemDrop:
		out = append(out, leb128.EncodeUint32(i.Ref.Index)...)
	case wasm.MiscOpcodeMemoryCopy:
		out = append(out, 0x00, 0x00)
	case wasm.MiscOpcodeMemoryFill:
		out = append(out, 0x00)
	case wasm.MiscOpcodeTableInit, wasm.MiscOpcodeTableCopy:
		out = append(out, leb128.EncodeUint32(i.Ref.Index)...)
		out = append(out, leb128.EncodeUint32(i.Ref2.Index)...)
	}
	return out
}
