package binary

import (
	"bytes"
	"fmt"

	"github.com/wasmcore/wasmcore/ast"
	"github.com/wasmcore/wasmcore/leb128"
	"github.com/wasmcore/wasmcore/wasm"
)

// readExpr decodes one instruction sequence (a function body or a constant
// expression) up to and including its closing `end`.
func readExpr(r *bytes.Reader) ([]ast.Instr, error) {
	instrs, term, err := readInstrSeq(r)
	if err != nil {
		return nil, err
	}
	if term != byte(wasm.OpcodeEnd) {
		return nil, fmt.Errorf("expression must close with end")
	}
	return append(instrs, ast.Instr{Op: wasm.OpcodeEnd}), nil
}

// readInstrSeq decodes instructions until a bare `end` or `else` byte,
// flattening nested block/loop/if bodies into the same slice and
// back-filling each opener's ElseAt/EndAt with the index of its matching
// terminator by scanning for the matching 0x05 (else) or 0x0B (end) byte.
func readInstrSeq(r *bytes.Reader) (instrs []ast.Instr, terminator byte, err error) {
	for {
		op, err := r.ReadByte()
		if err != nil {
			return nil, 0, fmt.Errorf("read opcode: %w", err)
		}
		switch wasm.Opcode(op) {
		case wasm.OpcodeEnd:
			return instrs, byte(wasm.OpcodeEnd), nil
		case wasm.OpcodeElse:
			return instrs, byte(wasm.OpcodeElse), nil
		case wasm.OpcodeBlock, wasm.OpcodeLoop:
			bt, err := readBlockType(r)
			if err != nil {
				return nil, 0, fmt.Errorf("block type: %w", err)
			}
			pos := len(instrs)
			instrs = append(instrs, ast.Instr{Op: wasm.Opcode(op), BlockType: bt})
			body, term, err := readInstrSeq(r)
			if err != nil {
				return nil, 0, err
			}
			if term != byte(wasm.OpcodeEnd) {
				return nil, 0, fmt.Errorf("block/loop must close with end, got else")
			}
			instrs = append(instrs, body...)
			instrs = append(instrs, ast.Instr{Op: wasm.OpcodeEnd})
			instrs[pos].EndAt = len(instrs) - 1
			instrs[pos].ElseAt = -1
		case wasm.OpcodeIf:
			bt, err := readBlockType(r)
			if err != nil {
				return nil, 0, fmt.Errorf("block type: %w", err)
			}
			pos := len(instrs)
			instrs = append(instrs, ast.Instr{Op: wasm.OpcodeIf, BlockType: bt, ElseAt: -1})
			thenBody, term, err := readInstrSeq(r)
			if err != nil {
				return nil, 0, err
			}
			instrs = append(instrs, thenBody...)
			if term == byte(wasm.OpcodeElse) {
				elseAt := len(instrs)
				instrs = append(instrs, ast.Instr{Op: wasm.OpcodeElse})
				elseBody, term2, err := readInstrSeq(r)
				if err != nil {
					return nil, 0, err
				}
				if term2 != byte(wasm.OpcodeEnd) {
					return nil, 0, fmt.Errorf("if/else must close with end")
				}
				instrs = append(instrs, elseBody...)
				instrs[pos].ElseAt = elseAt
			} else if term != byte(wasm.OpcodeEnd) {
				return nil, 0, fmt.Errorf("if must close with else or end")
			}
			instrs = append(instrs, ast.Instr{Op: wasm.OpcodeEnd})
			instrs[pos].EndAt = len(instrs) - 1
		default:
			instr, err := readPlainInstr(wasm.Opcode(op), r)
			if err != nil {
				return nil, 0, err
			}
			instrs = append(instrs, instr)
		}
	}
}

// readBlockType decodes the §4.1 block-type byte form: 0x40 (void), a
// single value-type byte, or a signed LEB128 index into the type section.
func readBlockType(r *bytes.Reader) (ast.BlockType, error) {
	v, _, err := leb128.DecodeInt33AsInt64(r)
	if err != nil {
		return ast.BlockType{}, fmt.Errorf("decode block type: %w", err)
	}
	switch v {
	case -64:
		return ast.BlockType{Kind: ast.BlockTypeVoid}, nil
	case -1:
		return ast.BlockType{Kind: ast.BlockTypeSingle, ValType: wasm.ValueTypeI32}, nil
	case -2:
		return ast.BlockType{Kind: ast.BlockTypeSingle, ValType: wasm.ValueTypeI64}, nil
	case -3:
		return ast.BlockType{Kind: ast.BlockTypeSingle, ValType: wasm.ValueTypeF32}, nil
	case -4:
		return ast.BlockType{Kind: ast.BlockTypeSingle, ValType: wasm.ValueTypeF64}, nil
	case -16:
		return ast.BlockType{Kind: ast.BlockTypeSingle, ValType: wasm.ValueTypeFuncRef}, nil
	case -17:
		return ast.BlockType{Kind: ast.BlockTypeSingle, ValType: wasm.ValueTypeExtern}, nil
	}
	if v < 0 {
		return ast.BlockType{}, fmt.Errorf("invalid block type encoding %d", v)
	}
	return ast.BlockType{Kind: ast.BlockTypeIndex, TypeRef: ast.ByIndex(uint32(v))}, nil
}

func readMemarg(r *bytes.Reader) (ast.Memarg, error) {
	align, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return ast.Memarg{}, fmt.Errorf("read align: %w", err)
	}
	offset, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return ast.Memarg{}, fmt.Errorf("read offset: %w", err)
	}
	return ast.Memarg{Align: align, Offset: offset}, nil
}

// readPlainInstr decodes every instruction other than block/loop/if/else/end
// (those are handled by readInstrSeq since they carry nested bodies).
func readPlainInstr(op wasm.Opcode, r *bytes.Reader) (ast.Instr, error) {
	i := ast.Instr{Op: op}
	switch op {
	case wasm.OpcodeUnreachable, wasm.OpcodeNop, wasm.OpcodeReturn,
		wasm.OpcodeDrop, wasm.OpcodeSelect,
		wasm.OpcodeI32Eqz, wasm.OpcodeI32Eq, wasm.OpcodeI32Ne,
		wasm.OpcodeI32LtS, wasm.OpcodeI32LtU, wasm.OpcodeI32GtS, wasm.OpcodeI32GtU,
		wasm.OpcodeI32LeS, wasm.OpcodeI32LeU, wasm.OpcodeI32GeS, wasm.OpcodeI32GeU,
		wasm.OpcodeI64Eqz, wasm.OpcodeI64Eq, wasm.OpcodeI64Ne,
		wasm.OpcodeI64LtS, wasm.OpcodeI64LtU, wasm.OpcodeI64GtS, wasm.OpcodeI64GtU,
		wasm.OpcodeI64LeS, wasm.OpcodeI64LeU, wasm.OpcodeI64GeS, wasm.OpcodeI64GeU,
		wasm.OpcodeF32Eq, wasm.OpcodeF32Ne, wasm.OpcodeF32Lt, wasm.OpcodeF32Gt, wasm.OpcodeF32Le, wasm.OpcodeF32Ge,
		wasm.OpcodeF64Eq, wasm.OpcodeF64Ne, wasm.OpcodeF64Lt, wasm.OpcodeF64Gt, wasm.OpcodeF64Le, wasm.OpcodeF64Ge,
		wasm.OpcodeI32Clz, wasm.OpcodeI32Ctz, wasm.OpcodeI32Popcnt,
		wasm.OpcodeI32Add, wasm.OpcodeI32Sub, wasm.OpcodeI32Mul, wasm.OpcodeI32DivS, wasm.OpcodeI32DivU,
		wasm.OpcodeI32RemS, wasm.OpcodeI32RemU, wasm.OpcodeI32And, wasm.OpcodeI32Or, wasm.OpcodeI32Xor,
		wasm.OpcodeI32Shl, wasm.OpcodeI32ShrS, wasm.OpcodeI32ShrU, wasm.OpcodeI32Rotl, wasm.OpcodeI32Rotr,
		wasm.OpcodeI64Clz, wasm.OpcodeI64Ctz, wasm.OpcodeI64Popcnt,
		wasm.OpcodeI64Add, wasm.OpcodeI64Sub, wasm.OpcodeI64Mul, wasm.OpcodeI64DivS, wasm.OpcodeI64DivU,
		wasm.OpcodeI64RemS, wasm.OpcodeI64RemU, wasm.OpcodeI64And, wasm.OpcodeI64Or, wasm.OpcodeI64Xor,
		wasm.OpcodeI64Shl, wasm.OpcodeI64ShrS, wasm.OpcodeI64ShrU, wasm.OpcodeI64Rotl, wasm.OpcodeI64Rotr,
		wasm.OpcodeF32Abs, wasm.OpcodeF32Neg, wasm.OpcodeF32Ceil, wasm.OpcodeF32Floor, wasm.OpcodeF32Trunc,
		wasm.OpcodeF32Nearest, wasm.OpcodeF32Sqrt, wasm.OpcodeF32Add, wasm.OpcodeF32Sub, wasm.OpcodeF32Mul,
		wasm.OpcodeF32Div, wasm.OpcodeF32Min, wasm.OpcodeF32Max, wasm.OpcodeF32Copysign,
		wasm.OpcodeF64Abs, wasm.OpcodeF64Neg, wasm.OpcodeF64Ceil, wasm.OpcodeF64Floor, wasm.OpcodeF64Trunc,
		wasm.OpcodeF64Nearest, wasm.OpcodeF64Sqrt, wasm.OpcodeF64Add, wasm.OpcodeF64Sub, wasm.OpcodeF64Mul,
		wasm.OpcodeF64Div, wasm.OpcodeF64Min, wasm.OpcodeF64Max, wasm.OpcodeF64Copysign,
		wasm.OpcodeI32WrapI64, wasm.OpcodeI32TruncF32S, wasm.OpcodeI32TruncF32U, wasm.OpcodeI32TruncF64S, wasm.OpcodeI32TruncF64U,
		wasm.OpcodeI64ExtendI32S, wasm.OpcodeI64ExtendI32U, wasm.OpcodeI64TruncF32S, wasm.OpcodeI64TruncF32U,
		wasm.OpcodeI64TruncF64S, wasm.OpcodeI64TruncF64U,
		wasm.OpcodeF32ConvertI32S, wasm.OpcodeF32ConvertI32U, wasm.OpcodeF32ConvertI64S, wasm.OpcodeF32ConvertI64U, wasm.OpcodeF32DemoteF64,
		wasm.OpcodeF64ConvertI32S, wasm.OpcodeF64ConvertI32U, wasm.OpcodeF64ConvertI64S, wasm.OpcodeF64ConvertI64U, wasm.OpcodeF64PromoteF32,
		wasm.OpcodeI32ReinterpretF32, wasm.OpcodeI64ReinterpretF64, wasm.OpcodeF32ReinterpretI32, wasm.OpcodeF64ReinterpretI64,
		wasm.OpcodeI32Extend8S, wasm.OpcodeI32Extend16S, wasm.OpcodeI64Extend8S, wasm.OpcodeI64Extend16S, wasm.OpcodeI64Extend32S,
		wasm.OpcodeRefIsNull:
		return i, nil

	case wasm.OpcodeBrTable:
		n, err := readVectorLen(r)
		if err != nil {
			return i, err
		}
		targets := make([]ast.Ref, n)
		for j := range targets {
			targets[j], err = readIndexRef(r)
			if err != nil {
				return i, fmt.Errorf("%d-th br_table target: %w", j, err)
			}
		}
		def, err := readIndexRef(r)
		if err != nil {
			return i, fmt.Errorf("br_table default: %w", err)
		}
		i.Targets, i.Default = targets, def
		return i, nil

	case wasm.OpcodeBr, wasm.OpcodeBrIf,
		wasm.OpcodeCall, wasm.OpcodeLocalGet, wasm.OpcodeLocalSet, wasm.OpcodeLocalTee,
		wasm.OpcodeGlobalGet, wasm.OpcodeGlobalSet,
		wasm.OpcodeTableGet, wasm.OpcodeTableSet,
		wasm.OpcodeRefFunc:
		ref, err := readIndexRef(r)
		if err != nil {
			return i, fmt.Errorf("read index operand: %w", err)
		}
		i.Ref = ref
		return i, nil

	case wasm.OpcodeRefNull:
		vt, err := readValueType(r)
		if err != nil {
			return i, err
		}
		i.I32 = int32(vt)
		return i, nil

	case wasm.OpcodeCallIndirect:
		typeRef, err := readIndexRef(r)
		if err != nil {
			return i, fmt.Errorf("call_indirect type: %w", err)
		}
		tableRef, err := readIndexRef(r)
		if err != nil {
			return i, fmt.Errorf("call_indirect table: %w", err)
		}
		i.Ref, i.Ref2 = typeRef, tableRef
		return i, nil

	case wasm.OpcodeSelectT:
		n, err := readVectorLen(r)
		if err != nil {
			return i, err
		}
		types := make([]wasm.ValueType, n)
		for j := range types {
			types[j], err = readValueType(r)
			if err != nil {
				return i, err
			}
		}
		i.SelectTypes = types
		return i, nil

	case wasm.OpcodeI32Const:
		v, _, err := leb128.DecodeInt32(r)
		if err != nil {
			return i, fmt.Errorf("i32.const: %w", err)
		}
		i.I32 = v
		return i, nil
	case wasm.OpcodeI64Const:
		v, _, err := leb128.DecodeInt64(r)
		if err != nil {
			return i, fmt.Errorf("i64.const: %w", err)
		}
		i.I64 = v
		return i, nil
	case wasm.OpcodeF32Const:
		var buf [4]byte
		if _, err := ioReadFull(r, buf[:]); err != nil {
			return i, fmt.Errorf("f32.const: %w", err)
		}
		i.F32 = float32FromBits(buf)
		return i, nil
	case wasm.OpcodeF64Const:
		var buf [8]byte
		if _, err := ioReadFull(r, buf[:]); err != nil {
			return i, fmt.Errorf("f64.const: %w", err)
		}
		i.F64 = float64FromBits(buf)
		return i, nil

	case wasm.OpcodeI32Load, wasm.OpcodeI64Load, wasm.OpcodeF32Load, wasm.OpcodeF64Load,
		wasm.OpcodeI32Load8S, wasm.OpcodeI32Load8U, wasm.OpcodeI32Load16S, wasm.OpcodeI32Load16U,
		wasm.OpcodeI64Load8S, wasm.OpcodeI64Load8U, wasm.OpcodeI64Load16S, wasm.OpcodeI64Load16U,
		wasm.OpcodeI64Load32S, wasm.OpcodeI64Load32U,
		wasm.OpcodeI32Store, wasm.OpcodeI64Store, wasm.OpcodeF32Store, wasm.OpcodeF64Store,
		wasm.OpcodeI32Store8, wasm.OpcodeI32Store16, wasm.OpcodeI64Store8, wasm.OpcodeI64Store16, wasm.OpcodeI64Store32:
		m, err := readMemarg(r)
		if err != nil {
			return i, err
		}
		i.Memarg = m
		return i, nil

	case wasm.OpcodeMemorySize, wasm.OpcodeMemoryGrow:
		b, err := r.ReadByte()
		if err != nil || b != 0x00 {
			return i, fmt.Errorf("expected reserved byte 0x00 after memory.size/grow")
		}
		return i, nil

	case wasm.OpcodeMisc:
		return readMiscInstr(r)
	case wasm.OpcodeVector:
		return i, fmt.Errorf("%w: SIMD vector instructions", ErrFeatureNotSupported)

	default:
		return i, &IllegalOpcodeError{Byte: byte(op)}
	}
}

func readMiscInstr(r *bytes.Reader) (ast.Instr, error) {
	sub, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return ast.Instr{}, fmt.Errorf("read misc opcode: %w", err)
	}
	i := ast.Instr{Op: wasm.OpcodeMisc, Misc: wasm.MiscOpcode(sub)}
	switch wasm.MiscOpcode(sub) {
	case wasm.MiscOpcodeI32TruncSatF32S, wasm.MiscOpcodeI32TruncSatF32U, wasm.MiscOpcodeI32TruncSatF64S, wasm.MiscOpcodeI32TruncSatF64U,
		wasm.MiscOpcodeI64TruncSatF32S, wasm.MiscOpcodeI64TruncSatF32U, wasm.MiscOpcodeI64TruncSatF64S, wasm.MiscOpcodeI64TruncSatF64U:
		return i, nil
	case wasm.MiscOpcodeMemoryInit:
		dataRef, err := readIndexRef(r)
		if err != nil {
			return i, err
		}
		if _, err := r.ReadByte(); err != nil { // reserved memidx, always 0
			return i, err
		}
		i.Ref = dataRef
		return i, nil
	case wasm.MiscOpcodeDataDrop:
		ref, err := readIndexRef(r)
		if err != nil {
			return i, err
		}
		i.Ref = ref
		return i, nil
	case wasm.MiscOpcodeMemoryCopy:
		if _, err := r.ReadByte(); err != nil {
			return i, err
		}
		if _, err := r.ReadByte(); err != nil {
			return i, err
		}
		return i, nil
	case wasm.MiscOpcodeMemoryFill:
		if _, err := r.ReadByte(); err != nil {
			return i, err
		}
		return i, nil
	case wasm.MiscOpcodeTableInit:
		elemRef, err := readIndexRef(r)
		if err != nil {
			return i, err
		}
		tableRef, err := readIndexRef(r)
		if err != nil {
			return i, err
		}
		i.Ref, i.Ref2 = elemRef, tableRef
		return i, nil
	case wasm.MiscOpcodeElemDrop:
		ref, err := readIndexRef(r)
		if err != nil {
			return i, err
		}
		i.Ref = ref
		return i, nil
	case wasm.MiscOpcodeTableCopy:
		dst, err := readIndexRef(r)
		if err != nil {
			return i, err
		}
		src, err := readIndexRef(r)
		if err != nil {
			return i, err
		}
		i.Ref, i.Ref2 = dst, src
		return i, nil
	case wasm.MiscOpcodeTableGrow, wasm.MiscOpcodeTableSize, wasm.MiscOpcodeTableFill:
		ref, err := readIndexRef(r)
		if err != nil {
			return i, err
		}
		i.Ref = ref
		return i, nil
	default:
		return i, fmt.Errorf("%w: misc opcode %d (GC proposal)", ErrFeatureNotSupported, sub)
	}
}
