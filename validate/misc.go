package validate

import (
	"fmt"

	"github.com/wasmcore/wasmcore/ast"
	"github.com/wasmcore/wasmcore/wasm"
)

func validateMisc(v *moduleView, ts *typeStack, in *ast.Instr) error {
	if eff, ok := miscConvertOps[in.Misc]; ok {
		if _, err := ts.popExpect(eff[0]); err != nil {
			return err
		}
		ts.push(eff[1])
		return nil
	}

	switch in.Misc {
	case wasm.MiscOpcodeMemoryInit:
		if v.numMemories() == 0 {
			return fmt.Errorf("unknown memory 0")
		}
		return popTriple(ts, i32, i32, i32)
	case wasm.MiscOpcodeDataDrop:
		return nil
	case wasm.MiscOpcodeMemoryCopy, wasm.MiscOpcodeMemoryFill:
		if v.numMemories() == 0 {
			return fmt.Errorf("unknown memory 0")
		}
		return popTriple(ts, i32, i32, i32)

	case wasm.MiscOpcodeTableInit:
		if _, err := v.tableType(in.Ref2.Index); err != nil {
			return err
		}
		return popTriple(ts, i32, i32, i32)
	case wasm.MiscOpcodeElemDrop:
		return nil
	case wasm.MiscOpcodeTableCopy:
		dst, err := v.tableType(in.Ref.Index)
		if err != nil {
			return err
		}
		src, err := v.tableType(in.Ref2.Index)
		if err != nil {
			return err
		}
		if dst.ElemType != src.ElemType {
			return fmt.Errorf("type mismatch: table.copy element types differ")
		}
		return popTriple(ts, i32, i32, i32)
	case wasm.MiscOpcodeTableGrow:
		tt, err := v.tableType(in.Ref.Index)
		if err != nil {
			return err
		}
		if _, err := ts.popExpect(i32); err != nil {
			return err
		}
		if _, err := ts.popExpect(fromValueType(tt.ElemType)); err != nil {
			return err
		}
		ts.push(i32)
		return nil
	case wasm.MiscOpcodeTableSize:
		if _, err := v.tableType(in.Ref.Index); err != nil {
			return err
		}
		ts.push(i32)
		return nil
	case wasm.MiscOpcodeTableFill:
		tt, err := v.tableType(in.Ref.Index)
		if err != nil {
			return err
		}
		if _, err := ts.popExpect(i32); err != nil {
			return err
		}
		if _, err := ts.popExpect(fromValueType(tt.ElemType)); err != nil {
			return err
		}
		_, err = ts.popExpect(i32)
		return err
	}
	return fmt.Errorf("unhandled misc opcode %d", in.Misc)
}

// popTriple pops three values of type t, in push order (so the last
// popped is the first operand), the shape every bulk-memory/table
// "dst, src, len" instruction shares.
func popTriple(ts *typeStack, a, b, c StackType) error {
	if _, err := ts.popExpect(c); err != nil {
		return err
	}
	if _, err := ts.popExpect(b); err != nil {
		return err
	}
	_, err := ts.popExpect(a)
	return err
}
