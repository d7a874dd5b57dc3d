package interp

import (
	"fmt"

	"github.com/wasmcore/wasmcore/ast"
	"github.com/wasmcore/wasmcore/wasm"
)

// opNumeric dispatches every numeric opcode not already handled inline
// in step (consts, eqz is folded into Unary here too). Arity mirrors
// validate/numeric.go's unaryOps/binaryOps/convertOps ranges.
func (m *Machine) opNumeric(fr *frame, in *ast.Instr) error {
	switch {
	case isUnary(in.Op):
		a := m.pop()
		r, err := m.Alg.Unary(in.Op, a)
		if err != nil {
			return err
		}
		m.push(r)
	case isBinary(in.Op):
		b := m.pop()
		a := m.pop()
		r, err := m.Alg.Binary(in.Op, a, b)
		if err != nil {
			return err
		}
		m.push(r)
	case isConvert(in.Op):
		a := m.pop()
		r, err := m.Alg.Convert(in.Op, a)
		if err != nil {
			return err
		}
		m.push(r)
	default:
		return fmt.Errorf("unhandled opcode %#x", in.Op)
	}
	fr.pc++
	return nil
}

func inRange(op, lo, hi wasm.Opcode) bool { return op >= lo && op <= hi }

func isUnary(op wasm.Opcode) bool {
	switch {
	case inRange(op, wasm.OpcodeI32Clz, wasm.OpcodeI32Popcnt),
		inRange(op, wasm.OpcodeI64Clz, wasm.OpcodeI64Popcnt),
		inRange(op, wasm.OpcodeF32Abs, wasm.OpcodeF32Sqrt),
		inRange(op, wasm.OpcodeF64Abs, wasm.OpcodeF64Sqrt),
		inRange(op, wasm.OpcodeI32Extend8S, wasm.OpcodeI32Extend16S),
		inRange(op, wasm.OpcodeI64Extend8S, wasm.OpcodeI64Extend32S):
		return true
	case op == wasm.OpcodeI32Eqz, op == wasm.OpcodeI64Eqz:
		return true
	}
	return false
}

func isBinary(op wasm.Opcode) bool {
	switch {
	case inRange(op, wasm.OpcodeI32Add, wasm.OpcodeI32Rotr),
		inRange(op, wasm.OpcodeI64Add, wasm.OpcodeI64Rotr),
		inRange(op, wasm.OpcodeF32Add, wasm.OpcodeF32Copysign),
		inRange(op, wasm.OpcodeF64Add, wasm.OpcodeF64Copysign),
		inRange(op, wasm.OpcodeI32Eq, wasm.OpcodeI32GeU),
		inRange(op, wasm.OpcodeI64Eq, wasm.OpcodeI64GeU),
		inRange(op, wasm.OpcodeF32Eq, wasm.OpcodeF32Ge),
		inRange(op, wasm.OpcodeF64Eq, wasm.OpcodeF64Ge):
		return true
	}
	return false
}

func isConvert(op wasm.Opcode) bool {
	switch op {
	case wasm.OpcodeI32WrapI64,
		wasm.OpcodeI32TruncF32S, wasm.OpcodeI32TruncF32U, wasm.OpcodeI32TruncF64S, wasm.OpcodeI32TruncF64U,
		wasm.OpcodeI64ExtendI32S, wasm.OpcodeI64ExtendI32U,
		wasm.OpcodeI64TruncF32S, wasm.OpcodeI64TruncF32U, wasm.OpcodeI64TruncF64S, wasm.OpcodeI64TruncF64U,
		wasm.OpcodeF32ConvertI32S, wasm.OpcodeF32ConvertI32U, wasm.OpcodeF32ConvertI64S, wasm.OpcodeF32ConvertI64U,
		wasm.OpcodeF32DemoteF64,
		wasm.OpcodeF64ConvertI32S, wasm.OpcodeF64ConvertI32U, wasm.OpcodeF64ConvertI64S, wasm.OpcodeF64ConvertI64U,
		wasm.OpcodeF64PromoteF32,
		wasm.OpcodeI32ReinterpretF32, wasm.OpcodeI64ReinterpretF64,
		wasm.OpcodeF32ReinterpretI32, wasm.OpcodeF64ReinterpretI64:
		return true
	}
	return false
}
