package validate

import "github.com/wasmcore/wasmcore/wasm"

func isLoad(op wasm.Opcode) bool {
	switch op {
	case wasm.OpcodeI32Load, wasm.OpcodeI64Load, wasm.OpcodeF32Load, wasm.OpcodeF64Load,
		wasm.OpcodeI32Load8S, wasm.OpcodeI32Load8U, wasm.OpcodeI32Load16S, wasm.OpcodeI32Load16U,
		wasm.OpcodeI64Load8S, wasm.OpcodeI64Load8U, wasm.OpcodeI64Load16S, wasm.OpcodeI64Load16U,
		wasm.OpcodeI64Load32S, wasm.OpcodeI64Load32U:
		return true
	}
	return false
}

func isStore(op wasm.Opcode) bool {
	switch op {
	case wasm.OpcodeI32Store, wasm.OpcodeI64Store, wasm.OpcodeF32Store, wasm.OpcodeF64Store,
		wasm.OpcodeI32Store8, wasm.OpcodeI32Store16, wasm.OpcodeI64Store8, wasm.OpcodeI64Store16, wasm.OpcodeI64Store32:
		return true
	}
	return false
}

func loadResultType(op wasm.Opcode) StackType {
	switch op {
	case wasm.OpcodeI32Load, wasm.OpcodeI32Load8S, wasm.OpcodeI32Load8U, wasm.OpcodeI32Load16S, wasm.OpcodeI32Load16U:
		return i32
	case wasm.OpcodeI64Load, wasm.OpcodeI64Load8S, wasm.OpcodeI64Load8U, wasm.OpcodeI64Load16S, wasm.OpcodeI64Load16U,
		wasm.OpcodeI64Load32S, wasm.OpcodeI64Load32U:
		return i64
	case wasm.OpcodeF32Load:
		return f32
	default:
		return f64
	}
}

func storeValueType(op wasm.Opcode) StackType {
	switch op {
	case wasm.OpcodeI32Store, wasm.OpcodeI32Store8, wasm.OpcodeI32Store16:
		return i32
	case wasm.OpcodeI64Store, wasm.OpcodeI64Store8, wasm.OpcodeI64Store16, wasm.OpcodeI64Store32:
		return i64
	case wasm.OpcodeF32Store:
		return f32
	default:
		return f64
	}
}
