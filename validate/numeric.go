package validate

import "github.com/wasmcore/wasmcore/wasm"

var (
	i32 = fromValueType(wasm.ValueTypeI32)
	i64 = fromValueType(wasm.ValueTypeI64)
	f32 = fromValueType(wasm.ValueTypeF32)
	f64 = fromValueType(wasm.ValueTypeF64)
)

// unaryOps maps an opcode operating on a single value of type T (Clz,
// Neg, Sqrt, sign-extension, Eqz, ...) to (T, result). Eqz's result is
// i32 regardless of operand type; every other unary numeric op is
// type-preserving.
var unaryOps = map[wasm.Opcode][2]StackType{}

// binaryOps maps an opcode popping two values of the same type T and
// pushing one result to (T, result). Arithmetic ops preserve T;
// relational ops always produce i32.
var binaryOps = map[wasm.Opcode][2]StackType{}

// convertOps maps a conversion/reinterpretation opcode to (operand type,
// result type), the two sides necessarily differing.
var convertOps = map[wasm.Opcode][2]StackType{}

func addRange(m map[wasm.Opcode][2]StackType, lo, hi wasm.Opcode, operand, result StackType) {
	for b := byte(lo); b <= byte(hi); b++ {
		m[wasm.Opcode(b)] = [2]StackType{operand, result}
	}
}

func init() {
	addRange(unaryOps, wasm.OpcodeI32Clz, wasm.OpcodeI32Popcnt, i32, i32)
	addRange(unaryOps, wasm.OpcodeI64Clz, wasm.OpcodeI64Popcnt, i64, i64)
	addRange(unaryOps, wasm.OpcodeF32Abs, wasm.OpcodeF32Sqrt, f32, f32)
	addRange(unaryOps, wasm.OpcodeF64Abs, wasm.OpcodeF64Sqrt, f64, f64)
	unaryOps[wasm.OpcodeI32Eqz] = [2]StackType{i32, i32}
	unaryOps[wasm.OpcodeI64Eqz] = [2]StackType{i64, i32}
	addRange(unaryOps, wasm.OpcodeI32Extend8S, wasm.OpcodeI32Extend16S, i32, i32)
	addRange(unaryOps, wasm.OpcodeI64Extend8S, wasm.OpcodeI64Extend32S, i64, i64)

	addRange(binaryOps, wasm.OpcodeI32Add, wasm.OpcodeI32Rotr, i32, i32)
	addRange(binaryOps, wasm.OpcodeI64Add, wasm.OpcodeI64Rotr, i64, i64)
	addRange(binaryOps, wasm.OpcodeF32Add, wasm.OpcodeF32Copysign, f32, f32)
	addRange(binaryOps, wasm.OpcodeF64Add, wasm.OpcodeF64Copysign, f64, f64)
	addRange(binaryOps, wasm.OpcodeI32Eq, wasm.OpcodeI32GeU, i32, i32)
	addRange(binaryOps, wasm.OpcodeI64Eq, wasm.OpcodeI64GeU, i64, i32)
	addRange(binaryOps, wasm.OpcodeF32Eq, wasm.OpcodeF32Ge, f32, i32)
	addRange(binaryOps, wasm.OpcodeF64Eq, wasm.OpcodeF64Ge, f64, i32)

	convertOps[wasm.OpcodeI32WrapI64] = [2]StackType{i64, i32}
	convertOps[wasm.OpcodeI32TruncF32S] = [2]StackType{f32, i32}
	convertOps[wasm.OpcodeI32TruncF32U] = [2]StackType{f32, i32}
	convertOps[wasm.OpcodeI32TruncF64S] = [2]StackType{f64, i32}
	convertOps[wasm.OpcodeI32TruncF64U] = [2]StackType{f64, i32}
	convertOps[wasm.OpcodeI64ExtendI32S] = [2]StackType{i32, i64}
	convertOps[wasm.OpcodeI64ExtendI32U] = [2]StackType{i32, i64}
	convertOps[wasm.OpcodeI64TruncF32S] = [2]StackType{f32, i64}
	convertOps[wasm.OpcodeI64TruncF32U] = [2]StackType{f32, i64}
	convertOps[wasm.OpcodeI64TruncF64S] = [2]StackType{f64, i64}
	convertOps[wasm.OpcodeI64TruncF64U] = [2]StackType{f64, i64}
	convertOps[wasm.OpcodeF32ConvertI32S] = [2]StackType{i32, f32}
	convertOps[wasm.OpcodeF32ConvertI32U] = [2]StackType{i32, f32}
	convertOps[wasm.OpcodeF32ConvertI64S] = [2]StackType{i64, f32}
	convertOps[wasm.OpcodeF32ConvertI64U] = [2]StackType{i64, f32}
	convertOps[wasm.OpcodeF32DemoteF64] = [2]StackType{f64, f32}
	convertOps[wasm.OpcodeF64ConvertI32S] = [2]StackType{i32, f64}
	convertOps[wasm.OpcodeF64ConvertI32U] = [2]StackType{i32, f64}
	convertOps[wasm.OpcodeF64ConvertI64S] = [2]StackType{i64, f64}
	convertOps[wasm.OpcodeF64ConvertI64U] = [2]StackType{i64, f64}
	convertOps[wasm.OpcodeF64PromoteF32] = [2]StackType{f32, f64}
	convertOps[wasm.OpcodeI32ReinterpretF32] = [2]StackType{f32, i32}
	convertOps[wasm.OpcodeI64ReinterpretF64] = [2]StackType{f64, i64}
	convertOps[wasm.OpcodeF32ReinterpretI32] = [2]StackType{i32, f32}
	convertOps[wasm.OpcodeF64ReinterpretI64] = [2]StackType{i64, f64}

	// trunc_sat (misc 0xFC 0..7) mirrors the corresponding trunc operand
	// types but never traps, so it is type-checked identically.
	miscConvertOps[wasm.MiscOpcodeI32TruncSatF32S] = [2]StackType{f32, i32}
	miscConvertOps[wasm.MiscOpcodeI32TruncSatF32U] = [2]StackType{f32, i32}
	miscConvertOps[wasm.MiscOpcodeI32TruncSatF64S] = [2]StackType{f64, i32}
	miscConvertOps[wasm.MiscOpcodeI32TruncSatF64U] = [2]StackType{f64, i32}
	miscConvertOps[wasm.MiscOpcodeI64TruncSatF32S] = [2]StackType{f32, i64}
	miscConvertOps[wasm.MiscOpcodeI64TruncSatF32U] = [2]StackType{f32, i64}
	miscConvertOps[wasm.MiscOpcodeI64TruncSatF64S] = [2]StackType{f64, i64}
	miscConvertOps[wasm.MiscOpcodeI64TruncSatF64U] = [2]StackType{f64, i64}
}

var miscConvertOps = map[wasm.MiscOpcode][2]StackType{}
