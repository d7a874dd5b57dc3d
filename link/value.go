package link

import "github.com/wasmcore/wasmcore/wasm"

// Value is a concrete runtime value, used wherever linking needs one:
// global/table/data initialisers are always evaluated concretely even
// when the module they belong to will later run under the symbolic
// algebra (interp lifts these into its own representation once linking
// completes).
type Value struct {
	Type wasm.ValueType

	I32 int32
	I64 int64
	F32 float32
	F64 float64

	// Meaningful when Type is FuncRef or Extern.
	RefNull bool
	FuncIdx uint32
}

func I32Value(v int32) Value { return Value{Type: wasm.ValueTypeI32, I32: v} }
func I64Value(v int64) Value { return Value{Type: wasm.ValueTypeI64, I64: v} }
func F32Value(v float32) Value { return Value{Type: wasm.ValueTypeF32, F32: v} }
func F64Value(v float64) Value { return Value{Type: wasm.ValueTypeF64, F64: v} }

func NullRef(t wasm.ValueType) Value { return Value{Type: t, RefNull: true} }

func FuncRefValue(idx uint32) Value {
	return Value{Type: wasm.ValueTypeFuncRef, FuncIdx: idx}
}
