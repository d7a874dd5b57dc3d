package interp

import (
	"math"

	"github.com/wasmcore/wasmcore/link"
	"github.com/wasmcore/wasmcore/wasm"
)

// FromLink lifts a concrete link.Value (the only representation linking
// ever produces) into this package's Value for the given algebra. In
// concrete mode this is a plain re-tag; in symbolic mode it wraps the
// concrete witness as a ground term.
func FromLink(alg Algebra, v link.Value) Value {
	switch v.Type {
	case wasm.ValueTypeI32:
		return alg.ConstI32(v.I32)
	case wasm.ValueTypeI64:
		return alg.ConstI64(v.I64)
	case wasm.ValueTypeF32:
		return alg.ConstF32(v.F32)
	case wasm.ValueTypeF64:
		return alg.ConstF64(v.F64)
	case wasm.ValueTypeFuncRef:
		if v.RefNull {
			return alg.NullRef(v.Type)
		}
		return alg.FuncRef(v.FuncIdx)
	default:
		return alg.NullRef(v.Type)
	}
}

// ToLink lowers a concrete Value back to link.Value, for storing into a
// GlobalInstance/TableInstance or returning to a caller outside the
// machine. ok is false if v has no concrete witness (symbolic mode only).
func ToLink(alg Algebra, v Value) (link.Value, bool) {
	switch v.Type() {
	case wasm.ValueTypeI32:
		i, ok := alg.AsI32(v)
		return link.I32Value(i), ok
	case wasm.ValueTypeI64:
		bits, ok := alg.Bits(v)
		return link.I64Value(int64(bits)), ok
	case wasm.ValueTypeF32:
		bits, ok := alg.Bits(v)
		return link.F32Value(math.Float32frombits(uint32(bits))), ok
	case wasm.ValueTypeF64:
		bits, ok := alg.Bits(v)
		return link.F64Value(math.Float64frombits(bits)), ok
	case wasm.ValueTypeFuncRef:
		idx, isNull, ok := alg.RefInfo(v)
		if !ok {
			return link.Value{}, false
		}
		if isNull {
			return link.NullRef(wasm.ValueTypeFuncRef), true
		}
		return link.FuncRefValue(idx), true
	}
	return link.Value{}, false
}
