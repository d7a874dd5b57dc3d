package script

import (
	"fmt"
	"math"
	"strconv"

	"github.com/wasmcore/wasmcore/interp"
	"github.com/wasmcore/wasmcore/link"
	"github.com/wasmcore/wasmcore/wasm"
)

// toLinkValue converts a script-format literal to a link.Value, the
// concrete representation every script action operates through
// regardless of which algebra the target module runs under.
func toLinkValue(v Val) (link.Value, error) {
	switch v.Type {
	case "i32":
		n, err := strconv.ParseInt(v.Value, 10, 32)
		if err != nil {
			return link.Value{}, fmt.Errorf("i32 literal %q: %w", v.Value, err)
		}
		return link.I32Value(int32(n)), nil
	case "i64":
		n, err := strconv.ParseInt(v.Value, 10, 64)
		if err != nil {
			return link.Value{}, fmt.Errorf("i64 literal %q: %w", v.Value, err)
		}
		return link.I64Value(n), nil
	case "f32":
		bits, err := strconv.ParseUint(v.Value, 10, 32)
		if err != nil {
			return link.Value{}, fmt.Errorf("f32 literal %q: %w", v.Value, err)
		}
		return link.F32Value(math.Float32frombits(uint32(bits))), nil
	case "f64":
		bits, err := strconv.ParseUint(v.Value, 10, 64)
		if err != nil {
			return link.Value{}, fmt.Errorf("f64 literal %q: %w", v.Value, err)
		}
		return link.F64Value(math.Float64frombits(bits)), nil
	case "funcref", "externref":
		if v.Value == "null" {
			return link.NullRef(wasm.ValueTypeFuncRef), nil
		}
		n, err := strconv.ParseUint(v.Value, 10, 32)
		if err != nil {
			return link.Value{}, fmt.Errorf("ref literal %q: %w", v.Value, err)
		}
		return link.FuncRefValue(uint32(n)), nil
	}
	return link.Value{}, fmt.Errorf("unknown value type %q", v.Type)
}

// valsEqual compares an actual link.Value against an expected script
// literal. NaN bit patterns compare by raw bits (script literals
// distinguish canonical vs arithmetic NaN by exact bits), not by the
// float equality operator, which treats every NaN as unequal.
func valsEqual(actual link.Value, expected Val) (bool, error) {
	want, err := toLinkValue(expected)
	if err != nil {
		return false, err
	}
	switch expected.Type {
	case "i32":
		return actual.I32 == want.I32, nil
	case "i64":
		return actual.I64 == want.I64, nil
	case "f32":
		return math.Float32bits(actual.F32) == math.Float32bits(want.F32), nil
	case "f64":
		return math.Float64bits(actual.F64) == math.Float64bits(want.F64), nil
	case "funcref", "externref":
		if want.RefNull {
			return actual.RefNull, nil
		}
		return !actual.RefNull && actual.FuncIdx == want.FuncIdx, nil
	}
	return false, fmt.Errorf("unknown value type %q", expected.Type)
}

func argsToLink(vs []Val) ([]link.Value, error) {
	out := make([]link.Value, len(vs))
	for i, v := range vs {
		lv, err := toLinkValue(v)
		if err != nil {
			return nil, err
		}
		out[i] = lv
	}
	return out, nil
}

func argsToInterp(alg interp.Algebra, vs []link.Value) []interp.Value {
	out := make([]interp.Value, len(vs))
	for i, v := range vs {
		out[i] = interp.FromLink(alg, v)
	}
	return out
}
