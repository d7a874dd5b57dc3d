package interp

import (
	"math"
	"math/bits"

	"github.com/wasmcore/wasmcore/wasm"
)

// Concrete is the Algebra used for ordinary execution: every Value is a
// plain machine word, arithmetic follows two's complement wraparound and
// IEEE-754 float semantics, trapping on division/overflow/NaN-truncation.
type Concrete struct{}

// cval is the concrete Value representation: a tagged union of the four
// numeric types plus (nullable) references, mirroring link.Value since
// both describe the same set of runtime values.
type cval struct {
	t       wasm.ValueType
	i32     int32
	i64     int64
	f32     float32
	f64     float64
	refNull bool
	funcIdx uint32
}

func (v cval) Type() wasm.ValueType { return v.t }

func I32(v int32) Value                { return cval{t: wasm.ValueTypeI32, i32: v} }
func I64(v int64) Value                { return cval{t: wasm.ValueTypeI64, i64: v} }
func F32(v float32) Value              { return cval{t: wasm.ValueTypeF32, f32: v} }
func F64(v float64) Value              { return cval{t: wasm.ValueTypeF64, f64: v} }
func NullRefC(t wasm.ValueType) Value  { return cval{t: t, refNull: true} }
func FuncRefC(idx uint32) Value        { return cval{t: wasm.ValueTypeFuncRef, funcIdx: idx} }

func asC(v Value) cval { return v.(cval) }

func (Concrete) ConstI32(v int32) Value       { return I32(v) }
func (Concrete) ConstI64(v int64) Value       { return I64(v) }
func (Concrete) ConstF32(v float32) Value     { return F32(v) }
func (Concrete) ConstF64(v float64) Value     { return F64(v) }
func (Concrete) NullRef(t wasm.ValueType) Value { return NullRefC(t) }
func (Concrete) FuncRef(idx uint32) Value     { return FuncRefC(idx) }

func (Concrete) AsI32(v Value) (int32, bool) { return asC(v).i32, true }
func (Concrete) AsU32(v Value) (uint32, bool) { return uint32(asC(v).i32), true }
func (Concrete) AsBool(v Value) (bool, bool)  { return asC(v).i32 != 0, true }

func (Concrete) RefInfo(v Value) (uint32, bool, bool) {
	c := asC(v)
	return c.funcIdx, c.refNull, true
}

func (Concrete) Bits(v Value) (uint64, bool) {
	c := asC(v)
	switch c.t {
	case wasm.ValueTypeI32:
		return uint64(uint32(c.i32)), true
	case wasm.ValueTypeI64:
		return uint64(c.i64), true
	case wasm.ValueTypeF32:
		return uint64(math.Float32bits(c.f32)), true
	case wasm.ValueTypeF64:
		return math.Float64bits(c.f64), true
	}
	return 0, false
}

func (Concrete) FromBits(t wasm.ValueType, b uint64) Value {
	switch t {
	case wasm.ValueTypeI32:
		return I32(int32(uint32(b)))
	case wasm.ValueTypeI64:
		return I64(int64(b))
	case wasm.ValueTypeF32:
		return F32(math.Float32frombits(uint32(b)))
	case wasm.ValueTypeF64:
		return F64(math.Float64frombits(b))
	}
	return nil
}

func (Concrete) Select(cond, a, b Value) Value {
	if asC(cond).i32 != 0 {
		return a
	}
	return b
}

func (Concrete) EvalChoice(cond Value) ([]Choice, error) {
	taken := asC(cond).i32 != 0
	return []Choice{{Taken: taken, Assumption: cond}}, nil
}

func (Concrete) Unary(op wasm.Opcode, av Value) (Value, error) {
	a := asC(av)
	switch op {
	case wasm.OpcodeI32Clz:
		return I32(int32(bits.LeadingZeros32(uint32(a.i32)))), nil
	case wasm.OpcodeI32Ctz:
		return I32(int32(bits.TrailingZeros32(uint32(a.i32)))), nil
	case wasm.OpcodeI32Popcnt:
		return I32(int32(bits.OnesCount32(uint32(a.i32)))), nil
	case wasm.OpcodeI32Eqz:
		return boolI32(a.i32 == 0), nil
	case wasm.OpcodeI32Extend8S:
		return I32(int32(int8(a.i32))), nil
	case wasm.OpcodeI32Extend16S:
		return I32(int32(int16(a.i32))), nil

	case wasm.OpcodeI64Clz:
		return I64(int64(bits.LeadingZeros64(uint64(a.i64)))), nil
	case wasm.OpcodeI64Ctz:
		return I64(int64(bits.TrailingZeros64(uint64(a.i64)))), nil
	case wasm.OpcodeI64Popcnt:
		return I64(int64(bits.OnesCount64(uint64(a.i64)))), nil
	case wasm.OpcodeI64Eqz:
		return boolI32(a.i64 == 0), nil
	case wasm.OpcodeI64Extend8S:
		return I64(int64(int8(a.i64))), nil
	case wasm.OpcodeI64Extend16S:
		return I64(int64(int16(a.i64))), nil
	case wasm.OpcodeI64Extend32S:
		return I64(int64(int32(a.i64))), nil

	case wasm.OpcodeF32Abs:
		return F32(float32(math.Abs(float64(a.f32)))), nil
	case wasm.OpcodeF32Neg:
		return F32(-a.f32), nil
	case wasm.OpcodeF32Ceil:
		return F32(float32(math.Ceil(float64(a.f32)))), nil
	case wasm.OpcodeF32Floor:
		return F32(float32(math.Floor(float64(a.f32)))), nil
	case wasm.OpcodeF32Trunc:
		return F32(float32(math.Trunc(float64(a.f32)))), nil
	case wasm.OpcodeF32Nearest:
		return F32(float32(math.RoundToEven(float64(a.f32)))), nil
	case wasm.OpcodeF32Sqrt:
		return F32(float32(math.Sqrt(float64(a.f32)))), nil

	case wasm.OpcodeF64Abs:
		return F64(math.Abs(a.f64)), nil
	case wasm.OpcodeF64Neg:
		return F64(-a.f64), nil
	case wasm.OpcodeF64Ceil:
		return F64(math.Ceil(a.f64)), nil
	case wasm.OpcodeF64Floor:
		return F64(math.Floor(a.f64)), nil
	case wasm.OpcodeF64Trunc:
		return F64(math.Trunc(a.f64)), nil
	case wasm.OpcodeF64Nearest:
		return F64(math.RoundToEven(a.f64)), nil
	case wasm.OpcodeF64Sqrt:
		return F64(math.Sqrt(a.f64)), nil
	}
	return nil, trapf(wasm.TrapUnreachable)
}

func boolI32(b bool) Value {
	if b {
		return I32(1)
	}
	return I32(0)
}

func (Concrete) Binary(op wasm.Opcode, av, bv Value) (Value, error) {
	a, b := asC(av), asC(bv)
	switch op {
	// i32 arithmetic
	case wasm.OpcodeI32Add:
		return I32(a.i32 + b.i32), nil
	case wasm.OpcodeI32Sub:
		return I32(a.i32 - b.i32), nil
	case wasm.OpcodeI32Mul:
		return I32(a.i32 * b.i32), nil
	case wasm.OpcodeI32DivS:
		if b.i32 == 0 {
			return nil, trapf(wasm.TrapIntegerDivideByZero)
		}
		if a.i32 == math.MinInt32 && b.i32 == -1 {
			return nil, trapf(wasm.TrapIntegerOverflow)
		}
		return I32(a.i32 / b.i32), nil
	case wasm.OpcodeI32DivU:
		if b.i32 == 0 {
			return nil, trapf(wasm.TrapIntegerDivideByZero)
		}
		return I32(int32(uint32(a.i32) / uint32(b.i32))), nil
	case wasm.OpcodeI32RemS:
		if b.i32 == 0 {
			return nil, trapf(wasm.TrapIntegerDivideByZero)
		}
		if a.i32 == math.MinInt32 && b.i32 == -1 {
			return I32(0), nil
		}
		return I32(a.i32 % b.i32), nil
	case wasm.OpcodeI32RemU:
		if b.i32 == 0 {
			return nil, trapf(wasm.TrapIntegerDivideByZero)
		}
		return I32(int32(uint32(a.i32) % uint32(b.i32))), nil
	case wasm.OpcodeI32And:
		return I32(a.i32 & b.i32), nil
	case wasm.OpcodeI32Or:
		return I32(a.i32 | b.i32), nil
	case wasm.OpcodeI32Xor:
		return I32(a.i32 ^ b.i32), nil
	case wasm.OpcodeI32Shl:
		return I32(a.i32 << (uint32(b.i32) % 32)), nil
	case wasm.OpcodeI32ShrS:
		return I32(a.i32 >> (uint32(b.i32) % 32)), nil
	case wasm.OpcodeI32ShrU:
		return I32(int32(uint32(a.i32) >> (uint32(b.i32) % 32))), nil
	case wasm.OpcodeI32Rotl:
		return I32(int32(bits.RotateLeft32(uint32(a.i32), int(b.i32%32)))), nil
	case wasm.OpcodeI32Rotr:
		return I32(int32(bits.RotateLeft32(uint32(a.i32), -int(b.i32%32)))), nil

	// i32 relational
	case wasm.OpcodeI32Eq:
		return boolI32(a.i32 == b.i32), nil
	case wasm.OpcodeI32Ne:
		return boolI32(a.i32 != b.i32), nil
	case wasm.OpcodeI32LtS:
		return boolI32(a.i32 < b.i32), nil
	case wasm.OpcodeI32LtU:
		return boolI32(uint32(a.i32) < uint32(b.i32)), nil
	case wasm.OpcodeI32GtS:
		return boolI32(a.i32 > b.i32), nil
	case wasm.OpcodeI32GtU:
		return boolI32(uint32(a.i32) > uint32(b.i32)), nil
	case wasm.OpcodeI32LeS:
		return boolI32(a.i32 <= b.i32), nil
	case wasm.OpcodeI32LeU:
		return boolI32(uint32(a.i32) <= uint32(b.i32)), nil
	case wasm.OpcodeI32GeS:
		return boolI32(a.i32 >= b.i32), nil
	case wasm.OpcodeI32GeU:
		return boolI32(uint32(a.i32) >= uint32(b.i32)), nil

	// i64 arithmetic
	case wasm.OpcodeI64Add:
		return I64(a.i64 + b.i64), nil
	case wasm.OpcodeI64Sub:
		return I64(a.i64 - b.i64), nil
	case wasm.OpcodeI64Mul:
		return I64(a.i64 * b.i64), nil
	case wasm.OpcodeI64DivS:
		if b.i64 == 0 {
			return nil, trapf(wasm.TrapIntegerDivideByZero)
		}
		if a.i64 == math.MinInt64 && b.i64 == -1 {
			return nil, trapf(wasm.TrapIntegerOverflow)
		}
		return I64(a.i64 / b.i64), nil
	case wasm.OpcodeI64DivU:
		if b.i64 == 0 {
			return nil, trapf(wasm.TrapIntegerDivideByZero)
		}
		return I64(int64(uint64(a.i64) / uint64(b.i64))), nil
	case wasm.OpcodeI64RemS:
		if b.i64 == 0 {
			return nil, trapf(wasm.TrapIntegerDivideByZero)
		}
		if a.i64 == math.MinInt64 && b.i64 == -1 {
			return I64(0), nil
		}
		return I64(a.i64 % b.i64), nil
	case wasm.OpcodeI64RemU:
		if b.i64 == 0 {
			return nil, trapf(wasm.TrapIntegerDivideByZero)
		}
		return I64(int64(uint64(a.i64) % uint64(b.i64))), nil
	case wasm.OpcodeI64And:
		return I64(a.i64 & b.i64), nil
	case wasm.OpcodeI64Or:
		return I64(a.i64 | b.i64), nil
	case wasm.OpcodeI64Xor:
		return I64(a.i64 ^ b.i64), nil
	case wasm.OpcodeI64Shl:
		return I64(a.i64 << (uint64(b.i64) % 64)), nil
	case wasm.OpcodeI64ShrS:
		return I64(a.i64 >> (uint64(b.i64) % 64)), nil
	case wasm.OpcodeI64ShrU:
		return I64(int64(uint64(a.i64) >> (uint64(b.i64) % 64))), nil
	case wasm.OpcodeI64Rotl:
		return I64(int64(bits.RotateLeft64(uint64(a.i64), int(b.i64%64)))), nil
	case wasm.OpcodeI64Rotr:
		return I64(int64(bits.RotateLeft64(uint64(a.i64), -int(b.i64%64)))), nil

	// i64 relational
	case wasm.OpcodeI64Eq:
		return boolI32(a.i64 == b.i64), nil
	case wasm.OpcodeI64Ne:
		return boolI32(a.i64 != b.i64), nil
	case wasm.OpcodeI64LtS:
		return boolI32(a.i64 < b.i64), nil
	case wasm.OpcodeI64LtU:
		return boolI32(uint64(a.i64) < uint64(b.i64)), nil
	case wasm.OpcodeI64GtS:
		return boolI32(a.i64 > b.i64), nil
	case wasm.OpcodeI64GtU:
		return boolI32(uint64(a.i64) > uint64(b.i64)), nil
	case wasm.OpcodeI64LeS:
		return boolI32(a.i64 <= b.i64), nil
	case wasm.OpcodeI64LeU:
		return boolI32(uint64(a.i64) <= uint64(b.i64)), nil
	case wasm.OpcodeI64GeS:
		return boolI32(a.i64 >= b.i64), nil
	case wasm.OpcodeI64GeU:
		return boolI32(uint64(a.i64) >= uint64(b.i64)), nil

	// f32 arithmetic + relational
	case wasm.OpcodeF32Add:
		return F32(a.f32 + b.f32), nil
	case wasm.OpcodeF32Sub:
		return F32(a.f32 - b.f32), nil
	case wasm.OpcodeF32Mul:
		return F32(a.f32 * b.f32), nil
	case wasm.OpcodeF32Div:
		return F32(a.f32 / b.f32), nil
	case wasm.OpcodeF32Min:
		return F32(float32(math.Min(float64(a.f32), float64(b.f32)))), nil
	case wasm.OpcodeF32Max:
		return F32(float32(math.Max(float64(a.f32), float64(b.f32)))), nil
	case wasm.OpcodeF32Copysign:
		return F32(float32(math.Copysign(float64(a.f32), float64(b.f32)))), nil
	case wasm.OpcodeF32Eq:
		return boolI32(a.f32 == b.f32), nil
	case wasm.OpcodeF32Ne:
		return boolI32(a.f32 != b.f32), nil
	case wasm.OpcodeF32Lt:
		return boolI32(a.f32 < b.f32), nil
	case wasm.OpcodeF32Gt:
		return boolI32(a.f32 > b.f32), nil
	case wasm.OpcodeF32Le:
		return boolI32(a.f32 <= b.f32), nil
	case wasm.OpcodeF32Ge:
		return boolI32(a.f32 >= b.f32), nil

	// f64 arithmetic + relational
	case wasm.OpcodeF64Add:
		return F64(a.f64 + b.f64), nil
	case wasm.OpcodeF64Sub:
		return F64(a.f64 - b.f64), nil
	case wasm.OpcodeF64Mul:
		return F64(a.f64 * b.f64), nil
	case wasm.OpcodeF64Div:
		return F64(a.f64 / b.f64), nil
	case wasm.OpcodeF64Min:
		return F64(math.Min(a.f64, b.f64)), nil
	case wasm.OpcodeF64Max:
		return F64(math.Max(a.f64, b.f64)), nil
	case wasm.OpcodeF64Copysign:
		return F64(math.Copysign(a.f64, b.f64)), nil
	case wasm.OpcodeF64Eq:
		return boolI32(a.f64 == b.f64), nil
	case wasm.OpcodeF64Ne:
		return boolI32(a.f64 != b.f64), nil
	case wasm.OpcodeF64Lt:
		return boolI32(a.f64 < b.f64), nil
	case wasm.OpcodeF64Gt:
		return boolI32(a.f64 > b.f64), nil
	case wasm.OpcodeF64Le:
		return boolI32(a.f64 <= b.f64), nil
	case wasm.OpcodeF64Ge:
		return boolI32(a.f64 >= b.f64), nil
	}
	return nil, trapf(wasm.TrapUnreachable)
}

func (Concrete) Convert(op wasm.Opcode, av Value) (Value, error) {
	a := asC(av)
	switch op {
	case wasm.OpcodeI32WrapI64:
		return I32(int32(a.i64)), nil
	case wasm.OpcodeI32TruncF32S:
		return truncI32(float64(a.f32), true)
	case wasm.OpcodeI32TruncF32U:
		return truncI32(float64(a.f32), false)
	case wasm.OpcodeI32TruncF64S:
		return truncI32(a.f64, true)
	case wasm.OpcodeI32TruncF64U:
		return truncI32(a.f64, false)
	case wasm.OpcodeI64ExtendI32S:
		return I64(int64(a.i32)), nil
	case wasm.OpcodeI64ExtendI32U:
		return I64(int64(uint32(a.i32))), nil
	case wasm.OpcodeI64TruncF32S:
		return truncI64(float64(a.f32), true)
	case wasm.OpcodeI64TruncF32U:
		return truncI64(float64(a.f32), false)
	case wasm.OpcodeI64TruncF64S:
		return truncI64(a.f64, true)
	case wasm.OpcodeI64TruncF64U:
		return truncI64(a.f64, false)
	case wasm.OpcodeF32ConvertI32S:
		return F32(float32(a.i32)), nil
	case wasm.OpcodeF32ConvertI32U:
		return F32(float32(uint32(a.i32))), nil
	case wasm.OpcodeF32ConvertI64S:
		return F32(float32(a.i64)), nil
	case wasm.OpcodeF32ConvertI64U:
		return F32(float32(uint64(a.i64))), nil
	case wasm.OpcodeF32DemoteF64:
		return F32(float32(a.f64)), nil
	case wasm.OpcodeF64ConvertI32S:
		return F64(float64(a.i32)), nil
	case wasm.OpcodeF64ConvertI32U:
		return F64(float64(uint32(a.i32))), nil
	case wasm.OpcodeF64ConvertI64S:
		return F64(float64(a.i64)), nil
	case wasm.OpcodeF64ConvertI64U:
		return F64(float64(uint64(a.i64))), nil
	case wasm.OpcodeF64PromoteF32:
		return F64(float64(a.f32)), nil
	case wasm.OpcodeI32ReinterpretF32:
		return I32(int32(math.Float32bits(a.f32))), nil
	case wasm.OpcodeI64ReinterpretF64:
		return I64(int64(math.Float64bits(a.f64))), nil
	case wasm.OpcodeF32ReinterpretI32:
		return F32(math.Float32frombits(uint32(a.i32))), nil
	case wasm.OpcodeF64ReinterpretI64:
		return F64(math.Float64frombits(uint64(a.i64))), nil
	}
	return nil, trapf(wasm.TrapUnreachable)
}

func truncI32(f float64, signed bool) (Value, error) {
	if math.IsNaN(f) {
		return nil, trapf(wasm.TrapInvalidConversion)
	}
	t := math.Trunc(f)
	if signed {
		if t < math.MinInt32 || t > math.MaxInt32 {
			return nil, trapf(wasm.TrapIntegerOverflow)
		}
		return I32(int32(t)), nil
	}
	if t < 0 || t > math.MaxUint32 {
		return nil, trapf(wasm.TrapIntegerOverflow)
	}
	return I32(int32(uint32(t))), nil
}

func truncI64(f float64, signed bool) (Value, error) {
	if math.IsNaN(f) {
		return nil, trapf(wasm.TrapInvalidConversion)
	}
	t := math.Trunc(f)
	if signed {
		if t < math.MinInt64 || t >= math.MaxInt64 {
			return nil, trapf(wasm.TrapIntegerOverflow)
		}
		return I64(int64(t)), nil
	}
	if t < 0 || t >= math.MaxUint64 {
		return nil, trapf(wasm.TrapIntegerOverflow)
	}
	return I64(int64(uint64(t))), nil
}

func (Concrete) TruncSat(op wasm.MiscOpcode, av Value) (Value, error) {
	a := asC(av)
	switch op {
	case wasm.MiscOpcodeI32TruncSatF32S:
		return I32(satI32(float64(a.f32), true)), nil
	case wasm.MiscOpcodeI32TruncSatF32U:
		return I32(satI32(float64(a.f32), false)), nil
	case wasm.MiscOpcodeI32TruncSatF64S:
		return I32(satI32(a.f64, true)), nil
	case wasm.MiscOpcodeI32TruncSatF64U:
		return I32(satI32(a.f64, false)), nil
	case wasm.MiscOpcodeI64TruncSatF32S:
		return I64(satI64(float64(a.f32), true)), nil
	case wasm.MiscOpcodeI64TruncSatF32U:
		return I64(satI64(float64(a.f32), false)), nil
	case wasm.MiscOpcodeI64TruncSatF64S:
		return I64(satI64(a.f64, true)), nil
	case wasm.MiscOpcodeI64TruncSatF64U:
		return I64(satI64(a.f64, false)), nil
	}
	return nil, trapf(wasm.TrapUnreachable)
}

func satI32(f float64, signed bool) int32 {
	if math.IsNaN(f) {
		return 0
	}
	t := math.Trunc(f)
	if signed {
		if t < math.MinInt32 {
			return math.MinInt32
		}
		if t > math.MaxInt32 {
			return math.MaxInt32
		}
		return int32(t)
	}
	if t < 0 {
		return 0
	}
	if t > math.MaxUint32 {
		var u32 uint32 = math.MaxUint32
		return int32(u32)
	}
	return int32(uint32(t))
}

func satI64(f float64, signed bool) int64 {
	if math.IsNaN(f) {
		return 0
	}
	t := math.Trunc(f)
	if signed {
		if t < math.MinInt64 {
			return math.MinInt64
		}
		if t >= math.MaxInt64 {
			return math.MaxInt64
		}
		return int64(t)
	}
	if t < 0 {
		return 0
	}
	if t >= math.MaxUint64 {
		var u64 uint64 = math.MaxUint64
		return int64(u64)
	}
	return int64(uint64(t))
}

func trapf(reason string) error { return wasm.NewTrap(reason) }
