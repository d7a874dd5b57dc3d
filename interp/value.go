// Package interp implements the stack-and-frame machine that executes a
// linked module's function bodies. It is written once against the
// Algebra interface so the same control/dispatch code drives both
// ordinary concrete execution and symbolic path exploration.
package interp

import "github.com/wasmcore/wasmcore/wasm"

// Value is an operand-stack cell. Concrete and Symbolic each implement
// it with their own representation; the machine never inspects one
// directly, only through the Algebra that produced it.
type Value interface {
	Type() wasm.ValueType
}

// Choice is one successor state produced by Algebra.EvalChoice: Taken
// records which side of the condition this continuation assumes.
type Choice struct {
	Taken      bool
	Assumption Value // the boolean value this path has now assumed true
}

// Algebra is the pluggable value domain the machine is parametrised
// over. Concrete implements it directly over machine words; Symbolic
// builds expression trees and defers branching decisions to a solver.
type Algebra interface {
	ConstI32(int32) Value
	ConstI64(int64) Value
	ConstF32(float32) Value
	ConstF64(float64) Value
	NullRef(wasm.ValueType) Value
	FuncRef(uint32) Value

	// Unary evaluates a one-operand numeric opcode (clz, neg, sqrt, eqz,
	// sign-extension, ...).
	Unary(op wasm.Opcode, a Value) (Value, error)
	// Binary evaluates a two-operand numeric opcode (arithmetic,
	// relational, bitwise).
	Binary(op wasm.Opcode, a, b Value) (Value, error)
	// Convert evaluates a type-changing opcode (trunc, extend, convert,
	// demote, promote, reinterpret, wrap). May trap (NaN/out-of-range
	// trunc).
	Convert(op wasm.Opcode, a Value) (Value, error)
	// TruncSat evaluates one of the non-trapping saturating truncations.
	TruncSat(op wasm.MiscOpcode, a Value) (Value, error)

	Select(cond, a, b Value) Value

	// EvalChoice is the sole branching point. Both algebras return
	// exactly one Choice; Symbolic records the other satisfiable side of
	// cond on its Forks instead of returning it.
	EvalChoice(cond Value) ([]Choice, error)

	// AsI32/AsU32/AsBool extract a concretely-known value for uses that
	// require one outright (addresses, counts, table/element indices).
	// ok is false when the value has no concrete witness in this
	// algebra; callers then return an ordinary error naming the
	// operation that needed a concrete value.
	AsI32(v Value) (int32, bool)
	AsU32(v Value) (uint32, bool)
	AsBool(v Value) (bool, bool)

	// Bits/FromBits round-trip a value through its raw little-endian
	// representation, for memory loads/stores and global/table storage.
	Bits(v Value) (uint64, bool)
	FromBits(t wasm.ValueType, bits uint64) Value

	// RefInfo decomposes a reference value; ok is false if v has no
	// concrete witness.
	RefInfo(v Value) (funcIdx uint32, isNull bool, ok bool)
}
