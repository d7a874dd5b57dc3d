// Package wasm holds the data model shared across the pipeline: value
// types, function types, limits, and the instruction opcode table. These
// are immutable, dependency-free building blocks consumed by every later
// stage (indexer, rewrite, validate, link, interp).
package wasm

// ValueType is the binary encoding of a WebAssembly value type.
type ValueType byte

const (
	ValueTypeI32     ValueType = 0x7f
	ValueTypeI64     ValueType = 0x7e
	ValueTypeF32     ValueType = 0x7d
	ValueTypeF64     ValueType = 0x7c
	ValueTypeFuncRef ValueType = 0x70
	ValueTypeExtern  ValueType = 0x6f
)

// IsNumeric reports whether t is one of i32/i64/f32/f64.
func (t ValueType) IsNumeric() bool {
	switch t {
	case ValueTypeI32, ValueTypeI64, ValueTypeF32, ValueTypeF64:
		return true
	}
	return false
}

// IsReference reports whether t is a reference type.
func (t ValueType) IsReference() bool {
	return t == ValueTypeFuncRef || t == ValueTypeExtern
}

func (t ValueType) String() string {
	switch t {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	case ValueTypeFuncRef:
		return "funcref"
	case ValueTypeExtern:
		return "externref"
	}
	return "unknown"
}

// FunctionType is a [params] -> [results] signature.
type FunctionType struct {
	Params  []ValueType
	Results []ValueType
}

// Equal reports whether f and o declare the same params and results.
func (f *FunctionType) Equal(o *FunctionType) bool {
	if f == o {
		return true
	}
	if f == nil || o == nil {
		return false
	}
	return sliceEqual(f.Params, o.Params) && sliceEqual(f.Results, o.Results)
}

func sliceEqual(a, b []ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (f *FunctionType) String() string {
	s := "("
	for i, p := range f.Params {
		if i > 0 {
			s += " "
		}
		s += p.String()
	}
	s += ") -> ("
	for i, r := range f.Results {
		if i > 0 {
			s += " "
		}
		s += r.String()
	}
	return s + ")"
}

// Limits bounds a table or memory's size, in table entries or 64KiB pages
// respectively.
type Limits struct {
	Min uint32
	Max *uint32 // nil means unbounded.
}

// MaxMemoryPages is the hard ceiling on a linear memory's page count:
// 2^16 pages of 64KiB each, for a 4GiB address space.
const MaxMemoryPages uint32 = 1 << 16

// PageSize is the size in bytes of one linear-memory page.
const PageSize uint32 = 65536

// TableType declares a table's element type and size limits.
type TableType struct {
	ElemType ValueType // always ValueTypeFuncRef or ValueTypeExtern
	Limits   Limits
}

// MemoryType declares a linear memory's size limits, in pages.
type MemoryType struct {
	Limits Limits
}

// GlobalType declares a global's value type and mutability.
type GlobalType struct {
	ValType ValueType
	Mutable bool
}

// ExternKind identifies which namespace an import or export belongs to.
type ExternKind byte

const (
	ExternKindFunc   ExternKind = 0x00
	ExternKindTable  ExternKind = 0x01
	ExternKindMemory ExternKind = 0x02
	ExternKindGlobal ExternKind = 0x03
)

func (k ExternKind) String() string {
	switch k {
	case ExternKindFunc:
		return "func"
	case ExternKindTable:
		return "table"
	case ExternKindMemory:
		return "memory"
	case ExternKindGlobal:
		return "global"
	}
	return "unknown"
}
