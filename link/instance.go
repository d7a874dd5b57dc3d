// Package link resolves a module's imports against a host/extern
// registry, allocates its memories/tables/globals, runs data/element
// initialisers, and produces a runtime Instance ready for execution.
package link

import (
	"github.com/wasmcore/wasmcore/ast"
	"github.com/wasmcore/wasmcore/module"
	"github.com/wasmcore/wasmcore/wasm"
)

// HostFunc is a function provided by the host side of an extern module.
type HostFunc func(args []Value) ([]Value, error)

// AlgebraicHostFunc is a HostFunc variant for extern modules whose
// functions need more than concrete arguments — the symbolic-primitives
// module's symbolic.i32/symbolic.assume/symbolic.assert introduce a fresh
// symbol or extend a symbolic run's path condition rather than compute
// over concrete witnesses. alg and the entries of args/the returned slice
// are opaque here (interp.Algebra and interp.Value) so link need not
// import interp; only interp.Machine.call ever invokes one of these, and
// it is the side that knows how to assert them back to their real types.
type AlgebraicHostFunc func(alg any, args []any) ([]any, error)

// FuncInstance is a callable function: local (defined by the module
// being linked, with a body to interpret) or host-supplied, either as a
// plain HostFunc or, for extern modules that need algebra-level access,
// an AlgebraicHostFunc.
type FuncInstance struct {
	Type *wasm.FunctionType

	Local  bool
	Locals []ast.Local
	Body   []ast.Instr

	Host          HostFunc
	HostAlgebraic AlgebraicHostFunc
}

// TableInstance is a mutable array of nullable references.
type TableInstance struct {
	ElemType wasm.ValueType
	Elems    []Value
	Max      *uint32
}

// MemoryInstance is a mutable byte array sized in wasm.PageSize pages.
type MemoryInstance struct {
	Data []byte
	Max  *uint32
}

func (m *MemoryInstance) Pages() uint32 { return uint32(len(m.Data)) / wasm.PageSize }

// GlobalInstance is a mutable storage cell holding one value.
type GlobalInstance struct {
	Type  wasm.GlobalType
	Value Value
}

// ExportValue is one exported item, tagged by kind.
type ExportValue struct {
	Kind   wasm.ExternKind
	Func   *FuncInstance
	Table  *TableInstance
	Memory *MemoryInstance
	Global *GlobalInstance
}

// Instance is a fully linked, runnable module: combined imported+local
// index spaces for every kind, matching module.Module's own index
// assignment exactly.
type Instance struct {
	Mod *module.Module

	Funcs    []*FuncInstance
	Tables   []*TableInstance
	Memories []*MemoryInstance
	Globals  []*GlobalInstance

	Exports map[string]ExportValue

	// PassiveElems/PassiveData hold the segments retained for later
	// table.init/memory.init; DroppedElems/DroppedData record
	// elem.drop/data.drop having fired.
	PassiveElems map[uint32][]Value
	PassiveData  map[uint32][]byte
	DroppedElems map[uint32]bool
	DroppedData  map[uint32]bool
}
