// Package ast defines the raw, not-yet-indexed module tree that both the
// binary decoder and an external text-format front end can produce; only
// the *shape* of this tree matters to the core, so a text parser is a
// collaborator rather than something implemented here.
//
// Identifiers may be given either as a dense integer (always true for
// binary modules) or as a textual name (possible from a text front end);
// the indexer and rewrite stages are what turn every Ref into a plain
// index.
package ast

import "github.com/wasmcore/wasmcore/wasm"

// Ref is an identifier occurrence: either an already-resolved index or a
// textual name awaiting resolution by the indexer/rewriter.
type Ref struct {
	Name    string // non-empty means name-form; Index is ignored.
	Index   uint32 // valid when Name == "".
	HasName bool
}

// ByIndex builds an already-resolved reference.
func ByIndex(i uint32) Ref { return Ref{Index: i} }

// ByName builds a name-form reference awaiting resolution.
func ByName(n string) Ref { return Ref{Name: n, HasName: true} }

// BlockTypeKind distinguishes the three surface encodings of a block
// signature.
type BlockTypeKind byte

const (
	BlockTypeVoid   BlockTypeKind = iota // [] -> []
	BlockTypeSingle                      // [] -> [t]
	BlockTypeIndex                       // indexed into the type section
)

// BlockType is the not-yet-normalised block signature attached to
// block/loop/if instructions.
type BlockType struct {
	Kind     BlockTypeKind
	ValType  wasm.ValueType // meaningful when Kind == BlockTypeSingle
	TypeRef  Ref            // meaningful when Kind == BlockTypeIndex
	InlineOK bool           // true if an inline signature accompanied a type index (must match exactly)
}

// Memarg is the (align, offset) pair on every memory access instruction.
type Memarg struct {
	Align  uint32 // log2 of the claimed natural alignment.
	Offset uint32
}

// Instr is one instruction in a flat, linear function body. Structured
// control (block/loop/if/else/end) is represented by markers in this same
// flat sequence rather than nesting, mirroring how the binary format lays
// bodies out; the binary decoder annotates each block-opening instruction
// with its matching continuation so the interpreter never has to re-scan.
type Instr struct {
	Op   wasm.Opcode
	Misc wasm.MiscOpcode // meaningful when Op == OpcodeMisc

	// Numeric immediates.
	I32 int32
	I64 int64
	F32 float32
	F64 float64

	// Reference immediates (local/global/func/table/mem/type/elem/data index).
	Ref  Ref
	Ref2 Ref // call_indirect's table; table.{init,copy}'s destination, etc.

	// br_table: Targets[i] for 0<=i<len(Targets), Default otherwise.
	Targets []Ref
	Default Ref

	Memarg Memarg

	BlockType BlockType

	SelectTypes []wasm.ValueType // select (result t*) annotation.

	// Populated by the binary decoder for block/loop/if/else: the index,
	// in this same flat Instr slice, to resume at (ElseAt is -1 for an
	// if without an else).
	ElseAt, EndAt int
}

// Local is one function parameter or declared local.
type Local struct {
	ID   string
	Type wasm.ValueType
}

// RawType is a type-section entry.
type RawType struct {
	ID   string
	Type wasm.FunctionType
}

// ImportDesc is the tagged description of what an import expects.
type ImportDesc struct {
	Kind     wasm.ExternKind
	TypeRef  Ref // meaningful when Kind == ExternKindFunc
	Table    wasm.TableType
	Memory   wasm.MemoryType
	Global   wasm.GlobalType
}

// RawImport is an import-section entry.
type RawImport struct {
	ID     string
	Module string
	Name   string
	Desc   ImportDesc
}

// RawFunc is a function defined (not imported) by this module.
type RawFunc struct {
	ID      string
	TypeRef Ref
	Locals  []Local
	Body    []Instr
}

// RawTable is a table defined (not imported) by this module.
type RawTable struct {
	ID   string
	Type wasm.TableType
}

// RawMemory is a memory defined (not imported) by this module.
type RawMemory struct {
	ID   string
	Type wasm.MemoryType
}

// RawGlobal is a global defined (not imported) by this module.
type RawGlobal struct {
	ID   string
	Type wasm.GlobalType
	Init []Instr // constant expression.
}

// RawExport is an export-section entry, its target unresolved.
type RawExport struct {
	Name string
	Kind wasm.ExternKind
	Ref  Ref
}

// ElemMode is a element segment's initialisation mode.
type ElemMode byte

const (
	ElemModePassive ElemMode = iota
	ElemModeActive
	ElemModeDeclarative
)

// RawElem is an element-segment entry.
type RawElem struct {
	ID       string
	Type     wasm.ValueType
	Mode     ElemMode
	TableRef Ref    // meaningful when Mode == ElemModeActive
	Offset   []Instr // meaningful when Mode == ElemModeActive
	Init     [][]Instr
}

// DataMode is a data segment's initialisation mode.
type DataMode byte

const (
	DataModePassive DataMode = iota
	DataModeActive
)

// RawData is a data-segment entry.
type RawData struct {
	ID     string
	Mode   DataMode
	MemRef Ref
	Offset []Instr
	Bytes  []byte
}

// RawModule is the not-yet-indexed module tree: source order, textual
// identifiers where present, imports and locally-defined entries kept in
// their own slices per kind (matching both the binary section layout and
// the text format's import-vs-definition grammar).
type RawModule struct {
	Types     []RawType
	Imports   []RawImport
	Funcs     []RawFunc
	Tables    []RawTable
	Memories  []RawMemory
	Globals   []RawGlobal
	Exports   []RawExport
	Start     *Ref
	Elems     []RawElem
	Datas     []RawData

	// CustomSections retains custom section bytes by name, decoded but
	// otherwise unexamined.
	CustomSections map[string][]byte
}
