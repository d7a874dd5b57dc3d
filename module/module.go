// Package module defines the post-rewrite, immutable Module record:
// per-kind named collections, each entry tagged local or imported, built
// once from an indexed-and-rewritten raw AST and never mutated afterwards.
// link and interp both operate on this shape rather than on ast.RawModule
// directly.
package module

import (
	"github.com/wasmcore/wasmcore/ast"
	"github.com/wasmcore/wasmcore/indexer"
	"github.com/wasmcore/wasmcore/wasm"
)

// Entry is one member of a named collection: either imported (Module and
// Item identify the host-side export to bind at link time) or local
// (Decl is this module's own declaration).
type Entry[T any] struct {
	Name     string
	Imported bool
	Module   string // valid when Imported
	Item     string // valid when Imported
	Decl     T
}

// Collection is an ordered, 0-indexed sequence of entries of one kind,
// plus the name -> index map carried over from the indexer.
type Collection[T any] struct {
	Entries []Entry[T]
	Names   map[string]uint32
}

func (c *Collection[T]) Len() uint32 { return uint32(len(c.Entries)) }

// FuncDecl is a function's signature and, for locally-defined functions,
// its body; Locals and Body are nil for imports.
type FuncDecl struct {
	TypeIndex uint32
	Locals    []ast.Local
	Body      []ast.Instr
}

// GlobalDecl is a global's type and, for locally-defined globals, its
// constant initialiser; Init is nil for imports.
type GlobalDecl struct {
	Type wasm.GlobalType
	Init []ast.Instr
}

// ElemSegment mirrors ast.RawElem after indices have been resolved.
type ElemSegment struct {
	Type     wasm.ValueType
	Mode     ast.ElemMode
	TableRef uint32
	Offset   []ast.Instr
	Init     [][]ast.Instr
}

// DataSegment mirrors ast.RawData after indices have been resolved.
type DataSegment struct {
	Mode   ast.DataMode
	MemRef uint32
	Offset []ast.Instr
	Bytes  []byte
}

// Module is the complete, immutable post-rewrite record.
type Module struct {
	Types    Collection[wasm.FunctionType]
	Funcs    Collection[FuncDecl]
	Tables   Collection[wasm.TableType]
	Memories Collection[wasm.MemoryType]
	Globals  Collection[GlobalDecl]

	Elems []ElemSegment
	Datas []DataSegment

	Exports []ast.RawExport
	Start   *uint32

	CustomSections map[string][]byte
}

// Build assembles a Module from an indexed, rewritten, and validated raw
// AST. Callers are expected to have already run the binary/indexer/
// rewrite/validate pipeline; Build itself performs no checking.
func Build(ix *indexer.Indexed) *Module {
	m := ix.Module
	out := &Module{
		CustomSections: m.CustomSections,
		Exports:        m.Exports,
	}
	if m.Start != nil {
		idx := m.Start.Index
		out.Start = &idx
	}

	out.Types = Collection[wasm.FunctionType]{Names: ix.Names.Types}
	for _, t := range m.Types {
		out.Types.Entries = append(out.Types.Entries, Entry[wasm.FunctionType]{Name: t.ID, Decl: t.Type})
	}

	out.Funcs = Collection[FuncDecl]{Names: ix.Names.Funcs}
	for _, imp := range m.Imports {
		if imp.Desc.Kind != wasm.ExternKindFunc {
			continue
		}
		out.Funcs.Entries = append(out.Funcs.Entries, Entry[FuncDecl]{
			Name: imp.ID, Imported: true, Module: imp.Module, Item: imp.Name,
			Decl: FuncDecl{TypeIndex: imp.Desc.TypeRef.Index},
		})
	}
	for _, f := range m.Funcs {
		out.Funcs.Entries = append(out.Funcs.Entries, Entry[FuncDecl]{
			Name: f.ID,
			Decl: FuncDecl{TypeIndex: f.TypeRef.Index, Locals: f.Locals, Body: f.Body},
		})
	}

	out.Tables = Collection[wasm.TableType]{Names: ix.Names.Tables}
	for _, imp := range m.Imports {
		if imp.Desc.Kind != wasm.ExternKindTable {
			continue
		}
		out.Tables.Entries = append(out.Tables.Entries, Entry[wasm.TableType]{
			Name: imp.ID, Imported: true, Module: imp.Module, Item: imp.Name, Decl: imp.Desc.Table,
		})
	}
	for _, t := range m.Tables {
		out.Tables.Entries = append(out.Tables.Entries, Entry[wasm.TableType]{Name: t.ID, Decl: t.Type})
	}

	out.Memories = Collection[wasm.MemoryType]{Names: ix.Names.Memories}
	for _, imp := range m.Imports {
		if imp.Desc.Kind != wasm.ExternKindMemory {
			continue
		}
		out.Memories.Entries = append(out.Memories.Entries, Entry[wasm.MemoryType]{
			Name: imp.ID, Imported: true, Module: imp.Module, Item: imp.Name, Decl: imp.Desc.Memory,
		})
	}
	for _, mem := range m.Memories {
		out.Memories.Entries = append(out.Memories.Entries, Entry[wasm.MemoryType]{Name: mem.ID, Decl: mem.Type})
	}

	out.Globals = Collection[GlobalDecl]{Names: ix.Names.Globals}
	for _, imp := range m.Imports {
		if imp.Desc.Kind != wasm.ExternKindGlobal {
			continue
		}
		out.Globals.Entries = append(out.Globals.Entries, Entry[GlobalDecl]{
			Name: imp.ID, Imported: true, Module: imp.Module, Item: imp.Name,
			Decl: GlobalDecl{Type: imp.Desc.Global},
		})
	}
	for _, g := range m.Globals {
		out.Globals.Entries = append(out.Globals.Entries, Entry[GlobalDecl]{
			Name: g.ID, Decl: GlobalDecl{Type: g.Type, Init: g.Init},
		})
	}

	for _, e := range m.Elems {
		out.Elems = append(out.Elems, ElemSegment{
			Type: e.Type, Mode: e.Mode, TableRef: e.TableRef.Index, Offset: e.Offset, Init: e.Init,
		})
	}
	for _, d := range m.Datas {
		out.Datas = append(out.Datas, DataSegment{
			Mode: d.Mode, MemRef: d.MemRef.Index, Offset: d.Offset, Bytes: d.Bytes,
		})
	}

	return out
}

// FuncType resolves a function index's signature.
func (m *Module) FuncType(idx uint32) *wasm.FunctionType {
	return &m.Types.Entries[m.Funcs.Entries[idx].Decl.TypeIndex].Decl
}
