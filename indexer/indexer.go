// Package indexer implements the grouper/assigner stage: it walks a raw,
// not-yet-indexed module once and assigns every function, table, memory,
// global, type, element segment and data segment a dense 0-based index
// within its own kind, imports always numbered first. It also builds the
// name -> index maps the rewrite stage consults to resolve textual
// identifiers.
package indexer

import (
	"fmt"

	"github.com/wasmcore/wasmcore/ast"
	"github.com/wasmcore/wasmcore/wasm"
)

// NameMaps holds, for each index space, the textual identifiers declared
// for entries in that space.
type NameMaps struct {
	Funcs     map[string]uint32
	Tables    map[string]uint32
	Memories  map[string]uint32
	Globals   map[string]uint32
	Types     map[string]uint32
	Elems     map[string]uint32
	Datas     map[string]uint32
}

func newNameMaps() NameMaps {
	return NameMaps{
		Funcs:    map[string]uint32{},
		Tables:   map[string]uint32{},
		Memories: map[string]uint32{},
		Globals:  map[string]uint32{},
		Types:    map[string]uint32{},
		Elems:    map[string]uint32{},
		Datas:    map[string]uint32{},
	}
}

// Indexed wraps a raw module together with the index bookkeeping derived
// from it. The module itself is not mutated: rewrite consults Names and
// the Num*Imported counters while resolving identifiers and generating
// fully-indexed instructions.
type Indexed struct {
	Module *ast.RawModule
	Names  NameMaps

	NumImportedFuncs    uint32
	NumImportedTables   uint32
	NumImportedMemories uint32
	NumImportedGlobals  uint32
}

// Index performs the grouping/assignment pass described above.
func Index(m *ast.RawModule) (*Indexed, error) {
	ix := &Indexed{Module: m, Names: newNameMaps()}

	for _, imp := range m.Imports {
		switch imp.Desc.Kind {
		case wasm.ExternKindFunc:
			if err := assign(ix.Names.Funcs, imp.ID, ix.NumImportedFuncs, "function"); err != nil {
				return nil, err
			}
			ix.NumImportedFuncs++
		case wasm.ExternKindTable:
			if err := assign(ix.Names.Tables, imp.ID, ix.NumImportedTables, "table"); err != nil {
				return nil, err
			}
			ix.NumImportedTables++
		case wasm.ExternKindMemory:
			if err := assign(ix.Names.Memories, imp.ID, ix.NumImportedMemories, "memory"); err != nil {
				return nil, err
			}
			ix.NumImportedMemories++
		case wasm.ExternKindGlobal:
			if err := assign(ix.Names.Globals, imp.ID, ix.NumImportedGlobals, "global"); err != nil {
				return nil, err
			}
			ix.NumImportedGlobals++
		}
	}

	next := ix.NumImportedFuncs
	for _, f := range m.Funcs {
		if err := assign(ix.Names.Funcs, f.ID, next, "function"); err != nil {
			return nil, err
		}
		next++
	}

	next = ix.NumImportedTables
	for _, t := range m.Tables {
		if err := assign(ix.Names.Tables, t.ID, next, "table"); err != nil {
			return nil, err
		}
		next++
	}

	next = ix.NumImportedMemories
	for _, mem := range m.Memories {
		if err := assign(ix.Names.Memories, mem.ID, next, "memory"); err != nil {
			return nil, err
		}
		next++
	}

	next = ix.NumImportedGlobals
	for _, g := range m.Globals {
		if err := assign(ix.Names.Globals, g.ID, next, "global"); err != nil {
			return nil, err
		}
		next++
	}

	for i, t := range m.Types {
		if err := assign(ix.Names.Types, t.ID, uint32(i), "type"); err != nil {
			return nil, err
		}
	}
	for i, e := range m.Elems {
		if err := assign(ix.Names.Elems, e.ID, uint32(i), "elem"); err != nil {
			return nil, err
		}
	}
	for i, d := range m.Datas {
		if err := assign(ix.Names.Datas, d.ID, uint32(i), "data"); err != nil {
			return nil, err
		}
	}

	return ix, nil
}

func assign(into map[string]uint32, name string, idx uint32, kind string) error {
	if name == "" {
		return nil
	}
	if _, dup := into[name]; dup {
		return fmt.Errorf("duplicate %s %s", kind, name)
	}
	into[name] = idx
	return nil
}
