// Package rewrite turns an indexed module into one where every reference
// is a plain numeric index (a type-index block type is resolved to a
// numeric type index; empty and single-value block types keep their
// short form), and every scoping rule that doesn't depend on the full
// type system has been checked: label targets, constant-expression
// shape, memory/global access legality, and the start function's
// signature.
package rewrite

import (
	"fmt"

	"github.com/wasmcore/wasmcore/ast"
	"github.com/wasmcore/wasmcore/indexer"
	"github.com/wasmcore/wasmcore/wasm"
)

// Rewrite resolves and validates ix.Module in place and returns it.
func Rewrite(ix *indexer.Indexed) (*ast.RawModule, error) {
	r := &rewriter{ix: ix, m: ix.Module}

	if err := r.resolveExports(); err != nil {
		return nil, err
	}
	for i := range r.m.Funcs {
		if err := r.rewriteFunc(&r.m.Funcs[i]); err != nil {
			return nil, fmt.Errorf("function %d: %w", int(ix.NumImportedFuncs)+i, err)
		}
	}
	for i := range r.m.Globals {
		if err := r.rewriteConstExpr(r.m.Globals[i].Init); err != nil {
			return nil, fmt.Errorf("global %d init: %w", int(ix.NumImportedGlobals)+i, err)
		}
	}
	for i := range r.m.Elems {
		if err := r.rewriteElem(&r.m.Elems[i]); err != nil {
			return nil, fmt.Errorf("elem %d: %w", i, err)
		}
	}
	for i := range r.m.Datas {
		if err := r.rewriteData(&r.m.Datas[i]); err != nil {
			return nil, fmt.Errorf("data %d: %w", i, err)
		}
	}
	if err := r.checkStart(); err != nil {
		return nil, err
	}
	return r.m, nil
}

type rewriter struct {
	ix *indexer.Indexed
	m  *ast.RawModule
}

func (r *rewriter) resolveExports() error {
	for i := range r.m.Exports {
		e := &r.m.Exports[i]
		var table map[string]uint32
		var bound uint32
		switch e.Kind {
		case wasm.ExternKindFunc:
			table, bound = r.ix.Names.Funcs, r.ix.NumImportedFuncs+uint32(len(r.m.Funcs))
		case wasm.ExternKindTable:
			table, bound = r.ix.Names.Tables, r.ix.NumImportedTables+uint32(len(r.m.Tables))
		case wasm.ExternKindMemory:
			table, bound = r.ix.Names.Memories, r.ix.NumImportedMemories+uint32(len(r.m.Memories))
		case wasm.ExternKindGlobal:
			table, bound = r.ix.Names.Globals, r.ix.NumImportedGlobals+uint32(len(r.m.Globals))
		}
		idx, err := resolve(e.Ref, table, bound)
		if err != nil {
			return fmt.Errorf("export %q: %w", e.Name, err)
		}
		e.Ref = ast.ByIndex(idx)
	}
	return nil
}

// resolve turns a possibly name-form Ref into a bounds-checked index.
func resolve(ref ast.Ref, names map[string]uint32, bound uint32) (uint32, error) {
	if ref.HasName {
		idx, ok := names[ref.Name]
		if !ok {
			return 0, fmt.Errorf("unknown identifier $%s", ref.Name)
		}
		return idx, nil
	}
	if ref.Index >= bound {
		return 0, fmt.Errorf("index %d out of bounds (max %d)", ref.Index, bound)
	}
	return ref.Index, nil
}

// funcType returns the declared signature of function index idx, spanning
// both imported and locally-defined functions.
func (r *rewriter) funcType(idx uint32) (*wasm.FunctionType, error) {
	var typeRef ast.Ref
	if idx < r.ix.NumImportedFuncs {
		count := uint32(0)
		for _, imp := range r.m.Imports {
			if imp.Desc.Kind != wasm.ExternKindFunc {
				continue
			}
			if count == idx {
				typeRef = imp.Desc.TypeRef
				break
			}
			count++
		}
	} else {
		typeRef = r.m.Funcs[idx-r.ix.NumImportedFuncs].TypeRef
	}
	ti, err := resolve(typeRef, r.ix.Names.Types, uint32(len(r.m.Types)))
	if err != nil {
		return nil, err
	}
	return &r.m.Types[ti].Type, nil
}

// globalType returns the declared type of global index idx, spanning both
// imported and locally-defined globals.
func (r *rewriter) globalType(idx uint32) (*wasm.GlobalType, error) {
	if idx < r.ix.NumImportedGlobals {
		count := uint32(0)
		for _, imp := range r.m.Imports {
			if imp.Desc.Kind != wasm.ExternKindGlobal {
				continue
			}
			if count == idx {
				return &imp.Desc.Global, nil
			}
			count++
		}
		return nil, fmt.Errorf("unknown global %d", idx)
	}
	li := idx - r.ix.NumImportedGlobals
	if li >= uint32(len(r.m.Globals)) {
		return nil, fmt.Errorf("unknown global %d", idx)
	}
	return &r.m.Globals[li].Type, nil
}

func (r *rewriter) numMemories() uint32 {
	return r.ix.NumImportedMemories + uint32(len(r.m.Memories))
}

func (r *rewriter) numTables() uint32 {
	return r.ix.NumImportedTables + uint32(len(r.m.Tables))
}

func (r *rewriter) checkStart() error {
	if r.m.Start == nil {
		return nil
	}
	idx, err := resolve(*r.m.Start, r.ix.Names.Funcs, r.ix.NumImportedFuncs+uint32(len(r.m.Funcs)))
	if err != nil {
		return fmt.Errorf("start function: %w", err)
	}
	ft, err := r.funcType(idx)
	if err != nil {
		return fmt.Errorf("start function: %w", err)
	}
	if len(ft.Params) != 0 || len(ft.Results) != 0 {
		return fmt.Errorf("start function")
	}
	*r.m.Start = ast.ByIndex(idx)
	return nil
}
