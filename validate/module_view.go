package validate

import (
	"fmt"

	"github.com/wasmcore/wasmcore/ast"
	"github.com/wasmcore/wasmcore/indexer"
	"github.com/wasmcore/wasmcore/wasm"
)

// moduleView answers index -> descriptor questions against an already
// rewritten (fully indexed) module, spanning both the imported and
// locally-defined halves of each index space.
type moduleView struct {
	ix *indexer.Indexed
	m  *ast.RawModule
}

func (v *moduleView) funcType(idx uint32) (*wasm.FunctionType, error) {
	var typeIdx uint32
	if idx < v.ix.NumImportedFuncs {
		count := uint32(0)
		for _, imp := range v.m.Imports {
			if imp.Desc.Kind != wasm.ExternKindFunc {
				continue
			}
			if count == idx {
				typeIdx = imp.Desc.TypeRef.Index
				break
			}
			count++
		}
	} else {
		li := idx - v.ix.NumImportedFuncs
		if li >= uint32(len(v.m.Funcs)) {
			return nil, fmt.Errorf("unknown function %d", idx)
		}
		typeIdx = v.m.Funcs[li].TypeRef.Index
	}
	if typeIdx >= uint32(len(v.m.Types)) {
		return nil, fmt.Errorf("unknown type %d", typeIdx)
	}
	return &v.m.Types[typeIdx].Type, nil
}

func (v *moduleView) globalType(idx uint32) (*wasm.GlobalType, error) {
	if idx < v.ix.NumImportedGlobals {
		count := uint32(0)
		for _, imp := range v.m.Imports {
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
	li := idx - v.ix.NumImportedGlobals
	if li >= uint32(len(v.m.Globals)) {
		return nil, fmt.Errorf("unknown global %d", idx)
	}
	return &v.m.Globals[li].Type, nil
}

func (v *moduleView) tableType(idx uint32) (*wasm.TableType, error) {
	if idx < v.ix.NumImportedTables {
		count := uint32(0)
		for _, imp := range v.m.Imports {
			if imp.Desc.Kind != wasm.ExternKindTable {
				continue
			}
			if count == idx {
				return &imp.Desc.Table, nil
			}
			count++
		}
		return nil, fmt.Errorf("unknown table %d", idx)
	}
	li := idx - v.ix.NumImportedTables
	if li >= uint32(len(v.m.Tables)) {
		return nil, fmt.Errorf("unknown table %d", idx)
	}
	return &v.m.Tables[li].Type, nil
}

func (v *moduleView) numMemories() uint32 { return v.ix.NumImportedMemories + uint32(len(v.m.Memories)) }
func (v *moduleView) numTables() uint32   { return v.ix.NumImportedTables + uint32(len(v.m.Tables)) }

func (v *moduleView) blockFuncType(bt ast.BlockType) *wasm.FunctionType {
	switch bt.Kind {
	case ast.BlockTypeVoid:
		return &wasm.FunctionType{}
	case ast.BlockTypeSingle:
		return &wasm.FunctionType{Results: []wasm.ValueType{bt.ValType}}
	default:
		return &v.m.Types[bt.TypeRef.Index].Type
	}
}
