package indexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasmcore/wasmcore/ast"
	"github.com/wasmcore/wasmcore/wasm"
)

func TestImportsNumberedBeforeLocals(t *testing.T) {
	m := &ast.RawModule{
		Imports: []ast.RawImport{
			{ID: "imported", Module: "env", Name: "f", Desc: ast.ImportDesc{Kind: wasm.ExternKindFunc}},
		},
		Funcs: []ast.RawFunc{
			{ID: "local"},
		},
	}
	ix, err := Index(m)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), ix.NumImportedFuncs)
	assert.Equal(t, uint32(0), ix.Names.Funcs["imported"])
	assert.Equal(t, uint32(1), ix.Names.Funcs["local"])
}

func TestDuplicateNameRejected(t *testing.T) {
	m := &ast.RawModule{
		Globals: []ast.RawGlobal{
			{ID: "x"},
			{ID: "x"},
		},
	}
	_, err := Index(m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate global x")
}

func TestUnnamedEntriesSkipMap(t *testing.T) {
	m := &ast.RawModule{
		Tables: []ast.RawTable{{}, {}},
	}
	ix, err := Index(m)
	require.NoError(t, err)
	assert.Empty(t, ix.Names.Tables)
}

func TestTypesElemsDatasIndexedInDeclarationOrder(t *testing.T) {
	m := &ast.RawModule{
		Types: []ast.RawType{{ID: "t0"}, {ID: "t1"}},
		Elems: []ast.RawElem{{ID: "e0"}},
		Datas: []ast.RawData{{ID: "d0"}},
	}
	ix, err := Index(m)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), ix.Names.Types["t1"])
	assert.Equal(t, uint32(0), ix.Names.Elems["e0"])
	assert.Equal(t, uint32(0), ix.Names.Datas["d0"])
}
