package module

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasmcore/wasmcore/ast"
	"github.com/wasmcore/wasmcore/indexer"
	"github.com/wasmcore/wasmcore/wasm"
)

func TestBuildSeparatesImportedAndLocalFuncs(t *testing.T) {
	raw := &ast.RawModule{
		Types: []ast.RawType{{Type: wasm.FunctionType{}}},
		Imports: []ast.RawImport{
			{Module: "env", Name: "trap", Desc: ast.ImportDesc{Kind: wasm.ExternKindFunc, TypeRef: ast.ByIndex(0)}},
		},
		Funcs: []ast.RawFunc{{TypeRef: ast.ByIndex(0), Body: []ast.Instr{{Op: wasm.OpcodeEnd}}}},
	}
	ix, err := indexer.Index(raw)
	require.NoError(t, err)

	m := Build(ix)
	require.Equal(t, uint32(2), m.Funcs.Len())
	assert.True(t, m.Funcs.Entries[0].Imported)
	assert.Equal(t, "env", m.Funcs.Entries[0].Module)
	assert.False(t, m.Funcs.Entries[1].Imported)
	assert.NotEmpty(t, m.Funcs.Entries[1].Decl.Body)
}

func TestFuncTypeResolvesThroughTypeIndex(t *testing.T) {
	raw := &ast.RawModule{
		Types: []ast.RawType{{Type: wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}}}},
		Funcs: []ast.RawFunc{{TypeRef: ast.ByIndex(0), Body: []ast.Instr{{Op: wasm.OpcodeEnd}}}},
	}
	ix, err := indexer.Index(raw)
	require.NoError(t, err)
	m := Build(ix)
	ft := m.FuncType(0)
	assert.Equal(t, []wasm.ValueType{wasm.ValueTypeI32}, ft.Results)
}
