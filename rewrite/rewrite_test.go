package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasmcore/wasmcore/ast"
	"github.com/wasmcore/wasmcore/indexer"
	"github.com/wasmcore/wasmcore/wasm"
)

func mustIndexModule(t *testing.T, m *ast.RawModule) *indexer.Indexed {
	t.Helper()
	ix, err := indexer.Index(m)
	require.NoError(t, err)
	return ix
}

func TestRewriteResolvesNamedLocal(t *testing.T) {
	m := &ast.RawModule{
		Types: []ast.RawType{{Type: wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI32}}}},
		Funcs: []ast.RawFunc{{
			TypeRef: ast.ByIndex(0),
			Locals:  []ast.Local{{ID: "acc", Type: wasm.ValueTypeI32}},
			Body: []ast.Instr{
				{Op: wasm.OpcodeLocalGet, Ref: ast.ByName("acc")},
				{Op: wasm.OpcodeEnd},
			},
		}},
	}
	mod, err := Rewrite(mustIndexModule(t, m))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), mod.Funcs[0].Body[0].Ref.Index)
	assert.False(t, mod.Funcs[0].Body[0].Ref.HasName)
}

func TestRewriteRejectsOutOfRangeLabel(t *testing.T) {
	m := &ast.RawModule{
		Types: []ast.RawType{{Type: wasm.FunctionType{}}},
		Funcs: []ast.RawFunc{{
			TypeRef: ast.ByIndex(0),
			Body: []ast.Instr{
				{Op: wasm.OpcodeBr, Ref: ast.ByIndex(5)},
				{Op: wasm.OpcodeEnd},
			},
		}},
	}
	_, err := Rewrite(mustIndexModule(t, m))
	require.Error(t, err)
}

func TestRewriteRejectsSetOnImmutableGlobal(t *testing.T) {
	m := &ast.RawModule{
		Types: []ast.RawType{{Type: wasm.FunctionType{}}},
		Globals: []ast.RawGlobal{
			{Type: wasm.GlobalType{ValType: wasm.ValueTypeI32, Mutable: false}, Init: []ast.Instr{
				{Op: wasm.OpcodeI32Const, I32: 0}, {Op: wasm.OpcodeEnd},
			}},
		},
		Funcs: []ast.RawFunc{{
			TypeRef: ast.ByIndex(0),
			Body: []ast.Instr{
				{Op: wasm.OpcodeGlobalSet, Ref: ast.ByIndex(0)},
				{Op: wasm.OpcodeEnd},
			},
		}},
	}
	_, err := Rewrite(mustIndexModule(t, m))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "global is immutable")
}

func TestRewriteRejectsLoadWithoutMemory(t *testing.T) {
	m := &ast.RawModule{
		Types: []ast.RawType{{Type: wasm.FunctionType{}}},
		Funcs: []ast.RawFunc{{
			TypeRef: ast.ByIndex(0),
			Body: []ast.Instr{
				{Op: wasm.OpcodeI32Load, Memarg: ast.Memarg{Align: 2}},
				{Op: wasm.OpcodeEnd},
			},
		}},
	}
	_, err := Rewrite(mustIndexModule(t, m))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown memory 0")
}

func TestRewriteRejectsOveralignedAccess(t *testing.T) {
	m := &ast.RawModule{
		Types:    []ast.RawType{{Type: wasm.FunctionType{}}},
		Memories: []ast.RawMemory{{Type: wasm.MemoryType{Limits: wasm.Limits{Min: 1}}}},
		Funcs: []ast.RawFunc{{
			TypeRef: ast.ByIndex(0),
			Body: []ast.Instr{
				{Op: wasm.OpcodeI32Load, Memarg: ast.Memarg{Align: 3}}, // 2^3=8 > natural width 4
				{Op: wasm.OpcodeEnd},
			},
		}},
	}
	_, err := Rewrite(mustIndexModule(t, m))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alignment must not be larger than natural")
}

func TestRewriteRejectsNonTrivialStartSignature(t *testing.T) {
	startRef := ast.ByIndex(0)
	m := &ast.RawModule{
		Types: []ast.RawType{{Type: wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}}}},
		Funcs: []ast.RawFunc{{TypeRef: ast.ByIndex(0), Body: []ast.Instr{{Op: wasm.OpcodeEnd}}}},
		Start: &startRef,
	}
	_, err := Rewrite(mustIndexModule(t, m))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start function")
}

func TestRewriteRejectsConstExprWithMutableGlobalRef(t *testing.T) {
	m := &ast.RawModule{
		Imports: []ast.RawImport{
			{Module: "env", Name: "g", Desc: ast.ImportDesc{Kind: wasm.ExternKindGlobal, Global: wasm.GlobalType{ValType: wasm.ValueTypeI32, Mutable: true}}},
		},
		Globals: []ast.RawGlobal{
			{Type: wasm.GlobalType{ValType: wasm.ValueTypeI32}, Init: []ast.Instr{
				{Op: wasm.OpcodeGlobalGet, Ref: ast.ByIndex(0)}, {Op: wasm.OpcodeEnd},
			}},
		},
	}
	_, err := Rewrite(mustIndexModule(t, m))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "constant expression required")
}
