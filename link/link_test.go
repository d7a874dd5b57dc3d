package link

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasmcore/wasmcore/ast"
	"github.com/wasmcore/wasmcore/indexer"
	"github.com/wasmcore/wasmcore/module"
	"github.com/wasmcore/wasmcore/wasm"
)

func buildModule(t *testing.T, raw *ast.RawModule) *module.Module {
	t.Helper()
	ix, err := indexer.Index(raw)
	require.NoError(t, err)
	return module.Build(ix)
}

func TestLinkAllocatesMemoryAndRunsActiveData(t *testing.T) {
	one := uint32(1)
	raw := &ast.RawModule{
		Memories: []ast.RawMemory{{Type: wasm.MemoryType{Limits: wasm.Limits{Min: 1, Max: &one}}}},
		Datas: []ast.RawData{{
			Mode:   ast.DataModeActive,
			MemRef: ast.ByIndex(0),
			Offset: []ast.Instr{{Op: wasm.OpcodeI32Const, I32: 4}, {Op: wasm.OpcodeEnd}},
			Bytes:  []byte{1, 2, 3, 4},
		}},
		Exports: []ast.RawExport{{Name: "mem", Kind: wasm.ExternKindMemory, Ref: ast.ByIndex(0)}},
	}
	m := buildModule(t, raw)

	inst, err := Link(m, NewRegistry())
	require.NoError(t, err)
	require.Len(t, inst.Memories, 1)
	assert.Equal(t, uint32(1), inst.Memories[0].Pages())
	assert.Equal(t, []byte{1, 2, 3, 4}, inst.Memories[0].Data[4:8])

	exp, ok := inst.Exports["mem"]
	require.True(t, ok)
	assert.Same(t, inst.Memories[0], exp.Memory)
}

func TestLinkTrapsOnOutOfBoundsData(t *testing.T) {
	raw := &ast.RawModule{
		Memories: []ast.RawMemory{{Type: wasm.MemoryType{Limits: wasm.Limits{Min: 1}}}},
		Datas: []ast.RawData{{
			Mode:   ast.DataModeActive,
			MemRef: ast.ByIndex(0),
			Offset: []ast.Instr{{Op: wasm.OpcodeI32Const, I32: 65534}, {Op: wasm.OpcodeEnd}},
			Bytes:  []byte{1, 2, 3, 4},
		}},
	}
	m := buildModule(t, raw)

	_, err := Link(m, NewRegistry())
	require.Error(t, err)
	trap, ok := err.(*wasm.Trap)
	require.True(t, ok)
	assert.Equal(t, wasm.TrapOutOfBoundsMemory, trap.Reason)
}

func TestLinkResolvesImportedFunction(t *testing.T) {
	fn := wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI32}}
	raw := &ast.RawModule{
		Types:   []ast.RawType{{Type: fn}},
		Imports: []ast.RawImport{{Module: "env", Name: "log", Desc: ast.ImportDesc{Kind: wasm.ExternKindFunc, TypeRef: ast.ByIndex(0)}}},
	}
	m := buildModule(t, raw)

	called := false
	reg := NewRegistry()
	host := NewHostModule("env").DefineFunc("log", &fn, func(args []Value) ([]Value, error) {
		called = true
		return nil, nil
	})
	reg.Register(host)

	inst, err := Link(m, reg)
	require.NoError(t, err)
	require.Len(t, inst.Funcs, 1)
	_, err = inst.Funcs[0].Host(nil)
	require.NoError(t, err)
	assert.True(t, called)
}

func TestLinkRejectsUnknownImport(t *testing.T) {
	fn := wasm.FunctionType{}
	raw := &ast.RawModule{
		Types:   []ast.RawType{{Type: fn}},
		Imports: []ast.RawImport{{Module: "env", Name: "missing", Desc: ast.ImportDesc{Kind: wasm.ExternKindFunc, TypeRef: ast.ByIndex(0)}}},
	}
	m := buildModule(t, raw)

	_, err := Link(m, NewRegistry())
	require.Error(t, err)
}

func TestLinkRejectsIncompatibleImportType(t *testing.T) {
	fn := wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI32}}
	other := wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI64}}
	raw := &ast.RawModule{
		Types:   []ast.RawType{{Type: fn}},
		Imports: []ast.RawImport{{Module: "env", Name: "log", Desc: ast.ImportDesc{Kind: wasm.ExternKindFunc, TypeRef: ast.ByIndex(0)}}},
	}
	m := buildModule(t, raw)

	reg := NewRegistry()
	reg.Register(NewHostModule("env").DefineFunc("log", &other, func(args []Value) ([]Value, error) { return nil, nil }))

	_, err := Link(m, reg)
	require.Error(t, err)
}

func TestLinkEvaluatesGlobalInitAndElemSegment(t *testing.T) {
	raw := &ast.RawModule{
		Globals: []ast.RawGlobal{{
			Type: wasm.GlobalType{ValType: wasm.ValueTypeI32},
			Init: []ast.Instr{{Op: wasm.OpcodeI32Const, I32: 7}, {Op: wasm.OpcodeEnd}},
		}},
		Tables: []ast.RawTable{{Type: wasm.TableType{ElemType: wasm.ValueTypeFuncRef, Limits: wasm.Limits{Min: 4}}}},
		Funcs:  []ast.RawFunc{{TypeRef: ast.ByIndex(0), Body: []ast.Instr{{Op: wasm.OpcodeEnd}}}},
		Types:  []ast.RawType{{Type: wasm.FunctionType{}}},
		Elems: []ast.RawElem{{
			Type:     wasm.ValueTypeFuncRef,
			Mode:     ast.ElemModeActive,
			TableRef: ast.ByIndex(0),
			Offset:   []ast.Instr{{Op: wasm.OpcodeI32Const, I32: 1}, {Op: wasm.OpcodeEnd}},
			Init:     [][]ast.Instr{{{Op: wasm.OpcodeRefFunc, Ref: ast.ByIndex(0)}, {Op: wasm.OpcodeEnd}}},
		}},
	}
	m := buildModule(t, raw)

	inst, err := Link(m, NewRegistry())
	require.NoError(t, err)
	require.Len(t, inst.Globals, 1)
	assert.Equal(t, int32(7), inst.Globals[0].Value.I32)
	require.Len(t, inst.Tables, 1)
	assert.Equal(t, uint32(0), inst.Tables[0].Elems[1].FuncIdx)
	assert.False(t, inst.Tables[0].Elems[1].RefNull)
	assert.True(t, inst.Tables[0].Elems[0].RefNull)
}

func TestLinkDropsDeclarativeElemAtInstantiation(t *testing.T) {
	raw := &ast.RawModule{
		Types: []ast.RawType{{Type: wasm.FunctionType{}}},
		Funcs: []ast.RawFunc{{TypeRef: ast.ByIndex(0), Body: []ast.Instr{{Op: wasm.OpcodeEnd}}}},
		Elems: []ast.RawElem{{
			Type: wasm.ValueTypeFuncRef,
			Mode: ast.ElemModeDeclarative,
			Init: [][]ast.Instr{{{Op: wasm.OpcodeRefFunc, Ref: ast.ByIndex(0)}, {Op: wasm.OpcodeEnd}}},
		}},
	}
	m := buildModule(t, raw)

	inst, err := Link(m, NewRegistry())
	require.NoError(t, err)
	assert.True(t, inst.DroppedElems[0])
	assert.Nil(t, inst.PassiveElems[0])
}

func TestLinkRetainsPassiveDataForLaterInit(t *testing.T) {
	raw := &ast.RawModule{
		Datas: []ast.RawData{{Mode: ast.DataModePassive, Bytes: []byte{9, 9}}},
	}
	m := buildModule(t, raw)

	inst, err := Link(m, NewRegistry())
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 9}, inst.PassiveData[0])
}
