package interp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasmcore/wasmcore/ast"
	"github.com/wasmcore/wasmcore/binary"
	"github.com/wasmcore/wasmcore/interp"
	"github.com/wasmcore/wasmcore/link"
	"github.com/wasmcore/wasmcore/module"
	"github.com/wasmcore/wasmcore/solver"
	"github.com/wasmcore/wasmcore/wasm"
)

// compile round-trips raw through the encoder and the full
// decode/index/rewrite/validate/build pipeline, so the decoder's
// EndAt/ElseAt annotations and the rewrite stage's resolved indices the
// interpreter depends on are populated exactly as they would be for a
// module read off disk.
func compile(t *testing.T, raw *ast.RawModule) *module.Module {
	t.Helper()
	mod, err := module.Compile(binary.Encode(raw))
	require.NoError(t, err)
	return mod
}

func linkModule(t *testing.T, raw *ast.RawModule) *link.Instance {
	t.Helper()
	inst, err := link.Link(compile(t, raw), link.NewRegistry())
	require.NoError(t, err)
	return inst
}

func i32Type(params, results int) wasm.FunctionType {
	ft := wasm.FunctionType{}
	for i := 0; i < params; i++ {
		ft.Params = append(ft.Params, wasm.ValueTypeI32)
	}
	for i := 0; i < results; i++ {
		ft.Results = append(ft.Results, wasm.ValueTypeI32)
	}
	return ft
}

func TestMachineLoopAccumulates(t *testing.T) {
	// local 0 counts down from 5 to 0, local 1 sums the values seen.
	raw := &ast.RawModule{
		Types: []ast.RawType{{Type: i32Type(0, 1)}},
		Funcs: []ast.RawFunc{{
			TypeRef: ast.ByIndex(0),
			Locals:  []ast.Local{{Type: wasm.ValueTypeI32}, {Type: wasm.ValueTypeI32}},
			Body: []ast.Instr{
				{Op: wasm.OpcodeI32Const, I32: 5},
				{Op: wasm.OpcodeLocalSet, Ref: ast.ByIndex(0)},
				{Op: wasm.OpcodeLoop},
				{Op: wasm.OpcodeLocalGet, Ref: ast.ByIndex(1)},
				{Op: wasm.OpcodeLocalGet, Ref: ast.ByIndex(0)},
				{Op: wasm.OpcodeI32Add},
				{Op: wasm.OpcodeLocalSet, Ref: ast.ByIndex(1)},
				{Op: wasm.OpcodeLocalGet, Ref: ast.ByIndex(0)},
				{Op: wasm.OpcodeI32Const, I32: 1},
				{Op: wasm.OpcodeI32Sub},
				{Op: wasm.OpcodeLocalTee, Ref: ast.ByIndex(0)},
				{Op: wasm.OpcodeBrIf, Ref: ast.ByIndex(0)},
				{Op: wasm.OpcodeEnd},
				{Op: wasm.OpcodeLocalGet, Ref: ast.ByIndex(1)},
				{Op: wasm.OpcodeEnd},
			},
		}},
		Exports: []ast.RawExport{{Name: "sum", Kind: wasm.ExternKindFunc, Ref: ast.ByIndex(0)}},
	}
	inst := linkModule(t, raw)
	m := interp.NewMachine(inst, interp.Concrete{})
	results, err := m.CallExported("sum", nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	v, ok := interp.Concrete{}.AsI32(results[0])
	require.True(t, ok)
	assert.Equal(t, int32(5+4+3+2+1), v)
}

func TestMachineIfElseBothArms(t *testing.T) {
	raw := &ast.RawModule{
		Types: []ast.RawType{{Type: i32Type(1, 1)}},
		Funcs: []ast.RawFunc{{
			TypeRef: ast.ByIndex(0),
			Body: []ast.Instr{
				{Op: wasm.OpcodeLocalGet, Ref: ast.ByIndex(0)},
				{Op: wasm.OpcodeIf, BlockType: ast.BlockType{Kind: ast.BlockTypeSingle, ValType: wasm.ValueTypeI32}},
				{Op: wasm.OpcodeI32Const, I32: 111},
				{Op: wasm.OpcodeElse},
				{Op: wasm.OpcodeI32Const, I32: 222},
				{Op: wasm.OpcodeEnd},
				{Op: wasm.OpcodeEnd},
			},
		}},
		Exports: []ast.RawExport{{Name: "branch", Kind: wasm.ExternKindFunc, Ref: ast.ByIndex(0)}},
	}
	inst := linkModule(t, raw)

	for _, tc := range []struct{ in, want int32 }{{1, 111}, {0, 222}} {
		m := interp.NewMachine(inst, interp.Concrete{})
		results, err := m.CallExported("branch", []interp.Value{interp.Concrete{}.ConstI32(tc.in)})
		require.NoError(t, err)
		v, _ := interp.Concrete{}.AsI32(results[0])
		assert.Equal(t, tc.want, v)
	}
}

func TestMachineBrTableDispatches(t *testing.T) {
	raw := &ast.RawModule{
		Types: []ast.RawType{{Type: i32Type(1, 1)}},
		Funcs: []ast.RawFunc{{
			TypeRef: ast.ByIndex(0),
			Body: []ast.Instr{
				{Op: wasm.OpcodeBlock},
				{Op: wasm.OpcodeBlock},
				{Op: wasm.OpcodeBlock},
				{Op: wasm.OpcodeLocalGet, Ref: ast.ByIndex(0)},
				{Op: wasm.OpcodeBrTable,
					Targets: []ast.Ref{ast.ByIndex(0), ast.ByIndex(1)},
					Default: ast.ByIndex(2),
				},
				{Op: wasm.OpcodeEnd},
				{Op: wasm.OpcodeI32Const, I32: 10},
				{Op: wasm.OpcodeReturn},
				{Op: wasm.OpcodeEnd},
				{Op: wasm.OpcodeI32Const, I32: 20},
				{Op: wasm.OpcodeReturn},
				{Op: wasm.OpcodeEnd},
				{Op: wasm.OpcodeI32Const, I32: 30},
				{Op: wasm.OpcodeEnd},
			},
		}},
		Exports: []ast.RawExport{{Name: "dispatch", Kind: wasm.ExternKindFunc, Ref: ast.ByIndex(0)}},
	}
	inst := linkModule(t, raw)

	for _, tc := range []struct{ in, want int32 }{{0, 10}, {1, 20}, {99, 30}} {
		m := interp.NewMachine(inst, interp.Concrete{})
		results, err := m.CallExported("dispatch", []interp.Value{interp.Concrete{}.ConstI32(tc.in)})
		require.NoError(t, err)
		v, _ := interp.Concrete{}.AsI32(results[0])
		assert.Equal(t, tc.want, v, "input %d", tc.in)
	}
}

func TestMachineCallIndirectTrapsOnSignatureMismatch(t *testing.T) {
	i32to32 := wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}
	noArgs := wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}}
	raw := &ast.RawModule{
		Types: []ast.RawType{{Type: i32to32}, {Type: noArgs}},
		Tables: []ast.RawTable{{Type: wasm.TableType{ElemType: wasm.ValueTypeFuncRef, Limits: wasm.Limits{Min: 1}}}},
		Funcs: []ast.RawFunc{
			{ // index 0: the mismatched target, type noArgs
				TypeRef: ast.ByIndex(1),
				Body:    []ast.Instr{{Op: wasm.OpcodeI32Const, I32: 1}, {Op: wasm.OpcodeEnd}},
			},
			{ // index 1: caller, type i32to32, call_indirect against table 0
				TypeRef: ast.ByIndex(0),
				Body: []ast.Instr{
					{Op: wasm.OpcodeLocalGet, Ref: ast.ByIndex(0)}, // argument
					{Op: wasm.OpcodeLocalGet, Ref: ast.ByIndex(0)}, // table slot
					{Op: wasm.OpcodeCallIndirect, Ref: ast.ByIndex(0), Ref2: ast.ByIndex(0)},
					{Op: wasm.OpcodeEnd},
				},
			},
		},
		Elems: []ast.RawElem{{
			Type:     wasm.ValueTypeFuncRef,
			Mode:     ast.ElemModeActive,
			TableRef: ast.ByIndex(0),
			Offset:   []ast.Instr{{Op: wasm.OpcodeI32Const, I32: 0}, {Op: wasm.OpcodeEnd}},
			Init:     [][]ast.Instr{{{Op: wasm.OpcodeRefFunc, Ref: ast.ByIndex(0)}, {Op: wasm.OpcodeEnd}}},
		}},
		Exports: []ast.RawExport{{Name: "caller", Kind: wasm.ExternKindFunc, Ref: ast.ByIndex(1)}},
	}
	inst := linkModule(t, raw)
	m := interp.NewMachine(inst, interp.Concrete{})
	_, err := m.CallExported("caller", []interp.Value{interp.Concrete{}.ConstI32(0)})
	require.Error(t, err)
	trap, ok := err.(*wasm.Trap)
	require.True(t, ok)
	assert.Equal(t, wasm.TrapIndirectCallType, trap.Reason)
}

func TestMachineCallIndirectTrapsOnUninitializedElement(t *testing.T) {
	noArgs := wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}}
	raw := &ast.RawModule{
		Types:  []ast.RawType{{Type: noArgs}},
		Tables: []ast.RawTable{{Type: wasm.TableType{ElemType: wasm.ValueTypeFuncRef, Limits: wasm.Limits{Min: 1}}}},
		Funcs: []ast.RawFunc{{ // index 0: caller, table slot 0 never initialized
			TypeRef: ast.ByIndex(0),
			Body: []ast.Instr{
				{Op: wasm.OpcodeI32Const, I32: 0},
				{Op: wasm.OpcodeCallIndirect, Ref: ast.ByIndex(0), Ref2: ast.ByIndex(0)},
				{Op: wasm.OpcodeEnd},
			},
		}},
		Exports: []ast.RawExport{{Name: "caller", Kind: wasm.ExternKindFunc, Ref: ast.ByIndex(0)}},
	}
	inst := linkModule(t, raw)
	m := interp.NewMachine(inst, interp.Concrete{})
	_, err := m.CallExported("caller", nil)
	require.Error(t, err)
	trap, ok := err.(*wasm.Trap)
	require.True(t, ok)
	assert.Equal(t, wasm.TrapUninitializedElement, trap.Reason)
}

func TestMachineCallIndirectTrapsOnUndefinedElement(t *testing.T) {
	noArgs := wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}}
	raw := &ast.RawModule{
		Types:  []ast.RawType{{Type: noArgs}},
		Tables: []ast.RawTable{{Type: wasm.TableType{ElemType: wasm.ValueTypeFuncRef, Limits: wasm.Limits{Min: 1}}}},
		Funcs: []ast.RawFunc{{ // index 0: caller, index 5 is out of range for a 1-element table
			TypeRef: ast.ByIndex(0),
			Body: []ast.Instr{
				{Op: wasm.OpcodeI32Const, I32: 5},
				{Op: wasm.OpcodeCallIndirect, Ref: ast.ByIndex(0), Ref2: ast.ByIndex(0)},
				{Op: wasm.OpcodeEnd},
			},
		}},
		Exports: []ast.RawExport{{Name: "caller", Kind: wasm.ExternKindFunc, Ref: ast.ByIndex(0)}},
	}
	inst := linkModule(t, raw)
	m := interp.NewMachine(inst, interp.Concrete{})
	_, err := m.CallExported("caller", nil)
	require.Error(t, err)
	trap, ok := err.(*wasm.Trap)
	require.True(t, ok)
	assert.Equal(t, wasm.TrapUndefinedElement, trap.Reason)
}

func TestMachineSymbolicHostModuleIntroducesFreshSymbol(t *testing.T) {
	i32Fn := wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}}
	raw := &ast.RawModule{
		Types:   []ast.RawType{{Type: i32Fn}},
		Imports: []ast.RawImport{{Module: "symbolic", Name: "i32", Desc: ast.ImportDesc{Kind: wasm.ExternKindFunc, TypeRef: ast.ByIndex(0)}}},
		Funcs: []ast.RawFunc{{ // index 1: forwards the imported fresh symbol
			TypeRef: ast.ByIndex(0),
			Body:    []ast.Instr{{Op: wasm.OpcodeCall, Ref: ast.ByIndex(0)}, {Op: wasm.OpcodeEnd}},
		}},
		Exports: []ast.RawExport{{Name: "get", Kind: wasm.ExternKindFunc, Ref: ast.ByIndex(1)}},
	}
	mod := compile(t, raw)

	reg := link.NewRegistry()
	reg.Register(interp.NewSymbolicHostModule())
	inst, err := link.Link(mod, reg)
	require.NoError(t, err)

	alg := interp.NewSymbolic(solver.NewBruteForce())
	m := interp.NewMachine(inst, alg)
	results, err := m.CallExported("get", nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	_, concrete := alg.AsI32(results[0])
	assert.False(t, concrete, "imported symbolic.i32 should yield a symbol with no concrete witness")
}

func TestMachineMemoryStoreLoadRoundTrip(t *testing.T) {
	raw := &ast.RawModule{
		Types:     []ast.RawType{{Type: i32Type(0, 1)}},
		Memories:  []ast.RawMemory{{Type: wasm.MemoryType{Limits: wasm.Limits{Min: 1}}}},
		Funcs: []ast.RawFunc{{
			TypeRef: ast.ByIndex(0),
			Body: []ast.Instr{
				{Op: wasm.OpcodeI32Const, I32: 0},
				{Op: wasm.OpcodeI32Const, I32: 777},
				{Op: wasm.OpcodeI32Store, Memarg: ast.Memarg{Align: 2, Offset: 0}},
				{Op: wasm.OpcodeI32Const, I32: 0},
				{Op: wasm.OpcodeI32Load, Memarg: ast.Memarg{Align: 2, Offset: 0}},
				{Op: wasm.OpcodeEnd},
			},
		}},
		Exports: []ast.RawExport{{Name: "roundtrip", Kind: wasm.ExternKindFunc, Ref: ast.ByIndex(0)}},
	}
	inst := linkModule(t, raw)
	m := interp.NewMachine(inst, interp.Concrete{})
	results, err := m.CallExported("roundtrip", nil)
	require.NoError(t, err)
	v, _ := interp.Concrete{}.AsI32(results[0])
	assert.Equal(t, int32(777), v)
}

func TestMachineMemoryOutOfBoundsTraps(t *testing.T) {
	raw := &ast.RawModule{
		Types:    []ast.RawType{{Type: i32Type(0, 1)}},
		Memories: []ast.RawMemory{{Type: wasm.MemoryType{Limits: wasm.Limits{Min: 1}}}},
		Funcs: []ast.RawFunc{{
			TypeRef: ast.ByIndex(0),
			Body: []ast.Instr{
				{Op: wasm.OpcodeI32Const, I32: 1 << 20},
				{Op: wasm.OpcodeI32Load, Memarg: ast.Memarg{Align: 2, Offset: 0}},
				{Op: wasm.OpcodeEnd},
			},
		}},
		Exports: []ast.RawExport{{Name: "bad", Kind: wasm.ExternKindFunc, Ref: ast.ByIndex(0)}},
	}
	inst := linkModule(t, raw)
	m := interp.NewMachine(inst, interp.Concrete{})
	_, err := m.CallExported("bad", nil)
	require.Error(t, err)
	trap, ok := err.(*wasm.Trap)
	require.True(t, ok)
	assert.Equal(t, wasm.TrapOutOfBoundsMemory, trap.Reason)
}

func TestMachineTableGetSetRoundTrip(t *testing.T) {
	raw := &ast.RawModule{
		Types:  []ast.RawType{{Type: i32Type(0, 0)}},
		Tables: []ast.RawTable{{Type: wasm.TableType{ElemType: wasm.ValueTypeFuncRef, Limits: wasm.Limits{Min: 2}}}},
		Funcs: []ast.RawFunc{{
			TypeRef: ast.ByIndex(0),
			Body: []ast.Instr{
				{Op: wasm.OpcodeI32Const, I32: 1},
				{Op: wasm.OpcodeRefFunc, Ref: ast.ByIndex(0)},
				{Op: wasm.OpcodeTableSet, Ref: ast.ByIndex(0)},
				{Op: wasm.OpcodeEnd},
			},
		}},
		Exports: []ast.RawExport{{Name: "populate", Kind: wasm.ExternKindFunc, Ref: ast.ByIndex(0)}},
	}
	inst := linkModule(t, raw)
	m := interp.NewMachine(inst, interp.Concrete{})
	_, err := m.CallExported("populate", nil)
	require.NoError(t, err)

	elem := inst.Tables[0].Elems[1]
	assert.False(t, elem.RefNull)
	assert.Equal(t, uint32(0), elem.FuncIdx)
}

func TestMachineSymbolicForkByReplay(t *testing.T) {
	raw := &ast.RawModule{
		Types: []ast.RawType{{Type: i32Type(1, 1)}},
		Funcs: []ast.RawFunc{{
			TypeRef: ast.ByIndex(0),
			Body: []ast.Instr{
				{Op: wasm.OpcodeLocalGet, Ref: ast.ByIndex(0)},
				{Op: wasm.OpcodeIf, BlockType: ast.BlockType{Kind: ast.BlockTypeSingle, ValType: wasm.ValueTypeI32}},
				{Op: wasm.OpcodeI32Const, I32: 1},
				{Op: wasm.OpcodeElse},
				{Op: wasm.OpcodeI32Const, I32: 0},
				{Op: wasm.OpcodeEnd},
				{Op: wasm.OpcodeEnd},
			},
		}},
		Exports: []ast.RawExport{{Name: "branch", Kind: wasm.ExternKindFunc, Ref: ast.ByIndex(0)}},
	}
	inst := linkModule(t, raw)

	alg := interp.NewSymbolic(solver.NewBruteForce())
	sym := alg.Symbol(wasm.ValueTypeI32, "x")
	m := interp.NewMachine(inst, alg)
	_, err := m.CallExported("branch", []interp.Value{sym})
	require.NoError(t, err)
	require.Len(t, alg.Forks, 1, "the untaken side of the symbolic branch should be recorded for replay")

	replay := interp.NewSymbolic(solver.NewBruteForce())
	replay.Path = append(replay.Path, alg.Forks[0])
	sym2 := replay.Symbol(wasm.ValueTypeI32, "x")
	m2 := interp.NewMachine(inst, replay)
	_, err = m2.CallExported("branch", []interp.Value{sym2})
	require.NoError(t, err)
}
