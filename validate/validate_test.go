package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasmcore/wasmcore/ast"
	"github.com/wasmcore/wasmcore/indexer"
	"github.com/wasmcore/wasmcore/wasm"
)

func indexOnly(t *testing.T, m *ast.RawModule) *indexer.Indexed {
	t.Helper()
	ix, err := indexer.Index(m)
	require.NoError(t, err)
	return ix
}

func TestValidateAcceptsWellTypedFunction(t *testing.T) {
	m := &ast.RawModule{
		Types: []ast.RawType{{Type: wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}}},
		Funcs: []ast.RawFunc{{
			TypeRef: ast.ByIndex(0),
			Body: []ast.Instr{
				{Op: wasm.OpcodeLocalGet, Ref: ast.ByIndex(0)},
				{Op: wasm.OpcodeI32Const, I32: 1},
				{Op: wasm.OpcodeI32Add},
				{Op: wasm.OpcodeEnd},
			},
		}},
	}
	_, err := Validate(indexOnly(t, m))
	require.NoError(t, err)
}

func TestValidateRejectsTypeMismatch(t *testing.T) {
	m := &ast.RawModule{
		Types: []ast.RawType{{Type: wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}}}},
		Funcs: []ast.RawFunc{{
			TypeRef: ast.ByIndex(0),
			Body: []ast.Instr{
				{Op: wasm.OpcodeF32Const, F32: 1.0},
				{Op: wasm.OpcodeEnd},
			},
		}},
	}
	_, err := Validate(indexOnly(t, m))
	require.Error(t, err)
}

func TestValidateAllowsUnreachablePolymorphism(t *testing.T) {
	m := &ast.RawModule{
		Types: []ast.RawType{{Type: wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}}}},
		Funcs: []ast.RawFunc{{
			TypeRef: ast.ByIndex(0),
			Body: []ast.Instr{
				{Op: wasm.OpcodeUnreachable},
				{Op: wasm.OpcodeI32Add}, // would underflow if not for Any absorption
				{Op: wasm.OpcodeEnd},
			},
		}},
	}
	_, err := Validate(indexOnly(t, m))
	require.NoError(t, err)
}

func TestValidateRejectsBranchOutOfRange(t *testing.T) {
	m := &ast.RawModule{
		Types: []ast.RawType{{Type: wasm.FunctionType{}}},
		Funcs: []ast.RawFunc{{
			TypeRef: ast.ByIndex(0),
			Body: []ast.Instr{
				{Op: wasm.OpcodeBr, Ref: ast.ByIndex(3)},
				{Op: wasm.OpcodeEnd},
			},
		}},
	}
	_, err := Validate(indexOnly(t, m))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown label")
}

func TestValidateIfWithoutElseMustPreserveSignature(t *testing.T) {
	m := &ast.RawModule{
		Types: []ast.RawType{{Type: wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}}}},
		Funcs: []ast.RawFunc{{
			TypeRef: ast.ByIndex(0),
			Body: []ast.Instr{
				{Op: wasm.OpcodeI32Const, I32: 1},
				{Op: wasm.OpcodeIf, BlockType: ast.BlockType{Kind: ast.BlockTypeSingle, ValType: wasm.ValueTypeI32}},
				{Op: wasm.OpcodeI32Const, I32: 2},
				{Op: wasm.OpcodeEnd},
				{Op: wasm.OpcodeEnd},
			},
		}},
	}
	_, err := Validate(indexOnly(t, m))
	require.Error(t, err)
}

func TestValidatePrePassDeclaresRefFuncUsedInAnyBody(t *testing.T) {
	m := &ast.RawModule{
		Types: []ast.RawType{{Type: wasm.FunctionType{}}, {Type: wasm.FunctionType{}}},
		Funcs: []ast.RawFunc{
			{TypeRef: ast.ByIndex(0), Body: []ast.Instr{
				{Op: wasm.OpcodeRefFunc, Ref: ast.ByIndex(1)},
				{Op: wasm.OpcodeDrop},
				{Op: wasm.OpcodeEnd},
			}},
			{TypeRef: ast.ByIndex(1), Body: []ast.Instr{{Op: wasm.OpcodeEnd}}},
		},
	}
	// Neither function 1 is exported nor placed in an element segment, but
	// it IS referenced by ref.func in function 0's own body, so the
	// pre-pass (which scans all bodies) legally declares it. This test
	// exists to pin that the pre-pass really does scan function bodies,
	// not just exports/elems.
	_, err := Validate(indexOnly(t, m))
	require.NoError(t, err)
}
