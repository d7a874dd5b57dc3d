package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasmcore/wasmcore/ast"
	"github.com/wasmcore/wasmcore/binary"
	"github.com/wasmcore/wasmcore/wasm"
)

// answerWasm encodes a module exporting a single zero-argument,
// i32-returning function "answer" that returns the constant 42.
func answerWasm(t *testing.T) string {
	t.Helper()
	raw := &ast.RawModule{
		Types: []ast.RawType{{Type: wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}}}},
		Funcs: []ast.RawFunc{{
			TypeRef: ast.ByIndex(0),
			Body:    []ast.Instr{{Op: wasm.OpcodeI32Const, I32: 42}, {Op: wasm.OpcodeEnd}},
		}},
		Exports: []ast.RawExport{{Name: "answer", Kind: wasm.ExternKindFunc, Ref: ast.ByIndex(0)}},
	}
	bin := binary.Encode(raw)
	path := filepath.Join(t.TempDir(), "answer.wasm")
	require.NoError(t, os.WriteFile(path, bin, 0o644))
	return path
}

func TestRunModuleWithoutExportPrintsOK(t *testing.T) {
	path := answerWasm(t)
	w, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer w.Close()

	err = runModule(path, nil, w)
	require.NoError(t, err)

	out, err := os.ReadFile(w.Name())
	require.NoError(t, err)
	assert.Contains(t, string(out), "ok")
}

func TestRunModuleWithExportInvokesIt(t *testing.T) {
	path := answerWasm(t)
	w, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer w.Close()

	err = runModule(path, []string{"answer"}, w)
	require.NoError(t, err)

	out, err := os.ReadFile(w.Name())
	require.NoError(t, err)
	assert.Contains(t, string(out), "42")
}

func TestRunModuleMissingFile(t *testing.T) {
	w, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer w.Close()

	err = runModule(filepath.Join(t.TempDir(), "missing.wasm"), nil, w)
	assert.Error(t, err)
}

func TestRunSymExploresBothBranches(t *testing.T) {
	raw := &ast.RawModule{
		Types: []ast.RawType{{Type: wasm.FunctionType{
			Params:  []wasm.ValueType{wasm.ValueTypeI32},
			Results: []wasm.ValueType{wasm.ValueTypeI32},
		}}},
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
	bin := binary.Encode(raw)
	path := filepath.Join(t.TempDir(), "branch.wasm")
	require.NoError(t, os.WriteFile(path, bin, 0o644))

	w, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer w.Close()

	err = runSym(path, "branch", w)
	require.NoError(t, err)

	out, err := os.ReadFile(w.Name())
	require.NoError(t, err)
	assert.Contains(t, string(out), "path 1")
	assert.Contains(t, string(out), "path 2")
}
