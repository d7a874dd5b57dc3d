package interp_test

import (
	"testing"

	"github.com/bytecodealliance/wasmtime-go/v25"
	"github.com/stretchr/testify/require"

	"github.com/wasmcore/wasmcore/ast"
	"github.com/wasmcore/wasmcore/binary"
	"github.com/wasmcore/wasmcore/interp"
	"github.com/wasmcore/wasmcore/link"
	"github.com/wasmcore/wasmcore/module"
	"github.com/wasmcore/wasmcore/wasm"
)

// crossVMAnswer is a zero-import, zero-argument i32-returning module run
// through both engines below: small enough that neither side needs an
// import/host-func bridge, which is what makes it usable as a
// differential oracle without first building one.
func crossVMAnswer() []byte {
	return binary.Encode(&ast.RawModule{
		Types: []ast.RawType{{Type: wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}}}},
		Funcs: []ast.RawFunc{{
			TypeRef: ast.ByIndex(0),
			Body: []ast.Instr{
				{Op: wasm.OpcodeI32Const, I32: 7},
				{Op: wasm.OpcodeI32Const, I32: 6},
				{Op: wasm.OpcodeI32Mul},
				{Op: wasm.OpcodeEnd},
			},
		}},
		Exports: []ast.RawExport{{Name: "answer", Kind: wasm.ExternKindFunc, Ref: ast.ByIndex(0)}},
	})
}

func runOnWasmtime(t testing.TB, bin []byte) int32 {
	t.Helper()
	engine := wasmtime.NewEngine()
	store := wasmtime.NewStore(engine)
	mod, err := wasmtime.NewModule(store.Engine, bin)
	require.NoError(t, err)
	inst, err := wasmtime.NewInstance(store, mod, []wasmtime.AsExtern{})
	require.NoError(t, err)
	fn := inst.GetExport(store, "answer").Func()
	result, err := fn.Call(store)
	require.NoError(t, err)
	return result.(int32)
}

func runOnCore(t testing.TB, bin []byte) int32 {
	t.Helper()
	mod, err := module.Compile(bin)
	require.NoError(t, err)
	inst, err := link.Link(mod, link.NewRegistry())
	require.NoError(t, err)
	m := interp.NewMachine(inst, interp.Concrete{})
	results, err := m.CallExported("answer", nil)
	require.NoError(t, err)
	v, ok := interp.Concrete{}.AsI32(results[0])
	require.True(t, ok)
	return v
}

// TestCrossVMMatchesWasmtime checks this module's concrete interpreter
// agrees with wasmtime-go on a module neither side needed any special
// casing to run, catching a class of bug unit tests of either engine
// alone cannot: a shared misreading of the binary format both sides
// happen to agree on internally but which diverges from what the format
// actually says.
func TestCrossVMMatchesWasmtime(t *testing.T) {
	bin := crossVMAnswer()
	require.Equal(t, runOnWasmtime(t, bin), runOnCore(t, bin))
}

func BenchmarkCrossVMCore(b *testing.B) {
	bin := crossVMAnswer()
	for i := 0; i < b.N; i++ {
		runOnCore(b, bin)
	}
}

func BenchmarkCrossVMWasmtime(b *testing.B) {
	bin := crossVMAnswer()
	for i := 0; i < b.N; i++ {
		runOnWasmtime(b, bin)
	}
}
