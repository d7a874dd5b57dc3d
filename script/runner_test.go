package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasmcore/wasmcore/ast"
	"github.com/wasmcore/wasmcore/indexer"
	"github.com/wasmcore/wasmcore/link"
	"github.com/wasmcore/wasmcore/module"
	"github.com/wasmcore/wasmcore/wasm"
)

func buildAnswerInstance(t *testing.T) *link.Instance {
	t.Helper()
	raw := &ast.RawModule{
		Types: []ast.RawType{{Type: wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}}}},
		Funcs: []ast.RawFunc{{
			TypeRef: ast.ByIndex(0),
			Body:    []ast.Instr{{Op: wasm.OpcodeI32Const, I32: 42}, {Op: wasm.OpcodeEnd}},
		}},
		Exports: []ast.RawExport{{Name: "answer", Kind: wasm.ExternKindFunc, Ref: ast.ByIndex(0)}},
	}
	ix, err := indexer.Index(raw)
	require.NoError(t, err)
	mod := module.Build(ix)
	inst, err := link.Link(mod, link.NewRegistry())
	require.NoError(t, err)
	return inst
}

func TestRunnerAssertReturnSucceeds(t *testing.T) {
	r := NewRunner(".")
	r.last = buildAnswerInstance(t)

	cmd := &Command{
		Type:     "assert_return",
		Action:   Action{Type: "invoke", Field: "answer"},
		Expected: []Val{{Type: "i32", Value: "42"}},
	}
	assert.NoError(t, r.doAssertReturn(cmd))
}

func TestRunnerAssertReturnReportsMismatch(t *testing.T) {
	r := NewRunner(".")
	r.last = buildAnswerInstance(t)

	cmd := &Command{
		Type:     "assert_return",
		Action:   Action{Type: "invoke", Field: "answer"},
		Expected: []Val{{Type: "i32", Value: "7"}},
	}
	assert.Error(t, r.doAssertReturn(cmd))
}

func TestRunnerAssertTrapDetectsTrap(t *testing.T) {
	raw := &ast.RawModule{
		Types: []ast.RawType{{Type: wasm.FunctionType{}}},
		Funcs: []ast.RawFunc{{
			TypeRef: ast.ByIndex(0),
			Body:    []ast.Instr{{Op: wasm.OpcodeUnreachable}, {Op: wasm.OpcodeEnd}},
		}},
		Exports: []ast.RawExport{{Name: "boom", Kind: wasm.ExternKindFunc, Ref: ast.ByIndex(0)}},
	}
	ix, err := indexer.Index(raw)
	require.NoError(t, err)
	mod := module.Build(ix)
	inst, err := link.Link(mod, link.NewRegistry())
	require.NoError(t, err)

	r := NewRunner(".")
	r.last = inst
	cmd := &Command{Type: "assert_trap", Action: Action{Type: "invoke", Field: "boom"}, Text: wasm.TrapUnreachable}
	assert.NoError(t, r.doAssertTrap(cmd))
}

func TestParseDecodesCommands(t *testing.T) {
	data := []byte(`{"commands":[
		{"type":"module","line":1,"filename":"m.wasm"},
		{"type":"assert_return","line":2,"action":{"type":"invoke","field":"answer"},"expected":[{"type":"i32","value":"42"}]}
	]}`)
	s, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, s.Commands, 2)
	assert.Equal(t, "module", s.Commands[0].Type)
	assert.Equal(t, "answer", s.Commands[1].Action.Field)
}
