package interp

import (
	"fmt"

	"github.com/wasmcore/wasmcore/ast"
	"github.com/wasmcore/wasmcore/wasm"
)

func (m *Machine) blockSignature(bt ast.BlockType) (params, results []wasm.ValueType) {
	switch bt.Kind {
	case ast.BlockTypeVoid:
		return nil, nil
	case ast.BlockTypeSingle:
		return nil, []wasm.ValueType{bt.ValType}
	default:
		ft := &m.Inst.Mod.Types.Entries[bt.TypeRef.Index].Decl
		return ft.Params, ft.Results
	}
}

func (m *Machine) opBlock(fr *frame, in *ast.Instr) error {
	params, results := m.blockSignature(in.BlockType)
	fr.labels = append(fr.labels, label{
		arity:        len(results),
		continuation: in.EndAt + 1,
		base:         len(m.stack) - len(params),
	})
	fr.pc++
	return nil
}

func (m *Machine) opLoop(fr *frame, in *ast.Instr) error {
	params, _ := m.blockSignature(in.BlockType)
	fr.labels = append(fr.labels, label{
		arity:        len(params),
		continuation: fr.pc + 1,
		base:         len(m.stack) - len(params),
		isLoop:       true,
	})
	fr.pc++
	return nil
}

func (m *Machine) opIf(fr *frame, in *ast.Instr) error {
	params, results := m.blockSignature(in.BlockType)
	cond := m.pop()
	choices, err := m.Alg.EvalChoice(cond)
	if err != nil {
		return err
	}
	taken := choices[0].Taken

	fr.labels = append(fr.labels, label{
		arity:        len(results),
		continuation: in.EndAt + 1,
		base:         len(m.stack) - len(params),
	})
	if taken {
		fr.pc++
	} else if in.ElseAt >= 0 {
		fr.pc = in.ElseAt + 1
	} else {
		fr.pc = in.EndAt + 1
		fr.labels = fr.labels[:len(fr.labels)-1]
	}
	return nil
}

// opElse is reached only by falling through the end of a `then` arm
// (a branch out of the block jumps straight past it); it means "skip
// the else arm and resume as if this were the block's end".
func (m *Machine) opElse(fr *frame) {
	l := fr.labels[len(fr.labels)-1]
	fr.labels = fr.labels[:len(fr.labels)-1]
	fr.pc = l.continuation
}

func (m *Machine) opEnd(fr *frame) {
	fr.labels = fr.labels[:len(fr.labels)-1]
	fr.pc++
}

// branch implements `br N`: pop N+1 labels, keep the target's branch
// operands, discard everything else down to the target's base.
func (m *Machine) branch(fr *frame, n uint32) {
	var l label
	for i := uint32(0); i <= n; i++ {
		l = fr.labels[len(fr.labels)-1]
		fr.labels = fr.labels[:len(fr.labels)-1]
	}
	kept := append([]Value{}, m.stack[len(m.stack)-l.arity:]...)
	m.stack = m.stack[:l.base]
	m.stack = append(m.stack, kept...)
	fr.pc = l.continuation
	if l.isLoop {
		fr.labels = append(fr.labels, l)
	}
}

func (m *Machine) opBrIf(fr *frame, in *ast.Instr) error {
	cond := m.pop()
	choices, err := m.Alg.EvalChoice(cond)
	if err != nil {
		return err
	}
	if choices[0].Taken {
		m.branch(fr, in.Ref.Index)
	} else {
		fr.pc++
	}
	return nil
}

func (m *Machine) opBrTable(fr *frame, in *ast.Instr) error {
	iv := m.pop()
	i, ok := m.Alg.AsU32(iv)
	if !ok {
		return fmt.Errorf("br_table requires a concrete index")
	}
	if int(i) < len(in.Targets) {
		m.branch(fr, in.Targets[i].Index)
	} else {
		m.branch(fr, in.Default.Index)
	}
	return nil
}

func (m *Machine) opCall(fr *frame, in *ast.Instr) error {
	fn := m.Inst.Funcs[in.Ref.Index]
	n := len(fn.Type.Params)
	args := append([]Value{}, m.stack[len(m.stack)-n:]...)
	m.stack = m.stack[:len(m.stack)-n]
	results, err := m.call(fn, args)
	if err != nil {
		return err
	}
	for _, r := range results {
		m.push(r)
	}
	fr.pc++
	return nil
}

func (m *Machine) opCallIndirect(fr *frame, in *ast.Instr) error {
	wantType := &m.Inst.Mod.Types.Entries[in.Ref.Index].Decl
	tbl := m.Inst.Tables[in.Ref2.Index]

	iv := m.pop()
	idx, ok := m.Alg.AsU32(iv)
	if !ok {
		return fmt.Errorf("call_indirect requires a concrete table index")
	}
	if idx >= uint32(len(tbl.Elems)) {
		return wasm.NewTrap(wasm.TrapUndefinedElement)
	}
	elem := tbl.Elems[idx]
	if elem.RefNull {
		return wasm.NewTrap(wasm.TrapUninitializedElement)
	}
	fn := m.Inst.Funcs[elem.FuncIdx]
	if !sameSignature(fn.Type, wantType) {
		return wasm.NewTrap(wasm.TrapIndirectCallType)
	}

	n := len(fn.Type.Params)
	args := append([]Value{}, m.stack[len(m.stack)-n:]...)
	m.stack = m.stack[:len(m.stack)-n]
	results, err := m.call(fn, args)
	if err != nil {
		return err
	}
	for _, r := range results {
		m.push(r)
	}
	fr.pc++
	return nil
}

func sameSignature(a, b *wasm.FunctionType) bool {
	if len(a.Params) != len(b.Params) || len(a.Results) != len(b.Results) {
		return false
	}
	for i := range a.Params {
		if a.Params[i] != b.Params[i] {
			return false
		}
	}
	for i := range a.Results {
		if a.Results[i] != b.Results[i] {
			return false
		}
	}
	return true
}
