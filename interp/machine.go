package interp

import (
	"fmt"

	"github.com/wasmcore/wasmcore/ast"
	"github.com/wasmcore/wasmcore/link"
	"github.com/wasmcore/wasmcore/wasm"
	"github.com/wasmcore/wasmcore/wasmlog"
)

// label is one entry of a frame's label stack, pushed by block/loop/if
// and popped by its matching end or by a br targeting it. Base is the
// operand-stack height directly below this construct's own parameters;
// Arity is how many of the branch-target operands a branch keeps.
type label struct {
	arity        int
	continuation int
	base         int
	isLoop       bool
}

// frame is one active call.
type frame struct {
	fn     *link.FuncInstance
	locals []Value
	labels []label
	pc     int
}

// Machine is a single execution thread: one value stack, one frame
// stack, and the algebra it is parametrised over.
type Machine struct {
	Inst  *link.Instance
	Alg   Algebra
	Log   *wasmlog.Logger
	stack []Value
	frame []*frame
}

func NewMachine(inst *link.Instance, alg Algebra) *Machine {
	return &Machine{Inst: inst, Alg: alg, Log: wasmlog.Nop()}
}

func (m *Machine) log() *wasmlog.Logger {
	if m.Log == nil {
		return wasmlog.Nop()
	}
	return m.Log
}

func (m *Machine) push(v Value) { m.stack = append(m.stack, v) }

func (m *Machine) pop() Value {
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v
}

func (m *Machine) top() *frame { return m.frame[len(m.frame)-1] }

// CallByIndex invokes the function at the given index, host or local,
// with args already converted to this Machine's algebra.
func (m *Machine) CallByIndex(idx uint32, args []Value) ([]Value, error) {
	return m.call(m.Inst.Funcs[idx], args)
}

// CallExported invokes an exported function by name.
func (m *Machine) CallExported(name string, args []Value) ([]Value, error) {
	ex, ok := m.Inst.Exports[name]
	if !ok || ex.Kind != wasm.ExternKindFunc {
		return nil, fmt.Errorf("exported function %q not found", name)
	}
	return m.call(ex.Func, args)
}

func (m *Machine) call(fn *link.FuncInstance, args []Value) ([]Value, error) {
	if fn.HostAlgebraic != nil {
		anyArgs := make([]any, len(args))
		for i, a := range args {
			anyArgs[i] = a
		}
		out, err := fn.HostAlgebraic(m.Alg, anyArgs)
		if err != nil {
			m.log().Debugf("host call trapped: %v", err)
			return nil, err
		}
		results := make([]Value, len(out))
		for i, v := range out {
			rv, ok := v.(Value)
			if !ok {
				return nil, fmt.Errorf("algebraic host function returned a non-Value result")
			}
			results[i] = rv
		}
		return results, nil
	}

	if !fn.Local {
		linkArgs, ok := toLinkArgs(m.Alg, args)
		if !ok {
			return nil, wasm.NewTrap(wasm.TrapExternCallArgType)
		}
		out, err := fn.Host(linkArgs)
		if err != nil {
			m.log().Debugf("host call trapped: %v", err)
			return nil, err
		}
		results := make([]Value, len(out))
		for i, v := range out {
			results[i] = FromLink(m.Alg, v)
		}
		return results, nil
	}

	locals := make([]Value, len(fn.Type.Params)+len(fn.Locals))
	copy(locals, args)
	for i, l := range fn.Locals {
		locals[len(fn.Type.Params)+i] = zeroValue(m.Alg, l.Type)
	}

	fr := &frame{fn: fn, locals: locals}
	m.frame = append(m.frame, fr)
	baseStack := len(m.stack)

	err := m.run(fr)

	m.frame = m.frame[:len(m.frame)-1]
	if err != nil {
		m.log().Debugf("call trapped: %v", err)
		m.stack = m.stack[:baseStack]
		return nil, err
	}

	n := len(fn.Type.Results)
	results := make([]Value, n)
	copy(results, m.stack[len(m.stack)-n:])
	m.stack = m.stack[:len(m.stack)-n]
	return results, nil
}

// toLinkArgs converts a call's arguments to link.Value for a host
// function boundary. ok is false if any argument has no concrete
// witness, which the caller turns into TrapExternCallArgType: a host
// call received a value it cannot represent.
func toLinkArgs(alg Algebra, vs []Value) ([]link.Value, bool) {
	out := make([]link.Value, len(vs))
	for i, v := range vs {
		lv, ok := ToLink(alg, v)
		if !ok {
			return nil, false
		}
		out[i] = lv
	}
	return out, true
}

func zeroValue(alg Algebra, t wasm.ValueType) Value {
	switch t {
	case wasm.ValueTypeI32:
		return alg.ConstI32(0)
	case wasm.ValueTypeI64:
		return alg.ConstI64(0)
	case wasm.ValueTypeF32:
		return alg.ConstF32(0)
	case wasm.ValueTypeF64:
		return alg.ConstF64(0)
	default:
		return alg.NullRef(t)
	}
}

// run drives fr's body to completion (normal fallthrough of the
// function-closing End, or an explicit return) or a trap.
func (m *Machine) run(fr *frame) error {
	for {
		if fr.pc >= len(fr.fn.Body) {
			return nil
		}
		in := &fr.fn.Body[fr.pc]
		if in.Op == wasm.OpcodeEnd && len(fr.labels) == 0 {
			return nil
		}
		done, err := m.step(fr, in)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// step executes one instruction, advancing fr.pc. It returns done=true
// when a `return` (or falling off the end of the function) should end
// the call immediately.
func (m *Machine) step(fr *frame, in *ast.Instr) (bool, error) {
	switch in.Op {
	case wasm.OpcodeUnreachable:
		return false, wasm.NewTrap(wasm.TrapUnreachable)
	case wasm.OpcodeNop:
		fr.pc++
		return false, nil

	case wasm.OpcodeBlock:
		return false, m.opBlock(fr, in)
	case wasm.OpcodeLoop:
		return false, m.opLoop(fr, in)
	case wasm.OpcodeIf:
		return false, m.opIf(fr, in)
	case wasm.OpcodeElse:
		m.opElse(fr)
		return false, nil
	case wasm.OpcodeEnd:
		m.opEnd(fr)
		return false, nil
	case wasm.OpcodeBr:
		m.branch(fr, in.Ref.Index)
		return false, nil
	case wasm.OpcodeBrIf:
		return false, m.opBrIf(fr, in)
	case wasm.OpcodeBrTable:
		return false, m.opBrTable(fr, in)
	case wasm.OpcodeReturn:
		return true, nil
	case wasm.OpcodeCall:
		return false, m.opCall(fr, in)
	case wasm.OpcodeCallIndirect:
		return false, m.opCallIndirect(fr, in)

	case wasm.OpcodeDrop:
		m.pop()
		fr.pc++
		return false, nil
	case wasm.OpcodeSelect, wasm.OpcodeSelectT:
		c := m.pop()
		b := m.pop()
		a := m.pop()
		m.push(m.Alg.Select(c, a, b))
		fr.pc++
		return false, nil

	case wasm.OpcodeLocalGet:
		m.push(fr.locals[in.Ref.Index])
		fr.pc++
		return false, nil
	case wasm.OpcodeLocalSet:
		fr.locals[in.Ref.Index] = m.pop()
		fr.pc++
		return false, nil
	case wasm.OpcodeLocalTee:
		fr.locals[in.Ref.Index] = m.stack[len(m.stack)-1]
		fr.pc++
		return false, nil

	case wasm.OpcodeGlobalGet:
		m.push(FromLink(m.Alg, globalOf(m.Inst, in.Ref.Index).Value))
		fr.pc++
		return false, nil
	case wasm.OpcodeGlobalSet:
		v := m.pop()
		lv, ok := ToLink(m.Alg, v)
		if !ok {
			return false, fmt.Errorf("cannot store a non-concrete value into a global")
		}
		globalOf(m.Inst, in.Ref.Index).Value = lv
		fr.pc++
		return false, nil

	case wasm.OpcodeRefNull:
		m.push(m.Alg.NullRef(wasm.ValueType(in.I32)))
		fr.pc++
		return false, nil
	case wasm.OpcodeRefIsNull:
		v := m.pop()
		_, isNull, ok := m.Alg.RefInfo(v)
		if !ok {
			return false, fmt.Errorf("ref.is_null on a non-concrete reference")
		}
		m.push(m.Alg.ConstI32(boolToI32(isNull)))
		fr.pc++
		return false, nil
	case wasm.OpcodeRefFunc:
		m.push(m.Alg.FuncRef(in.Ref.Index))
		fr.pc++
		return false, nil

	case wasm.OpcodeI32Const:
		m.push(m.Alg.ConstI32(in.I32))
		fr.pc++
		return false, nil
	case wasm.OpcodeI64Const:
		m.push(m.Alg.ConstI64(in.I64))
		fr.pc++
		return false, nil
	case wasm.OpcodeF32Const:
		m.push(m.Alg.ConstF32(in.F32))
		fr.pc++
		return false, nil
	case wasm.OpcodeF64Const:
		m.push(m.Alg.ConstF64(in.F64))
		fr.pc++
		return false, nil

	case wasm.OpcodeMisc:
		return false, m.opMisc(fr, in)

	case wasm.OpcodeTableGet:
		return false, m.opTableGet(fr, in)
	case wasm.OpcodeTableSet:
		return false, m.opTableSet(fr, in)

	default:
		if isMemoryOp(in.Op) {
			return false, m.opMemory(fr, in)
		}
		return false, m.opNumeric(fr, in)
	}
}

func boolToI32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func globalOf(inst *link.Instance, idx uint32) *link.GlobalInstance { return inst.Globals[idx] }
