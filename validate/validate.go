package validate

import (
	"fmt"

	"github.com/wasmcore/wasmcore/ast"
	"github.com/wasmcore/wasmcore/indexer"
	"github.com/wasmcore/wasmcore/wasm"
)

// Validate type-checks every function body in ix.Module, which must
// already have passed through rewrite.Rewrite (every Ref a plain index,
// every BlockType normalised). It returns the same module, unmutated
// apart from the bookkeeping rewrite already did.
func Validate(ix *indexer.Indexed) (*ast.RawModule, error) {
	v := &moduleView{ix: ix, m: ix.Module}
	refs := collectDeclaredRefs(ix)

	for i := range v.m.Funcs {
		if err := validateFunc(v, &v.m.Funcs[i], refs); err != nil {
			return nil, fmt.Errorf("function %d: %w", int(ix.NumImportedFuncs)+i, err)
		}
	}
	return v.m, nil
}

// collectDeclaredRefs builds the set of function indices that may
// legally appear as a ref.func operand: those exported by name, those
// placed into an element segment, and those already used as a ref.func
// operand anywhere in the module (including inside other function
// bodies).
func collectDeclaredRefs(ix *indexer.Indexed) map[uint32]bool {
	refs := map[uint32]bool{}
	m := ix.Module

	for _, e := range m.Exports {
		if e.Kind == wasm.ExternKindFunc {
			refs[e.Ref.Index] = true
		}
	}
	scan := func(expr []ast.Instr) {
		for _, in := range expr {
			if in.Op == wasm.OpcodeRefFunc {
				refs[in.Ref.Index] = true
			}
		}
	}
	for _, g := range m.Globals {
		scan(g.Init)
	}
	for _, e := range m.Elems {
		scan(e.Offset)
		for _, init := range e.Init {
			scan(init)
		}
	}
	for _, f := range m.Funcs {
		scan(f.Body)
	}
	return refs
}

func validateFunc(v *moduleView, f *ast.RawFunc, declaredRefs map[uint32]bool) error {
	ft, err := v.funcType(f.TypeRef.Index)
	if err != nil {
		return err
	}
	numLocals := len(ft.Params) + len(f.Locals)
	localType := make([]StackType, numLocals)
	for i, p := range ft.Params {
		localType[i] = fromValueType(p)
	}
	for i, l := range f.Locals {
		localType[len(ft.Params)+i] = fromValueType(l.Type)
	}

	ts := &typeStack{}
	fnFrame := &frame{kind: frameFunc, results: toStackTypes(ft.Results)}
	ts.frames = append(ts.frames, fnFrame)

	for i := range f.Body {
		if err := validateInstr(v, ts, &f.Body[i], localType, declaredRefs); err != nil {
			return fmt.Errorf("instruction %d (%s): %w", i, opName(f.Body[i].Op), err)
		}
	}

	if len(ts.frames) != 1 {
		return fmt.Errorf("END opcode encountered without matching BEGIN")
	}
	if err := ts.popPrefix(fnFrame.results); err != nil {
		return err
	}
	if ts.height() != fnFrame.startHeight {
		return fmt.Errorf("type mismatch: values remaining on stack at end of function")
	}
	return nil
}

func opName(op wasm.Opcode) string {
	return fmt.Sprintf("0x%02x", byte(op))
}

func validateInstr(v *moduleView, ts *typeStack, in *ast.Instr, locals []StackType, declaredRefs map[uint32]bool) error {
	switch {
	case in.Op == wasm.OpcodeUnreachable:
		ts.setUnreachable()
		return nil
	case in.Op == wasm.OpcodeNop:
		return nil

	case in.Op == wasm.OpcodeBlock, in.Op == wasm.OpcodeLoop, in.Op == wasm.OpcodeIf:
		ft := v.blockFuncType(in.BlockType)
		if in.Op == wasm.OpcodeIf {
			if _, err := ts.popExpect(i32); err != nil {
				return err
			}
		}
		if err := ts.popPrefix(toStackTypes(ft.Params)); err != nil {
			return err
		}
		kind := frameBlock
		if in.Op == wasm.OpcodeLoop {
			kind = frameLoop
		} else if in.Op == wasm.OpcodeIf {
			kind = frameIf
		}
		f := &frame{kind: kind, params: toStackTypes(ft.Params), results: toStackTypes(ft.Results), startHeight: ts.height()}
		ts.pushN(f.params)
		ts.frames = append(ts.frames, f)
		return nil

	case in.Op == wasm.OpcodeElse:
		cur := ts.current()
		if cur.kind != frameIf {
			return fmt.Errorf("else without matching if")
		}
		if err := ts.popPrefix(cur.results); err != nil {
			return err
		}
		if ts.height() != cur.startHeight {
			return fmt.Errorf("type mismatch: values remaining at if/else boundary")
		}
		ts.frames[len(ts.frames)-1] = &frame{kind: frameElse, params: cur.params, results: cur.results, startHeight: cur.startHeight}
		ts.pushN(cur.params)
		return nil

	case in.Op == wasm.OpcodeEnd:
		if len(ts.frames) == 1 {
			// The function body's own closing end; validateFunc checks
			// the final stack shape once the instruction loop finishes.
			return nil
		}
		cur := ts.current()
		if err := ts.popPrefix(cur.results); err != nil {
			return err
		}
		if cur.kind == frameIf {
			// `if ... end` without an else: the else branch is the
			// identity, so it must produce the same params it consumed.
			if !sameTypes(cur.params, cur.results) {
				return fmt.Errorf("type mismatch: if without else must not change the stack signature")
			}
		}
		if ts.height() != cur.startHeight {
			return fmt.Errorf("type mismatch: values remaining at end of block")
		}
		ts.frames = ts.frames[:len(ts.frames)-1]
		if len(ts.frames) > 0 {
			ts.pushN(cur.results)
		}
		return nil

	case in.Op == wasm.OpcodeBr:
		return validateBranch(ts, in.Ref.Index)
	case in.Op == wasm.OpcodeBrIf:
		if _, err := ts.popExpect(i32); err != nil {
			return err
		}
		return checkBranchTarget(ts, in.Ref.Index)
	case in.Op == wasm.OpcodeBrTable:
		if _, err := ts.popExpect(i32); err != nil {
			return err
		}
		for _, t := range in.Targets {
			if err := validateBranchNoUnreachable(ts, t.Index); err != nil {
				return err
			}
		}
		if err := validateBranch(ts, in.Default.Index); err != nil {
			return err
		}
		return nil
	case in.Op == wasm.OpcodeReturn:
		return validateBranch(ts, uint32(len(ts.frames)-1))

	case in.Op == wasm.OpcodeCall:
		ft, err := v.funcType(in.Ref.Index)
		if err != nil {
			return err
		}
		return applySignature(ts, ft)
	case in.Op == wasm.OpcodeCallIndirect:
		if _, err := ts.popExpect(i32); err != nil { // the table index operand
			return err
		}
		ft := &v.m.Types[in.Ref.Index].Type
		return applySignature(ts, ft)

	case in.Op == wasm.OpcodeDrop:
		_, err := ts.pop()
		return err
	case in.Op == wasm.OpcodeSelect:
		if _, err := ts.popExpect(i32); err != nil {
			return err
		}
		b, err := ts.pop()
		if err != nil {
			return err
		}
		a, err := ts.popExpect(b)
		if err != nil {
			return err
		}
		result := a
		if a.isMeta() {
			result = b
		}
		ts.push(result)
		return nil
	case in.Op == wasm.OpcodeSelectT:
		if _, err := ts.popExpect(i32); err != nil {
			return err
		}
		want := toStackTypes(in.SelectTypes)
		if len(want) != 1 {
			return fmt.Errorf("select with more than one result type")
		}
		if _, err := ts.popExpect(want[0]); err != nil {
			return err
		}
		if _, err := ts.popExpect(want[0]); err != nil {
			return err
		}
		ts.push(want[0])
		return nil

	case in.Op == wasm.OpcodeLocalGet:
		t, err := localOf(locals, in.Ref.Index)
		if err != nil {
			return err
		}
		ts.push(t)
		return nil
	case in.Op == wasm.OpcodeLocalSet, in.Op == wasm.OpcodeLocalTee:
		t, err := localOf(locals, in.Ref.Index)
		if err != nil {
			return err
		}
		got, err := ts.popExpect(t)
		if err != nil {
			return err
		}
		if in.Op == wasm.OpcodeLocalTee {
			ts.push(got)
		}
		return nil
	case in.Op == wasm.OpcodeGlobalGet:
		gt, err := v.globalType(in.Ref.Index)
		if err != nil {
			return err
		}
		ts.push(fromValueType(gt.ValType))
		return nil
	case in.Op == wasm.OpcodeGlobalSet:
		gt, err := v.globalType(in.Ref.Index)
		if err != nil {
			return err
		}
		_, err = ts.popExpect(fromValueType(gt.ValType))
		return err

	case in.Op == wasm.OpcodeTableGet:
		tt, err := v.tableType(in.Ref.Index)
		if err != nil {
			return err
		}
		if _, err := ts.popExpect(i32); err != nil {
			return err
		}
		ts.push(fromValueType(tt.ElemType))
		return nil
	case in.Op == wasm.OpcodeTableSet:
		tt, err := v.tableType(in.Ref.Index)
		if err != nil {
			return err
		}
		if _, err := ts.popExpect(fromValueType(tt.ElemType)); err != nil {
			return err
		}
		_, err = ts.popExpect(i32)
		return err

	case in.Op == wasm.OpcodeRefNull:
		ts.push(fromValueType(wasm.ValueType(in.I32)))
		return nil
	case in.Op == wasm.OpcodeRefIsNull:
		t, err := ts.pop()
		if err != nil {
			return err
		}
		if !t.isMeta() && wasm.ValueType(t) != wasm.ValueTypeFuncRef && wasm.ValueType(t) != wasm.ValueTypeExtern {
			return fmt.Errorf("type mismatch: expected a reference type")
		}
		ts.push(i32)
		return nil
	case in.Op == wasm.OpcodeRefFunc:
		if !declaredRefs[in.Ref.Index] {
			return fmt.Errorf("undeclared function reference")
		}
		ts.push(fromValueType(wasm.ValueTypeFuncRef))
		return nil

	case in.Op == wasm.OpcodeI32Const:
		ts.push(i32)
		return nil
	case in.Op == wasm.OpcodeI64Const:
		ts.push(i64)
		return nil
	case in.Op == wasm.OpcodeF32Const:
		ts.push(f32)
		return nil
	case in.Op == wasm.OpcodeF64Const:
		ts.push(f64)
		return nil

	case in.Op == wasm.OpcodeMemorySize:
		if v.numMemories() == 0 {
			return fmt.Errorf("unknown memory 0")
		}
		ts.push(i32)
		return nil
	case in.Op == wasm.OpcodeMemoryGrow:
		if v.numMemories() == 0 {
			return fmt.Errorf("unknown memory 0")
		}
		if _, err := ts.popExpect(i32); err != nil {
			return err
		}
		ts.push(i32)
		return nil

	case isLoad(in.Op):
		if _, err := ts.popExpect(i32); err != nil {
			return err
		}
		ts.push(loadResultType(in.Op))
		return nil
	case isStore(in.Op):
		if _, err := ts.popExpect(storeValueType(in.Op)); err != nil {
			return err
		}
		_, err := ts.popExpect(i32)
		return err

	case in.Op == wasm.OpcodeMisc:
		return validateMisc(v, ts, in)
	}

	if eff, ok := unaryOps[in.Op]; ok {
		if _, err := ts.popExpect(eff[0]); err != nil {
			return err
		}
		ts.push(eff[1])
		return nil
	}
	if eff, ok := binaryOps[in.Op]; ok {
		if _, err := ts.popExpect(eff[0]); err != nil {
			return err
		}
		if _, err := ts.popExpect(eff[0]); err != nil {
			return err
		}
		ts.push(eff[1])
		return nil
	}
	if eff, ok := convertOps[in.Op]; ok {
		if _, err := ts.popExpect(eff[0]); err != nil {
			return err
		}
		ts.push(eff[1])
		return nil
	}

	return fmt.Errorf("unhandled opcode")
}

// validateBranch checks an unconditional branch's (br, br_table default,
// return) target-type match, then marks the rest of the current block
// unreachable since control never falls through past it.
func validateBranch(ts *typeStack, depth uint32) error {
	if err := checkBranchTarget(ts, depth); err != nil {
		return err
	}
	ts.setUnreachable()
	return nil
}

// validateBranchNoUnreachable checks a br_table non-default target: the
// stack must match, but it is left untouched since other targets (and
// the fallthrough-free terminator itself) still need to see it.
func validateBranchNoUnreachable(ts *typeStack, depth uint32) error {
	return checkBranchTarget(ts, depth)
}

func checkBranchTarget(ts *typeStack, depth uint32) error {
	if int(depth) >= len(ts.frames) {
		return fmt.Errorf("unknown label %d", depth)
	}
	target := ts.frames[len(ts.frames)-1-int(depth)]
	return ts.peekPrefix(target.branchTarget())
}

func applySignature(ts *typeStack, ft *wasm.FunctionType) error {
	if err := ts.popPrefix(toStackTypes(ft.Params)); err != nil {
		return err
	}
	ts.pushN(toStackTypes(ft.Results))
	return nil
}

func localOf(locals []StackType, idx uint32) (StackType, error) {
	if idx >= uint32(len(locals)) {
		return 0, fmt.Errorf("unknown local %d", idx)
	}
	return locals[idx], nil
}

func sameTypes(a, b []StackType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
