package interp

import (
	"fmt"

	"github.com/wasmcore/wasmcore/ast"
	"github.com/wasmcore/wasmcore/link"
	"github.com/wasmcore/wasmcore/wasm"
)

// Table elements are stored as link.Value (concrete-only, like globals);
// table.get/table.set cross the FromLink/ToLink boundary the same way
// global.get/global.set does.
func (m *Machine) opTableGet(fr *frame, in *ast.Instr) error {
	idx, ok := m.Alg.AsU32(m.pop())
	if !ok {
		return fmt.Errorf("table.get requires a concrete index")
	}
	tbl := m.Inst.Tables[in.Ref.Index]
	if idx >= uint32(len(tbl.Elems)) {
		return wasm.NewTrap(wasm.TrapOutOfBoundsTable)
	}
	m.push(FromLink(m.Alg, tbl.Elems[idx]))
	fr.pc++
	return nil
}

func (m *Machine) opTableSet(fr *frame, in *ast.Instr) error {
	v := m.pop()
	idx, ok := m.Alg.AsU32(m.pop())
	if !ok {
		return fmt.Errorf("table.set requires a concrete index")
	}
	lv, ok := ToLink(m.Alg, v)
	if !ok {
		return fmt.Errorf("cannot store a non-concrete value into a table")
	}
	tbl := m.Inst.Tables[in.Ref.Index]
	if idx >= uint32(len(tbl.Elems)) {
		return wasm.NewTrap(wasm.TrapOutOfBoundsTable)
	}
	tbl.Elems[idx] = lv
	fr.pc++
	return nil
}

func (m *Machine) opTableInit(in *ast.Instr) error {
	n, ok1 := m.Alg.AsU32(m.pop())
	src, ok2 := m.Alg.AsU32(m.pop())
	dst, ok3 := m.Alg.AsU32(m.pop())
	if !ok1 || !ok2 || !ok3 {
		return fmt.Errorf("table.init requires concrete operands")
	}
	tbl := m.Inst.Tables[in.Ref2.Index]
	if m.Inst.DroppedElems[in.Ref.Index] {
		if n == 0 {
			return nil
		}
		return wasm.NewTrap(wasm.TrapOutOfBoundsTable)
	}
	elems := m.Inst.PassiveElems[in.Ref.Index]
	if uint64(src)+uint64(n) > uint64(len(elems)) {
		return wasm.NewTrap(wasm.TrapOutOfBoundsTable)
	}
	if uint64(dst)+uint64(n) > uint64(len(tbl.Elems)) {
		return wasm.NewTrap(wasm.TrapOutOfBoundsTable)
	}
	copy(tbl.Elems[dst:], elems[src:src+n])
	return nil
}

func (m *Machine) opTableCopy(in *ast.Instr) error {
	n, ok1 := m.Alg.AsU32(m.pop())
	src, ok2 := m.Alg.AsU32(m.pop())
	dst, ok3 := m.Alg.AsU32(m.pop())
	if !ok1 || !ok2 || !ok3 {
		return fmt.Errorf("table.copy requires concrete operands")
	}
	dstTbl := m.Inst.Tables[in.Ref.Index]
	srcTbl := m.Inst.Tables[in.Ref2.Index]
	if uint64(src)+uint64(n) > uint64(len(srcTbl.Elems)) || uint64(dst)+uint64(n) > uint64(len(dstTbl.Elems)) {
		return wasm.NewTrap(wasm.TrapOutOfBoundsTable)
	}
	copy(dstTbl.Elems[dst:dst+n], srcTbl.Elems[src:src+n])
	return nil
}

func (m *Machine) opTableGrow(in *ast.Instr) error {
	n, ok1 := m.Alg.AsU32(m.pop())
	v := m.pop()
	lv, ok2 := ToLink(m.Alg, v)
	if !ok1 || !ok2 {
		return fmt.Errorf("table.grow requires concrete operands")
	}
	tbl := m.Inst.Tables[in.Ref.Index]
	old := uint32(len(tbl.Elems))
	next := old + n
	if tbl.Max != nil && next > *tbl.Max {
		m.push(m.Alg.ConstI32(-1))
		return nil
	}
	grown := make([]link.Value, n)
	for i := range grown {
		grown[i] = lv
	}
	tbl.Elems = append(tbl.Elems, grown...)
	m.push(m.Alg.ConstI32(int32(old)))
	return nil
}

func (m *Machine) opTableFill(in *ast.Instr) error {
	n, ok1 := m.Alg.AsU32(m.pop())
	v := m.pop()
	lv, ok2 := ToLink(m.Alg, v)
	dst, ok3 := m.Alg.AsU32(m.pop())
	if !ok1 || !ok2 || !ok3 {
		return fmt.Errorf("table.fill requires concrete operands")
	}
	tbl := m.Inst.Tables[in.Ref.Index]
	if uint64(dst)+uint64(n) > uint64(len(tbl.Elems)) {
		return wasm.NewTrap(wasm.TrapOutOfBoundsTable)
	}
	for i := uint32(0); i < n; i++ {
		tbl.Elems[dst+i] = lv
	}
	return nil
}
