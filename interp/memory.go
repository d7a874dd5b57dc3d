package interp

import (
	"fmt"

	"github.com/wasmcore/wasmcore/ast"
	"github.com/wasmcore/wasmcore/wasm"
)

func isMemoryOp(op wasm.Opcode) bool {
	return op >= wasm.OpcodeI32Load && op <= wasm.OpcodeMemoryGrow
}

// effectiveAddr computes base+memarg.offset and traps if it does not
// fit in 33 bits.
func effectiveAddr(m *Machine, in *ast.Instr) (uint64, error) {
	iv := m.pop()
	base, ok := m.Alg.AsU32(iv)
	if !ok {
		return 0, fmt.Errorf("memory access requires a concrete address")
	}
	addr := uint64(base) + uint64(in.Memarg.Offset)
	if addr > (1<<33)-1 {
		return 0, wasm.NewTrap(wasm.TrapOutOfBoundsMemory)
	}
	return addr, nil
}

func (m *Machine) mem0() []byte { return m.Inst.Memories[0].Data }

func boundsCheck(data []byte, addr uint64, width int) error {
	if addr+uint64(width) > uint64(len(data)) {
		return wasm.NewTrap(wasm.TrapOutOfBoundsMemory)
	}
	return nil
}

func (m *Machine) opMemory(fr *frame, in *ast.Instr) error {
	if in.Op == wasm.OpcodeMemorySize {
		m.push(m.Alg.ConstI32(int32(m.Inst.Memories[0].Pages())))
		fr.pc++
		return nil
	}
	if in.Op == wasm.OpcodeMemoryGrow {
		delta, ok := m.Alg.AsU32(m.pop())
		if !ok {
			return fmt.Errorf("memory.grow requires a concrete delta")
		}
		mem := m.Inst.Memories[0]
		old := mem.Pages()
		next := old + delta
		if mem.Max != nil && next > *mem.Max {
			m.push(m.Alg.ConstI32(-1))
		} else if next > wasm.MaxMemoryPages {
			m.push(m.Alg.ConstI32(-1))
		} else {
			mem.Data = append(mem.Data, make([]byte, delta*wasm.PageSize)...)
			m.push(m.Alg.ConstI32(int32(old)))
		}
		fr.pc++
		return nil
	}

	data := m.mem0()
	switch in.Op {
	case wasm.OpcodeI32Load, wasm.OpcodeF32Load:
		addr, err := effectiveAddr(m, in)
		if err != nil {
			return err
		}
		if err := boundsCheck(data, addr, 4); err != nil {
			return err
		}
		bits := uint64(le32(data[addr:]))
		t := wasm.ValueTypeI32
		if in.Op == wasm.OpcodeF32Load {
			t = wasm.ValueTypeF32
		}
		m.push(m.Alg.FromBits(t, bits))
	case wasm.OpcodeI64Load, wasm.OpcodeF64Load:
		addr, err := effectiveAddr(m, in)
		if err != nil {
			return err
		}
		if err := boundsCheck(data, addr, 8); err != nil {
			return err
		}
		bits := le64(data[addr:])
		t := wasm.ValueTypeI64
		if in.Op == wasm.OpcodeF64Load {
			t = wasm.ValueTypeF64
		}
		m.push(m.Alg.FromBits(t, bits))
	case wasm.OpcodeI32Load8S, wasm.OpcodeI32Load8U, wasm.OpcodeI64Load8S, wasm.OpcodeI64Load8U:
		addr, err := effectiveAddr(m, in)
		if err != nil {
			return err
		}
		if err := boundsCheck(data, addr, 1); err != nil {
			return err
		}
		m.pushExtended(in.Op, uint64(data[addr]), 8)
	case wasm.OpcodeI32Load16S, wasm.OpcodeI32Load16U, wasm.OpcodeI64Load16S, wasm.OpcodeI64Load16U:
		addr, err := effectiveAddr(m, in)
		if err != nil {
			return err
		}
		if err := boundsCheck(data, addr, 2); err != nil {
			return err
		}
		m.pushExtended(in.Op, uint64(le16(data[addr:])), 16)
	case wasm.OpcodeI64Load32S, wasm.OpcodeI64Load32U:
		addr, err := effectiveAddr(m, in)
		if err != nil {
			return err
		}
		if err := boundsCheck(data, addr, 4); err != nil {
			return err
		}
		m.pushExtended(in.Op, uint64(le32(data[addr:])), 32)

	case wasm.OpcodeI32Store, wasm.OpcodeF32Store:
		v := m.pop()
		addr, err := effectiveAddr(m, in)
		if err != nil {
			return err
		}
		if err := boundsCheck(data, addr, 4); err != nil {
			return err
		}
		bits, ok := m.Alg.Bits(v)
		if !ok {
			return fmt.Errorf("store requires a concrete value")
		}
		putLe32(data[addr:], uint32(bits))
	case wasm.OpcodeI64Store, wasm.OpcodeF64Store:
		v := m.pop()
		addr, err := effectiveAddr(m, in)
		if err != nil {
			return err
		}
		if err := boundsCheck(data, addr, 8); err != nil {
			return err
		}
		bits, ok := m.Alg.Bits(v)
		if !ok {
			return fmt.Errorf("store requires a concrete value")
		}
		putLe64(data[addr:], bits)
	case wasm.OpcodeI32Store8, wasm.OpcodeI64Store8:
		v := m.pop()
		addr, err := effectiveAddr(m, in)
		if err != nil {
			return err
		}
		if err := boundsCheck(data, addr, 1); err != nil {
			return err
		}
		bits, ok := m.Alg.Bits(v)
		if !ok {
			return fmt.Errorf("store requires a concrete value")
		}
		data[addr] = byte(bits)
	case wasm.OpcodeI32Store16, wasm.OpcodeI64Store16:
		v := m.pop()
		addr, err := effectiveAddr(m, in)
		if err != nil {
			return err
		}
		if err := boundsCheck(data, addr, 2); err != nil {
			return err
		}
		bits, ok := m.Alg.Bits(v)
		if !ok {
			return fmt.Errorf("store requires a concrete value")
		}
		putLe16(data[addr:], uint16(bits))
	case wasm.OpcodeI64Store32:
		v := m.pop()
		addr, err := effectiveAddr(m, in)
		if err != nil {
			return err
		}
		if err := boundsCheck(data, addr, 4); err != nil {
			return err
		}
		bits, ok := m.Alg.Bits(v)
		if !ok {
			return fmt.Errorf("store requires a concrete value")
		}
		putLe32(data[addr:], uint32(bits))
	default:
		return fmt.Errorf("unhandled memory opcode %#x", in.Op)
	}
	fr.pc++
	return nil
}

// pushExtended pushes a loaded narrow integer sign- or zero-extended to
// its declared result width (i32 for the *8/*16 forms, i64 for the
// 8/16/32 i64 forms).
func (m *Machine) pushExtended(op wasm.Opcode, raw uint64, width int) {
	signed := isSignedLoad(op)
	resultI64 := isI64Load(op)
	var v int64
	switch width {
	case 8:
		if signed {
			v = int64(int8(raw))
		} else {
			v = int64(uint8(raw))
		}
	case 16:
		if signed {
			v = int64(int16(raw))
		} else {
			v = int64(uint16(raw))
		}
	case 32:
		if signed {
			v = int64(int32(raw))
		} else {
			v = int64(uint32(raw))
		}
	}
	if resultI64 {
		m.push(m.Alg.ConstI64(v))
	} else {
		m.push(m.Alg.ConstI32(int32(v)))
	}
}

func isSignedLoad(op wasm.Opcode) bool {
	switch op {
	case wasm.OpcodeI32Load8S, wasm.OpcodeI32Load16S, wasm.OpcodeI64Load8S, wasm.OpcodeI64Load16S, wasm.OpcodeI64Load32S:
		return true
	}
	return false
}

func isI64Load(op wasm.Opcode) bool {
	switch op {
	case wasm.OpcodeI64Load8S, wasm.OpcodeI64Load8U, wasm.OpcodeI64Load16S, wasm.OpcodeI64Load16U, wasm.OpcodeI64Load32S, wasm.OpcodeI64Load32U:
		return true
	}
	return false
}

func le16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
func le64(b []byte) uint64 {
	return uint64(le32(b)) | uint64(le32(b[4:]))<<32
}
func putLe16(b []byte, v uint16) { b[0] = byte(v); b[1] = byte(v >> 8) }
func putLe32(b []byte, v uint32) {
	b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
}
func putLe64(b []byte, v uint64) {
	putLe32(b, uint32(v))
	putLe32(b[4:], uint32(v>>32))
}

// opMisc handles the 0xFC-prefixed bulk-memory, bulk-table and
// saturating-truncation instructions.
func (m *Machine) opMisc(fr *frame, in *ast.Instr) error {
	// Advanced up front: several cases below return their helper's
	// result directly.
	fr.pc++
	switch in.Misc {
	case wasm.MiscOpcodeI32TruncSatF32S, wasm.MiscOpcodeI32TruncSatF32U, wasm.MiscOpcodeI32TruncSatF64S, wasm.MiscOpcodeI32TruncSatF64U,
		wasm.MiscOpcodeI64TruncSatF32S, wasm.MiscOpcodeI64TruncSatF32U, wasm.MiscOpcodeI64TruncSatF64S, wasm.MiscOpcodeI64TruncSatF64U:
		v, err := m.Alg.TruncSat(in.Misc, m.pop())
		if err != nil {
			return err
		}
		m.push(v)

	case wasm.MiscOpcodeMemoryInit:
		return m.opMemoryInit(in)
	case wasm.MiscOpcodeDataDrop:
		m.Inst.DroppedData[in.Ref.Index] = true
	case wasm.MiscOpcodeMemoryCopy:
		return m.opMemoryCopy()
	case wasm.MiscOpcodeMemoryFill:
		return m.opMemoryFill()

	case wasm.MiscOpcodeTableInit:
		return m.opTableInit(in)
	case wasm.MiscOpcodeElemDrop:
		m.Inst.DroppedElems[in.Ref.Index] = true
	case wasm.MiscOpcodeTableCopy:
		return m.opTableCopy(in)
	case wasm.MiscOpcodeTableGrow:
		return m.opTableGrow(in)
	case wasm.MiscOpcodeTableSize:
		m.push(m.Alg.ConstI32(int32(len(m.Inst.Tables[in.Ref.Index].Elems))))
	case wasm.MiscOpcodeTableFill:
		return m.opTableFill(in)
	default:
		return fmt.Errorf("unhandled misc opcode %d", in.Misc)
	}
	return nil
}

func (m *Machine) opMemoryInit(in *ast.Instr) error {
	n, ok1 := m.Alg.AsU32(m.pop())
	src, ok2 := m.Alg.AsU32(m.pop())
	dst, ok3 := m.Alg.AsU32(m.pop())
	if !ok1 || !ok2 || !ok3 {
		return fmt.Errorf("memory.init requires concrete operands")
	}
	if m.Inst.DroppedData[in.Ref.Index] {
		if n == 0 {
			return nil
		}
		return wasm.NewTrap(wasm.TrapOutOfBoundsMemory)
	}
	data := m.Inst.PassiveData[in.Ref.Index]
	if uint64(src)+uint64(n) > uint64(len(data)) {
		return wasm.NewTrap(wasm.TrapOutOfBoundsMemory)
	}
	mem := m.mem0()
	if uint64(dst)+uint64(n) > uint64(len(mem)) {
		return wasm.NewTrap(wasm.TrapOutOfBoundsMemory)
	}
	copy(mem[dst:], data[src:src+n])
	return nil
}

func (m *Machine) opMemoryCopy() error {
	n, ok1 := m.Alg.AsU32(m.pop())
	src, ok2 := m.Alg.AsU32(m.pop())
	dst, ok3 := m.Alg.AsU32(m.pop())
	if !ok1 || !ok2 || !ok3 {
		return fmt.Errorf("memory.copy requires concrete operands")
	}
	mem := m.mem0()
	if uint64(src)+uint64(n) > uint64(len(mem)) || uint64(dst)+uint64(n) > uint64(len(mem)) {
		return wasm.NewTrap(wasm.TrapOutOfBoundsMemory)
	}
	copy(mem[dst:dst+n], mem[src:src+n])
	return nil
}

func (m *Machine) opMemoryFill() error {
	n, ok1 := m.Alg.AsU32(m.pop())
	val, ok2 := m.Alg.AsI32(m.pop())
	dst, ok3 := m.Alg.AsU32(m.pop())
	if !ok1 || !ok2 || !ok3 {
		return fmt.Errorf("memory.fill requires concrete operands")
	}
	mem := m.mem0()
	if uint64(dst)+uint64(n) > uint64(len(mem)) {
		return wasm.NewTrap(wasm.TrapOutOfBoundsMemory)
	}
	for i := uint32(0); i < n; i++ {
		mem[dst+i] = byte(val)
	}
	return nil
}
