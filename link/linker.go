package link

import (
	"fmt"

	"github.com/wasmcore/wasmcore/ast"
	"github.com/wasmcore/wasmcore/module"
	"github.com/wasmcore/wasmcore/wasm"
)

// Link resolves m's imports against reg, allocates its memories/tables/
// globals, runs active data and element initialisers, and returns a
// runnable Instance. It never executes function bodies: the module's
// start function, if any, is left uninvoked for the caller (see
// Instantiate) so this package carries no dependency on an interpreter.
func Link(m *module.Module, reg *Registry) (*Instance, error) {
	log := reg.log()
	inst := &Instance{
		Mod:          m,
		Exports:      map[string]ExportValue{},
		PassiveElems: map[uint32][]Value{},
		PassiveData:  map[uint32][]byte{},
		DroppedElems: map[uint32]bool{},
		DroppedData:  map[uint32]bool{},
	}

	if err := resolveFuncs(m, reg, inst); err != nil {
		return nil, err
	}
	if err := resolveTables(m, reg, inst); err != nil {
		return nil, err
	}
	if err := resolveMemories(m, reg, inst); err != nil {
		return nil, err
	}
	if err := resolveGlobals(m, reg, inst); err != nil {
		return nil, err
	}
	log.Debugf("resolved imports: %d funcs, %d tables, %d memories, %d globals",
		len(m.Funcs.Entries), len(m.Tables.Entries), len(m.Memories.Entries), len(m.Globals.Entries))

	allocateLocalTables(m, inst)
	allocateLocalMemories(m, inst)
	if err := initLocalGlobals(m, inst); err != nil {
		return nil, err
	}

	if err := initData(m, inst); err != nil {
		return nil, err
	}
	if err := initElems(m, inst); err != nil {
		return nil, err
	}
	log.Debugf("initialised %d memories, %d tables", len(inst.Memories), len(inst.Tables))

	buildExports(m, inst)

	return inst, nil
}

// Instantiate wraps Link with start-function invocation. runStart is
// supplied by the caller (interp) so that link itself never needs to
// execute code.
func Instantiate(m *module.Module, reg *Registry, runStart func(*Instance, uint32) error) (*Instance, error) {
	inst, err := Link(m, reg)
	if err != nil {
		return nil, err
	}
	if m.Start != nil {
		reg.log().Debugf("invoking start function #%d", *m.Start)
		if err := runStart(inst, *m.Start); err != nil {
			return nil, err
		}
	}
	return inst, nil
}

func resolveFuncs(m *module.Module, reg *Registry, inst *Instance) error {
	for _, e := range m.Funcs.Entries {
		if !e.Imported {
			inst.Funcs = append(inst.Funcs, &FuncInstance{
				Type:   &m.Types.Entries[e.Decl.TypeIndex].Decl,
				Local:  true,
				Locals: e.Decl.Locals,
				Body:   e.Decl.Body,
			})
			continue
		}
		ext, ok := reg.lookup(e.Module, e.Item)
		if !ok {
			return fmt.Errorf("unknown import: %s.%s", e.Module, e.Item)
		}
		if ext.Kind != wasm.ExternKindFunc {
			return fmt.Errorf("incompatible import type: %s.%s is not a function", e.Module, e.Item)
		}
		want := &m.Types.Entries[e.Decl.TypeIndex].Decl
		if !sameFuncType(want, ext.Func.Type) {
			return fmt.Errorf("incompatible import type: %s.%s", e.Module, e.Item)
		}
		inst.Funcs = append(inst.Funcs, ext.Func)
	}
	return nil
}

func resolveTables(m *module.Module, reg *Registry, inst *Instance) error {
	for _, e := range m.Tables.Entries {
		if !e.Imported {
			inst.Tables = append(inst.Tables, nil) // allocated below
			continue
		}
		ext, ok := reg.lookup(e.Module, e.Item)
		if !ok {
			return fmt.Errorf("unknown import: %s.%s", e.Module, e.Item)
		}
		if ext.Kind != wasm.ExternKindTable {
			return fmt.Errorf("incompatible import type: %s.%s is not a table", e.Module, e.Item)
		}
		if ext.Table.ElemType != e.Decl.ElemType || !limitsCompatible(e.Decl.Limits, ext.Table.Max) {
			return fmt.Errorf("incompatible import type: %s.%s", e.Module, e.Item)
		}
		inst.Tables = append(inst.Tables, ext.Table)
	}
	return nil
}

func resolveMemories(m *module.Module, reg *Registry, inst *Instance) error {
	for _, e := range m.Memories.Entries {
		if !e.Imported {
			inst.Memories = append(inst.Memories, nil) // allocated below
			continue
		}
		ext, ok := reg.lookup(e.Module, e.Item)
		if !ok {
			return fmt.Errorf("unknown import: %s.%s", e.Module, e.Item)
		}
		if ext.Kind != wasm.ExternKindMemory {
			return fmt.Errorf("incompatible import type: %s.%s is not a memory", e.Module, e.Item)
		}
		if ext.Memory.Pages() < e.Decl.Limits.Min || !limitsCompatible(e.Decl.Limits, ext.Memory.Max) {
			return fmt.Errorf("incompatible import type: %s.%s", e.Module, e.Item)
		}
		inst.Memories = append(inst.Memories, ext.Memory)
	}
	return nil
}

func resolveGlobals(m *module.Module, reg *Registry, inst *Instance) error {
	for _, e := range m.Globals.Entries {
		if !e.Imported {
			inst.Globals = append(inst.Globals, nil) // initialised below
			continue
		}
		ext, ok := reg.lookup(e.Module, e.Item)
		if !ok {
			return fmt.Errorf("unknown import: %s.%s", e.Module, e.Item)
		}
		if ext.Kind != wasm.ExternKindGlobal {
			return fmt.Errorf("incompatible import type: %s.%s is not a global", e.Module, e.Item)
		}
		if ext.Global.Type.ValType != e.Decl.Type.ValType || ext.Global.Type.Mutable != e.Decl.Type.Mutable {
			return fmt.Errorf("incompatible import type: %s.%s", e.Module, e.Item)
		}
		inst.Globals = append(inst.Globals, ext.Global)
	}
	return nil
}

func limitsCompatible(want wasm.Limits, haveMax *uint32) bool {
	if want.Max == nil {
		return true
	}
	return haveMax != nil && *haveMax <= *want.Max
}

func sameFuncType(a, b *wasm.FunctionType) bool {
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

func allocateLocalTables(m *module.Module, inst *Instance) {
	for i, e := range m.Tables.Entries {
		if e.Imported {
			continue
		}
		elems := make([]Value, e.Decl.Limits.Min)
		for j := range elems {
			elems[j] = NullRef(e.Decl.ElemType)
		}
		inst.Tables[i] = &TableInstance{ElemType: e.Decl.ElemType, Elems: elems, Max: e.Decl.Limits.Max}
	}
}

func allocateLocalMemories(m *module.Module, inst *Instance) {
	for i, e := range m.Memories.Entries {
		if e.Imported {
			continue
		}
		inst.Memories[i] = &MemoryInstance{
			Data: make([]byte, e.Decl.Limits.Min*wasm.PageSize),
			Max:  e.Decl.Limits.Max,
		}
	}
}

func initLocalGlobals(m *module.Module, inst *Instance) error {
	for i, e := range m.Globals.Entries {
		if e.Imported {
			continue
		}
		v, err := evalConstExpr(inst, e.Decl.Init)
		if err != nil {
			return err
		}
		inst.Globals[i] = &GlobalInstance{Type: e.Decl.Type, Value: v}
	}
	return nil
}

func initData(m *module.Module, inst *Instance) error {
	for i, d := range m.Datas {
		if d.Mode != ast.DataModeActive {
			inst.PassiveData[uint32(i)] = d.Bytes
			continue
		}
		off, err := evalConstExpr(inst, d.Offset)
		if err != nil {
			return err
		}
		mem := inst.Memories[d.MemRef]
		end := int64(off.I32) + int64(len(d.Bytes))
		if off.I32 < 0 || end > int64(len(mem.Data)) {
			return wasm.NewTrap(wasm.TrapOutOfBoundsMemory)
		}
		copy(mem.Data[off.I32:], d.Bytes)
	}
	return nil
}

func initElems(m *module.Module, inst *Instance) error {
	for i, e := range m.Elems {
		vals := make([]Value, len(e.Init))
		for j, init := range e.Init {
			v, err := evalConstExpr(inst, init)
			if err != nil {
				return err
			}
			vals[j] = v
		}
		if e.Mode == ast.ElemModeDeclarative {
			// Declarative segments only feed the declared-reference
			// pre-pass at validation time; at instantiation they behave
			// as if already dropped, so table.init against them traps
			// out of bounds unless its length is zero.
			inst.DroppedElems[uint32(i)] = true
			continue
		}
		if e.Mode == ast.ElemModePassive {
			inst.PassiveElems[uint32(i)] = vals
			continue
		}
		off, err := evalConstExpr(inst, e.Offset)
		if err != nil {
			return err
		}
		tbl := inst.Tables[e.TableRef]
		end := int64(off.I32) + int64(len(vals))
		if off.I32 < 0 || end > int64(len(tbl.Elems)) {
			return wasm.NewTrap(wasm.TrapOutOfBoundsTable)
		}
		copy(tbl.Elems[off.I32:], vals)
	}
	return nil
}

func buildExports(m *module.Module, inst *Instance) {
	for _, ex := range m.Exports {
		switch ex.Kind {
		case wasm.ExternKindFunc:
			inst.Exports[ex.Name] = ExportValue{Kind: ex.Kind, Func: inst.Funcs[ex.Ref.Index]}
		case wasm.ExternKindTable:
			inst.Exports[ex.Name] = ExportValue{Kind: ex.Kind, Table: inst.Tables[ex.Ref.Index]}
		case wasm.ExternKindMemory:
			inst.Exports[ex.Name] = ExportValue{Kind: ex.Kind, Memory: inst.Memories[ex.Ref.Index]}
		case wasm.ExternKindGlobal:
			inst.Exports[ex.Name] = ExportValue{Kind: ex.Kind, Global: inst.Globals[ex.Ref.Index]}
		}
	}
}

// evalConstExpr evaluates one of the restricted constant-expression
// shapes rewrite.rewriteConstExpr already validated: a single numeric
// const, ref.null, ref.func, or global.get of an imported immutable
// global, terminated by end.
func evalConstExpr(inst *Instance, expr []ast.Instr) (Value, error) {
	for _, in := range expr {
		switch in.Op {
		case wasm.OpcodeI32Const:
			return I32Value(in.I32), nil
		case wasm.OpcodeI64Const:
			return I64Value(in.I64), nil
		case wasm.OpcodeF32Const:
			return F32Value(in.F32), nil
		case wasm.OpcodeF64Const:
			return F64Value(in.F64), nil
		case wasm.OpcodeRefNull:
			return NullRef(wasm.ValueType(in.I32)), nil
		case wasm.OpcodeRefFunc:
			return FuncRefValue(in.Ref.Index), nil
		case wasm.OpcodeGlobalGet:
			return inst.Globals[in.Ref.Index].Value, nil
		case wasm.OpcodeEnd:
			// terminator, no value
		default:
			return Value{}, fmt.Errorf("unsupported constant expression opcode")
		}
	}
	return Value{}, fmt.Errorf("empty constant expression")
}
