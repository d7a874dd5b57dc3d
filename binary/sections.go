package binary

import (
	"bytes"
	"fmt"
	"io"

	"github.com/wasmcore/wasmcore/ast"
	"github.com/wasmcore/wasmcore/leb128"
	"github.com/wasmcore/wasmcore/wasm"
)

func (d *decoderState) readTypeSection(r *bytes.Reader) error {
	n, err := readVectorLen(r)
	if err != nil {
		return err
	}
	d.mod.Types = make([]ast.RawType, n)
	for i := range d.mod.Types {
		ft, err := readFunctionType(r)
		if err != nil {
			return fmt.Errorf("%d-th function type: %w", i, err)
		}
		d.mod.Types[i] = ast.RawType{Type: *ft}
	}
	return nil
}

func readFunctionType(r *bytes.Reader) (*wasm.FunctionType, error) {
	b, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("read leading byte: %w", err)
	}
	if b != 0x60 {
		return nil, fmt.Errorf("%w: %s != 0x60", ErrMalformedMagic, hexByte(b))
	}

	params, err := readValueTypeVector(r)
	if err != nil {
		return nil, fmt.Errorf("read params: %w", err)
	}
	results, err := readValueTypeVector(r)
	if err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	if len(results) > 1 {
		return nil, ErrMultiValueNotSupported
	}
	return &wasm.FunctionType{Params: params, Results: results}, nil
}

func readValueTypeVector(r *bytes.Reader) ([]wasm.ValueType, error) {
	n, err := readVectorLen(r)
	if err != nil {
		return nil, err
	}
	out := make([]wasm.ValueType, n)
	for i := range out {
		vt, err := readValueType(r)
		if err != nil {
			return nil, fmt.Errorf("%d-th value type: %w", i, err)
		}
		out[i] = vt
	}
	return out, nil
}

func readValueType(r *bytes.Reader) (wasm.ValueType, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, fmt.Errorf("read value type: %w", err)
	}
	switch wasm.ValueType(b) {
	case wasm.ValueTypeI32, wasm.ValueTypeI64, wasm.ValueTypeF32, wasm.ValueTypeF64,
		wasm.ValueTypeFuncRef, wasm.ValueTypeExtern:
		return wasm.ValueType(b), nil
	}
	return 0, &IllegalOpcodeError{Byte: b}
}

func readLimits(r *bytes.Reader) (wasm.Limits, error) {
	b, err := r.ReadByte()
	if err != nil {
		return wasm.Limits{}, fmt.Errorf("read limits flag: %w", err)
	}
	var lim wasm.Limits
	lim.Min, _, err = leb128.DecodeUint32(r)
	if err != nil {
		return wasm.Limits{}, fmt.Errorf("read limits min: %w", err)
	}
	switch b {
	case 0x00:
	case 0x01:
		max, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return wasm.Limits{}, fmt.Errorf("read limits max: %w", err)
		}
		lim.Max = &max
	default:
		return wasm.Limits{}, fmt.Errorf("%w for limits: %s != 0x00 or 0x01", ErrMalformedMagic, hexByte(b))
	}
	return lim, nil
}

func readTableType(r *bytes.Reader) (wasm.TableType, error) {
	elem, err := readValueType(r)
	if err != nil {
		return wasm.TableType{}, fmt.Errorf("read elem type: %w", err)
	}
	if !elem.IsReference() {
		return wasm.TableType{}, fmt.Errorf("table elem type must be a reference type, got %s", elem)
	}
	lim, err := readLimits(r)
	if err != nil {
		return wasm.TableType{}, fmt.Errorf("read limits: %w", err)
	}
	return wasm.TableType{ElemType: elem, Limits: lim}, nil
}

func readMemoryType(r *bytes.Reader) (wasm.MemoryType, error) {
	lim, err := readLimits(r)
	if err != nil {
		return wasm.MemoryType{}, err
	}
	if lim.Min > wasm.MaxMemoryPages {
		return wasm.MemoryType{}, fmt.Errorf("memory min must be at most %d pages", wasm.MaxMemoryPages)
	}
	if lim.Max != nil {
		if *lim.Max < lim.Min {
			return wasm.MemoryType{}, fmt.Errorf("memory size minimum must not be greater than maximum")
		}
		if *lim.Max > wasm.MaxMemoryPages {
			return wasm.MemoryType{}, fmt.Errorf("memory max must be at most %d pages", wasm.MaxMemoryPages)
		}
	}
	return wasm.MemoryType{Limits: lim}, nil
}

func readGlobalType(r *bytes.Reader) (wasm.GlobalType, error) {
	vt, err := readValueType(r)
	if err != nil {
		return wasm.GlobalType{}, fmt.Errorf("read value type: %w", err)
	}
	b, err := r.ReadByte()
	if err != nil {
		return wasm.GlobalType{}, fmt.Errorf("read mutability: %w", err)
	}
	var mut bool
	switch b {
	case 0x00:
	case 0x01:
		mut = true
	default:
		return wasm.GlobalType{}, fmt.Errorf("%w for mutability: %s != 0x00 or 0x01", ErrMalformedMagic, hexByte(b))
	}
	return wasm.GlobalType{ValType: vt, Mutable: mut}, nil
}

func (d *decoderState) readImportSection(r *bytes.Reader) error {
	n, err := readVectorLen(r)
	if err != nil {
		return err
	}
	d.mod.Imports = make([]ast.RawImport, n)
	for i := range d.mod.Imports {
		mod, err := readName(r)
		if err != nil {
			return fmt.Errorf("%d-th import module name: %w", i, err)
		}
		name, err := readName(r)
		if err != nil {
			return fmt.Errorf("%d-th import name: %w", i, err)
		}
		kindByte, err := r.ReadByte()
		if err != nil {
			return fmt.Errorf("%d-th import kind: %w", i, err)
		}
		desc := ast.ImportDesc{Kind: wasm.ExternKind(kindByte)}
		switch desc.Kind {
		case wasm.ExternKindFunc:
			desc.TypeRef, err = readIndexRef(r)
		case wasm.ExternKindTable:
			desc.Table, err = readTableType(r)
		case wasm.ExternKindMemory:
			desc.Memory, err = readMemoryType(r)
		case wasm.ExternKindGlobal:
			desc.Global, err = readGlobalType(r)
		default:
			return fmt.Errorf("%w: invalid import kind %s", ErrMalformedMagic, hexByte(kindByte))
		}
		if err != nil {
			return fmt.Errorf("%d-th import desc: %w", i, err)
		}
		d.mod.Imports[i] = ast.RawImport{Module: mod, Name: name, Desc: desc}
	}
	return nil
}

func (d *decoderState) readFunctionSection(r *bytes.Reader) error {
	n, err := readVectorLen(r)
	if err != nil {
		return err
	}
	d.funcTypeRefs = make([]ast.Ref, n)
	d.mod.Funcs = make([]ast.RawFunc, n)
	for i := range d.funcTypeRefs {
		d.funcTypeRefs[i], err = readIndexRef(r)
		if err != nil {
			return fmt.Errorf("%d-th typeidx: %w", i, err)
		}
	}
	return nil
}

func (d *decoderState) readTableSection(r *bytes.Reader) error {
	n, err := readVectorLen(r)
	if err != nil {
		return err
	}
	d.mod.Tables = make([]ast.RawTable, n)
	for i := range d.mod.Tables {
		tt, err := readTableType(r)
		if err != nil {
			return fmt.Errorf("%d-th table type: %w", i, err)
		}
		d.mod.Tables[i] = ast.RawTable{Type: tt}
	}
	return nil
}

func (d *decoderState) readMemorySection(r *bytes.Reader) error {
	n, err := readVectorLen(r)
	if err != nil {
		return err
	}
	d.mod.Memories = make([]ast.RawMemory, n)
	for i := range d.mod.Memories {
		mt, err := readMemoryType(r)
		if err != nil {
			return fmt.Errorf("%d-th memory type: %w", i, err)
		}
		d.mod.Memories[i] = ast.RawMemory{Type: mt}
	}
	return nil
}

func (d *decoderState) readGlobalSection(r *bytes.Reader) error {
	n, err := readVectorLen(r)
	if err != nil {
		return err
	}
	d.mod.Globals = make([]ast.RawGlobal, n)
	for i := range d.mod.Globals {
		gt, err := readGlobalType(r)
		if err != nil {
			return fmt.Errorf("%d-th global type: %w", i, err)
		}
		init, err := readExpr(r)
		if err != nil {
			return fmt.Errorf("%d-th global init expr: %w", i, err)
		}
		d.mod.Globals[i] = ast.RawGlobal{Type: gt, Init: init}
	}
	return nil
}

func (d *decoderState) readExportSection(r *bytes.Reader) error {
	n, err := readVectorLen(r)
	if err != nil {
		return err
	}
	d.mod.Exports = make([]ast.RawExport, n)
	for i := range d.mod.Exports {
		name, err := readName(r)
		if err != nil {
			return fmt.Errorf("%d-th export name: %w", i, err)
		}
		kindByte, err := r.ReadByte()
		if err != nil {
			return fmt.Errorf("%d-th export kind: %w", i, err)
		}
		ref, err := readIndexRef(r)
		if err != nil {
			return fmt.Errorf("%d-th export index: %w", i, err)
		}
		d.mod.Exports[i] = ast.RawExport{Name: name, Kind: wasm.ExternKind(kindByte), Ref: ref}
	}
	return nil
}

func (d *decoderState) readStartSection(r *bytes.Reader) error {
	ref, err := readIndexRef(r)
	if err != nil {
		return fmt.Errorf("read start function index: %w", err)
	}
	d.mod.Start = &ref
	return nil
}

func (d *decoderState) readElementSection(r *bytes.Reader) error {
	n, err := readVectorLen(r)
	if err != nil {
		return err
	}
	d.mod.Elems = make([]ast.RawElem, n)
	for i := range d.mod.Elems {
		flags, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return fmt.Errorf("%d-th element flags: %w", i, err)
		}
		elem := ast.RawElem{Type: wasm.ValueTypeFuncRef}
		switch flags {
		case 0:
			elem.Mode = ast.ElemModeActive
			elem.TableRef = ast.ByIndex(0)
			if elem.Offset, err = readExpr(r); err != nil {
				return fmt.Errorf("%d-th element offset: %w", i, err)
			}
			if elem.Init, err = readFuncIndexInits(r); err != nil {
				return fmt.Errorf("%d-th element init: %w", i, err)
			}
		case 1:
			elem.Mode = ast.ElemModePassive
			if _, err := r.ReadByte(); err != nil { // elemkind, always 0x00 (funcref)
				return fmt.Errorf("%d-th element kind: %w", i, err)
			}
			if elem.Init, err = readFuncIndexInits(r); err != nil {
				return fmt.Errorf("%d-th element init: %w", i, err)
			}
		case 2:
			elem.Mode = ast.ElemModeActive
			if elem.TableRef, err = readIndexRef(r); err != nil {
				return fmt.Errorf("%d-th element table: %w", i, err)
			}
			if elem.Offset, err = readExpr(r); err != nil {
				return fmt.Errorf("%d-th element offset: %w", i, err)
			}
			if _, err := r.ReadByte(); err != nil {
				return fmt.Errorf("%d-th element kind: %w", i, err)
			}
			if elem.Init, err = readFuncIndexInits(r); err != nil {
				return fmt.Errorf("%d-th element init: %w", i, err)
			}
		case 3:
			elem.Mode = ast.ElemModeDeclarative
			if _, err := r.ReadByte(); err != nil {
				return fmt.Errorf("%d-th element kind: %w", i, err)
			}
			if elem.Init, err = readFuncIndexInits(r); err != nil {
				return fmt.Errorf("%d-th element init: %w", i, err)
			}
		case 4, 5, 6, 7:
			// Expression-form (funcref/externref with ref.func/ref.null init
			// exprs rather than bare indices). Handled uniformly via
			// readExprInits; flags bit 2 marks expression form, bits 0-1
			// mirror the active/passive/declarative/table-indexed cases above.
			if flags == 4 || flags == 6 {
				elem.Mode = ast.ElemModeActive
				if flags == 6 {
					if elem.TableRef, err = readIndexRef(r); err != nil {
						return fmt.Errorf("%d-th element table: %w", i, err)
					}
				} else {
					elem.TableRef = ast.ByIndex(0)
				}
				if elem.Offset, err = readExpr(r); err != nil {
					return fmt.Errorf("%d-th element offset: %w", i, err)
				}
			} else if flags == 5 {
				elem.Mode = ast.ElemModePassive
			} else {
				elem.Mode = ast.ElemModeDeclarative
			}
			if flags != 4 {
				if elem.Type, err = readValueType(r); err != nil {
					return fmt.Errorf("%d-th element reftype: %w", i, err)
				}
			}
			if elem.Init, err = readExprInits(r); err != nil {
				return fmt.Errorf("%d-th element init exprs: %w", i, err)
			}
		default:
			return fmt.Errorf("%w: invalid element segment flags %d", ErrMalformedMagic, flags)
		}
		d.mod.Elems[i] = elem
	}
	return nil
}

// readFuncIndexInits reads a vector of bare function indices, each
// desugared into a one-instruction `ref.func i` const-expression so every
// element segment's Init is uniformly []ast.Instr.
func readFuncIndexInits(r *bytes.Reader) ([][]ast.Instr, error) {
	n, err := readVectorLen(r)
	if err != nil {
		return nil, err
	}
	out := make([][]ast.Instr, n)
	for i := range out {
		ref, err := readIndexRef(r)
		if err != nil {
			return nil, fmt.Errorf("%d-th func index: %w", i, err)
		}
		out[i] = []ast.Instr{{Op: wasm.OpcodeRefFunc, Ref: ref}, {Op: wasm.OpcodeEnd}}
	}
	return out, nil
}

func readExprInits(r *bytes.Reader) ([][]ast.Instr, error) {
	n, err := readVectorLen(r)
	if err != nil {
		return nil, err
	}
	out := make([][]ast.Instr, n)
	for i := range out {
		expr, err := readExpr(r)
		if err != nil {
			return nil, fmt.Errorf("%d-th init expr: %w", i, err)
		}
		out[i] = expr
	}
	return out, nil
}

func (d *decoderState) readCodeSection(r *bytes.Reader) error {
	n, err := readVectorLen(r)
	if err != nil {
		return err
	}
	if int(n) != len(d.mod.Funcs) {
		return fmt.Errorf("function and code section have inconsistent lengths")
	}
	for i := range d.mod.Funcs {
		size, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return fmt.Errorf("%d-th code entry size: %w", i, err)
		}
		body := make([]byte, size)
		if _, err := io.ReadFull(r, body); err != nil {
			return fmt.Errorf("%d-th code entry body: %w", i, err)
		}
		br := bytes.NewReader(body)

		locals, err := readLocalDecls(br)
		if err != nil {
			return fmt.Errorf("%d-th function locals: %w", i, err)
		}
		instrs, err := readExpr(br)
		if err != nil {
			return fmt.Errorf("%d-th function body: %w", i, err)
		}
		if br.Len() != 0 {
			return fmt.Errorf("%w: code entry %d has trailing bytes", ErrSectionSizeMismatch, i)
		}
		d.mod.Funcs[i].Locals = locals
		d.mod.Funcs[i].Body = instrs
	}
	return nil
}

func readLocalDecls(r *bytes.Reader) ([]ast.Local, error) {
	n, err := readVectorLen(r)
	if err != nil {
		return nil, err
	}
	var locals []ast.Local
	for i := uint32(0); i < n; i++ {
		count, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, fmt.Errorf("%d-th local decl count: %w", i, err)
		}
		vt, err := readValueType(r)
		if err != nil {
			return nil, fmt.Errorf("%d-th local decl type: %w", i, err)
		}
		for j := uint32(0); j < count; j++ {
			locals = append(locals, ast.Local{Type: vt})
		}
	}
	return locals, nil
}

func (d *decoderState) readDataSection(r *bytes.Reader) error {
	n, err := readVectorLen(r)
	if err != nil {
		return err
	}
	d.mod.Datas = make([]ast.RawData, n)
	for i := range d.mod.Datas {
		flags, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return fmt.Errorf("%d-th data flags: %w", i, err)
		}
		data := ast.RawData{}
		switch flags {
		case 0:
			data.Mode = ast.DataModeActive
			data.MemRef = ast.ByIndex(0)
			if data.Offset, err = readExpr(r); err != nil {
				return fmt.Errorf("%d-th data offset: %w", i, err)
			}
		case 1:
			data.Mode = ast.DataModePassive
		case 2:
			data.Mode = ast.DataModeActive
			if data.MemRef, err = readIndexRef(r); err != nil {
				return fmt.Errorf("%d-th data memidx: %w", i, err)
			}
			if data.Offset, err = readExpr(r); err != nil {
				return fmt.Errorf("%d-th data offset: %w", i, err)
			}
		default:
			return fmt.Errorf("%w: invalid data segment flags %d", ErrMalformedMagic, flags)
		}
		bn, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return fmt.Errorf("%d-th data length: %w", i, err)
		}
		buf := make([]byte, bn)
		if _, err := io.ReadFull(r, buf); err != nil {
			return fmt.Errorf("%d-th data bytes: %w", i, err)
		}
		data.Bytes = buf
		d.mod.Datas[i] = data
	}
	return nil
}
