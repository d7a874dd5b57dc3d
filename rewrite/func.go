package rewrite

import (
	"fmt"

	"github.com/wasmcore/wasmcore/ast"
	"github.com/wasmcore/wasmcore/wasm"
)

// funcScope is the per-function local-index space: parameters (unnamed in
// binary input) followed by declared locals (possibly named).
type funcScope struct {
	numLocals uint32
	names     map[string]uint32
	label     []uint32 // sentinel stack; values are unused, only depth matters
}

func (r *rewriter) rewriteFunc(f *ast.RawFunc) error {
	ft, err := r.funcType(mustIndex(f.TypeRef))
	if err != nil {
		return err
	}
	scope := &funcScope{numLocals: uint32(len(ft.Params) + len(f.Locals)), names: map[string]uint32{}}
	for i, l := range f.Locals {
		if l.ID == "" {
			continue
		}
		idx := uint32(len(ft.Params) + i)
		if _, dup := scope.names[l.ID]; dup {
			return fmt.Errorf("duplicate local %s", l.ID)
		}
		scope.names[l.ID] = idx
	}
	return r.rewriteBody(f.Body, scope)
}

// mustIndex is used where the operand has already passed through Index()
// and is therefore guaranteed to be either resolved or trivially
// resolvable against a still-reachable name table; callers that need
// error propagation use resolve directly.
func mustIndex(ref ast.Ref) uint32 { return ref.Index }

func (r *rewriter) rewriteBody(body []ast.Instr, scope *funcScope) error {
	for i := range body {
		in := &body[i]
		switch in.Op {
		case wasm.OpcodeBlock, wasm.OpcodeLoop, wasm.OpcodeIf:
			if err := r.normalizeBlockType(&in.BlockType); err != nil {
				return err
			}
			scope.label = append(scope.label, 0)
		case wasm.OpcodeEnd:
			if len(scope.label) > 0 {
				scope.label = scope.label[:len(scope.label)-1]
			}

		case wasm.OpcodeBr, wasm.OpcodeBrIf:
			if err := checkLabel(in.Ref.Index, len(scope.label)); err != nil {
				return err
			}
		case wasm.OpcodeBrTable:
			for _, t := range in.Targets {
				if err := checkLabel(t.Index, len(scope.label)); err != nil {
					return err
				}
			}
			if err := checkLabel(in.Default.Index, len(scope.label)); err != nil {
				return err
			}

		case wasm.OpcodeLocalGet, wasm.OpcodeLocalSet, wasm.OpcodeLocalTee:
			idx, err := resolve(in.Ref, scope.names, scope.numLocals)
			if err != nil {
				return fmt.Errorf("unknown local %v: %w", in.Ref, err)
			}
			in.Ref = ast.ByIndex(idx)

		case wasm.OpcodeGlobalGet, wasm.OpcodeGlobalSet:
			idx, err := resolve(in.Ref, r.ix.Names.Globals, r.ix.NumImportedGlobals+uint32(len(r.m.Globals)))
			if err != nil {
				return err
			}
			in.Ref = ast.ByIndex(idx)
			if in.Op == wasm.OpcodeGlobalSet {
				gt, err := r.globalType(idx)
				if err != nil {
					return err
				}
				if !gt.Mutable {
					return fmt.Errorf("global is immutable")
				}
			}

		case wasm.OpcodeCall:
			idx, err := resolve(in.Ref, r.ix.Names.Funcs, r.ix.NumImportedFuncs+uint32(len(r.m.Funcs)))
			if err != nil {
				return err
			}
			in.Ref = ast.ByIndex(idx)

		case wasm.OpcodeCallIndirect:
			ti, err := resolve(in.Ref, r.ix.Names.Types, uint32(len(r.m.Types)))
			if err != nil {
				return err
			}
			in.Ref = ast.ByIndex(ti)
			tbl, err := resolve(in.Ref2, r.ix.Names.Tables, r.numTables())
			if err != nil {
				return err
			}
			in.Ref2 = ast.ByIndex(tbl)

		case wasm.OpcodeTableGet, wasm.OpcodeTableSet, wasm.OpcodeRefFunc:
			bound := r.numTables()
			names := r.ix.Names.Tables
			if in.Op == wasm.OpcodeRefFunc {
				bound, names = r.ix.NumImportedFuncs+uint32(len(r.m.Funcs)), r.ix.Names.Funcs
			}
			idx, err := resolve(in.Ref, names, bound)
			if err != nil {
				return err
			}
			in.Ref = ast.ByIndex(idx)

		case wasm.OpcodeMisc:
			if err := r.rewriteMisc(in); err != nil {
				return err
			}

		default:
			if isLoadStore(in.Op) {
				if err := r.checkMemAccess(in); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func checkLabel(n uint32, depth int) error {
	if int(n) > depth {
		return fmt.Errorf("unknown label %d", n)
	}
	return nil
}

func (r *rewriter) normalizeBlockType(bt *ast.BlockType) error {
	if bt.Kind != ast.BlockTypeIndex {
		return nil
	}
	idx, err := resolve(bt.TypeRef, r.ix.Names.Types, uint32(len(r.m.Types)))
	if err != nil {
		return fmt.Errorf("block type: %w", err)
	}
	bt.TypeRef = ast.ByIndex(idx)
	if bt.InlineOK {
		ft := r.m.Types[idx].Type
		if len(ft.Params) != 0 || len(ft.Results) != 1 || ft.Results[0] != bt.ValType {
			return fmt.Errorf("inline function type")
		}
	}
	return nil
}

func (r *rewriter) rewriteMisc(in *ast.Instr) error {
	switch in.Misc {
	case wasm.MiscOpcodeMemoryInit, wasm.MiscOpcodeDataDrop:
		idx, err := resolve(in.Ref, r.ix.Names.Datas, uint32(len(r.m.Datas)))
		if err != nil {
			return err
		}
		in.Ref = ast.ByIndex(idx)
		if in.Misc == wasm.MiscOpcodeMemoryInit && r.numMemories() == 0 {
			return fmt.Errorf("unknown memory 0")
		}
	case wasm.MiscOpcodeTableInit:
		elemIdx, err := resolve(in.Ref, r.ix.Names.Elems, uint32(len(r.m.Elems)))
		if err != nil {
			return err
		}
		tblIdx, err := resolve(in.Ref2, r.ix.Names.Tables, r.numTables())
		if err != nil {
			return err
		}
		in.Ref, in.Ref2 = ast.ByIndex(elemIdx), ast.ByIndex(tblIdx)
	case wasm.MiscOpcodeElemDrop:
		idx, err := resolve(in.Ref, r.ix.Names.Elems, uint32(len(r.m.Elems)))
		if err != nil {
			return err
		}
		in.Ref = ast.ByIndex(idx)
	case wasm.MiscOpcodeTableCopy:
		dst, err := resolve(in.Ref, r.ix.Names.Tables, r.numTables())
		if err != nil {
			return err
		}
		src, err := resolve(in.Ref2, r.ix.Names.Tables, r.numTables())
		if err != nil {
			return err
		}
		in.Ref, in.Ref2 = ast.ByIndex(dst), ast.ByIndex(src)
	case wasm.MiscOpcodeTableGrow, wasm.MiscOpcodeTableSize, wasm.MiscOpcodeTableFill:
		idx, err := resolve(in.Ref, r.ix.Names.Tables, r.numTables())
		if err != nil {
			return err
		}
		in.Ref = ast.ByIndex(idx)
	case wasm.MiscOpcodeMemoryCopy, wasm.MiscOpcodeMemoryFill:
		if r.numMemories() == 0 {
			return fmt.Errorf("unknown memory 0")
		}
	}
	return nil
}

func isLoadStore(op wasm.Opcode) bool {
	switch op {
	case wasm.OpcodeI32Load, wasm.OpcodeI64Load, wasm.OpcodeF32Load, wasm.OpcodeF64Load,
		wasm.OpcodeI32Load8S, wasm.OpcodeI32Load8U, wasm.OpcodeI32Load16S, wasm.OpcodeI32Load16U,
		wasm.OpcodeI64Load8S, wasm.OpcodeI64Load8U, wasm.OpcodeI64Load16S, wasm.OpcodeI64Load16U,
		wasm.OpcodeI64Load32S, wasm.OpcodeI64Load32U,
		wasm.OpcodeI32Store, wasm.OpcodeI64Store, wasm.OpcodeF32Store, wasm.OpcodeF64Store,
		wasm.OpcodeI32Store8, wasm.OpcodeI32Store16, wasm.OpcodeI64Store8, wasm.OpcodeI64Store16, wasm.OpcodeI64Store32:
		return true
	}
	return false
}

// naturalWidth returns the access width, in bytes, implied by op's value
// type and any narrowing suffix (8/16/32).
func naturalWidth(op wasm.Opcode) uint32 {
	switch op {
	case wasm.OpcodeI32Load8S, wasm.OpcodeI32Load8U, wasm.OpcodeI32Store8,
		wasm.OpcodeI64Load8S, wasm.OpcodeI64Load8U, wasm.OpcodeI64Store8:
		return 1
	case wasm.OpcodeI32Load16S, wasm.OpcodeI32Load16U, wasm.OpcodeI32Store16,
		wasm.OpcodeI64Load16S, wasm.OpcodeI64Load16U, wasm.OpcodeI64Store16:
		return 2
	case wasm.OpcodeI32Load, wasm.OpcodeI32Store, wasm.OpcodeF32Load, wasm.OpcodeF32Store,
		wasm.OpcodeI64Load32S, wasm.OpcodeI64Load32U, wasm.OpcodeI64Store32:
		return 4
	case wasm.OpcodeI64Load, wasm.OpcodeI64Store, wasm.OpcodeF64Load, wasm.OpcodeF64Store:
		return 8
	}
	return 0
}

func (r *rewriter) checkMemAccess(in *ast.Instr) error {
	if r.numMemories() == 0 {
		return fmt.Errorf("unknown memory 0")
	}
	if (uint32(1) << in.Memarg.Align) > naturalWidth(in.Op) {
		return fmt.Errorf("alignment must not be larger than natural")
	}
	return nil
}
