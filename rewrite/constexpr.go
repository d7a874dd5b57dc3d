package rewrite

import (
	"fmt"

	"github.com/wasmcore/wasmcore/ast"
	"github.com/wasmcore/wasmcore/wasm"
)

// rewriteConstExpr resolves identifiers within and validates the shape of
// a constant expression (global/element/data initialiser): only numeric
// consts, ref.null, ref.func, and global.get of an imported immutable
// global are permitted.
func (r *rewriter) rewriteConstExpr(expr []ast.Instr) error {
	for i := range expr {
		in := &expr[i]
		switch in.Op {
		case wasm.OpcodeI32Const, wasm.OpcodeI64Const, wasm.OpcodeF32Const, wasm.OpcodeF64Const,
			wasm.OpcodeRefNull, wasm.OpcodeEnd:
			// no identifier to resolve
		case wasm.OpcodeRefFunc:
			idx, err := resolve(in.Ref, r.ix.Names.Funcs, r.ix.NumImportedFuncs+uint32(len(r.m.Funcs)))
			if err != nil {
				return fmt.Errorf("constant expression required: %w", err)
			}
			in.Ref = ast.ByIndex(idx)
		case wasm.OpcodeGlobalGet:
			idx, err := resolve(in.Ref, r.ix.Names.Globals, r.ix.NumImportedGlobals+uint32(len(r.m.Globals)))
			if err != nil {
				return fmt.Errorf("constant expression required: %w", err)
			}
			if idx >= r.ix.NumImportedGlobals {
				return fmt.Errorf("constant expression required")
			}
			gt, err := r.globalType(idx)
			if err != nil {
				return err
			}
			if gt.Mutable {
				return fmt.Errorf("constant expression required")
			}
			in.Ref = ast.ByIndex(idx)
		default:
			return fmt.Errorf("constant expression required")
		}
	}
	return nil
}

func (r *rewriter) rewriteElem(e *ast.RawElem) error {
	if e.Mode == ast.ElemModeActive {
		idx, err := resolve(e.TableRef, r.ix.Names.Tables, r.numTables())
		if err != nil {
			return err
		}
		e.TableRef = ast.ByIndex(idx)
		if err := r.rewriteConstExpr(e.Offset); err != nil {
			return err
		}
	}
	for i, init := range e.Init {
		if err := r.rewriteConstExpr(init); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

func (r *rewriter) rewriteData(d *ast.RawData) error {
	if d.Mode != ast.DataModeActive {
		return nil
	}
	idx, err := resolve(d.MemRef, r.ix.Names.Memories, r.numMemories())
	if err != nil {
		return err
	}
	if r.numMemories() == 0 {
		return fmt.Errorf("unknown memory 0")
	}
	d.MemRef = ast.ByIndex(idx)
	return r.rewriteConstExpr(d.Offset)
}
