package interp

import (
	"fmt"

	"github.com/wasmcore/wasmcore/solver"
	"github.com/wasmcore/wasmcore/wasm"
)

// Symbolic is the Algebra used for path exploration. i32/i64 values may
// be either concrete or a solver.Expr; f32/f64 and references are
// always carried concretely — no solver theory for them is wired in
// (see DESIGN.md).
//
// A Symbolic carries its own path condition: the conjunction of
// predicates the run that owns it has assumed true so far. Each forked
// path is meant to run as an independent thread, but forking here is
// not done by cloning Go call stacks; EvalChoice instead records the
// untaken side's predicate on Forks for the caller (the sym command's
// runSym) to replay from the top with that predicate pre-assumed.
type Symbolic struct {
	Solver    solver.Solver
	Path      []solver.Expr
	Forks     []solver.Expr
	nextFresh int
}

func NewSymbolic(s solver.Solver) *Symbolic { return &Symbolic{Solver: s} }

type sval struct {
	t        wasm.ValueType
	concrete bool
	c        cval
	expr     solver.Expr
	bits     int
}

func (v sval) Type() wasm.ValueType { return v.t }

// Symbol introduces a fresh free variable of the given width, used by
// the symbolic host module in hostsymbolic.go and by the sym command.
func (s *Symbolic) Symbol(t wasm.ValueType, name string) Value {
	bits := 32
	if t == wasm.ValueTypeI64 {
		bits = 64
	}
	if name == "" {
		name = fmt.Sprintf("sym%d", s.nextFresh)
		s.nextFresh++
	}
	return sval{t: t, expr: solver.Symbol{Name: name, Bits: bits}, bits: bits}
}

// Assume records e as part of the path condition unconditionally (the
// `symbolic.assume` host primitive).
func (s *Symbolic) Assume(cond Value) {
	s.Path = append(s.Path, toBoolExpr(cond))
}

func (Symbolic) ConstI32(v int32) Value { return sval{t: wasm.ValueTypeI32, concrete: true, c: asC(I32(v)), bits: 32} }
func (Symbolic) ConstI64(v int64) Value { return sval{t: wasm.ValueTypeI64, concrete: true, c: asC(I64(v)), bits: 64} }
func (Symbolic) ConstF32(v float32) Value { return sval{t: wasm.ValueTypeF32, concrete: true, c: asC(F32(v))} }
func (Symbolic) ConstF64(v float64) Value { return sval{t: wasm.ValueTypeF64, concrete: true, c: asC(F64(v))} }
func (Symbolic) NullRef(t wasm.ValueType) Value {
	return sval{t: t, concrete: true, c: asC(NullRefC(t))}
}
func (Symbolic) FuncRef(idx uint32) Value {
	return sval{t: wasm.ValueTypeFuncRef, concrete: true, c: asC(FuncRefC(idx))}
}

func asS(v Value) sval { return v.(sval) }

func exprOf(v Value) solver.Expr {
	s := asS(v)
	if s.concrete {
		switch s.t {
		case wasm.ValueTypeI32:
			return solver.IntLit{Value: int64(s.c.i32)}
		case wasm.ValueTypeI64:
			return solver.IntLit{Value: s.c.i64}
		}
	}
	return s.expr
}

func toBoolExpr(v Value) solver.Expr {
	return solver.BinOp{Op: solver.OpNe, Left: exprOf(v), Right: solver.IntLit{Value: 0}}
}

func wrap(t wasm.ValueType, bits int, e solver.Expr) Value {
	if lit, ok := e.(solver.IntLit); ok {
		if t == wasm.ValueTypeI32 {
			return sval{t: t, concrete: true, c: asC(I32(int32(lit.Value))), bits: bits}
		}
		return sval{t: t, concrete: true, c: asC(I64(lit.Value)), bits: bits}
	}
	return sval{t: t, expr: e, bits: bits}
}

func (s Symbolic) Unary(op wasm.Opcode, a Value) (Value, error) {
	av := asS(a)
	if av.concrete {
		r, err := Concrete{}.Unary(op, av.c)
		if err != nil {
			return nil, err
		}
		return liftConcrete(r), nil
	}
	switch op {
	case wasm.OpcodeI32Eqz, wasm.OpcodeI64Eqz:
		return wrap(wasm.ValueTypeI32, 32, boolExprToInt(solver.BinOp{Op: solver.OpEq, Left: av.expr, Right: solver.IntLit{Value: 0}})), nil
	}
	return nil, fmt.Errorf("symbolic mode: unary op %v has no symbolic witness (concretize first)", op)
}

func (s Symbolic) Binary(op wasm.Opcode, a, b Value) (Value, error) {
	av, bv := asS(a), asS(b)
	if av.concrete && bv.concrete {
		r, err := Concrete{}.Binary(op, av.c, bv.c)
		if err != nil {
			return nil, err
		}
		return liftConcrete(r), nil
	}
	symOp, boolResult, ok := symbolicOpFor(op)
	if !ok {
		return nil, fmt.Errorf("symbolic mode: binary op %v has no symbolic witness (concretize first)", op)
	}
	e := solver.BinOp{Op: symOp, Left: exprOf(a), Right: exprOf(b)}
	if boolResult {
		return wrap(wasm.ValueTypeI32, 32, boolExprToInt(e)), nil
	}
	t, bits := a.Type(), av.bits
	return wrap(t, bits, e), nil
}

func boolExprToInt(e solver.Expr) solver.Expr {
	return solver.Ite{Cond: e, Then: solver.IntLit{Value: 1}, Else: solver.IntLit{Value: 0}}
}

func symbolicOpFor(op wasm.Opcode) (string, bool, bool) {
	switch op {
	case wasm.OpcodeI32Add, wasm.OpcodeI64Add:
		return solver.OpAdd, false, true
	case wasm.OpcodeI32Sub, wasm.OpcodeI64Sub:
		return solver.OpSub, false, true
	case wasm.OpcodeI32Mul, wasm.OpcodeI64Mul:
		return solver.OpMul, false, true
	case wasm.OpcodeI32Eq, wasm.OpcodeI64Eq:
		return solver.OpEq, true, true
	case wasm.OpcodeI32Ne, wasm.OpcodeI64Ne:
		return solver.OpNe, true, true
	case wasm.OpcodeI32LtS, wasm.OpcodeI64LtS:
		return solver.OpLtS, true, true
	case wasm.OpcodeI32LeS, wasm.OpcodeI64LeS:
		return solver.OpLeS, true, true
	case wasm.OpcodeI32GtS, wasm.OpcodeI64GtS:
		return solver.OpGtS, true, true
	case wasm.OpcodeI32GeS, wasm.OpcodeI64GeS:
		return solver.OpGeS, true, true
	case wasm.OpcodeI32LtU, wasm.OpcodeI64LtU:
		return solver.OpLtU, true, true
	}
	return "", false, false
}

func liftConcrete(v Value) Value {
	c := asC(v)
	bits := 0
	if c.t == wasm.ValueTypeI32 {
		bits = 32
	} else if c.t == wasm.ValueTypeI64 {
		bits = 64
	}
	return sval{t: c.t, concrete: true, c: c, bits: bits}
}

func (s Symbolic) Convert(op wasm.Opcode, a Value) (Value, error) {
	av := asS(a)
	if !av.concrete {
		return nil, fmt.Errorf("symbolic mode: conversion %v requires a concrete operand", op)
	}
	r, err := Concrete{}.Convert(op, av.c)
	if err != nil {
		return nil, err
	}
	return liftConcrete(r), nil
}

func (s Symbolic) TruncSat(op wasm.MiscOpcode, a Value) (Value, error) {
	av := asS(a)
	if !av.concrete {
		return nil, fmt.Errorf("symbolic mode: trunc_sat requires a concrete operand")
	}
	r, err := Concrete{}.TruncSat(op, av.c)
	if err != nil {
		return nil, err
	}
	return liftConcrete(r), nil
}

func (s Symbolic) Select(cond, a, b Value) Value {
	cv := asS(cond)
	if cv.concrete {
		if cv.c.i32 != 0 {
			return a
		}
		return b
	}
	av, bv := asS(a), asS(b)
	condExpr := solver.BinOp{Op: solver.OpNe, Left: cv.expr, Right: solver.IntLit{Value: 0}}
	return wrap(a.Type(), av.bits, solver.Ite{Cond: condExpr, Then: exprOf(av), Else: exprOf(bv)})
}

// EvalChoice consults s.Solver for both sides of cond against the
// current path condition. Exactly one side is ever returned as
// "Taken" (the run continues down it immediately); a satisfiable
// untaken side is recorded on s.Forks rather than spawning a goroutine,
// per the replay-based exploration strategy documented in DESIGN.md.
func (s *Symbolic) EvalChoice(cond Value) ([]Choice, error) {
	cv := asS(cond)
	if cv.concrete {
		taken := cv.c.i32 != 0
		return []Choice{{Taken: taken, Assumption: cond}}, nil
	}
	trueExpr := toBoolExpr(cond)
	falseExpr := solver.Not(trueExpr)

	trueSat, err := s.Solver.CheckSat(s.Path, trueExpr)
	if err != nil {
		return nil, err
	}
	falseSat, err := s.Solver.CheckSat(s.Path, falseExpr)
	if err != nil {
		return nil, err
	}
	if !trueSat && !falseSat {
		return nil, fmt.Errorf("infeasible path: neither branch of condition is satisfiable")
	}
	if trueSat {
		if falseSat {
			s.Forks = append(s.Forks, falseExpr)
		}
		s.Path = append(s.Path, trueExpr)
		return []Choice{{Taken: true, Assumption: cond}}, nil
	}
	s.Path = append(s.Path, falseExpr)
	return []Choice{{Taken: false, Assumption: cond}}, nil
}

func (Symbolic) AsI32(v Value) (int32, bool) {
	s := asS(v)
	if !s.concrete {
		return 0, false
	}
	return s.c.i32, true
}

func (Symbolic) AsU32(v Value) (uint32, bool) {
	s := asS(v)
	if !s.concrete {
		return 0, false
	}
	return uint32(s.c.i32), true
}

func (Symbolic) AsBool(v Value) (bool, bool) {
	s := asS(v)
	if !s.concrete {
		return false, false
	}
	return s.c.i32 != 0, true
}

func (Symbolic) Bits(v Value) (uint64, bool) {
	s := asS(v)
	if !s.concrete {
		return 0, false
	}
	return Concrete{}.Bits(s.c)
}

func (Symbolic) FromBits(t wasm.ValueType, b uint64) Value {
	return liftConcrete(Concrete{}.FromBits(t, b))
}

func (Symbolic) RefInfo(v Value) (uint32, bool, bool) {
	s := asS(v)
	if !s.concrete {
		return 0, false, false
	}
	return Concrete{}.RefInfo(s.c)
}
