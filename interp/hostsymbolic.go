package interp

import (
	"fmt"

	"github.com/wasmcore/wasmcore/link"
	"github.com/wasmcore/wasmcore/solver"
	"github.com/wasmcore/wasmcore/wasm"
)

// NewSymbolicHostModule builds the "symbolic" extern module a linked
// module can import to drive path exploration from inside its own code,
// rather than only having its exported parameters seeded before a call:
//
//   - symbolic.i32 / symbolic.i64 each take no arguments and return one
//     fresh free variable of their width.
//   - symbolic.assume takes one i32 and extends the calling run's path
//     condition with it unconditionally.
//   - symbolic.assert takes one i32, behaves like assume, and additionally
//     records the negated condition as a fork, so the assertion-violated
//     path is still reachable by a later replay.
//
// Every function here requires m.Alg to be a *Symbolic; called under
// Concrete they return an error, which the caller's call site turns into
// an ordinary trap.
func NewSymbolicHostModule() *link.HostModule {
	h := link.NewHostModule("symbolic")
	h.DefineFuncAlgebraic("i32", &wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}}, symbolHostFunc(wasm.ValueTypeI32))
	h.DefineFuncAlgebraic("i64", &wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI64}}, symbolHostFunc(wasm.ValueTypeI64))
	h.DefineFuncAlgebraic("assume", &wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI32}}, assumeHostFunc)
	h.DefineFuncAlgebraic("assert", &wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI32}}, assertHostFunc)
	return h
}

func asSymbolicAlgebra(alg any) (*Symbolic, error) {
	s, ok := alg.(*Symbolic)
	if !ok {
		return nil, fmt.Errorf("symbolic primitive called outside symbolic execution")
	}
	return s, nil
}

func symbolHostFunc(t wasm.ValueType) link.AlgebraicHostFunc {
	return func(alg any, _ []any) ([]any, error) {
		s, err := asSymbolicAlgebra(alg)
		if err != nil {
			return nil, err
		}
		return []any{s.Symbol(t, "")}, nil
	}
}

func condArg(args []any) (Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("expected exactly one condition argument, got %d", len(args))
	}
	cond, ok := args[0].(Value)
	if !ok {
		return nil, fmt.Errorf("condition argument is not a Value")
	}
	return cond, nil
}

func assumeHostFunc(alg any, args []any) ([]any, error) {
	s, err := asSymbolicAlgebra(alg)
	if err != nil {
		return nil, err
	}
	cond, err := condArg(args)
	if err != nil {
		return nil, err
	}
	s.Assume(cond)
	return nil, nil
}

func assertHostFunc(alg any, args []any) ([]any, error) {
	s, err := asSymbolicAlgebra(alg)
	if err != nil {
		return nil, err
	}
	cond, err := condArg(args)
	if err != nil {
		return nil, err
	}
	s.Forks = append(s.Forks, solver.Not(toBoolExpr(cond)))
	s.Assume(cond)
	return nil, nil
}
