package solver

import "fmt"

// BruteForce is a test double: it tries a small, fixed set of witness
// assignments for every free Symbol appearing in the query and reports
// sat if any witness satisfies the conjunction. It is sound for "sat"
// (a witness it finds really does satisfy the formula) but not complete
// — it can report unsat for a formula that is actually sat but whose
// only witnesses fall outside the probed set. Good enough for the
// small integer fixtures of the interp tests and the sym command; not a
// substitute for a real SMT solver.
type BruteForce struct {
	Witnesses []int64
}

// NewBruteForce returns a BruteForce probing a standard set of edge-case
// witnesses: zero, small positives/negatives, and signed 32/64-bit
// extremes.
func NewBruteForce() *BruteForce {
	return &BruteForce{Witnesses: []int64{
		0, 1, -1, 2, -2, 7, -7, 100, -100,
		1<<31 - 1, -1 << 31, 1<<63 - 1, -1 << 63,
	}}
}

func (b *BruteForce) CheckSat(assumptions []Expr, extra Expr) (bool, error) {
	syms := map[string]int{}
	for _, a := range assumptions {
		collectSymbols(a, syms)
	}
	if extra != nil {
		collectSymbols(extra, syms)
	}
	names := make([]string, 0, len(syms))
	for n := range syms {
		names = append(names, n)
	}
	return b.search(names, map[string]int64{}, assumptions, extra)
}

func (b *BruteForce) search(names []string, env map[string]int64, assumptions []Expr, extra Expr) (bool, error) {
	if len(names) == 0 {
		for _, a := range assumptions {
			ok, err := evalBool(a, env)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		if extra != nil {
			ok, err := evalBool(extra, env)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	}
	name, rest := names[0], names[1:]
	for _, w := range b.Witnesses {
		env[name] = w
		sat, err := b.search(rest, env, assumptions, extra)
		if err != nil {
			return false, err
		}
		if sat {
			return true, nil
		}
	}
	delete(env, name)
	return false, nil
}

func collectSymbols(e Expr, into map[string]int) {
	switch n := e.(type) {
	case Symbol:
		into[n.Name] = n.Bits
	case BinOp:
		collectSymbols(n.Left, into)
		collectSymbols(n.Right, into)
	case UnOp:
		collectSymbols(n.Operand, into)
	case Ite:
		collectSymbols(n.Cond, into)
		collectSymbols(n.Then, into)
		collectSymbols(n.Else, into)
	}
}

func evalInt(e Expr, env map[string]int64) (int64, error) {
	switch n := e.(type) {
	case IntLit:
		return n.Value, nil
	case Symbol:
		return env[n.Name], nil
	case Ite:
		c, err := evalBool(n.Cond, env)
		if err != nil {
			return 0, err
		}
		if c {
			return evalInt(n.Then, env)
		}
		return evalInt(n.Else, env)
	case UnOp:
		v, err := evalInt(n.Operand, env)
		if err != nil {
			return 0, err
		}
		if n.Op == OpNeg {
			return -v, nil
		}
		return 0, fmt.Errorf("unsupported unary op %q in integer context", n.Op)
	case BinOp:
		l, err := evalInt(n.Left, env)
		if err != nil {
			return 0, err
		}
		r, err := evalInt(n.Right, env)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case OpAdd:
			return l + r, nil
		case OpSub:
			return l - r, nil
		case OpMul:
			return l * r, nil
		}
		return 0, fmt.Errorf("unsupported binary op %q in integer context", n.Op)
	}
	return 0, fmt.Errorf("not an integer expression: %T", e)
}

func evalBool(e Expr, env map[string]int64) (bool, error) {
	switch n := e.(type) {
	case BoolLit:
		return n.Value, nil
	case Ite:
		c, err := evalBool(n.Cond, env)
		if err != nil {
			return false, err
		}
		if c {
			return evalBool(n.Then, env)
		}
		return evalBool(n.Else, env)
	case UnOp:
		if n.Op == OpNot {
			v, err := evalBool(n.Operand, env)
			return !v, err
		}
	case BinOp:
		switch n.Op {
		case OpAnd:
			l, err := evalBool(n.Left, env)
			if err != nil || !l {
				return false, err
			}
			return evalBool(n.Right, env)
		case OpOr:
			l, err := evalBool(n.Left, env)
			if err != nil {
				return false, err
			}
			if l {
				return true, nil
			}
			return evalBool(n.Right, env)
		case OpEq, OpNe, OpLtS, OpLeS, OpGtS, OpGeS, OpLtU:
			l, err := evalInt(n.Left, env)
			if err != nil {
				return false, err
			}
			r, err := evalInt(n.Right, env)
			if err != nil {
				return false, err
			}
			switch n.Op {
			case OpEq:
				return l == r, nil
			case OpNe:
				return l != r, nil
			case OpLtS:
				return l < r, nil
			case OpLeS:
				return l <= r, nil
			case OpGtS:
				return l > r, nil
			case OpGeS:
				return l >= r, nil
			case OpLtU:
				return uint64(l) < uint64(r), nil
			}
		}
	}
	return false, fmt.Errorf("not a boolean expression: %T", e)
}
