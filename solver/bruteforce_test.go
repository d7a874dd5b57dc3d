package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBruteForceFindsSatisfyingWitness(t *testing.T) {
	b := NewBruteForce()
	x := Symbol{Name: "x", Bits: 32}
	sat, err := b.CheckSat(nil, BinOp{Op: OpGtS, Left: x, Right: IntLit{Value: 50}})
	require.NoError(t, err)
	assert.True(t, sat)
}

func TestBruteForceReportsUnsatForContradiction(t *testing.T) {
	b := NewBruteForce()
	x := Symbol{Name: "x", Bits: 32}
	assumptions := []Expr{
		BinOp{Op: OpEq, Left: x, Right: IntLit{Value: 0}},
	}
	sat, err := b.CheckSat(assumptions, BinOp{Op: OpNe, Left: x, Right: IntLit{Value: 0}})
	require.NoError(t, err)
	assert.False(t, sat)
}

func TestBruteForceConjoinsAssumptionsWithExtra(t *testing.T) {
	b := NewBruteForce()
	x := Symbol{Name: "x", Bits: 32}
	assumptions := []Expr{BinOp{Op: OpGtS, Left: x, Right: IntLit{Value: 0}}}
	sat, err := b.CheckSat(assumptions, BinOp{Op: OpLtS, Left: x, Right: IntLit{Value: 2}})
	require.NoError(t, err)
	assert.True(t, sat) // x=1 satisfies both
}
