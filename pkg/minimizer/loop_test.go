package minimizer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/covfuzz/covfuzz/ir"
	"github.com/covfuzz/covfuzz/pkg/minimizer"
)

// TestLoopReducerConvertsAndShrinksToSmallestRung implements a version of
// spec.md §8's LoopReducer ladder scenario: a while-loop needing at least
// 10 iterations to reproduce converts into the smallest surviving rung of
// the iteration ladder (10), not all the way down to 5.
func TestLoopReducerConvertsAndShrinksToSmallestRung(t *testing.T) {
	program := ir.NewProgram([]ir.Instruction{
		{Op: "LoadInt", Outputs: []ir.VarId{0}},
		{Op: "BeginWhileLoop", Inputs: []ir.VarId{0}},
		{Op: "Throw", Inputs: []ir.VarId{0}},
		{Op: "EndWhileLoop"},
	})
	needsAtLeastTen := func(p *ir.Program) bool {
		for _, ins := range p.Instructions {
			if ins.Op == "BeginRepeatLoop" && ins.Imm >= 10 {
				return true
			}
		}
		return false
	}
	h := newHelper(t, program, needsAtLeastTen, nil)
	r := &minimizer.LoopReducer{}
	for i := 0; i < 5; i++ {
		h.ResetDidReduce()
		r.Reduce(h)
		if !h.DidReduce() {
			break
		}
	}
	found := false
	for i := 0; i < h.Code().Len(); i++ {
		ins := h.Code().At(i)
		if ins.Op == "BeginRepeatLoop" {
			require.Equal(t, int64(10), ins.Imm)
			found = true
		}
	}
	require.True(t, found, "expected the loop to convert to a BeginRepeatLoop")
}

func TestLoopReducerMergesNestedRepeatLoops(t *testing.T) {
	program := ir.NewProgram([]ir.Instruction{
		{Op: "BeginRepeatLoop", InnerOutputs: []ir.VarId{0}, Imm: 5},
		{Op: "BeginRepeatLoop", InnerOutputs: []ir.VarId{1}, Imm: 5},
		{Op: "EndRepeatLoop"},
		{Op: "EndRepeatLoop"},
	})
	alwaysCrash := func(p *ir.Program) bool { return true }
	h := newHelper(t, program, alwaysCrash, nil)
	r := &minimizer.LoopReducer{}
	r.Reduce(h)
	outer := h.Code().At(0)
	require.Equal(t, "BeginRepeatLoop", outer.Op)
	require.Equal(t, int64(25), outer.Imm)
}
