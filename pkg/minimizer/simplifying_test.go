package minimizer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/covfuzz/covfuzz/ir"
	"github.com/covfuzz/covfuzz/pkg/minimizer"
)

func TestSimplifyingReducerCollapsesSpreadAndFlags(t *testing.T) {
	program := ir.NewProgram([]ir.Instruction{
		{Op: "LoadInt", Outputs: []ir.VarId{0}},
		{Op: "CreateArrayWithSpread", Inputs: []ir.VarId{0}, Outputs: []ir.VarId{1}},
		{Op: "GetProperty", Inputs: []ir.VarId{1}, Outputs: []ir.VarId{2}, Flags: ir.FlagGuarded},
	})
	alwaysCrash := func(p *ir.Program) bool { return true }
	h := newHelper(t, program, alwaysCrash, nil)
	r := &minimizer.SimplifyingReducer{}
	r.Reduce(h)
	require.Equal(t, "CreateArray", h.Code().At(1).Op)
	require.False(t, h.Code().At(2).HasFlag(ir.FlagGuarded))
}

func TestSimplifyingReducerCollapsesFunctionKinds(t *testing.T) {
	program := ir.NewProgram([]ir.Instruction{
		{Op: "BeginAsync", Outputs: []ir.VarId{0}, InnerOutputs: []ir.VarId{1}},
		{Op: "LoadUndefined", Outputs: []ir.VarId{2}},
		{Op: "Return", Inputs: []ir.VarId{2}},
		{Op: "EndAsync"},
	})
	alwaysCrash := func(p *ir.Program) bool { return true }
	h := newHelper(t, program, alwaysCrash, nil)
	r := &minimizer.SimplifyingReducer{}
	r.Reduce(h)
	require.Equal(t, "BeginPlainFunction", h.Code().At(0).Op)
	require.Equal(t, "EndPlainFunction", h.Code().At(3).Op)
}

func TestSimplifyingReducerExpandsDestructuring(t *testing.T) {
	program := ir.NewProgram([]ir.Instruction{
		{Op: "LoadUndefined", Outputs: []ir.VarId{0}},
		{Op: "DestructObject", Inputs: []ir.VarId{0}, Outputs: []ir.VarId{1, 2}},
	})
	alwaysCrash := func(p *ir.Program) bool { return true }
	h := newHelper(t, program, alwaysCrash, nil)
	r := &minimizer.SimplifyingReducer{}
	r.Reduce(h)
	require.Equal(t, "GetProperty", h.Code().At(1).Op)
	require.Equal(t, "DestructObject", h.Code().At(2).Op)
}
