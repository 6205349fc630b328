package minimizer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/covfuzz/covfuzz/ir"
	"github.com/covfuzz/covfuzz/pkg/minimizer"
)

// TestInliningReducerInlinesSoleCallSite implements spec.md §8's inlining
// end-to-end scenario: a plain function called exactly once, never used as
// a value elsewhere, gets its body substituted directly at the call site.
func TestInliningReducerInlinesSoleCallSite(t *testing.T) {
	program := ir.NewProgram([]ir.Instruction{
		// function f(p0) { throw p0; }
		{Op: "BeginPlainFunction", Outputs: []ir.VarId{0}, InnerOutputs: []ir.VarId{1}},
		{Op: "Throw", Inputs: []ir.VarId{1}},
		{Op: "EndPlainFunction"},
		// arg
		{Op: "LoadInt", Outputs: []ir.VarId{2}},
		// f(arg)
		{Op: "CallFunction", Inputs: []ir.VarId{0, 2}, Outputs: []ir.VarId{3}},
	})
	alwaysCrash := func(p *ir.Program) bool { return true }
	h := newHelper(t, program, alwaysCrash, nil)
	r := &minimizer.InliningReducer{}
	r.Reduce(h)

	foundThrow := false
	foundCall := false
	for i := 0; i < h.Code().Len(); i++ {
		switch h.Code().At(i).Op {
		case "Throw":
			foundThrow = true
		case "CallFunction":
			foundCall = true
		}
	}
	require.True(t, foundThrow, "the inlined Throw should remain reachable")
	require.False(t, foundCall, "the call site should have been replaced by the inlined body")
}

func TestInliningReducerSkipsFunctionCalledTwice(t *testing.T) {
	program := ir.NewProgram([]ir.Instruction{
		{Op: "BeginPlainFunction", Outputs: []ir.VarId{0}, InnerOutputs: []ir.VarId{1}},
		{Op: "Return", Inputs: []ir.VarId{1}},
		{Op: "EndPlainFunction"},
		{Op: "LoadInt", Outputs: []ir.VarId{2}},
		{Op: "CallFunction", Inputs: []ir.VarId{0, 2}, Outputs: []ir.VarId{3}},
		{Op: "CallFunction", Inputs: []ir.VarId{0, 2}, Outputs: []ir.VarId{4}},
	})
	alwaysCrash := func(p *ir.Program) bool { return true }
	h := newHelper(t, program, alwaysCrash, nil)
	r := &minimizer.InliningReducer{}
	r.Reduce(h)
	require.Equal(t, "BeginPlainFunction", h.Code().At(0).Op)
}
