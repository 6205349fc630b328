package minimizer_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/covfuzz/covfuzz/aspects"
	"github.com/covfuzz/covfuzz/executor"
	"github.com/covfuzz/covfuzz/ir"
	"github.com/covfuzz/covfuzz/pkg/minimizer"
)

// TestMinimizeEndToEndDropsDeadCode runs the full fixpoint pipeline (spec.md
// §4.4) against a program with a mix of dead loads, an unneeded if-block and
// a single load-bearing Throw, and checks the result is both much smaller
// and still statically valid.
func TestMinimizeEndToEndDropsDeadCode(t *testing.T) {
	program := ir.NewProgram([]ir.Instruction{
		{Op: "LoadInt", Outputs: []ir.VarId{0}},
		{Op: "LoadInt", Outputs: []ir.VarId{1}},
		{Op: "LoadString", Outputs: []ir.VarId{2}},
		{Op: "BeginIf", Inputs: []ir.VarId{1}},
		{Op: "LoadUndefined", Outputs: []ir.VarId{3}},
		{Op: "EndIf"},
		{Op: "Throw", Inputs: []ir.VarId{0}},
	})
	needsThrow := func(p *ir.Program) bool {
		for _, ins := range p.Instructions {
			if ins.Op == "Throw" {
				return true
			}
		}
		return false
	}
	fake := &executor.Fake{Judge: func(p *ir.Program) executor.Outcome {
		if needsThrow(p) {
			return executor.Crashed
		}
		return executor.Succeeded
	}}
	eval := aspects.NewFakeEvaluator(func(e *executor.Execution) []aspects.EdgeId { return nil })
	target := &aspects.ProgramAspects{Outcome: executor.Crashed}

	result, err := minimizer.Minimize(program, target, minimizer.Options{
		Config: minimizer.Config{Exec: fake, Eval: eval, Timeout: time.Second},
		Rand:   rand.New(rand.NewSource(7)),
	})
	require.NoError(t, err)
	require.LessOrEqual(t, len(result.Instructions), len(program.Instructions))

	foundThrow := false
	for _, ins := range result.Instructions {
		if ins.Op == "Throw" {
			foundThrow = true
		}
	}
	require.True(t, foundThrow)

	code := ir.NewCode(result)
	require.NoError(t, code.IsStaticallyValid())
	require.True(t, code.IsContinuouslyNumbered())
}

// TestMinimizeRespectsKeepAlivePinning confirms a nonzero MinimizationLimit
// leaves some instructions pinned (and therefore present in the result)
// even when the oracle would happily accept their removal.
func TestMinimizeRespectsKeepAlivePinning(t *testing.T) {
	program := ir.NewProgram([]ir.Instruction{
		{Op: "LoadInt", Outputs: []ir.VarId{0}},
		{Op: "LoadInt", Outputs: []ir.VarId{1}},
		{Op: "LoadInt", Outputs: []ir.VarId{2}},
	})
	fake := &executor.Fake{Judge: func(p *ir.Program) executor.Outcome { return executor.Crashed }}
	eval := aspects.NewFakeEvaluator(func(e *executor.Execution) []aspects.EdgeId { return nil })
	target := &aspects.ProgramAspects{Outcome: executor.Crashed}

	result, err := minimizer.Minimize(program, target, minimizer.Options{
		Config:            minimizer.Config{Exec: fake, Eval: eval, Timeout: time.Second},
		Rand:              rand.New(rand.NewSource(3)),
		MinimizationLimit: 1.0,
	})
	require.NoError(t, err)
	require.Len(t, result.Instructions, 3)
}
