package minimizer

import (
	"math/rand"

	"github.com/covfuzz/covfuzz/ir"
)

// DefUseAnalyzer is the reverse-dataflow pass spec.md §9 calls for ("a
// classic reverse-dataflow pass; a map from VarId -> DefiningInstructionIndex
// is sufficient"). It is rebuilt whenever the code it was built from
// changes; ComputeKeepAlive is its only caller.
type DefUseAnalyzer struct {
	definedAt map[ir.VarId]int
}

// NewDefUseAnalyzer scans code once, recording the instruction index that
// defines each variable.
func NewDefUseAnalyzer(code *ir.Code) *DefUseAnalyzer {
	a := &DefUseAnalyzer{definedAt: map[ir.VarId]int{}}
	for i := 0; i < code.Len(); i++ {
		ins := code.At(i)
		for _, v := range ins.Outputs {
			a.definedAt[v] = i
		}
		for _, v := range ins.InnerOutputs {
			a.definedAt[v] = i
		}
	}
	return a
}

// DefinedAt returns the instruction index that defines v and true, or
// (0, false) if v is never defined in this code (e.g. a block's implicit
// outer-scope binding).
func (a *DefUseAnalyzer) DefinedAt(v ir.VarId) (int, bool) {
	i, ok := a.definedAt[v]
	return i, ok
}

// ComputeKeepAlive implements spec.md §4.4's keep-alive set: a random
// fraction `minimizationLimit` of instructions is pinned, and every pinned
// instruction transitively pins the defining instructions of its inputs, so
// a reducer can never strand a dangling read. Returns a pinned slice aligned
// index-for-index with code.
func ComputeKeepAlive(code *ir.Code, minimizationLimit float64, r *rand.Rand) []bool {
	pinned := make([]bool, code.Len())
	if minimizationLimit <= 0 {
		return pinned
	}
	for i := 0; i < code.Len(); i++ {
		if r.Float64() < minimizationLimit {
			pinned[i] = true
		}
	}
	analyzer := NewDefUseAnalyzer(code)
	// Transitive closure over data-flow predecessors: repeatedly walk every
	// pinned instruction's inputs and pin their definitions, until a pass
	// pins nothing new.
	for changed := true; changed; {
		changed = false
		for i := 0; i < code.Len(); i++ {
			if !pinned[i] {
				continue
			}
			for _, v := range code.At(i).Inputs {
				defIdx, ok := analyzer.DefinedAt(v)
				if ok && !pinned[defIdx] {
					pinned[defIdx] = true
					changed = true
				}
			}
		}
	}
	return pinned
}
