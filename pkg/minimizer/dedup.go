package minimizer

import (
	"fmt"

	"github.com/covfuzz/covfuzz/ir"
)

// DeduplicatingReducer implements spec.md §4.4.8: for identical "named
// variable" loads within a scope (two references to the same builtin, the
// same literal, or undefined), keep the first and rewrite subsequent uses
// to it. The scope stack pops on block end, so a duplicate load inside a
// nested block never gets folded into one from an unrelated sibling scope.
type DeduplicatingReducer struct{}

func (*DeduplicatingReducer) Name() string { return "DeduplicatingReducer" }

// dedupableOps is the set of side-effect-free, single-output loads this
// reducer treats as "named variable loads" (spec.md §4.4.8): their op name,
// inputs and immediate value together fully determine the value produced,
// so two instructions with equal signatures are interchangeable.
var dedupableOps = map[string]bool{
	"LoadBuiltin":   true,
	"LoadUndefined": true,
	"LoadInt":       true,
	"LoadString":    true,
}

func (r *DeduplicatingReducer) Reduce(h *Helper) {
	code := h.Code()
	instrs := code.Instructions()

	var frames []map[string]ir.VarId
	push := func() { frames = append(frames, map[string]ir.VarId{}) }
	pop := func() {
		if len(frames) > 0 {
			frames = frames[:len(frames)-1]
		}
	}
	push()

	toNop := map[int]bool{}
	substitute := map[ir.VarId]ir.VarId{}

	for i, ins := range instrs {
		if dedupableOps[ins.Op] && len(ins.Outputs) == 1 && !h.Pinned(i) {
			key := signature(ins)
			found := false
			for f := len(frames) - 1; f >= 0 && !found; f-- {
				if existing, ok := frames[f][key]; ok {
					substitute[ins.Outputs[0]] = resolveChain(substitute, existing)
					toNop[i] = true
					found = true
				}
			}
			if !found {
				frames[len(frames)-1][key] = ins.Outputs[0]
			}
		}
		switch ins.Def().Kind {
		case ir.BlockBegin:
			push()
		case ir.BlockEnd:
			pop()
		}
	}
	if len(toNop) == 0 {
		return
	}

	cand := code.Clone()
	for i := range instrs {
		ins := cand.At(i)
		for j, v := range ins.Inputs {
			if nv, ok := substitute[v]; ok {
				ins.Inputs[j] = nv
			}
		}
		if toNop[i] {
			ins = ir.NewNopFor(ins)
		}
		cand.ReplaceAt(i, ins)
	}
	h.TestAndCommit(cand, h.pinned)
}

func resolveChain(substitute map[ir.VarId]ir.VarId, v ir.VarId) ir.VarId {
	for {
		nv, ok := substitute[v]
		if !ok {
			return v
		}
		v = nv
	}
}

func signature(ins ir.Instruction) string {
	return fmt.Sprintf("%s|%v|%d", ins.Op, ins.Inputs, ins.Imm)
}
