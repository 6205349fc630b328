package minimizer

import "github.com/covfuzz/covfuzz/ir"

// ReassignmentReducer implements spec.md §4.4.6: resolves chains like
// `v1 = expr; v2 = v1; use(v2)` into `use(v1)`, so the now-redundant
// Reassign (and, once DeduplicatingReducer/GenericInstructionReducer run,
// the redundant variable itself) can be dropped.
type ReassignmentReducer struct{}

func (*ReassignmentReducer) Name() string { return "ReassignmentReducer" }

func (r *ReassignmentReducer) Reduce(h *Helper) {
	code := h.Code()
	instrs := code.Instructions()

	var frames []map[ir.VarId]ir.VarId
	push := func() { frames = append(frames, map[ir.VarId]ir.VarId{}) }
	pop := func() {
		if len(frames) > 0 {
			frames = frames[:len(frames)-1]
		}
	}
	push() // outermost scope.

	resolve := func(v ir.VarId) ir.VarId {
		for i := len(frames) - 1; i >= 0; i-- {
			if src, ok := frames[i][v]; ok {
				return src
			}
		}
		return v
	}
	invalidate := func(dst ir.VarId) {
		for _, f := range frames {
			for k, v := range f {
				if v == dst {
					delete(f, k)
				}
			}
		}
	}

	rewritten := make([]ir.Instruction, len(instrs))
	changed := false
	for i, ins := range instrs {
		out := ins.Clone()
		if ins.Op == "Reassign" && len(ins.Inputs) >= 2 {
			// Don't rewrite the reassign's own inputs.
			dst, src := ins.Inputs[0], resolve(ins.Inputs[1])
			invalidate(dst)
			frames[len(frames)-1][dst] = src
			rewritten[i] = out
		} else {
			for j, v := range out.Inputs {
				if nv := resolve(v); nv != v {
					out.Inputs[j] = nv
					changed = true
				}
			}
			rewritten[i] = out
		}
		switch ins.Def().Kind {
		case ir.BlockBegin:
			push()
		case ir.BlockEnd:
			pop()
		}
	}
	if !changed {
		return
	}
	cand := code.Clone()
	for i, ins := range rewritten {
		cand.ReplaceAt(i, ins)
	}
	h.TestAndCommit(cand, h.pinned)
}
