package minimizer

import "github.com/covfuzz/covfuzz/ir"

// BlockReducer implements spec.md §4.4.2: for each block group, attempt a
// class-specific reduction. Groups are re-discovered from scratch at the
// start of Reduce and processed outermost-first so a successful outer
// removal doesn't leave reducers operating on stale indices into a group
// that no longer exists; if a later group's indices have shifted because an
// earlier one committed, FindBlockGroups is re-run.
type BlockReducer struct{}

func (*BlockReducer) Name() string { return "BlockReducer" }

func (*BlockReducer) Reduce(h *Helper) {
	for {
		groups, err := ir.FindBlockGroups(h.Code().Instructions())
		if err != nil {
			return
		}
		flat := ir.AllGroups(groups)
		committed := false
		for _, g := range flat {
			if reduceGroup(h, g) {
				committed = true
				break // indices may have shifted; re-discover groups.
			}
		}
		if !committed {
			return
		}
	}
}

func reduceGroup(h *Helper, g *ir.BlockGroup) bool {
	switch g.Class {
	case ir.LoopBlock:
		return reduceLoopBlock(h, g)
	case ir.TryCatchFinallyBlock:
		return reduceTryCatchFinally(h, g)
	case ir.CodeStringBlock:
		return reduceCodeString(h, g)
	default: // IfBlock, WithBlock, FunctionBlock, ClassBlock, PlainBlock
		return h.TryNopping([]int{g.Begin, g.End})
	}
}

// reduceLoopBlock implements spec.md §4.4.2's loop case: remove the begin +
// end, and every break/continue directly in the body (not inside a nested
// block, which has its own loop context).
func reduceLoopBlock(h *Helper, g *ir.BlockGroup) bool {
	indices := []int{g.Begin, g.End}
	nested := childRanges(g)
	for i := g.Begin + 1; i < g.End; i++ {
		if insideAny(i, nested) {
			continue
		}
		op := h.Code().At(i).Op
		if op == "Break" || op == "Continue" {
			indices = append(indices, i)
		}
	}
	return h.TryNopping(indices)
}

// reduceTryCatchFinally implements spec.md §4.4.2's three-stage escalation.
func reduceTryCatchFinally(h *Helper, g *ir.BlockGroup) bool {
	markers := []int{g.Begin, g.End}
	tryEnd := g.End
	for i := g.Begin + 1; i < g.End; i++ {
		if insideAny(i, g.Children) {
			continue // a nested try's markers belong to that group.
		}
		switch h.Code().At(i).Op {
		case "BeginCatch", "BeginFinally":
			markers = append(markers, i)
			if tryEnd == g.End {
				tryEnd = i
			}
		}
	}
	// (a) remove only the markers.
	if h.TryNopping(markers) {
		return true
	}
	// (b) also remove the last non-nop instruction of the try body.
	if last, ok := lastNonNopBefore(h, tryEnd, g.Begin+1); ok {
		if h.TryNopping(append(append([]int(nil), markers...), last)) {
			return true
		}
	}
	// (c) remove the entire try body (everything strictly between the
	// markers, plus the markers themselves).
	all := make([]int, 0, g.Len())
	for i := g.Begin; i <= g.End; i++ {
		all = append(all, i)
	}
	return h.TryNopping(all)
}

// reduceCodeString implements spec.md §4.4.2's code-string case.
func reduceCodeString(h *Helper, g *ir.BlockGroup) bool {
	begin := h.Code().At(g.Begin)
	loadEmpty := ir.Instruction{Op: "LoadString", Outputs: append([]ir.VarId(nil), begin.Outputs...)}
	if h.TryReplacements([]Replacement{
		{Index: g.Begin, Instruction: loadEmpty},
		{Index: g.End, Instruction: h.Nop(h.Code().At(g.End))},
	}) {
		return true
	}
	// Fall back to generic begin+end removal, then (if still failing) the
	// whole block including its content.
	if h.TryNopping([]int{g.Begin, g.End}) {
		return true
	}
	all := make([]int, 0, g.Len())
	for i := g.Begin; i <= g.End; i++ {
		all = append(all, i)
	}
	return h.TryNopping(all)
}

func childRanges(g *ir.BlockGroup) []*ir.BlockGroup {
	return g.Children
}

func insideAny(i int, groups []*ir.BlockGroup) bool {
	for _, g := range groups {
		if i >= g.Begin && i <= g.End {
			return true
		}
	}
	return false
}

func lastNonNopBefore(h *Helper, end, start int) (int, bool) {
	for i := end - 1; i >= start; i-- {
		if !h.Code().At(i).IsNop() {
			return i, true
		}
	}
	return 0, false
}
