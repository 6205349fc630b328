package minimizer

import "github.com/covfuzz/covfuzz/ir"

// InliningReducer implements spec.md §4.4.5: finds plain functions called
// exactly once, never used as a value and never recursive, and inlines
// their body at the call site. The function definition itself is left in
// place (now unreachable) for GenericInstructionReducer/BlockReducer to nop
// away over the next few fixpoint rounds, rather than removed here
// directly -- keeping each reducer's job to one concern.
type InliningReducer struct{}

func (*InliningReducer) Name() string { return "InliningReducer" }

func (r *InliningReducer) Reduce(h *Helper) {
	for {
		if !r.inlineOneCandidate(h) {
			return
		}
	}
}

func (r *InliningReducer) inlineOneCandidate(h *Helper) bool {
	groups, err := ir.FindBlockGroups(h.Code().Instructions())
	if err != nil {
		return false
	}
	for _, g := range ir.AllGroups(groups) {
		if g.Class != ir.FunctionBlock || h.Code().At(g.Begin).Op != "BeginPlainFunction" {
			continue
		}
		begin := h.Code().At(g.Begin)
		if len(begin.Outputs) != 1 {
			continue
		}
		fnVar := begin.Outputs[0]

		callIdx, ok := soleCallSite(h.Code(), fnVar, g)
		if !ok {
			continue
		}
		if r.tryInline(h, g, callIdx, fnVar) {
			return true
		}
	}
	return false
}

// soleCallSite reports the single call site that uses fnVar as its callee
// input, provided fnVar never appears anywhere else (as an argument, a
// Reassign, a Return value, or a second call) and never appears inside its
// own body (which would make it recursive).
func soleCallSite(code *ir.Code, fnVar ir.VarId, fn *ir.BlockGroup) (int, bool) {
	callIdx := -1
	uses := 0
	for i := 0; i < code.Len(); i++ {
		ins := code.At(i)
		usesHere := 0
		for _, v := range ins.Inputs {
			if v == fnVar {
				usesHere++
			}
		}
		if usesHere == 0 {
			continue
		}
		if i > fn.Begin && i < fn.End {
			// fnVar referenced from inside its own body: recursive.
			return 0, false
		}
		uses += usesHere
		if ins.Op == "CallFunction" && len(ins.Inputs) > 0 && ins.Inputs[0] == fnVar {
			if callIdx != -1 {
				return 0, false // already has a call site; more than one.
			}
			callIdx = i
		} else {
			return 0, false // used as a value somewhere other than the call.
		}
	}
	if callIdx == -1 || uses != 1 {
		return 0, false
	}
	return callIdx, true
}

func (r *InliningReducer) tryInline(h *Helper, fn *ir.BlockGroup, callIdx int, fnVar ir.VarId) bool {
	if h.Pinned(callIdx) {
		return false
	}
	for i := fn.Begin; i <= fn.End; i++ {
		if h.Pinned(i) {
			return false
		}
	}
	begin := h.Code().At(fn.Begin)
	call := h.Code().At(callIdx)
	params := begin.InnerOutputs
	args := call.Inputs[1:]

	subst := map[ir.VarId]ir.VarId{}
	var undefineds []ir.Instruction
	nextTemp := nextVarId(h.Code())
	for i, p := range params {
		if i < len(args) {
			subst[p] = args[i]
		} else {
			u := ir.Instruction{Op: "LoadUndefined", Outputs: []ir.VarId{nextTemp}}
			undefineds = append(undefineds, u)
			subst[p] = nextTemp
			nextTemp++
		}
	}

	var callOutput ir.VarId
	hasOutput := len(call.Outputs) == 1
	if hasOutput {
		callOutput = call.Outputs[0]
	}

	body := h.Code().Instructions()[fn.Begin+1 : fn.End]
	inlined := make([]ir.Instruction, 0, len(body))
	sawReturn := false
	for _, ins := range body {
		rewritten := ins.Clone()
		for i, v := range rewritten.Inputs {
			if nv, ok := subst[v]; ok {
				rewritten.Inputs[i] = nv
			}
		}
		if rewritten.Op == "Return" {
			sawReturn = true
			if hasOutput {
				rewritten = ir.Instruction{Op: "Reassign", Inputs: []ir.VarId{callOutput, rewritten.Inputs[0]}}
			} else {
				rewritten = ir.Instruction{Op: "Nop"}
			}
		}
		inlined = append(inlined, rewritten)
	}
	if hasOutput && !sawReturn {
		// The function fell off the end without returning; preserve the
		// call's output arity with a canonical nop rather than leaving it
		// undefined.
		inlined = append(inlined, ir.Instruction{Op: "Nop", Outputs: []ir.VarId{callOutput}})
	}

	replacement := append(append([]ir.Instruction(nil), undefineds...), inlined...)
	return h.ReplaceRange(callIdx, callIdx+1, replacement)
}
