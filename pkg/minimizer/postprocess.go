package minimizer

import (
	"math/rand"

	"github.com/covfuzz/covfuzz/ir"
)

// MinimizationPostProcessor implements spec.md §4.4.9: a single pass that
// runs once after the reducer fixpoint, not as part of it. Where the
// reducers only ever shrink, this occasionally grows the program back --
// restoring a trailing Return, or giving a bare call/CreateArray some
// content -- whenever that still reproduces the target aspects, since a
// minimized testcase that crashes for an unintuitive reason is harder to
// read than one with an explicit return value or a concrete argument.
type MinimizationPostProcessor struct {
	Rand *rand.Rand
}

// Run applies every enrichment it can find, keeping each one only if the
// oracle still agrees. It does not strip leftover nops; Helper.Finalize
// does that.
func (p *MinimizationPostProcessor) Run(h *Helper) {
	r := p.Rand
	if r == nil {
		r = rand.New(rand.NewSource(1))
	}
	p.insertMissingReturns(h, r)
	p.populateEmptyCalls(h, r)
	p.populateEmptyArrays(h, r)
}

// insertMissingReturns finds plain-function bodies that fall off the end
// without a top-level Return and tries inserting `Return <random visible
// variable>` just before the closing instruction.
func (p *MinimizationPostProcessor) insertMissingReturns(h *Helper, r *rand.Rand) {
	for {
		groups, err := ir.FindBlockGroups(h.Code().Instructions())
		if err != nil {
			return
		}
		committed := false
		for _, g := range ir.AllGroups(groups) {
			if g.Class != ir.FunctionBlock || h.Code().At(g.Begin).Op != "BeginPlainFunction" {
				continue
			}
			if hasTopLevelReturn(h.Code(), g) {
				continue
			}
			visible := visibleVariables(h.Code(), g)
			if len(visible) == 0 {
				continue
			}
			v := visible[r.Intn(len(visible))]
			ret := ir.Instruction{Op: "Return", Inputs: []ir.VarId{v}}
			if h.ReplaceRange(g.End, g.End, []ir.Instruction{ret}) {
				committed = true
				break
			}
		}
		if !committed {
			return
		}
	}
}

func hasTopLevelReturn(code *ir.Code, g *ir.BlockGroup) bool {
	for i := g.Begin + 1; i < g.End; i++ {
		if code.At(i).Op == "Return" && !insideAnyRange(i, g.Children) {
			return true
		}
	}
	return false
}

func insideAnyRange(i int, children []*ir.BlockGroup) bool {
	for _, c := range children {
		if i > c.Begin && i < c.End {
			return true
		}
	}
	return false
}

// visibleVariables collects every variable defined by g's opening
// instruction (the function value and its parameters) or anywhere inside
// its body, nested blocks included, in definition order.
func visibleVariables(code *ir.Code, g *ir.BlockGroup) []ir.VarId {
	var out []ir.VarId
	for i := g.Begin; i < g.End; i++ {
		ins := code.At(i)
		out = append(out, ins.Outputs...)
		out = append(out, ins.InnerOutputs...)
	}
	return out
}

// populateEmptyCalls finds CallFunction/CallMethod/Construct instructions
// carrying no arguments (just the callee, or callee+receiver for
// CallMethod) and, with probability 1/2, tries inserting one freshly loaded
// argument ahead of the call.
func (p *MinimizationPostProcessor) populateEmptyCalls(h *Helper, r *rand.Rand) {
	argStartIndex := map[string]int{"CallFunction": 1, "CallMethod": 2, "Construct": 1}
	for i := 0; i < h.Code().Len(); i++ {
		ins := h.Code().At(i)
		start, ok := argStartIndex[ins.Op]
		if !ok || h.Pinned(i) || len(ins.Inputs) != start {
			continue
		}
		if r.Intn(2) != 0 {
			continue
		}
		temp := nextVarId(h.Code())
		loader := randomLoader(temp, r)
		newCall := ins.Clone()
		newCall.Inputs = append(append([]ir.VarId(nil), ins.Inputs...), temp)
		h.ReplaceRange(i, i+1, []ir.Instruction{loader, newCall})
	}
}

// populateEmptyArrays finds CreateArray instructions with no elements and
// tries inserting 1-5 freshly loaded values.
func (p *MinimizationPostProcessor) populateEmptyArrays(h *Helper, r *rand.Rand) {
	for i := 0; i < h.Code().Len(); i++ {
		ins := h.Code().At(i)
		if ins.Op != "CreateArray" || h.Pinned(i) || len(ins.Inputs) != 0 {
			continue
		}
		n := 1 + r.Intn(5)
		repl := make([]ir.Instruction, 0, n+1)
		args := make([]ir.VarId, 0, n)
		next := nextVarId(h.Code())
		for k := 0; k < n; k++ {
			repl = append(repl, randomLoader(next, r))
			args = append(args, next)
			next++
		}
		newArr := ins.Clone()
		newArr.Inputs = args
		repl = append(repl, newArr)
		h.ReplaceRange(i, i+1, repl)
	}
}

// randomLoader builds a small literal-producing instruction bound to v, used
// to manufacture plausible arguments out of thin air.
func randomLoader(v ir.VarId, r *rand.Rand) ir.Instruction {
	switch r.Intn(3) {
	case 0:
		return ir.Instruction{Op: "LoadInt", Outputs: []ir.VarId{v}, Imm: int64(r.Intn(100))}
	case 1:
		return ir.Instruction{Op: "LoadString", Outputs: []ir.VarId{v}, Imm: int64(r.Intn(8))}
	default:
		return ir.Instruction{Op: "LoadUndefined", Outputs: []ir.VarId{v}}
	}
}
