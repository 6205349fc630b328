package minimizer

import (
	"strings"

	"github.com/covfuzz/covfuzz/ir"
)

// SimplifyingReducer implements spec.md §4.4.3's three passes: collapsing
// special function kinds into plain functions (a prerequisite for
// InliningReducer, which only handles plain functions), single-instruction
// simplifications, and multi-instruction destructuring expansion.
type SimplifyingReducer struct{}

func (*SimplifyingReducer) Name() string { return "SimplifyingReducer" }

var functionKindRewrite = map[string]string{
	"BeginGenerator":      "BeginPlainFunction",
	"EndGenerator":        "EndPlainFunction",
	"BeginAsync":          "BeginPlainFunction",
	"EndAsync":            "EndPlainFunction",
	"BeginAsyncGenerator": "BeginPlainFunction",
	"EndAsyncGenerator":   "EndPlainFunction",
	"BeginArrow":          "BeginPlainFunction",
	"EndArrow":            "EndPlainFunction",
}

func (r *SimplifyingReducer) Reduce(h *Helper) {
	r.simplifyFunctionKinds(h)
	r.simplifySingleInstructions(h)
	r.expandDestructuring(h)
}

// simplifyFunctionKinds rewrites BeginGenerator/BeginAsync/BeginArrow/
// BeginAsyncGenerator (and their matching End) into BeginPlainFunction/
// EndPlainFunction, keeping the same parameter list. The body may become
// context-invalid for the kind it used to be (e.g. a Yield with no
// generator around it); that's tolerated, since the next TestAndCommit
// filters it via re-execution.
func (r *SimplifyingReducer) simplifyFunctionKinds(h *Helper) {
	for i := 0; i < h.Code().Len(); i++ {
		if h.Pinned(i) {
			continue
		}
		ins := h.Code().At(i)
		newOp, ok := functionKindRewrite[ins.Op]
		if !ok {
			continue
		}
		rewritten := ins
		rewritten.Op = newOp
		h.TryReplacing(i, rewritten)
	}
}

func (r *SimplifyingReducer) simplifySingleInstructions(h *Helper) {
	for i := 0; i < h.Code().Len(); i++ {
		if h.Pinned(i) {
			continue
		}
		ins := h.Code().At(i)
		if simplified, ok := simplifyOne(ins); ok {
			h.TryReplacing(i, simplified)
		}
	}
}

func simplifyOne(ins ir.Instruction) (ir.Instruction, bool) {
	changed := false
	out := ins

	switch {
	case out.Op == "CreateArrayWithSpread":
		out.Op = "CreateArray"
		changed = true
	case out.Op == "Construct":
		out.Op = "CallFunction"
		changed = true
	case strings.HasSuffix(out.Op, "WithSpread"):
		out.Op = strings.TrimSuffix(out.Op, "WithSpread")
		changed = true
	}
	if out.HasFlag(ir.FlagStrict) {
		out.Flags &^= ir.FlagStrict
		changed = true
	}
	if out.HasFlag(ir.FlagNamed) {
		out.Flags &^= ir.FlagNamed
		changed = true
	}
	if out.Def().Guardable && out.HasFlag(ir.FlagGuarded) {
		out.Flags &^= ir.FlagGuarded
		changed = true
	}
	return out, changed
}

// expandDestructuring implements spec.md §4.4.3's multi-instruction pass:
// DestructObject{p1,p2,...} becomes individual GetPropertys, DestructArray
// becomes GetElements, preserving the rest element (if any -- modeled here
// as the instruction's last input/output pair, a residual one-property
// DestructObject/DestructArray) so later reducers still have something to
// chew on rather than silently dropping a semantic difference.
func (r *SimplifyingReducer) expandDestructuring(h *Helper) {
	for i := 0; i < h.Code().Len(); i++ {
		if h.Pinned(i) {
			continue
		}
		ins := h.Code().At(i)
		var expandOp string
		switch ins.Op {
		case "DestructObject":
			expandOp = "GetProperty"
		case "DestructArray":
			expandOp = "GetElement"
		default:
			continue
		}
		if len(ins.Outputs) == 0 {
			continue
		}
		obj := ins.Inputs[0]
		replacement := make([]ir.Instruction, 0, len(ins.Outputs))
		for _, out := range ins.Outputs[:len(ins.Outputs)-1] {
			replacement = append(replacement, ir.Instruction{
				Op:      expandOp,
				Inputs:  []ir.VarId{obj},
				Outputs: []ir.VarId{out},
			})
		}
		// Preserve the rest element as a tiny residual destructuring over
		// the same object, still able to be further reduced later.
		replacement = append(replacement, ir.Instruction{
			Op:      ins.Op,
			Inputs:  []ir.VarId{obj},
			Outputs: ins.Outputs[len(ins.Outputs)-1:],
		})
		h.ReplaceRange(i, i+1, replacement)
	}
}
