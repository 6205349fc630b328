package minimizer

// GenericInstructionReducer implements spec.md §4.4.1: for each non-pinned
// instruction, try nopping it in isolation. Succeeds when the instruction
// was dead with respect to the preserved aspect.
type GenericInstructionReducer struct{}

func (*GenericInstructionReducer) Name() string { return "GenericInstructionReducer" }

func (*GenericInstructionReducer) Reduce(h *Helper) {
	for i := 0; i < h.Code().Len(); i++ {
		if h.Pinned(i) || h.Code().At(i).IsNop() {
			continue
		}
		h.TryNopping([]int{i})
	}
}
