package minimizer

// VariadicInputReducer implements spec.md §4.4.7: for each variadic op,
// iteratively drop the last variadic input until the test fails, never
// going below the op's statically required minimum arity.
type VariadicInputReducer struct{}

func (*VariadicInputReducer) Name() string { return "VariadicInputReducer" }

func (*VariadicInputReducer) Reduce(h *Helper) {
	for i := 0; i < h.Code().Len(); i++ {
		if h.Pinned(i) {
			continue
		}
		ins := h.Code().At(i)
		def := ins.Def()
		if !def.IsVariadic {
			continue
		}
		for len(ins.Inputs) > def.MinInputs {
			candidate := ins
			candidate.Inputs = ins.Inputs[:len(ins.Inputs)-1]
			if !h.TryReplacing(i, candidate) {
				break
			}
			ins = h.Code().At(i)
		}
	}
}
