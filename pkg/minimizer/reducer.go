package minimizer

// Reducer is one pass of the fixpoint pipeline (spec.md §4.4). Reduce tries
// every opportunity it can find against h, committing each one that
// survives TestAndCommit; it never needs to report what it did, since
// Helper.DidReduce already tracks whether anything committed this round.
type Reducer interface {
	Name() string
	Reduce(h *Helper)
}

// DefaultReducers returns the eight reducers in the order spec.md §4.4
// mandates: Simplifying before Inlining (so Inlining only ever sees plain
// functions), and the rest following the teacher's own
// generic-then-specific pass ordering.
func DefaultReducers() []Reducer {
	return []Reducer{
		&GenericInstructionReducer{},
		&BlockReducer{},
		&SimplifyingReducer{},
		&LoopReducer{},
		&InliningReducer{},
		&ReassignmentReducer{},
		&VariadicInputReducer{},
		&DeduplicatingReducer{},
	}
}
