package minimizer

import (
	"math/rand"

	"github.com/covfuzz/covfuzz/aspects"
	"github.com/covfuzz/covfuzz/ir"
)

// Options configures one Minimize call.
type Options struct {
	Config
	// MinimizationLimit is the fraction of instructions randomly pinned
	// before reduction begins (spec.md §4.4's keep-alive set). Zero pins
	// nothing.
	MinimizationLimit float64
	Rand              *rand.Rand
	// Reducers overrides the default eight-reducer pipeline; nil uses
	// DefaultReducers().
	Reducers []Reducer
}

// Minimize implements spec.md §4.4 end to end: compute the keep-alive set,
// run every reducer to a fixpoint (capped at maxFixpointIterations), run the
// post-processor, and return the finalized program. Returns ErrNotConverged
// if the fixpoint cap is hit with reducers still committing changes -- the
// caller should log this and keep the last program TestAndCommit actually
// accepted rather than discard the work done so far.
func Minimize(program *ir.Program, target *aspects.ProgramAspects, opts Options) (*ir.Program, error) {
	r := opts.Rand
	if r == nil {
		r = rand.New(rand.NewSource(1))
	}
	reducers := opts.Reducers
	if reducers == nil {
		reducers = DefaultReducers()
	}

	code := ir.NewCode(program)
	pinned := ComputeKeepAlive(code, opts.MinimizationLimit, r)
	h := NewHelper(opts.Config, program, target, pinned)

	converged := false
	for iter := 0; iter < maxFixpointIterations; iter++ {
		h.ResetDidReduce()
		for _, red := range reducers {
			red.Reduce(h)
		}
		if !h.DidReduce() {
			converged = true
			break
		}
	}

	post := &MinimizationPostProcessor{Rand: r}
	post.Run(h)

	result := h.Finalize()
	if !converged {
		return result, ErrNotConverged
	}
	return result, nil
}
