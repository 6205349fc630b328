// Package aspects defines the external coverage-evaluator contract
// (spec.md §3, §6). The real coverage evaluator instruments the target and
// is out of scope; this package fixes the ProgramAspects token and the
// Evaluator interface the corpus and minimizer are built against, plus an
// edge-set-based fake for tests.
package aspects

import (
	"sort"

	"github.com/covfuzz/covfuzz/executor"
)

// EdgeId is a control-flow edge in the instrumented target, the unit of
// coverage (GLOSSARY).
type EdgeId uint32

// ProgramAspects is the opaque token describing what was novel about one
// execution (spec.md §3). Two fields happen to be concretely useful for
// every scheduler strategy in pkg/corpus: the edges newly discovered, and
// the outcome class the program must keep reproducing. Callers outside this
// package should treat it as opaque and only use Evaluator.HasAspects.
type ProgramAspects struct {
	NewEdges []EdgeId
	Outcome  executor.Outcome
}

// Empty reports whether the aspects token carries nothing worth keeping.
func (a *ProgramAspects) Empty() bool {
	return a == nil || (len(a.NewEdges) == 0 && a.Outcome == executor.Succeeded)
}

// Evaluator maps an Execution to a set of edge ids and answers whether a
// later Execution still exhibits a previously captured ProgramAspects
// (spec.md §3, §6). It is the minimizer's oracle (spec.md §4.4).
type Evaluator interface {
	// Evaluate inspects an execution and returns the aspects it newly
	// established, or nil if nothing new was observed.
	Evaluate(exec *executor.Execution) *ProgramAspects
	// HasAspects reports whether exec still exhibits every property
	// captured by aspects.
	HasAspects(exec *executor.Execution, aspects *ProgramAspects) bool
	// EdgeCounts returns the current per-edge hit-count vector, used by the
	// Markov edge-rarity scheduler (spec.md §4.3). Implementations that do
	// not track edges may return nil.
	EdgeCounts() []uint32
	// EnableEdgeTracking turns on the bookkeeping EdgeCounts needs. Calling
	// it more than once is a no-op.
	EnableEdgeTracking()
}

// FakeEvaluator is a deterministic, in-memory Evaluator for tests. Coverage
// is modeled directly as the set of EdgeIds a test-supplied CoverageOf
// function reports for a program; "new" means not previously seen by this
// evaluator instance.
type FakeEvaluator struct {
	CoverageOf func(exec *executor.Execution) []EdgeId

	tracking bool
	counts   map[EdgeId]uint32
	seen     map[EdgeId]bool
}

func NewFakeEvaluator(coverageOf func(exec *executor.Execution) []EdgeId) *FakeEvaluator {
	return &FakeEvaluator{
		CoverageOf: coverageOf,
		seen:       map[EdgeId]bool{},
		counts:     map[EdgeId]uint32{},
	}
}

func (f *FakeEvaluator) EnableEdgeTracking() {
	f.tracking = true
}

func (f *FakeEvaluator) Evaluate(exec *executor.Execution) *ProgramAspects {
	edges := f.edgesFor(exec)
	var newEdges []EdgeId
	for _, e := range edges {
		f.counts[e]++
		if !f.seen[e] {
			f.seen[e] = true
			newEdges = append(newEdges, e)
		}
	}
	if len(newEdges) == 0 && exec.Outcome == 0 {
		return nil
	}
	sort.Slice(newEdges, func(i, j int) bool { return newEdges[i] < newEdges[j] })
	return &ProgramAspects{NewEdges: newEdges, Outcome: exec.Outcome}
}

func (f *FakeEvaluator) HasAspects(exec *executor.Execution, want *ProgramAspects) bool {
	if want == nil {
		return true
	}
	if exec.Outcome != want.Outcome {
		return false
	}
	have := map[EdgeId]bool{}
	for _, e := range f.edgesFor(exec) {
		have[e] = true
	}
	for _, e := range want.NewEdges {
		if !have[e] {
			return false
		}
	}
	return true
}

func (f *FakeEvaluator) EdgeCounts() []uint32 {
	if !f.tracking {
		return nil
	}
	max := EdgeId(0)
	for e := range f.counts {
		if e > max {
			max = e
		}
	}
	out := make([]uint32, max+1)
	for e, c := range f.counts {
		out[e] = c
	}
	return out
}

func (f *FakeEvaluator) edgesFor(exec *executor.Execution) []EdgeId {
	if f.CoverageOf == nil {
		return nil
	}
	return f.CoverageOf(exec)
}
