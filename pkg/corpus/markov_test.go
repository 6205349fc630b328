package corpus_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/covfuzz/covfuzz/aspects"
	"github.com/covfuzz/covfuzz/executor"
	"github.com/covfuzz/covfuzz/ir"
	"github.com/covfuzz/covfuzz/pkg/corpus"
)

// TestMarkovWarmUpScenario follows spec.md §8 end-to-end scenario 2: a
// corpus with the Markov scheduler; add one program hitting edges {1,2} and
// run through the 250-execution warm-up (not checked call by call, since
// warm-up picks uniformly among it and New()'s seed program). After the
// warm-up and a new program hitting {3}, the rarest edge holder must be
// queued.
func TestMarkovWarmUpScenario(t *testing.T) {
	var nextEdges []aspects.EdgeId
	evaluator := aspects.NewFakeEvaluator(func(exec *executor.Execution) []aspects.EdgeId {
		return nextEdges
	})
	evaluator.EnableEdgeTracking()

	strategy := &corpus.MarkovEdgeRarity{
		DesiredProportion: 10,
		DropoutRate:       0,
		Evaluator:         evaluator,
		Rand:              rand.New(rand.NewSource(1)),
	}
	c := corpus.New(corpus.Config{
		MinSize:   1,
		Strategy:  strategy,
		Evaluator: evaluator,
		Rand:      rand.New(rand.NewSource(2)),
	})

	progA := ir.NewProgram([]ir.Instruction{{Op: "LoadInt", Outputs: []ir.VarId{0}}})
	require.NoError(t, c.Add(progA, &aspects.ProgramAspects{NewEdges: []aspects.EdgeId{1, 2}}))

	// Warm-up selection is uniform random over every entry, which now
	// includes the seed program New() guarantees (spec.md §3), so it no
	// longer returns progA on every single call -- just drive totalExecs
	// up to the baseline without yet touching the rarity queue.
	for i := 0; i < 249; i++ {
		_, err := c.RandomForMutation()
		require.NoError(t, err)
	}

	progB := ir.NewProgram([]ir.Instruction{{Op: "LoadString", Outputs: []ir.VarId{0}}})
	require.NoError(t, c.Add(progB, &aspects.ProgramAspects{NewEdges: []aspects.EdgeId{3}}))

	// Drive the evaluator's hit-count vector so edges {1,2} are common and
	// edge 3 is rare, the way 249 warm-up executions of progA plausibly
	// would.
	for i := 0; i < 20; i++ {
		nextEdges = []aspects.EdgeId{1, 2}
		evaluator.Evaluate(&executor.Execution{Outcome: executor.Succeeded})
	}
	nextEdges = []aspects.EdgeId{3}
	evaluator.Evaluate(&executor.Execution{Outcome: executor.Succeeded})

	// The 250th call is the last warm-up one; from the 251st on, selection consults
	// the queue, which regenerateQueue should have populated from edge 3's
	// first discoverer (progB), since edge 3 has the lowest hit count.
	sawB := false
	for i := 0; i < 50; i++ {
		entry, err := c.RandomForMutation()
		require.NoError(t, err)
		if entry.Program == progB {
			sawB = true
		}
	}
	require.True(t, sawB, "expected the rarest-edge holder (progB) to surface in the post-warm-up queue")
}

func TestMarkovSelectionPastBaselineWithoutEvaluator(t *testing.T) {
	s := &corpus.MarkovEdgeRarity{}
	// energyBase is unexported; exercised indirectly via repeated selection
	// against a tiny corpus to make sure SelectForMutation never panics
	// once past the baseline even with a nil Evaluator (falls back to
	// uniform selection).
	c := corpus.New(corpus.Config{MinSize: 1, Strategy: s, Rand: rand.New(rand.NewSource(3))})
	require.NoError(t, c.Add(ir.NewProgram([]ir.Instruction{{Op: "LoadInt", Outputs: []ir.VarId{0}}}), nil))
	for i := 0; i < 260; i++ {
		_, err := c.RandomForMutation()
		require.NoError(t, err)
	}
}
