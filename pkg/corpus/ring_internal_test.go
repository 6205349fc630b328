package corpus

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/covfuzz/covfuzz/ir"
)

func loadIntProgramForRing(op string) *ir.Program {
	return ir.NewProgram([]ir.Instruction{
		{Op: op, Outputs: []ir.VarId{0}},
	})
}

// TestRingCorpusCleanupScenario implements spec.md §8 end-to-end scenario 1
// verbatim: min_size=2, max_size=4, min_mutations_per_sample=3, programs
// A,B,C,D with only A and B aged past the threshold. Cleanup must retain C,
// D and exactly one of A/B -- a size-3 result, not the size-4 no-op that a
// MaxSize-gated Cleanup would silently produce. This is an internal test
// (package corpus, not corpus_test) because driving this deterministically
// needs direct control over which entries age, something the public API
// (uniform-random SelectForMutation) deliberately doesn't expose.
func TestRingCorpusCleanupScenario(t *testing.T) {
	strategy := &BasicRing{MaxSize: 4, MinMutationsPerSample: 3}
	c := New(Config{
		MinSize:  2,
		Strategy: strategy,
		Rand:     rand.New(rand.NewSource(1)),
	})

	// New() seeds one trivial program (spec.md §3), but spec.md §8 scenario
	// 1 is stated in terms of exactly four entries A-D with nothing else
	// present; drop the seed so the scenario's counts (and the maintainer's
	// expected post-cleanup size) apply as literally described.
	c.entries = nil
	c.byHash = map[[32]byte]*CorpusEntry{}

	progA := loadIntProgramForRing("LoadInt")
	progB := loadIntProgramForRing("LoadString")
	progC := loadIntProgramForRing("LoadBuiltin")
	progD := loadIntProgramForRing("LoadUndefined")

	require.NoError(t, c.Add(progA, nil))
	require.NoError(t, c.Add(progB, nil))
	require.NoError(t, c.Add(progC, nil))
	require.NoError(t, c.Add(progD, nil))
	require.Equal(t, 4, c.Size())

	// Age only A and B past MinMutationsPerSample; C and D stay fresh.
	hashA, hashB := progA.Hash(), progB.Hash()
	c.byHash[hashA].Age = 3
	c.byHash[hashB].Age = 3

	c.Cleanup()

	require.Equal(t, 3, c.Size())
	hashC, hashD := progC.Hash(), progD.Hash()
	_, hasC := c.byHash[hashC]
	_, hasD := c.byHash[hashD]
	require.True(t, hasC, "C must survive cleanup")
	require.True(t, hasD, "D must survive cleanup")
	_, hasA := c.byHash[hashA]
	_, hasB := c.byHash[hashB]
	require.True(t, hasA != hasB, "exactly one of A/B must survive cleanup")
}
