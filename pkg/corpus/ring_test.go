package corpus_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/covfuzz/covfuzz/ir"
	"github.com/covfuzz/covfuzz/pkg/corpus"
)

func loadIntProgram(v int64) *ir.Program {
	return ir.NewProgram([]ir.Instruction{
		{Op: "LoadInt", Outputs: []ir.VarId{0}},
	})
}

func TestRingSelectForMutationIncrementsAge(t *testing.T) {
	strategy := &corpus.BasicRing{}
	c := corpus.New(corpus.Config{MinSize: 1, Strategy: strategy, Rand: rand.New(rand.NewSource(2))})
	require.NoError(t, c.Add(loadIntProgram(1), nil))
	entry, err := c.RandomForMutation()
	require.NoError(t, err)
	require.EqualValues(t, 1, entry.Age)
}

// TestRingNewCorpusIsNeverEmpty implements spec.md §3's "the corpus is
// guaranteed non-empty" invariant: New seeds a trivial program, so
// RandomForMutation/RandomForSplicing succeed even before the caller's
// first Add.
func TestRingNewCorpusIsNeverEmpty(t *testing.T) {
	strategy := &corpus.BasicRing{}
	c := corpus.New(corpus.Config{MinSize: 1, Strategy: strategy})
	require.Equal(t, 1, c.Size())

	entry, err := c.RandomForMutation()
	require.NoError(t, err)
	require.False(t, entry.Program.Empty())

	entry, err = c.RandomForSplicing()
	require.NoError(t, err)
	require.False(t, entry.Program.Empty())
}

func TestRingCleanupRespectsMinSize(t *testing.T) {
	strategy := &corpus.BasicRing{MaxSize: 1}
	c := corpus.New(corpus.Config{MinSize: 2, Strategy: strategy})
	p1, p2, p3 := loadIntProgram(1), loadIntProgram(2), loadIntProgram(3)
	p2.Instructions[0].Op = "LoadString"
	p3.Instructions[0].Op = "LoadBuiltin"
	require.NoError(t, c.Add(p1, nil))
	require.NoError(t, c.Add(p2, nil))
	require.NoError(t, c.Add(p3, nil))

	c.Cleanup()
	require.GreaterOrEqual(t, c.Size(), 2)
}
