package corpus

import (
	"math/rand"

	"github.com/covfuzz/covfuzz/aspects"
)

// Persistent is the trivial strategy (spec.md §9 closed set
// {Ring, MAB, Markov, Persistent}): uniform random selection, no eviction
// ever. Used for a corpus whose entries are curated externally (e.g. a seed
// corpus loaded once at startup) and must never shrink on its own.
type Persistent struct{}

func (s *Persistent) Name() string { return "persistent" }

func (s *Persistent) Added(c *Corpus, entry *CorpusEntry, progAspects *aspects.ProgramAspects) {}

func (s *Persistent) SelectForMutation(c *Corpus, r *rand.Rand) *CorpusEntry {
	return c.entryAt(r.Intn(c.numEntries()))
}

func (s *Persistent) SelectForSplicing(c *Corpus, r *rand.Rand) *CorpusEntry {
	return s.SelectForMutation(c, r)
}
