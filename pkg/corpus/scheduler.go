package corpus

import (
	"math/rand"

	"github.com/covfuzz/covfuzz/aspects"
)

// Strategy is the pluggable scheduling policy behind the Corpus (spec.md
// §4.1 "Scheduler strategies (core) -- pluggable behind the corpus
// interface"). Implementations are a closed set (spec.md §9): Ring, MAB,
// Markov, Persistent. A sum type is preferred there over an open interface
// registry precisely because the set is bounded and known; Strategy is kept
// as an interface only because each variant's internal state shape differs
// enough that a tagged union of structs would need the same method dispatch
// anyway, and because it lets each strategy's tests run against the
// interface in isolation (see ring_test.go, mab_test.go, markov_test.go).
//
// Every method below runs with Corpus.mu already held; implementations must
// not call back into exported *Corpus methods (those re-lock).
type Strategy interface {
	Name() string

	// Added is called once, right after entry has been appended to
	// c.entries, so the strategy can register it as a new arm/queue member.
	// progAspects is the token Add received for this entry (may be nil);
	// the Markov strategy uses it to record first-discoverer edges.
	Added(c *Corpus, entry *CorpusEntry, progAspects *aspects.ProgramAspects)

	// SelectForMutation returns the entry this strategy wants mutated next.
	// c.entries is guaranteed non-empty.
	SelectForMutation(c *Corpus, r *rand.Rand) *CorpusEntry

	// SelectForSplicing returns a secondary entry for splicing. The default
	// behaviour (used by strategies that don't implement splicingStrategy)
	// is the same distribution as SelectForMutation (spec.md §4.1).
	SelectForSplicing(c *Corpus, r *rand.Rand) *CorpusEntry
}

// cleanupStrategy is implemented by strategies that run periodic
// maintenance over the corpus's own entries (spec.md §4.1 "Cleanup policy
// (ring strategy)"). MAB and Markov maintain their own internal state
// instead and do not implement this.
type cleanupStrategy interface {
	Cleanup(c *Corpus)
}
