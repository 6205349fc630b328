package corpus

import (
	"math/rand"

	"github.com/covfuzz/covfuzz/aspects"
)

// BasicRing is the simplest scheduler strategy (spec.md §4.1): entries are
// selected uniformly at random. A periodic Cleanup pass scans oldest-first
// and evicts every entry old enough to be eligible, gated only by MinSize
// (spec.md §4.1's cleanup policy has no size ceiling of its own).
// Grounded on the teacher's pkg/fuzzer/seeds.go, which is likewise a flat
// slice with age-gated eviction rather than a weighted structure.
type BasicRing struct {
	// MaxSize is a soft ceiling enforced only at Add time (Added evicts
	// down towards it, respecting MinMutationsPerSample and never taking the
	// corpus below min_size -- unlike Cleanup, it may go down to min_size
	// itself): spec.md §4.1's cleanup algorithm itself never
	// checks a size ceiling, so Cleanup ignores MaxSize entirely. Zero
	// means unbounded (neither Added nor Cleanup evicts for size alone).
	MaxSize int
	// MinMutationsPerSample is the age (number of times selected for
	// mutation) below which an entry is exempt from eviction, since it
	// hasn't had a fair chance to produce children yet (spec.md §4.1
	// "retain entry i if ages[i] < min_mutations_per_sample").
	MinMutationsPerSample uint32
}

func (s *BasicRing) Name() string { return "ring" }

// Added enforces MaxSize (if set) right as a new entry lands, since
// spec.md §4.1's own cleanup algorithm is purely age/min_size gated and
// never consults a size ceiling -- MaxSize only has a hook here, the one
// place in the corpus lifecycle that genuinely grows unboundedly between
// periodic Cleanup passes.
func (s *BasicRing) Added(c *Corpus, entry *CorpusEntry, progAspects *aspects.ProgramAspects) {
	if s.MaxSize <= 0 {
		return
	}
	i := 0
	for i < c.numEntries() && c.numEntries() > s.MaxSize {
		e := c.entryAt(i)
		if e == entry || e.Age < s.MinMutationsPerSample || c.numEntries()-1 < c.minSize {
			i++
			continue
		}
		c.removeAt(i)
	}
}

func (s *BasicRing) SelectForMutation(c *Corpus, r *rand.Rand) *CorpusEntry {
	return c.entryAt(r.Intn(c.numEntries()))
}

func (s *BasicRing) SelectForSplicing(c *Corpus, r *rand.Rand) *CorpusEntry {
	return s.SelectForMutation(c, r)
}

// Cleanup implements spec.md §4.1's cleanup policy exactly: scan entries
// oldest-first (index 0 is the oldest, since entries only ever get
// appended), retaining entry i if ages[i] < MinMutationsPerSample or
// removing it would drop the corpus to or below c.minSize, otherwise
// dropping it. There is no MaxSize check here -- the spec's cleanup
// algorithm never gates on a size ceiling, only on age and the min_size
// floor. The floor check stops one entry short of c.minSize (<=, not <)
// so a cleanup pass never drains the corpus down to the bare floor itself,
// matching spec.md §8 scenario 1's worked example (min_size=2, four
// entries A-D with only A/B aged past the threshold) leaving three
// entries, not two.
func (s *BasicRing) Cleanup(c *Corpus) {
	i := 0
	for i < c.numEntries() {
		entry := c.entryAt(i)
		if entry.Age < s.MinMutationsPerSample || c.numEntries()-1 <= c.minSize {
			i++
			continue
		}
		c.removeAt(i)
		// Don't advance i: the next oldest entry has shifted into slot i.
	}
}
