package corpus

import (
	"math"
	"math/rand"
	"sort"

	"github.com/covfuzz/covfuzz/aspects"
)

// markovBaseline is the number of total executions the scheduler spends
// warming up the edge hit-count vector before switching to edge-rarity
// selection (spec.md §4.3, §9 "choose one and document" -- 250 is the
// value spec.md §4.3 itself settles on, the newer of the two disputed
// revisions).
const markovBaseline = 250

// MarkovEdgeRarity is the scheduler strategy of spec.md §4.3: targets seeds
// that hit rare edges by maintaining a queue of the entries that first
// discovered the currently-rarest edges, and spending an energy budget of
// repeated selections on each before moving to the next. Grounded on the
// teacher's pkg/corpus/weighted_pc_selection.go, which likewise samples
// seeds by their association with rarely-hit program counters, generalized
// from PCs to the external aspects.EdgeId/Evaluator contract.
type MarkovEdgeRarity struct {
	// DesiredProportion controls how large a slice of the rarest edges
	// feeds the queue on each regeneration (spec.md §4.3 step 2:
	// "size/desired_proportion"). Must be > 0; defaults to 10 if unset.
	DesiredProportion int
	// DropoutRate is the probability an otherwise-eligible edge's
	// first-discoverer is skipped during queue regeneration, so parallel
	// instances don't converge on identical queues (spec.md §4.3).
	DropoutRate float64
	// Evaluator supplies the live edge hit-count vector. Required.
	Evaluator aspects.Evaluator
	// Rand is used for dropout decisions; defaults to a fresh source if nil.
	Rand *rand.Rand

	edgeMap     map[aspects.EdgeId]*CorpusEntry
	queue       []*CorpusEntry
	current     *CorpusEntry
	remaining   int
	totalExecs  int
}

func (s *MarkovEdgeRarity) Name() string { return "markov" }

func (s *MarkovEdgeRarity) Added(c *Corpus, entry *CorpusEntry, progAspects *aspects.ProgramAspects) {
	if s.edgeMap == nil {
		s.edgeMap = map[aspects.EdgeId]*CorpusEntry{}
	}
	if progAspects == nil {
		return
	}
	for _, e := range progAspects.NewEdges {
		if _, exists := s.edgeMap[e]; !exists {
			s.edgeMap[e] = entry
		}
	}
}

func (s *MarkovEdgeRarity) rnd() *rand.Rand {
	if s.Rand == nil {
		s.Rand = rand.New(rand.NewSource(1))
	}
	return s.Rand
}

// SelectForMutation implements spec.md §4.3's random_for_mutation: uniform
// random during warm-up, then queue-driven edge-rarity selection.
func (s *MarkovEdgeRarity) SelectForMutation(c *Corpus, r *rand.Rand) *CorpusEntry {
	s.totalExecs++
	if s.totalExecs <= markovBaseline {
		return c.entryAt(r.Intn(c.numEntries()))
	}
	if len(s.queue) == 0 {
		s.regenerateQueue(c)
	}
	if s.remaining > 0 {
		s.remaining--
		if s.current != nil {
			return s.current
		}
	}
	if len(s.queue) == 0 {
		// Regeneration found nothing to queue (e.g. the evaluator isn't
		// tracking edges); fall back to uniform selection rather than
		// blocking forever.
		return c.entryAt(r.Intn(c.numEntries()))
	}
	s.current = s.queue[0]
	s.queue = s.queue[1:]
	s.remaining = s.energyBase() - 1
	return s.current
}

func (s *MarkovEdgeRarity) SelectForSplicing(c *Corpus, r *rand.Rand) *CorpusEntry {
	return s.SelectForMutation(c, r)
}

// energyBase implements spec.md §4.3's energy_base() = floor(log10(total_execs)) + 1.
func (s *MarkovEdgeRarity) energyBase() int {
	if s.totalExecs < 1 {
		return 1
	}
	return int(math.Floor(math.Log10(float64(s.totalExecs)))) + 1
}

// regenerateQueue implements spec.md §4.3's queue regeneration algorithm.
func (s *MarkovEdgeRarity) regenerateQueue(c *Corpus) {
	if s.Evaluator == nil {
		return
	}
	counts := s.Evaluator.EdgeCounts()
	if len(counts) == 0 {
		return
	}
	type indexedCount struct {
		edge  aspects.EdgeId
		count uint32
	}
	sorted := make([]indexedCount, len(counts))
	for i, c := range counts {
		sorted[i] = indexedCount{edge: aspects.EdgeId(i), count: c}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].count < sorted[j].count })

	startPos := -1
	for i, ic := range sorted {
		if ic.count > 0 {
			startPos = i
			break
		}
	}
	if startPos < 0 {
		return
	}
	proportion := s.DesiredProportion
	if proportion <= 0 {
		proportion = 10
	}
	size := len(sorted)
	span := size / proportion
	if span < 30 {
		span = 30
	}
	endPos := startPos + span
	if endPos > size-1 {
		endPos = size - 1
	}
	threshold := sorted[endPos].count

	dropout := s.DropoutRate
	r := s.rnd()
	for _, ic := range sorted {
		if ic.count == 0 || ic.count > threshold {
			continue
		}
		entry, ok := s.edgeMap[ic.edge]
		if !ok {
			continue
		}
		wouldBeEmpty := len(s.queue) == 0
		if wouldBeEmpty || r.Float64() >= dropout {
			s.queue = append(s.queue, entry)
		}
	}
}
