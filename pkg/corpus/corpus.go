// Package corpus implements the corpus contract and the three pluggable
// scheduler strategies of spec.md §4.1-§4.3: BasicRing, MultiArmedBandit and
// MarkovEdgeRarity, plus a trivial Persistent strategy. It is adapted from
// the teacher codebase's pkg/corpus (prio.go's weighted selection and
// selection.go's corpus-wide invariants) and pkg/fuzzer's choiceTable/seeds
// bookkeeping, generalized from "syzkaller program" to the external ir.Program
// contract.
package corpus

import (
	"errors"
	"math/rand"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/covfuzz/covfuzz/aspects"
	"github.com/covfuzz/covfuzz/executor"
	"github.com/covfuzz/covfuzz/internal/eventbus"
	"github.com/covfuzz/covfuzz/internal/logger"
	"github.com/covfuzz/covfuzz/ir"
)

// ErrEmptyProgram is returned by Add when program.Size() == 0 (spec.md §4.1
// "ignored if program.size==0" -- Add reports it instead of silently
// swallowing it, leaving the ignore-or-log decision to the caller).
var ErrEmptyProgram = errors.New("corpus: program has no instructions")

// ErrEmptyCorpus is returned by RandomForMutation/RandomForSplicing on an
// empty corpus (spec.md §4.1 precondition).
var ErrEmptyCorpus = errors.New("corpus: corpus is empty")

// NewInterestingEvent is published on internal/eventbus.TopicNewInteresting
// whenever Add accepts a new entry (spec.md §4.5 "broadcast new interesting
// programs to all children").
type NewInterestingEvent struct {
	Entry *CorpusEntry
}

// CleanupEvent is published after a cleanup pass removes entries (spec.md
// §4.1 cleanup policy).
type CleanupEvent struct {
	Removed int
}

// Config holds the corpus's construction-time parameters. Out-of-scope
// CLI/file parsing (spec.md §1) means these are set directly by the caller;
// zero values fall back to the documented defaults below.
type Config struct {
	// MinSize is the floor the corpus tries to stay at or above (spec.md
	// §4.1 invariants: "size >= min_size (when possible)"). Defaults to 1.
	MinSize int
	// Strategy selects the scheduling policy. Required -- Corpus has no
	// sensible default strategy of its own.
	Strategy Strategy
	// Evaluator is consulted by strategies that need edge hit-counts (the
	// Markov strategy, spec.md §4.3). May be nil for Ring/MAB/Persistent.
	Evaluator aspects.Evaluator
	// Bus receives NewInterestingEvent/CleanupEvent notifications. May be
	// nil (spec.md §9 treats the event bus as an injected, optional
	// dependency).
	Bus *eventbus.Bus
	// Logf is the injected logging sink (spec.md §9).
	Logf logger.Logf
	// Rand seeds the corpus's private random source. Defaults to a
	// time-independent source seeded from math/rand's global source so
	// tests can inject a deterministic one.
	Rand *rand.Rand
}

// Corpus is the generic contract of spec.md §4.1, parameterized by a
// Strategy. It owns every CorpusEntry; strategies only ever hold references
// into Corpus.entries (see entry.go).
type Corpus struct {
	mu sync.Mutex

	minSize   int
	strategy  Strategy
	evaluator aspects.Evaluator
	bus       *eventbus.Bus
	logf      logger.Logf
	rnd       *rand.Rand

	entries []*CorpusEntry
	byHash  map[[32]byte]*CorpusEntry

	metrics *metrics
}

func New(cfg Config) *Corpus {
	if cfg.MinSize <= 0 {
		cfg.MinSize = 1
	}
	if cfg.Logf == nil {
		cfg.Logf = logger.Discard()
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(rand.Int63()))
	}
	c := &Corpus{
		minSize:   cfg.MinSize,
		strategy:  cfg.Strategy,
		evaluator: cfg.Evaluator,
		bus:       cfg.Bus,
		logf:      cfg.Logf,
		rnd:       cfg.Rand,
		byHash:    map[[32]byte]*CorpusEntry{},
		metrics:   newMetrics(),
	}
	// spec.md §3 "Lifecycles": the corpus is guaranteed non-empty -- seed one
	// trivial program so RandomForMutation/RandomForSplicing never have to
	// fail with ErrEmptyCorpus before the caller's own first Add.
	if err := c.Add(seedProgram(), nil); err != nil {
		panic("corpus: seed program rejected: " + err.Error())
	}
	return c
}

// seedProgram builds the trivial single-instruction program New() seeds
// every corpus with: a lone LoadUndefined, the IR's simplest non-empty
// instruction (one output, no operands to mutate meaningfully).
func seedProgram() *ir.Program {
	return ir.NewProgram([]ir.Instruction{
		{Op: "LoadUndefined", Outputs: []ir.VarId{0}},
	})
}

// Collectors exposes the corpus's underlying Prometheus collectors, so cmd/covfuzz-node can register a Corpus alongside
// its other components without reaching into package internals.
func (c *Corpus) Collectors() []prometheus.Collector {
	return c.metrics.collectors()
}

// Add implements spec.md §4.1's add operation: ignores empty programs,
// deduplicates by content hash, appends the new entry, and lets the
// strategy register it.
func (c *Corpus) Add(program *ir.Program, progAspects *aspects.ProgramAspects) error {
	if program.Empty() {
		return ErrEmptyProgram
	}
	hash := program.Hash()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, dup := c.byHash[hash]; dup {
		c.metrics.duplicatesRejected.Inc()
		return nil
	}

	var coverage []aspects.EdgeId
	var outcome executor.Outcome
	if progAspects != nil {
		coverage = progAspects.NewEdges
		outcome = progAspects.Outcome
	}
	entry := &CorpusEntry{
		Program:      program,
		Hash:         hash,
		LastCoverage: coverage,
		LastOutcome:  outcome,
	}
	c.entries = append(c.entries, entry)
	c.byHash[hash] = entry
	c.metrics.size.Set(float64(len(c.entries)))

	if c.strategy != nil {
		c.strategy.Added(c, entry, progAspects)
	}
	if c.bus != nil {
		c.bus.Publish(eventbus.TopicNewInteresting, &NewInterestingEvent{Entry: entry})
	}
	return nil
}

// RandomForMutation implements spec.md §4.1's random_for_mutation: returns
// an entry chosen by the configured strategy and increments its age.
func (c *Corpus) RandomForMutation() (*CorpusEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) == 0 {
		return nil, ErrEmptyCorpus
	}
	entry := c.strategy.SelectForMutation(c, c.rnd)
	entry.Age++
	c.metrics.selections.Inc()
	return entry, nil
}

// RandomForSplicing implements spec.md §4.1's random_for_splicing.
func (c *Corpus) RandomForSplicing() (*CorpusEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) == 0 {
		return nil, ErrEmptyCorpus
	}
	if s, ok := c.strategy.(splicingStrategy); ok {
		return s.SelectForSplicing(c, c.rnd), nil
	}
	return c.strategy.SelectForMutation(c, c.rnd), nil
}

// splicingStrategy is implemented by strategies with a splicing
// distribution distinct from mutation selection (spec.md §4.1
// "random_for_splicing... possibly same distribution as mutation or from a
// secondary set").
type splicingStrategy interface {
	SelectForSplicing(c *Corpus, r *rand.Rand) *CorpusEntry
}

// Size implements spec.md §4.1's size operation.
func (c *Corpus) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// IsEmpty implements spec.md §4.1's is_empty operation.
func (c *Corpus) IsEmpty() bool {
	return c.Size() == 0
}

// Programs returns every entry's program, in no particular order. Unlike
// ExportState (a versioned, private on-disk format) this is the plain
// snapshot pkg/transport's parent-side sync needs to send a newly
// connected child the full corpus (spec.md §4.5).
func (c *Corpus) Programs() []*ir.Program {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*ir.Program, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Program
	}
	return out
}

// Cleanup runs the strategy's periodic maintenance pass, if it implements
// one (spec.md §4.1 "Cleanup policy (ring strategy)"). A no-op for
// strategies that don't manage eviction themselves (MAB, Markov,
// Persistent).
func (c *Corpus) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	cleaner, ok := c.strategy.(cleanupStrategy)
	if !ok {
		return
	}
	before := len(c.entries)
	cleaner.Cleanup(c)
	removed := before - len(c.entries)
	if removed <= 0 {
		return
	}
	c.metrics.size.Set(float64(len(c.entries)))
	c.metrics.entriesEvicted.Add(float64(removed))
	if c.bus != nil {
		c.bus.Publish(eventbus.TopicCorpusCleanup, &CleanupEvent{Removed: removed})
	}
}

// removeAt drops c.entries[i], keeping byHash consistent. Callers must hold
// c.mu and must already have removed i from any strategy-private index
// (e.g. the ring's position bookkeeping) before calling this.
func (c *Corpus) removeAt(i int) {
	entry := c.entries[i]
	delete(c.byHash, entry.Hash)
	c.entries = append(c.entries[:i], c.entries[i+1:]...)
}

// entryAt is the accessor strategies use instead of touching c.entries
// directly. It does no checking of its own: an out-of-range index panics.
func (c *Corpus) entryAt(i int) *CorpusEntry {
	return c.entries[i]
}

// numEntries lets strategy code read the current count without exporting
// the slice itself.
func (c *Corpus) numEntries() int {
	return len(c.entries)
}
