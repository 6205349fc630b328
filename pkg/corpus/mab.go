package corpus

import (
	"math/rand"

	"github.com/covfuzz/covfuzz/aspects"
	"github.com/covfuzz/covfuzz/pkg/learning"
)

// MultiArmedBandit is the scheduler strategy of spec.md §4.2: each corpus
// entry is an arm of an EXP3-style bandit (pkg/learning.MAB), selected with
// probability ExplorationRate uniformly and otherwise proportional to
// weight. Adapted from the teacher's pkg/learning usage inside
// pkg/fuzzer/choice_table.go, generalized from opcode indices to
// *CorpusEntry pointers.
type MultiArmedBandit struct {
	// ExplorationRate is gamma (spec.md §4.2 "exploration parameter").
	ExplorationRate float64
	// MinMutationsPerSample is carried alongside the other thresholds, but
	// no selection, restart or cache-regeneration step reads it: young arms
	// get no special protection from being left out of a rebuilt cache.
	MinMutationsPerSample uint32
	// MaxCacheSize bounds the "top-weight subset" spec.md §4.2 calls cache.
	// 0 means the cache always spans every registered arm.
	MaxCacheSize int
	// RegenerateThreshold is the number of selections since the cache was
	// last rebuilt after which a flatlined cache is regenerated from the
	// full arm list (spec.md §4.2 "regenerate threshold").
	RegenerateThreshold int
	// RestartThreshold is the number of selections since the last
	// SaveReward after which the cache is cleared and reseeded (spec.md
	// §4.2 "Restart").
	RestartThreshold int
	// CritMassThreshold is the number of selections between state-update
	// checks (spec.md §4.2 "After every N selections (crit mass)").
	CritMassThreshold int

	bandit MAB

	cache           []*CorpusEntry
	epoch           int
	epochUpperBound float64
	epochReward     float64

	selectionsSinceReward    int
	selectionsSinceCache     int
	selectionsSinceCritMass  int
	lastAction               Action
	lastEntry                *CorpusEntry
}

// MAB is the capability set MultiArmedBandit needs from a bandit algorithm,
// matching pkg/learning.EXP3's shape but keyed on *CorpusEntry so this file
// never imports pkg/learning's generic parameter directly into exported
// state.
type MAB interface {
	AddArm(arm *CorpusEntry)
	Rebuild(arms []*CorpusEntry)
	Action(r *rand.Rand) Action
	SaveReward(action Action, reward float64)
	// TopArms returns the n highest-weight arms, used to (re)build the
	// bounded cache spec.md §4.2 describes.
	TopArms(n int) []*CorpusEntry
	// Rescale forces the epoch-driven weight rebalance spec.md §4.2's state
	// updates call for when the epoch's upper bound hasn't been exceeded.
	Rescale()
}

// Action identifies a selected arm, wrapping pkg/learning.Action[*CorpusEntry]
// (which itself carries the private index SaveReward needs to detect a
// stale action after a Rebuild) behind a concrete, non-generic type so
// Strategy/MAB never expose a generic parameter.
type Action struct {
	Entry *CorpusEntry
	raw   learning.Action[*CorpusEntry]
	valid bool
}

func (s *MultiArmedBandit) Name() string { return "mab" }

func (s *MultiArmedBandit) Added(c *Corpus, entry *CorpusEntry, progAspects *aspects.ProgramAspects) {
	if s.bandit == nil {
		s.bandit = newExp3Adapter(s.ExplorationRate)
	}
	s.bandit.AddArm(entry)
}

func (s *MultiArmedBandit) SelectForMutation(c *Corpus, r *rand.Rand) *CorpusEntry {
	if len(s.cache) == 0 {
		s.rebuildCache(c)
	}

	entry := s.sample(r)
	s.lastEntry = entry
	s.selectionsSinceReward++
	s.selectionsSinceCache++
	s.selectionsSinceCritMass++

	// spec.md §4.2 "After every N selections (crit mass)": check whether
	// the epoch's reward estimate has outgrown its upper bound before the
	// regenerate/restart passes below, since opening a new epoch already
	// rebuilds the cache.
	if s.CritMassThreshold > 0 && s.selectionsSinceCritMass >= s.CritMassThreshold {
		s.applyEpochUpdate(c)
		s.selectionsSinceCritMass = 0
	}
	// Restart: the cache has gone stale with no reward at all -- reseed the
	// bandit itself, not just the cache.
	if s.RestartThreshold > 0 && s.selectionsSinceReward > s.RestartThreshold {
		s.bandit.Rebuild(c.entries)
		s.cache = nil
		s.selectionsSinceReward = 0
	}
	// Regenerate: the cache's expected reward has flatlined -- rebuild the
	// cache from the full (still-weighted) arm list, without touching the
	// bandit's own weights.
	if s.RegenerateThreshold > 0 && s.selectionsSinceCache > s.RegenerateThreshold {
		s.rebuildCache(c)
		s.selectionsSinceCache = 0
	}
	if entry == nil {
		// No arms registered yet (bandit constructed before any Add); fall
		// back to uniform selection rather than returning nil.
		return c.entryAt(r.Intn(c.numEntries()))
	}
	return entry
}

func (s *MultiArmedBandit) SelectForSplicing(c *Corpus, r *rand.Rand) *CorpusEntry {
	return s.SelectForMutation(c, r)
}

// rebuildCache implements spec.md §4.2's cache as "the top-weight subset":
// always recomputed from the bandit's current weights, bounded by
// MaxCacheSize (0 means every arm qualifies).
func (s *MultiArmedBandit) rebuildCache(c *Corpus) {
	s.cache = s.bandit.TopArms(s.MaxCacheSize)
}

// inCache reports whether entry is a current cache member.
func (s *MultiArmedBandit) inCache(entry *CorpusEntry) bool {
	for _, e := range s.cache {
		if e == entry {
			return true
		}
	}
	return false
}

// sample implements spec.md §4.2's selection rule ("with probability
// proportional to exploration gamma, sample uniformly; otherwise sample
// proportional to weights") restricted to the cache rather than the full
// arm list: the bandit's own Action already applies gamma/weight sampling
// over every arm, so a handful of retries is enough to land inside the
// (usually much smaller) cache; if none do, fall back to a uniform pick
// within the cache so selection never blocks on a pathologically small one.
func (s *MultiArmedBandit) sample(r *rand.Rand) *CorpusEntry {
	if len(s.cache) == 0 {
		action := s.bandit.Action(r)
		s.lastAction = action
		return action.Entry
	}
	for i := 0; i < 4; i++ {
		action := s.bandit.Action(r)
		if action.Entry != nil && s.inCache(action.Entry) {
			s.lastAction = action
			return action.Entry
		}
	}
	pick := s.cache[r.Intn(len(s.cache))]
	// This fallback pick carries no matching bandit Action, so a SaveReward
	// against it is silently dropped -- the same "stale action, ignore the
	// reward" behaviour pkg/learning.EXP3 already applies after a Rebuild.
	s.lastAction = Action{Entry: pick}
	return pick
}

// applyEpochUpdate implements spec.md §4.2's crit-mass state update: open a
// new epoch (and rebuild the cache around it) once the epoch's accumulated
// reward exceeds its upper bound, otherwise rescale the bandit's weights to
// keep them from growing unbounded.
func (s *MultiArmedBandit) applyEpochUpdate(c *Corpus) {
	if s.epochUpperBound <= 0 {
		s.epochUpperBound = 10
	}
	if s.epochReward > s.epochUpperBound {
		s.epoch++
		s.epochUpperBound *= 2
		s.epochReward = 0
		s.rebuildCache(c)
		return
	}
	s.bandit.Rescale()
}

// SaveReward folds a mutation's outcome back into the bandit (spec.md §4.2
// "Reward"): call this from the fuzzer loop after an execution completes,
// passing the entry RandomForMutation returned and a reward in [0,1] (0 for
// any non-success outcome -- see pkg/learning.EXP3.SaveReward's
// failure-never-increases-weight fix, spec.md §9).
func (s *MultiArmedBandit) SaveReward(entry *CorpusEntry, reward float64) {
	if s.bandit == nil || entry != s.lastEntry {
		return
	}
	s.bandit.SaveReward(s.lastAction, reward)
	if reward > 0 {
		s.epochReward += reward
	}
	s.selectionsSinceReward = 0
}
