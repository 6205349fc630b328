package corpus

import (
	"math/rand"

	"github.com/covfuzz/covfuzz/pkg/learning"
)

// exp3Adapter wires pkg/learning.EXP3[*CorpusEntry] -- a generic bandit
// keyed on a comparable arm type -- into the corpus package's non-generic
// MAB interface, so MultiArmedBandit's exported surface doesn't leak a
// generic type parameter into Strategy.
type exp3Adapter struct {
	exp3 *learning.EXP3[*CorpusEntry]
}

func newExp3Adapter(explorationRate float64) *exp3Adapter {
	return &exp3Adapter{exp3: &learning.EXP3[*CorpusEntry]{ExplorationRate: explorationRate}}
}

func (a *exp3Adapter) AddArm(entry *CorpusEntry) {
	a.exp3.AddArm(entry)
}

func (a *exp3Adapter) Rebuild(entries []*CorpusEntry) {
	a.exp3.Rebuild(entries)
}

func (a *exp3Adapter) Action(r *rand.Rand) Action {
	if a.exp3.Len() == 0 {
		return Action{}
	}
	act := a.exp3.Action(r)
	return Action{Entry: act.Arm, raw: act, valid: true}
}

func (a *exp3Adapter) SaveReward(action Action, reward float64) {
	if !action.valid {
		return
	}
	a.exp3.SaveReward(action.raw, reward)
}

func (a *exp3Adapter) TopArms(n int) []*CorpusEntry {
	return a.exp3.TopArms(n)
}

func (a *exp3Adapter) Rescale() {
	a.exp3.Rescale()
}
