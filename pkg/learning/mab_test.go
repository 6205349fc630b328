package learning_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/covfuzz/covfuzz/pkg/learning"
)

func TestEXP3RewardsIncreaseSelectionOdds(t *testing.T) {
	e := &learning.EXP3[int]{ExplorationRate: 0.1}
	e.AddArm(0)
	e.AddArm(1)
	e.AddArm(2)

	r := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		action := e.Action(r)
		if action.Arm == 1 {
			e.SaveReward(action, 1.0)
		} else {
			e.SaveReward(action, 0.01)
		}
	}

	counts := map[int]int{}
	for i := 0; i < 2000; i++ {
		counts[e.Action(r).Arm]++
	}
	require.Greater(t, counts[1], counts[0])
	require.Greater(t, counts[1], counts[2])
}

func TestEXP3FailureNeverIncreasesWeight(t *testing.T) {
	e := &learning.EXP3[int]{ExplorationRate: 0.1}
	e.AddArm(0)
	e.AddArm(1)
	action := learning.Action[int]{Arm: 0}
	e.SaveReward(action, 0) // a failure must be a no-op, not a positive reward.

	// An untouched bandit with the same arms: with equal weights, the same
	// seeded draws must pick the same arms.
	fresh := &learning.EXP3[int]{ExplorationRate: 0.1}
	fresh.AddArm(0)
	fresh.AddArm(1)

	r := rand.New(rand.NewSource(2))
	rFresh := rand.New(rand.NewSource(2))
	counts := map[int]int{}
	freshCounts := map[int]int{}
	for i := 0; i < 100; i++ {
		counts[e.Action(r).Arm]++
		freshCounts[fresh.Action(rFresh).Arm]++
	}
	require.Equal(t, freshCounts, counts)
}

func TestEXP3RebuildCarriesOverWeight(t *testing.T) {
	e := &learning.EXP3[string]{ExplorationRate: 0.1}
	e.AddArm("a")
	e.AddArm("b")
	r := rand.New(rand.NewSource(3))
	for i := 0; i < 50; i++ {
		action := e.Action(r)
		e.SaveReward(action, 1.0)
	}
	require.Equal(t, 2, e.Len())

	e.Rebuild([]string{"a", "c"})
	require.Equal(t, 2, e.Len())

	// A reward for an arm dropped by Rebuild must be silently ignored.
	e.SaveReward(learning.Action[string]{Arm: "b"}, 1.0)
}

func TestEXP3StaleActionAfterRebuildIsIgnored(t *testing.T) {
	e := &learning.EXP3[int]{ExplorationRate: 0.1}
	e.AddArm(0)
	r := rand.New(rand.NewSource(4))
	stale := e.Action(r)

	e.Rebuild([]int{1})
	require.NotPanics(t, func() {
		e.SaveReward(stale, 1.0)
	})
}
