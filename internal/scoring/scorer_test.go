package scoring

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcbaptista/go-titlematch/config"
	"github.com/gcbaptista/go-titlematch/model"

	internalErrors "github.com/gcbaptista/go-titlematch/internal/errors"
)

func candidates(scores ...float64) []*model.Candidate {
	list := make([]*model.Candidate, len(scores))
	for i, score := range scores {
		list[i] = &model.Candidate{
			ID:      string(rune('a' + i)),
			Title:   "unrelated candidate title",
			Dataset: "mag",
			Score:   score,
		}
	}
	return list
}

func newStrictScorer(t *testing.T, opts ...Option) *Scorer {
	t.Helper()
	scorer, err := NewScorer(config.StrictMatchSettings(), opts...)
	require.NoError(t, err)
	return scorer
}

func TestScoreScenarioTopHitAboveThreshold(t *testing.T) {
	scorer := newStrictScorer(t)
	list := []*model.Candidate{
		{ID: "2074872390", Title: "The Eigenfactor Metrics", Score: 85.3},
		{ID: "1998329187", Title: "Eigenfactor: measuring the value and prestige of scholarly journals", Score: 31.2},
		{ID: "2130911547", Title: "Journal metrics revisited", Score: 29.8},
	}

	outcome, err := scorer.Evaluate("The Eigenfactor Metrics", list)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Count)
	assert.Equal(t, StopScoreDrop, outcome.Reason)
	assert.Equal(t, 0, outcome.Index)

	_, computed := list[0].FuzzRatio()
	assert.False(t, computed, "a candidate passing the relevance gate must not be fuzzy-checked")
}

func TestScoreScenarioNoMatch(t *testing.T) {
	scorer := newStrictScorer(t)
	list := []*model.Candidate{
		{ID: "2074872390", Title: "The Eigenfactor Metrics", Score: 21.7},
		{ID: "1998329187", Title: "Article level metrics", Score: 20.1},
	}

	outcome, err := scorer.Evaluate("This article does not exist and shouldn't match any", list)
	require.NoError(t, err)
	assert.Equal(t, 0, outcome.Count)
	assert.Equal(t, StopFuzzyBelowThreshold, outcome.Reason)
	assert.Equal(t, 0, outcome.Index)

	ratio, computed := list[0].FuzzRatio()
	assert.True(t, computed)
	assert.Less(t, ratio, 80.0)
	_, computed = list[1].FuzzRatio()
	assert.False(t, computed, "no candidate after a disqualification is examined")
}

func TestScoreScenarioScoreDrop(t *testing.T) {
	scorer := newStrictScorer(t)

	outcome, err := scorer.Evaluate("anything", candidates(100, 90, 40))
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Count)
	assert.Equal(t, StopScoreDrop, outcome.Reason)
	assert.Equal(t, 1, outcome.Index)
}

func TestScoreScenarioZeroScore(t *testing.T) {
	scorer := newStrictScorer(t)

	t.Run("single zero score with similar title", func(t *testing.T) {
		list := []*model.Candidate{{ID: "1", Title: "Zero Score Paper", Score: 0}}
		outcome, err := scorer.Evaluate("Zero Score Paper", list)
		require.NoError(t, err)
		assert.Equal(t, 1, outcome.Count)
		assert.Equal(t, StopExhausted, outcome.Reason)
	})

	t.Run("single zero score with dissimilar title", func(t *testing.T) {
		list := []*model.Candidate{{ID: "1", Title: "xyz", Score: 0}}
		outcome, err := scorer.Evaluate("abc", list)
		require.NoError(t, err)
		assert.Equal(t, 0, outcome.Count)
		assert.Equal(t, StopFuzzyBelowThreshold, outcome.Reason)
	})

	t.Run("zero score at the drop gate stops the scan", func(t *testing.T) {
		list := []*model.Candidate{
			{ID: "1", Title: "Zero Score Paper", Score: 0},
			{ID: "2", Title: "Zero Score Paper", Score: 0},
		}
		outcome, err := scorer.Evaluate("Zero Score Paper", list)
		require.NoError(t, err)
		assert.Equal(t, 1, outcome.Count)
		assert.Equal(t, StopDegenerateScore, outcome.Reason)
		assert.Equal(t, 0, outcome.Index)
	})

	t.Run("zero score threshold passes zero scores", func(t *testing.T) {
		settings := config.StrictMatchSettings()
		settings.ScoreThreshold = 0
		zeroScorer, err := NewScorer(settings)
		require.NoError(t, err)

		count, err := zeroScorer.Score("anything", candidates(0, 0, 0))
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("negative and NaN scores", func(t *testing.T) {
		settings := config.StrictMatchSettings()
		settings.FuzzThreshold = 0
		permissive, err := NewScorer(settings)
		require.NoError(t, err)

		count, err := permissive.Score("anything", candidates(-3, -4))
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		count, err = permissive.Score("anything", candidates(math.NaN(), 10))
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		count, err = permissive.Score("anything", candidates(90, math.NaN(), 80))
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}

func TestScoreEmptyCandidates(t *testing.T) {
	scorer := newStrictScorer(t)

	_, err := scorer.Score("anything", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, internalErrors.ErrPrecondition))
}

func TestScoreAllPassWhenScoresStayHigh(t *testing.T) {
	scorer := newStrictScorer(t)
	list := candidates(100, 95, 90, 85, 80, 75, 71)

	outcome, err := scorer.Evaluate("anything", list)
	require.NoError(t, err)
	assert.Equal(t, len(list), outcome.Count)
	assert.Equal(t, StopExhausted, outcome.Reason)
	assert.Equal(t, len(list)-1, outcome.Index)
}

func TestScoreFuzzyFallbackContinuesScan(t *testing.T) {
	scorer := newStrictScorer(t)
	list := []*model.Candidate{
		{ID: "1", Title: "Citation networks of journals", Score: 60},
		{ID: "2", Title: "Citation network of journals", Score: 55},
		{ID: "3", Title: "Something else entirely", Score: 50},
	}

	outcome, err := scorer.Evaluate("Citation networks of journals", list)
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Count)
	assert.Equal(t, StopFuzzyBelowThreshold, outcome.Reason)
	assert.Equal(t, 2, outcome.Index)
}

func TestScoreLoosePreset(t *testing.T) {
	scorer, err := NewScorer(config.LooseMatchSettings())
	require.NoError(t, err)

	count, err := scorer.Score("anything", candidates(50, 46, 44))
	require.NoError(t, err)
	assert.Equal(t, 2, count, "third candidate is below 45 and fails the fuzzy gate")
}

func TestScoreCachesFuzzRatio(t *testing.T) {
	calls := 0
	similarity := func(a, b string) float64 {
		calls++
		return 90
	}
	scorer := newStrictScorer(t, WithSimilarity(similarity))
	list := candidates(60, 58, 57)

	first, err := scorer.Score("origin", list)
	require.NoError(t, err)
	assert.Equal(t, 3, first)
	assert.Equal(t, 3, calls)

	second, err := scorer.Score("origin", list)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 3, calls, "fuzzy ratios are reused on a second scan")

	_, err = scorer.Score("another origin", list)
	require.NoError(t, err)
	assert.Equal(t, 6, calls, "a different origin title invalidates the cache")
}

func TestScoreMonotonicTruncation(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	scorer := newStrictScorer(t, WithSimilarity(func(a, b string) float64 { return 0 }))

	for iteration := 0; iteration < 500; iteration++ {
		n := 1 + rng.Intn(8)
		scores := make([]float64, n)
		current := 40 + rng.Float64()*80
		for i := range scores {
			scores[i] = current
			current -= rng.Float64() * current * 0.4
		}

		list := candidates(scores...)
		count, err := scorer.Score("origin", list)
		require.NoError(t, err)
		require.GreaterOrEqual(t, count, 0)
		require.LessOrEqual(t, count, n)

		// Recompute the expected prefix directly: every counted candidate clears the
		// relevance gate and every gap inside the prefix stays within the drop threshold.
		expected := 0
		for i := 0; i < n; i++ {
			if scores[i] < 70 {
				break
			}
			expected++
			if i+1 < n && (scores[i]-scores[i+1])/scores[i] > 0.25 {
				break
			}
		}
		require.Equal(t, expected, count, "scores %v", scores)
	}
}

func TestNewScorerRejectsInvalidSettings(t *testing.T) {
	settings := config.StrictMatchSettings()
	settings.FuzzThreshold = 150
	_, err := NewScorer(settings)
	require.Error(t, err)
	assert.True(t, errors.Is(err, internalErrors.ErrInvalidInput))

	settings = config.StrictMatchSettings()
	settings.FuzzAlgorithm = "soundex"
	_, err = NewScorer(settings)
	require.Error(t, err)
}
