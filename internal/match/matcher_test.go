package match

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"cinetaste/internal/taxonomy"
	"cinetaste/internal/vector"
)

func TestMatcher_Match_EmptyVectors(t *testing.T) {
	m := NewMatcher(DefaultWeights())

	result := m.Match(vector.New(), vector.New())

	// All similarities are 0, so the probability sits at the neutral midpoint
	// and the dispersion-based confidence is maximal.
	assert.Equal(t, 0.5, result.Probability)
	assert.Equal(t, 0.0, result.RawScore)
	assert.Equal(t, 1.0, result.Confidence)
	assert.Empty(t, result.Breakdown.TopFactors)
}

func TestMatcher_Match_IdenticalVectors(t *testing.T) {
	m := NewMatcher(DefaultWeights())

	tv := vector.New()
	tv.SetScore(taxonomy.CategoryEmotion, "감동적이에요", 0.9)
	tv.SetScore(taxonomy.CategoryEmotion, "따뜻해요", 0.7)
	tv.SetScore(taxonomy.CategoryStoryFlow, "전개가 빨라요", 0.8)
	tv.EndingPreference[taxonomy.EndingHappy] = 0.9

	result := m.Match(tv, tv.Clone())

	assert.Equal(t, 1.0, result.Breakdown.EmotionSimilarity)
	assert.Equal(t, 1.0, result.Breakdown.NarrativeSimilarity)
	assert.Equal(t, 1.0, result.Breakdown.EndingSimilarity)
	// 0.4 + 0.35 + 0.25 = 1.0 → probability 1.0, zero spread.
	assert.Equal(t, 1.0, result.Probability)
	assert.Equal(t, 1.0, result.Confidence)
}

func TestMatcher_Match_Bounds(t *testing.T) {
	m := NewMatcher(DefaultWeights())

	user := vector.New()
	user.SetScore(taxonomy.CategoryEmotion, "무서워요", 1.0)
	user.BoostTags.Add("무서워요")

	movie := vector.New()
	movie.SetScore(taxonomy.CategoryEmotion, "무서워요", 1.0)

	result := m.Match(user, movie)

	assert.GreaterOrEqual(t, result.Probability, 0.0)
	assert.LessOrEqual(t, result.Probability, 1.0)
	assert.GreaterOrEqual(t, result.Confidence, 0.0)
	assert.LessOrEqual(t, result.Confidence, 1.0)
}

func TestMatcher_Match_BoostRaisesScore(t *testing.T) {
	m := NewMatcher(DefaultWeights())

	movie := vector.New()
	movie.SetScore(taxonomy.CategoryEmotion, "웃겨요", 0.9)

	user := vector.New()
	user.SetScore(taxonomy.CategoryEmotion, "웃겨요", 0.5)

	base := m.Match(user, movie)

	user.BoostTags.Add("웃겨요")
	boosted := m.Match(user, movie)

	assert.Greater(t, boosted.Probability, base.Probability)
	assert.Equal(t, 0.9, boosted.Breakdown.BoostScore)
}

func TestMatcher_Match_DislikeLowersScore(t *testing.T) {
	m := NewMatcher(DefaultWeights())

	movie := vector.New()
	movie.SetScore(taxonomy.CategoryEmotion, "무서워요", 0.8)

	user := vector.New()
	user.SetScore(taxonomy.CategoryEmotion, "무서워요", 0.5)

	base := m.Match(user, movie)

	user.DislikeTags.Add("무서워요")
	penalized := m.Match(user, movie)

	assert.Less(t, penalized.Probability, base.Probability)
	assert.Equal(t, 0.8, penalized.Breakdown.DislikePenalty)
}

func TestMatcher_Match_TagAdjustmentsAverage(t *testing.T) {
	m := NewMatcher(DefaultWeights())

	movie := vector.New()
	movie.SetScore(taxonomy.CategoryEmotion, "웃겨요", 0.8)
	movie.SetScore(taxonomy.CategoryEmotion, "따뜻해요", 0.4)

	user := vector.New()
	user.BoostTags.Add("웃겨요")
	user.BoostTags.Add("따뜻해요")
	user.BoostTags.Add("없는 태그") // absent from the movie, not counted

	result := m.Match(user, movie)

	// Mean over the overlapping tags only: (0.8 + 0.4) / 2.
	assert.Equal(t, 0.6, result.Breakdown.BoostScore)
}

func TestMatcher_Match_Directional(t *testing.T) {
	m := NewMatcher(DefaultWeights())

	user := vector.New()
	user.SetScore(taxonomy.CategoryEmotion, "웃겨요", 0.9)
	user.BoostTags.Add("웃겨요")

	movie := vector.New()
	movie.SetScore(taxonomy.CategoryEmotion, "웃겨요", 0.9)

	forward := m.Match(user, movie)
	backward := m.Match(movie, user)

	// Only the first argument's tag lists are applied.
	assert.Greater(t, forward.Probability, backward.Probability)
}

func TestMatcher_Match_TopFactors(t *testing.T) {
	m := NewMatcher(DefaultWeights())

	user := vector.New()
	user.SetScore(taxonomy.CategoryEmotion, "웃겨요", 0.9)
	user.EndingPreference[taxonomy.EndingHappy] = 0.9

	movie := vector.New()
	movie.SetScore(taxonomy.CategoryEmotion, "웃겨요", 0.9)
	movie.EndingPreference[taxonomy.EndingHappy] = 0.9

	result := m.Match(user, movie)

	// Emotion (0.4) outweighs ending (0.25); narrative contributes nothing.
	assert.Equal(t, []string{DimensionEmotion, DimensionEnding}, result.Breakdown.TopFactors)
}

func TestMatcher_Match_TopFactorsTieBreak(t *testing.T) {
	// Equal weights make all contributions identical; declaration priority
	// emotion > narrative > ending decides.
	m := NewMatcher(Weights{Emotion: 0.3, Narrative: 0.3, Ending: 0.3})

	tv := vector.New()
	tv.SetScore(taxonomy.CategoryEmotion, "웃겨요", 0.9)
	tv.SetScore(taxonomy.CategoryStoryFlow, "전개가 빨라요", 0.9)
	tv.EndingPreference[taxonomy.EndingHappy] = 0.9

	result := m.Match(tv, tv.Clone())

	assert.Equal(t, []string{DimensionEmotion, DimensionNarrative}, result.Breakdown.TopFactors)
}

func TestCosine(t *testing.T) {
	t.Run("identical maps", func(t *testing.T) {
		a := vector.Scores{"x": 0.5, "y": 0.8}
		assert.InDelta(t, 1.0, cosine(a, a), 1e-9)
	})

	t.Run("disjoint maps", func(t *testing.T) {
		a := vector.Scores{"x": 0.5}
		b := vector.Scores{"y": 0.8}
		assert.Equal(t, 0.0, cosine(a, b))
	})

	t.Run("zero magnitude", func(t *testing.T) {
		assert.Equal(t, 0.0, cosine(vector.Scores{}, vector.Scores{"x": 1.0}))
		assert.Equal(t, 0.0, cosine(vector.Scores{"x": 0.0}, vector.Scores{"x": 1.0}))
	})
}
