package match

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"cinetaste/internal/taxonomy"
	"cinetaste/internal/vector"
)

// Dimension names reported in breakdowns and top factors.
const (
	DimensionEmotion   = "emotion"
	DimensionNarrative = "narrative"
	DimensionEnding    = "ending"
)

// maxSimStdDev is the largest possible population standard deviation of three
// values in [-1, 1] (reached at {1, 1, -1}), used to normalize the confidence
// term into [0, 1].
var maxSimStdDev = 2.0 * math.Sqrt2 / 3.0

// Weights holds the tunable blend of the satisfaction score. The dimension
// weights apply to the three cosine similarities; Boost and Penalty scale the
// tag-list adjustments. Defaults are sized so a full boost or penalty moves
// the probability by roughly ten percent.
type Weights struct {
	Emotion   float64 `mapstructure:"emotion"`
	Narrative float64 `mapstructure:"narrative"`
	Ending    float64 `mapstructure:"ending"`
	Boost     float64 `mapstructure:"boost"`
	Penalty   float64 `mapstructure:"penalty"`
}

// DefaultWeights returns the default score blend.
func DefaultWeights() Weights {
	return Weights{
		Emotion:   0.4,
		Narrative: 0.35,
		Ending:    0.25,
		Boost:     0.2,
		Penalty:   0.2,
	}
}

// Breakdown reports the per-dimension similarities and tag adjustments that
// produced a match result.
type Breakdown struct {
	EmotionSimilarity   float64  `json:"emotion_similarity"`
	NarrativeSimilarity float64  `json:"narrative_similarity"`
	EndingSimilarity    float64  `json:"ending_similarity"`
	BoostScore          float64  `json:"boost_score"`
	DislikePenalty      float64  `json:"dislike_penalty"`
	TopFactors          []string `json:"top_factors"`
}

// Result is the outcome of matching a user vector against a movie vector.
// Probability and Confidence are in [0, 1]; RawScore is the unclamped blend.
type Result struct {
	Probability float64   `json:"probability"`
	Confidence  float64   `json:"confidence"`
	RawScore    float64   `json:"raw_score"`
	Breakdown   Breakdown `json:"breakdown"`
}

// Matcher computes satisfaction probabilities. It is a pure function over its
// inputs and safe for concurrent use.
type Matcher struct {
	weights Weights
}

// NewMatcher creates a matcher with the given score blend.
func NewMatcher(weights Weights) *Matcher {
	return &Matcher{weights: weights}
}

// Match computes the satisfaction probability of the user for the movie.
// It never fails: degenerate or empty vectors degrade to a low-confidence
// neutral result around probability 0.5.
//
// Matching is directional: the user's boost and dislike tags are scored
// against the movie's profile only, so Match(user, movie) is not the mirror
// of Match(movie, user).
func (m *Matcher) Match(user, movie *vector.TasteVector) Result {
	simEmotion := cosine(
		user.CategoryScores[taxonomy.CategoryEmotion],
		movie.CategoryScores[taxonomy.CategoryEmotion],
	)
	simNarrative := cosine(narrativeScores(user), narrativeScores(movie))
	simEnding := cosine(user.EndingPreference, movie.EndingPreference)

	boostScore := meanTagScore(movie, user.BoostTags)
	dislikePenalty := meanTagScore(movie, user.DislikeTags)

	rawScore := m.weights.Emotion*simEmotion +
		m.weights.Narrative*simNarrative +
		m.weights.Ending*simEnding +
		m.weights.Boost*boostScore -
		m.weights.Penalty*dislikePenalty

	// Affine map from the [-1, 1] cosine blend to a probability; the clamp
	// covers boost/penalty pushing the raw score outside that range.
	probability := vector.Clamp((rawScore + 1) / 2)

	sims := []float64{simEmotion, simNarrative, simEnding}
	confidence := vector.Clamp(1 - stat.PopStdDev(sims, nil)/maxSimStdDev)

	return Result{
		Probability: round3(probability),
		Confidence:  round3(confidence),
		RawScore:    round3(rawScore),
		Breakdown: Breakdown{
			EmotionSimilarity:   round3(simEmotion),
			NarrativeSimilarity: round3(simNarrative),
			EndingSimilarity:    round3(simEnding),
			BoostScore:          round3(boostScore),
			DislikePenalty:      round3(dislikePenalty),
			TopFactors: topFactors(
				m.weights.Emotion*simEmotion,
				m.weights.Narrative*simNarrative,
				m.weights.Ending*simEnding,
			),
		},
	}
}

// narrativeScores flattens the three narrative-side categories into one tag
// score map. Tags are unique across categories, so the merge is lossless.
func narrativeScores(tv *vector.TasteVector) vector.Scores {
	merged := make(vector.Scores)
	for _, cat := range []string{
		taxonomy.CategoryStoryFlow,
		taxonomy.CategoryDirectionMood,
		taxonomy.CategoryCharacterRelationship,
	} {
		for tag, score := range tv.CategoryScores[cat] {
			merged[tag] = score
		}
	}
	return merged
}

// cosine computes the cosine similarity of two tag score maps aligned over
// the union of their keys, absent tags scoring 0. Returns 0 when either side
// has zero magnitude.
func cosine(a, b vector.Scores) float64 {
	var dot, magA, magB float64
	for tag, av := range a {
		dot += av * b[tag]
		magA += av * av
	}
	for _, bv := range b {
		magB += bv * bv
	}
	if magA == 0 || magB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// meanTagScore averages the movie's scores over the tags it shares with the
// given set; 0 when nothing overlaps.
func meanTagScore(movie *vector.TasteVector, tags *vector.TagSet) float64 {
	if tags == nil {
		return 0.0
	}
	var sum float64
	var count int
	for _, tag := range tags.Tags() {
		if score, ok := movie.TagScore(tag); ok {
			sum += score
			count++
		}
	}
	if count == 0 {
		return 0.0
	}
	return sum / float64(count)
}

// topFactors names the up to two dimensions with the largest absolute
// contribution to the raw score. Ties keep the priority order
// emotion > narrative > ending; zero contributions are omitted.
func topFactors(emotion, narrative, ending float64) []string {
	factors := []struct {
		name  string
		value float64
	}{
		{DimensionEmotion, math.Abs(emotion)},
		{DimensionNarrative, math.Abs(narrative)},
		{DimensionEnding, math.Abs(ending)},
	}
	sort.SliceStable(factors, func(i, j int) bool {
		return factors[i].value > factors[j].value
	})

	names := make([]string, 0, 2)
	for _, f := range factors {
		if f.value == 0 || len(names) == 2 {
			break
		}
		names = append(names, f.name)
	}
	return names
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
