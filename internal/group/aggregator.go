package group

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"cinetaste/internal/engine"
	"cinetaste/internal/match"
	"cinetaste/internal/vector"
)

// Strategy selects how per-member probabilities fold into a group score.
type Strategy string

const (
	// StrategyLeastMisery uses the minimum member probability: one badly
	// dissatisfied member dominates no matter how happy the rest are.
	StrategyLeastMisery Strategy = "least_misery"
	// StrategyAverage uses the mean member probability.
	StrategyAverage Strategy = "average"
)

// Member is one group participant with a built taste vector.
type Member struct {
	ID     string
	Vector *vector.TasteVector
}

// MemberResult is a member's individual outcome against the movie.
type MemberResult struct {
	ID                string  `json:"user_id"`
	Probability       float64 `json:"probability"`
	Confidence        float64 `json:"confidence"`
	SatisfactionLevel string  `json:"satisfaction_level"`
}

// Statistics describes the dispersion of member probabilities. It is always
// computed, so callers can judge disagreement even under least misery.
type Statistics struct {
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"`
}

// Result is the aggregated group outcome.
type Result struct {
	GroupScore     float64        `json:"group_score"`
	Strategy       Strategy       `json:"strategy"`
	Members        []MemberResult `json:"members"`
	Statistics     Statistics     `json:"statistics"`
	Comment        string         `json:"comment"`
	Recommendation string         `json:"recommendation"`
}

// Aggregator folds per-member match results into a single group score.
// Stateless; safe for concurrent use.
type Aggregator struct {
	matcher *match.Matcher
	leveler Leveler
}

// NewAggregator creates an aggregator over the given matcher and leveler.
func NewAggregator(matcher *match.Matcher, leveler Leveler) *Aggregator {
	return &Aggregator{matcher: matcher, leveler: leveler}
}

// Aggregate matches every member against the movie and folds the
// probabilities per the strategy. Members are reported in input order.
// An empty member list or unknown strategy fails with engine.ErrInvalidInput;
// an empty strategy selects least misery.
func (a *Aggregator) Aggregate(members []Member, movie *vector.TasteVector, strategy Strategy) (Result, error) {
	if strategy == "" {
		strategy = StrategyLeastMisery
	}
	if strategy != StrategyLeastMisery && strategy != StrategyAverage {
		return Result{}, fmt.Errorf("%w: unknown strategy %q", engine.ErrInvalidInput, strategy)
	}
	if len(members) == 0 {
		return Result{}, fmt.Errorf("%w: group aggregation requires at least one member", engine.ErrInvalidInput)
	}

	probs := make([]float64, 0, len(members))
	results := make([]MemberResult, 0, len(members))
	for _, member := range members {
		matched := a.matcher.Match(member.Vector, movie)
		probs = append(probs, matched.Probability)
		results = append(results, MemberResult{
			ID:                member.ID,
			Probability:       matched.Probability,
			Confidence:        matched.Confidence,
			SatisfactionLevel: a.leveler.Level(matched.Probability, matched.Confidence),
		})
	}

	stats := Statistics{
		Min:      floats(probs, math.Min),
		Max:      floats(probs, math.Max),
		Mean:     round3(stat.Mean(probs, nil)),
		Variance: round3(stat.PopVariance(probs, nil)),
	}

	groupScore := stats.Min
	if strategy == StrategyAverage {
		groupScore = stats.Mean
	}

	return Result{
		GroupScore:     round3(groupScore),
		Strategy:       strategy,
		Members:        results,
		Statistics:     stats,
		Comment:        comment(groupScore, stats.Max-stats.Min),
		Recommendation: recommendation(groupScore),
	}, nil
}

// floats folds a non-empty slice with the given pairwise op.
func floats(values []float64, op func(a, b float64) float64) float64 {
	acc := values[0]
	for _, v := range values[1:] {
		acc = op(acc, v)
	}
	return round3(acc)
}

// comment summarizes how contentious the pick is, by score band and by the
// spread between the happiest and unhappiest member.
func comment(groupScore, spread float64) string {
	switch {
	case groupScore >= 0.70 && spread < 0.2:
		return "모두가 만족할 만한 선택입니다!"
	case groupScore >= 0.70:
		return "전반적으로 만족도가 높지만, 일부 의견 차이가 있을 수 있습니다."
	case groupScore >= 0.50 && spread < 0.3:
		return "무난한 선택이지만, 더 나은 옵션을 찾아볼 수도 있습니다."
	case groupScore >= 0.50:
		return "의견이 갈릴 수 있는 선택입니다. 다른 영화도 고려해보세요."
	default:
		return "그룹 전체의 만족도가 낮을 수 있습니다. 다른 영화를 추천드립니다."
	}
}

func recommendation(groupScore float64) string {
	switch {
	case groupScore >= 0.70:
		return "이 영화를 함께 보시는 것을 추천드립니다!"
	case groupScore >= 0.50:
		return "괜찮은 선택이지만, 다른 옵션도 고려해보세요."
	default:
		return "다른 영화를 찾아보시는 것을 권장합니다."
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
