package vector

import (
	"encoding/json"
	"fmt"
	"sort"

	"cinetaste/internal/engine"
	"cinetaste/internal/taxonomy"
)

// Bounds for the biasing tag lists.
const (
	MaxBoostTags   = 20
	MaxDislikeTags = 15
)

// Scores maps tag names to scores in [0.0, 1.0].
type Scores map[string]float64

// TasteVector is the shared multi-category profile of a user or a movie:
// per-category tag scores, ending affinities, and the bounded boost/dislike
// tag lists that bias matching beyond the raw similarity.
type TasteVector struct {
	CategoryScores   map[string]Scores `json:"category_scores"`
	EndingPreference Scores            `json:"ending_preference"`
	BoostTags        *TagSet           `json:"boost_tags"`
	DislikeTags      *TagSet           `json:"dislike_tags"`
}

// New returns an empty TasteVector with all categories initialized.
func New() *TasteVector {
	scores := make(map[string]Scores, len(taxonomy.Categories()))
	for _, cat := range taxonomy.Categories() {
		scores[cat] = make(Scores)
	}
	return &TasteVector{
		CategoryScores:   scores,
		EndingPreference: make(Scores),
		BoostTags:        NewTagSet(MaxBoostTags),
		DislikeTags:      NewTagSet(MaxDislikeTags),
	}
}

// Clamp caps v into [0.0, 1.0].
func Clamp(v float64) float64 {
	switch {
	case v < 0.0:
		return 0.0
	case v > 1.0:
		return 1.0
	default:
		return v
	}
}

// Score returns the score for tag in category cat, 0 when absent.
func (tv *TasteVector) Score(cat, tag string) float64 {
	return tv.CategoryScores[cat][tag]
}

// SetScore stores a clamped score for tag in category cat.
func (tv *TasteVector) SetScore(cat, tag string, score float64) {
	if tv.CategoryScores == nil {
		tv.CategoryScores = make(map[string]Scores)
	}
	if tv.CategoryScores[cat] == nil {
		tv.CategoryScores[cat] = make(Scores)
	}
	tv.CategoryScores[cat][tag] = Clamp(score)
}

// TagScore looks up tag across all categories and reports its score and
// whether the movie or user profile carries it at all.
func (tv *TasteVector) TagScore(tag string) (float64, bool) {
	for _, cat := range taxonomy.Categories() {
		if score, ok := tv.CategoryScores[cat][tag]; ok {
			return score, true
		}
	}
	return 0, false
}

// Normalize enforces the container invariants in place: every score is
// clamped to [0, 1], nil sets are initialized, and a tag present in both
// boost and dislike lists is removed from dislikes (boost wins).
func (tv *TasteVector) Normalize() {
	if tv.CategoryScores == nil {
		tv.CategoryScores = make(map[string]Scores)
	}
	for _, scores := range tv.CategoryScores {
		for tag, score := range scores {
			scores[tag] = Clamp(score)
		}
	}
	if tv.EndingPreference == nil {
		tv.EndingPreference = make(Scores)
	}
	for key, score := range tv.EndingPreference {
		tv.EndingPreference[key] = Clamp(score)
	}
	if tv.BoostTags == nil {
		tv.BoostTags = NewTagSet(MaxBoostTags)
	}
	if tv.DislikeTags == nil {
		tv.DislikeTags = NewTagSet(MaxDislikeTags)
	}
	for _, tag := range tv.BoostTags.Tags() {
		tv.DislikeTags.Remove(tag)
	}
}

// Validate checks the vector against the taxonomy: only known categories,
// known tags within each category, and known ending keys are allowed.
// Scores outside [0, 1] are rejected rather than silently clamped, so a
// malformed vector surfaces as engine.ErrInvalidInput.
func (tv *TasteVector) Validate(tax *taxonomy.Taxonomy) error {
	for cat, scores := range tv.CategoryScores {
		if tax.Tags(cat) == nil {
			return fmt.Errorf("%w: unknown category %q", engine.ErrInvalidInput, cat)
		}
		for tag, score := range scores {
			if !tax.Contains(cat, tag) {
				return fmt.Errorf("%w: unknown tag %q in category %q", engine.ErrInvalidInput, tag, cat)
			}
			if score < 0.0 || score > 1.0 {
				return fmt.Errorf("%w: score %.3f for tag %q out of range", engine.ErrInvalidInput, score, tag)
			}
		}
	}

	endings := make(map[string]bool, len(taxonomy.Endings()))
	for _, key := range taxonomy.Endings() {
		endings[key] = true
	}
	for key, score := range tv.EndingPreference {
		if !endings[key] {
			return fmt.Errorf("%w: unknown ending preference %q", engine.ErrInvalidInput, key)
		}
		if score < 0.0 || score > 1.0 {
			return fmt.Errorf("%w: ending score %.3f out of range", engine.ErrInvalidInput, score)
		}
	}

	return nil
}

// Clone returns a deep copy of the vector.
func (tv *TasteVector) Clone() *TasteVector {
	clone := &TasteVector{
		CategoryScores:   make(map[string]Scores, len(tv.CategoryScores)),
		EndingPreference: make(Scores, len(tv.EndingPreference)),
	}
	for cat, scores := range tv.CategoryScores {
		copied := make(Scores, len(scores))
		for tag, score := range scores {
			copied[tag] = score
		}
		clone.CategoryScores[cat] = copied
	}
	for key, score := range tv.EndingPreference {
		clone.EndingPreference[key] = score
	}
	if tv.BoostTags != nil {
		clone.BoostTags = tv.BoostTags.Clone()
	} else {
		clone.BoostTags = NewTagSet(MaxBoostTags)
	}
	if tv.DislikeTags != nil {
		clone.DislikeTags = tv.DislikeTags.Clone()
	} else {
		clone.DislikeTags = NewTagSet(MaxDislikeTags)
	}
	return clone
}

// UnmarshalJSON decodes a vector, rebuilding the tag sets with their proper
// bounds regardless of how many entries the payload carries; overlong lists
// evict FIFO during the rebuild.
func (tv *TasteVector) UnmarshalJSON(data []byte) error {
	var raw struct {
		CategoryScores   map[string]Scores `json:"category_scores"`
		EndingPreference Scores            `json:"ending_preference"`
		BoostTags        []string          `json:"boost_tags"`
		DislikeTags      []string          `json:"dislike_tags"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	decoded := New()
	for cat, scores := range raw.CategoryScores {
		copied := make(Scores, len(scores))
		for tag, score := range scores {
			copied[tag] = score
		}
		decoded.CategoryScores[cat] = copied
	}
	for key, score := range raw.EndingPreference {
		decoded.EndingPreference[key] = score
	}
	for _, tag := range raw.BoostTags {
		decoded.BoostTags.Add(tag)
	}
	for _, tag := range raw.DislikeTags {
		decoded.DislikeTags.Add(tag)
	}

	*tv = *decoded
	return nil
}

// TopTags returns the up to limit highest-scoring tags of category cat whose
// score exceeds threshold, best first. Equal scores fall back to tag order
// for a stable result.
func (tv *TasteVector) TopTags(cat string, limit int, threshold float64) []string {
	scores := tv.CategoryScores[cat]
	tags := make([]string, 0, len(scores))
	for tag, score := range scores {
		if score > threshold {
			tags = append(tags, tag)
		}
	}
	sort.Slice(tags, func(i, j int) bool {
		if scores[tags[i]] != scores[tags[j]] {
			return scores[tags[i]] > scores[tags[j]]
		}
		return tags[i] < tags[j]
	})
	if len(tags) > limit {
		tags = tags[:limit]
	}
	return tags
}
