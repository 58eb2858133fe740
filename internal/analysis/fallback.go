package analysis

import (
	"crypto/sha256"
	"encoding/binary"
	"math"

	"cinetaste/internal/taxonomy"
	"cinetaste/internal/vector"
)

// Ending keys get scored under synthetic tag names so the fallback hash space
// does not collide with taxonomy tags.
const endingTagPrefix = "ending_"

// StableScore maps (text, tag) deterministically into [0, 1]: the first four
// bytes of sha256(text || "||" || tag) scaled by the uint32 range, rounded to
// three decimals. Identical input yields bit-identical output across calls
// and process restarts.
func StableScore(text, tag string) float64 {
	sum := sha256.Sum256([]byte(text + "||" + tag))
	v := float64(binary.BigEndian.Uint32(sum[:4])) / float64(math.MaxUint32)
	return math.Round(v*1000) / 1000
}

// fallbackScores generates deterministic scores for every tag of every
// taxonomy category.
func fallbackScores(text string, tax *taxonomy.Taxonomy) map[string]vector.Scores {
	scores := make(map[string]vector.Scores, len(taxonomy.Categories()))
	for _, cat := range taxonomy.Categories() {
		tags := tax.Tags(cat)
		catScores := make(vector.Scores, len(tags))
		for _, tag := range tags {
			catScores[tag] = StableScore(text, tag)
		}
		scores[cat] = catScores
	}
	return scores
}

// fallbackEnding generates deterministic ending affinities.
func fallbackEnding(text string) vector.Scores {
	ending := make(vector.Scores, len(taxonomy.Endings()))
	for _, key := range taxonomy.Endings() {
		ending[key] = StableScore(text, endingTagPrefix+key)
	}
	return ending
}

// FallbackEmbed returns a deterministic fixed-length embedding derived from
// the same stable hash family, for callers that need a vector when the
// analyzer's embedding endpoint is unreachable.
func FallbackEmbed(text string, dim int) []float64 {
	out := make([]float64, dim)
	var sum [sha256.Size]byte
	for i := 0; i < dim; i += sha256.Size / 4 {
		if i == 0 {
			sum = sha256.Sum256([]byte(text))
		} else {
			sum = sha256.Sum256(sum[:])
		}
		for j := 0; j < sha256.Size/4 && i+j < dim; j++ {
			bits := binary.BigEndian.Uint32(sum[j*4 : j*4+4])
			out[i+j] = float64(bits)/float64(math.MaxUint32)*2 - 1
		}
	}
	return out
}
