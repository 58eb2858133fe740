package analysis

import (
	"context"

	"cinetaste/internal/taxonomy"
	"cinetaste/internal/vector"
)

// Analysis is a semantic analyzer's reading of a piece of text: a score for
// every taxonomy tag, ending affinities, and the tags the text explicitly
// rules out.
type Analysis struct {
	CategoryScores   map[string]vector.Scores `json:"category_scores"`
	EndingPreference vector.Scores            `json:"ending_preference"`
	ExcludeTags      []string                 `json:"exclude_tags"`
}

// Analyzer is the external semantic analysis collaborator. Implementations
// may fail or time out; the builder degrades to the deterministic fallback
// and never propagates analyzer failures to its caller.
type Analyzer interface {
	Analyze(ctx context.Context, text string, tax *taxonomy.Taxonomy) (*Analysis, error)
	Embed(ctx context.Context, text string) ([]float64, error)
}

// ItemTagLookup resolves a referenced item (a liked or disliked movie) to its
// per-category tag scores. Used for frequency-based hint extraction.
type ItemTagLookup interface {
	ItemTags(ctx context.Context, itemID string) (map[string]vector.Scores, error)
}
