package analysis

import (
	"fmt"
	"strings"

	"cinetaste/internal/taxonomy"
	"cinetaste/internal/vector"
)

// MovieMeta is the metadata a movie vector is built from.
type MovieMeta struct {
	Title     string   `json:"title"`
	Overview  string   `json:"overview,omitempty"`
	Synopsis  string   `json:"synopsis,omitempty"`
	Keywords  []string `json:"keywords,omitempty"`
	Genres    []string `json:"genres,omitempty"`
	Directors []string `json:"directors,omitempty"`
	Cast      []string `json:"cast,omitempty"`
}

// AnalysisText flattens the metadata into the text the builder analyzes.
func (m MovieMeta) AnalysisText() string {
	parts := make([]string, 0, 8)
	for _, s := range []string{m.Title, m.Overview, m.Synopsis} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	for _, list := range [][]string{m.Keywords, m.Genres, m.Directors, m.Cast} {
		parts = append(parts, list...)
	}
	return strings.Join(parts, " ")
}

// EmbeddingText is a compact searchable summary of a movie vector: title plus
// its strongest emotion and story tags.
func EmbeddingText(title string, tv *vector.TasteVector) string {
	emotions := tv.TopTags(taxonomy.CategoryEmotion, 3, 0)
	narrative := tv.TopTags(taxonomy.CategoryStoryFlow, 3, 0)
	return fmt.Sprintf("Title: %s. Emotions: %s. Narrative: %s.",
		title, strings.Join(emotions, ", "), strings.Join(narrative, ", "))
}
