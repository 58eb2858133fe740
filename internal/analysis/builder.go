package analysis

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"

	"cinetaste/internal/taxonomy"
	"cinetaste/internal/vector"
)

// Source reports which path produced a vector.
type Source string

const (
	SourceAnalyzer Source = "analyzer"
	SourceFallback Source = "fallback"
)

// Hints carries structured evidence next to the free text: items the owner
// already likes or dislikes, resolved to tags through an ItemTagLookup.
type Hints struct {
	LikedItemIDs    []string `json:"liked_item_ids"`
	DislikedItemIDs []string `json:"disliked_item_ids"`
}

// BuildInput is the raw material for a taste vector. Text may be empty.
// Dislikes is a comma-separated list of tags or tag keywords the owner wants
// excluded.
type BuildInput struct {
	Text     string `json:"text"`
	Dislikes string `json:"dislikes"`
	Hints    *Hints `json:"hints,omitempty"`
}

// BuildResult is a built vector plus observability fields: which path
// produced it and which genres the input explicitly ruled out.
type BuildResult struct {
	Vector        *vector.TasteVector `json:"vector"`
	Source        Source              `json:"source"`
	ExcludeGenres []string            `json:"exclude_genres,omitempty"`
}

// Builder produces TasteVectors from free-form input. The primary path
// delegates to the semantic analyzer; when the analyzer is absent, fails, or
// returns malformed output, the deterministic fallback takes over, so Build
// never fails because of the analyzer.
type Builder struct {
	tax      *taxonomy.Taxonomy
	analyzer Analyzer
	items    ItemTagLookup

	// minHintFraction is the fraction of referenced items a tag must appear
	// in to survive hint extraction; hintThreshold is the per-item score a
	// tag needs to count as present.
	minHintFraction float64
	hintThreshold   float64
}

// NewBuilder creates a builder. analyzer and items may be nil; a nil analyzer
// pins the builder to the fallback path, a nil items lookup disables hints.
func NewBuilder(tax *taxonomy.Taxonomy, analyzer Analyzer, items ItemTagLookup, minHintFraction, hintThreshold float64) *Builder {
	if minHintFraction <= 0 {
		minHintFraction = 0.5
	}
	if hintThreshold <= 0 {
		hintThreshold = 0.5
	}
	return &Builder{
		tax:             tax,
		analyzer:        analyzer,
		items:           items,
		minHintFraction: minHintFraction,
		hintThreshold:   hintThreshold,
	}
}

// Build produces a taste vector from input. Identical input always yields an
// identical vector on the fallback path.
func (b *Builder) Build(ctx context.Context, input BuildInput) BuildResult {
	tv := vector.New()
	source := SourceFallback

	var excludeTags, includeTags []string

	analysis := b.tryAnalyzer(ctx, input.Text)
	if analysis != nil {
		source = SourceAnalyzer
		for _, cat := range taxonomy.Categories() {
			for tag, score := range analysis.CategoryScores[cat] {
				if b.tax.Contains(cat, tag) {
					tv.SetScore(cat, tag, score)
				}
			}
		}
		for _, key := range taxonomy.Endings() {
			tv.EndingPreference[key] = vector.Clamp(analysis.EndingPreference[key])
		}
		for _, tag := range analysis.ExcludeTags {
			if b.tax.CategoryOf(tag) != "" {
				excludeTags = append(excludeTags, tag)
			}
		}
	} else {
		tv.CategoryScores = fallbackScores(input.Text, b.tax)
		tv.EndingPreference = fallbackEnding(input.Text)

		detected := detectNegation(input.Text)
		excludeTags = append(excludeTags, detected.excludeTags...)
		includeTags = detected.includeTags
	}

	excludeTags = append(excludeTags, b.parseDislikes(input.Dislikes)...)
	excludeTags = dedup(excludeTags)

	boostHints, dislikeHints := b.extractHints(ctx, input.Hints)
	includeTags = append(includeTags, boostHints...)

	for _, tag := range dedup(includeTags) {
		tv.BoostTags.Add(tag)
	}
	for _, tag := range append(excludeTags, dislikeHints...) {
		tv.DislikeTags.Add(tag)
	}
	// Boost wins on conflict; clamp everything.
	tv.Normalize()

	return BuildResult{
		Vector:        tv,
		Source:        source,
		ExcludeGenres: excludedGenres(excludeTags),
	}
}

// Direction derives a direction vector from review text for feedback
// blending. It only fails when the context is already dead; analyzer
// trouble degrades to the fallback like any other build.
func (b *Builder) Direction(ctx context.Context, text string) (*vector.TasteVector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.Build(ctx, BuildInput{Text: text}).Vector, nil
}

// tryAnalyzer runs the semantic analyzer and validates its shape. Any
// failure degrades to nil so the caller switches to the fallback; analyzer
// trouble is logged, never surfaced.
func (b *Builder) tryAnalyzer(ctx context.Context, text string) *Analysis {
	if b.analyzer == nil {
		return nil
	}
	analysis, err := b.analyzer.Analyze(ctx, text, b.tax)
	if err != nil {
		slog.Warn("Semantic analyzer failed, using fallback", "error", err)
		return nil
	}
	for _, cat := range taxonomy.Categories() {
		if len(analysis.CategoryScores[cat]) == 0 {
			slog.Warn("Semantic analyzer output malformed, using fallback", "missing_category", cat)
			return nil
		}
	}
	return analysis
}

// parseDislikes turns the comma-separated dislikes field into taxonomy tags:
// exact tags pass through, anything else is matched by tag keyword.
func (b *Builder) parseDislikes(dislikes string) []string {
	if strings.TrimSpace(dislikes) == "" {
		return nil
	}
	var tags []string
	for _, entry := range strings.Split(dislikes, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if b.tax.CategoryOf(entry) != "" {
			tags = append(tags, entry)
			continue
		}
		for _, kw := range tagKeywords {
			if strings.Contains(entry, kw.keyword) {
				tags = append(tags, kw.tag)
			}
		}
	}
	return tags
}

// extractHints turns liked/disliked item references into boost/dislike tags
// by frequency counting: a tag counts for an item when its score reaches the
// threshold, and survives when it appears in at least minHintFraction of the
// referenced items. Lookup failures skip the item.
func (b *Builder) extractHints(ctx context.Context, hints *Hints) (boost, dislike []string) {
	if hints == nil || b.items == nil {
		return nil, nil
	}
	boost = b.frequentTags(ctx, hints.LikedItemIDs)
	dislike = b.frequentTags(ctx, hints.DislikedItemIDs)
	return boost, dislike
}

func (b *Builder) frequentTags(ctx context.Context, itemIDs []string) []string {
	counts := make(map[string]int)
	resolved := 0
	for _, id := range itemIDs {
		scores, err := b.items.ItemTags(ctx, id)
		if err != nil {
			slog.Warn("Item tag lookup failed, skipping hint", "item_id", id, "error", err)
			continue
		}
		resolved++
		for _, catScores := range scores {
			for tag, score := range catScores {
				if score >= b.hintThreshold {
					counts[tag]++
				}
			}
		}
	}
	if resolved == 0 {
		return nil
	}

	minCount := int(math.Ceil(b.minHintFraction * float64(resolved)))
	if minCount < 1 {
		minCount = 1
	}
	tags := make([]string, 0, len(counts))
	for tag, count := range counts {
		if count >= minCount {
			tags = append(tags, tag)
		}
	}
	// Stable insertion order: most frequent first, name as tie-break.
	sort.Slice(tags, func(i, j int) bool {
		if counts[tags[i]] != counts[tags[j]] {
			return counts[tags[i]] > counts[tags[j]]
		}
		return tags[i] < tags[j]
	})
	return tags
}
