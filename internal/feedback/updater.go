// Package feedback implements the online preference-learning rule: rating
// events pull a user's taste vector toward or away from the rated movie's
// profile, and review text nudges the movie's own profile at a deliberately
// slower rate to keep the catalog stable.
package feedback

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cinetaste/internal/engine"
	"cinetaste/internal/taxonomy"
	"cinetaste/internal/vector"
)

// Config holds the learning-rule tunables.
type Config struct {
	// LearningRateUser scales how fast the user vector chases the movie
	// profile; LearningRateMovie is intentionally smaller so one loud review
	// cannot move the catalog.
	LearningRateUser  float64 `mapstructure:"learning_rate_user"`
	LearningRateMovie float64 `mapstructure:"learning_rate_movie"`

	// HighRating and LowRating bound the bands that trigger boost/dislike
	// tag maintenance and pick the review intensity factor.
	HighRating float64 `mapstructure:"high_rating"`
	LowRating  float64 `mapstructure:"low_rating"`

	// TopTagsPerCategory is how many of the movie's strongest tags per
	// category enter the user's tag lists; TagScoreThreshold keeps weak
	// tags out of that selection.
	TopTagsPerCategory int     `mapstructure:"top_tags_per_category"`
	TagScoreThreshold  float64 `mapstructure:"tag_score_threshold"`
}

// DefaultConfig returns the standard learning rule.
func DefaultConfig() Config {
	return Config{
		LearningRateUser:   0.15,
		LearningRateMovie:  0.05,
		HighRating:         4.0,
		LowRating:          2.0,
		TopTagsPerCategory: 1,
		TagScoreThreshold:  0.3,
	}
}

// DirectionSource derives a direction vector from review text, via the
// vector builder's analyzer-or-fallback path.
type DirectionSource interface {
	Direction(ctx context.Context, text string) (*vector.TasteVector, error)
}

// UpdateInput is one observed rating event. User and Movie are the stored
// vectors; both must exist.
type UpdateInput struct {
	UserID     string
	MovieID    string
	User       *vector.TasteVector
	Movie      *vector.TasteVector
	Rating     float64
	ReviewText string
}

// UpdateResult carries the updated vector copies. The inputs are never
// mutated; the caller persists the copies. Each call applies a fresh
// increment — replaying an event doubles its effect, so at-most-once
// delivery is the caller's job.
type UpdateResult struct {
	EventID      string              `json:"event_id"`
	UserID       string              `json:"user_id"`
	MovieID      string              `json:"movie_id"`
	Rating       float64             `json:"rating"`
	RatingWeight float64             `json:"rating_weight"`
	User         *vector.TasteVector `json:"user"`
	Movie        *vector.TasteVector `json:"movie"`
	// MovieAdjusted reports whether the review pass moved the movie vector;
	// ReviewError carries the analysis failure when it did not. A review
	// failure never rolls back the user-side update.
	MovieAdjusted bool      `json:"movie_adjusted"`
	ReviewError   string    `json:"review_error,omitempty"`
	AppliedAt     time.Time `json:"applied_at"`
}

// Updater applies rating feedback to stored vectors. Pure over its inputs;
// serializing concurrent updates to the same entity is the persistence
// layer's responsibility.
type Updater struct {
	config    Config
	direction DirectionSource
}

// NewUpdater creates an updater. direction may be nil, which disables the
// review-text movie adjustment.
func NewUpdater(config Config, direction DirectionSource) *Updater {
	return &Updater{config: config, direction: direction}
}

// Update applies one rating event and returns updated copies of both
// vectors. Fails with engine.ErrInvalidInput for a rating outside
// [0.5, 5.0] and engine.ErrMissingProfile when either vector is absent;
// in both cases nothing is produced.
func (u *Updater) Update(ctx context.Context, input UpdateInput) (*UpdateResult, error) {
	if input.Rating < 0.5 || input.Rating > 5.0 {
		return nil, fmt.Errorf("%w: rating %.2f outside [0.5, 5.0]", engine.ErrInvalidInput, input.Rating)
	}
	if input.User == nil {
		return nil, fmt.Errorf("%w: user %q has no taste vector", engine.ErrMissingProfile, input.UserID)
	}
	if input.Movie == nil {
		return nil, fmt.Errorf("%w: movie %q has no taste vector", engine.ErrMissingProfile, input.MovieID)
	}

	// Ratings above the 3.0 midpoint pull toward the movie profile,
	// below push away from it.
	ratingWeight := (input.Rating - 3.0) / 2.0

	user := input.User.Clone()
	u.pullToward(user, input.Movie, u.config.LearningRateUser*ratingWeight)
	u.maintainTagSets(user, input.Movie, input.Rating)

	result := &UpdateResult{
		EventID:      uuid.NewString(),
		UserID:       input.UserID,
		MovieID:      input.MovieID,
		Rating:       input.Rating,
		RatingWeight: ratingWeight,
		User:         user,
		Movie:        input.Movie.Clone(),
		AppliedAt:    time.Now().UTC(),
	}

	if input.ReviewText != "" && u.direction != nil {
		if err := u.adjustMovie(ctx, result.Movie, input.ReviewText, input.Rating); err != nil {
			// Report, keep the user-side update, leave the movie as-is.
			result.Movie = input.Movie.Clone()
			result.ReviewError = err.Error()
		} else {
			result.MovieAdjusted = true
		}
	}

	return result, nil
}

// pullToward applies the exponential-moving-average step to every tag score
// target shares with source, including ending preferences:
//
//	new = current + rate * (source - current)
//
// A negative rate moves away from the source. Results are clamped to [0, 1].
func (u *Updater) pullToward(target, source *vector.TasteVector, rate float64) {
	for cat, scores := range target.CategoryScores {
		sourceScores := source.CategoryScores[cat]
		for tag, current := range scores {
			movieValue, ok := sourceScores[tag]
			if !ok {
				continue
			}
			scores[tag] = vector.Clamp(current + rate*(movieValue-current))
		}
	}
	for key, current := range target.EndingPreference {
		movieValue, ok := source.EndingPreference[key]
		if !ok {
			continue
		}
		target.EndingPreference[key] = vector.Clamp(current + rate*(movieValue-current))
	}
}

// maintainTagSets feeds the movie's defining tags into the user's bounded
// lists: boosts for high ratings, dislikes for low ones. Boost wins on
// conflict, so a disliked tag that is already boosted is skipped.
func (u *Updater) maintainTagSets(user *vector.TasteVector, movie *vector.TasteVector, rating float64) {
	switch {
	case rating >= u.config.HighRating:
		for _, tag := range u.topMovieTags(movie) {
			user.BoostTags.Add(tag)
			user.DislikeTags.Remove(tag)
		}
	case rating <= u.config.LowRating:
		for _, tag := range u.topMovieTags(movie) {
			if user.BoostTags.Contains(tag) {
				continue
			}
			user.DislikeTags.Add(tag)
		}
	}
}

func (u *Updater) topMovieTags(movie *vector.TasteVector) []string {
	var tags []string
	for _, cat := range taxonomy.Categories() {
		tags = append(tags, movie.TopTags(cat, u.config.TopTagsPerCategory, u.config.TagScoreThreshold)...)
	}
	return tags
}

// adjustMovie blends a review-derived direction vector into the movie's
// scores. The movie learning rate is scaled by an intensity factor keyed to
// the rating band: extreme ratings are treated as stronger signals about
// what the movie actually is.
func (u *Updater) adjustMovie(ctx context.Context, movie *vector.TasteVector, reviewText string, rating float64) error {
	direction, err := u.direction.Direction(ctx, reviewText)
	if err != nil {
		return err
	}

	intensity := 0.6
	switch {
	case rating >= u.config.HighRating:
		intensity = 1.0
	case rating <= u.config.LowRating:
		intensity = 0.3
	}

	u.pullToward(movie, direction, u.config.LearningRateMovie*intensity)
	return nil
}
