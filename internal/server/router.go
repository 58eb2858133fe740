package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"cinetaste/internal/analysis"
	"cinetaste/internal/engine"
	"cinetaste/internal/feedback"
	"cinetaste/internal/group"
	"cinetaste/internal/journal"
	"cinetaste/internal/match"
	"cinetaste/internal/store"
	"cinetaste/internal/taxonomy"
	"cinetaste/internal/vector"
)

// ApiV1Router manages routes for API version 1: vector building, matching,
// group simulation, and rating feedback. All endpoints follow a REST-like
// structure over JSON bodies.
type ApiV1Router struct {
	tax        *taxonomy.Taxonomy
	builder    *analysis.Builder
	matcher    *match.Matcher
	aggregator *group.Aggregator
	updater    *feedback.Updater
	vectors    *store.Store
	journal    journal.Recorder
}

// NewApiV1Router creates a new API v1 router over the engine components.
func NewApiV1Router(
	tax *taxonomy.Taxonomy,
	builder *analysis.Builder,
	matcher *match.Matcher,
	aggregator *group.Aggregator,
	updater *feedback.Updater,
	vectors *store.Store,
	recorder journal.Recorder,
) *ApiV1Router {
	return &ApiV1Router{
		tax:        tax,
		builder:    builder,
		matcher:    matcher,
		aggregator: aggregator,
		updater:    updater,
		vectors:    vectors,
		journal:    recorder,
	}
}

// Mux returns a configured *http.ServeMux with registered handlers:
// - POST /api/v1/users/{id}/vector — build and store a user vector
// - POST /api/v1/movies/{id}/vector — build and store a movie vector
// - GET  /api/v1/vectors/{kind}/{id} — fetch a stored vector
// - PUT  /api/v1/vectors/{kind}/{id} — store a prebuilt vector
// - POST /api/v1/match — match one user against one movie
// - POST /api/v1/group — aggregate a group against one movie
// - POST /api/v1/feedback — apply a rating event
// - GET  /api/v1/stats — stored vector counts per kind
func (ar *ApiV1Router) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/users/{id}/vector", ar.userVectorHandler)
	mux.HandleFunc("POST /api/v1/movies/{id}/vector", ar.movieVectorHandler)
	mux.HandleFunc("GET /api/v1/vectors/{kind}/{id}", ar.getVectorHandler)
	mux.HandleFunc("PUT /api/v1/vectors/{kind}/{id}", ar.putVectorHandler)
	mux.HandleFunc("POST /api/v1/match", ar.matchHandler)
	mux.HandleFunc("POST /api/v1/group", ar.groupHandler)
	mux.HandleFunc("POST /api/v1/feedback", ar.feedbackHandler)
	mux.HandleFunc("GET /api/v1/stats", ar.statsHandler)
	return mux
}

type statsResponse struct {
	Users  int `json:"users"`
	Movies int `json:"movies"`
}

// statsHandler reports how many vectors of each kind are stored.
func (ar *ApiV1Router) statsHandler(w http.ResponseWriter, r *http.Request) {
	users, err := ar.vectors.Count(r.Context(), store.KindUser)
	if err != nil {
		writeError(w, err)
		return
	}
	movies, err := ar.vectors.Count(r.Context(), store.KindMovie)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, statsResponse{Users: users, Movies: movies})
}

// userVectorHandler builds a user taste vector from survey text and hints,
// stores it, and reports which path produced it.
func (ar *ApiV1Router) userVectorHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var input analysis.BuildInput
	if !decodeBody(w, r, &input) {
		return
	}

	result := ar.builder.Build(r.Context(), input)
	if err := ar.vectors.Put(r.Context(), store.KindUser, id, result.Vector); err != nil {
		slog.Error("Unable to store user vector", "user_id", id, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	writeJSON(w, result)
}

type movieVectorResponse struct {
	Vector        *vector.TasteVector `json:"vector"`
	Source        analysis.Source     `json:"source"`
	EmbeddingText string              `json:"embedding_text"`
}

// movieVectorHandler builds a movie vector from its metadata and stores it.
func (ar *ApiV1Router) movieVectorHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var meta analysis.MovieMeta
	if !decodeBody(w, r, &meta) {
		return
	}

	result := ar.builder.Build(r.Context(), analysis.BuildInput{Text: meta.AnalysisText()})
	if err := ar.vectors.Put(r.Context(), store.KindMovie, id, result.Vector); err != nil {
		slog.Error("Unable to store movie vector", "movie_id", id, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	writeJSON(w, movieVectorResponse{
		Vector:        result.Vector,
		Source:        result.Source,
		EmbeddingText: analysis.EmbeddingText(meta.Title, result.Vector),
	})
}

// getVectorHandler fetches a stored vector.
func (ar *ApiV1Router) getVectorHandler(w http.ResponseWriter, r *http.Request) {
	kind := store.Kind(r.PathValue("kind"))
	if kind != store.KindUser && kind != store.KindMovie {
		w.WriteHeader(http.StatusUnprocessableEntity)
		return
	}

	tv, err := ar.vectors.Get(r.Context(), kind, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, tv)
}

// putVectorHandler stores a prebuilt vector, e.g. one exported from another
// deployment. Unlike the build endpoints, the payload is validated against
// the taxonomy before it is accepted.
func (ar *ApiV1Router) putVectorHandler(w http.ResponseWriter, r *http.Request) {
	kind := store.Kind(r.PathValue("kind"))
	if kind != store.KindUser && kind != store.KindMovie {
		w.WriteHeader(http.StatusUnprocessableEntity)
		return
	}

	var tv vector.TasteVector
	if !decodeBody(w, r, &tv) {
		return
	}
	if err := tv.Validate(ar.tax); err != nil {
		writeError(w, err)
		return
	}
	tv.Normalize()

	id := r.PathValue("id")
	if err := ar.vectors.Put(r.Context(), kind, id, &tv); err != nil {
		slog.Error("Unable to store vector", "kind", kind, "id", id, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	writeJSON(w, &tv)
}

type matchRequest struct {
	UserID  string `json:"user_id"`
	MovieID string `json:"movie_id"`
}

// matchHandler loads both vectors and computes the satisfaction probability.
func (ar *ApiV1Router) matchHandler(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := ar.vectors.Get(r.Context(), store.KindUser, req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	movie, err := ar.vectors.Get(r.Context(), store.KindMovie, req.MovieID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, ar.matcher.Match(user, movie))
}

type groupRequest struct {
	MemberIDs []string       `json:"member_ids"`
	MovieID   string         `json:"movie_id"`
	Strategy  group.Strategy `json:"strategy"`
}

// groupHandler aggregates per-member satisfaction into a group score.
func (ar *ApiV1Router) groupHandler(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if !decodeBody(w, r, &req) {
		return
	}

	movie, err := ar.vectors.Get(r.Context(), store.KindMovie, req.MovieID)
	if err != nil {
		writeError(w, err)
		return
	}

	members := make([]group.Member, 0, len(req.MemberIDs))
	for _, id := range req.MemberIDs {
		user, err := ar.vectors.Get(r.Context(), store.KindUser, id)
		if err != nil {
			writeError(w, err)
			return
		}
		members = append(members, group.Member{ID: id, Vector: user})
	}

	result, err := ar.aggregator.Aggregate(members, movie, req.Strategy)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, result)
}

type feedbackRequest struct {
	UserID     string  `json:"user_id"`
	MovieID    string  `json:"movie_id"`
	Rating     float64 `json:"rating"`
	ReviewText string  `json:"review_text"`
}

// feedbackHandler applies one rating event: both vectors are read, updated,
// and written back under per-entity locks so concurrent feedback for the
// same user or movie cannot lose increments.
func (ar *ApiV1Router) feedbackHandler(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if !decodeBody(w, r, &req) {
		return
	}

	unlock := ar.vectors.LockEntities(
		store.EntityKey(store.KindUser, req.UserID),
		store.EntityKey(store.KindMovie, req.MovieID),
	)
	defer unlock()

	user, err := ar.vectors.Get(r.Context(), store.KindUser, req.UserID)
	if err != nil && !errors.Is(err, engine.ErrNotFound) {
		writeError(w, err)
		return
	}
	movie, err := ar.vectors.Get(r.Context(), store.KindMovie, req.MovieID)
	if err != nil && !errors.Is(err, engine.ErrNotFound) {
		writeError(w, err)
		return
	}

	result, err := ar.updater.Update(r.Context(), feedback.UpdateInput{
		UserID:     req.UserID,
		MovieID:    req.MovieID,
		User:       user,
		Movie:      movie,
		Rating:     req.Rating,
		ReviewText: req.ReviewText,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if err := ar.vectors.Put(r.Context(), store.KindUser, req.UserID, result.User); err != nil {
		slog.Error("Unable to store updated user vector", "user_id", req.UserID, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if err := ar.vectors.Put(r.Context(), store.KindMovie, req.MovieID, result.Movie); err != nil {
		slog.Error("Unable to store updated movie vector", "movie_id", req.MovieID, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	ar.journal.Record(result)
	writeJSON(w, result)
}

// decodeBody unmarshals the request body into v, answering 422 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		slog.Warn("Unable to decode request body", "error", err)
		w.WriteHeader(http.StatusUnprocessableEntity)
		return false
	}
	return true
}

// writeError maps engine failures to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidInput):
		slog.Warn("Invalid input", "error", err)
		w.WriteHeader(http.StatusUnprocessableEntity)
	case errors.Is(err, engine.ErrNotFound), errors.Is(err, engine.ErrMissingProfile):
		slog.Warn("Profile not found", "error", err)
		w.WriteHeader(http.StatusNotFound)
	default:
		slog.Error("Request failed", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("Unable to marshal response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}
