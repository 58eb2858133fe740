package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinetaste/internal/analysis"
	"cinetaste/internal/feedback"
	"cinetaste/internal/group"
	"cinetaste/internal/journal"
	"cinetaste/internal/match"
	"cinetaste/internal/store"
	"cinetaste/internal/taxonomy"
	"cinetaste/internal/vector"
)

type capturingRecorder struct {
	events []*feedback.UpdateResult
}

func (c *capturingRecorder) Record(result *feedback.UpdateResult) {
	c.events = append(c.events, result)
}

type testEnv struct {
	mux      *http.ServeMux
	vectors  *store.Store
	recorder *capturingRecorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	vectors, err := store.Open(filepath.Join(t.TempDir(), "vectors.db"))
	require.NoError(t, err)
	t.Cleanup(func() { vectors.Close() })

	tax := taxonomy.Default()
	builder := analysis.NewBuilder(tax, nil, vectors, 0, 0)
	matcher := match.NewMatcher(match.DefaultWeights())
	aggregator := group.NewAggregator(matcher, group.DefaultThresholds())
	updater := feedback.NewUpdater(feedback.DefaultConfig(), builder)
	recorder := &capturingRecorder{}

	router := NewApiV1Router(tax, builder, matcher, aggregator, updater, vectors, recorder)
	return &testEnv{mux: router.Mux(), vectors: vectors, recorder: recorder}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) storeUser(t *testing.T, id, text string) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/users/"+id+"/vector",
		analysis.BuildInput{Text: text})
	require.Equal(t, http.StatusOK, rec.Code)
}

func (e *testEnv) storeMovie(t *testing.T, id, title string) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/movies/"+id+"/vector",
		analysis.MovieMeta{Title: title})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestApiV1Router_UserVector(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/users/u1/vector",
		analysis.BuildInput{Text: "무서운 거 싫어요"})
	require.Equal(t, http.StatusOK, rec.Code)

	var result analysis.BuildResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, analysis.SourceFallback, result.Source)
	assert.True(t, result.Vector.DislikeTags.Contains("무서워요"))

	stored, err := env.vectors.Get(context.Background(), store.KindUser, "u1")
	require.NoError(t, err)
	assert.True(t, stored.DislikeTags.Contains("무서워요"))
}

func TestApiV1Router_UserVector_BadBody(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/u1/vector",
		bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestApiV1Router_MovieVector(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/movies/m1/vector",
		analysis.MovieMeta{Title: "어느 영화", Genres: []string{"드라마"}})
	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		Source        analysis.Source `json:"source"`
		EmbeddingText string          `json:"embedding_text"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, analysis.SourceFallback, result.Source)
	assert.Contains(t, result.EmbeddingText, "어느 영화")

	_, err := env.vectors.Get(context.Background(), store.KindMovie, "m1")
	assert.NoError(t, err)
}

func TestApiV1Router_GetVector(t *testing.T) {
	env := newTestEnv(t)
	env.storeUser(t, "u1", "잔잔한 영화 좋아해요")

	t.Run("stored vector", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/vectors/user/u1", nil)
		rec := httptest.NewRecorder()
		env.mux.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var tv vector.TasteVector
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tv))
	})

	t.Run("missing vector", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/vectors/user/unknown", nil)
		rec := httptest.NewRecorder()
		env.mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("bad kind", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/vectors/group/u1", nil)
		rec := httptest.NewRecorder()
		env.mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestApiV1Router_PutVector(t *testing.T) {
	env := newTestEnv(t)

	t.Run("valid vector is stored", func(t *testing.T) {
		tv := vector.New()
		tv.SetScore(taxonomy.CategoryEmotion, "따뜻해요", 0.8)

		rec := env.do(t, http.MethodPut, "/api/v1/vectors/user/u9", tv)
		require.Equal(t, http.StatusOK, rec.Code)

		stored, err := env.vectors.Get(context.Background(), store.KindUser, "u9")
		require.NoError(t, err)
		assert.Equal(t, 0.8, stored.Score(taxonomy.CategoryEmotion, "따뜻해요"))
	})

	t.Run("unknown tag rejected", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, "/api/v1/vectors/user/u9", map[string]any{
			"category_scores": map[string]any{"emotion": map[string]float64{"없는 태그": 0.5}},
		})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("bad kind rejected", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, "/api/v1/vectors/group/u9", vector.New())
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestApiV1Router_Match(t *testing.T) {
	env := newTestEnv(t)
	env.storeUser(t, "u1", "잔잔한 영화 좋아해요")
	env.storeMovie(t, "m1", "어느 영화")

	rec := env.do(t, http.MethodPost, "/api/v1/match",
		map[string]string{"user_id": "u1", "movie_id": "m1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var result match.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.GreaterOrEqual(t, result.Probability, 0.0)
	assert.LessOrEqual(t, result.Probability, 1.0)
}

func TestApiV1Router_Match_UnknownUser(t *testing.T) {
	env := newTestEnv(t)
	env.storeMovie(t, "m1", "어느 영화")

	rec := env.do(t, http.MethodPost, "/api/v1/match",
		map[string]string{"user_id": "ghost", "movie_id": "m1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApiV1Router_Group(t *testing.T) {
	env := newTestEnv(t)
	env.storeUser(t, "u1", "잔잔한 영화 좋아해요")
	env.storeUser(t, "u2", "화려한 액션 좋아해요")
	env.storeMovie(t, "m1", "어느 영화")

	rec := env.do(t, http.MethodPost, "/api/v1/group", map[string]any{
		"member_ids": []string{"u1", "u2"},
		"movie_id":   "m1",
		"strategy":   "average",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result group.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, group.StrategyAverage, result.Strategy)
	assert.Len(t, result.Members, 2)
	assert.NotEmpty(t, result.Recommendation)
}

func TestApiV1Router_Group_InvalidStrategy(t *testing.T) {
	env := newTestEnv(t)
	env.storeUser(t, "u1", "잔잔한 영화 좋아해요")
	env.storeMovie(t, "m1", "어느 영화")

	rec := env.do(t, http.MethodPost, "/api/v1/group", map[string]any{
		"member_ids": []string{"u1"},
		"movie_id":   "m1",
		"strategy":   "median",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestApiV1Router_Feedback(t *testing.T) {
	env := newTestEnv(t)
	env.storeUser(t, "u1", "잔잔한 영화 좋아해요")
	env.storeMovie(t, "m1", "어느 영화")

	before, err := env.vectors.Get(context.Background(), store.KindUser, "u1")
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/api/v1/feedback", map[string]any{
		"user_id":  "u1",
		"movie_id": "m1",
		"rating":   5.0,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result feedback.UpdateResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1.0, result.RatingWeight)
	assert.NotEmpty(t, result.EventID)

	// The updated user vector is persisted and the event journaled.
	after, err := env.vectors.Get(context.Background(), store.KindUser, "u1")
	require.NoError(t, err)
	assert.NotEqual(t, before.CategoryScores, after.CategoryScores)

	require.Len(t, env.recorder.events, 1)
	assert.Equal(t, result.EventID, env.recorder.events[0].EventID)
}

func TestApiV1Router_Feedback_Validation(t *testing.T) {
	env := newTestEnv(t)
	env.storeUser(t, "u1", "잔잔한 영화 좋아해요")
	env.storeMovie(t, "m1", "어느 영화")

	t.Run("rating out of range", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/feedback", map[string]any{
			"user_id":  "u1",
			"movie_id": "m1",
			"rating":   6.0,
		})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("missing profile", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/feedback", map[string]any{
			"user_id":  "ghost",
			"movie_id": "m1",
			"rating":   4.0,
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("nothing journaled on failure", func(t *testing.T) {
		assert.Empty(t, env.recorder.events)
	})
}

func TestApiV1Router_Stats(t *testing.T) {
	env := newTestEnv(t)
	env.storeUser(t, "u1", "잔잔한 영화 좋아해요")
	env.storeMovie(t, "m1", "기생충")
	env.storeMovie(t, "m2", "올드보이")

	rec := env.do(t, http.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats statsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Users)
	assert.Equal(t, 2, stats.Movies)
}

func TestNewServer(t *testing.T) {
	vectors, err := store.Open(filepath.Join(t.TempDir(), "vectors.db"))
	require.NoError(t, err)
	t.Cleanup(func() { vectors.Close() })

	tax := taxonomy.Default()
	builder := analysis.NewBuilder(tax, nil, vectors, 0, 0)
	matcher := match.NewMatcher(match.DefaultWeights())
	router := NewApiV1Router(tax, builder, matcher,
		group.NewAggregator(matcher, group.DefaultThresholds()),
		feedback.NewUpdater(feedback.DefaultConfig(), builder),
		vectors, journal.Nop{})

	srv := NewServer(":0", router)
	assert.NotNil(t, srv)
}
