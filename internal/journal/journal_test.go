package journal

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinetaste/internal/feedback"
)

func sampleResult(eventID string) *feedback.UpdateResult {
	return &feedback.UpdateResult{
		EventID:      eventID,
		UserID:       "u1",
		MovieID:      "m1",
		Rating:       4.5,
		RatingWeight: 0.75,
	}
}

func TestJournal_Record(t *testing.T) {
	file := filepath.Join(t.TempDir(), "feedback.jsonl")
	j := New(file, 1, 1)

	j.Record(sampleResult("e1"))
	j.Record(sampleResult("e2"))
	require.NoError(t, j.Close())

	f, err := os.Open(file)
	require.NoError(t, err)
	defer f.Close()

	var events []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var event map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &event))
		events = append(events, event)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, events, 2)

	assert.Equal(t, "e1", events[0]["event_id"])
	assert.Equal(t, "e2", events[1]["event_id"])
	assert.Equal(t, "u1", events[0]["user_id"])
	assert.Equal(t, "m1", events[0]["movie_id"])
	assert.Equal(t, 4.5, events[0]["rating"])
	assert.Equal(t, 0.75, events[0]["rating_weight"])
	assert.Contains(t, events[0], "time")
	assert.NotContains(t, events[0], "level", "journal lines are events, not logs")
	assert.NotContains(t, events[0], "msg")
}

func TestNop_Record(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop{}.Record(sampleResult("e1"))
	})
}
