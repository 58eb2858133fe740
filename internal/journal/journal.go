// Package journal captures accepted feedback events as rotating JSONL files,
// for offline inspection and future retraining of the learning-rule
// constants.
package journal

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"

	"cinetaste/internal/feedback"
)

// Recorder is what the HTTP layer needs from a journal.
type Recorder interface {
	Record(result *feedback.UpdateResult)
}

// eventHandler is a slog handler that writes one flat JSON object per record
// with a "2006-01-02 15:04:05" timestamp and no level field, keeping the
// journal files plain JSONL rather than log-shaped.
type eventHandler struct {
	out io.Writer
}

func (h *eventHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any)
	attrs["time"] = r.Time.Format("2006-01-02 15:04:05")
	r.Attrs(func(a slog.Attr) bool {
		if a.Key != "" && a.Value.Any() != nil {
			attrs[a.Key] = a.Value.Any()
		}
		return true
	})

	data, err := json.Marshal(attrs)
	if err != nil {
		return err
	}
	_, err = h.out.Write(append(data, '\n'))
	return err
}

func (h *eventHandler) WithAttrs([]slog.Attr) slog.Handler {
	panic("WithAttrs is not supported by eventHandler")
}

func (h *eventHandler) WithGroup(string) slog.Handler {
	panic("WithGroup is not supported by eventHandler")
}

func (h *eventHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

// Journal appends feedback events to a rotating, compressed JSONL file.
// Thread-safe through lumberjack and slog.
type Journal struct {
	lumberjack *lumberjack.Logger
	logger     *slog.Logger
}

// New creates a journal writing to file, rotating at maxSize MB and keeping
// maxBackups old files.
func New(file string, maxSize, maxBackups int) *Journal {
	j := &Journal{}
	j.lumberjack = &lumberjack.Logger{
		Filename:   file,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		Compress:   true,
	}
	j.logger = slog.New(&eventHandler{out: j.lumberjack})
	return j
}

// Record appends one applied feedback event.
func (j *Journal) Record(result *feedback.UpdateResult) {
	j.logger.Info("feedback",
		"event_id", result.EventID,
		"user_id", result.UserID,
		"movie_id", result.MovieID,
		"rating", result.Rating,
		"rating_weight", result.RatingWeight,
		"movie_adjusted", result.MovieAdjusted,
		"review_error", result.ReviewError,
	)
}

// Close stops the underlying file writer.
func (j *Journal) Close() error {
	return j.lumberjack.Close()
}

// Nop is a no-op recorder for configurations without a journal file.
type Nop struct{}

func (Nop) Record(*feedback.UpdateResult) {}
