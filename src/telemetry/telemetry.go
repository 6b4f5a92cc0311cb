// Package telemetry records one event per generation: which provider served
// it, how long it took and why earlier stages were skipped.
package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

type Kind string

const (
	KindText   Kind = "text"
	KindImage  Kind = "image"
	KindSpeech Kind = "speech"
)

// Attempt is one provider stage of a chain run.
type Attempt struct {
	Provider  string `json:"provider" bson:"provider"`
	Success   bool   `json:"success" bson:"success"`
	ElapsedMS int64  `json:"elapsed_ms" bson:"elapsed_ms"`
	Error     string `json:"error,omitempty" bson:"error,omitempty"`
}

type Event struct {
	Kind           Kind      `json:"kind" bson:"kind"`
	CharacterID    string    `json:"character_id,omitempty" bson:"character_id,omitempty"`
	ModelUsed      string    `json:"model_used" bson:"model_used"`
	Fallback       bool      `json:"fallback" bson:"fallback"`
	FallbackReason string    `json:"fallback_reason,omitempty" bson:"fallback_reason,omitempty"`
	Cached         bool      `json:"cached,omitempty" bson:"cached,omitempty"`
	ResponseTimeMS int64     `json:"response_time_ms" bson:"response_time_ms"`
	TotalTimeMS    int64     `json:"total_time_ms" bson:"total_time_ms"`
	Attempts       []Attempt `json:"attempts,omitempty" bson:"attempts,omitempty"`
	Timestamp      time.Time `json:"timestamp" bson:"timestamp"`
}

// Recorder stores events. Implementations must be safe for concurrent use.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Record(context.Context, Event) error { return nil }

// SlogRecorder writes each event as one structured log line.
type SlogRecorder struct {
	logger *slog.Logger
}

func NewSlogRecorder(logger *slog.Logger) *SlogRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogRecorder{logger: logger}
}

func (r *SlogRecorder) Record(ctx context.Context, ev Event) error {
	level := slog.LevelInfo
	if ev.Fallback {
		level = slog.LevelWarn
	}
	r.logger.LogAttrs(ctx, level, "generation",
		slog.String("kind", string(ev.Kind)),
		slog.String("character_id", ev.CharacterID),
		slog.String("model_used", ev.ModelUsed),
		slog.Bool("fallback", ev.Fallback),
		slog.String("fallback_reason", ev.FallbackReason),
		slog.Bool("cached", ev.Cached),
		slog.Int64("response_time_ms", ev.ResponseTimeMS),
		slog.Int64("total_time_ms", ev.TotalTimeMS),
		slog.Int("attempts", len(ev.Attempts)),
	)
	return nil
}

// Multi fans an event out to every recorder and joins their errors.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, ev Event) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
