package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type memoryRecorder struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (m *memoryRecorder) Record(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return m.err
}

func TestSlogRecorder(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	r := NewSlogRecorder(logger)

	err := r.Record(context.Background(), Event{
		Kind:           KindText,
		CharacterID:    "c1",
		ModelUsed:      "local-fallback",
		Fallback:       true,
		FallbackReason: "openai API key not configured; Using local fallback response",
		Timestamp:      time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if line["level"] != "WARN" {
		t.Errorf("fallback events should log at WARN, got %v", line["level"])
	}
	if line["model_used"] != "local-fallback" {
		t.Errorf("model_used = %v", line["model_used"])
	}
	if !strings.Contains(line["fallback_reason"].(string), "Using local fallback response") {
		t.Errorf("fallback_reason = %v", line["fallback_reason"])
	}
}

func TestMultiJoinsErrors(t *testing.T) {
	t.Parallel()

	ok := &memoryRecorder{}
	bad := &memoryRecorder{err: errors.New("mongo down")}
	m := Multi{ok, bad, Nop{}}

	err := m.Record(context.Background(), Event{Kind: KindImage})
	if err == nil || !strings.Contains(err.Error(), "mongo down") {
		t.Errorf("err = %v", err)
	}
	if len(ok.events) != 1 || len(bad.events) != 1 {
		t.Error("every recorder should receive the event")
	}
}
