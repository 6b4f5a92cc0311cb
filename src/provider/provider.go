// Package provider holds the text-generation adapters. Each adapter owns its
// vendor's request building and response parsing; callers only see Provider.
package provider

import (
	"context"
	"net/http"
	"time"

	"kokoro/src/personality"
)

// Request is everything a text provider may use for one reply.
type Request struct {
	SystemPrompt string
	Character    personality.Character
	History      []personality.Turn
	Message      string
}

// Provider is one remote text backend.
type Provider interface {
	// Name is the short id used in logs and failure reasons.
	Name() string
	// Model is the label reported as model_used on success.
	Model() string
	// Configured is false when credentials or endpoints are missing.
	Configured() bool
	Generate(ctx context.Context, req Request) (string, error)
}

// DefaultMinLength is the shortest cleaned reply accepted as real output.
const DefaultMinLength = 5

func defaultHTTPClient() *http.Client {
	// Attempt deadlines come from the caller's context; this is a backstop.
	return &http.Client{Timeout: 2 * time.Minute}
}

// chatMessages converts history plus the new message into role/content
// pairs, keeping the last window turns.
func chatMessages(history []personality.Turn, message string, window int) []personality.Turn {
	turns := personality.LastTurns(history, window)
	out := make([]personality.Turn, 0, len(turns)+1)
	for _, t := range turns {
		if t.Role != personality.RoleAssistant {
			t.Role = personality.RoleUser
		}
		out = append(out, t)
	}
	return append(out, personality.Turn{Role: personality.RoleUser, Content: message})
}
