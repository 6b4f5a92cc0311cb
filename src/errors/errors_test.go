package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"timeout", fmt.Errorf("attempt 2: %w", ErrProviderTimeout), true},
		{"transient", HTTPProviderError("openai", "generate", 503, "overloaded"), true},
		{"malformed", NewProviderError("huggingface", "generate", ErrMalformedOutput, "generated response too short"), true},
		{"not configured", NewProviderError("openai", "generate", ErrProviderNotConfigured, "API key not configured"), false},
		{"policy", HTTPProviderError("openai", "generate", 400, `{"code":"content_policy_violation"}`), false},
		{"unclassified network error", errors.New("connection reset by peer"), true},
		{"validation", &ValidationError{Field: "message", Message: "required"}, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestHTTPProviderErrorClassification(t *testing.T) {
	t.Parallel()

	err := HTTPProviderError("openai", "generate", 400, "Your request was rejected by our safety system")
	if !IsContentPolicy(err) {
		t.Fatalf("expected content policy classification, got %v", err)
	}

	err = HTTPProviderError("openai", "generate", 400, "bad request")
	if IsContentPolicy(err) {
		t.Fatalf("plain 400 must not be a policy refusal")
	}
	if !errors.Is(err, ErrTransientProvider) {
		t.Fatalf("plain 400 should be transient, got %v", err)
	}
}

func TestHTTPProviderErrorTruncatesByRune(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "short body kept", body: "overloaded", want: "overloaded"},
		{name: "ascii cut", body: strings.Repeat("a", 250), want: strings.Repeat("a", 200) + "..."},
		{name: "multibyte cut", body: "x" + strings.Repeat("です", 150), want: "x" + strings.Repeat("です", 99) + "で..."},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var pe *ProviderError
			if !errors.As(HTTPProviderError("openai", "generate", 503, tt.body), &pe) {
				t.Fatal("not a ProviderError")
			}
			if !utf8.ValidString(pe.Message) {
				t.Errorf("message is not valid UTF-8: %q", pe.Message)
			}
			if pe.Message != tt.want {
				t.Errorf("message = %q, want %q", pe.Message, tt.want)
			}
		})
	}
}

func TestProviderErrorMessages(t *testing.T) {
	t.Parallel()

	err := NewProviderError("huggingface", "generate", ErrProviderNotConfigured, "API key not configured")
	if got := err.Error(); got != "huggingface API key not configured" {
		t.Errorf("Error() = %q", got)
	}

	err = HTTPProviderError("stability-ai", "image", 500, "boom")
	if got := err.Error(); got != "stability-ai image failed (status 500): boom" {
		t.Errorf("Error() = %q", got)
	}
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	if !IsNotFound(NewDatabaseError("query", "characters", ErrRecordNotFound)) {
		t.Error("wrapped ErrRecordNotFound should be not found")
	}
	if !IsNotFound(WrapWithContext(ErrSessionNotFound, "session %s", "abc")) {
		t.Error("wrapped ErrSessionNotFound should be not found")
	}
	if IsNotFound(ErrInvalidInput) {
		t.Error("ErrInvalidInput is not a not-found error")
	}
}
