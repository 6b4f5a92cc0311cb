package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"kokoro/src/config"
	kerrors "kokoro/src/errors"
	"kokoro/src/personality"
)

var testCharacter = personality.Character{Name: "Aoi", PersonalityTraits: []string{"shy"}}

func testRequest() Request {
	return Request{
		SystemPrompt: "You are Aoi.",
		Character:    testCharacter,
		History: []personality.Turn{
			{Role: personality.RoleUser, Content: "one"},
			{Role: personality.RoleAssistant, Content: "two"},
			{Role: personality.RoleUser, Content: "three"},
			{Role: personality.RoleAssistant, Content: "four"},
			{Role: personality.RoleUser, Content: "five"},
		},
		Message: "how was your day?",
	}
}

func TestCleanReply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"plain", "  It was lovely, thanks!  ", "It was lovely, thanks!", false},
		{"echoed label", "Human: hi\nAoi: It was lovely, thanks!", "It was lovely, thanks!", false},
		{"leading role label", "Assistant: It was lovely.", "It was lovely.", false},
		{"stacked labels", "User: assistant: Sure thing!", "Sure thing!", false},
		{"continued transcript", "Pretty good overall.\nHuman: and you?", "Pretty good overall.", false},
		{"too short", "Aoi: ok", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := CleanReply("huggingface", tt.in, "Aoi", 5)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CleanReply() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, kerrors.ErrMalformedOutput) {
				t.Errorf("short output should be malformed, got %v", err)
			}
			if got != tt.want {
				t.Errorf("CleanReply() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTranscript(t *testing.T) {
	t.Parallel()

	req := testRequest()
	got := Transcript(req.SystemPrompt, req.Character, req.History, req.Message, 4)

	if strings.Contains(got, "one") {
		t.Error("transcript should keep only the last 4 turns")
	}
	for _, want := range []string{"You are Aoi.", "Aoi: two", "Human: three", "Human: how was your day?\nAoi:"} {
		if !strings.Contains(got, want) {
			t.Errorf("transcript missing %q:\n%s", want, got)
		}
	}
	if !strings.HasSuffix(got, "Aoi:") {
		t.Error("transcript should end with an open character turn")
	}
}

func TestHuggingFaceGenerate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		body     string
		want     string
		wantKind error
	}{
		{"array", 200, `[{"generated_text":"Aoi: It was calm and sunny."}]`, "It was calm and sunny.", nil},
		{"object", 200, `{"generated_text":"Quiet, but nice."}`, "Quiet, but nice.", nil},
		{"too short", 200, `[{"generated_text":"ok"}]`, "", kerrors.ErrMalformedOutput},
		{"unknown shape", 200, `{"foo":"bar"}`, "", kerrors.ErrMalformedOutput},
		{"loading", 503, `{"error":"Model is currently loading"}`, "", kerrors.ErrTransientProvider},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.Header.Get("Authorization"); got != "Bearer hf-key" {
					t.Errorf("Authorization = %q", got)
				}
				if r.URL.Path != "/models/microsoft/DialoGPT-medium" {
					t.Errorf("path = %q", r.URL.Path)
				}
				var body hfTextRequest
				if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
					t.Errorf("decode: %v", err)
				}
				if !strings.HasSuffix(body.Inputs, "Aoi:") || body.Parameters.MaxNewTokens != 100 {
					t.Errorf("unexpected request %+v", body)
				}
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			p := NewHuggingFace(config.HuggingFaceConfig{
				APIKey:        "hf-key",
				BaseURL:       srv.URL,
				TextModel:     "microsoft/DialoGPT-medium",
				HistoryWindow: 4,
			}, 5)

			got, err := p.Generate(context.Background(), testRequest())
			if tt.wantKind != nil {
				if !errors.Is(err, tt.wantKind) {
					t.Fatalf("err = %v, want %v", err, tt.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Generate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHuggingFaceModelLabel(t *testing.T) {
	t.Parallel()

	p := NewHuggingFace(config.HuggingFaceConfig{TextModel: "microsoft/DialoGPT-medium"}, 5)
	if got := p.Model(); got != "huggingface-dialogpt-medium" {
		t.Errorf("Model() = %q", got)
	}
}

func TestUnconfiguredProviders(t *testing.T) {
	t.Parallel()

	providers := []Provider{
		NewOpenAI(config.OpenAIConfig{Model: "gpt-3.5-turbo"}),
		NewGemini(config.GeminiConfig{Model: "gemini-2.5-flash"}),
		NewHuggingFace(config.HuggingFaceConfig{}, 5),
		NewOllama(config.OllamaConfig{URL: "http://localhost:11434"}, 5),
	}

	for _, p := range providers {
		if p.Configured() {
			t.Errorf("%s should not be configured", p.Name())
		}
		_, err := p.Generate(context.Background(), testRequest())
		if !kerrors.IsNotConfigured(err) {
			t.Errorf("%s: err = %v, want not configured", p.Name(), err)
		}
		if kerrors.IsRetryable(err) {
			t.Errorf("%s: not-configured must not be retried", p.Name())
		}
	}
}

func TestOllamaGenerate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/chat":
			var body ollamaChatRequest
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode: %v", err)
			}
			// system + 2 windowed turns + new message
			if len(body.Messages) != 4 || body.Messages[0].Role != "system" || body.Stream {
				t.Errorf("unexpected request %+v", body)
			}
			if last := body.Messages[3]; last.Role != "user" || last.Content != "how was your day?" {
				t.Errorf("last message = %+v", last)
			}
			json.NewEncoder(w).Encode(ollamaChatResponse{
				Message: ollamaMessage{Role: "assistant", Content: "Aoi: Pretty relaxing, honestly."},
				Done:    true,
			})
		case "/api/tags":
			io.WriteString(w, `{"models":[{"name":"llama3.2:latest"}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewOllama(config.OllamaConfig{Enabled: true, URL: srv.URL + "/", Model: "llama3.2", HistoryWindow: 2}, 5)

	got, err := p.Generate(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "Pretty relaxing, honestly." {
		t.Errorf("Generate() = %q", got)
	}
	if !p.IsAvailable(context.Background()) {
		t.Error("IsAvailable() should find the :latest tag")
	}
}

func TestOpenAIGenerate(t *testing.T) {
	t.Parallel()

	var status atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		// system + 5 history turns + the new message
		if msgs, _ := body["messages"].([]interface{}); len(msgs) != 7 {
			t.Errorf("messages = %d, want 7", len(msgs))
		}
		w.Header().Set("Content-Type", "application/json")
		if code := status.Load(); code != 0 {
			w.WriteHeader(int(code))
			io.WriteString(w, `{"error":{"message":"overloaded","type":"server_error"}}`)
			return
		}
		io.WriteString(w, `{
			"id":"chatcmpl-1","object":"chat.completion","created":1700000000,"model":"gpt-3.5-turbo",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":" It was wonderful! "}}]
		}`)
	}))
	defer srv.Close()

	p := NewOpenAI(config.OpenAIConfig{
		APIKey:        "sk-test",
		BaseURL:       srv.URL + "/v1/",
		Model:         "gpt-3.5-turbo",
		MaxTokens:     150,
		Temperature:   0.8,
		HistoryWindow: 6,
	})
	if p.Model() != "openai-gpt-3.5-turbo" {
		t.Errorf("Model() = %q", p.Model())
	}

	got, err := p.Generate(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "It was wonderful!" {
		t.Errorf("Generate() = %q", got)
	}

	status.Store(http.StatusServiceUnavailable)
	_, err = p.Generate(context.Background(), testRequest())
	if !errors.Is(err, kerrors.ErrTransientProvider) || !kerrors.IsRetryable(err) {
		t.Errorf("503 should be a retryable transient error, got %v", err)
	}
}
