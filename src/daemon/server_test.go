package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"kokoro/src/app"
	"kokoro/src/config"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	s := config.DefaultSettings()
	s.Database.Path = ":memory:"
	s.Text.Providers = nil
	s.Image.Providers = nil
	s.LoveMeter.Chance = 1
	s.Server.AllowedOrigins = []string{"http://localhost:5173"}

	a, err := app.New(context.Background(), s, app.NewLogger(config.LogConfig{Level: "error"}, io.Discard))
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	t.Cleanup(func() { a.Close(context.Background()) })

	ts := httptest.NewServer(NewServer(a).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, ts *httptest.Server, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, ts.URL+path, r)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	out := map[string]any{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && err != io.EOF {
		t.Fatalf("%s %s: decode: %v", method, path, err)
	}
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	status, body := do(t, ts, http.MethodGet, "/health", nil)
	if status != http.StatusOK || body["status"] != "ok" {
		t.Errorf("health = %d %v", status, body)
	}
}

func TestChatEndpoint(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	tests := []struct {
		name       string
		body       any
		wantStatus int
	}{
		{"inline character", map[string]any{
			"message":           "hi",
			"character_traits":  []string{"shy"},
			"character_context": map[string]string{"name": "Mika"},
		}, http.StatusOK},
		{"malformed body", "{", http.StatusBadRequest},
		{"no character", map[string]any{"message": "hi"}, http.StatusBadRequest},
		{"unknown character", map[string]any{"message": "hi", "character_id": "nope"}, http.StatusNotFound},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			status, body := do(t, ts, http.MethodPost, "/v1/chat", tt.body)
			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%v)", status, tt.wantStatus, body)
			}
			if status == http.StatusOK {
				if body["success"] != true || body["fallback"] != true || body["model_used"] != "local-fallback" {
					t.Errorf("unexpected envelope %v", body)
				}
				if body["response"] == "" {
					t.Error("empty response")
				}
			}
		})
	}
}

func TestCharacterChatFlow(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	status, body := do(t, ts, http.MethodPost, "/v1/characters", map[string]any{
		"user_id":            "u1",
		"name":               "Aoi",
		"gender":             "female",
		"art_style":          "anime",
		"personality_traits": []string{"cheerful", "caring"},
	})
	if status != http.StatusCreated {
		t.Fatalf("create character = %d %v", status, body)
	}
	character := body["character"].(map[string]any)
	id := character["id"].(string)
	if character["image_url"] == "" {
		t.Error("portrait should be filled from the image chain")
	}
	if img, ok := body["image"].(map[string]any); !ok || img["fallback"] != true {
		t.Errorf("image = %v", body["image"])
	}

	status, body = do(t, ts, http.MethodGet, "/v1/characters/"+id, nil)
	if status != http.StatusOK || body["character"].(map[string]any)["name"] != "Aoi" {
		t.Fatalf("get character = %d %v", status, body)
	}
	if status, _ := do(t, ts, http.MethodGet, "/v1/characters/missing", nil); status != http.StatusNotFound {
		t.Errorf("missing character status = %d", status)
	}

	status, body = do(t, ts, http.MethodPost, "/v1/chats", map[string]string{"user_id": "u1", "character_id": id})
	if status != http.StatusCreated {
		t.Fatalf("create chat = %d %v", status, body)
	}
	chatID := body["chat"].(map[string]any)["id"].(string)

	status, body = do(t, ts, http.MethodPost, "/v1/chat", map[string]any{
		"message":      "good morning",
		"character_id": id,
		"chat_id":      chatID,
	})
	if status != http.StatusOK {
		t.Fatalf("chat = %d %v", status, body)
	}
	if body["love_meter"] != float64(1) {
		t.Errorf("love_meter = %v, want 1", body["love_meter"])
	}
}

func TestSpeechNotConfigured(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	status, body := do(t, ts, http.MethodPost, "/v1/speech", map[string]string{
		"voice_id": "21m00Tcm4TlvDq8ikWAM",
		"text":     "hello",
	})
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if body["success"] != false || body["fallback"] != true || body["error_category"] != "not_configured" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestVoicesFallback(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	status, body := do(t, ts, http.MethodGet, "/v1/voices", nil)
	if status != http.StatusOK || body["fallback"] != true {
		t.Fatalf("voices = %d %v", status, body)
	}
	if voices := body["voices"].([]any); len(voices) == 0 {
		t.Error("expected fallback voices")
	}
}

func TestImagesFallBackToCuratedAsset(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	status, body := do(t, ts, http.MethodPost, "/v1/images", map[string]any{
		"name":      "Aoi",
		"gender":    "female",
		"art_style": "anime",
	})
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if body["success"] != true || body["fallback"] != true || body["image_url"] == "" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	status, body := do(t, ts, http.MethodPost, "/v1/sessions", map[string]any{
		"character": map[string]any{"name": "Kai", "personality_traits": []string{"playful"}},
	})
	if status != http.StatusCreated {
		t.Fatalf("start = %d %v", status, body)
	}
	id := body["session_id"].(string)

	status, body = do(t, ts, http.MethodPost, "/v1/sessions/"+id+"/messages", map[string]string{"message": "what are you up to?"})
	if status != http.StatusOK || body["response"] == "" {
		t.Fatalf("send = %d %v", status, body)
	}

	status, body = do(t, ts, http.MethodDelete, "/v1/sessions/"+id, nil)
	if status != http.StatusOK || body["total_messages"] != float64(2) {
		t.Fatalf("end = %d %v", status, body)
	}

	if status, _ := do(t, ts, http.MethodPost, "/v1/sessions/"+id+"/messages", map[string]string{"message": "still there?"}); status != http.StatusNotFound {
		t.Errorf("message after end status = %d", status)
	}
	if status, _ := do(t, ts, http.MethodPost, "/v1/sessions", map[string]any{}); status != http.StatusBadRequest {
		t.Errorf("start without character status = %d", status)
	}
}

func TestSchemaEndpoint(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	status, body := do(t, ts, http.MethodGet, "/v1/schema/chat", nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	props, ok := body["properties"].(map[string]any)
	if !ok || props["message"] == nil {
		t.Errorf("schema missing message property: %v", body)
	}

	if status, _ := do(t, ts, http.MethodGet, "/v1/schema/unknown", nil); status != http.StatusNotFound {
		t.Errorf("unknown schema status = %d", status)
	}
}

func TestCORS(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	tests := []struct {
		name   string
		origin string
		want   string
	}{
		{"allowed", "http://localhost:5173", "http://localhost:5173"},
		{"blocked", "http://evil.example", ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/v1/chat", nil)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", "POST")
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusNoContent {
				t.Errorf("preflight status = %d", resp.StatusCode)
			}
			if got := resp.Header.Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("allow origin = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSchemaNames(t *testing.T) {
	t.Parallel()

	for _, name := range SchemaNames() {
		if _, err := Schema(name); err != nil {
			t.Errorf("Schema(%q) error = %v", name, err)
		}
	}
}
