package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"kokoro/src/config"
	kerrors "kokoro/src/errors"
)

// Ollama talks to a local Ollama server over /api/chat.
type Ollama struct {
	cfg       config.OllamaConfig
	client    *http.Client
	minLength int
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

func NewOllama(cfg config.OllamaConfig, minLength int) *Ollama {
	return &Ollama{cfg: cfg, client: defaultHTTPClient(), minLength: minLength}
}

func (p *Ollama) Name() string { return "ollama" }

func (p *Ollama) Model() string { return "ollama-" + p.cfg.Model }

func (p *Ollama) Configured() bool { return p.cfg.Enabled && p.cfg.URL != "" }

func (p *Ollama) Generate(ctx context.Context, req Request) (string, error) {
	if !p.Configured() {
		return "", kerrors.NewProviderError(p.Name(), "generate", kerrors.ErrProviderNotConfigured, "endpoint not configured")
	}

	messages := []ollamaMessage{{Role: "system", Content: req.SystemPrompt}}
	for _, turn := range chatMessages(req.History, req.Message, p.cfg.HistoryWindow) {
		messages = append(messages, ollamaMessage{Role: string(turn.Role), Content: turn.Content})
	}

	var resp ollamaChatResponse
	body := ollamaChatRequest{Model: p.cfg.Model, Messages: messages, Stream: false}
	if err := postJSON(ctx, p.client, p.Name(), p.baseURL()+"/api/chat", nil, body, &resp); err != nil {
		return "", err
	}
	return CleanReply(p.Name(), resp.Message.Content, req.Character.Name, p.minLength)
}

// IsAvailable checks the server is up and has the configured model pulled.
func (p *Ollama) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL()+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false
	}

	var tagsResp struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.Unmarshal(body, &tagsResp); err != nil {
		return false
	}

	for _, model := range tagsResp.Models {
		if model.Name == p.cfg.Model || model.Name == p.cfg.Model+":latest" {
			return true
		}
	}
	return false
}

func (p *Ollama) baseURL() string {
	return strings.TrimRight(p.cfg.URL, "/")
}
