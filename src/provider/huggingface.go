package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"strings"

	"kokoro/src/config"
	kerrors "kokoro/src/errors"
	"kokoro/src/personality"
)

// HuggingFace calls the hosted inference API with a DialoGPT-style
// transcript prompt.
type HuggingFace struct {
	cfg       config.HuggingFaceConfig
	client    *http.Client
	minLength int
}

func NewHuggingFace(cfg config.HuggingFaceConfig, minLength int) *HuggingFace {
	return &HuggingFace{cfg: cfg, client: defaultHTTPClient(), minLength: minLength}
}

func (p *HuggingFace) Name() string { return "huggingface" }

func (p *HuggingFace) Model() string {
	return "huggingface-" + strings.ToLower(path.Base(p.cfg.TextModel))
}

func (p *HuggingFace) Configured() bool { return p.cfg.APIKey != "" }

type hfTextRequest struct {
	Inputs     string           `json:"inputs"`
	Parameters hfTextParameters `json:"parameters"`
	Options    hfOptions        `json:"options"`
}

type hfTextParameters struct {
	MaxNewTokens   int     `json:"max_new_tokens"`
	Temperature    float64 `json:"temperature"`
	DoSample       bool    `json:"do_sample"`
	ReturnFullText bool    `json:"return_full_text"`
	PadTokenID     int     `json:"pad_token_id"`
}

type hfOptions struct {
	WaitForModel bool `json:"wait_for_model"`
	UseCache     bool `json:"use_cache"`
}

type hfGenerated struct {
	GeneratedText string `json:"generated_text"`
}

// Transcript renders the prompt sent to the model: instructions, the recent
// conversation as "Human:"/"<name>:" lines, and an open "<name>:" turn.
func Transcript(systemPrompt string, c personality.Character, history []personality.Turn, message string, window int) string {
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\nConversation:\n")
	for _, turn := range personality.LastTurns(history, window) {
		speaker := "Human"
		if turn.Role == personality.RoleAssistant {
			speaker = c.Name
		}
		fmt.Fprintf(&b, "%s: %s\n", speaker, turn.Content)
	}
	fmt.Fprintf(&b, "Human: %s\n%s:", message, c.Name)
	return b.String()
}

func (p *HuggingFace) Generate(ctx context.Context, req Request) (string, error) {
	if !p.Configured() {
		return "", kerrors.NewProviderError(p.Name(), "generate", kerrors.ErrProviderNotConfigured, "API key not configured")
	}

	body := hfTextRequest{
		Inputs: Transcript(req.SystemPrompt, req.Character, req.History, req.Message, p.cfg.HistoryWindow),
		Parameters: hfTextParameters{
			MaxNewTokens:   100,
			Temperature:    0.8,
			DoSample:       true,
			ReturnFullText: false,
			PadTokenID:     50256,
		},
		Options: hfOptions{WaitForModel: true, UseCache: false},
	}

	var raw json.RawMessage
	url := strings.TrimRight(p.cfg.BaseURL, "/") + "/models/" + p.cfg.TextModel
	headers := map[string]string{"Authorization": "Bearer " + p.cfg.APIKey}
	if err := postJSON(ctx, p.client, p.Name(), url, headers, body, &raw); err != nil {
		return "", err
	}

	text, err := parseGenerated(raw)
	if err != nil {
		return "", kerrors.NewProviderError(p.Name(), "generate", kerrors.ErrMalformedOutput, "%v", err)
	}
	return CleanReply(p.Name(), text, req.Character.Name, p.minLength)
}

// parseGenerated accepts both [{generated_text}] and {generated_text}.
func parseGenerated(raw json.RawMessage) (string, error) {
	var list []hfGenerated
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) > 0 && list[0].GeneratedText != "" {
			return list[0].GeneratedText, nil
		}
		return "", fmt.Errorf("unexpected response format from Hugging Face")
	}

	var single hfGenerated
	if err := json.Unmarshal(raw, &single); err == nil && single.GeneratedText != "" {
		return single.GeneratedText, nil
	}
	return "", fmt.Errorf("unexpected response format from Hugging Face")
}
