package provider

import (
	"context"
	"errors"
	"strings"
	"sync"

	"google.golang.org/genai"

	"kokoro/src/config"
	kerrors "kokoro/src/errors"
	"kokoro/src/personality"
)

// Gemini calls the Gemini API through the genai SDK. The client is created
// on first use since NewClient needs a context.
type Gemini struct {
	cfg config.GeminiConfig

	once      sync.Once
	client    *genai.Client
	clientErr error
}

func NewGemini(cfg config.GeminiConfig) *Gemini {
	return &Gemini{cfg: cfg}
}

func (p *Gemini) Name() string { return "gemini" }

func (p *Gemini) Model() string { return "gemini-" + strings.TrimPrefix(p.cfg.Model, "gemini-") }

func (p *Gemini) Configured() bool { return p.cfg.APIKey != "" }

func (p *Gemini) getClient(ctx context.Context) (*genai.Client, error) {
	p.once.Do(func() {
		p.client, p.clientErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  p.cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
	return p.client, p.clientErr
}

func (p *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	if !p.Configured() {
		return "", kerrors.NewProviderError(p.Name(), "generate", kerrors.ErrProviderNotConfigured, "API key not configured")
	}

	client, err := p.getClient(ctx)
	if err != nil {
		return "", kerrors.NewProviderError(p.Name(), "generate", kerrors.ErrTransientProvider, "failed to create client: %v", err)
	}

	var contents []*genai.Content
	for _, turn := range chatMessages(req.History, req.Message, p.cfg.HistoryWindow) {
		role := genai.Role(genai.RoleUser)
		if turn.Role == personality.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Content, role))
	}

	genConfig := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.SystemPrompt, genai.RoleUser),
	}

	resp, err := client.Models.GenerateContent(ctx, p.cfg.Model, contents, genConfig)
	if err != nil {
		return "", p.classify(err)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", kerrors.NewProviderError(p.Name(), "generate", kerrors.ErrContentPolicy,
			"content policy: prompt blocked (%s)", resp.PromptFeedback.BlockReason)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", kerrors.NewProviderError(p.Name(), "generate", kerrors.ErrMalformedOutput, "empty response")
	}
	return text, nil
}

func (p *Gemini) classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return kerrors.HTTPProviderError(p.Name(), "generate", apiErr.Code, apiErr.Message)
	}
	return kerrors.NewProviderError(p.Name(), "generate", kerrors.ErrTransientProvider, "%v", err)
}
