package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"kokoro/src/config"
	kerrors "kokoro/src/errors"
	"kokoro/src/personality"
)

// OpenAI calls the chat completions API.
type OpenAI struct {
	cfg    config.OpenAIConfig
	client *openai.Client
}

func NewOpenAI(cfg config.OpenAIConfig) *OpenAI {
	p := &OpenAI{cfg: cfg}
	if cfg.APIKey == "" {
		return p
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// Retries are owned by the chain.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)
	p.client = &client
	return p
}

func (p *OpenAI) Name() string { return "openai" }

func (p *OpenAI) Model() string { return "openai-" + p.cfg.Model }

func (p *OpenAI) Configured() bool { return p.client != nil }

func (p *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	if !p.Configured() {
		return "", kerrors.NewProviderError(p.Name(), "generate", kerrors.ErrProviderNotConfigured, "API key not configured")
	}

	messages := []openai.ChatCompletionMessageParamUnion{openai.SystemMessage(req.SystemPrompt)}
	for _, turn := range chatMessages(req.History, req.Message, p.cfg.HistoryWindow) {
		if turn.Role == personality.RoleAssistant {
			messages = append(messages, openai.AssistantMessage(turn.Content))
		} else {
			messages = append(messages, openai.UserMessage(turn.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:            openai.ChatModel(p.cfg.Model),
		Messages:         messages,
		PresencePenalty:  openai.Float(0.6),
		FrequencyPenalty: openai.Float(0.3),
	}
	if p.cfg.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(p.cfg.MaxTokens))
	}
	if p.cfg.Temperature > 0 {
		params.Temperature = openai.Float(p.cfg.Temperature)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", p.classify(err)
	}

	if len(resp.Choices) == 0 {
		return "", kerrors.NewProviderError(p.Name(), "generate", kerrors.ErrMalformedOutput, "response had no choices")
	}
	choice := resp.Choices[0]
	if choice.FinishReason == "content_filter" {
		return "", kerrors.NewProviderError(p.Name(), "generate", kerrors.ErrContentPolicy, "content policy: reply withheld by content filter")
	}
	if choice.Message.Refusal != "" {
		return "", kerrors.NewProviderError(p.Name(), "generate", kerrors.ErrContentPolicy, "content policy: %s", choice.Message.Refusal)
	}

	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		return "", kerrors.NewProviderError(p.Name(), "generate", kerrors.ErrMalformedOutput, "empty completion")
	}
	return text, nil
}

func (p *OpenAI) classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return kerrors.HTTPProviderError(p.Name(), "generate", apiErr.StatusCode, apiErr.Error())
	}
	return kerrors.NewProviderError(p.Name(), "generate", kerrors.ErrTransientProvider, "%v", err)
}
