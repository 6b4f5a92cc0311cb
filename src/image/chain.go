// Package image generates character portraits through a provider chain
// that ends in a curated reference asset.
package image

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	kerrors "kokoro/src/errors"
	"kokoro/src/personality"
	"kokoro/src/retry"
	"kokoro/src/telemetry"
)

const (
	fallbackMessage = "Character created with curated reference image. AI image generation temporarily unavailable."
	fallbackReason  = "All AI APIs failed or not configured"
)

// Response is the result of a portrait request. Success is always true;
// Fallback marks curated assets.
type Response struct {
	Success        bool      `json:"success"`
	ImageURL       string    `json:"image_url"`
	ModelUsed      string    `json:"model_used,omitempty"`
	Fallback       bool      `json:"fallback"`
	Message        string    `json:"message,omitempty"`
	ErrorDetails   string    `json:"error_details,omitempty"`
	FallbackReason string    `json:"fallback_reason,omitempty"`
	PromptUsed     string    `json:"prompt_used,omitempty"`
	GeneratedAt    time.Time `json:"generation_time"`
}

type Options struct {
	Providers []Provider
	Policy    retry.Policy
	Assets    Assets
	Catalog   *personality.Catalog
	Recorder  telemetry.Recorder
	Logger    *slog.Logger
	Now       func() time.Time
}

type Chain struct {
	providers []Provider
	policy    retry.Policy
	assets    Assets
	catalog   *personality.Catalog
	recorder  telemetry.Recorder
	logger    *slog.Logger
	now       func() time.Time
}

func New(opts Options) *Chain {
	c := &Chain{
		providers: opts.Providers,
		policy:    opts.Policy,
		assets:    opts.Assets,
		catalog:   opts.Catalog,
		recorder:  opts.Recorder,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	if c.assets == nil {
		c.assets = DefaultAssets()
	}
	if c.catalog == nil {
		c.catalog = personality.DefaultCatalog()
	}
	if c.recorder == nil {
		c.recorder = telemetry.Nop{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Generate tries each provider in order and returns the curated asset for
// the request's gender and style when none succeeds.
func (c *Chain) Generate(ctx context.Context, req Request) Response {
	start := c.now()
	prompt := BuildPrompt(req, c.catalog)

	var failures []string
	var attempts []telemetry.Attempt

	for _, p := range c.providers {
		if !p.Configured() {
			err := kerrors.NewProviderError(p.Name(), "generate image", kerrors.ErrProviderNotConfigured, "API key not configured")
			failures = append(failures, err.Error())
			attempts = append(attempts, telemetry.Attempt{Provider: p.Name(), Error: err.Error()})
			continue
		}

		stageStart := c.now()
		policy := c.policy
		policy.OnRetry = func(attempt int, err error, delay time.Duration) {
			c.logger.Debug("retrying image provider", "provider", p.Name(), "attempt", attempt+1, "delay", delay, "error", err)
		}

		url, err := retry.Do(ctx, policy, func(ctx context.Context) (string, error) {
			return p.Generate(ctx, prompt)
		})
		elapsed := c.now().Sub(stageStart).Milliseconds()

		if err == nil {
			attempts = append(attempts, telemetry.Attempt{Provider: p.Name(), Success: true, ElapsedMS: elapsed})
			resp := Response{
				Success:     true,
				ImageURL:    url,
				ModelUsed:   p.Model(),
				PromptUsed:  prompt.Text,
				GeneratedAt: c.now(),
			}
			c.record(ctx, req, resp, start, attempts)
			return resp
		}

		failures = append(failures, err.Error())
		attempts = append(attempts, telemetry.Attempt{Provider: p.Name(), ElapsedMS: elapsed, Error: err.Error()})
		c.logger.Warn("image provider failed", "provider", p.Name(), "elapsed_ms", elapsed, "error", err)
	}

	details := "All AI image generation APIs failed or are not configured"
	if len(failures) > 0 {
		details = fmt.Sprintf("%s: %s", details, strings.Join(failures, "; "))
	}

	resp := Response{
		Success:        true,
		ImageURL:       c.assets.Lookup(req.Gender, req.ArtStyle),
		Fallback:       true,
		Message:        fallbackMessage,
		ErrorDetails:   details,
		FallbackReason: fallbackReason,
		GeneratedAt:    c.now(),
	}
	c.record(ctx, req, resp, start, attempts)
	return resp
}

func (c *Chain) record(ctx context.Context, req Request, resp Response, start time.Time, attempts []telemetry.Attempt) {
	model := resp.ModelUsed
	if resp.Fallback {
		model = "curated-asset"
	}
	ev := telemetry.Event{
		Kind:           telemetry.KindImage,
		CharacterID:    req.Name,
		ModelUsed:      model,
		Fallback:       resp.Fallback,
		FallbackReason: resp.FallbackReason,
		TotalTimeMS:    c.now().Sub(start).Milliseconds(),
		Attempts:       attempts,
		Timestamp:      resp.GeneratedAt,
	}
	if err := c.recorder.Record(context.WithoutCancel(ctx), ev); err != nil {
		c.logger.Warn("failed to record telemetry", "error", err)
	}
}
