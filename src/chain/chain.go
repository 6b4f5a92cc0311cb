// Package chain runs the text providers in priority order and falls back to
// the local generator, so every turn ends with a usable reply.
package chain

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"kokoro/src/cache"
	"kokoro/src/composer"
	kerrors "kokoro/src/errors"
	"kokoro/src/fallback"
	"kokoro/src/personality"
	"kokoro/src/provider"
	"kokoro/src/retry"
	"kokoro/src/telemetry"
)

// LocalReason is appended whenever the local generator answers.
const LocalReason = "Using local fallback response"

// Request is one chat turn.
type Request struct {
	Character personality.Character
	Message   string
	History   []personality.Turn
}

// Envelope is the reply returned to callers.
type Envelope struct {
	Success            bool                `json:"success"`
	Response           string              `json:"response"`
	ModelUsed          string              `json:"model_used"`
	Fallback           bool                `json:"fallback"`
	FallbackReason     string              `json:"fallback_reason,omitempty"`
	ResponseTimeMS     int64               `json:"response_time_ms"`
	TotalTimeMS        int64               `json:"total_time_ms"`
	PersonalityProfile personality.Summary `json:"personality_profile"`
	Timestamp          time.Time           `json:"timestamp"`
	Cached             bool                `json:"cached,omitempty"`
	LoveMeter          *int                `json:"love_meter,omitempty"`
	Attempts           []telemetry.Attempt `json:"attempts,omitempty"`
}

type Options struct {
	Providers []provider.Provider
	Policy    retry.Policy
	Engine    *personality.Engine
	Local     *fallback.Generator
	Recorder  telemetry.Recorder
	Logger    *slog.Logger

	// CacheCapacity and CacheTTL size the response cache; a zero capacity
	// disables it.
	CacheCapacity int
	CacheTTL      time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

type Chain struct {
	providers []provider.Provider
	policy    retry.Policy
	engine    *personality.Engine
	local     *fallback.Generator
	recorder  telemetry.Recorder
	logger    *slog.Logger
	cache     *cache.Cache[string, Envelope]
	now       func() time.Time
}

func New(opts Options) *Chain {
	c := &Chain{
		providers: opts.Providers,
		policy:    opts.Policy,
		engine:    opts.Engine,
		local:     opts.Local,
		recorder:  opts.Recorder,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	if c.engine == nil {
		c.engine = personality.NewEngine(nil)
	}
	if c.local == nil {
		c.local = fallback.New(nil)
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
	if opts.CacheCapacity > 0 {
		c.cache = cache.New[string, Envelope](opts.CacheCapacity, opts.CacheTTL,
			cache.WithClock[string, Envelope](c.now))
	}
	return c
}

// Engine exposes the profile engine the chain derives with.
func (c *Chain) Engine() *personality.Engine {
	return c.engine
}

// Generate never fails. Providers run strictly in order; each failure is
// appended to the fallback reason and the local generator ends the chain.
func (c *Chain) Generate(ctx context.Context, req Request) Envelope {
	start := c.now()
	profile := c.engine.Derive(req.Character, req.Message, req.History)

	key := CacheKey(req.Character, req.Message)
	if c.cache != nil {
		if hit, ok := c.cache.Get(key); ok {
			hit.Cached = true
			hit.PersonalityProfile = profile.Summary()
			hit.Timestamp = c.now()
			hit.TotalTimeMS = c.now().Sub(start).Milliseconds()
			hit.Attempts = nil
			c.record(ctx, req, hit)
			return hit
		}
	}

	preq := provider.Request{
		SystemPrompt: composer.Compose(req.Character, profile),
		Character:    req.Character,
		History:      req.History,
		Message:      req.Message,
	}

	var reasons []string
	var attempts []telemetry.Attempt

	for _, p := range c.providers {
		stageStart := c.now()

		if !p.Configured() {
			err := kerrors.NewProviderError(p.Name(), "generate", kerrors.ErrProviderNotConfigured, "API key not configured")
			reasons = append(reasons, err.Error())
			attempts = append(attempts, telemetry.Attempt{Provider: p.Name(), Error: err.Error()})
			continue
		}

		policy := c.policy
		policy.OnRetry = func(attempt int, err error, delay time.Duration) {
			c.logger.Debug("retrying provider", "provider", p.Name(), "attempt", attempt+1, "delay", delay, "error", err)
		}

		text, err := retry.Do(ctx, policy, func(ctx context.Context) (string, error) {
			return p.Generate(ctx, preq)
		})
		elapsed := c.now().Sub(stageStart).Milliseconds()

		if err == nil {
			attempts = append(attempts, telemetry.Attempt{Provider: p.Name(), Success: true, ElapsedMS: elapsed})
			env := Envelope{
				Success:            true,
				Response:           text,
				ModelUsed:          p.Model(),
				FallbackReason:     strings.Join(reasons, "; "),
				ResponseTimeMS:     elapsed,
				TotalTimeMS:        c.now().Sub(start).Milliseconds(),
				PersonalityProfile: profile.Summary(),
				Timestamp:          c.now(),
				Attempts:           attempts,
			}
			if c.cache != nil {
				c.cache.Set(key, env)
			}
			c.record(ctx, req, env)
			return env
		}

		reason := failureReason(err)
		reasons = append(reasons, reason)
		attempts = append(attempts, telemetry.Attempt{Provider: p.Name(), ElapsedMS: elapsed, Error: reason})
		if kerrors.IsNotConfigured(err) {
			c.logger.Debug("provider not configured", "provider", p.Name(), "error", err)
		} else {
			c.logger.Warn("provider failed", "provider", p.Name(), "elapsed_ms", elapsed, "error", err)
		}
	}

	localStart := c.now()
	text := c.local.Synthesize(req.Message, req.Character, profile)
	reasons = append(reasons, LocalReason)
	attempts = append(attempts, telemetry.Attempt{Provider: fallback.ModelID, Success: true})

	env := Envelope{
		Success:            true,
		Response:           text,
		ModelUsed:          fallback.ModelID,
		Fallback:           true,
		FallbackReason:     strings.Join(reasons, "; "),
		ResponseTimeMS:     c.now().Sub(localStart).Milliseconds(),
		TotalTimeMS:        c.now().Sub(start).Milliseconds(),
		PersonalityProfile: profile.Summary(),
		Timestamp:          c.now(),
		Attempts:           attempts,
	}
	c.record(ctx, req, env)
	return env
}

// CacheKey combines the character id, the first 50 characters of the
// message and the joined traits.
func CacheKey(c personality.Character, message string) string {
	msg := []rune(message)
	if len(msg) > 50 {
		msg = msg[:50]
	}
	return c.ID + "|" + string(msg) + "|" + strings.Join(personality.NormalizeTraits(c.PersonalityTraits), ",")
}

func failureReason(err error) string {
	msg := err.Error()
	if kerrors.IsContentPolicy(err) && !strings.Contains(strings.ToLower(msg), "content policy") {
		return "content policy: " + msg
	}
	return msg
}

func (c *Chain) record(ctx context.Context, req Request, env Envelope) {
	ev := telemetry.Event{
		Kind:           telemetry.KindText,
		CharacterID:    req.Character.ID,
		ModelUsed:      env.ModelUsed,
		Fallback:       env.Fallback,
		FallbackReason: env.FallbackReason,
		Cached:         env.Cached,
		ResponseTimeMS: env.ResponseTimeMS,
		TotalTimeMS:    env.TotalTimeMS,
		Attempts:       env.Attempts,
		Timestamp:      env.Timestamp,
	}
	if err := c.recorder.Record(context.WithoutCancel(ctx), ev); err != nil {
		c.logger.Warn("failed to record telemetry", "error", err)
	}
}
