// Package speech synthesizes character voices through ElevenLabs and keeps
// short-lived caches of voice metadata and generated audio.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"kokoro/src/cache"
	"kokoro/src/config"
	kerrors "kokoro/src/errors"
	"kokoro/src/telemetry"
)

const (
	audioKeyPrefix = 100
	minVoiceIDLen  = 10
	contentType    = "audio/mpeg"
)

var userMessages = map[kerrors.SpeechCategory]string{
	kerrors.SpeechNotConfigured:   "Text-to-speech service is not configured. Please contact support.",
	kerrors.SpeechUnavailable:     "Text-to-speech temporarily unavailable. Please try again later.",
	kerrors.SpeechUnauthenticated: "Voice service authentication failed. Please check your API key.",
	kerrors.SpeechQuotaExhausted:  "Voice service quota exceeded. Please check your account credits.",
	kerrors.SpeechRateLimited:     "Voice service rate limit exceeded. Please try again in a few minutes.",
	kerrors.SpeechInvalidVoice:    "Invalid voice or text for speech generation. Please try a different voice.",
	kerrors.SpeechInvalidInput:    "Text is required for speech generation",
	kerrors.SpeechEmptyAudio:      "Voice service returned empty audio. This usually indicates insufficient account credits or an invalid voice.",
	kerrors.SpeechInvalidAudio:    "Voice service returned invalid audio data. Please check your account status.",
}

func speechError(category kerrors.SpeechCategory, status int, detail string) error {
	return &kerrors.SpeechError{
		Category:   category,
		StatusCode: status,
		Message:    userMessages[category],
		Detail:     detail,
	}
}

// Audio is a generated clip. Release zeroes the payload; cached clips are
// released when they leave the cache, so callers receive copies.
type Audio struct {
	Data        []byte
	ContentType string
	VoiceID     string
	ModelUsed   string
}

func (a *Audio) Release() {
	if a == nil {
		return
	}
	for i := range a.Data {
		a.Data[i] = 0
	}
	a.Data = nil
}

func (a *Audio) clone() *Audio {
	c := *a
	c.Data = append([]byte(nil), a.Data...)
	return &c
}

type Client struct {
	cfg      config.SpeechConfig
	client   *http.Client
	logger   *slog.Logger
	recorder telemetry.Recorder

	audio  *cache.Cache[string, *Audio]
	voices *cache.Cache[string, []Voice]

	closeOnce sync.Once
}

type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithRecorder reports every synthesis that reaches the cache or the API.
func WithRecorder(r telemetry.Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// WithClock drives both caches from now.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.audio = cache.New[string, *Audio](c.cfg.AudioCacheCapacity, c.cfg.AudioCacheTTL.Duration,
			cache.WithClock[string, *Audio](now),
			cache.WithOnEvict[string, *Audio](releaseAudio))
		c.voices = cache.New[string, []Voice](1, c.cfg.VoiceCacheTTL.Duration,
			cache.WithClock[string, []Voice](now))
	}
}

func releaseAudio(_ string, a *Audio) { a.Release() }

func New(cfg config.SpeechConfig, opts ...Option) *Client {
	c := &Client{
		cfg:      cfg,
		client:   &http.Client{Timeout: time.Minute},
		logger:   slog.Default(),
		recorder: telemetry.Nop{},
		audio: cache.New[string, *Audio](cfg.AudioCacheCapacity, cfg.AudioCacheTTL.Duration,
			cache.WithOnEvict[string, *Audio](releaseAudio)),
		voices: cache.New[string, []Voice](1, cfg.VoiceCacheTTL.Duration),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Configured() bool { return c.cfg.APIKey != "" }

// Model is the ElevenLabs model id used for synthesis.
func (c *Client) Model() string { return c.cfg.ModelID }

func audioKey(voiceID, text string) string {
	r := []rune(text)
	if len(r) > audioKeyPrefix {
		r = r[:audioKeyPrefix]
	}
	return voiceID + "|" + string(r)
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Synthesize renders text with the given voice. Failures are
// *errors.SpeechError values carrying a user-facing message.
func (c *Client) Synthesize(ctx context.Context, voiceID, text string) (*Audio, error) {
	if !c.Configured() {
		return nil, speechError(kerrors.SpeechNotConfigured, 0, "api key missing")
	}
	if strings.HasPrefix(voiceID, "fallback-") || strings.HasPrefix(voiceID, "basic-") {
		return nil, &kerrors.SpeechError{
			Category: kerrors.SpeechUnavailable,
			Message:  "Text-to-speech not available for this voice",
			Detail:   "placeholder voice " + voiceID,
		}
	}
	if strings.TrimSpace(text) == "" {
		return nil, speechError(kerrors.SpeechInvalidInput, 0, "empty text")
	}
	if len(voiceID) < minVoiceIDLen {
		return nil, &kerrors.SpeechError{
			Category: kerrors.SpeechInvalidVoice,
			Message:  "Invalid voice ID provided",
			Detail:   fmt.Sprintf("voice id %q is too short", voiceID),
		}
	}

	text = truncateRunes(text, c.cfg.MaxTextLength)
	key := audioKey(voiceID, text)
	var hit *Audio
	if c.audio.View(key, func(a *Audio) { hit = a.clone() }) {
		c.record(ctx, time.Now(), true, nil)
		return hit, nil
	}

	start := time.Now()
	data, err := c.tts(ctx, voiceID, text)
	c.record(ctx, start, false, err)
	if err != nil {
		return nil, err
	}

	audio := &Audio{Data: data, ContentType: contentType, VoiceID: voiceID, ModelUsed: c.cfg.ModelID}
	out := audio.clone()
	c.audio.Set(key, audio)
	return out, nil
}

func (c *Client) record(ctx context.Context, start time.Time, cached bool, err error) {
	elapsed := time.Since(start).Milliseconds()
	attempt := telemetry.Attempt{Provider: "elevenlabs", Success: err == nil, ElapsedMS: elapsed}
	ev := telemetry.Event{
		Kind:           telemetry.KindSpeech,
		ModelUsed:      c.cfg.ModelID,
		Cached:         cached,
		ResponseTimeMS: elapsed,
		TotalTimeMS:    elapsed,
		Timestamp:      time.Now(),
	}
	if err != nil {
		attempt.Error = err.Error()
		ev.Fallback = true
		ev.FallbackReason = err.Error()
	}
	if !cached {
		ev.Attempts = []telemetry.Attempt{attempt}
	}
	if rerr := c.recorder.Record(ctx, ev); rerr != nil {
		c.logger.Warn("failed to record speech event", "error", rerr)
	}
}

func (c *Client) tts(ctx context.Context, voiceID, text string) ([]byte, error) {
	payload := map[string]interface{}{
		"text":     text,
		"model_id": c.cfg.ModelID,
		"voice_settings": map[string]interface{}{
			"stability":         0.6,
			"similarity_boost":  0.7,
			"style":             0.3,
			"use_speaker_boost": true,
		},
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/text-to-speech/" + voiceID
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, speechError(kerrors.SpeechUnavailable, 0, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, speechError(kerrors.SpeechUnavailable, resp.StatusCode, "failed to read response: "+err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("speech request failed", "status", resp.StatusCode, "voice_id", voiceID)
		return nil, speechError(categoryForStatus(resp.StatusCode), resp.StatusCode,
			fmt.Sprintf("API returned %d: %s", resp.StatusCode, truncateRunes(string(body), 200)))
	}

	switch {
	case len(body) == 0:
		return nil, speechError(kerrors.SpeechEmptyAudio, resp.StatusCode, "empty audio buffer despite 200 status")
	case len(body) < c.cfg.MinAudioBytes:
		return nil, speechError(kerrors.SpeechInvalidAudio, resp.StatusCode, fmt.Sprintf("audio buffer too small: %d bytes", len(body)))
	}
	return body, nil
}

func categoryForStatus(status int) kerrors.SpeechCategory {
	switch status {
	case http.StatusUnauthorized:
		return kerrors.SpeechUnauthenticated
	case http.StatusPaymentRequired:
		return kerrors.SpeechQuotaExhausted
	case http.StatusTooManyRequests:
		return kerrors.SpeechRateLimited
	case http.StatusUnprocessableEntity:
		return kerrors.SpeechInvalidVoice
	default:
		return kerrors.SpeechUnavailable
	}
}

// StartJanitor purges expired audio every interval until ctx is done.
func (c *Client) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := c.audio.Purge(); n > 0 {
					c.logger.Debug("purged expired audio", "count", n)
				}
			}
		}
	}()
}

// Close releases every cached clip.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.audio.Clear()
		c.voices.Clear()
	})
	return nil
}
