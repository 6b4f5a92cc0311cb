// Package app assembles the companion service from settings.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"kokoro/src/chain"
	"kokoro/src/config"
	"kokoro/src/database"
	kerrors "kokoro/src/errors"
	"kokoro/src/fallback"
	"kokoro/src/image"
	"kokoro/src/personality"
	"kokoro/src/provider"
	"kokoro/src/retry"
	"kokoro/src/session"
	"kokoro/src/speech"
	"kokoro/src/telemetry"
)

// NewLogger builds the process logger from the log settings.
func NewLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// TextProviders returns the configured text providers in priority order.
func TextProviders(s *config.Settings) ([]provider.Provider, error) {
	var out []provider.Provider
	for _, name := range s.Text.Providers {
		switch name {
		case "openai":
			out = append(out, provider.NewOpenAI(s.OpenAI))
		case "gemini":
			out = append(out, provider.NewGemini(s.Gemini))
		case "huggingface":
			out = append(out, provider.NewHuggingFace(s.HuggingFace, s.Text.MinResponseLength))
		case "ollama":
			out = append(out, provider.NewOllama(s.Ollama, s.Text.MinResponseLength))
		default:
			return nil, fmt.Errorf("unknown text provider %q", name)
		}
	}
	return out, nil
}

// ImageProviders returns the configured image providers in priority order.
func ImageProviders(s *config.Settings) ([]image.Provider, error) {
	var out []image.Provider
	for _, name := range s.Image.Providers {
		switch name {
		case "stability":
			out = append(out, image.NewStability(s.Stability))
		case "huggingface":
			out = append(out, image.NewHuggingFace(s.HuggingFace))
		case "replicate":
			out = append(out, image.NewReplicate(s.Replicate))
		case "imagen":
			out = append(out, image.NewImagen(s.Gemini))
		default:
			return nil, fmt.Errorf("unknown image provider %q", name)
		}
	}
	return out, nil
}

// App holds every long-lived component.
type App struct {
	Settings *config.Settings
	Logger   *slog.Logger

	Store    *database.Store
	Text     *chain.Chain
	Images   *image.Chain
	Speech   *speech.Client
	Sessions *session.Service
	Recorder telemetry.Recorder

	loveMeter database.LoveMeterPolicy
	closers   []func(context.Context) error
}

// New opens the store and optional backends and builds the chains.
func New(ctx context.Context, s *config.Settings, logger *slog.Logger) (*App, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{
		Settings:  s,
		Logger:    logger,
		loveMeter: database.LoveMeterPolicy{Chance: s.LoveMeter.Chance, Max: s.LoveMeter.Max, Rand: fallback.DefaultRand},
	}

	store, err := database.Open(s.Database.Path)
	if err != nil {
		return nil, kerrors.WrapWithContext(err, "failed to open database at %s", s.Database.Path)
	}
	a.Store = store
	a.closers = append(a.closers, func(context.Context) error { return store.Close() })

	recorders := telemetry.Multi{telemetry.NewSlogRecorder(logger)}
	if s.Mongo.Enabled {
		mongoRec, err := telemetry.ConnectMongo(ctx, s.Mongo.URI, s.Mongo.Database, s.Mongo.Collection)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		recorders = append(recorders, mongoRec)
		a.closers = append(a.closers, mongoRec.Close)
		logger.Info("recording generations to MongoDB", "database", s.Mongo.Database, "collection", s.Mongo.Collection)
	}
	a.Recorder = recorders

	textProviders, err := TextProviders(s)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.Text = chain.New(chain.Options{
		Providers:     textProviders,
		Policy:        retry.FromConfig(s.Text.Retry),
		Local:         fallback.New(nil),
		Recorder:      a.Recorder,
		Logger:        logger.With("component", "text"),
		CacheCapacity: s.Text.CacheCapacity,
		CacheTTL:      s.Text.CacheTTL.Duration,
	})

	imageProviders, err := ImageProviders(s)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.Images = image.New(image.Options{
		Providers: imageProviders,
		Policy:    retry.FromConfig(s.Image.Retry),
		Catalog:   a.Text.Engine().Catalog(),
		Recorder:  a.Recorder,
		Logger:    logger.With("component", "image"),
	})

	a.Speech = speech.New(s.Speech,
		speech.WithLogger(logger.With("component", "speech")),
		speech.WithRecorder(a.Recorder))
	a.closers = append(a.closers, func(context.Context) error { return a.Speech.Close() })

	var sessions session.Store = session.NewMemoryStore(s.Redis.SessionTTL.Duration)
	if s.Redis.Enabled {
		client := redis.NewClient(&redis.Options{Addr: s.Redis.Addr, Password: s.Redis.Password, DB: s.Redis.DB})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			a.Close(ctx)
			return nil, fmt.Errorf("failed to connect to Redis at %s: %w", s.Redis.Addr, err)
		}
		sessions = session.NewRedisStore(client, s.Redis.Prefix, s.Redis.SessionTTL.Duration)
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
	}
	a.Sessions = session.NewService(sessions, a.Text, logger.With("component", "session"))

	return a, nil
}

// Close releases components in reverse order of creation.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Engine is the profile engine shared by the chains.
func (a *App) Engine() *personality.Engine {
	return a.Text.Engine()
}
