package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration lets settings files spell durations as "15s" or "5m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Settings struct {
	Log         LogConfig         `toml:"log"`
	Server      ServerConfig      `toml:"server"`
	Database    DatabaseConfig    `toml:"database"`
	Redis       RedisConfig       `toml:"redis"`
	Mongo       MongoConfig       `toml:"mongo"`
	Text        TextConfig        `toml:"text"`
	OpenAI      OpenAIConfig      `toml:"openai"`
	Gemini      GeminiConfig      `toml:"gemini"`
	HuggingFace HuggingFaceConfig `toml:"huggingface"`
	Ollama      OllamaConfig      `toml:"ollama"`
	Image       ImageConfig       `toml:"image"`
	Stability   StabilityConfig   `toml:"stability"`
	Replicate   ReplicateConfig   `toml:"replicate"`
	Speech      SpeechConfig      `toml:"speech"`
	LoveMeter   LoveMeterConfig   `toml:"love_meter"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Listen         string   `toml:"listen"`
	AllowedOrigins []string `toml:"allowed_origins"`
	ReadTimeout    Duration `toml:"read_timeout"`
	WriteTimeout   Duration `toml:"write_timeout"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	Prefix     string   `toml:"prefix"`
	SessionTTL Duration `toml:"session_ttl"`
}

type MongoConfig struct {
	Enabled    bool   `toml:"enabled"`
	URI        string `toml:"uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

// RetryConfig is the per-provider-class attempt policy.
type RetryConfig struct {
	Timeout    Duration `toml:"timeout"`
	MaxRetries int      `toml:"max_retries"`
	BaseDelay  Duration `toml:"base_delay"`
}

type TextConfig struct {
	Retry             RetryConfig `toml:"retry"`
	Providers         []string    `toml:"providers"`
	MinResponseLength int         `toml:"min_response_length"`
	CacheCapacity     int         `toml:"cache_capacity"`
	CacheTTL          Duration    `toml:"cache_ttl"`
}

type OpenAIConfig struct {
	APIKey        string  `toml:"api_key"`
	BaseURL       string  `toml:"base_url"`
	Model         string  `toml:"model"`
	MaxTokens     int     `toml:"max_tokens"`
	Temperature   float64 `toml:"temperature"`
	HistoryWindow int     `toml:"history_window"`
}

type GeminiConfig struct {
	APIKey        string `toml:"api_key"`
	Model         string `toml:"model"`
	ImageModel    string `toml:"image_model"`
	HistoryWindow int    `toml:"history_window"`
}

type HuggingFaceConfig struct {
	APIKey        string `toml:"api_key"`
	BaseURL       string `toml:"base_url"`
	TextModel     string `toml:"text_model"`
	ImageModel    string `toml:"image_model"`
	HistoryWindow int    `toml:"history_window"`
}

type OllamaConfig struct {
	Enabled       bool   `toml:"enabled"`
	URL           string `toml:"url"`
	Model         string `toml:"model"`
	HistoryWindow int    `toml:"history_window"`
}

type ImageConfig struct {
	Retry     RetryConfig `toml:"retry"`
	Providers []string    `toml:"providers"`
}

type StabilityConfig struct {
	APIKey string `toml:"api_key"`
	URL    string `toml:"url"`
}

type ReplicateConfig struct {
	APIKey  string `toml:"api_key"`
	URL     string `toml:"url"`
	Version string `toml:"version"`
}

type SpeechConfig struct {
	APIKey             string   `toml:"api_key"`
	BaseURL            string   `toml:"base_url"`
	ModelID            string   `toml:"model_id"`
	MaxTextLength      int      `toml:"max_text_length"`
	MinAudioBytes      int      `toml:"min_audio_bytes"`
	VoiceCacheTTL      Duration `toml:"voice_cache_ttl"`
	AudioCacheTTL      Duration `toml:"audio_cache_ttl"`
	AudioCacheCapacity int      `toml:"audio_cache_capacity"`
}

type LoveMeterConfig struct {
	Chance float64 `toml:"chance"`
	Max    int     `toml:"max"`
}

// DefaultSettings returns the settings used when no config file exists.
func DefaultSettings() *Settings {
	return &Settings{
		Log: LogConfig{Level: "info", Format: "text"},
		Server: ServerConfig{
			Listen:         ":8080",
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:3000"},
			ReadTimeout:    Duration{30 * time.Second},
			WriteTimeout:   Duration{5 * time.Minute},
		},
		Database: DatabaseConfig{Path: DefaultDatabasePath()},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			Prefix:     "kokoro",
			SessionTTL: Duration{2 * time.Hour},
		},
		Mongo: MongoConfig{
			Enabled:    false,
			Database:   "kokoro",
			Collection: "generations",
		},
		Text: TextConfig{
			Retry: RetryConfig{
				Timeout:    Duration{15 * time.Second},
				MaxRetries: 3,
				BaseDelay:  Duration{time.Second},
			},
			Providers:         []string{"openai", "huggingface"},
			MinResponseLength: 5,
			CacheCapacity:     50,
			CacheTTL:          Duration{5 * time.Minute},
		},
		OpenAI: OpenAIConfig{
			Model:         "gpt-3.5-turbo",
			MaxTokens:     150,
			Temperature:   0.8,
			HistoryWindow: 6,
		},
		Gemini: GeminiConfig{
			Model:         "gemini-2.5-flash",
			ImageModel:    "imagen-3.0-generate-002",
			HistoryWindow: 6,
		},
		HuggingFace: HuggingFaceConfig{
			BaseURL:       "https://api-inference.huggingface.co",
			TextModel:     "microsoft/DialoGPT-medium",
			ImageModel:    "runwayml/stable-diffusion-v1-5",
			HistoryWindow: 4,
		},
		Ollama: OllamaConfig{
			Enabled:       false,
			URL:           "http://localhost:11434",
			Model:         "llama3.2",
			HistoryWindow: 6,
		},
		Image: ImageConfig{
			Retry: RetryConfig{
				Timeout:    Duration{30 * time.Second},
				MaxRetries: 3,
				BaseDelay:  Duration{time.Second},
			},
			Providers: []string{"stability", "huggingface", "replicate"},
		},
		Stability: StabilityConfig{
			URL: "https://api.stability.ai/v2beta/stable-image/generate/core",
		},
		Replicate: ReplicateConfig{
			URL:     "https://api.replicate.com/v1/predictions",
			Version: "ac732df83cea7fff18b8472768c88ad041fa750ff7682a21affe81863cbe77e4",
		},
		Speech: SpeechConfig{
			BaseURL:            "https://api.elevenlabs.io",
			ModelID:            "eleven_multilingual_v2",
			MaxTextLength:      4500,
			MinAudioBytes:      100,
			VoiceCacheTTL:      Duration{30 * time.Minute},
			AudioCacheTTL:      Duration{10 * time.Minute},
			AudioCacheCapacity: 32,
		},
		LoveMeter: LoveMeterConfig{Chance: 0.3, Max: 100},
	}
}

// LoadSettings reads the settings file at path over the defaults. An empty
// path means the XDG default; a missing file is not an error.
func LoadSettings(path string) (*Settings, error) {
	settings := DefaultSettings()

	if path == "" {
		path = GetConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			settings.ApplyEnvironment()
			return settings, nil
		}
		return nil, err
	}

	if _, err := toml.Decode(string(data), settings); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	settings.ApplyEnvironment()
	return settings, nil
}

// Save writes the settings as TOML, creating the parent directory.
func (s *Settings) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(s)
}

// ApplyEnvironment fills vendor credentials from their conventional
// environment variables when the settings file leaves them empty.
func (s *Settings) ApplyEnvironment() {
	fill := func(dst *string, keys ...string) {
		if *dst != "" {
			return
		}
		for _, key := range keys {
			if v := os.Getenv(key); v != "" {
				*dst = v
				return
			}
		}
	}

	fill(&s.OpenAI.APIKey, "OPENAI_API_KEY")
	fill(&s.Gemini.APIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	fill(&s.HuggingFace.APIKey, "HUGGING_FACE_API_KEY", "HF_TOKEN")
	fill(&s.Stability.APIKey, "STABILITY_AI_API_KEY")
	fill(&s.Replicate.APIKey, "REPLICATE_API_KEY")
	fill(&s.Speech.APIKey, "ELEVENLABS_API_KEY", "VITE_ELEVENLABS_API_KEY")
	fill(&s.Mongo.URI, "MONGODB_URI")
}

func (s *Settings) Validate() error {
	if s.Server.Listen == "" {
		return errors.New("server.listen must be set")
	}
	if s.Text.Retry.MaxRetries < 0 || s.Image.Retry.MaxRetries < 0 {
		return errors.New("max_retries must be >= 0")
	}
	if s.Text.Retry.Timeout.Duration <= 0 || s.Image.Retry.Timeout.Duration <= 0 {
		return errors.New("retry timeouts must be > 0")
	}
	if s.Text.CacheCapacity < 0 || s.Speech.AudioCacheCapacity < 0 {
		return errors.New("cache capacities must be >= 0")
	}
	if s.LoveMeter.Chance < 0 || s.LoveMeter.Chance > 1 {
		return errors.New("love_meter.chance must be within [0, 1]")
	}
	if s.Mongo.Enabled && s.Mongo.URI == "" {
		return errors.New("mongo.uri is required when mongo is enabled")
	}
	if s.Redis.Enabled && s.Redis.Addr == "" {
		return errors.New("redis.addr is required when redis is enabled")
	}
	for _, name := range s.Text.Providers {
		if !knownTextProviders[name] {
			return fmt.Errorf("unknown text provider %q", name)
		}
	}
	for _, name := range s.Image.Providers {
		if !knownImageProviders[name] {
			return fmt.Errorf("unknown image provider %q", name)
		}
	}
	return nil
}

var knownTextProviders = map[string]bool{
	"openai":      true,
	"gemini":      true,
	"huggingface": true,
	"ollama":      true,
}

var knownImageProviders = map[string]bool{
	"stability":   true,
	"huggingface": true,
	"replicate":   true,
	"imagen":      true,
}
