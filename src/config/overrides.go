package config

import (
	"sort"

	"github.com/spf13/viper"
)

// overrideTargets maps dotted viper keys to the settings field they replace.
// Keys mirror the TOML layout so KOKORO_TEXT_RETRY_TIMEOUT reaches
// text.retry.timeout through the env key replacer.
func (s *Settings) overrideTargets() map[string]interface{} {
	return map[string]interface{}{
		"log.level":                   &s.Log.Level,
		"log.format":                  &s.Log.Format,
		"server.listen":               &s.Server.Listen,
		"server.allowed_origins":      &s.Server.AllowedOrigins,
		"server.read_timeout":         &s.Server.ReadTimeout,
		"server.write_timeout":        &s.Server.WriteTimeout,
		"database.path":               &s.Database.Path,
		"redis.enabled":               &s.Redis.Enabled,
		"redis.addr":                  &s.Redis.Addr,
		"redis.password":              &s.Redis.Password,
		"redis.db":                    &s.Redis.DB,
		"redis.prefix":                &s.Redis.Prefix,
		"redis.session_ttl":           &s.Redis.SessionTTL,
		"mongo.enabled":               &s.Mongo.Enabled,
		"mongo.uri":                   &s.Mongo.URI,
		"mongo.database":              &s.Mongo.Database,
		"mongo.collection":            &s.Mongo.Collection,
		"text.providers":              &s.Text.Providers,
		"text.min_response_length":    &s.Text.MinResponseLength,
		"text.cache_capacity":         &s.Text.CacheCapacity,
		"text.cache_ttl":              &s.Text.CacheTTL,
		"text.retry.timeout":          &s.Text.Retry.Timeout,
		"text.retry.max_retries":      &s.Text.Retry.MaxRetries,
		"text.retry.base_delay":       &s.Text.Retry.BaseDelay,
		"openai.api_key":              &s.OpenAI.APIKey,
		"openai.base_url":             &s.OpenAI.BaseURL,
		"openai.model":                &s.OpenAI.Model,
		"openai.max_tokens":           &s.OpenAI.MaxTokens,
		"openai.temperature":          &s.OpenAI.Temperature,
		"openai.history_window":       &s.OpenAI.HistoryWindow,
		"gemini.api_key":              &s.Gemini.APIKey,
		"gemini.model":                &s.Gemini.Model,
		"gemini.image_model":          &s.Gemini.ImageModel,
		"gemini.history_window":       &s.Gemini.HistoryWindow,
		"huggingface.api_key":         &s.HuggingFace.APIKey,
		"huggingface.base_url":        &s.HuggingFace.BaseURL,
		"huggingface.text_model":      &s.HuggingFace.TextModel,
		"huggingface.image_model":     &s.HuggingFace.ImageModel,
		"huggingface.history_window":  &s.HuggingFace.HistoryWindow,
		"ollama.enabled":              &s.Ollama.Enabled,
		"ollama.url":                  &s.Ollama.URL,
		"ollama.model":                &s.Ollama.Model,
		"ollama.history_window":       &s.Ollama.HistoryWindow,
		"image.providers":             &s.Image.Providers,
		"image.retry.timeout":         &s.Image.Retry.Timeout,
		"image.retry.max_retries":     &s.Image.Retry.MaxRetries,
		"image.retry.base_delay":      &s.Image.Retry.BaseDelay,
		"stability.api_key":           &s.Stability.APIKey,
		"stability.url":               &s.Stability.URL,
		"replicate.api_key":           &s.Replicate.APIKey,
		"replicate.url":               &s.Replicate.URL,
		"replicate.version":           &s.Replicate.Version,
		"speech.api_key":              &s.Speech.APIKey,
		"speech.base_url":             &s.Speech.BaseURL,
		"speech.model_id":             &s.Speech.ModelID,
		"speech.max_text_length":      &s.Speech.MaxTextLength,
		"speech.min_audio_bytes":      &s.Speech.MinAudioBytes,
		"speech.voice_cache_ttl":      &s.Speech.VoiceCacheTTL,
		"speech.audio_cache_ttl":      &s.Speech.AudioCacheTTL,
		"speech.audio_cache_capacity": &s.Speech.AudioCacheCapacity,
		"love_meter.chance":           &s.LoveMeter.Chance,
		"love_meter.max":              &s.LoveMeter.Max,
	}
}

// ApplyOverrides copies every key viper knows about (bound flag, KOKORO_
// environment variable or explicit Set) onto the settings.
func (s *Settings) ApplyOverrides(v *viper.Viper) {
	for key, target := range s.overrideTargets() {
		if !v.IsSet(key) {
			continue
		}
		switch p := target.(type) {
		case *string:
			*p = v.GetString(key)
		case *bool:
			*p = v.GetBool(key)
		case *int:
			*p = v.GetInt(key)
		case *float64:
			*p = v.GetFloat64(key)
		case *[]string:
			*p = v.GetStringSlice(key)
		case *Duration:
			if d := v.GetDuration(key); d > 0 {
				p.Duration = d
			}
		}
	}
}

// Keys lists every settings key accepted by ApplyOverrides, sorted.
func (s *Settings) Keys() []string {
	targets := s.overrideTargets()
	keys := make([]string, 0, len(targets))
	for k := range targets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Lookup returns the current value of a dotted key.
func (s *Settings) Lookup(key string) (interface{}, bool) {
	target, ok := s.overrideTargets()[key]
	if !ok {
		return nil, false
	}
	switch p := target.(type) {
	case *string:
		return *p, true
	case *bool:
		return *p, true
	case *int:
		return *p, true
	case *float64:
		return *p, true
	case *[]string:
		return *p, true
	case *Duration:
		return p.Duration.String(), true
	}
	return nil, false
}
