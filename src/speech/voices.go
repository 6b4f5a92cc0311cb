package speech

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

const voicesKey = "voices"

type Voice struct {
	VoiceID     string `json:"voice_id"`
	Name        string `json:"name"`
	Gender      string `json:"gender"`
	Accent      string `json:"accent"`
	Age         string `json:"age"`
	Tone        string `json:"tone"`
	Description string `json:"description"`
	PreviewURL  string `json:"preview_url,omitempty"`
}

type elevenLabsVoice struct {
	VoiceID    string `json:"voice_id"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	PreviewURL string `json:"preview_url"`
	Labels     struct {
		Accent      string `json:"accent"`
		Description string `json:"description"`
		Age         string `json:"age"`
		Gender      string `json:"gender"`
	} `json:"labels"`
}

var toneKeywords = []struct {
	tone     string
	keywords []string
}{
	{"warm", []string{"warm", "friendly", "cheerful", "bright", "upbeat"}},
	{"calm", []string{"calm", "soothing", "gentle", "soft", "peaceful"}},
	{"confident", []string{"confident", "strong", "assertive", "powerful", "authoritative"}},
	{"playful", []string{"playful", "energetic", "lively", "bubbly", "animated"}},
	{"mysterious", []string{"mysterious", "sultry", "deep", "seductive", "alluring"}},
	{"professional", []string{"professional", "business", "formal"}},
	{"romantic", []string{"romantic", "intimate", "loving"}},
}

// AssignTone picks a tone from description keywords, then from gender.
func AssignTone(description, gender string) string {
	description = strings.ToLower(description)
	for _, tk := range toneKeywords {
		for _, kw := range tk.keywords {
			if strings.Contains(description, kw) {
				return tk.tone
			}
		}
	}
	switch strings.ToLower(gender) {
	case "male":
		return "confident"
	case "female":
		return "warm"
	}
	return "neutral"
}

// FallbackVoices are offered when the voice catalogue cannot be fetched.
// Their ids are rejected by Synthesize.
var FallbackVoices = []Voice{
	{VoiceID: "fallback-male-1", Name: "Alex", Gender: "male", Accent: "American", Age: "young adult", Tone: "warm", Description: "Warm and friendly voice perfect for casual conversations"},
	{VoiceID: "fallback-male-2", Name: "David", Gender: "male", Accent: "British", Age: "middle aged", Tone: "confident", Description: "Sophisticated and confident with a distinguished British accent"},
	{VoiceID: "fallback-male-3", Name: "Ryan", Gender: "male", Accent: "American", Age: "young adult", Tone: "playful", Description: "Energetic and playful voice with youthful enthusiasm"},
	{VoiceID: "fallback-female-1", Name: "Sarah", Gender: "female", Accent: "American", Age: "young adult", Tone: "warm", Description: "Sweet and cheerful voice with a warm, caring tone"},
	{VoiceID: "fallback-female-2", Name: "Emma", Gender: "female", Accent: "British", Age: "young adult", Tone: "confident", Description: "Elegant and articulate with sophisticated confidence"},
	{VoiceID: "fallback-female-3", Name: "Luna", Gender: "female", Accent: "Neutral", Age: "young adult", Tone: "mysterious", Description: "Soft and mysterious with an alluring, captivating quality"},
	{VoiceID: "fallback-female-4", Name: "Aria", Gender: "female", Accent: "American", Age: "young adult", Tone: "playful", Description: "Bubbly and energetic with a playful, animated personality"},
	{VoiceID: "fallback-female-5", Name: "Sophia", Gender: "female", Accent: "Neutral", Age: "young adult", Tone: "calm", Description: "Gentle and soothing voice that brings peace and tranquility"},
}

// Voices lists premade voices. The bool reports whether the fallback list
// was returned; fallback lists are not cached.
func (c *Client) Voices(ctx context.Context) ([]Voice, bool) {
	if !c.Configured() {
		return FallbackVoices, true
	}
	if cached, ok := c.voices.Get(voicesKey); ok {
		return cached, false
	}

	voices, err := c.fetchVoices(ctx)
	if err != nil {
		c.logger.Warn("failed to fetch voices, using fallback list", "error", err)
		return FallbackVoices, true
	}
	c.voices.Set(voicesKey, voices)
	return voices, false
}

func (c *Client) fetchVoices(ctx context.Context) ([]Voice, error) {
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/voices"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, speechError(categoryForStatus(resp.StatusCode), resp.StatusCode, truncateRunes(string(body), 200))
	}

	var payload struct {
		Voices []elevenLabsVoice `json:"voices"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	voices := make([]Voice, 0, len(payload.Voices))
	for _, v := range payload.Voices {
		if v.Category != "premade" {
			continue
		}
		voices = append(voices, Voice{
			VoiceID:     v.VoiceID,
			Name:        v.Name,
			Gender:      orDefault(v.Labels.Gender, "neutral"),
			Accent:      orDefault(v.Labels.Accent, "neutral"),
			Age:         orDefault(v.Labels.Age, "adult"),
			Tone:        AssignTone(v.Labels.Description, v.Labels.Gender),
			Description: v.Labels.Description,
			PreviewURL:  v.PreviewURL,
		})
	}
	return voices, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
