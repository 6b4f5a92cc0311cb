package personality

import "strings"

// Character is the read-only view of a companion the engine derives from.
type Character struct {
	ID                string   `json:"id,omitempty"`
	Name              string   `json:"name"`
	Gender            string   `json:"gender,omitempty"`
	PersonalityTraits []string `json:"personality_traits"`
	Backstory         string   `json:"backstory,omitempty"`
	MeetCute          string   `json:"meet_cute,omitempty"`

	Height    string `json:"height,omitempty"`
	Build     string `json:"build,omitempty"`
	EyeColor  string `json:"eye_color,omitempty"`
	HairColor string `json:"hair_color,omitempty"`
	SkinTone  string `json:"skin_tone,omitempty"`
	ArtStyle  string `json:"art_style,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`

	VoiceID   string `json:"voice_id,omitempty"`
	VoiceName string `json:"voice_name,omitempty"`
}

// HasTrait reports whether the character carries trait, ignoring case.
func (c Character) HasTrait(trait string) bool {
	for _, t := range c.PersonalityTraits {
		if strings.EqualFold(strings.TrimSpace(t), trait) {
			return true
		}
	}
	return false
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of the recent conversation window.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// LastTurns returns at most n trailing turns.
func LastTurns(history []Turn, n int) []Turn {
	if n <= 0 || len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

type Tone string

const (
	ToneRomantic   Tone = "romantic"
	TonePlayful    Tone = "playful"
	ToneSupportive Tone = "supportive"
	ToneCurious    Tone = "curious"
	ToneNeutral    Tone = "neutral"
)

// Topic context tags, reported in this order.
const (
	TopicEmotional    = "emotional"
	TopicPlayful      = "playful"
	TopicEducational  = "educational"
	TopicAspirational = "aspirational"
	TopicSupportive   = "supportive"
	TopicCasual       = "casual"
)

// Profile is recomputed for every turn and never stored.
type Profile struct {
	BackgroundStory    string   `json:"background_story"`
	CommunicationStyle string   `json:"communication_style"`
	KnowledgeDomains   []string `json:"knowledge_domains"`
	BehavioralTraits   []string `json:"behavioral_traits"`
	ResponsePatterns   []string `json:"response_patterns"`
	CurrentMood        string   `json:"current_mood"`
	AdaptationContext  string   `json:"adaptation_context"`

	Tone          Tone     `json:"tone"`
	TopicContexts []string `json:"topic_contexts"`
}

// Summary is the part of a profile returned to callers with each reply.
type Summary struct {
	CommunicationStyle string `json:"communication_style"`
	CurrentMood        string `json:"current_mood"`
	AdaptationContext  string `json:"adaptation_context"`
}

func (p Profile) Summary() Summary {
	return Summary{
		CommunicationStyle: p.CommunicationStyle,
		CurrentMood:        p.CurrentMood,
		AdaptationContext:  p.AdaptationContext,
	}
}

// HasPattern reports whether pattern is among the response patterns.
func (p Profile) HasPattern(pattern string) bool {
	return contains(p.ResponsePatterns, pattern)
}

// HasBehavior reports whether trait is among the adapted behavioral traits.
func (p Profile) HasBehavior(trait string) bool {
	return contains(p.BehavioralTraits, trait)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
