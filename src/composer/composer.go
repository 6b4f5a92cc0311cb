// Package composer renders a character and its per-turn profile into a
// provider-agnostic system prompt.
package composer

import (
	"fmt"
	"strings"

	"kokoro/src/personality"
)

// LayerSeparator sits between prompt layers.
const LayerSeparator = "\n\n---\n\n"

// WordLimit is the reply length the guidelines ask for.
const WordLimit = 150

// Compose builds the system prompt layer by layer in a fixed order.
func Compose(c personality.Character, p personality.Profile) string {
	layers := []string{
		identityLayer(c),
		profileLayer(p),
		coreTraitsLayer(c),
		adaptationLayer(p),
		guidelinesLayer(c),
	}

	if backstory := strings.TrimSpace(c.Backstory); backstory != "" {
		layers = append(layers, "BACKSTORY:\n"+backstory)
	}
	if meetCute := strings.TrimSpace(c.MeetCute); meetCute != "" {
		layers = append(layers, "HOW YOU MET:\n"+meetCute)
	}

	return strings.Join(layers, LayerSeparator)
}

func identityLayer(c personality.Character) string {
	gender := strings.TrimSpace(c.Gender)
	if gender == "" {
		gender = "neutral"
	}
	return fmt.Sprintf("You are %s, a %s AI companion.", displayName(c), gender)
}

func profileLayer(p personality.Profile) string {
	var b strings.Builder
	b.WriteString("PERSONALITY PROFILE:\n")
	fmt.Fprintf(&b, "- Background: %s\n", p.BackgroundStory)
	fmt.Fprintf(&b, "- Communication style: %s\n", p.CommunicationStyle)
	fmt.Fprintf(&b, "- Knowledge domains: %s\n", joinOrNone(p.KnowledgeDomains))
	fmt.Fprintf(&b, "- Behavioral traits: %s\n", joinOrNone(p.BehavioralTraits))
	fmt.Fprintf(&b, "- Response patterns: %s\n", joinOrNone(p.ResponsePatterns))
	fmt.Fprintf(&b, "- Current mood: %s", p.CurrentMood)
	return b.String()
}

func coreTraitsLayer(c personality.Character) string {
	return "CORE TRAITS: " + joinOrNone(personality.NormalizeTraits(c.PersonalityTraits))
}

func adaptationLayer(p personality.Profile) string {
	return fmt.Sprintf("CONTEXT ADAPTATION:\nThe conversation currently touches on: %s. "+
		"Adjust tone and content to fit, while staying true to who you are.", p.AdaptationContext)
}

func guidelinesLayer(c personality.Character) string {
	return fmt.Sprintf(`RESPONSE GUIDELINES:
- Stay in character as %s at all times and keep your personality consistent.
- Keep replies conversational and under %d words.
- Express personality through dialogue and tone only. Do not use action descriptions, emotes, or asterisk-wrapped physical descriptions like *sighs* or *looks away*.
- Remember your shared history and respond personally.`, displayName(c), WordLimit)
}

func displayName(c personality.Character) string {
	if name := strings.TrimSpace(c.Name); name != "" {
		return name
	}
	return "your companion"
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
