package composer

import (
	"strings"
	"testing"

	"kokoro/src/personality"
)

func TestComposeContainsEveryProfileField(t *testing.T) {
	t.Parallel()

	characters := []personality.Character{
		{Name: "Aoi", Gender: "female", PersonalityTraits: []string{"shy", "creative"}},
		{Name: "Rex", Gender: "male", PersonalityTraits: []string{"Confident", "protective"}, Backstory: "A retired pilot.", MeetCute: "Stuck in an elevator."},
		{Name: "Nyx", PersonalityTraits: nil},
	}
	messages := []string{"hi", "I'm feeling really sad and worried", "what's your dream?"}

	for _, c := range characters {
		for _, msg := range messages {
			p := personality.Derive(c, msg, nil)
			prompt := Compose(c, p)

			fields := []string{p.BackgroundStory, p.CommunicationStyle, p.CurrentMood, p.AdaptationContext}
			fields = append(fields, p.KnowledgeDomains...)
			fields = append(fields, p.BehavioralTraits...)
			fields = append(fields, p.ResponsePatterns...)
			for _, trait := range personality.NormalizeTraits(c.PersonalityTraits) {
				fields = append(fields, trait)
			}

			for _, f := range fields {
				if !strings.Contains(prompt, f) {
					t.Errorf("%s/%q: prompt missing %q", c.Name, msg, f)
				}
			}
		}
	}
}

func TestComposeLayerOrder(t *testing.T) {
	t.Parallel()

	c := personality.Character{
		Name:              "Rex",
		PersonalityTraits: []string{"confident"},
		Backstory:         "A retired pilot.",
		MeetCute:          "Stuck in an elevator.",
	}
	prompt := Compose(c, personality.Derive(c, "hello", nil))

	order := []string{"You are Rex", "PERSONALITY PROFILE:", "CORE TRAITS: confident", "CONTEXT ADAPTATION:", "RESPONSE GUIDELINES:", "BACKSTORY:", "HOW YOU MET:"}
	last := -1
	for _, marker := range order {
		idx := strings.Index(prompt, marker)
		if idx < 0 {
			t.Fatalf("prompt missing %q", marker)
		}
		if idx <= last {
			t.Errorf("%q out of order", marker)
		}
		last = idx
	}
	if !strings.Contains(prompt, "under 150 words") {
		t.Error("length guideline missing")
	}
}

func TestComposeOmitsEmptyAppendices(t *testing.T) {
	t.Parallel()

	c := personality.Character{Name: "Nyx"}
	prompt := Compose(c, personality.Derive(c, "hello", nil))

	if strings.Contains(prompt, "BACKSTORY:") || strings.Contains(prompt, "HOW YOU MET:") {
		t.Error("appendices should be omitted when empty")
	}
	if !strings.Contains(prompt, "a neutral AI companion") {
		t.Error("missing gender should read as neutral")
	}
	if !strings.Contains(prompt, "CORE TRAITS: none") {
		t.Error("empty trait list should render as none")
	}
}
