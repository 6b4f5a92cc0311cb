package personality

import (
	"reflect"
	"strings"
	"testing"
)

func TestDetectTone(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want Tone
	}{
		{"i love you", ToneRomantic},
		{"i'm feeling sad", ToneRomantic}, // romantic outranks supportive
		{"haha that's funny", TonePlayful},
		{"i have a problem", ToneSupportive},
		{"what are you doing", ToneCurious},
		{"you there?", ToneCurious},
		{"this is fine", ToneNeutral},
		{"", ToneNeutral},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()
			if got := DetectTone(tt.text); got != tt.want {
				t.Errorf("DetectTone(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestDetectTopics(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want []string
	}{
		{"nice weather today", []string{"casual"}},
		{"i'm feeling really sad and worried", []string{"emotional", "supportive"}},
		{"can you explain my homework lol", []string{"playful", "educational"}},
		{"my dream career", []string{"aspirational"}},
		{"i keep struggling", []string{"supportive"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()
			if got := DetectTopics(tt.text); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DetectTopics(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestDeriveEmotionalAdaptation(t *testing.T) {
	t.Parallel()

	c := Character{Name: "Rin", PersonalityTraits: []string{"chaotic", "caring"}}
	p := Derive(c, "I'm feeling really sad and worried", nil)

	if p.HasBehavior("chaotic") {
		t.Errorf("behavioral traits should drop chaotic: %v", p.BehavioralTraits)
	}
	for _, want := range []string{"caring", "empathetic", "gentle"} {
		if !p.HasBehavior(want) {
			t.Errorf("behavioral traits missing %q: %v", want, p.BehavioralTraits)
		}
	}
	for _, want := range []string{"emotional", "supportive"} {
		if !strings.Contains(p.AdaptationContext, want) {
			t.Errorf("adaptation context %q missing %q", p.AdaptationContext, want)
		}
	}
}

func TestDeriveNeverKeepsChaoticWhenEmotional(t *testing.T) {
	t.Parallel()

	traitSets := [][]string{
		{"chaotic"},
		{"Chaotic", "shy"},
		{"flirty", "chaotic", "chaotic"},
		{"confident", "playful", "chaotic", "creative"},
	}
	for _, traits := range traitSets {
		p := Derive(Character{Name: "X", PersonalityTraits: traits}, "I feel so lonely", nil)
		if !strings.Contains(p.AdaptationContext, TopicEmotional) {
			t.Fatalf("expected emotional context for %v", traits)
		}
		if p.HasBehavior("chaotic") {
			t.Errorf("traits %v kept chaotic: %v", traits, p.BehavioralTraits)
		}
	}
}

func TestDeriveIsPure(t *testing.T) {
	t.Parallel()

	c := Character{Name: "Mika", Gender: "female", PersonalityTraits: []string{"flirty", "mysterious"}}
	history := []Turn{
		{Role: RoleUser, Content: "tell me a joke"},
		{Role: RoleAssistant, Content: "Why did the cat sit on the computer?"},
	}

	first := Derive(c, "what do you dream about?", history)
	second := Derive(c, "what do you dream about?", history)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Derive is not deterministic:\n%+v\n%+v", first, second)
	}
}

func TestDeriveUsesHistory(t *testing.T) {
	t.Parallel()

	c := Character{Name: "Aoi", PersonalityTraits: []string{"shy"}}
	history := []Turn{{Role: RoleUser, Content: "haha you're funny"}}

	p := Derive(c, "ok", history)
	if p.Tone != TonePlayful {
		t.Errorf("tone = %q, want playful from history", p.Tone)
	}
	if p.CommunicationStyle != "shy_playful" {
		t.Errorf("style = %q", p.CommunicationStyle)
	}
}

func TestCommunicationStylePrecedence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		traits  []string
		message string
		want    string
	}{
		{"shy beats flirty", []string{"flirty", "shy"}, "i love you", "bashful_romantic"},
		{"flirty playful", []string{"flirty"}, "haha", "playful_flirty"},
		{"confident supportive", []string{"confident"}, "i have a problem", "assured_supportive"},
		{"chaotic playful", []string{"caring", "chaotic"}, "that joke", "energetic_spontaneous"},
		{"no style trait", []string{"caring"}, "hello", "warm_friendly"},
		{"empty traits", nil, "hello", "warm_friendly"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := Derive(Character{Name: "C", PersonalityTraits: tt.traits}, tt.message, nil)
			if p.CommunicationStyle != tt.want {
				t.Errorf("style = %q, want %q", p.CommunicationStyle, tt.want)
			}
		})
	}
}

func TestMoodAndPatterns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		traits       []string
		message      string
		wantMood     string
		wantPatterns []string
	}{
		{"shy romantic", []string{"shy"}, "my heart", "flustered", []string{"uses_hesitation", "soft_spoken", "romantic_language"}},
		{"chaotic neutral", []string{"chaotic"}, "ok", "energetic", []string{"exclamations", "topic_jumps"}},
		{"caring supportive", []string{"caring"}, "big problem", "caring", []string{"gentle_expression", "asks_about_feelings"}},
		{"mysterious curious", []string{"mysterious"}, "who are you", "intrigued", []string{"cryptic_hints", "asks_questions"}},
		{"empty traits", nil, "ok", "content", []string{"conversational"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := Derive(Character{Name: "C", PersonalityTraits: tt.traits}, tt.message, nil)
			if p.CurrentMood != tt.wantMood {
				t.Errorf("mood = %q, want %q", p.CurrentMood, tt.wantMood)
			}
			if !reflect.DeepEqual(p.ResponsePatterns, tt.wantPatterns) {
				t.Errorf("patterns = %v, want %v", p.ResponsePatterns, tt.wantPatterns)
			}
		})
	}
}

func TestBackgroundFallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		c      Character
		substr string
	}{
		{"own backstory", Character{Name: "A", Backstory: "Grew up by the sea.", PersonalityTraits: []string{"shy"}}, "Grew up by the sea."},
		{"shy template", Character{Name: "Aoi", Gender: "female", PersonalityTraits: []string{"creative", "shy"}}, "introverted woman"},
		{"confident template", Character{Name: "Ken", Gender: "male", PersonalityTraits: []string{"confident"}}, "self-assured man"},
		{"creative template", Character{Name: "Sol", PersonalityTraits: []string{"creative"}}, "imaginative"},
		{"default", Character{Name: "Sol"}, "Sol is a warm, curious soul"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := Derive(tt.c, "hello", nil)
			if !strings.Contains(p.BackgroundStory, tt.substr) {
				t.Errorf("background = %q, want it to contain %q", p.BackgroundStory, tt.substr)
			}
		})
	}
}

func TestKnowledgeDomains(t *testing.T) {
	t.Parallel()

	p := Derive(Character{Name: "C", PersonalityTraits: []string{"creative", "caring"}}, "can you help me study", nil)
	want := []string{"relationships", "emotional_support", "wellbeing", "art", "music", "storytelling", "learning", "advice"}
	if !reflect.DeepEqual(p.KnowledgeDomains, want) {
		t.Errorf("domains = %v, want %v", p.KnowledgeDomains, want)
	}
}

func TestCatalog(t *testing.T) {
	t.Parallel()

	cat := DefaultCatalog()
	if _, ok := cat.Lookup(" Shy "); !ok {
		t.Error("lookup should normalise names")
	}
	exprs := cat.Expressions([]string{"unknown", "playful", "mysterious", "confident"}, 2)
	if len(exprs) != 2 || !strings.Contains(exprs[0], "mischievous") {
		t.Errorf("Expressions() = %v", exprs)
	}

	if _, err := ParseCatalog([]byte("[[trait]]\nname = \"a\"\n[[trait]]\nname = \"A\"\n")); err == nil {
		t.Error("duplicate trait names should be rejected")
	}
}
