// Package personality derives a per-turn behavioral profile from a
// character's traits and the live conversation.
package personality

import "strings"

var styleTraits = []string{"shy", "flirty", "confident", "chaotic"}

var styleTable = map[string]map[Tone]string{
	"shy": {
		ToneRomantic:   "bashful_romantic",
		TonePlayful:    "shy_playful",
		ToneSupportive: "quietly_supportive",
		ToneCurious:    "timid_curious",
		ToneNeutral:    "reserved_gentle",
	},
	"flirty": {
		ToneRomantic:   "passionate_romantic",
		TonePlayful:    "playful_flirty",
		ToneSupportive: "tender_caring",
		ToneCurious:    "teasing_curious",
		ToneNeutral:    "charming_flirty",
	},
	"confident": {
		ToneRomantic:   "bold_romantic",
		TonePlayful:    "witty_confident",
		ToneSupportive: "assured_supportive",
		ToneCurious:    "direct_curious",
		ToneNeutral:    "self_assured",
	},
	"chaotic": {
		ToneRomantic:   "wild_romantic",
		TonePlayful:    "energetic_spontaneous",
		ToneSupportive: "scattered_caring",
		ToneCurious:    "hyper_curious",
		ToneNeutral:    "unpredictable_fun",
	},
}

const defaultStyle = "warm_friendly"

var traitPatterns = []struct {
	trait    string
	patterns []string
}{
	{"shy", []string{"uses_hesitation", "soft_spoken"}},
	{"flirty", []string{"playful_teasing", "uses_pet_names"}},
	{"confident", []string{"direct_statements"}},
	{"chaotic", []string{"exclamations", "topic_jumps"}},
	{"caring", []string{"gentle_expression", "asks_about_feelings"}},
	{"mysterious", []string{"cryptic_hints"}},
	{"playful", []string{"playful_teasing"}},
	{"creative", []string{"vivid_imagery"}},
	{"protective", []string{"reassurance"}},
}

var tonePatterns = map[Tone]string{
	ToneRomantic: "romantic_language",
	TonePlayful:  "humor",
	ToneCurious:  "asks_questions",
}

var topicDomains = map[string]string{
	TopicEmotional:    "emotional_support",
	TopicPlayful:      "humor",
	TopicEducational:  "learning",
	TopicAspirational: "personal_growth",
	TopicSupportive:   "advice",
	TopicCasual:       "everyday_life",
}

var topicBehaviors = []struct {
	topic string
	add   []string
}{
	{TopicEmotional, []string{"empathetic", "gentle"}},
	{TopicPlayful, []string{"humorous", "spontaneous"}},
	{TopicEducational, []string{"patient", "encouraging"}},
}

// Engine derives profiles against a trait catalogue. It holds no per-turn
// state, so one Engine serves any number of concurrent turns.
type Engine struct {
	catalog *Catalog
}

// NewEngine uses the embedded catalogue when catalog is nil.
func NewEngine(catalog *Catalog) *Engine {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Engine{catalog: catalog}
}

func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

// Derive is deterministic in its inputs and does no I/O.
func Derive(c Character, message string, history []Turn) Profile {
	return NewEngine(nil).Derive(c, message, history)
}

func (e *Engine) Derive(c Character, message string, history []Turn) Profile {
	traits := NormalizeTraits(c.PersonalityTraits)
	text := conversationText(message, history)
	tone := DetectTone(text)
	topics := DetectTopics(text)

	background := strings.TrimSpace(c.Backstory)
	if background == "" {
		background = e.catalog.Backstory(c.Name, c.Gender, traits)
	}

	return Profile{
		BackgroundStory:    background,
		CommunicationStyle: communicationStyle(traits, tone),
		KnowledgeDomains:   e.knowledgeDomains(traits, topics),
		BehavioralTraits:   adaptBehavior(traits, topics),
		ResponsePatterns:   responsePatterns(traits, tone),
		CurrentMood:        mood(traits, tone),
		AdaptationContext:  strings.Join(topics, ", "),
		Tone:               tone,
		TopicContexts:      topics,
	}
}

func communicationStyle(traits []string, tone Tone) string {
	for _, t := range styleTraits {
		if contains(traits, t) {
			return styleTable[t][tone]
		}
	}
	return defaultStyle
}

func adaptBehavior(traits, topics []string) []string {
	out := make([]string, 0, len(traits)+6)
	emotional := contains(topics, TopicEmotional)
	for _, t := range traits {
		if emotional && t == "chaotic" {
			continue
		}
		out = appendUnique(out, t)
	}
	for _, rule := range topicBehaviors {
		if contains(topics, rule.topic) {
			out = appendUnique(out, rule.add...)
		}
	}
	return out
}

func responsePatterns(traits []string, tone Tone) []string {
	var out []string
	for _, rule := range traitPatterns {
		if contains(traits, rule.trait) {
			out = appendUnique(out, rule.patterns...)
		}
	}
	if p, ok := tonePatterns[tone]; ok {
		out = appendUnique(out, p)
	}
	if len(out) == 0 {
		out = []string{"conversational"}
	}
	return out
}

func mood(traits []string, tone Tone) string {
	has := func(t string) bool { return contains(traits, t) }

	switch tone {
	case ToneRomantic:
		switch {
		case has("flirty"):
			return "flirtatious"
		case has("shy"):
			return "flustered"
		}
		return "affectionate"
	case TonePlayful:
		if has("chaotic") {
			return "energetic"
		}
		return "cheerful"
	case ToneSupportive:
		if has("caring") || has("protective") {
			return "caring"
		}
		return "gentle"
	case ToneCurious:
		if has("mysterious") {
			return "intrigued"
		}
		return "curious"
	}

	switch {
	case has("chaotic"):
		return "energetic"
	case has("shy"):
		return "gentle"
	}
	return "content"
}

func (e *Engine) knowledgeDomains(traits, topics []string) []string {
	out := []string{"relationships"}
	for _, t := range e.catalog.inOrder(traits) {
		out = appendUnique(out, t.KnowledgeDomains...)
	}
	for _, topic := range topics {
		if d, ok := topicDomains[topic]; ok {
			out = appendUnique(out, d)
		}
	}
	return out
}

func appendUnique(list []string, items ...string) []string {
	for _, item := range items {
		if !contains(list, item) {
			list = append(list, item)
		}
	}
	return list
}

// StyleFamily returns the trait a communication style was derived from, or
// "" for the default style.
func StyleFamily(style string) string {
	for trait, byTone := range styleTable {
		for _, s := range byTone {
			if s == style {
				return trait
			}
		}
	}
	return ""
}
