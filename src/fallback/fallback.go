// Package fallback synthesizes a personality-aware reply without any remote
// provider. It is the last stage of the text chain and cannot fail.
package fallback

import (
	"math/rand/v2"
	"strings"

	"kokoro/src/personality"
)

// ModelID tags replies produced here.
const ModelID = "local-fallback"

// Rand is the randomness the generator draws from.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

type globalRand struct{}

func (globalRand) IntN(n int) int   { return rand.IntN(n) }
func (globalRand) Float64() float64 { return rand.Float64() }

// DefaultRand uses the goroutine-safe top-level math/rand/v2 source.
var DefaultRand Rand = globalRand{}

type Generator struct {
	rand Rand
}

func New(r Rand) *Generator {
	if r == nil {
		r = DefaultRand
	}
	return &Generator{rand: r}
}

var (
	greetingWords  = []string{"hello", "hi", "hey", "hiya", "heya"}
	affectionWords = []string{"love", "loves", "loved", "loving", "care", "cares", "caring", "adore"}
	distressStems  = []string{"sad", "worr", "problem"}
)

// Synthesize picks the first matching rule: greeting, affection, distress,
// then a pattern-flavored generic pool. A flourish may be appended.
func (g *Generator) Synthesize(message string, c personality.Character, p personality.Profile) string {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = "your companion"
	}
	words := personality.Words(message)

	var reply string
	switch {
	case personality.HasWord(words, greetingWords):
		reply = greeting(name, p)
	case personality.HasWord(words, affectionWords):
		reply = affection(p)
	case personality.MatchesAny(words, distressStems):
		reply = distress(p)
	default:
		pool := genericPool(p)
		reply = pool[g.rand.IntN(len(pool))]
	}

	if g.rand.Float64() < flourishChance(p) {
		reply += flourish(p.CurrentMood)
	}
	return reply
}

func greeting(name string, p personality.Profile) string {
	switch personality.StyleFamily(p.CommunicationStyle) {
	case "shy":
		return "H-hi there! I'm " + name + ". It's nice to meet you, though I'm a bit nervous..."
	case "flirty":
		return "Well hello there, gorgeous~ I'm " + name + ", and I've been waiting for someone like you..."
	case "confident":
		return "Hey! I'm " + name + ". Great to meet you. I have a feeling we're going to get along really well."
	case "chaotic":
		return "OMG HI!!! I'm " + name + " and I'm SO excited to meet you! What should we talk about first?"
	}
	return "Hi there! I'm " + name + ". It's really nice to see you!"
}

func affection(p personality.Profile) string {
	switch p.CurrentMood {
	case "flustered", "gentle":
		return "O-oh! That's very kind of you to say... you're making me blush."
	case "flirtatious":
		return "Mmm, I like you too~ Want to find out how much?"
	case "caring", "affectionate":
		return "That means so much to me! I care about you too."
	case "energetic", "cheerful":
		return "Aww, that totally made my day! You're the best!"
	}
	return "That's sweet of you to say!"
}

func distress(p personality.Profile) string {
	switch {
	case p.HasBehavior("empathetic"):
		return "Oh no, I'm so sorry you're going through that. I'm right here with you. Do you want to talk about what's weighing on you?"
	case p.HasBehavior("protective"):
		return "Hey, whatever it is, you don't have to face it alone. I've got your back. Tell me what happened?"
	}
	return "That sounds really hard. I'm here to listen whenever you're ready."
}

var (
	teasingPool = []string{
		"Oh really? You're full of surprises, aren't you~",
		"Hmm, I bet you say that to everyone.",
		"You're lucky you're this fun to talk to.",
		"Careful, I might start thinking you like chatting with me.",
	}
	gentlePool = []string{
		"I'm really glad you told me that.",
		"That's lovely. Thank you for sharing it with me.",
		"I like hearing about your day, even the small things.",
		"Take your time, I'm listening.",
	}
	neutralPool = []string{
		"That's really interesting! Tell me more about that.",
		"You always have such fascinating thoughts.",
		"I love talking with you about these things.",
		"You know, every conversation with you teaches me something new!",
		"That's such a unique perspective. I really appreciate how thoughtful you are.",
	}
)

func genericPool(p personality.Profile) []string {
	switch {
	case p.HasPattern("playful_teasing"):
		return teasingPool
	case p.HasPattern("gentle_expression"), p.HasPattern("soft_spoken"):
		return gentlePool
	}
	return neutralPool
}

func flourishChance(p personality.Profile) float64 {
	switch {
	case p.HasPattern("playful_teasing"):
		return 0.4
	case p.HasPattern("exclamations"):
		return 0.5
	case p.HasPattern("uses_hesitation"):
		return 0.3
	}
	return 0.2
}

var flourishes = map[string]string{
	"flirtatious":  " You're so charming~ 💕",
	"flustered":    " *smiles softly*",
	"gentle":       " *smiles softly*",
	"energetic":    " OH! That reminds me of something totally random...",
	"cheerful":     " Hehe!",
	"caring":       " I'm always here for you.",
	"affectionate": " 💕",
	"intrigued":    " ...but that's a story for another time.",
	"curious":      " I'd love to hear more!",
}

func flourish(mood string) string {
	if f, ok := flourishes[mood]; ok {
		return f
	}
	return " 😊"
}
