package personality

import (
	"strings"
	"unicode"
)

// Keyword families match at the start of a word, so "feel" also catches
// "feeling" and "struggl" catches "struggling" but "hi" never fires on "this".
var toneFamilies = []struct {
	tone     Tone
	keywords []string
}{
	{ToneRomantic, []string{"love", "feel", "heart"}},
	{TonePlayful, []string{"haha", "funny", "joke"}},
	{ToneSupportive, []string{"sad", "worried", "problem"}},
}

var questionWords = []string{"what", "why", "how", "when", "where", "who", "which"}

var topicFamilies = []struct {
	topic    string
	keywords []string
}{
	{TopicEmotional, []string{"sad", "worried", "feel", "upset", "cry", "lonely", "hurt", "anxious", "depress"}},
	{TopicPlayful, []string{"haha", "funny", "joke", "lol", "game", "play"}},
	{TopicEducational, []string{"learn", "study", "teach", "explain", "school", "homework", "understand"}},
	{TopicAspirational, []string{"dream", "goal", "future", "hope", "achieve", "ambition", "career"}},
	{TopicSupportive, []string{"help", "support", "problem", "worried", "advice", "struggl"}},
}

// conversationText is the lowercased message followed by the history.
func conversationText(message string, history []Turn) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(message))
	for _, turn := range history {
		b.WriteByte('\n')
		b.WriteString(strings.ToLower(turn.Content))
	}
	return b.String()
}

// Words splits lowercased text into letter/digit/apostrophe runs.
func Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

// MatchesAny reports whether any word starts with one of the stems.
func MatchesAny(words, stems []string) bool {
	for _, w := range words {
		for _, s := range stems {
			if strings.HasPrefix(w, s) {
				return true
			}
		}
	}
	return false
}

// HasWord reports whether any word equals one of candidates exactly.
func HasWord(words, candidates []string) bool {
	for _, w := range words {
		for _, c := range candidates {
			if w == c {
				return true
			}
		}
	}
	return false
}

// DetectTone picks exactly one tone; the first matching family wins.
func DetectTone(text string) Tone {
	words := Words(text)
	for _, family := range toneFamilies {
		if MatchesAny(words, family.keywords) {
			return family.tone
		}
	}
	if strings.Contains(text, "?") || HasWord(words, questionWords) {
		return ToneCurious
	}
	return ToneNeutral
}

// DetectTopics returns every matching topic in fixed order, or ["casual"].
func DetectTopics(text string) []string {
	words := Words(text)
	var topics []string
	for _, family := range topicFamilies {
		if MatchesAny(words, family.keywords) {
			topics = append(topics, family.topic)
		}
	}
	if len(topics) == 0 {
		return []string{TopicCasual}
	}
	return topics
}
