package provider

import (
	"regexp"
	"strings"
	"unicode/utf8"

	kerrors "kokoro/src/errors"
)

var roleLabel = regexp.MustCompile(`(?i)^\s*(human|user|assistant)\s*:\s*`)

// CleanReply strips echoed transcript labels from loosely structured model
// output. Text after the last "<name>:" label is kept, leading role labels
// are removed, and anything shorter than minLen runes is malformed.
func CleanReply(provider, text, characterName string, minLen int) (string, error) {
	cleaned := strings.TrimSpace(text)

	if name := strings.TrimSpace(characterName); name != "" {
		label := name + ":"
		if idx := strings.LastIndex(cleaned, label); idx >= 0 {
			cleaned = strings.TrimSpace(cleaned[idx+len(label):])
		}
	}

	for {
		stripped := roleLabel.ReplaceAllString(cleaned, "")
		if stripped == cleaned {
			break
		}
		cleaned = strings.TrimSpace(stripped)
	}

	// A model continuing the transcript starts a new "Human:" turn; cut it.
	if idx := indexNextTurn(cleaned); idx > 0 {
		cleaned = strings.TrimSpace(cleaned[:idx])
	}

	if minLen <= 0 {
		minLen = DefaultMinLength
	}
	if utf8.RuneCountInString(cleaned) < minLen {
		return "", kerrors.NewProviderError(provider, "generate", kerrors.ErrMalformedOutput,
			"generated response too short (%d chars)", utf8.RuneCountInString(cleaned))
	}
	return cleaned, nil
}

var nextTurn = regexp.MustCompile(`(?i)\n\s*(human|user)\s*:`)

func indexNextTurn(s string) int {
	loc := nextTurn.FindStringIndex(s)
	if loc == nil {
		return -1
	}
	return loc[0]
}
