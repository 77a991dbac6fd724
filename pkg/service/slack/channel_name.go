package slack

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxChannelNameBytes = 80

// NormalizeChannelName normalizes a string to be a valid Slack channel name.
// Slack allows lowercase letters, numbers, hyphens, underscores and non-ASCII
// characters; everything else is dropped and spaces become hyphens.
func NormalizeChannelName(name string) string {
	name = strings.ReplaceAll(name, " ", "-")

	var result strings.Builder
	result.Grow(len(name))

	for _, r := range name {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_':
			result.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			result.WriteRune(unicode.ToLower(r))
		case r > 127 && !isProhibitedSymbol(r):
			result.WriteRune(r)
		}
	}

	return result.String()
}

var prohibitedRunes = map[rune]struct{}{
	'。': {}, '、': {}, '！': {}, '？': {}, '／': {}, '＼': {},
	'．': {}, '，': {}, '＠': {}, '＃': {}, '＄': {}, '％': {},
	'＆': {}, '＊': {}, '（': {}, '）': {}, '「': {}, '」': {},
	'【': {}, '】': {}, '〜': {}, '：': {}, '；': {},
}

// isProhibitedSymbol reports full-width punctuation Slack rejects in channel names
func isProhibitedSymbol(r rune) bool {
	_, ok := prohibitedRunes[r]
	return ok
}

// truncateToMaxBytes cuts s to at most maxBytes bytes without splitting a rune
func truncateToMaxBytes(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// GenerateIncidentChannelName generates the channel name for a case escalation.
// Format: {prefix}-{id}-{normalized-title}, at most 80 bytes.
func GenerateIncidentChannelName(caseID int64, title string, prefix string) string {
	prefix = NormalizeChannelName(prefix)
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}

	channelName := fmt.Sprintf("%s-%d-%s", prefix, caseID, NormalizeChannelName(title))
	channelName = truncateToMaxBytes(channelName, maxChannelNameBytes)

	return strings.TrimRight(channelName, "-")
}
