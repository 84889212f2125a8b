package service

import "strings"

// Mention tokens the assistant understands. Trigger tokens additionally start
// the reply wait; @notes is recorded as a mention but does not wait for a
// reply. Detection and classification are separate predicates on purpose.
var (
	mentionTokens = []string{"@explain", "@help", "@notes"}

	triggerTokens = map[string]bool{
		"@explain": true,
		"@help":    true,
	}
)

// detectMentions returns the recognized mention tokens present in text, in
// canonical token order.
func detectMentions(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, token := range mentionTokens {
		if containsToken(lower, token) {
			found = append(found, token)
		}
	}
	return found
}

// hasBotTrigger reports whether text contains a token that starts the
// bot-reply wait.
func hasBotTrigger(text string) bool {
	lower := strings.ToLower(text)
	for token := range triggerTokens {
		if containsToken(lower, token) {
			return true
		}
	}
	return false
}

// containsToken matches token as a word: preceded by start/space and followed
// by end/space/punctuation, so "@helper" does not count as "@help".
func containsToken(text, token string) bool {
	for idx := 0; ; {
		i := strings.Index(text[idx:], token)
		if i < 0 {
			return false
		}
		i += idx
		startOK := i == 0 || text[i-1] == ' ' || text[i-1] == '\n' || text[i-1] == '\t'
		end := i + len(token)
		endOK := end == len(text) || !isWordByte(text[end])
		if startOK && endOK {
			return true
		}
		idx = i + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
