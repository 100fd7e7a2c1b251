package session

import "strings"

// endPhrases end a conversation when sent by the hub. Matching is a
// case-insensitive substring test, not tokenized.
var endPhrases = []string{
	"bye",
	"see ya",
	"see you",
	"see you later",
	"seeya",
	"over and out",
	"goodbye",
	"later",
	"gtg",
	"gotta go",
	"talk later",
	"thanks, bye",
	"thanks bye",
}

// IsEndPhrase reports whether message contains a conversation-ending phrase.
func IsEndPhrase(message string) bool {
	lower := strings.ToLower(message)
	for _, p := range endPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
