package service

import (
	"strings"
)

// Phrases in the assistant's reply that indicate it is steering the user
// toward a human
var replyHandoffPhrases = []string{
	"ตัวแทน",
	"เจ้าหน้าที่",
	"ติดต่อทีมงาน",
	"our agent",
	"a human agent",
	"contact our team",
	"speak with an agent",
}

// Phrases in the user's message that explicitly ask for a person
var userHandoffPhrases = []string{
	"ขอคุยกับคน",
	"อยากคุยกับคน",
	"ติดต่อตัวแทน",
	"ขอเบอร์ตัวแทน",
	"คุยกับเจ้าหน้าที่",
	"talk to a person",
	"talk to a human",
	"real person",
	"speak to someone",
	"speak to an agent",
	"talk to an agent",
}

// KeywordHandoffPredicate is the default suggest-agent heuristic: true when
// the reply contains a handoff-indicating phrase, the user explicitly asked
// for a person, or ranking came up empty for emptyStreakThreshold consecutive
// turns. Substring matching is known to produce false positives and negatives;
// it is kept as the documented behavior, and replacing it with an extractor
// confidence score is the intended follow-up (see DESIGN.md).
func KeywordHandoffPredicate(emptyStreakThreshold int) HandoffPredicate {
	if emptyStreakThreshold <= 0 {
		emptyStreakThreshold = 2
	}
	return func(userText, replyText string, emptyMatchTurns int) bool {
		if containsAny(replyText, replyHandoffPhrases) {
			return true
		}
		if containsAny(userText, userHandoffPhrases) {
			return true
		}
		return emptyMatchTurns >= emptyStreakThreshold
	}
}

func containsAny(text string, phrases []string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range phrases {
		if strings.Contains(lower, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}
