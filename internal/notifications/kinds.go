package notifications

import "strings"

// Kind enumerates the notification templates.
type Kind string

const (
	KindMessage     Kind = "message"
	KindProgress    Kind = "progress"
	KindAchievement Kind = "achievement"
	KindReminder    Kind = "reminder"
	KindDeadline    Kind = "deadline"
	KindQuizResult  Kind = "quiz-result"
	KindDigest      Kind = "digest"
)

// Kinds lists every declared kind.
var Kinds = []Kind{
	KindMessage,
	KindProgress,
	KindAchievement,
	KindReminder,
	KindDeadline,
	KindQuizResult,
	KindDigest,
}

var kindAliases = map[string]Kind{
	"newmessage":     KindMessage,
	"courseprogress": KindProgress,
	"quiz":           KindQuizResult,
	"quizresult":     KindQuizResult,
	"weeklydigest":   KindDigest,
}

// ParseKind resolves a kind name, accepting the camelCase template names used
// by older clients. The boolean is false for unknown names.
func ParseKind(raw string) (Kind, bool) {
	name := strings.ToLower(strings.TrimSpace(raw))
	for _, kind := range Kinds {
		if string(kind) == name {
			return kind, true
		}
	}
	if kind, ok := kindAliases[strings.ReplaceAll(name, "_", "")]; ok {
		return kind, true
	}
	return "", false
}
