package notifications

import (
	"fmt"
	"net/url"
	"strings"
)

// TemplateData carries the optional context used to fill a template. Every
// field may be left empty; templates fall back to generic phrasing.
type TemplateData struct {
	UserName        string `json:"userName,omitempty"`
	SenderID        string `json:"senderId,omitempty"`
	SenderName      string `json:"senderName,omitempty"`
	MessageCount    int    `json:"messageCount,omitempty"`
	CourseName      string `json:"courseName,omitempty"`
	Progress        *int   `json:"progress,omitempty"`
	AchievementName string `json:"achievementName,omitempty"`
	DaysInactive    int    `json:"daysInactive,omitempty"`
	LessonID        string `json:"lessonId,omitempty"`
	LessonName      string `json:"lessonName,omitempty"`
	Deadline        string `json:"deadline,omitempty"`
	Score           *int   `json:"score,omitempty"`
	// URL overrides the template's deep link.
	URL string `json:"url,omitempty"`
}

// Generate renders the template for kind. It has no side effects and always
// returns a payload with a non-empty title and body; unknown kinds get a
// generic payload.
func Generate(kind Kind, data TemplateData) Payload {
	var p Payload
	switch kind {
	case KindMessage:
		p = messageTemplate(data)
	case KindProgress:
		p = progressTemplate(data)
	case KindAchievement:
		p = achievementTemplate(data)
	case KindReminder:
		p = reminderTemplate(data)
	case KindDeadline:
		p = deadlineTemplate(data)
	case KindQuizResult:
		p = quizTemplate(data)
	case KindDigest:
		p = digestTemplate(data)
	default:
		p = Payload{
			Title: "STEAMS",
			Body:  "You have a new notification.",
			Icon:  "/icons/icon-192.png",
			Data:  map[string]any{"url": "/", "type": "generic"},
		}
	}
	if data.URL != "" {
		p.Data["url"] = data.URL
	}
	return p
}

func messageTemplate(d TemplateData) Payload {
	body := or(d.SenderName, "Someone") + " sent you a message"
	if d.MessageCount > 1 {
		body += fmt.Sprintf(" (+%d more)", d.MessageCount-1)
	}
	data := baseData(KindMessage, "/messages")
	if d.SenderID != "" {
		data["senderId"] = d.SenderID
	}
	return Payload{
		Title: "New Message",
		Body:  body,
		Icon:  icon(KindMessage),
		Badge: badge(KindMessage),
		Tag:   "message",
		Data:  data,
		Actions: []Action{
			{Action: "reply", Title: "Reply", Icon: "/icons/reply.png"},
			{Action: "dismiss", Title: "Dismiss", Icon: "/icons/dismiss.png"},
		},
	}
}

func progressTemplate(d TemplateData) Payload {
	course := or(d.CourseName, "your course")
	body := fmt.Sprintf("You're making progress in %s! Keep up the great work!", course)
	if d.Progress != nil {
		body = fmt.Sprintf("You've completed %d%% of %s! Keep up the great work!", *d.Progress, course)
	}
	data := baseData(KindProgress, "/progress")
	if d.CourseName != "" {
		data["courseId"] = d.CourseName
	}
	return Payload{
		Title: "Learning Progress Update",
		Body:  body,
		Icon:  icon(KindProgress),
		Badge: badge(KindProgress),
		Data:  data,
		Actions: []Action{
			{Action: "viewProgress", Title: "View Progress", Icon: "/icons/view.png"},
		},
	}
}

func achievementTemplate(d TemplateData) Payload {
	body := "Congratulations! You've earned a new badge."
	data := baseData(KindAchievement, "/achievements")
	if d.AchievementName != "" {
		body = fmt.Sprintf("Congratulations! You've earned the %q badge.", d.AchievementName)
		data["achievementId"] = d.AchievementName
	}
	return Payload{
		Title: "Achievement Unlocked! 🏆",
		Body:  body,
		Icon:  icon(KindAchievement),
		Badge: badge(KindAchievement),
		Data:  data,
		Actions: []Action{
			{Action: "share", Title: "Share", Icon: "/icons/share.png"},
			{Action: "viewAll", Title: "View All", Icon: "/icons/view.png"},
		},
	}
}

func reminderTemplate(d TemplateData) Payload {
	body := "Time for your daily learning session!"
	if d.DaysInactive > 1 {
		body = fmt.Sprintf("It's been %d days since your last lesson. Ready to continue learning?", d.DaysInactive)
	}
	return Payload{
		Title: "Learning Reminder",
		Body:  body,
		Icon:  icon(KindReminder),
		Badge: badge(KindReminder),
		Data:  baseData(KindReminder, "/learn"),
		Actions: []Action{
			{Action: "startLesson", Title: "Start Lesson", Icon: "/icons/play.png"},
			{Action: "snooze", Title: "Remind Later", Icon: "/icons/snooze.png"},
		},
	}
}

func deadlineTemplate(d TemplateData) Payload {
	lesson := or(d.LessonName, "your lesson")
	body := fmt.Sprintf("The deadline for %s is coming up. Don't forget to complete it!", lesson)
	if d.Deadline != "" {
		body = fmt.Sprintf("The deadline for %s is %s. Don't forget to complete it!", lesson, d.Deadline)
	}
	data := baseData(KindDeadline, lessonPath(d, ""))
	if id := lessonKey(d); id != "" {
		data["lessonId"] = id
	}
	return Payload{
		Title: "Deadline Approaching",
		Body:  body,
		Icon:  icon(KindDeadline),
		Badge: badge(KindDeadline),
		Data:  data,
		Actions: []Action{
			{Action: "startLesson", Title: "Start Now", Icon: "/icons/play.png"},
			{Action: "dismiss", Title: "Dismiss", Icon: "/icons/dismiss.png"},
		},
	}
}

func quizTemplate(d TemplateData) Payload {
	lesson := or(d.LessonName, "your quiz")
	var body string
	switch {
	case d.Score == nil:
		body = fmt.Sprintf("Your results for %s are ready.", lesson)
	case *d.Score >= 80:
		body = fmt.Sprintf("You scored %d%% on %s! Great job! 🎉", *d.Score, lesson)
	default:
		body = fmt.Sprintf("You scored %d%% on %s! Keep practicing to improve!", *d.Score, lesson)
	}
	data := baseData(KindQuizResult, lessonPath(d, "/results"))
	if id := lessonKey(d); id != "" {
		data["lessonId"] = id
	}
	return Payload{
		Title: "Quiz Results",
		Body:  body,
		Icon:  "/icons/quiz.png",
		Badge: "/icons/badge-quiz.png",
		Data:  data,
		Actions: []Action{
			{Action: "viewDetails", Title: "View Details", Icon: "/icons/view.png"},
			{Action: "retry", Title: "Try Again", Icon: "/icons/retry.png"},
		},
	}
}

func digestTemplate(d TemplateData) Payload {
	greeting := "Hi there!"
	if d.UserName != "" {
		greeting = fmt.Sprintf("Hi %s!", d.UserName)
	}
	body := greeting + " Check out your learning progress this week."
	data := baseData(KindDigest, "/progress/weekly")
	switch {
	case d.MessageCount == 1:
		body = greeting + " You have 1 unread message. Check out your learning progress this week."
	case d.MessageCount > 1:
		body = fmt.Sprintf("%s You have %d unread messages. Check out your learning progress this week.", greeting, d.MessageCount)
	}
	if d.MessageCount > 0 {
		data["unreadCount"] = d.MessageCount
	}
	return Payload{
		Title: "Weekly Learning Summary",
		Body:  body,
		Icon:  icon(KindDigest),
		Badge: badge(KindDigest),
		Data:  data,
		Actions: []Action{
			{Action: "viewSummary", Title: "View Summary", Icon: "/icons/view.png"},
		},
	}
}

func baseData(kind Kind, link string) map[string]any {
	return map[string]any{"url": link, "type": string(kind)}
}

func icon(kind Kind) string  { return "/icons/" + string(kind) + ".png" }
func badge(kind Kind) string { return "/icons/badge-" + string(kind) + ".png" }

func lessonKey(d TemplateData) string {
	if d.LessonID != "" {
		return d.LessonID
	}
	return d.LessonName
}

// lessonPath links to the lesson page, or to the lesson list when no lesson is known.
func lessonPath(d TemplateData, suffix string) string {
	key := lessonKey(d)
	if key == "" {
		return "/learn"
	}
	return "/lesson/" + url.PathEscape(key) + suffix
}

func or(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
