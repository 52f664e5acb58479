package models

import (
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"
)

// ContentKind enumerates the lesson content variants accepted at the boundary.
type ContentKind string

const (
	ContentVideo       ContentKind = "video"
	ContentInteractive ContentKind = "interactive"
	ContentExercise    ContentKind = "exercise"
)

// ErrUnknownContentKind is returned when a lesson payload carries an unsupported type tag.
var ErrUnknownContentKind = errors.New("lesson content: unknown kind")

// VideoContent is a recorded lesson.
type VideoContent struct {
	URL             string `json:"url"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
	CaptionsURL     string `json:"captionsUrl,omitempty"`
}

// InteractiveContent is one of the hands-on activities (drag-and-drop, matching
// pairs, memory game, sorting, drawing, timed quiz). Settings stay opaque to the core.
type InteractiveContent struct {
	Activity string         `json:"activity"`
	Settings map[string]any `json:"settings,omitempty"`
}

// ExerciseQuestion is a single graded question.
type ExerciseQuestion struct {
	Prompt  string   `json:"prompt"`
	Options []string `json:"options,omitempty"`
	Answer  string   `json:"answer,omitempty"`
}

// ExerciseContent is a graded question set.
type ExerciseContent struct {
	Questions []ExerciseQuestion `json:"questions"`
}

// LessonContent is a tagged union: exactly one variant is set and Kind names it.
// On the wire the variant fields are flattened next to a "type" tag.
type LessonContent struct {
	Kind        ContentKind
	Video       *VideoContent
	Interactive *InteractiveContent
	Exercise    *ExerciseContent
}

// MarshalJSON flattens the active variant and adds the "type" tag.
func (c LessonContent) MarshalJSON() ([]byte, error) {
	var variant any
	switch c.Kind {
	case ContentVideo:
		variant = c.Video
	case ContentInteractive:
		variant = c.Interactive
	case ContentExercise:
		variant = c.Exercise
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownContentKind, c.Kind)
	}

	fields := map[string]any{}
	if variant != nil {
		raw, err := json.Marshal(variant)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
	}
	fields["type"] = c.Kind
	return json.Marshal(fields)
}

// UnmarshalJSON decodes the variant selected by the "type" tag.
func (c *LessonContent) UnmarshalJSON(data []byte) error {
	var tag struct {
		Type ContentKind `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return err
	}

	out := LessonContent{Kind: tag.Type}
	switch tag.Type {
	case ContentVideo:
		out.Video = &VideoContent{}
		if err := json.Unmarshal(data, out.Video); err != nil {
			return err
		}
	case ContentInteractive:
		out.Interactive = &InteractiveContent{}
		if err := json.Unmarshal(data, out.Interactive); err != nil {
			return err
		}
	case ContentExercise:
		out.Exercise = &ExerciseContent{}
		if err := json.Unmarshal(data, out.Exercise); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownContentKind, tag.Type)
	}

	*c = out
	return nil
}

// Lesson is a read-only view of a lesson record. Lesson authoring lives outside
// the delivery core; the progress endpoint only resolves titles and kinds.
type Lesson struct {
	BaseModel

	Title        string                            `gorm:"type:varchar(255);not null" json:"title"`
	Description  string                            `gorm:"type:text" json:"description"`
	Duration     int                               `json:"duration"`
	LearningPath string                            `gorm:"type:varchar(255);index" json:"learningPath"`
	Content      datatypes.JSONType[LessonContent] `json:"content"`
}

// Kind returns the content variant of the lesson.
func (l *Lesson) Kind() ContentKind {
	if l == nil {
		return ""
	}
	return l.Content.Data().Kind
}
