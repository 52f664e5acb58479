package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestBaseModelBeforeCreateGeneratesID(t *testing.T) {
	var base BaseModel
	require.NoError(t, base.BeforeCreate(nil))
	require.NotEmpty(t, base.ID)

	keep := BaseModel{ID: "fixed"}
	require.NoError(t, keep.BeforeCreate(nil))
	require.Equal(t, "fixed", keep.ID)
}

func TestEmbeddedModelsUseBaseBeforeCreate(t *testing.T) {
	cases := []struct {
		name  string
		model func() *BaseModel
	}{
		{"user", func() *BaseModel { return &(&User{}).BaseModel }},
		{"message", func() *BaseModel { return &(&Message{}).BaseModel }},
		{"lesson", func() *BaseModel { return &(&Lesson{}).BaseModel }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			model := tc.model()
			require.NoError(t, model.BeforeCreate(nil))
			require.NotEmpty(t, model.ID)
		})
	}
}

func TestMessageInvolves(t *testing.T) {
	msg := &Message{SenderID: "a", ReceiverID: "b"}
	require.True(t, msg.Involves("a"))
	require.True(t, msg.Involves("b"))
	require.False(t, msg.Involves("c"))
	require.False(t, msg.Involves(""))
}

func TestUserAsParticipant(t *testing.T) {
	var nilUser *User
	require.Nil(t, nilUser.AsParticipant())

	u := &User{BaseModel: BaseModel{ID: "u1"}, Name: "Ada", Email: "ada@example.com"}
	require.Equal(t, &Participant{ID: "u1", Name: "Ada", Email: "ada@example.com"}, u.AsParticipant())
}

func TestLessonContentDecodesVariantByTag(t *testing.T) {
	var content LessonContent
	require.NoError(t, json.Unmarshal([]byte(`{"type":"video","url":"https://cdn.example/v.mp4","durationSeconds":90}`), &content))
	require.Equal(t, ContentVideo, content.Kind)
	require.NotNil(t, content.Video)
	require.Nil(t, content.Exercise)
	require.Equal(t, 90, content.Video.DurationSeconds)

	require.NoError(t, json.Unmarshal([]byte(`{"type":"exercise","questions":[{"prompt":"2+2?","options":["3","4"],"answer":"4"}]}`), &content))
	require.Equal(t, ContentExercise, content.Kind)
	require.Nil(t, content.Video)
	require.Len(t, content.Exercise.Questions, 1)
}

func TestLessonContentRejectsUnknownTag(t *testing.T) {
	var content LessonContent
	err := json.Unmarshal([]byte(`{"type":"podcast"}`), &content)
	require.True(t, errors.Is(err, ErrUnknownContentKind))

	_, err = json.Marshal(LessonContent{})
	require.Error(t, err)
}

func TestLessonContentMarshalFlattensVariant(t *testing.T) {
	content := LessonContent{
		Kind:        ContentInteractive,
		Interactive: &InteractiveContent{Activity: "memory-game", Settings: map[string]any{"pairs": 6}},
	}
	raw, err := json.Marshal(content)
	require.NoError(t, err)

	var flat map[string]any
	require.NoError(t, json.Unmarshal(raw, &flat))
	require.Equal(t, "interactive", flat["type"])
	require.Equal(t, "memory-game", flat["activity"])

	lesson := Lesson{Content: datatypes.NewJSONType(content)}
	require.Equal(t, ContentInteractive, lesson.Kind())
}
