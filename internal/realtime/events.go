package realtime

import (
	"encoding/json"
	"strings"
)

// Server -> client event names.
const (
	EventNewMessage     = "newMessage"
	EventMessageRead    = "messageRead"
	EventProgressUpdate = "progressUpdate"
	EventPong           = "pong"
	EventError          = "error"
)

// Client -> server event names.
const (
	ClientJoin  = "join"
	ClientLeave = "leave"
	ClientPing  = "ping"
)

// Event is a JSON frame pushed to every connection of a room.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data,omitempty"`
}

// ClientEvent is an inbound frame sent by a connected client.
type ClientEvent struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// RoomID extracts the target user id of a join or leave frame. Both the bare
// string form ("data":"<id>") and the object form ("data":{"userId":"<id>"})
// are accepted.
func (e ClientEvent) RoomID() string {
	if len(e.Data) == 0 {
		return ""
	}
	var id string
	if err := json.Unmarshal(e.Data, &id); err == nil {
		return strings.TrimSpace(id)
	}
	var obj struct {
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(e.Data, &obj); err == nil {
		return strings.TrimSpace(obj.UserID)
	}
	return ""
}

// ProgressUpdate is the payload of EventProgressUpdate.
type ProgressUpdate struct {
	UserID         string `json:"userId"`
	LessonID       string `json:"lessonId,omitempty"`
	LessonTitle    string `json:"lessonTitle,omitempty"`
	PathName       string `json:"pathName"`
	CompletedCount int    `json:"completedCount"`
	Timestamp      int64  `json:"timestamp"`
}
