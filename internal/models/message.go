package models

// Message is a direct message between two users. Content is append-only; only
// the Read flag is mutated after creation, and only by the receiver.
type Message struct {
	BaseModel

	SenderID   string `gorm:"type:char(36);not null;index:idx_messages_pair,priority:1" json:"senderId"`
	ReceiverID string `gorm:"type:char(36);not null;index:idx_messages_pair,priority:2" json:"receiverId"`
	Content    string `gorm:"type:text;not null" json:"content"`
	Read       bool   `gorm:"default:false" json:"read"`

	Sender   *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Receiver *User `gorm:"foreignKey:ReceiverID" json:"receiver,omitempty"`
}

// Involves reports whether userID is one of the two participants.
func (m *Message) Involves(userID string) bool {
	return m != nil && userID != "" && (m.SenderID == userID || m.ReceiverID == userID)
}
