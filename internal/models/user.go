package models

// User types recognised by the platform.
const (
	UserTypeChild    = "child"
	UserTypeParent   = "parent"
	UserTypeEducator = "educator"
)

// User is the identity record owned by the external identity collaborator. The
// delivery core only reads the identifier and display fields.
type User struct {
	BaseModel

	Name  string `gorm:"type:varchar(255)" json:"name"`
	Email string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Type  string `gorm:"type:varchar(16);default:'child'" json:"type"`
}

// Participant is the denormalised display shape attached to live message events.
type Participant struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// AsParticipant projects the user onto its display fields.
func (u *User) AsParticipant() *Participant {
	if u == nil {
		return nil
	}
	return &Participant{ID: u.ID, Name: u.Name, Email: u.Email}
}
