package notifications

import "time"

// Type enumerates the notification kinds the forum emits.
type Type string

const (
	TypeAnswer  Type = "answer"
	TypeComment Type = "comment"
	TypeMention Type = "mention"
	TypeVote    Type = "vote"
)

// Valid reports whether the type is one of the known kinds.
func (t Type) Valid() bool {
	switch t {
	case TypeAnswer, TypeComment, TypeMention, TypeVote:
		return true
	}
	return false
}

// Notification is a best-effort side-channel message for a user. Records are
// never deleted in normal operation; only the read flag transitions.
type Notification struct {
	ID         string    `gorm:"column:id;primaryKey;size:36;not null"`
	UserID     string    `gorm:"column:user_id;size:36;not null;index:idx_notifications_user_read,priority:1"`
	Type       Type      `gorm:"column:type;size:16;not null"`
	Message    string    `gorm:"column:message;type:text;not null"`
	QuestionID *string   `gorm:"column:question_id;size:36"`
	AnswerID   *string   `gorm:"column:answer_id;size:36"`
	IsRead     bool      `gorm:"column:is_read;not null;default:false;index:idx_notifications_user_read,priority:2"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Notification) TableName() string {
	return "notifications"
}
