package votes

import "time"

// VoteType is the direction of a vote.
type VoteType string

const (
	TypeUp   VoteType = "up"
	TypeDown VoteType = "down"
)

// ParseVoteType validates a raw vote type value.
func ParseVoteType(raw string) (VoteType, bool) {
	switch VoteType(raw) {
	case TypeUp:
		return TypeUp, true
	case TypeDown:
		return TypeDown, true
	}
	return "", false
}

// Vote is one user's current vote on one answer. The unique index enforces at
// most one vote per (user, answer) pair; the ledger relies on it to catch
// racing inserts.
type Vote struct {
	ID        string    `gorm:"column:id;primaryKey;size:36;not null"`
	UserID    string    `gorm:"column:user_id;size:36;not null;uniqueIndex:idx_votes_user_answer,priority:1"`
	AnswerID  string    `gorm:"column:answer_id;size:36;not null;uniqueIndex:idx_votes_user_answer,priority:2"`
	Type      VoteType  `gorm:"column:type;size:8;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Vote) TableName() string {
	return "votes"
}
