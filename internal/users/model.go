package users

import "time"

// Role enumerates the access levels a user can hold.
type Role string

const (
	RoleGuest Role = "guest"
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 30
	minPasswordLength = 6
)

// User models a registered forum member. AnswerCount is a cached aggregate
// incremented in the same transaction that creates an answer; the vote ledger
// reads it to enforce the contribution gate.
type User struct {
	ID           string    `gorm:"column:id;primaryKey;size:36;not null"`
	Username     string    `gorm:"column:username;size:30;not null;uniqueIndex:idx_users_username"`
	Email        string    `gorm:"column:email;size:320;not null;uniqueIndex:idx_users_email"`
	PasswordHash string    `gorm:"column:password_hash;size:72;not null"`
	Role         Role      `gorm:"column:role;size:16;not null;default:user"`
	AnswerCount  int64     `gorm:"column:answer_count;not null;default:0"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (User) TableName() string {
	return "users"
}
