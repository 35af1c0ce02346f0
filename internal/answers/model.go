package answers

import "time"

// Answer models a posted answer. Author is a snapshot of the answerer's
// username at creation time. Votes is a denormalized counter mutated only by
// the vote ledger; IsAccepted only by the acceptance workflow, which keeps at
// most one accepted answer per question.
type Answer struct {
	ID         string    `gorm:"column:id;primaryKey;size:36;not null"`
	QuestionID string    `gorm:"column:question_id;size:36;not null;index:idx_answers_question"`
	Content    string    `gorm:"column:content;type:text;not null"`
	AuthorID   string    `gorm:"column:author_id;size:36;not null;index:idx_answers_author"`
	Author     string    `gorm:"column:author;size:30;not null"`
	Votes      int64     `gorm:"column:votes;not null;default:0"`
	IsAccepted bool      `gorm:"column:is_accepted;not null;default:false"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime;index:idx_answers_created"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Answer) TableName() string {
	return "answers"
}
