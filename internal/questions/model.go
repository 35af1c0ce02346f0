package questions

import "time"

const maxTitleLength = 150

// Question models a posted question. Author is a snapshot of the asker's
// username at creation time, not a live reference; renaming a user does not
// rewrite past posts. AnswerCount is a cached aggregate maintained by answer
// creation.
type Question struct {
	ID               string    `gorm:"column:id;primaryKey;size:36;not null"`
	Title            string    `gorm:"column:title;size:150;not null"`
	Description      string    `gorm:"column:description;type:text;not null"`
	AuthorID         string    `gorm:"column:author_id;size:36;not null;index:idx_questions_author"`
	Author           string    `gorm:"column:author;size:30;not null"`
	AcceptedAnswerID *string   `gorm:"column:accepted_answer_id;size:36"`
	AnswerCount      int64     `gorm:"column:answer_count;not null;default:0"`
	Votes            int64     `gorm:"column:votes;not null;default:0"`
	Views            int64     `gorm:"column:views;not null;default:0"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime;index:idx_questions_created"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`

	// Tags is populated from the question_tags table by the service.
	Tags []string `gorm:"-"`
}

// TableName provides the explicit table binding for GORM.
func (Question) TableName() string {
	return "questions"
}

// QuestionTag is one row of the normalized tag set attached to a question.
type QuestionTag struct {
	QuestionID string `gorm:"column:question_id;primaryKey;size:36;not null"`
	Tag        string `gorm:"column:tag;primaryKey;size:64;not null;index:idx_question_tags_tag"`
}

// TableName provides the explicit table binding for GORM.
func (QuestionTag) TableName() string {
	return "question_tags"
}
