package answers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stackit-hq/stackit/backend/internal/apperr"
	"github.com/stackit-hq/stackit/backend/internal/auth"
	"github.com/stackit-hq/stackit/backend/internal/ids"
	"github.com/stackit-hq/stackit/backend/internal/notifications"
	"github.com/stackit-hq/stackit/backend/internal/questions"
	"github.com/stackit-hq/stackit/backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var noOpLogger = zap.NewNop()

// Notifier delivers the best-effort answer notification. Failures are logged
// by the caller and never propagated.
type Notifier interface {
	Create(ctx context.Context, input notifications.CreateInput) (notifications.Notification, error)
}

// ServiceConfig describes the dependencies required by the answer service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider ids.Provider
	Notifier   Notifier
	Logger     *zap.Logger
}

// Service persists answers, maintains the cached answer counters, and runs the
// acceptance workflow.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider ids.Provider
	notifier   Notifier
	logger     *zap.Logger
}

// NewService constructs the answer service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("answers: database handle is required")
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("answers: id provider is required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		notifier:   cfg.Notifier,
		logger:     logger,
	}, nil
}

// CreateInput carries the fields supplied when posting an answer.
type CreateInput struct {
	QuestionID string
	Content    string
}

// Create inserts the answer and increments the question's and the author's
// cached answer counts inside one transaction. After commit, the question's
// author is notified unless they answered their own question; a fan-out
// failure is logged but never fails the creation.
func (s *Service) Create(ctx context.Context, input CreateInput, author auth.Principal) (Answer, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return Answer{}, apperr.Validation("content is required")
	}
	if strings.TrimSpace(input.QuestionID) == "" {
		return Answer{}, apperr.Validation("question id is required")
	}
	if strings.TrimSpace(author.UserID) == "" {
		return Answer{}, apperr.Validation("author is required")
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		return Answer{}, apperr.Unavailable("could not create answer", err)
	}

	now := s.clock()
	answer := Answer{
		ID:         id,
		QuestionID: input.QuestionID,
		Content:    content,
		AuthorID:   author.UserID,
		Author:     author.Username,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	var question questions.Question
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", input.QuestionID).
			Take(&question).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("question not found")
		}
		if err != nil {
			return apperr.Unavailable("could not create answer", err)
		}

		if err := tx.Create(&answer).Error; err != nil {
			return apperr.Unavailable("could not create answer", err)
		}

		err = tx.Model(&questions.Question{}).
			Where("id = ?", input.QuestionID).
			UpdateColumn("answer_count", gorm.Expr("answer_count + 1")).Error
		if err != nil {
			return apperr.Unavailable("could not create answer", err)
		}

		err = tx.Model(&users.User{}).
			Where("id = ?", author.UserID).
			UpdateColumn("answer_count", gorm.Expr("answer_count + 1")).Error
		if err != nil {
			return apperr.Unavailable("could not create answer", err)
		}
		return nil
	})
	if txErr != nil {
		return Answer{}, txErr
	}

	s.notifyQuestionAuthor(ctx, question, answer, author)

	return answer, nil
}

func (s *Service) notifyQuestionAuthor(ctx context.Context, question questions.Question, answer Answer, author auth.Principal) {
	if s.notifier == nil || question.AuthorID == author.UserID {
		return
	}

	_, err := s.notifier.Create(ctx, notifications.CreateInput{
		UserID:     question.AuthorID,
		Type:       notifications.TypeAnswer,
		Message:    fmt.Sprintf("%s answered your question: %q", author.Username, question.Title),
		QuestionID: question.ID,
		AnswerID:   answer.ID,
	})
	if err != nil {
		s.logger.Warn("answer notification fan-out failed",
			zap.String("question_id", question.ID),
			zap.String("answer_id", answer.ID),
			zap.Error(err))
	}
}

// ListByQuestion returns a question's answers, newest first.
func (s *Service) ListByQuestion(ctx context.Context, questionID string) ([]Answer, error) {
	var results []Answer
	err := s.db.WithContext(ctx).
		Where("question_id = ?", questionID).
		Order("created_at DESC").
		Find(&results).Error
	if err != nil {
		return nil, apperr.Unavailable("could not list answers", err)
	}
	return results, nil
}

// GetByID loads a single answer.
func (s *Service) GetByID(ctx context.Context, id string) (Answer, error) {
	var answer Answer
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&answer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Answer{}, apperr.NotFound("answer not found")
	}
	if err != nil {
		return Answer{}, apperr.Unavailable("could not load answer", err)
	}
	return answer, nil
}

// Accept marks the answer as the question's chosen solution. Only the
// question's author may accept; accepting a different answer later supersedes
// the previous acceptance. The clear-set-point steps run as one transaction so
// the single-accepted-answer invariant holds under concurrent accepts.
func (s *Service) Accept(ctx context.Context, questionID, answerID, requesterID string) error {
	now := s.clock()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var answer Answer
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", answerID).
			Take(&answer).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("answer not found")
		}
		if err != nil {
			return apperr.Unavailable("could not accept answer", err)
		}
		if answer.QuestionID != questionID {
			return apperr.NotFound("answer does not belong to this question")
		}

		var question questions.Question
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", questionID).
			Take(&question).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("question not found")
		}
		if err != nil {
			return apperr.Unavailable("could not accept answer", err)
		}

		if question.AuthorID != requesterID {
			return apperr.Forbidden("only the question owner can accept answers")
		}

		err = tx.Model(&Answer{}).
			Where("question_id = ?", questionID).
			UpdateColumn("is_accepted", false).Error
		if err != nil {
			return apperr.Unavailable("could not accept answer", err)
		}

		err = tx.Model(&Answer{}).
			Where("id = ?", answerID).
			UpdateColumns(map[string]interface{}{"is_accepted": true, "updated_at": now}).Error
		if err != nil {
			return apperr.Unavailable("could not accept answer", err)
		}

		err = tx.Model(&questions.Question{}).
			Where("id = ?", questionID).
			UpdateColumns(map[string]interface{}{"accepted_answer_id": answerID, "updated_at": now}).Error
		if err != nil {
			return apperr.Unavailable("could not accept answer", err)
		}
		return nil
	})
}
