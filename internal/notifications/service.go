package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stackit-hq/stackit/backend/internal/apperr"
	"github.com/stackit-hq/stackit/backend/internal/ids"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultListLimit caps the per-user notification listing.
const DefaultListLimit = 50

var noOpLogger = zap.NewNop()

// ServiceConfig describes the dependencies required by the notification service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider ids.Provider
	Logger     *zap.Logger
}

// Service persists notifications and their read-state transitions.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider ids.Provider
	logger     *zap.Logger
}

// NewService constructs the notification service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("notifications: database handle is required")
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("notifications: id provider is required")
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
		logger:     logger,
	}, nil
}

// CreateInput carries the fields of a new notification.
type CreateInput struct {
	UserID     string
	Type       Type
	Message    string
	QuestionID string
	AnswerID   string
}

// Create records a notification for the recipient.
func (s *Service) Create(ctx context.Context, input CreateInput) (Notification, error) {
	if strings.TrimSpace(input.UserID) == "" {
		return Notification{}, apperr.Validation("recipient is required")
	}
	if !input.Type.Valid() {
		return Notification{}, apperr.Validation("unknown notification type")
	}
	if strings.TrimSpace(input.Message) == "" {
		return Notification{}, apperr.Validation("message is required")
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		return Notification{}, apperr.Unavailable("could not create notification", err)
	}

	notification := Notification{
		ID:        id,
		UserID:    input.UserID,
		Type:      input.Type,
		Message:   input.Message,
		CreatedAt: s.clock(),
	}
	if questionID := strings.TrimSpace(input.QuestionID); questionID != "" {
		notification.QuestionID = &questionID
	}
	if answerID := strings.TrimSpace(input.AnswerID); answerID != "" {
		notification.AnswerID = &answerID
	}

	if err := s.db.WithContext(ctx).Create(&notification).Error; err != nil {
		return Notification{}, apperr.Unavailable("could not create notification", err)
	}
	return notification, nil
}

// ListByUser returns the recipient's notifications, newest first, capped at
// DefaultListLimit.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]Notification, error) {
	var results []Notification
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(DefaultListLimit).
		Find(&results).Error
	if err != nil {
		return nil, apperr.Unavailable("could not list notifications", err)
	}
	return results, nil
}

// MarkRead flips the recipient's notification to read. Marking an already-read
// notification is a no-op, not an error. A notification belonging to another
// user reads as not found rather than forbidden, so IDs cannot be probed.
func (s *Service) MarkRead(ctx context.Context, id, userID string) error {
	result := s.db.WithContext(ctx).Model(&Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if result.Error != nil {
		return apperr.Unavailable("could not mark notification read", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("notification not found")
	}
	return nil
}

// MarkAllRead flips every notification of the user to read. Idempotent.
func (s *Service) MarkAllRead(ctx context.Context, userID string) error {
	err := s.db.WithContext(ctx).Model(&Notification{}).
		Where("user_id = ?", userID).
		Update("is_read", true).Error
	if err != nil {
		return apperr.Unavailable("could not mark notifications read", err)
	}
	return nil
}
