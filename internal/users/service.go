package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stackit-hq/stackit/backend/internal/apperr"
	"github.com/stackit-hq/stackit/backend/internal/ids"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const bcryptCost = 12

var noOpLogger = zap.NewNop()

// ServiceConfig describes the dependencies required for user management.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider ids.Provider
	Logger     *zap.Logger
}

// Service persists users and verifies login credentials.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider ids.Provider
	logger     *zap.Logger
}

// NewService constructs the user service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database handle is required")
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("users: id provider is required")
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

// RegisterInput carries the fields supplied at sign-up.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Register creates a new user with a bcrypt-hashed credential.
func (s *Service) Register(ctx context.Context, input RegisterInput) (User, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.ToLower(strings.TrimSpace(input.Email))

	if len(username) < minUsernameLength || len(username) > maxUsernameLength {
		return User{}, apperr.Validation(fmt.Sprintf("username must be between %d and %d characters", minUsernameLength, maxUsernameLength))
	}
	if email == "" || !strings.Contains(email, "@") {
		return User{}, apperr.Validation("a valid email is required")
	}
	if len(input.Password) < minPasswordLength {
		return User{}, apperr.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	var existing User
	err := s.db.WithContext(ctx).
		Where("username = ? OR email = ?", username, email).
		Take(&existing).Error
	if err == nil {
		return User{}, apperr.Conflict("user already exists")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, apperr.Unavailable("could not register user", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcryptCost)
	if err != nil {
		return User{}, apperr.Unavailable("could not register user", err)
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		return User{}, apperr.Unavailable("could not register user", err)
	}

	now := s.clock()
	user := User{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		// A concurrent registration can slip past the pre-check and hit the
		// unique index instead.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return User{}, apperr.Conflict("user already exists")
		}
		return User{}, apperr.Unavailable("could not register user", err)
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("username", user.Username))
	return user, nil
}

// Authenticate verifies an email/password pair and returns the matching user.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" || password == "" {
		return User{}, apperr.Validation("email and password are required")
	}

	var user User
	err := s.db.WithContext(ctx).Where("email = ?", normalized).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, apperr.Forbidden("invalid credentials")
	}
	if err != nil {
		return User{}, apperr.Unavailable("could not authenticate", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return User{}, apperr.Forbidden("invalid credentials")
	}

	return user, nil
}

// GetByID loads a single user.
func (s *Service) GetByID(ctx context.Context, id string) (User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, apperr.NotFound("user not found")
	}
	if err != nil {
		return User{}, apperr.Unavailable("could not load user", err)
	}
	return user, nil
}
