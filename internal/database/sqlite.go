package database

import (
	"fmt"

	"github.com/stackit-hq/stackit/backend/internal/answers"
	"github.com/stackit-hq/stackit/backend/internal/notifications"
	"github.com/stackit-hq/stackit/backend/internal/questions"
	"github.com/stackit-hq/stackit/backend/internal/users"
	"github.com/stackit-hq/stackit/backend/internal/votes"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OpenSQLite establishes a SQLite connection and performs schema migrations.
// TranslateError lets services detect unique-index collisions through
// gorm.ErrDuplicatedKey instead of driver-specific error strings.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&users.User{},
		&questions.Question{},
		&questions.QuestionTag{},
		&answers.Answer{},
		&votes.Vote{},
		&notifications.Notification{},
		&migrationRecord{},
	); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}
