package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationRepairAnswerCounts = "2026-08-12_repair_cached_answer_counts"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationRepairAnswerCounts, apply: repairCachedAnswerCounts},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// repairCachedAnswerCounts recomputes the denormalized answer counters from
// the answer records. Databases written before the counters moved into the
// answer-creation transaction can hold drifted values.
func repairCachedAnswerCounts(db *gorm.DB) error {
	err := db.Exec(`UPDATE questions SET answer_count = (
		SELECT COUNT(*) FROM answers WHERE answers.question_id = questions.id
	)`).Error
	if err != nil {
		return err
	}
	return db.Exec(`UPDATE users SET answer_count = (
		SELECT COUNT(*) FROM answers WHERE answers.author_id = users.id
	)`).Error
}
