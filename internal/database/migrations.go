package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/revisionpro/backend/internal/study"
)

const migrationBackfillSubtopicRollups = "2026-08-20_backfill_subtopic_rollups"

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
		{name: migrationBackfillSubtopicRollups, apply: backfillSubtopicRollups},
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

// backfillSubtopicRollups repairs rows imported before the rollup columns
// carried defaults: a missing performance status becomes Not Started and a
// missing revision count becomes zero.
func backfillSubtopicRollups(db *gorm.DB) error {
	if err := db.Model(&study.Subtopic{}).
		Where("performance_status IS NULL OR performance_status = ''").
		Update("performance_status", string(study.PerformanceNotStarted)).Error; err != nil {
		return err
	}
	return db.Model(&study.Subtopic{}).
		Where("revision_count IS NULL").
		Update("revision_count", 0).Error
}
