package services

import (
	"fmt"
	"testing"

	"fishing-competition-system/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a private in-memory database per test. TranslateError is
// on, matching production, so unique violations surface as
// gorm.ErrDuplicatedKey.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Season{},
		&models.SeasonParticipant{},
		&models.SeasonArchive{},
		&models.ParticipationStats{},
		&models.UserProgress{},
		&models.BadgeType{},
		&models.UserBadge{},
		&models.Reward{},
		&models.PlatformUser{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}
