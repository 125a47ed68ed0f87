package database

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/thrivewithai/thrive-backend/internal/config"
	"github.com/thrivewithai/thrive-backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// GormConfig is the configuration every connection is opened with. Driver
// errors are translated so unique violations surface as gorm.ErrDuplicatedKey.
func GormConfig(level logger.LogLevel) *gorm.Config {
	return &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	}
}

func Connect(cfg *config.Config) error {
	var err error
	DB, err = gorm.Open(postgres.Open(cfg.DSN()), GormConfig(logger.Warn))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	slog.Info("database connected")
	return nil
}

// Migrate runs AutoMigrate for the catalog, auth and log tables. When users
// and feedback live in the document store, includeDocuments is false and their
// tables are skipped.
func Migrate(db *gorm.DB, includeDocuments bool) error {
	tables := []interface{}{
		&models.RefreshToken{},
		&models.Job{},
		&models.Tool{},
		&models.UseCase{},
		&models.GlossaryTerm{},
		&models.SystemLog{},
	}
	if includeDocuments {
		tables = append(tables, &models.User{}, &models.LinkedIdentity{}, &models.Feedback{})
	}
	return db.AutoMigrate(tables...)
}

func Ping() error {
	if DB == nil {
		return fmt.Errorf("database not connected")
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
