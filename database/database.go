package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/garagehub/gomicro/config"
)

// DB is the service-wide database handle.
var DB *gorm.DB

// InitDB opens the PostgreSQL connection and applies pool settings.
func InitDB(dbConfig *config.DBConfig) (*gorm.DB, error) {
	pgConfig := postgres.Config{
		DSN:                  dbConfig.GetDSN(),
		PreferSimpleProtocol: true, // Disables implicit prepared statement usage
	}

	db, err := gorm.Open(postgres.New(pgConfig), &gorm.Config{
		Logger: logger.Default.LogMode(dbConfig.LogLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database object: %w", err)
	}

	sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConns)
	sqlDB.SetMaxOpenConns(dbConfig.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(dbConfig.ConnMaxLifetime)

	DB = db
	return db, nil
}

// MigrateModels runs migrations for the provided models
func MigrateModels(db *gorm.DB, models ...interface{}) error {
	if db == nil {
		return fmt.Errorf("database is not initialized")
	}

	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}
