package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/classpulse/classpulse/backend/internal/models"
)

// DB holds the database connection
var DB *gorm.DB

// Initialize creates and configures the database connection. Postgres is
// the default; set DB_DRIVER=sqlite with DB_PATH for local development.
func Initialize() error {
	var dialector gorm.Dialector

	if getEnvOrDefault("DB_DRIVER", "postgres") == "sqlite" {
		dialector = sqlite.Open(getEnvOrDefault("DB_PATH", "classpulse.db"))
	} else {
		databaseURL := os.Getenv("DATABASE_URL")
		if databaseURL == "" {
			// Fallback to individual components
			host := getEnvOrDefault("DB_HOST", "localhost")
			port := getEnvOrDefault("DB_PORT", "5432")
			user := getEnvOrDefault("DB_USER", "postgres")
			password := getEnvOrDefault("DB_PASSWORD", "")
			dbname := getEnvOrDefault("DB_NAME", "classpulse")
			sslmode := getEnvOrDefault("DB_SSLMODE", "disable")

			databaseURL = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
				host, port, user, password, dbname, sslmode)
		}
		dialector = postgres.Open(databaseURL)
	}

	// Configure GORM logger
	gormLogger := logger.Default
	if os.Getenv("ENVIRONMENT") == "development" {
		gormLogger = logger.Default.LogMode(logger.Info)
	}

	// Open database connection
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	DB = db
	log.Println("✅ Database connected successfully")

	return nil
}

// Migrate runs auto-migration for all models
func Migrate() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	// Enable UUID extension for PostgreSQL
	if DB.Dialector.Name() == "postgres" {
		if err := DB.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"").Error; err != nil {
			log.Printf("Warning: Could not create uuid-ossp extension: %v", err)
		}
	}

	// Auto-migrate all models
	err := DB.AutoMigrate(
		&models.Discussion{},
		&models.Reply{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Create indexes for performance
	if err := createIndexes(); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Println("✅ Database migrations completed")
	return nil
}

// createIndexes creates performance indexes
func createIndexes() error {
	// Discussion indexes for the list and reported-queue reads
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_discussions_not_deleted_created ON discussions (created_at DESC) WHERE is_deleted = false")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_discussions_last_activity ON discussions (last_activity DESC) WHERE is_deleted = false")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_discussions_moderation ON discussions (moderation_status)")

	// Reply indexes for tree resolution
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_replies_discussion ON replies (discussion_id)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_replies_parent ON replies (parent_id) WHERE parent_id IS NOT NULL")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_replies_discussion_not_deleted ON replies (discussion_id, created_at) WHERE is_deleted = false")

	return nil
}

// Close closes the database connection
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

// Health checks database connectivity
func Health() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Ping()
}

// getEnvOrDefault returns environment variable or default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
