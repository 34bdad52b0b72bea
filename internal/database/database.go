package database

import (
	"fmt"
	"time"

	"github.com/classifieds/backend/internal/logger"
	"github.com/classifieds/backend/internal/models"
	"github.com/classifieds/backend/internal/telemetry"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB holds the database connection
var DB *gorm.DB

// Options controls how the connection is opened
type Options struct {
	Debug   bool // log every statement
	Tracing bool // attach the OpenTelemetry GORM plugin
}

// Initialize creates and configures the database connection
func Initialize(databaseURL string, opts Options) error {
	gormLogger := gormlogger.Default.LogMode(gormlogger.Warn)
	if opts.Debug {
		gormLogger = gormlogger.Default.LogMode(gormlogger.Info)
	}

	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if opts.Tracing {
		if err := db.Use(telemetry.GORMTracingPlugin()); err != nil {
			return fmt.Errorf("failed to register tracing plugin: %w", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	DB = db
	logger.Log.Info("Database connected")

	return nil
}

// Migrate runs auto-migration against the global connection
func Migrate() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	return MigrateDB(DB)
}

// MigrateDB migrates the listings schema and creates the feed indexes
func MigrateDB(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Listing{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	logger.Log.Info("Database migrations completed", zap.String("dialect", db.Dialector.Name()))
	return nil
}

// createIndexes creates the indexes the feed queries rely on.
// Partial and expression indexes are only created where the dialect supports them.
func createIndexes(db *gorm.DB) error {
	statements := []string{
		"CREATE INDEX IF NOT EXISTS idx_listings_status_created ON listings (status, created_at DESC, id DESC)",
		"CREATE INDEX IF NOT EXISTS idx_listings_status_price ON listings (status, price, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_listings_status_views ON listings (status, views_count DESC, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_listings_location_country ON listings (LOWER(location_country_code))",
		"CREATE INDEX IF NOT EXISTS idx_listings_country ON listings (LOWER(country))",
		"CREATE INDEX IF NOT EXISTS idx_listings_category_sub ON listings (LOWER(category), LOWER(subcategory))",
		"CREATE INDEX IF NOT EXISTS idx_listings_boosted ON listings (boost_expires_at DESC, id DESC) WHERE is_boosted = true",
	}

	if IsPostgres(db) {
		statements = append(statements,
			"CREATE INDEX IF NOT EXISTS idx_listings_search ON listings USING gin(to_tsvector('simple', "+models.ListingSearchDocument+")) WHERE status = 'active'",
		)
	}

	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// IsPostgres reports whether db talks to PostgreSQL
func IsPostgres(db *gorm.DB) bool {
	return db != nil && db.Dialector.Name() == "postgres"
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
