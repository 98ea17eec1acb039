package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ironworks/storefront-api/models"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Supported database drivers
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

var DB *gorm.DB

// ConnectDatabase opens the database named by the loaded configuration
func ConnectDatabase(cfg *Config) error {
	db, err := OpenDatabase(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	DB = db

	slog.Info("database connection established", "driver", cfg.DatabaseDriver)
	return nil
}

// OpenDatabase opens a gorm handle for the given driver.
// Unique-constraint failures are translated to gorm.ErrDuplicatedKey.
func OpenDatabase(driver, databaseURL string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres:
		dialector = postgres.Open(databaseURL)
	case DriverMySQL:
		dialector = mysql.Open(strings.TrimPrefix(databaseURL, "mysql://"))
	case DriverSQLite:
		dialector = sqlite.Open(databaseURL)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver != DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database instance: %w", err)
		}
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
	}
	return db, nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

// SetDB sets the database instance (primarily for testing)
func SetDB(db *gorm.DB) {
	DB = db
}

// singleFlag is a rule allowing at most one flagged row per owner,
// e.g. one default delivery address per user
type singleFlag struct {
	table  string
	flag   string
	owner  string
	column string // generated column standing in for the partial index on mysql
	index  string
}

var singleFlags = []singleFlag{
	{table: "delivery_addresses", flag: "is_default", owner: "user_id", column: "default_owner", index: "uniq_delivery_addresses_default"},
	{table: "product_images", flag: "is_main", owner: "product_id", column: "main_owner", index: "uniq_product_images_main"},
}

func (f singleFlag) partialIndexSQL() string {
	return fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s) WHERE %s", f.index, f.table, f.owner, f.flag)
}

// generatedColumnSQL adds a column holding the owner only on flagged rows.
// MySQL has no partial indexes, but a unique index ignores NULLs.
func (f singleFlag) generatedColumnSQL() string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s BIGINT UNSIGNED AS (IF(%s, %s, NULL)) VIRTUAL",
		f.table, f.column, f.flag, f.owner)
}

func (f singleFlag) generatedIndexSQL() string {
	return fmt.Sprintf("CREATE UNIQUE INDEX %s ON %s (%s)", f.index, f.table, f.column)
}

// Migrate creates or updates the schema for every model and the single-flag unique indexes
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	for _, f := range singleFlags {
		if err := migrateSingleFlag(db, f); err != nil {
			return fmt.Errorf("failed to create unique index %s: %w", f.index, err)
		}
	}
	return nil
}

func migrateSingleFlag(db *gorm.DB, f singleFlag) error {
	if db.Dialector.Name() != DriverMySQL {
		return db.Exec(f.partialIndexSQL()).Error
	}

	// mysql has neither ADD COLUMN IF NOT EXISTS nor CREATE INDEX IF NOT EXISTS
	if !db.Migrator().HasColumn(f.table, f.column) {
		if err := db.Exec(f.generatedColumnSQL()).Error; err != nil {
			return err
		}
	}
	if !db.Migrator().HasIndex(f.table, f.index) {
		return db.Exec(f.generatedIndexSQL()).Error
	}
	return nil
}
