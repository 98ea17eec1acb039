package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	DatabaseURL        string        `envconfig:"DATABASE_URL"`
	DatabaseDriver     string        `envconfig:"DATABASE_DRIVER"`
	Port               string        `envconfig:"PORT" default:"8080"`
	GoEnv              string        `envconfig:"GO_ENV" default:"development"`
	Auth0Domain        string        `envconfig:"AUTH0_DOMAIN"`
	Auth0Audience      string        `envconfig:"AUTH0_AUDIENCE"`
	AdminScope         string        `envconfig:"AUTH0_ADMIN_SCOPE"`
	AWSRegion          string        `envconfig:"AWS_REGION" default:"us-east-1"`
	AWSS3Bucket        string        `envconfig:"AWS_S3_BUCKET"`
	AWSAccessKeyID     string        `envconfig:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string        `envconfig:"AWS_SECRET_ACCESS_KEY"`
	AWSS3Endpoint      string        `envconfig:"AWS_S3_ENDPOINT"`
	ImageBaseURL       string        `envconfig:"IMAGE_BASE_URL"`
	ImageURLTTL        time.Duration `envconfig:"IMAGE_URL_TTL" default:"1h"`
	RedisAddr          string        `envconfig:"REDIS_ADDR"`
	CatalogCacheTTL    time.Duration `envconfig:"CATALOG_CACHE_TTL" default:"10m"`
	AMQPURL            string        `envconfig:"AMQP_URL"`
	OrderExchange      string        `envconfig:"ORDER_EVENTS_EXCHANGE" default:"storefront.orders"`
	SettingsPath       string        `envconfig:"SETTINGS_PATH" default:"settings.yaml"`
	CORSOrigins        []string      `envconfig:"CORS_ORIGINS" default:"http://localhost:3000"`
	LogLevel           string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat          string        `envconfig:"LOG_FORMAT" default:"text"`
}

var appConfig *Config

// Load loads the configuration from environment variables
// It automatically determines which .env file to load based on GO_ENV
func Load() (*Config, error) {
	// Determine which environment file to load
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}

	// Try to load environment-specific file first
	envFile := fmt.Sprintf(".env.%s", env)
	if err := godotenv.Load(envFile); err != nil {
		// In production environment variables are set directly,
		// so it's okay if .env files don't exist
		if err := godotenv.Load(); err != nil {
			slog.Debug("no .env file found, using system environment variables")
		}
	} else {
		slog.Debug("loaded configuration", "file", envFile)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if cfg.DatabaseDriver == "" {
		cfg.DatabaseDriver = DetectDriver(cfg.DatabaseURL)
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	appConfig = &cfg
	return &cfg, nil
}

// Validate checks that all required configuration values are set
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	switch c.DatabaseDriver {
	case DriverPostgres, DriverMySQL, DriverSQLite:
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	return nil
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// IsTest returns true if the application is running in test mode
func (c *Config) IsTest() bool {
	return c.GoEnv == "test"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// GetDatabaseURL returns the database URL
func (c *Config) GetDatabaseURL() string {
	return c.DatabaseURL
}

// GetConfig returns the configuration loaded by Load
func GetConfig() *Config {
	return appConfig
}

// SetConfig sets the configuration instance (primarily for testing)
func SetConfig(cfg *Config) {
	appConfig = cfg
}

// DetectDriver guesses the gorm dialect from a connection URL
func DetectDriver(databaseURL string) string {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return DriverPostgres
	case strings.HasPrefix(databaseURL, "mysql://"), strings.Contains(databaseURL, "@tcp("):
		return DriverMySQL
	case strings.HasPrefix(databaseURL, "file:"), strings.HasSuffix(databaseURL, ".db"), databaseURL == ":memory:":
		return DriverSQLite
	}
	return DriverPostgres
}
