package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/ironworks/storefront-api/config"
	"github.com/ironworks/storefront-api/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	config.NewLogger(cfg)
	slog.Info("starting storefront API server", "env", cfg.GoEnv)

	settings, err := config.LoadSettings(cfg.SettingsPath)
	if err != nil {
		slog.Error("failed to load site settings", "path", cfg.SettingsPath, "error", err)
		os.Exit(1)
	}
	config.SetSettings(settings)

	// Connect to database
	if err := config.ConnectDatabase(cfg); err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	// Auto-migrate database models
	if err := config.Migrate(config.GetDB()); err != nil {
		slog.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}
	slog.Info("database migration completed successfully")

	ctx := context.Background()
	if _, err := services.InitCategoryCache(ctx, cfg.RedisAddr, cfg.CatalogCacheTTL); err != nil {
		slog.Warn("category cache disabled", "error", err)
		services.SetCategoryCache(services.NewCategoryCache(nil, cfg.CatalogCacheTTL))
	}

	if cfg.AWSS3Bucket != "" {
		store, err := services.NewS3Store(ctx, cfg)
		if err != nil {
			slog.Error("failed to initialize S3", "error", err)
			os.Exit(1)
		}
		services.InitImageService(store, cfg.ImageBaseURL, cfg.ImageURLTTL)
	} else {
		slog.Warn("AWS_S3_BUCKET not set, product image uploads are disabled")
	}

	if cfg.AMQPURL != "" {
		notifier, err := services.NewAMQPNotifier(cfg.AMQPURL, cfg.OrderExchange)
		if err != nil {
			slog.Error("failed to connect to message broker", "error", err)
			os.Exit(1)
		}
		defer notifier.Close()
		services.SetOrderNotifier(notifier)
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := setupRouter(cfg)

	addr := ":" + cfg.Port
	slog.Info("server is running", "addr", addr)
	if err := router.Run(addr); err != nil {
		slog.Error("failed to start server", "error", err)
		os.Exit(1)
	}
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Storefront API is running",
	})
}

// databaseStatus checks database connectivity and returns table information
func databaseStatus(c *gin.Context) {
	db := config.GetDB()

	// Get the underlying SQL database to check connection
	sqlDB, err := db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to get database instance",
			},
		})
		return
	}

	// Ping the database to verify connection
	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_CONNECTION_ERROR",
				"message": "Database connection failed",
			},
		})
		return
	}

	tables, err := db.Migrator().GetTables()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_QUERY_ERROR",
				"message": "Failed to query tables",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Database connected",
		"tables":  tables,
	})
}
