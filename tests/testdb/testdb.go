// Package testdb provides migrated in-memory SQLite databases and fixtures for tests.
package testdb

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/ironworks/storefront-api/config"
	"github.com/ironworks/storefront-api/models"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var counter atomic.Int64

// New returns a fresh, fully migrated in-memory database private to the test.
// It uses a single connection: code under test must run statements inside a
// transaction on the transaction handle, never on the outer one.
func New(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:testdb_%d?mode=memory&cache=shared&_foreign_keys=on", counter.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get database instance: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := config.Migrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

// CreateUser inserts a user with the given role
func CreateUser(t *testing.T, db *gorm.DB, auth0ID, email, role string) *models.User {
	t.Helper()
	user := &models.User{Auth0ID: auth0ID, Name: "Test " + role, Email: email, Role: role}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return user
}

// ProductOption tweaks a product fixture
type ProductOption func(*models.Product)

// Unpublished marks the product as not published
func Unpublished() ProductOption {
	return func(p *models.Product) { p.IsPublished = false }
}

// WithPrice sets the product price
func WithPrice(price string) ProductOption {
	return func(p *models.Product) { p.Price = decimal.RequireFromString(price) }
}

// CreateProduct inserts a published, active product in the category
func CreateProduct(t *testing.T, db *gorm.DB, categoryID uint, slug string, opts ...ProductOption) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:          "Product " + slug,
		Slug:          slug,
		Article:       "ART-" + slug,
		CategoryID:    categoryID,
		Price:         decimal.RequireFromString("10.00"),
		StockQuantity: 100,
		IsPublished:   true,
		IsActive:      true,
	}
	for _, opt := range opts {
		opt(product)
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("Failed to create product: %v", err)
	}
	return product
}
