package services

import (
	"context"
	"fmt"

	"github.com/ironworks/storefront-api/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WishlistService manages products saved by users
type WishlistService struct {
	db *gorm.DB
}

// NewWishlistService creates a wishlist service
func NewWishlistService(db *gorm.DB) *WishlistService {
	return &WishlistService{db: db}
}

// Add saves a visible product; adding it again changes nothing
func (s *WishlistService) Add(ctx context.Context, userID, productID uint) error {
	db := s.db.WithContext(ctx)
	var product models.Product
	if err := db.Scopes(visibleProducts).First(&product, productID).Error; err != nil {
		return notFound(err, "product")
	}

	item := models.WishlistItem{UserID: userID, ProductID: productID}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&item).Error; err != nil {
		return fmt.Errorf("failed to add to wishlist: %w", err)
	}
	return nil
}

// Remove deletes the product from the wishlist; absent products are ignored
func (s *WishlistService) Remove(ctx context.Context, userID, productID uint) error {
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&models.WishlistItem{}).Error; err != nil {
		return fmt.Errorf("failed to remove from wishlist: %w", err)
	}
	return nil
}

// List returns the saved products, newest first
func (s *WishlistService) List(ctx context.Context, userID uint) ([]models.WishlistItem, error) {
	var items []models.WishlistItem
	if err := s.db.WithContext(ctx).
		Preload("Product.Images", orderImages).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to load wishlist: %w", err)
	}
	return items, nil
}
