package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ironworks/storefront-api/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CartOwner identifies whose cart an operation targets.
// Signed-in callers use UserID; anonymous callers use an opaque SessionKey.
type CartOwner struct {
	UserID     *uint
	SessionKey string
}

// UserOwner returns the owner for a signed-in user
func UserOwner(userID uint) CartOwner {
	return CartOwner{UserID: &userID}
}

// SessionOwner returns the owner for an anonymous session
func SessionOwner(sessionKey string) CartOwner {
	return CartOwner{SessionKey: sessionKey}
}

// IsZero reports whether the owner carries no identity
func (o CartOwner) IsZero() bool {
	return o.UserID == nil && o.SessionKey == ""
}

func (o CartOwner) String() string {
	if o.UserID != nil {
		return fmt.Sprintf("user:%d", *o.UserID)
	}
	return "session:" + o.SessionKey
}

func (o CartOwner) scope(db *gorm.DB) *gorm.DB {
	if o.UserID != nil {
		return db.Where("user_id = ?", *o.UserID)
	}
	return db.Where("session_key = ?", o.SessionKey)
}

// CartSummary is a cart with derived totals
type CartSummary struct {
	CartID     uint              `json:"cart_id,omitempty"`
	Items      []models.CartItem `json:"items"`
	ItemsCount int               `json:"items_count"`
	TotalPrice decimal.Decimal   `json:"total_price"`
}

// CartService manages carts and their items
type CartService struct {
	db *gorm.DB
}

// NewCartService creates a cart service
func NewCartService(db *gorm.DB) *CartService {
	return &CartService{db: db}
}

var errNoOwner = errors.New("cart owner is required")

// findCart returns the owner's cart or ErrNotFound
func findCart(tx *gorm.DB, owner CartOwner) (*models.Cart, error) {
	if owner.IsZero() {
		return nil, errNoOwner
	}
	var cart models.Cart
	if err := tx.Scopes(owner.scope).First(&cart).Error; err != nil {
		return nil, notFound(err, "cart")
	}
	return &cart, nil
}

// getOrCreateCart lazily creates the owner's cart.
// Concurrent callers converge on one row through the unique owner columns.
func getOrCreateCart(tx *gorm.DB, owner CartOwner) (*models.Cart, error) {
	if owner.IsZero() {
		return nil, errNoOwner
	}
	cart := models.Cart{UserID: owner.UserID}
	if owner.UserID == nil {
		key := owner.SessionKey
		cart.SessionKey = &key
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&cart).Error; err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}
	return findCart(tx, owner)
}

// GetOrCreateCart returns the owner's cart, creating it on first use
func (s *CartService) GetOrCreateCart(ctx context.Context, owner CartOwner) (*models.Cart, error) {
	return getOrCreateCart(s.db.WithContext(ctx), owner)
}

// Add puts quantity units of a product into the cart, accumulating onto an existing line
func (s *CartService) Add(ctx context.Context, owner CartOwner, productID uint, quantity int) (*models.CartItem, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	var item models.CartItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.Scopes(visibleProducts).First(&product, productID).Error; err != nil {
			return notFound(err, "product")
		}

		cart, err := getOrCreateCart(tx, owner)
		if err != nil {
			return err
		}

		if err := upsertCartItem(tx, cart.ID, productID, quantity); err != nil {
			return err
		}
		if err := tx.Model(cart).UpdateColumn("updated_at", time.Now()).Error; err != nil {
			return fmt.Errorf("failed to touch cart: %w", err)
		}
		return tx.Preload("Product").
			Where("cart_id = ? AND product_id = ?", cart.ID, productID).
			First(&item).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// upsertCartItem inserts the line or adds quantity to the existing one in a single statement
func upsertCartItem(tx *gorm.DB, cartID, productID uint, quantity int) error {
	item := models.CartItem{CartID: cartID, ProductID: productID, Quantity: quantity}
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "cart_id"}, {Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":   gorm.Expr("cart_items.quantity + ?", quantity),
			"updated_at": time.Now(),
		}),
	}).Create(&item).Error
	if err != nil {
		return fmt.Errorf("failed to add cart item: %w", err)
	}
	return nil
}

// Remove deletes the product line; absent lines are ignored
func (s *CartService) Remove(ctx context.Context, owner CartOwner, productID uint) error {
	db := s.db.WithContext(ctx)
	cart, err := findCart(db, owner)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := db.Where("cart_id = ? AND product_id = ?", cart.ID, productID).Delete(&models.CartItem{}).Error; err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}
	return nil
}

// UpdateQuantity sets the line quantity exactly; zero or less removes the line
func (s *CartService) UpdateQuantity(ctx context.Context, owner CartOwner, productID uint, quantity int) error {
	if quantity <= 0 {
		return s.Remove(ctx, owner, productID)
	}

	db := s.db.WithContext(ctx)
	cart, err := findCart(db, owner)
	if err != nil {
		return err
	}
	result := db.Model(&models.CartItem{}).
		Where("cart_id = ? AND product_id = ?", cart.ID, productID).
		Updates(map[string]interface{}{"quantity": quantity, "updated_at": time.Now()})
	if result.Error != nil {
		return fmt.Errorf("failed to update cart item: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("product %d in cart: %w", productID, ErrNotFound)
	}
	return nil
}

// Clear removes every line from the owner's cart
func (s *CartService) Clear(ctx context.Context, owner CartOwner) error {
	db := s.db.WithContext(ctx)
	cart, err := findCart(db, owner)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := db.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error; err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// Merge moves every line of the source cart into the destination cart and deletes the source.
// Quantities of products present in both carts are summed.
func (s *CartService) Merge(ctx context.Context, source, dest CartOwner) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		src, err := findCart(tx, source)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		dst, err := getOrCreateCart(tx, dest)
		if err != nil {
			return err
		}
		if dst.ID == src.ID {
			return nil
		}

		var items []models.CartItem
		if err := tx.Where("cart_id = ?", src.ID).Order("id").Find(&items).Error; err != nil {
			return fmt.Errorf("failed to load cart items: %w", err)
		}
		for _, item := range items {
			if err := upsertCartItem(tx, dst.ID, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		if err := tx.Where("cart_id = ?", src.ID).Delete(&models.CartItem{}).Error; err != nil {
			return fmt.Errorf("failed to delete source items: %w", err)
		}
		if err := tx.Delete(src).Error; err != nil {
			return fmt.Errorf("failed to delete source cart: %w", err)
		}
		return nil
	})
}

// Summary returns the cart contents with derived totals.
// An owner without a cart gets an empty summary; nothing is created.
func (s *CartService) Summary(ctx context.Context, owner CartOwner) (*CartSummary, error) {
	db := s.db.WithContext(ctx)
	cart, err := findCart(db, owner)
	if errors.Is(err, ErrNotFound) {
		return &CartSummary{Items: []models.CartItem{}, TotalPrice: decimal.Zero}, nil
	}
	if err != nil {
		return nil, err
	}

	if err := db.Preload("Product.Images", orderImages).
		Where("cart_id = ?", cart.ID).
		Order("id").
		Find(&cart.Items).Error; err != nil {
		return nil, fmt.Errorf("failed to load cart items: %w", err)
	}

	return &CartSummary{
		CartID:     cart.ID,
		Items:      cart.Items,
		ItemsCount: cart.ItemsCount(),
		TotalPrice: cart.TotalPrice(),
	}, nil
}
