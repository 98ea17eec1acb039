package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ironworks/storefront-api/config"
	"github.com/ironworks/storefront-api/models"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// maxOrderNumberAttempts bounds the retries after an order number collision
const maxOrderNumberAttempts = 5

// OrderPage is one page of the staff order listing
type OrderPage struct {
	Items    []models.Order `json:"items"`
	Total    int64          `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

// Adjustments are the staff-editable money fields of an order
type Adjustments struct {
	DeliveryCost   decimal.Decimal `json:"delivery_cost"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
}

// OrderService turns carts into orders and drives the order lifecycle
type OrderService struct {
	db       *gorm.DB
	settings *config.Settings
	notifier OrderNotifier
	now      func() time.Time
	numbers  func(prefix string, now time.Time) (string, error)
}

// NewOrderService creates an order service; nil settings or notifier fall back to defaults
func NewOrderService(db *gorm.DB, settings *config.Settings, notifier OrderNotifier) *OrderService {
	if settings == nil {
		settings = config.DefaultSettings()
	}
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &OrderService{db: db, settings: settings, notifier: notifier, now: time.Now, numbers: GenerateOrderNumber}
}

// CreateFromCart converts the owner's cart into an order.
// Everything from the order row to clearing the cart happens in one transaction;
// a failure at any step leaves the cart untouched and no order behind.
func (s *OrderService) CreateFromCart(ctx context.Context, owner CartOwner, data OrderData) (*models.Order, error) {
	if owner.UserID != nil && data.DeliveryAddress == "" && data.DeliveryMethod != models.DeliveryPickup {
		addr, err := NewAddressService(s.db).Default(ctx, *owner.UserID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if addr != nil {
			data.DeliveryAddress = addr.FullAddress()
		}
	}

	if err := ValidateOrderData(data); err != nil {
		return nil, err
	}

	var metadata datatypes.JSON
	if len(data.Metadata) > 0 {
		raw, err := json.Marshal(data.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to encode metadata: %w", err)
		}
		metadata = raw
	}

	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := findCart(tx, owner)
		if errors.Is(err, ErrNotFound) {
			return ErrEmptyCart
		}
		if err != nil {
			return err
		}

		var lines []models.CartItem
		if err := tx.Preload("Product").Where("cart_id = ?", cart.ID).Order("id").Find(&lines).Error; err != nil {
			return fmt.Errorf("failed to load cart items: %w", err)
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}

		subtotal := decimal.Zero
		for _, line := range lines {
			if line.Product == nil || !line.Product.IsVisible() {
				return fmt.Errorf("product %d is no longer available: %w", line.ProductID, ErrNotFound)
			}
			subtotal = subtotal.Add(line.LineTotal())
		}

		deliveryCost := s.settings.DeliveryCost(data.DeliveryMethod, subtotal)
		if data.DeliveryCost != nil {
			deliveryCost = *data.DeliveryCost
		}

		order = models.Order{
			UserID:          owner.UserID,
			Status:          models.OrderStatusPending,
			FirstName:       data.FirstName,
			LastName:        data.LastName,
			Email:           data.Email,
			Phone:           data.Phone,
			IsCompany:       data.IsCompany,
			CompanyName:     data.CompanyName,
			TaxID:           data.TaxID,
			DeliveryMethod:  data.DeliveryMethod,
			DeliveryAddress: data.DeliveryAddress,
			PaymentMethod:   data.PaymentMethod,
			Comment:         data.Comment,
			DeliveryCost:    deliveryCost,
			DiscountAmount:  data.DiscountAmount,
			TaxAmount:       data.TaxAmount,
			Subtotal:        subtotal,
			TotalAmount:     subtotal.Add(deliveryCost).Sub(data.DiscountAmount).Add(data.TaxAmount),
			IPAddress:       data.IPAddress,
			UserAgent:       data.UserAgent,
			Metadata:        metadata,
		}
		if err := s.insertWithNumber(tx, &order); err != nil {
			return err
		}

		items := make([]models.OrderItem, 0, len(lines))
		for _, line := range lines {
			item := models.OrderItem{
				OrderID:        order.ID,
				ProductID:      line.ProductID,
				ProductName:    line.Product.Name,
				ProductArticle: line.Product.Article,
				Price:          line.Product.Price,
				Quantity:       line.Quantity,
			}
			if err := tx.Create(&item).Error; err != nil {
				return fmt.Errorf("failed to create order item: %w", err)
			}
			items = append(items, item)
		}

		order.Items = items
		if err := saveTotals(tx, &order); err != nil {
			return err
		}

		if err := tx.Create(&models.OrderStatusHistory{
			OrderID:   order.ID,
			NewStatus: models.OrderStatusPending,
			ChangedBy: owner.String(),
			Comment:   "Order created",
		}).Error; err != nil {
			return fmt.Errorf("failed to record status history: %w", err)
		}

		for _, item := range items {
			if err := tx.Model(&models.Product{}).Where("id = ?", item.ProductID).
				UpdateColumn("orders_count", gorm.Expr("orders_count + ?", 1)).Error; err != nil {
				return fmt.Errorf("failed to update product counters: %w", err)
			}
		}

		if err := tx.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error; err != nil {
			return fmt.Errorf("failed to clear cart: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("order created", "number", order.Number, "owner", owner.String(), "total", order.TotalAmount.StringFixed(2))
	if err := s.notifier.OrderPlaced(ctx, NewOrderEvent(&order)); err != nil {
		slog.Error("failed to publish order event", "number", order.Number, "error", err)
	}
	return &order, nil
}

// insertWithNumber inserts the order under a fresh number, retrying inside a savepoint on collision
func (s *OrderService) insertWithNumber(tx *gorm.DB, order *models.Order) error {
	for attempt := 1; attempt <= maxOrderNumberAttempts; attempt++ {
		number, err := s.numbers(s.settings.OrderNumberPrefix, s.now())
		if err != nil {
			return err
		}
		order.ID = 0
		order.Number = number

		err = tx.Transaction(func(sp *gorm.DB) error {
			return sp.Omit("Items", "History", "User").Create(order).Error
		})
		if err == nil {
			return nil
		}
		if !isUniqueViolation(err) {
			return fmt.Errorf("failed to create order: %w", err)
		}
		slog.Warn("order number collision, retrying", "number", number, "attempt", attempt)
	}
	return fmt.Errorf("could not allocate an order number: %w", ErrConflict)
}

// saveTotals recomputes subtotal and total from the loaded items and persists them.
// A discount larger than everything it applies to is rejected.
func saveTotals(tx *gorm.DB, order *models.Order) error {
	order.RecalculateTotals()
	if order.TotalAmount.IsNegative() {
		verrs := &ValidationErrors{}
		verrs.Add("discount_amount", "must not exceed subtotal plus delivery cost and tax")
		return verrs
	}
	if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Updates(map[string]interface{}{
		"subtotal":        order.Subtotal,
		"delivery_cost":   order.DeliveryCost,
		"discount_amount": order.DiscountAmount,
		"tax_amount":      order.TaxAmount,
		"total_amount":    order.TotalAmount,
	}).Error; err != nil {
		return fmt.Errorf("failed to save order totals: %w", err)
	}
	return nil
}

// RecalculateTotals recomputes subtotal and total of a stored order from its items
func (s *OrderService) RecalculateTotals(ctx context.Context, orderID uint) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Items").First(&order, orderID).Error; err != nil {
			return notFound(err, "order")
		}
		return saveTotals(tx, &order)
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// SetAdjustments replaces delivery cost, discount and tax, then recomputes the total
func (s *OrderService) SetAdjustments(ctx context.Context, orderID uint, adj Adjustments) (*models.Order, error) {
	verrs := &ValidationErrors{}
	if adj.DeliveryCost.IsNegative() {
		verrs.Add("delivery_cost", "must not be negative")
	}
	if adj.DiscountAmount.IsNegative() {
		verrs.Add("discount_amount", "must not be negative")
	}
	if adj.TaxAmount.IsNegative() {
		verrs.Add("tax_amount", "must not be negative")
	}
	if err := verrs.OrNil(); err != nil {
		return nil, err
	}

	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Items").First(&order, orderID).Error; err != nil {
			return notFound(err, "order")
		}
		order.DeliveryCost = adj.DeliveryCost
		order.DiscountAmount = adj.DiscountAmount
		order.TaxAmount = adj.TaxAmount
		return saveTotals(tx, &order)
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ChangeStatus moves the order along its lifecycle and appends a history row.
// Requesting the current status is a no-op.
func (s *OrderService) ChangeStatus(ctx context.Context, orderID uint, next models.OrderStatus, actor, comment string) (*models.Order, error) {
	if !next.IsValid() {
		return nil, fmt.Errorf("unknown status %q: %w", next, ErrInvalidTransition)
	}

	var order models.Order
	changed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, orderID).Error; err != nil {
			return notFound(err, "order")
		}
		if order.Status == next {
			return nil
		}
		if !order.Status.CanTransitionTo(next) {
			return fmt.Errorf("%s -> %s: %w", order.Status, next, ErrInvalidTransition)
		}

		updates := map[string]interface{}{"status": next}
		if next == models.OrderStatusPaid && !order.IsPaid {
			now := s.now()
			updates["is_paid"] = true
			updates["paid_at"] = now
			order.IsPaid = true
			order.PaidAt = &now
		}
		if err := s.moveStatus(tx, &order, next, updates, actor, comment); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		slog.Info("order status changed", "number", order.Number, "status", order.Status, "actor", actor)
	}
	return &order, nil
}

// moveStatus applies updates only if nobody changed the status meanwhile, then records history
func (s *OrderService) moveStatus(tx *gorm.DB, order *models.Order, next models.OrderStatus, updates map[string]interface{}, actor, comment string) error {
	prev := order.Status
	result := tx.Model(&models.Order{}).
		Where("id = ? AND status = ?", order.ID, prev).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update order: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("order %s changed concurrently: %w", order.Number, ErrConflict)
	}
	order.Status = next

	if err := tx.Create(&models.OrderStatusHistory{
		OrderID:   order.ID,
		OldStatus: prev,
		NewStatus: next,
		ChangedBy: actor,
		Comment:   comment,
	}).Error; err != nil {
		return fmt.Errorf("failed to record status history: %w", err)
	}
	return nil
}

// MarkPaid records the payment. A pending order advances straight to paid.
// Marking an already paid order again changes nothing.
func (s *OrderService) MarkPaid(ctx context.Context, orderID uint, actor string) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, orderID).Error; err != nil {
			return notFound(err, "order")
		}
		if order.IsPaid {
			return nil
		}

		now := s.now()
		updates := map[string]interface{}{"is_paid": true, "paid_at": now}
		order.IsPaid = true
		order.PaidAt = &now

		if order.Status == models.OrderStatusPending {
			updates["status"] = models.OrderStatusPaid
			return s.moveStatus(tx, &order, models.OrderStatusPaid, updates, actor, "Payment received")
		}

		result := tx.Model(&models.Order{}).Where("id = ? AND is_paid = ?", order.ID, false).Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("failed to mark order paid: %w", result.Error)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("order marked paid", "number", order.Number, "actor", actor)
	return &order, nil
}

// GetOrderForUser returns the user's order by number; other users' orders are not found
func (s *OrderService) GetOrderForUser(ctx context.Context, userID uint, number string) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).
		Preload("Items").
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("number = ? AND user_id = ?", number, userID).
		First(&order).Error
	if err != nil {
		return nil, notFound(err, "order")
	}
	return &order, nil
}

// GetOrder returns any order by id (staff view)
func (s *OrderService) GetOrder(ctx context.Context, orderID uint) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).
		Preload("Items").
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&order, orderID).Error
	if err != nil {
		return nil, notFound(err, "order")
	}
	return &order, nil
}

// ListOrders returns the user's orders, newest first
func (s *OrderService) ListOrders(ctx context.Context, userID uint) ([]models.Order, error) {
	var orders []models.Order
	if err := s.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// ListAllOrders returns every order, optionally filtered by status (staff view)
func (s *OrderService) ListAllOrders(ctx context.Context, status models.OrderStatus, page, pageSize int) (*OrderPage, error) {
	page, pageSize = normalizePage(page, pageSize)
	query := s.db.WithContext(ctx).Model(&models.Order{})
	if status != "" {
		if !status.IsValid() {
			verrs := &ValidationErrors{}
			verrs.Add("status", "is not a known order status")
			return nil, verrs
		}
		query = query.Where("status = ?", status)
	}
	query = query.Session(&gorm.Session{})

	result := &OrderPage{Page: page, PageSize: pageSize}
	if err := query.Count(&result.Total).Error; err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}
	if err := query.Preload("Items").
		Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&result.Items).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return result, nil
}

// History returns the status log of an order, oldest first
func (s *OrderService) History(ctx context.Context, orderID uint) ([]models.OrderStatusHistory, error) {
	var history []models.OrderStatusHistory
	if err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id").
		Find(&history).Error; err != nil {
		return nil, fmt.Errorf("failed to load order history: %w", err)
	}
	return history, nil
}
