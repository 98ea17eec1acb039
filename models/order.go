package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// OrderStatus is a step of the order lifecycle
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// orderTransitions lists the statuses reachable from each status
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:       {OrderStatusShipped, OrderStatusRefunded},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusRefunded},
	OrderStatusDelivered:  {OrderStatusCompleted, OrderStatusRefunded},
	OrderStatusCompleted:  {OrderStatusRefunded},
}

// IsValid reports whether s is a known status
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing, OrderStatusPaid,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCompleted, OrderStatusCancelled,
		OrderStatusRefunded:
		return true
	}
	return false
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Delivery methods
const (
	DeliveryPickup    = "pickup"
	DeliveryCourier   = "courier"
	DeliveryPost      = "post"
	DeliveryTransport = "transport_company"
)

// Payment methods
const (
	PaymentCash         = "cash"
	PaymentCard         = "card"
	PaymentBankTransfer = "bank_transfer"
	PaymentOnline       = "online"
)

// Order is the snapshot of a cart at checkout plus customer, delivery and payment data
type Order struct {
	ID     uint        `gorm:"primaryKey" json:"id"`
	Number string      `gorm:"size:40;not null;uniqueIndex" json:"number"`
	UserID *uint       `gorm:"index" json:"user_id,omitempty"` // nullable, anonymous checkout
	User   *User       `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL" json:"-"`
	Status OrderStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`

	FirstName   string `gorm:"size:100;not null" json:"first_name"`
	LastName    string `gorm:"size:100;not null" json:"last_name"`
	Email       string `gorm:"size:255;not null" json:"email"`
	Phone       string `gorm:"size:32;not null" json:"phone"`
	IsCompany   bool   `gorm:"not null" json:"is_company"`
	CompanyName string `gorm:"size:255" json:"company_name,omitempty"`
	TaxID       string `gorm:"size:9" json:"tax_id,omitempty"` // 9-digit tax registration number

	DeliveryMethod  string `gorm:"size:32;not null" json:"delivery_method"`
	DeliveryAddress string `gorm:"type:text" json:"delivery_address"`
	PaymentMethod   string `gorm:"size:32;not null" json:"payment_method"`
	Comment         string `gorm:"type:text" json:"comment,omitempty"`

	Subtotal       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"discount_amount"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"tax_amount"`
	DeliveryCost   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"delivery_cost"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`

	IsPaid bool       `gorm:"not null" json:"is_paid"`
	PaidAt *time.Time `json:"paid_at,omitempty"`

	IPAddress string         `gorm:"size:45" json:"-"`
	UserAgent string         `gorm:"size:512" json:"-"`
	Metadata  datatypes.JSON `json:"metadata,omitempty"` // request metadata (referer, utm tags, ...)

	Items   []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	History []OrderStatusHistory `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"history,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// CustomerName joins first and last name
func (o Order) CustomerName() string {
	if o.LastName == "" {
		return o.FirstName
	}
	return o.FirstName + " " + o.LastName
}

// RecalculateTotals sets Subtotal from the loaded items and
// TotalAmount = Subtotal + DeliveryCost - DiscountAmount + TaxAmount
func (o *Order) RecalculateTotals() {
	subtotal := decimal.Zero
	for _, item := range o.Items {
		subtotal = subtotal.Add(item.LineTotal())
	}
	o.Subtotal = subtotal
	o.TotalAmount = subtotal.Add(o.DeliveryCost).Sub(o.DiscountAmount).Add(o.TaxAmount)
}

// OrderItem snapshots product data at checkout; later product edits never change it
type OrderItem struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	OrderID        uint            `gorm:"not null;index" json:"order_id"`
	ProductID      uint            `gorm:"not null;index" json:"product_id"`
	Product        *Product        `gorm:"foreignKey:ProductID;constraint:OnDelete:RESTRICT" json:"-"`
	ProductName    string          `gorm:"size:255;not null" json:"product_name"`
	ProductArticle string          `gorm:"size:100;not null" json:"product_article"`
	Price          decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Quantity       int             `gorm:"not null;check:quantity > 0" json:"quantity"`
	CreatedAt      time.Time       `json:"created_at"`
}

// TableName specifies the table name for the OrderItem model
func (OrderItem) TableName() string {
	return "order_items"
}

// LineTotal is price * quantity
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// OrderStatusHistory is an append-only log of status transitions
type OrderStatusHistory struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	OrderID   uint        `gorm:"not null;index" json:"order_id"`
	OldStatus OrderStatus `gorm:"size:20" json:"old_status"` // empty for the initial row
	NewStatus OrderStatus `gorm:"size:20;not null" json:"new_status"`
	ChangedBy string      `gorm:"size:255" json:"changed_by"`
	Comment   string      `gorm:"type:text" json:"comment,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// TableName specifies the table name for the OrderStatusHistory model
func (OrderStatusHistory) TableName() string {
	return "order_status_history"
}
