package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a sellable catalog item.
// Category references are protected: a category cannot be deleted while products point at it.
type Product struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Name          string          `gorm:"size:255;not null" json:"name"`
	Slug          string          `gorm:"size:255;not null;uniqueIndex" json:"slug"`
	Article       string          `gorm:"size:100;not null;uniqueIndex" json:"article"` // SKU
	CategoryID    uint            `gorm:"not null;index" json:"category_id"`
	Category      *Category       `gorm:"foreignKey:CategoryID;constraint:OnDelete:RESTRICT" json:"category,omitempty"`
	Description   string          `gorm:"type:text" json:"description"`
	Price         decimal.Decimal `gorm:"type:decimal(12,2);not null;check:price >= 0" json:"price"`
	StockQuantity int             `gorm:"not null;default:0;check:stock_quantity >= 0" json:"stock_quantity"`
	IsPublished   bool            `gorm:"not null;index" json:"is_published"`
	IsActive      bool            `gorm:"not null;index" json:"is_active"`
	IsFeatured    bool            `gorm:"not null" json:"is_featured"`
	ViewsCount    int64           `gorm:"not null;default:0" json:"views_count"`
	OrdersCount   int64           `gorm:"not null;default:0" json:"orders_count"`
	Images        []ProductImage  `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"images,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TableName specifies the table name for the Product model
func (Product) TableName() string {
	return "products"
}

// IsVisible reports whether the product is listed publicly
func (p Product) IsVisible() bool {
	return p.IsPublished && p.IsActive
}

// InStock reports whether any stock is left
func (p Product) InStock() bool {
	return p.StockQuantity > 0
}

// ProductImage is an image stored in object storage.
// At most one image per product carries IsMain.
type ProductImage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProductID uint      `gorm:"not null;index" json:"product_id"`
	ImageKey  string    `gorm:"size:512;not null" json:"image_key"`
	ImageURL  *string   `gorm:"-" json:"image_url,omitempty"` // computed field, presigned URL
	AltText   string    `gorm:"size:255" json:"alt_text"`
	SortOrder int       `gorm:"not null;default:0" json:"sort_order"`
	IsMain    bool      `gorm:"not null" json:"is_main"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for the ProductImage model
func (ProductImage) TableName() string {
	return "product_images"
}
