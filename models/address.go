package models

import (
	"strings"
	"time"
)

// DeliveryAddress is an entry of a user's address book.
// At most one address per user has IsDefault set.
type DeliveryAddress struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"not null;index" json:"user_id"`
	User          *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Title         string    `gorm:"size:100" json:"title"`
	RecipientName string    `gorm:"size:200;not null" json:"recipient_name"`
	Phone         string    `gorm:"size:32;not null" json:"phone"`
	City          string    `gorm:"size:100;not null" json:"city"`
	Street        string    `gorm:"size:255;not null" json:"street"`
	Building      string    `gorm:"size:32" json:"building"`
	Apartment     string    `gorm:"size:32" json:"apartment"`
	PostalCode    string    `gorm:"size:16" json:"postal_code"`
	IsDefault     bool      `gorm:"not null" json:"is_default"`
	IsActive      bool      `gorm:"not null" json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName specifies the table name for the DeliveryAddress model
func (DeliveryAddress) TableName() string {
	return "delivery_addresses"
}

// FullAddress formats the address as a single line for order snapshots
func (a DeliveryAddress) FullAddress() string {
	parts := []string{}
	if a.PostalCode != "" {
		parts = append(parts, a.PostalCode)
	}
	parts = append(parts, a.City, a.Street)
	if a.Building != "" {
		parts = append(parts, "bld. "+a.Building)
	}
	if a.Apartment != "" {
		parts = append(parts, "apt. "+a.Apartment)
	}
	return strings.Join(parts, ", ")
}
