package models

import (
	"strings"
	"time"
)

// Category is a node of the catalog tree.
//
// Lft, Rgt and Depth are nested-set bounds maintained by the catalog service:
// a category B is a descendant of A exactly when A.Lft < B.Lft and B.Rgt < A.Rgt.
// Ordering by Lft yields a depth-first walk with siblings ordered by (SortOrder, Name).
type Category struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:200;not null" json:"name"`
	Slug        string    `gorm:"size:200;not null;uniqueIndex:idx_categories_slug_parent" json:"slug"`
	ParentID    *uint     `gorm:"index;uniqueIndex:idx_categories_slug_parent" json:"parent_id"`
	Parent      *Category `gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE" json:"-"`
	Description string    `gorm:"type:text" json:"description"`
	SortOrder   int       `gorm:"not null;default:0" json:"sort_order"`
	IsActive    bool      `gorm:"not null" json:"is_active"`
	IsFeatured  bool      `gorm:"not null" json:"is_featured"`
	Lft         int       `gorm:"not null;index" json:"-"`
	Rgt         int       `gorm:"not null;index" json:"-"`
	Depth       int       `gorm:"not null" json:"depth"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for the Category model
func (Category) TableName() string {
	return "categories"
}

// IsRoot reports whether the category has no parent
func (c Category) IsRoot() bool {
	return c.ParentID == nil
}

// Contains reports whether other lies in the subtree rooted at c (c itself included)
func (c Category) Contains(other Category) bool {
	return c.Lft <= other.Lft && other.Rgt <= c.Rgt
}

// CatalogURL is the public catalog address of the category reached by slugs, root first
func CatalogURL(slugs ...string) string {
	return "/catalog/" + strings.Join(slugs, "/")
}
