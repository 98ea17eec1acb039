package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCategoryContains(t *testing.T) {
	root := Category{Lft: 1, Rgt: 8}
	child := Category{Lft: 2, Rgt: 5}
	grandchild := Category{Lft: 3, Rgt: 4}
	sibling := Category{Lft: 6, Rgt: 7}

	assert.True(t, root.Contains(grandchild))
	assert.True(t, root.Contains(root), "a category contains itself")
	assert.True(t, child.Contains(grandchild))
	assert.False(t, child.Contains(sibling))
	assert.False(t, grandchild.Contains(child))
}

func TestCategoryURLAndRoot(t *testing.T) {
	parent := uint(1)
	assert.Equal(t, "/catalog/pipes/steel-pipes", CatalogURL("pipes", "steel-pipes"))
	assert.Equal(t, "/catalog/pipes", CatalogURL("pipes"))
	assert.True(t, Category{}.IsRoot())
	assert.False(t, Category{ParentID: &parent}.IsRoot())
}

func TestCartTotals(t *testing.T) {
	cart := Cart{Items: []CartItem{
		{Quantity: 2, Product: &Product{Price: decimal.RequireFromString("12.50")}},
		{Quantity: 1, Product: &Product{Price: decimal.RequireFromString("3.00")}},
		{Quantity: 4},
	}}

	assert.Equal(t, 7, cart.ItemsCount())
	assert.True(t, cart.TotalPrice().Equal(decimal.RequireFromString("28.00")))
}

func TestProductVisibility(t *testing.T) {
	assert.True(t, Product{IsPublished: true, IsActive: true}.IsVisible())
	assert.False(t, Product{IsPublished: true}.IsVisible())
	assert.False(t, Product{IsActive: true}.IsVisible())
	assert.True(t, Product{StockQuantity: 1}.InStock())
	assert.False(t, Product{}.InStock())
}

func TestDeliveryAddressFullAddress(t *testing.T) {
	addr := DeliveryAddress{PostalCode: "220030", City: "Minsk", Street: "Lenina", Building: "5", Apartment: "12"}
	assert.Equal(t, "220030, Minsk, Lenina, bld. 5, apt. 12", addr.FullAddress())

	short := DeliveryAddress{City: "Brest", Street: "Sovetskaya"}
	assert.Equal(t, "Brest, Sovetskaya", short.FullAddress())
}
