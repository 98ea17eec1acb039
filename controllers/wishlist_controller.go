package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ironworks/storefront-api/config"
	"github.com/ironworks/storefront-api/services"
)

// GetWishlist handles GET /api/v1/wishlist
func GetWishlist(c *gin.Context) {
	user, ok := currentUserOr404(c)
	if !ok {
		return
	}
	items, err := services.NewWishlistService(config.GetDB()).List(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, items)
}

// AddToWishlist handles POST /api/v1/wishlist/:product_id
func AddToWishlist(c *gin.Context) {
	user, ok := currentUserOr404(c)
	if !ok {
		return
	}
	productID, ok := idParam(c, "product_id")
	if !ok {
		return
	}

	if err := services.NewWishlistService(config.GetDB()).Add(c.Request.Context(), user.ID, productID); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "Product saved to wishlist", nil)
}

// RemoveFromWishlist handles DELETE /api/v1/wishlist/:product_id
func RemoveFromWishlist(c *gin.Context) {
	user, ok := currentUserOr404(c)
	if !ok {
		return
	}
	productID, ok := idParam(c, "product_id")
	if !ok {
		return
	}

	if err := services.NewWishlistService(config.GetDB()).Remove(c.Request.Context(), user.ID, productID); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "Product removed from wishlist", nil)
}
