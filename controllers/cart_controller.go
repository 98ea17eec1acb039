package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ironworks/storefront-api/config"
	"github.com/ironworks/storefront-api/middleware"
	"github.com/ironworks/storefront-api/models"
	"github.com/ironworks/storefront-api/services"
)

// AddCartItemRequest represents the request body for adding a product to the cart
type AddCartItemRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity"`
}

// UpdateCartItemRequest represents the request body for changing a line quantity
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

// cartOwner resolves whose cart the request targets. Signed-in users with a profile own
// their user cart; everybody else is identified by the X-Session-Key header. With issue
// set, a missing session key is generated.
func cartOwner(c *gin.Context, issue bool) services.CartOwner {
	if middleware.IsAuthenticated(c) {
		if user, err := middleware.CurrentUser(c); err == nil {
			return services.UserOwner(user.ID)
		}
	}
	if issue {
		return services.SessionOwner(middleware.EnsureSessionKey(c))
	}
	return services.SessionOwner(middleware.SessionKey(c))
}

func respondCart(c *gin.Context, owner services.CartOwner, message string) {
	summary, err := services.NewCartService(config.GetDB()).Summary(c.Request.Context(), owner)
	if err != nil {
		respondError(c, err)
		return
	}
	extra := gin.H{"data": summary}
	if owner.SessionKey != "" {
		extra["session_key"] = owner.SessionKey
	}
	respondMessage(c, message, extra)
}

// GetCart handles GET /api/v1/cart
func GetCart(c *gin.Context) {
	owner := cartOwner(c, false)
	if owner.IsZero() {
		respondData(c, http.StatusOK, services.CartSummary{Items: []models.CartItem{}})
		return
	}

	summary, err := services.NewCartService(config.GetDB()).Summary(c.Request.Context(), owner)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, summary)
}

// AddCartItem handles POST /api/v1/cart/items - adds to the quantity already in the cart
func AddCartItem(c *gin.Context) {
	var req AddCartItemRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	owner := cartOwner(c, true)
	if _, err := services.NewCartService(config.GetDB()).Add(c.Request.Context(), owner, req.ProductID, req.Quantity); err != nil {
		respondError(c, err)
		return
	}
	respondCart(c, owner, "Product added to cart")
}

// UpdateCartItem handles PUT /api/v1/cart/items/:product_id - zero or less removes the line
func UpdateCartItem(c *gin.Context) {
	productID, ok := idParam(c, "product_id")
	if !ok {
		return
	}
	var req UpdateCartItemRequest
	if !bindJSON(c, &req) {
		return
	}

	owner := cartOwner(c, true)
	if err := services.NewCartService(config.GetDB()).UpdateQuantity(c.Request.Context(), owner, productID, req.Quantity); err != nil {
		respondError(c, err)
		return
	}
	respondCart(c, owner, "Cart updated")
}

// RemoveCartItem handles DELETE /api/v1/cart/items/:product_id
func RemoveCartItem(c *gin.Context) {
	productID, ok := idParam(c, "product_id")
	if !ok {
		return
	}

	owner := cartOwner(c, true)
	if err := services.NewCartService(config.GetDB()).Remove(c.Request.Context(), owner, productID); err != nil {
		respondError(c, err)
		return
	}
	respondCart(c, owner, "Product removed from cart")
}

// ClearCart handles DELETE /api/v1/cart
func ClearCart(c *gin.Context) {
	owner := cartOwner(c, true)
	if err := services.NewCartService(config.GetDB()).Clear(c.Request.Context(), owner); err != nil {
		respondError(c, err)
		return
	}
	respondCart(c, owner, "Cart cleared")
}

// MergeCart handles POST /api/v1/cart/merge - moves the anonymous cart into the user's cart after login
func MergeCart(c *gin.Context) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		respondErrorCode(c, http.StatusNotFound, "USER_NOT_FOUND", "User profile not found. Please create a profile first.")
		return
	}

	owner := services.UserOwner(user.ID)
	sessionKey := middleware.SessionKey(c)
	if sessionKey == "" {
		respondCart(c, owner, "Nothing to merge")
		return
	}

	if err := services.NewCartService(config.GetDB()).Merge(c.Request.Context(), services.SessionOwner(sessionKey), owner); err != nil {
		respondError(c, err)
		return
	}
	respondCart(c, owner, "Cart merged")
}
