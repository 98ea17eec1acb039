package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ironworks/storefront-api/config"
	"github.com/ironworks/storefront-api/middleware"
	"github.com/ironworks/storefront-api/services"
)

// CreateOrderRequest is the checkout form
type CreateOrderRequest struct {
	FirstName       string            `json:"first_name"`
	LastName        string            `json:"last_name"`
	Email           string            `json:"email"`
	Phone           string            `json:"phone"`
	IsCompany       bool              `json:"is_company"`
	CompanyName     string            `json:"company_name"`
	TaxID           string            `json:"tax_id"`
	DeliveryMethod  string            `json:"delivery_method"`
	DeliveryAddress string            `json:"delivery_address"`
	PaymentMethod   string            `json:"payment_method"`
	Comment         string            `json:"comment"`
	Metadata        map[string]string `json:"metadata"`
}

func orderService() *services.OrderService {
	return services.NewOrderService(config.GetDB(), config.GetSettings(), services.GetOrderNotifier())
}

// CreateOrder handles POST /api/v1/orders - converts the caller's cart into an order.
// Works for signed-in users and for anonymous carts identified by X-Session-Key.
func CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	owner := cartOwner(c, false)
	if owner.IsZero() {
		respondErrorCode(c, http.StatusBadRequest, "EMPTY_CART", "Cart is empty")
		return
	}

	metadata := req.Metadata
	if referer := c.Request.Referer(); referer != "" {
		if metadata == nil {
			metadata = map[string]string{}
		}
		metadata["referer"] = referer
	}

	order, err := orderService().CreateFromCart(c.Request.Context(), owner, services.OrderData{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		Phone:           req.Phone,
		IsCompany:       req.IsCompany,
		CompanyName:     req.CompanyName,
		TaxID:           req.TaxID,
		DeliveryMethod:  req.DeliveryMethod,
		DeliveryAddress: req.DeliveryAddress,
		PaymentMethod:   req.PaymentMethod,
		Comment:         req.Comment,
		IPAddress:       c.ClientIP(),
		UserAgent:       c.Request.UserAgent(),
		Metadata:        metadata,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Order " + order.Number + " has been placed",
		"data":    order,
	})
}

// ListOrders handles GET /api/v1/orders - the caller's orders, newest first
func ListOrders(c *gin.Context) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		respondErrorCode(c, http.StatusNotFound, "USER_NOT_FOUND", "User profile not found. Please create a profile first.")
		return
	}

	orders, err := orderService().ListOrders(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, orders)
}

// GetOrder handles GET /api/v1/orders/:number - only the owner can see an order
func GetOrder(c *gin.Context) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		respondErrorCode(c, http.StatusNotFound, "USER_NOT_FOUND", "User profile not found. Please create a profile first.")
		return
	}

	order, err := orderService().GetOrderForUser(c.Request.Context(), user.ID, c.Param("number"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, order)
}
