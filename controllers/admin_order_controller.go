package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ironworks/storefront-api/middleware"
	"github.com/ironworks/storefront-api/models"
	"github.com/ironworks/storefront-api/services"
)

// ChangeStatusRequest represents the request body for moving an order along its lifecycle
type ChangeStatusRequest struct {
	Status  models.OrderStatus `json:"status" binding:"required"`
	Comment string             `json:"comment"`
}

// staffActor names the staff member in the order history
func staffActor(c *gin.Context) string {
	if user, err := middleware.CurrentUser(c); err == nil {
		return user.Email
	}
	if auth0ID, err := middleware.GetUserID(c); err == nil {
		return auth0ID
	}
	return "staff"
}

// AdminListOrders handles GET /api/v1/admin/orders
// Query: status, page, page_size
func AdminListOrders(c *gin.Context) {
	page, err := orderService().ListAllOrders(c.Request.Context(), models.OrderStatus(c.Query("status")),
		queryInt(c, "page", 1), queryInt(c, "page_size", 0))
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, page)
}

// AdminGetOrder handles GET /api/v1/admin/orders/:id - order with items and history
func AdminGetOrder(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	order, err := orderService().GetOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, order)
}

// GetOrderHistory handles GET /api/v1/admin/orders/:id/history - status log, oldest first
func GetOrderHistory(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	svc := orderService()
	if _, err := svc.GetOrder(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	history, err := svc.History(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, history)
}

// ChangeOrderStatus handles POST /api/v1/admin/orders/:id/status
func ChangeOrderStatus(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req ChangeStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := orderService().ChangeStatus(c.Request.Context(), id, req.Status, staffActor(c), req.Comment)
	if err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "Order status is now "+string(order.Status), gin.H{"data": order})
}

// MarkOrderPaid handles POST /api/v1/admin/orders/:id/paid
func MarkOrderPaid(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	order, err := orderService().MarkPaid(c.Request.Context(), id, staffActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "Order marked as paid", gin.H{"data": order})
}

// SetOrderAdjustments handles PUT /api/v1/admin/orders/:id/adjustments - delivery, discount and tax
func SetOrderAdjustments(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req services.Adjustments
	if !bindJSON(c, &req) {
		return
	}

	order, err := orderService().SetAdjustments(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "Order totals updated", gin.H{"data": order})
}
