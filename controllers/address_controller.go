package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ironworks/storefront-api/config"
	"github.com/ironworks/storefront-api/middleware"
	"github.com/ironworks/storefront-api/models"
	"github.com/ironworks/storefront-api/services"
)

// currentUserOr404 loads the caller's profile, answering 404 when it does not exist yet
func currentUserOr404(c *gin.Context) (*models.User, bool) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		respondErrorCode(c, http.StatusNotFound, "USER_NOT_FOUND", "User profile not found. Please create a profile first.")
		return nil, false
	}
	return user, true
}

// ListAddresses handles GET /api/v1/addresses
func ListAddresses(c *gin.Context) {
	user, ok := currentUserOr404(c)
	if !ok {
		return
	}
	addresses, err := services.NewAddressService(config.GetDB()).List(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, addresses)
}

// CreateAddress handles POST /api/v1/addresses
func CreateAddress(c *gin.Context) {
	user, ok := currentUserOr404(c)
	if !ok {
		return
	}
	var req services.AddressInput
	if !bindJSON(c, &req) {
		return
	}

	address, err := services.NewAddressService(config.GetDB()).Create(c.Request.Context(), user.ID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusCreated, address)
}

// UpdateAddress handles PUT /api/v1/addresses/:id
func UpdateAddress(c *gin.Context) {
	user, ok := currentUserOr404(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req services.AddressInput
	if !bindJSON(c, &req) {
		return
	}

	address, err := services.NewAddressService(config.GetDB()).Update(c.Request.Context(), user.ID, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, address)
}

// SetDefaultAddress handles POST /api/v1/addresses/:id/default
func SetDefaultAddress(c *gin.Context) {
	user, ok := currentUserOr404(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	address, err := services.NewAddressService(config.GetDB()).SetDefault(c.Request.Context(), user.ID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "Default address updated", gin.H{"data": address})
}

// DeleteAddress handles DELETE /api/v1/addresses/:id
func DeleteAddress(c *gin.Context) {
	user, ok := currentUserOr404(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	if err := services.NewAddressService(config.GetDB()).Delete(c.Request.Context(), user.ID, id); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "Address deleted", nil)
}
