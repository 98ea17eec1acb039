package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ironworks/storefront-api/config"
	"github.com/ironworks/storefront-api/middleware"
	"github.com/ironworks/storefront-api/services"
)

// UpdateUserRequest is the body of PUT /api/v1/users/me
type UpdateUserRequest struct {
	Name  string `json:"name" binding:"omitempty,max=255"`
	Email string `json:"email" binding:"omitempty,email"`
	Phone string `json:"phone" binding:"omitempty,max=32"`
}

// respondUserError keeps the account-specific error codes the storefront UI relies on
func respondUserError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrMissingEmail):
		respondErrorCode(c, http.StatusBadRequest, "MISSING_EMAIL", "Email not provided by Auth0")
	case errors.Is(err, services.ErrMissingName):
		respondErrorCode(c, http.StatusBadRequest, "MISSING_NAME", "Name not provided by Auth0")
	case errors.Is(err, services.ErrUserExists):
		respondErrorCode(c, http.StatusConflict, "USER_EXISTS", "A user with this Auth0 ID or email already exists")
	case errors.Is(err, services.ErrEmailTaken):
		respondErrorCode(c, http.StatusConflict, "EMAIL_EXISTS", "A user with this email already exists")
	case errors.Is(err, services.ErrNotFound):
		respondErrorCode(c, http.StatusNotFound, "USER_NOT_FOUND", "User profile not found. Please create a profile first.")
	default:
		respondError(c, err)
	}
}

// CreateUser handles POST /api/v1/users.
// The profile comes from Auth0's /userinfo, the role from the token's custom claim.
func CreateUser(c *gin.Context) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		respondErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user ID from token")
		return
	}
	accessToken, err := middleware.GetAccessToken(c)
	if err != nil {
		respondErrorCode(c, http.StatusUnauthorized, "MISSING_TOKEN", "Access token not found")
		return
	}

	info, err := services.NewAuth0Service(config.GetConfig()).GetUserInfo(c.Request.Context(), accessToken)
	if err != nil {
		respondErrorCode(c, http.StatusInternalServerError, "AUTH0_ERROR", "Failed to fetch user information from Auth0")
		return
	}

	user, err := services.NewUserService(config.GetDB()).Register(c.Request.Context(), auth0ID, middleware.GetRole(c), info)
	if err != nil {
		respondUserError(c, err)
		return
	}
	respondData(c, http.StatusCreated, user)
}

// GetMyProfile handles GET /api/v1/users/me
func GetMyProfile(c *gin.Context) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		respondErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information")
		return
	}
	user, err := services.NewUserService(config.GetDB()).Profile(c.Request.Context(), auth0ID)
	if err != nil {
		respondUserError(c, err)
		return
	}
	respondData(c, http.StatusOK, user)
}

// UpdateMyProfile handles PUT /api/v1/users/me
func UpdateMyProfile(c *gin.Context) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		respondErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information")
		return
	}
	var req UpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := services.NewUserService(config.GetDB()).UpdateProfile(c.Request.Context(), auth0ID, services.ProfileUpdate{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	})
	if err != nil {
		respondUserError(c, err)
		return
	}
	respondData(c, http.StatusOK, user)
}
