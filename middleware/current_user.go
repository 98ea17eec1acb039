package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ironworks/storefront-api/config"
	"github.com/ironworks/storefront-api/models"
)

const currentUserKey = "current_user"

// CurrentUser returns the profile of the authenticated caller, loading it once per request
func CurrentUser(c *gin.Context) (*models.User, error) {
	if cached, ok := c.Get(currentUserKey); ok {
		if user, ok := cached.(*models.User); ok {
			return user, nil
		}
	}

	auth0ID, err := GetUserID(c)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := config.GetDB().WithContext(c.Request.Context()).
		Where("auth0_id = ?", auth0ID).First(&user).Error; err != nil {
		return nil, &AuthError{Code: "USER_NOT_FOUND", Message: "User profile not found. Please create a profile first."}
	}

	c.Set(currentUserKey, &user)
	return &user, nil
}

// RequireUser aborts with 401/404 unless the caller has a stored profile
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := GetUserID(c); err != nil {
			abortAuth(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information")
			return
		}
		if _, err := CurrentUser(c); err != nil {
			abortAuth(c, http.StatusNotFound, "USER_NOT_FOUND", "User profile not found. Please create a profile first.")
			return
		}
		c.Next()
	}
}

// RequireStaff only lets staff members through.
// The role claim is trusted first; otherwise the stored profile decides.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetRole(c) == models.RoleStaff {
			c.Next()
			return
		}

		user, err := CurrentUser(c)
		if err != nil || !user.IsStaff() {
			abortAuth(c, http.StatusForbidden, "FORBIDDEN", "Only staff members can access this resource")
			return
		}
		c.Next()
	}
}
