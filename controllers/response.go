package controllers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ironworks/storefront-api/services"
	"github.com/ironworks/storefront-api/utils"
)

func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// respondMessage is the envelope of mutations triggered from the storefront UI
func respondMessage(c *gin.Context, message string, extra gin.H) {
	body := gin.H{
		"success": true,
		"message": message,
	}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

func respondErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// respondError maps service errors onto HTTP statuses
func respondError(c *gin.Context, err error) {
	var verrs *services.ValidationErrors
	var uploadErr *utils.FileUploadError

	switch {
	case errors.As(err, &verrs):
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": verrs.Errors,
			},
		})
	case errors.As(err, &uploadErr):
		respondErrorCode(c, http.StatusBadRequest, uploadErr.Code, uploadErr.Message)
	case errors.Is(err, services.ErrInvalidQuantity):
		respondErrorCode(c, http.StatusBadRequest, "INVALID_QUANTITY", err.Error())
	case errors.Is(err, services.ErrEmptyCart):
		respondErrorCode(c, http.StatusBadRequest, "EMPTY_CART", "Cart is empty")
	case errors.Is(err, services.ErrNotFound):
		respondErrorCode(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, services.ErrConflict):
		respondErrorCode(c, http.StatusConflict, "CONFLICT", err.Error())
	case errors.Is(err, services.ErrProtected):
		respondErrorCode(c, http.StatusConflict, "PROTECTED", err.Error())
	case errors.Is(err, services.ErrCycle):
		respondErrorCode(c, http.StatusUnprocessableEntity, "INVALID_PARENT", err.Error())
	case errors.Is(err, services.ErrInvalidTransition):
		respondErrorCode(c, http.StatusUnprocessableEntity, "INVALID_TRANSITION", err.Error())
	default:
		slog.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		respondErrorCode(c, http.StatusInternalServerError, "DATABASE_ERROR", "Internal error, please try again later")
	}
}

// bindJSON binds the request body and answers 400 on failure
func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return false
	}
	return true
}

// idParam parses a numeric path parameter and answers 400 when it is malformed
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		respondErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func queryInt(c *gin.Context, name string, fallback int) int {
	if v, err := strconv.Atoi(c.Query(name)); err == nil {
		return v
	}
	return fallback
}
