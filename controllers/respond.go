package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kylebanzon/coolworks-api/middleware"
	"github.com/kylebanzon/coolworks-api/services"
)

// statusForKind maps a domain error kind onto an HTTP status code
func statusForKind(kind services.ErrorKind) int {
	switch kind {
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindUnauthenticated:
		return http.StatusUnauthorized
	case services.KindForbidden:
		return http.StatusForbidden
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindConflict, services.KindInsufficientStock:
		return http.StatusConflict
	case services.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondDomainError writes the standard error envelope for a service failure
func respondDomainError(c *gin.Context, err error) {
	if de := services.AsDomainError(err); de != nil {
		c.JSON(statusForKind(de.Kind), gin.H{
			"success": false,
			"error": gin.H{
				"code":    string(de.Kind),
				"message": de.Message,
			},
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "An unexpected error occurred",
		},
	})
}

// currentActor resolves the authenticated actor from the Gin context.
// Returns false after writing the error response when the context is missing
// authentication state (which means RequireAuth did not run).
func currentActor(c *gin.Context) (services.Actor, bool) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UNAUTHENTICATED",
				"message": "Could not extract user information",
			},
		})
		return services.Actor{}, false
	}

	role, err := middleware.GetUserRole(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UNAUTHENTICATED",
				"message": "Could not extract user role",
			},
		})
		return services.Actor{}, false
	}

	return services.Actor{ID: userID, Role: role}, true
}
