package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// actorFromContext returns the authenticated user id for audit attribution,
// or nil when the route is unauthenticated.
func actorFromContext(c *gin.Context) *string {
	claims := claimsFromContext(c)
	if claims == nil || claims.UserID == "" {
		return nil
	}
	id := claims.UserID
	return &id
}
