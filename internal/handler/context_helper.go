package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-engine/internal/middleware"
	"github.com/noah-isme/timetable-engine/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		return nil
	}
	return claims
}

// actorID identifies the caller in version metadata. Anonymous requests
// only reach handlers in tests and the CLI, where the actor is "system".
func actorID(c *gin.Context) string {
	if claims := claimsFromContext(c); claims != nil && claims.UserID != "" {
		return claims.UserID
	}
	return "system"
}
