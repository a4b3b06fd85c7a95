package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Jay-Parmar/PokerPlannerBE/auth"
)

const userIDKey = "userID"

// AuthRequired rejects requests without a valid bearer token and stores
// the authenticated user id on the context. WebSocket clients that
// cannot set headers may pass the token as a query parameter instead.
func AuthRequired(tokens *auth.Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			raw = c.Query("token")
		}
		userID, err := tokens.Verify(raw)
		if err != nil {
			standardResponse(c, http.StatusUnauthorized, "error", nil, "Invalid or missing token")
			c.Abort()
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

func currentUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
