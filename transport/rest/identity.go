package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rocketscienceinc/dotsandboxes-backend/internal/apperror"
)

const (
	sessionCookie = "user_session"
	userIDHeader  = "X-User-ID"
	userIDKey     = "user_id"
)

// identify - takes the user from the websocket session cookie or the X-User-ID header.
func identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := c.Cookie(sessionCookie)
		if err != nil || userID == "" {
			userID = c.GetHeader(userIDHeader)
		}

		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: apperror.Reason(apperror.ErrUnauthorized)})
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

func userIDFrom(c *gin.Context) string {
	return c.GetString(userIDKey)
}
