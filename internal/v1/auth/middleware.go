package auth

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hermes-hub/hermes/internal/v1/apperr"
	"github.com/hermes-hub/hermes/internal/v1/logging"
)

// SessionCookieName is the cookie the session token travels in by default.
const SessionCookieName = "hermes_session"

// contextKey for the resolved caller id in gin's keystore.
const callerKey = "auth.caller_id"

// TokenFromRequest extracts the session token from the cookie first and the
// query string second. WebSocket clients cannot set cookies, so ?token= is a
// first-class transport, not a fallback for browsers.
func TokenFromRequest(c *gin.Context) string {
	if cookie, err := c.Cookie(SessionCookieName); err == nil && cookie != "" {
		return cookie
	}
	return c.Query("token")
}

// Middleware rejects requests without a resolvable session and stashes the
// caller id for downstream handlers.
func Middleware(v SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := TokenFromRequest(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		userID, err := v.Resolve(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(apperr.Status(err), gin.H{"error": apperr.ClientMessage(err)})
			return
		}

		c.Set(callerKey, userID)
		ctx := context.WithValue(c.Request.Context(), logging.UserIDKey, strconv.FormatInt(userID, 10))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// CallerID returns the authenticated user id set by Middleware. The second
// return is false on routes that skipped it.
func CallerID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(callerKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
