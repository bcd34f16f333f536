package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"store_api/internal/apperr"
	"store_api/internal/model"

	"github.com/gin-gonic/gin"
)

const userKey = "store_api.user"

// Authenticator resolves an opaque bearer token.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

// Auth rejects requests without a valid bearer token and stores the user on the context.
func Auth(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			abort(c, http.StatusUnauthorized, "Unauthenticated.")
			return
		}
		u, err := a.Authenticate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, apperr.ErrUnauthorized) {
				abort(c, http.StatusUnauthorized, "Unauthenticated.")
				return
			}
			_ = c.Error(err)
			abort(c, http.StatusInternalServerError, "Internal server error.")
			return
		}
		c.Set(userKey, u)
		c.Next()
	}
}

// RequireAdmin must run after Auth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		u := CurrentUser(c)
		if u == nil {
			abort(c, http.StatusUnauthorized, "Unauthenticated.")
			return
		}
		if u.Role != model.RoleAdmin {
			abort(c, http.StatusForbidden, "Forbidden.")
			return
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user, or nil on anonymous routes.
func CurrentUser(c *gin.Context) *model.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	u, _ := v.(*model.User)
	return u
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": msg, "data": nil})
}
