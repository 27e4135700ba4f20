package tenant

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"taskhub/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequireSession resolves the session cookie before the handler runs and
// aborts with 401 when there is none. A store failure aborts with 500.
func RequireSession(mgr session.Manager, cookie session.CookieOptions, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		t := session.NewCookieTransport(c.Writer, c.Request, cookie)

		ident, err := mgr.Get(c.Request.Context(), t)
		if err != nil {
			logger.Error("Session lookup failed",
				"error", err,
				"request_id", c.GetString("request_id"))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if ident == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrUnauthenticated.Error()})
			return
		}

		id := Identity{UserID: ident.UserID, TenantID: ident.TenantID}
		setIdentity(c, id)
		c.Next()
	}
}

// RoleFunc looks up the caller's current role within its tenant.
type RoleFunc func(ctx context.Context, id Identity) (Role, error)

// RequireRole lets the request through only when the caller holds one of roles.
// The role is read fresh on every request so a demotion takes effect immediately.
func RequireRole(lookup RoleFunc, roles ...Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := Require(c.Request.Context())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		role, err := lookup(c.Request.Context(), id)
		if err != nil {
			Error(c, err)
			c.Abort()
			return
		}

		for _, r := range roles {
			if role == r {
				id.Role = role
				setIdentity(c, id)
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": ErrForbidden.Error()})
	}
}

func setIdentity(c *gin.Context, id Identity) {
	c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), id))
	c.Set("user_id", id.UserID)
	c.Set("tenant_id", id.TenantID)
}

// Error writes the JSON response for a guard error. Anything else, storage
// failures included, is a 500.
func Error(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": ErrUnauthenticated.Error()})
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": ErrNotFound.Error()})
	case errors.Is(err, ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": ErrForbidden.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// ParamID reads a uuid path parameter. A malformed id cannot name a row in
// any tenant, so it is answered like any other miss.
func ParamID(c *gin.Context, name string) (string, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": ErrNotFound.Error()})
		return "", false
	}
	return id.String(), true
}
