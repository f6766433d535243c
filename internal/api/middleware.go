package api

import (
	"net/http"
	"strings"

	"github.com/celerix-dev/robot-ops/internal/auth"
	"github.com/celerix-dev/robot-ops/pkg/schema"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

// Authenticate resolves the bearer token or session cookie into an Identity
// stored on the request context. Requests without a valid token continue
// anonymously; RequireAccess decides whether that is enough.
func (h *Handler) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token, _ = c.Cookie(h.cookieName())
		}
		if token == "" {
			c.Next()
			return
		}

		id, err := h.Auth.Authenticate(c.Request.Context(), token)
		switch {
		case err == nil:
			c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), id))
		case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrTokenExpired), errors.Is(err, auth.ErrTokenRevoked):
			h.logger().WithError(err).Debug("ignoring unusable token")
		default:
			h.logger().WithError(err).Error("error resolving identity")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
			return
		}
		c.Next()
	}
}

// RequireAccess lets the request through only if the caller's access level is
// one of levels.
func RequireAccess(levels ...schema.Access) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := auth.FromContext(c.Request.Context())
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "No user is logged in"})
			return
		}
		if !id.HasAccess(levels...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Forbidden: insufficient access"})
			return
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
