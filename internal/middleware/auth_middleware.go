package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"colabtrack/internal/auth"
	"colabtrack/internal/model"
	"colabtrack/internal/repository"

	"github.com/gin-gonic/gin"
)

const (
	UserIDKey = "userID"
	UserKey   = "user"
)

// TokenVerifier checks a bearer token and returns who it was issued to.
type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

// UserLookup resolves the subject of a token to a stored user.
type UserLookup interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

// JWTAuthMiddleware authenticates the request from its Authorization header and stores
// the acting user under UserKey and its id under UserIDKey.
func JWTAuthMiddleware(tokens TokenVerifier, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			return
		}

		parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
			return
		}

		identity, err := tokens.Verify(auth.StripBearer(header))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		user, err := users.FindByEmail(c.Request.Context(), identity.Email)
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid user in token"})
			return
		case errors.Is(err, repository.ErrTimeout):
			c.AbortWithStatusJSON(http.StatusGatewayTimeout, gin.H{"error": "Request timed out"})
			return
		case errors.Is(err, repository.ErrStoreUnavailable):
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable"})
			return
		case err != nil:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
			return
		}
		if !user.Enabled {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Account is disabled"})
			return
		}

		c.Set(UserIDKey, user.ID)
		c.Set(UserKey, user)
		c.Next()
	}
}

// RequireRole lets the request through only when the acting user holds one of roles.
func RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}
		for _, role := range roles {
			if user.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
	}
}

func CurrentUser(c *gin.Context) (*model.User, bool) {
	v, exists := c.Get(UserKey)
	if !exists {
		return nil, false
	}
	user, ok := v.(*model.User)
	return user, ok
}
