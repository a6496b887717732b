package security

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hiring-gateway/internal/service"
	"hiring-gateway/pkg/response"
)

const (
	claimsKey = "user_claims"
	userIDKey = "user_id"
)

// AuthMiddleware provides JWT authentication middleware. When disabled every
// request passes through unauthenticated.
type AuthMiddleware struct {
	jwtManager *JWTManager
	enabled    bool
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(jwtManager *JWTManager, enabled bool) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager: jwtManager,
		enabled:    enabled,
	}
}

// RequireAnyRole authenticates the request and checks the caller holds one of roles
func (am *AuthMiddleware) RequireAnyRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !am.enabled {
			c.Next()
			return
		}

		correlationID := c.GetString("correlation_id")

		token, err := ExtractTokenFromHeader(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.UnauthorizedResponse(err.Error(), correlationID))
			return
		}

		claims, err := am.jwtManager.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.UnauthorizedResponse("Invalid or expired token", correlationID))
			return
		}

		if len(roles) > 0 && !claims.HasAnyRole(roles...) {
			c.AbortWithStatusJSON(http.StatusForbidden, response.ForbiddenResponse("Insufficient permissions", correlationID))
			return
		}

		c.Set(claimsKey, claims)
		c.Set(userIDKey, claims.UserID)
		c.Request = c.Request.WithContext(service.WithActor(c.Request.Context(), claims.Actor()))

		c.Next()
	}
}

// GetUserClaims extracts user claims from context
func GetUserClaims(c *gin.Context) (*Claims, bool) {
	claims, exists := c.Get(claimsKey)
	if !exists {
		return nil, false
	}
	userClaims, ok := claims.(*Claims)
	return userClaims, ok
}
