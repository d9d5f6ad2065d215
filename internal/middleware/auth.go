package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"healthtracker-server/internal/config"
	"healthtracker-server/internal/models"
	"healthtracker-server/internal/repository"
	"healthtracker-server/internal/utils"
)

const (
	ctxUserID   = "userID"
	ctxUserRole = "userRole"
	ctxIdentity = "identity"

	// TokenCookie is the cookie login sets and the middleware reads first.
	TokenCookie = "token"
)

// tokenFromRequest looks in the cookie, then the Authorization header, then
// the token query parameter (used by download links).
func tokenFromRequest(c *gin.Context) string {
	if cookie, err := c.Cookie(TokenCookie); err == nil && cookie != "" {
		return cookie
	}
	if header := strings.TrimSpace(c.GetHeader("Authorization")); header != "" {
		if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
			return strings.TrimSpace(header[7:])
		}
		return header
	}
	return c.Query("token")
}

// AuthMiddleware creates a middleware for JWT authentication. Patient
// tokens must still resolve to an identity; the doctor has no identity row.
func AuthMiddleware(cfg *config.Config, identities repository.IdentityRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := tokenFromRequest(c)
		if tokenString == "" {
			utils.Unauthorized(c, "Access Denied. No token provided.")
			c.Abort()
			return
		}

		claims, err := utils.ValidateToken(tokenString, cfg.JWTSecret)
		if err != nil {
			utils.Forbidden(c, "Invalid or expired token. Please login again.")
			c.Abort()
			return
		}

		if claims.Role != models.RoleDoctor {
			identity, err := identities.FindByID(c.Request.Context(), claims.UserID)
			if errors.Is(err, repository.ErrNotFound) {
				utils.Unauthorized(c, "User account not found. Please register or login again.")
				c.Abort()
				return
			}
			if err != nil {
				_ = c.Error(err)
				utils.InternalServerError(c, "Server Error while verifying token.")
				c.Abort()
				return
			}
			c.Set(ctxIdentity, identity)
		}

		// Set user information in context for downstream handlers
		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxUserRole, claims.Role)

		c.Next()
	}
}

// RoleAuthMiddleware creates a middleware for role-based authorization.
// It should be used *after* AuthMiddleware.
func RoleAuthMiddleware(allowedRoles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := GetUserRoleFromContext(c)
		if !ok {
			utils.InternalServerError(c, "User role not found in context. AuthMiddleware might be missing.")
			c.Abort()
			return
		}

		for _, allowedRole := range allowedRoles {
			if role == allowedRole {
				c.Next()
				return
			}
		}

		utils.Forbidden(c, "You do not have permission to access this resource.")
		c.Abort()
	}
}

// Helper function to get user ID from context
func GetUserIDFromContext(c *gin.Context) (string, bool) {
	userID, exists := c.Get(ctxUserID)
	if !exists {
		return "", false
	}
	idStr, ok := userID.(string)
	return idStr, ok
}

// Helper function to get user role from context
func GetUserRoleFromContext(c *gin.Context) (models.Role, bool) {
	userRole, exists := c.Get(ctxUserRole)
	if !exists {
		return "", false
	}
	role, ok := userRole.(models.Role)
	return role, ok
}

// GetIdentityFromContext returns the signed-in patient's identity. It is
// absent for doctor tokens.
func GetIdentityFromContext(c *gin.Context) (*models.Identity, bool) {
	v, exists := c.Get(ctxIdentity)
	if !exists {
		return nil, false
	}
	identity, ok := v.(*models.Identity)
	return identity, ok
}
