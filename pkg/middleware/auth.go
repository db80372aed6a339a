package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/harveywai/leasedesk/pkg/auth"
)

const (
	contextUserIDKey = "userID"
	contextUserRole  = "userRole"
)

// AuthMiddleware validates the access token from the session cookie or the
// Authorization header and attaches user information to the Gin context.
// Requests authenticated by cookie must echo the CSRF cookie in the X-CSRFToken
// header for every method other than GET, HEAD and OPTIONS.
func AuthMiddleware(issuer *auth.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, fromCookie, msg := extractToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   msg,
			})
			return
		}

		claims, err := issuer.Validate(tokenString, auth.KindAccess)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "invalid or expired token",
			})
			return
		}

		if fromCookie && !safeMethod(c.Request.Method) && !validCSRF(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "CSRF token missing or incorrect",
			})
			return
		}

		// Store user ID and role in context for downstream handlers.
		c.Set(contextUserIDKey, claims.UserID)
		c.Set(contextUserRole, claims.Role)

		c.Next()
	}
}

func extractToken(c *gin.Context) (token string, fromCookie bool, msg string) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return "", false, "authorization header must be in the format 'Bearer <token>'"
		}
		token = strings.TrimSpace(parts[1])
		if token == "" {
			return "", false, "authorization token is empty"
		}
		return token, false, ""
	}

	if cookie, err := c.Cookie(auth.AccessCookie); err == nil && cookie != "" {
		return cookie, true, ""
	}
	return "", false, "authentication required"
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func validCSRF(c *gin.Context) bool {
	cookie, err := c.Cookie(auth.CSRFCookie)
	header := c.GetHeader(auth.CSRFHeader)
	if err != nil || cookie == "" || header == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookie), []byte(header)) == 1
}

// RoleMiddleware ensures that the authenticated user has the required role.
// It should be used in combination with AuthMiddleware.
func RoleMiddleware(requiredRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleVal, exists := c.Get(contextUserRole)
		if !exists {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "missing user role in context",
			})
			return
		}

		role, ok := roleVal.(string)
		if !ok || !strings.EqualFold(role, requiredRole) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "insufficient permissions",
			})
			return
		}

		c.Next()
	}
}

// UserID returns the authenticated user's ID set by AuthMiddleware.
func UserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(contextUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

// UserRole returns the authenticated user's role set by AuthMiddleware.
func UserRole(c *gin.Context) string {
	return c.GetString(contextUserRole)
}
