package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/harveywai/leasedesk/pkg/auth"
	"github.com/harveywai/leasedesk/pkg/database"
	"github.com/harveywai/leasedesk/pkg/middleware"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleLogin authenticates a user, sets the session cookies and returns the
// access token for clients that prefer the Authorization header.
func (h *Handler) handleLogin(c *gin.Context) {
	var body loginRequest
	if !bindJSON(c, &body) {
		return
	}
	body.Username = strings.TrimSpace(body.Username)
	if body.Username == "" || body.Password == "" {
		errorJSON(c, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := h.store.FindUserByUsername(c.Request.Context(), body.Username)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		h.fail(c, err, "user")
		return
	}
	if err != nil || !auth.CheckPassword(user.Password, body.Password) {
		errorJSON(c, http.StatusUnauthorized, "invalid username or password")
		return
	}

	// Enforce account status.
	switch strings.ToLower(user.Status) {
	case auth.StatusPending:
		errorJSON(c, http.StatusForbidden, "Account pending approval")
		return
	case auth.StatusDisabled:
		errorJSON(c, http.StatusForbidden, "Account disabled")
		return
	}

	access, err := h.issuer.Issue(user.ID, user.Role, auth.KindAccess)
	if err != nil {
		h.fail(c, err, "token")
		return
	}
	refresh, err := h.issuer.Issue(user.ID, user.Role, auth.KindRefresh)
	if err != nil {
		h.fail(c, err, "token")
		return
	}
	csrf := auth.NewCSRFToken()

	h.setCookie(c, auth.AccessCookie, access, h.issuer.AccessTTL(), true)
	h.setCookie(c, auth.RefreshCookie, refresh, h.issuer.RefreshTTL(), true)
	h.setCookie(c, auth.CSRFCookie, csrf, h.issuer.RefreshTTL(), false)

	h.log.Info("user logged in", zap.String("username", user.Username))
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"token":    access,
		"username": user.Username,
		"role":     user.Role,
		"csrf":     csrf,
	})
}

// handleRefresh exchanges the refresh cookie for a new access cookie.
func (h *Handler) handleRefresh(c *gin.Context) {
	token, err := c.Cookie(auth.RefreshCookie)
	if err != nil || token == "" {
		errorJSON(c, http.StatusUnauthorized, "refresh token required")
		return
	}
	claims, err := h.issuer.Validate(token, auth.KindRefresh)
	if err != nil {
		errorJSON(c, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	user, err := h.store.GetUser(c.Request.Context(), claims.UserID)
	if err != nil || user.Status != auth.StatusActive {
		errorJSON(c, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	access, err := h.issuer.Issue(user.ID, user.Role, auth.KindAccess)
	if err != nil {
		h.fail(c, err, "token")
		return
	}
	h.setCookie(c, auth.AccessCookie, access, h.issuer.AccessTTL(), true)
	c.JSON(http.StatusOK, gin.H{"success": true, "token": access})
}

func (h *Handler) handleLogout(c *gin.Context) {
	for _, name := range []string{auth.AccessCookie, auth.RefreshCookie, auth.CSRFCookie} {
		h.setCookie(c, name, "", -time.Second, name != auth.CSRFCookie)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out"})
}

func (h *Handler) handleCheck(c *gin.Context) {
	id, _ := middleware.UserID(c)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user_id": id,
		"role":    middleware.UserRole(c),
	})
}

// setCookie writes a Lax same-site cookie on "/". A negative ttl deletes it.
func (h *Handler) setCookie(c *gin.Context, name, value string, ttl time.Duration, httpOnly bool) {
	maxAge := int(ttl.Seconds())
	if ttl < 0 {
		maxAge = -1
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, maxAge, "/", "", h.secure, httpOnly)
}
