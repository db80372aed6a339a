package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/harveywai/leasedesk/pkg/auth"
	"github.com/harveywai/leasedesk/pkg/database"
)

// handleListUsers returns all users, or only those with the given ?status=.
func (h *Handler) handleListUsers(c *gin.Context) {
	users, err := h.store.ListUsers(c.Request.Context(), strings.ToLower(c.Query("status")))
	if err != nil {
		h.fail(c, err, "user")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "users": users})
}

func (h *Handler) handleCreateUser(c *gin.Context) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if !bindJSON(c, &body) {
		return
	}
	body.Username = strings.TrimSpace(body.Username)
	if body.Username == "" || body.Password == "" {
		errorJSON(c, http.StatusBadRequest, "username and password are required")
		return
	}

	role := strings.ToLower(body.Role)
	switch role {
	case "":
		role = auth.RoleUser
	case auth.RoleUser, auth.RoleAdmin:
	default:
		errorJSON(c, http.StatusBadRequest, "role must be user or admin")
		return
	}

	hashed, err := auth.HashPassword(body.Password)
	if err != nil {
		h.fail(c, err, "user")
		return
	}

	// Admin-created users are active immediately.
	user := database.User{
		Username: body.Username,
		Password: hashed,
		Role:     role,
		Status:   auth.StatusActive,
	}
	if err := h.store.CreateUser(c.Request.Context(), &user); err != nil {
		h.fail(c, err, "user")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "user": user})
}

func (h *Handler) handleApproveUser(c *gin.Context) {
	h.setUserStatus(c, auth.StatusActive)
}

// handleRejectUser disables the account instead of deleting it.
func (h *Handler) handleRejectUser(c *gin.Context) {
	h.setUserStatus(c, auth.StatusDisabled)
}

func (h *Handler) setUserStatus(c *gin.Context, status string) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 0)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid user ID")
		return
	}
	user, err := h.store.SetUserStatus(c.Request.Context(), uint(id), status)
	if err != nil {
		h.fail(c, err, "user")
		return
	}
	h.log.Info("user status changed", zap.String("username", user.Username), zap.String("status", status))
	c.JSON(http.StatusOK, gin.H{"success": true, "id": user.ID, "status": user.Status})
}
