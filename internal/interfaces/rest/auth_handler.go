package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/assetflow/backend/internal/application/services"
	"github.com/assetflow/backend/pkg/errors"
)

// AuthHandler handles authentication API endpoints
type AuthHandler struct {
	svc *services.AuthService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(svc *services.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// LoginRequest represents login request body
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !BindJSON(c, &req) {
		return
	}

	result, err := h.svc.Login(
		c.Request.Context(),
		req.Email,
		req.Password,
		c.ClientIP(),
		c.Request.UserAgent(),
	)
	if err != nil {
		RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"token":      result.Token,
		"user":       result.User,
		"expires_at": result.ExpiresAt.Format(time.RFC3339),
	})
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	// Token was stashed in context by the auth middleware
	token := c.GetString("token")
	if token == "" {
		RespondAppError(c, errors.NewUnauthorizedError("No token provided"))
		return
	}

	HandleDeleteEnvelope(c, "Logged out successfully", func() error {
		return h.svc.Logout(c.Request.Context(), token)
	})
}

// GetMe handles GET /api/auth/me
func (h *AuthHandler) GetMe(c *gin.Context) {
	user := GetUserFromContext(c)
	if user == nil {
		RespondAppError(c, errors.NewUnauthorizedError("User not authenticated"))
		return
	}

	HandleGetEnvelope(c, "user", func() (interface{}, error) {
		// Re-read the directory so department/role changes show up without re-login
		return h.svc.GetUserByID(c.Request.Context(), user.ID)
	})
}
