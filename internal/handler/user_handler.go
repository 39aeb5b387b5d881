package handler

import (
	"log/slog"
	"net/http"
	"time"

	"colabtrack/internal/model"
	"colabtrack/internal/service"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	auth *service.AuthService
	log  *slog.Logger
}

func NewUserHandler(auth *service.AuthService, log *slog.Logger) *UserHandler {
	return &UserHandler{auth: auth, log: log}
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required,min=2"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type UpdateProfileRequest struct {
	Name     *string `json:"name" binding:"omitempty,min=2"`
	Password *string `json:"password" binding:"omitempty,min=6,max=72"`
}

type ChangeRoleRequest struct {
	Role string `json:"role" binding:"required,user_role"`
}

type SetEnabledRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

type UserResponse struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      model.Role `json:"role"`
	Enabled   bool       `json:"enabled"`
	CreatedAt string     `json:"created_at"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

func newUserResponse(u service.UserView) UserResponse {
	return UserResponse{
		ID:        u.ID.String(),
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		Enabled:   u.Enabled,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}

func newAuthResponse(res *service.AuthResult) AuthResponse {
	return AuthResponse{Token: res.Token, User: newUserResponse(res.User)}
}

func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	res, err := h.auth.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, newAuthResponse(res))
}

func (h *UserHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	res, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, newAuthResponse(res))
}

// Refresh exchanges the token in the Authorization header, expired or not, for a new one.
func (h *UserHandler) Refresh(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
		return
	}

	res, err := h.auth.RefreshToken(c.Request.Context(), header)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, newAuthResponse(res))
}

// Logout is a no-op on the server: tokens are stateless and the client drops its copy.
func (h *UserHandler) Logout(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func (h *UserHandler) Me(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	view, err := h.auth.Profile(c.Request.Context(), userID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, newUserResponse(view))
}

func (h *UserHandler) UpdateMe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	view, err := h.auth.UpdateProfile(c.Request.Context(), userID, req.Name, req.Password)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, newUserResponse(view))
}

// SetRole changes another user's role. Routed behind RequireRole(ADMIN).
func (h *UserHandler) SetRole(c *gin.Context) {
	targetID, ok := paramID(c, "id", "user")
	if !ok {
		return
	}

	var req ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	view, err := h.auth.ChangeRole(c.Request.Context(), targetID, model.Role(req.Role))
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, newUserResponse(view))
}

// SetEnabled disables or re-enables an account. Routed behind RequireRole(ADMIN).
func (h *UserHandler) SetEnabled(c *gin.Context) {
	targetID, ok := paramID(c, "id", "user")
	if !ok {
		return
	}

	var req SetEnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	view, err := h.auth.SetEnabled(c.Request.Context(), targetID, *req.Enabled)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, newUserResponse(view))
}
