package api

import (
	"net/http"
	"time"

	"github.com/celerix-dev/robot-ops/internal/auth"
	"github.com/celerix-dev/robot-ops/internal/engine"
	"github.com/celerix-dev/robot-ops/pkg/schema"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type modifyAccessRequest struct {
	Email  string        `json:"email" binding:"required"`
	Access schema.Access `json:"access" binding:"required"`
}

type deleteUserRequest struct {
	Email string `json:"email" binding:"required"`
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	Message   string    `json:"message"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *Handler) RegisterUser(c *gin.Context) {
	var input registerRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		h.badRequest(c, "message", msgInvalidBody, err)
		return
	}

	u, err := h.Auth.Register(c.Request.Context(), input.Email, input.Name, input.Password)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, gin.H{"message": "User - " + u.Name + " registered successfully"})
	case errors.Is(err, engine.ErrDuplicateUser):
		c.JSON(http.StatusBadRequest, gin.H{"message": "User already exists"})
	case errors.Is(err, auth.ErrInvalidEmail):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid user mail id or not a proper e-mail format"})
	case errors.Is(err, auth.ErrNameRequired):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Name is required"})
	case errors.Is(err, auth.ErrPasswordTooShort):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Minimum 4 characters should be password"})
	default:
		h.internalError(c, "message", "registering user", err)
	}
}

func (h *Handler) Login(c *gin.Context) {
	var input loginRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		h.badRequest(c, "message", msgInvalidBody, err)
		return
	}

	token, id, err := h.Auth.Login(c.Request.Context(), input.Email, input.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Incorrect email or password"})
		return
	}
	if err != nil {
		h.internalError(c, "message", "logging in", err)
		return
	}

	maxAge := int(time.Until(id.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName(), token, maxAge, "/", "", h.SecureCookie, true)
	c.JSON(http.StatusOK, LoginResponse{Message: "Logged in successfully", Token: token, ExpiresAt: id.ExpiresAt})
}

func (h *Handler) Logout(c *gin.Context) {
	id, _ := auth.FromContext(c.Request.Context())
	h.Auth.Logout(id)
	c.SetCookie(h.cookieName(), "", -1, "/", "", h.SecureCookie, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (h *Handler) ModifyAccess(c *gin.Context) {
	var input modifyAccessRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		h.badRequest(c, "message", msgInvalidBody, err)
		return
	}

	_, err := h.Auth.ModifyAccess(c.Request.Context(), input.Email, input.Access)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "User access modified successfully"})
	case errors.Is(err, auth.ErrInvalidAccess):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid access level"})
	case errors.Is(err, engine.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
	default:
		h.internalError(c, "message", "modifying access", err)
	}
}

func (h *Handler) DeleteUser(c *gin.Context) {
	var input deleteUserRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		h.badRequest(c, "message", msgInvalidBody, err)
		return
	}

	err := h.Auth.DeleteUser(c.Request.Context(), input.Email)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
	case errors.Is(err, engine.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
	default:
		h.internalError(c, "message", "deleting user", err)
	}
}

func (h *Handler) ViewAllUsers(c *gin.Context) {
	users, err := h.Auth.ListUsers(c.Request.Context())
	if err != nil {
		h.internalError(c, "message", "listing users", err)
		return
	}
	c.JSON(http.StatusOK, users)
}
