package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"cognito.app/sentinel/internal/http/dto"
	"cognito.app/sentinel/internal/http/middleware"
	"cognito.app/sentinel/internal/service"
)

type AuthHandler struct {
	authService service.AuthService
}

func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) SignUp(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.authService.SignUp(ctx, req.Email, req.Password, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrSignUpRejected):
			c.JSON(http.StatusBadRequest, gin.H{"error": "signup rejected by identity provider"})
		default:
			slog.ErrorContext(ctx, "signup failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sign up"})
		}
		return
	}

	c.JSON(http.StatusCreated, dto.ToAuthResponse(result))
}

func (h *AuthHandler) Login(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.authService.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		slog.ErrorContext(ctx, "login failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to log in"})
		return
	}

	c.JSON(http.StatusOK, dto.ToAuthResponse(result))
}

func (h *AuthHandler) Logout(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.authService.Logout(ctx, middleware.GetSessionID(ctx)); err != nil {
		slog.ErrorContext(ctx, "logout failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to log out"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *AuthHandler) Me(c *gin.Context) {
	user := middleware.GetUser(c.Request.Context())
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	c.JSON(http.StatusOK, dto.ToUserResponse(user))
}
