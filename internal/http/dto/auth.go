package dto

import (
	"time"

	"cognito.app/sentinel/internal/model"
	"cognito.app/sentinel/internal/service"
)

type SignUpRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=8,max=256"`
	Name     string `json:"name" binding:"max=255"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,max=256"`
}

type UserResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func ToUserResponse(u *model.User) *UserResponse {
	return &UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

type AuthResponse struct {
	User      *UserResponse `json:"user"`
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
}

func ToAuthResponse(r *service.AuthResult) *AuthResponse {
	return &AuthResponse{
		User:      ToUserResponse(r.User),
		Token:     r.Token,
		ExpiresAt: r.ExpiresAt,
	}
}
