package service

import "errors"

var (
	// ErrForbidden is returned when a user touches a resource owned by someone else.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidInput wraps every validation failure; the message says which field.
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSignUpRejected     = errors.New("signup rejected")
	ErrUserNotFound       = errors.New("user not found")
	ErrSessionExpired     = errors.New("session expired")
	ErrInvalidToken       = errors.New("invalid token")
)
