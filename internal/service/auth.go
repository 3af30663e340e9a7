package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cognito.app/sentinel/common/id"
	"cognito.app/sentinel/internal/model"
	"cognito.app/sentinel/internal/store"
)

// AuthResult is what a successful signup or login hands back to the client.
type AuthResult struct {
	User      *model.User
	Token     string
	ExpiresAt time.Time
}

type AuthService interface {
	SignUp(ctx context.Context, email, password, name string) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	// Authenticate verifies a token and its backing session.
	Authenticate(ctx context.Context, token string) (*model.User, *Claims, error)
	Logout(ctx context.Context, sessionID int64) error
}

type authService struct {
	userStore    store.UserStore
	sessionStore store.SessionStore
	identity     IdentityProvider
	tokens       *TokenIssuer
}

func NewAuthService(
	userStore store.UserStore,
	sessionStore store.SessionStore,
	identity IdentityProvider,
	tokens *TokenIssuer,
) AuthService {
	return &authService{
		userStore:    userStore,
		sessionStore: sessionStore,
		identity:     identity,
		tokens:       tokens,
	}
}

func (s *authService) SignUp(ctx context.Context, email, password, name string) (*AuthResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}

	ident, err := s.identity.SignUp(ctx, email, password, name)
	if err != nil {
		slog.WarnContext(ctx, "identity signup failed", "error", err, "email", email)
		return nil, fmt.Errorf("%w: %v", ErrSignUpRejected, err)
	}
	return s.startSession(ctx, ident)
}

func (s *authService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	ident, err := s.identity.Authenticate(ctx, strings.TrimSpace(email), password)
	if err != nil {
		slog.InfoContext(ctx, "login rejected", "error", err)
		return nil, ErrInvalidCredentials
	}
	return s.startSession(ctx, ident)
}

func (s *authService) startSession(ctx context.Context, ident *Identity) (*AuthResult, error) {
	user := &model.User{
		ID:         id.New(),
		Name:       ident.DisplayName(),
		Email:      ident.Email,
		IdentityID: &ident.ID,
	}
	if err := s.userStore.Upsert(ctx, user); err != nil {
		slog.ErrorContext(ctx, "failed to upsert user",
			"error", err,
			"email", user.Email,
			"identity_id", ident.ID,
		)
		return nil, fmt.Errorf("upserting user: %w", err)
	}

	session := &model.Session{
		ID:        id.New(),
		UserID:    user.ID,
		ExpiresAt: time.Now().UTC().Add(s.tokens.TTL()),
	}
	if err := s.sessionStore.Create(ctx, session); err != nil {
		slog.ErrorContext(ctx, "failed to create session",
			"error", err,
			"user_id", user.ID,
		)
		return nil, fmt.Errorf("creating session: %w", err)
	}

	token, err := s.tokens.Issue(user.ID, session.ID, session.ExpiresAt)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "user authenticated",
		"user_id", user.ID,
		"session_id", session.ID,
	)
	return &AuthResult{User: user, Token: token, ExpiresAt: session.ExpiresAt}, nil
}

func (s *authService) Authenticate(ctx context.Context, token string) (*model.User, *Claims, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, nil, err
	}
	sessionID, err := claims.SessionID()
	if err != nil {
		return nil, nil, ErrInvalidToken
	}

	session, err := s.sessionStore.GetValid(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrSessionExpired
		}
		return nil, nil, fmt.Errorf("getting session: %w", err)
	}
	if session.UserID != claims.UserID {
		return nil, nil, ErrInvalidToken
	}

	user, err := s.userStore.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, fmt.Errorf("getting user: %w", err)
	}
	return user, claims, nil
}

func (s *authService) Logout(ctx context.Context, sessionID int64) error {
	if err := s.sessionStore.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}
