package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/workos/workos-go/v6/pkg/usermanagement"

	"cognito.app/sentinel/core/config"
)

// Identity is the user record held by the identity provider.
type Identity struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
}

// IdentityProvider owns credentials. We never store passwords ourselves.
type IdentityProvider interface {
	SignUp(ctx context.Context, email, password, name string) (*Identity, error)
	Authenticate(ctx context.Context, email, password string) (*Identity, error)
}

type workOSIdentity struct {
	cfg config.WorkOSConfig
}

func NewWorkOSIdentity(cfg config.WorkOSConfig) IdentityProvider {
	usermanagement.SetAPIKey(cfg.APIKey)
	return &workOSIdentity{cfg: cfg}
}

func (w *workOSIdentity) SignUp(ctx context.Context, email, password, name string) (*Identity, error) {
	first, last := splitName(name)
	user, err := usermanagement.CreateUser(ctx, usermanagement.CreateUserOpts{
		Email:     email,
		Password:  password,
		FirstName: first,
		LastName:  last,
	})
	if err != nil {
		return nil, fmt.Errorf("creating identity: %w", err)
	}
	return identityFrom(user), nil
}

func (w *workOSIdentity) Authenticate(ctx context.Context, email, password string) (*Identity, error) {
	resp, err := usermanagement.AuthenticateWithPassword(ctx, usermanagement.AuthenticateWithPasswordOpts{
		ClientID: w.cfg.ClientID,
		Email:    email,
		Password: password,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	return identityFrom(resp.User), nil
}

func identityFrom(u usermanagement.User) *Identity {
	return &Identity{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

func splitName(name string) (string, string) {
	first, last, _ := strings.Cut(strings.TrimSpace(name), " ")
	return first, strings.TrimSpace(last)
}

// DisplayName prefers the full name and falls back to the email address.
func (i *Identity) DisplayName() string {
	if i.FirstName != "" && i.LastName != "" {
		return i.FirstName + " " + i.LastName
	}
	if i.FirstName != "" {
		return i.FirstName
	}
	if i.LastName != "" {
		return i.LastName
	}
	return i.Email
}
