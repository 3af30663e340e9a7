package service

import (
	"context"
	"errors"
	"fmt"

	"cognito.app/sentinel/internal/model"
	"cognito.app/sentinel/internal/store"
)

type UserService interface {
	Get(ctx context.Context, userID int64) (*model.User, error)
}

type userService struct {
	userStore store.UserStore
}

func NewUserService(userStore store.UserStore) UserService {
	return &userService{userStore: userStore}
}

func (s *userService) Get(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.userStore.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return user, nil
}
