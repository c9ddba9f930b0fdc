package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/lang-test-booking/internal/dto"
	"github.com/iliyamo/lang-test-booking/internal/model"
	"github.com/iliyamo/lang-test-booking/internal/repository"
	"github.com/iliyamo/lang-test-booking/internal/utils"
)

// UserService reads and edits the caller's profile.
type UserService struct {
	users      UserStore
	bcryptCost int
}

func NewUserService(users UserStore, bcryptCost int) *UserService {
	return &UserService{users: users, bcryptCost: bcryptCost}
}

func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("user %s: %w", id, err)
	}
	return u, err
}

// Update applies the non-nil fields of req.  A supplied currentPassword must
// match the stored one (InvalidState); a taken email is a Conflict.
func (s *UserService) Update(ctx context.Context, id string, req dto.UpdateUserRequest) (*model.User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		u.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		u.Email = *req.Email
	}
	if req.Password != nil {
		if req.CurrentPassword != nil && !utils.VerifyPassword(u.PasswordHash, *req.CurrentPassword) {
			return nil, fmt.Errorf("current password is incorrect: %w", repository.ErrInvalidState)
		}
		hash, err := utils.HashPassword(*req.Password, s.bcryptCost)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
	}
	if err := s.users.Update(ctx, u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, fmt.Errorf("%v: %w", err, repository.ErrConflict)
		}
		return nil, err
	}
	return u, nil
}
