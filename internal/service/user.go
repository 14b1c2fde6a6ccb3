package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/flicky/go-storefront-api/internal/dto"
	"github.com/flicky/go-storefront-api/internal/model"
	"github.com/flicky/go-storefront-api/internal/repository"
)

type UserService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

func (s *UserService) List(ctx context.Context, id model.Identity) ([]dto.UserResponse, error) {
	if !id.IsAdmin() {
		return nil, ErrAdminOnly
	}
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	resp := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		resp = append(resp, toUserResponse(&users[i]))
	}
	return resp, nil
}

func (s *UserService) Get(ctx context.Context, id model.Identity, userID uuid.UUID) (*dto.UserResponse, error) {
	user, err := s.load(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	resp := toUserResponse(user)
	return &resp, nil
}

// Update changes profile fields only. Roles are granted out of band.
func (s *UserService) Update(ctx context.Context, id model.Identity, userID uuid.UUID, req dto.UpdateUserRequest) (*dto.UserResponse, error) {
	if req.Name == nil && req.Email == nil && req.Password == nil {
		return nil, ErrNothingToUpdate
	}

	user, err := s.load(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name must not be empty", ErrValidation)
		}
		user.Name = name
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Password != nil {
		hashed, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.Password = string(hashed)
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, ErrUserNotFound
		case errors.Is(err, repository.ErrDuplicateEmail):
			return nil, ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("update user: %w", err)
	}

	resp := toUserResponse(user)
	return &resp, nil
}

func (s *UserService) load(ctx context.Context, id model.Identity, userID uuid.UUID) (*model.User, error) {
	if id.UserID != userID && !id.IsAdmin() {
		return nil, ErrForbidden
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}
