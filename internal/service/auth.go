package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/flicky/go-storefront-api/internal/dto"
	"github.com/flicky/go-storefront-api/internal/model"
	"github.com/flicky/go-storefront-api/internal/oauth"
	"github.com/flicky/go-storefront-api/internal/repository"
)

type GoogleVerifier interface {
	Verify(ctx context.Context, credential string) (*oauth.GoogleProfile, error)
}

type AuthService struct {
	userRepo  repository.UserRepository
	google    GoogleVerifier
	jwtSecret []byte
	jwtExpiry time.Duration
}

func NewAuthService(userRepo repository.UserRepository, jwtSecret string, jwtExpiry time.Duration) *AuthService {
	return &AuthService{userRepo: userRepo, jwtSecret: []byte(jwtSecret), jwtExpiry: jwtExpiry}
}

// WithGoogle enables GoogleLogin.
func (s *AuthService) WithGoogle(v GoogleVerifier) *AuthService {
	s.google = v
	return s
}

// Register always creates a plain user; admins are promoted out of band.
func (s *AuthService) Register(ctx context.Context, req dto.RegisterRequest) (*dto.AuthResponse, error) {
	existing, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if existing != nil {
		return nil, ErrUserAlreadyExists
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Name: req.Name, Email: req.Email, Password: string(hashed), Role: model.RoleUser,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	token, err := s.generateToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &dto.AuthResponse{Token: token, User: toUserResponse(user)}, nil
}

func (s *AuthService) Login(ctx context.Context, req dto.LoginRequest) (*dto.AuthResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.generateToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &dto.AuthResponse{Token: token, User: toUserResponse(user)}, nil
}

// GoogleLogin signs in with a Google ID token, creating a plain user on first
// use. Such accounts have no password and cannot use Login.
func (s *AuthService) GoogleLogin(ctx context.Context, credential string) (*dto.AuthResponse, error) {
	if s.google == nil {
		return nil, ErrGoogleSignInDisabled
	}
	if credential == "" {
		return nil, ErrMissingIDToken
	}
	profile, err := s.google.Verify(ctx, credential)
	if err != nil {
		if errors.Is(err, oauth.ErrInvalidToken) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("verify google token: %w", err)
	}
	if profile.Email == "" || !profile.EmailVerified {
		return nil, ErrInvalidCredentials
	}

	user, err := s.findOrCreateGoogleUser(ctx, profile)
	if err != nil {
		return nil, err
	}
	token, err := s.generateToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &dto.AuthResponse{Token: token, User: toUserResponse(user)}, nil
}

func (s *AuthService) findOrCreateGoogleUser(ctx context.Context, profile *oauth.GoogleProfile) (*model.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, profile.Email)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user != nil {
		return user, nil
	}

	name := profile.Name
	if name == "" {
		name = profile.Email
	}
	user = &model.User{Name: name, Email: profile.Email, Role: model.RoleUser}
	err = s.userRepo.Create(ctx, user)
	if errors.Is(err, repository.ErrDuplicateEmail) {
		// concurrent first sign-in
		user, err = s.userRepo.GetByEmail(ctx, profile.Email)
		if err == nil && user == nil {
			err = errors.New("user vanished after duplicate insert")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *AuthService) Me(ctx context.Context, id model.Identity) (*dto.UserResponse, error) {
	user, err := s.userRepo.GetByID(ctx, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	resp := toUserResponse(user)
	return &resp, nil
}

func (s *AuthService) generateToken(user *model.User) (string, error) {
	claims := jwt.MapClaims{
		"sub":   user.ID.String(),
		"role":  user.Role,
		"email": user.Email,
		"exp":   time.Now().Add(s.jwtExpiry).Unix(),
		"iat":   time.Now().Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

func toUserResponse(user *model.User) dto.UserResponse {
	return dto.UserResponse{
		ID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role,
	}
}
