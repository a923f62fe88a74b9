package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Jaydeep869/Counter-Finger-Game/internal/auth"
	"github.com/Jaydeep869/Counter-Finger-Game/internal/domain"
)

// AuthService handles registration, login and identity lookups.
type AuthService struct {
	users      UserStore
	tokens     *auth.TokenService
	bcryptCost int
	logger     *slog.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(users UserStore, tokens *auth.TokenService, bcryptCost int, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:      users,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// Register creates a user and returns it with a fresh bearer token.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*domain.User, string, error) {
	if username == "" || email == "" || password == "" {
		return nil, "", domain.ErrInvalidRequest
	}

	if _, err := s.users.FindUserByEmail(ctx, email); err == nil {
		return nil, "", domain.ErrUserExists
	} else if !domain.IsNotFoundError(err) {
		return nil, "", fmt.Errorf("checking email: %w", err)
	}
	if _, err := s.users.FindUserByUsername(ctx, username); err == nil {
		return nil, "", domain.ErrUserExists
	} else if !domain.IsNotFoundError(err) {
		return nil, "", fmt.Errorf("checking username: %w", err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, "", fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now()
	user := &domain.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issuing token: %w", err)
	}

	s.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	return user, token, nil
}

// Login verifies credentials and returns the user with a fresh token.
// Every failure is reported as invalid credentials so a caller cannot
// probe which emails exist.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	if email == "" || password == "" {
		return nil, "", domain.ErrInvalidCredentials
	}

	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, "", domain.ErrInvalidCredentials
	}

	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, "", domain.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issuing token: %w", err)
	}

	return user, token, nil
}

// CurrentUser resolves the authenticated user's record.
func (s *AuthService) CurrentUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolving user: %w", err)
	}
	return user, nil
}
