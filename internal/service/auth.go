package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/utafrali/shopease/internal/auth"
	"github.com/utafrali/shopease/internal/domain"
	"github.com/utafrali/shopease/internal/gate"
	"github.com/utafrali/shopease/internal/repository"
	apperrors "github.com/utafrali/shopease/pkg/errors"
)

// bcryptCost is the cost factor for bcrypt password hashing.
const bcryptCost = 12

// MinPasswordLength is the shortest password Register accepts.
const MinPasswordLength = 6

// Messages shown on the login and register forms.
const (
	msgFillAllFields      = "Please fill in all fields."
	msgInvalidCredentials = "Invalid email or password."
	msgPasswordTooShort   = "Password must be at least 6 characters long."
	msgPasswordMismatch   = "Passwords do not match."
	msgEmailTaken         = "This email address is already registered."
)

// LoginInput holds the login form.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	// From is the view the login page was opened from, if any.
	From string `json:"from,omitempty"`
}

// RegisterInput holds the registration form.
type RegisterInput struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// AuthResult is a signed-in session and where the client should land next.
type AuthResult struct {
	User       *domain.User `json:"user"`
	Token      string       `json:"token"`
	ExpiresAt  time.Time    `json:"expires_at"`
	RedirectTo string       `json:"redirect_to"`
}

// AuthService implements login and registration.
type AuthService struct {
	users    repository.UserRepository
	tokens   *auth.TokenManager
	gate     *gate.Gate
	logger   *slog.Logger
	hashCost int
}

// NewAuthService creates a new auth service.
func NewAuthService(users repository.UserRepository, tokens *auth.TokenManager, g *gate.Gate, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:    users,
		tokens:   tokens,
		gate:     g,
		logger:   logger,
		hashCost: bcryptCost,
	}
}

// Login checks the credentials and returns a token plus the post-login
// target remembered for the session.
func (s *AuthService) Login(ctx context.Context, sessionID string, input LoginInput) (*AuthResult, error) {
	email := strings.TrimSpace(input.Email)
	if email == "" || input.Password == "" {
		return nil, apperrors.InvalidInput(msgFillAllFields)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized(msgInvalidCredentials)
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, apperrors.Unauthorized(msgInvalidCredentials)
	}

	result, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	target, err := s.gate.PostLoginTarget(ctx, sessionID, input.From)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to read post-login target",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}
	result.RedirectTo = target

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID),
		slog.String("redirect_to", target),
	)
	return result, nil
}

// Register creates a customer account and signs it in. New accounts always
// land on the home view.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.TrimSpace(input.Email)
	if name == "" || email == "" || input.Password == "" || input.ConfirmPassword == "" {
		return nil, apperrors.InvalidInput(msgFillAllFields)
	}
	if len(input.Password) < MinPasswordLength {
		return nil, apperrors.InvalidInput(msgPasswordTooShort)
	}
	if input.Password != input.ConfirmPassword {
		return nil, apperrors.InvalidInput(msgPasswordMismatch)
	}

	user, err := s.createUser(ctx, name, email, input.Password, domain.RoleCustomer)
	if err != nil {
		return nil, err
	}

	result, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	result.RedirectTo = gate.HomePath

	s.logger.InfoContext(ctx, "user registered", slog.String("user_id", user.ID))
	return result, nil
}

// CurrentUser returns the account behind an authenticated request.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// EnsureAdmins creates an admin account for each email that has none yet.
func (s *AuthService) EnsureAdmins(ctx context.Context, emails []string, password string) error {
	if len(emails) == 0 {
		return nil
	}
	if len(password) < MinPasswordLength {
		return apperrors.InvalidInput("admin password must be at least 6 characters long")
	}

	for _, email := range emails {
		_, err := s.users.GetByEmail(ctx, email)
		if err == nil {
			continue
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("get admin %s: %w", email, err)
		}
		name, _, _ := strings.Cut(email, "@")
		if _, err := s.createUser(ctx, name, email, password, domain.RoleAdmin); err != nil {
			return fmt.Errorf("create admin %s: %w", email, err)
		}
		s.logger.InfoContext(ctx, "admin account created", slog.String("email", email))
	}
	return nil
}

func (s *AuthService) createUser(ctx context.Context, name, email, password, role string) (*domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			return nil, &apperrors.AppError{
				Code:    "ALREADY_EXISTS",
				Message: msgEmailTaken,
				Status:  apperrors.HTTPStatus(err),
				Err:     apperrors.ErrAlreadyExists,
			}
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *AuthService) issue(user *domain.User) (*AuthResult, error) {
	token, expiresAt, err := s.tokens.Generate(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &AuthResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}
