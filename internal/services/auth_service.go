// Package services – AuthService
//
// AuthService registers accounts, verifies credentials, and issues bearer
// tokens. Passwords are stored as bcrypt hashes; tokens carry the user id
// and role.
package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-telehealth-backend/internal/auth"
	"github.com/tbourn/go-telehealth-backend/internal/domain"
	"github.com/tbourn/go-telehealth-backend/internal/repo"
)

const minPasswordRunes = 6

var validate = validator.New()

// TokenIssuer is the subset of *auth.TokenIssuer the service needs.
type TokenIssuer interface {
	Issue(userID, role string) (string, error)
}

// RegisterInput is the account creation payload.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string // patient (default) or doctor
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// AuthService implements account registration and login.
type AuthService struct {
	DB         *gorm.DB
	Tokens     TokenIssuer
	BcryptCost int
}

// Register validates in, creates the user, and returns a token for it.
// Admin accounts cannot be self-registered.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	ctx, span := otel.Tracer("services/AuthService").Start(ctx, "Register")
	defer span.End()

	name := strings.TrimSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	role := strings.ToLower(strings.TrimSpace(in.Role))
	if role == "" {
		role = domain.RolePatient
	}
	span.SetAttributes(attribute.String("user.role", role))

	switch {
	case name == "" || email == "":
		return nil, invalid("name and email are required")
	case validate.Var(email, "email") != nil:
		return nil, invalid("invalid email")
	case utf8.RuneCountInString(in.Password) < minPasswordRunes:
		return nil, invalid("password must be at least 6 characters")
	case role != domain.RolePatient && role != domain.RoleDoctor:
		return nil, invalid("role must be patient or doctor")
	}

	hash, err := auth.HashPassword(in.Password, s.BcryptCost)
	if err != nil {
		return nil, err
	}
	u, err := repo.CreateUser(ctx, s.DB, name, email, hash, role)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return s.result(u)
}

// Login checks credentials and returns a fresh token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	ctx, span := otel.Tracer("services/AuthService").Start(ctx, "Login")
	defer span.End()

	if strings.TrimSpace(email) == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	u, err := repo.GetUserByEmail(ctx, s.DB, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return s.result(u)
}

// Me returns the account for userID.
func (s *AuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	ctx, span := otel.Tracer("services/AuthService").Start(ctx, "Me",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	u, err := repo.GetUser(ctx, s.DB, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func (s *AuthService) result(u *domain.User) (*AuthResult, error) {
	tok, err := s.Tokens.Issue(u.ID, u.Role)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: tok, User: u}, nil
}
