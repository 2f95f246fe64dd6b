package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"muadati/internal/auth"
	"muadati/internal/config"
	"muadati/internal/database"
	"muadati/internal/domain"
	"muadati/internal/metrics"
	"muadati/internal/models"

	"github.com/rs/zerolog"
)

type RegisterInput struct {
	Name     string      `json:"name" validate:"required,max=100"`
	Email    string      `json:"email" validate:"required,loose_email"`
	Phone    string      `json:"phone" validate:"required,phone"`
	Password string      `json:"password" validate:"required,min=6"`
	Role     models.Role `json:"role" validate:"required,oneof=owner customer"`
	City     string      `json:"city" validate:"required"`
}

type LoginInput struct {
	EmailOrPhone string `json:"emailOrPhone" validate:"required"`
	Password     string `json:"password" validate:"required"`
}

// Session is what register and login hand back to the client.
type Session struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

type AuthService struct {
	users    domain.UserRepository
	sessions domain.SessionRepository
	tokens   *auth.TokenManager
	cfg      config.AuthConfig
	logger   *zerolog.Logger
}

func NewAuthService(users domain.UserRepository, sessions domain.SessionRepository, tokens *auth.TokenManager, cfg config.AuthConfig, logger *zerolog.Logger) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		cfg:      cfg,
		logger:   logger,
	}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	in.City = strings.TrimSpace(in.City)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, domain.Internal("failed to register", err)
	}

	user := &models.User{
		Name:         in.Name,
		Email:        in.Email,
		Phone:        in.Phone,
		PasswordHash: hash,
		Role:         in.Role,
		City:         in.City,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		switch {
		case errors.Is(err, database.ErrDuplicateEmail):
			return nil, domain.Validation("email is already registered")
		case errors.Is(err, database.ErrDuplicatePhone):
			return nil, domain.Validation("phone number is already registered")
		}
		return nil, domain.Internal("failed to register", err)
	}

	s.logger.Info().Int64("user_id", user.ID).Str("role", string(user.Role)).Msg("user registered")
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, in LoginInput, clientKey string) (*Session, error) {
	in.EmailOrPhone = strings.TrimSpace(in.EmailOrPhone)
	if in.EmailOrPhone == "" || in.Password == "" {
		return nil, domain.Validation("please enter your email or phone and password")
	}

	limitKey := "login:" + strings.ToLower(in.EmailOrPhone) + ":" + clientKey
	if s.sessions != nil && s.cfg.LoginAttempts > 0 {
		allowed, err := s.sessions.CheckRateLimit(ctx, limitKey, s.cfg.LoginAttempts, s.cfg.LoginWindow)
		if err != nil {
			s.logger.Warn().Err(err).Msg("login rate limit check failed")
		} else if !allowed {
			s.logger.Warn().Str("client", clientKey).Msg("login attempts exceeded")
			return nil, domain.RateLimited("too many login attempts, try again later")
		}
	}

	user, err := s.users.GetUserByLogin(ctx, in.EmailOrPhone)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			metrics.IncLoginFailure()
			return nil, domain.Unauthorized("invalid credentials")
		}
		return nil, domain.Internal("failed to log in", err)
	}

	if err := auth.CheckPassword(user.PasswordHash, in.Password); err != nil {
		metrics.IncLoginFailure()
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("stored password hash unreadable")
		}
		return nil, domain.Unauthorized("invalid credentials")
	}

	if s.sessions != nil {
		if err := s.sessions.ResetRateLimit(ctx, limitKey); err != nil {
			s.logger.Warn().Err(err).Msg("reset login rate limit failed")
		}
	}
	return s.issue(user)
}

// Authenticate resolves a bearer token to a live, non-revoked user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, *auth.Claims, error) {
	if token == "" {
		return nil, nil, domain.Unauthorized("not authorized to access this resource")
	}
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, nil, domain.Unauthorized("invalid token")
	}

	if s.sessions != nil && claims.ID != "" {
		revoked, err := s.sessions.IsTokenRevoked(ctx, claims.ID)
		if err != nil {
			return nil, nil, domain.Internal("failed to verify token", err)
		}
		if revoked {
			return nil, nil, domain.Unauthorized("invalid token")
		}
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil, domain.Unauthorized("user not found")
		}
		return nil, nil, domain.Internal("failed to load user", err)
	}
	return user, claims, nil
}

func (s *AuthService) Me(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, domain.NotFound("user not found")
		}
		return nil, domain.Internal("failed to load user", err)
	}
	return user, nil
}

// Logout revokes the token id for the rest of its lifetime.
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	if s.sessions == nil || claims == nil || claims.ID == "" {
		return nil
	}
	ttl := time.Duration(0)
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if err := s.sessions.RevokeToken(ctx, claims.ID, ttl); err != nil {
		return domain.Internal("failed to log out", err)
	}
	return nil
}

func (s *AuthService) issue(user *models.User) (*Session, error) {
	token, _, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, domain.Internal("failed to issue token", err)
	}
	return &Session{User: user, Token: token}, nil
}
