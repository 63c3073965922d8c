package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pillcare/pillcare/internal/platform/auth"
	"github.com/pillcare/pillcare/internal/platform/notification"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrInactive           = errors.New("user is inactive")
	ErrWrongPassword      = errors.New("current password is incorrect")
	ErrSelfDeactivate     = errors.New("cannot deactivate your own account")
)

// Mailer sends a templated email. notification.Notifier satisfies it.
type Mailer interface {
	Send(ctx context.Context, templateID, recipient string, data map[string]string) error
}

type Service struct {
	repo        Repository
	tokens      *auth.TokenIssuer
	revocations auth.RevocationStore
	mailer      Mailer
	logger      zerolog.Logger
}

func NewService(repo Repository, tokens *auth.TokenIssuer, revocations auth.RevocationStore, mailer Mailer, logger zerolog.Logger) *Service {
	return &Service{
		repo:        repo,
		tokens:      tokens,
		revocations: revocations,
		mailer:      mailer,
		logger:      logger.With().Str("component", "account").Logger(),
	}
}

func (s *Service) create(ctx context.Context, email, name, password, role string, phone *string) (*User, error) {
	hashed, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &User{
		Email:          normalizeEmail(email),
		Name:           strings.TrimSpace(name),
		HashedPassword: hashed,
		Role:           role,
		IsActive:       true,
		Phone:          phone,
		Timezone:       DefaultTimezone,
		Language:       DefaultLanguage,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info().Str("user_id", u.ID.String()).Str("role", role).Msg("user registered")
	return u, nil
}

// Register creates an account and sends a welcome email. Delivery failures
// are logged, not returned.
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*User, error) {
	role := req.Role
	if role == "" {
		role = auth.RoleCaregiver
	}
	u, err := s.create(ctx, req.Email, req.Name, req.Password, role, req.Phone)
	if err != nil {
		return nil, err
	}
	if s.mailer != nil {
		if err := s.mailer.Send(ctx, notification.TemplateWelcome, u.Email, map[string]string{"name": u.Name}); err != nil {
			s.logger.Warn().Err(err).Str("user_id", u.ID.String()).Msg("welcome email not sent")
		}
	}
	return u, nil
}

// CreateAdmin provisions an administrator. It is reachable from the CLI only.
func (s *Service) CreateAdmin(ctx context.Context, email, name, password string) (*User, error) {
	return s.create(ctx, email, name, password, auth.RoleAdmin, nil)
}

func (s *Service) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	u, err := s.repo.GetByEmail(ctx, normalizeEmail(req.Email))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := auth.CheckPassword(u.HashedPassword, req.Password); err != nil {
		s.logger.Warn().Str("user_id", u.ID.String()).Msg("failed login")
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, ErrInactive
	}
	tok, err := s.tokens.Issue(u.ID.String(), u.Email, u.Role)
	if err != nil {
		return nil, err
	}
	if err := s.repo.TouchLastLogin(ctx, u.ID); err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}
	now := time.Now()
	u.LastLogin = &now
	return &LoginResponse{
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
		ExpiresIn:   tok.ExpiresIn,
		User:        u,
	}, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req *UpdateRequest) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	req.apply(u)
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) ChangePassword(ctx context.Context, id uuid.UUID, req *ChangePasswordRequest) error {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := auth.CheckPassword(u.HashedPassword, req.CurrentPassword); err != nil {
		return ErrWrongPassword
	}
	hashed, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.repo.SetPassword(ctx, id, hashed); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", id.String()).Msg("password changed")
	return nil
}

// Logout revokes the token identified by jti until it expires.
func (s *Service) Logout(ctx context.Context, jti string, userID uuid.UUID, expiresAt time.Time) error {
	if jti == "" || s.revocations == nil {
		return nil
	}
	if err := s.revocations.Revoke(ctx, jti, userID.String(), expiresAt); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	s.logger.Info().Str("user_id", userID.String()).Msg("user logged out")
	return nil
}

func (s *Service) List(ctx context.Context, skip, limit int) ([]*User, int, error) {
	return s.repo.List(ctx, skip, limit)
}

// IsActive reports whether userID may keep using the API. It backs the
// per-request account check in auth.JWTMiddleware.
func (s *Service) IsActive(ctx context.Context, userID string) (bool, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return false, auth.ErrUnknownUser
	}
	u, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, auth.ErrUnknownUser
	}
	if err != nil {
		return false, err
	}
	return u.IsActive, nil
}

// ToggleActive flips whether the user may log in and returns the new state.
func (s *Service) ToggleActive(ctx context.Context, caller, id uuid.UUID) (*User, error) {
	if caller == id {
		return nil, ErrSelfDeactivate
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u.IsActive = !u.IsActive
	if err := s.repo.SetActive(ctx, id, u.IsActive); err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", id.String()).Bool("active", u.IsActive).Msg("user status changed")
	return u, nil
}
