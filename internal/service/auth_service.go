package service

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// AuthService coordinates registration, login and password reset flows.
type AuthService struct {
	clients    repository.ClientRepository
	admins     repository.SuperAdminRepository
	companies  repository.CompanyRepository
	otps       repository.OTPRepository
	dispatcher events.Dispatcher
	tokenMgr   *auth.TokenManager
	bcryptCost int
	otpTTL     time.Duration
	otpLength  int
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	ClientRepo     repository.ClientRepository
	SuperAdminRepo repository.SuperAdminRepository
	CompanyRepo    repository.CompanyRepository
	OTPRepo        repository.OTPRepository
	Dispatcher     events.Dispatcher
}

// RegisterClientInput describes a self-service sign-up.
type RegisterClientInput struct {
	Name      string
	Email     string
	Password  string
	CompanyID string
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	otpLength := cfg.Auth.OTPLength
	if otpLength < 4 || otpLength > 10 {
		otpLength = 6
	}
	return &AuthService{
		clients:    deps.ClientRepo,
		admins:     deps.SuperAdminRepo,
		companies:  deps.CompanyRepo,
		otps:       deps.OTPRepo,
		dispatcher: deps.Dispatcher,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost: cfg.Auth.BcryptCost,
		otpTTL:     time.Duration(cfg.Auth.OTPTTLMinutes) * time.Minute,
		otpLength:  otpLength,
	}
}

// RegisterClient creates a pending client account. An operator must approve
// it before the client can sign in.
func (s *AuthService) RegisterClient(ctx context.Context, input RegisterClientInput) (*domain.Client, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if _, err := s.clients.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	company, err := s.companies.GetByID(ctx, input.CompanyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("company", map[string]any{"companyId": input.CompanyID})
		}
		return nil, err
	}
	if !company.IsActive {
		return nil, apperrors.NewValidationError("company is not accepting registrations", nil)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	client := &domain.Client{
		Name:         strings.TrimSpace(input.Name),
		Email:        email,
		PasswordHash: hash,
		CompanyID:    company.ID,
		Status:       domain.ClientStatusPending,
	}
	if err := s.clients.Create(ctx, client); err != nil {
		return nil, err
	}
	return client, nil
}

// LoginClient authenticates an approved client.
func (s *AuthService) LoginClient(ctx context.Context, email, password string) (*domain.Client, string, time.Time, error) {
	client, err := s.clients.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, err
	}
	if err := auth.ComparePassword(client.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	if !client.Approved() {
		return nil, "", time.Time{}, apperrors.NewAccountInactive("account is " + string(client.Status))
	}
	token, exp, err := s.tokenMgr.GenerateToken(client.ID, domain.SubjectTypeClient)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return client, token, exp, nil
}

// LoginSuperAdmin authenticates an operator.
func (s *AuthService) LoginSuperAdmin(ctx context.Context, email, password string) (*domain.SuperAdmin, string, time.Time, error) {
	admin, err := s.admins.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, err
	}
	if err := auth.ComparePassword(admin.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	token, exp, err := s.tokenMgr.GenerateToken(admin.ID, domain.SubjectTypeSuperAdmin)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return admin, token, exp, nil
}

// RequestPasswordReset issues a one-time code for a known email. Unknown
// emails succeed silently so callers cannot enumerate accounts.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	known, err := s.accountExists(ctx, email)
	if err != nil || !known {
		return err
	}

	code, err := generateOTP(s.otpLength)
	if err != nil {
		return err
	}
	if err := s.otps.Save(ctx, email, code, s.otpTTL); err != nil {
		return err
	}
	return publishEvent(ctx, s.dispatcher, events.Event{
		Type: events.EventPasswordResetRequested,
		Payload: events.PasswordResetRequestedPayload{
			Email: email,
			Code:  code,
			TTL:   s.otpTTL,
		},
	})
}

// ResetPassword consumes the code and stores the new password hash for
// whichever account owns the email.
func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.otps.Consume(ctx, email, strings.TrimSpace(code)); err != nil {
		if errors.Is(err, repository.ErrOTPMismatch) {
			return apperrors.NewValidationError("invalid or expired code", map[string]any{"field": "code"})
		}
		return err
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}

	client, err := s.clients.GetByEmail(ctx, email)
	if err == nil {
		client.PasswordHash = hash
		return s.clients.Update(ctx, client)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	admin, err := s.admins.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("account", nil)
		}
		return err
	}
	admin.PasswordHash = hash
	return s.admins.Update(ctx, admin)
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) accountExists(ctx context.Context, email string) (bool, error) {
	if _, err := s.clients.GetByEmail(ctx, email); err == nil {
		return true, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return false, err
	}
	if _, err := s.admins.GetByEmail(ctx, email); err == nil {
		return true, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return false, err
	}
	return false, nil
}

func generateOTP(length int) (string, error) {
	var b strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
