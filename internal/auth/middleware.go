package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	SubjectType domain.SubjectType
	Client      *domain.Client
	SuperAdmin  *domain.SuperAdmin
}

// Identity returns the caller's public identity.
func (p *Principal) Identity() domain.Identity {
	if p.Client != nil {
		return domain.IdentityOf(p.Client)
	}
	return domain.IdentityOf(p.SuperAdmin)
}

// ClientLookup resolves client accounts by id.
type ClientLookup interface {
	GetByID(ctx context.Context, id string) (*domain.Client, error)
}

// SuperAdminLookup resolves operator accounts by id.
type SuperAdminLookup interface {
	GetByID(ctx context.Context, id string) (*domain.SuperAdmin, error)
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens  *TokenManager
	clients ClientLookup
	admins  SuperAdminLookup
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, clients ClientLookup, admins SuperAdminLookup) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, clients: clients, admins: admins}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return apperrors.NewUnauthorized("token expired")
		}
		return apperrors.NewUnauthorized("invalid token")
	}

	principal := &Principal{SubjectType: claims.Subject}

	switch claims.Subject {
	case domain.SubjectTypeClient:
		client, err := m.clients.GetByID(c.UserContext(), claims.SubjectID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewUnauthorized("client not found")
			}
			return apperrors.MapError(err)
		}
		if !client.Approved() {
			return apperrors.NewAccountInactive("account is not active")
		}
		principal.Client = client
	case domain.SubjectTypeSuperAdmin:
		admin, err := m.admins.GetByID(c.UserContext(), claims.SubjectID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewUnauthorized("admin not found")
			}
			return apperrors.MapError(err)
		}
		principal.SuperAdmin = admin
	default:
		return apperrors.NewUnauthorized("unknown subject")
	}

	c.Locals(principalKey, principal)
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
