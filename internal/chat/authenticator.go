package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// TokenParser validates bearer tokens.
type TokenParser interface {
	ParseToken(token string) (*auth.Claims, error)
}

// Authenticator resolves a raw socket token to an identity.
type Authenticator struct {
	tokens  TokenParser
	clients auth.ClientLookup
	admins  auth.SuperAdminLookup
}

// NewAuthenticator constructs the authenticator.
func NewAuthenticator(tokens TokenParser, clients auth.ClientLookup, admins auth.SuperAdminLookup) *Authenticator {
	return &Authenticator{tokens: tokens, clients: clients, admins: admins}
}

// Authenticate verifies the token and resolves its subject, trying clients
// before operators. Unapproved clients fail with ACCOUNT_INACTIVE.
func (a *Authenticator) Authenticate(ctx context.Context, rawToken string) (domain.Identity, error) {
	token := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(rawToken), "Bearer "))
	if token == "" {
		return domain.Identity{}, apperrors.NewUnauthorized("authentication token required")
	}

	claims, err := a.tokens.ParseToken(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return domain.Identity{}, apperrors.NewUnauthorized("token expired")
		}
		return domain.Identity{}, apperrors.NewUnauthorized("invalid token")
	}

	client, err := a.clients.GetByID(ctx, claims.SubjectID)
	switch {
	case err == nil:
		if !client.Approved() {
			return domain.Identity{}, apperrors.NewAccountInactive("account is not active")
		}
		return domain.IdentityOf(client), nil
	case !errors.Is(err, pgx.ErrNoRows):
		return domain.Identity{}, apperrors.NewInternalError(err)
	}

	admin, err := a.admins.GetByID(ctx, claims.SubjectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Identity{}, apperrors.NewUnauthorized("user not found")
		}
		return domain.Identity{}, apperrors.NewInternalError(err)
	}
	return domain.IdentityOf(admin), nil
}
