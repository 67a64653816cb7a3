package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/domain"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// RequireClient ensures an approved client is authenticated.
func RequireClient() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.SubjectType != domain.SubjectTypeClient || principal.Client == nil {
			return apperrors.NewForbidden("client account required")
		}
		return c.Next()
	}
}

// RequireSuperAdmin ensures the caller is a platform operator.
func RequireSuperAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.SubjectType != domain.SubjectTypeSuperAdmin || principal.SuperAdmin == nil {
			return apperrors.NewForbidden("super admin role required")
		}
		return c.Next()
	}
}

// RequireAnyRole ensures caller is authenticated (client or super admin).
func RequireAnyRole() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewNotAuthenticated()
		}
		return c.Next()
	}
}
