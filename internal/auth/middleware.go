package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/deal-portal/internal/domain"
	apperrors "github.com/spec-kit/deal-portal/pkg/util/errorutil"
)

const (
	principalKey = "auth_principal"
	profileKey   = "auth_profile"
)

// ProfileLoader resolves the profile behind a token subject.
type ProfileLoader interface {
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens   *TokenManager
	profiles ProfileLoader
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, profiles ProfileLoader) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, profiles: profiles}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	if _, err := uuid.Parse(claims.Subject); err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	profile, err := m.profiles.GetByID(c.UserContext(), claims.Subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewUnauthorized("profile not found")
		}
		return apperrors.MapError(err)
	}

	c.Locals(profileKey, profile)
	c.Locals(principalKey, &domain.Principal{
		ID:       profile.ID,
		Role:     profile.Role,
		Email:    profile.Email,
		FullName: profile.FullName,
	})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated caller.
func PrincipalFromContext(c *fiber.Ctx) (*domain.Principal, bool) {
	principal, ok := c.Locals(principalKey).(*domain.Principal)
	return principal, ok && principal != nil
}

// ProfileFromContext retrieves the full profile of the authenticated caller.
func ProfileFromContext(c *fiber.Ctx) (*domain.Profile, bool) {
	profile, ok := c.Locals(profileKey).(*domain.Profile)
	return profile, ok && profile != nil
}
