package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/peer-review-service/internal/domain"
	"github.com/spec-kit/peer-review-service/internal/repository"
	apperrors "github.com/spec-kit/peer-review-service/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller. It is resolved once per
// request and never modified afterwards.
type Principal struct {
	ID             string
	Email          string
	Name           string
	Role           domain.Role
	TokenID        string
	TokenExpiresAt time.Time
}

// IsAdmin reports whether the principal holds the administrator role.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == domain.RoleAdministrator
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens     *TokenManager
	identities repository.IdentityRepository
	revoked    RevocationStore
	logger     *zap.Logger
}

// NewAuthMiddleware constructs middleware. revoked may be nil.
func NewAuthMiddleware(tokens *TokenManager, identities repository.IdentityRepository, revoked RevocationStore, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, identities: identities, revoked: revoked, logger: logger}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}
	if err := m.authenticate(c, authHeader); err != nil {
		return err
	}
	return c.Next()
}

// Optional loads a principal when a bearer token is present and otherwise
// lets the request through anonymously.
func (m *AuthMiddleware) Optional(c *fiber.Ctx) error {
	if authHeader := c.Get(fiber.HeaderAuthorization); authHeader != "" {
		if err := m.authenticate(c, authHeader); err != nil {
			return err
		}
	}
	return c.Next()
}

func (m *AuthMiddleware) authenticate(c *fiber.Ctx, authHeader string) error {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	ctx := c.UserContext()
	if m.isRevoked(ctx, claims.ID) {
		return apperrors.NewUnauthorized("token has been revoked")
	}

	identity, err := m.identities.GetByID(ctx, claims.SubjectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewUnauthorized("identity no longer exists")
		}
		return apperrors.NewStoreUnavailable(err)
	}

	principal := &Principal{
		ID:      identity.ID,
		Email:   identity.Email,
		Name:    identity.Name,
		Role:    identity.Role,
		TokenID: claims.ID,
	}
	if claims.ExpiresAt != nil {
		principal.TokenExpiresAt = claims.ExpiresAt.Time
	}

	c.Locals(principalKey, principal)
	return nil
}

func (m *AuthMiddleware) isRevoked(ctx context.Context, tokenID string) bool {
	if m.revoked == nil {
		return false
	}
	revoked, err := m.revoked.IsRevoked(ctx, tokenID)
	if err != nil {
		m.logger.Warn("revocation check failed; accepting token", zap.Error(err))
		return false
	}
	return revoked
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

// WithPrincipal stores principal on the request context.
func WithPrincipal(c *fiber.Ctx, principal *Principal) {
	c.Locals(principalKey, principal)
}
