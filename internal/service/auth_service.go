package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/peer-review-service/internal/auth"
	"github.com/spec-kit/peer-review-service/internal/config"
	"github.com/spec-kit/peer-review-service/internal/domain"
	"github.com/spec-kit/peer-review-service/internal/events"
	"github.com/spec-kit/peer-review-service/internal/repository"
	apperrors "github.com/spec-kit/peer-review-service/pkg/util"
)

// Account field bounds.
const (
	MinNameLength     = 2
	MaxNameLength     = 100
	MinPasswordLength = 6
)

// RegisterInput carries a self-registration.
type RegisterInput struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
	Faculty         string
	Department      string
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Identity    *domain.Identity
	AccessToken string
	Token       domain.Token
}

// AuthService coordinates registration, login and account credentials.
type AuthService struct {
	identities      repository.IdentityRepository
	tokens          *auth.TokenManager
	revocations     auth.RevocationStore
	dispatcher      events.Dispatcher
	logger          *zap.Logger
	bcryptCost      int
	verificationTTL time.Duration
	autoVerify      bool
	verifyOnLogin   bool
	verifyURLPrefix string
	now             func() time.Time
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	IdentityRepo repository.IdentityRepository
	Tokens       *auth.TokenManager
	Revocations  auth.RevocationStore
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
}

// NewAuthService builds the service. Without a mail broker, new identities
// are verified at registration; in development, unverified identities are
// verified on login.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		identities:      deps.IdentityRepo,
		tokens:          deps.Tokens,
		revocations:     deps.Revocations,
		dispatcher:      deps.Dispatcher,
		logger:          logger,
		bcryptCost:      cfg.Auth.BcryptCost,
		verificationTTL: time.Duration(cfg.Auth.VerificationTTLMinutes) * time.Minute,
		autoVerify:      !cfg.Notification.Enabled(),
		verifyOnLogin:   cfg.App.IsDevelopment(),
		verifyURLPrefix: cfg.App.PublicURL + "/auth/verify-email/",
		now:             time.Now,
	}
}

// Register creates an ordinary identity.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.Identity, error) {
	name := strings.TrimSpace(in.Name)
	email := domain.NormalizeEmail(in.Email)

	details := map[string]any{}
	if n := utf8.RuneCountInString(name); n < MinNameLength || n > MaxNameLength {
		details["name"] = "must be between 2 and 100 characters"
	}
	if email == "" {
		details["email"] = "is required"
	}
	if utf8.RuneCountInString(in.Password) < MinPasswordLength {
		details["password"] = "must be at least 6 characters"
	}
	if in.ConfirmPassword != in.Password {
		details["confirm_password"] = "does not match"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid registration", details)
	}

	if _, err := s.identities.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, storeError(err)
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	identity := &domain.Identity{
		ID:            uuid.NewString(),
		Email:         email,
		Name:          name,
		PasswordHash:  hash,
		Role:          domain.RoleOrdinary,
		EmailVerified: s.autoVerify,
		Faculty:       strings.TrimSpace(in.Faculty),
		Department:    strings.TrimSpace(in.Department),
		CreatedAt:     now,
	}
	if !identity.EmailVerified {
		s.issueVerification(identity, now)
	}

	if err := s.identities.Create(ctx, identity); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
		}
		return nil, storeError(err)
	}

	s.logger.Info("identity registered", zap.String("identity_id", identity.ID), zap.Bool("verified", identity.EmailVerified))
	publish(ctx, s.dispatcher, s.logger, events.EventIdentityRegistered, identity.ID, identity.ID, nil, now)
	if !identity.EmailVerified {
		s.requestVerification(ctx, identity, now)
	}
	return identity, nil
}

// Login checks credentials and issues an access token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	identity, err := s.identities.GetByEmail(ctx, domain.NormalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewUnauthorized("invalid email or password")
	}
	if err != nil {
		return nil, storeError(err)
	}
	if !auth.PasswordMatches(identity.PasswordHash, password) {
		return nil, apperrors.NewUnauthorized("invalid email or password")
	}

	if !identity.EmailVerified {
		if !s.verifyOnLogin {
			if identity.VerificationExpiresAt == nil || s.now().After(*identity.VerificationExpiresAt) {
				now := s.now().UTC()
				s.issueVerification(identity, now)
				if err := s.identities.Update(ctx, identity); err != nil {
					return nil, storeError(err)
				}
				s.requestVerification(ctx, identity, now)
			}
			return nil, apperrors.NewForbidden("email address not verified")
		}
		identity.EmailVerified = true
		identity.VerificationToken = ""
		identity.VerificationExpiresAt = nil
		if err := s.identities.Update(ctx, identity); err != nil {
			return nil, storeError(err)
		}
		s.logger.Info("identity verified on login", zap.String("identity_id", identity.ID))
	}

	raw, token, err := s.tokens.GenerateToken(identity)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &LoginResult{Identity: identity, AccessToken: raw, Token: token}, nil
}

// Logout revokes the principal's current token.
func (s *AuthService) Logout(ctx context.Context, principal *auth.Principal) error {
	if err := auth.Authorize(principal, auth.OpLogout, auth.Target{}); err != nil {
		return err
	}
	if s.revocations == nil {
		return nil
	}
	if err := s.revocations.Revoke(ctx, principal.TokenID, principal.TokenExpiresAt); err != nil {
		return apperrors.NewStoreUnavailable(err)
	}
	return nil
}

// VerifyEmail marks the identity owning token as verified.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*domain.Identity, error) {
	identity, err := s.identities.GetByVerificationToken(ctx, strings.TrimSpace(token))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("verification token", nil)
	}
	if err != nil {
		return nil, storeError(err)
	}

	now := s.now().UTC()
	if identity.VerificationExpiresAt != nil && now.After(*identity.VerificationExpiresAt) {
		return nil, apperrors.NewValidationError("verification link expired", map[string]any{"token": "expired"})
	}

	identity.EmailVerified = true
	identity.VerificationToken = ""
	identity.VerificationExpiresAt = nil
	if err := s.identities.Update(ctx, identity); err != nil {
		return nil, storeError(err)
	}

	publish(ctx, s.dispatcher, s.logger, events.EventIdentityVerified, identity.ID, identity.ID, nil, now)
	return identity, nil
}

// ResendVerification issues a fresh verification token for principal.
func (s *AuthService) ResendVerification(ctx context.Context, principal *auth.Principal) error {
	if err := auth.Authorize(principal, auth.OpResendVerification, auth.Target{}); err != nil {
		return err
	}

	identity, err := s.identities.GetByID(ctx, principal.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound("identity", nil)
	}
	if err != nil {
		return storeError(err)
	}
	if identity.EmailVerified {
		return apperrors.NewConflict("email address already verified", nil)
	}

	now := s.now().UTC()
	s.issueVerification(identity, now)
	if err := s.identities.Update(ctx, identity); err != nil {
		return storeError(err)
	}
	s.requestVerification(ctx, identity, now)
	return nil
}

// ChangePassword replaces principal's password after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, principal *auth.Principal, current, next, confirm string) error {
	if principal == nil {
		return auth.Authorize(nil, auth.OpChangeOwnPassword, auth.Target{})
	}
	if err := auth.Authorize(principal, auth.OpChangeOwnPassword, auth.Target{IdentityID: principal.ID}); err != nil {
		return err
	}

	details := map[string]any{}
	if utf8.RuneCountInString(next) < MinPasswordLength {
		details["new_password"] = "must be at least 6 characters"
	}
	if next != confirm {
		details["confirm_password"] = "does not match"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid password change", details)
	}

	identity, err := s.identities.GetByID(ctx, principal.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound("identity", nil)
	}
	if err != nil {
		return storeError(err)
	}
	if !auth.PasswordMatches(identity.PasswordHash, current) {
		return apperrors.NewValidationError("invalid password change", map[string]any{"current_password": "is incorrect"})
	}

	hash, err := auth.HashPassword(next, s.bcryptCost)
	if err != nil {
		return err
	}
	identity.PasswordHash = hash
	if err := s.identities.Update(ctx, identity); err != nil {
		return storeError(err)
	}
	return nil
}

// EnsureAdmin creates the configured administrator when it does not exist yet.
func (s *AuthService) EnsureAdmin(ctx context.Context, seed config.AdminSeedConfig) error {
	if seed.Password == "" {
		s.logger.Warn("ADMIN_PASSWORD not provided; skipping administrator seed")
		return nil
	}

	email := domain.NormalizeEmail(seed.Email)
	if _, err := s.identities.GetByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return storeError(err)
	}

	hash, err := auth.HashPassword(seed.Password, s.bcryptCost)
	if err != nil {
		return err
	}
	admin := &domain.Identity{
		ID:            uuid.NewString(),
		Email:         email,
		Name:          seed.Name,
		PasswordHash:  hash,
		Role:          domain.RoleAdministrator,
		EmailVerified: true,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.identities.Create(ctx, admin); err != nil && !errors.Is(err, repository.ErrDuplicate) {
		return storeError(err)
	}
	s.logger.Info("administrator seeded", zap.String("email", email))
	return nil
}

func (s *AuthService) issueVerification(identity *domain.Identity, now time.Time) {
	expires := now.Add(s.verificationTTL)
	identity.VerificationToken = uuid.NewString()
	identity.VerificationExpiresAt = &expires
}

func (s *AuthService) requestVerification(ctx context.Context, identity *domain.Identity, now time.Time) {
	payload := events.VerificationPayload{
		Email:     identity.Email,
		Name:      identity.Name,
		VerifyURL: s.verifyURLPrefix + identity.VerificationToken,
	}
	if identity.VerificationExpiresAt != nil {
		payload.ExpiresAt = *identity.VerificationExpiresAt
	}
	publish(ctx, s.dispatcher, s.logger, events.EventVerificationRequested, identity.ID, identity.ID, payload, now)
}
