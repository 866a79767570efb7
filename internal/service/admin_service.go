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
	"github.com/spec-kit/peer-review-service/internal/domain"
	"github.com/spec-kit/peer-review-service/internal/events"
	"github.com/spec-kit/peer-review-service/internal/repository"
	apperrors "github.com/spec-kit/peer-review-service/pkg/util"
)

// Dashboard summarizes the platform for administrators.
type Dashboard struct {
	IdentityCount      int64
	ReviewCount        int64
	AdministratorCount int64
	RecentIdentities   []domain.Identity
	RecentReviews      []ReviewView
}

// IdentityQuery filters the administrator identity listing.
type IdentityQuery struct {
	Search string
	Role   domain.Role
	Page   int
}

// IdentityRow is an identity with its review bookkeeping.
type IdentityRow struct {
	Identity domain.Identity
	Counts   domain.IdentityCounts
}

// IdentityPage is one page of the administrator identity listing.
type IdentityPage struct {
	Identities []IdentityRow
	Pagination Pagination
}

// CreateIdentityInput carries an administrator-created account.
type CreateIdentityInput struct {
	Name       string
	Email      string
	Password   string
	Faculty    string
	Department string
}

// EditIdentityInput carries administrator changes to an account. An empty
// Password leaves the current one in place.
type EditIdentityInput struct {
	Name          string
	Email         string
	Faculty       string
	Department    string
	Role          domain.Role
	EmailVerified bool
	Password      string
}

// AdminService implements identity moderation.
type AdminService struct {
	identities repository.IdentityRepository
	reviews    repository.ReviewRepository
	reviewSvc  *ReviewService
	dispatcher events.Dispatcher
	logger     *zap.Logger
	bcryptCost int
	now        func() time.Time
}

// AdminDependencies bundles collaborators for the admin service.
type AdminDependencies struct {
	IdentityRepo  repository.IdentityRepository
	ReviewRepo    repository.ReviewRepository
	ReviewService *ReviewService
	Dispatcher    events.Dispatcher
	Logger        *zap.Logger
	BcryptCost    int
}

// NewAdminService builds the service.
func NewAdminService(deps AdminDependencies) *AdminService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminService{
		identities: deps.IdentityRepo,
		reviews:    deps.ReviewRepo,
		reviewSvc:  deps.ReviewService,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		bcryptCost: deps.BcryptCost,
		now:        time.Now,
	}
}

// Dashboard returns platform totals and the latest activity.
func (s *AdminService) Dashboard(ctx context.Context, principal *auth.Principal) (*Dashboard, error) {
	if err := auth.Authorize(principal, auth.OpAdminDashboard, auth.Target{}); err != nil {
		return nil, err
	}

	var d Dashboard
	var err error
	if d.IdentityCount, err = s.identities.Count(ctx, repository.IdentityFilter{}); err != nil {
		return nil, storeError(err)
	}
	if d.AdministratorCount, err = s.identities.Count(ctx, repository.IdentityFilter{Role: domain.RoleAdministrator}); err != nil {
		return nil, storeError(err)
	}
	if d.ReviewCount, err = s.reviews.Count(ctx, repository.ReviewFilter{}); err != nil {
		return nil, storeError(err)
	}
	if d.RecentIdentities, err = s.identities.List(ctx, repository.IdentityFilter{Limit: DashboardRecentSize}); err != nil {
		return nil, storeError(err)
	}
	if d.RecentReviews, err = s.reviewSvc.Recent(ctx, DashboardRecentSize); err != nil {
		return nil, err
	}
	return &d, nil
}

// ListIdentities pages through identities with their review counts.
func (s *AdminService) ListIdentities(ctx context.Context, principal *auth.Principal, q IdentityQuery) (*IdentityPage, error) {
	if err := auth.Authorize(principal, auth.OpAdminListIdentities, auth.Target{}); err != nil {
		return nil, err
	}
	if q.Role != "" && !q.Role.Valid() {
		return nil, apperrors.NewValidationError("invalid filter", map[string]any{"role": "unknown role"})
	}

	filter := repository.IdentityFilter{Search: q.Search, Role: q.Role}
	total, err := s.identities.Count(ctx, filter)
	if err != nil {
		return nil, storeError(err)
	}
	page := clampPage(q.Page, AdminPageSize, total)

	filter.Limit = AdminPageSize
	filter.Offset = (page - 1) * AdminPageSize
	found, err := s.identities.List(ctx, filter)
	if err != nil {
		return nil, storeError(err)
	}

	rows := make([]IdentityRow, 0, len(found))
	for _, identity := range found {
		counts, err := s.counts(ctx, identity.ID)
		if err != nil {
			return nil, err
		}
		rows = append(rows, IdentityRow{Identity: identity, Counts: counts})
	}
	return &IdentityPage{Identities: rows, Pagination: newPagination(page, AdminPageSize, total)}, nil
}

// CreateIdentity adds a verified ordinary identity.
func (s *AdminService) CreateIdentity(ctx context.Context, principal *auth.Principal, in CreateIdentityInput) (*domain.Identity, error) {
	if err := auth.Authorize(principal, auth.OpAdminCreateIdentity, auth.Target{}); err != nil {
		return nil, err
	}

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
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid identity", details)
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	identity := &domain.Identity{
		ID:            uuid.NewString(),
		Email:         email,
		Name:          name,
		PasswordHash:  hash,
		Role:          domain.RoleOrdinary,
		EmailVerified: true,
		Faculty:       strings.TrimSpace(in.Faculty),
		Department:    strings.TrimSpace(in.Department),
		CreatedAt:     s.now().UTC(),
	}
	if err := s.identities.Create(ctx, identity); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
		}
		return nil, storeError(err)
	}

	s.logger.Info("identity created by administrator", zap.String("identity_id", identity.ID), zap.String("actor_id", principal.ID))
	return identity, nil
}

// EditIdentity updates another identity's account fields.
func (s *AdminService) EditIdentity(ctx context.Context, principal *auth.Principal, identityID string, in EditIdentityInput) (*domain.Identity, error) {
	if err := auth.Authorize(principal, auth.OpAdminEditIdentity, auth.Target{IdentityID: identityID}); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	email := domain.NormalizeEmail(in.Email)
	details := map[string]any{}
	if n := utf8.RuneCountInString(name); n < MinNameLength || n > MaxNameLength {
		details["name"] = "must be between 2 and 100 characters"
	}
	if email == "" {
		details["email"] = "is required"
	}
	if !in.Role.Valid() {
		details["role"] = "unknown role"
	}
	if in.Password != "" && utf8.RuneCountInString(in.Password) < MinPasswordLength {
		details["password"] = "must be at least 6 characters"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid identity", details)
	}

	identity, err := s.load(ctx, identityID)
	if err != nil {
		return nil, err
	}

	identity.Name = name
	identity.Email = email
	identity.Faculty = strings.TrimSpace(in.Faculty)
	identity.Department = strings.TrimSpace(in.Department)
	identity.Role = in.Role
	identity.EmailVerified = in.EmailVerified
	if in.EmailVerified {
		identity.VerificationToken = ""
		identity.VerificationExpiresAt = nil
	}
	if in.Password != "" {
		hash, err := auth.HashPassword(in.Password, s.bcryptCost)
		if err != nil {
			return nil, err
		}
		identity.PasswordHash = hash
	}

	if err := s.identities.Update(ctx, identity); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.NewNotFound("identity", map[string]any{"id": identityID})
		}
		return nil, storeError(err)
	}

	s.logger.Info("identity updated by administrator", zap.String("identity_id", identity.ID), zap.String("actor_id", principal.ID))
	return identity, nil
}

// DeleteIdentity removes another identity and every review it wrote or received.
func (s *AdminService) DeleteIdentity(ctx context.Context, principal *auth.Principal, identityID string) (int64, error) {
	if err := auth.Authorize(principal, auth.OpAdminDeleteIdentity, auth.Target{IdentityID: identityID}); err != nil {
		return 0, err
	}

	identity, err := s.load(ctx, identityID)
	if err != nil {
		return 0, err
	}

	removed, err := s.reviews.DeleteByIdentity(ctx, identityID)
	if err != nil {
		return 0, storeError(err)
	}
	if err := s.identities.Delete(ctx, identityID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return removed, storeError(err)
	}

	s.logger.Info("identity deleted",
		zap.String("identity_id", identityID),
		zap.String("actor_id", principal.ID),
		zap.Int64("reviews_removed", removed))
	publish(ctx, s.dispatcher, s.logger, events.EventIdentityDeleted, identityID, principal.ID, events.IdentityDeletedPayload{
		Email:          identity.Email,
		ReviewsRemoved: removed,
	}, s.now().UTC())
	return removed, nil
}

func (s *AdminService) counts(ctx context.Context, identityID string) (domain.IdentityCounts, error) {
	received, err := s.reviews.Count(ctx, repository.ReviewFilter{ReviewedID: identityID})
	if err != nil {
		return domain.IdentityCounts{}, storeError(err)
	}
	written, err := s.reviews.Count(ctx, repository.ReviewFilter{ReviewerID: identityID})
	if err != nil {
		return domain.IdentityCounts{}, storeError(err)
	}
	return domain.IdentityCounts{Received: received, Written: written}, nil
}

func (s *AdminService) load(ctx context.Context, identityID string) (*domain.Identity, error) {
	identity, err := s.identities.GetByID(ctx, identityID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("identity", map[string]any{"id": identityID})
	}
	if err != nil {
		return nil, storeError(err)
	}
	return identity, nil
}
