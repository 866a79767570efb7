package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/peer-review-service/internal/auth"
	"github.com/spec-kit/peer-review-service/internal/domain"
	"github.com/spec-kit/peer-review-service/internal/repository"
	apperrors "github.com/spec-kit/peer-review-service/pkg/util"
)

// Profile is an identity with its review statistics.
type Profile struct {
	Identity *domain.Identity
	Stats    domain.ProfileStats
	Received []ReviewView
	// Written is only filled for the caller's own profile.
	Written []ReviewView
}

// ProfileUpdate carries the fields an identity may change about itself.
type ProfileUpdate struct {
	Name       string
	Faculty    string
	Department string
}

// IdentityService serves profiles and identity search.
type IdentityService struct {
	identities repository.IdentityRepository
	reviews    *ReviewService
	aggregator *ReviewAggregator
	logger     *zap.Logger
}

// IdentityDependencies bundles collaborators for the identity service.
type IdentityDependencies struct {
	IdentityRepo  repository.IdentityRepository
	ReviewRepo    repository.ReviewRepository
	ReviewService *ReviewService
	Logger        *zap.Logger
}

// NewIdentityService builds the service.
func NewIdentityService(deps IdentityDependencies) *IdentityService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityService{
		identities: deps.IdentityRepo,
		reviews:    deps.ReviewService,
		aggregator: NewReviewAggregator(deps.ReviewRepo),
		logger:     logger,
	}
}

// PublicProfile returns any identity's profile with the reviews it received.
func (s *IdentityService) PublicProfile(ctx context.Context, principal *auth.Principal, identityID string) (*Profile, error) {
	if err := auth.Authorize(principal, auth.OpViewProfile, auth.Target{IdentityID: identityID}); err != nil {
		return nil, err
	}
	identity, err := s.load(ctx, identityID)
	if err != nil {
		return nil, err
	}
	return s.profile(ctx, identity, false)
}

// OwnProfile returns the caller's profile including its latest written reviews.
func (s *IdentityService) OwnProfile(ctx context.Context, principal *auth.Principal) (*Profile, error) {
	if principal == nil {
		return nil, auth.Authorize(nil, auth.OpEditOwnProfile, auth.Target{})
	}
	identity, err := s.load(ctx, principal.ID)
	if err != nil {
		return nil, err
	}
	return s.profile(ctx, identity, true)
}

// UpdateProfile changes the caller's name, faculty and department.
func (s *IdentityService) UpdateProfile(ctx context.Context, principal *auth.Principal, in ProfileUpdate) (*domain.Identity, error) {
	if principal == nil {
		return nil, auth.Authorize(nil, auth.OpEditOwnProfile, auth.Target{})
	}
	if err := auth.Authorize(principal, auth.OpEditOwnProfile, auth.Target{IdentityID: principal.ID}); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if n := utf8.RuneCountInString(name); n < MinNameLength || n > MaxNameLength {
		return nil, apperrors.NewValidationError("invalid profile", map[string]any{"name": "must be between 2 and 100 characters"})
	}

	identity, err := s.load(ctx, principal.ID)
	if err != nil {
		return nil, err
	}
	identity.Name = name
	identity.Faculty = strings.TrimSpace(in.Faculty)
	identity.Department = strings.TrimSpace(in.Department)

	if err := s.identities.Update(ctx, identity); err != nil {
		return nil, storeError(err)
	}
	return identity, nil
}

// Search finds up to SearchLimit identities whose name or email contains q.
// An empty query yields no results.
func (s *IdentityService) Search(ctx context.Context, principal *auth.Principal, q string) ([]domain.Identity, error) {
	if err := auth.Authorize(principal, auth.OpSearchIdentities, auth.Target{}); err != nil {
		return nil, err
	}
	q = strings.TrimSpace(q)
	if q == "" {
		return []domain.Identity{}, nil
	}
	found, err := s.identities.List(ctx, repository.IdentityFilter{Search: q, Limit: SearchLimit})
	if err != nil {
		return nil, storeError(err)
	}
	if found == nil {
		found = []domain.Identity{}
	}
	return found, nil
}

func (s *IdentityService) profile(ctx context.Context, identity *domain.Identity, own bool) (*Profile, error) {
	stats, err := s.aggregator.ProfileStats(ctx, identity.ID)
	if err != nil {
		return nil, err
	}
	received, err := s.reviews.Received(ctx, identity.ID)
	if err != nil {
		return nil, err
	}

	profile := &Profile{Identity: identity, Stats: stats, Received: received}
	if own {
		written, err := s.reviews.RecentWritten(ctx, identity.ID, RecentWrittenLimit)
		if err != nil {
			return nil, err
		}
		profile.Written = written
	}
	return profile, nil
}

func (s *IdentityService) load(ctx context.Context, identityID string) (*domain.Identity, error) {
	identity, err := s.identities.GetByID(ctx, identityID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("identity", map[string]any{"id": identityID})
	}
	if err != nil {
		return nil, storeError(err)
	}
	return identity, nil
}
