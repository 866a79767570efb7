package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/peer-review-service/internal/auth"
	"github.com/spec-kit/peer-review-service/internal/domain"
	"github.com/spec-kit/peer-review-service/internal/events"
	"github.com/spec-kit/peer-review-service/internal/repository"
	apperrors "github.com/spec-kit/peer-review-service/pkg/util"
)

// ReviewView is a review enriched with the names of both parties.
type ReviewView struct {
	domain.Review
	State           domain.ReviewState
	ReviewerName    string
	ReviewerFaculty string
	ReviewedName    string
	ReviewedFaculty string
}

// ReviewPage is one page of enriched reviews.
type ReviewPage struct {
	Reviews    []ReviewView
	Pagination Pagination
}

// FeedQuery filters the public review feed. Zero values mean "any".
type FeedQuery struct {
	MinRating   int
	ProjectType domain.ProjectType
	Page        int
}

// SubmitReviewInput carries a new review.
type SubmitReviewInput struct {
	ReviewedEmail string
	Rating        int
	Comment       string
	ProjectType   domain.ProjectType
}

// EditReviewInput carries the replacement content of a review.
type EditReviewInput struct {
	Rating      int
	Comment     string
	ProjectType domain.ProjectType
}

// Overview is the landing page summary.
type Overview struct {
	RecentReviews []ReviewView
	IdentityCount int64
	ReviewCount   int64
}

// ReviewService coordinates the review lifecycle.
type ReviewService struct {
	identities  repository.IdentityRepository
	reviews     repository.ReviewRepository
	eligibility *EligibilityChecker
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	now         func() time.Time
}

// ReviewDependencies bundles collaborators for the review service.
type ReviewDependencies struct {
	IdentityRepo repository.IdentityRepository
	ReviewRepo   repository.ReviewRepository
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
}

// NewReviewService builds the service.
func NewReviewService(deps ReviewDependencies) *ReviewService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewService{
		identities:  deps.IdentityRepo,
		reviews:     deps.ReviewRepo,
		eligibility: NewEligibilityChecker(deps.IdentityRepo, deps.ReviewRepo),
		dispatcher:  deps.Dispatcher,
		logger:      logger,
		now:         time.Now,
	}
}

// Submit creates a review from principal about the identity owning
// in.ReviewedEmail. Content is validated before any store access.
func (s *ReviewService) Submit(ctx context.Context, principal *auth.Principal, in SubmitReviewInput) (*domain.Review, error) {
	if err := auth.Authorize(principal, auth.OpCreateReview, auth.Target{}); err != nil {
		return nil, err
	}

	content, err := domain.NewReviewContent(in.Rating, in.Comment, in.ProjectType)
	if err != nil {
		return nil, err
	}

	reviewed, err := s.eligibility.ResolveSubject(ctx, in.ReviewedEmail)
	if err != nil {
		return nil, err
	}

	ok, reason, err := s.eligibility.CanReview(ctx, principal.ID, reviewed)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, reason.Err()
	}

	now := reviewTime(s.now())
	review := &domain.Review{
		ID:         uuid.NewString(),
		ReviewerID: principal.ID,
		ReviewedID: reviewed.ID,
		CreatedAt:  now,
	}
	review.Apply(content, now)

	if err := s.reviews.Create(ctx, review); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewDuplicateReview()
		}
		return nil, storeError(err)
	}

	s.logger.Info("review created",
		zap.String("review_id", review.ID),
		zap.String("reviewer_id", review.ReviewerID),
		zap.String("reviewed_id", review.ReviewedID))
	s.emit(ctx, events.EventReviewCreated, principal, review)
	return review, nil
}

// reviewTime truncates to milliseconds, the precision every store keeps, so
// an edit stays distinguishable from creation after a round trip.
func reviewTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// Edit replaces rating, comment and project type of an existing review.
// Only its author or an administrator may edit it.
func (s *ReviewService) Edit(ctx context.Context, principal *auth.Principal, reviewID string, in EditReviewInput) (*domain.Review, error) {
	if principal == nil {
		return nil, auth.Authorize(nil, auth.OpEditReview, auth.Target{})
	}

	review, err := s.load(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(principal, auth.OpEditReview, auth.Target{ReviewAuthorID: review.ReviewerID}); err != nil {
		return nil, err
	}

	content, err := domain.NewReviewContent(in.Rating, in.Comment, in.ProjectType)
	if err != nil {
		return nil, err
	}

	now := reviewTime(s.now())
	if last := reviewTime(review.LastUpdatedAt); !now.After(last) {
		now = last.Add(time.Millisecond)
	}
	review.Apply(content, now)

	if err := s.reviews.Update(ctx, review); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("review", map[string]any{"id": reviewID})
		}
		return nil, storeError(err)
	}

	s.emit(ctx, events.EventReviewUpdated, principal, review)
	return review, nil
}

// Delete removes a review. Only its author or an administrator may delete it.
func (s *ReviewService) Delete(ctx context.Context, principal *auth.Principal, reviewID string) error {
	if principal == nil {
		return auth.Authorize(nil, auth.OpDeleteReview, auth.Target{})
	}

	review, err := s.load(ctx, reviewID)
	if err != nil {
		return err
	}
	if err := auth.Authorize(principal, auth.OpDeleteReview, auth.Target{ReviewAuthorID: review.ReviewerID}); err != nil {
		return err
	}
	return s.remove(ctx, principal, review)
}

// AdminDelete removes any review through the administration surface.
func (s *ReviewService) AdminDelete(ctx context.Context, principal *auth.Principal, reviewID string) error {
	if err := auth.Authorize(principal, auth.OpAdminDeleteReview, auth.Target{}); err != nil {
		return err
	}
	review, err := s.load(ctx, reviewID)
	if err != nil {
		return err
	}
	return s.remove(ctx, principal, review)
}

func (s *ReviewService) remove(ctx context.Context, principal *auth.Principal, review *domain.Review) error {
	if err := s.reviews.Delete(ctx, review.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFound("review", map[string]any{"id": review.ID})
		}
		return storeError(err)
	}

	s.logger.Info("review deleted", zap.String("review_id", review.ID), zap.String("actor_id", principal.ID))
	s.emit(ctx, events.EventReviewDeleted, principal, review)
	return nil
}

// Get returns one review with both parties' names.
func (s *ReviewService) Get(ctx context.Context, reviewID string) (*ReviewView, error) {
	review, err := s.load(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	views, err := s.enrich(ctx, []domain.Review{*review})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// Feed lists every review, newest first, optionally filtered.
func (s *ReviewService) Feed(ctx context.Context, q FeedQuery) (*ReviewPage, error) {
	details := map[string]any{}
	if q.MinRating != 0 && (q.MinRating < domain.MinRating || q.MinRating > domain.MaxRating) {
		details["rating"] = "must be between 1 and 5"
	}
	if !q.ProjectType.Valid() {
		details["project_type"] = "unknown project type"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid filter", details)
	}

	filter := repository.ReviewFilter{MinRating: q.MinRating, ProjectType: q.ProjectType}
	return s.page(ctx, filter, q.Page, FeedPageSize)
}

// ListOwn lists the reviews principal has written.
func (s *ReviewService) ListOwn(ctx context.Context, principal *auth.Principal, page int) (*ReviewPage, error) {
	if err := auth.Authorize(principal, auth.OpListOwnReviews, auth.Target{}); err != nil {
		return nil, err
	}
	return s.page(ctx, repository.ReviewFilter{ReviewerID: principal.ID}, page, OwnReviewsPageSize)
}

// AdminList lists every review for moderation.
func (s *ReviewService) AdminList(ctx context.Context, principal *auth.Principal, page int) (*ReviewPage, error) {
	if err := auth.Authorize(principal, auth.OpAdminListReviews, auth.Target{}); err != nil {
		return nil, err
	}
	return s.page(ctx, repository.ReviewFilter{}, page, AdminPageSize)
}

// Received lists every review identityID has received, newest first.
func (s *ReviewService) Received(ctx context.Context, identityID string) ([]ReviewView, error) {
	reviews, err := s.reviews.List(ctx, repository.ReviewFilter{ReviewedID: identityID})
	if err != nil {
		return nil, storeError(err)
	}
	return s.enrich(ctx, reviews)
}

// RecentWritten lists the latest reviews identityID has written.
func (s *ReviewService) RecentWritten(ctx context.Context, identityID string, limit int) ([]ReviewView, error) {
	reviews, err := s.reviews.List(ctx, repository.ReviewFilter{ReviewerID: identityID, Limit: limit})
	if err != nil {
		return nil, storeError(err)
	}
	return s.enrich(ctx, reviews)
}

// Recent lists the latest reviews across the platform.
func (s *ReviewService) Recent(ctx context.Context, limit int) ([]ReviewView, error) {
	reviews, err := s.reviews.List(ctx, repository.ReviewFilter{Limit: limit})
	if err != nil {
		return nil, storeError(err)
	}
	return s.enrich(ctx, reviews)
}

// Overview returns the landing summary.
func (s *ReviewService) Overview(ctx context.Context) (*Overview, error) {
	recent, err := s.Recent(ctx, OverviewRecentSize)
	if err != nil {
		return nil, err
	}
	identityCount, err := s.identities.Count(ctx, repository.IdentityFilter{})
	if err != nil {
		return nil, storeError(err)
	}
	reviewCount, err := s.reviews.Count(ctx, repository.ReviewFilter{})
	if err != nil {
		return nil, storeError(err)
	}
	return &Overview{RecentReviews: recent, IdentityCount: identityCount, ReviewCount: reviewCount}, nil
}

func (s *ReviewService) page(ctx context.Context, filter repository.ReviewFilter, page, perPage int) (*ReviewPage, error) {
	total, err := s.reviews.Count(ctx, filter)
	if err != nil {
		return nil, storeError(err)
	}
	page = clampPage(page, perPage, total)

	filter.Limit = perPage
	filter.Offset = (page - 1) * perPage
	reviews, err := s.reviews.List(ctx, filter)
	if err != nil {
		return nil, storeError(err)
	}

	views, err := s.enrich(ctx, reviews)
	if err != nil {
		return nil, err
	}
	return &ReviewPage{Reviews: views, Pagination: newPagination(page, perPage, total)}, nil
}

func (s *ReviewService) load(ctx context.Context, reviewID string) (*domain.Review, error) {
	review, err := s.reviews.GetByID(ctx, reviewID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("review", map[string]any{"id": reviewID})
	}
	if err != nil {
		return nil, storeError(err)
	}
	return review, nil
}

func (s *ReviewService) enrich(ctx context.Context, reviews []domain.Review) ([]ReviewView, error) {
	views := make([]ReviewView, 0, len(reviews))
	if len(reviews) == 0 {
		return views, nil
	}

	people, err := identityNames(ctx, s.identities, reviews)
	if err != nil {
		return nil, err
	}

	for _, r := range reviews {
		view := ReviewView{
			Review:       r,
			State:        r.State(),
			ReviewerName: UnknownUserName,
			ReviewedName: UnknownUserName,
		}
		if reviewer, ok := people[r.ReviewerID]; ok {
			view.ReviewerName = reviewer.Name
			view.ReviewerFaculty = reviewer.Faculty
		}
		if reviewed, ok := people[r.ReviewedID]; ok {
			view.ReviewedName = reviewed.Name
			view.ReviewedFaculty = reviewed.Faculty
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *ReviewService) emit(ctx context.Context, eventType events.EventType, principal *auth.Principal, review *domain.Review) {
	state := review.State()
	if eventType == events.EventReviewDeleted {
		state = domain.ReviewStateDeleted
	}
	publish(ctx, s.dispatcher, s.logger, eventType, review.ID, principal.ID, events.ReviewPayload{
		ReviewerID: review.ReviewerID,
		ReviewedID: review.ReviewedID,
		Rating:     review.Rating,
		State:      state,
		ByAdmin:    principal.IsAdmin() && principal.ID != review.ReviewerID,
	}, s.now().UTC())
}
