package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/peer-review-service/internal/domain"
	"github.com/spec-kit/peer-review-service/internal/events"
	"github.com/spec-kit/peer-review-service/internal/repository"
	apperrors "github.com/spec-kit/peer-review-service/pkg/util"
)

// Page sizes per listing.
const (
	FeedPageSize        = 12
	OwnReviewsPageSize  = 10
	AdminPageSize       = 15
	SearchLimit         = 10
	RecentWrittenLimit  = 5
	DashboardRecentSize = 5
	OverviewRecentSize  = 3
)

// UnknownUserName is shown for identities that no longer exist.
const UnknownUserName = "Unknown user"

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

func normalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// clampPage keeps page within the pages that exist, so the offset derived
// from it cannot overflow.
func clampPage(page, perPage int, total int64) int {
	page = normalizePage(page)
	last := newPagination(1, perPage, total).TotalPages
	if last < 1 {
		last = 1
	}
	if page > last {
		return last
	}
	return page
}

func newPagination(page, perPage int, total int64) Pagination {
	pages := int((total + int64(perPage) - 1) / int64(perPage))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: pages}
}

// storeError wraps unexpected repository failures as STORE_UNAVAILABLE.
func storeError(err error) error {
	if err == nil {
		return nil
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	return apperrors.NewStoreUnavailable(err)
}

// publish emits an event; failures are logged and never fail the caller.
func publish(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, eventType events.EventType, subjectID, actorID string, payload any, now time.Time) {
	if dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		SubjectID: subjectID,
		ActorID:   actorID,
		Timestamp: now,
		Payload:   payload,
	}
	if err := dispatcher.Publish(ctx, event); err != nil && logger != nil {
		logger.Warn("publish event failed", zap.String("event_type", string(eventType)), zap.Error(err))
	}
}

// identityNames loads the identities referenced by reviews.
func identityNames(ctx context.Context, identities repository.IdentityRepository, reviews []domain.Review) (map[string]*domain.Identity, error) {
	seen := make(map[string]struct{}, len(reviews)*2)
	ids := make([]string, 0, len(reviews)*2)
	for _, r := range reviews {
		for _, id := range []string{r.ReviewerID, r.ReviewedID} {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	found, err := identities.GetByIDs(ctx, ids)
	if err != nil {
		return nil, storeError(err)
	}
	return found, nil
}
