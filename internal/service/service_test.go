package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/peer-review-service/internal/auth"
	"github.com/spec-kit/peer-review-service/internal/domain"
	"github.com/spec-kit/peer-review-service/internal/events"
	"github.com/spec-kit/peer-review-service/internal/repository"
)

const testComment = "Reliable teammate, always delivered on time."

type fixture struct {
	identities repository.IdentityRepository
	reviews    repository.ReviewRepository
	dispatcher events.Dispatcher
	published  []events.Event

	reviewSvc   *ReviewService
	identitySvc *IdentityService
	adminSvc    *AdminService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	f := &fixture{
		identities: store.Identities(),
		reviews:    store.Reviews(),
		dispatcher: events.NewInMemoryDispatcher(zap.NewNop()),
	}
	for _, eventType := range []events.EventType{
		events.EventIdentityRegistered,
		events.EventVerificationRequested,
		events.EventIdentityVerified,
		events.EventIdentityDeleted,
		events.EventReviewCreated,
		events.EventReviewUpdated,
		events.EventReviewDeleted,
	} {
		f.dispatcher.Subscribe(eventType, func(_ context.Context, event events.Event) error {
			f.published = append(f.published, event)
			return nil
		})
	}

	f.reviewSvc = NewReviewService(ReviewDependencies{
		IdentityRepo: f.identities,
		ReviewRepo:   f.reviews,
		Dispatcher:   f.dispatcher,
		Logger:       zap.NewNop(),
	})
	f.identitySvc = NewIdentityService(IdentityDependencies{
		IdentityRepo:  f.identities,
		ReviewRepo:    f.reviews,
		ReviewService: f.reviewSvc,
	})
	f.adminSvc = NewAdminService(AdminDependencies{
		IdentityRepo:  f.identities,
		ReviewRepo:    f.reviews,
		ReviewService: f.reviewSvc,
		Dispatcher:    f.dispatcher,
		BcryptCost:    4,
	})
	return f
}

func (f *fixture) seed(t *testing.T, id, email, name string, role domain.Role) *auth.Principal {
	t.Helper()
	require.NoError(t, f.identities.Create(context.Background(), &domain.Identity{
		ID:            id,
		Email:         email,
		Name:          name,
		Role:          role,
		EmailVerified: true,
		Faculty:       "Engineering",
		CreatedAt:     time.Now().UTC(),
	}))
	return &auth.Principal{ID: id, Email: email, Name: name, Role: role}
}

func (f *fixture) eventsOf(eventType events.EventType) []events.Event {
	var out []events.Event
	for _, e := range f.published {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
