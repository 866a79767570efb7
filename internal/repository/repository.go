package repository

import (
	"context"
	"errors"

	"github.com/spec-kit/peer-review-service/internal/domain"
)

var (
	// ErrNotFound is returned when a lookup matches no record.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate record")
)

// IdentityFilter narrows identity listings. Zero values mean "any".
type IdentityFilter struct {
	Search string
	Role   domain.Role
	Limit  int
	Offset int
}

// ReviewFilter narrows review listings. Zero values mean "any".
type ReviewFilter struct {
	ReviewerID  string
	ReviewedID  string
	MinRating   int
	ProjectType domain.ProjectType
	Limit       int
	Offset      int
}

// IdentityRepository encapsulates identity persistence. Emails are stored
// normalized and are unique.
type IdentityRepository interface {
	Create(ctx context.Context, identity *domain.Identity) error
	Update(ctx context.Context, identity *domain.Identity) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Identity, error)
	GetByEmail(ctx context.Context, email string) (*domain.Identity, error)
	GetByVerificationToken(ctx context.Context, token string) (*domain.Identity, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Identity, error)
	List(ctx context.Context, filter IdentityFilter) ([]domain.Identity, error)
	Count(ctx context.Context, filter IdentityFilter) (int64, error)
}

// ReviewRepository encapsulates review persistence. At most one review may
// exist per (reviewer, reviewed) pair; Create reports ErrDuplicate otherwise.
type ReviewRepository interface {
	Create(ctx context.Context, review *domain.Review) error
	Update(ctx context.Context, review *domain.Review) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Review, error)
	Exists(ctx context.Context, reviewerID, reviewedID string) (bool, error)
	List(ctx context.Context, filter ReviewFilter) ([]domain.Review, error)
	Count(ctx context.Context, filter ReviewFilter) (int64, error)
	RatingCounts(ctx context.Context, reviewedID string) (map[int]int64, error)
	DeleteByIdentity(ctx context.Context, identityID string) (int64, error)
}

// Pinger is implemented by backends that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}
