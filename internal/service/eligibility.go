package service

import (
	"context"
	"errors"
	"strings"

	"github.com/spec-kit/peer-review-service/internal/domain"
	"github.com/spec-kit/peer-review-service/internal/repository"
	apperrors "github.com/spec-kit/peer-review-service/pkg/util"
)

// ReasonCode explains why a review is not allowed.
type ReasonCode string

const (
	ReasonNone       ReasonCode = ""
	ReasonSelfReview ReasonCode = ReasonCode(apperrors.CodeSelfReview)
	ReasonDuplicate  ReasonCode = ReasonCode(apperrors.CodeDuplicateReview)
)

// Err converts a denial reason into its domain error.
func (r ReasonCode) Err() error {
	switch r {
	case ReasonSelfReview:
		return apperrors.NewSelfReviewDenied()
	case ReasonDuplicate:
		return apperrors.NewDuplicateReview()
	default:
		return nil
	}
}

// EligibilityChecker decides whether one identity may review another.
type EligibilityChecker struct {
	identities repository.IdentityRepository
	reviews    repository.ReviewRepository
}

// NewEligibilityChecker builds the checker.
func NewEligibilityChecker(identities repository.IdentityRepository, reviews repository.ReviewRepository) *EligibilityChecker {
	return &EligibilityChecker{identities: identities, reviews: reviews}
}

// ResolveSubject finds the identity to be reviewed by exact email.
func (e *EligibilityChecker) ResolveSubject(ctx context.Context, email string) (*domain.Identity, error) {
	normalized := domain.NormalizeEmail(email)
	if normalized == "" {
		return nil, apperrors.NewValidationError("invalid review", map[string]any{"reviewed_email": "is required"})
	}
	identity, err := e.identities.GetByEmail(ctx, normalized)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewSubjectNotFound(strings.TrimSpace(email))
	}
	if err != nil {
		return nil, storeError(err)
	}
	return identity, nil
}

// CanReview reports whether reviewerID may review reviewed. Self review is
// checked before the duplicate lookup.
func (e *EligibilityChecker) CanReview(ctx context.Context, reviewerID string, reviewed *domain.Identity) (bool, ReasonCode, error) {
	if reviewed.ID == reviewerID {
		return false, ReasonSelfReview, nil
	}
	exists, err := e.reviews.Exists(ctx, reviewerID, reviewed.ID)
	if err != nil {
		return false, ReasonNone, storeError(err)
	}
	if exists {
		return false, ReasonDuplicate, nil
	}
	return true, ReasonNone, nil
}
