package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/spec-kit/peer-review-service/internal/domain"
)

// MemoryStore keeps identities and reviews in process. It backs the
// "memory" store driver and the service tests.
type MemoryStore struct {
	mu         sync.RWMutex
	identities map[string]domain.Identity
	reviews    map[string]domain.Review
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		identities: make(map[string]domain.Identity),
		reviews:    make(map[string]domain.Review),
	}
}

// Identities returns the identity view of the store.
func (s *MemoryStore) Identities() IdentityRepository {
	return &memoryIdentityRepository{store: s}
}

// Reviews returns the review view of the store.
func (s *MemoryStore) Reviews() ReviewRepository {
	return &memoryReviewRepository{store: s}
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

type memoryIdentityRepository struct {
	store *MemoryStore
}

func (r *memoryIdentityRepository) Create(_ context.Context, identity *domain.Identity) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.identities[identity.ID]; ok {
		return ErrDuplicate
	}
	if s.emailTakenLocked(identity.Email, identity.ID) {
		return ErrDuplicate
	}
	s.identities[identity.ID] = *identity
	return nil
}

func (r *memoryIdentityRepository) Update(_ context.Context, identity *domain.Identity) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.identities[identity.ID]; !ok {
		return ErrNotFound
	}
	if s.emailTakenLocked(identity.Email, identity.ID) {
		return ErrDuplicate
	}
	s.identities[identity.ID] = *identity
	return nil
}

func (r *memoryIdentityRepository) Delete(_ context.Context, id string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.identities[id]; !ok {
		return ErrNotFound
	}
	delete(s.identities, id)
	return nil
}

func (r *memoryIdentityRepository) GetByID(_ context.Context, id string) (*domain.Identity, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	identity, ok := s.identities[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &identity, nil
}

func (r *memoryIdentityRepository) GetByEmail(_ context.Context, email string) (*domain.Identity, error) {
	email = domain.NormalizeEmail(email)
	return r.findOne(func(i domain.Identity) bool { return i.Email == email })
}

func (r *memoryIdentityRepository) GetByVerificationToken(_ context.Context, token string) (*domain.Identity, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	return r.findOne(func(i domain.Identity) bool { return i.VerificationToken == token })
}

func (r *memoryIdentityRepository) GetByIDs(_ context.Context, ids []string) (map[string]*domain.Identity, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*domain.Identity, len(ids))
	for _, id := range ids {
		if identity, ok := s.identities[id]; ok {
			out[id] = &identity
		}
	}
	return out, nil
}

func (r *memoryIdentityRepository) List(_ context.Context, filter IdentityFilter) ([]domain.Identity, error) {
	matched := r.match(filter)
	return paginate(matched, filter.Limit, filter.Offset), nil
}

func (r *memoryIdentityRepository) Count(_ context.Context, filter IdentityFilter) (int64, error) {
	return int64(len(r.match(filter))), nil
}

func (r *memoryIdentityRepository) match(filter IdentityFilter) []domain.Identity {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	term := strings.ToLower(strings.TrimSpace(filter.Search))
	var out []domain.Identity
	for _, identity := range s.identities {
		if filter.Role != "" && identity.Role != filter.Role {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(identity.Name), term) &&
			!strings.Contains(strings.ToLower(identity.Email), term) {
			continue
		}
		out = append(out, identity)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r *memoryIdentityRepository) findOne(pred func(domain.Identity) bool) (*domain.Identity, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, identity := range s.identities {
		if pred(identity) {
			found := identity
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) emailTakenLocked(email, exceptID string) bool {
	for id, identity := range s.identities {
		if id != exceptID && identity.Email == email {
			return true
		}
	}
	return false
}

type memoryReviewRepository struct {
	store *MemoryStore
}

func (r *memoryReviewRepository) Create(_ context.Context, review *domain.Review) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reviews[review.ID]; ok {
		return ErrDuplicate
	}
	for _, existing := range s.reviews {
		if existing.ReviewerID == review.ReviewerID && existing.ReviewedID == review.ReviewedID {
			return ErrDuplicate
		}
	}
	s.reviews[review.ID] = *review
	return nil
}

func (r *memoryReviewRepository) Update(_ context.Context, review *domain.Review) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.reviews[review.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Rating = review.Rating
	existing.Comment = review.Comment
	existing.ProjectType = review.ProjectType
	existing.LastUpdatedAt = review.LastUpdatedAt
	s.reviews[review.ID] = existing
	return nil
}

func (r *memoryReviewRepository) Delete(_ context.Context, id string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reviews[id]; !ok {
		return ErrNotFound
	}
	delete(s.reviews, id)
	return nil
}

func (r *memoryReviewRepository) GetByID(_ context.Context, id string) (*domain.Review, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	review, ok := s.reviews[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &review, nil
}

func (r *memoryReviewRepository) Exists(_ context.Context, reviewerID, reviewedID string) (bool, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, review := range s.reviews {
		if review.ReviewerID == reviewerID && review.ReviewedID == reviewedID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryReviewRepository) List(_ context.Context, filter ReviewFilter) ([]domain.Review, error) {
	return paginate(r.match(filter), filter.Limit, filter.Offset), nil
}

func (r *memoryReviewRepository) Count(_ context.Context, filter ReviewFilter) (int64, error) {
	return int64(len(r.match(filter))), nil
}

func (r *memoryReviewRepository) RatingCounts(_ context.Context, reviewedID string) (map[int]int64, error) {
	counts := make(map[int]int64, domain.MaxRating)
	for _, review := range r.match(ReviewFilter{ReviewedID: reviewedID}) {
		counts[review.Rating]++
	}
	return counts, nil
}

func (r *memoryReviewRepository) DeleteByIdentity(_ context.Context, identityID string) (int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, review := range s.reviews {
		if review.ReviewerID == identityID || review.ReviewedID == identityID {
			delete(s.reviews, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *memoryReviewRepository) match(filter ReviewFilter) []domain.Review {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Review
	for _, review := range s.reviews {
		if filter.ReviewerID != "" && review.ReviewerID != filter.ReviewerID {
			continue
		}
		if filter.ReviewedID != "" && review.ReviewedID != filter.ReviewedID {
			continue
		}
		if filter.MinRating > 0 && review.Rating < filter.MinRating {
			continue
		}
		if filter.ProjectType != domain.ProjectTypeNone && review.ProjectType != filter.ProjectType {
			continue
		}
		out = append(out, review)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
