package service

import (
	"context"
	"strconv"

	"github.com/spec-kit/peer-review-service/internal/domain"
	"github.com/spec-kit/peer-review-service/internal/repository"
)

// ReviewAggregator computes rating statistics from the review store.
type ReviewAggregator struct {
	reviews repository.ReviewRepository
}

// NewReviewAggregator builds the aggregator.
func NewReviewAggregator(reviews repository.ReviewRepository) *ReviewAggregator {
	return &ReviewAggregator{reviews: reviews}
}

// StatsFor summarizes the reviews identityID has received.
func (a *ReviewAggregator) StatsFor(ctx context.Context, identityID string) (domain.ReviewStats, error) {
	counts, err := a.reviews.RatingCounts(ctx, identityID)
	if err != nil {
		return domain.ReviewStats{}, storeError(err)
	}
	return Summarize(counts), nil
}

// ProfileStats adds the number of reviews identityID has written.
func (a *ReviewAggregator) ProfileStats(ctx context.Context, identityID string) (domain.ProfileStats, error) {
	stats, err := a.StatsFor(ctx, identityID)
	if err != nil {
		return domain.ProfileStats{}, err
	}
	written, err := a.reviews.Count(ctx, repository.ReviewFilter{ReviewerID: identityID})
	if err != nil {
		return domain.ProfileStats{}, storeError(err)
	}
	return domain.ProfileStats{ReviewStats: stats, Written: written}, nil
}

// Summarize turns per-rating counts into stats. The average is rounded to
// one decimal and is 0 when there are no reviews; every rating 1..5 is
// present in the distribution.
func Summarize(counts map[int]int64) domain.ReviewStats {
	dist := domain.EmptyDistribution()
	var total, sum int64
	for rating := domain.MinRating; rating <= domain.MaxRating; rating++ {
		n := counts[rating]
		dist[rating] = n
		total += n
		sum += int64(rating) * n
	}

	stats := domain.ReviewStats{Count: total, Distribution: dist}
	if total > 0 {
		stats.AverageRating = roundTenth(float64(sum) / float64(total))
	}
	return stats
}

// roundTenth rounds to one decimal, breaking exact ties to even: 4.25 -> 4.2.
func roundTenth(v float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 1, 64), 64)
	if err != nil {
		return v
	}
	return r
}
