package service

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/peer-review-service/internal/domain"
	"github.com/spec-kit/peer-review-service/internal/events"
	"github.com/spec-kit/peer-review-service/internal/repository"
	apperrors "github.com/spec-kit/peer-review-service/pkg/util"
)

func TestSubmit_UpdatesSubjectStats(t *testing.T) {
	f := newFixture(t)
	alice := f.seed(t, "a", "alice@uni.edu", "Alice", domain.RoleOrdinary)
	f.seed(t, "b", "bob@uni.edu", "Bob", domain.RoleOrdinary)
	ctx := context.Background()

	review, err := f.reviewSvc.Submit(ctx, alice, SubmitReviewInput{
		ReviewedEmail: " Bob@Uni.edu ",
		Rating:        5,
		Comment:       testComment,
		ProjectType:   domain.ProjectTypeTeamWork,
	})
	require.NoError(t, err)
	assert.Equal(t, "a", review.ReviewerID)
	assert.Equal(t, "b", review.ReviewedID)
	assert.Equal(t, domain.ReviewStatePersisted, review.State())

	stats, err := NewReviewAggregator(f.reviews).StatsFor(ctx, "b")
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Count)
	assert.Equal(t, 5.0, stats.AverageRating)
	assert.Equal(t, map[int]int64{1: 0, 2: 0, 3: 0, 4: 0, 5: 1}, stats.Distribution)

	created := f.eventsOf(events.EventReviewCreated)
	require.Len(t, created, 1)
	assert.Equal(t, review.ID, created[0].SubjectID)
}

func TestSubmit_Denials(t *testing.T) {
	f := newFixture(t)
	alice := f.seed(t, "a", "alice@uni.edu", "Alice", domain.RoleOrdinary)
	f.seed(t, "b", "bob@uni.edu", "Bob", domain.RoleOrdinary)
	ctx := context.Background()

	in := SubmitReviewInput{ReviewedEmail: "bob@uni.edu", Rating: 4, Comment: testComment}
	_, err := f.reviewSvc.Submit(ctx, alice, in)
	require.NoError(t, err)

	_, err = f.reviewSvc.Submit(ctx, alice, in)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeDuplicateReview))

	in.ReviewedEmail = "alice@uni.edu"
	_, err = f.reviewSvc.Submit(ctx, alice, in)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeSelfReview))

	in.ReviewedEmail = "nobody@uni.edu"
	_, err = f.reviewSvc.Submit(ctx, alice, in)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeSubjectNotFound))

	_, err = f.reviewSvc.Submit(ctx, nil, in)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))

	count, err := f.reviews.Count(ctx, repository.ReviewFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestSubmit_ValidatesBeforeLookup(t *testing.T) {
	f := newFixture(t)
	alice := f.seed(t, "a", "alice@uni.edu", "Alice", domain.RoleOrdinary)

	_, err := f.reviewSvc.Submit(context.Background(), alice, SubmitReviewInput{
		ReviewedEmail: "nobody@uni.edu",
		Rating:        3,
		Comment:       "short",
	})
	require.Error(t, err)
	de := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CodeValidation, de.Code)
	assert.Contains(t, de.Details, "comment")

	count, err := f.reviews.Count(context.Background(), repository.ReviewFilter{})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSubmit_SanitizesComment(t *testing.T) {
	f := newFixture(t)
	alice := f.seed(t, "a", "alice@uni.edu", "Alice", domain.RoleOrdinary)
	f.seed(t, "b", "bob@uni.edu", "Bob", domain.RoleOrdinary)

	review, err := f.reviewSvc.Submit(context.Background(), alice, SubmitReviewInput{
		ReviewedEmail: "bob@uni.edu",
		Rating:        4,
		Comment:       "<script>alert(1)</script>Solid work on the lab report",
	})
	require.NoError(t, err)
	assert.Equal(t, "Solid work on the lab report", review.Comment)
}

func TestEdit_SameMillisecondStillEdited(t *testing.T) {
	f := newFixture(t)
	alice := f.seed(t, "a", "alice@uni.edu", "Alice", domain.RoleOrdinary)
	f.seed(t, "b", "bob@uni.edu", "Bob", domain.RoleOrdinary)
	ctx := context.Background()

	created := time.Date(2024, 3, 1, 10, 0, 0, 400_000, time.UTC)
	f.reviewSvc.now = func() time.Time { return created }
	review, err := f.reviewSvc.Submit(ctx, alice, SubmitReviewInput{ReviewedEmail: "bob@uni.edu", Rating: 4, Comment: testComment})
	require.NoError(t, err)

	f.reviewSvc.now = func() time.Time { return created.Add(300 * time.Microsecond) }
	edited, err := f.reviewSvc.Edit(ctx, alice, review.ID, EditReviewInput{Rating: 3, Comment: testComment})
	require.NoError(t, err)

	// millisecond precision, as a document store keeps it
	stored := domain.Review{
		ID:            edited.ID,
		CreatedAt:     edited.CreatedAt.Truncate(time.Millisecond),
		LastUpdatedAt: edited.LastUpdatedAt.Truncate(time.Millisecond),
	}
	assert.Equal(t, domain.ReviewStateEdited, stored.State())
	assert.GreaterOrEqual(t, edited.LastUpdatedAt.Sub(edited.CreatedAt), time.Millisecond)
}

func TestEdit_OwnershipAndTimestamps(t *testing.T) {
	f := newFixture(t)
	alice := f.seed(t, "a", "alice@uni.edu", "Alice", domain.RoleOrdinary)
	bob := f.seed(t, "b", "bob@uni.edu", "Bob", domain.RoleOrdinary)
	admin := f.seed(t, "root", "root@uni.edu", "Root", domain.RoleAdministrator)
	ctx := context.Background()

	fixed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	f.reviewSvc.now = func() time.Time { return fixed }

	review, err := f.reviewSvc.Submit(ctx, alice, SubmitReviewInput{ReviewedEmail: "bob@uni.edu", Rating: 4, Comment: testComment})
	require.NoError(t, err)

	edit := EditReviewInput{Rating: 2, Comment: "Missed two of our planning meetings."}
	_, err = f.reviewSvc.Edit(ctx, bob, review.ID, edit)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = f.reviewSvc.Edit(ctx, nil, review.ID, edit)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))

	_, err = f.reviewSvc.Edit(ctx, alice, "missing", edit)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	edited, err := f.reviewSvc.Edit(ctx, admin, review.ID, edit)
	require.NoError(t, err)
	assert.Equal(t, 2, edited.Rating)
	assert.True(t, edited.LastUpdatedAt.After(review.CreatedAt))
	assert.Equal(t, domain.ReviewStateEdited, edited.State())
	assert.Equal(t, "a", edited.ReviewerID)

	updated := f.eventsOf(events.EventReviewUpdated)
	require.Len(t, updated, 1)
	payload, ok := updated[0].Payload.(events.ReviewPayload)
	require.True(t, ok)
	assert.True(t, payload.ByAdmin)

	_, err = f.reviewSvc.Edit(ctx, alice, review.ID, EditReviewInput{Rating: 9, Comment: testComment})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	stored, err := f.reviews.GetByID(ctx, review.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Rating)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	alice := f.seed(t, "a", "alice@uni.edu", "Alice", domain.RoleOrdinary)
	bob := f.seed(t, "b", "bob@uni.edu", "Bob", domain.RoleOrdinary)
	ctx := context.Background()

	review, err := f.reviewSvc.Submit(ctx, alice, SubmitReviewInput{ReviewedEmail: "bob@uni.edu", Rating: 4, Comment: testComment})
	require.NoError(t, err)

	err = f.reviewSvc.Delete(ctx, bob, review.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	err = f.reviewSvc.AdminDelete(ctx, alice, review.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	require.NoError(t, f.reviewSvc.Delete(ctx, alice, review.ID))
	err = f.reviewSvc.Delete(ctx, alice, review.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	deleted := f.eventsOf(events.EventReviewDeleted)
	require.Len(t, deleted, 1)
	assert.Equal(t, domain.ReviewStateDeleted, deleted[0].Payload.(events.ReviewPayload).State)

	stats, err := NewReviewAggregator(f.reviews).StatsFor(ctx, "b")
	require.NoError(t, err)
	assert.Zero(t, stats.Count)
	assert.Zero(t, stats.AverageRating)
}

func TestFeed_PaginatesAndFilters(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "subject", "subject@uni.edu", "Subject", domain.RoleOrdinary)
	ctx := context.Background()

	for i := 0; i < 13; i++ {
		reviewer := f.seed(t, fmt.Sprintf("r%02d", i), fmt.Sprintf("r%02d@uni.edu", i), fmt.Sprintf("Reviewer %d", i), domain.RoleOrdinary)
		projectType := domain.ProjectTypeHomework
		if i%2 == 0 {
			projectType = domain.ProjectTypeResearch
		}
		_, err := f.reviewSvc.Submit(ctx, reviewer, SubmitReviewInput{
			ReviewedEmail: "subject@uni.edu",
			Rating:        i%5 + 1,
			Comment:       testComment,
			ProjectType:   projectType,
		})
		require.NoError(t, err)
	}

	first, err := f.reviewSvc.Feed(ctx, FeedQuery{})
	require.NoError(t, err)
	assert.Len(t, first.Reviews, FeedPageSize)
	assert.Equal(t, Pagination{Page: 1, PerPage: 12, Total: 13, TotalPages: 2}, first.Pagination)
	assert.Equal(t, "Subject", first.Reviews[0].ReviewedName)

	second, err := f.reviewSvc.Feed(ctx, FeedQuery{Page: 2})
	require.NoError(t, err)
	assert.Len(t, second.Reviews, 1)

	beyond, err := f.reviewSvc.Feed(ctx, FeedQuery{Page: math.MaxInt})
	require.NoError(t, err)
	assert.Equal(t, 2, beyond.Pagination.Page)
	assert.Len(t, beyond.Reviews, 1)

	high, err := f.reviewSvc.Feed(ctx, FeedQuery{MinRating: 4})
	require.NoError(t, err)
	for _, r := range high.Reviews {
		assert.GreaterOrEqual(t, r.Rating, 4)
	}
	assert.EqualValues(t, 4, high.Pagination.Total)

	research, err := f.reviewSvc.Feed(ctx, FeedQuery{ProjectType: domain.ProjectTypeResearch})
	require.NoError(t, err)
	assert.EqualValues(t, 7, research.Pagination.Total)

	_, err = f.reviewSvc.Feed(ctx, FeedQuery{MinRating: 7})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	_, err = f.reviewSvc.Feed(ctx, FeedQuery{ProjectType: "thesis"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestListOwn(t *testing.T) {
	f := newFixture(t)
	alice := f.seed(t, "a", "alice@uni.edu", "Alice", domain.RoleOrdinary)
	f.seed(t, "b", "bob@uni.edu", "Bob", domain.RoleOrdinary)
	ctx := context.Background()

	_, err := f.reviewSvc.Submit(ctx, alice, SubmitReviewInput{ReviewedEmail: "bob@uni.edu", Rating: 3, Comment: testComment})
	require.NoError(t, err)

	page, err := f.reviewSvc.ListOwn(ctx, alice, 0)
	require.NoError(t, err)
	require.Len(t, page.Reviews, 1)
	assert.Equal(t, "Bob", page.Reviews[0].ReviewedName)
	assert.Equal(t, OwnReviewsPageSize, page.Pagination.PerPage)

	_, err = f.reviewSvc.ListOwn(ctx, nil, 1)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
}

func TestGet_UnknownParties(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "b", "bob@uni.edu", "Bob", domain.RoleOrdinary)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, f.reviews.Create(ctx, &domain.Review{
		ID: "r1", ReviewerID: "ghost", ReviewedID: "b", Rating: 3,
		Comment: testComment, CreatedAt: now, LastUpdatedAt: now,
	}))

	view, err := f.reviewSvc.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, UnknownUserName, view.ReviewerName)
	assert.Equal(t, "Bob", view.ReviewedName)

	_, err = f.reviewSvc.Get(ctx, "r2")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestOverview(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "subject", "subject@uni.edu", "Subject", domain.RoleOrdinary)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		reviewer := f.seed(t, fmt.Sprintf("r%d", i), fmt.Sprintf("r%d@uni.edu", i), "Reviewer", domain.RoleOrdinary)
		_, err := f.reviewSvc.Submit(ctx, reviewer, SubmitReviewInput{ReviewedEmail: "subject@uni.edu", Rating: 4, Comment: testComment})
		require.NoError(t, err)
	}

	overview, err := f.reviewSvc.Overview(ctx)
	require.NoError(t, err)
	assert.Len(t, overview.RecentReviews, OverviewRecentSize)
	assert.EqualValues(t, 5, overview.IdentityCount)
	assert.EqualValues(t, 4, overview.ReviewCount)
}

func TestSummarize(t *testing.T) {
	empty := Summarize(nil)
	assert.Zero(t, empty.Count)
	assert.Zero(t, empty.AverageRating)
	assert.Len(t, empty.Distribution, 5)

	stats := Summarize(map[int]int64{5: 2, 4: 1})
	assert.EqualValues(t, 3, stats.Count)
	assert.Equal(t, 4.7, stats.AverageRating)

	stats = Summarize(map[int]int64{1: 1, 2: 1})
	assert.Equal(t, 1.5, stats.AverageRating)

	stats = Summarize(map[int]int64{1: 1, 2: 2})
	assert.Equal(t, 1.7, stats.AverageRating)

	// exact ties round to even
	stats = Summarize(map[int]int64{4: 3, 5: 1})
	assert.Equal(t, 4.2, stats.AverageRating)

	stats = Summarize(map[int]int64{1: 3, 2: 1})
	assert.Equal(t, 1.2, stats.AverageRating)
}
