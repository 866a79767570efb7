package dto

import "time"

// SubmitReviewRequest payload for POST /reviews.
type SubmitReviewRequest struct {
	ReviewedEmail string `json:"reviewed_email" validate:"required,email"`
	Rating        int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comment       string `json:"comment" validate:"required"`
	ProjectType   string `json:"project_type"`
}

// EditReviewRequest payload for PUT /reviews/:id.
type EditReviewRequest struct {
	Rating      int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comment     string `json:"comment" validate:"required"`
	ProjectType string `json:"project_type"`
}

// ReviewResponse is a review with both parties' display names.
type ReviewResponse struct {
	ID              string    `json:"id"`
	ReviewerID      string    `json:"reviewer_id"`
	ReviewedID      string    `json:"reviewed_id"`
	Rating          int       `json:"rating"`
	Comment         string    `json:"comment"`
	ProjectType     string    `json:"project_type,omitempty"`
	State           string    `json:"state"`
	ReviewerName    string    `json:"reviewer_name,omitempty"`
	ReviewerFaculty string    `json:"reviewer_faculty,omitempty"`
	ReviewedName    string    `json:"reviewed_name,omitempty"`
	ReviewedFaculty string    `json:"reviewed_faculty,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	LastUpdatedAt   time.Time `json:"last_updated_at"`
}

// StatsResponse summarizes the reviews an identity received.
type StatsResponse struct {
	Count         int64         `json:"count"`
	AverageRating float64       `json:"average_rating"`
	Distribution  map[int]int64 `json:"distribution"`
	Written       int64         `json:"written"`
}

// OverviewResponse is the landing summary.
type OverviewResponse struct {
	RecentReviews []ReviewResponse `json:"recent_reviews"`
	IdentityCount int64            `json:"identity_count"`
	ReviewCount   int64            `json:"review_count"`
}
