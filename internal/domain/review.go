package domain

import (
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	apperrors "github.com/spec-kit/peer-review-service/pkg/util"
)

// Review field bounds.
const (
	MinRating        = 1
	MaxRating        = 5
	MinCommentLength = 10
	MaxCommentLength = 1000
)

// ProjectType tags the kind of collaboration a review is about.
type ProjectType string

const (
	ProjectTypeNone          ProjectType = ""
	ProjectTypeCourseProject ProjectType = "course_project"
	ProjectTypeTeamWork      ProjectType = "team_work"
	ProjectTypeHomework      ProjectType = "homework"
	ProjectTypeLabExercise   ProjectType = "lab_exercise"
	ProjectTypeResearch      ProjectType = "research"
	ProjectTypeOther         ProjectType = "other"
)

// ProjectTypes lists every non-empty project type.
var ProjectTypes = []ProjectType{
	ProjectTypeCourseProject,
	ProjectTypeTeamWork,
	ProjectTypeHomework,
	ProjectTypeLabExercise,
	ProjectTypeResearch,
	ProjectTypeOther,
}

// Valid reports whether p is empty or one of ProjectTypes.
func (p ProjectType) Valid() bool {
	if p == ProjectTypeNone {
		return true
	}
	for _, known := range ProjectTypes {
		if p == known {
			return true
		}
	}
	return false
}

// ReviewState enumerates the lifecycle states of a review.
type ReviewState string

const (
	ReviewStateDraft     ReviewState = "draft"
	ReviewStatePersisted ReviewState = "persisted"
	ReviewStateEdited    ReviewState = "edited"
	ReviewStateDeleted   ReviewState = "deleted"
)

// Review is a rating and comment authored by one identity about another.
type Review struct {
	ID            string
	ReviewerID    string
	ReviewedID    string
	Rating        int
	Comment       string
	ProjectType   ProjectType
	CreatedAt     time.Time
	LastUpdatedAt time.Time
}

// State derives the lifecycle state of a stored review.
func (r *Review) State() ReviewState {
	if r == nil || r.ID == "" {
		return ReviewStateDraft
	}
	if r.LastUpdatedAt.After(r.CreatedAt) {
		return ReviewStateEdited
	}
	return ReviewStatePersisted
}

// ReviewContent holds the mutable part of a review.
type ReviewContent struct {
	Rating      int
	Comment     string
	ProjectType ProjectType
}

var commentPolicy = bluemonday.StrictPolicy()

// SanitizeComment strips markup from user supplied text and returns plain
// text: entities the policy escapes are decoded again.
func SanitizeComment(raw string) string {
	return strings.TrimSpace(html.UnescapeString(commentPolicy.Sanitize(raw)))
}

// NewReviewContent sanitizes the comment and validates all fields. Nothing
// is returned on failure, so callers never reach the store with bad input.
func NewReviewContent(rating int, comment string, projectType ProjectType) (ReviewContent, error) {
	details := map[string]any{}

	if rating < MinRating || rating > MaxRating {
		details["rating"] = "must be between 1 and 5"
	}

	clean := SanitizeComment(comment)
	if n := utf8.RuneCountInString(clean); n < MinCommentLength || n > MaxCommentLength {
		details["comment"] = "must be between 10 and 1000 characters"
	}

	if !projectType.Valid() {
		details["project_type"] = "unknown project type"
	}

	if len(details) > 0 {
		return ReviewContent{}, apperrors.NewValidationError("invalid review", details)
	}
	return ReviewContent{Rating: rating, Comment: clean, ProjectType: projectType}, nil
}

// Apply copies content onto the review and advances LastUpdatedAt.
func (r *Review) Apply(content ReviewContent, now time.Time) {
	r.Rating = content.Rating
	r.Comment = content.Comment
	r.ProjectType = content.ProjectType
	r.LastUpdatedAt = now
}
