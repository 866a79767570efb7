package events

import (
	"time"

	"github.com/spec-kit/peer-review-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventIdentityRegistered    EventType = "identity_registered"
	EventVerificationRequested EventType = "verification_requested"
	EventIdentityVerified      EventType = "identity_verified"
	EventIdentityDeleted       EventType = "identity_deleted"
	EventReviewCreated         EventType = "review_created"
	EventReviewUpdated         EventType = "review_updated"
	EventReviewDeleted         EventType = "review_deleted"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	SubjectID string    `json:"subject_id"`
	ActorID   string    `json:"actor_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// VerificationPayload carries what the mail relay needs to send a verification link.
type VerificationPayload struct {
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	VerifyURL string    `json:"verify_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IdentityDeletedPayload payload.
type IdentityDeletedPayload struct {
	Email          string `json:"email"`
	ReviewsRemoved int64  `json:"reviews_removed"`
}

// ReviewPayload payload. ByAdmin is set when an administrator acted on a
// review they did not write.
type ReviewPayload struct {
	ReviewerID string             `json:"reviewer_id"`
	ReviewedID string             `json:"reviewed_id"`
	Rating     int                `json:"rating"`
	State      domain.ReviewState `json:"state"`
	ByAdmin    bool               `json:"by_admin"`
}
