package dto

// UpdateProfileRequest payload for PUT /profile.
type UpdateProfileRequest struct {
	Name       string `json:"name" validate:"required,max=100"`
	Faculty    string `json:"faculty" validate:"max=100"`
	Department string `json:"department" validate:"max=100"`
}

// CreateIdentityRequest payload for POST /admin/identities.
type CreateIdentityRequest struct {
	Name       string `json:"name" validate:"required,max=100"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=6"`
	Faculty    string `json:"faculty" validate:"max=100"`
	Department string `json:"department" validate:"max=100"`
}

// EditIdentityRequest payload for PUT /admin/identities/:id. An empty
// password keeps the current one.
type EditIdentityRequest struct {
	Name          string `json:"name" validate:"required,max=100"`
	Email         string `json:"email" validate:"required,email"`
	Faculty       string `json:"faculty" validate:"max=100"`
	Department    string `json:"department" validate:"max=100"`
	Role          string `json:"role" validate:"required"`
	EmailVerified bool   `json:"email_verified"`
	Password      string `json:"password" validate:"omitempty,min=6"`
}

// ProfileResponse is an identity with its review statistics.
type ProfileResponse struct {
	Identity        IdentityResponse `json:"identity"`
	Stats           StatsResponse    `json:"stats"`
	ReceivedReviews []ReviewResponse `json:"received_reviews"`
	WrittenReviews  []ReviewResponse `json:"written_reviews,omitempty"`
}

// AdminIdentityResponse adds review bookkeeping to an identity.
type AdminIdentityResponse struct {
	IdentityResponse
	ReviewsReceived int64 `json:"reviews_received"`
	ReviewsWritten  int64 `json:"reviews_written"`
}

// DashboardResponse is the administrator summary.
type DashboardResponse struct {
	IdentityCount      int64              `json:"identity_count"`
	ReviewCount        int64              `json:"review_count"`
	AdministratorCount int64              `json:"administrator_count"`
	RecentIdentities   []IdentityResponse `json:"recent_identities"`
	RecentReviews      []ReviewResponse   `json:"recent_reviews"`
}
