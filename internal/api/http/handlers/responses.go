package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/peer-review-service/internal/api/dto"
	"github.com/spec-kit/peer-review-service/internal/auth"
	"github.com/spec-kit/peer-review-service/internal/domain"
	"github.com/spec-kit/peer-review-service/internal/service"
	apperrors "github.com/spec-kit/peer-review-service/pkg/util"
)

func principal(c *fiber.Ctx) *auth.Principal {
	p, _ := auth.PrincipalFromContext(c)
	return p
}

func parseBody(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return dto.Validate(req)
}

func identityResponse(identity *domain.Identity) dto.IdentityResponse {
	return dto.IdentityResponse{
		ID:            identity.ID,
		Email:         identity.Email,
		Name:          identity.Name,
		Role:          string(identity.Role),
		EmailVerified: identity.EmailVerified,
		Faculty:       identity.Faculty,
		Department:    identity.Department,
		CreatedAt:     identity.CreatedAt,
	}
}

func identityList(identities []domain.Identity) []dto.IdentityResponse {
	out := make([]dto.IdentityResponse, 0, len(identities))
	for i := range identities {
		out = append(out, identityResponse(&identities[i]))
	}
	return out
}

func reviewResponse(review *domain.Review) dto.ReviewResponse {
	return dto.ReviewResponse{
		ID:            review.ID,
		ReviewerID:    review.ReviewerID,
		ReviewedID:    review.ReviewedID,
		Rating:        review.Rating,
		Comment:       review.Comment,
		ProjectType:   string(review.ProjectType),
		State:         string(review.State()),
		CreatedAt:     review.CreatedAt,
		LastUpdatedAt: review.LastUpdatedAt,
	}
}

func reviewViewResponse(view *service.ReviewView) dto.ReviewResponse {
	resp := reviewResponse(&view.Review)
	resp.State = string(view.State)
	resp.ReviewerName = view.ReviewerName
	resp.ReviewerFaculty = view.ReviewerFaculty
	resp.ReviewedName = view.ReviewedName
	resp.ReviewedFaculty = view.ReviewedFaculty
	return resp
}

func reviewList(views []service.ReviewView) []dto.ReviewResponse {
	out := make([]dto.ReviewResponse, 0, len(views))
	for i := range views {
		out = append(out, reviewViewResponse(&views[i]))
	}
	return out
}

func reviewPage(c *fiber.Ctx, page *service.ReviewPage) error {
	return c.JSON(fiber.Map{
		"data":       reviewList(page.Reviews),
		"pagination": page.Pagination,
	})
}

func statsResponse(stats domain.ProfileStats) dto.StatsResponse {
	return dto.StatsResponse{
		Count:         stats.Count,
		AverageRating: stats.AverageRating,
		Distribution:  stats.Distribution,
		Written:       stats.Written,
	}
}

func profileResponse(profile *service.Profile) dto.ProfileResponse {
	resp := dto.ProfileResponse{
		Identity:        identityResponse(profile.Identity),
		Stats:           statsResponse(profile.Stats),
		ReceivedReviews: reviewList(profile.Received),
	}
	if profile.Written != nil {
		resp.WrittenReviews = reviewList(profile.Written)
	}
	return resp
}
