package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/peer-review-service/internal/api/dto"
	"github.com/spec-kit/peer-review-service/internal/domain"
	"github.com/spec-kit/peer-review-service/internal/service"
)

// ReviewsHandler manages review endpoints.
type ReviewsHandler struct {
	service *service.ReviewService
}

// NewReviewsHandler constructs handler.
func NewReviewsHandler(reviewService *service.ReviewService) *ReviewsHandler {
	return &ReviewsHandler{service: reviewService}
}

// Overview GET /overview.
func (h *ReviewsHandler) Overview(c *fiber.Ctx) error {
	overview, err := h.service.Overview(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.OverviewResponse{
		RecentReviews: reviewList(overview.RecentReviews),
		IdentityCount: overview.IdentityCount,
		ReviewCount:   overview.ReviewCount,
	}})
}

// Feed GET /reviews.
func (h *ReviewsHandler) Feed(c *fiber.Ctx) error {
	page, err := h.service.Feed(c.UserContext(), service.FeedQuery{
		MinRating:   c.QueryInt("rating", 0),
		ProjectType: domain.ProjectType(c.Query("project_type")),
		Page:        c.QueryInt("page", 1),
	})
	if err != nil {
		return err
	}
	return reviewPage(c, page)
}

// Get GET /reviews/:id.
func (h *ReviewsHandler) Get(c *fiber.Ctx) error {
	view, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": reviewViewResponse(view)})
}

// Submit POST /reviews.
func (h *ReviewsHandler) Submit(c *fiber.Ctx) error {
	var req dto.SubmitReviewRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	review, err := h.service.Submit(c.UserContext(), principal(c), service.SubmitReviewInput{
		ReviewedEmail: req.ReviewedEmail,
		Rating:        req.Rating,
		Comment:       req.Comment,
		ProjectType:   domain.ProjectType(req.ProjectType),
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": reviewResponse(review)})
}

// Edit PUT /reviews/:id.
func (h *ReviewsHandler) Edit(c *fiber.Ctx) error {
	var req dto.EditReviewRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	review, err := h.service.Edit(c.UserContext(), principal(c), c.Params("id"), service.EditReviewInput{
		Rating:      req.Rating,
		Comment:     req.Comment,
		ProjectType: domain.ProjectType(req.ProjectType),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": reviewResponse(review)})
}

// Delete DELETE /reviews/:id.
func (h *ReviewsHandler) Delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), principal(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ListOwn GET /me/reviews.
func (h *ReviewsHandler) ListOwn(c *fiber.Ctx) error {
	page, err := h.service.ListOwn(c.UserContext(), principal(c), c.QueryInt("page", 1))
	if err != nil {
		return err
	}
	return reviewPage(c, page)
}
