package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/peer-review-service/internal/api/dto"
	"github.com/spec-kit/peer-review-service/internal/domain"
	"github.com/spec-kit/peer-review-service/internal/service"
	apperrors "github.com/spec-kit/peer-review-service/pkg/util"
)

// AdminHandler exposes the moderation endpoints under /admin.
type AdminHandler struct {
	admin   *service.AdminService
	reviews *service.ReviewService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(adminService *service.AdminService, reviewService *service.ReviewService) *AdminHandler {
	return &AdminHandler{admin: adminService, reviews: reviewService}
}

// Dashboard GET /admin/dashboard.
func (h *AdminHandler) Dashboard(c *fiber.Ctx) error {
	d, err := h.admin.Dashboard(c.UserContext(), principal(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.DashboardResponse{
		IdentityCount:      d.IdentityCount,
		ReviewCount:        d.ReviewCount,
		AdministratorCount: d.AdministratorCount,
		RecentIdentities:   identityList(d.RecentIdentities),
		RecentReviews:      reviewList(d.RecentReviews),
	}})
}

// ListIdentities GET /admin/identities.
func (h *AdminHandler) ListIdentities(c *fiber.Ctx) error {
	q := service.IdentityQuery{Search: c.Query("search"), Page: c.QueryInt("page", 1)}
	if raw := c.Query("role"); raw != "" {
		role, ok := domain.ParseRole(raw)
		if !ok {
			return apperrors.NewValidationError("invalid filter", map[string]any{"role": "unknown role"})
		}
		q.Role = role
	}

	page, err := h.admin.ListIdentities(c.UserContext(), principal(c), q)
	if err != nil {
		return err
	}

	rows := make([]dto.AdminIdentityResponse, 0, len(page.Identities))
	for i := range page.Identities {
		row := &page.Identities[i]
		rows = append(rows, dto.AdminIdentityResponse{
			IdentityResponse: identityResponse(&row.Identity),
			ReviewsReceived:  row.Counts.Received,
			ReviewsWritten:   row.Counts.Written,
		})
	}
	return c.JSON(fiber.Map{"data": rows, "pagination": page.Pagination})
}

// CreateIdentity POST /admin/identities.
func (h *AdminHandler) CreateIdentity(c *fiber.Ctx) error {
	var req dto.CreateIdentityRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	identity, err := h.admin.CreateIdentity(c.UserContext(), principal(c), service.CreateIdentityInput{
		Name:       req.Name,
		Email:      req.Email,
		Password:   req.Password,
		Faculty:    req.Faculty,
		Department: req.Department,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": identityResponse(identity)})
}

// EditIdentity PUT /admin/identities/:id.
func (h *AdminHandler) EditIdentity(c *fiber.Ctx) error {
	var req dto.EditIdentityRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	role, ok := domain.ParseRole(req.Role)
	if !ok {
		return apperrors.NewValidationError("invalid identity", map[string]any{"role": "unknown role"})
	}

	identity, err := h.admin.EditIdentity(c.UserContext(), principal(c), c.Params("id"), service.EditIdentityInput{
		Name:          req.Name,
		Email:         req.Email,
		Faculty:       req.Faculty,
		Department:    req.Department,
		Role:          role,
		EmailVerified: req.EmailVerified,
		Password:      req.Password,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": identityResponse(identity)})
}

// DeleteIdentity DELETE /admin/identities/:id.
func (h *AdminHandler) DeleteIdentity(c *fiber.Ctx) error {
	removed, err := h.admin.DeleteIdentity(c.UserContext(), principal(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"reviews_removed": removed}})
}

// ListReviews GET /admin/reviews.
func (h *AdminHandler) ListReviews(c *fiber.Ctx) error {
	page, err := h.reviews.AdminList(c.UserContext(), principal(c), c.QueryInt("page", 1))
	if err != nil {
		return err
	}
	return reviewPage(c, page)
}

// DeleteReview DELETE /admin/reviews/:id.
func (h *AdminHandler) DeleteReview(c *fiber.Ctx) error {
	if err := h.reviews.AdminDelete(c.UserContext(), principal(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
