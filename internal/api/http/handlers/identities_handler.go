package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/peer-review-service/internal/api/dto"
	"github.com/spec-kit/peer-review-service/internal/service"
)

// IdentitiesHandler serves profiles and identity search.
type IdentitiesHandler struct {
	service *service.IdentityService
}

// NewIdentitiesHandler constructs handler.
func NewIdentitiesHandler(identityService *service.IdentityService) *IdentitiesHandler {
	return &IdentitiesHandler{service: identityService}
}

// Search GET /identities/search?q=.
func (h *IdentitiesHandler) Search(c *fiber.Ctx) error {
	found, err := h.service.Search(c.UserContext(), principal(c), c.Query("q"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": identityList(found)})
}

// Profile GET /identities/:id.
func (h *IdentitiesHandler) Profile(c *fiber.Ctx) error {
	profile, err := h.service.PublicProfile(c.UserContext(), principal(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": profileResponse(profile)})
}

// OwnProfile GET /profile.
func (h *IdentitiesHandler) OwnProfile(c *fiber.Ctx) error {
	profile, err := h.service.OwnProfile(c.UserContext(), principal(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": profileResponse(profile)})
}

// UpdateProfile PUT /profile.
func (h *IdentitiesHandler) UpdateProfile(c *fiber.Ctx) error {
	var req dto.UpdateProfileRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	identity, err := h.service.UpdateProfile(c.UserContext(), principal(c), service.ProfileUpdate{
		Name:       req.Name,
		Faculty:    req.Faculty,
		Department: req.Department,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": identityResponse(identity)})
}
