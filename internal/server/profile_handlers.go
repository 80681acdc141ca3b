package server

import (
	"github.com/aslbekqoziboyev/aiverselabs/internal/models"
	"github.com/aslbekqoziboyev/aiverselabs/internal/service"

	"github.com/gofiber/fiber/v2"
)

// UpdateProfileRequest is the body of PATCH /api/profiles/me. Omitted fields are left unchanged.
type UpdateProfileRequest struct {
	Username *string `json:"username"`
	FullName *string `json:"full_name"`
}

// GetMyProfile returns the caller's profile.
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	profile, err := s.profileService.Me(c.UserContext(), sessionFrom(c))
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	return c.JSON(profile)
}

// GetProfile returns another user's public profile.
func (s *Server) GetProfile(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	profile, err := s.profileService.Get(c.UserContext(), id)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	return c.JSON(profile.Public())
}

func (s *Server) ListProfiles(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	profiles, err := s.profileService.List(c.UserContext(), c.Query("q"), page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	out := make([]models.PublicProfile, len(profiles))
	for i, p := range profiles {
		out[i] = p.Public()
	}
	return c.JSON(out)
}

// UpdateMyProfile edits the caller's username and full name.
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	profile, err := s.profileService.UpdateMe(c.UserContext(), sessionFrom(c), service.UpdateProfileInput{
		Username: req.Username,
		FullName: req.FullName,
	})
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	return c.JSON(profile)
}

// UploadAvatar replaces the caller's avatar with the "avatar" form file.
func (s *Server) UploadAvatar(c *fiber.Ctx) error {
	file, err := c.FormFile("avatar")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("No file uploaded"))
	}
	content, err := readFormFile(file)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Could not read uploaded file"))
	}
	profile, err := s.profileService.UploadAvatar(c.UserContext(), sessionFrom(c), service.AvatarInput{
		Filename:    file.Filename,
		ContentType: file.Header.Get(fiber.HeaderContentType),
		Content:     content,
	})
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	return c.JSON(profile)
}
