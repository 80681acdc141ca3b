package server

import (
	"github.com/aslbekqoziboyev/aiverselabs/internal/models"

	"github.com/gofiber/fiber/v2"
)

// AdminOverview returns the dashboard counters.
func (s *Server) AdminOverview(c *fiber.Ctx) error {
	overview, err := s.adminService.Overview(c.UserContext())
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	return c.JSON(overview)
}

// AdminListProfiles lists every profile newest first, including private fields.
func (s *Server) AdminListProfiles(c *fiber.Ctx) error {
	page := parsePagination(c, 50)
	profiles, err := s.profileService.List(c.UserContext(), c.Query("q"), page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	return c.JSON(profiles)
}

func (s *Server) AdminListMedia(c *fiber.Ctx) error {
	kind, err := parseKind(c)
	if err != nil {
		return nil
	}
	page := parsePagination(c, 50)
	items, err := s.adminService.ListMedia(c.UserContext(), kind, c.Query("q"), page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	return c.JSON(items)
}

// AdminDeleteMedia removes any item with its files.
func (s *Server) AdminDeleteMedia(c *fiber.Ctx) error {
	kind, err := parseKind(c)
	if err != nil {
		return nil
	}
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.adminService.DeleteMedia(c.UserContext(), kind, id); err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	return c.JSON(fiber.Map{"message": kind.Label() + " deleted"})
}

// AdminDeleteProfile removes a user with all of their media.
func (s *Server) AdminDeleteProfile(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.adminService.DeleteProfile(c.UserContext(), sessionFrom(c), id); err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	return c.JSON(fiber.Map{"message": "Profile deleted"})
}

// SetAdmin promotes or demotes the profile in :id.
func (s *Server) SetAdmin(admin bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c, "id")
		if err != nil {
			return nil
		}
		profile, err := s.adminService.SetAdmin(c.UserContext(), sessionFrom(c), id, admin)
		if err != nil {
			return models.RespondWithError(c, mapServiceError(err), err)
		}
		return c.JSON(profile)
	}
}

// GetFeatureFlags returns configured flags and their evaluation for the caller.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	session := sessionFrom(c)
	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(session.UserID),
	})
}
