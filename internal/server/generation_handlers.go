package server

import (
	"github.com/aslbekqoziboyev/aiverselabs/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// StartGenerationRequest is the body of POST /api/generations.
type StartGenerationRequest struct {
	Kind   string `json:"kind"`
	Prompt string `json:"prompt"`
}

// StartGeneration records a job and starts it in the background.
func (s *Server) StartGeneration(c *fiber.Ctx) error {
	var req StartGenerationRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	kind, err := models.ParseMediaKind(req.Kind)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, err)
	}
	job, err := s.generationService.Start(c.UserContext(), sessionFrom(c), kind, req.Prompt)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	return c.Status(fiber.StatusAccepted).JSON(job)
}

func (s *Server) ListGenerations(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	jobs, err := s.generationService.List(c.UserContext(), sessionFrom(c), page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	return c.JSON(jobs)
}

func (s *Server) GetGeneration(c *fiber.Ctx) error {
	id, err := parseJobID(c)
	if err != nil {
		return nil
	}
	job, err := s.generationService.Get(c.UserContext(), sessionFrom(c), id)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	return c.JSON(job)
}

// CancelGeneration stops a running job. The job settles as cancelled shortly after.
func (s *Server) CancelGeneration(c *fiber.Ctx) error {
	id, err := parseJobID(c)
	if err != nil {
		return nil
	}
	job, err := s.generationService.Cancel(c.UserContext(), sessionFrom(c), id)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	return c.Status(fiber.StatusAccepted).JSON(job)
}

func parseJobID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid job ID"))
		return uuid.Nil, errResponseWritten
	}
	return id, nil
}
